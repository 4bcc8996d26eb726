package main

import (
	"context"
	"fmt"
	"lessonchat/backend/internal/api/handler"
	"lessonchat/backend/internal/chat"
	"lessonchat/backend/internal/config"
	"lessonchat/backend/internal/logger"
	"lessonchat/backend/internal/models"
	"lessonchat/backend/internal/storage"
	"log"
	"os"
	"text/tabwriter"
	"time"
)

// noBroadcast is used because the admin commands run outside the server and have no sockets to notify.
type noBroadcast struct{}

func (noBroadcast) BroadcastNewMessage(context.Context, string, models.ChatMessage)       {}
func (noBroadcast) SendReadReceipts(context.Context, string, []models.ReadReceipt)       {}
func (noBroadcast) SendUnreadCountInfo(context.Context, string, models.UnreadCountInfo) {}

func usage() {
	fmt.Println("Usage: admin <command> [args]")
	fmt.Println("  rooms <user_id>                  list a user's rooms with unread counts")
	fmt.Println("  remove-member <room_id> <user_id> hard-delete a membership")
	fmt.Println("  token <email>                    issue a development JWT")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if _, err := logger.New(logger.Config{Development: true}); err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	db, err := storage.Open(cfg.DatabaseURL, false)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	storageSvc := storage.NewStorageService(db, nil) // No redis needed for admin CLI
	svc := chat.NewService(storageSvc, noBroadcast{}, cfg.DeepLinkBase)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "rooms":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin rooms <user_id>")
			os.Exit(1)
		}
		if err := listRooms(ctx, svc, os.Args[2]); err != nil {
			log.Fatalf("Error listing rooms: %v", err)
		}
	case "remove-member":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin remove-member <room_id> <user_id>")
			os.Exit(1)
		}
		deleted, err := svc.RemoveMember(ctx, os.Args[2], os.Args[3])
		if err != nil {
			log.Fatalf("Error removing member: %v", err)
		}
		fmt.Printf("User %s removed from room %s.\n", os.Args[3], os.Args[2])
		if deleted {
			fmt.Println("The room had no members left and was deleted.")
		}
	case "token":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin token <email>")
			os.Exit(1)
		}
		user, err := storageSvc.FindUserByEmail(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Error finding user: %v", err)
		}
		token, err := handler.IssueToken([]byte(cfg.JWTSecret), user.ID, user.Email, config.DevTokenTTL)
		if err != nil {
			log.Fatalf("Error issuing token: %v", err)
		}
		fmt.Println(token)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
	}
}

func listRooms(ctx context.Context, svc *chat.Service, userID string) error {
	items, err := svc.GetChatRoomList(ctx, userID)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROOM\tPARTNER\tUNREAD\tLATEST")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", it.RoomID, it.Partner.ID, it.Unread.UnreadCount, it.Unread.LatestMessage)
	}
	return w.Flush()
}
