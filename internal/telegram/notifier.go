package telegram

import (
	"context"
	"lessonchat/backend/internal/localization"
	"lessonchat/backend/internal/models"
	"lessonchat/backend/internal/storage"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const previewLength = 100

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier tells users with a linked Telegram chat that a room just got its first unread
// message. Further messages in the same unread streak are not repeated.
type Notifier struct {
	Bot          Sender
	Users        storage.UserDirectory
	Localizer    *localization.Localizer
	DeepLinkBase string
}

func NewNotifier(bot Sender, users storage.UserDirectory, loc *localization.Localizer, deepLinkBase string) *Notifier {
	return &Notifier{
		Bot:          bot,
		Users:        users,
		Localizer:    loc,
		DeepLinkBase: strings.TrimRight(deepLinkBase, "/"),
	}
}

func (n *Notifier) Name() string { return "telegram" }

func (n *Notifier) HandleEvent(ctx context.Context, channel string, ev models.Event) error {
	if ev.Type != models.EventUnreadCount || ev.UnreadCount == nil || ev.UnreadCount.UnreadCount != 1 {
		return nil
	}

	user, err := n.Users.FindUserByID(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if user.TelegramChatID == 0 {
		return nil
	}

	lang := user.Language
	if lang == "" {
		lang = localization.DefaultLanguage
	}
	link := n.DeepLinkBase + "/" + ev.UnreadCount.RoomID

	var text string
	if preview := truncate(ev.UnreadCount.LatestMessage, previewLength); preview != "" {
		text = n.Localizer.Format(lang, "unread_notification", preview, link)
	} else {
		text = n.Localizer.Format(lang, "unread_notification_empty", link)
	}

	if _, err := n.Bot.Send(tgbotapi.NewMessage(user.TelegramChatID, text)); err != nil {
		return err
	}
	zap.S().Debugf("telegram notice sent to user %s for room %s", user.ID, ev.UnreadCount.RoomID)
	return nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "…"
}
