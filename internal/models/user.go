package models

// User is the read-only view of a marketplace user the chat subsystem needs.
// The users table is owned by the identity service.
type User struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Email       string `gorm:"uniqueIndex" json:"email"`
	DisplayName string `json:"display_name"`
	// TelegramChatID is set when the user linked the notification bot. Zero means not linked.
	TelegramChatID int64 `json:"-"`
	// Language is used for localized notifications.
	Language string `json:"-"`
}

// Class is the slice of a one-day class the chat needs: who owns it.
type Class struct {
	ID      string `gorm:"primaryKey"`
	OwnerID string `gorm:"not null"`
}

// TableName maps Class onto the marketplace's one_day_classes table.
func (Class) TableName() string {
	return "one_day_classes"
}
