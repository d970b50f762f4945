package model

import (
	"fmt"
	"time"
)

// User links a Telegram account to the user id owning tasks and conversations.
type User struct {
	ID             uint   `gorm:"primaryKey"`
	TelegramID     int64  `gorm:"uniqueIndex"`
	ExternalID     string `gorm:"uniqueIndex"`
	FirstName      string
	LastName       string
	Username       string
	ConversationID *uint
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TelegramUserID is the owner id used for tasks created through Telegram.
func TelegramUserID(telegramID int64) string {
	return fmt.Sprintf("telegram:%d", telegramID)
}
