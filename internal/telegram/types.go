package telegram

import "time"

// Message is an inbound chat message, normalized from either a plain
// message or a callback query.
type Message struct {
	ID        int64
	ChatID    int64
	Text      string
	Timestamp time.Time
}

// BotAPI abstracts the Telegram transport so the bot loop and the
// tests never need a live connection.
type BotAPI interface {
	SendMessage(chatID int64, text string) error
	GetUpdates() ([]Message, error)
}
