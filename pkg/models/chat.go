package models

import "time"

type ChatMessage struct {
	ID       string    `json:"id"`
	RoomID   string    `json:"room_id"`
	UserID   string    `json:"user_id"`
	UserName string    `json:"user_name,omitempty"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}
