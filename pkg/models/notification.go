package models

import "time"

const (
	NotificationLoan      = "loan"
	NotificationReturn    = "return"
	NotificationExtension = "extension"
	NotificationReminder  = "reminder"
	NotificationSystem    = "system"
)

type Notification struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Read    bool   `json:"read"`
	// RefType/RefID point back at the record that triggered the
	// notification (loan id, review id, ...).
	RefType   string    `json:"ref_type,omitempty"`
	RefID     string    `json:"ref_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
