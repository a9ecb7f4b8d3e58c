package domain

import "time"

// InAppNotification is a notification persisted for in-product display.
type InAppNotification struct {
	ID        string
	UserID    string
	TicketID  string
	Title     string
	Body      string
	Read      bool
	CreatedAt time.Time
}
