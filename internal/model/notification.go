package model

import "time"

// Notification represents an appointment-related message for a user
type Notification struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	Message       string    `json:"message"`
	IsRead        bool      `json:"is_read"`
	CreatedAt     time.Time `json:"created_at"`
	AppointmentID *int64    `json:"appointment_id"` // nil - не связано с приёмом
}
