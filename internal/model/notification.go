package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationInfo    NotificationLevel = "info"
	NotificationError   NotificationLevel = "error"
)

// Notification is a transient message for the operator (a toast).
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
}

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
	// NotificationStatusCleared marks the point a watched condition went away.
	// Nothing is sent.
	NotificationStatusCleared NotificationStatus = "cleared"
)

// Alert is an outbound email, e.g. a low-stock warning.
type Alert struct {
	ID          uuid.UUID          `json:"id" db:"id"`
	Kind        string             `json:"kind" db:"kind"`
	Recipient   string             `json:"recipient" db:"recipient"`
	Subject     string             `json:"subject" db:"subject"`
	Content     string             `json:"content" db:"content"`
	// Fingerprint identifies the item set the alert was about.
	Fingerprint string             `json:"fingerprint" db:"fingerprint"`
	Status      NotificationStatus `json:"status" db:"status"`
	LastError   string             `json:"last_error,omitempty" db:"last_error"`
	SentAt      *time.Time         `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
}

const AlertKindLowStock = "low_stock"
