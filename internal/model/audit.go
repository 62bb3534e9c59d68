package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ActorEmail string          `json:"actor_email" db:"actor_email"`
	ActorRole  string          `json:"actor_role" db:"actor_role"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   string          `json:"entity_id" db:"entity_id"`
	Metadata   json.RawMessage `json:"metadata" db:"metadata"`
	RequestID  string          `json:"request_id" db:"request_id"`
	IPAddress  string          `json:"ip_address" db:"ip_address"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

const (
	// Action types
	AuditActionCreate       = "create"
	AuditActionUpdate       = "update"
	AuditActionDelete       = "delete"
	AuditActionUpload       = "upload"
	AuditActionStatusChange = "status_change"
	AuditActionStockAdjust  = "stock_adjust"
	AuditActionAnalyze      = "analyze"

	// Entity types
	AuditEntityPatientRecord = "patient_record"
	AuditEntityPrescription  = "prescription"
	AuditEntityMedicine      = "medicine"
	AuditEntityChatCase      = "chat_case"
)

type AuditFilters struct {
	ActorEmail string
	EntityType string
	Action     string
	StartDate  time.Time
	EndDate    time.Time
	Limit      int
}
