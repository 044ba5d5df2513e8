package events

import (
	"time"

	"github.com/spec-kit/fieldops-console/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventStaffLocked      EventType = "staff_locked"
	EventPINRotated       EventType = "pin_rotated"
	EventPINReset         EventType = "pin_reset"
	EventStaffUnlocked    EventType = "staff_unlocked"
	EventStaffDeactivated EventType = "staff_deactivated"
	EventStaffCreated     EventType = "staff_created"
)

// Actor identifies who caused an event. Empty for the verification service itself.
type Actor struct {
	AccountID string           `json:"account_id,omitempty"`
	Role      domain.StaffRole `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TenantID  string      `json:"tenant_id"`
	AccountID string      `json:"account_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// StaffLockedPayload payload.
type StaffLockedPayload struct {
	FailedAttempts int `json:"failed_attempts"`
}

// PINResetPayload payload.
type PINResetPayload struct {
	SessionsRevoked bool `json:"sessions_revoked"`
}

// StaffCreatedPayload payload.
type StaffCreatedPayload struct {
	StaffCode string           `json:"staff_code"`
	Role      domain.StaffRole `json:"role"`
}
