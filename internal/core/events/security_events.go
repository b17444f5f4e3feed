package events

import (
	"time"

	"github.com/google/uuid"
)

// EventTypeSecurity is the single topic all auth/audit events travel on; the
// concrete outcome lives in the payload so the audit sink stays append-only.
const EventTypeSecurity = "security.event"

type SecurityEvent struct {
	BaseEvent
	UserID    string
	EventName string
	Details   string
}

// NewSecurityEvent wraps a security-relevant outcome (login attempt result,
// lockout, registration, reset, unauthorized access) for the audit sink.
func NewSecurityEvent(userID, eventName, details string) SecurityEvent {
	return SecurityEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      EventTypeSecurity,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":    userID,
				"event_name": eventName,
				"details":    details,
			},
		},
		UserID:    userID,
		EventName: eventName,
		Details:   details,
	}
}
