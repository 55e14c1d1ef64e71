// Package events defines the appointment event contracts and the
// transactional outbox that decouples core commits from notification
// delivery.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event type identifiers. Versioned so payloads can evolve.
const (
	TypeAppointmentBookedV1     = "appointment.booked.v1"
	TypeAppointmentTransitionV1 = "appointment.transition.v1"
)

// Recipient carries the contact details and opt-in flags the notification
// collaborator needs. The core never sends anything itself.
type Recipient struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
	SMSOptIn   bool   `json:"sms_opt_in"`
	EmailOptIn bool   `json:"email_opt_in"`
}

// AppointmentBookedV1 is emitted once when a booking commits.
type AppointmentBookedV1 struct {
	AppointmentID int64     `json:"appointment_id"`
	Reference     string    `json:"reference"`
	StoreID       uuid.UUID `json:"store_id"`
	ServiceID     uuid.UUID `json:"service_id"`
	ServiceName   string    `json:"service_name"`
	StartAt       time.Time `json:"start_at"`
	Status        string    `json:"status"`
	TotalCents    int64     `json:"total_cents"`
	Currency      string    `json:"currency"`
	Recipient     Recipient `json:"recipient"`
}

// AppointmentTransitionV1 is emitted after each lifecycle transition commits.
type AppointmentTransitionV1 struct {
	AppointmentID int64     `json:"appointment_id"`
	Reference     string    `json:"reference"`
	Transition    string    `json:"transition"` // target status
	OccurredAt    time.Time `json:"occurred_at"`
	Reason        string    `json:"reason,omitempty"`
	Recipient     Recipient `json:"recipient"`
}
