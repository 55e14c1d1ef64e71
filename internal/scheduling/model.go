// Package scheduling implements the appointment booking and lifecycle
// engine: conflict-free slot reservation, reference assignment, pricing,
// and the appointment state machine.
package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks the appointment lifecycle.
type Status string

const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusNoShow      Status = "no_show"
	StatusRescheduled Status = "rescheduled"
)

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled:
		return true
	}
	return false
}

// Active reports whether the appointment still occupies its slot. This is
// the single predicate every interval comparison uses.
func (s Status) Active() bool {
	switch s {
	case StatusCancelled, StatusNoShow, StatusRescheduled:
		return false
	}
	return true
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled:
		return true
	}
	return false
}

// Appointment is the central entity of the engine.
type Appointment struct {
	ID        int64  `json:"id"`
	Reference string `json:"reference"`

	CustomerID      uuid.UUID  `json:"customer_id"`
	CustomerName    string     `json:"customer_name"`
	CustomerPhone   string     `json:"customer_phone"`
	CustomerEmail   string     `json:"customer_email,omitempty"`
	CustomerAddress string     `json:"customer_address,omitempty"`
	StoreID         uuid.UUID  `json:"store_id"`
	ServiceID       uuid.UUID  `json:"service_id"`
	ServiceName     string     `json:"service_name"`
	RiderID         *uuid.UUID `json:"rider_id,omitempty"`

	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	DurationMinutes int       `json:"duration_minutes"`

	PriceCents      int64  `json:"price_cents"`
	AdditionalCents int64  `json:"additional_cents"`
	DiscountCents   int64  `json:"discount_cents"`
	TotalCents      int64  `json:"total_cents"`
	TotalClamped    bool   `json:"total_clamped"`
	Currency        string `json:"currency"`

	Status Status `json:"status"`

	CreatedAt     time.Time  `json:"created_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	NoShowAt      *time.Time `json:"no_show_at,omitempty"`
	RescheduledAt *time.Time `json:"rescheduled_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`

	CustomerNotes       string   `json:"customer_notes,omitempty"`
	InternalNotes       string   `json:"internal_notes,omitempty"`
	CancellationReason  string   `json:"cancellation_reason,omitempty"`
	CancellationDetails string   `json:"cancellation_details,omitempty"`
	Acknowledgements    []string `json:"acknowledgements,omitempty"`

	NotifySMS   bool `json:"notify_sms"`
	NotifyEmail bool `json:"notify_email"`

	// Reschedule linkage. A rescheduled appointment has exactly one
	// successor; the successor points back at its predecessor.
	PredecessorID *int64 `json:"predecessor_id,omitempty"`
	SuccessorID   *int64 `json:"successor_id,omitempty"`
}

// Interval is a half-open [Start, End) time window.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect. Back-to-back
// windows (End == other.Start) do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Window returns the appointment's occupied interval.
func (a *Appointment) Window() Interval {
	return Interval{Start: a.StartAt, End: a.EndAt}
}
