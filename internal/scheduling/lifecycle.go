package scheduling

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vendora-app/vendora/internal/observability/metrics"
	"github.com/vendora-app/vendora/pkg/logging"
)

// transitions maps each target status to its legal source statuses.
var transitions = map[Status][]Status{
	StatusConfirmed:   {StatusPending},
	StatusInProgress:  {StatusPending, StatusConfirmed},
	StatusCompleted:   {StatusInProgress},
	StatusCancelled:   {StatusPending, StatusConfirmed},
	StatusNoShow:      {StatusPending, StatusConfirmed, StatusInProgress},
	StatusRescheduled: {StatusPending, StatusConfirmed},
}

// Machine drives appointment lifecycle transitions. Transitions on a single
// appointment are serialized per id; the guarded UPDATE in the store catches
// cross-process races. Cancelling or no-showing releases the slot implicitly:
// the row stops counting as active, so the availability index no longer sees
// its interval.
type Machine struct {
	store   AppointmentStore
	locks   *keyedMutex
	grace   time.Duration
	now     func() time.Time
	logger  *logging.Logger
	metrics *metrics.SchedulingMetrics
}

// NewMachine constructs the lifecycle state machine. grace is how early a
// service may be started relative to its scheduled time.
func NewMachine(store AppointmentStore, grace time.Duration, logger *logging.Logger) *Machine {
	if store == nil {
		panic("scheduling: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Machine{
		store:  store,
		locks:  newKeyedMutex(),
		grace:  grace,
		now:    time.Now,
		logger: logger,
	}
}

// WithClock injects the time source used for the grace-window check.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	if now != nil {
		m.now = now
	}
	return m
}

// WithMetrics attaches the prometheus metric set.
func (m *Machine) WithMetrics(met *metrics.SchedulingMetrics) *Machine {
	m.metrics = met
	return m
}

// Confirm moves a pending appointment to confirmed.
func (m *Machine) Confirm(ctx context.Context, id int64) (*Appointment, error) {
	return m.apply(ctx, id, StatusConfirmed, applyOpts{})
}

// Start marks the service as underway. The current time must be at or past
// the scheduled start minus the grace window.
func (m *Machine) Start(ctx context.Context, id int64) (*Appointment, error) {
	return m.apply(ctx, id, StatusInProgress, applyOpts{
		precheck: func(a *Appointment) error {
			if m.now().Before(a.StartAt.Add(-m.grace)) {
				return validationErr("start", "too early to start this appointment")
			}
			return nil
		},
	})
}

// Complete finishes an in-progress appointment. The total is immutable from
// this point on.
func (m *Machine) Complete(ctx context.Context, id int64) (*Appointment, error) {
	return m.apply(ctx, id, StatusCompleted, applyOpts{})
}

// Cancel terminally cancels the appointment and records the reason.
func (m *Machine) Cancel(ctx context.Context, id int64, reason, details string) (*Appointment, error) {
	if reason == "" {
		return nil, validationErr("cancellation_reason", "required")
	}
	return m.apply(ctx, id, StatusCancelled, applyOpts{reason: reason, details: details})
}

// MarkNoShow terminally records customer absence.
func (m *Machine) MarkNoShow(ctx context.Context, id int64) (*Appointment, error) {
	return m.apply(ctx, id, StatusNoShow, applyOpts{})
}

type applyOpts struct {
	reason   string
	details  string
	precheck func(*Appointment) error
}

// apply runs one transition. Re-applying the appointment's current status is
// a no-op success; anything outside the transition table is
// IllegalTransitionError.
func (m *Machine) apply(ctx context.Context, id int64, to Status, opts applyOpts) (*Appointment, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.transition")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("vendora.appointment_id", id),
		attribute.String("vendora.transition", string(to)),
	)

	appt, err := m.applyLocked(ctx, id, to, opts)
	if err != nil {
		span.RecordError(err)
		m.metrics.ObserveTransition(string(to), transitionOutcome(err))
		return nil, err
	}
	m.metrics.ObserveTransition(string(to), "success")
	return appt, nil
}

func (m *Machine) applyLocked(ctx context.Context, id int64, to Status, opts applyOpts) (*Appointment, error) {
	unlock := m.locks.Lock(apptKey(id))
	defer unlock()

	appt, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.Status == to {
		// Idempotent re-apply of the current status.
		return appt, nil
	}

	sources, known := transitions[to]
	if !known || !statusIn(appt.Status, sources) {
		return nil, &IllegalTransitionError{From: appt.Status, To: to}
	}

	if opts.precheck != nil {
		if err := opts.precheck(appt); err != nil {
			return nil, err
		}
	}

	update := TransitionUpdate{
		ID:        appt.ID,
		Reference: appt.Reference,
		From:      sources,
		To:        to,
		At:        m.now().UTC(),
		Reason:    opts.reason,
		Details:   opts.details,
		Recipient: recipientOf(appt),
	}

	applied, err := m.store.ApplyTransition(ctx, update)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost a cross-process race: reclassify against the fresh row.
		fresh, err := m.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if fresh.Status == to {
			return fresh, nil
		}
		return nil, &IllegalTransitionError{From: fresh.Status, To: to}
	}

	updated, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.logger.Info("appointment transition applied",
		"appointment_id", id,
		"reference", updated.Reference,
		"from", appt.Status,
		"to", to,
	)
	return updated, nil
}

func statusIn(s Status, set []Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

func transitionOutcome(err error) string {
	switch err.(type) {
	case *IllegalTransitionError:
		return "illegal"
	case *ValidationError:
		return "invalid"
	}
	return "error"
}
