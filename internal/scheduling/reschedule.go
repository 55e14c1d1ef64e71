package scheduling

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vendora-app/vendora/pkg/logging"
)

// Coordinator orchestrates the compound reschedule operation and fronts
// cancellation. Rescheduling reserves the new slot first; only then does a
// single transaction retire the original and create its successor, so a
// failed validation leaves the original untouched.
type Coordinator struct {
	catalog        ServiceCatalog
	index          *Index
	store          AppointmentStore
	refs           *ReferenceGenerator
	machine        *Machine
	maxRefAttempts int
	logger         *logging.Logger
}

// NewCoordinator constructs the coordinator. It shares the machine's
// per-appointment locks so reschedules serialize with plain transitions.
func NewCoordinator(machine *Machine, cat ServiceCatalog, index *Index, store AppointmentStore, refs *ReferenceGenerator, logger *logging.Logger) *Coordinator {
	if machine == nil || cat == nil || index == nil || store == nil {
		panic("scheduling: machine, catalog, index and store required")
	}
	if refs == nil {
		refs = NewReferenceGenerator("", nil, nil)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Coordinator{
		catalog:        cat,
		index:          index,
		store:          store,
		refs:           refs,
		machine:        machine,
		maxRefAttempts: 5,
		logger:         logger,
	}
}

// WithMaxReferenceAttempts bounds the successor reference regeneration loop.
func (c *Coordinator) WithMaxReferenceAttempts(n int) *Coordinator {
	if n > 0 {
		c.maxRefAttempts = n
	}
	return c
}

// Cancel terminally cancels an appointment and releases its slot.
func (c *Coordinator) Cancel(ctx context.Context, id int64, reason, details string) (*Appointment, error) {
	return c.machine.Cancel(ctx, id, reason, details)
}

// Reschedule moves an appointment to a new start time on the same vendor
// store and service. The original ends terminal in `rescheduled`, linked to
// the successor that now occupies the new slot.
func (c *Coordinator) Reschedule(ctx context.Context, id int64, newStart time.Time) (*Appointment, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.reschedule")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("vendora.appointment_id", id),
		attribute.String("vendora.new_start", newStart.UTC().Format(time.RFC3339)),
	)

	successor, err := c.reschedule(ctx, id, newStart)
	if err != nil {
		span.RecordError(err)
		c.machine.metrics.ObserveTransition(string(StatusRescheduled), transitionOutcome(err))
		return nil, err
	}
	c.machine.metrics.ObserveTransition(string(StatusRescheduled), "success")
	return successor, nil
}

func (c *Coordinator) reschedule(ctx context.Context, id int64, newStart time.Time) (*Appointment, error) {
	if newStart.IsZero() {
		return nil, validationErr("new_start", "required")
	}

	unlock := c.machine.locks.Lock(apptKey(id))
	defer unlock()

	original, err := c.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sources := transitions[StatusRescheduled]
	if !statusIn(original.Status, sources) {
		return nil, &IllegalTransitionError{From: original.Status, To: StatusRescheduled}
	}

	svc, err := c.catalog.Service(ctx, original.StoreID, original.ServiceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, ErrServiceInactive
	}

	now := c.machine.now()
	res, err := c.index.Reserve(ctx, original.StoreID, original.ServiceID, newStart, svc.DurationMinutes, now)
	if err != nil {
		return nil, err
	}
	defer res.Release()

	successor := successorOf(original, res.Window, svc.DurationMinutes, now)
	if svc.InstantBooking {
		confirmedAt := now
		successor.Status = StatusConfirmed
		successor.ConfirmedAt = &confirmedAt
	}

	update := TransitionUpdate{
		ID:        original.ID,
		Reference: original.Reference,
		From:      sources,
		To:        StatusRescheduled,
		At:        now.UTC(),
		Recipient: recipientOf(original),
	}

	if err := c.persistSuccessor(ctx, update, successor); err != nil {
		if errors.Is(err, errStaleTransition) {
			fresh, readErr := c.store.GetByID(ctx, id)
			if readErr != nil {
				return nil, readErr
			}
			return nil, &IllegalTransitionError{From: fresh.Status, To: StatusRescheduled}
		}
		return nil, err
	}

	c.logger.Info("appointment rescheduled",
		"appointment_id", original.ID,
		"reference", original.Reference,
		"successor_id", successor.ID,
		"successor_reference", successor.Reference,
		"new_start", successor.StartAt,
	)
	return successor, nil
}

func (c *Coordinator) persistSuccessor(ctx context.Context, update TransitionUpdate, successor *Appointment) error {
	for attempt := 1; ; attempt++ {
		successor.Reference = c.refs.Generate()
		err := c.store.CreateSuccessor(ctx, update, successor)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errDuplicateReference) {
			return err
		}
		if attempt >= c.maxRefAttempts {
			return ErrReferenceExhausted
		}
		c.logger.Warn("successor reference collision, regenerating", "attempt", attempt)
	}
}

// successorOf clones the customer, financial and narrative data onto a new
// appointment occupying the given window.
func successorOf(original *Appointment, window Interval, durationMinutes int, now time.Time) *Appointment {
	predecessorID := original.ID
	return &Appointment{
		CustomerID:       original.CustomerID,
		CustomerName:     original.CustomerName,
		CustomerPhone:    original.CustomerPhone,
		CustomerEmail:    original.CustomerEmail,
		CustomerAddress:  original.CustomerAddress,
		StoreID:          original.StoreID,
		ServiceID:        original.ServiceID,
		ServiceName:      original.ServiceName,
		RiderID:          original.RiderID,
		StartAt:          window.Start,
		EndAt:            window.End,
		DurationMinutes:  durationMinutes,
		PriceCents:       original.PriceCents,
		AdditionalCents:  original.AdditionalCents,
		DiscountCents:    original.DiscountCents,
		TotalCents:       original.TotalCents,
		TotalClamped:     original.TotalClamped,
		Currency:         original.Currency,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
		CustomerNotes:    original.CustomerNotes,
		InternalNotes:    original.InternalNotes,
		Acknowledgements: original.Acknowledgements,
		NotifySMS:        original.NotifySMS,
		NotifyEmail:      original.NotifyEmail,
		PredecessorID:    &predecessorID,
	}
}
