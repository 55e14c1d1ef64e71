package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vendora-app/vendora/internal/catalog"
	"github.com/vendora-app/vendora/internal/observability/metrics"
	"github.com/vendora-app/vendora/pkg/logging"
)

var schedulingTracer trace.Tracer = otel.Tracer("vendora.internal.scheduling")

// ServiceCatalog is the read-only vendor/service lookup the engine consults.
// Implemented by catalog.Lookup.
type ServiceCatalog interface {
	Service(ctx context.Context, storeID, serviceID uuid.UUID) (*catalog.VendorService, error)
}

// AppointmentStore is the persistence surface the engine and state machine
// write through. Implemented by Repository.
type AppointmentStore interface {
	OverlapStore
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	GetByReference(ctx context.Context, reference string) (*Appointment, error)
	ApplyTransition(ctx context.Context, u TransitionUpdate) (bool, error)
	CreateSuccessor(ctx context.Context, original TransitionUpdate, successor *Appointment) error
}

// BookingRequest is the validated input for a booking.
type BookingRequest struct {
	CustomerID      uuid.UUID `json:"customer_id"`
	CustomerName    string    `json:"customer_name"`
	CustomerPhone   string    `json:"customer_phone"`
	CustomerEmail   string    `json:"customer_email"`
	CustomerAddress string    `json:"customer_address"`

	StoreID   uuid.UUID `json:"store_id"`
	ServiceID uuid.UUID `json:"service_id"`
	StartAt   time.Time `json:"start_at"`

	// Vendor-side pricing decision; required when the service has a range.
	ExplicitPriceCents *int64 `json:"explicit_price_cents,omitempty"`
	AdditionalCents    int64  `json:"additional_cents"`
	DiscountCents      int64  `json:"discount_cents"`

	CustomerNotes    string   `json:"customer_notes"`
	Acknowledgements []string `json:"acknowledgements"`
	NotifySMS        bool     `json:"notify_sms"`
	NotifyEmail      bool     `json:"notify_email"`
}

func (r *BookingRequest) validate() error {
	if r.StoreID == uuid.Nil {
		return validationErr("store_id", "required")
	}
	if r.ServiceID == uuid.Nil {
		return validationErr("service_id", "required")
	}
	if r.CustomerName == "" {
		return validationErr("customer_name", "required")
	}
	if r.CustomerPhone == "" {
		return validationErr("customer_phone", "required")
	}
	if r.CustomerEmail == "" && r.CustomerAddress == "" {
		return validationErr("customer_contact", "at least one of email or address is required")
	}
	if r.StartAt.IsZero() {
		return validationErr("start_at", "required")
	}
	return nil
}

// Engine turns booking requests into conflict-free appointments.
type Engine struct {
	catalog        ServiceCatalog
	index          *Index
	store          AppointmentStore
	refs           *ReferenceGenerator
	now            func() time.Time
	maxRefAttempts int
	logger         *logging.Logger
	metrics        *metrics.SchedulingMetrics
}

// NewEngine constructs a booking engine.
func NewEngine(cat ServiceCatalog, index *Index, store AppointmentStore, refs *ReferenceGenerator, logger *logging.Logger) *Engine {
	if cat == nil || index == nil || store == nil {
		panic("scheduling: catalog, index and store required")
	}
	if refs == nil {
		refs = NewReferenceGenerator("", nil, nil)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		catalog:        cat,
		index:          index,
		store:          store,
		refs:           refs,
		now:            time.Now,
		maxRefAttempts: 5,
		logger:         logger,
	}
}

// WithClock injects the time source used for past-slot checks.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// WithMaxReferenceAttempts bounds the reference regeneration loop.
func (e *Engine) WithMaxReferenceAttempts(n int) *Engine {
	if n > 0 {
		e.maxRefAttempts = n
	}
	return e
}

// WithMetrics attaches the prometheus metric set.
func (e *Engine) WithMetrics(m *metrics.SchedulingMetrics) *Engine {
	e.metrics = m
	return e
}

// Book validates the request, reserves the slot, prices the booking, and
// persists the appointment. All failures leave no partial appointment and
// release the provisional reservation.
func (e *Engine) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("vendora.store_id", req.StoreID.String()),
		attribute.String("vendora.service_id", req.ServiceID.String()),
	)

	started := e.now()
	appt, err := e.book(ctx, req)
	if err != nil {
		span.RecordError(err)
		e.metrics.ObserveBooking(bookingOutcome(err), e.now().Sub(started))
		return nil, err
	}
	e.metrics.ObserveBooking("success", e.now().Sub(started))
	e.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"reference", appt.Reference,
		"store_id", appt.StoreID,
		"service_id", appt.ServiceID,
		"start_at", appt.StartAt,
		"status", appt.Status,
	)
	return appt, nil
}

func (e *Engine) book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	svc, err := e.catalog.Service(ctx, req.StoreID, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, ErrServiceInactive
	}

	now := e.now()
	res, err := e.index.Reserve(ctx, req.StoreID, req.ServiceID, req.StartAt, svc.DurationMinutes, now)
	if err != nil {
		return nil, err
	}
	// The hold is no longer needed once the row is committed (the index
	// sees it through the store) or the booking failed.
	defer res.Release()

	quote, err := ComputeTotal(svc.PriceMinCents, svc.PriceMaxCents, req.ExplicitPriceCents, req.AdditionalCents, req.DiscountCents)
	if err != nil {
		return nil, err
	}

	appt := &Appointment{
		CustomerID:       req.CustomerID,
		CustomerName:     req.CustomerName,
		CustomerPhone:    req.CustomerPhone,
		CustomerEmail:    req.CustomerEmail,
		CustomerAddress:  req.CustomerAddress,
		StoreID:          req.StoreID,
		ServiceID:        req.ServiceID,
		ServiceName:      svc.Name,
		StartAt:          res.Window.Start,
		EndAt:            res.Window.End,
		DurationMinutes:  svc.DurationMinutes,
		PriceCents:       quote.PriceCents,
		AdditionalCents:  quote.AdditionalCents,
		DiscountCents:    quote.DiscountCents,
		TotalCents:       quote.TotalCents,
		TotalClamped:     quote.Clamped,
		Currency:         svc.Currency,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
		CustomerNotes:    req.CustomerNotes,
		Acknowledgements: req.Acknowledgements,
		NotifySMS:        req.NotifySMS,
		NotifyEmail:      req.NotifyEmail,
	}
	if svc.InstantBooking {
		// Instant booking chooses the initial state and still records the
		// confirmation side effects.
		confirmedAt := now
		appt.Status = StatusConfirmed
		appt.ConfirmedAt = &confirmedAt
	}

	if err := e.persistWithReference(ctx, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

// persistWithReference assigns a reference and inserts, regenerating on a
// uniqueness collision up to the configured bound.
func (e *Engine) persistWithReference(ctx context.Context, appt *Appointment) error {
	for attempt := 1; ; attempt++ {
		appt.Reference = e.refs.Generate()
		err := e.store.Create(ctx, appt)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errDuplicateReference) {
			return err
		}
		e.metrics.ObserveReferenceRetry()
		if attempt >= e.maxRefAttempts {
			e.logger.Error("reference generation exhausted",
				"attempts", attempt,
				"store_id", appt.StoreID,
				"service_id", appt.ServiceID,
			)
			return ErrReferenceExhausted
		}
		e.logger.Warn("reference collision, regenerating", "attempt", attempt)
	}
}

func bookingOutcome(err error) string {
	var vErr *ValidationError
	var pErr *PriceOutOfRangeError
	switch {
	case errors.Is(err, ErrSlotConflict):
		return "conflict"
	case errors.Is(err, ErrSlotInPast):
		return "past"
	case errors.Is(err, ErrServiceInactive):
		return "inactive"
	case errors.Is(err, ErrReferenceExhausted):
		return "reference_exhausted"
	case errors.As(err, &vErr), errors.As(err, &pErr):
		return "invalid"
	}
	return "error"
}

// Ensure Repository satisfies the store surface the engine needs.
var _ AppointmentStore = (*Repository)(nil)

// apptKey is the per-appointment serialization key for lifecycle transitions.
func apptKey(id int64) string {
	return fmt.Sprintf("appt:%d", id)
}
