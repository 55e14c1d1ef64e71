package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vendora-app/vendora/internal/events"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OutboxWriter appends an event inside the repository's transaction.
// Implemented by events.OutboxStore.
type OutboxWriter interface {
	InsertTx(ctx context.Context, tx pgx.Tx, eventType string, payload any) (uuid.UUID, error)
}

// Repository persists appointments. Every write that changes state also
// appends the matching outbox event in the same transaction, so a
// notification is queued iff the state change committed.
type Repository struct {
	db     DB
	outbox OutboxWriter
}

// NewRepository creates an appointment repository.
func NewRepository(db DB, outbox OutboxWriter) *Repository {
	if db == nil {
		panic("scheduling: db required")
	}
	return &Repository{db: db, outbox: outbox}
}

// errStaleTransition signals that a guarded update matched no row; the
// caller re-reads and reclassifies as idempotent no-op or illegal.
var errStaleTransition = errors.New("scheduling: transition raced")

const apptColumns = `
	id, reference, customer_id, customer_name, customer_phone, customer_email,
	customer_address, store_id, service_id, service_name, rider_id,
	start_at, end_at, duration_minutes,
	price_cents, additional_cents, discount_cents, total_cents, total_clamped, currency,
	status, created_at, confirmed_at, started_at, completed_at, cancelled_at,
	no_show_at, rescheduled_at, updated_at,
	customer_notes, internal_notes, cancellation_reason, cancellation_details,
	acknowledgements, notify_sms, notify_email, predecessor_id, successor_id`

// Create inserts a new appointment and its booked event. A reference
// collision surfaces as errDuplicateReference so the booking engine can
// regenerate; a slot constraint violation surfaces as ErrSlotConflict.
func (r *Repository) Create(ctx context.Context, a *Appointment) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("scheduling: begin create: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.insertAppointment(ctx, tx, a); err != nil {
		return err
	}
	if r.outbox != nil {
		if _, err := r.outbox.InsertTx(ctx, tx, events.TypeAppointmentBookedV1, bookedEvent(a)); err != nil {
			return fmt.Errorf("scheduling: queue booked event: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("scheduling: commit create: %w", translateConstraint(err))
	}
	return nil
}

func (r *Repository) insertAppointment(ctx context.Context, tx pgx.Tx, a *Appointment) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments (
			reference, customer_id, customer_name, customer_phone, customer_email,
			customer_address, store_id, service_id, service_name, rider_id,
			start_at, end_at, duration_minutes,
			price_cents, additional_cents, discount_cents, total_cents, total_clamped, currency,
			status, created_at, confirmed_at, updated_at,
			customer_notes, internal_notes, acknowledgements, notify_sms, notify_email,
			predecessor_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24, $25, $26, $27, $28, $29
		)
		RETURNING id`,
		a.Reference, a.CustomerID, a.CustomerName, a.CustomerPhone, a.CustomerEmail,
		a.CustomerAddress, a.StoreID, a.ServiceID, a.ServiceName, a.RiderID,
		a.StartAt, a.EndAt, a.DurationMinutes,
		a.PriceCents, a.AdditionalCents, a.DiscountCents, a.TotalCents, a.TotalClamped, a.Currency,
		string(a.Status), a.CreatedAt, a.ConfirmedAt, a.UpdatedAt,
		a.CustomerNotes, a.InternalNotes, a.Acknowledgements, a.NotifySMS, a.NotifyEmail,
		a.PredecessorID,
	).Scan(&a.ID)
	if err != nil {
		return translateConstraint(err)
	}
	return nil
}

// GetByID loads an appointment by numeric id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+apptColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

// GetByReference loads an appointment by its unique reference.
func (r *Repository) GetByReference(ctx context.Context, reference string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+apptColumns+` FROM appointments WHERE reference = $1`, reference)
	return scanAppointment(row)
}

// ListActiveIntervals implements OverlapStore. The status list must match
// Status.Active.
func (r *Repository) ListActiveIntervals(ctx context.Context, storeID, serviceID uuid.UUID, within Interval) ([]Interval, error) {
	rows, err := r.db.Query(ctx, `
		SELECT start_at, end_at
		FROM appointments
		WHERE store_id = $1 AND service_id = $2
		  AND status IN ('pending', 'confirmed', 'in_progress', 'completed')
		  AND start_at < $3 AND end_at > $4`,
		storeID, serviceID, within.End, within.Start)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list active intervals: %w", err)
	}
	defer rows.Close()

	var out []Interval
	for rows.Next() {
		var iv Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, fmt.Errorf("scheduling: scan interval: %w", err)
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// TransitionUpdate describes a guarded status change.
type TransitionUpdate struct {
	ID        int64
	Reference string
	From      []Status
	To        Status
	At        time.Time

	// Cancellation only.
	Reason  string
	Details string

	Recipient events.Recipient
}

// stampColumns maps a target status to its lifecycle timestamp column.
var stampColumns = map[Status]string{
	StatusConfirmed:   "confirmed_at",
	StatusInProgress:  "started_at",
	StatusCompleted:   "completed_at",
	StatusCancelled:   "cancelled_at",
	StatusNoShow:      "no_show_at",
	StatusRescheduled: "rescheduled_at",
}

// ApplyTransition performs the guarded status update plus outbox event in
// one transaction. It returns false, with no state change, when the row was
// not in one of the expected source states.
func (r *Repository) ApplyTransition(ctx context.Context, u TransitionUpdate) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("scheduling: begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	applied, err := applyTransitionTx(ctx, tx, u)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}
	if r.outbox != nil {
		if _, err := r.outbox.InsertTx(ctx, tx, events.TypeAppointmentTransitionV1, transitionEvent(u)); err != nil {
			return false, fmt.Errorf("scheduling: queue transition event: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("scheduling: commit transition: %w", err)
	}
	return true, nil
}

func applyTransitionTx(ctx context.Context, tx pgx.Tx, u TransitionUpdate) (bool, error) {
	stamp, ok := stampColumns[u.To]
	if !ok {
		return false, fmt.Errorf("scheduling: no timestamp column for status %s", u.To)
	}

	query := fmt.Sprintf(`
		UPDATE appointments
		SET status = $1, %s = $2, updated_at = $2`, stamp)
	args := []any{string(u.To), u.At}

	if u.To == StatusCancelled {
		query += fmt.Sprintf(", cancellation_reason = $%d, cancellation_details = $%d", len(args)+1, len(args)+2)
		args = append(args, u.Reason, u.Details)
	}

	query += fmt.Sprintf(" WHERE id = $%d AND status = ANY($%d)", len(args)+1, len(args)+2)
	args = append(args, u.ID, statusStrings(u.From))

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("scheduling: apply transition: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CreateSuccessor atomically retires the original appointment and inserts
// its replacement: the reschedule commit point. The original's guarded
// update, the successor insert, the linkage, and both outbox events share
// one transaction.
func (r *Repository) CreateSuccessor(ctx context.Context, original TransitionUpdate, successor *Appointment) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("scheduling: begin reschedule: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.insertAppointment(ctx, tx, successor); err != nil {
		return err
	}

	applied, err := applyTransitionTx(ctx, tx, original)
	if err != nil {
		return err
	}
	if !applied {
		return errStaleTransition
	}

	if _, err := tx.Exec(ctx, `UPDATE appointments SET successor_id = $1 WHERE id = $2`,
		successor.ID, original.ID); err != nil {
		return fmt.Errorf("scheduling: link successor: %w", err)
	}

	if r.outbox != nil {
		if _, err := r.outbox.InsertTx(ctx, tx, events.TypeAppointmentTransitionV1, transitionEvent(original)); err != nil {
			return fmt.Errorf("scheduling: queue transition event: %w", err)
		}
		if _, err := r.outbox.InsertTx(ctx, tx, events.TypeAppointmentBookedV1, bookedEvent(successor)); err != nil {
			return fmt.Errorf("scheduling: queue booked event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("scheduling: commit reschedule: %w", translateConstraint(err))
	}
	return nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// translateConstraint maps Postgres constraint violations onto the error
// taxonomy: the reference unique index drives the regeneration loop, the
// active-slot exclusion constraint means the slot was taken concurrently.
func translateConstraint(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505": // unique_violation
		if strings.Contains(pgErr.ConstraintName, "reference") {
			return errDuplicateReference
		}
		return ErrSlotConflict
	case "23P01": // exclusion_violation
		return ErrSlotConflict
	}
	return err
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(
		&a.ID, &a.Reference, &a.CustomerID, &a.CustomerName, &a.CustomerPhone, &a.CustomerEmail,
		&a.CustomerAddress, &a.StoreID, &a.ServiceID, &a.ServiceName, &a.RiderID,
		&a.StartAt, &a.EndAt, &a.DurationMinutes,
		&a.PriceCents, &a.AdditionalCents, &a.DiscountCents, &a.TotalCents, &a.TotalClamped, &a.Currency,
		&status, &a.CreatedAt, &a.ConfirmedAt, &a.StartedAt, &a.CompletedAt, &a.CancelledAt,
		&a.NoShowAt, &a.RescheduledAt, &a.UpdatedAt,
		&a.CustomerNotes, &a.InternalNotes, &a.CancellationReason, &a.CancellationDetails,
		&a.Acknowledgements, &a.NotifySMS, &a.NotifyEmail, &a.PredecessorID, &a.SuccessorID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scheduling: scan appointment: %w", err)
	}
	a.Status = Status(status)
	return &a, nil
}

func bookedEvent(a *Appointment) events.AppointmentBookedV1 {
	return events.AppointmentBookedV1{
		AppointmentID: a.ID,
		Reference:     a.Reference,
		StoreID:       a.StoreID,
		ServiceID:     a.ServiceID,
		ServiceName:   a.ServiceName,
		StartAt:       a.StartAt,
		Status:        string(a.Status),
		TotalCents:    a.TotalCents,
		Currency:      a.Currency,
		Recipient:     recipientOf(a),
	}
}

func transitionEvent(u TransitionUpdate) events.AppointmentTransitionV1 {
	return events.AppointmentTransitionV1{
		AppointmentID: u.ID,
		Reference:     u.Reference,
		Transition:    string(u.To),
		OccurredAt:    u.At,
		Reason:        u.Reason,
		Recipient:     u.Recipient,
	}
}

func recipientOf(a *Appointment) events.Recipient {
	return events.Recipient{
		Name:       a.CustomerName,
		Phone:      a.CustomerPhone,
		Email:      a.CustomerEmail,
		SMSOptIn:   a.NotifySMS,
		EmailOptIn: a.NotifyEmail,
	}
}
