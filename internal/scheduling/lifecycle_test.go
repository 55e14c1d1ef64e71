package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMachine(t *testing.T, store *memStore) *Machine {
	t.Helper()
	return NewMachine(store, 15*time.Minute, nil).WithClock(fixedClock(testNow))
}

// seedAppointment inserts an appointment directly into the store with the
// given status, bypassing the booking engine.
func seedAppointment(t *testing.T, store *memStore, status Status) *Appointment {
	t.Helper()
	appt := &Appointment{
		Reference:       "APT-20250228-090000-SEED",
		CustomerName:    "Ada Jones",
		CustomerPhone:   "+15551230000",
		CustomerEmail:   "ada@example.com",
		StoreID:         testStoreID,
		ServiceID:       testServiceID,
		ServiceName:     "Deep Tissue Massage",
		StartAt:         testStart,
		EndAt:           testStart.Add(30 * time.Minute),
		DurationMinutes: 30,
		PriceCents:      50000,
		TotalCents:      50000,
		Currency:        "USD",
		Status:          StatusPending,
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
		NotifySMS:       true,
	}
	require.NoError(t, store.Create(context.Background(), appt))
	if status != StatusPending {
		ok, err := store.ApplyTransition(context.Background(), TransitionUpdate{
			ID:        appt.ID,
			Reference: appt.Reference,
			From:      []Status{StatusPending, StatusConfirmed, StatusInProgress},
			To:        status,
			At:        testNow,
			Reason:    "seed",
		})
		require.NoError(t, err)
		require.True(t, ok)
	}
	got, err := store.GetByID(context.Background(), appt.ID)
	require.NoError(t, err)
	return got
}

func TestConfirmPendingAppointment(t *testing.T) {
	store := newMemStore()
	m := newTestMachine(t, store)
	appt := seedAppointment(t, store, StatusPending)

	got, err := m.Confirm(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
	require.NotNil(t, got.ConfirmedAt)
	assert.Equal(t, testNow.UTC(), *got.ConfirmedAt)
}

func TestTransitionTable(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		from  Status
		act   func(*Machine, int64) (*Appointment, error)
		want  Status
		legal bool
	}{
		{"pending can start", StatusPending, func(m *Machine, id int64) (*Appointment, error) { return m.Start(ctx, id) }, StatusInProgress, true},
		{"confirmed can start", StatusConfirmed, func(m *Machine, id int64) (*Appointment, error) { return m.Start(ctx, id) }, StatusInProgress, true},
		{"in_progress can complete", StatusInProgress, func(m *Machine, id int64) (*Appointment, error) { return m.Complete(ctx, id) }, StatusCompleted, true},
		{"pending cannot complete", StatusPending, func(m *Machine, id int64) (*Appointment, error) { return m.Complete(ctx, id) }, StatusCompleted, false},
		{"in_progress cannot confirm", StatusInProgress, func(m *Machine, id int64) (*Appointment, error) { return m.Confirm(ctx, id) }, StatusConfirmed, false},
		{"in_progress cannot cancel", StatusInProgress, func(m *Machine, id int64) (*Appointment, error) { return m.Cancel(ctx, id, "customer_request", "") }, StatusCancelled, false},
		{"in_progress can no-show", StatusInProgress, func(m *Machine, id int64) (*Appointment, error) { return m.MarkNoShow(ctx, id) }, StatusNoShow, true},
		{"completed cannot cancel", StatusCompleted, func(m *Machine, id int64) (*Appointment, error) { return m.Cancel(ctx, id, "customer_request", "") }, StatusCancelled, false},
		{"cancelled cannot confirm", StatusCancelled, func(m *Machine, id int64) (*Appointment, error) { return m.Confirm(ctx, id) }, StatusConfirmed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			m := newTestMachine(t, store)
			appt := seedAppointment(t, store, tt.from)

			got, err := tt.act(m, appt.ID)
			if tt.legal {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got.Status)
				return
			}
			var illegal *IllegalTransitionError
			require.ErrorAs(t, err, &illegal)
			assert.Equal(t, tt.from, illegal.From)
			assert.Equal(t, tt.want, illegal.To)
		})
	}
}

func TestTransitionIdempotentReapply(t *testing.T) {
	store := newMemStore()
	m := newTestMachine(t, store)
	appt := seedAppointment(t, store, StatusConfirmed)

	before := len(store.transitions)
	got, err := m.Confirm(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
	assert.Len(t, store.transitions, before, "re-applying the current status must not write")
}

func TestStartGraceWindow(t *testing.T) {
	store := newMemStore()
	appt := seedAppointment(t, store, StatusConfirmed)

	// 16 minutes before the slot with a 15 minute grace: too early.
	early := NewMachine(store, 15*time.Minute, nil).
		WithClock(fixedClock(testStart.Add(-16 * time.Minute)))
	_, err := early.Start(context.Background(), appt.ID)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	onTime := NewMachine(store, 15*time.Minute, nil).
		WithClock(fixedClock(testStart.Add(-15 * time.Minute)))
	got, err := onTime.Start(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got.Status)
	require.NotNil(t, got.StartedAt)
}

func TestCancelRequiresReason(t *testing.T) {
	store := newMemStore()
	m := newTestMachine(t, store)
	appt := seedAppointment(t, store, StatusConfirmed)

	_, err := m.Cancel(context.Background(), appt.ID, "", "")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	got, err := m.Cancel(context.Background(), appt.ID, "customer_request", "running late")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, "customer_request", got.CancellationReason)
	assert.Equal(t, "running late", got.CancellationDetails)
	require.NotNil(t, got.CancelledAt)
}

func TestCancelReleasesSlot(t *testing.T) {
	store := newMemStore()
	store.enforceOverlap = true
	m := newTestMachine(t, store)
	appt := seedAppointment(t, store, StatusConfirmed)

	idx := NewIndex(store)
	ok, err := idx.IsAvailable(context.Background(), testStoreID, testServiceID, testStart, 30, testNow)
	require.NoError(t, err)
	assert.False(t, ok, "slot is taken while the appointment is active")

	_, err = m.Cancel(context.Background(), appt.ID, "customer_request", "")
	require.NoError(t, err)

	ok, err = idx.IsAvailable(context.Background(), testStoreID, testServiceID, testStart, 30, testNow)
	require.NoError(t, err)
	assert.True(t, ok, "cancelled appointment no longer occupies the slot")
}

func TestMarkNoShowStampsTime(t *testing.T) {
	store := newMemStore()
	m := newTestMachine(t, store)
	appt := seedAppointment(t, store, StatusConfirmed)

	got, err := m.MarkNoShow(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, got.Status)
	require.NotNil(t, got.NoShowAt)
}

func TestTransitionUnknownAppointment(t *testing.T) {
	store := newMemStore()
	m := newTestMachine(t, store)

	_, err := m.Confirm(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

// lostRaceStore reports the guarded update as not applied once, emulating a
// concurrent writer that got there first.
type lostRaceStore struct {
	*memStore
	raceTo Status
	raced  bool
}

func (s *lostRaceStore) ApplyTransition(ctx context.Context, u TransitionUpdate) (bool, error) {
	if !s.raced {
		s.raced = true
		// The competing process moved the row before our UPDATE landed.
		s.memStore.ApplyTransition(ctx, TransitionUpdate{
			ID:        u.ID,
			Reference: u.Reference,
			From:      []Status{StatusPending, StatusConfirmed, StatusInProgress},
			To:        s.raceTo,
			At:        u.At,
			Reason:    "race",
		})
		return false, nil
	}
	return s.memStore.ApplyTransition(ctx, u)
}

func TestTransitionLostRaceSameTarget(t *testing.T) {
	base := newMemStore()
	appt := seedAppointment(t, base, StatusPending)
	store := &lostRaceStore{memStore: base, raceTo: StatusConfirmed}
	m := NewMachine(store, 15*time.Minute, nil).WithClock(fixedClock(testNow))

	// Another process confirmed first; our confirm converges on the fresh row.
	got, err := m.Confirm(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
}

func TestTransitionLostRaceConflictingTarget(t *testing.T) {
	base := newMemStore()
	appt := seedAppointment(t, base, StatusConfirmed)
	store := &lostRaceStore{memStore: base, raceTo: StatusCancelled}
	m := NewMachine(store, 15*time.Minute, nil).WithClock(fixedClock(testNow))

	_, err := m.Start(context.Background(), appt.ID)
	var illegal *IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, StatusCancelled, illegal.From)
	assert.Equal(t, StatusInProgress, illegal.To)
}
