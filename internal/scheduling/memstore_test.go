package scheduling

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory AppointmentStore used by engine, machine and
// coordinator tests. It mimics the Postgres constraints: unique references
// and, when enabled, the active-slot exclusion backstop.
type memStore struct {
	mu             sync.Mutex
	nextID         int64
	byID           map[int64]*Appointment
	byRef          map[string]int64
	enforceOverlap bool
	forceDupes     int // next N creates fail with a reference collision

	transitions []TransitionUpdate
}

func newMemStore() *memStore {
	return &memStore{
		byID:  make(map[int64]*Appointment),
		byRef: make(map[string]int64),
	}
}

func copyAppt(a *Appointment) *Appointment {
	dup := *a
	if a.Acknowledgements != nil {
		dup.Acknowledgements = append([]string(nil), a.Acknowledgements...)
	}
	return &dup
}

func (s *memStore) Create(ctx context.Context, a *Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.forceDupes > 0 {
		s.forceDupes--
		return errDuplicateReference
	}
	if _, exists := s.byRef[a.Reference]; exists {
		return errDuplicateReference
	}
	if s.enforceOverlap && s.overlapLocked(a) {
		return ErrSlotConflict
	}

	s.nextID++
	a.ID = s.nextID
	s.byID[a.ID] = copyAppt(a)
	s.byRef[a.Reference] = a.ID
	return nil
}

func (s *memStore) overlapLocked(a *Appointment) bool {
	for _, existing := range s.byID {
		if existing.StoreID == a.StoreID && existing.ServiceID == a.ServiceID &&
			existing.Status.Active() && existing.Window().Overlaps(a.Window()) {
			return true
		}
	}
	return false
}

func (s *memStore) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAppt(a), nil
}

func (s *memStore) GetByReference(ctx context.Context, reference string) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byRef[reference]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAppt(s.byID[id]), nil
}

func (s *memStore) ListActiveIntervals(ctx context.Context, storeID, serviceID uuid.UUID, within Interval) ([]Interval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Interval
	for _, a := range s.byID {
		if a.StoreID == storeID && a.ServiceID == serviceID && a.Status.Active() && a.Window().Overlaps(within) {
			out = append(out, a.Window())
		}
	}
	return out, nil
}

func (s *memStore) ApplyTransition(ctx context.Context, u TransitionUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(u), nil
}

func (s *memStore) applyLocked(u TransitionUpdate) bool {
	a, ok := s.byID[u.ID]
	if !ok || !statusIn(a.Status, u.From) {
		return false
	}
	a.Status = u.To
	at := u.At
	switch u.To {
	case StatusConfirmed:
		a.ConfirmedAt = &at
	case StatusInProgress:
		a.StartedAt = &at
	case StatusCompleted:
		a.CompletedAt = &at
	case StatusCancelled:
		a.CancelledAt = &at
		a.CancellationReason = u.Reason
		a.CancellationDetails = u.Details
	case StatusNoShow:
		a.NoShowAt = &at
	case StatusRescheduled:
		a.RescheduledAt = &at
	}
	a.UpdatedAt = at
	s.transitions = append(s.transitions, u)
	return true
}

func (s *memStore) CreateSuccessor(ctx context.Context, original TransitionUpdate, successor *Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byRef[successor.Reference]; exists {
		return errDuplicateReference
	}
	if !s.applyLocked(original) {
		return errStaleTransition
	}

	s.nextID++
	successor.ID = s.nextID
	s.byID[successor.ID] = copyAppt(successor)
	s.byRef[successor.Reference] = successor.ID
	s.byID[original.ID].SuccessorID = &successor.ID
	return nil
}

// fixedClock returns a clock pinned to t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
