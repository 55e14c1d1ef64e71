package scheduling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// OverlapStore supplies the committed active intervals the index checks
// candidates against. Implemented by Repository.
type OverlapStore interface {
	// ListActiveIntervals returns the [start, end) windows of all active
	// appointments for (store, service) that overlap the given interval.
	ListActiveIntervals(ctx context.Context, storeID, serviceID uuid.UUID, within Interval) ([]Interval, error)
}

// Index answers availability queries and hands out slot reservations.
//
// The check-and-reserve sequence is serialized per (store, service, date)
// key, and an in-memory hold covers the window between the overlap check
// and the committed insert. The storage layer's exclusion constraint
// remains the authoritative backstop across processes.
type Index struct {
	store OverlapStore
	locks *keyedMutex

	mu       sync.Mutex
	holds    map[string]map[int64]Interval
	nextHold int64
}

// NewIndex creates a slot availability index.
func NewIndex(store OverlapStore) *Index {
	if store == nil {
		panic("scheduling: overlap store required")
	}
	return &Index{
		store: store,
		locks: newKeyedMutex(),
		holds: make(map[string]map[int64]Interval),
	}
}

// Reservation is a tentative hold on a slot. Release it once the booking
// is committed or abandoned; releasing twice is a no-op.
type Reservation struct {
	Window Interval

	idx  *Index
	key  string
	id   int64
	once sync.Once
}

// Release drops the tentative hold.
func (r *Reservation) Release() {
	r.once.Do(func() {
		r.idx.mu.Lock()
		if held, ok := r.idx.holds[r.key]; ok {
			delete(held, r.id)
			if len(held) == 0 {
				delete(r.idx.holds, r.key)
			}
		}
		r.idx.mu.Unlock()
	})
}

func slotKey(storeID, serviceID uuid.UUID, start time.Time) string {
	return fmt.Sprintf("%s|%s|%s", storeID, serviceID, start.UTC().Format("2006-01-02"))
}

func candidateInterval(start time.Time, durationMinutes int) Interval {
	return Interval{Start: start, End: start.Add(time.Duration(durationMinutes) * time.Minute)}
}

// IsAvailable reports whether the interval could currently be reserved.
// Past slots are never available.
func (idx *Index) IsAvailable(ctx context.Context, storeID, serviceID uuid.UUID, start time.Time, durationMinutes int, now time.Time) (bool, error) {
	if durationMinutes <= 0 {
		return false, validationErr("duration", "must be positive")
	}
	if !start.After(now) {
		return false, nil
	}
	candidate := candidateInterval(start, durationMinutes)
	key := slotKey(storeID, serviceID, start)

	unlock := idx.locks.Lock(key)
	defer unlock()

	if idx.holdConflicts(key, candidate) {
		return false, nil
	}
	overlapping, err := idx.store.ListActiveIntervals(ctx, storeID, serviceID, candidate)
	if err != nil {
		return false, fmt.Errorf("scheduling: check availability: %w", err)
	}
	for _, iv := range overlapping {
		if iv.Overlaps(candidate) {
			return false, nil
		}
	}
	return true, nil
}

// Reserve performs the atomic check-and-reserve. On success the returned
// reservation holds the slot until Release is called.
func (idx *Index) Reserve(ctx context.Context, storeID, serviceID uuid.UUID, start time.Time, durationMinutes int, now time.Time) (*Reservation, error) {
	if durationMinutes <= 0 {
		return nil, validationErr("duration", "must be positive")
	}
	if !start.After(now) {
		return nil, ErrSlotInPast
	}
	candidate := candidateInterval(start, durationMinutes)
	key := slotKey(storeID, serviceID, start)

	unlock := idx.locks.Lock(key)
	defer unlock()

	if idx.holdConflicts(key, candidate) {
		return nil, ErrSlotConflict
	}
	overlapping, err := idx.store.ListActiveIntervals(ctx, storeID, serviceID, candidate)
	if err != nil {
		return nil, fmt.Errorf("scheduling: reserve: %w", err)
	}
	for _, iv := range overlapping {
		if iv.Overlaps(candidate) {
			return nil, ErrSlotConflict
		}
	}

	idx.mu.Lock()
	idx.nextHold++
	id := idx.nextHold
	held, ok := idx.holds[key]
	if !ok {
		held = make(map[int64]Interval)
		idx.holds[key] = held
	}
	held[id] = candidate
	idx.mu.Unlock()

	return &Reservation{Window: candidate, idx: idx, key: key, id: id}, nil
}

func (idx *Index) holdConflicts(key string, candidate Interval) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, iv := range idx.holds[key] {
		if iv.Overlaps(candidate) {
			return true
		}
	}
	return false
}
