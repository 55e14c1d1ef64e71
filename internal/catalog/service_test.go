package catalog

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestLookupFillsCacheOnMiss(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	defer db.Close()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	storeID := uuid.New()
	serviceID := uuid.New()

	// Only one DB round trip is expected across two lookups.
	mock.ExpectQuery("SELECT store_id, service_id, name").
		WithArgs(storeID, serviceID).
		WillReturnRows(sqlmock.NewRows(serviceColumns).
			AddRow(storeID, serviceID, "Manicure", 2500, 2500, "USD", 30, true, false))

	lookup := NewLookup(NewRepository(db), NewCache(client), nil)
	ctx := context.Background()

	first, err := lookup.Service(ctx, storeID, serviceID)
	if err != nil {
		t.Fatalf("first lookup failed: %v", err)
	}
	second, err := lookup.Service(ctx, storeID, serviceID)
	if err != nil {
		t.Fatalf("second lookup failed: %v", err)
	}
	if first.Name != second.Name || second.Name != "Manicure" {
		t.Fatalf("lookup mismatch: %q vs %q", first.Name, second.Name)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expected cached second lookup: %v", err)
	}
}

func TestLookupWithoutCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	defer db.Close()

	storeID := uuid.New()
	serviceID := uuid.New()

	mock.ExpectQuery("SELECT store_id, service_id, name").
		WithArgs(storeID, serviceID).
		WillReturnRows(sqlmock.NewRows(serviceColumns).
			AddRow(storeID, serviceID, "Massage", 50000, 80000, "USD", 30, true, false))

	lookup := NewLookup(NewRepository(db), nil, nil)
	v, err := lookup.Service(context.Background(), storeID, serviceID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if v.PriceMaxCents != 80000 {
		t.Fatalf("unexpected snapshot: %+v", v)
	}
}
