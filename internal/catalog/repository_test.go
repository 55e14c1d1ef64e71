package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

var serviceColumns = []string{
	"store_id", "service_id", "name", "price_min_cents", "price_max_cents",
	"currency", "duration_minutes", "active", "instant_booking",
}

func TestRepositoryGet(t *testing.T) {
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
			AddRow(storeID, serviceID, "Deep Tissue Massage", 50000, 80000, "USD", 30, true, false))

	repo := NewRepository(db)
	v, err := repo.Get(context.Background(), storeID, serviceID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if v.Name != "Deep Tissue Massage" || v.DurationMinutes != 30 {
		t.Fatalf("unexpected snapshot: %+v", v)
	}
	if v.FixedPrice() {
		t.Error("expected ranged price, got fixed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRepositoryGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	defer db.Close()

	storeID := uuid.New()
	serviceID := uuid.New()

	mock.ExpectQuery("SELECT store_id, service_id, name").
		WithArgs(storeID, serviceID).
		WillReturnRows(sqlmock.NewRows(serviceColumns))

	repo := NewRepository(db)
	_, err = repo.Get(context.Background(), storeID, serviceID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryListByStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	defer db.Close()

	storeID := uuid.New()

	mock.ExpectQuery("SELECT store_id, service_id, name").
		WithArgs(storeID).
		WillReturnRows(sqlmock.NewRows(serviceColumns).
			AddRow(storeID, uuid.New(), "Haircut", 3000, 3000, "USD", 45, true, true).
			AddRow(storeID, uuid.New(), "Beard Trim", 1500, 2500, "USD", 15, false, true))

	repo := NewRepository(db)
	services, err := repo.ListByStore(context.Background(), storeID)
	if err != nil {
		t.Fatalf("ListByStore returned error: %v", err)
	}
	if len(services) != 2 {
		t.Fatalf("expected 2 services, got %d", len(services))
	}
	if !services[0].FixedPrice() {
		t.Error("expected fixed price on first service")
	}
	if services[1].Active {
		t.Error("expected second service inactive")
	}
}
