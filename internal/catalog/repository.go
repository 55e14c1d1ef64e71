package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// ErrNotFound is returned when no service matches the (store, service) key.
var ErrNotFound = errors.New("catalog: service not found")

// Repository reads vendor services from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a catalog repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the service snapshot for a (store, service) pair.
func (r *Repository) Get(ctx context.Context, storeID, serviceID uuid.UUID) (*VendorService, error) {
	var v VendorService
	err := r.db.QueryRowContext(ctx, `
		SELECT store_id, service_id, name, price_min_cents, price_max_cents,
		       currency, duration_minutes, active, instant_booking
		FROM vendor_services
		WHERE store_id = $1 AND service_id = $2`, storeID, serviceID).Scan(
		&v.StoreID, &v.ServiceID, &v.Name, &v.PriceMinCents, &v.PriceMaxCents,
		&v.Currency, &v.DurationMinutes, &v.Active, &v.InstantBooking)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get service: %w", err)
	}
	return &v, nil
}

// ListByStore returns all services offered by a vendor store.
func (r *Repository) ListByStore(ctx context.Context, storeID uuid.UUID) ([]VendorService, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT store_id, service_id, name, price_min_cents, price_max_cents,
		       currency, duration_minutes, active, instant_booking
		FROM vendor_services
		WHERE store_id = $1
		ORDER BY name`, storeID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list services: %w", err)
	}
	defer rows.Close()

	var out []VendorService
	for rows.Next() {
		var v VendorService
		if err := rows.Scan(&v.StoreID, &v.ServiceID, &v.Name, &v.PriceMinCents, &v.PriceMaxCents,
			&v.Currency, &v.DurationMinutes, &v.Active, &v.InstantBooking); err != nil {
			return nil, fmt.Errorf("catalog: scan service: %w", err)
		}
		out = append(out, v)
	}
	if out == nil {
		out = []VendorService{}
	}
	return out, rows.Err()
}
