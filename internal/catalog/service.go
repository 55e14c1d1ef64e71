package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/vendora-app/vendora/pkg/logging"
)

// Lookup answers (store, service) queries, consulting the redis cache first.
// The cache is optional; without it every lookup hits Postgres.
type Lookup struct {
	repo   *Repository
	cache  *Cache
	logger *logging.Logger
}

// NewLookup creates a catalog lookup service.
func NewLookup(repo *Repository, cache *Cache, logger *logging.Logger) *Lookup {
	if repo == nil {
		panic("catalog: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Lookup{repo: repo, cache: cache, logger: logger}
}

// Service returns the snapshot for a (store, service) pair.
func (l *Lookup) Service(ctx context.Context, storeID, serviceID uuid.UUID) (*VendorService, error) {
	if l.cache != nil {
		cached, err := l.cache.Get(ctx, storeID, serviceID)
		if err != nil {
			// Cache trouble falls through to Postgres.
			l.logger.Warn("catalog cache read failed", "error", err, "store_id", storeID, "service_id", serviceID)
		} else if cached != nil {
			return cached, nil
		}
	}

	v, err := l.repo.Get(ctx, storeID, serviceID)
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, v); err != nil {
			l.logger.Warn("catalog cache write failed", "error", err, "store_id", storeID, "service_id", serviceID)
		}
	}
	return v, nil
}

// ListByStore returns every service a store offers. Listings are not cached;
// the hot path is the per-service lookup.
func (l *Lookup) ListByStore(ctx context.Context, storeID uuid.UUID) ([]VendorService, error) {
	return l.repo.ListByStore(ctx, storeID)
}
