package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vendora-app/vendora/internal/catalog"
	"github.com/vendora-app/vendora/pkg/logging"
)

// CatalogReader answers store/service queries.
type CatalogReader interface {
	Service(ctx context.Context, storeID, serviceID uuid.UUID) (*catalog.VendorService, error)
	ListByStore(ctx context.Context, storeID uuid.UUID) ([]catalog.VendorService, error)
}

// ServicesHandler exposes the vendor service catalog read API.
type ServicesHandler struct {
	catalog CatalogReader
	logger  *logging.Logger
}

// NewServicesHandler creates the catalog HTTP handler.
func NewServicesHandler(cat CatalogReader, logger *logging.Logger) *ServicesHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ServicesHandler{catalog: cat, logger: logger}
}

// RegisterRoutes mounts catalog endpoints under a chi router.
// Expected to be mounted under /api/v1/stores
func (h *ServicesHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{storeID}/services", h.list)
	r.Get("/{storeID}/services/{serviceID}", h.get)
}

func (h *ServicesHandler) list(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "storeID"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid store id")
		return
	}

	services, err := h.catalog.ListByStore(r.Context(), storeID)
	if err != nil {
		h.logger.Error("services handler: list", "error", err, "store_id", storeID)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"services": services,
		"count":    len(services),
	})
}

func (h *ServicesHandler) get(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "storeID"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid store id")
		return
	}
	serviceID, err := uuid.Parse(chi.URLParam(r, "serviceID"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid service id")
		return
	}

	svc, err := h.catalog.Service(r.Context(), storeID, serviceID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "not found")
			return
		}
		h.logger.Error("services handler: get", "error", err, "store_id", storeID, "service_id", serviceID)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, svc)
}
