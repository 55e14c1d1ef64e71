package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vendora-app/vendora/internal/catalog"
	"github.com/vendora-app/vendora/internal/scheduling"
	"github.com/vendora-app/vendora/pkg/logging"
)

// BookingService creates appointments.
type BookingService interface {
	Book(ctx context.Context, req scheduling.BookingRequest) (*scheduling.Appointment, error)
}

// LifecycleService drives simple status transitions.
type LifecycleService interface {
	Confirm(ctx context.Context, id int64) (*scheduling.Appointment, error)
	Start(ctx context.Context, id int64) (*scheduling.Appointment, error)
	Complete(ctx context.Context, id int64) (*scheduling.Appointment, error)
	MarkNoShow(ctx context.Context, id int64) (*scheduling.Appointment, error)
}

// RescheduleService handles cancellation and the compound reschedule.
type RescheduleService interface {
	Cancel(ctx context.Context, id int64, reason, details string) (*scheduling.Appointment, error)
	Reschedule(ctx context.Context, id int64, newStart time.Time) (*scheduling.Appointment, error)
}

// AppointmentReader loads appointments for the read endpoints.
type AppointmentReader interface {
	GetByID(ctx context.Context, id int64) (*scheduling.Appointment, error)
	GetByReference(ctx context.Context, reference string) (*scheduling.Appointment, error)
}

// AppointmentsHandler exposes the appointment API.
type AppointmentsHandler struct {
	booking   BookingService
	lifecycle LifecycleService
	coord     RescheduleService
	reader    AppointmentReader
	logger    *logging.Logger
}

// NewAppointmentsHandler creates the appointment HTTP handler.
func NewAppointmentsHandler(booking BookingService, lifecycle LifecycleService, coord RescheduleService, reader AppointmentReader, logger *logging.Logger) *AppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{
		booking:   booking,
		lifecycle: lifecycle,
		coord:     coord,
		reader:    reader,
		logger:    logger,
	}
}

// RegisterRoutes mounts appointment endpoints under a chi router.
// Expected to be mounted under /api/v1/appointments
func (h *AppointmentsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.getByID)
	r.Get("/ref/{reference}", h.getByReference)
	r.Post("/{id}/confirm", h.transition(func(ctx context.Context, id int64) (*scheduling.Appointment, error) {
		return h.lifecycle.Confirm(ctx, id)
	}))
	r.Post("/{id}/start", h.transition(func(ctx context.Context, id int64) (*scheduling.Appointment, error) {
		return h.lifecycle.Start(ctx, id)
	}))
	r.Post("/{id}/complete", h.transition(func(ctx context.Context, id int64) (*scheduling.Appointment, error) {
		return h.lifecycle.Complete(ctx, id)
	}))
	r.Post("/{id}/no-show", h.transition(func(ctx context.Context, id int64) (*scheduling.Appointment, error) {
		return h.lifecycle.MarkNoShow(ctx, id)
	}))
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/reschedule", h.reschedule)
}

func (h *AppointmentsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req scheduling.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	appt, err := h.booking.Book(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (h *AppointmentsHandler) getByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.apptID(w, r)
	if !ok {
		return
	}
	appt, err := h.reader.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *AppointmentsHandler) getByReference(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		writeJSONError(w, http.StatusBadRequest, "missing reference")
		return
	}
	appt, err := h.reader.GetByReference(r.Context(), reference)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *AppointmentsHandler) transition(apply func(ctx context.Context, id int64) (*scheduling.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.apptID(w, r)
		if !ok {
			return
		}
		appt, err := apply(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

type cancelRequest struct {
	Reason  string `json:"reason"`
	Details string `json:"details"`
}

func (h *AppointmentsHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.apptID(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	appt, err := h.coord.Cancel(r.Context(), id, req.Reason, req.Details)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type rescheduleRequest struct {
	NewStart time.Time `json:"new_start"`
}

func (h *AppointmentsHandler) reschedule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.apptID(w, r)
	if !ok {
		return
	}
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	successor, err := h.coord.Reschedule(r.Context(), id, req.NewStart)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successor)
}

func (h *AppointmentsHandler) apptID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid appointment id")
		return 0, false
	}
	return id, true
}

// writeError maps domain errors onto HTTP statuses. Internal detail stays in
// the logs; the client gets a stable message.
func (h *AppointmentsHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *scheduling.ValidationError
	var pErr *scheduling.PriceOutOfRangeError
	var illegal *scheduling.IllegalTransitionError

	switch {
	case errors.As(err, &vErr):
		writeJSONError(w, http.StatusBadRequest, vErr.Error())
	case errors.As(err, &pErr):
		writeJSONError(w, http.StatusBadRequest, pErr.Error())
	case errors.Is(err, scheduling.ErrSlotInPast):
		writeJSONError(w, http.StatusBadRequest, "appointments cannot start in the past")
	case errors.Is(err, scheduling.ErrSlotConflict):
		writeJSONError(w, http.StatusConflict, "this time is no longer available")
	case errors.As(err, &illegal):
		writeJSONError(w, http.StatusConflict, "this action is not available for this appointment")
	case errors.Is(err, scheduling.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, scheduling.ErrServiceInactive):
		writeJSONError(w, http.StatusUnprocessableEntity, "this service is not currently bookable")
	default:
		h.logger.Error("appointments handler: internal error", "error", err, "path", r.URL.Path)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
