package webchat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/smritistudio/chat-engine/internal/booking"
	"github.com/smritistudio/chat-engine/internal/http/middleware"
	"github.com/smritistudio/chat-engine/internal/session"
	"github.com/smritistudio/chat-engine/internal/transcript"
	"github.com/smritistudio/chat-engine/pkg/logging"
)

// AdminHandler serves pattern review and booking management. Admin
// operations surface errors directly; the admin needs to know an action did
// not take effect.
type AdminHandler struct {
	svc     chatService
	archive *transcript.ArchiveStore
	logger  *logging.Logger
}

// NewAdminHandler creates the admin handler. The archive store is optional;
// without it the bookings listing returns an empty set.
func NewAdminHandler(svc chatService, archive *transcript.ArchiveStore, logger *logging.Logger) *AdminHandler {
	if svc == nil {
		panic("webchat: chat service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{svc: svc, archive: archive, logger: logger}
}

// Routes mounts the admin endpoints.
func (h *AdminHandler) Routes(r chi.Router) {
	r.Post("/admin/patterns/promote", h.RunPromotion)
	r.Post("/admin/patterns/{id}/approve", h.ApprovePattern)
	r.Post("/admin/patterns/{id}/reject", h.RejectPattern)
	r.Get("/admin/bookings", h.ListBookings)
	r.Put("/admin/bookings/{sessionID}/status", h.UpdateBookingStatus)
}

// ListBookings returns recent captured bookings from the archive.
// GET /admin/bookings?limit=N
func (h *AdminHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	bookings, err := h.archive.RecentBookings(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list bookings", "error", err)
		http.Error(w, "something went wrong", http.StatusInternalServerError)
		return
	}
	if bookings == nil {
		bookings = []transcript.BookingRow{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"bookings": bookings})
}

// RunPromotion triggers the learning promotion pass.
// POST /admin/patterns/promote
func (h *AdminHandler) RunPromotion(w http.ResponseWriter, r *http.Request) {
	approved, err := h.svc.RunLearningPromotion(r.Context())
	if err != nil {
		h.logger.Error("promotion pass failed", "error", err)
		http.Error(w, "promotion pass failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"approvedCount": approved})
}

// ApprovePattern promotes a pending pattern with the admin-chosen intent.
// POST /admin/patterns/{id}/approve
func (h *AdminHandler) ApprovePattern(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Intent string `json:"intent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Intent == "" {
		http.Error(w, "intent is required", http.StatusBadRequest)
		return
	}

	if err := h.svc.ApprovePattern(r.Context(), id, body.Intent); err != nil {
		if _, ok := booking.IsValidationError(err); ok {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RejectPattern deletes a pending pattern.
// POST /admin/patterns/{id}/reject
func (h *AdminHandler) RejectPattern(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.svc.RejectPattern(r.Context(), id); err != nil {
		if _, ok := booking.IsValidationError(err); ok {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateBookingStatus applies a booking transition on behalf of the admin.
// PUT /admin/bookings/{sessionID}/status
func (h *AdminHandler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var body struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	changedBy := middleware.AdminSubjectFromContext(r.Context())
	err := h.svc.UpdateBookingStatus(r.Context(), sessionID, session.BookingStatus(body.Status), body.Notes, changedBy)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		if ve, ok := booking.IsValidationError(err); ok {
			http.Error(w, ve.Message, http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to update booking status", "error", err)
		http.Error(w, "something went wrong", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
