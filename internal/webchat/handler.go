// Package webchat exposes the engine over HTTP: the public widget routes and
// the JWT-protected admin routes.
package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smritistudio/chat-engine/internal/booking"
	"github.com/smritistudio/chat-engine/internal/engine"
	"github.com/smritistudio/chat-engine/internal/session"
	"github.com/smritistudio/chat-engine/pkg/logging"
)

// chatService is the slice of the engine the handlers consume.
type chatService interface {
	ProcessMessage(ctx context.Context, req engine.ProcessRequest) (*engine.ProcessResult, error)
	SubmitBooking(ctx context.Context, sessionID string, req booking.CaptureRequest) (*engine.BookingResult, error)
	GetConversation(ctx context.Context, sessionID string) (*engine.ConversationSummary, error)
	RunLearningPromotion(ctx context.Context) (int, error)
	ApprovePattern(ctx context.Context, id, intent string) error
	RejectPattern(ctx context.Context, id string) error
	UpdateBookingStatus(ctx context.Context, sessionID string, status session.BookingStatus, notes, changedBy string) error
}

// ChatHandler serves the widget-facing routes.
type ChatHandler struct {
	svc    chatService
	logger *logging.Logger
}

// NewChatHandler creates the widget handler.
func NewChatHandler(svc chatService, logger *logging.Logger) *ChatHandler {
	if svc == nil {
		panic("webchat: chat service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{svc: svc, logger: logger}
}

// Routes mounts the widget endpoints.
func (h *ChatHandler) Routes(r chi.Router) {
	r.Post("/chat/message", h.PostMessage)
	r.Post("/chat/{sessionID}/booking", h.PostBooking)
	r.Get("/chat/{sessionID}", h.GetSession)
}

// PostMessage handles one widget message.
// POST /chat/message
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req engine.ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.IPAddress == "" {
		req.IPAddress = clientIP(r)
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	result, err := h.svc.ProcessMessage(r.Context(), req)
	if err != nil {
		if ve, ok := booking.IsValidationError(err); ok {
			http.Error(w, ve.Message, http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to process message", "error", err)
		http.Error(w, "something went wrong", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// PostBooking captures a booking for the session. Validation failures come
// back as a 200 with success=false so the widget can show the field message.
// POST /chat/{sessionID}/booking
func (h *ChatHandler) PostBooking(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req booking.CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.svc.SubmitBooking(r.Context(), sessionID, req)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		if ve, ok := booking.IsValidationError(err); ok {
			http.Error(w, ve.Message, http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to submit booking", "error", err)
		http.Error(w, "something went wrong", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetSession returns the redacted conversation summary.
// GET /chat/{sessionID}
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	summary, err := h.svc.GetConversation(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load conversation", "error", err)
		http.Error(w, "something went wrong", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

func clientIP(r *http.Request) string {
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
