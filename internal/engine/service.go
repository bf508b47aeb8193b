// Package engine orchestrates a chat turn: language detection, abuse
// screening, pattern matching, the AI fallback and the learning intake, all
// over versioned session documents.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smritistudio/chat-engine/internal/abuse"
	"github.com/smritistudio/chat-engine/internal/booking"
	"github.com/smritistudio/chat-engine/internal/language"
	"github.com/smritistudio/chat-engine/internal/observability/metrics"
	"github.com/smritistudio/chat-engine/internal/patterns"
	"github.com/smritistudio/chat-engine/internal/responder"
	"github.com/smritistudio/chat-engine/internal/session"
	"github.com/smritistudio/chat-engine/internal/store"
	"github.com/smritistudio/chat-engine/pkg/logging"
)

// maxWriteRetries bounds the optimistic-concurrency retry loop on session
// and config writes.
const maxWriteRetries = 3

// DefaultConfidenceThreshold gates the AI fallback: pattern matches at or
// above it answer directly.
const DefaultConfidenceThreshold = 0.7

// configSource provides the shared configuration documents. The pattern
// table is read-write; templates and packages are read-only at runtime.
type configSource interface {
	GetPatterns(ctx context.Context) (*patterns.Table, error)
	PutPatterns(ctx context.Context, table *patterns.Table) error
	GetResponses(ctx context.Context) (*responder.Table, responder.Facts, error)
	GetPackages(ctx context.Context) ([]responder.Package, error)
}

// archiver receives finished session snapshots for long-term storage.
type archiver interface {
	ArchiveSession(ctx context.Context, sess *session.Session) error
}

// aiCompleter is the slice of the dispatcher the service depends on.
type aiCompleter interface {
	Complete(ctx context.Context, message string, turns []session.Message, lang language.Language) (string, error)
	SuggestIntent(ctx context.Context, message string) string
}

// ProcessRequest is one inbound widget message with its metadata.
type ProcessRequest struct {
	SessionID        string `json:"sessionId,omitempty"`
	Message          string `json:"message"`
	Fingerprint      string `json:"fingerprint,omitempty"`
	IPAddress        string `json:"ipAddress,omitempty"`
	UserAgent        string `json:"userAgent,omitempty"`
	Device           string `json:"device,omitempty"`
	Referrer         string `json:"referrer,omitempty"`
	DeclaredLanguage string `json:"language,omitempty"`
}

// ProcessResult is the reply handed back to the widget.
type ProcessResult struct {
	SessionID    string               `json:"sessionId"`
	Response     responder.Response   `json:"response"`
	Language     string               `json:"language"`
	ResponseType session.ResponseType `json:"responseType"`
}

// BookingResult reports a booking submission outcome.
type BookingResult struct {
	Success   bool   `json:"success"`
	BookingID string `json:"bookingId,omitempty"`
	Score     int    `json:"score,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ConversationSummary is the redacted session view for admin lookup.
type ConversationSummary struct {
	SessionID      string               `json:"sessionId"`
	VisitorName    string               `json:"visitorName,omitempty"`
	Language       language.Language    `json:"language"`
	Messages       []TranscriptEntry    `json:"messages"`
	BookingPackage string               `json:"bookingPackage,omitempty"`
	BookingStatus  session.BookingStatus `json:"bookingStatus"`
	TotalMessages  int                  `json:"totalMessages"`
}

// TranscriptEntry is one redacted transcript line.
type TranscriptEntry struct {
	Role         session.Role         `json:"role"`
	Text         string               `json:"text"`
	Intent       string               `json:"intent,omitempty"`
	ResponseType session.ResponseType `json:"responseType,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
}

// Service is the conversational engine.
type Service struct {
	sessions   session.Repository
	config     configSource
	classifier abuse.Classifier
	ai         aiCompleter
	intake     Queue
	history    *session.HistoryCache
	archive    archiver
	metrics    *metrics.ChatMetrics
	threshold  float64
	promotion  patterns.PromotionPolicy
	logger     *logging.Logger
	now        func() time.Time
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithHistoryCache attaches the Redis recent-history cache.
func WithHistoryCache(cache *session.HistoryCache) ServiceOption {
	return func(s *Service) { s.history = cache }
}

// WithArchiver attaches the long-term transcript sink. Archiving is
// best-effort and never blocks a reply.
func WithArchiver(a archiver) ServiceOption {
	return func(s *Service) { s.archive = a }
}

// WithMetrics attaches the counters sink.
func WithMetrics(m *metrics.ChatMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithConfidenceThreshold overrides the AI fallback gate.
func WithConfidenceThreshold(threshold float64) ServiceOption {
	return func(s *Service) { s.threshold = threshold }
}

// WithPromotionPolicy overrides the auto-promotion thresholds.
func WithPromotionPolicy(policy patterns.PromotionPolicy) ServiceOption {
	return func(s *Service) { s.promotion = policy }
}

// WithClock overrides time for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService wires the engine. Sessions, config, classifier, AI completer
// and the intake queue are required.
func NewService(sessions session.Repository, config configSource, classifier abuse.Classifier, ai aiCompleter, intake Queue, logger *logging.Logger, opts ...ServiceOption) *Service {
	if sessions == nil {
		panic("engine: session repository cannot be nil")
	}
	if config == nil {
		panic("engine: config source cannot be nil")
	}
	if classifier == nil {
		panic("engine: abuse classifier cannot be nil")
	}
	if ai == nil {
		panic("engine: ai completer cannot be nil")
	}
	if intake == nil {
		panic("engine: intake queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	s := &Service{
		sessions:   sessions,
		config:     config,
		classifier: classifier,
		ai:         ai,
		intake:     intake,
		threshold:  DefaultConfidenceThreshold,
		promotion:  patterns.DefaultPromotionPolicy(),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessMessage runs one chat turn end to end. The end user never sees an
// error from the reply pipeline itself; failures degrade to the static
// fallback response. Errors are returned only when the session cannot be
// loaded or persisted at all.
func (s *Service) ProcessMessage(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	if req.Message == "" {
		return nil, &booking.ValidationError{Field: "message", Message: "message cannot be empty"}
	}

	table, renderer, err := s.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	matcher := patterns.NewMatcher(table)

	declared := language.Language(req.DeclaredLanguage)
	detected := language.DetectWithFallback(req.Message, declared)
	s.metrics.ObserveLanguage(string(detected))

	// Classification happens once, outside the write-retry loop; it is a
	// remote call and its outcome does not depend on session state.
	verdict, err := s.classifier.Classify(ctx, req.Message)
	if err != nil {
		// Fail open: an unreachable classifier must not block real users.
		s.logger.Warn("abuse classification failed", "error", err)
		verdict = abuse.Result{Action: abuse.ActionNone}
	}
	s.metrics.ObserveAbuseAction(string(verdict.Action))

	started := s.now()

	var result *ProcessResult
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		sess, err := s.loadOrCreateSession(ctx, req, detected)
		if err != nil {
			return nil, err
		}

		result, err = s.runTurn(ctx, sess, req, detected, verdict, matcher, renderer, started)
		if err == nil {
			s.saveHistory(ctx, sess)
			s.archiveSession(ctx, sess)
			return result, nil
		}
		if !errors.Is(err, session.ErrConflict) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("engine: session write kept conflicting: %w", session.ErrConflict)
}

// runTurn mutates the loaded session and persists it once. A version
// conflict surfaces to the caller's retry loop.
func (s *Service) runTurn(ctx context.Context, sess *session.Session, req ProcessRequest, detected language.Language, verdict abuse.Result, matcher *patterns.Matcher, renderer *responder.Renderer, started time.Time) (*ProcessResult, error) {
	now := s.now()
	sess.Visitor.Language = detected
	sess.Meta.LastActiveAt = now

	userMsg := session.Message{
		ID:        uuid.NewString(),
		Role:      session.RoleUser,
		Text:      req.Message,
		Timestamp: now,
	}

	var (
		resp         responder.Response
		responseType session.ResponseType
		intakeNeeded bool
	)

	switch verdict.Action {
	case abuse.ActionBlock:
		// Blocked turns never reach the matcher or the model, and the
		// original text never appears in the redacted view.
		userMsg.AbuseDetected = true
		userMsg.AbuseType = verdict.Type
		userMsg.DisplayText = abuse.BlockedPlaceholder
		resp = responder.Response{
			Text:     renderer.RenderText(responder.AbuseWarningIntent, detected),
			Intent:   responder.AbuseWarningIntent,
			Language: string(detected),
		}
		responseType = session.ResponseInstant

	default:
		if verdict.Action == abuse.ActionMask {
			userMsg.AbuseDetected = true
			userMsg.AbuseType = verdict.Type
			userMsg.DisplayText = abuse.MaskWords(req.Message)
		} else if verdict.IsAbusive {
			userMsg.AbuseDetected = true
			userMsg.AbuseType = verdict.Type
		}

		match := matcher.Match(req.Message, detected, language.Language(req.DeclaredLanguage))
		userMsg.Intent = match.Intent
		userMsg.Confidence = match.Confidence

		if match.Confidence >= s.threshold {
			resp = renderer.Render(match.Intent, detected)
			responseType = session.ResponsePattern
			sess.RecordPatternUsed(match.MatchedKeyword)
		} else {
			text, aiErr := s.ai.Complete(ctx, req.Message, s.contextTurns(ctx, sess), detected)
			if aiErr != nil {
				// The chat must never visibly fail.
				s.logger.Warn("ai completion failed, using static fallback", "error", aiErr)
				resp = renderer.Render(patterns.IntentFallback, detected)
				responseType = session.ResponsePattern
			} else {
				resp = responder.Response{
					Text:     text,
					Intent:   patterns.IntentFallback,
					Language: string(detected),
				}
				responseType = session.ResponseAI
				sess.Meta.AICallsUsed++
				sess.Learning.AIResponses++
				s.metrics.ObserveAILatency(s.now().Sub(started).Seconds())
			}
			sess.RecordUnrecognizedQuery(req.Message)
			intakeNeeded = true
		}
	}

	if err := sess.AppendMessage(userMsg); err != nil {
		return nil, mapSessionFull(err)
	}
	if verdict.IsAbusive {
		sess.FlagAbuse(userMsg.ID, verdict.Type)
	}

	botMsg := session.Message{
		ID:           uuid.NewString(),
		Role:         session.RoleBot,
		Text:         resp.Text,
		Intent:       resp.Intent,
		ResponseType: responseType,
		Timestamp:    s.now(),
	}
	if err := sess.AppendMessage(botMsg); err != nil {
		return nil, mapSessionFull(err)
	}
	sess.RecordResponseTime(s.now().Sub(started))

	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}

	if intakeNeeded {
		s.enqueueIntake(ctx, sess.SessionID, req.Message)
	}

	s.metrics.ObserveMessage(string(session.RoleUser))
	s.metrics.ObserveMessage(string(session.RoleBot))
	s.metrics.ObserveResponse(string(responseType), resp.Intent)

	return &ProcessResult{
		SessionID:    sess.SessionID,
		Response:     resp,
		Language:     string(detected),
		ResponseType: responseType,
	}, nil
}

// SubmitBooking validates and captures a booking on the session.
func (s *Service) SubmitBooking(ctx context.Context, sessionID string, req booking.CaptureRequest) (*BookingResult, error) {
	if sessionID == "" {
		return nil, &booking.ValidationError{Field: "sessionId", Message: "sessionId is required"}
	}

	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		sess, err := s.sessions.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		score, err := booking.Capture(sess, req, s.now())
		if err != nil {
			if ve, ok := booking.IsValidationError(err); ok {
				s.metrics.ObserveBooking("rejected")
				return &BookingResult{Success: false, Error: ve.Message}, nil
			}
			return nil, err
		}

		if err := s.sessions.Put(ctx, sess); err != nil {
			if errors.Is(err, session.ErrConflict) {
				continue
			}
			return nil, err
		}

		s.metrics.ObserveBooking("captured")
		s.archiveSession(ctx, sess)
		return &BookingResult{Success: true, BookingID: sess.SessionID, Score: score}, nil
	}
	return nil, fmt.Errorf("engine: booking write kept conflicting: %w", session.ErrConflict)
}

// GetConversation returns the redacted session summary for admin review.
func (s *Service) GetConversation(ctx context.Context, sessionID string) (*ConversationSummary, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	entries := make([]TranscriptEntry, 0, len(sess.Messages))
	for _, msg := range sess.Messages {
		entries = append(entries, TranscriptEntry{
			Role:         msg.Role,
			Text:         msg.Display(),
			Intent:       msg.Intent,
			ResponseType: msg.ResponseType,
			Timestamp:    msg.Timestamp,
		})
	}

	return &ConversationSummary{
		SessionID:      sess.SessionID,
		VisitorName:    sess.Visitor.Name,
		Language:       sess.Visitor.Language,
		Messages:       entries,
		BookingPackage: sess.Booking.Package,
		BookingStatus:  sess.Booking.Status,
		TotalMessages:  sess.Meta.TotalMessages,
	}, nil
}

// RunLearningPromotion sweeps pending patterns into the live table. Invoked
// by the external scheduler.
func (s *Service) RunLearningPromotion(ctx context.Context) (int, error) {
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		table, err := s.config.GetPatterns(ctx)
		if err != nil {
			return 0, err
		}

		promoted := table.Promote(s.promotion, s.now())
		if promoted == 0 {
			return 0, nil
		}

		if err := s.config.PutPatterns(ctx, table); err != nil {
			if isConfigConflict(err) {
				continue
			}
			return 0, err
		}
		s.logger.Info("promoted learned patterns", "count", promoted)
		return promoted, nil
	}
	return 0, fmt.Errorf("engine: pattern table write kept conflicting")
}

// ApprovePattern promotes a pending pattern with the admin-chosen intent.
func (s *Service) ApprovePattern(ctx context.Context, id, intent string) error {
	if id == "" || intent == "" {
		return &booking.ValidationError{Field: "pattern", Message: "id and intent are required"}
	}
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		table, err := s.config.GetPatterns(ctx)
		if err != nil {
			return err
		}
		if !table.Approve(id, intent, s.now()) {
			return fmt.Errorf("engine: pending pattern %s not found", id)
		}
		if err := s.config.PutPatterns(ctx, table); err != nil {
			if isConfigConflict(err) {
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("engine: pattern table write kept conflicting")
}

// RejectPattern deletes a pending pattern outright.
func (s *Service) RejectPattern(ctx context.Context, id string) error {
	if id == "" {
		return &booking.ValidationError{Field: "pattern", Message: "id is required"}
	}
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		table, err := s.config.GetPatterns(ctx)
		if err != nil {
			return err
		}
		if !table.Reject(id) {
			return fmt.Errorf("engine: pending pattern %s not found", id)
		}
		if err := s.config.PutPatterns(ctx, table); err != nil {
			if isConfigConflict(err) {
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("engine: pattern table write kept conflicting")
}

// UpdateBookingStatus applies an admin-driven booking transition.
func (s *Service) UpdateBookingStatus(ctx context.Context, sessionID string, status session.BookingStatus, notes, changedBy string) error {
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		sess, err := s.sessions.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := booking.UpdateStatus(sess, status, notes, changedBy, s.now()); err != nil {
			return err
		}
		if err := s.sessions.Put(ctx, sess); err != nil {
			if errors.Is(err, session.ErrConflict) {
				continue
			}
			return err
		}
		s.archiveSession(ctx, sess)
		return nil
	}
	return fmt.Errorf("engine: booking status write kept conflicting: %w", session.ErrConflict)
}

func (s *Service) loadConfig(ctx context.Context) (*patterns.Table, *responder.Renderer, error) {
	table, err := s.config.GetPatterns(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: failed to load pattern table: %w", err)
	}
	respTable, facts, err := s.config.GetResponses(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: failed to load responses: %w", err)
	}
	pkgs, err := s.config.GetPackages(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: failed to load packages: %w", err)
	}
	return table, responder.NewRenderer(respTable, pkgs, facts), nil
}

func (s *Service) loadOrCreateSession(ctx context.Context, req ProcessRequest, detected language.Language) (*session.Session, error) {
	if req.SessionID != "" {
		sess, err := s.sessions.Get(ctx, req.SessionID)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return nil, err
		}
	}
	return session.New(session.Visitor{
		Fingerprint: req.Fingerprint,
		Language:    detected,
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
		Device:      req.Device,
		Referrer:    req.Referrer,
	}, s.now()), nil
}

// enqueueIntake hands the message to the learning side channel. Best-effort:
// a full or failing queue is logged and forgotten.
func (s *Service) enqueueIntake(ctx context.Context, sessionID, message string) {
	body, err := encodeIntake(intakePayload{SessionID: sessionID, Message: message})
	if err != nil {
		s.logger.Warn("failed to encode learning intake", "error", err)
		return
	}
	if err := s.intake.Send(ctx, body); err != nil {
		s.logger.Warn("failed to enqueue learning intake", "error", err)
	}
}

// contextTurns builds the AI context window, preferring the Redis recent-turn
// cache over the full session document. A cold or failing cache falls back to
// the document transcript.
func (s *Service) contextTurns(ctx context.Context, sess *session.Session) []session.Message {
	if s.history != nil {
		cached, err := s.history.Load(ctx, sess.SessionID)
		if err != nil {
			s.logger.Warn("failed to load cached history", "error", err)
		} else if len(cached) > 0 {
			turns := make([]session.Message, 0, len(cached))
			for _, t := range cached {
				turns = append(turns, session.Message{Role: t.Role, Text: t.Text})
			}
			return turns
		}
	}
	return sess.RecentTurns(contextWindowTurns)
}

// archiveSession snapshots the transcript into the long-term store.
// Best-effort.
func (s *Service) archiveSession(ctx context.Context, sess *session.Session) {
	if s.archive == nil {
		return
	}
	if err := s.archive.ArchiveSession(ctx, sess); err != nil {
		s.logger.Warn("failed to archive session", "error", err, "session_id", sess.SessionID)
	}
}

// saveHistory refreshes the Redis recent-turn cache. Best-effort.
func (s *Service) saveHistory(ctx context.Context, sess *session.Session) {
	if s.history == nil {
		return
	}
	recent := sess.RecentTurns(contextWindowTurns)
	turns := make([]session.Turn, 0, len(recent))
	for _, msg := range recent {
		turns = append(turns, session.Turn{Role: msg.Role, Text: msg.Display()})
	}
	if err := s.history.Save(ctx, sess.SessionID, turns); err != nil {
		s.logger.Warn("failed to cache recent history", "error", err)
	}
}

func isConfigConflict(err error) bool {
	return errors.Is(err, store.ErrConfigConflict)
}

// mapSessionFull turns the message-cap error into a caller-side validation
// failure: the visitor must start a new chat, nothing is wrong server-side.
func mapSessionFull(err error) error {
	if errors.Is(err, session.ErrSessionFull) {
		return &booking.ValidationError{
			Field:   "sessionId",
			Message: "this conversation is full, please start a new chat",
		}
	}
	return err
}
