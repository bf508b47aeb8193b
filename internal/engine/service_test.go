package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smritistudio/chat-engine/internal/abuse"
	"github.com/smritistudio/chat-engine/internal/booking"
	"github.com/smritistudio/chat-engine/internal/language"
	"github.com/smritistudio/chat-engine/internal/patterns"
	"github.com/smritistudio/chat-engine/internal/responder"
	"github.com/smritistudio/chat-engine/internal/session"
	"github.com/smritistudio/chat-engine/internal/store"
	"github.com/smritistudio/chat-engine/pkg/logging"
)

// memoryConfig is an in-memory configSource with optional conflict injection
// on pattern writes.
type memoryConfig struct {
	mu        sync.Mutex
	patterns  *patterns.Table
	responses *responder.Table
	facts     responder.Facts
	packages  []responder.Package
	conflicts int
}

func newMemoryConfig() *memoryConfig {
	return &memoryConfig{
		patterns:  patterns.DefaultTable(),
		responses: responder.DefaultTable(),
		facts:     responder.Facts{StudioName: "Smriti Studio", Phone: "+91 98765 43210", Email: "hello@smritistudio.in"},
		packages: []responder.Package{
			{ID: "classic", Name: "Classic Wedding", Price: 75000, DisplayOrder: 1, Active: true},
			{ID: "premium", Name: "Premium Wedding", Price: 125000, DisplayOrder: 2, Active: true, Popular: true},
		},
	}
}

func (c *memoryConfig) GetPatterns(_ context.Context) (*patterns.Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *c.patterns
	return &copied, nil
}

func (c *memoryConfig) PutPatterns(_ context.Context, table *patterns.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conflicts > 0 {
		c.conflicts--
		return store.ErrConfigConflict
	}
	if table.Version != c.patterns.Version {
		return store.ErrConfigConflict
	}
	table.Version++
	copied := *table
	c.patterns = &copied
	return nil
}

func (c *memoryConfig) GetResponses(_ context.Context) (*responder.Table, responder.Facts, error) {
	return c.responses, c.facts, nil
}

func (c *memoryConfig) GetPackages(_ context.Context) ([]responder.Package, error) {
	return c.packages, nil
}

// stubClassifier returns a fixed verdict.
type stubClassifier struct {
	result abuse.Result
	err    error
}

func (s *stubClassifier) Classify(_ context.Context, _ string) (abuse.Result, error) {
	return s.result, s.err
}

// stubAI records calls and returns canned output.
type stubAI struct {
	mu             sync.Mutex
	completeText   string
	completeErr    error
	completeCalls  int
	lastTurns      []session.Message
	suggestedIntent string
}

func (s *stubAI) Complete(_ context.Context, _ string, turns []session.Message, _ language.Language) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeCalls++
	s.lastTurns = turns
	if s.completeErr != nil {
		return "", s.completeErr
	}
	return s.completeText, nil
}

func (s *stubAI) SuggestIntent(_ context.Context, _ string) string {
	if s.suggestedIntent == "" {
		return patterns.IntentFallback
	}
	return s.suggestedIntent
}

func (s *stubAI) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeCalls
}

// conflictingRepo fails the first n Puts with ErrConflict.
type conflictingRepo struct {
	*session.InMemoryRepository
	mu        sync.Mutex
	conflicts int
}

func (r *conflictingRepo) Put(ctx context.Context, sess *session.Session) error {
	r.mu.Lock()
	if r.conflicts > 0 {
		r.conflicts--
		r.mu.Unlock()
		return session.ErrConflict
	}
	r.mu.Unlock()
	return r.InMemoryRepository.Put(ctx, sess)
}

type stubArchiver struct {
	mu       sync.Mutex
	sessions []string
	err      error
}

func (a *stubArchiver) ArchiveSession(_ context.Context, sess *session.Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions = append(a.sessions, sess.SessionID)
	return a.err
}

func newTestService(t *testing.T, repo session.Repository, classifier abuse.Classifier, ai aiCompleter) (*Service, *memoryConfig, *MemoryQueue) {
	t.Helper()
	cfg := newMemoryConfig()
	queue := NewMemoryQueue(16)
	svc := NewService(repo, cfg, classifier, ai, queue, logging.Default())
	return svc, cfg, queue
}

func TestProcessMessagePatternPath(t *testing.T) {
	repo := session.NewInMemoryRepository()
	ai := &stubAI{completeText: "should not be used"}
	svc, _, _ := newTestService(t, repo, &stubClassifier{}, ai)

	result, err := svc.ProcessMessage(context.Background(), ProcessRequest{
		Message:     "what is the price for wedding package",
		Fingerprint: "fp-1",
	})
	require.NoError(t, err)

	assert.Equal(t, session.ResponsePattern, result.ResponseType)
	assert.Equal(t, patterns.IntentPricing, result.Response.Intent)
	assert.Equal(t, "en", result.Language)
	assert.Len(t, result.Response.Packages, 2)
	assert.Equal(t, []string{"Book Now", "More Details", "Contact"}, result.Response.QuickReplies)
	assert.Zero(t, ai.calls())

	sess, err := repo.Get(context.Background(), result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, sess.Meta.TotalMessages)
	assert.Equal(t, 1, sess.Meta.UserMessages)
	assert.Equal(t, 1, sess.Meta.BotMessages)
	assert.NotEmpty(t, sess.Learning.PatternsUsed)
}

func TestAIContextPrefersCachedHistory(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := session.NewHistoryCache(client, time.Hour, nil)

	repo := session.NewInMemoryRepository()
	sess := session.New(session.Visitor{}, time.Now().UTC())
	require.NoError(t, sess.AppendMessage(session.Message{Role: session.RoleUser, Text: "document copy"}))
	require.NoError(t, repo.Put(context.Background(), sess))

	require.NoError(t, cache.Save(context.Background(), sess.SessionID, []session.Turn{
		{Role: session.RoleUser, Text: "cached copy"},
	}))

	ai := &stubAI{completeText: "sure, we travel for destination weddings"}
	svc := NewService(repo, newMemoryConfig(), &stubClassifier{}, ai, NewMemoryQueue(16), logging.Default(),
		WithHistoryCache(cache))

	_, err := svc.ProcessMessage(context.Background(), ProcessRequest{
		SessionID: sess.SessionID,
		Message:   "zzz unmatchable gibberish qqq",
	})
	require.NoError(t, err)
	require.Len(t, ai.lastTurns, 1)
	assert.Equal(t, "cached copy", ai.lastTurns[0].Text)
}

func TestAIContextFallsBackToDocument(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := session.NewHistoryCache(client, time.Hour, nil)

	repo := session.NewInMemoryRepository()
	sess := session.New(session.Visitor{}, time.Now().UTC())
	require.NoError(t, sess.AppendMessage(session.Message{Role: session.RoleUser, Text: "document copy"}))
	require.NoError(t, repo.Put(context.Background(), sess))

	ai := &stubAI{completeText: "happy to help"}
	svc := NewService(repo, newMemoryConfig(), &stubClassifier{}, ai, NewMemoryQueue(16), logging.Default(),
		WithHistoryCache(cache))

	_, err := svc.ProcessMessage(context.Background(), ProcessRequest{
		SessionID: sess.SessionID,
		Message:   "zzz unmatchable gibberish qqq",
	})
	require.NoError(t, err)
	require.Len(t, ai.lastTurns, 1)
	assert.Equal(t, "document copy", ai.lastTurns[0].Text)
}

func TestProcessMessageFullSessionIsValidationError(t *testing.T) {
	repo := session.NewInMemoryRepository()
	sess := session.New(session.Visitor{}, time.Now().UTC())
	for i := 0; i < session.MaxMessages; i++ {
		require.NoError(t, sess.AppendMessage(session.Message{Role: session.RoleUser, Text: "hi"}))
	}
	require.NoError(t, repo.Put(context.Background(), sess))

	svc, _, _ := newTestService(t, repo, &stubClassifier{}, &stubAI{completeText: "unused"})

	_, err := svc.ProcessMessage(context.Background(), ProcessRequest{
		SessionID: sess.SessionID,
		Message:   "what is the price for wedding package",
	})
	ve, ok := booking.IsValidationError(err)
	require.True(t, ok, "expected a validation error, got %v", err)
	assert.Equal(t, "sessionId", ve.Field)
}

func TestProcessMessageArchivesSession(t *testing.T) {
	repo := session.NewInMemoryRepository()
	cfg := newMemoryConfig()
	archive := &stubArchiver{}
	svc := NewService(repo, cfg, &stubClassifier{}, &stubAI{}, NewMemoryQueue(16), logging.Default(),
		WithArchiver(archive))

	result, err := svc.ProcessMessage(context.Background(), ProcessRequest{Message: "hello"})
	require.NoError(t, err)
	require.Len(t, archive.sessions, 1)
	assert.Equal(t, result.SessionID, archive.sessions[0])
}

func TestProcessMessageArchiveFailureIsSwallowed(t *testing.T) {
	repo := session.NewInMemoryRepository()
	cfg := newMemoryConfig()
	archive := &stubArchiver{err: errors.New("postgres down")}
	svc := NewService(repo, cfg, &stubClassifier{}, &stubAI{}, NewMemoryQueue(16), logging.Default(),
		WithArchiver(archive))

	_, err := svc.ProcessMessage(context.Background(), ProcessRequest{Message: "hello"})
	require.NoError(t, err)
}

func TestProcessMessageAIPath(t *testing.T) {
	repo := session.NewInMemoryRepository()
	ai := &stubAI{completeText: "We do offer drone coverage for outdoor events."}
	svc, _, queue := newTestService(t, repo, &stubClassifier{}, ai)

	result, err := svc.ProcessMessage(context.Background(), ProcessRequest{
		Message: "do you bring a drone to outdoor ceremonies",
	})
	require.NoError(t, err)

	assert.Equal(t, session.ResponseAI, result.ResponseType)
	assert.Equal(t, "We do offer drone coverage for outdoor events.", result.Response.Text)
	assert.Equal(t, 1, ai.calls())

	sess, err := repo.Get(context.Background(), result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Meta.AICallsUsed)
	assert.Equal(t, 1, sess.Learning.AIResponses)
	assert.NotEmpty(t, sess.Learning.UnrecognizedQueries)

	// The unrecognized message went to the learning side channel.
	msgs, err := queue.Receive(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	payload, err := decodeIntake(msgs[0].Body)
	require.NoError(t, err)
	assert.Equal(t, "do you bring a drone to outdoor ceremonies", payload.Message)
}

func TestProcessMessageAIFailureFallsBackToStatic(t *testing.T) {
	repo := session.NewInMemoryRepository()
	ai := &stubAI{completeErr: errors.New("provider down")}
	svc, _, _ := newTestService(t, repo, &stubClassifier{}, ai)

	result, err := svc.ProcessMessage(context.Background(), ProcessRequest{
		Message: "zzz unmatchable gibberish qqq",
	})
	require.NoError(t, err, "the chat must never visibly fail")

	assert.Equal(t, session.ResponsePattern, result.ResponseType)
	assert.Equal(t, patterns.IntentFallback, result.Response.Intent)
	assert.NotEmpty(t, result.Response.Text)
}

func TestProcessMessageBlockShortCircuits(t *testing.T) {
	repo := session.NewInMemoryRepository()
	ai := &stubAI{completeText: "never"}
	classifier := &stubClassifier{result: abuse.Result{IsAbusive: true, Type: abuse.TypeThreat, Action: abuse.ActionBlock}}
	svc, _, _ := newTestService(t, repo, classifier, ai)

	result, err := svc.ProcessMessage(context.Background(), ProcessRequest{
		Message: "something threatening",
	})
	require.NoError(t, err)

	assert.Equal(t, session.ResponseInstant, result.ResponseType)
	assert.Equal(t, responder.AbuseWarningIntent, result.Response.Intent)
	assert.Zero(t, ai.calls(), "block must not reach the model")

	sess, err := repo.Get(context.Background(), result.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.Messages, 2)
	userMsg := sess.Messages[0]
	assert.True(t, userMsg.AbuseDetected)
	assert.Equal(t, abuse.BlockedPlaceholder, userMsg.Display())
	assert.True(t, sess.Abuse.HasAbuse)
	assert.Equal(t, 1, sess.Abuse.Count)
}

func TestProcessMessageMaskRedactsDisplayText(t *testing.T) {
	repo := session.NewInMemoryRepository()
	classifier := &stubClassifier{result: abuse.Result{IsAbusive: true, Type: abuse.TypeHarassment, Action: abuse.ActionMask}}
	svc, _, _ := newTestService(t, repo, classifier, &stubAI{completeText: "ok"})

	result, err := svc.ProcessMessage(context.Background(), ProcessRequest{
		Message: "hello you silly bot",
	})
	require.NoError(t, err)

	sess, err := repo.Get(context.Background(), result.SessionID)
	require.NoError(t, err)
	userMsg := sess.Messages[0]
	assert.Equal(t, "hello you silly bot", userMsg.Text)
	assert.Equal(t, "**** **** **** ****", userMsg.Display())
}

func TestProcessMessageClassifierErrorFailsOpen(t *testing.T) {
	repo := session.NewInMemoryRepository()
	classifier := &stubClassifier{err: errors.New("classifier down")}
	svc, _, _ := newTestService(t, repo, classifier, &stubAI{completeText: "ok"})

	result, err := svc.ProcessMessage(context.Background(), ProcessRequest{
		Message: "hello there",
	})
	require.NoError(t, err)
	assert.Equal(t, patterns.IntentGreeting, result.Response.Intent)
}

func TestProcessMessageRetriesOnConflict(t *testing.T) {
	repo := &conflictingRepo{InMemoryRepository: session.NewInMemoryRepository(), conflicts: 2}
	svc, _, _ := newTestService(t, repo, &stubClassifier{}, &stubAI{completeText: "ok"})

	result, err := svc.ProcessMessage(context.Background(), ProcessRequest{
		Message: "hello",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)
}

func TestProcessMessageDetectsHindi(t *testing.T) {
	repo := session.NewInMemoryRepository()
	svc, _, _ := newTestService(t, repo, &stubClassifier{}, &stubAI{completeText: "ok"})

	result, err := svc.ProcessMessage(context.Background(), ProcessRequest{
		Message: "नमस्ते, शादी के पैकेज बताइए",
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Language)
}

func TestProcessMessageContinuesExistingSession(t *testing.T) {
	repo := session.NewInMemoryRepository()
	svc, _, _ := newTestService(t, repo, &stubClassifier{}, &stubAI{completeText: "ok"})

	first, err := svc.ProcessMessage(context.Background(), ProcessRequest{Message: "hello"})
	require.NoError(t, err)

	second, err := svc.ProcessMessage(context.Background(), ProcessRequest{
		SessionID: first.SessionID,
		Message:   "thanks",
	})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	sess, err := repo.Get(context.Background(), first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 4, sess.Meta.TotalMessages)
}

func TestSubmitBookingValidationErrorSurfaced(t *testing.T) {
	repo := session.NewInMemoryRepository()
	svc, _, _ := newTestService(t, repo, &stubClassifier{}, &stubAI{completeText: "ok"})

	started, err := svc.ProcessMessage(context.Background(), ProcessRequest{Message: "hello"})
	require.NoError(t, err)

	result, err := svc.SubmitBooking(context.Background(), started.SessionID, booking.CaptureRequest{
		Name:  "Asha",
		Phone: "98765",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)

	sess, err := repo.Get(context.Background(), started.SessionID)
	require.NoError(t, err)
	assert.False(t, sess.Booking.HasBooking)
}

func TestSubmitBookingSuccess(t *testing.T) {
	repo := session.NewInMemoryRepository()
	svc, _, _ := newTestService(t, repo, &stubClassifier{}, &stubAI{completeText: "ok"})

	started, err := svc.ProcessMessage(context.Background(), ProcessRequest{Message: "hello"})
	require.NoError(t, err)

	eventDate := time.Now().UTC().AddDate(0, 0, 10)
	result, err := svc.SubmitBooking(context.Background(), started.SessionID, booking.CaptureRequest{
		Name:      "Asha Patel",
		Phone:     "9876543210",
		Email:     "asha@example.com",
		Location:  "Ahmedabad",
		Package:   "Classic Wedding",
		EventDate: &eventDate,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 100, result.Score)

	sess, err := repo.Get(context.Background(), started.SessionID)
	require.NoError(t, err)
	assert.True(t, sess.Booking.HasBooking)
	assert.Equal(t, session.BookingPending, sess.Booking.Status)
}

func TestSubmitBookingUnknownSession(t *testing.T) {
	repo := session.NewInMemoryRepository()
	svc, _, _ := newTestService(t, repo, &stubClassifier{}, &stubAI{completeText: "ok"})

	_, err := svc.SubmitBooking(context.Background(), "missing", booking.CaptureRequest{Phone: "9876543210"})
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestGetConversationRedactsTranscript(t *testing.T) {
	repo := session.NewInMemoryRepository()
	classifier := &stubClassifier{result: abuse.Result{IsAbusive: true, Type: abuse.TypeThreat, Action: abuse.ActionBlock}}
	svc, _, _ := newTestService(t, repo, classifier, &stubAI{completeText: "ok"})

	result, err := svc.ProcessMessage(context.Background(), ProcessRequest{Message: "raw threatening text"})
	require.NoError(t, err)

	summary, err := svc.GetConversation(context.Background(), result.SessionID)
	require.NoError(t, err)
	require.Len(t, summary.Messages, 2)
	assert.Equal(t, "[Blocked]", summary.Messages[0].Text)
	for _, entry := range summary.Messages {
		assert.NotContains(t, entry.Text, "raw threatening text")
	}
}

func TestGetConversationNotFound(t *testing.T) {
	repo := session.NewInMemoryRepository()
	svc, _, _ := newTestService(t, repo, &stubClassifier{}, &stubAI{})

	_, err := svc.GetConversation(context.Background(), "missing")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRunLearningPromotion(t *testing.T) {
	repo := session.NewInMemoryRepository()
	svc, cfg, _ := newTestService(t, repo, &stubClassifier{}, &stubAI{})

	now := time.Now().UTC()
	cfg.patterns.PendingPatterns = []patterns.PendingPattern{
		{ID: "p1", Word: "mehndi", SuggestedIntent: patterns.IntentBooking, Occurrences: 20, Confidence: 0.9, Status: patterns.PendingStatusPending, FirstSeen: now, LastSeen: now},
		{ID: "p2", Word: "haldi", SuggestedIntent: patterns.IntentBooking, Occurrences: 5, Confidence: 0.5, Status: patterns.PendingStatusPending, FirstSeen: now, LastSeen: now},
	}

	promoted, err := svc.RunLearningPromotion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	table, err := cfg.GetPatterns(context.Background())
	require.NoError(t, err)
	require.Len(t, table.LearnedKeywords, 1)
	assert.Equal(t, "mehndi", table.LearnedKeywords[0].Word)
	assert.Equal(t, patterns.AddedByAuto, table.LearnedKeywords[0].AddedBy)
	assert.Len(t, table.PendingPatterns, 1)
}

func TestRunLearningPromotionRetriesOnConflict(t *testing.T) {
	repo := session.NewInMemoryRepository()
	svc, cfg, _ := newTestService(t, repo, &stubClassifier{}, &stubAI{})

	now := time.Now().UTC()
	cfg.patterns.PendingPatterns = []patterns.PendingPattern{
		{ID: "p1", Word: "sangeet", SuggestedIntent: patterns.IntentBooking, Occurrences: 25, Confidence: 0.95, Status: patterns.PendingStatusPending, FirstSeen: now, LastSeen: now},
	}
	cfg.conflicts = 1

	promoted, err := svc.RunLearningPromotion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)
}

func TestApproveAndRejectPattern(t *testing.T) {
	repo := session.NewInMemoryRepository()
	svc, cfg, _ := newTestService(t, repo, &stubClassifier{}, &stubAI{})

	now := time.Now().UTC()
	cfg.patterns.PendingPatterns = []patterns.PendingPattern{
		{ID: "p1", Word: "reels", SuggestedIntent: patterns.IntentPortfolio, Occurrences: 3, Confidence: 0.5, Status: patterns.PendingStatusPending, FirstSeen: now, LastSeen: now},
		{ID: "p2", Word: "junk", SuggestedIntent: patterns.IntentFallback, Occurrences: 1, Confidence: 0.5, Status: patterns.PendingStatusPending, FirstSeen: now, LastSeen: now},
	}

	require.NoError(t, svc.ApprovePattern(context.Background(), "p1", patterns.IntentPricing))
	require.NoError(t, svc.RejectPattern(context.Background(), "p2"))

	table, err := cfg.GetPatterns(context.Background())
	require.NoError(t, err)
	require.Len(t, table.LearnedKeywords, 1)
	assert.Equal(t, patterns.IntentPricing, table.LearnedKeywords[0].Intent, "admin intent overrides the suggestion")
	assert.Equal(t, patterns.AddedByAdmin, table.LearnedKeywords[0].AddedBy)
	assert.Empty(t, table.PendingPatterns)

	assert.Error(t, svc.ApprovePattern(context.Background(), "missing", patterns.IntentPricing))
	assert.Error(t, svc.RejectPattern(context.Background(), "missing"))
}

func TestUpdateBookingStatusPermissiveTransitions(t *testing.T) {
	repo := session.NewInMemoryRepository()
	svc, _, _ := newTestService(t, repo, &stubClassifier{}, &stubAI{completeText: "ok"})

	started, err := svc.ProcessMessage(context.Background(), ProcessRequest{Message: "hello"})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateBookingStatus(context.Background(), started.SessionID, session.BookingCompleted, "done", "admin"))
	// No transition-legality enforcement beyond enum membership.
	require.NoError(t, svc.UpdateBookingStatus(context.Background(), started.SessionID, session.BookingPending, "reopened", "admin"))

	assert.Error(t, svc.UpdateBookingStatus(context.Background(), started.SessionID, session.BookingStatus("bogus"), "", "admin"))
}
