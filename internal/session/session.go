// Package session defines the per-visitor conversation document and the
// repository contract it is persisted through.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/smritistudio/chat-engine/internal/language"
)

// MaxMessages caps the message list per session. The engine never evicts;
// exceeding the cap is a caller-side error.
const MaxMessages = 50

// maxUnrecognizedQueries caps the raw-snippet sample kept on the session.
const maxUnrecognizedQueries = 10

// ErrSessionFull indicates the message cap was reached. The caller must trim
// or summarize upstream; the engine does not pick a truncation strategy.
var ErrSessionFull = errors.New("session: message limit reached")

// Role identifies who authored a message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// ResponseType records how a bot reply was produced.
type ResponseType string

const (
	ResponseInstant ResponseType = "instant"
	ResponsePattern ResponseType = "pattern"
	ResponseAI      ResponseType = "ai"
)

// Message is one turn in the transcript. DisplayText is the redacted view
// shown to admins; Text keeps the original for audit.
type Message struct {
	ID            string       `json:"id" dynamodbav:"id"`
	Role          Role         `json:"role" dynamodbav:"role"`
	Text          string       `json:"text" dynamodbav:"text"`
	DisplayText   string       `json:"displayText,omitempty" dynamodbav:"displayText,omitempty"`
	Intent        string       `json:"intent,omitempty" dynamodbav:"intent,omitempty"`
	Confidence    float64      `json:"confidence" dynamodbav:"confidence"`
	ResponseType  ResponseType `json:"responseType,omitempty" dynamodbav:"responseType,omitempty"`
	AbuseDetected bool         `json:"abuseDetected" dynamodbav:"abuseDetected"`
	AbuseType     string       `json:"abuseType,omitempty" dynamodbav:"abuseType,omitempty"`
	Timestamp     time.Time    `json:"timestamp" dynamodbav:"timestamp"`
}

// Display returns the redacted text when present, the raw text otherwise.
func (m Message) Display() string {
	if m.DisplayText != "" {
		return m.DisplayText
	}
	return m.Text
}

// Visitor is what we know about the person behind the widget. Language is the
// last-detected language and may change per message.
type Visitor struct {
	Fingerprint string            `json:"fingerprint" dynamodbav:"fingerprint"`
	Name        string            `json:"name,omitempty" dynamodbav:"name,omitempty"`
	Phone       string            `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	Email       string            `json:"email,omitempty" dynamodbav:"email,omitempty"`
	Location    string            `json:"location,omitempty" dynamodbav:"location,omitempty"`
	Language    language.Language `json:"language" dynamodbav:"language"`
	IPAddress   string            `json:"ipAddress,omitempty" dynamodbav:"ipAddress,omitempty"`
	UserAgent   string            `json:"userAgent,omitempty" dynamodbav:"userAgent,omitempty"`
	Device      string            `json:"device,omitempty" dynamodbav:"device,omitempty"`
	Referrer    string            `json:"referrer,omitempty" dynamodbav:"referrer,omitempty"`
}

// StatusChange is one booking lifecycle transition.
type StatusChange struct {
	Status    BookingStatus `json:"status" dynamodbav:"status"`
	ChangedAt time.Time     `json:"changedAt" dynamodbav:"changedAt"`
	ChangedBy string        `json:"changedBy" dynamodbav:"changedBy"`
}

// BookingStatus is the booking lifecycle position.
type BookingStatus string

const (
	BookingNone      BookingStatus = "none"
	BookingInquiry   BookingStatus = "inquiry"
	BookingPending   BookingStatus = "pending"
	BookingContacted BookingStatus = "contacted"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// ValidBookingStatus reports enum membership. Transition legality beyond
// membership is deliberately not enforced; status changes come from admin
// actions and the admin is trusted to know the lifecycle.
func ValidBookingStatus(s BookingStatus) bool {
	switch s {
	case BookingNone, BookingInquiry, BookingPending, BookingContacted,
		BookingConfirmed, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// Booking is the booking sub-record of a session.
type Booking struct {
	HasBooking      bool           `json:"hasBooking" dynamodbav:"hasBooking"`
	Package         string         `json:"package,omitempty" dynamodbav:"package,omitempty"`
	PackageID       string         `json:"packageId,omitempty" dynamodbav:"packageId,omitempty"`
	EventDate       *time.Time     `json:"eventDate,omitempty" dynamodbav:"eventDate,omitempty"`
	EventLocation   string         `json:"eventLocation,omitempty" dynamodbav:"eventLocation,omitempty"`
	EstimatedValue  int            `json:"estimatedValue,omitempty" dynamodbav:"estimatedValue,omitempty"`
	SpecialRequests string         `json:"specialRequests,omitempty" dynamodbav:"specialRequests,omitempty"`
	Status          BookingStatus  `json:"status" dynamodbav:"status"`
	AdminNotes      string         `json:"adminNotes,omitempty" dynamodbav:"adminNotes,omitempty"`
	StatusHistory   []StatusChange `json:"statusHistory,omitempty" dynamodbav:"statusHistory,omitempty"`
}

// Abuse aggregates abuse-screening outcomes for the session.
type Abuse struct {
	HasAbuse          bool     `json:"hasAbuse" dynamodbav:"hasAbuse"`
	Count             int      `json:"count" dynamodbav:"count"`
	Types             []string `json:"types,omitempty" dynamodbav:"types,omitempty"`
	FlaggedMessageIDs []string `json:"flaggedMessageIds,omitempty" dynamodbav:"flaggedMessageIds,omitempty"`
	ReviewedByAdmin   bool     `json:"reviewedByAdmin" dynamodbav:"reviewedByAdmin"`
	AdminAction       string   `json:"adminAction,omitempty" dynamodbav:"adminAction,omitempty"`
}

// Meta carries derived counters and timestamps.
type Meta struct {
	TotalMessages   int       `json:"totalMessages" dynamodbav:"totalMessages"`
	UserMessages    int       `json:"userMessages" dynamodbav:"userMessages"`
	BotMessages     int       `json:"botMessages" dynamodbav:"botMessages"`
	AICallsUsed     int       `json:"aiCallsUsed" dynamodbav:"aiCallsUsed"`
	AvgResponseTime float64   `json:"avgResponseTime" dynamodbav:"avgResponseTime"` // milliseconds, running mean over bot messages
	LastActiveAt    time.Time `json:"lastActiveAt" dynamodbav:"lastActiveAt"`
	Successful      bool      `json:"successful" dynamodbav:"successful"`
}

// Learning tracks how the learning pipeline interacted with this session.
type Learning struct {
	PatternsUsed        []string `json:"patternsUsed,omitempty" dynamodbav:"patternsUsed,omitempty"`
	UnrecognizedQueries []string `json:"unrecognizedQueries,omitempty" dynamodbav:"unrecognizedQueries,omitempty"`
	AIResponses         int      `json:"aiResponses" dynamodbav:"aiResponses"`
}

// Session is the persistent record for one chat widget instance.
type Session struct {
	SessionID string    `json:"sessionId" dynamodbav:"sessionId"`
	Visitor   Visitor   `json:"visitor" dynamodbav:"visitor"`
	Messages  []Message `json:"messages" dynamodbav:"messages"`
	Booking   Booking   `json:"booking" dynamodbav:"booking"`
	Abuse     Abuse     `json:"abuse" dynamodbav:"abuse"`
	Meta      Meta      `json:"meta" dynamodbav:"meta"`
	Learning  Learning  `json:"learning" dynamodbav:"learning"`
	Version   int64     `json:"version" dynamodbav:"version"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// New creates a session for a first message.
func New(visitor Visitor, now time.Time) *Session {
	return &Session{
		SessionID: uuid.NewString(),
		Visitor:   visitor,
		Booking:   Booking{Status: BookingNone},
		CreatedAt: now,
		UpdatedAt: now,
		Meta:      Meta{LastActiveAt: now},
	}
}

// AppendMessage adds a message and updates the per-role counters. Returns
// ErrSessionFull at the cap without mutating.
func (s *Session) AppendMessage(msg Message) error {
	if len(s.Messages) >= MaxMessages {
		return ErrSessionFull
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	s.Messages = append(s.Messages, msg)
	s.Meta.TotalMessages++
	switch msg.Role {
	case RoleUser:
		s.Meta.UserMessages++
	case RoleBot:
		s.Meta.BotMessages++
	}
	s.Meta.LastActiveAt = msg.Timestamp
	s.UpdatedAt = msg.Timestamp
	return nil
}

// RecordResponseTime folds one bot response duration into the running mean.
func (s *Session) RecordResponseTime(elapsed time.Duration) {
	ms := float64(elapsed.Milliseconds())
	n := float64(s.Meta.BotMessages)
	if n <= 1 {
		s.Meta.AvgResponseTime = ms
		return
	}
	s.Meta.AvgResponseTime += (ms - s.Meta.AvgResponseTime) / n
}

// FlagAbuse records an abusive message against the session counters, keeping
// count and flagged-ID list in lockstep.
func (s *Session) FlagAbuse(messageID, abuseType string) {
	s.Abuse.HasAbuse = true
	s.Abuse.Count++
	s.Abuse.FlaggedMessageIDs = append(s.Abuse.FlaggedMessageIDs, messageID)
	for _, t := range s.Abuse.Types {
		if t == abuseType {
			return
		}
	}
	if abuseType != "" {
		s.Abuse.Types = append(s.Abuse.Types, abuseType)
	}
}

// RecordPatternUsed credits a matched keyword to this session once.
func (s *Session) RecordPatternUsed(keyword string) {
	for _, k := range s.Learning.PatternsUsed {
		if k == keyword {
			return
		}
	}
	s.Learning.PatternsUsed = append(s.Learning.PatternsUsed, keyword)
}

// RecordUnrecognizedQuery keeps a capped sample of messages the matcher
// could not classify.
func (s *Session) RecordUnrecognizedQuery(text string) {
	if len(s.Learning.UnrecognizedQueries) >= maxUnrecognizedQueries {
		return
	}
	s.Learning.UnrecognizedQueries = append(s.Learning.UnrecognizedQueries, text)
}

// RecentTurns returns up to n most recent messages, oldest first.
func (s *Session) RecentTurns(n int) []Message {
	if n <= 0 || len(s.Messages) == 0 {
		return nil
	}
	if len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}
