// Package transcript archives finished conversations to PostgreSQL for
// long-term reporting. The hot path lives in DynamoDB; this store is an
// async, nil-safe sink the API can run without.
package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/smritistudio/chat-engine/internal/session"
)

// ArchiveStore persists session transcripts and booking rows.
type ArchiveStore struct {
	db *sql.DB
}

// NewArchiveStore creates an archive store. A nil db yields a nil store, and
// every method on a nil store is a no-op, so callers can wire it optionally.
func NewArchiveStore(db *sql.DB) *ArchiveStore {
	if db == nil {
		return nil
	}
	return &ArchiveStore{db: db}
}

// ArchiveSession upserts the session row and appends its messages. Message
// text is stored redacted: blocked and masked content never reaches the
// archive.
func (s *ArchiveStore) ArchiveSession(ctx context.Context, sess *session.Session) error {
	if s == nil || s.db == nil || sess == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (
			session_id, visitor_name, visitor_phone, visitor_language,
			total_messages, user_messages, bot_messages, ai_calls_used,
			has_booking, booking_status, booking_package, abuse_count,
			started_at, last_active_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (session_id) DO UPDATE SET
			visitor_name = EXCLUDED.visitor_name,
			visitor_phone = EXCLUDED.visitor_phone,
			visitor_language = EXCLUDED.visitor_language,
			total_messages = EXCLUDED.total_messages,
			user_messages = EXCLUDED.user_messages,
			bot_messages = EXCLUDED.bot_messages,
			ai_calls_used = EXCLUDED.ai_calls_used,
			has_booking = EXCLUDED.has_booking,
			booking_status = EXCLUDED.booking_status,
			booking_package = EXCLUDED.booking_package,
			abuse_count = EXCLUDED.abuse_count,
			last_active_at = EXCLUDED.last_active_at,
			updated_at = EXCLUDED.updated_at
	`,
		sess.SessionID, sess.Visitor.Name, sess.Visitor.Phone, string(sess.Visitor.Language),
		sess.Meta.TotalMessages, sess.Meta.UserMessages, sess.Meta.BotMessages, sess.Meta.AICallsUsed,
		sess.Booking.HasBooking, string(sess.Booking.Status), sess.Booking.Package, sess.Abuse.Count,
		sess.CreatedAt, sess.Meta.LastActiveAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("transcript: failed to upsert session %s: %w", sess.SessionID, err)
	}

	for _, msg := range sess.Messages {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO chat_messages (
				id, session_id, role, content, intent, response_type, abuse_detected, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING
		`,
			msg.ID, sess.SessionID, string(msg.Role), msg.Display(),
			msg.Intent, string(msg.ResponseType), msg.AbuseDetected, msg.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("transcript: failed to insert message %s: %w", msg.ID, err)
		}
	}
	return nil
}

// BookingRow is one captured booking in the archive, for admin follow-up.
type BookingRow struct {
	SessionID    string    `json:"sessionId"`
	VisitorName  string    `json:"visitorName"`
	VisitorPhone string    `json:"visitorPhone"`
	Package      string    `json:"package"`
	Status       string    `json:"status"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// RecentBookings lists the latest sessions with a captured booking.
func (s *ArchiveStore) RecentBookings(ctx context.Context, limit int) ([]BookingRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, visitor_name, visitor_phone, booking_package, booking_status, last_active_at
		FROM chat_sessions
		WHERE has_booking = true
		ORDER BY last_active_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("transcript: failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []BookingRow
	for rows.Next() {
		var b BookingRow
		if err := rows.Scan(&b.SessionID, &b.VisitorName, &b.VisitorPhone, &b.Package, &b.Status, &b.LastActiveAt); err != nil {
			return nil, fmt.Errorf("transcript: failed to scan booking row: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transcript: failed to iterate bookings: %w", err)
	}
	return bookings, nil
}
