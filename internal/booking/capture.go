// Package booking validates booking submissions, scores their completeness,
// and drives the booking status lifecycle on the session document.
package booking

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/smritistudio/chat-engine/internal/session"
)

// Score weights. The total is capped at 100; the score is advisory output
// for admin follow-up prioritization, never a gate.
const (
	weightName            = 20
	weightPhone           = 25
	weightEmail           = 15
	weightEventDate       = 20
	weightLocation        = 10
	weightPackage         = 10
	weightSpecialRequests = 5
	maxScore              = 100

	specialRequestsBonusLen = 20
	eventDateHorizonYears   = 2
)

var (
	// Indian mobile numbers: exactly 10 digits starting 6-9.
	phonePattern = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// ValidationError reports a bad field to the caller. Nothing is mutated when
// one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("booking: %s: %s", e.Field, e.Message)
}

// IsValidationError unwraps err into a *ValidationError if it is one.
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// CaptureRequest carries the fields collected for a booking submission.
type CaptureRequest struct {
	Name            string     `json:"name"`
	Phone           string     `json:"phone"`
	Email           string     `json:"email"`
	Location        string     `json:"location"`
	Package         string     `json:"package"`
	PackageID       string     `json:"packageId"`
	EventDate       *time.Time `json:"eventDate,omitempty"`
	EventLocation   string     `json:"eventLocation"`
	EstimatedValue  int        `json:"estimatedValue"`
	SpecialRequests string     `json:"specialRequests"`
}

// NormalizePhone strips spaces, dashes, and a leading +91/0 country prefix.
func NormalizePhone(phone string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if len(cleaned) == 12 && strings.HasPrefix(cleaned, "91") {
		cleaned = cleaned[2:]
	}
	if len(cleaned) == 11 && strings.HasPrefix(cleaned, "0") {
		cleaned = cleaned[1:]
	}
	return cleaned
}

// ValidPhone reports whether phone normalizes to a valid Indian mobile number.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(NormalizePhone(phone))
}

// ValidEmail reports whether email looks like a deliverable address.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// Capture validates the request, merges contact fields into the visitor
// profile, and replaces the session's booking sub-record wholesale with a
// pending booking. Returns the completeness score.
func Capture(sess *session.Session, req CaptureRequest, now time.Time) (int, error) {
	if !ValidPhone(req.Phone) {
		return 0, &ValidationError{
			Field:   "phone",
			Message: "please provide a valid 10-digit mobile number",
		}
	}
	if req.Email != "" && !ValidEmail(req.Email) {
		return 0, &ValidationError{
			Field:   "email",
			Message: "please provide a valid email address",
		}
	}

	if req.Name != "" {
		sess.Visitor.Name = req.Name
	}
	sess.Visitor.Phone = NormalizePhone(req.Phone)
	if req.Email != "" {
		sess.Visitor.Email = req.Email
	}
	if req.Location != "" {
		sess.Visitor.Location = req.Location
	}

	sess.Booking = session.Booking{
		HasBooking:      true,
		Package:         req.Package,
		PackageID:       req.PackageID,
		EventDate:       req.EventDate,
		EventLocation:   req.EventLocation,
		EstimatedValue:  req.EstimatedValue,
		SpecialRequests: req.SpecialRequests,
		Status:          session.BookingPending,
		StatusHistory: []session.StatusChange{
			{Status: session.BookingPending, ChangedAt: now, ChangedBy: "engine"},
		},
	}
	sess.Meta.Successful = true
	sess.UpdatedAt = now

	return CompletenessScore(req, now), nil
}

// CompletenessScore sums fixed weights over the provided fields, capped at
// 100. The event date scores only when it falls in the future within the
// booking horizon.
func CompletenessScore(req CaptureRequest, now time.Time) int {
	score := 0
	if strings.TrimSpace(req.Name) != "" {
		score += weightName
	}
	if ValidPhone(req.Phone) {
		score += weightPhone
	}
	if ValidEmail(req.Email) {
		score += weightEmail
	}
	if req.EventDate != nil {
		horizon := now.AddDate(eventDateHorizonYears, 0, 0)
		if req.EventDate.After(now) && req.EventDate.Before(horizon) {
			score += weightEventDate
		}
	}
	if strings.TrimSpace(req.EventLocation) != "" || strings.TrimSpace(req.Location) != "" {
		score += weightLocation
	}
	if strings.TrimSpace(req.Package) != "" || strings.TrimSpace(req.PackageID) != "" {
		score += weightPackage
	}
	if len(strings.TrimSpace(req.SpecialRequests)) > specialRequestsBonusLen {
		score += weightSpecialRequests
	}
	if score > maxScore {
		score = maxScore
	}
	return score
}

// UpdateStatus appends a status transition driven by an admin action. Only
// enum membership is checked; any known status may follow any other.
func UpdateStatus(sess *session.Session, status session.BookingStatus, notes, changedBy string, now time.Time) error {
	if !session.ValidBookingStatus(status) {
		return &ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("unknown booking status %q", status),
		}
	}

	sess.Booking.Status = status
	if notes != "" {
		sess.Booking.AdminNotes = notes
	}
	sess.Booking.StatusHistory = append(sess.Booking.StatusHistory, session.StatusChange{
		Status:    status,
		ChangedAt: now,
		ChangedBy: changedBy,
	})
	sess.UpdatedAt = now
	return nil
}
