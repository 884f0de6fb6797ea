package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type BookingStatus string

const (
	BookingRequested BookingStatus = "requested"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(s) {
	case BookingRequested, BookingConfirmed, BookingCompleted, BookingCancelled:
		return BookingStatus(s), true
	}
	return "", false
}

// Terminal reports whether no further transitions are allowed from s.
func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

type SlotStatus string

const (
	SlotOpen    SlotStatus = "open"
	SlotHeld    SlotStatus = "held"
	SlotBlocked SlotStatus = "blocked"
)

func ParseSlotStatus(s string) (SlotStatus, bool) {
	switch SlotStatus(s) {
	case SlotOpen, SlotHeld, SlotBlocked:
		return SlotStatus(s), true
	}
	return "", false
}

// Metadata is a free-form jsonb column.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src any) error {
	if src == nil {
		*m = Metadata{}
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("metadata: unsupported scan type %T", src)
	}

	return json.Unmarshal(raw, m)
}

// Merge shallow-merges overrides into m, returning the merged map.
// m itself is not mutated.
func (m Metadata) Merge(overrides Metadata) Metadata {
	merged := make(Metadata, len(m)+len(overrides))
	for k, v := range m {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// TutorProfile is the bookable scheduling identity of an instructor,
// created during onboarding and read-only here.
type TutorProfile struct {
	ID          string `db:"id"`
	UserID      string `db:"user_id"`
	DisplayName string `db:"display_name"`
	Currency    string `db:"currency"`
}

// Learner is a user record keyed by normalized email, shared with the
// broader user directory.
type Learner struct {
	ID        string `db:"id"`
	Email     string `db:"email"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	Role      string `db:"role"`
	// Random placeholder for identities provisioned through booking; these
	// accounts never authenticate with it.
	PasswordHash string `db:"password_hash"`
}

const LearnerRole = "learner"

type AvailabilitySlot struct {
	ID             string     `db:"id"`
	TutorID        string     `db:"tutor_id"`
	StartAt        time.Time  `db:"start_at"`
	EndAt          time.Time  `db:"end_at"`
	Status         SlotStatus `db:"status"`
	IsRecurring    bool       `db:"is_recurring"`
	RecurrenceRule string     `db:"recurrence_rule"`
	Metadata       Metadata   `db:"metadata"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

type Booking struct {
	ID               string        `db:"id"`
	PublicID         string        `db:"public_id"`
	TutorID          string        `db:"tutor_id"`
	LearnerID        string        `db:"learner_id"`
	ScheduledStart   time.Time     `db:"scheduled_start"`
	ScheduledEnd     time.Time     `db:"scheduled_end"`
	DurationMinutes  int           `db:"duration_minutes"`
	HourlyRateAmount int64         `db:"hourly_rate_amount"`
	Currency         string        `db:"currency"`
	Status           BookingStatus `db:"status"`
	RequestedAt      *time.Time    `db:"requested_at"`
	ConfirmedAt      *time.Time    `db:"confirmed_at"`
	CancelledAt      *time.Time    `db:"cancelled_at"`
	CompletedAt      *time.Time    `db:"completed_at"`
	MeetingReference string        `db:"meeting_reference"`
	Metadata         Metadata      `db:"metadata"`
	CreatedAt        time.Time     `db:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at"`

	// Denormalized from the learner record on reads.
	LearnerEmail string `db:"learner_email"`
	LearnerName  string `db:"learner_name"`
}

// EffectiveEnd is the end of the booked session, falling back to
// start + duration when the explicit end is missing.
func (b *Booking) EffectiveEnd() time.Time {
	if !b.ScheduledEnd.IsZero() {
		return b.ScheduledEnd
	}
	return b.ScheduledStart.Add(time.Duration(b.DurationMinutes) * time.Minute)
}
