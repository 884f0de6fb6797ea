package api

import "time"

type BookingRequest struct {
	LearnerEmail     string         `json:"learner_email"`
	LearnerFirstName string         `json:"learner_first_name,omitempty"`
	LearnerLastName  string         `json:"learner_last_name,omitempty"`
	ScheduledStart   string         `json:"scheduled_start"`
	ScheduledEnd     string         `json:"scheduled_end"`
	DurationMinutes  int            `json:"duration_minutes,omitempty"`
	HourlyRateAmount *int64         `json:"hourly_rate_amount,omitempty"`
	Currency         string         `json:"currency,omitempty"`
	Status           string         `json:"status,omitempty"`
	MeetingReference string         `json:"meeting_reference,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

type BookingUpdateRequest struct {
	ScheduledStart   *string        `json:"scheduled_start,omitempty"`
	ScheduledEnd     *string        `json:"scheduled_end,omitempty"`
	DurationMinutes  *int           `json:"duration_minutes,omitempty"`
	HourlyRateAmount *int64         `json:"hourly_rate_amount,omitempty"`
	Currency         *string        `json:"currency,omitempty"`
	Status           *string        `json:"status,omitempty"`
	MeetingReference *string        `json:"meeting_reference,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

type BookingCancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

type BookingResponse struct {
	ID               string         `json:"id"`
	LearnerID        string         `json:"learner_id"`
	LearnerEmail     string         `json:"learner_email"`
	LearnerName      string         `json:"learner_name,omitempty"`
	ScheduledStart   time.Time      `json:"scheduled_start"`
	ScheduledEnd     time.Time      `json:"scheduled_end"`
	DurationMinutes  int            `json:"duration_minutes"`
	HourlyRateAmount int64          `json:"hourly_rate_amount"`
	Currency         string         `json:"currency"`
	Status           string         `json:"status"`
	RequestedAt      *time.Time     `json:"requested_at,omitempty"`
	ConfirmedAt      *time.Time     `json:"confirmed_at,omitempty"`
	CancelledAt      *time.Time     `json:"cancelled_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	MeetingReference string         `json:"meeting_reference,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

type BookingStats struct {
	Total        int   `json:"total"`
	Upcoming     int   `json:"upcoming"`
	InProgress   int   `json:"in_progress"`
	Completed    int   `json:"completed"`
	Cancelled    int   `json:"cancelled"`
	RevenueMinor int64 `json:"revenue_minor"`
}

type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type BookingListResponse struct {
	Bookings   []BookingResponse `json:"bookings"`
	Pagination Pagination        `json:"pagination"`
	Stats      BookingStats      `json:"stats"`
}

type SlotRequest struct {
	StartAt        string         `json:"start_at"`
	EndAt          string         `json:"end_at"`
	Status         string         `json:"status,omitempty"`
	IsRecurring    bool           `json:"is_recurring,omitempty"`
	RecurrenceRule string         `json:"recurrence_rule,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

type SlotUpdateRequest struct {
	StartAt        *string        `json:"start_at,omitempty"`
	EndAt          *string        `json:"end_at,omitempty"`
	Status         *string        `json:"status,omitempty"`
	IsRecurring    *bool          `json:"is_recurring,omitempty"`
	RecurrenceRule *string        `json:"recurrence_rule,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

type SlotResponse struct {
	ID             string         `json:"id"`
	StartAt        time.Time      `json:"start_at"`
	EndAt          time.Time      `json:"end_at"`
	Status         string         `json:"status"`
	IsRecurring    bool           `json:"is_recurring"`
	RecurrenceRule string         `json:"recurrence_rule,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

type SlotListResponse struct {
	Slots      []SlotResponse `json:"slots"`
	Pagination Pagination     `json:"pagination"`
}
