package service

import (
	"context"
	"fmt"
	"time"

	"tutordesk-service/api"
	"tutordesk-service/internal/models"
	"tutordesk-service/pkg/response"

	"github.com/google/uuid"
)

const tutorLockTTL = 10 * time.Second

func tutorLockKey(tutorID string) string {
	return fmt.Sprintf("tutor:%s", tutorID)
}

func (s *Service) CreateBooking(ctx context.Context, tutorUserID string, req *api.BookingRequest) (*api.BookingResponse, error) {
	const op = "service.CreateBooking"

	tutor, err := s.store.GetTutorByUserID(ctx, tutorUserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	start, err := time.Parse(time.RFC3339, req.ScheduledStart)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("invalid scheduled_start: %v", err))
	}

	end, err := time.Parse(time.RFC3339, req.ScheduledEnd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("invalid scheduled_end: %v", err))
	}

	if !end.After(start) {
		return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("scheduled_end must be after scheduled_start"))
	}

	var rate int64
	if req.HourlyRateAmount != nil {
		if *req.HourlyRateAmount < 0 {
			return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("hourly_rate_amount must not be negative"))
		}
		rate = *req.HourlyRateAmount
	}

	status := models.BookingConfirmed
	if req.Status != "" {
		parsed, ok := models.ParseBookingStatus(req.Status)
		if !ok {
			return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("unknown booking status %q", req.Status))
		}
		status = parsed
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = int(end.Sub(start).Minutes())
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("duration_minutes must be positive"))
	}

	currency := req.Currency
	if currency == "" {
		currency = tutor.Currency
	}

	meetingRef := req.MeetingReference
	if meetingRef == "" {
		meetingRef = uuid.NewString()
	}

	lockKey := tutorLockKey(tutor.ID)

	locked, err := s.locker.Lock(ctx, lockKey, tutorLockTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		_ = s.locker.Unlock(ctx, lockKey)
	}()

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	learnerID, err := s.resolveLearner(ctx, tx, req.LearnerEmail, req.LearnerFirstName, req.LearnerLastName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refs, err := tx.FindOverlapping(ctx, tutor.ID, start, end, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(refs) > 0 {
		return nil, fmt.Errorf("%s: %w", op, &response.ConflictError{BookingRefs: refs})
	}

	now := s.now().UTC()

	booking := &models.Booking{
		PublicID:         uuid.NewString(),
		TutorID:          tutor.ID,
		LearnerID:        learnerID,
		ScheduledStart:   start.UTC(),
		ScheduledEnd:     end.UTC(),
		DurationMinutes:  duration,
		HourlyRateAmount: rate,
		Currency:         currency,
		Status:           status,
		RequestedAt:      &now,
		MeetingReference: meetingRef,
		Metadata:         models.Metadata{}.Merge(models.Metadata(req.Metadata)),
	}

	switch status {
	case models.BookingConfirmed:
		booking.ConfirmedAt = &now
	case models.BookingCompleted:
		booking.CompletedAt = &now
	case models.BookingCancelled:
		booking.CancelledAt = &now
	}

	created, err := tx.InsertBooking(ctx, booking)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	created.LearnerEmail = req.LearnerEmail
	resp := toBookingResponse(created)
	return &resp, nil
}

func (s *Service) UpdateBooking(ctx context.Context, tutorUserID, publicID string, req *api.BookingUpdateRequest) (*api.BookingResponse, error) {
	const op = "service.UpdateBooking"

	tutor, err := s.store.GetTutorByUserID(ctx, tutorUserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lockKey := tutorLockKey(tutor.ID)

	locked, err := s.locker.Lock(ctx, lockKey, tutorLockTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		_ = s.locker.Unlock(ctx, lockKey)
	}()

	booking, err := s.store.GetBookingByPublicID(ctx, tutor.ID, publicID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	newStart := booking.ScheduledStart
	newEnd := booking.ScheduledEnd

	if req.ScheduledStart != nil {
		start, err := time.Parse(time.RFC3339, *req.ScheduledStart)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("invalid scheduled_start: %v", err))
		}
		newStart = start.UTC()
	}

	if req.ScheduledEnd != nil {
		end, err := time.Parse(time.RFC3339, *req.ScheduledEnd)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("invalid scheduled_end: %v", err))
		}
		newEnd = end.UTC()
	}

	if !newEnd.After(newStart) {
		return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("scheduled_end must be after scheduled_start"))
	}

	windowChanged := !newStart.Equal(booking.ScheduledStart) || !newEnd.Equal(booking.ScheduledEnd)

	if req.Status != nil {
		parsed, ok := models.ParseBookingStatus(*req.Status)
		if !ok {
			return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("unknown booking status %q", *req.Status))
		}
		if parsed != booking.Status {
			if err := s.transition(booking, parsed); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
	}

	if req.HourlyRateAmount != nil {
		if *req.HourlyRateAmount < 0 {
			return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("hourly_rate_amount must not be negative"))
		}
		booking.HourlyRateAmount = *req.HourlyRateAmount
	}

	if req.Currency != nil {
		booking.Currency = *req.Currency
	}

	if req.MeetingReference != nil {
		booking.MeetingReference = *req.MeetingReference
	}

	if req.DurationMinutes != nil {
		if *req.DurationMinutes <= 0 {
			return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("duration_minutes must be positive"))
		}
		booking.DurationMinutes = *req.DurationMinutes
	} else if windowChanged {
		booking.DurationMinutes = int(newEnd.Sub(newStart).Minutes())
	}

	if req.Metadata != nil {
		booking.Metadata = booking.Metadata.Merge(models.Metadata(req.Metadata))
	}

	booking.ScheduledStart = newStart
	booking.ScheduledEnd = newEnd

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if windowChanged {
		refs, err := tx.FindOverlapping(ctx, tutor.ID, newStart, newEnd, booking.PublicID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if len(refs) > 0 {
			return nil, fmt.Errorf("%s: %w", op, &response.ConflictError{BookingRefs: refs})
		}
	}

	updated, err := tx.UpdateBooking(ctx, booking)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	resp := toBookingResponse(updated)
	return &resp, nil
}

// transition applies the booking state machine:
// requested -> confirmed -> completed, with cancellation possible from any
// non-terminal state. Terminal states are immutable.
func (s *Service) transition(b *models.Booking, target models.BookingStatus) error {
	if b.Status.Terminal() {
		return response.NewValidationError("booking is %s and cannot change status", b.Status)
	}

	now := s.now().UTC()

	switch target {
	case models.BookingConfirmed:
		if b.Status != models.BookingRequested {
			return response.NewValidationError("cannot confirm a %s booking", b.Status)
		}
		b.ConfirmedAt = &now
	case models.BookingCompleted:
		if b.Status != models.BookingConfirmed {
			return response.NewValidationError("cannot complete a %s booking", b.Status)
		}
		b.CompletedAt = &now
	case models.BookingCancelled:
		b.CancelledAt = &now
	default:
		return response.NewValidationError("cannot move a %s booking back to %s", b.Status, target)
	}

	b.Status = target
	return nil
}

const defaultCancelReason = "cancelled by instructor"

func (s *Service) CancelBooking(ctx context.Context, tutorUserID, publicID string, req *api.BookingCancelRequest) (*api.BookingResponse, error) {
	const op = "service.CancelBooking"

	tutor, err := s.store.GetTutorByUserID(ctx, tutorUserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	booking, err := s.store.GetBookingByPublicID(ctx, tutor.ID, publicID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if booking.Status == models.BookingCancelled {
		resp := toBookingResponse(booking)
		return &resp, nil
	}

	if err := s.transition(booking, models.BookingCancelled); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reason := defaultCancelReason
	if req != nil && req.Reason != "" {
		reason = req.Reason
	}
	booking.Metadata = booking.Metadata.Merge(models.Metadata{"cancellation_reason": reason})

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	updated, err := tx.UpdateBooking(ctx, booking)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	resp := toBookingResponse(updated)
	return &resp, nil
}

// DeleteBooking removes the record entirely, bypassing the state machine.
// Administrative path only.
func (s *Service) DeleteBooking(ctx context.Context, tutorUserID, publicID string) error {
	const op = "service.DeleteBooking"

	tutor, err := s.store.GetTutorByUserID(ctx, tutorUserID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.DeleteBooking(ctx, tutor.ID, publicID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Service) ListBookings(ctx context.Context, tutorUserID string, filters *BookingFilters) (*api.BookingListResponse, error) {
	const op = "service.ListBookings"

	tutor, err := s.store.GetTutorByUserID(ctx, tutorUserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if filters == nil {
		filters = &BookingFilters{}
	}
	filters.Page, filters.PerPage = normalizePage(filters.Page, filters.PerPage)

	if filters.Status == "" {
		filters.Status = "all"
	}
	if filters.Status != "all" {
		if _, ok := models.ParseBookingStatus(filters.Status); !ok {
			return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("unknown booking status %q", filters.Status))
		}
	}

	bookings, total, err := s.store.ListBookings(ctx, tutor.ID, filters)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Page-local aggregate first; the filtered page undercounts, so every
	// counter is then replaced by the unfiltered tally from the store.
	stats := ComputeStats(bookings, s.now())

	counts, err := s.store.BookingStatsCounts(ctx, tutor.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	stats.Override(counts)

	result := make([]api.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		result = append(result, toBookingResponse(b))
	}

	return &api.BookingListResponse{
		Bookings: result,
		Pagination: api.Pagination{
			Page:       filters.Page,
			PerPage:    filters.PerPage,
			Total:      total,
			TotalPages: totalPages(total, filters.PerPage),
		},
		Stats: api.BookingStats{
			Total:        stats.Total,
			Upcoming:     stats.Upcoming,
			InProgress:   stats.InProgress,
			Completed:    stats.Completed,
			Cancelled:    stats.Cancelled,
			RevenueMinor: stats.RevenueMinor,
		},
	}, nil
}
