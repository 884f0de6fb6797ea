package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tutordesk-service/api"
	"tutordesk-service/internal/lock"
	"tutordesk-service/internal/models"
	"tutordesk-service/pkg/response"

	"github.com/google/uuid"
)

type Service struct {
	store  Store
	locker lock.Locker
	now    func() time.Time
}

func NewService(store Store, locker lock.Locker) *Service {
	return &Service{store: store, locker: locker, now: time.Now}
}

type Store interface {
	GetTutorByUserID(ctx context.Context, userID string) (*models.TutorProfile, error)

	// Bookings
	Begin(ctx context.Context) (BookingTx, error)
	GetBookingByPublicID(ctx context.Context, tutorID, publicID string) (*models.Booking, error)
	ListBookings(ctx context.Context, tutorID string, filters *BookingFilters) ([]*models.Booking, int, error)
	BookingStatsCounts(ctx context.Context, tutorID string, now time.Time) (*Stats, error)
	DeleteBooking(ctx context.Context, tutorID, publicID string) error

	// Availability slots
	ListSlots(ctx context.Context, tutorID string, filters *SlotFilters) ([]*models.AvailabilitySlot, int, error)
	GetSlot(ctx context.Context, tutorID, slotID string) (*models.AvailabilitySlot, error)
	CreateSlot(ctx context.Context, slot *models.AvailabilitySlot) (*models.AvailabilitySlot, error)
	UpdateSlot(ctx context.Context, slot *models.AvailabilitySlot) (*models.AvailabilitySlot, error)
	DeleteSlot(ctx context.Context, tutorID, slotID string) error
}

// BookingTx scopes the multi-step booking work to one database transaction.
// Learner resolution, the overlap check and the booking write either all
// commit or all roll back.
type BookingTx interface {
	GetLearnerByEmail(ctx context.Context, email string) (*models.Learner, error)
	CreateLearner(ctx context.Context, learner *models.Learner) (string, error)
	UpdateLearnerNames(ctx context.Context, learnerID, firstName, lastName string) error
	FindOverlapping(ctx context.Context, tutorID string, start, end time.Time, excludePublicID string) ([]string, error)
	InsertBooking(ctx context.Context, booking *models.Booking) (*models.Booking, error)
	UpdateBooking(ctx context.Context, booking *models.Booking) (*models.Booking, error)
	Commit() error
	Rollback() error
}

type BookingFilters struct {
	Status  string
	Search  string
	Page    int
	PerPage int
}

type SlotFilters struct {
	Status  string
	From    *time.Time
	To      *time.Time
	Page    int
	PerPage int
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func totalPages(total, perPage int) int {
	if total == 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// resolveLearner returns the id of the learner identity for email, creating
// the identity inside tx if the directory has no match. Supplied name fields
// overwrite stored ones; absent fields are kept.
func (s *Service) resolveLearner(ctx context.Context, tx BookingTx, email, firstName, lastName string) (string, error) {
	const op = "service.resolveLearner"

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, response.NewValidationError("learner_email is required"))
	}

	learner, err := tx.GetLearnerByEmail(ctx, email)
	if err != nil && !errors.Is(err, response.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if learner != nil {
		if firstName != "" || lastName != "" {
			if err := tx.UpdateLearnerNames(ctx, learner.ID, firstName, lastName); err != nil {
				return "", fmt.Errorf("%s: %w", op, err)
			}
		}
		return learner.ID, nil
	}

	// The account is not expected to log in through this flow, so the
	// credential is a random placeholder.
	id, err := tx.CreateLearner(ctx, &models.Learner{
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         models.LearnerRole,
		PasswordHash: uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// Availability slots

func (s *Service) ListSlots(ctx context.Context, tutorUserID string, filters *SlotFilters) (*api.SlotListResponse, error) {
	const op = "service.ListSlots"

	tutor, err := s.store.GetTutorByUserID(ctx, tutorUserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if filters == nil {
		filters = &SlotFilters{}
	}
	filters.Page, filters.PerPage = normalizePage(filters.Page, filters.PerPage)

	if filters.Status != "" && filters.Status != "all" {
		if _, ok := models.ParseSlotStatus(filters.Status); !ok {
			return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("unknown slot status %q", filters.Status))
		}
	}

	slots, total, err := s.store.ListSlots(ctx, tutor.ID, filters)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]api.SlotResponse, 0, len(slots))
	for _, slot := range slots {
		result = append(result, toSlotResponse(slot))
	}

	return &api.SlotListResponse{
		Slots: result,
		Pagination: api.Pagination{
			Page:       filters.Page,
			PerPage:    filters.PerPage,
			Total:      total,
			TotalPages: totalPages(total, filters.PerPage),
		},
	}, nil
}

func (s *Service) CreateSlot(ctx context.Context, tutorUserID string, req *api.SlotRequest) (*api.SlotResponse, error) {
	const op = "service.CreateSlot"

	tutor, err := s.store.GetTutorByUserID(ctx, tutorUserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("invalid start_at: %v", err))
	}

	endAt, err := time.Parse(time.RFC3339, req.EndAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("invalid end_at: %v", err))
	}

	if !endAt.After(startAt) {
		return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("end_at must be after start_at"))
	}

	status := models.SlotOpen
	if req.Status != "" {
		parsed, ok := models.ParseSlotStatus(req.Status)
		if !ok {
			return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("unknown slot status %q", req.Status))
		}
		status = parsed
	}

	metadata := models.Metadata{}.Merge(models.Metadata(req.Metadata))
	if _, ok := metadata["reference"]; !ok {
		metadata["reference"] = uuid.NewString()
	}

	slot, err := s.store.CreateSlot(ctx, &models.AvailabilitySlot{
		TutorID:        tutor.ID,
		StartAt:        startAt.UTC(),
		EndAt:          endAt.UTC(),
		Status:         status,
		IsRecurring:    req.IsRecurring,
		RecurrenceRule: req.RecurrenceRule,
		Metadata:       metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := toSlotResponse(slot)
	return &resp, nil
}

func (s *Service) UpdateSlot(ctx context.Context, tutorUserID, slotID string, req *api.SlotUpdateRequest) (*api.SlotResponse, error) {
	const op = "service.UpdateSlot"

	tutor, err := s.store.GetTutorByUserID(ctx, tutorUserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	slot, err := s.store.GetSlot(ctx, tutor.ID, slotID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if req.StartAt != nil {
		startAt, err := time.Parse(time.RFC3339, *req.StartAt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("invalid start_at: %v", err))
		}
		slot.StartAt = startAt.UTC()
	}

	if req.EndAt != nil {
		endAt, err := time.Parse(time.RFC3339, *req.EndAt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("invalid end_at: %v", err))
		}
		slot.EndAt = endAt.UTC()
	}

	if !slot.EndAt.After(slot.StartAt) {
		return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("end_at must be after start_at"))
	}

	if req.Status != nil {
		parsed, ok := models.ParseSlotStatus(*req.Status)
		if !ok {
			return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("unknown slot status %q", *req.Status))
		}
		slot.Status = parsed
	}

	if req.IsRecurring != nil {
		slot.IsRecurring = *req.IsRecurring
	}

	if req.RecurrenceRule != nil {
		slot.RecurrenceRule = *req.RecurrenceRule
	}

	if req.Metadata != nil {
		slot.Metadata = slot.Metadata.Merge(models.Metadata(req.Metadata))
	}

	updated, err := s.store.UpdateSlot(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := toSlotResponse(updated)
	return &resp, nil
}

func (s *Service) DeleteSlot(ctx context.Context, tutorUserID, slotID string) error {
	const op = "service.DeleteSlot"

	tutor, err := s.store.GetTutorByUserID(ctx, tutorUserID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.DeleteSlot(ctx, tutor.ID, slotID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func toSlotResponse(slot *models.AvailabilitySlot) api.SlotResponse {
	return api.SlotResponse{
		ID:             slot.ID,
		StartAt:        slot.StartAt,
		EndAt:          slot.EndAt,
		Status:         string(slot.Status),
		IsRecurring:    slot.IsRecurring,
		RecurrenceRule: slot.RecurrenceRule,
		Metadata:       slot.Metadata,
		CreatedAt:      slot.CreatedAt,
	}
}

func toBookingResponse(b *models.Booking) api.BookingResponse {
	return api.BookingResponse{
		ID:               b.PublicID,
		LearnerID:        b.LearnerID,
		LearnerEmail:     b.LearnerEmail,
		LearnerName:      b.LearnerName,
		ScheduledStart:   b.ScheduledStart,
		ScheduledEnd:     b.ScheduledEnd,
		DurationMinutes:  b.DurationMinutes,
		HourlyRateAmount: b.HourlyRateAmount,
		Currency:         b.Currency,
		Status:           string(b.Status),
		RequestedAt:      b.RequestedAt,
		ConfirmedAt:      b.ConfirmedAt,
		CancelledAt:      b.CancelledAt,
		CompletedAt:      b.CompletedAt,
		MeetingReference: b.MeetingReference,
		Metadata:         b.Metadata,
		CreatedAt:        b.CreatedAt,
	}
}
