package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"tutordesk-service/api"
	"tutordesk-service/internal/models"
	"tutordesk-service/pkg/response"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUserID  = "user-1"
	testTutorID = "tutor-1"
)

type fakeStore struct {
	tutor    *models.TutorProfile
	learners map[string]*models.Learner         // keyed by email
	bookings map[string]*models.Booking         // keyed by public id
	slots    map[string]*models.AvailabilitySlot // keyed by id

	statsCounts *Stats
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tutor: &models.TutorProfile{
			ID:          testTutorID,
			UserID:      testUserID,
			DisplayName: "Anna K.",
			Currency:    "EUR",
		},
		learners: map[string]*models.Learner{},
		bookings: map[string]*models.Booking{},
		slots:    map[string]*models.AvailabilitySlot{},
	}
}

func (f *fakeStore) GetTutorByUserID(_ context.Context, userID string) (*models.TutorProfile, error) {
	if f.tutor == nil || f.tutor.UserID != userID {
		return nil, response.ErrNotFound
	}
	return f.tutor, nil
}

func (f *fakeStore) Begin(_ context.Context) (BookingTx, error) {
	return &fakeTx{store: f}, nil
}

func (f *fakeStore) GetBookingByPublicID(_ context.Context, tutorID, publicID string) (*models.Booking, error) {
	b, ok := f.bookings[publicID]
	if !ok || b.TutorID != tutorID {
		return nil, response.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (f *fakeStore) ListBookings(_ context.Context, tutorID string, filters *BookingFilters) ([]*models.Booking, int, error) {
	var result []*models.Booking
	for _, b := range f.bookings {
		if b.TutorID != tutorID {
			continue
		}
		if filters.Status != "all" && string(b.Status) != filters.Status {
			continue
		}
		if filters.Search != "" && !strings.Contains(b.LearnerEmail, filters.Search) {
			continue
		}
		copied := *b
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledStart.After(result[j].ScheduledStart)
	})
	return result, len(result), nil
}

func (f *fakeStore) BookingStatsCounts(_ context.Context, _ string, _ time.Time) (*Stats, error) {
	return f.statsCounts, nil
}

func (f *fakeStore) DeleteBooking(_ context.Context, tutorID, publicID string) error {
	b, ok := f.bookings[publicID]
	if !ok || b.TutorID != tutorID {
		return response.ErrNotFound
	}
	delete(f.bookings, publicID)
	return nil
}

func (f *fakeStore) ListSlots(_ context.Context, tutorID string, filters *SlotFilters) ([]*models.AvailabilitySlot, int, error) {
	var result []*models.AvailabilitySlot
	for _, slot := range f.slots {
		if slot.TutorID != tutorID {
			continue
		}
		if filters.Status != "" && filters.Status != "all" && string(slot.Status) != filters.Status {
			continue
		}
		copied := *slot
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartAt.Before(result[j].StartAt)
	})
	return result, len(result), nil
}

func (f *fakeStore) GetSlot(_ context.Context, tutorID, slotID string) (*models.AvailabilitySlot, error) {
	slot, ok := f.slots[slotID]
	if !ok || slot.TutorID != tutorID {
		return nil, response.ErrNotFound
	}
	copied := *slot
	return &copied, nil
}

func (f *fakeStore) CreateSlot(_ context.Context, slot *models.AvailabilitySlot) (*models.AvailabilitySlot, error) {
	copied := *slot
	copied.ID = uuid.NewString()
	copied.CreatedAt = time.Now().UTC()
	copied.UpdatedAt = copied.CreatedAt
	f.slots[copied.ID] = &copied
	returned := copied
	return &returned, nil
}

func (f *fakeStore) UpdateSlot(_ context.Context, slot *models.AvailabilitySlot) (*models.AvailabilitySlot, error) {
	existing, ok := f.slots[slot.ID]
	if !ok || existing.TutorID != slot.TutorID {
		return nil, response.ErrNotFound
	}
	copied := *slot
	copied.UpdatedAt = time.Now().UTC()
	f.slots[copied.ID] = &copied
	returned := copied
	return &returned, nil
}

func (f *fakeStore) DeleteSlot(_ context.Context, tutorID, slotID string) error {
	slot, ok := f.slots[slotID]
	if !ok || slot.TutorID != tutorID {
		return response.ErrNotFound
	}
	delete(f.slots, slotID)
	return nil
}

// fakeTx stages writes and applies them to the backing store only on Commit,
// so rollback-on-conflict behaviour is observable from the tests.
type fakeTx struct {
	store *fakeStore

	newLearners []*models.Learner
	nameUpdates []func()
	inserted    []*models.Booking
	updated     []*models.Booking

	committed bool
}

func (t *fakeTx) GetLearnerByEmail(_ context.Context, email string) (*models.Learner, error) {
	for _, l := range t.newLearners {
		if l.Email == email {
			copied := *l
			return &copied, nil
		}
	}
	l, ok := t.store.learners[email]
	if !ok {
		return nil, response.ErrNotFound
	}
	copied := *l
	return &copied, nil
}

func (t *fakeTx) CreateLearner(_ context.Context, learner *models.Learner) (string, error) {
	copied := *learner
	copied.ID = uuid.NewString()
	t.newLearners = append(t.newLearners, &copied)
	return copied.ID, nil
}

func (t *fakeTx) UpdateLearnerNames(_ context.Context, learnerID, firstName, lastName string) error {
	t.nameUpdates = append(t.nameUpdates, func() {
		for _, l := range t.store.learners {
			if l.ID != learnerID {
				continue
			}
			if firstName != "" {
				l.FirstName = firstName
			}
			if lastName != "" {
				l.LastName = lastName
			}
		}
	})
	return nil
}

func (t *fakeTx) FindOverlapping(_ context.Context, tutorID string, start, end time.Time, excludePublicID string) ([]string, error) {
	var refs []string
	for _, b := range t.store.bookings {
		if b.TutorID != tutorID || b.Status == models.BookingCancelled {
			continue
		}
		if excludePublicID != "" && b.PublicID == excludePublicID {
			continue
		}
		if b.ScheduledStart.Before(end) && b.ScheduledEnd.After(start) {
			refs = append(refs, b.PublicID)
		}
	}
	sort.Strings(refs)
	return refs, nil
}

func (t *fakeTx) InsertBooking(_ context.Context, booking *models.Booking) (*models.Booking, error) {
	copied := *booking
	copied.ID = uuid.NewString()
	copied.CreatedAt = time.Now().UTC()
	copied.UpdatedAt = copied.CreatedAt
	t.inserted = append(t.inserted, &copied)
	returned := copied
	return &returned, nil
}

func (t *fakeTx) UpdateBooking(_ context.Context, booking *models.Booking) (*models.Booking, error) {
	if _, ok := t.store.bookings[booking.PublicID]; !ok {
		return nil, response.ErrNotFound
	}
	copied := *booking
	copied.UpdatedAt = time.Now().UTC()
	t.updated = append(t.updated, &copied)
	returned := copied
	return &returned, nil
}

func (t *fakeTx) Commit() error {
	for _, l := range t.newLearners {
		t.store.learners[l.Email] = l
	}
	for _, apply := range t.nameUpdates {
		apply()
	}
	for _, b := range t.inserted {
		t.store.bookings[b.PublicID] = b
	}
	for _, b := range t.updated {
		t.store.bookings[b.PublicID] = b
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback() error {
	if t.committed {
		return nil
	}
	t.newLearners = nil
	t.nameUpdates = nil
	t.inserted = nil
	t.updated = nil
	return nil
}

type fakeLocker struct {
	deny  bool
	held  map[string]bool
	locks int
}

func (l *fakeLocker) Lock(_ context.Context, key string, _ time.Duration) (bool, error) {
	if l.deny {
		return false, nil
	}
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	l.locks++
	return true, nil
}

func (l *fakeLocker) Unlock(_ context.Context, key string) error {
	delete(l.held, key)
	return nil
}

func newTestService(store *fakeStore, now time.Time) *Service {
	svc := NewService(store, &fakeLocker{})
	svc.now = func() time.Time { return now }
	return svc
}

func ptr[T any](v T) *T { return &v }

func seedBooking(store *fakeStore, publicID string, status models.BookingStatus, start, end time.Time) *models.Booking {
	b := &models.Booking{
		ID:               uuid.NewString(),
		PublicID:         publicID,
		TutorID:          testTutorID,
		LearnerID:        "learner-1",
		ScheduledStart:   start,
		ScheduledEnd:     end,
		DurationMinutes:  int(end.Sub(start).Minutes()),
		HourlyRateAmount: 10000,
		Currency:         "EUR",
		Status:           status,
		Metadata:         models.Metadata{},
		LearnerEmail:     "kenji@example.com",
	}
	store.bookings[publicID] = b
	return b
}

func TestCreateBooking(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := newTestService(store, now)

	resp, err := svc.CreateBooking(context.Background(), testUserID, &api.BookingRequest{
		LearnerEmail:     "  Kenji@Example.com ",
		LearnerFirstName: "Kenji",
		LearnerLastName:  "Sato",
		ScheduledStart:   "2026-03-02T10:00:00Z",
		ScheduledEnd:     "2026-03-02T11:30:00Z",
		HourlyRateAmount: ptr(int64(10000)),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "confirmed", resp.Status)
	assert.Equal(t, 90, resp.DurationMinutes)
	assert.Equal(t, "EUR", resp.Currency, "currency falls back to the tutor profile")
	assert.NotEmpty(t, resp.MeetingReference)
	require.NotNil(t, resp.RequestedAt)
	require.NotNil(t, resp.ConfirmedAt)
	assert.True(t, resp.ConfirmedAt.Equal(now))
	assert.Nil(t, resp.CompletedAt)

	learner, ok := store.learners["kenji@example.com"]
	require.True(t, ok, "learner identity is created under the normalized email")
	assert.Equal(t, "Kenji", learner.FirstName)
	assert.Equal(t, models.LearnerRole, learner.Role)
	assert.NotEmpty(t, learner.PasswordHash)

	require.Len(t, store.bookings, 1)
}

func TestCreateBookingRequestedStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := newTestService(store, now)

	resp, err := svc.CreateBooking(context.Background(), testUserID, &api.BookingRequest{
		LearnerEmail:   "kenji@example.com",
		ScheduledStart: "2026-03-02T10:00:00Z",
		ScheduledEnd:   "2026-03-02T11:00:00Z",
		Status:         "requested",
	})
	require.NoError(t, err)

	assert.Equal(t, "requested", resp.Status)
	assert.NotNil(t, resp.RequestedAt)
	assert.Nil(t, resp.ConfirmedAt)
}

func TestCreateBookingConflict(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	seedBooking(store, "busy-1", models.BookingConfirmed,
		time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	svc := newTestService(store, now)

	_, err := svc.CreateBooking(context.Background(), testUserID, &api.BookingRequest{
		LearnerEmail:   "new-learner@example.com",
		ScheduledStart: "2026-03-02T10:30:00Z",
		ScheduledEnd:   "2026-03-02T11:30:00Z",
	})

	var cErr *response.ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, []string{"busy-1"}, cErr.BookingRefs)

	// The learner resolution rolled back with the rest of the transaction.
	_, ok := store.learners["new-learner@example.com"]
	assert.False(t, ok)
	assert.Len(t, store.bookings, 1)
}

func TestCreateBookingCancelledDoesNotBlock(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	seedBooking(store, "cancelled-1", models.BookingCancelled,
		time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	svc := newTestService(store, now)

	_, err := svc.CreateBooking(context.Background(), testUserID, &api.BookingRequest{
		LearnerEmail:   "kenji@example.com",
		ScheduledStart: "2026-03-02T10:00:00Z",
		ScheduledEnd:   "2026-03-02T11:00:00Z",
	})
	require.NoError(t, err)
}

func TestCreateBookingAdjacentWindows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	seedBooking(store, "busy-1", models.BookingConfirmed,
		time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	svc := newTestService(store, now)

	// Back to back with the existing booking on both sides.
	_, err := svc.CreateBooking(context.Background(), testUserID, &api.BookingRequest{
		LearnerEmail:   "kenji@example.com",
		ScheduledStart: "2026-03-02T11:00:00Z",
		ScheduledEnd:   "2026-03-02T12:00:00Z",
	})
	require.NoError(t, err)

	_, err = svc.CreateBooking(context.Background(), testUserID, &api.BookingRequest{
		LearnerEmail:   "kenji@example.com",
		ScheduledStart: "2026-03-02T09:00:00Z",
		ScheduledEnd:   "2026-03-02T10:00:00Z",
	})
	require.NoError(t, err)
}

func TestCreateBookingValidation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	valid := func() *api.BookingRequest {
		return &api.BookingRequest{
			LearnerEmail:   "kenji@example.com",
			ScheduledStart: "2026-03-02T10:00:00Z",
			ScheduledEnd:   "2026-03-02T11:00:00Z",
		}
	}

	tests := []struct {
		name   string
		mutate func(*api.BookingRequest)
	}{
		{name: "missing email", mutate: func(r *api.BookingRequest) { r.LearnerEmail = "  " }},
		{name: "malformed start", mutate: func(r *api.BookingRequest) { r.ScheduledStart = "tomorrow" }},
		{name: "malformed end", mutate: func(r *api.BookingRequest) { r.ScheduledEnd = "2026-03-02" }},
		{name: "end before start", mutate: func(r *api.BookingRequest) { r.ScheduledEnd = "2026-03-02T09:00:00Z" }},
		{name: "zero length window", mutate: func(r *api.BookingRequest) { r.ScheduledEnd = r.ScheduledStart }},
		{name: "negative rate", mutate: func(r *api.BookingRequest) { r.HourlyRateAmount = ptr(int64(-1)) }},
		{name: "negative duration", mutate: func(r *api.BookingRequest) { r.DurationMinutes = -30 }},
		{name: "unknown status", mutate: func(r *api.BookingRequest) { r.Status = "pending" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			svc := newTestService(store, now)

			req := valid()
			tt.mutate(req)

			_, err := svc.CreateBooking(context.Background(), testUserID, req)

			var vErr *response.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Empty(t, store.bookings)
		})
	}
}

func TestCreateBookingLocked(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := NewService(store, &fakeLocker{deny: true})
	svc.now = func() time.Time { return now }

	_, err := svc.CreateBooking(context.Background(), testUserID, &api.BookingRequest{
		LearnerEmail:   "kenji@example.com",
		ScheduledStart: "2026-03-02T10:00:00Z",
		ScheduledEnd:   "2026-03-02T11:00:00Z",
	})
	require.ErrorIs(t, err, response.ErrLocked)
}

func TestCreateBookingUnknownTutor(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, time.Now())

	_, err := svc.CreateBooking(context.Background(), "stranger", &api.BookingRequest{
		LearnerEmail:   "kenji@example.com",
		ScheduledStart: "2026-03-02T10:00:00Z",
		ScheduledEnd:   "2026-03-02T11:00:00Z",
	})
	require.ErrorIs(t, err, response.ErrNotFound)
}

func TestCreateBookingReusesLearner(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.learners["kenji@example.com"] = &models.Learner{
		ID:        "learner-42",
		Email:     "kenji@example.com",
		FirstName: "K",
		Role:      models.LearnerRole,
	}
	svc := newTestService(store, now)

	resp, err := svc.CreateBooking(context.Background(), testUserID, &api.BookingRequest{
		LearnerEmail:     "KENJI@example.com",
		LearnerFirstName: "Kenji",
		LearnerLastName:  "Sato",
		ScheduledStart:   "2026-03-02T10:00:00Z",
		ScheduledEnd:     "2026-03-02T11:00:00Z",
	})
	require.NoError(t, err)

	assert.Equal(t, "learner-42", resp.LearnerID)
	require.Len(t, store.learners, 1)
	assert.Equal(t, "Kenji", store.learners["kenji@example.com"].FirstName)
	assert.Equal(t, "Sato", store.learners["kenji@example.com"].LastName)
}

func TestUpdateBookingConfirm(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	seedBooking(store, "b-1", models.BookingRequested,
		time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	svc := newTestService(store, now)

	resp, err := svc.UpdateBooking(context.Background(), testUserID, "b-1", &api.BookingUpdateRequest{
		Status: ptr("confirmed"),
	})
	require.NoError(t, err)

	assert.Equal(t, "confirmed", resp.Status)
	require.NotNil(t, resp.ConfirmedAt)
	assert.True(t, resp.ConfirmedAt.Equal(now))
	assert.Equal(t, models.BookingConfirmed, store.bookings["b-1"].Status)
}

func TestUpdateBookingTerminalState(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	seedBooking(store, "b-1", models.BookingCompleted,
		time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 2, 11, 0, 0, 0, time.UTC))
	svc := newTestService(store, now)

	_, err := svc.UpdateBooking(context.Background(), testUserID, "b-1", &api.BookingUpdateRequest{
		Status: ptr("confirmed"),
	})

	var vErr *response.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, models.BookingCompleted, store.bookings["b-1"].Status)
}

func TestUpdateBookingInvalidTransition(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	seedBooking(store, "b-1", models.BookingRequested,
		time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	svc := newTestService(store, now)

	// Completion requires confirmation first.
	_, err := svc.UpdateBooking(context.Background(), testUserID, "b-1", &api.BookingUpdateRequest{
		Status: ptr("completed"),
	})

	var vErr *response.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestUpdateBookingReschedule(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	seedBooking(store, "b-1", models.BookingConfirmed,
		time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	svc := newTestService(store, now)

	resp, err := svc.UpdateBooking(context.Background(), testUserID, "b-1", &api.BookingUpdateRequest{
		ScheduledStart: ptr("2026-03-03T14:00:00Z"),
		ScheduledEnd:   ptr("2026-03-03T15:30:00Z"),
	})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC), resp.ScheduledStart)
	assert.Equal(t, 90, resp.DurationMinutes, "duration follows the new window")
}

func TestUpdateBookingRescheduleConflict(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	seedBooking(store, "b-1", models.BookingConfirmed,
		time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	seedBooking(store, "b-2", models.BookingConfirmed,
		time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC))
	svc := newTestService(store, now)

	_, err := svc.UpdateBooking(context.Background(), testUserID, "b-1", &api.BookingUpdateRequest{
		ScheduledStart: ptr("2026-03-02T12:30:00Z"),
		ScheduledEnd:   ptr("2026-03-02T13:30:00Z"),
	})

	var cErr *response.ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, []string{"b-2"}, cErr.BookingRefs)
}

func TestUpdateBookingSameWindowNoConflictCheck(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	seedBooking(store, "b-1", models.BookingConfirmed,
		time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	svc := newTestService(store, now)

	// Unchanged window must not conflict with the booking itself.
	resp, err := svc.UpdateBooking(context.Background(), testUserID, "b-1", &api.BookingUpdateRequest{
		HourlyRateAmount: ptr(int64(12000)),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12000), resp.HourlyRateAmount)
}

func TestUpdateBookingMetadataMerge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	b := seedBooking(store, "b-1", models.BookingConfirmed,
		time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	b.Metadata = models.Metadata{"level": "B2", "notes": "bring homework"}
	svc := newTestService(store, now)

	resp, err := svc.UpdateBooking(context.Background(), testUserID, "b-1", &api.BookingUpdateRequest{
		Metadata: map[string]any{"notes": "rescheduled twice", "topic": "grammar"},
	})
	require.NoError(t, err)

	assert.Equal(t, "B2", resp.Metadata["level"])
	assert.Equal(t, "rescheduled twice", resp.Metadata["notes"])
	assert.Equal(t, "grammar", resp.Metadata["topic"])
}

func TestCancelBooking(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	seedBooking(store, "b-1", models.BookingConfirmed,
		time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	svc := newTestService(store, now)

	resp, err := svc.CancelBooking(context.Background(), testUserID, "b-1", &api.BookingCancelRequest{
		Reason: "learner is sick",
	})
	require.NoError(t, err)

	assert.Equal(t, "cancelled", resp.Status)
	require.NotNil(t, resp.CancelledAt)
	assert.True(t, resp.CancelledAt.Equal(now))
	assert.Equal(t, "learner is sick", resp.Metadata["cancellation_reason"])
}

func TestCancelBookingDefaultReason(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	seedBooking(store, "b-1", models.BookingRequested,
		time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	svc := newTestService(store, now)

	resp, err := svc.CancelBooking(context.Background(), testUserID, "b-1", nil)
	require.NoError(t, err)
	assert.Equal(t, defaultCancelReason, resp.Metadata["cancellation_reason"])
}

func TestCancelBookingIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	b := seedBooking(store, "b-1", models.BookingCancelled,
		time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	cancelledAt := now.Add(-time.Hour)
	b.CancelledAt = &cancelledAt
	svc := newTestService(store, now)

	resp, err := svc.CancelBooking(context.Background(), testUserID, "b-1", nil)
	require.NoError(t, err)

	assert.Equal(t, "cancelled", resp.Status)
	require.NotNil(t, resp.CancelledAt)
	assert.True(t, resp.CancelledAt.Equal(cancelledAt), "repeated cancel keeps the original timestamp")
}

func TestCancelBookingCompleted(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	seedBooking(store, "b-1", models.BookingCompleted,
		time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 2, 11, 0, 0, 0, time.UTC))
	svc := newTestService(store, now)

	_, err := svc.CancelBooking(context.Background(), testUserID, "b-1", nil)

	var vErr *response.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestDeleteBooking(t *testing.T) {
	store := newFakeStore()
	seedBooking(store, "b-1", models.BookingConfirmed,
		time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	svc := newTestService(store, time.Now())

	require.NoError(t, svc.DeleteBooking(context.Background(), testUserID, "b-1"))
	assert.Empty(t, store.bookings)

	err := svc.DeleteBooking(context.Background(), testUserID, "b-1")
	require.ErrorIs(t, err, response.ErrNotFound)
}

func TestListBookings(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	seedBooking(store, "b-1", models.BookingConfirmed,
		now.Add(24*time.Hour), now.Add(25*time.Hour))
	seedBooking(store, "b-2", models.BookingCancelled,
		now.Add(48*time.Hour), now.Add(49*time.Hour))
	store.statsCounts = &Stats{Total: 40, Upcoming: 10, InProgress: 1, Completed: 25, Cancelled: 4, RevenueMinor: 250000}
	svc := newTestService(store, now)

	resp, err := svc.ListBookings(context.Background(), testUserID, &BookingFilters{Status: "confirmed"})
	require.NoError(t, err)

	require.Len(t, resp.Bookings, 1)
	assert.Equal(t, "b-1", resp.Bookings[0].ID)
	assert.Equal(t, 1, resp.Pagination.Page)
	assert.Equal(t, defaultPerPage, resp.Pagination.PerPage)
	assert.Equal(t, 1, resp.Pagination.Total)
	assert.Equal(t, 1, resp.Pagination.TotalPages)

	// The aggregate covers the whole roster, not the filtered page.
	assert.Equal(t, 40, resp.Stats.Total)
	assert.Equal(t, 25, resp.Stats.Completed)
	assert.Equal(t, int64(250000), resp.Stats.RevenueMinor)
}

func TestListBookingsUnknownStatus(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, time.Now())

	_, err := svc.ListBookings(context.Background(), testUserID, &BookingFilters{Status: "archived"})

	var vErr *response.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		page, perPage         int
		wantPage, wantPerPage int
	}{
		{0, 0, 1, defaultPerPage},
		{-3, -1, 1, defaultPerPage},
		{2, 50, 2, 50},
		{1, 500, 1, maxPerPage},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d", tt.page, tt.perPage), func(t *testing.T) {
			page, perPage := normalizePage(tt.page, tt.perPage)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPerPage, perPage)
		})
	}
}

func TestCreateSlotDefaults(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, time.Now())

	resp, err := svc.CreateSlot(context.Background(), testUserID, &api.SlotRequest{
		StartAt: "2026-03-02T10:00:00Z",
		EndAt:   "2026-03-02T12:00:00Z",
	})
	require.NoError(t, err)

	assert.Equal(t, "open", resp.Status)
	assert.NotEmpty(t, resp.Metadata["reference"])
	require.Len(t, store.slots, 1)
}

func TestCreateSlotValidation(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, time.Now())

	tests := []struct {
		name string
		req  *api.SlotRequest
	}{
		{name: "inverted window", req: &api.SlotRequest{StartAt: "2026-03-02T12:00:00Z", EndAt: "2026-03-02T10:00:00Z"}},
		{name: "malformed start", req: &api.SlotRequest{StartAt: "monday", EndAt: "2026-03-02T10:00:00Z"}},
		{name: "unknown status", req: &api.SlotRequest{StartAt: "2026-03-02T10:00:00Z", EndAt: "2026-03-02T12:00:00Z", Status: "reserved"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSlot(context.Background(), testUserID, tt.req)

			var vErr *response.ValidationError
			require.ErrorAs(t, err, &vErr)
		})
	}
}

func TestUpdateSlot(t *testing.T) {
	store := newFakeStore()
	store.slots["s-1"] = &models.AvailabilitySlot{
		ID:      "s-1",
		TutorID: testTutorID,
		StartAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		Status:  models.SlotOpen,
		Metadata: models.Metadata{
			"reference": "ref-1",
		},
	}
	svc := newTestService(store, time.Now())

	resp, err := svc.UpdateSlot(context.Background(), testUserID, "s-1", &api.SlotUpdateRequest{
		Status: ptr("blocked"),
		EndAt:  ptr("2026-03-02T13:00:00Z"),
	})
	require.NoError(t, err)

	assert.Equal(t, "blocked", resp.Status)
	assert.Equal(t, time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC), resp.EndAt)
	assert.Equal(t, "ref-1", resp.Metadata["reference"])
}

func TestUpdateSlotInvertedWindow(t *testing.T) {
	store := newFakeStore()
	store.slots["s-1"] = &models.AvailabilitySlot{
		ID:      "s-1",
		TutorID: testTutorID,
		StartAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		Status:  models.SlotOpen,
	}
	svc := newTestService(store, time.Now())

	_, err := svc.UpdateSlot(context.Background(), testUserID, "s-1", &api.SlotUpdateRequest{
		EndAt: ptr("2026-03-02T09:00:00Z"),
	})

	var vErr *response.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestDeleteSlot(t *testing.T) {
	store := newFakeStore()
	store.slots["s-1"] = &models.AvailabilitySlot{ID: "s-1", TutorID: testTutorID}
	svc := newTestService(store, time.Now())

	require.NoError(t, svc.DeleteSlot(context.Background(), testUserID, "s-1"))
	assert.Empty(t, store.slots)

	err := svc.DeleteSlot(context.Background(), testUserID, "s-1")
	require.ErrorIs(t, err, response.ErrNotFound)
}
