package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tutordesk-service/internal/models"
	"tutordesk-service/internal/service"
	"tutordesk-service/pkg/response"

	"github.com/lib/pq"
)

const bookingColumns = `b.id, b.public_id, b.tutor_id, b.learner_id,
	b.scheduled_start, b.scheduled_end, b.duration_minutes,
	b.hourly_rate_amount, b.currency, b.status,
	b.requested_at, b.confirmed_at, b.cancelled_at, b.completed_at,
	b.meeting_reference, b.metadata, b.created_at, b.updated_at,
	u.email, TRIM(u.first_name || ' ' || u.last_name)`

type bookingScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row bookingScanner) (*models.Booking, error) {
	var b models.Booking
	var requestedAt, confirmedAt, cancelledAt, completedAt sql.NullTime

	err := row.Scan(
		&b.ID, &b.PublicID, &b.TutorID, &b.LearnerID,
		&b.ScheduledStart, &b.ScheduledEnd, &b.DurationMinutes,
		&b.HourlyRateAmount, &b.Currency, &b.Status,
		&requestedAt, &confirmedAt, &cancelledAt, &completedAt,
		&b.MeetingReference, &b.Metadata, &b.CreatedAt, &b.UpdatedAt,
		&b.LearnerEmail, &b.LearnerName,
	)
	if err != nil {
		return nil, err
	}

	b.RequestedAt = nullTimePtr(requestedAt)
	b.ConfirmedAt = nullTimePtr(confirmedAt)
	b.CancelledAt = nullTimePtr(cancelledAt)
	b.CompletedAt = nullTimePtr(completedAt)

	return &b, nil
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (s *Storage) GetBookingByPublicID(ctx context.Context, tutorID, publicID string) (*models.Booking, error) {
	const op = "storage.postgres.GetBookingByPublicID"

	row := s.db.QueryRowContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings b
		JOIN users u ON u.id = b.learner_id
		WHERE b.tutor_id=$1 AND b.public_id::text=$2`,
		tutorID, publicID,
	)

	booking, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return booking, nil
}

func (s *Storage) ListBookings(ctx context.Context, tutorID string, filters *service.BookingFilters) ([]*models.Booking, int, error) {
	const op = "storage.postgres.ListBookings"

	where := `
		WHERE b.tutor_id=$1
		AND ($2 = 'all' OR b.status = $2)
		AND ($3 = ''
			OR u.email ILIKE '%' || $3 || '%'
			OR u.first_name ILIKE '%' || $3 || '%'
			OR u.last_name ILIKE '%' || $3 || '%'
			OR b.meeting_reference ILIKE '%' || $3 || '%')`

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings b JOIN users u ON u.id = b.learner_id`+where,
		tutorID, filters.Status, filters.Search,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	offset := (filters.Page - 1) * filters.PerPage

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings b
		JOIN users u ON u.id = b.learner_id`+where+`
		ORDER BY b.scheduled_start DESC
		LIMIT $4 OFFSET $5`,
		tutorID, filters.Status, filters.Search, filters.PerPage, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}

		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, total, nil
}

// BookingStatsCounts tallies every booking of the tutor in one grouped query,
// classifying against the supplied reference time the same way ComputeStats
// does in memory.
func (s *Storage) BookingStatsCounts(ctx context.Context, tutorID string, now time.Time) (*service.Stats, error) {
	const op = "storage.postgres.BookingStatsCounts"

	var stats service.Stats

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COUNT(*) FILTER (WHERE status <> 'cancelled'
				AND (status = 'completed' OR scheduled_end < $2)),
			COUNT(*) FILTER (WHERE status NOT IN ('cancelled', 'completed')
				AND scheduled_start <= $2 AND scheduled_end >= $2),
			COUNT(*) FILTER (WHERE status NOT IN ('cancelled', 'completed')
				AND scheduled_start > $2),
			COALESCE(SUM(ROUND(hourly_rate_amount * duration_minutes / 60.0))
				FILTER (WHERE status <> 'cancelled'
					AND hourly_rate_amount > 0 AND duration_minutes > 0), 0)
		FROM bookings
		WHERE tutor_id=$1`,
		tutorID, now,
	).Scan(
		&stats.Total,
		&stats.Cancelled,
		&stats.Completed,
		&stats.InProgress,
		&stats.Upcoming,
		&stats.RevenueMinor,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &stats, nil
}

func (s *Storage) DeleteBooking(ctx context.Context, tutorID, publicID string) error {
	const op = "storage.postgres.DeleteBooking"

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM bookings WHERE tutor_id=$1 AND public_id::text=$2`,
		tutorID, publicID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

// #### transactional booking work ####

type bookingTx struct {
	tx *sql.Tx
}

func (t *bookingTx) Commit() error {
	return t.tx.Commit()
}

func (t *bookingTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *bookingTx) GetLearnerByEmail(ctx context.Context, email string) (*models.Learner, error) {
	const op = "storage.postgres.GetLearnerByEmail"

	var learner models.Learner

	err := t.tx.QueryRowContext(ctx,
		`SELECT id, email, first_name, last_name, role FROM users WHERE email=$1`,
		email,
	).Scan(&learner.ID, &learner.Email, &learner.FirstName, &learner.LastName, &learner.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &learner, nil
}

func (t *bookingTx) CreateLearner(ctx context.Context, learner *models.Learner) (string, error) {
	const op = "storage.postgres.CreateLearner"

	var id string

	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO users (email, first_name, last_name, role, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		learner.Email, learner.FirstName, learner.LastName, learner.Role, learner.PasswordHash,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (t *bookingTx) UpdateLearnerNames(ctx context.Context, learnerID, firstName, lastName string) error {
	const op = "storage.postgres.UpdateLearnerNames"

	// Empty fields were not supplied by the caller and must be kept.
	_, err := t.tx.ExecContext(ctx, `
		UPDATE users
		SET first_name = COALESCE(NULLIF($2, ''), first_name),
			last_name = COALESCE(NULLIF($3, ''), last_name),
			updated_at = now()
		WHERE id=$1`,
		learnerID, firstName, lastName,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// FindOverlapping returns public ids of non-cancelled bookings of the tutor
// whose [scheduled_start, scheduled_end) window intersects [start, end).
// Half-open: a booking ending exactly at start does not overlap.
func (t *bookingTx) FindOverlapping(ctx context.Context, tutorID string, start, end time.Time, excludePublicID string) ([]string, error) {
	const op = "storage.postgres.FindOverlapping"

	rows, err := t.tx.QueryContext(ctx, `
		SELECT public_id FROM bookings
		WHERE tutor_id=$1
		AND status <> 'cancelled'
		AND scheduled_start < $3
		AND scheduled_end > $2
		AND ($4 = '' OR public_id::text <> $4)
		ORDER BY scheduled_start`,
		tutorID, start, end, excludePublicID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return refs, nil
}

func (t *bookingTx) InsertBooking(ctx context.Context, booking *models.Booking) (*models.Booking, error) {
	const op = "storage.postgres.InsertBooking"

	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO bookings
			(public_id, tutor_id, learner_id, scheduled_start, scheduled_end,
			duration_minutes, hourly_rate_amount, currency, status,
			requested_at, confirmed_at, cancelled_at, completed_at,
			meeting_reference, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`,
		booking.PublicID, booking.TutorID, booking.LearnerID,
		booking.ScheduledStart, booking.ScheduledEnd,
		booking.DurationMinutes, booking.HourlyRateAmount, booking.Currency, booking.Status,
		nullTime(booking.RequestedAt), nullTime(booking.ConfirmedAt),
		nullTime(booking.CancelledAt), nullTime(booking.CompletedAt),
		booking.MeetingReference, booking.Metadata,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		var sqlErr *pq.Error
		if errors.As(err, &sqlErr) && sqlErr.Code == "23503" {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return booking, nil
}

func (t *bookingTx) UpdateBooking(ctx context.Context, booking *models.Booking) (*models.Booking, error) {
	const op = "storage.postgres.UpdateBooking"

	err := t.tx.QueryRowContext(ctx, `
		UPDATE bookings
		SET scheduled_start=$3, scheduled_end=$4, duration_minutes=$5,
			hourly_rate_amount=$6, currency=$7, status=$8,
			confirmed_at=$9, cancelled_at=$10, completed_at=$11,
			meeting_reference=$12, metadata=$13, updated_at=now()
		WHERE tutor_id=$1 AND public_id::text=$2
		RETURNING updated_at`,
		booking.TutorID, booking.PublicID,
		booking.ScheduledStart, booking.ScheduledEnd, booking.DurationMinutes,
		booking.HourlyRateAmount, booking.Currency, booking.Status,
		nullTime(booking.ConfirmedAt), nullTime(booking.CancelledAt), nullTime(booking.CompletedAt),
		booking.MeetingReference, booking.Metadata,
	).Scan(&booking.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return booking, nil
}
