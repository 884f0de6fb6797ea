package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tutordesk-service/internal/models"
	"tutordesk-service/internal/service"
	"tutordesk-service/pkg/response"

	"github.com/lib/pq"
)

const slotColumns = `id, tutor_id, start_at, end_at, status,
	is_recurring, recurrence_rule, metadata, created_at, updated_at`

func scanSlot(row bookingScanner) (*models.AvailabilitySlot, error) {
	var slot models.AvailabilitySlot

	err := row.Scan(
		&slot.ID, &slot.TutorID, &slot.StartAt, &slot.EndAt, &slot.Status,
		&slot.IsRecurring, &slot.RecurrenceRule, &slot.Metadata,
		&slot.CreatedAt, &slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &slot, nil
}

func (s *Storage) ListSlots(ctx context.Context, tutorID string, filters *service.SlotFilters) ([]*models.AvailabilitySlot, int, error) {
	const op = "storage.postgres.ListSlots"

	status := filters.Status
	if status == "" {
		status = "all"
	}

	where := `
		WHERE tutor_id=$1
		AND ($2 = 'all' OR status = $2)
		AND ($3::timestamptz IS NULL OR end_at > $3)
		AND ($4::timestamptz IS NULL OR start_at < $4)`

	var from, to sql.NullTime
	if filters.From != nil {
		from = sql.NullTime{Time: *filters.From, Valid: true}
	}
	if filters.To != nil {
		to = sql.NullTime{Time: *filters.To, Valid: true}
	}

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM availability_slots`+where,
		tutorID, status, from, to,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	offset := (filters.Page - 1) * filters.PerPage

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots`+where+`
		ORDER BY start_at
		LIMIT $5 OFFSET $6`,
		tutorID, status, from, to, filters.PerPage, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var slots []*models.AvailabilitySlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}

		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return slots, total, nil
}

func (s *Storage) GetSlot(ctx context.Context, tutorID, slotID string) (*models.AvailabilitySlot, error) {
	const op = "storage.postgres.GetSlot"

	row := s.db.QueryRowContext(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE tutor_id=$1 AND id::text=$2`,
		tutorID, slotID,
	)

	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return slot, nil
}

func (s *Storage) CreateSlot(ctx context.Context, slot *models.AvailabilitySlot) (*models.AvailabilitySlot, error) {
	const op = "storage.postgres.CreateSlot"

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO availability_slots
			(tutor_id, start_at, end_at, status, is_recurring, recurrence_rule, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		slot.TutorID, slot.StartAt, slot.EndAt, slot.Status,
		slot.IsRecurring, slot.RecurrenceRule, slot.Metadata,
	).Scan(&slot.ID, &slot.CreatedAt, &slot.UpdatedAt)
	if err != nil {
		var sqlErr *pq.Error
		if errors.As(err, &sqlErr) && sqlErr.Code == "23503" {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return slot, nil
}

func (s *Storage) UpdateSlot(ctx context.Context, slot *models.AvailabilitySlot) (*models.AvailabilitySlot, error) {
	const op = "storage.postgres.UpdateSlot"

	err := s.db.QueryRowContext(ctx, `
		UPDATE availability_slots
		SET start_at=$3, end_at=$4, status=$5, is_recurring=$6,
			recurrence_rule=$7, metadata=$8, updated_at=now()
		WHERE tutor_id=$1 AND id::text=$2
		RETURNING updated_at`,
		slot.TutorID, slot.ID,
		slot.StartAt, slot.EndAt, slot.Status, slot.IsRecurring,
		slot.RecurrenceRule, slot.Metadata,
	).Scan(&slot.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return slot, nil
}

func (s *Storage) DeleteSlot(ctx context.Context, tutorID, slotID string) error {
	const op = "storage.postgres.DeleteSlot"

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM availability_slots WHERE tutor_id=$1 AND id::text=$2`,
		tutorID, slotID,
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
