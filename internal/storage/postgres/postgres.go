package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tutordesk-service/internal/models"
	"tutordesk-service/internal/service"
	"tutordesk-service/pkg/response"
)

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

func (s *Storage) GetTutorByUserID(ctx context.Context, userID string) (*models.TutorProfile, error) {
	const op = "storage.postgres.GetTutorByUserID"

	var tutor models.TutorProfile

	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, display_name, currency FROM tutor_profiles WHERE user_id=$1`,
		userID,
	).Scan(&tutor.ID, &tutor.UserID, &tutor.DisplayName, &tutor.Currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &tutor, nil
}

func (s *Storage) Begin(ctx context.Context) (service.BookingTx, error) {
	const op = "storage.postgres.Begin"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &bookingTx{tx: tx}, nil
}
