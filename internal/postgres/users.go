package postgres

import (
	"context"
	"fmt"
	"strings"

	"hotelbook/internal/models"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, hashed_password, created_at`

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = strings.TrimSpace(user.Email)
	err := s.pool.QueryRow(ctx, `
        INSERT INTO users (email, hashed_password) VALUES ($1, $2) RETURNING id, created_at`,
		user.Email, user.HashedPassword,
	).Scan(&user.ID, &user.CreatedAt)
	if isUniqueViolation(err) {
		return models.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
}

func (s *Store) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	rows, _ := s.pool.Query(ctx, query, arg)
	user, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[models.User])
	if isNotFound(err) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
