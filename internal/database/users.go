package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"hotelbook/internal/models"
)

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = strings.TrimSpace(user.Email)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	result, err := db.ExecContext(ctx, `
        INSERT INTO users (email, hashed_password, created_at) VALUES (?, ?, ?)`,
		user.Email, user.HashedPassword, user.CreatedAt,
	)
	if isUniqueViolation(err) {
		return models.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return db.getUser(ctx, `SELECT id, email, hashed_password, created_at FROM users WHERE id = ?`, id)
}

// GetUserByEmail matches case-insensitively.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.getUser(ctx, `SELECT id, email, hashed_password, created_at FROM users WHERE email = ?`,
		strings.TrimSpace(email))
}

func (db *DB) getUser(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	err := db.GetContext(ctx, &user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
