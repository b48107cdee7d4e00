package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hotelbook/internal/availability"
	"hotelbook/internal/models"

	"github.com/jmoiron/sqlx"
)

var (
	overlappingCondition  = `room_id = ?1 AND ` + availability.OverlapSQL("date_from", "date_to", "?2", "?3")
	countOverlappingQuery = `SELECT COUNT(*) FROM bookings WHERE ` + overlappingCondition
	listOverlappingQuery  = `SELECT ` + bookingColumns + ` FROM bookings WHERE ` + overlappingCondition + ` ORDER BY date_from, id`
)

func (db *DB) CreateRoom(ctx context.Context, room *models.Room) error {
	result, err := db.ExecContext(ctx, `
        INSERT INTO rooms (hotel_id, name, description, price, services, quantity, image_id)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		room.HotelID, room.Name, room.Description, room.Price, room.Services, room.Quantity, room.ImageID,
	)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	room.ID = id
	return nil
}

func (db *DB) GetRoom(ctx context.Context, roomID int64) (*models.Room, error) {
	return getRoom(ctx, db, roomID)
}

func (db *DB) CountOverlapping(ctx context.Context, roomID int64, stay models.Stay) (int, error) {
	return countOverlapping(ctx, db, roomID, stay)
}

func (db *DB) ListOverlapping(ctx context.Context, roomID int64, stay models.Stay) ([]models.Booking, error) {
	return listOverlapping(ctx, db, roomID, stay)
}

// UpdateRoomPrice affects bookings admitted afterwards only.
func (db *DB) UpdateRoomPrice(ctx context.Context, roomID, price int64) error {
	result, err := db.ExecContext(ctx, `UPDATE rooms SET price = ? WHERE id = ?`, price, roomID)
	if err != nil {
		return fmt.Errorf("failed to update room price: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return models.ErrRoomNotFound
	}
	return nil
}

func getRoom(ctx context.Context, q sqlx.QueryerContext, roomID int64) (*models.Room, error) {
	var room models.Room
	err := sqlx.GetContext(ctx, q, &room, `
        SELECT id, hotel_id, name, description, price, services, quantity, image_id
        FROM rooms WHERE id = ?`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

func countOverlapping(ctx context.Context, q sqlx.QueryerContext, roomID int64, stay models.Stay) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, countOverlappingQuery, roomID, sqlDay(stay.From), sqlDay(stay.To)); err != nil {
		return 0, fmt.Errorf("failed to count overlapping bookings: %w", err)
	}
	return n, nil
}

func listOverlapping(ctx context.Context, q sqlx.QueryerContext, roomID int64, stay models.Stay) ([]models.Booking, error) {
	bookings := []models.Booking{}
	if err := sqlx.SelectContext(ctx, q, &bookings, listOverlappingQuery, roomID, sqlDay(stay.From), sqlDay(stay.To)); err != nil {
		return nil, fmt.Errorf("failed to list overlapping bookings: %w", err)
	}
	return bookings, nil
}
