package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hotelbook/internal/availability"
	"hotelbook/internal/models"
)

// bookedPerRoom counts, per room, the bookings overlapping [?1, ?2).
var bookedPerRoom = `SELECT room_id, COUNT(*) AS booked
    FROM bookings
    WHERE ` + availability.OverlapSQL("date_from", "date_to", "?1", "?2") + `
    GROUP BY room_id`

func (db *DB) CreateHotel(ctx context.Context, hotel *models.Hotel) error {
	result, err := db.ExecContext(ctx, `
        INSERT INTO hotels (name, location, services, rooms_quantity, image_id)
        VALUES (?, ?, ?, ?, ?)`,
		hotel.Name, hotel.Location, hotel.Services, hotel.RoomsQuantity, hotel.ImageID,
	)
	if err != nil {
		return fmt.Errorf("failed to create hotel: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	hotel.ID = id
	return nil
}

func (db *DB) GetHotel(ctx context.Context, id int64) (*models.Hotel, error) {
	var hotel models.Hotel
	err := db.GetContext(ctx, &hotel, `
        SELECT id, name, location, services, rooms_quantity, image_id
        FROM hotels WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrHotelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hotel: %w", err)
	}
	return &hotel, nil
}

// SearchHotels returns hotels whose location contains location and that
// still have at least one unit free for stay. A room contributes at most
// its quantity and never less than zero.
func (db *DB) SearchHotels(ctx context.Context, location string, stay models.Stay) ([]models.HotelAvailability, error) {
	query := `
        WITH booked AS (` + bookedPerRoom + `),
        hotel_left AS (
            SELECT r.hotel_id,
                   SUM(CASE WHEN r.quantity > COALESCE(b.booked, 0)
                            THEN r.quantity - COALESCE(b.booked, 0)
                            ELSE 0 END) AS rooms_left
            FROM rooms r
            LEFT JOIN booked b ON b.room_id = r.id
            GROUP BY r.hotel_id
        )
        SELECT h.id, h.name, h.location, h.services, h.rooms_quantity, h.image_id, hl.rooms_left
        FROM hotels h
        JOIN hotel_left hl ON hl.hotel_id = h.id
        WHERE h.location LIKE '%' || ?3 || '%' ESCAPE '\' AND hl.rooms_left > 0
        ORDER BY h.id`

	hotels := []models.HotelAvailability{}
	if err := db.SelectContext(ctx, &hotels, query, sqlDay(stay.From), sqlDay(stay.To), escapeLike(location)); err != nil {
		return nil, fmt.Errorf("failed to search hotels: %w", err)
	}
	return hotels, nil
}

// ListRooms returns every room of the hotel with quantity minus overlapping
// bookings. The value is not clamped here.
func (db *DB) ListRooms(ctx context.Context, hotelID int64, stay models.Stay) ([]models.RoomAvailability, error) {
	query := `
        WITH booked AS (` + bookedPerRoom + `)
        SELECT r.id, r.hotel_id, r.name, r.description, r.price, r.services, r.quantity, r.image_id,
               r.quantity - COALESCE(b.booked, 0) AS rooms_left
        FROM rooms r
        LEFT JOIN booked b ON b.room_id = r.id
        WHERE r.hotel_id = ?3
        ORDER BY r.id`

	rooms := []models.RoomAvailability{}
	if err := db.SelectContext(ctx, &rooms, query, sqlDay(stay.From), sqlDay(stay.To), hotelID); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}
