package postgres

import (
	"context"
	"fmt"
	"strings"

	"hotelbook/internal/availability"
	"hotelbook/internal/models"

	"github.com/jackc/pgx/v5"
)

const (
	hotelColumns = `id, name, location, services, rooms_quantity, image_id`
	roomColumns  = `id, hotel_id, name, description, price, services, quantity, image_id`
)

// bookedPerRoom counts, per room, the bookings overlapping [$1, $2).
var bookedPerRoom = `SELECT room_id, COUNT(*) AS booked
    FROM bookings
    WHERE ` + availability.OverlapSQL("date_from", "date_to", "$1", "$2") + `
    GROUP BY room_id`

var (
	overlappingCondition  = `room_id = $1 AND ` + availability.OverlapSQL("date_from", "date_to", "$2", "$3")
	countOverlappingQuery = `SELECT COUNT(*) FROM bookings WHERE ` + overlappingCondition
	listOverlappingQuery  = `SELECT ` + bookingColumns + ` FROM bookings WHERE ` + overlappingCondition + ` ORDER BY date_from, id`
)

func (s *Store) CreateHotel(ctx context.Context, hotel *models.Hotel) error {
	err := s.pool.QueryRow(ctx, `
        INSERT INTO hotels (name, location, services, rooms_quantity, image_id)
        VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		hotel.Name, hotel.Location, hotel.Services, hotel.RoomsQuantity, hotel.ImageID,
	).Scan(&hotel.ID)
	if err != nil {
		return fmt.Errorf("create hotel: %w", err)
	}
	return nil
}

func (s *Store) GetHotel(ctx context.Context, id int64) (*models.Hotel, error) {
	rows, _ := s.pool.Query(ctx, `SELECT `+hotelColumns+` FROM hotels WHERE id = $1`, id)
	hotel, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[models.Hotel])
	if isNotFound(err) {
		return nil, models.ErrHotelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get hotel: %w", err)
	}
	return hotel, nil
}

func (s *Store) CreateRoom(ctx context.Context, room *models.Room) error {
	err := s.pool.QueryRow(ctx, `
        INSERT INTO rooms (hotel_id, name, description, price, services, quantity, image_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		room.HotelID, room.Name, room.Description, room.Price, room.Services, room.Quantity, room.ImageID,
	).Scan(&room.ID)
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

func (s *Store) GetRoom(ctx context.Context, roomID int64) (*models.Room, error) {
	return getRoom(ctx, s.pool, roomID)
}

func (s *Store) CountOverlapping(ctx context.Context, roomID int64, stay models.Stay) (int, error) {
	return countOverlapping(ctx, s.pool, roomID, stay)
}

func (s *Store) ListOverlapping(ctx context.Context, roomID int64, stay models.Stay) ([]models.Booking, error) {
	return listOverlapping(ctx, s.pool, roomID, stay)
}

func (s *Store) UpdateRoomPrice(ctx context.Context, roomID, price int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE rooms SET price = $1 WHERE id = $2`, price, roomID)
	if err != nil {
		return fmt.Errorf("update room price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrRoomNotFound
	}
	return nil
}

func (s *Store) SearchHotels(ctx context.Context, location string, stay models.Stay) ([]models.HotelAvailability, error) {
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
        WHERE h.location ILIKE '%' || $3 || '%' AND hl.rooms_left > 0
        ORDER BY h.id`

	rows, _ := s.pool.Query(ctx, query, stay.From, stay.To, escapeLike(location))
	hotels, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.HotelAvailability])
	if err != nil {
		return nil, fmt.Errorf("search hotels: %w", err)
	}
	return hotels, nil
}

func (s *Store) ListRooms(ctx context.Context, hotelID int64, stay models.Stay) ([]models.RoomAvailability, error) {
	query := `
        WITH booked AS (` + bookedPerRoom + `)
        SELECT r.id, r.hotel_id, r.name, r.description, r.price, r.services, r.quantity, r.image_id,
               r.quantity - COALESCE(b.booked, 0) AS rooms_left
        FROM rooms r
        LEFT JOIN booked b ON b.room_id = r.id
        WHERE r.hotel_id = $3
        ORDER BY r.id`

	rows, _ := s.pool.Query(ctx, query, stay.From, stay.To, hotelID)
	rooms, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.RoomAvailability])
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

func getRoom(ctx context.Context, q querier, roomID int64) (*models.Room, error) {
	rows, _ := q.Query(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, roomID)
	room, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[models.Room])
	if isNotFound(err) {
		return nil, models.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

func countOverlapping(ctx context.Context, q querier, roomID int64, stay models.Stay) (int, error) {
	var n int
	if err := q.QueryRow(ctx, countOverlappingQuery, roomID, stay.From, stay.To).Scan(&n); err != nil {
		return 0, fmt.Errorf("count overlapping bookings: %w", err)
	}
	return n, nil
}

func listOverlapping(ctx context.Context, q querier, roomID int64, stay models.Stay) ([]models.Booking, error) {
	rows, _ := q.Query(ctx, listOverlappingQuery, roomID, stay.From, stay.To)
	bookings, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.Booking])
	if err != nil {
		return nil, fmt.Errorf("list overlapping bookings: %w", err)
	}
	return bookings, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(strings.TrimSpace(s))
}
