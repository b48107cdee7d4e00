package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"hotelbook/internal/domain"
	"hotelbook/internal/models"
)

// ErrOversold means some night of a stay holds more bookings than the room
// has units.
var ErrOversold = errors.New("room inventory oversold")

// Remaining returns quantity - overlapping, floored at 0. Overlapping
// bookings need not share a night, so a count above quantity alone says
// nothing about the inventory being inconsistent.
func Remaining(quantity, overlapping int) int {
	if left := quantity - overlapping; left > 0 {
		return left
	}
	return 0
}

// PeakOccupancy returns the largest number of bookings occupying a single
// night of window.
func PeakOccupancy(bookings []models.Booking, window models.Stay) int {
	type edge struct {
		at    time.Time
		delta int
	}

	edges := make([]edge, 0, 2*len(bookings))
	for _, b := range bookings {
		if !Overlaps(b.DateFrom, b.DateTo, window.From, window.To) {
			continue
		}
		from, to := b.DateFrom, b.DateTo
		if from.Before(window.From) {
			from = window.From
		}
		if to.After(window.To) {
			to = window.To
		}
		edges = append(edges, edge{at: from, delta: 1}, edge{at: to, delta: -1})
	}

	// A check-out frees the unit for a check-in on the same day.
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].at.Equal(edges[j].at) {
			return edges[i].delta < edges[j].delta
		}
		return edges[i].at.Before(edges[j].at)
	})

	peak, cur := 0, 0
	for _, e := range edges {
		cur += e.delta
		if cur > peak {
			peak = cur
		}
	}
	return peak
}

// Check reads the room and the number of its units left for stay through r.
// When more bookings overlap stay than the room has units, the overlapping
// rows are swept night by night and ErrOversold is returned only if one
// night really exceeds the quantity. The returned room is valid even then.
func Check(ctx context.Context, r domain.RoomReader, roomID int64, stay models.Stay) (*models.Room, int, error) {
	room, err := r.GetRoom(ctx, roomID)
	if err != nil {
		return nil, 0, err
	}

	overlapping, err := r.CountOverlapping(ctx, roomID, stay)
	if err != nil {
		return nil, 0, fmt.Errorf("count overlapping bookings: %w", err)
	}
	if overlapping <= room.Quantity {
		return room, Remaining(room.Quantity, overlapping), nil
	}

	bookings, err := r.ListOverlapping(ctx, roomID, stay)
	if err != nil {
		return nil, 0, fmt.Errorf("list overlapping bookings: %w", err)
	}
	if peak := PeakOccupancy(bookings, stay); peak > room.Quantity {
		return room, 0, fmt.Errorf("%w: quantity %d, %d bookings on one night", ErrOversold, room.Quantity, peak)
	}
	return room, 0, nil
}

func RoomsLeft(ctx context.Context, r domain.RoomReader, roomID int64, stay models.Stay) (int, error) {
	_, left, err := Check(ctx, r, roomID, stay)
	return left, err
}
