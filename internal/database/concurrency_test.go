package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"hotelbook/internal/availability"
	"hotelbook/internal/domain"
	"hotelbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFull = errors.New("full")

func admit(ctx context.Context, db *DB, req models.BookingRequest) error {
	return db.InRoomTx(ctx, req.RoomID, func(ctx context.Context, tx domain.RoomTx) error {
		room, left, err := availability.Check(ctx, tx, req.RoomID, req.Stay)
		if err != nil {
			return err
		}
		if left <= 0 {
			return errFull
		}
		return tx.InsertBooking(ctx, &models.Booking{
			RoomID: req.RoomID, UserID: req.UserID,
			DateFrom: req.Stay.From, DateTo: req.Stay.To, Price: room.Price,
		})
	})
}

func TestConcurrentAdmissions(t *testing.T) {
	for _, quantity := range []int{1, 2, 5} {
		t.Run("", func(t *testing.T) {
			logger := zerolog.Nop()
			db, err := NewDB(filepath.Join(t.TempDir(), "concurrency.db"), &logger)
			require.NoError(t, err)
			defer db.Close()

			f := seedRoom(t, db, "Altai", quantity, 100)
			req := models.BookingRequest{UserID: f.user.ID, RoomID: f.room.ID, Stay: stay("2024-07-01", "2024-07-03")}

			const numGoroutines = 20
			var wg sync.WaitGroup
			results := make(chan error, numGoroutines)
			for i := 0; i < numGoroutines; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					results <- admit(context.Background(), db, req)
				}()
			}
			wg.Wait()
			close(results)

			admitted, full := 0, 0
			for err := range results {
				switch {
				case err == nil:
					admitted++
				case errors.Is(err, errFull):
					full++
				default:
					t.Errorf("unexpected admission error: %v", err)
				}
			}

			assert.Equal(t, quantity, admitted)
			assert.Equal(t, numGoroutines-quantity, full)

			n, err := db.CountOverlapping(context.Background(), f.room.ID, req.Stay)
			require.NoError(t, err)
			assert.Equal(t, quantity, n)
		})
	}
}

func TestConcurrentAdmissions_InMemory(t *testing.T) {
	db := setupTestDB(t)
	f := seedRoom(t, db, "Altai", 1, 100)
	req := models.BookingRequest{UserID: f.user.ID, RoomID: f.room.ID, Stay: stay("2024-07-01", "2024-07-03")}

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := admit(context.Background(), db, req); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
}
