package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"hotelbook/internal/database"
	"hotelbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newFileDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "hotelbook.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func stay(t *testing.T, from, to string) models.Stay {
	t.Helper()
	s, err := models.ParseStay(from, to)
	require.NoError(t, err)
	return s
}

type fixture struct {
	db    *database.DB
	hotel *models.Hotel
	room  *models.Room
	user  *models.User
}

func seed(t *testing.T, db *database.DB, location string, quantity int, price int64) fixture {
	t.Helper()
	ctx := context.Background()

	hotel := &models.Hotel{Name: "Hotel " + location, Location: location}
	require.NoError(t, db.CreateHotel(ctx, hotel))
	room := &models.Room{HotelID: hotel.ID, Name: "Standard", Price: price, Quantity: quantity}
	require.NoError(t, db.CreateRoom(ctx, room))
	user := &models.User{Email: location + "@example.com", HashedPassword: "x"}
	require.NoError(t, db.CreateUser(ctx, user))
	return fixture{db: db, hotel: hotel, room: room, user: user}
}

type publishedEvent struct {
	Type    string
	Payload interface{}
}

type fakePublisher struct {
	mu      sync.Mutex
	events  []publishedEvent
	onEvent func(eventType string)
}

func (p *fakePublisher) PublishJSON(eventType string, payload interface{}) error {
	p.mu.Lock()
	p.events = append(p.events, publishedEvent{Type: eventType, Payload: payload})
	hook := p.onEvent
	p.mu.Unlock()
	if hook != nil {
		hook(eventType)
	}
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type queuedNotice struct {
	TaskType string
	Notice   models.BookingNotice
	Err      error
}

type fakeQueue struct {
	mu     sync.Mutex
	queued []queuedNotice
}

func (q *fakeQueue) Schedule(ctx context.Context, task models.OutboxTask) {
	q.mu.Lock()
	defer q.mu.Unlock()
	notice, err := task.Notice()
	if err != nil {
		q.queued = append(q.queued, queuedNotice{TaskType: task.TaskType, Err: err})
		return
	}
	q.queued = append(q.queued, queuedNotice{TaskType: task.TaskType, Notice: *notice, Err: ctx.Err()})
}
