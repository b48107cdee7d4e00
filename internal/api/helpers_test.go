package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"hotelbook/internal/config"
	"hotelbook/internal/database"
	"hotelbook/internal/events"
	"hotelbook/internal/importer"
	"hotelbook/internal/models"
	"hotelbook/internal/repository"
	"hotelbook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db       *database.DB
	bookings *service.BookingService
	ts       *httptest.Server
	hotel    *models.Hotel
	room     *models.Room
	user     *models.User
}

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true, UserHeader: "X-User-ID"},
	}
}

// newTestEnv serves the full HTTP API over an in-memory database seeded with
// one hotel in Altai holding a room of the given quantity priced at 3000.
func newTestEnv(t *testing.T, cfg config.APIConfig, booking config.BookingConfig, quantity int) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hotel := &models.Hotel{Name: "Cosmos", Location: "Altai", Services: models.Services{"wifi"}}
	require.NoError(t, db.CreateHotel(ctx, hotel))
	room := &models.Room{HotelID: hotel.ID, Name: "Deluxe", Price: 3000, Quantity: quantity}
	require.NoError(t, db.CreateRoom(ctx, room))
	user := &models.User{Email: "guest@example.com", HashedPassword: "x"}
	require.NoError(t, db.CreateUser(ctx, user))

	bus := events.NewEventBus()
	cache := repository.NewMemorySearchCache()
	bookings := service.NewBookingService(db, bus, nil, nil, booking.MaxStayDays, &logger)
	catalog := service.NewCatalogService(db, cache, bus, 0, booking.MaxStayDays, &logger)
	catalog.SubscribeInvalidation(bus)

	srv := NewHTTPServer(cfg, booking, Services{
		Bookings: bookings,
		Catalog:  catalog,
		Users:    service.NewUserService(db, &logger),
		Cache:    cache,
		Importer: importer.New(db, bus, &logger),
		Health:   db,
	}, &logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{db: db, bookings: bookings, ts: ts, hotel: hotel, room: room, user: user}
}

func (e *testEnv) do(t *testing.T, method, path string, userID int64, body any, headers ...string) *http.Response {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, r)
	require.NoError(t, err)
	if userID > 0 {
		req.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}
