package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"hotelbook/internal/config"
	"hotelbook/internal/domain"
	"hotelbook/internal/importer"
	"hotelbook/internal/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the application services the HTTP API exposes. Cache and
// Importer are optional.
type Services struct {
	Bookings domain.BookingService
	Catalog  domain.CatalogService
	Users    domain.UserService
	Cache    domain.SearchCache
	Importer *importer.Importer
	Health   Pinger
}

// HTTPServer exposes the JSON API alongside the gRPC service.
type HTTPServer struct {
	cfg          config.APIConfig
	svc          Services
	submitLimit  int
	submitWindow time.Duration
	validate     *validator.Validate
	server       *http.Server
	auth         *HTTPAuth
	log          zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, booking config.BookingConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:          cfg,
		svc:          svc,
		submitLimit:  booking.SubmitLimit,
		submitWindow: time.Duration(booking.SubmitWindowSeconds) * time.Second,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		auth:         NewHTTPAuth(cfg),
		log:          zerolog.Nop(),
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	router := mux.NewRouter()
	router.Use(srv.instrument)
	router.HandleFunc("/healthz", srv.handleHealth).Methods(http.MethodGet)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/auth/register", srv.handleRegister).Methods(http.MethodPost)
	v1.HandleFunc("/auth/login", srv.handleLogin).Methods(http.MethodPost)
	v1.HandleFunc("/users/me", srv.handleMe).Methods(http.MethodGet)
	v1.HandleFunc("/hotels/id/{hotel_id:[0-9]+}", srv.handleGetHotel).Methods(http.MethodGet)
	v1.HandleFunc("/hotels/{hotel_id:[0-9]+}/rooms", srv.handleListRooms).Methods(http.MethodGet)
	v1.HandleFunc("/hotels/{location}", srv.handleSearchHotels).Methods(http.MethodGet)
	v1.HandleFunc("/rooms/{room_id:[0-9]+}/availability", srv.handleRoomAvailability).Methods(http.MethodGet)
	v1.HandleFunc("/bookings", srv.handleListBookings).Methods(http.MethodGet)
	v1.HandleFunc("/bookings", srv.handleCreateBooking).Methods(http.MethodPost)
	v1.HandleFunc("/bookings/{booking_id:[0-9]+}", srv.handleDeleteBooking).Methods(http.MethodDelete)
	v1.HandleFunc("/import/{table}", srv.handleImport).Methods(http.MethodPost)
	v1.HandleFunc("/export/bookings", srv.handleExportBookings).Methods(http.MethodGet)

	var handler http.Handler = srv.auth.Wrap(router)
	if len(cfg.CORS.AllowedOrigins) > 0 {
		handler = handlers.CORS(
			handlers.AllowedOrigins(cfg.CORS.AllowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type", cfg.HTTP.UserHeader, srv.auth.keys.apiKeyHeader(), srv.auth.keys.extraHeader()}),
		)(handler)
	}
	handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{log: srv.log}),
		handlers.PrintRecoveryStack(true),
	)(handler)
	handler = requestIDMiddleware(handler)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	cfg     config.APIConfig
	keys    *keyring
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{cfg: cfg, keys: newKeyring(&cfg), limiter: newRateLimiter(&cfg)}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled || r.URL.Path == "/healthz" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.Enabled {
			client, err := a.keys.authenticate(r.Header.Get(a.keys.apiKeyHeader()), r.Header.Get(a.keys.extraHeader()))
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			if err := authorize(client, requiredPermissionHTTP(r)); err != nil {
				writeError(w, http.StatusForbidden, err.Error())
				return
			}
		}

		if !a.limiter.allow(a.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requiredPermissionHTTP(r *http.Request) string {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/api/v1/import/"), strings.HasPrefix(path, "/api/v1/export/"):
		return PermAdmin
	case strings.HasPrefix(path, "/api/v1/bookings"):
		return PermWriteBookings
	case strings.HasPrefix(path, "/api/v1/hotels/"), strings.HasPrefix(path, "/api/v1/rooms/"):
		return PermReadCatalog
	default:
		return ""
	}
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.keys.apiKeyHeader())); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// instrument runs after route matching so requests are counted per route
// template rather than per concrete path.
func (s *HTTPServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		metrics.IncHTTP(endpoint)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		ev := s.log.Info()
		if recorder.status >= http.StatusInternalServerError {
			ev = s.log.Error()
		}
		ev.Str("request_id", r.Header.Get(requestIDHeader)).
			Str("method", r.Method).
			Str("endpoint", endpoint).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type recoveryLogger struct {
	log zerolog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error().Msg(fmt.Sprint(v...))
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
