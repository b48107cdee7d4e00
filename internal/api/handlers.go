package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hotelbook/internal/export"
	"hotelbook/internal/importer"
	"hotelbook/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

const maxImportBytes = 32 << 20

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type createBookingRequest struct {
	RoomID   int64  `json:"room_id" validate:"required,gt=0"`
	DateFrom string `json:"date_from" validate:"required,datetime=2006-01-02"`
	DateTo   string `json:"date_to" validate:"required,datetime=2006-01-02"`
}

type stayQuery struct {
	DateFrom string `validate:"required,datetime=2006-01-02"`
	DateTo   string `validate:"required,datetime=2006-01-02"`
}

type bookingResponse struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	UserID    int64     `json:"user_id"`
	DateFrom  string    `json:"date_from"`
	DateTo    string    `json:"date_to"`
	Price     int64     `json:"price"`
	TotalDays int       `json:"total_days"`
	TotalCost int64     `json:"total_cost"`
	CreatedAt time.Time `json:"created_at"`
}

func newBookingResponse(b *models.Booking) bookingResponse {
	return bookingResponse{
		ID:        b.ID,
		RoomID:    b.RoomID,
		UserID:    b.UserID,
		DateFrom:  b.DateFrom.Format(models.DateLayout),
		DateTo:    b.DateTo.Format(models.DateLayout),
		Price:     b.Price,
		TotalDays: b.TotalDays(),
		TotalCost: b.TotalCost(),
		CreatedAt: b.CreatedAt,
	}
}

// userBookingResponse is a listed booking with the room it is for.
type userBookingResponse struct {
	bookingResponse
	RoomName        string          `json:"room_name"`
	RoomDescription string          `json:"room_description"`
	RoomServices    models.Services `json:"room_services"`
	RoomImageID     int64           `json:"room_image_id"`
}

func newUserBookingResponse(b *models.UserBooking) userBookingResponse {
	services := b.RoomServices
	if services == nil {
		services = models.Services{}
	}
	return userBookingResponse{
		bookingResponse: newBookingResponse(&b.Booking),
		RoomName:        b.RoomName,
		RoomDescription: b.RoomDescription,
		RoomServices:    services,
		RoomImageID:     b.RoomImageID,
	}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health != nil {
		if err := s.svc.Health.Ping(r.Context()); err != nil {
			s.log.Error().Err(err).Msg("health check failed")
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if !s.decode(w, r, &body) {
		return
	}

	user, err := s.svc.Users.Register(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if !s.decode(w, r, &body) {
		return
	}

	user, err := s.svc.Users.Authenticate(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"user_id": user.ID})
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	user, err := s.svc.Users.GetUser(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleSearchHotels(w http.ResponseWriter, r *http.Request) {
	stay, ok := s.stayFromQuery(w, r)
	if !ok {
		return
	}

	hotels, err := s.svc.Catalog.SearchHotels(r.Context(), mux.Vars(r)["location"], stay)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if hotels == nil {
		hotels = []models.HotelAvailability{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"hotels": hotels})
}

func (s *HTTPServer) handleGetHotel(w http.ResponseWriter, r *http.Request) {
	hotelID, ok := pathID(w, r, "hotel_id")
	if !ok {
		return
	}

	hotel, err := s.svc.Catalog.GetHotel(r.Context(), hotelID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hotel)
}

func (s *HTTPServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	hotelID, ok := pathID(w, r, "hotel_id")
	if !ok {
		return
	}
	stay, ok := s.stayFromQuery(w, r)
	if !ok {
		return
	}

	rooms, err := s.svc.Catalog.ListRooms(r.Context(), hotelID, stay)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if rooms == nil {
		rooms = []models.RoomAvailability{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func (s *HTTPServer) handleRoomAvailability(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "room_id")
	if !ok {
		return
	}
	stay, ok := s.stayFromQuery(w, r)
	if !ok {
		return
	}
	if !stay.From.Before(stay.To) {
		s.writeServiceError(w, models.ErrInvalidDateRange)
		return
	}

	left, err := s.svc.Bookings.RoomsLeft(r.Context(), roomID, stay)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room_id":    roomID,
		"date_from":  stay.From.Format(models.DateLayout),
		"date_to":    stay.To.Format(models.DateLayout),
		"rooms_left": left,
	})
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	bookings, err := s.svc.Bookings.ListUserBookings(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	out := make([]userBookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, newUserBookingResponse(&bookings[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": out})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	if !s.allowSubmit(r, userID) {
		writeError(w, http.StatusTooManyRequests, "too many booking requests")
		return
	}

	var body createBookingRequest
	if !s.decode(w, r, &body) {
		return
	}
	stay, err := models.ParseStay(body.DateFrom, body.DateTo)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.Bookings.ValidateStay(stay); err != nil {
		s.writeServiceError(w, err)
		return
	}

	result := s.svc.Bookings.AdmitBooking(r.Context(), models.BookingRequest{UserID: userID, RoomID: body.RoomID, Stay: stay})
	switch result.Outcome {
	case models.OutcomeAdmitted:
		writeJSON(w, http.StatusCreated, newBookingResponse(result.Booking))
	case models.OutcomeFullyBooked:
		writeError(w, http.StatusConflict, "room fully booked")
	default:
		if errors.Is(result.Err, models.ErrRoomNotFound) {
			writeError(w, http.StatusNotFound, models.ErrRoomNotFound.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "cannot add booking")
	}
}

// allowSubmit applies the per-user submission limit. A cache failure lets
// the request through.
func (s *HTTPServer) allowSubmit(r *http.Request, userID int64) bool {
	if s.svc.Cache == nil || s.submitLimit <= 0 || s.submitWindow <= 0 {
		return true
	}
	allowed, err := s.svc.Cache.CheckRateLimit(r.Context(), userID, s.submitLimit, s.submitWindow)
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("submit rate limit check failed")
		return true
	}
	return allowed
}

func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	bookingID, ok := pathID(w, r, "booking_id")
	if !ok {
		return
	}

	if err := s.svc.Bookings.DeleteBooking(r.Context(), userID, bookingID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.svc.Importer == nil {
		writeError(w, http.StatusNotImplemented, "import is disabled")
		return
	}
	table := mux.Vars(r)["table"]

	n, err := s.svc.Importer.Import(r.Context(), table, http.MaxBytesReader(w, r.Body, maxImportBytes))
	switch {
	case errors.Is(err, importer.ErrUnknownTable):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.log.Warn().Err(err).Str("table", table).Msg("csv import rejected")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": table, "rows": n})
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	stay, ok := s.stayFromQuery(w, r)
	if !ok {
		return
	}

	rows, err := s.svc.Bookings.ExportBookings(r.Context(), stay)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteBookings(&buf, stay, rows); err != nil {
		s.log.Error().Err(err).Msg("render bookings export")
		writeError(w, http.StatusInternalServerError, "cannot render export")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(stay)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("field %s failed %s validation", strings.ToLower(fe.Field()), fe.Tag())
	}
	return err.Error()
}

func (s *HTTPServer) stayFromQuery(w http.ResponseWriter, r *http.Request) (models.Stay, bool) {
	q := stayQuery{
		DateFrom: strings.TrimSpace(r.URL.Query().Get("date_from")),
		DateTo:   strings.TrimSpace(r.URL.Query().Get("date_to")),
	}
	if err := s.validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, "date_from and date_to are required in YYYY-MM-DD format")
		return models.Stay{}, false
	}
	stay, err := models.ParseStay(q.DateFrom, q.DateTo)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return models.Stay{}, false
	}
	return stay, true
}

func (s *HTTPServer) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get(s.cfg.HTTP.UserHeader))
	id, err := strconv.ParseInt(raw, 10, 64)
	if raw == "" || err != nil || id <= 0 {
		writeError(w, http.StatusUnauthorized, "missing or invalid user id")
		return 0, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrHotelNotFound),
		errors.Is(err, models.ErrRoomNotFound),
		errors.Is(err, models.ErrBookingNotFound),
		errors.Is(err, models.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrInvalidDate),
		errors.Is(err, models.ErrInvalidDateRange),
		errors.Is(err, models.ErrStayTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrUserExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
