package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hotelbook/internal/availability"
	"hotelbook/internal/domain"
	"hotelbook/internal/events"
	"hotelbook/internal/logging"
	"hotelbook/internal/metrics"
	"hotelbook/internal/models"

	"github.com/rs/zerolog"
)

// errRoomFull rolls back an admission transaction that found no free unit.
var errRoomFull = errors.New("room fully booked")

type BookingService struct {
	repo          domain.Repository
	eventBus      domain.EventPublisher
	notifications domain.NotificationQueue
	notifyTasks   []string
	maxStayDays   int
	logger        *zerolog.Logger
}

// NewBookingService wires admission to its side effects. notifyTasks lists
// the outbox task types queued for every admitted booking.
func NewBookingService(repo domain.Repository, eventBus domain.EventPublisher, notifications domain.NotificationQueue, notifyTasks []string, maxStayDays int, logger *zerolog.Logger) *BookingService {
	if maxStayDays <= 0 {
		maxStayDays = models.DefaultMaxStayDays
	}
	return &BookingService{
		repo:          repo,
		eventBus:      eventBus,
		notifications: notifications,
		notifyTasks:   notifyTasks,
		maxStayDays:   maxStayDays,
		logger:        logger,
	}
}

func (s *BookingService) ValidateStay(stay models.Stay) error {
	return validateStay(stay, s.maxStayDays)
}

// validateStay accepts stays of one to maxStayDays nights.
func validateStay(stay models.Stay, maxStayDays int) error {
	if !stay.From.Before(stay.To) {
		return fmt.Errorf("%w: %s", models.ErrInvalidDateRange, stay)
	}
	if stay.Nights() > maxStayDays {
		return fmt.Errorf("%w: %d nights, at most %d", models.ErrStayTooLong, stay.Nights(), maxStayDays)
	}
	return nil
}

// AdmitBooking decides and records one booking atomically. The room's
// availability is read and the booking inserted under the room's admission
// lock, so concurrent requests for the same room are decided one at a time.
// Outbox tasks of the booking are inserted in the same transaction.
func (s *BookingService) AdmitBooking(ctx context.Context, req models.BookingRequest) models.AdmissionResult {
	log := logging.ForBooking(s.logger, req)
	start := time.Now()

	var (
		booking *models.Booking
		tasks   []models.OutboxTask
	)
	err := s.repo.InRoomTx(ctx, req.RoomID, func(ctx context.Context, tx domain.RoomTx) error {
		room, left, err := availability.Check(ctx, tx, req.RoomID, req.Stay)
		if err != nil {
			return err
		}
		if left <= 0 {
			return errRoomFull
		}

		b := &models.Booking{
			RoomID:   req.RoomID,
			UserID:   req.UserID,
			DateFrom: req.Stay.From,
			DateTo:   req.Stay.To,
			Price:    room.Price,
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}

		queued, err := s.insertNotices(ctx, tx, b)
		if err != nil {
			return err
		}
		booking, tasks = b, queued
		return nil
	})

	var result models.AdmissionResult
	switch {
	case err == nil:
		result = models.Admitted(booking)
		log.Info().Int64("booking_id", booking.ID).Int64("price", booking.Price).Msg("booking admitted")
	case errors.Is(err, errRoomFull):
		result = models.FullyBooked()
		log.Info().Msg("room fully booked")
	case errors.Is(err, availability.ErrOversold):
		metrics.IncOversold("admission")
		result = models.AdmissionFailed(err)
		log.Error().Err(err).Msg("room inventory oversold")
	default:
		result = models.AdmissionFailed(err)
		log.Error().Err(err).Msg("cannot add booking")
	}
	metrics.ObserveAdmission(result.Outcome.String(), time.Since(start))

	if result.Outcome == models.OutcomeAdmitted {
		// Side effects of a committed booking outlive the request.
		ctx = context.WithoutCancel(ctx)
		s.publishBooking(events.EventBookingCreated, booking)
		s.scheduleNotices(ctx, tasks)
	}
	return result
}

// RoomsLeft reports availability outside any transaction. An oversold room
// is reported as 0.
func (s *BookingService) RoomsLeft(ctx context.Context, roomID int64, stay models.Stay) (int, error) {
	left, err := availability.RoomsLeft(ctx, s.repo, roomID, stay)
	if errors.Is(err, availability.ErrOversold) {
		metrics.IncOversold("report")
		s.logger.Warn().Err(err).Int64("room_id", roomID).Str("stay", stay.String()).Msg("oversold room reported as full")
		return 0, nil
	}
	return left, err
}

func (s *BookingService) ListUserBookings(ctx context.Context, userID int64) ([]models.UserBooking, error) {
	return s.repo.ListUserBookings(ctx, userID)
}

func (s *BookingService) DeleteBooking(ctx context.Context, userID, bookingID int64) error {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.UserID != userID {
		return models.ErrBookingNotFound
	}
	if err := s.repo.DeleteUserBooking(ctx, userID, bookingID); err != nil {
		return err
	}

	s.logger.Info().Int64("booking_id", bookingID).Int64("user_id", userID).Msg("booking deleted")
	s.publishBooking(events.EventBookingDeleted, booking)
	return nil
}

// ExportBookings returns the bookings overlapping stay with hotel and room
// names, ordered by date.
func (s *BookingService) ExportBookings(ctx context.Context, stay models.Stay) ([]models.BookingReportRow, error) {
	if !stay.From.Before(stay.To) {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidDateRange, stay)
	}
	return s.repo.ListBookingsOverlapping(ctx, stay)
}

func (s *BookingService) publishBooking(eventType string, b *models.Booking) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID: b.ID,
		UserID:    b.UserID,
		RoomID:    b.RoomID,
		DateFrom:  b.DateFrom.Format(models.DateLayout),
		DateTo:    b.DateTo.Format(models.DateLayout),
		Price:     b.Price,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", b.ID).Msg("publish event error")
	}
}

// insertNotices writes one outbox task per configured type for b.
func (s *BookingService) insertNotices(ctx context.Context, tx domain.RoomTx, b *models.Booking) ([]models.OutboxTask, error) {
	if s.notifications == nil || len(s.notifyTasks) == 0 {
		return nil, nil
	}

	notice, err := tx.LoadNotice(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("build booking notice: %w", err)
	}

	tasks := make([]models.OutboxTask, 0, len(s.notifyTasks))
	for _, taskType := range s.notifyTasks {
		task, err := models.NewOutboxTask(taskType, notice)
		if err != nil {
			return nil, err
		}
		if err := tx.InsertOutboxTask(ctx, &task); err != nil {
			return nil, fmt.Errorf("insert outbox task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (s *BookingService) scheduleNotices(ctx context.Context, tasks []models.OutboxTask) {
	for _, task := range tasks {
		s.notifications.Schedule(ctx, task)
	}
}
