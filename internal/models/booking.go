package models

import "time"

type Booking struct {
	ID        int64     `json:"id" db:"id"`
	RoomID    int64     `json:"room_id" db:"room_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	DateFrom  time.Time `json:"date_from" db:"date_from"`
	DateTo    time.Time `json:"date_to" db:"date_to"`
	Price     int64     `json:"price" db:"price"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (b *Booking) Stay() Stay {
	return Stay{From: b.DateFrom, To: b.DateTo}
}

func (b *Booking) TotalDays() int {
	return b.Stay().Nights()
}

// TotalCost uses the price captured when the booking was admitted.
func (b *Booking) TotalCost() int64 {
	return int64(b.TotalDays()) * b.Price
}

// BookingRequest is a validated admission request.
type BookingRequest struct {
	UserID int64
	RoomID int64
	Stay   Stay
}

// BookingReportRow is a booking joined with its room and hotel for exports.
type BookingReportRow struct {
	Booking
	RoomName  string `db:"room_name"`
	HotelName string `db:"hotel_name"`
	Location  string `db:"location"`
}

// UserBooking is a booking listed together with its room. Room fields are
// empty when the room row is gone.
type UserBooking struct {
	Booking
	RoomName        string   `db:"room_name"`
	RoomDescription string   `db:"room_description"`
	RoomServices    Services `db:"room_services"`
	RoomImageID     int64    `db:"room_image_id"`
}

// AdmissionOutcome is the kind of an admission decision.
type AdmissionOutcome int

const (
	OutcomeFailed AdmissionOutcome = iota
	OutcomeAdmitted
	OutcomeFullyBooked
)

func (o AdmissionOutcome) String() string {
	switch o {
	case OutcomeAdmitted:
		return "admitted"
	case OutcomeFullyBooked:
		return "fully_booked"
	default:
		return "failed"
	}
}

// AdmissionResult carries Booking only when Outcome is OutcomeAdmitted and
// Err only when it is OutcomeFailed.
type AdmissionResult struct {
	Outcome AdmissionOutcome
	Booking *Booking
	Err     error
}

func Admitted(b *Booking) AdmissionResult {
	return AdmissionResult{Outcome: OutcomeAdmitted, Booking: b}
}

func FullyBooked() AdmissionResult {
	return AdmissionResult{Outcome: OutcomeFullyBooked}
}

func AdmissionFailed(err error) AdmissionResult {
	return AdmissionResult{Outcome: OutcomeFailed, Err: err}
}

// BookingNotice is the outbox payload for side effects of an admitted booking.
type BookingNotice struct {
	Booking   Booking `json:"booking"`
	Email     string  `json:"email"`
	HotelName string  `json:"hotel_name"`
	RoomName  string  `json:"room_name"`
}
