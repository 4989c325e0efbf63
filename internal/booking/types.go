package booking

import (
	"github.com/shopspring/decimal"
)

// Seat statuses the harness relies on. Any other status is kept as an opaque string.
const (
	StatusFree     = "FREE"
	StatusSelected = "SELECTED"
)

// ConflictStatus is the status the API answers when a seat is already taken.
const ConflictStatus = 419

// Seat is a snapshot of one seat as returned by the API.
type Seat struct {
	ID     int64           `json:"id"`
	Row    int             `json:"row"`
	Number int             `json:"number"`
	Status string          `json:"status"`
	Price  decimal.Decimal `json:"price"`
}

// Booking is a snapshot of one booking and the seats it holds.
type Booking struct {
	ID      int64  `json:"id"`
	EventID int64  `json:"event_id"`
	Seats   []Seat `json:"seats"`
}

// HasSeat reports whether the booking holds the given seat.
func (b Booking) HasSeat(seatID int64) bool {
	for _, s := range b.Seats {
		if s.ID == seatID {
			return true
		}
	}
	return false
}

// Created is the body of a successful booking creation.
type Created struct {
	ID int64 `json:"id"`
}

// Empty is the body type of actions whose response body is not inspected.
type Empty struct{}

// SeatQuery filters a seat listing. Zero values are left out of the query string.
type SeatQuery struct {
	EventID  int64
	Status   string
	Row      int
	Page     int
	PageSize int
}

// FindBooking returns the booking with the given id.
func FindBooking(bookings []Booking, id int64) (Booking, bool) {
	for _, b := range bookings {
		if b.ID == id {
			return b, true
		}
	}
	return Booking{}, false
}
