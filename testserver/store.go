package testserver

import (
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Seat statuses.
const (
	StatusFree     = "FREE"
	StatusSelected = "SELECTED"
)

var (
	errNotFound  = errors.New("not found")
	errForbidden = errors.New("forbidden")
	errTaken     = errors.New("seat already taken")
)

type seat struct {
	ID        int64
	EventID   int64
	Row       int
	Number    int
	Status    string
	Price     decimal.Decimal
	BookingID int64
}

type booking struct {
	ID      int64
	EventID int64
	Owner   string
	Seats   []int64
}

// store is the whole server state behind one mutex.
type store struct {
	mu       sync.Mutex
	layout   Layout
	seats    map[int64]*seat
	order    []int64
	bookings map[int64]*booking
	nextID   int64
}

func newStore(layout Layout) *store {
	st := &store{layout: layout}
	st.reset()
	return st
}

// reset frees every seat and drops every booking. Idempotent.
func (st *store) reset() {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.seats = make(map[int64]*seat)
	st.order = st.order[:0]
	st.bookings = make(map[int64]*booking)
	st.nextID = 0

	id := int64(0)
	for _, eventID := range st.layout.Events {
		for row := 1; row <= st.layout.Rows; row++ {
			for n := 1; n <= st.layout.SeatsPerRow; n++ {
				id++
				st.seats[id] = &seat{
					ID:      id,
					EventID: eventID,
					Row:     row,
					Number:  n,
					Status:  StatusFree,
					Price:   st.layout.price(row),
				}
				st.order = append(st.order, id)
			}
		}
	}
}

type seatQuery struct {
	EventID  int64
	Status   string
	Row      int
	Page     int
	PageSize int
}

func (st *store) listSeats(q seatQuery) []seat {
	st.mu.Lock()
	defer st.mu.Unlock()

	skip := (q.Page - 1) * q.PageSize
	out := make([]seat, 0, q.PageSize)
	for _, id := range st.order {
		s := st.seats[id]
		if s.EventID != q.EventID {
			continue
		}
		if q.Status != "" && s.Status != q.Status {
			continue
		}
		if q.Row != 0 && s.Row != q.Row {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, *s)
		if len(out) == q.PageSize {
			break
		}
	}
	return out
}

func (st *store) createBooking(owner string, eventID int64) int64 {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.nextID++
	st.bookings[st.nextID] = &booking{ID: st.nextID, EventID: eventID, Owner: owner}
	return st.nextID
}

// bookingView is a booking with its seats resolved.
type bookingView struct {
	ID      int64
	EventID int64
	Seats   []seat
}

func (st *store) listBookings(owner string) []bookingView {
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]bookingView, 0)
	for _, b := range st.bookings {
		if b.Owner != owner {
			continue
		}
		v := bookingView{ID: b.ID, EventID: b.EventID, Seats: make([]seat, 0, len(b.Seats))}
		for _, id := range b.Seats {
			v.Seats = append(v.Seats, *st.seats[id])
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// selectSeat attaches a free seat to the caller's booking. With allowTaken
// the free check is skipped, which lets two bookings hold the same seat.
func (st *store) selectSeat(owner string, bookingID, seatID int64, allowTaken bool) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	b, ok := st.bookings[bookingID]
	if !ok {
		return errNotFound
	}
	if b.Owner != owner {
		return errForbidden
	}
	s, ok := st.seats[seatID]
	if !ok || s.EventID != b.EventID {
		return errNotFound
	}
	if s.Status != StatusFree && !allowTaken {
		return errTaken
	}

	s.Status = StatusSelected
	s.BookingID = bookingID
	b.Seats = append(b.Seats, seatID)
	return nil
}

// releaseSeat frees a seat held by one of the caller's bookings.
func (st *store) releaseSeat(owner string, seatID int64, ignoreOwner bool) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.seats[seatID]
	if !ok {
		return errNotFound
	}
	if s.Status == StatusFree {
		return errTaken
	}
	b := st.bookings[s.BookingID]
	if b != nil && b.Owner != owner && !ignoreOwner {
		return errForbidden
	}
	if b != nil {
		b.Seats = removeID(b.Seats, seatID)
	}
	s.Status = StatusFree
	s.BookingID = 0
	return nil
}

// cancelBooking frees all seats of the caller's booking and deletes it.
func (st *store) cancelBooking(owner string, bookingID int64, ignoreOwner bool) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	b, ok := st.bookings[bookingID]
	if !ok {
		return errNotFound
	}
	if b.Owner != owner && !ignoreOwner {
		return errForbidden
	}
	for _, id := range b.Seats {
		if s := st.seats[id]; s.BookingID == bookingID {
			s.Status = StatusFree
			s.BookingID = 0
		}
	}
	delete(st.bookings, bookingID)
	return nil
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
