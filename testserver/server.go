// Package testserver provides an in-memory booking API for exercising the harness.
//
// It serves seat listings, bookings, seat selection and release, cancellation
// and a reset endpoint for a fixed seat layout. All state sits behind a single
// mutex. Fault switches in Options let tests provoke the protocol violations
// the harness is meant to catch.
package testserver

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ConflictStatus is returned when a seat is already taken.
const ConflictStatus = 419

// Layout describes the seats created on start and on every reset.
type Layout struct {
	Events      []int64
	Rows        int
	SeatsPerRow int
	BasePrice   decimal.Decimal
	RowStep     decimal.Decimal // added per row
}

// DefaultLayout is one event with 10 rows of 20 seats.
func DefaultLayout() Layout {
	return Layout{
		Events:      []int64{1},
		Rows:        10,
		SeatsPerRow: 20,
		BasePrice:   decimal.RequireFromString("2500.00"),
		RowStep:     decimal.RequireFromString("-100.00"),
	}
}

func (l Layout) price(row int) decimal.Decimal {
	return l.BasePrice.Add(l.RowStep.Mul(decimal.NewFromInt(int64(row - 1))))
}

// Options configures a Server.
type Options struct {
	Layout Layout
	// Users maps email to password. Empty accepts any Basic credentials.
	Users map[string]string

	// DoubleBooking lets a taken seat be selected again.
	DoubleBooking bool
	// IgnoreOwnership lets anyone release seats and cancel bookings.
	IgnoreOwnership bool
	// SelectLatency delays every select before it touches state.
	SelectLatency time.Duration
	// FailureRate is the fraction of selects answered with 500.
	FailureRate float64
	// ResetStatus overrides the reset response status when non-zero.
	ResetStatus int
}

// Server is the in-memory booking API.
type Server struct {
	mux      *http.ServeMux
	opts     Options
	store    *store
	requests atomic.Int64
	resets   atomic.Int64
}

// NewServer creates a server with the default layout and no faults.
func NewServer() *Server {
	return NewServerWithOptions(Options{})
}

// NewServerWithOptions creates a server with custom layout, users and faults.
func NewServerWithOptions(opts Options) *Server {
	if len(opts.Layout.Events) == 0 {
		opts.Layout = DefaultLayout()
	}
	s := &Server{
		mux:   http.NewServeMux(),
		opts:  opts,
		store: newStore(opts.Layout),
	}
	s.registerHandlers()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Requests returns the number of API requests served.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Resets returns how many times the reset endpoint was called.
func (s *Server) Resets() int64 {
	return s.resets.Load()
}

func (s *Server) registerHandlers() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/reset", s.handleReset)
	s.mux.HandleFunc("GET /api/seats", s.authed(s.handleListSeats))
	s.mux.HandleFunc("PATCH /api/seats/select", s.authed(s.handleSelect))
	s.mux.HandleFunc("PATCH /api/seats/release", s.authed(s.handleRelease))
	s.mux.HandleFunc("GET /api/bookings", s.authed(s.handleListBookings))
	s.mux.HandleFunc("POST /api/bookings", s.authed(s.handleCreateBooking))
	s.mux.HandleFunc("PATCH /api/bookings/cancel", s.authed(s.handleCancel))
}

type userHandler func(w http.ResponseWriter, r *http.Request, user string)

// authed resolves the Basic credentials into a user email or answers 401.
func (s *Server) authed(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		user, ok := s.authenticate(r.Header.Get("Authorization"))
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="booking"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	}
}

func (s *Server) authenticate(header string) (string, bool) {
	encoded, ok := strings.CutPrefix(header, "Basic ")
	if !ok {
		return "", false
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	email, password, ok := strings.Cut(string(raw), ":")
	if !ok || email == "" {
		return "", false
	}
	if len(s.opts.Users) > 0 && s.opts.Users[email] != password {
		return "", false
	}
	return email, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	s.resets.Add(1)
	if s.opts.ResetStatus >= 300 {
		writeError(w, s.opts.ResetStatus, "reset refused")
		return
	}
	s.store.reset()
	w.WriteHeader(http.StatusNoContent)
}

type seatJSON struct {
	ID     int64           `json:"id"`
	Row    int             `json:"row"`
	Number int             `json:"number"`
	Status string          `json:"status"`
	Price  decimal.Decimal `json:"price"`
}

func toSeatJSON(in []seat) []seatJSON {
	out := make([]seatJSON, len(in))
	for i, st := range in {
		out[i] = seatJSON{ID: st.ID, Row: st.Row, Number: st.Number, Status: st.Status, Price: st.Price}
	}
	return out
}

func (s *Server) handleListSeats(w http.ResponseWriter, r *http.Request, _ string) {
	q := r.URL.Query()
	eventID, err := strconv.ParseInt(q.Get("event_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "event_id is required")
		return
	}
	query := seatQuery{
		EventID:  eventID,
		Status:   q.Get("status"),
		Row:      intParam(q.Get("row"), 0),
		Page:     intParam(q.Get("page"), 1),
		PageSize: intParam(q.Get("pageSize"), 20),
	}
	if query.Page < 1 || query.PageSize < 1 {
		writeError(w, http.StatusBadRequest, "page and pageSize must be positive")
		return
	}
	writeJSON(w, http.StatusOK, toSeatJSON(s.store.listSeats(query)))
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request, user string) {
	var req struct {
		EventID int64 `json:"event_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EventID == 0 {
		writeError(w, http.StatusBadRequest, "event_id is required")
		return
	}
	id := s.store.createBooking(user, req.EventID)
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request, user string) {
	type bookingJSON struct {
		ID      int64      `json:"id"`
		EventID int64      `json:"event_id"`
		Seats   []seatJSON `json:"seats"`
	}
	views := s.store.listBookings(user)
	out := make([]bookingJSON, len(views))
	for i, v := range views {
		out[i] = bookingJSON{ID: v.ID, EventID: v.EventID, Seats: toSeatJSON(v.Seats)}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, user string) {
	var req struct {
		BookingID int64 `json:"booking_id"`
		SeatID    int64 `json:"seat_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if s.opts.SelectLatency > 0 {
		select {
		case <-time.After(s.opts.SelectLatency):
		case <-r.Context().Done():
			return
		}
	}
	if s.opts.FailureRate > 0 && rand.Float64() < s.opts.FailureRate {
		writeError(w, http.StatusInternalServerError, "simulated failure")
		return
	}

	err := s.store.selectSeat(user, req.BookingID, req.SeatID, s.opts.DoubleBooking)
	s.writeResult(w, err, http.StatusOK)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request, user string) {
	var req struct {
		SeatID int64 `json:"seat_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	err := s.store.releaseSeat(user, req.SeatID, s.opts.IgnoreOwnership)
	s.writeResult(w, err, http.StatusOK)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, user string) {
	var req struct {
		BookingID int64 `json:"booking_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	err := s.store.cancelBooking(user, req.BookingID, s.opts.IgnoreOwnership)
	s.writeResult(w, err, http.StatusOK)
}

func (s *Server) writeResult(w http.ResponseWriter, err error, okStatus int) {
	switch {
	case err == nil:
		writeJSON(w, okStatus, map[string]string{"status": "ok"})
	case errors.Is(err, errTaken):
		writeError(w, ConflictStatus, err.Error())
	case errors.Is(err, errForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, errNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": fmt.Sprint(status)})
}

func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
