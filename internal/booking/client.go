// Package booking is the typed HTTP client for the booking API.
//
// Every action returns a Response value; transport and body problems are
// carried inside it instead of being returned as Go errors, so scenario code
// can classify each call without unwinding.
package booking

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"seatrace/internal/core"
	"seatrace/internal/credentials"
	"seatrace/internal/ratelimit"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultTimeout bounds every call when Options.Timeout is zero.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent is sent when Options.UserAgent is empty.
	DefaultUserAgent = "seatrace/1.0"

	// maxBodySize limits how much of a response body is read.
	maxBodySize = 10 * 1024 * 1024
)

// Step names reported for each action.
const (
	StepListSeats     = "list_seats"
	StepCreateBooking = "create_booking"
	StepSelectSeat    = "select_seat"
	StepReleaseSeat   = "release_seat"
	StepListBookings  = "list_bookings"
	StepCancelBooking = "cancel_booking"
	StepReset         = "reset"
)

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// Token is a pre-encoded Basic credential sent for zero identities.
	Token   string
	Limiter *ratelimit.RateLimiter
	Debug   *DebugLogger
	// HTTPClient overrides the default client. Its Timeout is left untouched.
	HTTPClient *http.Client
}

// Client calls the booking API. Safe for concurrent use.
type Client struct {
	base      string
	timeout   time.Duration
	userAgent string
	token     string
	limiter   *ratelimit.RateLimiter
	debug     *DebugLogger
	http      *http.Client
}

// NewClient creates a client for the API at opts.BaseURL.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        1000,
				MaxIdleConnsPerHost: 1000,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Client{
		base:      strings.TrimRight(opts.BaseURL, "/"),
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		token:     opts.Token,
		limiter:   opts.Limiter,
		debug:     opts.Debug,
		http:      hc,
	}
}

// ListSeats lists seats matching q.
func (c *Client) ListSeats(ctx context.Context, id credentials.Identity, q SeatQuery) Response[[]Seat] {
	params := url.Values{}
	params.Set("event_id", strconv.FormatInt(q.EventID, 10))
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	if q.Row > 0 {
		params.Set("row", strconv.Itoa(q.Row))
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	raw := c.do(ctx, id, StepListSeats, http.MethodGet, "/api/seats?"+params.Encode(), nil)
	return decode[[]Seat](raw, validateSeats)
}

// CreateBooking opens an empty booking for the event.
func (c *Client) CreateBooking(ctx context.Context, id credentials.Identity, eventID int64) Response[Created] {
	body := map[string]int64{"event_id": eventID}
	raw := c.do(ctx, id, StepCreateBooking, http.MethodPost, "/api/bookings", body)
	return decode[Created](raw, validateCreated)
}

// SelectSeat attaches a seat to a booking. 419 means the seat is taken.
func (c *Client) SelectSeat(ctx context.Context, id credentials.Identity, bookingID, seatID int64) Response[Empty] {
	body := map[string]int64{"booking_id": bookingID, "seat_id": seatID}
	raw := c.do(ctx, id, StepSelectSeat, http.MethodPatch, "/api/seats/select", body)
	return decode[Empty](raw, nil)
}

// ReleaseSeat frees a seat.
func (c *Client) ReleaseSeat(ctx context.Context, id credentials.Identity, seatID int64) Response[Empty] {
	body := map[string]int64{"seat_id": seatID}
	raw := c.do(ctx, id, StepReleaseSeat, http.MethodPatch, "/api/seats/release", body)
	return decode[Empty](raw, nil)
}

// ListBookings lists the caller's bookings.
func (c *Client) ListBookings(ctx context.Context, id credentials.Identity) Response[[]Booking] {
	raw := c.do(ctx, id, StepListBookings, http.MethodGet, "/api/bookings", nil)
	return decode[[]Booking](raw, validateBookings)
}

// CancelBooking cancels a booking and frees its seats.
func (c *Client) CancelBooking(ctx context.Context, id credentials.Identity, bookingID int64) Response[Empty] {
	body := map[string]int64{"booking_id": bookingID}
	raw := c.do(ctx, id, StepCancelBooking, http.MethodPatch, "/api/bookings/cancel", body)
	return decode[Empty](raw, nil)
}

// Reset returns the system under test to its initial state.
func (c *Client) Reset(ctx context.Context, id credentials.Identity) Response[Empty] {
	raw := c.do(ctx, id, StepReset, http.MethodPost, "/api/reset", nil)
	return decode[Empty](raw, nil)
}

// rawResponse is an undecoded call result.
type rawResponse struct {
	step      string
	status    int
	body      []byte
	latency   time.Duration
	bytesSent int64
	err       error
}

func (c *Client) authorization(id credentials.Identity) string {
	if id.IsZero() {
		if c.token == "" {
			return ""
		}
		return "Basic " + c.token
	}
	return id.BasicAuth()
}

func (c *Client) do(ctx context.Context, id credentials.Identity, step, method, path string, body any) rawResponse {
	out := rawResponse{step: step}
	actorID := core.ActorIDFromContext(ctx)

	if err := c.limiter.Wait(ctx); err != nil {
		out.err = err
		return out
	}

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			out.err = fmt.Errorf("encoding %s request: %w", step, err)
			return out
		}
		payload = data
		out.bytesSent = int64(len(data))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(payload))
	if err != nil {
		out.err = err
		return out
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if auth := c.authorization(id); auth != "" {
		req.Header.Set("Authorization", auth)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())

	c.debug.LogRequest(actorID, step, req)

	resp, err := c.http.Do(req)
	if err != nil {
		out.latency = time.Since(start)
		out.err = err
		c.debug.LogError(actorID, step, err.Error(), out.latency)
		return out
	}
	defer resp.Body.Close()

	out.body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	_, _ = io.Copy(io.Discard, resp.Body) // drain errors are ignorable
	out.latency = time.Since(start)
	out.status = resp.StatusCode
	if err != nil {
		out.err = fmt.Errorf("reading %s response: %w", step, err)
		c.debug.LogError(actorID, step, out.err.Error(), out.latency)
		return out
	}

	c.debug.LogResponse(actorID, step, resp, out.body, out.latency)
	return out
}

// decode validates and decodes 2xx bodies. Other statuses keep the raw body only.
func decode[T any](raw rawResponse, validate func([]byte) error) Response[T] {
	r := Response[T]{
		Step:      raw.step,
		Status:    raw.status,
		Raw:       raw.body,
		Latency:   raw.latency,
		BytesSent: raw.bytesSent,
		Err:       raw.err,
	}
	if r.Err != nil || validate == nil || r.Status < 200 || r.Status >= 300 {
		return r
	}
	if err := validate(raw.body); err != nil {
		r.ParseErr = err
		return r
	}
	if err := json.Unmarshal(raw.body, &r.Body); err != nil {
		r.ParseErr = fmt.Errorf("decoding %s: %w", raw.step, err)
	}
	return r
}
