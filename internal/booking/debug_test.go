package booking

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestDebugLogger_LogRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := NewDebugLogger(&buf)

	req, _ := http.NewRequest("PATCH", "http://example.com/api/seats/select", strings.NewReader(`{"booking_id":1,"seat_id":42}`))
	req.Header.Set("Content-Type", "application/json")

	logger.LogRequest(1, StepSelectSeat, req)

	output := buf.String()
	for _, want := range []string{"[Actor 1]", "select_seat", "PATCH", "/api/seats/select", "Content-Type", `"seat_id":42`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestDebugLogger_LogResponse(t *testing.T) {
	var buf bytes.Buffer
	logger := NewDebugLogger(&buf)

	resp := &http.Response{
		StatusCode: ConflictStatus,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
	logger.LogResponse(2, StepSelectSeat, resp, []byte(`{"error":"seat already taken"}`), 150*time.Millisecond)

	output := buf.String()
	for _, want := range []string{"[Actor 2]", "419", "150ms", "seat already taken"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestDebugLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewDebugLogger(&buf)

	logger.LogError(1, StepListSeats, "connection refused", 50*time.Millisecond)

	output := buf.String()
	if !strings.Contains(output, "ERROR: list_seats") || !strings.Contains(output, "connection refused") {
		t.Errorf("unexpected output: %s", output)
	}
}

func TestDebugLogger_TruncatesLongBodies(t *testing.T) {
	var buf bytes.Buffer
	logger := NewDebugLogger(&buf)

	req, _ := http.NewRequest("POST", "http://example.com/api/bookings", strings.NewReader(strings.Repeat("x", 2000)))
	logger.LogRequest(1, StepCreateBooking, req)

	if !strings.Contains(buf.String(), "truncated, 2000 bytes total") {
		t.Errorf("expected long body to be truncated, got: %s", buf.String())
	}
}

func TestDebugLogger_NilLogger(t *testing.T) {
	var logger *DebugLogger

	req, _ := http.NewRequest("GET", "http://example.com", nil)
	logger.LogRequest(1, "test", req)
	logger.LogResponse(1, "test", &http.Response{StatusCode: 200}, nil, time.Millisecond)
	logger.LogError(1, "test", "error", time.Millisecond)
}

func TestMaskCredential(t *testing.T) {
	tests := map[string]string{
		"Basic YTpi": "Basic ***",
		"opaque":     "***",
	}
	for in, want := range tests {
		if got := maskCredential(in); got != want {
			t.Errorf("maskCredential(%q) = %q, want %q", in, got, want)
		}
	}
}
