package collector

import (
	"testing"
	"time"

	"seatrace/internal/metrics"
)

func TestThresholds_Nil(t *testing.T) {
	var th *Thresholds
	r := th.Check(&Metrics{}, nil)
	if !r.Passed || len(r.Results) != 0 {
		t.Errorf("nil thresholds should pass with no results, got %+v", r)
	}
}

func TestThresholds_Duration(t *testing.T) {
	th := &Thresholds{HTTPReqDuration: &DurationThresholds{P95: 100 * time.Millisecond, P99: 150 * time.Millisecond}}
	m := &Metrics{Duration: DurationMetrics{P95: 80 * time.Millisecond, P99: 200 * time.Millisecond}}

	r := th.Check(m, nil)

	if r.Passed {
		t.Error("expected p99 breach to fail")
	}
	if len(r.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(r.Results))
	}
	if v := r.Violations(); len(v) != 1 || v[0].Name != "http_req_duration.p99" {
		t.Errorf("expected p99 violation, got %+v", v)
	}
}

func TestThresholds_FailureRate(t *testing.T) {
	th := &Thresholds{HTTPReqFailed: &FailureThresholds{Rate: "5%"}}

	if r := th.Check(&Metrics{TotalRequests: 100, SuccessRate: 97}, nil); !r.Passed {
		t.Errorf("3%% failures should pass a 5%% limit: %+v", r.Results)
	}
	if r := th.Check(&Metrics{TotalRequests: 100, SuccessRate: 90}, nil); r.Passed {
		t.Error("10% failures should fail a 5% limit")
	}
}

func TestThresholds_ChecksRate(t *testing.T) {
	th := &Thresholds{Checks: &RateThreshold{Min: "1"}}

	if r := th.Check(&Metrics{ChecksPassed: 42}, nil); !r.Passed {
		t.Error("all checks passing should satisfy rate>=1")
	}
	if r := th.Check(&Metrics{ChecksPassed: 41, ChecksFailed: 1}, nil); r.Passed {
		t.Error("one failed check should break rate>=1")
	}
}

func TestThresholds_OutcomeBased(t *testing.T) {
	th := &Thresholds{
		BookingSuccessRate: &RateThreshold{Min: "50%"},
		ProtocolViolations: &CountThreshold{Max: 0},
	}
	m := &Metrics{}

	r := th.Check(m, &metrics.Summary{SuccessRate: 0.6})
	if !r.Passed || len(r.Results) != 2 {
		t.Errorf("expected both outcome thresholds to pass, got %+v", r.Results)
	}

	r = th.Check(m, &metrics.Summary{SuccessRate: 0.4, ProtocolViolations: 1})
	if r.Passed || len(r.Violations()) != 2 {
		t.Errorf("expected both outcome thresholds to fail, got %+v", r.Results)
	}

	if r := th.Check(m, nil); len(r.Results) != 0 {
		t.Errorf("outcome thresholds need a summary, got %+v", r.Results)
	}
}

func TestThresholds_InvalidRateFails(t *testing.T) {
	th := &Thresholds{BookingSuccessRate: &RateThreshold{Min: "lots"}}

	r := th.Check(&Metrics{}, &metrics.Summary{SuccessRate: 1})
	if r.Passed {
		t.Error("an unparseable threshold must not pass silently")
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"5%", 5, false},
		{" 99.5% ", 99.5, false},
		{"0.95", 95, false},
		{"1", 100, false},
		{"1.5", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		got, err := parseRate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseRate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseRate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{500 * time.Microsecond, "500µs"},
		{42 * time.Millisecond, "42ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m30s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
