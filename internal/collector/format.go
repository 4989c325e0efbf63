package collector

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"seatrace/internal/metrics"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	jsoniter "github.com/json-iterator/go"
)

var (
	passBanner = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("2"))
	failBanner = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1"))
	faint      = lipgloss.NewStyle().Faint(true)
)

// Verdict names the overall result of a run.
type Verdict string

const (
	VerdictPassed           Verdict = "PASSED"
	VerdictViolations       Verdict = "PROTOCOL VIOLATIONS DETECTED"
	VerdictThresholdsFailed Verdict = "THRESHOLDS FAILED"
)

// Decide derives the run verdict. Protocol violations win over thresholds.
func Decide(s *metrics.Summary, thresholds *ThresholdResults) Verdict {
	if s != nil && !s.Clean() {
		return VerdictViolations
	}
	if thresholds != nil && !thresholds.Passed {
		return VerdictThresholdsFailed
	}
	return VerdictPassed
}

// FormatText writes metrics and the outcome summary in human-readable format.
func FormatText(w io.Writer, m *Metrics, s *metrics.Summary, thresholds *ThresholdResults) {
	if m.TotalRequests == 0 && s == nil {
		fmt.Fprintln(w, "No events collected")
		return
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "seatrace - Booking Harness Results")
	fmt.Fprintln(w, "==================================")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Duration:       %v\n", m.TestDuration.Round(time.Millisecond))
	fmt.Fprintf(w, "Total Requests: %s\n", formatNumber(m.TotalRequests))
	if m.TotalRequests > 0 {
		fmt.Fprintf(w, "Success Rate:   %.1f%% (%s / %s)\n",
			m.SuccessRate, formatNumber(m.SuccessCount), formatNumber(m.TotalRequests))
		fmt.Fprintf(w, "Requests/sec:   %.1f\n", m.RequestsPerSec)
		fmt.Fprintf(w, "Data:           %s sent, %s received\n", formatBytes(m.BytesSent), formatBytes(m.BytesRecv))
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Response Times:")
		fmt.Fprintf(w, "  Min: %s  Avg: %s  P50: %s  P90: %s  P95: %s  P99: %s  Max: %s\n",
			FormatDuration(m.Duration.Min), FormatDuration(m.Duration.Avg),
			FormatDuration(m.Duration.P50), FormatDuration(m.Duration.P90),
			FormatDuration(m.Duration.P95), FormatDuration(m.Duration.P99),
			FormatDuration(m.Duration.Max))
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "By Step:")
		fmt.Fprintln(w, stepTable(m))
	}

	if len(m.Checks) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintf(w, "Checks: %.2f%% passed (%s / %s)\n", m.CheckRate(),
			formatNumber(m.ChecksPassed), formatNumber(m.ChecksPassed+m.ChecksFailed))
		fmt.Fprintln(w, checkTable(m))
	}

	if s != nil {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Booking Outcomes:")
		fmt.Fprintln(w, outcomeTable(s))
		if s.Trials.Total > 0 {
			fmt.Fprintf(w, "Conflict Trials: %d total, %d passed, %d violated, %d inconclusive\n",
				s.Trials.Total, s.Trials.Passed, s.Trials.Violated, s.Trials.Inconclusive)
		}
		if !s.Clean() {
			fmt.Fprintf(w, "Protocol Violations: %d\n", s.ProtocolViolations)
			for _, kind := range s.ViolationKinds() {
				fmt.Fprintf(w, "  %-26s %d\n", kind, s.ViolationsByKind[kind])
			}
		}
	}

	if thresholds != nil && len(thresholds.Results) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Thresholds:")
		for _, result := range thresholds.Results {
			symbol := "✓"
			if !result.Passed {
				symbol = "✗"
			}
			fmt.Fprintf(w, "  %s %s %s %s (actual: %s)\n",
				symbol, result.Name, result.Op, result.Threshold, result.Actual)
		}
	}

	verdict := Decide(s, thresholds)
	banner := passBanner
	if verdict != VerdictPassed {
		banner = failBanner
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, banner.Render(string(verdict)))
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	return t
}

func stepTable(m *Metrics) string {
	t := newTable()
	t.AppendHeader(table.Row{"Step", "Reqs", "Failed", "Avg", "P95", "P99", "Statuses"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	for _, name := range m.StepNames() {
		sm := m.Steps[name]
		t.AppendRow(table.Row{
			name, formatNumber(sm.Count), formatNumber(sm.Failed),
			FormatDuration(sm.Duration.Avg),
			FormatDuration(sm.Duration.P95),
			FormatDuration(sm.Duration.P99),
			formatStatuses(sm.Statuses),
		})
	}
	return t.Render()
}

func checkTable(m *Metrics) string {
	t := newTable()
	t.AppendHeader(table.Row{"", "Check", "Passes", "Fails"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	for _, name := range m.CheckNames() {
		cm := m.Checks[name]
		symbol := "✓"
		if cm.Fails > 0 {
			symbol = "✗"
		}
		t.AppendRow(table.Row{symbol, name, formatNumber(cm.Passes), formatNumber(cm.Fails)})
	}
	return t.Render()
}

func outcomeTable(s *metrics.Summary) string {
	t := newTable()
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.AppendRows([]table.Row{
		{"Successful bookings", s.Successful},
		{"Failed bookings", s.Failed},
		{"Conflict bookings", s.Conflicted},
		{"Violated bookings", s.Violated},
		{"Failed seat requests", s.FailedSeatLookups},
		{"Total attempts", s.TotalAttempts},
	})
	t.AppendFooter(table.Row{"Booking success rate", fmt.Sprintf("%.2f%%", s.SuccessRate*100)})
	return t.Render()
}

func formatStatuses(statuses map[int]int) string {
	codes := make([]int, 0, len(statuses))
	for code := range statuses {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	parts := make([]string, 0, len(codes))
	for _, code := range codes {
		label := strconv.Itoa(code)
		if code == 0 {
			label = "err"
		}
		parts = append(parts, fmt.Sprintf("%s×%d", label, statuses[code]))
	}
	return faint.Render(strings.Join(parts, " "))
}

// FormatJSON writes metrics, the outcome summary and the verdict as JSON.
func FormatJSON(w io.Writer, m *Metrics, s *metrics.Summary, thresholds *ThresholdResults) {
	output := struct {
		Verdict        Verdict                    `json:"verdict"`
		Duration       string                     `json:"duration"`
		TotalRequests  int                        `json:"totalRequests"`
		SuccessCount   int                        `json:"successCount"`
		FailureCount   int                        `json:"failureCount"`
		SuccessRate    float64                    `json:"successRate"`
		RequestsPerSec float64                    `json:"requestsPerSec"`
		Durations      jsonDurationMetrics        `json:"durations"`
		Steps          map[string]jsonStepMetrics `json:"steps"`
		Checks         map[string]*CheckMetrics   `json:"checks"`
		CheckRate      float64                    `json:"checkRate"`
		Outcomes       *metrics.Summary           `json:"outcomes,omitempty"`
		Thresholds     *ThresholdResults          `json:"thresholds,omitempty"`
	}{
		Verdict:        Decide(s, thresholds),
		Duration:       m.TestDuration.Round(time.Millisecond).String(),
		TotalRequests:  m.TotalRequests,
		SuccessCount:   m.SuccessCount,
		FailureCount:   m.FailureCount,
		SuccessRate:    m.SuccessRate,
		RequestsPerSec: m.RequestsPerSec,
		Durations:      toJSONDurationMetrics(m.Duration),
		Steps:          make(map[string]jsonStepMetrics),
		Checks:         m.Checks,
		CheckRate:      m.CheckRate(),
		Outcomes:       s,
		Thresholds:     thresholds,
	}

	for step, sm := range m.Steps {
		output.Steps[step] = jsonStepMetrics{
			Count:       sm.Count,
			Success:     sm.Success,
			Failed:      sm.Failed,
			SuccessRate: float64(sm.Success) / float64(sm.Count) * 100,
			Statuses:    sm.Statuses,
			Durations:   toJSONDurationMetrics(sm.Duration),
		}
	}

	encoder := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(output) // stdout errors are unrecoverable
}

type jsonDurationMetrics struct {
	Min string `json:"min"`
	Max string `json:"max"`
	Avg string `json:"avg"`
	P50 string `json:"p50"`
	P90 string `json:"p90"`
	P95 string `json:"p95"`
	P99 string `json:"p99"`
}

type jsonStepMetrics struct {
	Count       int                 `json:"count"`
	Success     int                 `json:"success"`
	Failed      int                 `json:"failed"`
	SuccessRate float64             `json:"successRate"`
	Statuses    map[int]int         `json:"statuses"`
	Durations   jsonDurationMetrics `json:"durations"`
}

func toJSONDurationMetrics(d DurationMetrics) jsonDurationMetrics {
	return jsonDurationMetrics{
		Min: FormatDuration(d.Min),
		Max: FormatDuration(d.Max),
		Avg: FormatDuration(d.Avg),
		P50: FormatDuration(d.P50),
		P90: FormatDuration(d.P90),
		P95: FormatDuration(d.P95),
		P99: FormatDuration(d.P99),
	}
}

func formatNumber(n int) string {
	s := strconv.Itoa(n)
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f kB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
