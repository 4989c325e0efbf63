package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"seatrace/internal/booking"
	"seatrace/internal/config"
	"seatrace/internal/core"
	"seatrace/internal/credentials"

	"github.com/rs/zerolog"
)

// ResetUserAgent identifies the one-shot reset call.
const ResetUserAgent = "seatrace-reset/1.0"

// ErrResetFailed is returned when the reset call did not answer with a 2xx status.
var ErrResetFailed = errors.New("system reset failed")

// Reset returns the system under test to its initial state. The call is
// reported to rep with its checks. A failed reset is logged as a warning and
// returned, never retried.
func Reset(ctx context.Context, target config.Target, timeout time.Duration, log zerolog.Logger, rep core.EventSink) error {
	client := booking.NewClient(booking.Options{
		BaseURL:   target.BaseURL,
		Timeout:   timeout,
		UserAgent: ResetUserAgent,
		Token:     target.BasicAuth,
	})

	log.Info().Str("url", target.BaseURL).Msg("resetting system before booking tests")
	resp := client.Reset(ctx, credentials.Identity{})
	rep.Report(resp.Event(ctx,
		core.Check{Name: "reset system status is 200 or 204", Passed: resp.OK(http.StatusOK, http.StatusNoContent)},
		core.Check{Name: "reset completed successfully", Passed: resp.Err == nil && resp.Status < 300},
	))

	if resp.Err != nil {
		log.Warn().Err(resp.Err).Msg("system reset failed")
		return fmt.Errorf("%w: %v", ErrResetFailed, resp.Err)
	}
	if resp.Status < 200 || resp.Status >= 300 {
		log.Warn().Int("status", resp.Status).Bytes("body", resp.Raw).Msg("system reset failed")
		return fmt.Errorf("%w: status %d", ErrResetFailed, resp.Status)
	}
	log.Info().Int("status", resp.Status).Dur("latency", resp.Latency).Msg("system reset completed")
	return nil
}
