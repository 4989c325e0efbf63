// Command testserver runs the in-memory booking API.
//
// Usage:
//
//	testserver [flags]
//
// Flags:
//
//	-port              Port to listen on (default: 8080)
//	-host              Host to bind to (default: localhost)
//	-rows              Rows per event (default: 10)
//	-seats             Seats per row (default: 20)
//	-double-booking    Let taken seats be selected again
//	-ignore-ownership  Let anyone release seats and cancel bookings
//	-select-latency    Delay before every seat selection
//	-failure-rate      Fraction of selections answered with 500
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seatrace/testserver"

	"github.com/rs/zerolog"
)

func main() {
	port := flag.Int("port", 8080, "port to listen on")
	host := flag.String("host", "localhost", "host to bind to")
	rows := flag.Int("rows", 10, "rows per event")
	seats := flag.Int("seats", 20, "seats per row")
	doubleBooking := flag.Bool("double-booking", false, "let taken seats be selected again")
	ignoreOwnership := flag.Bool("ignore-ownership", false, "let anyone release seats and cancel bookings")
	selectLatency := flag.Duration("select-latency", 0, "delay before every seat selection")
	failureRate := flag.Float64("failure-rate", 0, "fraction of selections answered with 500")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()

	layout := testserver.DefaultLayout()
	layout.Rows = *rows
	layout.SeatsPerRow = *seats

	server := testserver.NewServerWithOptions(testserver.Options{
		Layout:          layout,
		DoubleBooking:   *doubleBooking,
		IgnoreOwnership: *ignoreOwnership,
		SelectLatency:   *selectLatency,
		FailureRate:     *failureRate,
	})
	addr := fmt.Sprintf("%s:%d", *host, *port)

	fmt.Println("seatrace Booking Test Server")
	fmt.Println("============================")
	fmt.Printf("Listening on http://%s\n\n", addr)
	fmt.Println("Endpoints:")
	fmt.Println("  GET   /api/seats            - List seats (?event_id=1&status=FREE&row=5&page=1&pageSize=20)")
	fmt.Println("  POST  /api/bookings         - Create booking {event_id}")
	fmt.Println("  GET   /api/bookings         - List own bookings")
	fmt.Println("  PATCH /api/seats/select     - Select seat {booking_id, seat_id}")
	fmt.Println("  PATCH /api/seats/release    - Release seat {seat_id}")
	fmt.Println("  PATCH /api/bookings/cancel  - Cancel booking {booking_id}")
	fmt.Println("  POST  /api/reset            - Free all seats, drop all bookings")
	fmt.Println()

	srv := &http.Server{Addr: addr, Handler: server.Handler()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Int64("requests", server.Requests()).Int64("resets", server.Resets()).Msg("stopped")
}
