// Command seatrace drives concurrent booking scenarios against a seat
// reservation API and reports whether its booking invariants held.
package main

import (
	"errors"
	"fmt"
	"os"

	"seatrace/internal/controller"
)

// exitCode ends the process with a status without printing an error.
type exitCode int

func (e exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

func main() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var code exitCode
	if errors.As(err, &code) {
		os.Exit(int(code))
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(controller.ExitError)
}
