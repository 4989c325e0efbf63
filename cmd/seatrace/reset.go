package main

import (
	"fmt"
	"os"

	"seatrace/internal/config"
	"seatrace/internal/controller"
	"seatrace/internal/core"

	"github.com/spf13/cobra"
)

var (
	resetTarget  config.Target
	resetTimeout = config.DefaultTimeout
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the booking API to its initial state",
	RunE: func(cmd *cobra.Command, args []string) error {
		if v := os.Getenv(config.EnvAPIURL); resetTarget.BaseURL == "" && v != "" {
			resetTarget.BaseURL = v
		}
		if v := os.Getenv(config.EnvBasicAuth); resetTarget.BasicAuth == "" && v != "" {
			resetTarget.BasicAuth = v
		}
		if resetTarget.BaseURL == "" {
			return config.ErrNoBaseURL
		}

		log, err := newLogger(os.Stderr)
		if err != nil {
			return err
		}
		if err := controller.Reset(cmd.Context(), resetTarget, resetTimeout, log, core.Pipe{}); err != nil {
			return exitCode(controller.ExitFailed)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "reset ok")
		return nil
	},
}

func init() {
	f := resetCmd.Flags()
	f.StringVar(&resetTarget.BaseURL, "url", "", "booking API base URL (env: "+config.EnvAPIURL+")")
	f.StringVar(&resetTarget.BasicAuth, "basic-auth", "", "pre-encoded Basic credential (env: "+config.EnvBasicAuth+")")
	f.DurationVar(&resetTimeout, "timeout", resetTimeout, "request timeout")
	rootCmd.AddCommand(resetCmd)
}
