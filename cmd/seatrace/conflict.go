package main

import (
	"os"
	"time"

	"seatrace/internal/config"

	"github.com/spf13/cobra"
)

var (
	conflictCfg = config.Config{
		Scenarios: []config.Scenario{{
			Name:   "conflict_test",
			Kind:   config.KindConflict,
			Actors: 1,
		}},
	}
	conflictOpts runOptions
)

var conflictCmd = &cobra.Command{
	Use:   "conflict",
	Short: "Race contenders for single seats without a config file",
	Long: `Run conflict trials only. Every trial picks the first free seat of the
contested row, lets all contenders select it at once and checks that exactly
one of them holds it afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := conflictOpts.validate(); err != nil {
			return err
		}
		cfg := conflictCfg
		if v := os.Getenv(config.EnvAPIURL); cfg.Target.BaseURL == "" && v != "" {
			cfg.Target.BaseURL = v
		}
		if v := os.Getenv(config.EnvBasicAuth); cfg.Target.BasicAuth == "" && v != "" {
			cfg.Target.BasicAuth = v
		}
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			return err
		}
		return execute(cmd.Context(), &cfg, conflictOpts)
	},
}

func init() {
	s := &conflictCfg.Scenarios[0]
	f := conflictCmd.Flags()
	f.StringVar(&conflictCfg.Target.BaseURL, "url", "", "booking API base URL (env: "+config.EnvAPIURL+")")
	f.StringVar(&conflictCfg.Credentials.File, "users", "", "credentials file (csv, json or yaml)")
	f.Int64Var(&conflictCfg.EventID, "event", config.DefaultEventID, "event id")
	f.IntVar(&conflictCfg.Target.RPS, "rps", 0, "request rate limit (0 = unlimited)")
	f.BoolVar(&conflictCfg.Reset.Skip, "skip-reset", false, "do not reset the target first")
	f.IntVar(&s.Iterations, "trials", 10, "number of trials")
	f.IntVar(&s.Actors, "parallel", 1, "trials running at the same time")
	f.IntVar(&s.Contenders, "contenders", config.DefaultContenders, "actors racing for each seat")
	f.IntVar(&s.Row, "row", config.DefaultTrialRow, "contested row")
	f.StringVar(&s.Jitter.Kind, "jitter", config.JitterUniform, "pre-select delay: uniform, fixed or none")
	f.DurationVar(&s.Jitter.Min, "jitter-min", 0, "minimum (or fixed) pre-select delay")
	f.DurationVar(&s.Jitter.Max, "jitter-max", config.DefaultJitterMax, "maximum pre-select delay")
	f.DurationVar(&s.ConfirmDelay, "confirm-delay", config.DefaultConfirmDelay, "pause before confirming through the booking list")
	f.DurationVar(&s.MaxDuration, "max-duration", 10*time.Minute, "stop after this long")
	_ = conflictCmd.MarkFlagRequired("users")
	conflictOpts.register(conflictCmd)
	rootCmd.AddCommand(conflictCmd)
}
