package main

import (
	"fmt"

	"seatrace/internal/config"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a config file and its credentials without running it",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadConfig(path)
		if err != nil {
			return err
		}
		ids, err := cfg.LoadIdentities()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "config ok: %d scenarios, %d users, target %s\n", len(cfg.Scenarios), len(ids), cfg.Target.BaseURL)
		for _, s := range cfg.Scenarios {
			switch {
			case s.Attempts() > 0:
				fmt.Fprintf(out, "  %-20s %-14s %d total booking attempts\n", s.Name, s.Kind, s.Attempts())
			case s.Ramped():
				fmt.Fprintf(out, "  %-20s %-14s %d stages over %v\n", s.Name, s.Kind, len(s.Stages), config.TotalDuration(s.Stages))
			default:
				fmt.Fprintf(out, "  %-20s %-14s %d actors for up to %v\n", s.Name, s.Kind, s.Actors, s.MaxDuration)
			}
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringP("config", "c", "", "path to YAML config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(validateCmd)
}
