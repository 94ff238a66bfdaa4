package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"voicenotes/internal/passrun"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one pass: process reactions, then send new recordings",
		Long: `Run a single reconciliation pass against the configured chat.

Acknowledged recordings are deleted first, then every untracked recording in
the recordings directory is converted and sent as a voice message. State is
saved once when the pass succeeds; a failed pass leaves it untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := passrun.Run(cmd.Context(), cfg, passrun.Options{
				LogLevel: ctx.logLevel(),
				Console:  cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}
			if result.Skipped {
				fmt.Fprintln(cmd.OutOrStdout(), "Another pass is running; skipped")
			}
			return nil
		},
	}
}
