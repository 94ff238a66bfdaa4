package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"voicenotes/internal/channel/telegram"
	"voicenotes/internal/logging"
	"voicenotes/internal/preflight"
)

const targetChatCheck = "Target chat"

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify directories, media tools and the bot token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			var bot preflight.Identifier
			if !offline {
				session, err := telegram.Open(telegram.OptionsFromConfig(cfg), logging.NewNop())
				if err != nil {
					return err
				}
				defer session.Close()
				bot = session
			}

			results := preflight.RunAll(cmd.Context(), cfg, bot)
			p := newStatusPrinter(cmd.OutOrStdout())
			p.section("Preflight")
			failed := 0
			for _, result := range results {
				kind := statusOK
				switch {
				case result.Passed:
				case result.Name == targetChatCheck:
					// Registration mode is a supported setup, not a fault.
					kind = statusWarn
				default:
					kind = statusError
					failed++
				}
				p.line(result.Name, kind, result.Detail)
			}
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed: %s", failed, failedNames(results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the Telegram reachability check")
	return cmd
}

func failedNames(results []preflight.Result) string {
	names := make([]string, 0, len(results))
	for _, result := range preflight.Failed(results) {
		if result.Name == targetChatCheck {
			continue
		}
		names = append(names, result.Name)
	}
	return strings.Join(names, ", ")
}
