package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"voicenotes/internal/state"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the saved cursor and the recordings awaiting acknowledgment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := state.Load(cfg.Paths.StateDir)
			if err != nil {
				return err
			}

			p := newStatusPrinter(cmd.OutOrStdout())
			p.section("Voice notes")
			p.line("State file", statusInfo, st.Path())
			p.line("Cursor", statusInfo, strconv.FormatInt(st.LastUpdateID(), 10))
			if chat, ok := cfg.TargetChat(); ok {
				p.line("Target chat", statusOK, strconv.FormatInt(chat, 10))
			} else {
				p.line("Target chat", statusWarn, "registration mode")
			}
			pending, acknowledged := st.Tracker.Counts()
			p.line("Awaiting ack", statusInfo, strconv.Itoa(pending))
			p.line("Acknowledged", statusInfo, strconv.Itoa(acknowledged))

			if entries := st.Tracker.Pending(); len(entries) > 0 {
				fmt.Fprintln(p.out)
				fmt.Fprintln(p.out, renderPendingTable(entries, cfg.Paths.RecordingsDir))
			}
			return nil
		},
	}
}
