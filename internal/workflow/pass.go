package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"voicenotes/internal/channel"
	"voicenotes/internal/config"
	"voicenotes/internal/inbound"
	"voicenotes/internal/logging"
	"voicenotes/internal/media/audio"
	"voicenotes/internal/outbound"
	"voicenotes/internal/services"
	"voicenotes/internal/state"
)

// Deps are the collaborators of one pass.
type Deps struct {
	Config     *config.Config
	State      *state.State
	Opener     channel.Opener
	Normalizer audio.Normalizer
	Logger     *slog.Logger
}

// Summary aggregates the outcome of a pass.
type Summary struct {
	EventsProcessed int
	Acknowledged    int
	Deleted         int
	NotesSent       int
	Failures        int
	Cursor          int64
	// NothingToSend is set when the outbound phase found no new recordings.
	NothingToSend bool
	// ReadOnly is set when no target chat is configured and the outbound
	// phase was skipped.
	ReadOnly bool
	// InboundStopped is the failure that halted the inbound phase, if any.
	InboundStopped error
	// Sent lists delivered recording names in completion order.
	Sent []string
	// Failed lists recordings that failed to deliver.
	Failed []string
}

// Headline is the one-line console result of a pass.
func (s Summary) Headline() string {
	switch {
	case s.ReadOnly:
		return fmt.Sprintf("No chat configured; processed %d events", s.EventsProcessed)
	case s.NotesSent == 0:
		return "No new notes"
	default:
		return fmt.Sprintf("Notes sent: %d", s.NotesSent)
	}
}

// RunPass performs one reconciliation: inbound events first, then outbound
// delivery when a target chat is configured. It mutates d.State in memory
// and never persists it; the caller saves once after a nil error. Per-event
// and per-recording failures are counted in the summary, not returned.
func RunPass(ctx context.Context, d Deps) (Summary, error) {
	if d.Config == nil || d.State == nil || d.Opener == nil {
		return Summary{}, errors.New("workflow: config, state and opener are required")
	}
	logger := logging.NewComponentLogger(d.Logger, "workflow")
	logger = logging.WithContext(ctx, logger)

	session, err := d.Opener.Open(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("open channel session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("channel session close failed", logging.Error(err))
		}
	}()

	var summary Summary
	in := inbound.NewProcessor(session, d.State, inbound.OptionsFromConfig(d.Config), d.Logger).Run(ctx)
	summary.EventsProcessed = in.Processed
	summary.Acknowledged = in.Acknowledged
	summary.Deleted = in.Deleted
	summary.Cursor = in.Cursor
	if in.Stopped != nil {
		if services.Classify(in.Stopped) == services.OutcomeFatal {
			return summary, in.Stopped
		}
		summary.InboundStopped = in.Stopped
		summary.Failures++
	}

	if _, ok := d.Config.TargetChat(); !ok {
		summary.ReadOnly = true
		logger.Info("no target chat configured; skipping delivery",
			logging.String(logging.FieldErrorHint, "set telegram.chat_id to enable delivery"),
		)
		return summary, nil
	}
	if d.Normalizer == nil {
		return summary, errors.New("workflow: normalizer is required for delivery")
	}

	pipeline := outbound.NewPipeline(session, d.Normalizer, d.State.Tracker, outbound.OptionsFromConfig(d.Config), d.Logger)
	report, err := pipeline.Run(ctx)
	if err != nil {
		summary.Failures++
		logging.WarnWithContext(logger, "recordings scan failed",
			"outbound_scan_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.recordings_dir permissions"),
			logging.String(logging.FieldImpact, "no recordings delivered this pass"),
		)
		return summary, nil
	}
	summary.NothingToSend = report.NothingToSend()

	for _, delivery := range report.Deliveries {
		if err := d.State.Tracker.Record(delivery.MessageID, delivery.Recording.Name); err != nil {
			summary.Failures++
			logging.ErrorWithContext(logger, "delivered recording not tracked",
				"track_failed",
				logging.Recording(delivery.Recording.Name),
				logging.MessageID(delivery.MessageID),
				logging.Error(err),
			)
			continue
		}
		summary.NotesSent++
		summary.Sent = append(summary.Sent, delivery.Recording.Name)
	}
	for _, failure := range report.Failures {
		summary.Failures++
		summary.Failed = append(summary.Failed, failure.Recording.Name)
	}
	return summary, nil
}
