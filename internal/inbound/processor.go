package inbound

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"voicenotes/internal/channel"
	"voicenotes/internal/config"
	"voicenotes/internal/fileutil"
	"voicenotes/internal/logging"
	"voicenotes/internal/services"
	"voicenotes/internal/state"
)

// DefaultPageSize is the number of updates requested per fetch.
const DefaultPageSize = 100

const startCommand = "/start"

// Options configures a Processor.
type Options struct {
	// TargetChat is the conversation recordings are delivered to. Zero means
	// registration mode: messages are only logged.
	TargetChat           int64
	RecordingsDir        string
	DoneReactions        []string
	ConfirmationReaction string
	Greeting             string
	PageSize             int
}

// OptionsFromConfig maps configuration to processor options.
func OptionsFromConfig(cfg *config.Config) Options {
	chat, _ := cfg.TargetChat()
	return Options{
		TargetChat:           chat,
		RecordingsDir:        cfg.Paths.RecordingsDir,
		DoneReactions:        append([]string(nil), cfg.Acknowledgment.DoneReactions...),
		ConfirmationReaction: cfg.Acknowledgment.ConfirmationReaction,
		Greeting:             cfg.Acknowledgment.Greeting,
		PageSize:             DefaultPageSize,
	}
}

// Result summarizes one inbound phase.
type Result struct {
	Processed    int
	Acknowledged int
	Deleted      int
	Cursor       int64
	// Stopped is the failure that halted the phase, if any. Events after it
	// are left for the next pass.
	Stopped error
	// StoppedAt is the update id of the event that failed, zero when the
	// fetch itself failed.
	StoppedAt int64
}

// Processor consumes the update stream and applies acknowledgments.
type Processor struct {
	session channel.Session
	state   *state.State
	opts    Options
	logger  *slog.Logger
	done    map[string]struct{}
}

// NewProcessor builds a processor over an open session and loaded state.
func NewProcessor(session channel.Session, st *state.State, opts Options, logger *slog.Logger) *Processor {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	done := make(map[string]struct{}, len(opts.DoneReactions))
	for _, glyph := range opts.DoneReactions {
		done[glyph] = struct{}{}
	}
	return &Processor{
		session: session,
		state:   st,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "inbound"),
		done:    done,
	}
}

// Run fetches every update newer than the cursor and handles them in order.
// The cursor advances one event at a time and only past events that were
// fully handled; the first failure ends the phase.
func (p *Processor) Run(ctx context.Context) Result {
	ctx = services.WithPhase(ctx, "inbound")
	logger := logging.WithContext(ctx, p.logger)
	var result Result

	for {
		cursor := p.state.LastUpdateID()
		events, err := p.session.Updates(ctx, cursor+1, p.opts.PageSize)
		if err != nil {
			result.Stopped = fmt.Errorf("fetch updates after %d: %w", cursor, err)
			logging.WarnWithContext(logger, "update fetch failed",
				"inbound_fetch_failed",
				logging.Int64("cursor", cursor),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check network access to the Bot API and the token"),
				logging.String(logging.FieldImpact, "events are retried next pass"),
			)
			break
		}

		for _, event := range events {
			id := event.UpdateID()
			if id <= p.state.LastUpdateID() {
				continue
			}
			if err := p.handle(services.WithUpdateID(ctx, id), event, &result); err != nil {
				result.Stopped = err
				result.StoppedAt = id
				logging.WarnWithContext(logger, "inbound phase stopped",
					"inbound_stopped",
					logging.UpdateID(id),
					logging.Error(err),
					logging.String(logging.FieldImpact, "this and later events are retried next pass"),
				)
				result.Cursor = p.state.LastUpdateID()
				return result
			}
			p.state.AdvanceCursor(id)
			result.Processed++
		}

		if len(events) < p.opts.PageSize {
			break
		}
	}

	result.Cursor = p.state.LastUpdateID()
	logger.Debug("inbound phase complete",
		logging.Int("processed", result.Processed),
		logging.Int("acknowledged", result.Acknowledged),
		logging.Int64("cursor", result.Cursor),
	)
	return result
}

func (p *Processor) handle(ctx context.Context, event channel.Event, result *Result) error {
	switch ev := event.(type) {
	case channel.NewMessage:
		return p.handleMessage(ctx, ev)
	case channel.ReactionChange:
		return p.handleReaction(ctx, ev, result)
	case channel.Unrecognized:
		return services.Wrap(services.ErrValidation, "inbound", "dispatch", ev.String(), nil)
	default:
		return services.Wrap(services.ErrValidation, "inbound", "dispatch",
			fmt.Sprintf("unsupported event %T", event), nil)
	}
}

func (p *Processor) handleMessage(ctx context.Context, msg channel.NewMessage) error {
	logger := logging.WithContext(ctx, p.logger)
	if p.opts.TargetChat == 0 || msg.ChatID != p.opts.TargetChat {
		logger.Info("message from unconfigured chat",
			logging.ChatID(msg.ChatID),
			logging.String("from", msg.From),
			logging.String("text", msg.Text),
			logging.String(logging.FieldErrorHint, "set telegram.chat_id to this chat to receive recordings"),
		)
		return nil
	}
	if strings.TrimSpace(msg.Text) != startCommand {
		logger.Debug("ignoring message", logging.MessageID(msg.MessageID))
		return nil
	}
	if err := p.session.SendMessage(ctx, msg.ChatID, p.opts.Greeting); err != nil {
		return fmt.Errorf("send greeting: %w", err)
	}
	logger.Info("greeting sent", logging.ChatID(msg.ChatID))
	return nil
}

func (p *Processor) handleReaction(ctx context.Context, change channel.ReactionChange, result *Result) error {
	logger := logging.WithContext(ctx, p.logger).With(
		logging.MessageID(change.MessageID),
	)
	if p.opts.TargetChat == 0 || change.ChatID != p.opts.TargetChat {
		logger.Info("reaction in unconfigured chat ignored", logging.ChatID(change.ChatID))
		return nil
	}
	if !p.isDone(change.Added) {
		logger.Debug("reaction is not an acknowledgment", logging.Any("added", change.Added))
		return nil
	}

	name, res := p.state.Tracker.Resolve(change.MessageID)
	switch res {
	case state.NotFound:
		logging.WarnWithContext(logger, "acknowledgment for unknown message",
			"ack_unknown_message",
			logging.String(logging.FieldErrorHint, "another instance may have delivered it"),
			logging.String(logging.FieldImpact, "reaction ignored"),
		)
		return nil
	case state.Acknowledged:
		logger.Info("message already acknowledged")
		return nil
	}

	logger = logger.With(logging.Recording(name))
	if filepath.Base(name) != name || name == "." || name == ".." {
		return services.Wrap(services.ErrMalformedState, "inbound", "acknowledge",
			fmt.Sprintf("tracked filename %q is not a bare name", name), nil)
	}

	removed, err := fileutil.RemoveIfExists(filepath.Join(p.opts.RecordingsDir, name))
	if err != nil {
		return services.Wrap(services.ErrTransient, "inbound", "delete recording", name, err)
	}
	if removed {
		result.Deleted++
		logger.Info("recording deleted")
	} else {
		logger.Info("recording already deleted")
	}

	if err := p.session.SetReaction(ctx, change.ChatID, change.MessageID, p.opts.ConfirmationReaction); err != nil {
		return fmt.Errorf("confirm acknowledgment: %w", err)
	}
	if _, err := p.state.Tracker.Acknowledge(change.MessageID); err != nil {
		return err
	}
	result.Acknowledged++
	logger.Info("recording acknowledged")
	return nil
}

func (p *Processor) isDone(added []string) bool {
	for _, glyph := range added {
		if _, ok := p.done[glyph]; ok {
			return true
		}
	}
	return false
}
