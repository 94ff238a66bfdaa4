package passrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"voicenotes/internal/channel"
	"voicenotes/internal/channel/telegram"
	"voicenotes/internal/config"
	"voicenotes/internal/logging"
	"voicenotes/internal/logs"
	"voicenotes/internal/media/audio"
	"voicenotes/internal/notifications"
	"voicenotes/internal/services"
	"voicenotes/internal/state"
	"voicenotes/internal/workflow"
)

// CurrentLogName is the pointer to the newest pass log inside the log dir.
const CurrentLogName = logs.CurrentLogName

// Options configures one process-level pass.
type Options struct {
	// LogLevel overrides logging.level when set.
	LogLevel string
	// Console receives console log lines and the summary headline.
	// Defaults to os.Stdout.
	Console io.Writer
	// Opener, Normalizer and Notifier replace the production collaborators
	// when set.
	Opener     channel.Opener
	Normalizer audio.Normalizer
	Notifier   notifications.Service
}

// Result describes a finished pass.
type Result struct {
	PassID   string
	LogPath  string
	Summary  workflow.Summary
	Duration time.Duration
	// Skipped is set when another pass held the state lock.
	Skipped bool
}

// Run executes one sync pass end to end: logging setup, pass lock, state
// load, the workflow pass and a single state save. When the pass fails the
// state file is left untouched so the next invocation retries from the last
// saved state.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) (Result, error) {
	if cfg == nil {
		return Result{}, fmt.Errorf("config is required")
	}
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	ctx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "passrun", "directories", "", err)
	}

	started := time.Now()
	result := Result{PassID: uuid.NewString()}
	runID := started.UTC().Format("20060102T150405.000Z")
	result.LogPath = filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("voicenotes-%s.log", runID))

	logger, err := logging.NewPassLogger(cfg, console, opts.LogLevel, result.LogPath)
	if err != nil {
		return result, fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, result.LogPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", CurrentLogName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: logs.PassLogPattern, Exclude: []string{result.LogPath}},
	)

	ctx = services.WithPassID(ctx, result.PassID)
	logger = logging.WithContext(ctx, logger)
	logDependencySnapshot(logger, cfg)

	lock, err := state.AcquireLock(cfg.Paths.StateDir)
	if errors.Is(err, state.ErrLocked) {
		logger.Info("another pass is running; skipping",
			logging.String(logging.FieldEventType, "pass_skipped"),
			logging.String("state_dir", cfg.Paths.StateDir),
		)
		result.Skipped = true
		return result, nil
	}
	if err != nil {
		return result, services.Wrap(services.ErrTransient, "passrun", "lock", cfg.Paths.StateDir, err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("state lock release failed", logging.Error(err))
		}
	}()

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	fail := func(err error, stage string) (Result, error) {
		result.Duration = time.Since(started)
		logging.ErrorWithContext(logger, "pass aborted; state not saved",
			"pass_aborted",
			logging.String("stage", stage),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(err)),
		)
		if nerr := notifier.NotifyError(ctx, err, stage); nerr != nil {
			logger.Warn("error notification failed", logging.Error(nerr))
		}
		return result, err
	}

	st, err := state.Load(cfg.Paths.StateDir)
	if err != nil {
		return fail(err, "load state")
	}

	opener := opts.Opener
	if opener == nil {
		opener = telegram.NewOpener(telegram.OptionsFromConfig(cfg), logger)
	}
	normalizer := opts.Normalizer
	if normalizer == nil {
		normalizer = audio.NewFFmpegNormalizer(audio.OptionsFromConfig(cfg), logger)
	}

	logger.Info("pass started",
		logging.String(logging.FieldEventType, "pass_started"),
		logging.Int64("cursor", st.LastUpdateID()),
	)
	summary, err := workflow.RunPass(ctx, workflow.Deps{
		Config:     cfg,
		State:      st,
		Opener:     opener,
		Normalizer: normalizer,
		Logger:     logger,
	})
	result.Summary = summary
	if err != nil {
		return fail(err, "sync")
	}
	if err := st.Save(); err != nil {
		return fail(err, "save state")
	}
	result.Duration = time.Since(started)

	logger.Info("pass complete",
		logging.String(logging.FieldEventType, "pass_completed"),
		logging.Int("events_processed", summary.EventsProcessed),
		logging.Int("acknowledged", summary.Acknowledged),
		logging.Int("notes_sent", summary.NotesSent),
		logging.Int("failures", summary.Failures),
		logging.Int64("cursor", st.LastUpdateID()),
		logging.Duration("duration", result.Duration),
	)
	if err := notifier.NotifyPassCompleted(ctx, notifications.PassResult{
		NotesSent:    summary.NotesSent,
		Acknowledged: summary.Acknowledged,
		Failures:     summary.Failures,
		Failed:       summary.Failed,
		Duration:     result.Duration,
	}); err != nil {
		logger.Warn("pass notification failed", logging.Error(err))
	}
	fmt.Fprintln(console, summary.Headline())
	return result, nil
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrMalformedState):
		return "inspect or restore the state file; it is never reset automatically"
	case errors.Is(err, services.ErrConfiguration):
		return "run voicenotes config validate"
	default:
		return "the next pass retries from the last saved state"
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, CurrentLogName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	chat, delivering := cfg.TargetChat()
	logger.Debug("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("token_present", strings.TrimSpace(cfg.Telegram.Token) != ""),
		logging.Bool("delivery_enabled", delivering),
		logging.ChatID(chat),
		logging.Bool("ffmpeg_available", binaryAvailable(cfg.FFmpegBinary())),
		logging.String("ffmpeg_binary", cfg.FFmpegBinary()),
		logging.Bool("ffprobe_available", binaryAvailable(cfg.FFprobeBinary())),
		logging.String("ffprobe_binary", cfg.FFprobeBinary()),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
