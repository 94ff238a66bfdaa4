package outbound

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"
	"golang.org/x/text/unicode/norm"

	"voicenotes/internal/channel"
	"voicenotes/internal/config"
	"voicenotes/internal/logging"
	"voicenotes/internal/media/audio"
	"voicenotes/internal/services"
	"voicenotes/internal/state"
)

// MaxCaptionRunes is the Bot API limit for media captions.
const MaxCaptionRunes = 1024

// Options configures a Pipeline.
type Options struct {
	RecordingsDir      string
	Extension          string
	MaxConcurrentSends int
	TargetChat         int64
}

// OptionsFromConfig maps configuration to pipeline options.
func OptionsFromConfig(cfg *config.Config) Options {
	chat, _ := cfg.TargetChat()
	return Options{
		RecordingsDir:      cfg.Paths.RecordingsDir,
		Extension:          cfg.Recordings.Extension,
		MaxConcurrentSends: cfg.Recordings.MaxConcurrentSends,
		TargetChat:         chat,
	}
}

// Recording is a candidate file in the recordings directory.
type Recording struct {
	Name string
	Path string
}

// Delivery is a recording that reached the conversation.
type Delivery struct {
	Recording Recording
	MessageID int64
	Converted bool
}

// Failure is a recording that could not be delivered this pass.
type Failure struct {
	Recording Recording
	Err       error
}

// Report is the outcome of one outbound phase. Deliveries are listed in
// completion order.
type Report struct {
	Candidates int
	Deliveries []Delivery
	Failures   []Failure
}

// NothingToSend reports whether the scan found no untracked recordings.
func (r Report) NothingToSend() bool {
	return r.Candidates == 0
}

// Pipeline delivers untracked recordings.
type Pipeline struct {
	session    channel.Session
	normalizer audio.Normalizer
	tracker    *state.Tracker
	opts       Options
	logger     *slog.Logger
}

// NewPipeline builds a pipeline. The tracker is only read; recording the
// deliveries is left to the caller.
func NewPipeline(session channel.Session, normalizer audio.Normalizer, tracker *state.Tracker, opts Options, logger *slog.Logger) *Pipeline {
	if opts.MaxConcurrentSends <= 0 {
		opts.MaxConcurrentSends = 1
	}
	return &Pipeline{
		session:    session,
		normalizer: normalizer,
		tracker:    tracker,
		opts:       opts,
		logger:     logging.NewComponentLogger(logger, "outbound"),
	}
}

// Scan lists regular files in dir whose extension matches ext
// (case-insensitive) and that the tracker does not already cover, sorted by
// name.
func Scan(dir, ext string, tracker *state.Tracker) ([]Recording, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "outbound", "scan", dir, err)
	}
	ext = strings.ToLower(ext)
	var out []Recording
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.ToLower(filepath.Ext(name)) != ext {
			continue
		}
		if tracker != nil && tracker.IsTracked(name) {
			continue
		}
		out = append(out, Recording{Name: name, Path: filepath.Join(dir, name)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Caption derives the voice-note caption from a recording filename.
func Caption(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stem = norm.NFC.String(stem)
	if utf8.RuneCountInString(stem) <= MaxCaptionRunes {
		return stem
	}
	runes := []rune(stem)
	return string(runes[:MaxCaptionRunes])
}

// Run scans and delivers every candidate. Conversions run in parallel;
// uploads are limited to MaxConcurrentSends and start in filename order.
// A failing recording never cancels its siblings. The returned error is
// reserved for scan failures.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	ctx = services.WithPhase(ctx, "outbound")
	logger := logging.WithContext(ctx, p.logger)

	candidates, err := Scan(p.opts.RecordingsDir, p.opts.Extension, p.tracker)
	if err != nil {
		return Report{}, err
	}
	report := Report{Candidates: len(candidates)}
	if len(candidates) == 0 {
		logger.Debug("no new recordings")
		return report, nil
	}
	logger.Info("delivering recordings",
		logging.Int("count", len(candidates)),
		logging.Int("max_concurrent_sends", p.opts.MaxConcurrentSends),
	)

	sem := semaphore.NewWeighted(int64(p.opts.MaxConcurrentSends))
	turns := make([]chan struct{}, len(candidates)+1)
	for i := range turns {
		turns[i] = make(chan struct{})
	}
	close(turns[0])

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i, rec := range candidates {
		wg.Add(1)
		go func(i int, rec Recording) {
			defer wg.Done()
			delivery, err := p.deliver(ctx, sem, rec, turns[i], turns[i+1])
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, Failure{Recording: rec, Err: err})
				return
			}
			report.Deliveries = append(report.Deliveries, delivery)
		}(i, rec)
	}
	wg.Wait()

	for _, failure := range report.Failures {
		logging.WarnWithContext(logger, "recording not delivered",
			"delivery_failed",
			logging.Recording(failure.Recording.Name),
			logging.Error(failure.Err),
			logging.String(logging.FieldImpact, "recording is retried next pass"),
		)
	}
	return report, nil
}

// deliver normalizes one recording, waits for its turn and a send slot, then
// uploads it. The next recording's turn is released once this one holds a
// slot, or on any exit path after this one's own turn came up.
func (p *Pipeline) deliver(ctx context.Context, sem *semaphore.Weighted, rec Recording, turn <-chan struct{}, next chan<- struct{}) (Delivery, error) {
	ctx = services.WithRecording(ctx, rec.Name)
	logger := logging.WithContext(ctx, p.logger)

	passed := false
	passTurn := func() {
		if !passed {
			passed = true
			close(next)
		}
	}
	defer func() {
		if passed {
			return
		}
		select {
		case <-turn:
		case <-ctx.Done():
		}
		passTurn()
	}()

	normalized, err := p.normalizer.Normalize(ctx, rec.Path)
	if err != nil {
		return Delivery{}, err
	}
	defer func() {
		if err := normalized.Cleanup(); err != nil {
			logger.Warn("temporary audio cleanup failed", logging.Error(err))
		}
	}()

	select {
	case <-turn:
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return Delivery{}, err
	}
	defer sem.Release(1)
	passTurn()

	messageID, err := p.session.SendVoice(ctx, p.opts.TargetChat, normalized.Path, Caption(rec.Name), normalized.Length())
	if err != nil {
		return Delivery{}, fmt.Errorf("send %s: %w", rec.Name, err)
	}
	logger.Info("recording delivered",
		logging.MessageID(messageID),
		logging.Bool("converted", normalized.Converted),
	)
	return Delivery{Recording: rec, MessageID: messageID, Converted: normalized.Converted}, nil
}
