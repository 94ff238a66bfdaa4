package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"voicenotes/internal/config"
	"voicenotes/internal/logging"
	"voicenotes/internal/media/ffprobe"
	"voicenotes/internal/services"
)

// Normalizer turns an arbitrary recording into a voice-note-ready file.
type Normalizer interface {
	Normalize(ctx context.Context, path string) (*Normalized, error)
}

// Normalized is the result of a normalization. Path is either the source file
// (Converted false) or a temporary Ogg/Opus file owned by the caller until
// Cleanup is called.
type Normalized struct {
	Path      string
	Converted bool
	// Duration is the source length in seconds, 0 when unknown.
	Duration float64

	tempDir string
	once    sync.Once
	err     error
}

// Length returns Duration as a time.Duration.
func (n *Normalized) Length() time.Duration {
	if n == nil || n.Duration <= 0 {
		return 0
	}
	return time.Duration(n.Duration * float64(time.Second))
}

// Cleanup removes the temporary output, if any. It never touches the source
// recording and is safe to call more than once.
func (n *Normalized) Cleanup() error {
	if n == nil {
		return nil
	}
	n.once.Do(func() {
		if n.tempDir == "" {
			return
		}
		n.err = os.RemoveAll(n.tempDir)
	})
	return n.err
}

// Options configures FFmpegNormalizer.
type Options struct {
	FFmpegBinary        string
	FFprobeBinary       string
	Bitrate             int
	SilenceStopDuration float64
	SilenceThreshold    string
	TempDir             string
}

// OptionsFromConfig maps the [audio] and [paths] sections to normalizer options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FFmpegBinary:        cfg.FFmpegBinary(),
		FFprobeBinary:       cfg.FFprobeBinary(),
		Bitrate:             cfg.Audio.Bitrate,
		SilenceStopDuration: cfg.Audio.SilenceStopDuration,
		SilenceThreshold:    cfg.Audio.SilenceThreshold,
		TempDir:             cfg.Paths.TempDir,
	}
}

// FFmpegNormalizer probes with ffprobe and transcodes with ffmpeg.
type FFmpegNormalizer struct {
	opts   Options
	logger *slog.Logger
}

// NewFFmpegNormalizer constructs a normalizer; zero option values fall back to
// the voice-note defaults.
func NewFFmpegNormalizer(opts Options, logger *slog.Logger) *FFmpegNormalizer {
	if strings.TrimSpace(opts.FFmpegBinary) == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(opts.FFprobeBinary) == "" {
		opts.FFprobeBinary = "ffprobe"
	}
	if opts.Bitrate <= 0 {
		opts.Bitrate = 128 * 1024
	}
	if opts.SilenceStopDuration <= 0 {
		opts.SilenceStopDuration = 1
	}
	if strings.TrimSpace(opts.SilenceThreshold) == "" {
		opts.SilenceThreshold = "-50dB"
	}
	return &FFmpegNormalizer{opts: opts, logger: logging.NewComponentLogger(logger, "normalizer")}
}

// Normalize returns the source untouched when it is already Ogg/Opus with a
// single audio stream, otherwise a silence-trimmed Opus re-encode in a fresh
// temporary directory. Every error carries services.ErrConversionFailed.
func (n *FFmpegNormalizer) Normalize(ctx context.Context, path string) (*Normalized, error) {
	logger := logging.WithContext(ctx, n.logger)

	if _, err := os.Stat(path); err != nil {
		marker := services.ErrConversionFailed
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%w: %w", services.ErrNotFound, err)
		}
		return nil, services.Wrap(marker, "normalize", "stat", filepath.Base(path), err)
	}

	probe, err := ffprobe.Inspect(ctx, n.opts.FFprobeBinary, path)
	if err != nil {
		return nil, services.Wrap(services.ErrConversionFailed, "normalize", "probe", filepath.Base(path), err)
	}
	stream, err := probe.AudioStream()
	if err != nil {
		return nil, services.Wrap(services.ErrConversionFailed, "normalize", "probe", filepath.Base(path), err)
	}
	if probe.IsOggOpus() {
		logger.Debug("recording already ogg/opus", logging.String("path", path))
		return &Normalized{Path: path, Duration: probe.DurationSeconds()}, nil
	}

	tempDir, err := os.MkdirTemp(n.opts.TempDir, "voicenotes-")
	if err != nil {
		return nil, services.Wrap(services.ErrConversionFailed, "normalize", "tempdir", "", err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	output := filepath.Join(tempDir, stem+".ogg")

	args := []string{
		"-y",
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-i", path,
		"-map", fmt.Sprintf("0:%d", stream.Index),
		"-vn",
		"-sn",
		"-dn",
		"-af", n.silenceFilter(),
		"-c:a", "libopus",
		"-b:a", strconv.Itoa(n.opts.Bitrate),
		output,
	}
	cmd := exec.CommandContext(ctx, n.opts.FFmpegBinary, args...) //nolint:gosec
	if out, err := cmd.CombinedOutput(); err != nil {
		_ = os.RemoveAll(tempDir)
		detail := fmt.Errorf("ffmpeg encode: %w: %s", err, strings.TrimSpace(string(out)))
		return nil, services.Wrap(services.ErrConversionFailed, "normalize", "encode", filepath.Base(path), detail)
	}
	if info, err := os.Stat(output); err != nil || info.Size() == 0 {
		_ = os.RemoveAll(tempDir)
		return nil, services.Wrap(services.ErrConversionFailed, "normalize", "encode", filepath.Base(path), errors.New("ffmpeg produced no output"))
	}

	logger.Debug("recording transcoded",
		logging.String("source_codec", stream.CodecName),
		logging.String("output", output),
	)
	return &Normalized{Path: output, Converted: true, Duration: probe.DurationSeconds(), tempDir: tempDir}, nil
}

// silenceFilter trims leading silence once and every internal or trailing
// stretch longer than SilenceStopDuration below SilenceThreshold.
func (n *FFmpegNormalizer) silenceFilter() string {
	threshold := n.opts.SilenceThreshold
	return fmt.Sprintf(
		"silenceremove=start_periods=1:start_threshold=%s:stop_periods=-1:stop_duration=%s:stop_threshold=%s",
		threshold,
		strconv.FormatFloat(n.opts.SilenceStopDuration, 'f', -1, 64),
		threshold,
	)
}
