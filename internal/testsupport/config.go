package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voicenotes/internal/config"
)

// TestChatID is the target conversation used by NewConfig.
const TestChatID int64 = 4242

// TestToken is syntactically valid for the Bot API client.
const TestToken = "123456:ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghi"

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The recordings directory exists; a target chat is configured.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	chat := TestChatID
	cfgVal.Telegram.Token = TestToken
	cfgVal.Telegram.ChatID = &chat
	cfgVal.Paths.RecordingsDir = filepath.Join(base, "recordings")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.TempDir = filepath.Join(base, "tmp")

	for _, dir := range []string{cfgVal.Paths.RecordingsDir, cfgVal.Paths.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRegistrationMode clears the target chat.
func WithRegistrationMode() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Telegram.ChatID = nil
	}
}

// WithMaxConcurrentSends overrides the send gate width.
func WithMaxConcurrentSends(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Recordings.MaxConcurrentSends = n
	}
}

// WithAPIURL points the Bot API client at a test server.
func WithAPIURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Telegram.APIURL = strings.TrimRight(url, "/")
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// WithMediaStubs installs fake ffprobe and ffmpeg scripts and points the
// config at them. See WriteMediaStubs for the behaviour they emulate.
func WithMediaStubs() ConfigOption {
	return func(b *configBuilder) {
		ffprobe, ffmpeg := WriteMediaStubs(b.t, filepath.Join(b.baseDir, "media-bin"))
		b.cfg.Audio.FFprobeBinary = ffprobe
		b.cfg.Audio.FFmpegBinary = ffmpeg
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.RecordingsDir)
}
