package passrun_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"voicenotes/internal/channel"
	"voicenotes/internal/config"
	"voicenotes/internal/logging"
	"voicenotes/internal/media/audio"
	"voicenotes/internal/notifications"
	"voicenotes/internal/passrun"
	"voicenotes/internal/services"
	"voicenotes/internal/state"
	"voicenotes/internal/testsupport"
)

type recordingNotifier struct {
	mu     sync.Mutex
	passes []notifications.PassResult
	errors []string
}

func (n *recordingNotifier) NotifyPassCompleted(_ context.Context, result notifications.PassResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.passes = append(n.passes, result)
	return nil
}

func (n *recordingNotifier) NotifyError(_ context.Context, _ error, stage string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, stage)
	return nil
}

func (n *recordingNotifier) TestNotification(context.Context) error { return nil }

func options(cfg *config.Config, session *testsupport.FakeSession, console *bytes.Buffer, notifier notifications.Service) passrun.Options {
	return passrun.Options{
		Console:    console,
		Opener:     session.Opener(),
		Normalizer: audio.NewFFmpegNormalizer(audio.OptionsFromConfig(cfg), logging.NewNop()),
		Notifier:   notifier,
	}
}

func TestRunSavesStateOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMediaStubs())
	testsupport.WriteRecording(t, cfg.Paths.RecordingsDir, "a.m4a", "a")
	testsupport.WriteRecording(t, cfg.Paths.RecordingsDir, "b.m4a", "b")
	session := testsupport.NewFakeSession(channel.NewMessage{ID: 12, ChatID: testsupport.TestChatID, MessageID: 1, Text: "hi"})
	notifier := &recordingNotifier{}
	var console bytes.Buffer

	result, err := passrun.Run(context.Background(), cfg, options(cfg, session, &console, notifier))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Skipped || result.PassID == "" {
		t.Fatalf("unexpected result %+v", result)
	}
	if !strings.Contains(console.String(), "Notes sent: 2") {
		t.Fatalf("expected headline in console output, got %q", console.String())
	}

	st, err := state.Load(cfg.Paths.StateDir)
	if err != nil {
		t.Fatalf("load saved state: %v", err)
	}
	if st.LastUpdateID() != 12 {
		t.Fatalf("expected cursor 12, got %d", st.LastUpdateID())
	}
	if !st.Tracker.IsTracked("a.m4a") || !st.Tracker.IsTracked("b.m4a") {
		t.Fatal("expected both recordings tracked in saved state")
	}
	saved, err := os.ReadFile(st.Path())
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	encoded, err := st.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(saved, encoded) {
		t.Fatalf("state does not round-trip:\n%s\nvs\n%s", saved, encoded)
	}

	if _, err := os.Stat(result.LogPath); err != nil {
		t.Fatalf("expected pass log: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(cfg.Paths.LogDir, passrun.CurrentLogName)); err != nil {
		t.Fatalf("expected current log pointer: %v", err)
	}
	logData, _ := os.ReadFile(result.LogPath)
	if !strings.Contains(string(logData), result.PassID) {
		t.Fatal("expected pass id in the pass log")
	}
	if len(notifier.passes) != 1 || notifier.passes[0].NotesSent != 2 {
		t.Fatalf("expected one pass notification, got %+v", notifier.passes)
	}

	console.Reset()
	if _, err := passrun.Run(context.Background(), cfg, options(cfg, session, &console, notifier)); err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if !strings.Contains(console.String(), "No new notes") {
		t.Fatalf("expected no new notes, got %q", console.String())
	}
}

func TestRunFailureLeavesStateUntouched(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMediaStubs())
	notifier := &recordingNotifier{}
	opts := passrun.Options{
		Console: &bytes.Buffer{},
		Opener: channel.OpenerFunc(func(context.Context) (channel.Session, error) {
			return nil, errors.New("dial tcp: connection refused")
		}),
		Notifier: notifier,
	}

	if _, err := passrun.Run(context.Background(), cfg, opts); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.StateDir, state.FileName)); !os.IsNotExist(err) {
		t.Fatal("state must not be saved after a failed pass")
	}
	if len(notifier.errors) != 1 || notifier.errors[0] != "sync" {
		t.Fatalf("expected error notification, got %v", notifier.errors)
	}
}

func TestRunRefusesMalformedState(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMediaStubs())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	path := filepath.Join(cfg.Paths.StateDir, state.FileName)
	garbage := []byte(`{"last_update_id": "seven"}`)
	if err := os.WriteFile(path, garbage, 0o644); err != nil {
		t.Fatalf("write state: %v", err)
	}
	session := testsupport.NewFakeSession()

	_, err := passrun.Run(context.Background(), cfg, options(cfg, session, &bytes.Buffer{}, &recordingNotifier{}))
	if !errors.Is(err, services.ErrMalformedState) {
		t.Fatalf("expected malformed state error, got %v", err)
	}
	data, _ := os.ReadFile(path)
	if !bytes.Equal(data, garbage) {
		t.Fatal("malformed state must be left for the operator")
	}
	if len(session.Offsets()) != 0 {
		t.Fatal("no updates may be fetched with malformed state")
	}
}

func TestRunSkipsWhenLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMediaStubs())
	lock, err := state.AcquireLock(cfg.Paths.StateDir)
	if err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	defer lock.Release()
	session := testsupport.NewFakeSession()

	result, err := passrun.Run(context.Background(), cfg, options(cfg, session, &bytes.Buffer{}, &recordingNotifier{}))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !result.Skipped {
		t.Fatal("expected pass to be skipped")
	}
	if len(session.Offsets()) != 0 {
		t.Fatal("skipped pass must not talk to the channel")
	}
}
