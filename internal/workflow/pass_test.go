package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"voicenotes/internal/channel"
	"voicenotes/internal/config"
	"voicenotes/internal/logging"
	"voicenotes/internal/media/audio"
	"voicenotes/internal/services"
	"voicenotes/internal/state"
	"voicenotes/internal/testsupport"
	"voicenotes/internal/workflow"
)

func deps(cfg *config.Config, st *state.State, session *testsupport.FakeSession) workflow.Deps {
	return workflow.Deps{
		Config:     cfg,
		State:      st,
		Opener:     session.Opener(),
		Normalizer: audio.NewFFmpegNormalizer(audio.OptionsFromConfig(cfg), logging.NewNop()),
		Logger:     logging.NewNop(),
	}
}

func ack(id, messageID int64) channel.ReactionChange {
	return channel.ReactionChange{ID: id, ChatID: testsupport.TestChatID, MessageID: messageID, Added: []string{"👌"}}
}

func TestPassSendsNewRecordingsInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMediaStubs())
	dir := cfg.Paths.RecordingsDir
	testsupport.WriteRecording(t, dir, "b.m4a", "b")
	testsupport.WriteRecording(t, dir, "a.m4a", "a")
	st := state.New(cfg.Paths.StateDir)
	session := testsupport.NewFakeSession()

	summary, err := workflow.RunPass(context.Background(), deps(cfg, st, session))
	if err != nil {
		t.Fatalf("RunPass returned error: %v", err)
	}
	if summary.NotesSent != 2 || summary.Failures != 0 || summary.Headline() != "Notes sent: 2" {
		t.Fatalf("unexpected summary %+v", summary)
	}
	voices := session.Voices()
	if len(voices) != 2 || voices[0].Caption != "a" || voices[1].Caption != "b" {
		t.Fatalf("expected a then b, got %+v", voices)
	}
	pending := st.Tracker.Pending()
	if len(pending) != 2 {
		t.Fatalf("expected two pending entries, got %+v", pending)
	}
	for _, voice := range voices {
		name, res := st.Tracker.Resolve(voice.MessageID)
		if res != state.Pending || name != voice.Caption+".m4a" {
			t.Fatalf("message %d maps to %q (%s)", voice.MessageID, name, res)
		}
	}
	for _, name := range []string{"a.m4a", "b.m4a"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("recordings must remain until acknowledged: %v", err)
		}
	}
	if !session.Closed() {
		t.Fatal("expected session to be closed")
	}

	// A second pass has nothing to send.
	summary, err = workflow.RunPass(context.Background(), deps(cfg, st, session))
	if err != nil {
		t.Fatalf("second RunPass returned error: %v", err)
	}
	if summary.NotesSent != 0 || !summary.NothingToSend || summary.Headline() != "No new notes" {
		t.Fatalf("expected no redelivery, got %+v", summary)
	}
	if len(session.Voices()) != 2 {
		t.Fatalf("expected no additional uploads, got %d", len(session.Voices()))
	}
}

func TestPassAcknowledgmentDeletesBeforeScan(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMediaStubs())
	dir := cfg.Paths.RecordingsDir
	path := testsupport.WriteRecording(t, dir, "a.m4a", "a")
	st := state.New(cfg.Paths.StateDir)
	if err := st.Tracker.Record(500, "a.m4a"); err != nil {
		t.Fatalf("record: %v", err)
	}
	session := testsupport.NewFakeSession(ack(9, 500))

	summary, err := workflow.RunPass(context.Background(), deps(cfg, st, session))
	if err != nil {
		t.Fatalf("RunPass returned error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected acknowledged recording deleted")
	}
	if _, res := st.Tracker.Resolve(500); res != state.Acknowledged {
		t.Fatalf("expected sentinel, got %s", res)
	}
	reactions := session.Reactions()
	if len(reactions) != 1 || reactions[0].MessageID != 500 {
		t.Fatalf("expected confirmation reaction, got %+v", reactions)
	}
	if len(session.Voices()) != 0 {
		t.Fatal("acknowledged recording must not be re-sent")
	}
	if summary.Acknowledged != 1 || summary.Deleted != 1 || summary.Cursor != 9 || st.LastUpdateID() != 9 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestPassAcknowledgmentOfManuallyDeletedRecording(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMediaStubs())
	st := state.New(cfg.Paths.StateDir)
	if err := st.Tracker.Record(500, "a.m4a"); err != nil {
		t.Fatalf("record: %v", err)
	}
	session := testsupport.NewFakeSession(ack(1, 500))

	summary, err := workflow.RunPass(context.Background(), deps(cfg, st, session))
	if err != nil {
		t.Fatalf("RunPass returned error: %v", err)
	}
	if summary.Failures != 0 || summary.Acknowledged != 1 || summary.Deleted != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, res := st.Tracker.Resolve(500); res != state.Acknowledged {
		t.Fatalf("expected sentinel, got %s", res)
	}
	if len(session.Reactions()) != 1 {
		t.Fatal("expected confirmation reaction")
	}
}

func TestPassRegistrationModeSkipsDelivery(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMediaStubs(), testsupport.WithRegistrationMode())
	testsupport.WriteRecording(t, cfg.Paths.RecordingsDir, "a.m4a", "a")
	st := state.New(cfg.Paths.StateDir)
	session := testsupport.NewFakeSession(channel.NewMessage{ID: 3, ChatID: 99, MessageID: 1, Text: "/start"})

	summary, err := workflow.RunPass(context.Background(), deps(cfg, st, session))
	if err != nil {
		t.Fatalf("RunPass returned error: %v", err)
	}
	if !summary.ReadOnly || summary.EventsProcessed != 1 || len(session.Voices()) != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if st.LastUpdateID() != 3 {
		t.Fatalf("expected cursor 3, got %d", st.LastUpdateID())
	}
}

func TestPassInboundStopStillDelivers(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMediaStubs())
	testsupport.WriteRecording(t, cfg.Paths.RecordingsDir, "a.m4a", "a")
	st := state.New(cfg.Paths.StateDir)
	session := testsupport.NewFakeSession(channel.Unrecognized{ID: 5, Description: "poll"})

	summary, err := workflow.RunPass(context.Background(), deps(cfg, st, session))
	if err != nil {
		t.Fatalf("RunPass returned error: %v", err)
	}
	if summary.InboundStopped == nil || summary.Failures != 1 || summary.NotesSent != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if st.LastUpdateID() != 0 {
		t.Fatalf("cursor must not pass the unrecognized event, got %d", st.LastUpdateID())
	}
}

func TestPassCountsDeliveryFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMediaStubs())
	testsupport.WriteRecording(t, cfg.Paths.RecordingsDir, "a.m4a", testsupport.MarkerCorrupt)
	testsupport.WriteRecording(t, cfg.Paths.RecordingsDir, "b.m4a", "b")
	st := state.New(cfg.Paths.StateDir)
	session := testsupport.NewFakeSession()

	summary, err := workflow.RunPass(context.Background(), deps(cfg, st, session))
	if err != nil {
		t.Fatalf("RunPass returned error: %v", err)
	}
	if summary.NotesSent != 1 || summary.Failures != 1 || len(summary.Failed) != 1 || summary.Failed[0] != "a.m4a" {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if st.Tracker.IsTracked("a.m4a") {
		t.Fatal("failed recording must stay untracked for retry")
	}
}

func TestPassOpenFailureAborts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := state.New(cfg.Paths.StateDir)
	boom := services.Wrap(services.ErrConfiguration, "telegram", "open", "bot token is empty", nil)
	d := workflow.Deps{
		Config: cfg,
		State:  st,
		Opener: channel.OpenerFunc(func(context.Context) (channel.Session, error) { return nil, boom }),
		Logger: logging.NewNop(),
	}
	if _, err := workflow.RunPass(context.Background(), d); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestPassMalformedTrackedNameIsFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMediaStubs())
	st := state.New(cfg.Paths.StateDir)
	if err := st.Tracker.Record(500, "../escape.m4a"); err != nil {
		t.Fatalf("record: %v", err)
	}
	session := testsupport.NewFakeSession(ack(1, 500))

	_, err := workflow.RunPass(context.Background(), deps(cfg, st, session))
	if !errors.Is(err, services.ErrMalformedState) {
		t.Fatalf("expected malformed state error, got %v", err)
	}
	if len(session.Reactions()) != 0 {
		t.Fatal("no confirmation may be sent for a malformed entry")
	}
}
