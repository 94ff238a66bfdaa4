package inbound_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"voicenotes/internal/channel"
	"voicenotes/internal/inbound"
	"voicenotes/internal/logging"
	"voicenotes/internal/state"
	"voicenotes/internal/testsupport"
)

const chat = testsupport.TestChatID

type fixture struct {
	dir     string
	state   *state.State
	session *testsupport.FakeSession
	opts    inbound.Options
}

func newFixture(t *testing.T, events ...channel.Event) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return &fixture{
		dir:     cfg.Paths.RecordingsDir,
		state:   state.New(cfg.Paths.StateDir),
		session: testsupport.NewFakeSession(events...),
		opts:    inbound.OptionsFromConfig(cfg),
	}
}

func (f *fixture) run() inbound.Result {
	return inbound.NewProcessor(f.session, f.state, f.opts, logging.NewNop()).Run(context.Background())
}

func (f *fixture) track(t *testing.T, messageID int64, name string, onDisk bool) string {
	t.Helper()
	if err := f.state.Tracker.Record(messageID, name); err != nil {
		t.Fatalf("record: %v", err)
	}
	path := filepath.Join(f.dir, name)
	if onDisk {
		testsupport.WriteRecording(t, f.dir, name, "audio")
	}
	return path
}

func done(id, messageID int64) channel.ReactionChange {
	return channel.ReactionChange{ID: id, ChatID: chat, MessageID: messageID, Added: []string{"👍"}}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestAcknowledgmentDeletesRecording(t *testing.T) {
	f := newFixture(t, done(7, 500))
	path := f.track(t, 500, "walk.m4a", true)

	result := f.run()
	if result.Stopped != nil {
		t.Fatalf("unexpected stop: %v", result.Stopped)
	}
	if exists(path) {
		t.Fatal("expected recording to be deleted")
	}
	if _, res := f.state.Tracker.Resolve(500); res != state.Acknowledged {
		t.Fatalf("expected acknowledged, got %s", res)
	}
	reactions := f.session.Reactions()
	if len(reactions) != 1 || reactions[0].MessageID != 500 || reactions[0].Emoji != "🫡" {
		t.Fatalf("expected one confirmation reaction, got %+v", reactions)
	}
	if result.Processed != 1 || result.Acknowledged != 1 || result.Deleted != 1 || result.Cursor != 7 {
		t.Fatalf("unexpected result %+v", result)
	}
	if f.state.LastUpdateID() != 7 {
		t.Fatalf("expected cursor 7, got %d", f.state.LastUpdateID())
	}
}

func TestAcknowledgmentOfManuallyDeletedRecording(t *testing.T) {
	f := newFixture(t, done(3, 500))
	f.track(t, 500, "gone.m4a", false)

	result := f.run()
	if result.Stopped != nil {
		t.Fatalf("unexpected stop: %v", result.Stopped)
	}
	if _, res := f.state.Tracker.Resolve(500); res != state.Acknowledged {
		t.Fatalf("expected acknowledged, got %s", res)
	}
	if len(f.session.Reactions()) != 1 {
		t.Fatal("expected confirmation reaction")
	}
	if result.Deleted != 0 || result.Acknowledged != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestDuplicateAcknowledgmentIsNoop(t *testing.T) {
	f := newFixture(t, done(1, 500), done(2, 500))
	path := f.track(t, 500, "walk.m4a", true)

	result := f.run()
	if result.Stopped != nil {
		t.Fatalf("unexpected stop: %v", result.Stopped)
	}
	if exists(path) {
		t.Fatal("expected recording deleted")
	}
	if result.Processed != 2 || result.Acknowledged != 1 || result.Deleted != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(f.session.Reactions()) != 1 {
		t.Fatalf("expected a single confirmation, got %d", len(f.session.Reactions()))
	}
}

func TestUnknownMessageAcknowledgmentIsProcessed(t *testing.T) {
	f := newFixture(t, done(4, 999))
	result := f.run()
	if result.Stopped != nil || result.Processed != 1 || result.Cursor != 4 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(f.session.Reactions()) != 0 {
		t.Fatal("unknown messages must not be confirmed")
	}
}

func TestOtherReactionsAndForeignChatsAreIgnored(t *testing.T) {
	f := newFixture(t,
		channel.ReactionChange{ID: 1, ChatID: chat, MessageID: 500, Added: []string{"🔥"}},
		channel.ReactionChange{ID: 2, ChatID: chat + 1, MessageID: 500, Added: []string{"👍"}},
		channel.ReactionChange{ID: 3, ChatID: chat, MessageID: 500},
	)
	path := f.track(t, 500, "walk.m4a", true)

	result := f.run()
	if result.Stopped != nil || result.Processed != 3 || result.Cursor != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !exists(path) {
		t.Fatal("recording must survive non-acknowledging reactions")
	}
	if !f.state.Tracker.IsTracked("walk.m4a") {
		t.Fatal("recording should remain tracked")
	}
}

func TestUnrecognizedEventStopsPhase(t *testing.T) {
	f := newFixture(t,
		channel.NewMessage{ID: 10, ChatID: chat, MessageID: 1, Text: "hello"},
		channel.Unrecognized{ID: 11, Description: "edited message"},
		done(12, 500),
	)
	path := f.track(t, 500, "walk.m4a", true)

	result := f.run()
	if result.Stopped == nil {
		t.Fatal("expected the phase to stop")
	}
	if result.StoppedAt != 11 || result.Processed != 1 || result.Cursor != 10 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !exists(path) {
		t.Fatal("events after the failure must not be processed")
	}

	// The next pass resumes at the failed event.
	f.run()
	offsets := f.session.Offsets()
	if offsets[len(offsets)-1] != 11 {
		t.Fatalf("expected next pass to fetch from 11, got %v", offsets)
	}
	if f.state.LastUpdateID() != 10 {
		t.Fatalf("cursor moved past unrecognized event: %d", f.state.LastUpdateID())
	}
}

func TestConfirmationFailureLeavesEventForRetry(t *testing.T) {
	f := newFixture(t, done(5, 500))
	path := f.track(t, 500, "walk.m4a", true)
	f.session.ReactionErr = errors.New("bad gateway")

	result := f.run()
	if result.Stopped == nil || result.Cursor != 0 {
		t.Fatalf("expected stop without cursor movement, got %+v", result)
	}
	if exists(path) {
		t.Fatal("deletion precedes confirmation")
	}
	if _, res := f.state.Tracker.Resolve(500); res != state.Pending {
		t.Fatalf("expected still pending, got %s", res)
	}

	f.session.ReactionErr = nil
	result = f.run()
	if result.Stopped != nil || result.Acknowledged != 1 || result.Cursor != 5 {
		t.Fatalf("retry did not converge: %+v", result)
	}
	if _, res := f.state.Tracker.Resolve(500); res != state.Acknowledged {
		t.Fatalf("expected acknowledged after retry, got %s", res)
	}
}

func TestStartCommandGreets(t *testing.T) {
	f := newFixture(t,
		channel.NewMessage{ID: 1, ChatID: chat, MessageID: 1, Text: "/start"},
		channel.NewMessage{ID: 2, ChatID: chat + 5, MessageID: 1, Text: "/start"},
	)
	result := f.run()
	if result.Stopped != nil || result.Processed != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	messages := f.session.Messages()
	if len(messages) != 1 || messages[0].ChatID != chat || messages[0].Text != "Hi!" {
		t.Fatalf("expected a single greeting to the target chat, got %+v", messages)
	}
}

func TestRegistrationModeOnlyLogs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRegistrationMode())
	session := testsupport.NewFakeSession(
		channel.NewMessage{ID: 1, ChatID: 77, MessageID: 1, Text: "/start"},
		channel.ReactionChange{ID: 2, ChatID: 77, MessageID: 1, Added: []string{"👍"}},
	)
	st := state.New(cfg.Paths.StateDir)
	result := inbound.NewProcessor(session, st, inbound.OptionsFromConfig(cfg), logging.NewNop()).Run(context.Background())
	if result.Stopped != nil || result.Processed != 2 || st.LastUpdateID() != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(session.Messages()) != 0 || len(session.Reactions()) != 0 {
		t.Fatal("registration mode must not reply")
	}
}

func TestFetchFailureStopsWithoutMovingCursor(t *testing.T) {
	f := newFixture(t)
	if !f.state.AdvanceCursor(41) {
		t.Fatal("advance cursor")
	}
	f.session.UpdatesErr = errors.New("connection reset")
	result := f.run()
	if result.Stopped == nil || result.StoppedAt != 0 || result.Cursor != 41 {
		t.Fatalf("unexpected result %+v", result)
	}
	if f.state.LastUpdateID() != 41 {
		t.Fatalf("cursor changed: %d", f.state.LastUpdateID())
	}
	if offsets := f.session.Offsets(); len(offsets) != 1 || offsets[0] != 42 {
		t.Fatalf("expected fetch after cursor, got %v", offsets)
	}
}

func TestPagesUntilShortPage(t *testing.T) {
	var events []channel.Event
	for id := int64(1); id <= 5; id++ {
		events = append(events, channel.NewMessage{ID: id, ChatID: chat, MessageID: id, Text: "note"})
	}
	f := newFixture(t, events...)
	f.opts.PageSize = 2

	result := f.run()
	if result.Stopped != nil || result.Processed != 5 || result.Cursor != 5 {
		t.Fatalf("unexpected result %+v", result)
	}
	offsets := f.session.Offsets()
	want := []int64{1, 3, 5}
	if len(offsets) != len(want) {
		t.Fatalf("expected offsets %v, got %v", want, offsets)
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Fatalf("expected offsets %v, got %v", want, offsets)
		}
	}
}

func TestEventsAtOrBelowCursorAreSkipped(t *testing.T) {
	f := newFixture(t, done(3, 500))
	path := f.track(t, 500, "walk.m4a", true)
	f.state.AdvanceCursor(3)

	result := f.run()
	if result.Processed != 0 || !exists(path) {
		t.Fatalf("old events must not be reprocessed: %+v", result)
	}
}
