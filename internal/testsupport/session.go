package testsupport

import (
	"context"
	"os"
	"sync"
	"time"

	"voicenotes/internal/channel"
)

// SentVoice captures one SendVoice call.
type SentVoice struct {
	ChatID    int64
	Path      string
	Caption   string
	Duration  time.Duration
	MessageID int64
	// Content is the file content at upload time; the upload may be a
	// temporary file that is gone by the time the test inspects it.
	Content string
}

// SentMessage captures one SendMessage call.
type SentMessage struct {
	ChatID int64
	Text   string
}

// Reaction captures one SetReaction call.
type Reaction struct {
	ChatID    int64
	MessageID int64
	Emoji     string
}

// FakeSession is an in-memory channel.Session. Events are served to Updates
// by identifier; outgoing calls are recorded. It is safe for concurrent use.
type FakeSession struct {
	mu sync.Mutex

	events      []channel.Event
	nextMessage int64
	offsets     []int64

	voices    []SentVoice
	messages  []SentMessage
	reactions []Reaction
	closed    bool

	// UpdatesErr fails every Updates call when set.
	UpdatesErr error
	// VoiceErrs fails SendVoice for the given caption.
	VoiceErrs map[string]error
	// ReactionErr fails every SetReaction call when set.
	ReactionErr error
	// MessageErr fails every SendMessage call when set.
	MessageErr error
	// BeforeSend runs before a voice upload is recorded, outside the lock.
	BeforeSend func(caption string)
}

// NewFakeSession returns a session that serves events and assigns outgoing
// message ids starting at 1000.
func NewFakeSession(events ...channel.Event) *FakeSession {
	return &FakeSession{events: events, nextMessage: 1000}
}

// Opener returns a channel.Opener that always yields s.
func (s *FakeSession) Opener() channel.Opener {
	return channel.OpenerFunc(func(context.Context) (channel.Session, error) {
		return s, nil
	})
}

// AddEvents appends events to the backlog.
func (s *FakeSession) AddEvents(events ...channel.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

// Updates returns up to limit events whose id is at least offset.
func (s *FakeSession) Updates(ctx context.Context, offset int64, limit int) ([]channel.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets = append(s.offsets, offset)
	if s.UpdatesErr != nil {
		return nil, s.UpdatesErr
	}
	var out []channel.Event
	for _, event := range s.events {
		if event.UpdateID() < offset {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, event)
	}
	return out, nil
}

// SendMessage records a text message.
func (s *FakeSession) SendMessage(_ context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MessageErr != nil {
		return s.MessageErr
	}
	s.messages = append(s.messages, SentMessage{ChatID: chatID, Text: text})
	return nil
}

// SendVoice records an upload and returns the next message id.
func (s *FakeSession) SendVoice(_ context.Context, chatID int64, path, caption string, duration time.Duration) (int64, error) {
	if s.BeforeSend != nil {
		s.BeforeSend(caption)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.VoiceErrs[caption]; err != nil {
		return 0, err
	}
	id := s.nextMessage
	s.nextMessage++
	s.voices = append(s.voices, SentVoice{
		ChatID:    chatID,
		Path:      path,
		Caption:   caption,
		Duration:  duration,
		MessageID: id,
		Content:   string(data),
	})
	return id, nil
}

// SetReaction records a reaction.
func (s *FakeSession) SetReaction(_ context.Context, chatID, messageID int64, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReactionErr != nil {
		return s.ReactionErr
	}
	s.reactions = append(s.reactions, Reaction{ChatID: chatID, MessageID: messageID, Emoji: emoji})
	return nil
}

// Close marks the session closed.
func (s *FakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Voices returns the recorded uploads in call order.
func (s *FakeSession) Voices() []SentVoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentVoice(nil), s.voices...)
}

// Messages returns the recorded text messages.
func (s *FakeSession) Messages() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentMessage(nil), s.messages...)
}

// Reactions returns the recorded reactions.
func (s *FakeSession) Reactions() []Reaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Reaction(nil), s.reactions...)
}

// Offsets returns the offsets passed to Updates.
func (s *FakeSession) Offsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.offsets...)
}

// Closed reports whether Close was called.
func (s *FakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
