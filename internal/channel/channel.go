package channel

import (
	"context"
	"fmt"
	"time"
)

// Event is one inbound update. The set of implementations is closed:
// NewMessage, ReactionChange and Unrecognized.
type Event interface {
	// UpdateID is the monotonically increasing identifier assigned by the service.
	UpdateID() int64
	isEvent()
}

// NewMessage is a text or media message sent to the bot.
type NewMessage struct {
	ID        int64
	ChatID    int64
	MessageID int64
	Text      string
	From      string
}

// ReactionChange reports the reactions a user added to a message. Only the
// glyphs present in the new reaction set and absent from the old one are kept.
type ReactionChange struct {
	ID        int64
	ChatID    int64
	MessageID int64
	Added     []string
}

// Unrecognized is any update shape the processor does not understand.
type Unrecognized struct {
	ID          int64
	Description string
}

func (e NewMessage) UpdateID() int64     { return e.ID }
func (e ReactionChange) UpdateID() int64 { return e.ID }
func (e Unrecognized) UpdateID() int64   { return e.ID }

func (NewMessage) isEvent()     {}
func (ReactionChange) isEvent() {}
func (Unrecognized) isEvent()   {}

func (e Unrecognized) String() string {
	return fmt.Sprintf("update %d: %s", e.ID, e.Description)
}

// Session is an open connection to the messaging service. Every call carries
// its own timeout; a hang surfaces as an error for that event or file.
type Session interface {
	// Updates returns up to limit events with identifiers >= offset, ascending.
	Updates(ctx context.Context, offset int64, limit int) ([]Event, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
	// SendVoice uploads the file at path as a voice note and returns its message id.
	// A zero duration is left for the service to work out.
	SendVoice(ctx context.Context, chatID int64, path, caption string, duration time.Duration) (int64, error)
	SetReaction(ctx context.Context, chatID, messageID int64, emoji string) error
	Close() error
}

// Opener opens a Session for one pass.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (Session, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context) (Session, error) {
	return f(ctx)
}
