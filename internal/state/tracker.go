package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrDuplicateMessage is returned by Record when the message id is already known.
	ErrDuplicateMessage = errors.New("message id already tracked")
	// ErrUnknownMessage is returned by Acknowledge for ids the tracker never recorded.
	ErrUnknownMessage = errors.New("message id not tracked")
)

// Resolution describes what a message id maps to.
type Resolution int

const (
	// NotFound means the id is unknown to this tracker.
	NotFound Resolution = iota
	// Pending means the id maps to a delivered recording awaiting acknowledgment.
	Pending
	// Acknowledged means the recording was acknowledged and deleted.
	Acknowledged
)

func (r Resolution) String() string {
	switch r {
	case Pending:
		return "pending"
	case Acknowledged:
		return "acknowledged"
	default:
		return "not_found"
	}
}

// Entry is one tracked message.
type Entry struct {
	MessageID int64
	Filename  string
}

// Tracker owns the message id to filename table. A nil filename is the
// acknowledged sentinel: the id stays known so duplicate reactions and
// rescans stay harmless.
type Tracker struct {
	mu      sync.Mutex
	entries map[int64]*string
	pending map[string]int
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[int64]*string),
		pending: make(map[string]int),
	}
}

// IsTracked reports whether some unacknowledged message maps to filename.
func (t *Tracker) IsTracked(filename string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending[filename] > 0
}

// Record maps a freshly delivered message to its recording.
func (t *Tracker) Record(messageID int64, filename string) error {
	if filename == "" {
		return fmt.Errorf("record message %d: empty filename", messageID)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[messageID]; exists {
		return fmt.Errorf("record message %d: %w", messageID, ErrDuplicateMessage)
	}
	name := filename
	t.entries[messageID] = &name
	t.pending[filename]++
	return nil
}

// Resolve looks up a message id. The filename is only set for Pending.
func (t *Tracker) Resolve(messageID int64) (string, Resolution) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resolveLocked(messageID)
}

func (t *Tracker) resolveLocked(messageID int64) (string, Resolution) {
	name, ok := t.entries[messageID]
	switch {
	case !ok:
		return "", NotFound
	case name == nil:
		return "", Acknowledged
	default:
		return *name, Pending
	}
}

// Acknowledge replaces the filename at messageID with the sentinel. It
// returns the resolution observed before the call: Pending when this call
// made the transition, Acknowledged when it had already happened.
func (t *Tracker) Acknowledge(messageID int64) (Resolution, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	name, res := t.resolveLocked(messageID)
	switch res {
	case NotFound:
		return NotFound, fmt.Errorf("acknowledge message %d: %w", messageID, ErrUnknownMessage)
	case Acknowledged:
		return Acknowledged, nil
	}
	t.entries[messageID] = nil
	if t.pending[name] <= 1 {
		delete(t.pending, name)
	} else {
		t.pending[name]--
	}
	return Pending, nil
}

// Pending lists unacknowledged messages ordered by message id.
func (t *Tracker) Pending() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, 0, len(t.entries))
	for id, name := range t.entries {
		if name != nil {
			out = append(out, Entry{MessageID: id, Filename: *name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out
}

// Counts returns the number of pending and acknowledged entries.
func (t *Tracker) Counts() (pending, acknowledged int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, name := range t.entries {
		if name == nil {
			acknowledged++
		} else {
			pending++
		}
	}
	return pending, acknowledged
}

func (t *Tracker) snapshot() map[int64]*string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[int64]*string, len(t.entries))
	for id, name := range t.entries {
		out[id] = name
	}
	return out
}
