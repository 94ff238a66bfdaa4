package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"voicenotes/internal/fileutil"
	"voicenotes/internal/services"
)

// FileName is the state file inside the state directory.
const FileName = "state.json"

// State is the durable unit of a pass: the inbound cursor plus the tracker.
type State struct {
	mu           sync.Mutex
	lastUpdateID int64
	Tracker      *Tracker
	path         string
}

type stateFile struct {
	LastUpdateID *int64             `json:"last_update_id"`
	Messages     map[string]*string `json:"message_id_to_filename"`
}

// New returns an empty state that saves into dir.
func New(dir string) *State {
	return &State{Tracker: NewTracker(), path: filepath.Join(dir, FileName)}
}

// Load reads the state file from dir. A missing file yields an empty state;
// anything that does not have the expected shape is an error carrying
// services.ErrMalformedState.
func Load(dir string) (*State, error) {
	st := New(dir)
	data, err := os.ReadFile(st.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return st, nil
		}
		return nil, services.Wrap(services.ErrTransient, "state", "read", st.path, err)
	}
	if err := st.decode(data); err != nil {
		return nil, services.Wrap(services.ErrMalformedState, "state", "decode", st.path, err)
	}
	return st, nil
}

func (s *State) decode(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var file stateFile
	if err := dec.Decode(&file); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after state object")
	}
	if file.LastUpdateID == nil {
		return errors.New("missing last_update_id")
	}
	if *file.LastUpdateID < 0 {
		return fmt.Errorf("negative last_update_id %d", *file.LastUpdateID)
	}
	if file.Messages == nil {
		return errors.New("missing message_id_to_filename")
	}

	s.lastUpdateID = *file.LastUpdateID
	for key, name := range file.Messages {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || strconv.FormatInt(id, 10) != key {
			return fmt.Errorf("message id %q is not an integer", key)
		}
		if name == nil {
			s.Tracker.entries[id] = nil
			continue
		}
		if *name == "" || filepath.Base(*name) != *name {
			return fmt.Errorf("message %d: invalid filename %q", id, *name)
		}
		if err := s.Tracker.Record(id, *name); err != nil {
			return err
		}
	}
	return nil
}

// Encode renders the state exactly as Save writes it.
func (s *State) Encode() ([]byte, error) {
	cursor := s.LastUpdateID()
	file := stateFile{LastUpdateID: &cursor, Messages: map[string]*string{}}
	for id, name := range s.Tracker.snapshot() {
		file.Messages[strconv.FormatInt(id, 10)] = name
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "\t")
	if err := enc.Encode(file); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save persists the state atomically.
func (s *State) Save() error {
	data, err := s.Encode()
	if err != nil {
		return services.Wrap(services.ErrTransient, "state", "encode", "", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "state", "write", s.path, err)
	}
	return nil
}

// Path returns the state file location.
func (s *State) Path() string {
	return s.path
}

// LastUpdateID returns the inbound cursor.
func (s *State) LastUpdateID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdateID
}

// AdvanceCursor moves the cursor to id when id is newer and reports whether
// it moved. The cursor never goes backwards.
func (s *State) AdvanceCursor(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id <= s.lastUpdateID {
		return false
	}
	s.lastUpdateID = id
	return true
}
