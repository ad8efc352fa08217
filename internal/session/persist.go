package session

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/kieran-voss/loopdriver/internal/engerrors"
)

// stateFileName is the name spec.md §6 gives the persisted Session.
const stateFileName = "state.json"

// Save writes the Session to state.json in dir. The write is atomic:
// data is written to a temp file first, then renamed into place,
// mirroring internal/task's tasks.json persistence.
func Save(dir string, s *Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return engerrors.NewSessionError("failed to marshal session", err).WithSessionID(s.SessionID)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return engerrors.NewSessionError("failed to create state directory", err).WithSessionID(s.SessionID)
	}

	target := filepath.Join(dir, stateFileName)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return engerrors.NewSessionError("failed to write temp state file", err).WithSessionID(s.SessionID)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return engerrors.NewSessionError("failed to rename temp state file", err).WithSessionID(s.SessionID)
	}
	return nil
}

// Load restores a Session from state.json in dir.
func Load(dir string) (*Session, error) {
	target := filepath.Join(dir, stateFileName)
	data, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, engerrors.NewSessionError("no session state found", engerrors.ErrSessionNotFound)
		}
		return nil, engerrors.NewSessionError("failed to read state file", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, engerrors.NewSessionError("failed to parse state file", engerrors.ErrSessionCorrupted)
	}
	return &s, nil
}

// Exists reports whether dir already holds a persisted session.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, stateFileName))
	return err == nil
}
