package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kieran-voss/loopdriver/internal/engerrors"
)

const lockFileName = "session.lock"

// lockRecord is the JSON body of a lock file: enough to tell a later
// process whether the holder is still alive.
type lockRecord struct {
	SessionID string    `json:"session_id"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
}

// Lock is a held, file-backed exclusive lock on one session directory.
// Unlike internal/task's flock-based lock, which only provides mutual
// exclusion between processes running at the same time, Lock also
// distinguishes a live holder from one that crashed, so a resumed
// session can clean up after itself.
type Lock struct {
	path   string
	record lockRecord
}

// Acquire takes the lock for sessionDir. If an existing lock file names
// a process that is no longer alive, it is treated as stale, removed,
// and the acquisition proceeds; if the named process is alive, Acquire
// returns a SessionError wrapping engerrors.ErrSessionLocked.
func Acquire(sessionDir, sessionID string) (*Lock, error) {
	path := filepath.Join(sessionDir, lockFileName)

	if existing, err := readLock(path); err == nil {
		if isProcessAlive(existing.PID) {
			return nil, engerrors.NewSessionError(
				"session is held by a live process", engerrors.ErrSessionLocked,
			).WithSessionID(existing.SessionID)
		}
		_ = os.Remove(path)
	}

	hostname, _ := os.Hostname()
	record := lockRecord{
		SessionID: sessionID,
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, engerrors.NewSessionError("failed to encode lock record", err).WithSessionID(sessionID)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			// Lost the race to another process acquiring concurrently;
			// report whoever won rather than silently overwriting.
			if existing, rerr := readLock(path); rerr == nil {
				return nil, engerrors.NewSessionError(
					"lost the race to acquire the session lock", engerrors.ErrSessionLocked,
				).WithSessionID(existing.SessionID)
			}
			return nil, engerrors.NewSessionError("session lock already exists", engerrors.ErrSessionLocked).WithSessionID(sessionID)
		}
		return nil, engerrors.NewSessionError("failed to create lock file", err).WithSessionID(sessionID)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		_ = os.Remove(path)
		return nil, engerrors.NewSessionError("failed to write lock file", err).WithSessionID(sessionID)
	}

	return &Lock{path: path, record: record}, nil
}

// Release removes the lock file, but only if it still records this
// process's PID — a lock this process doesn't own is never clobbered.
func (l *Lock) Release() error {
	current, err := readLock(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if current.PID != l.record.PID {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return engerrors.NewSessionError("failed to release session lock", err).WithSessionID(l.record.SessionID)
	}
	return nil
}

// IsLocked reports whether sessionDir carries a lock file naming a
// still-live process.
func IsLocked(sessionDir string) (bool, error) {
	path := filepath.Join(sessionDir, lockFileName)
	record, err := readLock(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return isProcessAlive(record.PID), nil
}

func readLock(path string) (*lockRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var record lockRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, engerrors.NewSessionError("failed to parse lock file", engerrors.ErrSessionCorrupted)
	}
	return &record, nil
}

func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, os.ErrPermission)
}
