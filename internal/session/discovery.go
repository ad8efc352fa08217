package session

import "time"

// StateDirName is the default directory name, relative to the project
// root, that holds a session's persisted state, task store, logs, and
// debug prompt captures.
const StateDirName = ".loopdriver"

// Discovery summarizes a session directory without fully decoding the
// session, for use by a resume or status command before committing to
// loading and locking it.
type Discovery struct {
	Exists    bool
	Locked    bool
	SessionID string
	Goal      string
	Status    Status
	UpdatedAt time.Time
}

// Discover inspects dir and reports whether it holds a resumable
// session, and whether that session is currently locked by a live
// process.
func Discover(dir string) (Discovery, error) {
	if !Exists(dir) {
		return Discovery{}, nil
	}

	s, err := Load(dir)
	if err != nil {
		return Discovery{}, err
	}

	locked, err := IsLocked(dir)
	if err != nil {
		return Discovery{}, err
	}

	return Discovery{
		Exists:    true,
		Locked:    locked,
		SessionID: s.SessionID,
		Goal:      s.Goal,
		Status:    s.Status,
		UpdatedAt: s.UpdatedAt,
	}, nil
}
