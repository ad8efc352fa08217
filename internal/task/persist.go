package task

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// tasksFileName is the name spec.md §6 gives the persisted task array.
const tasksFileName = "tasks.json"

// Save writes the ordered task array to tasks.json in dir. The write is
// atomic: data is written to a temp file first, then renamed into
// place. A cross-process file lock is held for the duration.
func (s *Store) Save(dir string) error {
	fl := NewFileLock(dir)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	s.mu.Lock()
	ordered := make([]*Task, 0, len(s.order))
	for _, id := range s.order {
		ordered = append(ordered, s.tasks[id])
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(ordered, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}

	target := filepath.Join(dir, tasksFileName)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load restores a Store from tasks.json in dir. A cross-process file
// lock is held for the duration of the read.
func Load(dir string) (*Store, error) {
	fl := NewFileLock(dir)
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	target := filepath.Join(dir, tasksFileName)
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("read tasks file: %w", err)
	}

	var ordered []*Task
	if err := json.Unmarshal(data, &ordered); err != nil {
		return nil, fmt.Errorf("unmarshal tasks: %w", err)
	}

	s := New()
	for _, t := range ordered {
		s.tasks[t.ID] = t
		s.order = append(s.order, t.ID)
	}
	return s, nil
}
