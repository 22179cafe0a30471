package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"updown_go/internal/domain"
)

// StateFile is the durable home of one PositionState. Saves go through a
// temp file and an atomic rename so a crash mid-write can never corrupt the
// previously committed state.
type StateFile struct {
	path string
}

// NewStateFile creates a gateway for the given path. Dry and live modes use
// different paths so a simulation can never touch production state.
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// Path returns the backing file path.
func (s *StateFile) Path() string {
	return s.path
}

// Save checkpoints the state. The write is atomic-durable: temp file,
// fsync, rename.
func (s *StateFile) Save(st *domain.PositionState) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open temp state file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync state: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit state: %w", err)
	}
	return nil
}

// Load restores the last checkpointed state. Returns domain.ErrStateNotFound
// when no file exists yet.
func (s *StateFile) Load() (*domain.PositionState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var st domain.PositionState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode state file: %w", err)
	}
	if st.SchemaVersion > domain.StateSchemaVersion {
		return nil, fmt.Errorf("state file schema %d is newer than supported %d", st.SchemaVersion, domain.StateSchemaVersion)
	}
	return &st, nil
}
