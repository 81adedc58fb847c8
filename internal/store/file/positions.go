// Package file provides JSON file persistence for small bits of durable
// state.
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
)

// SpendStore persists spend state as a JSON file. Writes go through a temp
// file and an atomic rename so a crash mid-write never corrupts the state.
type SpendStore struct {
	path string
}

// NewSpendStore creates a store backed by the given file path. The parent
// directory is created if missing.
func NewSpendStore(path string) (*SpendStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file: spend store path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("file: create state dir: %w", err)
		}
	}
	return &SpendStore{path: path}, nil
}

// Load reads the persisted state. A missing file is not an error; it yields
// an empty state for a fresh session.
func (s *SpendStore) Load() (domain.SpendState, error) {
	state := domain.SpendState{
		PositionCosts: make(map[string]float64),
		LastTraded:    make(map[string]int),
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state, nil
		}
		return state, fmt.Errorf("file: read spend state: %w", err)
	}

	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("file: parse spend state: %w", err)
	}
	if state.PositionCosts == nil {
		state.PositionCosts = make(map[string]float64)
	}
	if state.LastTraded == nil {
		state.LastTraded = make(map[string]int)
	}
	return state, nil
}

// Save writes the state atomically: marshal, write to a temp file in the same
// directory, fsync, rename over the target.
func (s *SpendStore) Save(state domain.SpendState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("file: marshal spend state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("file: create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("file: write spend state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("file: sync spend state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file: close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file: replace spend state: %w", err)
	}
	return nil
}

var _ domain.SpendStore = (*SpendStore)(nil)
