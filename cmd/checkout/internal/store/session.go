// Package store persists the CLI's checkout session between runs.
package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Rohianon/multicurrency-checkout/pkg/checkout"
)

// Stored is what survives between invocations: the session plus the last
// reference, so verify can run without arguments.
type Stored struct {
	Session       *checkout.Session `json:"session"`
	LastReference string            `json:"last_reference,omitempty"`
	SavedAt       time.Time         `json:"saved_at"`
}

func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".checkout", "session.json"), nil
}

func Save(s *Stored) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	s.SavedAt = time.Now().UTC()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Load returns the stored session, or a fresh one when none was saved.
func Load() (*Stored, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Stored{Session: checkout.NewSession()}, nil
	}
	if err != nil {
		return nil, err
	}

	var s Stored
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Session == nil {
		s.Session = checkout.NewSession()
	}
	return &s, nil
}

func Clear() error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
