// Package ledger persists the agent's cumulative spend record. The
// ledger is local, single-owner mutable state: one JSON file holding
// the running total and the ordered payment history.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Payment is one recorded settlement. TotalCost is the amount plus the
// routing fee observed from the settlement result.
type Payment struct {
	Amount       int64     `json:"amount"`
	Fee          int64     `json:"fee"`
	TotalCost    int64     `json:"total_cost"`
	SecretPrefix string    `json:"secret_prefix"`
	Memo         string    `json:"memo,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Ledger is the persisted spend record. Invariant: TotalSpent equals
// the sum of Payments[].TotalCost at all times.
type Ledger struct {
	TotalSpent int64     `json:"total_spent"`
	Payments   []Payment `json:"payments"`
}

// Store is an explicit handle to the ledger file. It does not cache:
// every Load reads the file and every Append rewrites it, so the file
// is the single source of truth. Callers serialize access themselves
// (the agent holds a mutex across its read-check-write sequence).
type Store struct {
	path string
}

// OpenStore creates a handle for the ledger file at path. The file need
// not exist yet.
func OpenStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the ledger file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the ledger from disk. A missing file is the zero-spend
// initial state, not an error. A ledger whose total does not match the
// sum of its entries is rejected as corrupt.
func (s *Store) Load() (*Ledger, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &Ledger{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger %s: %w", s.path, err)
	}
	var led Ledger
	if err := json.Unmarshal(data, &led); err != nil {
		return nil, fmt.Errorf("failed to parse ledger %s: %w", s.path, err)
	}
	var sum int64
	for _, p := range led.Payments {
		sum += p.TotalCost
	}
	if sum != led.TotalSpent {
		return nil, fmt.Errorf("ledger %s is corrupt: total_spent %d != sum of payments %d", s.path, led.TotalSpent, sum)
	}
	return &led, nil
}

// Append records one settled payment: read, append, persist. The write
// goes through a temp file and rename so a crash cannot leave a
// half-written ledger behind.
func (s *Store) Append(p Payment) error {
	if p.TotalCost != p.Amount+p.Fee {
		return fmt.Errorf("payment total_cost %d != amount %d + fee %d", p.TotalCost, p.Amount, p.Fee)
	}
	led, err := s.Load()
	if err != nil {
		return err
	}
	led.Payments = append(led.Payments, p)
	led.TotalSpent += p.TotalCost
	return s.save(led)
}

func (s *Store) save(led *Ledger) error {
	data, err := json.MarshalIndent(led, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*")
	if err != nil {
		return fmt.Errorf("failed to create ledger temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close ledger temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace ledger: %w", err)
	}
	return nil
}
