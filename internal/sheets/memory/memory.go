// Package memory is an in-process check sheet for development and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"cheques/internal/core"
	"cheques/internal/sheets"
)

// Ensure interface conformance
var _ sheets.Backend = (*Store)(nil)

type Store struct {
	mu    sync.Mutex
	rows  []core.Check
	loc   *time.Location
	now   func() time.Time
	calls int
}

// New returns a store holding a copy of rows.
func New(rows []core.Check, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	s := &Store{loc: loc, now: time.Now}
	for i, c := range rows {
		c.ID = i
		s.rows = append(s.rows, c)
	}
	return s
}

// NewFromFile seeds the store from a JSON array of sheet rows, the same
// shape the web app returns. A missing file yields an empty store.
func NewFromFile(path string, loc *time.Location) (*Store, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(nil, loc), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return New(sheets.DecodeRows(raw, loc), loc), nil
}

// SetClock overrides the payment timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) Fetch(_ context.Context) ([]core.Check, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rows), nil
}

func (s *Store) Submit(_ context.Context, req sheets.Request) (sheets.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := sheets.Execute(s.rows, req, s.now(), s.loc)
	if err != nil {
		return sheets.Response{Success: false, Message: err.Error()}, err
	}
	s.rows = rows
	s.calls++
	return sheets.Response{Success: true}, nil
}

// Mutations counts successful submits.
func (s *Store) Mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
