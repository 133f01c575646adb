// Package history persists completed readings as one JSON list in the local
// key-value store, newest first.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/naveenspark/arcana/internal/storage"
	"github.com/naveenspark/arcana/pkg/domain"
)

// Key is the storage key holding the encoded list.
const Key = "arcana.history"

var (
	// ErrEmptyEntry rejects a reading without cards.
	ErrEmptyEntry = errors.New("history: entry has no cards")
	// ErrNotFound is returned when no entry has the requested id.
	ErrNotFound = errors.New("history: entry not found")
	// ErrUnreadable is returned by writes when the stored list cannot be
	// decoded, so it is never overwritten.
	ErrUnreadable = errors.New("history: stored list is unreadable")
)

// Store reads and writes the history list. Writes are read-modify-write
// without locking; concurrent writers race and the last one wins.
type Store struct {
	kv  storage.Store
	log *zap.Logger
}

// New returns a Store over kv.
func New(kv storage.Store, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{kv: kv, log: log}
}

// List returns every entry, newest first. A missing or unreadable list is
// treated as empty.
func (s *Store) List(ctx context.Context) ([]domain.HistoryEntry, error) {
	entries, err := s.read(ctx)
	if errors.Is(err, ErrUnreadable) {
		s.log.Warn("ignoring unreadable history", zap.Error(err))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history.List: %w", err)
	}
	return entries, nil
}

// read loads the stored list. A missing list is empty.
func (s *Store) read(ctx context.Context) ([]domain.HistoryEntry, error) {
	data, err := s.kv.Get(ctx, Key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []domain.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return entries, nil
}

// Prepend stores a deep copy of e at the head of the list and returns it.
// An empty id is replaced with a fresh UUID. The timestamp is left as given.
func (s *Store) Prepend(ctx context.Context, e domain.HistoryEntry) (domain.HistoryEntry, error) {
	if len(e.Cards) == 0 {
		return domain.HistoryEntry{}, ErrEmptyEntry
	}
	e = e.Clone()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	entries, err := s.read(ctx)
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("history.Prepend: %w", err)
	}
	entries = append([]domain.HistoryEntry{e}, entries...)
	if err := s.save(ctx, entries); err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("history.Prepend: %w", err)
	}
	s.log.Debug("reading saved", zap.String("id", e.ID), zap.String("spread", e.SpreadID), zap.Int("cards", len(e.Cards)))
	return e.Clone(), nil
}

// Get returns a deep copy of the entry with the given id.
func (s *Store) Get(ctx context.Context, id string) (domain.HistoryEntry, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("history.Get: %w", err)
	}
	for _, e := range entries {
		if e.ID == id {
			return e.Clone(), nil
		}
	}
	return domain.HistoryEntry{}, ErrNotFound
}

// Delete removes the entry with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	entries, err := s.read(ctx)
	if err != nil {
		return fmt.Errorf("history.Delete: %w", err)
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return ErrNotFound
	}
	if err := s.save(ctx, kept); err != nil {
		return fmt.Errorf("history.Delete: %w", err)
	}
	return nil
}

// OpenView returns the list for display, first stamping now on every entry
// that has no timestamp yet. Stamped entries are persisted; entries that
// already carry a timestamp are left untouched.
func (s *Store) OpenView(ctx context.Context, now time.Time) ([]domain.HistoryEntry, error) {
	entries, err := s.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("history.OpenView: %w", err)
	}
	changed := false
	for i := range entries {
		if entries[i].Timestamp == nil {
			ts := now
			entries[i].Timestamp = &ts
			changed = true
		}
	}
	if changed {
		if err := s.save(ctx, entries); err != nil {
			return nil, fmt.Errorf("history.OpenView: %w", err)
		}
	}
	return entries, nil
}

func (s *Store) save(ctx context.Context, entries []domain.HistoryEntry) error {
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return s.kv.Set(ctx, Key, data)
}
