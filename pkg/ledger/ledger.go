package ledger

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/harrisonrobin/touchgrass/pkg/kv"
	"github.com/harrisonrobin/touchgrass/pkg/logging"
	"github.com/harrisonrobin/touchgrass/pkg/model"
)

// StorageKey is the key the ledger is persisted under.
const StorageKey = "outdoorTime"

// ErrInvalidInput is returned when a date or an hours value is rejected before any mutation.
var ErrInvalidInput = errors.New("invalid input")

// Store is the date-keyed ledger persisted in a kv.Store.
type Store struct {
	kv  kv.Store
	log *logging.Logger
	mu  sync.Mutex
}

func NewStore(store kv.Store, log *logging.Logger) *Store {
	if log == nil {
		log = logging.Discard()
	}
	return &Store{kv: store, log: log.WithComponent(logging.ComponentStore)}
}

// Load returns the persisted ledger. Missing or unreadable state is an empty ledger.
func (s *Store) Load() model.Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() model.Ledger {
	b, ok, err := s.kv.Get(StorageKey)
	if err != nil {
		s.log.Warn("could not read ledger, starting empty", "error", err)
		return model.Ledger{}
	}
	if !ok || len(b) == 0 {
		return model.Ledger{}
	}
	l, err := Decode(b)
	if err != nil {
		s.log.Warn("malformed ledger, starting empty", "error", err)
		return model.Ledger{}
	}
	return s.clean(l)
}

// clean drops entries that would break the invariants.
func (s *Store) clean(l model.Ledger) model.Ledger {
	out := make(model.Ledger, len(l))
	for date, hours := range l {
		if Validate(date, hours) != nil {
			s.log.Warn("dropping invalid entry", "date", date, "hours", hours)
			continue
		}
		out[date] = hours
	}
	return out
}

func (s *Store) save(l model.Ledger) error {
	b, err := Encode(l)
	if err != nil {
		return err
	}
	if err := s.kv.Put(StorageKey, b); err != nil {
		return fmt.Errorf("failed to persist ledger: %w", err)
	}
	return nil
}

// Add accumulates hours onto the date's total.
func (s *Store) Add(date string, hours float64) (model.Ledger, error) {
	if err := Validate(date, hours); err != nil {
		return nil, err
	}
	return s.mutate(func(l model.Ledger) {
		l[date] += hours
	})
}

// Set replaces the date's total.
func (s *Store) Set(date string, hours float64) (model.Ledger, error) {
	if err := Validate(date, hours); err != nil {
		return nil, err
	}
	return s.mutate(func(l model.Ledger) {
		l[date] = hours
	})
}

// Remove deletes the date. Removing an absent date is a no-op.
func (s *Store) Remove(date string) (model.Ledger, error) {
	return s.mutate(func(l model.Ledger) {
		delete(l, date)
	})
}

// Replace adopts a whole ledger, dropping anything that would break the invariants.
func (s *Store) Replace(l model.Ledger) error {
	clean := s.clean(l)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(clean)
}

func (s *Store) mutate(fn func(model.Ledger)) (model.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.load()
	fn(l)
	if err := s.save(l); err != nil {
		return nil, err
	}
	return l.Clone(), nil
}

// Validate rejects malformed dates and negative or non-finite hours.
func Validate(date string, hours float64) error {
	if _, err := time.Parse(model.DayLayout, date); err != nil {
		return fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidInput, date)
	}
	if math.IsNaN(hours) || math.IsInf(hours, 0) {
		return fmt.Errorf("%w: hours must be a number", ErrInvalidInput)
	}
	if hours < 0 {
		return fmt.Errorf("%w: hours must not be negative, got %v", ErrInvalidInput, hours)
	}
	return nil
}

// Merge unions both ledgers, keeping the larger value for each date.
func Merge(local, remote model.Ledger) model.Ledger {
	merged := remote.Clone()
	for date, hours := range local {
		merged[date] = math.Max(merged[date], hours)
	}
	return merged
}

func Encode(l model.Ledger) ([]byte, error) {
	if l == nil {
		l = model.Ledger{}
	}
	b, err := sonic.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ledger: %w", err)
	}
	return b, nil
}

func Decode(b []byte) (model.Ledger, error) {
	var l model.Ledger
	if err := sonic.Unmarshal(b, &l); err != nil {
		return nil, fmt.Errorf("failed to decode ledger: %w", err)
	}
	if l == nil {
		l = model.Ledger{}
	}
	return l, nil
}
