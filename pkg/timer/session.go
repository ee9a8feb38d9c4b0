package timer

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/harrisonrobin/touchgrass/pkg/kv"
	"github.com/harrisonrobin/touchgrass/pkg/logging"
)

// StorageKey holds the running session, absent when stopped.
const StorageKey = "timer"

type sessionState struct {
	StartedAt time.Time `json:"startedAt"`
}

// Session is a timer whose start time survives the process, for `start` and `stop`.
type Session struct {
	store kv.Store
	now   func() time.Time
	log   *logging.Logger
}

func NewSession(store kv.Store, now func() time.Time, log *logging.Logger) *Session {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Session{store: store, now: now, log: log.WithComponent(logging.ComponentTimer)}
}

// Status reports the start time of the running session.
func (s *Session) Status() (time.Time, bool, error) {
	b, ok, err := s.store.Get(StorageKey)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read timer: %w", err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	var st sessionState
	if err := sonic.Unmarshal(b, &st); err != nil || st.StartedAt.IsZero() {
		s.log.Warn("ignoring malformed timer state", "error", err)
		return time.Time{}, false, nil
	}
	return st.StartedAt, true, nil
}

func (s *Session) Start() (time.Time, error) {
	_, running, err := s.Status()
	if err != nil {
		return time.Time{}, err
	}
	if running {
		return time.Time{}, ErrRunning
	}
	started := s.now()
	b, err := sonic.Marshal(sessionState{StartedAt: started})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to encode timer: %w", err)
	}
	if err := s.store.Put(StorageKey, b); err != nil {
		return time.Time{}, fmt.Errorf("failed to save timer: %w", err)
	}
	s.log.Debug("timer started", "at", started)
	return started, nil
}

// Stop clears the session and returns the elapsed whole seconds.
func (s *Session) Stop() (int64, error) {
	started, running, err := s.Status()
	if err != nil {
		return 0, err
	}
	if !running {
		return 0, ErrNotRunning
	}
	if err := s.store.Delete(StorageKey); err != nil {
		return 0, fmt.Errorf("failed to clear timer: %w", err)
	}
	secs := WholeSeconds(s.now().Sub(started))
	s.log.Debug("timer stopped", "seconds", secs)
	return secs, nil
}

// Cancel discards a running session without recording it.
func (s *Session) Cancel() error {
	if err := s.store.Delete(StorageKey); err != nil {
		return fmt.Errorf("failed to clear timer: %w", err)
	}
	return nil
}
