// Package tracker is the core facade: it runs every ledger mutation through
// validation, persistence, milestone evaluation and a background push, and
// tells observers what changed.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harrisonrobin/touchgrass/pkg/ledger"
	"github.com/harrisonrobin/touchgrass/pkg/logging"
	"github.com/harrisonrobin/touchgrass/pkg/milestone"
	"github.com/harrisonrobin/touchgrass/pkg/model"
	"github.com/harrisonrobin/touchgrass/pkg/reconcile"
	"github.com/harrisonrobin/touchgrass/pkg/stats"
	"github.com/harrisonrobin/touchgrass/pkg/timer"
	"golang.org/x/sync/errgroup"
)

type OpKind string

const (
	OpAdd OpKind = "add"
	OpSet OpKind = "set"
	// OpEdit sets the value; zero deletes the entry.
	OpEdit   OpKind = "edit"
	OpRemove OpKind = "remove"
)

// Op is one ledger mutation.
type Op struct {
	Kind  OpKind
	Date  string
	Hours float64
}

type EventKind string

const (
	EventMutated   EventKind = "mutated"
	EventSynced    EventKind = "synced"
	EventMilestone EventKind = "milestone"
	EventNotice    EventKind = "notice"
)

// Event is delivered to observers. Stats is set for mutated and synced events.
type Event struct {
	Kind      EventKind
	Stats     stats.Stats
	Outcome   reconcile.Outcome
	Milestone milestone.Event
	Notice    string
	Err       error
}

// Observer must be safe for concurrent use: notices from background pushes
// arrive on other goroutines.
type Observer interface {
	Notify(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) { f(e) }

// IdentitySource is the identity provider as seen by the tracker.
type IdentitySource interface {
	CurrentIdentity() (model.Identity, bool)
	OnIdentityChange(fn func(id model.Identity, signedIn bool)) func()
}

// ErrSignedOut is returned by Sync without a signed-in identity.
var ErrSignedOut = errors.New("not signed in")

type Tracker struct {
	store      *ledger.Store
	milestones *milestone.Evaluator
	sync       *reconcile.Reconciler
	goals      stats.Goals
	now        func() time.Time
	log        *logging.Logger

	mu        sync.Mutex
	observers map[int]Observer
	nextID    int

	pushes errgroup.Group
	// pushMu runs pushes one at a time; latest holds the newest queued push per identity.
	pushMu sync.Mutex
	latest map[string]uint64
	seq    uint64
	detach func()
}

type Option func(*Tracker)

func WithGoals(g stats.Goals) Option {
	return func(t *Tracker) { t.goals = g }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithLogger(log *logging.Logger) Option {
	return func(t *Tracker) { t.log = log.WithComponent(logging.ComponentApp) }
}

func New(store *ledger.Store, milestones *milestone.Evaluator, sync *reconcile.Reconciler, opts ...Option) *Tracker {
	t := &Tracker{
		store:      store,
		milestones: milestones,
		sync:       sync,
		goals:      stats.DefaultGoals(),
		now:        time.Now,
		log:        logging.Discard(),
		observers:  make(map[int]Observer),
		latest:     make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Attach resumes a cached identity without pulling and follows later sign-in and sign-out.
func (t *Tracker) Attach(ctx context.Context, ids IdentitySource) {
	if id, ok := ids.CurrentIdentity(); ok {
		t.sync.Resume(id)
		t.log.Debug("resumed session", "identity", id.ID)
	}
	t.detach = ids.OnIdentityChange(func(id model.Identity, signedIn bool) {
		if signedIn {
			_, _ = t.SignedIn(ctx, id)
			return
		}
		t.SignedOut()
	})
}

// Subscribe registers an observer and returns a function that removes it.
func (t *Tracker) Subscribe(o Observer) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.observers[id] = o
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.observers, id)
		t.mu.Unlock()
	}
}

func (t *Tracker) emit(e Event) {
	t.mu.Lock()
	obs := make([]Observer, 0, len(t.observers))
	for i := 0; i < t.nextID; i++ {
		if o, ok := t.observers[i]; ok {
			obs = append(obs, o)
		}
	}
	t.mu.Unlock()

	for _, o := range obs {
		o.Notify(e)
	}
}

func (t *Tracker) notice(msg string, err error) {
	t.emit(Event{Kind: EventNotice, Notice: msg, Err: err})
}

func (t *Tracker) GetLedger() model.Ledger {
	return t.store.Load()
}

// GetStats aggregates the ledger for today.
func (t *Tracker) GetStats() stats.Stats {
	return stats.Aggregate(t.store.Load(), t.now(), t.goals)
}

// StatsFor aggregates the ledger for an arbitrary day.
func (t *Tracker) StatsFor(day time.Time) stats.Stats {
	return stats.Aggregate(t.store.Load(), day, t.goals)
}

func (t *Tracker) Goals() stats.Goals {
	return t.goals
}

// Mutate applies op and returns today's stats afterwards. Invalid input leaves
// the ledger untouched. Milestone and push failures are reported as notices,
// never as errors, since the local write already succeeded.
func (t *Tracker) Mutate(ctx context.Context, op Op) (stats.Stats, error) {
	l, err := t.apply(op)
	if err != nil {
		return stats.Stats{}, err
	}
	t.log.Debug("ledger mutated", "op", op.Kind, "date", op.Date, "hours", op.Hours)

	s := stats.Aggregate(l, t.now(), t.goals)

	var fired []milestone.Event
	if op.Kind != OpRemove {
		fired, err = t.milestones.Evaluate(s)
		if err != nil {
			t.log.Warn("could not persist milestones", "error", err)
			t.notice("Could not save milestone progress", err)
		}
	}

	if state, id := t.sync.Session(); state == reconcile.SignedIn {
		t.pushAsync(ctx, id, l)
	}

	t.emit(Event{Kind: EventMutated, Stats: s})
	for _, m := range fired {
		t.log.Info("milestone reached", "id", m.ID)
		t.emit(Event{Kind: EventMilestone, Stats: s, Milestone: m})
	}
	return s, nil
}

func (t *Tracker) apply(op Op) (model.Ledger, error) {
	switch op.Kind {
	case OpAdd:
		return t.store.Add(op.Date, op.Hours)
	case OpSet:
		return t.store.Set(op.Date, op.Hours)
	case OpEdit:
		if op.Hours == 0 {
			if err := ledger.Validate(op.Date, 0); err != nil {
				return nil, err
			}
			return t.store.Remove(op.Date)
		}
		return t.store.Set(op.Date, op.Hours)
	case OpRemove:
		if err := ledger.Validate(op.Date, 0); err != nil {
			return nil, err
		}
		return t.store.Remove(op.Date)
	default:
		return nil, fmt.Errorf("%w: unknown operation %q", ledger.ErrInvalidInput, op.Kind)
	}
}

// pushAsync binds the push to id, so it completes even if a sign-out follows.
// Pushes run one at a time and a push superseded by a newer one for the same
// identity is skipped, so the remote never ends on an older ledger.
func (t *Tracker) pushAsync(ctx context.Context, id model.Identity, l model.Ledger) {
	ctx = context.WithoutCancel(ctx)

	t.mu.Lock()
	t.seq++
	seq := t.seq
	t.latest[id.ID] = seq
	t.mu.Unlock()

	t.pushes.Go(func() error {
		t.pushMu.Lock()
		defer t.pushMu.Unlock()

		t.mu.Lock()
		stale := t.latest[id.ID] != seq
		t.mu.Unlock()
		if stale {
			t.log.Debug("skipping superseded push", "identity", id.ID)
			return nil
		}

		if err := t.sync.PushAs(ctx, id, l); err != nil {
			t.notice("Could not sync with the cloud; your data is saved locally", err)
			return nil
		}
		t.emit(Event{Kind: EventSynced, Stats: stats.Aggregate(l, t.now(), t.goals)})
		return nil
	})
}

// AddElapsed records a finished timer run on today's entry. Zero seconds records nothing.
func (t *Tracker) AddElapsed(ctx context.Context, seconds int64) (stats.Stats, bool, error) {
	if seconds <= 0 {
		return t.GetStats(), false, nil
	}
	s, err := t.Mutate(ctx, Op{Kind: OpAdd, Date: stats.DayKey(t.now()), Hours: timer.Hours(seconds)})
	if err != nil {
		return stats.Stats{}, false, err
	}
	return s, true, nil
}

// SignedIn reconciles with the identity's remote copy. Errors are advisory
// and are also delivered as a notice.
func (t *Tracker) SignedIn(ctx context.Context, id model.Identity) (reconcile.Outcome, error) {
	outcome, err := t.sync.SignedIn(ctx, id)
	if err != nil {
		t.notice("Could not sync with the cloud; your data is saved locally", err)
	}
	if outcome != reconcile.OutcomeNone {
		t.emit(Event{Kind: EventSynced, Stats: t.GetStats(), Outcome: outcome})
	}
	return outcome, err
}

func (t *Tracker) SignedOut() {
	t.sync.SignedOut()
	t.log.Debug("signed out, sync disabled")
}

// Sync reruns the sign-in reconciliation for the current identity.
func (t *Tracker) Sync(ctx context.Context) (reconcile.Outcome, error) {
	state, id := t.sync.Session()
	if state != reconcile.SignedIn {
		return reconcile.OutcomeNone, ErrSignedOut
	}
	return t.SignedIn(ctx, id)
}

// Session reports the sync state.
func (t *Tracker) Session() (reconcile.State, model.Identity) {
	return t.sync.Session()
}

// Refresh re-reads the ledger and tells observers, for changes made by another process.
func (t *Tracker) Refresh() stats.Stats {
	s := t.GetStats()
	t.emit(Event{Kind: EventMutated, Stats: s})
	return s
}

// Wait blocks until every started push has finished.
func (t *Tracker) Wait() error {
	return t.pushes.Wait()
}

// Close stops following identity changes and waits for in-flight pushes.
func (t *Tracker) Close() error {
	if t.detach != nil {
		t.detach()
		t.detach = nil
	}
	return t.Wait()
}
