package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harrisonrobin/touchgrass/pkg/ledger"
	"github.com/harrisonrobin/touchgrass/pkg/logging"
	"github.com/harrisonrobin/touchgrass/pkg/model"
)

// Remote holds one snapshot per identity.
type Remote interface {
	// Fetch returns the identity's snapshot. ok is false when none has been pushed yet.
	Fetch(ctx context.Context, identityID string) (snap model.Snapshot, ok bool, err error)
	// Push replaces the identity's snapshot wholesale.
	Push(ctx context.Context, identityID string, snap model.Snapshot) error
}

// Prompter is supplied by the presentation layer for the one ambiguous decision on sign-in.
type Prompter interface {
	// ConfirmMergeOrReplace returns true to merge local and remote, false to keep only the remote copy.
	ConfirmMergeOrReplace(ctx context.Context) (bool, error)
}

// Local is the slice of the ledger store the reconciler needs.
type Local interface {
	Load() model.Ledger
	Replace(model.Ledger) error
}

type State int

const (
	SignedOut State = iota
	SignedIn
)

func (s State) String() string {
	if s == SignedIn {
		return "signed-in"
	}
	return "signed-out"
}

// Outcome says what a sign-in pull did.
type Outcome string

const (
	OutcomeNone     Outcome = "none"
	OutcomeAdopted  Outcome = "adopted"
	OutcomeMerged   Outcome = "merged"
	OutcomeReplaced Outcome = "replaced"
	OutcomeUploaded Outcome = "uploaded"
)

// ErrNoRemote is returned when syncing is attempted without a configured remote.
var ErrNoRemote = errors.New("no remote configured")

// Reconciler bridges the local ledger to the identity's remote snapshot.
type Reconciler struct {
	local  Local
	remote Remote
	prompt Prompter
	log    *logging.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	identity model.Identity
}

type Option func(*Reconciler)

// WithClock overrides the time source used for lastUpdated.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func WithLogger(log *logging.Logger) Option {
	return func(r *Reconciler) { r.log = log.WithComponent(logging.ComponentSync) }
}

func New(local Local, remote Remote, prompt Prompter, opts ...Option) *Reconciler {
	r := &Reconciler{
		local:  local,
		remote: remote,
		prompt: prompt,
		log:    logging.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Session returns the current state and, when signed in, the identity.
func (r *Reconciler) Session() (State, model.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.identity
}

// Resume enters SignedIn without pulling, for a process that starts with a cached identity.
func (r *Reconciler) Resume(id model.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = SignedIn
	r.identity = id
}

// SignedOut drops the identity. No remote calls are made.
func (r *Reconciler) SignedOut() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = SignedOut
	r.identity = model.Identity{}
}

// SignedIn enters SignedIn(id) and reconciles the local ledger with the identity's snapshot.
// The state changes even if the pull fails; the error is advisory and local data is intact.
func (r *Reconciler) SignedIn(ctx context.Context, id model.Identity) (Outcome, error) {
	r.Resume(id)
	if r.remote == nil {
		return OutcomeNone, ErrNoRemote
	}

	log := r.log.With("identity", id.ID)

	snap, exists, err := r.remote.Fetch(ctx, id.ID)
	if err != nil {
		log.Error("error fetching remote snapshot", "error", err)
		return OutcomeNone, fmt.Errorf("error fetching remote snapshot: %w", err)
	}

	local := r.local.Load()

	switch {
	case exists && len(local) > 0:
		merge := true
		if r.prompt != nil {
			merge, err = r.prompt.ConfirmMergeOrReplace(ctx)
			if err != nil {
				return OutcomeNone, fmt.Errorf("merge decision: %w", err)
			}
		}
		if !merge {
			if err := r.local.Replace(snap.TimeEntries); err != nil {
				return OutcomeNone, err
			}
			log.Info("replaced local ledger with remote", "entries", len(snap.TimeEntries))
			return OutcomeReplaced, nil
		}

		// Local state changes only once the remote holds the merge.
		merged := ledger.Merge(local, snap.TimeEntries)
		if err := r.push(ctx, id, merged); err != nil {
			return OutcomeNone, err
		}
		if err := r.local.Replace(merged); err != nil {
			return OutcomeNone, err
		}
		log.Info("merged local and remote ledgers", "entries", len(merged))
		return OutcomeMerged, nil

	case exists:
		if err := r.local.Replace(snap.TimeEntries); err != nil {
			return OutcomeNone, err
		}
		log.Info("adopted remote ledger", "entries", len(snap.TimeEntries))
		return OutcomeAdopted, nil

	case len(local) > 0:
		if err := r.push(ctx, id, local); err != nil {
			return OutcomeNone, err
		}
		log.Info("uploaded local ledger", "entries", len(local))
		return OutcomeUploaded, nil

	default:
		return OutcomeNone, nil
	}
}

// Push sends the full ledger if signed in. It is a no-op when signed out.
func (r *Reconciler) Push(ctx context.Context, l model.Ledger) error {
	state, id := r.Session()
	if state != SignedIn || r.remote == nil {
		return nil
	}
	return r.push(ctx, id, l)
}

// PushAs sends the ledger for a specific identity regardless of the current state,
// so a push started before a sign-out can still finish.
func (r *Reconciler) PushAs(ctx context.Context, id model.Identity, l model.Ledger) error {
	if r.remote == nil {
		return nil
	}
	return r.push(ctx, id, l)
}

func (r *Reconciler) push(ctx context.Context, id model.Identity, l model.Ledger) error {
	if err := r.remote.Push(ctx, id.ID, model.NewSnapshot(l, r.now())); err != nil {
		r.log.Error("error pushing snapshot", "identity", id.ID, "error", err)
		return fmt.Errorf("error pushing snapshot: %w", err)
	}
	r.log.Debug("pushed snapshot", "identity", id.ID, "entries", len(l))
	return nil
}
