package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harrisonrobin/touchgrass/pkg/kv"
	"github.com/harrisonrobin/touchgrass/pkg/ledger"
	"github.com/harrisonrobin/touchgrass/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	snaps    map[string]model.Snapshot
	fetchErr error
	pushErr  error
	fetches  int
	pushes   int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{snaps: make(map[string]model.Snapshot)}
}

func (f *fakeRemote) Fetch(_ context.Context, id string) (model.Snapshot, bool, error) {
	f.fetches++
	if f.fetchErr != nil {
		return model.Snapshot{}, false, f.fetchErr
	}
	s, ok := f.snaps[id]
	return s, ok, nil
}

func (f *fakeRemote) Push(_ context.Context, id string, s model.Snapshot) error {
	f.pushes++
	if f.pushErr != nil {
		return f.pushErr
	}
	f.snaps[id] = s
	return nil
}

type fakePrompt struct {
	merge bool
	err   error
	asked int
}

func (p *fakePrompt) ConfirmMergeOrReplace(context.Context) (bool, error) {
	p.asked++
	return p.merge, p.err
}

var (
	alice   = model.Identity{ID: "uid-alice", Email: "alice@example.com"}
	fixedAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

func setup(t *testing.T, local model.Ledger, prompt *fakePrompt) (*Reconciler, *ledger.Store, *fakeRemote) {
	t.Helper()
	store := ledger.NewStore(kv.NewMemoryStore(), nil)
	require.NoError(t, store.Replace(local))
	remote := newFakeRemote()
	var p Prompter
	if prompt != nil {
		p = prompt
	}
	r := New(store, remote, p, WithClock(func() time.Time { return fixedAt }))
	return r, store, remote
}

func TestSignInMerge(t *testing.T) {
	prompt := &fakePrompt{merge: true}
	r, store, remote := setup(t, model.Ledger{"2024-01-01": 1.0}, prompt)
	remote.snaps[alice.ID] = model.Snapshot{TimeEntries: model.Ledger{"2024-01-01": 2.0, "2024-01-02": 1.0}}

	outcome, err := r.SignedIn(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMerged, outcome)
	assert.Equal(t, 1, prompt.asked)

	want := model.Ledger{"2024-01-01": 2.0, "2024-01-02": 1.0}
	assert.Equal(t, want, store.Load())
	assert.Equal(t, want, remote.snaps[alice.ID].TimeEntries)
	assert.Equal(t, "2024-06-01T12:00:00Z", remote.snaps[alice.ID].LastUpdated)

	state, id := r.Session()
	assert.Equal(t, SignedIn, state)
	assert.Equal(t, alice, id)
}

func TestSignInReplace(t *testing.T) {
	prompt := &fakePrompt{merge: false}
	r, store, remote := setup(t, model.Ledger{"2024-01-01": 5.0}, prompt)
	remote.snaps[alice.ID] = model.Snapshot{TimeEntries: model.Ledger{"2024-01-02": 1.0}}

	outcome, err := r.SignedIn(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplaced, outcome)
	assert.Equal(t, model.Ledger{"2024-01-02": 1.0}, store.Load())
	assert.Equal(t, 0, remote.pushes)
}

func TestSignInAdoptsRemoteWhenLocalEmpty(t *testing.T) {
	prompt := &fakePrompt{}
	r, store, remote := setup(t, model.Ledger{}, prompt)
	remote.snaps[alice.ID] = model.Snapshot{TimeEntries: model.Ledger{"2024-01-02": 1.5}}

	outcome, err := r.SignedIn(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdopted, outcome)
	assert.Equal(t, model.Ledger{"2024-01-02": 1.5}, store.Load())
	assert.Equal(t, 0, prompt.asked)
	assert.Equal(t, 0, remote.pushes)
}

func TestSignInUploadsWhenRemoteMissing(t *testing.T) {
	r, _, remote := setup(t, model.Ledger{"2024-01-01": 1.0}, &fakePrompt{})

	outcome, err := r.SignedIn(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUploaded, outcome)
	assert.Equal(t, model.Ledger{"2024-01-01": 1.0}, remote.snaps[alice.ID].TimeEntries)
}

func TestSignInNoop(t *testing.T) {
	r, store, remote := setup(t, model.Ledger{}, &fakePrompt{})

	outcome, err := r.SignedIn(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNone, outcome)
	assert.Empty(t, store.Load())
	assert.Equal(t, 0, remote.pushes)
}

func TestSignInFetchFailureKeepsLocal(t *testing.T) {
	r, store, remote := setup(t, model.Ledger{"2024-01-01": 1.0}, &fakePrompt{merge: true})
	remote.fetchErr = errors.New("network down")

	_, err := r.SignedIn(context.Background(), alice)
	require.Error(t, err)
	assert.Equal(t, model.Ledger{"2024-01-01": 1.0}, store.Load())
	assert.Equal(t, 0, remote.pushes)

	state, _ := r.Session()
	assert.Equal(t, SignedIn, state)
}

func TestSignInMergePushFailureLeavesLocalUntouched(t *testing.T) {
	r, store, remote := setup(t, model.Ledger{"2024-01-01": 1.0}, &fakePrompt{merge: true})
	remote.snaps[alice.ID] = model.Snapshot{TimeEntries: model.Ledger{"2024-01-02": 2.0}}
	remote.pushErr = errors.New("quota")

	outcome, err := r.SignedIn(context.Background(), alice)
	require.Error(t, err)
	assert.Equal(t, OutcomeNone, outcome)
	assert.Equal(t, 1, remote.pushes)
	assert.Equal(t, model.Ledger{"2024-01-01": 1.0}, store.Load())

	state, _ := r.Session()
	assert.Equal(t, SignedIn, state)
}

func TestSignInPromptFailure(t *testing.T) {
	r, store, remote := setup(t, model.Ledger{"2024-01-01": 1.0}, &fakePrompt{err: errors.New("stdin closed")})
	remote.snaps[alice.ID] = model.Snapshot{TimeEntries: model.Ledger{"2024-01-02": 2.0}}

	_, err := r.SignedIn(context.Background(), alice)
	require.Error(t, err)
	assert.Equal(t, model.Ledger{"2024-01-01": 1.0}, store.Load())
}

func TestPushOnlyWhenSignedIn(t *testing.T) {
	r, _, remote := setup(t, model.Ledger{}, nil)

	require.NoError(t, r.Push(context.Background(), model.Ledger{"2024-01-01": 1}))
	assert.Equal(t, 0, remote.pushes)

	r.Resume(alice)
	require.NoError(t, r.Push(context.Background(), model.Ledger{"2024-01-01": 1}))
	assert.Equal(t, 1, remote.pushes)
	assert.Equal(t, 0, remote.fetches)

	r.SignedOut()
	state, id := r.Session()
	assert.Equal(t, SignedOut, state)
	assert.Empty(t, id.ID)
	require.NoError(t, r.Push(context.Background(), model.Ledger{"2024-01-01": 2}))
	assert.Equal(t, 1, remote.pushes)

	// a push bound to an identity still goes through after sign-out
	require.NoError(t, r.PushAs(context.Background(), alice, model.Ledger{"2024-01-01": 3}))
	assert.Equal(t, 3.0, remote.snaps[alice.ID].TimeEntries["2024-01-01"])
}

func TestPushReplacesWholesale(t *testing.T) {
	r, _, remote := setup(t, model.Ledger{}, nil)
	remote.snaps[alice.ID] = model.Snapshot{TimeEntries: model.Ledger{"2023-12-31": 4}}
	r.Resume(alice)

	require.NoError(t, r.Push(context.Background(), model.Ledger{"2024-01-01": 1}))
	assert.Equal(t, model.Ledger{"2024-01-01": 1}, remote.snaps[alice.ID].TimeEntries)
}

func TestNoRemote(t *testing.T) {
	store := ledger.NewStore(kv.NewMemoryStore(), nil)
	r := New(store, nil, nil)

	_, err := r.SignedIn(context.Background(), alice)
	assert.ErrorIs(t, err, ErrNoRemote)
	assert.NoError(t, r.Push(context.Background(), model.Ledger{}))
}

func TestKVRemote(t *testing.T) {
	remote := NewKVRemote(kv.NewMemoryStore())
	ctx := context.Background()

	_, ok, err := remote.Fetch(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	snap := model.NewSnapshot(model.Ledger{"2024-01-01": 1.5}, fixedAt)
	require.NoError(t, remote.Push(ctx, alice.ID, snap))

	got, ok, err := remote.Fetch(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, snap, got)

	_, ok, err = remote.Fetch(ctx, "someone-else")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotWireShape(t *testing.T) {
	b, err := EncodeSnapshot(model.NewSnapshot(model.Ledger{"2024-01-01": 2}, fixedAt))
	require.NoError(t, err)
	assert.JSONEq(t, `{"timeEntries":{"2024-01-01":2},"lastUpdated":"2024-06-01T12:00:00Z"}`, string(b))
}
