package reconcile

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/harrisonrobin/touchgrass/pkg/kv"
	"github.com/harrisonrobin/touchgrass/pkg/model"
)

// KVRemote keeps snapshots in a kv.Store, e.g. a FileStore on a synced folder.
type KVRemote struct {
	store kv.Store
}

var _ Remote = (*KVRemote)(nil)

func NewKVRemote(store kv.Store) *KVRemote {
	return &KVRemote{store: store}
}

// DocumentName is the per-identity document name, shared with the Drive remote.
func DocumentName(identityID string) string {
	return "users_" + identityID
}

func (r *KVRemote) Fetch(ctx context.Context, identityID string) (model.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, false, err
	}
	b, ok, err := r.store.Get(DocumentName(identityID))
	if err != nil || !ok {
		return model.Snapshot{}, false, err
	}
	snap, err := DecodeSnapshot(b)
	if err != nil {
		return model.Snapshot{}, false, err
	}
	return snap, true, nil
}

func (r *KVRemote) Push(ctx context.Context, identityID string, snap model.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	return r.store.Put(DocumentName(identityID), b)
}

func EncodeSnapshot(snap model.Snapshot) ([]byte, error) {
	if snap.TimeEntries == nil {
		snap.TimeEntries = model.Ledger{}
	}
	b, err := sonic.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return b, nil
}

func DecodeSnapshot(b []byte) (model.Snapshot, error) {
	var snap model.Snapshot
	if err := sonic.Unmarshal(b, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.TimeEntries == nil {
		snap.TimeEntries = model.Ledger{}
	}
	return snap, nil
}
