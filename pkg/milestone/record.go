package milestone

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/harrisonrobin/touchgrass/pkg/kv"
	"github.com/harrisonrobin/touchgrass/pkg/logging"
)

// StorageKey is the key the fired set is persisted under, separately from the ledger.
const StorageKey = "milestones"

// Record is the fire-once set of milestone ids.
type Record struct {
	kv    kv.Store
	log   *logging.Logger
	mu    sync.Mutex
	fired map[string]bool
	dirty bool
}

// LoadRecord reads the fired set. Missing or malformed state is an empty set.
func LoadRecord(store kv.Store, log *logging.Logger) *Record {
	if log == nil {
		log = logging.Discard()
	}
	r := &Record{
		kv:    store,
		log:   log.WithComponent(logging.ComponentMilestone),
		fired: make(map[string]bool),
	}

	b, ok, err := store.Get(StorageKey)
	if err != nil {
		r.log.Warn("could not read milestones, starting empty", "error", err)
		return r
	}
	if !ok || len(b) == 0 {
		return r
	}
	var fired map[string]bool
	if err := sonic.Unmarshal(b, &fired); err != nil {
		r.log.Warn("malformed milestones, starting empty", "error", err)
		return r
	}
	for id, v := range fired {
		if v {
			r.fired[id] = true
		}
	}
	return r
}

func (r *Record) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fired[id]
}

// Mark latches id. It reports false if the id had already fired.
func (r *Record) Mark(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fired[id] {
		return false
	}
	r.fired[id] = true
	r.dirty = true
	return true
}

// IDs returns the fired ids sorted.
func (r *Record) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.fired))
	for id := range r.fired {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Save persists the set if anything was marked since the last save.
func (r *Record) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dirty {
		return nil
	}
	b, err := sonic.Marshal(r.fired)
	if err != nil {
		return fmt.Errorf("failed to encode milestones: %w", err)
	}
	if err := r.kv.Put(StorageKey, b); err != nil {
		return fmt.Errorf("failed to persist milestones: %w", err)
	}
	r.dirty = false
	return nil
}
