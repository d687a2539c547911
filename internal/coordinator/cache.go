package coordinator

import (
	"sync"

	"github.com/planwise/planwise-cli/internal/model"
)

type editKey struct {
	clientID string
	fieldID  string
}

// recordCache is the shared plan-record store, keyed by client id. Only the
// Coordinator mutates it; readers get clones and can never write through.
// Generation counters substitute for edit-scoped locking: a completion whose
// generation no longer matches is stale and must be discarded.
type recordCache struct {
	mu         sync.RWMutex
	records    map[string]*model.PlanRecord
	editGens   map[editKey]uint64
	clientGens map[string]uint64
}

func newRecordCache() *recordCache {
	return &recordCache{
		records:    make(map[string]*model.PlanRecord),
		editGens:   make(map[editKey]uint64),
		clientGens: make(map[string]uint64),
	}
}

// get returns a clone of the client's record, or nil when not hydrated.
func (c *recordCache) get(clientID string) *model.PlanRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[clientID]
	if !ok {
		return nil
	}
	return rec.Clone()
}

// beginEdit snapshots the current record, applies the optimistic value, and
// returns the new edit generation plus the snapshot for rollback. The client
// generation is bumped so an in-flight refetch started before this edit
// cannot overwrite the optimistic value.
func (c *recordCache) beginEdit(clientID, fieldID string, v model.FieldValue) (gen uint64, snapshot *model.PlanRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[clientID]
	if !ok {
		rec = model.NewPlanRecord()
		c.records[clientID] = rec
	}
	snapshot = rec.Clone()

	key := editKey{clientID, fieldID}
	c.editGens[key]++
	c.clientGens[clientID]++
	rec.Set(fieldID, v)
	return c.editGens[key], snapshot
}

// isCurrentEdit reports whether gen is still the live generation for the key.
func (c *recordCache) isCurrentEdit(clientID, fieldID string, gen uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.editGens[editKey{clientID, fieldID}] == gen
}

// rollback restores the field's pre-edit value from the snapshot, but only if
// the edit generation is still current; a stale rollback would clobber a
// newer optimistic value.
func (c *recordCache) rollback(clientID, fieldID string, gen uint64, snapshot *model.PlanRecord) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.editGens[editKey{clientID, fieldID}] != gen {
		return false
	}
	rec, ok := c.records[clientID]
	if !ok {
		return false
	}
	if prev, had := snapshot.Get(fieldID); had {
		rec.Set(fieldID, prev)
	} else {
		rec.Delete(fieldID)
	}
	c.clientGens[clientID]++
	return true
}

// clientGen returns the live generation for a client, used to fence refetch
// completions.
func (c *recordCache) clientGen(clientID string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientGens[clientID]
}

// replaceIfCurrent installs an authoritative record fetched at generation
// gen. Returns false (and installs nothing) when the client moved on: a new
// edit, an invalidation, or a newer refetch already superseded the fetch.
func (c *recordCache) replaceIfCurrent(clientID string, gen uint64, rec *model.PlanRecord) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clientGens[clientID] != gen {
		return false
	}
	c.records[clientID] = rec
	return true
}

// invalidate drops a client's record and fences out any in-flight
// completions for it. Used when switching away from a client.
func (c *recordCache) invalidate(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, clientID)
	c.clientGens[clientID]++
}
