package geofence

import (
	"context"
	"hash/fnv"
	"sync"
)

type State string

const (
	Outside State = "OUTSIDE"
	Inside  State = "INSIDE"
)

// StateStore remembers the last known containment state per
// (vehicle, geofence). Swap stores next and returns the previous state,
// Outside when none was known, as one atomic step per key.
type StateStore interface {
	Swap(ctx context.Context, vehicleID, geofenceID string, next State) (State, error)
}

const stateShards = 32

type stateShard struct {
	mu     sync.Mutex
	states map[string]map[string]State
}

// MemoryStateStore keeps state in process, sharded by vehicle so updates for
// unrelated vehicles do not contend. It is lost on restart.
type MemoryStateStore struct {
	shards [stateShards]*stateShard
}

func NewMemoryStateStore() *MemoryStateStore {
	s := &MemoryStateStore{}
	for i := range s.shards {
		s.shards[i] = &stateShard{states: make(map[string]map[string]State)}
	}
	return s
}

func (s *MemoryStateStore) shard(vehicleID string) *stateShard {
	h := fnv.New32a()
	h.Write([]byte(vehicleID))
	return s.shards[h.Sum32()%stateShards]
}

func (s *MemoryStateStore) Swap(_ context.Context, vehicleID, geofenceID string, next State) (State, error) {
	sh := s.shard(vehicleID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	byGeofence, ok := sh.states[vehicleID]
	if !ok {
		byGeofence = make(map[string]State)
		sh.states[vehicleID] = byGeofence
	}

	prev, ok := byGeofence[geofenceID]
	if !ok {
		prev = Outside
	}
	byGeofence[geofenceID] = next
	return prev, nil
}
