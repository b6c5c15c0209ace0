package datasystem

import (
	"time"

	"github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"
)

// TrackState describes what an ExpirationTracker knows about a key.
type TrackState int

const (
	// TrackStateNotTracked means the key has never been added, or was removed or pruned.
	TrackStateNotTracked TrackState = iota
	// TrackStateFresh means the key's expiration is in the future.
	TrackStateFresh
	// TrackStateStale means the key's expiration is now or in the past.
	TrackStateStale
)

func (s TrackState) String() string {
	switch s {
	case TrackStateFresh:
		return "FRESH"
	case TrackStateStale:
		return "STALE"
	default:
		return "NOT_TRACKED"
	}
}

// TrackedKey identifies a key that was removed by ExpirationTracker.Prune. Kind is nil for an
// unscoped key.
type TrackedKey struct {
	Kind ldstoretypes.DataKind
	Key  string
}

// ExpirationTracker records when cached keys stop being fresh. Keys are either unscoped, for values
// that are not items (such as "has the store been initialized"), or scoped to a data kind, so the
// same key can be tracked separately for flags and segments.
//
// ExpirationTracker is not safe for concurrent use.
type ExpirationTracker struct {
	unscoped map[string]time.Time
	scoped   map[ldstoretypes.DataKind]map[string]time.Time
}

// NewExpirationTracker creates an empty ExpirationTracker.
func NewExpirationTracker() *ExpirationTracker {
	return &ExpirationTracker{
		unscoped: make(map[string]time.Time),
		scoped:   make(map[ldstoretypes.DataKind]map[string]time.Time),
	}
}

// Add starts tracking an unscoped key, or replaces its expiration.
func (t *ExpirationTracker) Add(key string, expiration time.Time) {
	t.unscoped[key] = expiration
}

// Remove stops tracking an unscoped key.
func (t *ExpirationTracker) Remove(key string) {
	delete(t.unscoped, key)
}

// State returns the state of an unscoped key at the given time.
func (t *ExpirationTracker) State(key string, now time.Time) TrackState {
	if expiration, ok := t.unscoped[key]; ok {
		return stateAt(expiration, now)
	}
	return TrackStateNotTracked
}

// AddItem starts tracking a key within a data kind, or replaces its expiration.
func (t *ExpirationTracker) AddItem(kind ldstoretypes.DataKind, key string, expiration time.Time) {
	keys := t.scoped[kind]
	if keys == nil {
		keys = make(map[string]time.Time)
		t.scoped[kind] = keys
	}
	keys[key] = expiration
}

// RemoveItem stops tracking a key within a data kind.
func (t *ExpirationTracker) RemoveItem(kind ldstoretypes.DataKind, key string) {
	delete(t.scoped[kind], key)
}

// ItemState returns the state of a key within a data kind at the given time.
func (t *ExpirationTracker) ItemState(kind ldstoretypes.DataKind, key string, now time.Time) TrackState {
	if expiration, ok := t.scoped[kind][key]; ok {
		return stateAt(expiration, now)
	}
	return TrackStateNotTracked
}

// Clear stops tracking all keys.
func (t *ExpirationTracker) Clear() {
	t.unscoped = make(map[string]time.Time)
	t.scoped = make(map[ldstoretypes.DataKind]map[string]time.Time)
}

// Prune stops tracking every key that is stale at the given time, and returns those keys. Unscoped
// keys come first.
func (t *ExpirationTracker) Prune(now time.Time) []TrackedKey {
	var pruned []TrackedKey
	for key, expiration := range t.unscoped {
		if stateAt(expiration, now) == TrackStateStale {
			pruned = append(pruned, TrackedKey{Key: key})
			delete(t.unscoped, key)
		}
	}
	for kind, keys := range t.scoped {
		for key, expiration := range keys {
			if stateAt(expiration, now) == TrackStateStale {
				pruned = append(pruned, TrackedKey{Kind: kind, Key: key})
				delete(keys, key)
			}
		}
	}
	return pruned
}

func stateAt(expiration, now time.Time) TrackState {
	if expiration.After(now) {
		return TrackStateFresh
	}
	return TrackStateStale
}
