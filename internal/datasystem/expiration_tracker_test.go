package datasystem

import (
	"testing"
	"time"

	"github.com/launchdarkly/go-server-sdk-datasync/internal/datakinds"

	"github.com/stretchr/testify/assert"
)

func second(n int) time.Time {
	return time.Unix(int64(n), 0)
}

func TestExpirationTrackerUnscopedKey(t *testing.T) {
	tracker := NewExpirationTracker()
	assert.Equal(t, TrackStateNotTracked, tracker.State("potato", second(0)))

	tracker.Add("potato", second(10))
	assert.Equal(t, TrackStateFresh, tracker.State("potato", second(0)))
	assert.Equal(t, TrackStateStale, tracker.State("potato", second(10)))
	assert.Equal(t, TrackStateStale, tracker.State("potato", second(11)))

	tracker.Remove("potato")
	assert.Equal(t, TrackStateNotTracked, tracker.State("potato", second(0)))
}

func TestExpirationTrackerScopedKey(t *testing.T) {
	tracker := NewExpirationTracker()
	tracker.AddItem(datakinds.Features, "potato", second(10))

	assert.Equal(t, TrackStateFresh, tracker.ItemState(datakinds.Features, "potato", second(0)))
	assert.Equal(t, TrackStateStale, tracker.ItemState(datakinds.Features, "potato", second(11)))

	// a scoped key is not an unscoped key, and is not tracked for other kinds
	assert.Equal(t, TrackStateNotTracked, tracker.State("potato", second(0)))
	assert.Equal(t, TrackStateNotTracked, tracker.ItemState(datakinds.Segments, "potato", second(0)))

	tracker.RemoveItem(datakinds.Features, "potato")
	assert.Equal(t, TrackStateNotTracked, tracker.ItemState(datakinds.Features, "potato", second(0)))
	tracker.RemoveItem(datakinds.Segments, "never-added")
}

func TestExpirationTrackerSameKeyInMultipleScopes(t *testing.T) {
	tracker := NewExpirationTracker()
	tracker.Add("potato", second(0))
	tracker.AddItem(datakinds.Features, "potato", second(10))
	tracker.AddItem(datakinds.Segments, "potato", second(20))

	assert.Equal(t, TrackStateStale, tracker.State("potato", second(9)))
	assert.Equal(t, TrackStateFresh, tracker.ItemState(datakinds.Features, "potato", second(9)))
	assert.Equal(t, TrackStateStale, tracker.ItemState(datakinds.Features, "potato", second(11)))
	assert.Equal(t, TrackStateFresh, tracker.ItemState(datakinds.Segments, "potato", second(11)))
}

func TestExpirationTrackerAddReplacesExpiration(t *testing.T) {
	tracker := NewExpirationTracker()
	tracker.AddItem(datakinds.Features, "potato", second(10))
	tracker.AddItem(datakinds.Features, "potato", second(30))
	assert.Equal(t, TrackStateFresh, tracker.ItemState(datakinds.Features, "potato", second(20)))
}

func TestExpirationTrackerClear(t *testing.T) {
	tracker := NewExpirationTracker()
	tracker.Add("potato", second(0))
	tracker.AddItem(datakinds.Features, "potato", second(10))
	tracker.AddItem(datakinds.Segments, "potato", second(20))

	tracker.Clear()

	assert.Equal(t, TrackStateNotTracked, tracker.State("potato", second(0)))
	assert.Equal(t, TrackStateNotTracked, tracker.ItemState(datakinds.Features, "potato", second(0)))
	assert.Equal(t, TrackStateNotTracked, tracker.ItemState(datakinds.Segments, "potato", second(0)))
}

func TestExpirationTrackerPrune(t *testing.T) {
	tracker := NewExpirationTracker()
	tracker.Add("freshUnscoped", second(100))
	tracker.AddItem(datakinds.Features, "freshFlag", second(100))
	tracker.AddItem(datakinds.Segments, "freshSegment", second(100))

	tracker.Add("staleUnscoped", second(50))
	tracker.AddItem(datakinds.Features, "staleFlag", second(50))
	tracker.AddItem(datakinds.Segments, "staleSegment", second(50))

	pruned := tracker.Prune(second(80))

	assert.ElementsMatch(t, []TrackedKey{
		{Key: "staleUnscoped"},
		{Kind: datakinds.Features, Key: "staleFlag"},
		{Kind: datakinds.Segments, Key: "staleSegment"},
	}, pruned)
	assert.Equal(t, TrackedKey{Key: "staleUnscoped"}, pruned[0])

	assert.Equal(t, TrackStateNotTracked, tracker.State("staleUnscoped", second(80)))
	assert.Equal(t, TrackStateNotTracked, tracker.ItemState(datakinds.Features, "staleFlag", second(80)))
	assert.Equal(t, TrackStateNotTracked, tracker.ItemState(datakinds.Segments, "staleSegment", second(80)))

	assert.Equal(t, TrackStateFresh, tracker.State("freshUnscoped", second(80)))
	assert.Equal(t, TrackStateFresh, tracker.ItemState(datakinds.Features, "freshFlag", second(80)))
	assert.Equal(t, TrackStateFresh, tracker.ItemState(datakinds.Segments, "freshSegment", second(80)))

	assert.Len(t, tracker.Prune(second(80)), 0)
}

func TestTrackStateString(t *testing.T) {
	assert.Equal(t, "FRESH", TrackStateFresh.String())
	assert.Equal(t, "STALE", TrackStateStale.String())
	assert.Equal(t, "NOT_TRACKED", TrackStateNotTracked.String())
}
