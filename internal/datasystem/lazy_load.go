package datasystem

import (
	"fmt"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"golang.org/x/sync/singleflight"

	"github.com/launchdarkly/go-server-sdk-datasync/interfaces"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/datakinds"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
	st "github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"
)

// DefaultCacheRefresh is the default value for how long LazyLoad treats a value read from the
// persistent store as current.
const DefaultCacheRefresh = 5 * time.Minute

const (
	allFlagsKey    = "allFlags"
	allSegmentsKey = "allSegments"
	initializedKey = "initialized"
)

// LazyLoad is a data system that reads flags and segments from a persistent store on demand,
// instead of receiving them from LaunchDarkly. Something else, such as the Relay Proxy, is
// responsible for keeping the persistent store up to date.
//
// Each value that is read is cached in memory. An ExpirationTracker decides whether the cached copy
// is still fresh; a stale or untracked value is refreshed from the store synchronously before it is
// returned. Concurrent refreshes of the same key or collection share one store query.
//
// If the store returns an error, LazyLoad reports an Interrupted status with
// DataSourceErrorKindStoreError and goes on serving whatever it had cached.
type LazyLoad struct {
	core          subsystems.PersistentDataStoreCore
	statusUpdates subsystems.DataSourceStatusReporter
	cacheRefresh  time.Duration
	now           func() time.Time
	loggers       ldlog.Loggers

	items       map[st.DataKind]map[string]st.ItemDescriptor
	tracker     *ExpirationTracker
	initialized bool
	storeFailed bool
	lock        sync.Mutex

	requests  singleflight.Group
	closeOnce sync.Once
}

// NewLazyLoad creates a LazyLoad data system over a persistent store core. If cacheRefresh is zero or
// negative, DefaultCacheRefresh is used.
func NewLazyLoad(
	core subsystems.PersistentDataStoreCore,
	statusUpdates subsystems.DataSourceStatusReporter,
	cacheRefresh time.Duration,
	loggers ldlog.Loggers,
) *LazyLoad {
	return newLazyLoad(core, statusUpdates, cacheRefresh, loggers, time.Now)
}

func newLazyLoad(
	core subsystems.PersistentDataStoreCore,
	statusUpdates subsystems.DataSourceStatusReporter,
	cacheRefresh time.Duration,
	loggers ldlog.Loggers,
	now func() time.Time,
) *LazyLoad {
	if cacheRefresh <= 0 {
		cacheRefresh = DefaultCacheRefresh
	}
	return &LazyLoad{
		core:          core,
		statusUpdates: statusUpdates,
		cacheRefresh:  cacheRefresh,
		now:           now,
		loggers:       loggers,
		items:         make(map[st.DataKind]map[string]st.ItemDescriptor),
		tracker:       NewExpirationTracker(),
	}
}

//nolint:revive // no doc comment for standard method
func (l *LazyLoad) Identity() string {
	return "lazy load via " + l.core.Identity()
}

// Start reports the initial status. Nothing is read until it is asked for, so closeWhenReady is
// closed immediately.
func (l *LazyLoad) Start(closeWhenReady chan<- struct{}) {
	l.loggers.Infof("Reading flags on demand from %s, refreshing cached values every %s", l.core.Identity(), l.cacheRefresh)
	if l.core.IsStoreAvailable() {
		l.statusUpdates.UpdateStatus(interfaces.DataSourceStateValid, interfaces.DataSourceErrorInfo{})
	} else {
		l.setStoreFailed()
		l.statusUpdates.UpdateStatus(interfaces.DataSourceStateInterrupted, interfaces.DataSourceErrorInfo{
			Kind:    interfaces.DataSourceErrorKindStoreError,
			Message: "persistent store is not available",
			Time:    l.now(),
		})
	}
	close(closeWhenReady)
}

// Get returns an item, refreshing it from the persistent store first unless the cached copy is
// fresh. A deleted item is returned as a tombstone and a missing item as ItemDescriptor.NotFound.
func (l *LazyLoad) Get(kind st.DataKind, key string) (st.ItemDescriptor, error) {
	l.lock.Lock()
	state := l.tracker.ItemState(kind, key, l.now())
	l.lock.Unlock()

	if state != TrackStateFresh {
		_, err, _ := l.requests.Do(fmt.Sprintf("get:%s:%s", kind.GetName(), key), func() (interface{}, error) {
			return nil, l.refreshItem(kind, key)
		})
		l.reportStoreResult(err)
	}

	l.lock.Lock()
	item, ok := l.items[kind][key]
	l.lock.Unlock()
	if !ok {
		return st.ItemDescriptor{}.NotFound(), nil
	}
	return item, nil
}

// GetAll returns every item of a kind, including tombstones, refreshing the whole collection from
// the persistent store first unless the cached collection is fresh.
func (l *LazyLoad) GetAll(kind st.DataKind) ([]st.KeyedItemDescriptor, error) {
	allKey := allItemsKey(kind)
	l.lock.Lock()
	state := l.tracker.State(allKey, l.now())
	l.lock.Unlock()

	if state != TrackStateFresh {
		_, err, _ := l.requests.Do("all:"+kind.GetName(), func() (interface{}, error) {
			return nil, l.refreshAll(kind)
		})
		l.reportStoreResult(err)
	}

	l.lock.Lock()
	defer l.lock.Unlock()
	items := l.items[kind]
	if len(items) == 0 {
		return nil, nil
	}
	ret := make([]st.KeyedItemDescriptor, 0, len(items))
	for key, item := range items {
		ret = append(ret, st.KeyedItemDescriptor{Key: key, Item: item})
	}
	return ret, nil
}

// IsInitialized asks the persistent store whether it has ever been populated. A positive answer is
// remembered for good; a negative one is remembered only until it goes stale.
func (l *LazyLoad) IsInitialized() bool {
	l.lock.Lock()
	if l.initialized {
		l.lock.Unlock()
		return true
	}
	state := l.tracker.State(initializedKey, l.now())
	l.lock.Unlock()
	if state == TrackStateFresh {
		return false
	}

	result, _, _ := l.requests.Do(initializedKey, func() (interface{}, error) {
		inited := l.core.IsInitialized()
		l.lock.Lock()
		defer l.lock.Unlock()
		if inited {
			l.initialized = true
		}
		l.tracker.Add(initializedKey, l.now().Add(l.cacheRefresh))
		return inited, nil
	})
	inited, _ := result.(bool)
	return inited
}

// ShutdownAsync closes the persistent store core. There is no background activity to stop.
func (l *LazyLoad) ShutdownAsync(completion func()) {
	l.closeOnce.Do(func() {
		if err := l.core.Close(); err != nil {
			l.loggers.Warnf("Error closing %s: %s", l.core.Identity(), err)
		}
		l.statusUpdates.UpdateStatus(interfaces.DataSourceStateOff, interfaces.DataSourceErrorInfo{})
	})
	if completion != nil {
		completion()
	}
}

//nolint:revive // no doc comment for standard method
func (l *LazyLoad) Close() error {
	l.ShutdownAsync(nil)
	return nil
}

// GetCacheRefresh returns the configured refresh interval, for testing.
func (l *LazyLoad) GetCacheRefresh() time.Duration {
	return l.cacheRefresh
}

func (l *LazyLoad) refreshItem(kind st.DataKind, key string) error {
	serialized, err := l.core.Get(kind, key)
	if err != nil {
		return err
	}
	item, found, err := deserializeItem(kind, serialized)

	l.lock.Lock()
	defer l.lock.Unlock()
	now := l.now()
	switch {
	case err != nil:
		// keep the previous copy, but don't ask again until it would have expired
		l.loggers.Errorf("Received malformed %s item %q from %s: %s", kind, key, l.core.Identity(), err)
	case found:
		l.itemsOf(kind)[key] = item
	default:
		delete(l.items[kind], key)
	}
	l.tracker.AddItem(kind, key, now.Add(l.cacheRefresh))
	l.pruneLocked(now)
	return nil
}

func (l *LazyLoad) refreshAll(kind st.DataKind) error {
	serializedItems, err := l.core.GetAll(kind)
	if err != nil {
		return err
	}
	newItems := make(map[string]st.ItemDescriptor, len(serializedItems))
	for _, s := range serializedItems {
		item, found, err := deserializeItem(kind, s.Item)
		if err != nil {
			l.loggers.Errorf("Received malformed %s item %q from %s: %s", kind, s.Key, l.core.Identity(), err)
			continue
		}
		if found {
			newItems[s.Key] = item
		}
	}

	l.lock.Lock()
	defer l.lock.Unlock()
	now := l.now()
	expiration := now.Add(l.cacheRefresh)
	l.items[kind] = newItems
	for key := range newItems {
		l.tracker.AddItem(kind, key, expiration)
	}
	l.tracker.Add(allItemsKey(kind), expiration)
	l.pruneLocked(now)
	return nil
}

// pruneLocked drops expired keys from the tracker, and expired items from the cache, so that keys
// which are never asked for again do not stay in memory.
func (l *LazyLoad) pruneLocked(now time.Time) {
	for _, pruned := range l.tracker.Prune(now) {
		if pruned.Kind != nil {
			delete(l.items[pruned.Kind], pruned.Key)
		}
	}
}

func (l *LazyLoad) itemsOf(kind st.DataKind) map[string]st.ItemDescriptor {
	items := l.items[kind]
	if items == nil {
		items = make(map[string]st.ItemDescriptor)
		l.items[kind] = items
	}
	return items
}

func (l *LazyLoad) setStoreFailed() {
	l.lock.Lock()
	l.storeFailed = true
	l.lock.Unlock()
}

func (l *LazyLoad) reportStoreResult(err error) {
	l.lock.Lock()
	wasFailed := l.storeFailed
	l.storeFailed = err != nil
	l.lock.Unlock()

	if err == nil {
		if wasFailed {
			l.loggers.Warnf("%s is available again", l.core.Identity())
			l.statusUpdates.UpdateStatus(interfaces.DataSourceStateValid, interfaces.DataSourceErrorInfo{})
		}
		return
	}
	if !wasFailed {
		l.loggers.Errorf("Failed to read from %s; cached values will be used: %s", l.core.Identity(), err)
	}
	l.statusUpdates.UpdateStatus(interfaces.DataSourceStateInterrupted, interfaces.DataSourceErrorInfo{
		Kind:    interfaces.DataSourceErrorKindStoreError,
		Message: err.Error(),
		Time:    l.now(),
	})
}

func allItemsKey(kind st.DataKind) string {
	switch kind {
	case datakinds.Features:
		return allFlagsKey
	case datakinds.Segments:
		return allSegmentsKey
	default:
		return "all:" + kind.GetName()
	}
}

// deserializeItem converts what a persistent store core returned into an ItemDescriptor. found is
// false if the core has no such item at all.
func deserializeItem(kind st.DataKind, s st.SerializedItemDescriptor) (st.ItemDescriptor, bool, error) {
	if s.Deleted {
		return st.ItemDescriptor{Version: s.Version}, true, nil
	}
	if s.SerializedItem == nil {
		return st.ItemDescriptor{}, false, nil
	}
	item, err := kind.Deserialize(s.SerializedItem)
	if err != nil {
		return st.ItemDescriptor{}, false, err
	}
	return item, true, nil
}
