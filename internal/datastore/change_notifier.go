package datastore

import (
	"sort"
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-server-sdk-evaluation/v3/ldmodel"
	"golang.org/x/exp/maps"

	"github.com/launchdarkly/go-server-sdk-datasync/interfaces"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/datakinds"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
	st "github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"
)

// ChangeNotifier wraps a DataStore and tells listeners what changed whenever the store is updated.
//
// Change listeners receive the set of flag keys affected by each Init or Upsert, including flags that
// are affected only because something they depend on (a prerequisite flag or a segment) changed. Value
// listeners are registered for a single flag key and receive an event only when that flag's resolved
// value, or whether it exists at all, actually changes.
//
// Listeners are called synchronously on the goroutine that called Init or Upsert, after the store has
// been updated, and updates are serialized so that listeners see them in the order they were applied.
// A listener must not call Init or Upsert on the same ChangeNotifier.
type ChangeNotifier struct {
	store           subsystems.DataStore
	resolver        ValueResolver
	loggers         ldlog.Loggers
	deps            *dependencyTracker
	changeListeners *listenerSet[interfaces.ChangeSet]
	valueListeners  map[string]*listenerSet[interfaces.FlagValueChangeEvent]
	valueLock       sync.Mutex
	updateLock      sync.Mutex
}

// NewChangeNotifier creates a ChangeNotifier that wraps the specified store. If resolver is nil,
// StaticValueResolver is used.
func NewChangeNotifier(store subsystems.DataStore, resolver ValueResolver, loggers ldlog.Loggers) *ChangeNotifier {
	if resolver == nil {
		resolver = StaticValueResolver
	}
	return &ChangeNotifier{
		store:           store,
		resolver:        resolver,
		loggers:         loggers,
		deps:            newDependencyTracker(),
		changeListeners: &listenerSet[interfaces.ChangeSet]{},
		valueListeners:  make(map[string]*listenerSet[interfaces.FlagValueChangeEvent]),
	}
}

// OnFlagChange registers a listener for change sets. Each listener receives its own copy of the set.
func (n *ChangeNotifier) OnFlagChange(handler func(interfaces.ChangeSet)) interfaces.Connection {
	return n.changeListeners.add(func(changes interfaces.ChangeSet) {
		handler(maps.Clone(changes))
	})
}

// OnFlagValueChange registers a listener for changes to the resolved value of one flag.
func (n *ChangeNotifier) OnFlagValueChange(
	flagKey string,
	handler func(interfaces.FlagValueChangeEvent),
) interfaces.Connection {
	n.valueLock.Lock()
	defer n.valueLock.Unlock()
	set := n.valueListeners[flagKey]
	if set == nil {
		set = &listenerSet[interfaces.FlagValueChangeEvent]{}
		set.onEmpty = func() {
			n.valueLock.Lock()
			if n.valueListeners[flagKey] == set && set.isEmpty() {
				delete(n.valueListeners, flagKey)
			}
			n.valueLock.Unlock()
		}
		n.valueListeners[flagKey] = set
	}
	return set.add(handler)
}

// Init replaces the contents of the store and notifies listeners of every flag whose version, presence,
// or dependencies differ from the previous contents.
func (n *ChangeNotifier) Init(allData []st.Collection) error {
	n.updateLock.Lock()
	defer n.updateLock.Unlock()

	var oldData map[st.DataKind]map[string]st.ItemDescriptor
	if n.hasListeners() {
		var err error
		if oldData, err = n.readAllData(allData); err != nil {
			return err
		}
	}

	if err := n.store.Init(sortCollectionsForDataStoreInit(allData)); err != nil {
		return err
	}

	n.deps.reset()
	for _, coll := range allData {
		for _, item := range coll.Items {
			n.deps.updateDependenciesFrom(coll.Kind, item.Key, item.Item)
		}
	}

	if oldData == nil {
		return nil
	}

	newData := collectionsToMap(allData)
	affected := make(kindAndKeySet)
	for kind, oldItems := range oldData {
		newItems := newData[kind]
		for key, oldItem := range oldItems {
			if newItem, ok := newItems[key]; !ok || newItem.Version != oldItem.Version {
				n.deps.addAffectedItems(affected, kindAndKey{kind, key})
			}
		}
	}
	for kind, newItems := range newData {
		oldItems := oldData[kind]
		for key := range newItems {
			if _, ok := oldItems[key]; !ok {
				n.deps.addAffectedItems(affected, kindAndKey{kind, key})
			}
		}
	}
	n.notify(affected, func(which kindAndKey) st.ItemDescriptor {
		if item, ok := oldData[which.kind][which.key]; ok {
			return item
		}
		return st.ItemDescriptor{}.NotFound()
	})
	return nil
}

// Upsert updates the store and, if the update was applied, notifies listeners. An update whose version
// is not higher than the existing one is discarded without any notification.
func (n *ChangeNotifier) Upsert(kind st.DataKind, key string, item st.ItemDescriptor) (bool, error) {
	n.updateLock.Lock()
	defer n.updateLock.Unlock()

	listening := n.hasListeners()
	var oldItem st.ItemDescriptor
	if listening {
		var err error
		if oldItem, err = n.store.Get(kind, key); err != nil {
			return false, err
		}
	}

	updated, err := n.store.Upsert(kind, key, item)
	if err != nil || !updated {
		return updated, err
	}

	n.deps.updateDependenciesFrom(kind, key, item)

	if listening {
		target := kindAndKey{kind, key}
		affected := make(kindAndKeySet)
		n.deps.addAffectedItems(affected, target)
		n.notify(affected, func(which kindAndKey) st.ItemDescriptor {
			if which == target {
				return oldItem
			}
			current, _ := n.store.Get(which.kind, which.key)
			return current
		})
	}
	return true, nil
}

// Get is a standard method of ReadOnlyStore.
func (n *ChangeNotifier) Get(kind st.DataKind, key string) (st.ItemDescriptor, error) {
	return n.store.Get(kind, key)
}

// GetAll is a standard method of ReadOnlyStore.
func (n *ChangeNotifier) GetAll(kind st.DataKind) ([]st.KeyedItemDescriptor, error) {
	return n.store.GetAll(kind)
}

// IsInitialized is a standard method of ReadOnlyStore.
func (n *ChangeNotifier) IsInitialized() bool {
	return n.store.IsInitialized()
}

// Close closes the wrapped store.
func (n *ChangeNotifier) Close() error {
	return n.store.Close()
}

// Identity returns a short description for log messages.
func (n *ChangeNotifier) Identity() string {
	return "change notifier for " + storeIdentity(n.store)
}

func (n *ChangeNotifier) hasListeners() bool {
	if !n.changeListeners.isEmpty() {
		return true
	}
	n.valueLock.Lock()
	defer n.valueLock.Unlock()
	return len(n.valueListeners) > 0
}

func (n *ChangeNotifier) valueListenersFor(flagKey string) *listenerSet[interfaces.FlagValueChangeEvent] {
	n.valueLock.Lock()
	defer n.valueLock.Unlock()
	return n.valueListeners[flagKey]
}

func (n *ChangeNotifier) readAllData(newData []st.Collection) (map[st.DataKind]map[string]st.ItemDescriptor, error) {
	kinds := datakinds.AllDataKinds()
	for _, coll := range newData {
		if datakinds.ByName(coll.Kind.GetName()) == nil {
			kinds = append(kinds, coll.Kind)
		}
	}
	ret := make(map[st.DataKind]map[string]st.ItemDescriptor, len(kinds))
	for _, kind := range kinds {
		items, err := n.store.GetAll(kind)
		if err != nil {
			return nil, err
		}
		itemsMap := make(map[string]st.ItemDescriptor, len(items))
		for _, item := range items {
			itemsMap[item.Key] = item.Item
		}
		ret[kind] = itemsMap
	}
	return ret, nil
}

func (n *ChangeNotifier) notify(affected kindAndKeySet, oldItemFor func(kindAndKey) st.ItemDescriptor) {
	changes := make(interfaces.ChangeSet)
	var valueEvents []interfaces.FlagValueChangeEvent
	for which := range affected {
		if which.kind != datakinds.Features {
			continue
		}
		changes[which.key] = struct{}{}
		if n.valueListenersFor(which.key) == nil {
			continue
		}
		newItem, err := n.store.Get(datakinds.Features, which.key)
		if err != nil {
			n.loggers.Warnf("Unable to read flag %q after update, value listeners not notified: %s", which.key, err)
			continue
		}
		if event, changed := n.valueChange(which.key, oldItemFor(which), newItem); changed {
			valueEvents = append(valueEvents, event)
		}
	}
	if len(changes) > 0 {
		n.changeListeners.broadcast(changes)
	}
	sort.Slice(valueEvents, func(i, j int) bool { return valueEvents[i].Key < valueEvents[j].Key })
	for _, event := range valueEvents {
		if set := n.valueListenersFor(event.Key); set != nil {
			set.broadcast(event)
		}
	}
}

func (n *ChangeNotifier) valueChange(
	key string,
	oldItem, newItem st.ItemDescriptor,
) (interfaces.FlagValueChangeEvent, bool) {
	oldFlag, newFlag := flagFromItem(oldItem), flagFromItem(newItem)
	oldValue, newValue := n.resolver(oldFlag), n.resolver(newFlag)
	if (oldFlag == nil) == (newFlag == nil) && oldValue.Equal(newValue) {
		return interfaces.FlagValueChangeEvent{}, false
	}
	return interfaces.FlagValueChangeEvent{
		Key:      key,
		OldValue: oldValue,
		NewValue: newValue,
		Deleted:  newFlag == nil,
	}, true
}

func flagFromItem(item st.ItemDescriptor) *ldmodel.FeatureFlag {
	flag, _ := item.Item.(*ldmodel.FeatureFlag)
	return flag
}

func collectionsToMap(allData []st.Collection) map[st.DataKind]map[string]st.ItemDescriptor {
	ret := make(map[st.DataKind]map[string]st.ItemDescriptor, len(allData))
	for _, coll := range allData {
		itemsMap := make(map[string]st.ItemDescriptor, len(coll.Items))
		for _, item := range coll.Items {
			itemsMap[item.Key] = item.Item
		}
		ret[coll.Kind] = itemsMap
	}
	return ret
}

func storeIdentity(store interface{}) string {
	if s, ok := store.(interface{ Identity() string }); ok {
		return s.Identity()
	}
	return "data store"
}
