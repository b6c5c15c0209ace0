package sharedtest

import (
	"sync"
	"time"

	"github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"
)

// MockPersistentStoreCore is a test implementation of PersistentDataStoreCore. Tests populate it with
// ForceSet and friends, since the core itself is read-only.
type MockPersistentStoreCore struct {
	data                map[ldstoretypes.DataKind]map[string]ldstoretypes.SerializedItemDescriptor
	persistOnlyAsString bool
	fakeError           error
	available           bool
	inited              bool
	InitQueriedCount    int
	GetQueriedCount     int
	GetAllQueriedCount  int
	queryDelay          time.Duration
	queryStartedCh      chan struct{}
	closed              bool
	lock                sync.Mutex
}

// NewMockPersistentStoreCore creates a test implementation of a persistent store core.
func NewMockPersistentStoreCore() *MockPersistentStoreCore {
	return &MockPersistentStoreCore{
		data:      make(map[ldstoretypes.DataKind]map[string]ldstoretypes.SerializedItemDescriptor),
		available: true,
	}
}

// EnableInstrumentedQueries puts the test store into a mode where all get operations begin by posting
// a signal to a channel and then waiting for some amount of time, to test coalescing of requests.
func (m *MockPersistentStoreCore) EnableInstrumentedQueries(queryDelay time.Duration) <-chan struct{} {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.queryDelay = queryDelay
	m.queryStartedCh = make(chan struct{}, 10)
	return m.queryStartedCh
}

// ForceSet directly modifies an item in the test data.
func (m *MockPersistentStoreCore) ForceSet(
	kind ldstoretypes.DataKind,
	key string,
	item ldstoretypes.SerializedItemDescriptor,
) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.data[kind] == nil {
		m.data[kind] = make(map[string]ldstoretypes.SerializedItemDescriptor)
	}
	m.data[kind][key] = m.storableItem(kind, item)
}

// ForceSetItem serializes an item with its data kind and stores it.
func (m *MockPersistentStoreCore) ForceSetItem(kind ldstoretypes.DataKind, key string, item ldstoretypes.ItemDescriptor) {
	m.ForceSet(kind, key, ldstoretypes.SerializedItemDescriptor{
		Version:        item.Version,
		Deleted:        item.Item == nil,
		SerializedItem: kind.Serialize(item),
	})
}

// ForceRemove deletes an item from the test data.
func (m *MockPersistentStoreCore) ForceRemove(kind ldstoretypes.DataKind, key string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.data[kind], key)
}

// ForceSetInited changes the value that will be returned by IsInitialized().
func (m *MockPersistentStoreCore) ForceSetInited(inited bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.inited = inited
}

// SetAvailable changes the value that will be returned by IsStoreAvailable().
func (m *MockPersistentStoreCore) SetAvailable(available bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.available = available
}

// SetFakeError causes subsequent store operations to return an error.
func (m *MockPersistentStoreCore) SetFakeError(fakeError error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.fakeError = fakeError
}

// SetPersistOnlyAsString sets whether the mock store should behave like our Redis implementation, where
// the item version is *not* stored separately from the serialized item (so the latter must be parsed to
// get the version). If this is false (the default), it behaves instead like our DynamoDB implementation,
// where the version metadata exists separately from the serialized item.
func (m *MockPersistentStoreCore) SetPersistOnlyAsString(value bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.persistOnlyAsString = value
}

// IsClosed returns true if Close has been called.
func (m *MockPersistentStoreCore) IsClosed() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.closed
}

// Queries returns the current Get and GetAll counters.
func (m *MockPersistentStoreCore) Queries() (gets, getAlls int) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.GetQueriedCount, m.GetAllQueriedCount
}

// InitQueries returns the number of times IsInitialized has been called.
func (m *MockPersistentStoreCore) InitQueries() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.InitQueriedCount
}

func (m *MockPersistentStoreCore) startQuery() {
	if m.queryStartedCh != nil {
		m.queryStartedCh <- struct{}{}
	}
	if m.queryDelay > 0 {
		<-time.After(m.queryDelay)
	}
}

// Get is a standard PersistentDataStoreCore method.
func (m *MockPersistentStoreCore) Get(
	kind ldstoretypes.DataKind,
	key string,
) (ldstoretypes.SerializedItemDescriptor, error) {
	m.lock.Lock()
	m.GetQueriedCount++
	fakeError := m.fakeError
	m.lock.Unlock()
	if fakeError != nil {
		return ldstoretypes.SerializedItemDescriptor{}.NotFound(), fakeError
	}
	m.startQuery()
	m.lock.Lock()
	defer m.lock.Unlock()
	if item, ok := m.data[kind][key]; ok {
		return m.retrievedItem(item), nil
	}
	return ldstoretypes.SerializedItemDescriptor{}.NotFound(), nil
}

// GetAll is a standard PersistentDataStoreCore method.
func (m *MockPersistentStoreCore) GetAll(
	kind ldstoretypes.DataKind,
) ([]ldstoretypes.KeyedSerializedItemDescriptor, error) {
	m.lock.Lock()
	m.GetAllQueriedCount++
	fakeError := m.fakeError
	m.lock.Unlock()
	if fakeError != nil {
		return nil, fakeError
	}
	m.startQuery()
	m.lock.Lock()
	defer m.lock.Unlock()
	ret := []ldstoretypes.KeyedSerializedItemDescriptor{}
	for k, v := range m.data[kind] {
		ret = append(ret, ldstoretypes.KeyedSerializedItemDescriptor{Key: k, Item: m.retrievedItem(v)})
	}
	return ret, nil
}

// IsInitialized is a standard PersistentDataStoreCore method.
func (m *MockPersistentStoreCore) IsInitialized() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.InitQueriedCount++
	return m.inited
}

// IsStoreAvailable is a standard PersistentDataStoreCore method.
func (m *MockPersistentStoreCore) IsStoreAvailable() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.available
}

// Identity is a standard PersistentDataStoreCore method.
func (m *MockPersistentStoreCore) Identity() string {
	return "mock store"
}

// Close is a standard PersistentDataStoreCore method.
func (m *MockPersistentStoreCore) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.closed = true
	return nil
}

func (m *MockPersistentStoreCore) retrievedItem(
	item ldstoretypes.SerializedItemDescriptor,
) ldstoretypes.SerializedItemDescriptor {
	if m.persistOnlyAsString {
		// This simulates the kind of store implementation that can't track metadata separately
		return ldstoretypes.SerializedItemDescriptor{Version: 0, SerializedItem: item.SerializedItem}
	}
	return item
}

func (m *MockPersistentStoreCore) storableItem(
	kind ldstoretypes.DataKind,
	item ldstoretypes.SerializedItemDescriptor,
) ldstoretypes.SerializedItemDescriptor {
	if item.Deleted && m.persistOnlyAsString {
		// a store that only keeps strings has to keep a placeholder for a deleted item
		return ldstoretypes.SerializedItemDescriptor{
			Version:        item.Version,
			SerializedItem: kind.Serialize(ldstoretypes.ItemDescriptor{Version: item.Version}),
		}
	}
	return item
}
