package mocks

import (
	"sync"
	"testing"
	"time"

	"github.com/launchdarkly/go-server-sdk-datasync/interfaces"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"

	th "github.com/launchdarkly/go-test-helpers/v3"

	"github.com/stretchr/testify/assert"
)

// MockDataDestination is a mock implementation of DataDestination and DataSourceStatusReporter,
// used by tests involving data sources.
type MockDataDestination struct {
	DataStore  *CapturingDataStore
	Statuses   chan interfaces.DataSourceStatus
	lastStatus interfaces.DataSourceStatus
	lock       sync.Mutex
}

// NewMockDataDestination creates an instance of MockDataDestination. Updates are passed through to
// realStore after being captured.
func NewMockDataDestination(realStore subsystems.DataStore) *MockDataDestination {
	return &MockDataDestination{
		DataStore: NewCapturingDataStore(realStore),
		Statuses:  make(chan interfaces.DataSourceStatus, 100),
	}
}

// Init in this test implementation, delegates to d.DataStore.
func (d *MockDataDestination) Init(allData []ldstoretypes.Collection) bool {
	for _, coll := range allData {
		if coll.Kind == nil {
			panic("data source passed a nil data kind to Init")
		}
	}
	return d.DataStore.Init(allData) == nil
}

// Upsert in this test implementation, delegates to d.DataStore.
func (d *MockDataDestination) Upsert(
	kind ldstoretypes.DataKind,
	key string,
	newItem ldstoretypes.ItemDescriptor,
) bool {
	_, err := d.DataStore.Upsert(kind, key, newItem)
	return err == nil
}

// UpdateStatus in this test implementation, pushes a value onto the Statuses channel.
func (d *MockDataDestination) UpdateStatus(
	newState interfaces.DataSourceState,
	newError interfaces.DataSourceErrorInfo,
) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if newState != d.lastStatus.State || newError.Kind != "" {
		d.lastStatus = interfaces.DataSourceStatus{State: newState, LastError: newError}
		d.Statuses <- d.lastStatus
	}
}

// RequireStatusOf blocks until a new data source status is available, and verifies its state.
func (d *MockDataDestination) RequireStatusOf(
	t *testing.T,
	newState interfaces.DataSourceState,
) interfaces.DataSourceStatus {
	status := d.RequireStatus(t)
	assert.Equal(t, string(newState), string(status.State))
	// string conversion is due to a bug in assert with type aliases
	return status
}

// RequireStatus blocks until a new data source status is available.
func (d *MockDataDestination) RequireStatus(t *testing.T) interfaces.DataSourceStatus {
	return th.RequireValue(t, d.Statuses, time.Second, "timed out waiting for new data source status")
}
