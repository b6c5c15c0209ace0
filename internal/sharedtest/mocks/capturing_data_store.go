package mocks

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/launchdarkly/go-server-sdk-datasync/internal/datakinds"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"
	"github.com/launchdarkly/go-server-sdk-datasync/testhelpers/ldservices"

	th "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/launchdarkly/go-test-helpers/v3/jsonhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CapturingDataStore is a DataStore implementation that records update operations for testing.
type CapturingDataStore struct {
	realStore subsystems.DataStore
	fakeError error
	inits     chan []ldstoretypes.Collection
	upserts   chan UpsertParams
	lock      sync.Mutex
}

// UpsertParams holds the parameters of an Upsert operation captured by CapturingDataStore.
type UpsertParams struct {
	Kind ldstoretypes.DataKind
	Key  string
	Item ldstoretypes.ItemDescriptor
}

// NewCapturingDataStore creates an instance of CapturingDataStore.
func NewCapturingDataStore(realStore subsystems.DataStore) *CapturingDataStore {
	return &CapturingDataStore{
		realStore: realStore,
		inits:     make(chan []ldstoretypes.Collection, 100),
		upserts:   make(chan UpsertParams, 100),
	}
}

// Init is a standard DataStore method.
func (d *CapturingDataStore) Init(allData []ldstoretypes.Collection) error {
	d.inits <- allData
	_ = d.realStore.Init(allData)
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.fakeError
}

// Get is a standard DataStore method.
func (d *CapturingDataStore) Get(kind ldstoretypes.DataKind, key string) (ldstoretypes.ItemDescriptor, error) {
	if err := d.getFakeError(); err != nil {
		return ldstoretypes.ItemDescriptor{}.NotFound(), err
	}
	return d.realStore.Get(kind, key)
}

// GetAll is a standard DataStore method.
func (d *CapturingDataStore) GetAll(kind ldstoretypes.DataKind) ([]ldstoretypes.KeyedItemDescriptor, error) {
	if err := d.getFakeError(); err != nil {
		return nil, err
	}
	return d.realStore.GetAll(kind)
}

// Upsert captures its parameters and then delegates to the real store.
func (d *CapturingDataStore) Upsert(
	kind ldstoretypes.DataKind,
	key string,
	newItem ldstoretypes.ItemDescriptor,
) (bool, error) {
	d.upserts <- UpsertParams{kind, key, newItem}
	updated, _ := d.realStore.Upsert(kind, key, newItem)
	if err := d.getFakeError(); err != nil {
		return false, err
	}
	return updated, nil
}

// IsInitialized delegates to the real store.
func (d *CapturingDataStore) IsInitialized() bool {
	return d.realStore.IsInitialized()
}

// Close in this test type is a no-op.
func (d *CapturingDataStore) Close() error {
	return nil
}

// SetFakeError causes subsequent calls to return an error.
func (d *CapturingDataStore) SetFakeError(fakeError error) {
	d.lock.Lock()
	d.fakeError = fakeError
	d.lock.Unlock()
}

func (d *CapturingDataStore) getFakeError() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.fakeError
}

// WaitForNextInit waits for an Init call.
func (d *CapturingDataStore) WaitForNextInit(
	t *testing.T,
	timeout time.Duration,
) []ldstoretypes.Collection {
	return th.RequireValue(t, d.inits, timeout, "timed out before receiving expected init")
}

// WaitForInit waits for an Init call and verifies that it matches the expected data.
func (d *CapturingDataStore) WaitForInit(
	t *testing.T,
	data *ldservices.ServerSDKData,
	timeout time.Duration,
) {
	inited := d.WaitForNextInit(t, timeout)
	assertReceivedInitDataEquals(t, data, inited)
}

// RequireNoMoreInits verifies that no further Init calls arrive within a short interval.
func (d *CapturingDataStore) RequireNoMoreInits(t *testing.T, timeout time.Duration) {
	th.AssertNoMoreValues(t, d.inits, timeout, "received unexpected init")
}

// WaitForNextUpsert waits for an Upsert call.
func (d *CapturingDataStore) WaitForNextUpsert(
	t *testing.T,
	timeout time.Duration,
) UpsertParams {
	return th.RequireValue(t, d.upserts, timeout, "timed out before receiving expected update")
}

// WaitForUpsert waits for an Upsert call and verifies that it matches the expected data.
func (d *CapturingDataStore) WaitForUpsert(
	t *testing.T,
	kind ldstoretypes.DataKind,
	key string,
	version int,
	timeout time.Duration,
) UpsertParams {
	upserted := d.WaitForNextUpsert(t, timeout)
	assert.Equal(t, kind, upserted.Kind)
	assert.Equal(t, key, upserted.Key)
	assert.Equal(t, version, upserted.Item.Version)
	assert.NotNil(t, upserted.Item.Item)
	return upserted
}

// WaitForDelete waits for an Upsert call that is expected to delete a data item.
func (d *CapturingDataStore) WaitForDelete(
	t *testing.T,
	kind ldstoretypes.DataKind,
	key string,
	version int,
	timeout time.Duration,
) {
	upserted := d.WaitForNextUpsert(t, timeout)
	assert.Equal(t, kind, upserted.Kind)
	assert.Equal(t, key, upserted.Key)
	assert.Equal(t, version, upserted.Item.Version)
	assert.Nil(t, upserted.Item.Item)
}

func assertReceivedInitDataEquals(
	t *testing.T,
	expected *ldservices.ServerSDKData,
	received []ldstoretypes.Collection,
) {
	require.Equal(t, 2, len(received))
	for _, coll := range received {
		var itemsMap map[string]interface{}
		switch coll.Kind {
		case datakinds.Features:
			itemsMap = expected.FlagsMap
		case datakinds.Segments:
			itemsMap = expected.SegmentsMap
		default:
			assert.Fail(t, "received unknown data kind", "%s", coll.Kind)
		}
		assert.Equal(t, len(itemsMap), len(coll.Items))
		for _, item := range coll.Items {
			found, ok := itemsMap[item.Key]
			if assert.True(t, ok, item.Key) {
				var props struct {
					Version int `json:"version"`
				}
				require.NoError(t, json.Unmarshal(jsonhelpers.ToJSON(found), &props))
				assert.Equal(t, props.Version, item.Item.Version)
			}
		}
	}
}
