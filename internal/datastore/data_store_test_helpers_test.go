package datastore

import (
	"errors"

	"github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"
)

type unknownDataKind struct{}

func (k unknownDataKind) GetName() string {
	return "unknown"
}

func (k unknownDataKind) Serialize(item ldstoretypes.ItemDescriptor) []byte {
	return nil
}

func (k unknownDataKind) Deserialize(data []byte) (ldstoretypes.ItemDescriptor, error) {
	return ldstoretypes.ItemDescriptor{}, errors.New("not implemented")
}

type fakeStoreForDataStoreProvider struct {
	data      map[ldstoretypes.DataKind]map[string]ldstoretypes.ItemDescriptor
	fakeError error
}

func (f fakeStoreForDataStoreProvider) Init(allData []ldstoretypes.Collection) error {
	return f.fakeError
}

func (f fakeStoreForDataStoreProvider) Get(kind ldstoretypes.DataKind, key string) (ldstoretypes.ItemDescriptor, error) {
	if f.fakeError != nil {
		return ldstoretypes.ItemDescriptor{}, f.fakeError
	}
	if item, ok := f.data[kind][key]; ok {
		return item, nil
	}
	return ldstoretypes.ItemDescriptor{}.NotFound(), nil
}

func (f fakeStoreForDataStoreProvider) GetAll(kind ldstoretypes.DataKind) ([]ldstoretypes.KeyedItemDescriptor, error) {
	if f.fakeError != nil {
		return nil, f.fakeError
	}
	var ret []ldstoretypes.KeyedItemDescriptor
	for k, v := range f.data[kind] {
		ret = append(ret, ldstoretypes.KeyedItemDescriptor{Key: k, Item: v})
	}
	return ret, nil
}

func (f fakeStoreForDataStoreProvider) Upsert(kind ldstoretypes.DataKind, key string, item ldstoretypes.ItemDescriptor) (bool, error) {
	return false, f.fakeError
}

func (f fakeStoreForDataStoreProvider) IsInitialized() bool {
	return false
}

func (f fakeStoreForDataStoreProvider) Close() error {
	return nil
}
