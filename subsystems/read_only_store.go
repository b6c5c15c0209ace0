package subsystems

import (
	"io"

	"github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"
)

// ReadOnlyStore is the query side of a data store.
type ReadOnlyStore interface {
	// Get retrieves an item from the specified collection, if available.
	//
	// If the specified key does not exist in the collection, it should return an ItemDescriptor
	// whose Version is -1.
	//
	// If the item has been deleted and the store contains a placeholder, it should return an
	// ItemDescriptor whose Version is the version of the placeholder, and whose Item is nil.
	Get(kind ldstoretypes.DataKind, key string) (ldstoretypes.ItemDescriptor, error)

	// GetAll retrieves all items from the specified collection.
	//
	// If the store contains placeholders for deleted items, it should include them in the results,
	// not filter them out.
	GetAll(kind ldstoretypes.DataKind) ([]ldstoretypes.KeyedItemDescriptor, error)

	// IsInitialized returns true if the store has been initialized with a full data set.
	IsInitialized() bool
}

// DataStore is a versioned store of flags and segments that can be both queried and updated.
type DataStore interface {
	io.Closer
	ReadOnlyStore

	// Init overwrites the store's contents with a set of items for each collection.
	//
	// All previous data should be discarded, regardless of versioning.
	Init(allData []ldstoretypes.Collection) error

	// Upsert updates or inserts an item in the specified collection. For updates, the object will only be
	// updated if the existing version is less than the new version.
	//
	// The returned boolean is true if the store was updated, or false if the existing version was
	// equal or greater.
	Upsert(kind ldstoretypes.DataKind, key string, item ldstoretypes.ItemDescriptor) (bool, error)
}
