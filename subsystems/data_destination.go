package subsystems

import (
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"
)

// DataDestination represents a sink for data obtained from a data source.
//
// The in-memory store, the change notifier that wraps it, and the status-reporting update sink used by
// the built-in data sources all implement this interface, so a data source never needs to know which of
// them it is feeding.
type DataDestination interface {
	// Init overwrites the current contents of the destination with a set of items for each collection.
	//
	// If the underlying data store returns an error during this operation, the implementation will log
	// it and set the data source state to DataSourceStateInterrupted with an error of
	// DataSourceErrorKindStoreError. It will not return the error to the data source, but will return
	// false to indicate that the operation failed.
	Init(allData []ldstoretypes.Collection) bool

	// Upsert updates or inserts an item in the specified collection. For updates, the object will only be
	// updated if the existing version is less than the new version.
	//
	// To mark an item as deleted, pass an ItemDescriptor with a nil Item and a nonzero version
	// number. Deletions must be versioned so that they do not overwrite a later update in case updates
	// are received out of order.
	//
	// The return value is false only if the update could not be applied because of a store error; an
	// update that was discarded because of its version is not a failure.
	Upsert(kind ldstoretypes.DataKind, key string, item ldstoretypes.ItemDescriptor) bool
}
