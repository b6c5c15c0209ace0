package subsystems

import (
	"io"

	"github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"
)

// PersistentDataStoreCore is the read side of a database integration, as consumed by the lazy-load
// data system.
//
// Items are exchanged in serialized form so that the database layer never needs to understand the
// flag data model. Caching, deserialization, and freshness tracking are all done by the caller.
type PersistentDataStoreCore interface {
	io.Closer

	// Get retrieves an item from the specified collection, if available.
	//
	// If the key does not exist, it should return a SerializedItemDescriptor whose Version is -1
	// (see ldstoretypes.SerializedItemDescriptor.NotFound()). A deleted item may be represented either
	// by Deleted being true or by a serialized placeholder that the data kind recognizes.
	Get(kind ldstoretypes.DataKind, key string) (ldstoretypes.SerializedItemDescriptor, error)

	// GetAll retrieves all items from the specified collection, ordered by key.
	GetAll(kind ldstoretypes.DataKind) ([]ldstoretypes.KeyedSerializedItemDescriptor, error)

	// IsInitialized returns true if the database has been populated with a full data set by some
	// other process.
	IsInitialized() bool

	// IsStoreAvailable tests whether the database is reachable.
	IsStoreAvailable() bool

	// Identity returns a short description of the database, used in log messages.
	Identity() string
}
