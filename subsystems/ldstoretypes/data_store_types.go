// Package ldstoretypes contains the versioned item types that data sources, stores and persistent
// store cores exchange with each other.
package ldstoretypes

// DataKind represents a separately namespaced collection of storable data items, such as feature
// flags or segments.
//
// Stores treat every DataKind generically; only the kind itself knows how to turn an item into
// bytes and back.
type DataKind interface {
	GetName() string
	Serialize(item ItemDescriptor) []byte
	Deserialize(data []byte) (ItemDescriptor, error)
}

// ItemDescriptor is a versioned item, or a tombstone for a deleted item.
//
// Items are compared only by Version. A tombstone has a nil Item and keeps the version of the
// deletion, so that an update with a lower version that arrives late cannot resurrect the item.
type ItemDescriptor struct {
	// Version is the version number of this data.
	Version int
	// Item is the data item, or nil if this is a tombstone.
	Item interface{}
}

// NotFound returns a descriptor indicating that no such item exists.
func (d ItemDescriptor) NotFound() ItemDescriptor {
	return ItemDescriptor{Version: -1, Item: nil}
}

// IsDeleted returns true if this descriptor is a tombstone or represents a missing item.
func (d ItemDescriptor) IsDeleted() bool {
	return d.Item == nil
}

// IsNewerThan returns true if this descriptor should replace the other one in a store.
func (d ItemDescriptor) IsNewerThan(other ItemDescriptor) bool {
	return d.Version > other.Version
}

// SerializedItemDescriptor is the form in which a persistent store core returns an item.
//
// If Deleted is true the item is a tombstone, and SerializedItem may be nil or may hold a
// placeholder representation.
type SerializedItemDescriptor struct {
	// Version is the version number of this data.
	Version int
	// Deleted is true if this is a tombstone.
	Deleted bool
	// SerializedItem is the serialized representation of the item.
	SerializedItem []byte
}

// NotFound returns a descriptor indicating that no such item exists.
func (d SerializedItemDescriptor) NotFound() SerializedItemDescriptor {
	return SerializedItemDescriptor{Version: -1, SerializedItem: nil}
}

// KeyedItemDescriptor is a key-value pair containing an ItemDescriptor.
type KeyedItemDescriptor struct {
	Key  string
	Item ItemDescriptor
}

// KeyedSerializedItemDescriptor is a key-value pair containing a SerializedItemDescriptor.
type KeyedSerializedItemDescriptor struct {
	Key  string
	Item SerializedItemDescriptor
}

// Collection is a list of items for a DataKind.
type Collection struct {
	Kind  DataKind
	Items []KeyedItemDescriptor
}

// SerializedCollection is a list of serialized items for a DataKind.
type SerializedCollection struct {
	Kind  DataKind
	Items []KeyedSerializedItemDescriptor
}
