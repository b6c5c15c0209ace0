// Package datakinds defines the flag and segment data kinds and their JSON representations.
package datakinds

import (
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"

	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/launchdarkly/go-server-sdk-evaluation/v3/ldmodel"
)

// A tombstone is stored as a JSON object with "deleted":true. Its key cannot collide with a real
// item key, since '$' is not allowed in keys.
const deletedItemPlaceholderKey = "$deleted"

type modelKind[T any] struct {
	name      string
	read      func(*jreader.Reader) T
	write     func(T, *jwriter.Writer)
	version   func(*T) (int, bool)
	tombstone func(version int) T
}

// Features is the data kind for feature flags. Items are *ldmodel.FeatureFlag.
var Features DataKindInternal = &modelKind[ldmodel.FeatureFlag]{ //nolint:gochecknoglobals
	name:  "features",
	read:  ldmodel.UnmarshalFeatureFlagFromJSONReader,
	write: ldmodel.MarshalFeatureFlagToJSONWriter,
	version: func(f *ldmodel.FeatureFlag) (int, bool) {
		return f.Version, f.Deleted
	},
	tombstone: func(version int) ldmodel.FeatureFlag {
		return ldmodel.FeatureFlag{Key: deletedItemPlaceholderKey, Version: version, Deleted: true}
	},
}

// Segments is the data kind for segments. Items are *ldmodel.Segment.
var Segments DataKindInternal = &modelKind[ldmodel.Segment]{ //nolint:gochecknoglobals
	name:  "segments",
	read:  ldmodel.UnmarshalSegmentFromJSONReader,
	write: ldmodel.MarshalSegmentToJSONWriter,
	version: func(s *ldmodel.Segment) (int, bool) {
		return s.Version, s.Deleted
	},
	tombstone: func(version int) ldmodel.Segment {
		return ldmodel.Segment{Key: deletedItemPlaceholderKey, Version: version, Deleted: true}
	},
}

// AllDataKinds returns the data kinds in the order that a full data set should be stored.
func AllDataKinds() []ldstoretypes.DataKind {
	return []ldstoretypes.DataKind{Segments, Features}
}

// ByName returns the built-in data kind with the given namespace name, or nil.
func ByName(name string) DataKindInternal {
	switch name {
	case Features.GetName():
		return Features
	case Segments.GetName():
		return Segments
	default:
		return nil
	}
}

func (k *modelKind[T]) GetName() string {
	return k.name
}

func (k *modelKind[T]) String() string {
	return k.name
}

// Serialize returns nil if the item is not of this kind's type.
func (k *modelKind[T]) Serialize(item ldstoretypes.ItemDescriptor) []byte {
	w := jwriter.NewWriter()
	k.SerializeToJSONWriter(item, &w)
	if w.Error() != nil {
		return nil
	}
	return w.Bytes()
}

func (k *modelKind[T]) SerializeToJSONWriter(item ldstoretypes.ItemDescriptor, w *jwriter.Writer) {
	if item.Item == nil {
		k.write(k.tombstone(item.Version), w)
		return
	}
	if model, ok := item.Item.(*T); ok {
		k.write(*model, w)
		return
	}
	w.AddError(errWrongItemType{kind: k.name, item: item.Item})
}

func (k *modelKind[T]) Deserialize(data []byte) (ldstoretypes.ItemDescriptor, error) {
	r := jreader.NewReader(data)
	return k.DeserializeFromJSONReader(&r)
}

func (k *modelKind[T]) DeserializeFromJSONReader(r *jreader.Reader) (ldstoretypes.ItemDescriptor, error) {
	model := k.read(r)
	if err := r.Error(); err != nil {
		return ldstoretypes.ItemDescriptor{}, err
	}
	version, deleted := k.version(&model)
	if deleted {
		return ldstoretypes.ItemDescriptor{Version: version, Item: nil}, nil
	}
	return ldstoretypes.ItemDescriptor{Version: version, Item: &model}, nil
}
