package datakinds

import (
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"

	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// DataKindInternal is implemented by the built-in data kinds to allow decoding directly from a
// jsonstream reader, so that stream and polling payloads can be parsed in a single pass.
type DataKindInternal interface {
	ldstoretypes.DataKind
	DeserializeFromJSONReader(reader *jreader.Reader) (ldstoretypes.ItemDescriptor, error)
	SerializeToJSONWriter(item ldstoretypes.ItemDescriptor, writer *jwriter.Writer)
}
