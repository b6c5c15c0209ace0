package datasource

import (
	"errors"
	"strings"

	"github.com/launchdarkly/go-server-sdk-datasync/internal/datakinds"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"

	"github.com/launchdarkly/go-jsonstream/v3/jreader"
)

// Payload shapes of the three server-side stream events:
//
//	put:    {"path": "/", "data": {"flags": {...}, "segments": {...}}}
//	patch:  {"path": "/flags/flagkey", "data": {"key": "flagkey", "version": 2, ...}}
//	delete: {"path": "/segments/segkey", "version": 3}
//
// The "path" of a put is always "/" when it is present. Older relay proxies omit it, so it is
// not required.

var (
	putRequiredProperties    = []string{"data"}            //nolint:gochecknoglobals
	patchRequiredProperties  = []string{"path", "data"}    //nolint:gochecknoglobals
	deleteRequiredProperties = []string{"path", "version"} //nolint:gochecknoglobals

	errPatchWithoutData = errors.New("patch event had no data property")
)

type malformedJSONError struct {
	innerError error
}

func (e malformedJSONError) Error() string {
	return e.innerError.Error()
}

func (e malformedJSONError) Unwrap() error {
	return e.innerError
}

// putData is a full data set. The "data" map of maps becomes a list of collections, which is what
// DataDestination.Init expects.
type putData struct {
	Path string
	Data []ldstoretypes.Collection
}

// patchData is a single new or updated item. A nil Kind means the path named a collection this
// code does not know about, and the event should be skipped.
type patchData struct {
	Kind ldstoretypes.DataKind
	Key  string
	Data ldstoretypes.ItemDescriptor
}

// deleteData is a versioned deletion. A nil Kind has the same meaning as for patchData.
type deleteData struct {
	Kind    ldstoretypes.DataKind
	Key     string
	Version int
}

func parsePutData(data []byte) (putData, error) {
	var ret putData
	r := jreader.NewReader(data)
	for obj := r.Object().WithRequiredProperties(putRequiredProperties); obj.Next(); {
		switch string(obj.Name()) {
		case "path": //nolint:goconst
			ret.Path = r.String()
		case "data": //nolint:goconst
			ret.Data = parseAllStoreDataFromJSONReader(&r)
		}
	}
	if err := r.Error(); err != nil {
		return putData{}, malformedJSONError{err}
	}
	return ret, nil
}

func parsePatchData(data []byte) (patchData, error) {
	var ret patchData
	var kind datakinds.DataKindInternal
	sawDataFirst := false

	r := jreader.NewReader(data)
	for obj := r.Object().WithRequiredProperties(patchRequiredProperties); obj.Next(); {
		switch string(obj.Name()) {
		case "path":
			kind, ret.Key = parseItemPath(r.String())
			if kind == nil {
				ret.Key = ""
				return ret, nil
			}
			ret.Kind = kind
		case "data":
			if kind == nil {
				// the item can't be decoded until we know its kind; come back for it below
				sawDataFirst = true
				break
			}
			item, err := kind.DeserializeFromJSONReader(&r)
			if err != nil {
				return patchData{}, malformedJSONError{err}
			}
			ret.Data = item
		}
	}
	if err := r.Error(); err != nil {
		return patchData{}, malformedJSONError{err}
	}
	if !sawDataFirst {
		return ret, nil
	}

	r = jreader.NewReader(data)
	for obj := r.Object(); obj.Next(); {
		if string(obj.Name()) != "data" {
			continue
		}
		item, err := kind.DeserializeFromJSONReader(&r)
		if err != nil {
			return patchData{}, malformedJSONError{err}
		}
		ret.Data = item
		return ret, nil
	}
	if err := r.Error(); err != nil {
		return patchData{}, malformedJSONError{err}
	}
	return patchData{}, malformedJSONError{errPatchWithoutData}
}

func parseDeleteData(data []byte) (deleteData, error) {
	var ret deleteData
	r := jreader.NewReader(data)
	for obj := r.Object().WithRequiredProperties(deleteRequiredProperties); obj.Next(); {
		switch string(obj.Name()) {
		case "path":
			kind, key := parseItemPath(r.String())
			if kind == nil {
				return deleteData{}, nil
			}
			ret.Kind, ret.Key = kind, key
		case "version":
			ret.Version = r.Int()
		}
	}
	if err := r.Error(); err != nil {
		return deleteData{}, malformedJSONError{err}
	}
	return ret, nil
}

// parseItemPath splits "/flags/key" or "/segments/key" into a data kind and key. Any other path
// yields a nil kind.
func parseItemPath(path string) (datakinds.DataKindInternal, string) {
	switch {
	case strings.HasPrefix(path, "/flags/"):
		return datakinds.Features, strings.TrimPrefix(path, "/flags/")
	case strings.HasPrefix(path, "/segments/"):
		return datakinds.Segments, strings.TrimPrefix(path, "/segments/")
	default:
		return nil, ""
	}
}
