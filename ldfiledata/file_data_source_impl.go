package ldfiledata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"gopkg.in/ghodss/yaml.v1"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/launchdarkly/go-server-sdk-datasync/interfaces"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/datakinds"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"
	"github.com/launchdarkly/go-server-sdk-evaluation/v3/ldbuilders"
	"github.com/launchdarkly/go-server-sdk-evaluation/v3/ldmodel"
)

type fileDataSource struct {
	destination           subsystems.DataDestination
	statusUpdates         subsystems.DataSourceStatusReporter
	absFilePaths          []string
	duplicateKeysHandling DuplicateKeysHandling
	reloaderFactory       ReloaderFactory
	loggers               ldlog.Loggers
	isInitialized         bool
	readyCh               chan<- struct{}
	readyOnce             sync.Once
	closeOnce             sync.Once
	closeReloaderCh       chan struct{}
	lock                  sync.Mutex
}

func newFileDataSourceImpl(
	context subsystems.ClientContext,
	filePaths []string,
	duplicateKeysHandling DuplicateKeysHandling,
	reloaderFactory ReloaderFactory,
) (subsystems.DataSource, error) {
	abs, err := absFilePaths(filePaths)
	if err != nil {
		// COVERAGE: there's no reliable cross-platform way to simulate an invalid path in unit tests
		return nil, err
	}

	fs := &fileDataSource{
		destination:           context.GetDataDestination(),
		statusUpdates:         context.GetDataSourceStatusReporter(),
		absFilePaths:          abs,
		duplicateKeysHandling: duplicateKeysHandling,
		reloaderFactory:       reloaderFactory,
		loggers:               context.GetLogging().Loggers,
	}
	fs.loggers.SetPrefix("FileDataSource:")
	return fs, nil
}

func (fs *fileDataSource) IsInitialized() bool {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	return fs.isInitialized
}

func (fs *fileDataSource) Start(closeWhenReady chan<- struct{}) {
	fs.readyCh = closeWhenReady
	fs.reload()

	// If there is no reloader, then we signal readiness immediately regardless of whether the
	// data load succeeded or failed.
	if fs.reloaderFactory == nil {
		fs.signalStartComplete(fs.IsInitialized())
		return
	}

	// If there is a reloader, and if we haven't yet successfully loaded data, then the
	// readiness signal will happen the first time we do get valid data (in reload).
	fs.closeReloaderCh = make(chan struct{})
	err := fs.reloaderFactory(fs.absFilePaths, fs.loggers, fs.reload, fs.closeReloaderCh)
	if err != nil {
		fs.loggers.Errorf("Unable to start reloader: %s", err)
	}
}

// reload rereads all of the configured source files. If any file cannot be loaded or parsed, the
// flag data is not modified.
func (fs *fileDataSource) reload() {
	filesData := make([]fileData, 0)
	for _, path := range fs.absFilePaths {
		data, err := readFile(path)
		if err != nil {
			fs.loggers.Errorf("Unable to load flags: %s [%s]", err, path)
			fs.reportInvalidData(err)
			return
		}
		filesData = append(filesData, data)
	}
	storeData, err := mergeFileData(fs.duplicateKeysHandling, filesData...)
	if err != nil {
		fs.loggers.Error(err)
		fs.reportInvalidData(err)
		return
	}
	if fs.destination.Init(storeData) {
		fs.signalStartComplete(true)
		fs.statusUpdates.UpdateStatus(interfaces.DataSourceStateValid, interfaces.DataSourceErrorInfo{})
	}
}

func (fs *fileDataSource) reportInvalidData(err error) {
	fs.statusUpdates.UpdateStatus(interfaces.DataSourceStateInterrupted,
		interfaces.DataSourceErrorInfo{
			Kind:    interfaces.DataSourceErrorKindInvalidData,
			Message: err.Error(),
			Time:    time.Now(),
		})
}

func (fs *fileDataSource) signalStartComplete(succeeded bool) {
	fs.readyOnce.Do(func() {
		fs.lock.Lock()
		fs.isInitialized = succeeded
		fs.lock.Unlock()
		if fs.readyCh != nil {
			close(fs.readyCh)
		}
	})
}

func absFilePaths(paths []string) ([]string, error) {
	absPaths := make([]string, 0)
	for _, p := range paths {
		absPath, err := filepath.Abs(p)
		if err != nil {
			// COVERAGE: there's no reliable cross-platform way to simulate an invalid path in unit tests
			return nil, fmt.Errorf("unable to determine absolute path for '%s'", p)
		}
		absPaths = append(absPaths, absPath)
	}
	return absPaths, nil
}

type fileData struct {
	Flags      *map[string]ldmodel.FeatureFlag
	FlagValues *map[string]ldvalue.Value
	Segments   *map[string]ldmodel.Segment
}

func insertData(
	all map[ldstoretypes.DataKind]map[string]ldstoretypes.ItemDescriptor,
	kind ldstoretypes.DataKind,
	key string,
	data ldstoretypes.ItemDescriptor,
	duplicateKeysHandling DuplicateKeysHandling,
) error {
	if _, exists := all[kind][key]; exists {
		if duplicateKeysHandling == DuplicateKeysIgnoreAllButFirst {
			return nil
		}
		return fmt.Errorf("%s '%s' is specified by multiple files", kind, key)
	}
	all[kind][key] = data
	return nil
}

func readFile(path string) (fileData, error) {
	var data fileData
	rawData, err := os.ReadFile(path) // nolint:gosec // G304: ok to read file into variable
	if err != nil {
		return data, fmt.Errorf("unable to read file: %w", err)
	}
	if detectJSON(rawData) {
		err = json.Unmarshal(rawData, &data)
	} else {
		err = yaml.Unmarshal(rawData, &data)
	}
	if err != nil {
		err = fmt.Errorf("error parsing file: %w", err)
	}
	return data, err
}

func detectJSON(rawData []byte) bool {
	// A valid JSON file for our purposes must be an object, i.e. it must start with '{'
	return strings.HasPrefix(strings.TrimLeftFunc(string(rawData), unicode.IsSpace), "{")
}

func mergeFileData(duplicateKeysHandling DuplicateKeysHandling, allFileData ...fileData) ([]ldstoretypes.Collection, error) {
	all := map[ldstoretypes.DataKind]map[string]ldstoretypes.ItemDescriptor{
		datakinds.Features: {},
		datakinds.Segments: {},
	}
	for _, d := range allFileData {
		if d.Flags != nil {
			for key, f := range *d.Flags {
				ff := f
				data := ldstoretypes.ItemDescriptor{Version: f.Version, Item: &ff}
				if err := insertData(all, datakinds.Features, key, data, duplicateKeysHandling); err != nil {
					return nil, err
				}
			}
		}
		if d.FlagValues != nil {
			for key, value := range *d.FlagValues {
				flag := makeFlagWithValue(key, value)
				data := ldstoretypes.ItemDescriptor{Version: flag.Version, Item: flag}
				if err := insertData(all, datakinds.Features, key, data, duplicateKeysHandling); err != nil {
					return nil, err
				}
			}
		}
		if d.Segments != nil {
			for key, s := range *d.Segments {
				ss := s
				data := ldstoretypes.ItemDescriptor{Version: s.Version, Item: &ss}
				if err := insertData(all, datakinds.Segments, key, data, duplicateKeysHandling); err != nil {
					return nil, err
				}
			}
		}
	}
	ret := make([]ldstoretypes.Collection, 0, len(all))
	for _, kind := range datakinds.AllDataKinds() {
		itemsMap := all[kind]
		items := make([]ldstoretypes.KeyedItemDescriptor, 0, len(itemsMap))
		for k, v := range itemsMap {
			items = append(items, ldstoretypes.KeyedItemDescriptor{Key: k, Item: v})
		}
		ret = append(ret, ldstoretypes.Collection{Kind: kind, Items: items})
	}
	return ret, nil
}

func makeFlagWithValue(key string, v ldvalue.Value) *ldmodel.FeatureFlag {
	flag := ldbuilders.NewFlagBuilder(key).SingleVariation(v).Build()
	return &flag
}

func (fs *fileDataSource) ShutdownAsync(completion func()) {
	fs.closeOnce.Do(func() {
		if fs.closeReloaderCh != nil {
			close(fs.closeReloaderCh)
		}
		fs.statusUpdates.UpdateStatus(interfaces.DataSourceStateOff, interfaces.DataSourceErrorInfo{})
	})
	if completion != nil {
		completion()
	}
}

// Close is called automatically when the data system is closed.
func (fs *fileDataSource) Close() error {
	fs.ShutdownAsync(nil)
	return nil
}

func (fs *fileDataSource) Identity() string {
	return "file data source"
}
