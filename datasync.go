package datasync

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	ldeval "github.com/launchdarkly/go-server-sdk-evaluation/v3"
	"github.com/launchdarkly/go-server-sdk-evaluation/v3/ldmodel"

	"github.com/launchdarkly/go-server-sdk-datasync/interfaces"
	"github.com/launchdarkly/go-server-sdk-datasync/internal"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/datakinds"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/datasystem"
	"github.com/launchdarkly/go-server-sdk-datasync/ldcomponents"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoreimpl"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"
)

// Version is the package version.
const Version = internal.SDKVersion

// DataAvailability describes how current the data system's data is. See Defaults, Cached, and
// Refreshed.
type DataAvailability = datasystem.DataAvailability

const (
	// Defaults means there is no data, so flag evaluations will use the application-provided default values.
	Defaults = datasystem.Defaults
	// Cached means there is data, not necessarily the latest, which will be used to evaluate flags.
	Cached = datasystem.Cached
	// Refreshed means the latest known data has been obtained from LaunchDarkly at least once.
	Refreshed = datasystem.Refreshed
)

// Initialization errors
var (
	ErrInitializationTimeout = errors.New("timeout encountered waiting for data system initialization")
	ErrInitializationFailed  = errors.New("data system initialization failed")
)

// DataSystem keeps a local copy of feature flag and segment data and reports changes to it.
//
// It delegates to one of two data systems, depending on the configuration. By default a data source
// such as streaming or polling writes into an in-memory store in the background. If Config.DataSystem
// is set, items are instead read on demand from a persistent store and cached for a limited time.
type DataSystem struct {
	system      datasystem.DataSystem
	evaluator   ldeval.Evaluator
	flagTracker interfaces.FlagTracker
	loggers     ldlog.Loggers
	closeOnce   sync.Once
}

// MakeDataSystem creates a DataSystem with the given SDK key and configuration, and starts it.
//
// If waitFor is greater than zero, MakeDataSystem does not return until the data system has
// initialized, has given up, or waitFor has elapsed. In the latter two cases it returns the DataSystem
// together with ErrInitializationFailed or ErrInitializationTimeout; the DataSystem is still usable
// and keeps trying in the background. You can detect whether initialization has succeeded by calling
// Initialized.
//
// If waitFor is zero, MakeDataSystem returns immediately, and you can wait for initialization some
// other way:
//
//	system, _ := datasync.MakeDataSystem(sdkKey, config, 0)
//	status := system.DataSourceStatusProvider()
//	if status.WaitFor(interfaces.DataSourceStateValid, 10*time.Second) {
//		// it's initialized
//	}
//
// An error other than those two means that a component could not be configured, and no DataSystem
// is returned.
func MakeDataSystem(sdkKey string, config Config, waitFor time.Duration) (*DataSystem, error) {
	clientContext, err := newClientContextFromConfig(sdkKey, config)
	if err != nil {
		return nil, err
	}
	loggers := clientContext.GetLogging().Loggers
	loggers.Infof("Starting LaunchDarkly data system %s", Version)

	var system datasystem.DataSystem
	if config.DataSystem != nil {
		system, err = datasystem.NewOnDemand(clientContext, config.DataSystem)
	} else {
		dataSource := config.DataSource
		if dataSource == nil {
			dataSource = ldcomponents.StreamingDataSource()
		}
		system, err = datasystem.NewBackgroundSync(clientContext, dataSource, nil)
	}
	if err != nil {
		return nil, err
	}

	d := &DataSystem{
		system:    system,
		evaluator: ldeval.NewEvaluator(ldstoreimpl.NewDataStoreEvaluatorDataProvider(system.Store(), loggers)),
		loggers:   loggers,
	}
	d.flagTracker = internal.NewFlagTrackerImpl(system.FlagChangeEventBroadcaster(), d.evaluate)

	closeWhenReady := make(chan struct{})
	system.Start(closeWhenReady)
	if waitFor <= 0 {
		return d, nil
	}

	loggers.Infof("Waiting up to %d milliseconds for data system to start...", waitFor/time.Millisecond)
	select {
	case <-closeWhenReady:
		if system.DataSourceStatusProvider().GetStatus().State != interfaces.DataSourceStateValid {
			loggers.Warn("Data system initialization failed")
			return d, ErrInitializationFailed
		}
		loggers.Infof("Successfully initialized data system using %s", system.Identity())
		return d, nil
	case <-time.After(waitFor):
		loggers.Warn("Timeout encountered waiting for data system initialization")
		return d, ErrInitializationTimeout
	}
}

// Flag returns the current configuration of a feature flag, or nil if there is no such flag or
// it has been deleted.
func (d *DataSystem) Flag(key string) (*ldmodel.FeatureFlag, error) {
	item, err := d.system.Store().Get(datakinds.Features, key)
	if err != nil || item.Item == nil {
		return nil, err
	}
	flag, _ := item.Item.(*ldmodel.FeatureFlag)
	return flag, nil
}

// Segment returns the current configuration of a segment, or nil if there is no such segment or
// it has been deleted.
func (d *DataSystem) Segment(key string) (*ldmodel.Segment, error) {
	item, err := d.system.Store().Get(datakinds.Segments, key)
	if err != nil || item.Item == nil {
		return nil, err
	}
	segment, _ := item.Item.(*ldmodel.Segment)
	return segment, nil
}

// AllFlags returns every flag that has not been deleted, sorted by key.
func (d *DataSystem) AllFlags() ([]*ldmodel.FeatureFlag, error) {
	items, err := d.system.Store().GetAll(datakinds.Features)
	if err != nil {
		return nil, err
	}
	flags := make([]*ldmodel.FeatureFlag, 0, len(items))
	for _, item := range sortedLiveItems(items) {
		if flag, ok := item.Item.Item.(*ldmodel.FeatureFlag); ok {
			flags = append(flags, flag)
		}
	}
	return flags, nil
}

// AllSegments returns every segment that has not been deleted, sorted by key.
func (d *DataSystem) AllSegments() ([]*ldmodel.Segment, error) {
	items, err := d.system.Store().GetAll(datakinds.Segments)
	if err != nil {
		return nil, err
	}
	segments := make([]*ldmodel.Segment, 0, len(items))
	for _, item := range sortedLiveItems(items) {
		if segment, ok := item.Item.Item.(*ldmodel.Segment); ok {
			segments = append(segments, segment)
		}
	}
	return segments, nil
}

func sortedLiveItems(items []ldstoretypes.KeyedItemDescriptor) []ldstoretypes.KeyedItemDescriptor {
	live := make([]ldstoretypes.KeyedItemDescriptor, 0, len(items))
	for _, item := range items {
		if item.Item.Item != nil {
			live = append(live, item)
		}
	}
	slices.SortFunc(live, func(a, b ldstoretypes.KeyedItemDescriptor) bool {
		return a.Key < b.Key
	})
	return live
}

// Initialized returns true if the store has been populated with a full data set.
func (d *DataSystem) Initialized() bool {
	return d.system.Store().IsInitialized()
}

// DataAvailability reports how current the data is.
func (d *DataSystem) DataAvailability() DataAvailability {
	return d.system.DataAvailability()
}

// FlagTracker returns an interface for tracking changes in feature flag configurations.
//
// Value change listeners evaluate the flag for the given context each time its configuration
// changes. In lazy-load mode no changes are ever reported.
func (d *DataSystem) FlagTracker() interfaces.FlagTracker {
	return d.flagTracker
}

// DataSourceStatusProvider returns an interface for tracking the status of the data source, or of
// the persistent store in lazy-load mode.
func (d *DataSystem) DataSourceStatusProvider() interfaces.DataSourceStatusProvider {
	return d.system.DataSourceStatusProvider()
}

// AddChangeListener registers a handler that receives the set of flag keys affected by each update.
// The handler runs synchronously on the goroutine that applied the update, so it should return
// quickly.
func (d *DataSystem) AddChangeListener(handler func(interfaces.ChangeSet)) interfaces.Connection {
	return d.system.OnFlagChange(handler)
}

// AddFlagValueChangeListener registers a handler that is called when the value a flag resolves to
// changes, as opposed to any change in its configuration.
func (d *DataSystem) AddFlagValueChangeListener(
	flagKey string,
	handler func(interfaces.FlagValueChangeEvent),
) interfaces.Connection {
	return d.system.OnFlagValueChange(flagKey, handler)
}

// Close shuts down the data system. After calling this, the data system should no longer be used.
// The method blocks until the data source has released its connections.
func (d *DataSystem) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.loggers.Info("Closing data system")
		err = d.system.Stop()
	})
	return err
}

func (d *DataSystem) evaluate(
	flagKey string,
	context ldcontext.Context,
	defaultValue ldvalue.Value,
) (ldvalue.Value, bool) {
	flag, err := d.Flag(flagKey)
	if err != nil || flag == nil {
		return defaultValue, false
	}
	result := d.evaluator.Evaluate(flag, context, nil)
	if result.Detail.IsDefaultValue() {
		return defaultValue, true
	}
	return result.Detail.Value, true
}
