package datasystem

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/launchdarkly/go-server-sdk-datasync/interfaces"
	"github.com/launchdarkly/go-server-sdk-datasync/internal"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/datasource"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/datastore"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
)

// BackgroundSync is the data system that keeps an in-memory store up to date from a data source
// running in the background: streaming, polling, a file data source, or nothing at all if the
// application gets its data some other way.
//
// Updates flow from the data source into a DataSourceUpdateSinkImpl, then into a ChangeNotifier that
// wraps the in-memory store and computes which flags were affected.
type BackgroundSync struct {
	statusBroadcaster     *internal.Broadcaster[interfaces.DataSourceStatus]
	statusProvider        interfaces.DataSourceStatusProvider
	flagChangeBroadcaster *internal.Broadcaster[interfaces.FlagChangeEvent]
	notifier              *datastore.ChangeNotifier
	changeSubscription    interfaces.Connection
	dataSource            subsystems.DataSource
}

// NewBackgroundSync creates a BackgroundSync. The data source is built from dataSourceFactory with a
// copy of clientContext whose DataDestination and DataSourceStatusReporter point at the new update
// sink. If dataSourceFactory is nil, no data source is used and the status is Valid immediately.
func NewBackgroundSync(
	clientContext subsystems.BasicClientContext,
	dataSourceFactory subsystems.ComponentConfigurer[subsystems.DataSource],
	resolver datastore.ValueResolver,
) (*BackgroundSync, error) {
	loggers := clientContext.GetLogging().Loggers
	if resolver == nil {
		resolver = datastore.StaticValueResolver
	}
	system := &BackgroundSync{
		statusBroadcaster:     internal.NewBroadcaster[interfaces.DataSourceStatus](),
		flagChangeBroadcaster: internal.NewBroadcaster[interfaces.FlagChangeEvent](),
		notifier:              datastore.NewChangeNotifier(datastore.NewInMemoryDataStore(loggers), resolver, loggers),
	}
	system.changeSubscription = system.notifier.OnFlagChange(system.broadcastFlagChanges)

	sink := datasource.NewDataSourceUpdateSinkImpl(
		system.notifier,
		system.statusBroadcaster,
		clientContext.GetLogging().LogDataSourceOutageAsErrorAfter,
		loggers,
	)
	system.statusProvider = datasource.NewDataSourceStatusProviderImpl(system.statusBroadcaster, sink)

	if dataSourceFactory == nil {
		loggers.Info("No data source configured; flag data must be provided by some other process")
		sink.UpdateStatus(interfaces.DataSourceStateValid, interfaces.DataSourceErrorInfo{})
		system.dataSource = datasource.NewNullDataSource()
		return system, nil
	}

	contextCopy := clientContext
	contextCopy.DataDestination = sink
	contextCopy.DataSourceStatusReporter = sink
	dataSource, err := dataSourceFactory.Build(contextCopy)
	if err != nil {
		system.closeBroadcasters()
		return nil, err
	}
	system.dataSource = dataSource
	return system, nil
}

func (b *BackgroundSync) broadcastFlagChanges(changes interfaces.ChangeSet) {
	if !b.flagChangeBroadcaster.HasListeners() {
		return
	}
	keys := maps.Keys(changes)
	slices.Sort(keys)
	for _, key := range keys {
		b.flagChangeBroadcaster.Broadcast(interfaces.FlagChangeEvent{Key: key})
	}
}

//nolint:revive // DataSystem method
func (b *BackgroundSync) Start(closeWhenReady chan<- struct{}) {
	b.dataSource.Start(closeWhenReady)
}

//nolint:revive // DataSystem method
func (b *BackgroundSync) Store() subsystems.ReadOnlyStore {
	return b.notifier
}

//nolint:revive // DataSystem method
func (b *BackgroundSync) DataSourceStatusProvider() interfaces.DataSourceStatusProvider {
	return b.statusProvider
}

//nolint:revive // DataSystem method
func (b *BackgroundSync) FlagChangeEventBroadcaster() *internal.Broadcaster[interfaces.FlagChangeEvent] {
	return b.flagChangeBroadcaster
}

//nolint:revive // DataSystem method
func (b *BackgroundSync) OnFlagChange(handler func(interfaces.ChangeSet)) interfaces.Connection {
	return b.notifier.OnFlagChange(handler)
}

//nolint:revive // DataSystem method
func (b *BackgroundSync) OnFlagValueChange(
	flagKey string,
	handler func(interfaces.FlagValueChangeEvent),
) interfaces.Connection {
	return b.notifier.OnFlagValueChange(flagKey, handler)
}

//nolint:revive // DataSystem method
func (b *BackgroundSync) DataAvailability() DataAvailability {
	if b.dataSource == datasource.NewNullDataSource() {
		return Defaults
	}
	if b.dataSource.IsInitialized() {
		return Refreshed
	}
	if b.notifier.IsInitialized() {
		return Cached
	}
	return Defaults
}

//nolint:revive // DataSystem method
func (b *BackgroundSync) Identity() string {
	return b.dataSource.Identity()
}

//nolint:revive // DataSystem method
func (b *BackgroundSync) Stop() error {
	_ = b.dataSource.Close()
	b.changeSubscription.Disconnect()
	err := b.notifier.Close()
	b.closeBroadcasters()
	return err
}

func (b *BackgroundSync) closeBroadcasters() {
	b.statusBroadcaster.Close()
	b.flagChangeBroadcaster.Close()
}
