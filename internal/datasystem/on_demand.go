package datasystem

import (
	"github.com/launchdarkly/go-server-sdk-datasync/interfaces"
	"github.com/launchdarkly/go-server-sdk-datasync/internal"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/datasource"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
)

// OnDemand is the data system for an OnDemandStore such as LazyLoad. There is no background data
// source, so nothing ever pushes updates and change listeners never fire; their connections are
// accepted and do nothing.
type OnDemand struct {
	statusBroadcaster     *internal.Broadcaster[interfaces.DataSourceStatus]
	statusProvider        interfaces.DataSourceStatusProvider
	flagChangeBroadcaster *internal.Broadcaster[interfaces.FlagChangeEvent]
	store                 subsystems.OnDemandStore
}

// NewOnDemand creates an OnDemand data system. The store is built from storeFactory with a copy of
// clientContext whose DataSourceStatusReporter receives the store's status. The context has no
// DataDestination, since an OnDemandStore is its own destination.
func NewOnDemand(
	clientContext subsystems.BasicClientContext,
	storeFactory subsystems.ComponentConfigurer[subsystems.OnDemandStore],
) (*OnDemand, error) {
	system := &OnDemand{
		statusBroadcaster:     internal.NewBroadcaster[interfaces.DataSourceStatus](),
		flagChangeBroadcaster: internal.NewBroadcaster[interfaces.FlagChangeEvent](),
	}
	// The sink only relays status here; its store is never written to.
	sink := datasource.NewDataSourceUpdateSinkImpl(
		nil,
		system.statusBroadcaster,
		clientContext.GetLogging().LogDataSourceOutageAsErrorAfter,
		clientContext.GetLogging().Loggers,
	)
	system.statusProvider = datasource.NewDataSourceStatusProviderImpl(system.statusBroadcaster, sink)

	contextCopy := clientContext
	contextCopy.DataDestination = nil
	contextCopy.DataSourceStatusReporter = sink
	store, err := storeFactory.Build(contextCopy)
	if err != nil {
		system.statusBroadcaster.Close()
		system.flagChangeBroadcaster.Close()
		return nil, err
	}
	system.store = store
	return system, nil
}

//nolint:revive // DataSystem method
func (o *OnDemand) Start(closeWhenReady chan<- struct{}) {
	o.store.Start(closeWhenReady)
}

//nolint:revive // DataSystem method
func (o *OnDemand) Store() subsystems.ReadOnlyStore {
	return o.store
}

//nolint:revive // DataSystem method
func (o *OnDemand) DataSourceStatusProvider() interfaces.DataSourceStatusProvider {
	return o.statusProvider
}

//nolint:revive // DataSystem method
func (o *OnDemand) FlagChangeEventBroadcaster() *internal.Broadcaster[interfaces.FlagChangeEvent] {
	return o.flagChangeBroadcaster
}

//nolint:revive // DataSystem method
func (o *OnDemand) OnFlagChange(func(interfaces.ChangeSet)) interfaces.Connection {
	return noopConnection{}
}

//nolint:revive // DataSystem method
func (o *OnDemand) OnFlagValueChange(string, func(interfaces.FlagValueChangeEvent)) interfaces.Connection {
	return noopConnection{}
}

// DataAvailability returns Cached once the persistent store reports that it has been populated.
// Data read on demand is never known to be the latest.
func (o *OnDemand) DataAvailability() DataAvailability {
	if o.store.IsInitialized() {
		return Cached
	}
	return Defaults
}

//nolint:revive // DataSystem method
func (o *OnDemand) Identity() string {
	return o.store.Identity()
}

//nolint:revive // DataSystem method
func (o *OnDemand) Stop() error {
	err := o.store.Close()
	o.statusBroadcaster.Close()
	o.flagChangeBroadcaster.Close()
	return err
}
