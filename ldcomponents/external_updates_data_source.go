package ldcomponents

import (
	"github.com/launchdarkly/go-server-sdk-datasync/interfaces"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/datasource"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
)

type nullDataSourceFactory struct{}

// ExternalUpdatesOnly returns a configuration object that disables a direct connection with LaunchDarkly
// for feature flag updates.
//
// Storing this in Config.DataSource causes the data system not to retrieve feature flag data from
// LaunchDarkly. Flag data then has to be supplied by something else; with a background-sync data
// system nothing will ever arrive, so this is mostly useful in tests and in combination with
// LazyLoad, where a persistent store populated by the Relay Proxy is the source of truth.
//
//	config := datasync.Config{
//	    DataSource: ldcomponents.ExternalUpdatesOnly(),
//	}
func ExternalUpdatesOnly() subsystems.ComponentConfigurer[subsystems.DataSource] {
	return nullDataSourceFactory{}
}

// Build is called internally by the data system.
func (f nullDataSourceFactory) Build(
	context subsystems.ClientContext,
) (subsystems.DataSource, error) {
	context.GetLogging().Loggers.Info("Data system will not connect to LaunchDarkly for feature flag data")
	if reporter := context.GetDataSourceStatusReporter(); reporter != nil {
		reporter.UpdateStatus(interfaces.DataSourceStateValid, interfaces.DataSourceErrorInfo{})
	}
	return datasource.NewNullDataSource(), nil
}
