package datasync

import (
	"github.com/launchdarkly/go-server-sdk-datasync/interfaces"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
)

// Config exposes configuration options for the data system.
//
// All of these settings are optional, so an empty Config struct is always valid. See the description of each
// field for the default behavior if it is not set.
//
// Most Config fields are actually factories for subcomponents. The implementation types, which have methods
// for configuring that subcomponent, are normally provided by corresponding functions in the ldcomponents
// package. For instance, to poll for data every five minutes instead of streaming:
//
//	var config datasync.Config
//	config.DataSource = ldcomponents.PollingDataSource().PollInterval(5 * time.Minute)
type Config struct {
	// Sets the implementation of DataSource for receiving feature flag updates.
	//
	// If nil, the default is ldcomponents.StreamingDataSource(); see that method for an explanation of how to
	// further configure streaming behavior. Other options include ldcomponents.PollingDataSource(),
	// ldcomponents.ExternalUpdatesOnly(), ldfiledata.DataSource(), or a custom implementation for testing.
	//
	// If DataSystem is set, then DataSource is ignored.
	//
	//	// example: using streaming mode and setting streaming options
	//	config.DataSource = ldcomponents.StreamingDataSource().InitialReconnectDelay(time.Second)
	//
	//	// example: specifying that data will be updated by an external process (such as the Relay Proxy)
	//	config.DataSource = ldcomponents.ExternalUpdatesOnly()
	DataSource subsystems.ComponentConfigurer[subsystems.DataSource]

	// Replaces the background data source with a store that loads items on demand.
	//
	// The only built-in option is ldcomponents.LazyLoad(), which reads flags and segments from a persistent
	// store that some other process (such as the Relay Proxy) keeps up to date, caching them for a limited
	// time. In this mode nothing is pushed to the data system, so change listeners are never notified.
	//
	//	// example: read from Redis with default properties, refreshing items after one minute
	//	config.DataSystem = ldcomponents.LazyLoad().Store(ldredis.DataStore()).CacheRefresh(time.Minute)
	DataSystem subsystems.ComponentConfigurer[subsystems.OnDemandStore]

	// Provides configuration of network connection behavior.
	//
	// If nil, the default is ldcomponents.HTTPConfiguration(); see that method for an explanation of how to
	// further configure these options.
	//
	//	// example: set connection timeout to 8 seconds and use a proxy server
	//	config.HTTP = ldcomponents.HTTPConfiguration().ConnectTimeout(8 * time.Second).ProxyURL(myProxyURL)
	HTTP subsystems.ComponentConfigurer[subsystems.HTTPConfiguration]

	// Provides configuration of logging behavior.
	//
	// If nil, the default is ldcomponents.Logging(); see that method for an explanation of how to
	// further configure logging behavior. The other option is ldcomponents.NoLogging().
	//
	//	// example: enable logging only for Warn level and above
	//	config.Logging = ldcomponents.Logging().MinLevel(ldlog.Warn)
	Logging subsystems.ComponentConfigurer[subsystems.LoggingConfiguration]

	// Provides configuration of custom service base URIs.
	//
	// Set this field only if you want to specify non-default values for any of the URIs. You may set
	// individual values such as Streaming, or use the helper method ldcomponents.RelayProxyEndpoints().
	// A base URI set directly on a data source builder takes precedence over these.
	//
	//	config := datasync.Config{
	//		ServiceEndpoints: ldcomponents.RelayProxyEndpoints("http://my-relay-host:8080"),
	//	}
	ServiceEndpoints interfaces.ServiceEndpoints
}
