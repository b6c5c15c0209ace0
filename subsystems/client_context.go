package subsystems

import (
	"net/http"

	"github.com/launchdarkly/go-server-sdk-datasync/interfaces"
)

// ClientContext provides context information from the data system when creating other components.
//
// This is passed as a parameter to the Build methods of component configurers. For test purposes you
// may use the simple struct type BasicClientContext.
type ClientContext interface {
	// GetSDKKey returns the configured SDK key.
	GetSDKKey() string

	// GetHTTP returns the configured HTTPConfiguration.
	GetHTTP() HTTPConfiguration

	// GetLogging returns the configured LoggingConfiguration.
	GetLogging() LoggingConfiguration

	// GetServiceEndpoints returns the configuration for service URIs.
	GetServiceEndpoints() interfaces.ServiceEndpoints

	// GetDataDestination returns the component that DataSource implementations use to deliver
	// data updates.
	//
	// This component is only available when the data system is creating a DataSource. Otherwise the
	// method returns nil.
	GetDataDestination() DataDestination

	// GetDataSourceStatusReporter returns the component that DataSource implementations use to
	// report status changes.
	//
	// This component is only available when the data system is creating a DataSource. Otherwise the
	// method returns nil.
	GetDataSourceStatusReporter() DataSourceStatusReporter
}

// BasicClientContext is the basic implementation of the ClientContext interface.
type BasicClientContext struct {
	SDKKey                   string
	HTTP                     HTTPConfiguration
	Logging                  LoggingConfiguration
	ServiceEndpoints         interfaces.ServiceEndpoints
	DataDestination          DataDestination
	DataSourceStatusReporter DataSourceStatusReporter
}

func (b BasicClientContext) GetSDKKey() string { return b.SDKKey } //nolint:revive

func (b BasicClientContext) GetHTTP() HTTPConfiguration { //nolint:revive
	ret := b.HTTP
	if ret.CreateHTTPClient == nil {
		ret.CreateHTTPClient = func() *http.Client {
			client := *http.DefaultClient
			return &client
		}
	}
	return ret
}

func (b BasicClientContext) GetLogging() LoggingConfiguration { return b.Logging } //nolint:revive

func (b BasicClientContext) GetServiceEndpoints() interfaces.ServiceEndpoints { //nolint:revive
	return b.ServiceEndpoints
}

func (b BasicClientContext) GetDataDestination() DataDestination { //nolint:revive
	return b.DataDestination
}

func (b BasicClientContext) GetDataSourceStatusReporter() DataSourceStatusReporter { //nolint:revive
	return b.DataSourceStatusReporter
}
