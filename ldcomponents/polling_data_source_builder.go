package ldcomponents

import (
	"errors"
	"time"

	"github.com/launchdarkly/go-server-sdk-datasync/internal/datasource"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/endpoints"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
)

// DefaultPollingBaseURI is the default base URI of the polling service.
const DefaultPollingBaseURI = endpoints.DefaultPollingBaseURI

// DefaultPollInterval is the default value for PollingDataSourceBuilder.PollInterval. This is also the minimum value.
const DefaultPollInterval = datasource.DefaultPollInterval

// PollingDataSourceBuilder provides methods for configuring the polling data source.
//
// See PollingDataSource for usage.
type PollingDataSourceBuilder struct {
	baseURI      string
	pollInterval time.Duration
	filterKey    string
}

// PollingDataSource returns a configurable factory for using polling mode to get feature flag data.
//
// Polling is not the default behavior; by default, the data system uses a streaming connection to receive
// feature flag data from LaunchDarkly. In polling mode, it instead makes a new HTTP request to LaunchDarkly
// at regular intervals. HTTP caching allows it to avoid redundantly downloading data if there have been no
// changes, but polling is still less efficient than streaming.
//
// To use polling mode, create a builder with PollingDataSource(), set its properties with the methods of
// PollingDataSourceBuilder, and then store it in the DataSource field of your configuration:
//
//	config := datasync.Config{
//	    DataSource: ldcomponents.PollingDataSource().PollInterval(45 * time.Second),
//	}
func PollingDataSource() *PollingDataSourceBuilder {
	return &PollingDataSourceBuilder{
		pollInterval: DefaultPollInterval,
	}
}

// BaseURI overrides the polling base URI. It takes precedence over Config.ServiceEndpoints.
func (b *PollingDataSourceBuilder) BaseURI(baseURI string) *PollingDataSourceBuilder {
	b.baseURI = baseURI
	return b
}

// PollInterval sets the interval at which the data system will poll for feature flag updates.
//
// The default and minimum value is DefaultPollInterval. Values less than this will be set to the default.
func (b *PollingDataSourceBuilder) PollInterval(pollInterval time.Duration) *PollingDataSourceBuilder {
	if pollInterval < DefaultPollInterval {
		b.pollInterval = DefaultPollInterval
	} else {
		b.pollInterval = pollInterval
	}
	return b
}

// Used in tests to skip parameter validation.
//
//nolint:unused // it is used in tests
func (b *PollingDataSourceBuilder) forcePollInterval(
	pollInterval time.Duration,
) *PollingDataSourceBuilder {
	b.pollInterval = pollInterval
	return b
}

// PayloadFilter sets the filter key for the polling request. An empty string means no filter.
func (b *PollingDataSourceBuilder) PayloadFilter(filterKey string) *PollingDataSourceBuilder {
	b.filterKey = filterKey
	return b
}

// Build is called internally by the data system.
func (b *PollingDataSourceBuilder) Build(context subsystems.ClientContext) (subsystems.DataSource, error) {
	destination := context.GetDataDestination()
	statusUpdates := context.GetDataSourceStatusReporter()
	if destination == nil || statusUpdates == nil {
		return nil, errors.New("polling data source requires a data destination and status reporter")
	}
	context.GetLogging().Loggers.Warn(
		"You should only disable the streaming API if instructed to do so by LaunchDarkly support")
	configuredBaseURI := endpoints.SelectBaseURI(
		context.GetServiceEndpoints(),
		endpoints.PollingService,
		b.baseURI,
		context.GetLogging().Loggers,
	)
	cfg := datasource.PollingConfig{
		BaseURI:      configuredBaseURI,
		PollInterval: b.pollInterval,
		FilterKey:    b.filterKey,
	}
	return datasource.NewPollingProcessor(context, destination, statusUpdates, cfg), nil
}
