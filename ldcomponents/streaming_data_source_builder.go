package ldcomponents

import (
	"errors"
	"time"

	"github.com/launchdarkly/go-server-sdk-datasync/internal/datasource"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/endpoints"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
)

// DefaultStreamingBaseURI is the default base URI of the streaming service.
const DefaultStreamingBaseURI = endpoints.DefaultStreamingBaseURI

// DefaultInitialReconnectDelay is the default value for StreamingDataSourceBuilder.InitialReconnectDelay.
const DefaultInitialReconnectDelay = datasource.DefaultStreamInitialReconnectDelay

// DefaultMaxReconnectDelay is the default value for StreamingDataSourceBuilder.MaxReconnectDelay.
const DefaultMaxReconnectDelay = datasource.DefaultStreamMaxReconnectDelay

// DefaultStreamReadTimeout is the default value for StreamingDataSourceBuilder.ReadTimeout.
const DefaultStreamReadTimeout = datasource.DefaultStreamReadTimeout

// DefaultStreamConnectTimeout is the default value for StreamingDataSourceBuilder.ConnectTimeout.
const DefaultStreamConnectTimeout = datasource.DefaultStreamConnectTimeout

// StreamingDataSourceBuilder provides methods for configuring the streaming data source.
//
// See StreamingDataSource for usage.
type StreamingDataSourceBuilder struct {
	baseURI               string
	initialReconnectDelay time.Duration
	maxReconnectDelay     time.Duration
	readTimeout           time.Duration
	connectTimeout        time.Duration
	filterKey             string
}

// StreamingDataSource returns a configurable factory for using streaming mode to get feature flag data.
//
// By default, the data system uses a streaming connection to receive feature flag data from LaunchDarkly.
// To use the default behavior, you do not need to call this method. However, if you want to customize the
// behavior of the connection, call this method to obtain a builder, set its properties with the
// StreamingDataSourceBuilder methods, and then store it in the DataSource field of your configuration:
//
//	config := datasync.Config{
//	    DataSource: ldcomponents.StreamingDataSource().InitialReconnectDelay(500 * time.Millisecond),
//	}
func StreamingDataSource() *StreamingDataSourceBuilder {
	return &StreamingDataSourceBuilder{
		initialReconnectDelay: DefaultInitialReconnectDelay,
		maxReconnectDelay:     DefaultMaxReconnectDelay,
		readTimeout:           DefaultStreamReadTimeout,
		connectTimeout:        DefaultStreamConnectTimeout,
	}
}

// BaseURI overrides the streaming base URI. It takes precedence over Config.ServiceEndpoints.
func (b *StreamingDataSourceBuilder) BaseURI(baseURI string) *StreamingDataSourceBuilder {
	b.baseURI = baseURI
	return b
}

// InitialReconnectDelay sets the initial reconnect delay for the streaming connection.
//
// The streaming service uses a backoff algorithm (with jitter) every time the connection needs to be
// reestablished. The delay for the first reconnection will start near this value, and then increase
// exponentially for any subsequent connection failures.
//
// The default value is DefaultInitialReconnectDelay.
func (b *StreamingDataSourceBuilder) InitialReconnectDelay(
	initialReconnectDelay time.Duration,
) *StreamingDataSourceBuilder {
	if initialReconnectDelay <= 0 {
		b.initialReconnectDelay = DefaultInitialReconnectDelay
	} else {
		b.initialReconnectDelay = initialReconnectDelay
	}
	return b
}

// MaxReconnectDelay sets the upper limit for the backoff delay. The default is DefaultMaxReconnectDelay.
func (b *StreamingDataSourceBuilder) MaxReconnectDelay(maxReconnectDelay time.Duration) *StreamingDataSourceBuilder {
	if maxReconnectDelay <= 0 {
		b.maxReconnectDelay = DefaultMaxReconnectDelay
	} else {
		b.maxReconnectDelay = maxReconnectDelay
	}
	return b
}

// ReadTimeout sets how long an open stream may go without receiving any data before the connection is
// dropped and retried. The default is DefaultStreamReadTimeout.
func (b *StreamingDataSourceBuilder) ReadTimeout(readTimeout time.Duration) *StreamingDataSourceBuilder {
	if readTimeout <= 0 {
		b.readTimeout = DefaultStreamReadTimeout
	} else {
		b.readTimeout = readTimeout
	}
	return b
}

// ConnectTimeout sets how long to wait for the stream's response headers. The default is
// DefaultStreamConnectTimeout.
func (b *StreamingDataSourceBuilder) ConnectTimeout(connectTimeout time.Duration) *StreamingDataSourceBuilder {
	if connectTimeout <= 0 {
		b.connectTimeout = DefaultStreamConnectTimeout
	} else {
		b.connectTimeout = connectTimeout
	}
	return b
}

// PayloadFilter sets the filter key for the streaming connection.
//
// By default, the data system receives all flags and segments of the environment. A payload filter
// limits this to the subset defined by the filter in the LaunchDarkly application. An empty string
// means no filter.
func (b *StreamingDataSourceBuilder) PayloadFilter(filterKey string) *StreamingDataSourceBuilder {
	b.filterKey = filterKey
	return b
}

// Build is called internally by the data system.
func (b *StreamingDataSourceBuilder) Build(context subsystems.ClientContext) (subsystems.DataSource, error) {
	destination := context.GetDataDestination()
	statusUpdates := context.GetDataSourceStatusReporter()
	if destination == nil || statusUpdates == nil {
		return nil, errors.New("streaming data source requires a data destination and status reporter")
	}
	configuredBaseURI := endpoints.SelectBaseURI(
		context.GetServiceEndpoints(),
		endpoints.StreamingService,
		b.baseURI,
		context.GetLogging().Loggers,
	)
	cfg := datasource.StreamConfig{
		URI:                   configuredBaseURI,
		FilterKey:             b.filterKey,
		InitialReconnectDelay: b.initialReconnectDelay,
		MaxReconnectDelay:     b.maxReconnectDelay,
		ReadTimeout:           b.readTimeout,
		ConnectTimeout:        b.connectTimeout,
	}
	return datasource.NewStreamProcessor(context, destination, statusUpdates, cfg), nil
}
