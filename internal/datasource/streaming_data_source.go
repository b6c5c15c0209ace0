package datasource

import (
	"errors"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-server-sdk-datasync/interfaces"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/endpoints"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/reactor"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/sse"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"
)

// Implementation of the streaming data source, on top of the SSE client in internal/sse.
//
// Error handling works as follows:
// 1. If any event is malformed, we must assume the stream is broken and we may have missed updates. Set the
// data source state to INTERRUPTED, with an error kind of INVALID_DATA, and restart the stream.
// 2. If we try to put updates into the destination and it fails, the destination has already logged the
// error and set our state to INTERRUPTED. We must assume that updates have been lost, so we restart the
// stream to get a fresh "put".
// 3. If we receive an unrecoverable error like HTTP 401, the SSE client stops on its own; we set the state to
// OFF. Any other HTTP error or network error causes a retry with backoff, with a state of INTERRUPTED.
// 4. The closeWhenReady channel passed to Start is closed once initialization has either succeeded (we got
// an initial payload and stored it) or permanently failed (we got a 401, etc.). Otherwise we keep retrying
// in the background, and IsInitialized will become true if we eventually succeed.
//
// All SSE callbacks run on the data source's reactor goroutine, so they never overlap with each other.

const (
	putEvent    = "put"
	patchEvent  = "patch"
	deleteEvent = "delete"

	// DefaultStreamInitialReconnectDelay is the default value for StreamConfig.InitialReconnectDelay.
	DefaultStreamInitialReconnectDelay = 1 * time.Second
	// DefaultStreamMaxReconnectDelay is the default value for StreamConfig.MaxReconnectDelay.
	DefaultStreamMaxReconnectDelay = 30 * time.Second
	// DefaultStreamReadTimeout is the default value for StreamConfig.ReadTimeout. The service sends a
	// heartbeat comment every 3 minutes.
	DefaultStreamReadTimeout = 5 * time.Minute
	// DefaultStreamConnectTimeout is the default value for StreamConfig.ConnectTimeout.
	DefaultStreamConnectTimeout = 15 * time.Second

	streamingErrorContext     = "in stream connection"
	streamingWillRetryMessage = "will retry"
)

// StreamConfig describes the configuration for a streaming data source. It is exported so that
// it can be used in the StreamingDataSourceBuilder.
type StreamConfig struct {
	URI                   string
	FilterKey             string
	InitialReconnectDelay time.Duration
	MaxReconnectDelay     time.Duration
	ReadTimeout           time.Duration
	ConnectTimeout        time.Duration
}

// StreamProcessor is the internal implementation of the streaming data source.
//
// This type is exported from internal so that the StreamingDataSourceBuilder tests can verify its
// configuration. All other code outside of this package should interact with it only via the
// DataSource interface.
type StreamProcessor struct {
	cfg           StreamConfig
	destination   subsystems.DataDestination
	statusUpdates subsystems.DataSourceStatusReporter
	clientContext subsystems.ClientContext
	headers       http.Header
	loggers       ldlog.Loggers
	isInitialized atomic.Bool
	readyOnce     sync.Once
	closeOnce     sync.Once

	lock    sync.Mutex
	reactor *reactor.Reactor
	client  *sse.Client
	closed  bool
}

// NewStreamProcessor creates the internal implementation of the streaming data source.
func NewStreamProcessor(
	context subsystems.ClientContext,
	destination subsystems.DataDestination,
	statusUpdates subsystems.DataSourceStatusReporter,
	cfg StreamConfig,
) *StreamProcessor {
	if cfg.InitialReconnectDelay <= 0 {
		cfg.InitialReconnectDelay = DefaultStreamInitialReconnectDelay
	}
	if cfg.MaxReconnectDelay <= 0 {
		cfg.MaxReconnectDelay = DefaultStreamMaxReconnectDelay
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultStreamReadTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultStreamConnectTimeout
	}
	return &StreamProcessor{
		cfg:           cfg,
		destination:   destination,
		statusUpdates: statusUpdates,
		clientContext: context,
		headers:       context.GetHTTP().DefaultHeaders,
		loggers:       context.GetLogging().Loggers,
	}
}

//nolint:revive // no doc comment for standard method
func (sp *StreamProcessor) IsInitialized() bool {
	return sp.isInitialized.Load()
}

//nolint:revive // no doc comment for standard method
func (sp *StreamProcessor) Identity() string {
	return "streaming data source"
}

//nolint:revive // no doc comment for standard method
func (sp *StreamProcessor) Start(closeWhenReady chan<- struct{}) {
	sp.lock.Lock()
	defer sp.lock.Unlock()
	if sp.closed || sp.client != nil {
		return
	}

	streamURI := endpoints.RequestURI(sp.cfg.URI, endpoints.StreamingService)
	if sp.cfg.FilterKey != "" {
		streamURI += "?" + url.Values{"filter": {sp.cfg.FilterKey}}.Encode()
	}

	r := reactor.New()
	client, err := sse.NewClientBuilder(streamURI).
		Headers(sp.headers).
		HTTPClient(sp.clientContext.GetHTTP().CreateHTTPClient()).
		InitialReconnectDelay(sp.cfg.InitialReconnectDelay).
		MaxReconnectDelay(sp.cfg.MaxReconnectDelay).
		ReadTimeout(sp.cfg.ReadTimeout).
		ConnectTimeout(sp.cfg.ConnectTimeout).
		Logging(sp.loggers).
		Receiver(func(event sse.Event) { sp.handleEvent(event, closeWhenReady) }).
		Errors(func(err error) { sp.handleError(err, closeWhenReady) }).
		Retrying(sp.handleRetry).
		Build(r)
	if err != nil {
		r.Close()
		sp.loggers.Errorf(
			"Unable to create a stream request; this is not a network problem, most likely a bad base URI: %s",
			err,
		)
		sp.statusUpdates.UpdateStatus(interfaces.DataSourceStateOff, interfaces.DataSourceErrorInfo{
			Kind:    interfaces.DataSourceErrorKindUnknown,
			Message: err.Error(),
			Time:    time.Now(),
		})
		sp.readyOnce.Do(func() { close(closeWhenReady) })
		return
	}
	sp.reactor, sp.client = r, client

	sp.loggers.Info("Connecting to LaunchDarkly stream")
	client.AsyncConnect()
}

func (sp *StreamProcessor) handleEvent(event sse.Event, closeWhenReady chan<- struct{}) {
	if event.IsComment() {
		if sp.loggers.IsDebugEnabled() {
			sp.loggers.Debugf("Received stream comment: %s", event.Data)
		}
		return
	}

	processedEvent := true
	shouldRestart := false

	gotMalformedEvent := func(err error) {
		sp.loggers.Errorf(
			"Received streaming \"%s\" event with malformed JSON data (%s); will restart stream",
			event.Type,
			err,
		)
		sp.statusUpdates.UpdateStatus(interfaces.DataSourceStateInterrupted, interfaces.DataSourceErrorInfo{
			Kind:    interfaces.DataSourceErrorKindInvalidData,
			Message: err.Error(),
			Time:    time.Now(),
		})
		shouldRestart = true
		processedEvent = false
	}

	storeUpdateFailed := func(updateDesc string) {
		sp.loggers.Errorf("Failed to store %s in data store; will restart stream until successful", updateDesc)
		shouldRestart = true
		processedEvent = false
	}

	switch event.Type {
	case putEvent:
		put, err := parsePutData([]byte(event.Data))
		if err != nil {
			gotMalformedEvent(err)
			break
		}
		if sp.destination.Init(put.Data) {
			sp.setInitializedAndNotifyClient(closeWhenReady)
		} else {
			storeUpdateFailed("initial streaming data")
		}

	case patchEvent:
		patch, err := parsePatchData([]byte(event.Data))
		if err != nil {
			gotMalformedEvent(err)
			break
		}
		if patch.Kind == nil {
			break
		}
		if !sp.destination.Upsert(patch.Kind, patch.Key, patch.Data) {
			storeUpdateFailed("streaming update of " + patch.Key)
		}

	case deleteEvent:
		del, err := parseDeleteData([]byte(event.Data))
		if err != nil {
			gotMalformedEvent(err)
			break
		}
		if del.Kind == nil {
			break
		}
		tombstone := ldstoretypes.ItemDescriptor{Version: del.Version, Item: nil}
		if !sp.destination.Upsert(del.Kind, del.Key, tombstone) {
			storeUpdateFailed("streaming deletion of " + del.Key)
		}

	default:
		sp.loggers.Infof("Unexpected event found in stream: %s", event.Type)
	}

	if processedEvent {
		sp.statusUpdates.UpdateStatus(interfaces.DataSourceStateValid, interfaces.DataSourceErrorInfo{})
	}
	if shouldRestart {
		sp.client.AsyncRestart()
	}
}

// handleError receives the errors the SSE client reports. Apart from read timeouts, each of these
// means the client has stopped for good.
func (sp *StreamProcessor) handleError(err error, closeWhenReady chan<- struct{}) {
	var unrecoverable sse.UnrecoverableClientError
	var notRedirectable sse.NotRedirectableError
	var readTimeout sse.ReadTimeoutError
	switch {
	case errors.As(err, &readTimeout):
		sp.loggers.Warnf("Error %s (%s): %s", streamingErrorContext, streamingWillRetryMessage, err)

	case errors.As(err, &unrecoverable):
		sp.loggers.Errorf("Error %s (giving up permanently): %s",
			streamingErrorContext, httpErrorDescription(unrecoverable.StatusCode))
		sp.statusUpdates.UpdateStatus(interfaces.DataSourceStateOff, interfaces.DataSourceErrorInfo{
			Kind:       interfaces.DataSourceErrorKindErrorResponse,
			StatusCode: unrecoverable.StatusCode,
			Time:       time.Now(),
		})
		sp.readyOnce.Do(func() { close(closeWhenReady) })

	case errors.As(err, &notRedirectable):
		sp.loggers.Errorf("Error %s (giving up permanently): %s", streamingErrorContext, err)
		sp.statusUpdates.UpdateStatus(interfaces.DataSourceStateOff, interfaces.DataSourceErrorInfo{
			Kind:       interfaces.DataSourceErrorKindErrorResponse,
			StatusCode: notRedirectable.StatusCode,
			Message:    err.Error(),
			Time:       time.Now(),
		})
		sp.readyOnce.Do(func() { close(closeWhenReady) })

	default:
		sp.loggers.Warnf("Error %s (%s): %s", streamingErrorContext, streamingWillRetryMessage, err)
	}
}

func (sp *StreamProcessor) handleRetry(cause error, delay time.Duration) {
	var badStatus sse.BadStatusError
	switch {
	case errors.Is(cause, sse.ErrRestartRequested):
		// the status was already updated by whoever asked for the restart
		return
	case errors.As(cause, &badStatus):
		checkIfErrorIsRecoverableAndLog(
			sp.loggers,
			httpErrorDescription(badStatus.StatusCode),
			streamingErrorContext,
			badStatus.StatusCode,
			streamingWillRetryMessage,
		)
		sp.statusUpdates.UpdateStatus(interfaces.DataSourceStateInterrupted, interfaces.DataSourceErrorInfo{
			Kind:       interfaces.DataSourceErrorKindErrorResponse,
			StatusCode: badStatus.StatusCode,
			Time:       time.Now(),
		})
	default:
		var readTimeout sse.ReadTimeoutError
		if !errors.As(cause, &readTimeout) { // already logged by handleError
			checkIfErrorIsRecoverableAndLog(sp.loggers, cause.Error(), streamingErrorContext, 0, streamingWillRetryMessage)
		}
		sp.statusUpdates.UpdateStatus(interfaces.DataSourceStateInterrupted, interfaces.DataSourceErrorInfo{
			Kind:    interfaces.DataSourceErrorKindNetworkError,
			Message: cause.Error(),
			Time:    time.Now(),
		})
	}
	if sp.loggers.IsDebugEnabled() {
		sp.loggers.Debugf("Will reconnect to stream in %s", delay)
	}
}

func (sp *StreamProcessor) setInitializedAndNotifyClient(closeWhenReady chan<- struct{}) {
	if !sp.isInitialized.Swap(true) {
		sp.loggers.Info("LaunchDarkly streaming is active")
	}
	sp.readyOnce.Do(func() {
		close(closeWhenReady)
	})
}

// ShutdownAsync stops the stream. The completion function runs once the connection attempt in
// progress, if any, has been torn down.
func (sp *StreamProcessor) ShutdownAsync(completion func()) {
	sp.lock.Lock()
	sp.closed = true
	client, r := sp.client, sp.reactor
	sp.lock.Unlock()

	sp.closeOnce.Do(func() {
		sp.statusUpdates.UpdateStatus(interfaces.DataSourceStateOff, interfaces.DataSourceErrorInfo{})
	})

	if client == nil {
		if completion != nil {
			completion()
		}
		return
	}
	client.AsyncShutdown(func() {
		r.Close()
		if completion != nil {
			completion()
		}
	})
}

//nolint:revive // no doc comment for standard method
func (sp *StreamProcessor) Close() error {
	done := make(chan struct{})
	sp.ShutdownAsync(func() { close(done) })
	<-done
	return nil
}

// GetBaseURI returns the configured streaming base URI, for testing.
func (sp *StreamProcessor) GetBaseURI() string {
	return sp.cfg.URI
}

// GetInitialReconnectDelay returns the configured reconnect delay, for testing.
func (sp *StreamProcessor) GetInitialReconnectDelay() time.Duration {
	return sp.cfg.InitialReconnectDelay
}

// GetFilterKey returns the configured key, for testing.
func (sp *StreamProcessor) GetFilterKey() string {
	return sp.cfg.FilterKey
}
