package datasource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-server-sdk-datasync/interfaces"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"
)

const (
	// DefaultPollInterval is the default value for PollingConfig.PollInterval. It is also the minimum
	// that the configuration builder allows.
	DefaultPollInterval = 30 * time.Second

	pollingErrorContext     = "on polling request"
	pollingWillRetryMessage = "will retry at next scheduled poll interval"
)

// PollingConfig describes the configuration for a polling data source. It is exported so that
// it can be used in the PollingDataSourceBuilder.
type PollingConfig struct {
	BaseURI      string
	PollInterval time.Duration
	FilterKey    string
}

// Requester allows PollingProcessor to delegate fetching data to another component.
// This is useful for testing the PollingProcessor without needing to set up a test HTTP server.
type Requester interface {
	Request(ctx context.Context) (data []ldstoretypes.Collection, cached bool, err error)
	BaseURI() string
	FilterKey() string
}

// PollingProcessor is the internal implementation of the polling data source.
//
// This type is exported from internal so that the PollingDataSourceBuilder tests can verify its
// configuration. All other code outside of this package should interact with it only via the
// DataSource interface.
type PollingProcessor struct {
	destination        subsystems.DataDestination
	statusUpdates      subsystems.DataSourceStatusReporter
	requester          Requester
	pollInterval       time.Duration
	loggers            ldlog.Loggers
	setInitializedOnce sync.Once
	isInitialized      atomic.Bool
	ctx                context.Context
	cancel             context.CancelFunc
	done               chan struct{}
	startOnce          sync.Once
	closeOnce          sync.Once
}

// NewPollingProcessor creates the internal implementation of the polling data source.
func NewPollingProcessor(
	context subsystems.ClientContext,
	destination subsystems.DataDestination,
	statusUpdates subsystems.DataSourceStatusReporter,
	cfg PollingConfig,
) *PollingProcessor {
	httpRequester := newPollingRequester(context, context.GetHTTP().CreateHTTPClient(), cfg.BaseURI, cfg.FilterKey)
	return newPollingProcessor(context, destination, statusUpdates, httpRequester, cfg.PollInterval)
}

func newPollingProcessor(
	clientContext subsystems.ClientContext,
	destination subsystems.DataDestination,
	statusUpdates subsystems.DataSourceStatusReporter,
	requester Requester,
	pollInterval time.Duration,
) *PollingProcessor {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PollingProcessor{
		destination:   destination,
		statusUpdates: statusUpdates,
		requester:     requester,
		pollInterval:  pollInterval,
		loggers:       clientContext.GetLogging().Loggers,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

//nolint:revive // no doc comment for standard method
func (pp *PollingProcessor) Identity() string {
	return "polling data source"
}

//nolint:revive // no doc comment for standard method
func (pp *PollingProcessor) Start(closeWhenReady chan<- struct{}) {
	started := false
	pp.startOnce.Do(func() { started = true })
	if !started {
		// already started, or shut down before it was started
		close(closeWhenReady)
		return
	}

	pp.loggers.Infof("Starting LaunchDarkly polling with interval: %+v", pp.pollInterval)

	go func() {
		defer close(pp.done)

		var readyOnce sync.Once
		notifyReady := func() {
			readyOnce.Do(func() {
				close(closeWhenReady)
			})
		}
		// Stop anyone waiting for initialization if we exit, even if initialization failed
		defer notifyReady()

		ticker := time.NewTicker(pp.pollInterval)
		defer ticker.Stop()

		for {
			if !pp.pollAndReport(notifyReady) {
				return
			}
			select {
			case <-pp.ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// pollAndReport does one poll and updates the status. It returns false if polling should stop.
func (pp *PollingProcessor) pollAndReport(notifyReady func()) bool {
	err := pp.poll()
	if pp.ctx.Err() != nil {
		return false
	}
	if err == nil {
		pp.statusUpdates.UpdateStatus(interfaces.DataSourceStateValid, interfaces.DataSourceErrorInfo{})
		pp.setInitializedOnce.Do(func() {
			pp.isInitialized.Store(true)
			pp.loggers.Info("First polling request successful")
			notifyReady()
		})
		return true
	}

	var hse httpStatusError
	if errors.As(err, &hse) {
		errorInfo := interfaces.DataSourceErrorInfo{
			Kind:       interfaces.DataSourceErrorKindErrorResponse,
			StatusCode: hse.Code,
			Time:       time.Now(),
		}
		recoverable := checkIfErrorIsRecoverableAndLog(
			pp.loggers,
			httpErrorDescription(hse.Code),
			pollingErrorContext,
			hse.Code,
			pollingWillRetryMessage,
		)
		if recoverable {
			pp.statusUpdates.UpdateStatus(interfaces.DataSourceStateInterrupted, errorInfo)
			return true
		}
		pp.statusUpdates.UpdateStatus(interfaces.DataSourceStateOff, errorInfo)
		notifyReady()
		return false
	}

	errorInfo := interfaces.DataSourceErrorInfo{
		Kind:    interfaces.DataSourceErrorKindNetworkError,
		Message: err.Error(),
		Time:    time.Now(),
	}
	var mje malformedJSONError
	if errors.As(err, &mje) {
		errorInfo.Kind = interfaces.DataSourceErrorKindInvalidData
	}
	checkIfErrorIsRecoverableAndLog(pp.loggers, err.Error(), pollingErrorContext, 0, pollingWillRetryMessage)
	pp.statusUpdates.UpdateStatus(interfaces.DataSourceStateInterrupted, errorInfo)
	return true
}

func (pp *PollingProcessor) poll() error {
	allData, cached, err := pp.requester.Request(pp.ctx)
	if err != nil {
		return err
	}

	// A 304 means nothing changed since the last poll. Any other successful response replaces
	// everything, even if it happens to be identical.
	if !cached {
		pp.destination.Init(allData)
	}
	return nil
}

// ShutdownAsync stops polling. The completion function runs after any request in progress has
// been abandoned and the polling goroutine has exited.
func (pp *PollingProcessor) ShutdownAsync(completion func()) {
	pp.closeOnce.Do(func() {
		pp.cancel()
		pp.statusUpdates.UpdateStatus(interfaces.DataSourceStateOff, interfaces.DataSourceErrorInfo{})
	})
	// if Start was never called, nothing will ever close done
	pp.startOnce.Do(func() { close(pp.done) })
	go func() {
		<-pp.done
		if completion != nil {
			completion()
		}
	}()
}

//nolint:revive // no doc comment for standard method
func (pp *PollingProcessor) Close() error {
	done := make(chan struct{})
	pp.ShutdownAsync(func() { close(done) })
	<-done
	return nil
}

//nolint:revive // no doc comment for standard method
func (pp *PollingProcessor) IsInitialized() bool {
	return pp.isInitialized.Load()
}

// GetBaseURI returns the configured polling base URI, for testing.
func (pp *PollingProcessor) GetBaseURI() string {
	return pp.requester.BaseURI()
}

// GetPollInterval returns the configured polling interval, for testing.
func (pp *PollingProcessor) GetPollInterval() time.Duration {
	return pp.pollInterval
}

// GetFilterKey returns the configured key, for testing.
func (pp *PollingProcessor) GetFilterKey() string {
	return pp.requester.FilterKey()
}
