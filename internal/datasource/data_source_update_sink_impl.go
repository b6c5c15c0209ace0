package datasource

import (
	"sync"
	"time"

	"github.com/launchdarkly/go-server-sdk-datasync/interfaces"
	"github.com/launchdarkly/go-server-sdk-datasync/internal"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
	st "github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// DataSourceUpdateSinkImpl is the component that data sources deliver their results to. It implements
// both DataDestination and DataSourceStatusReporter. It is exported because the actual implementation
// type, rather than the interface, is required as a dependency of other components.
//
// Data goes to the store, which is normally a ChangeNotifier so that listeners hear about the update.
// Status changes go to the status broadcaster, and a long outage is logged at Error level.
type DataSourceUpdateSinkImpl struct {
	store                 subsystems.DataStore
	broadcaster           *internal.Broadcaster[interfaces.DataSourceStatus]
	outageTracker         *outageTracker
	loggers               ldlog.Loggers
	currentStatus         interfaces.DataSourceStatus
	lastStoreUpdateFailed bool
	lock                  sync.Mutex
}

// NewDataSourceUpdateSinkImpl creates the internal implementation of DataDestination and
// DataSourceStatusReporter. If logDataSourceOutageAsErrorAfter is zero, outages are never logged at
// Error level.
func NewDataSourceUpdateSinkImpl(
	store subsystems.DataStore,
	broadcaster *internal.Broadcaster[interfaces.DataSourceStatus],
	logDataSourceOutageAsErrorAfter time.Duration,
	loggers ldlog.Loggers,
) *DataSourceUpdateSinkImpl {
	return &DataSourceUpdateSinkImpl{
		store:         store,
		broadcaster:   broadcaster,
		outageTracker: newOutageTracker(logDataSourceOutageAsErrorAfter, loggers),
		loggers:       loggers,
		currentStatus: interfaces.DataSourceStatus{
			State:      interfaces.DataSourceStateInitializing,
			StateSince: time.Now(),
		},
	}
}

// Init is a standard method of DataDestination.
func (d *DataSourceUpdateSinkImpl) Init(allData []st.Collection) bool {
	err := d.store.Init(allData)
	return d.maybeUpdateError(err)
}

// Upsert is a standard method of DataDestination.
func (d *DataSourceUpdateSinkImpl) Upsert(
	kind st.DataKind,
	key string,
	item st.ItemDescriptor,
) bool {
	_, err := d.store.Upsert(kind, key, item)
	return d.maybeUpdateError(err)
}

func (d *DataSourceUpdateSinkImpl) maybeUpdateError(err error) bool {
	if err == nil {
		d.lock.Lock()
		d.lastStoreUpdateFailed = false
		d.lock.Unlock()
		return true
	}

	d.UpdateStatus(
		interfaces.DataSourceStateInterrupted,
		interfaces.DataSourceErrorInfo{
			Kind:    interfaces.DataSourceErrorKindStoreError,
			Message: err.Error(),
			Time:    time.Now(),
		},
	)

	d.lock.Lock()
	shouldLog := !d.lastStoreUpdateFailed
	d.lastStoreUpdateFailed = true
	d.lock.Unlock()
	if shouldLog {
		d.loggers.Warnf("Unexpected data store error when trying to store an update received from the data source: %s", err)
	}

	return false
}

// UpdateStatus is a standard method of DataSourceStatusReporter.
//
// Interrupted is reported as Initializing if the data source has never been Valid. An update with the
// same state and no error information is ignored.
func (d *DataSourceUpdateSinkImpl) UpdateStatus(
	newState interfaces.DataSourceState,
	newError interfaces.DataSourceErrorInfo,
) {
	if newState == "" {
		return
	}
	if statusToBroadcast, changed := d.maybeUpdateStatus(newState, newError); changed {
		d.outageTracker.trackDataSourceState(statusToBroadcast.State, newError)
		d.broadcaster.Broadcast(statusToBroadcast)
	}
}

func (d *DataSourceUpdateSinkImpl) maybeUpdateStatus(
	newState interfaces.DataSourceState,
	newError interfaces.DataSourceErrorInfo,
) (interfaces.DataSourceStatus, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()

	oldStatus := d.currentStatus

	if newState == interfaces.DataSourceStateInterrupted && oldStatus.State == interfaces.DataSourceStateInitializing {
		newState = interfaces.DataSourceStateInitializing
	}

	if newState == oldStatus.State && newError.Kind == "" {
		return interfaces.DataSourceStatus{}, false
	}

	stateSince := oldStatus.StateSince
	if newState != oldStatus.State {
		stateSince = time.Now()
	}
	lastError := oldStatus.LastError
	if newError.Kind != "" {
		lastError = newError
	}
	d.currentStatus = interfaces.DataSourceStatus{
		State:      newState,
		StateSince: stateSince,
		LastError:  lastError,
	}
	return d.currentStatus, true
}

// GetLastStatus is used internally by other components.
func (d *DataSourceUpdateSinkImpl) GetLastStatus() interfaces.DataSourceStatus {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.currentStatus
}

func (d *DataSourceUpdateSinkImpl) waitFor(desiredState interfaces.DataSourceState, timeout time.Duration) bool {
	d.lock.Lock()
	if d.currentStatus.State == desiredState {
		d.lock.Unlock()
		return true
	}
	if d.currentStatus.State == interfaces.DataSourceStateOff {
		d.lock.Unlock()
		return false
	}

	statusCh := d.broadcaster.AddListener()
	defer d.broadcaster.RemoveListener(statusCh)
	d.lock.Unlock()

	var deadline <-chan time.Time
	if timeout > 0 {
		deadline = time.After(timeout)
	}

	for {
		select {
		case newStatus, ok := <-statusCh:
			if !ok {
				return false
			}
			if newStatus.State == desiredState {
				return true
			}
			if newStatus.State == interfaces.DataSourceStateOff {
				return false
			}
		case <-deadline:
			return false
		}
	}
}
