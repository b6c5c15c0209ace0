package subsystems

import (
	"github.com/launchdarkly/go-server-sdk-datasync/interfaces"
)

// DataSourceStatusReporter allows a data source to report its status.
type DataSourceStatusReporter interface {
	// UpdateStatus informs the data system of a change in the data source's status.
	//
	// Data source implementations should use this method if they have any concept of being in a valid
	// state, a temporarily disconnected state, or a permanently stopped state.
	//
	// If newState is different from the previous state, and/or newError is non-empty, the new status
	// (with a timestamp for the change) will be returned from DataSourceStatusProvider.GetStatus(),
	// and status change events will be sent to any registered listeners.
	//
	// A special case is that if newState is DataSourceStateInterrupted, but the previous state was
	// DataSourceStateInitializing, the state will remain at Initializing because Interrupted is
	// only meaningful after a successful startup.
	UpdateStatus(newState interfaces.DataSourceState, newError interfaces.DataSourceErrorInfo)
}
