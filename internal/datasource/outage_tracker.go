package datasource

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/launchdarkly/go-server-sdk-datasync/interfaces"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// outageTracker logs a single Error message if the data source stays unavailable for longer than
// the configured timeout, summarizing the errors seen during that time.
type outageTracker struct {
	outageLoggingTimeout time.Duration
	loggers              ldlog.Loggers
	inOutage             bool
	errorCounts          map[interfaces.DataSourceErrorInfo]int
	timeoutCloser        chan struct{}
	lock                 sync.Mutex
}

func newOutageTracker(outageLoggingTimeout time.Duration, loggers ldlog.Loggers) *outageTracker {
	return &outageTracker{
		outageLoggingTimeout: outageLoggingTimeout,
		loggers:              loggers,
	}
}

func (o *outageTracker) trackDataSourceState(newState interfaces.DataSourceState, newError interfaces.DataSourceErrorInfo) {
	if o.outageLoggingTimeout == 0 {
		return
	}

	o.lock.Lock()
	defer o.lock.Unlock()

	if newState == interfaces.DataSourceStateInterrupted || newError.Kind != "" ||
		(newState == interfaces.DataSourceStateInitializing && o.inOutage) {
		if o.inOutage {
			o.recordError(newError)
		} else {
			o.inOutage = true
			o.errorCounts = make(map[interfaces.DataSourceErrorInfo]int)
			o.recordError(newError)
			o.timeoutCloser = make(chan struct{})
			go o.awaitTimeout(o.timeoutCloser)
		}
	} else {
		if o.timeoutCloser != nil {
			close(o.timeoutCloser)
			o.timeoutCloser = nil
		}
		o.inOutage = false
	}
}

func (o *outageTracker) recordError(newError interfaces.DataSourceErrorInfo) {
	// only the basic properties are used as the key, so the map won't grow indefinitely
	basicErrorInfo := interfaces.DataSourceErrorInfo{Kind: newError.Kind, StatusCode: newError.StatusCode}
	o.errorCounts[basicErrorInfo]++
}

func (o *outageTracker) awaitTimeout(closer chan struct{}) {
	select {
	case <-closer:
		return
	case <-time.After(o.outageLoggingTimeout):
	}

	o.lock.Lock()
	if !o.inOutage {
		o.lock.Unlock()
		return
	}
	errorsDesc := o.describeErrors()
	o.timeoutCloser = nil
	o.lock.Unlock()

	o.loggers.Errorf(
		"LaunchDarkly data source outage - updates have been unavailable for at least %s with the following errors: %s",
		o.outageLoggingTimeout,
		errorsDesc,
	)
}

func (o *outageTracker) describeErrors() string {
	descs := make([]string, 0, len(o.errorCounts))
	for err, count := range o.errorCounts {
		times := "times"
		if count == 1 {
			times = "time"
		}
		descs = append(descs, fmt.Sprintf("%s (%d %s)", err, count, times))
	}
	sort.Strings(descs)
	return strings.Join(descs, ", ")
}
