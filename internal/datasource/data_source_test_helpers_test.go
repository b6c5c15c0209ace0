package datasource

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/datastore"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/sharedtest"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/sharedtest/mocks"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"

	"github.com/stretchr/testify/require"
)

const testSDKKey = "test-sdk-key"

func basicClientContext() subsystems.ClientContext {
	return subsystems.BasicClientContext{
		SDKKey:  testSDKKey,
		Logging: subsystems.LoggingConfiguration{Loggers: sharedtest.NewTestLoggers()},
	}
}

func clientContextWithMockLog(headers http.Header) (subsystems.ClientContext, *ldlogtest.MockLog) {
	mockLog := ldlogtest.NewMockLog()
	mockLog.Loggers.SetMinLevel(ldlog.Debug)
	return subsystems.BasicClientContext{
		SDKKey:  testSDKKey,
		HTTP:    subsystems.HTTPConfiguration{DefaultHeaders: headers},
		Logging: subsystems.LoggingConfiguration{Loggers: mockLog.Loggers},
	}, mockLog
}

func withMockDataDestination(action func(*mocks.MockDataDestination)) {
	d := mocks.NewMockDataDestination(datastore.NewInMemoryDataStore(sharedtest.NewTestLoggers()))
	action(d)
}

func waitForReadyWithTimeout(t *testing.T, closeWhenReady <-chan struct{}, timeout time.Duration) {
	select {
	case <-closeWhenReady:
		return
	case <-time.After(timeout):
		require.Fail(t, "timed out waiting for data source to finish starting")
	}
}

type urlAppendingHTTPTransport string

func urlAppendingHTTPClientFactory(suffix string) func() *http.Client {
	return func() *http.Client {
		return &http.Client{Transport: urlAppendingHTTPTransport(suffix)}
	}
}

func (t urlAppendingHTTPTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	req := *r
	u := *r.URL
	u.Path += string(t)
	req.URL = &u
	return http.DefaultTransport.RoundTrip(&req)
}

type filterTest struct {
	key   string
	query string
}

func testWithFilters(t *testing.T, action func(*testing.T, filterTest)) {
	for _, filter := range []filterTest{
		{"", ""},
		{"microservice-1", "filter=microservice-1"},
		{"this is a bad filter", "filter=this+is+a+bad+filter"},
	} {
		t.Run(fmt.Sprintf("filter=%q", filter.key), func(t *testing.T) {
			action(t, filter)
		})
	}
}
