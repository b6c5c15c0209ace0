package ldcomponents

import (
	"github.com/launchdarkly/go-server-sdk-datasync/internal/sharedtest"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
)

const testSdkKey = "test-sdk-key"

func basicClientContext() subsystems.ClientContext {
	return clientContextWithSDKKey(testSdkKey)
}

func clientContextWithSDKKey(sdkKey string) subsystems.BasicClientContext {
	return subsystems.BasicClientContext{
		SDKKey:  sdkKey,
		Logging: subsystems.LoggingConfiguration{Loggers: sharedtest.NewTestLoggers()},
	}
}

// Returns a basic context where all of the service endpoints point to the specified URI.
func makeTestContextWithBaseURIs(uri string) subsystems.BasicClientContext {
	ret := clientContextWithSDKKey(testSdkKey)
	ret.ServiceEndpoints = RelayProxyEndpoints(uri)
	return ret
}
