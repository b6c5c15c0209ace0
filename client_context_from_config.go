package datasync

import (
	"github.com/launchdarkly/go-server-sdk-datasync/ldcomponents"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
)

// newClientContextFromConfig builds the shared configuration that every component receives. The
// data destination and status reporter are filled in later by the data system.
func newClientContextFromConfig(sdkKey string, config Config) (subsystems.BasicClientContext, error) {
	basicContext := subsystems.BasicClientContext{
		SDKKey:           sdkKey,
		ServiceEndpoints: config.ServiceEndpoints,
	}

	loggingFactory := config.Logging
	if loggingFactory == nil {
		loggingFactory = ldcomponents.Logging()
	}
	logging, err := loggingFactory.Build(basicContext)
	if err != nil {
		return subsystems.BasicClientContext{}, err
	}
	basicContext.Logging = logging

	httpFactory := config.HTTP
	if httpFactory == nil {
		httpFactory = ldcomponents.HTTPConfiguration()
	}
	http, err := httpFactory.Build(basicContext)
	if err != nil {
		return subsystems.BasicClientContext{}, err
	}
	basicContext.HTTP = http

	return basicContext, nil
}
