package testhelpers

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-server-sdk-datasync/ldcomponents"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
)

// SimpleClientContext is a reference implementation of subsystems.ClientContext for test code.
//
// The data system uses the ClientContext interface to pass its configuration to components.
// SimpleClientContext may be useful for testing a custom data source or persistent store core
// outside of a data system.
type SimpleClientContext struct {
	subsystems.BasicClientContext
}

// NewSimpleClientContext creates a SimpleClientContext instance, with a standard HTTP configuration
// and a disabled logging configuration.
func NewSimpleClientContext(sdkKey string) SimpleClientContext {
	ret := SimpleClientContext{subsystems.BasicClientContext{
		SDKKey:  sdkKey,
		Logging: subsystems.LoggingConfiguration{Loggers: ldlog.NewDisabledLoggers()},
	}}
	ret.HTTP, _ = ldcomponents.HTTPConfiguration().Build(ret.BasicClientContext)
	return ret
}

// WithHTTP returns a new SimpleClientContext based on the original one, but adding the specified
// HTTP configuration. If the configuration cannot be built, the original one is kept.
func (s SimpleClientContext) WithHTTP(
	httpConfig subsystems.ComponentConfigurer[subsystems.HTTPConfiguration],
) SimpleClientContext {
	ret := s
	if c, err := httpConfig.Build(s.BasicClientContext); err == nil {
		ret.HTTP = c
	}
	return ret
}

// WithLogging returns a new SimpleClientContext based on the original one, but adding the specified
// logging configuration.
func (s SimpleClientContext) WithLogging(
	loggingConfig subsystems.ComponentConfigurer[subsystems.LoggingConfiguration],
) SimpleClientContext {
	ret := s
	if c, err := loggingConfig.Build(s.BasicClientContext); err == nil {
		ret.Logging = c
	}
	return ret
}

// WithDataDestination returns a new SimpleClientContext based on the original one, but with the
// components that a data source delivers its updates and status changes to.
func (s SimpleClientContext) WithDataDestination(
	destination subsystems.DataDestination,
	statusReporter subsystems.DataSourceStatusReporter,
) SimpleClientContext {
	ret := s
	ret.DataDestination = destination
	ret.DataSourceStatusReporter = statusReporter
	return ret
}
