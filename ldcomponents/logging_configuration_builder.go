package ldcomponents

import (
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
)

// DefaultLogDataSourceOutageAsErrorAfter is the default value for
// LoggingConfigurationBuilder.LogDataSourceOutageAsErrorAfter: one minute.
const DefaultLogDataSourceOutageAsErrorAfter = time.Minute

// LoggingConfigurationBuilder contains methods for configuring logging behavior.
//
// If you want to set non-default values for any of these properties, create a builder with
// ldcomponents.Logging(), change its properties with the LoggingConfigurationBuilder methods, and
// store it in Config.Logging:
//
//	config := datasync.Config{
//	    Logging: ldcomponents.Logging().MinLevel(ldlog.Warn),
//	}
type LoggingConfigurationBuilder struct {
	inited bool
	config subsystems.LoggingConfiguration
}

// Logging returns a configuration builder for logging.
//
// The default configuration has logging enabled with default settings. If you want to set non-default
// values for any of these properties, create a builder with ldcomponents.Logging(), change its properties
// with the LoggingConfigurationBuilder methods, and store it in Config.Logging.
func Logging() *LoggingConfigurationBuilder {
	return &LoggingConfigurationBuilder{}
}

func (b *LoggingConfigurationBuilder) checkValid() bool {
	if b == nil {
		return false
	}
	if !b.inited {
		b.config = subsystems.LoggingConfiguration{
			LogDataSourceOutageAsErrorAfter: DefaultLogDataSourceOutageAsErrorAfter,
			Loggers:                         ldlog.NewDefaultLoggers(),
		}
		b.inited = true
	}
	return true
}

// LogDataSourceOutageAsErrorAfter sets the time threshold, if any, after which a data source outage
// is logged at Error level instead of Warn level.
//
// A data source outage means that an error condition, such as a network interruption or an error
// response from the service, is preventing the data system from receiving feature flag updates.
// Many outages are brief and recover without intervention, so these are logged as warnings. If
// an outage lasts longer than the specified duration, an Error message is logged as well, listing
// every kind of error that occurred during the outage.
//
// The default is DefaultLogDataSourceOutageAsErrorAfter. Setting it to zero disables the feature.
func (b *LoggingConfigurationBuilder) LogDataSourceOutageAsErrorAfter(
	logDataSourceOutageAsErrorAfter time.Duration,
) *LoggingConfigurationBuilder {
	if b.checkValid() {
		b.config.LogDataSourceOutageAsErrorAfter = logDataSourceOutageAsErrorAfter
	}
	return b
}

// Loggers specifies an instance of ldlog.Loggers to use for logging. The ldlog package contains
// methods for customizing the destination and level filtering of log output.
func (b *LoggingConfigurationBuilder) Loggers(loggers ldlog.Loggers) *LoggingConfigurationBuilder {
	if b.checkValid() {
		b.config.Loggers = loggers
	}
	return b
}

// MinLevel specifies the minimum level for log output, where ldlog.Debug is the lowest and ldlog.Error
// is the highest. Log messages at a level lower than this will be suppressed. The default is
// ldlog.Info.
//
// This is equivalent to creating an ldlog.Loggers instance, calling SetMinLevel() on it, and then
// passing it to LoggingConfigurationBuilder.Loggers().
func (b *LoggingConfigurationBuilder) MinLevel(level ldlog.LogLevel) *LoggingConfigurationBuilder {
	if b.checkValid() {
		b.config.Loggers.SetMinLevel(level)
	}
	return b
}

// Build is called internally by the data system.
func (b *LoggingConfigurationBuilder) Build(
	clientContext subsystems.ClientContext,
) (subsystems.LoggingConfiguration, error) {
	if !b.checkValid() {
		defaults := LoggingConfigurationBuilder{}
		return defaults.Build(clientContext)
	}
	return b.config, nil
}

// NoLogging returns a configuration object that disables logging.
//
//	config := datasync.Config{
//	    Logging: ldcomponents.NoLogging(),
//	}
func NoLogging() subsystems.ComponentConfigurer[subsystems.LoggingConfiguration] {
	return noLoggingConfigurationFactory{}
}

type noLoggingConfigurationFactory struct{}

func (f noLoggingConfigurationFactory) Build(
	clientContext subsystems.ClientContext,
) (subsystems.LoggingConfiguration, error) {
	return subsystems.LoggingConfiguration{Loggers: ldlog.NewDisabledLoggers()}, nil
}
