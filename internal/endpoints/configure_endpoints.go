package endpoints

import (
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-server-sdk-datasync/interfaces"
)

// ServiceType denotes which service a base URI is for.
type ServiceType int

const (
	StreamingService ServiceType = iota //nolint:revive // internal constant
	PollingService                      //nolint:revive // internal constant
)

func (s ServiceType) String() string {
	if info, ok := knownServices[s]; ok {
		return info.name
	}
	return "???"
}

// DefaultBaseURI returns the default base URI for the given kind of service, or "" if it is unknown.
func DefaultBaseURI(serviceType ServiceType) string {
	return knownServices[serviceType].defaultURI
}

// RequestURI returns the full URI of the service's data endpoint under the given base URI.
func RequestURI(baseURI string, serviceType ServiceType) string {
	return AddPath(baseURI, knownServices[serviceType].requestPath)
}

// SelectBaseURI picks the base URI for a service, without a trailing slash. An override set on the
// data source builder takes precedence over ServiceEndpoints. If custom ServiceEndpoints are set but
// not for this service, the default is used and an error is logged.
func SelectBaseURI(
	serviceEndpoints interfaces.ServiceEndpoints,
	serviceType ServiceType,
	overrideValue string,
	loggers ldlog.Loggers,
) string {
	uri := overrideValue
	if info, ok := knownServices[serviceType]; ok && uri == "" {
		uri = info.configured(serviceEndpoints)
	}
	if uri == "" {
		if serviceEndpoints != (interfaces.ServiceEndpoints{}) {
			loggers.Errorf(
				"You have set custom ServiceEndpoints without specifying the %s base URI; connections may not work properly",
				serviceType,
			)
		}
		uri = DefaultBaseURI(serviceType)
	}
	return strings.TrimRight(uri, "/")
}

// AddPath concatenates a subpath to a URL in a way that will not cause a double slash.
func AddPath(baseURI string, path string) string {
	return strings.TrimSuffix(baseURI, "/") + "/" + strings.TrimPrefix(path, "/")
}
