package endpoints

import "github.com/launchdarkly/go-server-sdk-datasync/interfaces"

const (
	// DefaultStreamingBaseURI is the default base URI of the streaming service.
	DefaultStreamingBaseURI = "https://stream.launchdarkly.com/"

	// DefaultPollingBaseURI is the default base URI of the polling service.
	DefaultPollingBaseURI = "https://sdk.launchdarkly.com/"

	// StreamingRequestPath is the URL path for the server-side streaming endpoint.
	StreamingRequestPath = "/all"

	// PollingRequestPath is the URL path for the server-side polling endpoint.
	PollingRequestPath = "/sdk/latest-all"
)

type serviceInfo struct {
	name        string
	defaultURI  string
	requestPath string
	configured  func(interfaces.ServiceEndpoints) string
}

var knownServices = map[ServiceType]serviceInfo{
	StreamingService: {
		name:        "Streaming",
		defaultURI:  DefaultStreamingBaseURI,
		requestPath: StreamingRequestPath,
		configured:  func(e interfaces.ServiceEndpoints) string { return e.Streaming },
	},
	PollingService: {
		name:        "Polling",
		defaultURI:  DefaultPollingBaseURI,
		requestPath: PollingRequestPath,
		configured:  func(e interfaces.ServiceEndpoints) string { return e.Polling },
	},
}
