package ldcomponents

import "github.com/launchdarkly/go-server-sdk-datasync/interfaces"

// RelayProxyEndpoints specifies a single base URI for a Relay Proxy instance, telling the data system
// to use the Relay Proxy for both streaming and polling.
//
// When using the LaunchDarkly Relay Proxy (https://docs.launchdarkly.com/home/relay-proxy), only the
// single base URI of the Relay Proxy is needed; it provides all of the proxied service endpoints.
//
// Store this value in the ServiceEndpoints field of your configuration. For example:
//
//	relayURI := "http://my-relay-hostname:8080"
//	config := datasync.Config{
//	    ServiceEndpoints: ldcomponents.RelayProxyEndpoints(relayURI),
//	}
func RelayProxyEndpoints(relayProxyBaseURI string) interfaces.ServiceEndpoints {
	return interfaces.ServiceEndpoints{
		Streaming: relayProxyBaseURI,
		Polling:   relayProxyBaseURI,
	}
}
