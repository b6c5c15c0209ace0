package interfaces

// ServiceEndpoints allow configuration of custom service URIs.
//
// If you want to set non-default values for any of these fields, set the ServiceEndpoints field
// in the Config struct. Empty values mean that the default LaunchDarkly endpoint is used.
type ServiceEndpoints struct {
	Streaming string
	Polling   string
}
