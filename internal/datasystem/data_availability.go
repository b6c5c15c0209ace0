package datasystem

// DataAvailability describes how current the data system's data is.
type DataAvailability string

const (
	// Defaults means there is no data, so flag evaluations will use the application-provided default values.
	Defaults = DataAvailability("defaults")
	// Cached means there is data, not necessarily the latest, which will be used to evaluate flags.
	Cached = DataAvailability("cached")
	// Refreshed means the latest known data has been obtained from LaunchDarkly at least once.
	Refreshed = DataAvailability("refreshed")
)
