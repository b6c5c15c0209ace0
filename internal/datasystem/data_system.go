package datasystem

import (
	"github.com/launchdarkly/go-server-sdk-datasync/interfaces"
	"github.com/launchdarkly/go-server-sdk-datasync/internal"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
)

// DataSystem is the set of components that the client-facing data system delegates to: something
// that keeps flag data available, a store to query it from, and the status and change reporting
// that goes with them.
type DataSystem interface {
	// Start begins obtaining data. closeWhenReady is closed once the data system has initialized,
	// or has given up trying.
	Start(closeWhenReady chan<- struct{})

	// Store returns the component that flags and segments are read from.
	Store() subsystems.ReadOnlyStore

	DataSourceStatusProvider() interfaces.DataSourceStatusProvider

	// FlagChangeEventBroadcaster receives a FlagChangeEvent for every flag key in every change set.
	FlagChangeEventBroadcaster() *internal.Broadcaster[interfaces.FlagChangeEvent]

	// OnFlagChange registers a handler for change sets. It is called synchronously on the goroutine
	// that applied the update.
	OnFlagChange(handler func(interfaces.ChangeSet)) interfaces.Connection

	// OnFlagValueChange registers a handler for changes to the resolved value of one flag.
	OnFlagValueChange(flagKey string, handler func(interfaces.FlagValueChangeEvent)) interfaces.Connection

	DataAvailability() DataAvailability

	Identity() string

	// Stop shuts everything down and closes the broadcasters. It blocks until the data source has
	// released its connections.
	Stop() error
}

type noopConnection struct{}

func (noopConnection) Disconnect() {}
