package interfaces

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// FlagTracker is an interface for tracking changes in feature flag configurations.
//
// Listeners added here receive events through channels. For synchronous callbacks that run on the
// goroutine applying the update, use the data system's AddChangeListener and AddFlagValueChangeListener
// methods instead.
type FlagTracker interface {
	// AddFlagChangeListener subscribes for notifications of feature flag changes in general.
	//
	// The returned channel will receive a new FlagChangeEvent value whenever there is a change to any
	// feature flag's configuration, or to anything it depends on (such as a segment that the flag
	// references).
	//
	// Notifications will be dispatched either if the new data source receives an update that includes
	// that flag key, or if a flag it depends on was modified.
	//
	// It is the caller's responsibility to consume values from the channel. Allowing values to accumulate
	// in the channel can cause a goroutine to be blocked.
	AddFlagChangeListener() <-chan FlagChangeEvent

	// RemoveFlagChangeListener unsubscribes from notifications of feature flag changes. The specified
	// channel must be one that was previously returned by AddFlagChangeListener(); otherwise, the method
	// has no effect.
	RemoveFlagChangeListener(listener <-chan FlagChangeEvent)

	// AddFlagValueChangeListener subscribes for notifications of changes in a specific flag's value
	// for a specific evaluation context.
	//
	// The returned channel will receive a new FlagValueChangeEvent whenever the flag's configuration
	// changes in a way that produces a different value for the context, or the flag is deleted.
	// defaultValue is the value used when the flag does not exist or cannot be evaluated.
	//
	// The listener does not receive an event for the value the flag has when it is registered.
	AddFlagValueChangeListener(
		flagKey string,
		context ldcontext.Context,
		defaultValue ldvalue.Value,
	) <-chan FlagValueChangeEvent

	// RemoveFlagValueChangeListener unsubscribes from notifications of feature flag value changes. The
	// specified channel must be one that was previously returned by AddFlagValueChangeListener();
	// otherwise, the method has no effect.
	RemoveFlagValueChangeListener(listener <-chan FlagValueChangeEvent)
}

// FlagChangeEvent is a parameter type used with FlagTracker.AddFlagChangeListener().
//
// This is not an analytics event to be sent to LaunchDarkly; it is a notification to the application.
type FlagChangeEvent struct {
	Key string
}

// FlagValueChangeEvent is a parameter type used with FlagTracker.AddFlagValueChangeListener()
// and with synchronous per-flag listeners.
//
// This is not an analytics event to be sent to LaunchDarkly; it is a notification to the application.
type FlagValueChangeEvent struct {
	// Key is the key of the feature flag whose value has changed.
	Key string

	// OldValue is the last known value of the flag before the change.
	OldValue ldvalue.Value

	// NewValue is the new value of the flag. If the flag was deleted it is ldvalue.Null(), or the default
	// value that was given to AddFlagValueChangeListener.
	NewValue ldvalue.Value

	// Deleted is true if the flag no longer exists, or is now a tombstone.
	Deleted bool
}

// ChangeSet is the set of flag keys whose configuration or resolved value differed between two
// observations of the store.
type ChangeSet map[string]struct{}

// Has returns true if the key is in the set.
func (c ChangeSet) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// Connection is a handle for a listener registration. Disconnect removes the listener; once it
// returns, the listener will not be called again.
//
// Disconnect must not be called from inside the listener that it removes, since it waits for any
// delivery to that listener that is already in progress.
type Connection interface {
	Disconnect()
}
