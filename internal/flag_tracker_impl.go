package internal

import (
	"sync"

	"github.com/launchdarkly/go-server-sdk-datasync/interfaces"

	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// EvaluateFunc computes a flag's value for a context. found is false if the flag does not exist, in
// which case value is normally the default value.
type EvaluateFunc func(flagKey string, context ldcontext.Context, defaultValue ldvalue.Value) (value ldvalue.Value, found bool)

// flagTrackerImpl is the internal implementation of FlagTracker.
//
// The broadcaster receives a FlagChangeEvent for every key in every change set produced by the
// store's change notifier. A value change listener is implemented by subscribing a regular
// FlagChangeEvent channel and starting a goroutine that reads it, evaluates the flag, and posts
// events as appropriate to a FlagValueChangeEvent channel; the mapping between the two is kept so
// that the underlying channel can be unregistered.
type flagTrackerImpl struct {
	broadcaster              *Broadcaster[interfaces.FlagChangeEvent]
	evaluateFn               EvaluateFunc
	valueChangeSubscriptions map[<-chan interfaces.FlagValueChangeEvent]<-chan interfaces.FlagChangeEvent
	lock                     sync.Mutex
}

// NewFlagTrackerImpl creates the internal implementation of FlagTracker.
func NewFlagTrackerImpl(
	broadcaster *Broadcaster[interfaces.FlagChangeEvent],
	evaluateFn EvaluateFunc,
) interfaces.FlagTracker {
	return &flagTrackerImpl{
		broadcaster:              broadcaster,
		evaluateFn:               evaluateFn,
		valueChangeSubscriptions: make(map[<-chan interfaces.FlagValueChangeEvent]<-chan interfaces.FlagChangeEvent),
	}
}

// AddFlagChangeListener is a standard method of FlagTracker.
func (f *flagTrackerImpl) AddFlagChangeListener() <-chan interfaces.FlagChangeEvent {
	return f.broadcaster.AddListener()
}

// RemoveFlagChangeListener is a standard method of FlagTracker.
func (f *flagTrackerImpl) RemoveFlagChangeListener(listener <-chan interfaces.FlagChangeEvent) {
	f.broadcaster.RemoveListener(listener)
}

// AddFlagValueChangeListener is a standard method of FlagTracker.
func (f *flagTrackerImpl) AddFlagValueChangeListener(
	flagKey string,
	context ldcontext.Context,
	defaultValue ldvalue.Value,
) <-chan interfaces.FlagValueChangeEvent {
	valueCh := make(chan interfaces.FlagValueChangeEvent, subscriberChannelBufferLength)
	flagCh := f.broadcaster.AddListener()
	currentValue, found := f.evaluateFn(flagKey, context, defaultValue)
	go runValueChangeListener(flagCh, valueCh, f.evaluateFn, flagKey, context, defaultValue, currentValue, found)

	f.lock.Lock()
	f.valueChangeSubscriptions[valueCh] = flagCh
	f.lock.Unlock()

	return valueCh
}

// RemoveFlagValueChangeListener is a standard method of FlagTracker.
func (f *flagTrackerImpl) RemoveFlagValueChangeListener(listener <-chan interfaces.FlagValueChangeEvent) {
	f.lock.Lock()
	flagCh, ok := f.valueChangeSubscriptions[listener]
	delete(f.valueChangeSubscriptions, listener)
	f.lock.Unlock()

	if ok {
		f.broadcaster.RemoveListener(flagCh)
	}
}

func runValueChangeListener(
	flagCh <-chan interfaces.FlagChangeEvent,
	valueCh chan<- interfaces.FlagValueChangeEvent,
	evaluateFn EvaluateFunc,
	flagKey string,
	context ldcontext.Context,
	defaultValue ldvalue.Value,
	currentValue ldvalue.Value,
	currentlyFound bool,
) {
	for flagChange := range flagCh {
		if flagChange.Key != flagKey {
			continue
		}
		newValue, found := evaluateFn(flagKey, context, defaultValue)
		if found == currentlyFound && newValue.Equal(currentValue) {
			continue
		}
		event := interfaces.FlagValueChangeEvent{
			Key:      flagKey,
			OldValue: currentValue,
			NewValue: newValue,
			Deleted:  currentlyFound && !found,
		}
		currentValue, currentlyFound = newValue, found
		valueCh <- event
	}
	// the underlying subscription has been unregistered
	close(valueCh)
}
