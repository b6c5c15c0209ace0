package subsystems

// OnDemandStore is a component that is both the source and the store of flag data: it fetches
// each value when asked for it, rather than receiving updates in the background.
//
// The lazy-load data system is the built-in implementation; see ldcomponents.LazyLoad().
type OnDemandStore interface {
	DataSource
	ReadOnlyStore
}
