// Package datasystem encapsulates the interactions between the data store, the data source, and the
// change notification components.
//
// There are two data system implementations. BackgroundSync keeps an in-memory store up to date from
// a streaming, polling, or file data source and reports changes as they arrive. OnDemand wraps a
// LazyLoad, which reads from a persistent store only when a value is asked for.
package datasystem
