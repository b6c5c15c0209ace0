// Package ldredis provides a Redis-backed persistent store core for the lazy-load data system.
//
// The store is read-only from this side: some other process, such as the Relay Proxy, populates
// Redis with flag data, and the lazy-load data system reads it on demand.
//
//	config := datasync.Config{
//	    DataSystem: ldcomponents.LazyLoad().Store(ldredis.DataStore().URL("redis://my-redis:6379")),
//	}
//
// Data is kept in one hash per data kind, named "{prefix}:{kind}", whose fields are item keys and
// whose values are the serialized items. The key "{prefix}:$inited" exists once a full data set has
// been written.
package ldredis
