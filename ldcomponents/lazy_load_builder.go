package ldcomponents

import (
	"errors"
	"time"

	"github.com/launchdarkly/go-server-sdk-datasync/internal/datasystem"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
)

// DefaultCacheRefresh is the default value for LazyLoadBuilder.CacheRefresh.
const DefaultCacheRefresh = datasystem.DefaultCacheRefresh

// LazyLoad returns a configuration builder for reading flag data on demand from a persistent store.
//
// In lazy-load mode the data system does not connect to LaunchDarkly at all. Each flag or segment is
// read from the persistent store the first time it is needed and then cached in memory. Some other
// process, such as the Relay Proxy, is responsible for keeping the store up to date.
//
// The return value should be stored in the DataSystem field of datasync.Config; it takes precedence
// over the DataSource field. The store itself is configured by a builder from one of the database
// integration packages, such as ldredis:
//
//	config := datasync.Config{
//	    DataSystem: ldcomponents.LazyLoad().
//	        Store(ldredis.DataStore().URL("redis://my-redis-host")).
//	        CacheRefresh(30 * time.Second),
//	}
func LazyLoad() *LazyLoadBuilder {
	return &LazyLoadBuilder{cacheRefresh: DefaultCacheRefresh}
}

// LazyLoadBuilder is a configurable factory for the lazy-load data system.
//
// See LazyLoad for usage.
type LazyLoadBuilder struct {
	storeFactory subsystems.ComponentConfigurer[subsystems.PersistentDataStoreCore]
	cacheRefresh time.Duration
}

// Store specifies the persistent store to read from. This is required.
func (b *LazyLoadBuilder) Store(
	storeFactory subsystems.ComponentConfigurer[subsystems.PersistentDataStoreCore],
) *LazyLoadBuilder {
	b.storeFactory = storeFactory
	return b
}

// CacheRefresh specifies how long a value read from the store is treated as current. Once that time
// has passed, the next read of the same key or collection goes back to the store.
//
// A zero or negative value means DefaultCacheRefresh.
func (b *LazyLoadBuilder) CacheRefresh(cacheRefresh time.Duration) *LazyLoadBuilder {
	if cacheRefresh <= 0 {
		b.cacheRefresh = DefaultCacheRefresh
	} else {
		b.cacheRefresh = cacheRefresh
	}
	return b
}

// Build is called internally by the data system.
func (b *LazyLoadBuilder) Build(clientContext subsystems.ClientContext) (subsystems.OnDemandStore, error) {
	if b.storeFactory == nil {
		return nil, errors.New("lazy load requires a persistent store; use LazyLoad().Store()")
	}
	statusUpdates := clientContext.GetDataSourceStatusReporter()
	if statusUpdates == nil {
		return nil, errors.New("lazy load requires a status reporter")
	}
	core, err := b.storeFactory.Build(clientContext)
	if err != nil {
		return nil, err
	}
	return datasystem.NewLazyLoad(core, statusUpdates, b.cacheRefresh, clientContext.GetLogging().Loggers), nil
}
