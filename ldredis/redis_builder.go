package ldredis

import (
	"fmt"
	"time"

	r "github.com/gomodule/redigo/redis"

	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
)

const (
	// DefaultURL is the default URL for connecting to Redis.
	DefaultURL = "redis://localhost:6379"
	// DefaultPrefix is a string that is prepended (along with a colon) to all Redis keys used
	// by the data store. You can change this value with the Prefix() option.
	DefaultPrefix = "launchdarkly"
)

// PoolOptions are the connection pool settings used when the store creates its own pool.
type PoolOptions struct {
	// MaxIdle is the maximum number of idle connections kept open.
	MaxIdle int
	// MaxActive is the maximum number of connections open at once. Callers wait for a free one.
	MaxActive int
	// IdleTimeout is how long an idle connection stays open.
	IdleTimeout time.Duration
}

// DefaultPoolOptions are the pool settings used if PoolOptions is not called.
var DefaultPoolOptions = PoolOptions{ //nolint:gochecknoglobals
	MaxIdle:     20,
	MaxActive:   16,
	IdleTimeout: 300 * time.Second,
}

// StoreBuilder is a builder for configuring the Redis-based persistent store core.
//
// Obtain an instance of this type by calling DataStore(). Builder calls can be chained, for example:
//
//	ldcomponents.LazyLoad().Store(ldredis.DataStore().URL("redis://hostname").Prefix("prefix"))
type StoreBuilder struct {
	prefix      string
	pool        *r.Pool
	url         string
	dialOptions []r.DialOption
	poolOptions PoolOptions
}

// DataStore returns a configurable builder for a Redis-backed persistent store core.
func DataStore() *StoreBuilder {
	return &StoreBuilder{
		prefix:      DefaultPrefix,
		url:         DefaultURL,
		poolOptions: DefaultPoolOptions,
	}
}

// Prefix specifies a string that should be prepended to all Redis keys used by the data store.
// A colon will be added to this automatically. If this is unspecified or empty, DefaultPrefix will be used.
func (b *StoreBuilder) Prefix(prefix string) *StoreBuilder {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	b.prefix = prefix
	return b
}

// URL specifies the Redis host URL. If not specified, the default value is DefaultURL.
//
// Redigo supports the redis:// syntax, which can include a password and a database number, as well
// as rediss://, which enables TLS.
func (b *StoreBuilder) URL(url string) *StoreBuilder {
	if url == "" {
		url = DefaultURL
	}
	b.url = url
	return b
}

// HostAndPort is a shortcut for specifying the Redis host address as a hostname and port.
func (b *StoreBuilder) HostAndPort(host string, port int) *StoreBuilder {
	return b.URL(fmt.Sprintf("redis://%s:%d", host, port))
}

// Pool specifies an existing connection pool. If this is set, URL, DialOptions and PoolOptions
// are ignored.
func (b *StoreBuilder) Pool(pool *r.Pool) *StoreBuilder {
	b.pool = pool
	return b
}

// PoolOptions changes the settings of the connection pool that the store creates.
func (b *StoreBuilder) PoolOptions(options PoolOptions) *StoreBuilder {
	b.poolOptions = options
	return b
}

// DialOptions specifies any of the advanced Redis connection options supported by Redigo, such as
// DialPassword.
func (b *StoreBuilder) DialOptions(options ...r.DialOption) *StoreBuilder {
	b.dialOptions = options
	return b
}

// Build is called internally to create the store core.
func (b *StoreBuilder) Build(context subsystems.ClientContext) (subsystems.PersistentDataStoreCore, error) {
	return newRedisStoreImpl(b, context.GetLogging().Loggers), nil
}
