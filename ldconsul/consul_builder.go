package ldconsul

import (
	c "github.com/hashicorp/consul/api"

	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
)

const (
	// DefaultPrefix is a string that is prepended (along with a slash) to all Consul keys used
	// by the data store. You can change this value with the Prefix() option.
	DefaultPrefix = "launchdarkly"
)

// StoreBuilder is a builder for configuring the Consul-based persistent store core.
//
// Obtain an instance of this type by calling DataStore(). Builder calls can be chained, for example:
//
//	ldcomponents.LazyLoad().Store(ldconsul.DataStore().Address("my-consul:8500").Prefix("prefix"))
type StoreBuilder struct {
	consulConfig c.Config
	prefix       string
}

// DataStore returns a configurable builder for a Consul-backed persistent store core.
func DataStore() *StoreBuilder {
	return &StoreBuilder{
		prefix: DefaultPrefix,
	}
}

// Address specifies the address of the Consul agent. If not specified, the Consul client's default
// (normally localhost:8500) is used.
func (b *StoreBuilder) Address(address string) *StoreBuilder {
	b.consulConfig.Address = address
	return b
}

// Config specifies an entire Consul client configuration, replacing any address set with Address.
func (b *StoreBuilder) Config(config c.Config) *StoreBuilder {
	b.consulConfig = config
	return b
}

// Prefix specifies a prefix for namespacing the data store's keys. If this is unspecified or empty,
// DefaultPrefix will be used.
func (b *StoreBuilder) Prefix(prefix string) *StoreBuilder {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	b.prefix = prefix
	return b
}

// Build is called internally to create the store core.
func (b *StoreBuilder) Build(context subsystems.ClientContext) (subsystems.PersistentDataStoreCore, error) {
	return newConsulStoreImpl(b, context.GetLogging().Loggers)
}
