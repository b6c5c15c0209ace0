package ldconsul

import (
	"testing"

	c "github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataStoreBuilder(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		b := DataStore()
		assert.Equal(t, c.Config{}, b.consulConfig)
		assert.Equal(t, DefaultPrefix, b.prefix)
	})

	t.Run("Address", func(t *testing.T) {
		b := DataStore().Address("a")
		assert.Equal(t, "a", b.consulConfig.Address)
	})

	t.Run("Config", func(t *testing.T) {
		var config c.Config
		config.Address = "a"

		b := DataStore().Config(config)
		assert.Equal(t, config, b.consulConfig)
	})

	t.Run("Prefix", func(t *testing.T) {
		b := DataStore().Prefix("p")
		assert.Equal(t, "p", b.prefix)

		b.Prefix("")
		assert.Equal(t, DefaultPrefix, b.prefix)
	})

	t.Run("identity", func(t *testing.T) {
		store, err := DataStore().Address("my-consul:8500").Build(testContext())
		require.NoError(t, err)
		assert.Equal(t, "Consul (my-consul:8500)", store.Identity())
	})

	t.Run("error for invalid address", func(t *testing.T) {
		b := DataStore().Address("bad-scheme://no")
		_, err := b.Build(testContext())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Unknown protocol")
	})
}
