package ldconsul

import (
	"fmt"
	"strings"

	c "github.com/hashicorp/consul/api"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"
)

const initedKey = "$inited"

type consulStoreImpl struct {
	client  *c.Client
	address string
	prefix  string
	loggers ldlog.Loggers
}

func newConsulStoreImpl(builder *StoreBuilder, loggers ldlog.Loggers) (*consulStoreImpl, error) {
	config := builder.consulConfig
	loggers.Infof("Using config: %+v", config)
	client, err := c.NewClient(&config)
	if err != nil {
		return nil, fmt.Errorf("unable to configure Consul client: %w", err)
	}
	address := config.Address
	if address == "" {
		address = c.DefaultConfig().Address
	}
	return &consulStoreImpl{
		client:  client,
		address: address,
		prefix:  builder.prefix,
		loggers: loggers,
	}, nil
}

func (store *consulStoreImpl) Get(
	kind ldstoretypes.DataKind,
	key string,
) (ldstoretypes.SerializedItemDescriptor, error) {
	pair, _, err := store.client.KV().Get(store.featureKeyFor(kind, key), nil)
	if err != nil {
		return ldstoretypes.SerializedItemDescriptor{}.NotFound(), err
	}
	if pair == nil {
		return ldstoretypes.SerializedItemDescriptor{}.NotFound(), nil
	}
	return ldstoretypes.SerializedItemDescriptor{SerializedItem: pair.Value}, nil
}

func (store *consulStoreImpl) GetAll(
	kind ldstoretypes.DataKind,
) ([]ldstoretypes.KeyedSerializedItemDescriptor, error) {
	keyPrefix := store.featuresKey(kind) + "/"
	pairs, _, err := store.client.KV().List(keyPrefix, nil)
	if err != nil {
		return nil, fmt.Errorf("list failed for %s: %w", kind, err)
	}

	// Consul returns the pairs sorted by key.
	results := make([]ldstoretypes.KeyedSerializedItemDescriptor, 0, len(pairs))
	for _, pair := range pairs {
		results = append(results, ldstoretypes.KeyedSerializedItemDescriptor{
			Key:  strings.TrimPrefix(pair.Key, keyPrefix),
			Item: ldstoretypes.SerializedItemDescriptor{SerializedItem: pair.Value},
		})
	}
	return results, nil
}

func (store *consulStoreImpl) IsInitialized() bool {
	pair, _, err := store.client.KV().Get(store.initedKey(), nil)
	return pair != nil && err == nil
}

func (store *consulStoreImpl) IsStoreAvailable() bool {
	// A plain read says more about whether we can get data than the health API would.
	_, _, err := store.client.KV().Get(store.initedKey(), nil)
	return err == nil
}

func (store *consulStoreImpl) Identity() string {
	return fmt.Sprintf("Consul (%s)", store.address)
}

func (store *consulStoreImpl) Close() error {
	// The Consul client doesn't currently need to be explicitly disposed of
	return nil
}

func (store *consulStoreImpl) featuresKey(kind ldstoretypes.DataKind) string {
	return store.prefix + "/" + kind.GetName()
}

func (store *consulStoreImpl) featureKeyFor(kind ldstoretypes.DataKind, k string) string {
	return store.prefix + "/" + kind.GetName() + "/" + k
}

func (store *consulStoreImpl) initedKey() string {
	return store.prefix + "/" + initedKey
}
