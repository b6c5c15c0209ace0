package ldredis

import (
	"errors"
	"fmt"

	r "github.com/gomodule/redigo/redis"
	"golang.org/x/exp/slices"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"
)

const initedKey = "$inited"

type redisStoreImpl struct {
	prefix  string
	pool    *r.Pool
	url     string
	loggers ldlog.Loggers
}

func newPool(url string, dialOptions []r.DialOption, options PoolOptions) *r.Pool {
	return &r.Pool{
		MaxIdle:     options.MaxIdle,
		MaxActive:   options.MaxActive,
		Wait:        true,
		IdleTimeout: options.IdleTimeout,
		Dial: func() (r.Conn, error) {
			return r.DialURL(url, dialOptions...)
		},
	}
}

func newRedisStoreImpl(builder *StoreBuilder, loggers ldlog.Loggers) *redisStoreImpl {
	impl := &redisStoreImpl{
		prefix:  builder.prefix,
		pool:    builder.pool,
		url:     builder.url,
		loggers: loggers,
	}
	impl.loggers.SetPrefix("RedisDataStore:")

	if impl.pool == nil {
		impl.loggers.Infof("Using url: %s", builder.url)
		impl.pool = newPool(builder.url, builder.dialOptions, builder.poolOptions)
	}
	return impl
}

func (store *redisStoreImpl) Get(
	kind ldstoretypes.DataKind,
	key string,
) (ldstoretypes.SerializedItemDescriptor, error) {
	c := store.pool.Get()
	defer c.Close() // nolint:errcheck

	data, err := r.Bytes(c.Do("HGET", store.featuresKey(kind), key))
	if err != nil {
		if errors.Is(err, r.ErrNil) {
			if store.loggers.IsDebugEnabled() {
				store.loggers.Debugf("Key: %s not found in \"%s\"", key, kind.GetName())
			}
			return ldstoretypes.SerializedItemDescriptor{}.NotFound(), nil
		}
		return ldstoretypes.SerializedItemDescriptor{}.NotFound(), err
	}
	// Redis keeps no separate version; it is parsed out of the item when it is deserialized.
	return ldstoretypes.SerializedItemDescriptor{SerializedItem: data}, nil
}

func (store *redisStoreImpl) GetAll(
	kind ldstoretypes.DataKind,
) ([]ldstoretypes.KeyedSerializedItemDescriptor, error) {
	c := store.pool.Get()
	defer c.Close() // nolint:errcheck

	values, err := r.StringMap(c.Do("HGETALL", store.featuresKey(kind)))
	if err != nil && !errors.Is(err, r.ErrNil) {
		return nil, err
	}

	results := make([]ldstoretypes.KeyedSerializedItemDescriptor, 0, len(values))
	for k, v := range values {
		results = append(results, ldstoretypes.KeyedSerializedItemDescriptor{
			Key:  k,
			Item: ldstoretypes.SerializedItemDescriptor{SerializedItem: []byte(v)},
		})
	}
	slices.SortFunc(results, func(a, b ldstoretypes.KeyedSerializedItemDescriptor) bool {
		return a.Key < b.Key
	})
	return results, nil
}

func (store *redisStoreImpl) IsInitialized() bool {
	c := store.pool.Get()
	defer c.Close() // nolint:errcheck
	inited, _ := r.Bool(c.Do("EXISTS", store.initedKey()))
	return inited
}

func (store *redisStoreImpl) IsStoreAvailable() bool {
	c := store.pool.Get()
	defer c.Close() // nolint:errcheck
	_, err := r.Bool(c.Do("EXISTS", store.initedKey()))
	return err == nil
}

func (store *redisStoreImpl) Identity() string {
	return fmt.Sprintf("Redis (%s)", store.url)
}

func (store *redisStoreImpl) Close() error {
	return store.pool.Close()
}

func (store *redisStoreImpl) featuresKey(kind ldstoretypes.DataKind) string {
	return store.prefix + ":" + kind.GetName()
}

func (store *redisStoreImpl) initedKey() string {
	return store.prefix + ":" + initedKey
}
