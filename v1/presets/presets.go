package presets

import (
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-txlock/v1/adapter"
	"github.com/mirkobrombin/go-txlock/v1/cache"
	"github.com/mirkobrombin/go-txlock/v1/engine"
	"github.com/mirkobrombin/go-txlock/v1/syncbus"
)

// Key prefixes separating the two topics' data in one Redis database.
const (
	ChunkPrefix = "chunk:"
	IndexPrefix = "index:"
)

// RedisOptions configures the connection to Redis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// CacheTTL bounds how long chunks stay in the local cache. Zero keeps
	// them until they are written or deleted.
	CacheTTL time.Duration
}

// NewInMemory returns an engine that runs entirely in-memory with no
// external dependencies. Extra options are applied after the preset ones.
func NewInMemory(opts ...engine.Option) *engine.Engine {
	base := []engine.Option{
		engine.WithCache(cache.NewInMemory[[]byte](), 0),
	}
	return engine.New(
		adapter.NewInMemoryStore[[]byte](),
		adapter.NewInMemoryStore[string](),
		append(base, opts...)...,
	)
}

// Redis is an engine backed by Redis with the resources it owns.
type Redis struct {
	*engine.Engine
	client *redis.Client
	cache  *cache.RistrettoCache[[]byte]
	bus    *syncbus.RedisBus
}

// NewRedis returns an engine keeping chunks and index entries in Redis,
// caching chunks locally in ristretto and publishing lock events on Redis
// pub/sub.
func NewRedis(opts RedisOptions, extra ...engine.Option) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	c, err := cache.NewRistretto[[]byte]()
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	bus := syncbus.NewRedisBus(client)

	base := []engine.Option{
		engine.WithCache(c, opts.CacheTTL),
		engine.WithBus(bus),
	}
	e := engine.New(
		adapter.NewRedisStore[[]byte](client, adapter.WithPrefix(ChunkPrefix)),
		adapter.NewRedisStore[string](client, adapter.WithPrefix(IndexPrefix)),
		append(base, extra...)...,
	)
	return &Redis{Engine: e, client: client, cache: c, bus: bus}, nil
}

// Bus returns the bus lock events are published on.
func (r *Redis) Bus() syncbus.Bus {
	return r.bus
}

// Close releases the bus, the cache and the Redis client.
func (r *Redis) Close() error {
	_ = r.bus.Close()
	r.cache.Close()
	return r.client.Close()
}
