package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Cache holds raw parse results keyed by path and content digest. Cached descriptors
// are shared and must not be modified.
type Cache interface {
	Get(ctx context.Context, key string) (*descriptorpb.FileDescriptorProto, bool)
	Add(ctx context.Context, key string, file *descriptorpb.FileDescriptorProto)
}

// cacheKey identifies a file's content at path.
func cacheKey(path string, content []byte) string {
	sum := sha256.Sum256(content)
	return path + "@" + hex.EncodeToString(sum[:])
}

// LRUCache is a fixed-size in-process Cache that evicts the least recently used file.
type LRUCache struct {
	files *lru.Cache[string, *descriptorpb.FileDescriptorProto]
}

// NewLRUCache returns a cache holding at most size files.
func NewLRUCache(size int) (*LRUCache, error) {
	files, err := lru.New[string, *descriptorpb.FileDescriptorProto](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{files: files}, nil
}

func (c *LRUCache) Get(_ context.Context, key string) (*descriptorpb.FileDescriptorProto, bool) {
	return c.files.Get(key)
}

func (c *LRUCache) Add(_ context.Context, key string, file *descriptorpb.FileDescriptorProto) {
	c.files.Add(key, file)
}

// Len returns the number of cached files.
func (c *LRUCache) Len() int {
	return c.files.Len()
}

// RedisCache shares parse results between processes. Entries are binary encoded
// descriptors under "protoprune:parse:<key>". Redis failures are logged and treated
// as misses.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    logrus.FieldLogger
}

// NewRedisClient connects to the Redis server at url and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisCache returns a cache storing entries in client for ttl. A zero ttl keeps
// entries until Redis evicts them. A nil log discards output.
func NewRedisCache(client *redis.Client, ttl time.Duration, log logrus.FieldLogger) *RedisCache {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &RedisCache{client: client, ttl: ttl, log: log}
}

func redisKey(key string) string {
	return "protoprune:parse:" + key
}

func (c *RedisCache) Get(ctx context.Context, key string) (*descriptorpb.FileDescriptorProto, bool) {
	data, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false
	} else if err != nil {
		c.log.WithError(err).Warn("Redis get failed")
		return nil, false
	}

	var file descriptorpb.FileDescriptorProto
	if err := proto.Unmarshal(data, &file); err != nil {
		c.log.WithError(err).Warnf("Dropping corrupt cache entry %s", key)
		c.client.Del(ctx, redisKey(key))
		return nil, false
	}
	return &file, true
}

func (c *RedisCache) Add(ctx context.Context, key string, file *descriptorpb.FileDescriptorProto) {
	data, err := proto.Marshal(file)
	if err != nil {
		c.log.WithError(err).Warnf("Failed to encode %s", file.GetName())
		return
	}
	if err := c.client.Set(ctx, redisKey(key), data, c.ttl).Err(); err != nil {
		c.log.WithError(err).Warn("Redis set failed")
	}
}

// ObservedCache reports every lookup of cache to onLookup.
func ObservedCache(cache Cache, onLookup func(hit bool)) Cache {
	return &observedCache{Cache: cache, onLookup: onLookup}
}

type observedCache struct {
	Cache
	onLookup func(hit bool)
}

func (c *observedCache) Get(ctx context.Context, key string) (*descriptorpb.FileDescriptorProto, bool) {
	file, ok := c.Cache.Get(ctx, key)
	c.onLookup(ok)
	return file, ok
}
