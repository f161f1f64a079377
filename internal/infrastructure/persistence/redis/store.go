// Package redis implements the shared key-value persistence boundary of the
// portal. The student record, the theme key, and derived view state all live
// in one Redis database that other portal surfaces read and write too, so
// every accessor here must tolerate external mutation between calls.
//
// Key components:
//   - Store: thin typed wrapper over the Redis client
//   - RecordStore: the student record with optimistic version checks
//   - ThemeStore: the theme key written by the rendering layer
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// URL is a redis:// connection string. When set it takes precedence
	// over Host, Port, Password and DB.
	URL string

	// Host is the Redis server hostname.
	Host string

	// Port is the Redis server port.
	Port int

	// Password is the Redis authentication password (empty if no auth).
	Password string

	// DB is the Redis database number (0-15).
	DB int

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int

	// MaxRetries is the maximum number of retries before giving up.
	MaxRetries int

	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration

	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// options resolves the client options, parsing the URL when present and
// overlaying the pool and timeout settings on top.
func (c Config) options() (*redis.Options, error) {
	opts := &redis.Options{
		Addr:     c.Addr(),
		Password: c.Password,
		DB:       c.DB,
	}
	if c.URL != "" {
		parsed, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: parse url: %v", ErrConnection, err)
		}
		opts = parsed
	}

	opts.PoolSize = c.PoolSize
	opts.MinIdleConns = c.MinIdleConns
	opts.MaxRetries = c.MaxRetries
	opts.DialTimeout = c.DialTimeout
	opts.ReadTimeout = c.ReadTimeout
	opts.WriteTimeout = c.WriteTimeout
	return opts, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrKeyMiss is returned when the requested key is not found.
	ErrKeyMiss = errors.New("store: key not found")

	// ErrConnection is returned when the Redis connection fails.
	ErrConnection = errors.New("store: connection failed")

	// ErrSerialization is returned when serialization fails.
	ErrSerialization = errors.New("store: serialization failed")

	// ErrKeyEmpty is returned when an empty key is provided.
	ErrKeyEmpty = errors.New("store: key cannot be empty")
)

// ══════════════════════════════════════════════════════════════════════════════
// KEY PREFIXES & CHANNELS
// ══════════════════════════════════════════════════════════════════════════════

// Key prefixes for namespacing portal keys in the shared database.
const (
	// PrefixRecord is the prefix for student record keys.
	PrefixRecord = "portal:record:"

	// PrefixTheme is the prefix for view theme keys.
	PrefixTheme = "portal:theme:"

	// PrefixViewport is the prefix for viewport width keys.
	PrefixViewport = "portal:viewport:"
)

// Pub/sub channels announcing external mutations of shared keys.
const (
	// ChannelThemeChanged carries the new theme value on every theme write.
	ChannelThemeChanged = "portal:events:theme"
)

// RecordKey generates the storage key for a student record.
func RecordKey(sessionID string) string {
	return PrefixRecord + sessionID
}

// ThemeKey generates the storage key for the session theme.
func ThemeKey(sessionID string) string {
	return PrefixTheme + sessionID
}

// ViewportKey generates the storage key for the session viewport width.
func ViewportKey(sessionID string) string {
	return PrefixViewport + sessionID
}

// ══════════════════════════════════════════════════════════════════════════════
// STORE CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Store wraps the Redis client with serialization and error mapping.
type Store struct {
	client *redis.Client
	config Config
}

// NewStore creates a Store and verifies the connection.
func NewStore(cfg Config) (*Store, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return &Store{client: client, config: cfg}, nil
}

// Client returns the underlying Redis client for advanced operations.
func (s *Store) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// BASIC OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Set stores a JSON-serialized value. Zero TTL means no expiry.
func (s *Store) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if key == "" {
		return ErrKeyEmpty
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	return s.client.Set(ctx, key, data, ttl).Err()
}

// Get retrieves and deserializes a value. Returns ErrKeyMiss when absent.
func (s *Store) Get(ctx context.Context, key string, dest interface{}) error {
	if key == "" {
		return ErrKeyEmpty
	}

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrKeyMiss
		}
		return err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return nil
}

// GetBytes retrieves a raw value. Returns ErrKeyMiss when absent.
func (s *Store) GetBytes(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrKeyEmpty
	}

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyMiss
		}
		return nil, err
	}
	return data, nil
}

// SetString stores a plain string value. Zero TTL means no expiry.
func (s *Store) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return ErrKeyEmpty
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

// GetString retrieves a plain string value. Returns ErrKeyMiss when absent.
func (s *Store) GetString(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrKeyEmpty
	}

	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrKeyMiss
		}
		return "", err
	}
	return val, nil
}

// Delete removes keys. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// Exists checks if a key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrKeyEmpty
	}

	count, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PUB/SUB OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Publish announces a message on a channel.
func (s *Store) Publish(ctx context.Context, channel string, message interface{}) error {
	if channel == "" {
		return ErrKeyEmpty
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return s.client.Publish(ctx, channel, data).Err()
}

// Subscribe creates a subscription to channels.
// Remember to call Close() on the returned PubSub when done.
func (s *Store) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return s.client.Subscribe(ctx, channels...)
}
