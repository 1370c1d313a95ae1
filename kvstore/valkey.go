package kvstore

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyOptions configures a Valkey connection.
type ValkeyOptions struct {
	Address  string
	Password string
	DB       int
	TLS      bool
}

// DialValkey connects and pings the server.
func DialValkey(ctx context.Context, opts ValkeyOptions) (valkey.Client, error) {
	co := valkey.ClientOption{
		InitAddress:      []string{opts.Address},
		Password:         opts.Password,
		SelectDB:         opts.DB,
		ConnWriteTimeout: 5 * time.Second,
	}
	if opts.TLS {
		co.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client, err := valkey.NewClient(co)
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}

	slog.Info("imagesort: connected to valkey", "address", opts.Address)
	return client, nil
}

// ValkeyStore is a KV backed by Valkey strings.
type ValkeyStore struct {
	client valkey.Client
}

// NewValkeyStore wraps an existing client.
func NewValkeyStore(client valkey.Client) *ValkeyStore {
	return &ValkeyStore{client: client}
}

// Get retrieves a value
func (s *ValkeyStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("valkey get %s: %w", key, err)
	}
	return b, nil
}

// Set stores a value without expiry
func (s *ValkeyStore) Set(ctx context.Context, key string, value []byte) error {
	cmd := s.client.B().Set().Key(key).Value(valkey.BinaryString(value)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set %s: %w", key, err)
	}
	return nil
}

// Delete removes a value
func (s *ValkeyStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("valkey del %s: %w", key, err)
	}
	return nil
}

// ValkeyCache is an imagesort.Cache shared between service replicas.
type ValkeyCache struct {
	client valkey.Client
	ttl    time.Duration
}

// NewValkeyCache caches values for ttl.
func NewValkeyCache(client valkey.Client, ttl time.Duration) *ValkeyCache {
	return &ValkeyCache{client: client, ttl: ttl}
}

// Key builds a cache key from a prefix and a value.
func (c *ValkeyCache) Key(prefix, value string) string {
	return hashKey(prefix, value)
}

// Get decodes the cached value into dest. Misses and errors both return false.
func (c *ValkeyCache) Get(ctx context.Context, key string, dest any) bool {
	b, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if !valkey.IsValkeyNil(err) {
			slog.Debug("imagesort: valkey cache get failed", "key", key, "error", err.Error())
		}
		return false
	}
	return json.Unmarshal(b, dest) == nil
}

// Set caches value for the configured TTL. Errors are logged and dropped.
func (c *ValkeyCache) Set(ctx context.Context, key string, value any) {
	b, err := json.Marshal(value)
	if err != nil {
		return
	}
	var cmd valkey.Completed
	if c.ttl > 0 {
		cmd = c.client.B().Set().Key(key).Value(valkey.BinaryString(b)).Ex(c.ttl).Build()
	} else {
		cmd = c.client.B().Set().Key(key).Value(valkey.BinaryString(b)).Build()
	}
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		slog.Debug("imagesort: valkey cache set failed", "key", key, "error", err.Error())
	}
}
