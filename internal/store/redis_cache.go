package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmskonakanchi/ymts-crud-api/internal/model"
	"go.uber.org/zap"
)

const redisKeyPrefix = "ymts:tenant:"

// RedisCache implements TenantCache on Redis so several API replicas share
// tenant lookups
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache creates a new Redis tenant cache
func NewRedisCache(addr, password string, db int, ttl time.Duration, logger *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisCache(client, ttl, logger), nil
}

func newRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// GetTenant retrieves a cached tenant. Redis failures count as a miss.
func (c *RedisCache) GetTenant(ctx context.Context, tenantID string) (*model.Tenant, bool) {
	data, err := c.client.Get(ctx, redisKeyPrefix+tenantID).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Tenant cache read failed", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, false
	}

	var tenant model.Tenant
	if err := json.Unmarshal(data, &tenant); err != nil {
		c.logger.Warn("Discarding undecodable cache entry", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, false
	}

	return &tenant, true
}

// SetTenant stores a tenant with the configured TTL
func (c *RedisCache) SetTenant(ctx context.Context, tenant *model.Tenant) {
	// EncryptedSecret is excluded from the JSON encoding
	data, err := json.Marshal(tenant)
	if err != nil {
		c.logger.Warn("Failed to marshal tenant for cache", zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, redisKeyPrefix+tenant.TenantID, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Tenant cache write failed", zap.String("tenant_id", tenant.TenantID), zap.Error(err))
	}
}

// DeleteTenant removes a cached tenant
func (c *RedisCache) DeleteTenant(ctx context.Context, tenantID string) {
	if err := c.client.Del(ctx, redisKeyPrefix+tenantID).Err(); err != nil {
		c.logger.Warn("Tenant cache delete failed", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}

// Ping checks the Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (c *RedisCache) Close() error {
	return c.client.Close()
}
