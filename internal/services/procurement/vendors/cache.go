package vendors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onemarinex/portside/internal/services/procurement/storage"
)

const (
	cacheKeyPrefix  = "portside:vendor:"
	defaultCacheTTL = 5 * time.Minute
)

// CacheMetrics counts cache lookups by result: hit, miss or error.
type CacheMetrics interface {
	VendorCacheRead(result string)
}

// CachedStore is a read-through Redis cache in front of a VendorStore.
// Redis failures are logged and reads fall through to the backing store.
type CachedStore struct {
	next    storage.VendorStore
	client  redis.Cmdable
	ttl     time.Duration
	metrics CacheMetrics
}

type cachedProfile struct {
	UserID      string    `json:"user_id"`
	CompanyName string    `json:"company_name"`
	PortsServed []string  `json:"ports_served"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewCachedStore wraps next with a Redis cache. metrics may be nil.
func NewCachedStore(next storage.VendorStore, client redis.Cmdable, ttl time.Duration, metrics CacheMetrics) *CachedStore {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedStore{next: next, client: client, ttl: ttl, metrics: metrics}
}

// NewRedisClient builds the client for addr and checks it responds.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func cacheKey(userID string) string {
	return cacheKeyPrefix + userID
}

// GetVendorProfile serves from Redis when possible and fills it on a miss.
func (c *CachedStore) GetVendorProfile(ctx context.Context, userID string) (storage.VendorProfile, error) {
	if c.client == nil {
		return c.next.GetVendorProfile(ctx, userID)
	}
	key := cacheKey(userID)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached cachedProfile
		decodeErr := json.Unmarshal(raw, &cached)
		if decodeErr == nil {
			c.count("hit")
			return storage.VendorProfile{
				UserID:      cached.UserID,
				CompanyName: cached.CompanyName,
				PortsServed: cached.PortsServed,
				CreatedAt:   cached.CreatedAt,
				UpdatedAt:   cached.UpdatedAt,
			}, nil
		}
		log.Printf("vendor cache decode key=%s: %v", key, decodeErr)
		c.count("error")
	case errors.Is(err, redis.Nil):
		c.count("miss")
	default:
		log.Printf("vendor cache get key=%s: %v", key, err)
		c.count("error")
	}

	profile, err := c.next.GetVendorProfile(ctx, userID)
	if err != nil {
		return storage.VendorProfile{}, err
	}
	data, err := json.Marshal(cachedProfile{
		UserID:      profile.UserID,
		CompanyName: profile.CompanyName,
		PortsServed: profile.PortsServed,
		CreatedAt:   profile.CreatedAt,
		UpdatedAt:   profile.UpdatedAt,
	})
	if err == nil {
		if setErr := c.client.Set(ctx, key, data, c.ttl).Err(); setErr != nil {
			log.Printf("vendor cache set key=%s: %v", key, setErr)
		}
	}
	return profile, nil
}

// PutVendorProfile writes through to the store and evicts the cached copy.
func (c *CachedStore) PutVendorProfile(ctx context.Context, profile storage.VendorProfile) (storage.VendorProfile, error) {
	stored, err := c.next.PutVendorProfile(ctx, profile)
	if err != nil {
		return storage.VendorProfile{}, err
	}
	if c.client != nil {
		if delErr := c.client.Del(ctx, cacheKey(profile.UserID)).Err(); delErr != nil {
			log.Printf("vendor cache evict user=%s: %v", profile.UserID, delErr)
		}
	}
	return stored, nil
}

func (c *CachedStore) count(result string) {
	if c.metrics != nil {
		c.metrics.VendorCacheRead(result)
	}
}

var _ storage.VendorStore = (*CachedStore)(nil)
