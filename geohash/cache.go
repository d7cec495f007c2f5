package geohash

import (
	"github.com/dgraph-io/ristretto/v2"
	"github.com/pkg/errors"
	"github.com/tdewolff/parcel"
	"go.uber.org/zap"
)

// DefaultCacheSize is the default number of decoded points kept by a Cache.
const DefaultCacheSize = 1 << 16

// Cache is a PointDecoder that keeps recently decoded points. It is safe for concurrent use.
type Cache struct {
	cache *ristretto.Cache[string, parcel.Point]
}

// NewCache returns a cache that holds up to size points, or DefaultCacheSize when size is not positive.
func NewCache(size int64) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, parcel.Point]{
		NumCounters: 10 * size,
		MaxCost:     size,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "geohash cache")
	}
	return &Cache{cache}, nil
}

// Decode returns the centre of the geohash cell, from the cache if present. Keys are case sensitive; invalid geohashes are never cached.
func (c *Cache) Decode(hash string) (parcel.Point, error) {
	if p, ok := c.cache.Get(hash); ok {
		return p, nil
	}
	p, err := Decode(hash)
	if err != nil {
		return parcel.Point{}, err
	}
	c.cache.Set(hash, p, 1)
	return p, nil
}

// Wait blocks until all pending writes are applied.
func (c *Cache) Wait() {
	c.cache.Wait()
}

// Hits returns the number of lookups served from the cache.
func (c *Cache) Hits() uint64 {
	return c.cache.Metrics.Hits()
}

// Close stops the cache and logs its hit ratio.
func (c *Cache) Close() {
	m := c.cache.Metrics
	parcel.Logger().Debug("geohash cache",
		zap.Uint64("hits", m.Hits()),
		zap.Uint64("misses", m.Misses()),
		zap.Float64("ratio", m.Ratio()))
	c.cache.Close()
}
