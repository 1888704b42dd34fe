package cache

import (
	"errors"
	"fmt"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const (
	oneHour          = 60 * 60
	chartCacheExpire = oneHour * 6

	// MaxEntryBytes is the largest chart the cache must hold; a rendered
	// 1024x600 chart PNG is around 65 KB.
	MaxEntryBytes = 128 * 1024
	// freecache refuses entries larger than 1/1024 of its size
	minCacheSizeBytes = 1024 * MaxEntryBytes
	// MinSizeMB is the smallest cache size that still holds a chart.
	MinSizeMB = minCacheSizeBytes / (1024 * 1024)
)

type Cache interface {
	Get(key Key) ([]byte, bool)
	Set(key Key, value []byte)
	Clear()
}

var _ Cache = (*ChartCache)(nil)

// Key identifies one rendered artifact. Revision is the state revision it
// was rendered from, so any state mutation makes older entries unreachable.
type Key struct {
	BabyID     string
	Revision   uint64
	Kind       string // e.g. "chart.png"
	Metric     string
	WeightUnit string
	HeightUnit string
	Language   string
}

func (k Key) bytes() []byte {
	return []byte(fmt.Sprintf("%s::%d::%s::%s::%s::%s::%s",
		k.BabyID, k.Revision, k.Kind, k.Metric, k.WeightUnit, k.HeightUnit, k.Language))
}

type ChartCache struct {
	cache *freecache.Cache
}

// NewChartCache creates a cache of sizeMB megabytes, never smaller than
// MinSizeMB.
func NewChartCache(sizeMB int) *ChartCache {
	size := sizeMB * 1024 * 1024
	if size < minCacheSizeBytes {
		size = minCacheSizeBytes
	}
	return &ChartCache{
		cache: freecache.NewCache(size),
	}
}

func (c *ChartCache) Get(key Key) ([]byte, bool) {
	data, err := c.cache.Get(key.bytes())
	if err != nil {
		if !errors.Is(err, freecache.ErrNotFound) {
			log.Errorf("chart cache get [%s]: %s", key.BabyID, err)
		}
		return nil, false
	}
	return data, true
}

func (c *ChartCache) Set(key Key, value []byte) {
	if err := c.cache.Set(key.bytes(), value, chartCacheExpire); err != nil {
		log.Warnf("chart cache set [%s], %d bytes: %s", key.BabyID, len(value), err)
	}
}

func (c *ChartCache) Clear() {
	c.cache.Clear()
}

func (c *ChartCache) EntryCount() int64 {
	return c.cache.EntryCount()
}
