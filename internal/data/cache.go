package data

import (
	"os"
	"strings"
	"sync"
	"time"

	"market-backtest/internal/market"
	"market-backtest/internal/model"
)

// CacheEntry is one parsed price history held by SeriesCache.
type CacheEntry struct {
	Series    *model.Series
	ModTime   time.Time
	ExpiresAt time.Time
}

// SeriesCache keeps parsed price histories in memory so repeated API
// simulations over the same ticker skip the CSV parse.
//
// Entries expire after the TTL or as soon as the backing file's
// modification time changes. Series are immutable once built, so one
// cached value may be installed into many exchanges concurrently.
type SeriesCache struct {
	loader *CSVLoader
	ttl    time.Duration

	mu    sync.RWMutex
	store map[string]*CacheEntry

	stop chan struct{}
	once sync.Once
}

// NewSeriesCache wraps loader. A non-positive ttl defaults to one hour.
func NewSeriesCache(loader *CSVLoader, ttl time.Duration) *SeriesCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := &SeriesCache{
		loader: loader,
		ttl:    ttl,
		store:  make(map[string]*CacheEntry),
		stop:   make(chan struct{}),
	}
	go c.cleanup(cleanupInterval(ttl))
	return c
}

// Load implements market.Loader.
func (c *SeriesCache) Load(ticker string) (*model.Series, error) {
	key := strings.ToUpper(ticker)
	info, err := os.Stat(c.loader.Path(key))
	if err != nil {
		return nil, err
	}
	if s, ok := c.Get(key, info.ModTime()); ok {
		return s, nil
	}
	s, err := c.loader.Load(key)
	if err != nil {
		return nil, err
	}
	c.Set(key, s, info.ModTime())
	return s, nil
}

// Bounds loads through the cache, so the series is ready for the run that follows.
func (c *SeriesCache) Bounds(ticker string) (first, last model.Bar, err error) {
	s, err := c.Load(ticker)
	if err != nil {
		return first, last, err
	}
	first, ok := s.First()
	if !ok {
		return first, last, market.ErrNoData
	}
	last, _ = s.Last()
	return first, last, nil
}

// Get returns a cached series if it is fresh and was read from a file with modTime.
func (c *SeriesCache) Get(key string, modTime time.Time) (*model.Series, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.store[key]
	if !ok || time.Now().After(entry.ExpiresAt) || !entry.ModTime.Equal(modTime) {
		return nil, false
	}
	return entry.Series, true
}

func (c *SeriesCache) Set(key string, s *model.Series, modTime time.Time) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = &CacheEntry{Series: s, ModTime: modTime, ExpiresAt: time.Now().Add(c.ttl)}
}

func (c *SeriesCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Clear removes all entries.
func (c *SeriesCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[string]*CacheEntry)
}

// Close stops the background cleanup.
func (c *SeriesCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *SeriesCache) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.store {
				if now.After(entry.ExpiresAt) {
					delete(c.store, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl < 5*time.Minute {
		return ttl
	}
	return 5 * time.Minute
}

var _ market.Loader = (*SeriesCache)(nil)
var _ market.Loader = (*CSVLoader)(nil)
var _ market.BoundsReader = (*SeriesCache)(nil)
var _ market.BoundsReader = (*CSVLoader)(nil)
