package pricing

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// minuteLayout is the resolution of discount clock windows, so two moments in the same
// minute always resolve to the same price.
const minuteLayout = "2006-01-02T15:04"

// cacheTTL bounds how long a memoized entry lives; stale entries are swept by the
// go-cache janitor.
const cacheTTL = 10 * time.Minute

// Cache memoizes base price tables by zone and final prices by zone, tier and minute.
// Flush must be called whenever discounts or price tables change.
type Cache struct {
	items  *cache.Cache
	tables *cache.Cache
}

// NewCache creates an empty price cache.
func NewCache() *Cache {
	return &Cache{
		items:  cache.New(cacheTTL, 2*cacheTTL),
		tables: cache.New(cacheTTL, 2*cacheTTL),
	}
}

func cacheKey(zone string, tier int, at time.Time) string {
	return fmt.Sprintf("%s|%d|%s", zone, tier, at.Format(minuteLayout))
}

// Table returns the memoized base prices of zone.
func (c *Cache) Table(zone string) (map[int]float64, bool) {
	v, ok := c.tables.Get(zone)
	if !ok {
		return nil, false
	}
	prices, ok := v.(map[int]float64)
	return prices, ok
}

// SetTable stores the base prices of zone.
func (c *Cache) SetTable(zone string, prices map[int]float64) {
	c.tables.SetDefault(zone, prices)
}

// Get returns the memoized price for key.
func (c *Cache) Get(key string) (float64, bool) {
	v, ok := c.items.Get(key)
	if !ok {
		return 0, false
	}
	price, ok := v.(float64)
	return price, ok
}

// Set stores a price under key.
func (c *Cache) Set(key string, price float64) {
	c.items.SetDefault(key, price)
}

// Flush drops every memoized price.
func (c *Cache) Flush() {
	c.items.Flush()
	c.tables.Flush()
}

// Len returns the number of memoized final prices.
func (c *Cache) Len() int {
	return c.items.ItemCount()
}
