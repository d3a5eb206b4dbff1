package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"computer-club-backend/internal/logging"
	"computer-club-backend/internal/metrics"
	"computer-club-backend/internal/model"
	"computer-club-backend/internal/store"
)

// Options configures a Calculator.
type Options struct {
	Location *time.Location
	MinPrice float64
	Now      func() time.Time
}

// Calculator computes final booking prices from base tables and the discount resolver.
// It is safe for concurrent use.
type Calculator struct {
	prices   store.PriceReader
	resolver *Resolver
	cache    *Cache
	loc      *time.Location
	minPrice float64
	now      func() time.Time
	log      zerolog.Logger
}

// NewCalculator creates a Calculator with its own price cache.
func NewCalculator(prices store.PriceReader, resolver *Resolver, opts Options) *Calculator {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MinPrice <= 0 {
		opts.MinPrice = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Calculator{
		prices:   prices,
		resolver: resolver,
		cache:    NewCache(),
		loc:      opts.Location,
		minPrice: opts.MinPrice,
		now:      opts.Now,
		log:      logging.Component("pricing"),
	}
}

// Location returns the club timezone the calculator works in.
func (c *Calculator) Location() *time.Location {
	return c.loc
}

// Now returns the current time in the club timezone.
func (c *Calculator) Now() time.Time {
	return c.now().In(c.loc)
}

// Price returns the final price for booking zone for hours starting at at. A zero at
// means now. Moments are resolved per minute. Zones without a price table get the
// minimum price.
func (c *Calculator) Price(ctx context.Context, zone string, hours int, at time.Time) (float64, error) {
	if at.IsZero() {
		at = c.now()
	}
	at = at.In(c.loc).Truncate(time.Minute)

	prices, err := c.baseTable(ctx, zone)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.log.Warn().Str("zone", zone).Msg("no price table for zone, using minimum price")
			return c.minPrice, nil
		}
		return 0, err
	}

	tier, ok := TierFor(prices, hours)
	if !ok {
		c.log.Warn().Str("zone", zone).Msg("empty price table for zone, using minimum price")
		return c.minPrice, nil
	}

	key := cacheKey(zone, tier, at)
	if price, ok := c.cache.Get(key); ok {
		metrics.PriceCacheHits.Inc()
		return price, nil
	}
	metrics.PriceCacheMisses.Inc()

	discount, err := c.resolver.Resolve(ctx, zone, at)
	if err != nil {
		return 0, err
	}

	price := c.finalPrice(prices[tier], discount)
	c.cache.Set(key, price)
	return price, nil
}

// baseTable returns the base prices of zone, reading the store on a cache miss.
func (c *Calculator) baseTable(ctx context.Context, zone string) (map[int]float64, error) {
	if prices, ok := c.cache.Table(zone); ok {
		return prices, nil
	}
	table, err := c.prices.PriceTable(ctx, zone)
	if err != nil {
		return nil, err
	}
	c.cache.SetTable(zone, table.Prices)
	return table.Prices, nil
}

func (c *Calculator) finalPrice(base float64, discount *model.Discount) float64 {
	price := base
	if discount != nil {
		price = base * (1 - discount.DiscountPercentage/100)
	}
	price = math.Round(price*100) / 100
	if price < c.minPrice {
		price = c.minPrice
	}
	return price
}

// Tiers returns the durations offered for zone in ascending order.
func (c *Calculator) Tiers(ctx context.Context, zone string) ([]int, error) {
	table, err := c.prices.PriceTable(ctx, zone)
	if err != nil {
		return nil, err
	}
	return sortedTiers(table.Prices), nil
}

// DynamicTable prices every tier of every zone at the given moment.
func (c *Calculator) DynamicTable(ctx context.Context, at time.Time) (map[string]map[int]float64, error) {
	tables, err := c.prices.PriceTables(ctx)
	if err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = c.now()
	}

	out := make(map[string]map[int]float64, len(tables))
	for _, t := range tables {
		row := make(map[int]float64, len(t.Prices))
		for _, hours := range sortedTiers(t.Prices) {
			price, err := c.Price(ctx, t.Zone, hours, at)
			if err != nil {
				return nil, fmt.Errorf("failed to price %s for %d hours: %w", t.Zone, hours, err)
			}
			row[hours] = price
		}
		out[t.Zone] = row
	}
	return out, nil
}

// Invalidate drops every memoized price. origin labels the flush in metrics.
func (c *Calculator) Invalidate(origin string) {
	c.cache.Flush()
	metrics.PriceCacheFlushes.WithLabelValues(origin).Inc()
	c.log.Debug().Str("origin", origin).Msg("price cache flushed")
}

// TierFor returns the largest tier not exceeding hours, or the smallest tier when every
// tier is longer than hours.
func TierFor(prices map[int]float64, hours int) (int, bool) {
	if len(prices) == 0 {
		return 0, false
	}
	best, smallest := -1, math.MaxInt
	for tier := range prices {
		if tier <= hours && tier > best {
			best = tier
		}
		if tier < smallest {
			smallest = tier
		}
	}
	if best < 0 {
		return smallest, true
	}
	return best, true
}

// SnapTier returns the offered tier nearest to hours; ties go to the shorter tier.
func SnapTier(tiers []int, hours float64) (int, bool) {
	if len(tiers) == 0 {
		return 0, false
	}
	best := tiers[0]
	bestDist := math.Abs(float64(best) - hours)
	for _, t := range tiers[1:] {
		d := math.Abs(float64(t) - hours)
		if d < bestDist || (d == bestDist && t < best) {
			best, bestDist = t, d
		}
	}
	return best, true
}

func sortedTiers(prices map[int]float64) []int {
	tiers := make([]int, 0, len(prices))
	for t := range prices {
		tiers = append(tiers, t)
	}
	sort.Ints(tiers)
	return tiers
}
