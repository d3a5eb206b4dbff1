package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"computer-club-backend/internal/events"
	"computer-club-backend/internal/model"
)

// GetPrice handles GET /api/price?zone&duration&start.
func (h *Handler) GetPrice(c *gin.Context) {
	zone := c.Query("zone")
	if zone == "" {
		badRequest(c, errors.New("zone is required"))
		return
	}
	hours, err := strconv.Atoi(c.Query("duration"))
	if err != nil || hours <= 0 {
		badRequest(c, errors.New("duration must be a positive number of hours"))
		return
	}

	at := h.prices.Now()
	if raw := c.Query("start"); raw != "" {
		if at, err = parseTime(raw, h.prices.Location()); err != nil {
			badRequest(c, err)
			return
		}
	}

	price, err := h.prices.Price(c.Request.Context(), zone, hours, at)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"zone":     zone,
		"duration": hours,
		"start":    at.In(h.prices.Location()).Format(time.RFC3339),
		"price":    price,
	})
}

// GetPriceTables handles GET /api/price-table.
func (h *Handler) GetPriceTables(c *gin.Context) {
	tables, err := h.store.PriceTables(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if tables == nil {
		tables = []model.PriceTable{}
	}
	c.JSON(http.StatusOK, tables)
}

type priceTableRequest struct {
	Zone   string             `json:"zone" binding:"required"`
	Prices map[string]float64 `json:"prices" binding:"required"`
}

func (r priceTableRequest) table(zones map[string]bool) (model.PriceTable, error) {
	if !zones[r.Zone] {
		return model.PriceTable{}, fmt.Errorf("unknown zone %q", r.Zone)
	}
	if len(r.Prices) == 0 {
		return model.PriceTable{}, errors.New("prices must not be empty")
	}
	t := model.PriceTable{Zone: r.Zone, Prices: make(map[int]float64, len(r.Prices))}
	for k, v := range r.Prices {
		hours, err := strconv.Atoi(k)
		if err != nil || hours <= 0 {
			return model.PriceTable{}, fmt.Errorf("duration %q is not a positive number of hours", k)
		}
		if v < 0 {
			return model.PriceTable{}, fmt.Errorf("price for %d hours is negative", hours)
		}
		t.Prices[hours] = v
	}
	return t, nil
}

// PostPriceTable handles POST /api/price-table, replacing one zone's base prices.
func (h *Handler) PostPriceTable(c *gin.Context) {
	var req priceTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	table, err := req.table(h.zones)
	if err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.store.UpsertPriceTable(ctx, table); err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info().Str("zone", table.Zone).Int("tiers", len(table.Prices)).Msg("price table updated")
	h.pricesChanged(ctx, table.Zone)

	c.JSON(http.StatusOK, table)
}

func (h *Handler) pricesChanged(ctx context.Context, zone string) {
	h.prices.Invalidate("local")
	ev := events.Event{Kind: events.PriceTableUpdated, Zone: zone}
	if err := h.bus.Publish(ctx, ev); err != nil {
		h.log.Warn().Err(err).Str("zone", zone).Msg("failed to publish price table update")
	}
}

// GetDynamicPriceTable handles GET /api/price-table/dynamic[?at=...].
func (h *Handler) GetDynamicPriceTable(c *gin.Context) {
	var at time.Time
	if raw := c.Query("at"); raw != "" {
		var err error
		if at, err = parseTime(raw, h.prices.Location()); err != nil {
			badRequest(c, err)
			return
		}
	}

	table, err := h.prices.DynamicTable(c.Request.Context(), at)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}
