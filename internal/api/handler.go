package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"computer-club-backend/internal/analytics"
	"computer-club-backend/internal/discount"
	"computer-club-backend/internal/events"
	"computer-club-backend/internal/logging"
	"computer-club-backend/internal/pricing"
	"computer-club-backend/internal/recommend"
	"computer-club-backend/internal/store"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Store       store.Store
	Prices      *pricing.Calculator
	Discounts   *discount.Service
	Recommender *recommend.Service
	Load        *analytics.LoadProfile
	Bus         events.Bus
	Webpush     *webpush.Options
	Zones       []string
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store       store.Store
	prices      *pricing.Calculator
	discounts   *discount.Service
	recommender *recommend.Service
	load        *analytics.LoadProfile
	bus         events.Bus
	webpush     *webpush.Options
	zones       map[string]bool
	log         zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	bus := deps.Bus
	if bus == nil {
		bus = events.NopBus{}
	}
	zones := make(map[string]bool, len(deps.Zones))
	for _, z := range deps.Zones {
		zones[z] = true
	}
	return &Handler{
		store:       deps.Store,
		prices:      deps.Prices,
		discounts:   deps.Discounts,
		recommender: deps.Recommender,
		load:        deps.Load,
		bus:         bus,
		webpush:     deps.Webpush,
		zones:       zones,
		log:         logging.Component("api"),
	}
}

// Health reports that the process is serving.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail writes the error response matching err.
func (h *Handler) fail(c *gin.Context, err error) {
	if ie := discount.IsInputError(err); ie != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": ie.Fields()})
		return
	}
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, recommend.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

var timeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTime reads an RFC 3339 timestamp, or a local timestamp in the club timezone.
func parseTime(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", raw)
}
