package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"computer-club-backend/internal/logging"
	"computer-club-backend/internal/mw"
)

// RouterConfig holds the HTTP middleware settings.
type RouterConfig struct {
	RateLimit rate.Limit
	Burst     int
	CacheTTL  time.Duration
	JWTSecret string
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = rate.Limit(10)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger(logging.Component("http")), mw.Metrics())

	rateLimiter := mw.RateLimiter(cfg.RateLimit, cfg.Burst)
	caching := mw.Cache(cache.New(cfg.CacheTTL, 2*cfg.CacheTTL), cfg.CacheTTL)
	admin := mw.AdminOnly(cfg.JWTSecret)

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/price", h.GetPrice)
		api.GET("/price-table", h.GetPriceTables)
		api.POST("/price-table", admin, h.PostPriceTable)
		api.GET("/price-table/dynamic", h.GetDynamicPriceTable)

		api.GET("/discounts", h.GetDiscounts)
		api.POST("/discounts", admin, h.PostDiscount)
		api.DELETE("/discounts/:id", admin, h.DeleteDiscount)

		api.GET("/recommendations/:userId", h.GetRecommendations)
		api.GET("/recommendations/filtered/:userId", h.GetFilteredRecommendations)
		api.GET("/user-profile/:userId", h.GetUserProfile)
		api.GET("/user-activity/:userId", h.GetUserActivity)

		api.GET("/predict-load", caching, h.GetLoadForecast)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
