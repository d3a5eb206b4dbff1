package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"computer-club-backend/config"
	"computer-club-backend/internal/analytics"
	"computer-club-backend/internal/api"
	"computer-club-backend/internal/db"
	"computer-club-backend/internal/discount"
	"computer-club-backend/internal/events"
	"computer-club-backend/internal/logging"
	"computer-club-backend/internal/notification"
	"computer-club-backend/internal/pricing"
	"computer-club-backend/internal/recommend"
	"computer-club-backend/internal/reconcile"
	"computer-club-backend/internal/schedule"
	"computer-club-backend/internal/store"
)

// initialLoadDelay postpones the first load profile build so startup is not slowed by
// a full scan of the booking history.
const initialLoadDelay = 10 * time.Second

func main() {
	// Local development keeps secrets in .env; a missing file is fine.
	_ = godotenv.Load()

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log := logging.Component("main")
	log.Info().Str("path", configPath).Str("timezone", cfg.Club.Timezone).Msg("configuration loaded")

	// Create a context that is cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appStore, closeStore, err := openStore(ctx, &cfg.Database, cfg.Club.Location)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to initialize store")
	}
	defer closeStore()
	log.Info().Str("driver", cfg.Database.Driver).Msg("data store initialized")

	bus, closeBus := openBus(&cfg.Redis, log)
	defer closeBus()

	loc := cfg.Club.Location
	prices := pricing.NewCalculator(appStore, pricing.NewResolver(appStore, loc), pricing.Options{
		Location: loc,
		MinPrice: cfg.Pricing.MinPrice,
	})

	var webpushOptions *webpush.Options
	var discountOpts []discount.Option
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions).InLocation(loc)
		pool.Start(ctx)
		discountOpts = append(discountOpts, discount.WithAnnouncer(pool))
	} else {
		log.Warn().Msg("VAPID keys are not configured, discount announcements are disabled")
	}
	discounts := discount.NewService(appStore, cfg.Club.Zones, loc, prices, bus, discountOpts...)

	reconciler := reconcile.NewService(appStore, loc, reconcile.OnDelete(func(ctx context.Context, ids []string) {
		prices.Invalidate("local")
		if err := bus.Publish(ctx, events.Event{Kind: events.DiscountsExpired}); err != nil {
			log.Warn().Err(err).Int("count", len(ids)).Msg("failed to publish expired discounts")
		}
	}))
	// Discounts may have expired while the process was down.
	if _, err := reconciler.ReconcileOnce(ctx); err != nil {
		log.Error().Err(err).Msg("initial reconciliation failed")
	}

	recommender := recommend.NewService(appStore, prices,
		recommend.NewEncoder(cfg.Club.Zones, cfg.Club.DeviceTypes),
		recommend.Options{
			Location: loc,
			TopK:     cfg.Recommend.TopK,
			Horizon:  cfg.Recommend.Horizon,
			FilteredWeights: recommend.Weights{
				Duration:  cfg.Recommend.DurationWeight,
				StartHour: cfg.Recommend.StartHourWeight,
			},
		})
	load := analytics.NewLoadProfile(appStore, cfg.Club.Zones, loc, *cfg.Analytics.OpenHour, cfg.Analytics.CloseHour)

	// Initialize router
	handler := api.NewHandler(api.Deps{
		Store:       appStore,
		Prices:      prices,
		Discounts:   discounts,
		Recommender: recommender,
		Load:        load,
		Bus:         bus,
		Webpush:     webpushOptions,
		Zones:       cfg.Club.Zones,
	})
	router := api.NewRouter(handler, api.RouterConfig{
		RateLimit: rate.Limit(cfg.Server.RateLimitPerSec),
		Burst:     cfg.Server.RateLimitBurst,
		CacheTTL:  time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
		JWTSecret: cfg.Auth.JWTSecret,
	})
	if cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("auth.jwt_secret is empty, admin routes are unprotected")
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           corsHandler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tree := schedule.NewTree("clubd", schedule.TreeConfig{})
	tree.Add(schedule.Every("discount-reconciler", cfg.Reconciler.Interval, reconciler.Run))
	tree.Add(schedule.At("load-profile-initial", time.Now().Add(initialLoadDelay), load.Run))
	tree.Add(schedule.Every("load-profile", cfg.Analytics.Refresh, load.Run))
	tree.Add(schedule.Func("event-listener", func(ctx context.Context) error {
		return bus.Listen(ctx, func(ev events.Event) {
			log.Debug().Str("kind", ev.Kind).Str("origin", ev.Origin).Msg("remote change received")
			prices.Invalidate("remote")
		})
	}))
	tree.Add(schedule.NewHTTPService(server, 5*time.Second))

	log.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("supervisor stopped")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			log.Warn().Str("service", svc.Name).Msg("service did not stop in time")
		}
	}
	log.Info().Msg("server gracefully stopped")
}

// openStore connects the configured backend and returns a cleanup func.
func openStore(ctx context.Context, cfg *config.DatabaseConfig, loc *time.Location) (store.Store, func(), error) {
	if cfg.Driver == "mongo" {
		client, database, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return store.NewMongoStore(database, loc), func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(shutdownCtx)
		}, nil
	}

	gormDB, err := db.Init(cfg)
	if err != nil {
		return nil, nil, err
	}
	return store.NewGormStore(gormDB), func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}, nil
}

// openBus returns the redis event bus, or a no-op bus for a single replica.
func openBus(cfg *config.RedisConfig, log zerolog.Logger) (events.Bus, func()) {
	if !cfg.Enabled {
		return events.NopBus{}, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	log.Info().Str("addr", cfg.Addr).Str("channel", cfg.Channel).Msg("redis event bus enabled")
	return events.NewRedisBus(client, cfg.Channel), func() { _ = client.Close() }
}
