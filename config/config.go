package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Club       ClubConfig       `yaml:"club"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Recommend  RecommendConfig  `yaml:"recommend"`
	Analytics  AnalyticsConfig  `yaml:"analytics"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// DatabaseConfig holds the database connection configuration.
// Driver is one of "postgres", "sqlite" or "mongo".
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MongoURI               string `yaml:"mongo_uri"`
	MongoDatabase          string `yaml:"mongo_database"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// ClubConfig describes the club itself: its local timezone and the category universe
// used when encoding devices.
type ClubConfig struct {
	Timezone    string         `yaml:"timezone"`
	Location    *time.Location `yaml:"-"`
	Zones       []string       `yaml:"zones"`
	DeviceTypes []string       `yaml:"device_types"`
}

// PricingConfig holds the price calculator settings.
type PricingConfig struct {
	MinPrice float64 `yaml:"min_price"`
}

// ReconcilerConfig holds the expired-discount cleanup schedule.
type ReconcilerConfig struct {
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
}

// RecommendConfig holds the recommendation engine settings.
type RecommendConfig struct {
	TopK            int           `yaml:"top_k"`
	HorizonHours    int           `yaml:"horizon_hours"`
	Horizon         time.Duration `yaml:"-"`
	DurationWeight  float64       `yaml:"duration_weight"`
	StartHourWeight float64       `yaml:"start_hour_weight"`
}

// AnalyticsConfig holds the load forecast settings.
type AnalyticsConfig struct {
	RefreshMinutes int           `yaml:"refresh_minutes"`
	Refresh        time.Duration `yaml:"-"`
	OpenHour       *int          `yaml:"open_hour"`
	CloseHour      int           `yaml:"close_hour"`
}

// RedisConfig holds the pub/sub connection used to fan out cache invalidations.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// AuthConfig holds the admin token settings. An empty secret disables the admin guard.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// LoggingConfig holds the zerolog settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the configuration from the given path, applies environment overrides and
// fills in defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied, as if loaded from an
// empty file.
func Default() *Config {
	var cfg Config
	// The default timezone is always loadable when tzdata is present.
	_ = cfg.applyDefaults()
	return &cfg
}

var envOverrides = []struct {
	name   string
	target func(*Config) *string
}{
	{"CLUB_DB_DSN", func(c *Config) *string { return &c.Database.DSN }},
	{"CLUB_DB_DRIVER", func(c *Config) *string { return &c.Database.Driver }},
	{"CLUB_MONGO_URI", func(c *Config) *string { return &c.Database.MongoURI }},
	{"CLUB_JWT_SECRET", func(c *Config) *string { return &c.Auth.JWTSecret }},
	{"CLUB_REDIS_ADDR", func(c *Config) *string { return &c.Redis.Addr }},
	{"CLUB_REDIS_PASSWORD", func(c *Config) *string { return &c.Redis.Password }},
	{"CLUB_VAPID_PUBLIC_KEY", func(c *Config) *string { return &c.Push.PublicKey }},
	{"CLUB_VAPID_PRIVATE_KEY", func(c *Config) *string { return &c.Push.PrivateKey }},
}

func applyEnv(cfg *Config) {
	for _, o := range envOverrides {
		if v, ok := os.LookupEnv(o.name); ok && v != "" {
			*o.target(cfg) = v
		}
	}
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.MongoDatabase == "" {
		cfg.Database.MongoDatabase = "computerClub"
	}

	if cfg.Club.Timezone == "" {
		cfg.Club.Timezone = "Europe/Kyiv"
	}
	loc, err := time.LoadLocation(cfg.Club.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load club timezone %q: %w", cfg.Club.Timezone, err)
	}
	cfg.Club.Location = loc
	if len(cfg.Club.Zones) == 0 {
		cfg.Club.Zones = []string{"Pro", "VIP", "PS"}
	}
	if len(cfg.Club.DeviceTypes) == 0 {
		cfg.Club.DeviceTypes = []string{"pc", "ps"}
	}

	if cfg.Pricing.MinPrice <= 0 {
		cfg.Pricing.MinPrice = 1
	}

	if cfg.Reconciler.IntervalSeconds <= 0 {
		cfg.Reconciler.IntervalSeconds = 60
	}
	cfg.Reconciler.Interval = time.Duration(cfg.Reconciler.IntervalSeconds) * time.Second

	if cfg.Recommend.TopK <= 0 {
		cfg.Recommend.TopK = 3
	}
	if cfg.Recommend.HorizonHours <= 0 {
		cfg.Recommend.HorizonHours = 48
	}
	cfg.Recommend.Horizon = time.Duration(cfg.Recommend.HorizonHours) * time.Hour
	if cfg.Recommend.DurationWeight <= 0 {
		cfg.Recommend.DurationWeight = 2.0
	}
	if cfg.Recommend.StartHourWeight <= 0 {
		cfg.Recommend.StartHourWeight = 1.5
	}

	if cfg.Analytics.RefreshMinutes <= 0 {
		cfg.Analytics.RefreshMinutes = 60
	}
	cfg.Analytics.Refresh = time.Duration(cfg.Analytics.RefreshMinutes) * time.Minute
	if cfg.Analytics.OpenHour == nil {
		openHour := 8
		cfg.Analytics.OpenHour = &openHour
	}
	if h := *cfg.Analytics.OpenHour; h < 0 || h > 23 {
		return fmt.Errorf("analytics open_hour %d is outside 0-23", h)
	}
	if cfg.Analytics.CloseHour <= 0 || cfg.Analytics.CloseHour > 24 {
		cfg.Analytics.CloseHour = 24
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "club:discounts"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	return nil
}
