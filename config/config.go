package config

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golobby/config/v3"
	"github.com/golobby/config/v3/pkg/feeder"
)

const (
	defaultAddr       = ":8080"
	defaultPageSize   = 20
	defaultSessionTTL = 60
	defaultDBDriver   = "sqlite"
	defaultDBPath     = "explorer.db"
	defaultTwitchAPI  = "https://api.twitch.tv"
	defaultTwitchAuth = "https://id.twitch.tv"

	BackendMemory = "memory"
	BackendSQL    = "sql"
)

type Config struct {
	Database DatabaseConfig
	Explorer ExplorerConfig
	Pushover PushoverConfig
	Twitch   TwitchConfig
}

type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER"`
	Path   string `env:"DB_PATH"`
}

type ExplorerConfig struct {
	Addr           string `env:"EXPLORER_ADDR"`
	AllowedOrigins string `env:"EXPLORER_ALLOWED_ORIGINS"`
	ArtworkPalette bool   `env:"EXPLORER_ARTWORK_PALETTE"`
	LogLevel       string `env:"LOG_LEVEL"`
	PageSize       int    `env:"EXPLORER_PAGE_SIZE"`
	SessionBackend string `env:"EXPLORER_SESSION_BACKEND"`
	SessionTTL     int    `env:"EXPLORER_SESSION_TTL_MINUTES"`
}

type PushoverConfig struct {
	Recipient string `env:"PUSHOVER_RECIPIENT"`
	Token     string `env:"PUSHOVER_TOKEN"`
}

type TwitchConfig struct {
	APIURL       string `env:"TWITCH_API_URL"`
	AuthURL      string `env:"TWITCH_AUTH_URL"`
	ClientId     string `env:"TWITCH_CLIENT_ID"`
	ClientSecret string `env:"TWITCH_CLIENT_SECRET"`
}

// Load feeds a Config from the process environment. Callers are expected
// to have loaded any .env file beforehand.
func Load() (Config, error) {
	var cfg Config
	c := config.New()
	c.AddFeeder(feeder.Env{})
	c.AddStruct(&cfg)
	if err := c.Feed(); err != nil {
		return cfg, err
	}
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) ApplyDefaults() {
	if c.Explorer.Addr == "" {
		c.Explorer.Addr = defaultAddr
	}
	if c.Explorer.PageSize <= 0 {
		c.Explorer.PageSize = defaultPageSize
	}
	if c.Explorer.SessionTTL <= 0 {
		c.Explorer.SessionTTL = defaultSessionTTL
	}
	if c.Explorer.SessionBackend == "" {
		c.Explorer.SessionBackend = BackendMemory
	}
	if c.Database.Driver == "" {
		c.Database.Driver = defaultDBDriver
	}
	if c.Database.Path == "" {
		c.Database.Path = defaultDBPath
	}
	if c.Twitch.APIURL == "" {
		c.Twitch.APIURL = defaultTwitchAPI
	}
	if c.Twitch.AuthURL == "" {
		c.Twitch.AuthURL = defaultTwitchAuth
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Twitch.ClientId == "" {
		errs = append(errs, errors.New("TWITCH_CLIENT_ID must be provided"))
	}
	if c.Twitch.ClientSecret == "" {
		errs = append(errs, errors.New("TWITCH_CLIENT_SECRET must be provided"))
	}
	switch c.Explorer.SessionBackend {
	case BackendMemory, BackendSQL:
	default:
		errs = append(errs, errors.New("EXPLORER_SESSION_BACKEND must be one of memory or sql"))
	}
	if c.Explorer.PageSize > 100 {
		errs = append(errs, errors.New("EXPLORER_PAGE_SIZE can not exceed 100"))
	}
	return errors.Join(errs...)
}

// Origins splits the comma separated list of allowed CORS origins.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.Explorer.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// SessionLifetime is how long an idle session keeps its token and gallery.
func (c *Config) SessionLifetime() time.Duration {
	return time.Duration(c.Explorer.SessionTTL) * time.Minute
}

func (c *Config) PushoverEnabled() bool {
	return c.Pushover.Token != "" && c.Pushover.Recipient != ""
}

func (c *Config) GetLogLevel() slog.Leveler {
	logLevel := strings.ToLower(c.Explorer.LogLevel)
	if logLevel == "error" {
		return slog.LevelError
	}
	if logLevel == "warning" {
		return slog.LevelWarn
	}
	if logLevel == "info" {
		return slog.LevelInfo
	}
	if logLevel == "debug" {
		return slog.LevelDebug
	}
	// default to info if unknown
	slog.With(slog.String("log_level", logLevel)).Info("Received invalid log level. Defaulting to INFO.")
	return slog.LevelInfo
}
