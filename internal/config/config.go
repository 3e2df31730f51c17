package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "FREIGHT_TRACKER_CONFIG"
	databasePathEnv   = "FREIGHT_TRACKER_DB"
	logLevelEnv       = "FREIGHT_TRACKER_LOG_LEVEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Carrier adapter types understood by the factory.
const (
	CarrierTypeHTML = "html"
	CarrierTypeDCSA = "dcsa"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Pool          PoolConfig         `yaml:"pool"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Watch         WatchConfig        `yaml:"watch"`
	Notifications NotificationConfig `yaml:"notifications"`
	Diagnostics   DiagnosticsConfig  `yaml:"diagnostics"`
	Server        ServerConfig       `yaml:"server"`
	Carriers      []CarrierConfig    `yaml:"carriers"`
}

// LoggingConfig selects slog level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig points at the SQLite history file. Empty disables persistence.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// PoolConfig sizes the session pool leased to carrier adapters.
type PoolConfig struct {
	Size           int           `yaml:"size"`
	UserAgent      string        `yaml:"userAgent"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	MaxUses        int           `yaml:"maxUses"`
	ProbeURL       string        `yaml:"probeUrl"`
}

// SchedulerConfig defines how often watched shipments are refreshed.
type SchedulerConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// WatchConfig lists the tracking numbers refreshed by the watch command.
type WatchConfig struct {
	TrackingNumbers []string `yaml:"trackingNumbers"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// DiagnosticsConfig says where timeout artifacts are written. Empty disables capture.
type DiagnosticsConfig struct {
	Dir string `yaml:"dir"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr     string `yaml:"addr"`
	BasePath string `yaml:"basePath"`
}

// RetryConfig bounds the adapter-internal retry of a single carrier request.
type RetryConfig struct {
	Attempts  int           `yaml:"attempts"`
	BaseDelay time.Duration `yaml:"baseDelay"`
	MaxDelay  time.Duration `yaml:"maxDelay"`
}

// HTMLSelectorConfig locates tracking data on a server-rendered result page.
type HTMLSelectorConfig struct {
	Rows          string `yaml:"rows"`
	Description   string `yaml:"description"`
	Location      string `yaml:"location"`
	Timestamp     string `yaml:"timestamp"`
	Qualifier     string `yaml:"qualifier"`
	Pol           string `yaml:"pol"`
	Pod           string `yaml:"pod"`
	Etd           string `yaml:"etd"`
	Eta           string `yaml:"eta"`
	BookingNo     string `yaml:"bookingNo"`
	BlNumber      string `yaml:"blNumber"`
	BookingStatus string `yaml:"bookingStatus"`
	NotFound      string `yaml:"notFound"`
}

// CarrierConfig describes a single carrier source with its adapter type. Order is tracking order.
type CarrierConfig struct {
	Name        string             `yaml:"name"`
	Type        string             `yaml:"type"`
	URL         string             `yaml:"url"`
	Timeout     time.Duration      `yaml:"timeout"`
	Timezone    string             `yaml:"timezone"`
	DateLayouts []string           `yaml:"dateLayouts"`
	Headers     map[string]string  `yaml:"headers"`
	Retry       RetryConfig        `yaml:"retry"`
	HTML        HTMLSelectorConfig `yaml:"html"`
}

// Location resolves the carrier's local timezone, defaulting to UTC.
func (c CarrierConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Load reads YAML configuration (if present) and applies environment overrides.
// path wins over the FREIGHT_TRACKER_CONFIG environment variable.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if fileCfg, err := Parse(raw); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		} else {
			cfg = mergeConfig(cfg, fileCfg)
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Parse decodes a YAML document without applying defaults.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration mistakes that would make tracking impossible.
func (c Config) Validate() error {
	seen := map[string]bool{}
	for i, carrier := range c.Carriers {
		if strings.TrimSpace(carrier.Name) == "" {
			return fmt.Errorf("carriers[%d]: name is required", i)
		}
		if seen[carrier.Name] {
			return fmt.Errorf("carriers[%d]: duplicate carrier name %s", i, carrier.Name)
		}
		seen[carrier.Name] = true

		if carrier.URL == "" {
			return fmt.Errorf("carrier %s: url is required", carrier.Name)
		}
		if _, err := carrier.Location(); err != nil {
			return fmt.Errorf("carrier %s: %w", carrier.Name, err)
		}

		switch carrier.Type {
		case CarrierTypeHTML:
			if carrier.HTML.Rows == "" || carrier.HTML.Timestamp == "" {
				return fmt.Errorf("carrier %s: html.rows and html.timestamp selectors are required", carrier.Name)
			}
		case CarrierTypeDCSA:
		default:
			return fmt.Errorf("carrier %s: unknown type %q", carrier.Name, carrier.Type)
		}
	}

	if c.Pool.Size <= 0 {
		return fmt.Errorf("pool.size must be positive")
	}
	return nil
}

// CarrierNames lists configured carriers in tracking order.
func (c Config) CarrierNames() []string {
	names := make([]string, 0, len(c.Carriers))
	for _, carrier := range c.Carriers {
		names = append(names, carrier.Name)
	}
	return names
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if override.Pool.Size > 0 {
		base.Pool.Size = override.Pool.Size
	}
	if override.Pool.UserAgent != "" {
		base.Pool.UserAgent = override.Pool.UserAgent
	}
	if override.Pool.RequestTimeout > 0 {
		base.Pool.RequestTimeout = override.Pool.RequestTimeout
	}
	if override.Pool.MaxUses > 0 {
		base.Pool.MaxUses = override.Pool.MaxUses
	}
	if override.Pool.ProbeURL != "" {
		base.Pool.ProbeURL = override.Pool.ProbeURL
	}

	if override.Scheduler.Interval > 0 {
		base.Scheduler.Interval = override.Scheduler.Interval
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if len(override.Watch.TrackingNumbers) > 0 {
		base.Watch = override.Watch
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Diagnostics.Dir != "" {
		base.Diagnostics = override.Diagnostics
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if override.Server.BasePath != "" {
		base.Server.BasePath = override.Server.BasePath
	}

	if len(override.Carriers) > 0 {
		base.Carriers = override.Carriers
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Path: "freighttracker.db"},
		Pool: PoolConfig{
			Size:           4,
			UserAgent:      "FreightTracker/1.0",
			RequestTimeout: 30 * time.Second,
			MaxUses:        50,
		},
		Scheduler:   SchedulerConfig{Interval: 6 * time.Hour, Timezone: defaultTimezone, location: tz},
		Diagnostics: DiagnosticsConfig{Dir: "diagnostics"},
		Server:      ServerConfig{Addr: ":8080", BasePath: "/v1"},
	}
}
