package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// Config holds all configuration
type Config struct {
	HTTPAddr      string
	DashboardAddr string
	BackendURL    string
	Dispatcher    DispatcherConfig
	Simulation    SimulationConfig
	Poller        PollerConfig
	Redis         RedisConfig
	Log           LogConfig
	Metrics       MetricsConfig
}

// DispatcherConfig holds dispatch loop configuration
type DispatcherConfig struct {
	IntervalMs int
	Policy     string
	LogCap     int
	HistoryCap int
}

// SimulationConfig controls the simulated agent execution
type SimulationConfig struct {
	DelayScale    float64
	FailureRate   float64
	OfflineAgents []string
	Seed          int64
}

// PollerConfig holds dashboard poller configuration
type PollerConfig struct {
	IntervalSec int
	TimeoutSec  int
	Concurrency int
	AgentIDs    []string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Channel  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
	File   string
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool
}

// Interval returns the dispatch interval
func (c DispatcherConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// Interval returns the poll interval
func (c PollerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

// Timeout returns the per-request timeout
func (c PollerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// lookup returns the raw value for a setting, or "" when unset
type lookup func(envKey, section, key string) string

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := build(func(envKey, _, _ string) string {
		return os.Getenv(envKey)
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads from the INI file named by CONFIG_FILE, or from the environment alone
func LoadDefault() (*Config, error) {
	_ = godotenv.Load()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return LoadFromINI(path)
	}
	return Load()
}

// LoadFromINI loads configuration from INI file with environment variable override
func LoadFromINI(iniPath string) (*Config, error) {
	cfgFile, err := ini.Load(iniPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load INI file: %w", err)
	}

	// Priority: ENV > INI > default
	cfg := build(func(envKey, section, key string) string {
		if value := os.Getenv(envKey); value != "" {
			return value
		}
		return cfgFile.Section(section).Key(key).String()
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func build(get lookup) *Config {
	getValue := func(envKey, section, key, defaultValue string) string {
		if value := strings.TrimSpace(get(envKey, section, key)); value != "" {
			return value
		}
		return defaultValue
	}

	getValueInt := func(envKey, section, key string, defaultValue int) int {
		if value, err := strconv.Atoi(getValue(envKey, section, key, "")); err == nil {
			return value
		}
		return defaultValue
	}

	getValueFloat := func(envKey, section, key string, defaultValue float64) float64 {
		if value, err := strconv.ParseFloat(getValue(envKey, section, key, ""), 64); err == nil {
			return value
		}
		return defaultValue
	}

	getValueBool := func(envKey, section, key string, defaultValue bool) bool {
		if value, err := strconv.ParseBool(getValue(envKey, section, key, "")); err == nil {
			return value
		}
		return defaultValue
	}

	getValueList := func(envKey, section, key string) []string {
		var out []string
		for _, item := range strings.Split(getValue(envKey, section, key, ""), ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out
	}

	return &Config{
		HTTPAddr:      getValue("HTTP_ADDR", "http", "addr", ":8000"),
		DashboardAddr: getValue("DASHBOARD_ADDR", "http", "dashboard_addr", ":8050"),
		BackendURL:    getValue("BACKEND_URL", "dashboard", "backend_url", "http://localhost:8000"),
		Dispatcher: DispatcherConfig{
			IntervalMs: getValueInt("DISPATCH_INTERVAL_MS", "dispatcher", "interval_ms", 2000),
			Policy:     getValue("DISPATCH_POLICY", "dispatcher", "policy", "capability"),
			LogCap:     getValueInt("AGENT_LOG_CAP", "dispatcher", "log_cap", 50),
			HistoryCap: getValueInt("TASK_HISTORY_CAP", "dispatcher", "history_cap", 100),
		},
		Simulation: SimulationConfig{
			DelayScale:    getValueFloat("SIM_DELAY_SCALE", "simulation", "delay_scale", 1),
			FailureRate:   getValueFloat("SIM_FAILURE_RATE", "simulation", "failure_rate", 0),
			OfflineAgents: getValueList("SIM_OFFLINE_AGENTS", "simulation", "offline_agents"),
			Seed:          int64(getValueInt("SIM_SEED", "simulation", "seed", 0)),
		},
		Poller: PollerConfig{
			IntervalSec: getValueInt("POLL_INTERVAL_SEC", "poller", "interval_sec", 5),
			TimeoutSec:  getValueInt("POLL_TIMEOUT_SEC", "poller", "timeout_sec", 5),
			Concurrency: getValueInt("POLL_CONCURRENCY", "poller", "concurrency", 4),
			AgentIDs:    getValueList("POLL_AGENT_IDS", "poller", "agent_ids"),
		},
		Redis: RedisConfig{
			Enabled:  getValueBool("REDIS_ENABLED", "redis", "enabled", false),
			Addr:     getValue("REDIS_ADDR", "redis", "addr", "localhost:6379"),
			Password: getValue("REDIS_PASS", "redis", "pass", ""),
			DB:       getValueInt("REDIS_DB", "redis", "db", 0),
			Channel:  getValue("REDIS_CHANNEL", "redis", "channel", "agentdash:events"),
		},
		Log: LogConfig{
			Level:  getValue("LOG_LEVEL", "log", "level", "info"),
			Format: getValue("LOG_FORMAT", "log", "format", "text"),
			File:   getValue("LOG_FILE", "log", "file", ""),
		},
		Metrics: MetricsConfig{
			Enabled: getValueBool("METRICS_ENABLED", "metrics", "enabled", true),
		},
	}
}

// Validate checks the settings shared by both processes
func (c *Config) Validate() error {
	if c.Dispatcher.IntervalMs <= 0 {
		return fmt.Errorf("DISPATCH_INTERVAL_MS must be positive")
	}
	if c.Dispatcher.Policy != "capability" && c.Dispatcher.Policy != "random" {
		return fmt.Errorf("DISPATCH_POLICY must be capability or random, got %q", c.Dispatcher.Policy)
	}
	if c.Simulation.FailureRate < 0 || c.Simulation.FailureRate > 1 {
		return fmt.Errorf("SIM_FAILURE_RATE must be within [0,1]")
	}
	if c.Simulation.DelayScale < 0 {
		return fmt.Errorf("SIM_DELAY_SCALE must not be negative")
	}
	if c.Poller.IntervalSec <= 0 {
		return fmt.Errorf("POLL_INTERVAL_SEC must be positive")
	}
	if c.Poller.TimeoutSec <= 0 {
		return fmt.Errorf("POLL_TIMEOUT_SEC must be positive")
	}
	if c.Poller.Concurrency <= 0 {
		return fmt.Errorf("POLL_CONCURRENCY must be positive")
	}
	return nil
}

// ValidateDashboard checks the settings the dashboard process needs
func (c *Config) ValidateDashboard() error {
	if !strings.HasPrefix(c.BackendURL, "http://") && !strings.HasPrefix(c.BackendURL, "https://") {
		return fmt.Errorf("BACKEND_URL must be an http(s) URL, got %q", c.BackendURL)
	}
	return nil
}
