package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	LogLevel        string        `yaml:"log_level"`
}

// Resolver configures the identity wallet the searches are resolved against.
type Resolver struct {
	WalletURL  string        `yaml:"wallet_url"`
	Timeout    time.Duration `yaml:"timeout"`
	Originator string        `yaml:"originator"`
}

// Search configures the search coordinator and its cache.
type Search struct {
	Debounce      time.Duration `yaml:"debounce"`
	CacheCapacity int           `yaml:"cache_capacity"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	Deduplicate   bool          `yaml:"deduplicate"`
	MaxBatch      int           `yaml:"max_batch"`
}

// RedisConfig configures the optional shared resolution cache.
// An empty URL disables it.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// Events configures the optional Kafka sink for selection events.
// No brokers means selections are only logged.
type Events struct {
	Brokers        []string `yaml:"brokers"`
	SelectionTopic string   `yaml:"selection_topic"`
}

// Config is the full application configuration.
type Config struct {
	Server   Server      `yaml:"server"`
	Resolver Resolver    `yaml:"resolver"`
	Search   Search      `yaml:"search"`
	Redis    RedisConfig `yaml:"redis"`
	Events   Events      `yaml:"events"`
}

// SearchCacheTTL is how long a resolved query stays servable from cache.
var SearchCacheTTL = 5 * time.Minute

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			LogLevel:        "info",
		},
		Resolver: Resolver{
			WalletURL:  "http://localhost:3321",
			Timeout:    10 * time.Second,
			Originator: "idsearch",
		},
		Search: Search{
			Debounce:      300 * time.Millisecond,
			CacheCapacity: 100,
			CacheTTL:      SearchCacheTTL,
			Deduplicate:   true,
			MaxBatch:      50,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			CacheTTL:     SearchCacheTTL,
		},
		Events: Events{
			SelectionTopic: "identity.selected",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a Config from defaults and environment variables so main
// stays lean. IDSEARCH_CONFIG optionally names a YAML file.
func FromEnv() (Config, error) {
	return Load(os.Getenv("IDSEARCH_CONFIG"))
}

// Validate rejects settings the search pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Search.Debounce <= 0 {
		errs = append(errs, errors.New("search.debounce must be positive"))
	}
	if c.Search.CacheCapacity <= 0 {
		errs = append(errs, errors.New("search.cache_capacity must be positive"))
	}
	if c.Search.CacheTTL <= 0 {
		errs = append(errs, errors.New("search.cache_ttl must be positive"))
	}
	if c.Search.MaxBatch <= 0 {
		errs = append(errs, errors.New("search.max_batch must be positive"))
	}
	if c.Resolver.WalletURL == "" {
		errs = append(errs, errors.New("resolver.wallet_url is required"))
	}
	if c.Resolver.Timeout <= 0 {
		errs = append(errs, errors.New("resolver.timeout must be positive"))
	}
	if len(c.Events.Brokers) > 0 && c.Events.SelectionTopic == "" {
		errs = append(errs, errors.New("events.selection_topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}

func applyEnv(cfg *Config) error {
	var errs []error

	setString(&cfg.Server.Addr, "IDSEARCH_ADDR")
	setString(&cfg.Server.LogLevel, "LOG_LEVEL")
	setList(&cfg.Server.AllowedOrigins, "IDSEARCH_ALLOWED_ORIGINS")

	setString(&cfg.Resolver.WalletURL, "IDENTITY_WALLET_URL")
	setString(&cfg.Resolver.Originator, "IDENTITY_ORIGINATOR")
	errs = append(errs, setDuration(&cfg.Resolver.Timeout, "IDENTITY_RESOLVE_TIMEOUT"))

	errs = append(errs,
		setDuration(&cfg.Search.Debounce, "SEARCH_DEBOUNCE"),
		setInt(&cfg.Search.CacheCapacity, "SEARCH_CACHE_CAPACITY"),
		setDuration(&cfg.Search.CacheTTL, "SEARCH_CACHE_TTL"),
		setBool(&cfg.Search.Deduplicate, "SEARCH_DEDUPLICATE"),
	)

	setString(&cfg.Redis.URL, "REDIS_URL")
	errs = append(errs, setDuration(&cfg.Redis.CacheTTL, "REDIS_CACHE_TTL"))

	setList(&cfg.Events.Brokers, "KAFKA_BROKERS")
	setString(&cfg.Events.SelectionTopic, "KAFKA_SELECTION_TOPIC")

	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
