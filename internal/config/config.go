package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/catchment-etl/internal/domain"
)

// Sink names accepted in SINKS.
const (
	SinkCSV   = "csv"
	SinkKafka = "kafka"
	SinkNone  = "none"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DataDir        string
	FilePattern    string
	DateColumn     string
	ColumnMappings []domain.ColumnMapping
	Window         domain.Window

	Models       []string
	SpinUpCycles int
	Concurrency  int

	Sinks          []string
	OutputDir      string
	KafkaBrokers   []string
	KafkaSinkTopic string

	CacheSize       int
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	RunOnce         bool
}

// Load reads configuration from environment variables, applying defaults where unset.
// Variables in the file named by ENV_FILE (default ".env") are loaded first
// without overriding the process environment.
func Load() (*Config, error) {
	if err := loadEnvFile(sharedcfg.EnvOrDefault("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	spinUp, err := parsePositiveInt("SPINUP_CYCLES", 10)
	if err != nil {
		return nil, err
	}
	concurrency, err := parsePositiveInt("CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("CACHE_SIZE", 64)
	if err != nil {
		return nil, err
	}
	runOnce, err := parseBool("RUN_ONCE", false)
	if err != nil {
		return nil, err
	}
	mappings, err := domain.ParseColumnMappings(os.Getenv("COLUMN_MAP"))
	if err != nil {
		return nil, fmt.Errorf("invalid COLUMN_MAP: %w", err)
	}
	window, err := domain.ParseWindow(
		sharedcfg.EnvOrDefault("WINDOW_START", domain.DefaultWindow().Start.Format(domain.DateLayout)),
		sharedcfg.EnvOrDefault("WINDOW_END", domain.DefaultWindow().End.Format(domain.DateLayout)),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid WINDOW_START/WINDOW_END: %w", err)
	}

	cfg := &Config{
		DataDir:        sharedcfg.EnvOrDefault("DATA_DIR", "data"),
		FilePattern:    sharedcfg.EnvOrDefault("FILE_PATTERN", "*.csv"),
		DateColumn:     sharedcfg.EnvOrDefault("DATE_COLUMN", domain.DefaultDateColumn),
		ColumnMappings: mappings,
		Window:         window,

		Models:       sharedcfg.ParseBrokers(strings.ToLower(sharedcfg.EnvOrDefault("MODELS", "hbv,hymod"))),
		SpinUpCycles: spinUp,
		Concurrency:  concurrency,

		Sinks:          sharedcfg.ParseBrokers(strings.ToLower(sharedcfg.EnvOrDefault("SINKS", SinkCSV))),
		OutputDir:      sharedcfg.EnvOrDefault("OUTPUT_DIR", "output"),
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "catchment-simulations"),

		CacheSize:       cacheSize,
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		RunOnce:         runOnce,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HasSink reports whether name is among the configured sinks.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

func (c *Config) validate() error {
	if len(c.Models) == 0 {
		return errors.New("MODELS is required")
	}
	if _, err := filepath.Match(c.FilePattern, ""); err != nil {
		return fmt.Errorf("invalid FILE_PATTERN: %w", err)
	}
	if len(c.Sinks) == 0 {
		return errors.New("SINKS is required")
	}
	for _, s := range c.Sinks {
		switch s {
		case SinkCSV, SinkKafka, SinkNone:
		default:
			return fmt.Errorf("invalid SINKS entry %q: want csv, kafka or none", s)
		}
	}
	if c.HasSink(SinkNone) && len(c.Sinks) > 1 {
		return errors.New("SINKS: none cannot be combined with other sinks")
	}
	if c.HasSink(SinkKafka) {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when SINKS includes kafka")
		}
		if c.KafkaSinkTopic == "" {
			return errors.New("KAFKA_SINK_TOPIC is required when SINKS includes kafka")
		}
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q: want json or text", c.LogFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	return nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}

