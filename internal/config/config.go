package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pandal-finder/internal/calculator"
)

// Config holds all service settings. Values come from defaults, then an
// optional YAML file, then environment variables.
type Config struct {
	DatasetPath  string `yaml:"dataset_path"`
	DatasetSheet string `yaml:"dataset_sheet"`

	HTTPAddr        string        `yaml:"http_addr"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	TopK       int               `yaml:"top_k"`
	RoadFactor float64           `yaml:"road_factor"`
	NearbyKm   float64           `yaml:"nearby_km"`
	Region     calculator.Region `yaml:"region"`

	CacheTTL      time.Duration `yaml:"cache_ttl"`
	SessionSecret string        `yaml:"session_secret"`
	CORSOrigins   []string      `yaml:"cors_origins"`
	BatchDir      string        `yaml:"batch_dir"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		DatasetPath:     "pandal_loc2.csv",
		HTTPAddr:        ":8501",
		LogLevel:        "info",
		LogFormat:       "json",
		ShutdownTimeout: 10 * time.Second,
		TopK:            calculator.DefaultK,
		RoadFactor:      calculator.DefaultRoadFactor,
		NearbyKm:        calculator.DefaultNearbyKm,
		Region:          calculator.DefaultRegion,
		CacheTTL:        5 * time.Minute,
		SessionSecret:   "change-me-pandal-finder-session",
		CORSOrigins:     []string{"*"},
		BatchDir:        "batch",
	}
}

// Load builds the configuration. path may be empty to skip the YAML file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %q: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.DatasetPath, "DATASET_PATH")
	setString(&cfg.DatasetSheet, "DATASET_SHEET")
	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")
	setString(&cfg.SessionSecret, "SESSION_SECRET")
	setString(&cfg.BatchDir, "BATCH_DIR")

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	var errs []error
	errs = append(errs,
		setDuration(&cfg.ShutdownTimeout, "SHUTDOWN_TIMEOUT"),
		setDuration(&cfg.CacheTTL, "CACHE_TTL"),
		setInt(&cfg.TopK, "TOP_K"),
		setFloat(&cfg.RoadFactor, "ROAD_FACTOR"),
		setFloat(&cfg.NearbyKm, "NEARBY_KM"),
		setFloat(&cfg.Region.MinLat, "REGION_MIN_LAT"),
		setFloat(&cfg.Region.MaxLat, "REGION_MAX_LAT"),
		setFloat(&cfg.Region.MinLon, "REGION_MIN_LON"),
		setFloat(&cfg.Region.MaxLon, "REGION_MAX_LON"),
	)
	return errors.Join(errs...)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.DatasetPath == "":
		return errors.New("DATASET_PATH is required")
	case c.HTTPAddr == "":
		return errors.New("HTTP_ADDR is required")
	case c.TopK <= 0:
		return errors.New("TOP_K must be positive")
	case c.RoadFactor <= 0:
		return errors.New("ROAD_FACTOR must be positive")
	case c.NearbyKm <= 0:
		return errors.New("NEARBY_KM must be positive")
	case c.ShutdownTimeout <= 0:
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	case c.CacheTTL < 0:
		return errors.New("CACHE_TTL must not be negative")
	case c.Region.MinLat > c.Region.MaxLat || c.Region.MinLon > c.Region.MaxLon:
		return errors.New("region bounds are inverted")
	case c.SessionSecret == "":
		return errors.New("SESSION_SECRET is required")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
