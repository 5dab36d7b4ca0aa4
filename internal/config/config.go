package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/transitpi/farebox/internal/farebox/fare"
)

type Config struct {
	// Viewer
	HTTPAddr        string
	MaxRecentEvents int
	MaxRecentTrips  int

	// Ingester
	SourcePath  string // serial device path, or "-" for stdin
	Transport   string // "serial" | "nats"
	NATSURL     string
	NATSSubject string
	MetricsAddr string // empty disables the /metrics server

	// Durable logs and lookups
	EventLogPath  string
	TripLogPath   string
	DirectoryPath string

	// Archival mirror
	Mirror bool
	DBPath string

	Fare fare.Policy
}

// FromEnv loads configuration from FAREBOX_* environment variables,
// after merging a .env file if one is present. Unset values fall back
// to the deployed vehicle's defaults.
func FromEnv() (Config, error) {
	// Missing .env is the normal case outside dev.
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:        getenvDefault("FAREBOX_HTTP_ADDR", ":5000"),
		MaxRecentEvents: getenvInt("FAREBOX_MAX_RECENT_EVENTS", 50),
		MaxRecentTrips:  getenvInt("FAREBOX_MAX_RECENT_TRIPS", 100),

		SourcePath:  getenvDefault("FAREBOX_SOURCE", "/dev/ttyUSB0"),
		Transport:   strings.ToLower(getenvDefault("FAREBOX_TRANSPORT", "serial")),
		NATSURL:     os.Getenv("FAREBOX_NATS_URL"),
		NATSSubject: getenvDefault("FAREBOX_NATS_SUBJECT", "farebox.records"),
		MetricsAddr: os.Getenv("FAREBOX_METRICS_ADDR"),

		EventLogPath:  getenvDefault("FAREBOX_EVENT_LOG", "events_log.csv"),
		TripLogPath:   getenvDefault("FAREBOX_TRIP_LOG", "trip_log.csv"),
		DirectoryPath: getenvDefault("FAREBOX_DIRECTORY", "rfid_db.csv"),

		Mirror: getenvBool("FAREBOX_MIRROR", true),
		DBPath: getenvDefault("FAREBOX_DB_PATH", "./data/farebox.db"),

		Fare: fare.Default(),
	}

	if cfg.Transport != "serial" && cfg.Transport != "nats" {
		return Config{}, fmt.Errorf("unknown transport %q (want serial or nats)", cfg.Transport)
	}
	if cfg.Transport == "nats" && cfg.NATSURL == "" {
		return Config{}, fmt.Errorf("FAREBOX_NATS_URL is required with the nats transport")
	}

	if path := os.Getenv("FAREBOX_FARES_FILE"); path != "" {
		policy, err := loadFares(path)
		if err != nil {
			return Config{}, err
		}
		cfg.Fare = policy
	}

	return cfg, nil
}

// faresFile is the on-disk fare schedule shape. All fields optional;
// unset ones keep the default policy's value.
type faresFile struct {
	Base        *float64 `yaml:"base" validate:"omitempty,gte=0"`
	BaseMinutes *float64 `yaml:"base_minutes" validate:"omitempty,gte=0"`
	PerMinute   *float64 `yaml:"per_minute" validate:"omitempty,gte=0"`
}

func loadFares(path string) (fare.Policy, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return fare.Policy{}, fmt.Errorf("read fares file %s: %w", path, err)
	}
	var f faresFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fare.Policy{}, fmt.Errorf("parse fares file %s: %w", path, err)
	}
	if err := validator.New().Struct(&f); err != nil {
		return fare.Policy{}, fmt.Errorf("invalid fares file %s: %w", path, err)
	}

	policy := fare.Default()
	if f.Base != nil {
		policy.Base = *f.Base
	}
	if f.BaseMinutes != nil {
		policy.BaseMinutes = *f.BaseMinutes
	}
	if f.PerMinute != nil {
		policy.PerMinute = *f.PerMinute
	}
	return policy, nil
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
