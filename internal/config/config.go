package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type DB struct {
	User string
	Pass string
	Host string
	Port string
	Name string
}

type Worker struct {
	Interval        time.Duration   // Scheduler tick interval
	BatchSize       int             // Max tasks claimed per tick
	MaxRetries      int             // Default retry budget for new tasks
	BackoffSchedule []time.Duration // Retry backoff durations
	JitterPercent   float64         // Backoff jitter percentage (0.0-1.0)
	HTTPPort        string          // Worker HTTP metrics/health port
}

type Monitor struct {
	Interval            time.Duration // Metrics sampling interval
	PendingThreshold    int           // Alert above this many pending tasks
	FailedThreshold     int           // Alert above this many failed tasks
	FailureRateLimit    float64       // Alert above this failure ratio
	PublishAlertsToNSQ  bool          // Whether to publish alerts to NSQ
	NSQDTCPAddr         string        // e.g. nsqd:4150
	AlertsTopic         string        // NSQ topic for queue alerts
}

type Provider struct {
	BaseURL   string        // Integration platform base URL
	APIKey    string        // X-API-KEY header value
	APISecret string        // X-API-SECRET header value
	Timeout   time.Duration // Per-request timeout
}

type Config struct {
	AppName  string
	DB       DB
	Worker   Worker
	Monitor  Monitor
	Provider Provider
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func defaultBackoffSchedule() []time.Duration {
	return []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second, 1 * time.Minute, 4 * time.Minute, 10 * time.Minute}
}

func parseBackoffSchedule(schedule string) []time.Duration {
	if schedule == "" {
		return defaultBackoffSchedule()
	}

	parts := strings.Split(schedule, ",")
	durations := make([]time.Duration, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if d, err := time.ParseDuration(part); err == nil {
			durations = append(durations, d)
		}
	}

	if len(durations) == 0 {
		// Fallback to default if parsing failed
		return defaultBackoffSchedule()
	}

	return durations
}

func FromEnv() Config {
	return Config{
		AppName: getenv("APP_NAME", "boletoflow"),
		DB: DB{
			User: getenv("DB_USER", "postgres"),
			Pass: getenv("DB_PASS", "postgres"),
			Host: getenv("DB_HOST", "postgres"),
			Port: getenv("DB_PORT", "5432"),
			Name: getenv("DB_NAME", "boletoflow"),
		},
		Worker: Worker{
			Interval:        getenvDuration("WORKER_INTERVAL", time.Minute),
			BatchSize:       getenvInt("WORKER_BATCH_SIZE", 10),
			MaxRetries:      getenvInt("MAX_RETRIES", 3),
			BackoffSchedule: parseBackoffSchedule(getenv("BACKOFF_SCHEDULE", "")),
			JitterPercent:   getenvFloat("BACKOFF_JITTER_PCT", 0.25),
			HTTPPort:        ":" + getenv("WORKER_HTTP_PORT", "8082"),
		},
		Monitor: Monitor{
			Interval:           getenvDuration("MONITOR_INTERVAL", time.Minute),
			PendingThreshold:   getenvInt("MONITOR_PENDING_THRESHOLD", 100),
			FailedThreshold:    getenvInt("MONITOR_FAILED_THRESHOLD", 50),
			FailureRateLimit:   getenvFloat("MONITOR_FAILURE_RATE", 0.1),
			PublishAlertsToNSQ: getenvBool("PUBLISH_ALERTS_TOPIC", false),
			NSQDTCPAddr:        getenv("NSQD_TCP_ADDR", "nsqd:4150"),
			AlertsTopic:        getenv("NSQ_ALERTS_TOPIC", "task_alerts"),
		},
		Provider: Provider{
			BaseURL:   getenv("PROVIDER_URL", "http://integration:5678/webhook"),
			APIKey:    getenv("PROVIDER_API_KEY", ""),
			APISecret: getenv("PROVIDER_API_SECRET", ""),
			Timeout:   getenvDuration("PROVIDER_TIMEOUT", 15*time.Second),
		},
	}
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DB.User, c.DB.Pass, c.DB.Host, c.DB.Port, c.DB.Name)
}
