package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds runtime configuration for the API service. Values are
// read once at startup and never mutated afterwards.
type Config struct {
	Env         string
	HTTPPort    string
	MetricsAddr string

	// Shared secret checked against the x-api-key header.
	APIKey string

	// MetaTrader terminal bridge connection.
	MT5GatewayURL     string
	MT5Login          string
	MT5Password       string
	MT5Server         string
	MT5RequestTimeout time.Duration

	// Analysis parameters.
	AnalysisWindowDays int
	InitialEquity      float64

	// Daily report export. S3 is used when a bucket is set, the local
	// directory otherwise; empty dir and bucket disable export.
	ExportDir         string
	ExportS3Bucket    string
	ExportS3Region    string
	ExportS3Endpoint  string
	ExportS3PathStyle bool

	// Optional retention for terminal task records. Zero keeps records
	// for the life of the process.
	TaskTTL           time.Duration
	TaskSweepInterval time.Duration
}

// Load reads configuration from environment variables with sane defaults for local development.
func Load() Config {
	return Config{
		Env:                getEnv("APP_ENV", "dev"),
		HTTPPort:           getEnv("HTTP_PORT", "5000"),
		MetricsAddr:        getEnv("METRICS_ADDR", ":9090"),
		APIKey:             getEnv("API_KEY", ""),
		MT5GatewayURL:      getEnv("MT5_GATEWAY_URL", "http://localhost:6542"),
		MT5Login:           getEnv("MT5_LOGIN", ""),
		MT5Password:        getEnv("MT5_PASSWORD", ""),
		MT5Server:          getEnv("MT5_SERVER", ""),
		MT5RequestTimeout:  getEnvDuration("MT5_REQUEST_TIMEOUT", 30*time.Second),
		AnalysisWindowDays: getEnvInt("ANALYSIS_WINDOW_DAYS", 30),
		InitialEquity:      getEnvFloat("INITIAL_EQUITY", 10000),
		ExportDir:          getEnv("EXPORT_DIR", "./trade-data"),
		ExportS3Bucket:     getEnv("EXPORT_S3_BUCKET", ""),
		ExportS3Region:     getEnv("EXPORT_S3_REGION", "us-east-1"),
		ExportS3Endpoint:   getEnv("EXPORT_S3_ENDPOINT", ""),
		ExportS3PathStyle:  getEnvBool("EXPORT_S3_PATH_STYLE", false),
		TaskTTL:            getEnvDuration("TASK_TTL", 0),
		TaskSweepInterval:  getEnvDuration("TASK_SWEEP_INTERVAL", time.Minute),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
