package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Port            string
	HTTPBindAddr    string
	APIEnabled      bool
	Environment     string
	LoggingConfig   LoggingConfig
	PostgresConfig  PostgresConfig
	RedisConfig     RedisConfig
	WorkerConfig    WorkerConfig
	FlightConfig    FlightConfig
	NTFYConfig      NTFYConfig
	AdminAuthConfig AdminAuthConfig
	CrawlerConfig   CrawlerConfig
	WorkerEnabled   bool
	InitSchema      bool
}

// CrawlerConfig holds per-source crawl credentials, transport timeouts,
// and rate limits, env-prefixed CRAWLER_. This is the config surface
// sources.Build and dispatcher.New are wired from.
type CrawlerConfig struct {
	KiwiAPIKey string

	AmadeusClientID     string
	AmadeusClientSecret string
	AmadeusHostname     string

	LufthansaClientID     string
	LufthansaClientSecret string
	LufthansaHostname     string

	SingaporeAirlinesAPIKey string

	// TurkishUseOfficialAPI gates whether the Turkish Airlines adapter
	// is allowed to run at all; the reference disables it by default
	// pending commercial API access, ground: turkish_airlines/crawler.py.
	TurkishUseOfficialAPI bool

	L1Timeout time.Duration
	L2Timeout time.Duration
	L3Timeout time.Duration

	L1ProxyURL string

	// SourceRPS/SourceBurst key by core.DataSource's string value
	// ("KIWI_API", "GDS", "DIRECT_CRAWL", "GOOGLE_PROTOBUF"), mirroring
	// spec.md §8's "rate limits are stated per-source in requests-per-
	// minute" converted to requests-per-second for golang.org/x/time/rate.
	SourceRPS   map[string]float64
	SourceBurst map[string]int

	DefaultCurrency string
}

// FlightConfig holds flight search configuration
type FlightConfig struct {
	ExcludedAirlines []string // Airline codes to exclude from results (e.g., NK, G4, F9)
	TopNDeals        int      // Number of top deals to fetch full itineraries for
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	SSLCert     string `env:"DB_SSL_CERT" env-default:""`
	SSLKey      string `env:"DB_SSL_KEY" env-default:""`
	SSLRootCert string `env:"DB_SSL_ROOT_CERT" env-default:""`
	RequireSSL  bool   `env:"DB_REQUIRE_SSL" env-default:"true"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host                   string
	Port                   string
	Password               string
	DB                     int
	QueueGroup             string
	QueueStreamPrefix      string
	QueueBlockTimeout      time.Duration
	QueueVisibilityTimeout time.Duration
}

// WorkerConfig holds worker configuration
type WorkerConfig struct {
	Concurrency     int
	MaxRetries      int
	RetryDelay      time.Duration
	JobTimeout      time.Duration
	ShutdownTimeout time.Duration
}

// NTFYConfig holds NTFY push notification configuration
type NTFYConfig struct {
	ServerURL      string
	Topic          string
	Username       string
	Password       string
	Enabled        bool
	StallThreshold time.Duration
	ErrorThreshold int
	ErrorWindow    time.Duration
}

// AdminAuthConfig holds admin authentication configuration
type AdminAuthConfig struct {
	Enabled  bool
	Username string
	Password string
	Token    string // Alternative: Bearer token auth
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	port := getEnv("PORT", "8080")
	httpBindAddr := getEnv("HTTP_BIND_ADDR", "")
	environment := getEnv("ENVIRONMENT", "development")
	apiEnabled, _ := strconv.ParseBool(getEnv("API_ENABLED", "true"))
	workerEnabled, _ := strconv.ParseBool(getEnv("WORKER_ENABLED", "true"))
	initSchema, _ := strconv.ParseBool(getEnv("INIT_SCHEMA", "true"))

	loggingConfig := LoggingConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}

	postgresConfig := PostgresConfig{
		Host:        getEnv("DB_HOST", "postgres"),
		Port:        getEnv("DB_PORT", "5432"),
		User:        getEnv("DB_USER", "flights"),
		Password:    getEnv("DB_PASSWORD", ""),
		DBName:      getEnv("DB_NAME", "flights"),
		SSLMode:     getEnv("DB_SSLMODE", "verify-full"),
		SSLCert:     getEnv("DB_SSL_CERT", ""),
		SSLKey:      getEnv("DB_SSL_KEY", ""),
		SSLRootCert: getEnv("DB_SSL_ROOT_CERT", ""),
		RequireSSL:  getEnv("DB_REQUIRE_SSL", "true") == "true",
	}

	queueBlockTimeout, err := time.ParseDuration(getEnv("REDIS_QUEUE_BLOCK_TIMEOUT", "5s"))
	if err != nil {
		queueBlockTimeout = 5 * time.Second
	}
	queueVisibilityTimeout, err := time.ParseDuration(getEnv("REDIS_QUEUE_VISIBILITY_TIMEOUT", "2m"))
	if err != nil {
		queueVisibilityTimeout = 2 * time.Minute
	}

	redisConfig := RedisConfig{
		Host:                   getEnv("REDIS_HOST", "redis"),
		Port:                   getEnv("REDIS_PORT", "6379"),
		Password:               getEnv("REDIS_PASSWORD", ""),
		DB:                     0,
		QueueGroup:             getEnv("REDIS_QUEUE_GROUP", "flights_workers"),
		QueueStreamPrefix:      getEnv("REDIS_QUEUE_STREAM_PREFIX", "flights"),
		QueueBlockTimeout:      queueBlockTimeout,
		QueueVisibilityTimeout: queueVisibilityTimeout,
	}

	concurrency, _ := strconv.Atoi(getEnv("WORKER_CONCURRENCY", "5"))
	maxRetries, _ := strconv.Atoi(getEnv("WORKER_MAX_RETRIES", "3"))
	retryDelay, _ := time.ParseDuration(getEnv("WORKER_RETRY_DELAY", "30s"))
	jobTimeout, _ := time.ParseDuration(getEnv("WORKER_JOB_TIMEOUT", "10m"))
	shutdownTimeout, _ := time.ParseDuration(getEnv("WORKER_SHUTDOWN_TIMEOUT", "30s"))

	workerConfig := WorkerConfig{
		Concurrency:     concurrency,
		MaxRetries:      maxRetries,
		RetryDelay:      retryDelay,
		JobTimeout:      jobTimeout,
		ShutdownTimeout: shutdownTimeout,
	}

	// NTFY notification config
	ntfyEnabled, _ := strconv.ParseBool(getEnv("NTFY_ENABLED", "false"))
	ntfyErrorThreshold, _ := strconv.Atoi(getEnv("NTFY_ERROR_THRESHOLD", "10"))
	ntfyStallThreshold, _ := time.ParseDuration(getEnv("NTFY_STALL_THRESHOLD", "15m"))
	ntfyErrorWindow, _ := time.ParseDuration(getEnv("NTFY_ERROR_WINDOW", "5m"))

	ntfyConfig := NTFYConfig{
		ServerURL:      getEnv("NTFY_SERVER_URL", "https://ntfy.sh"),
		Topic:          getEnv("NTFY_TOPIC", ""),
		Username:       getEnv("NTFY_USERNAME", ""),
		Password:       getEnv("NTFY_PASSWORD", ""),
		Enabled:        ntfyEnabled,
		StallThreshold: ntfyStallThreshold,
		ErrorThreshold: ntfyErrorThreshold,
		ErrorWindow:    ntfyErrorWindow,
	}

	// Admin authentication config
	adminAuthEnabled, _ := strconv.ParseBool(getEnv("ADMIN_AUTH_ENABLED", "false"))
	adminAuthConfig := AdminAuthConfig{
		Enabled:  adminAuthEnabled,
		Username: getEnv("ADMIN_AUTH_USERNAME", ""),
		Password: getEnv("ADMIN_AUTH_PASSWORD", ""),
		Token:    getEnv("ADMIN_AUTH_TOKEN", ""),
	}

	// Flight search config
	// Default excluded airlines: Spirit, Allegiant, Frontier, Sun Country, Avelo, Breeze
	excludedAirlinesStr := getEnv("EXCLUDED_AIRLINES", "NK,G4,F9,SY,XP,MX")
	excludedAirlines := []string{}
	if excludedAirlinesStr != "" {
		for _, code := range strings.Split(excludedAirlinesStr, ",") {
			code = strings.TrimSpace(strings.ToUpper(code))
			if code != "" {
				excludedAirlines = append(excludedAirlines, code)
			}
		}
	}
	topNDeals, _ := strconv.Atoi(getEnv("TOP_N_DEALS", "3"))
	if topNDeals < 1 {
		topNDeals = 3
	}
	flightConfig := FlightConfig{
		ExcludedAirlines: excludedAirlines,
		TopNDeals:        topNDeals,
	}

	crawlerConfig := loadCrawlerConfig()

	return &Config{
		Port:            port,
		HTTPBindAddr:    httpBindAddr,
		APIEnabled:      apiEnabled,
		Environment:     environment,
		LoggingConfig:   loggingConfig,
		PostgresConfig:  postgresConfig,
		RedisConfig:     redisConfig,
		WorkerConfig:    workerConfig,
		FlightConfig:    flightConfig,
		NTFYConfig:      ntfyConfig,
		AdminAuthConfig: adminAuthConfig,
		CrawlerConfig:   crawlerConfig,
		WorkerEnabled:   workerEnabled,
		InitSchema:      initSchema,
	}, nil
}

// loadCrawlerConfig reads the CRAWLER_-prefixed adapter config surface.
func loadCrawlerConfig() CrawlerConfig {
	l1Timeout, err := time.ParseDuration(getEnv("CRAWLER_L1_TIMEOUT", "15s"))
	if err != nil {
		l1Timeout = 15 * time.Second
	}
	l2Timeout, err := time.ParseDuration(getEnv("CRAWLER_L2_TIMEOUT", "20s"))
	if err != nil {
		l2Timeout = 20 * time.Second
	}
	l3Timeout, err := time.ParseDuration(getEnv("CRAWLER_L3_TIMEOUT", "60s"))
	if err != nil {
		l3Timeout = 60 * time.Second
	}
	turkishUseOfficial, _ := strconv.ParseBool(getEnv("CRAWLER_TK_USE_OFFICIAL_API", "false"))

	rps := map[string]float64{
		"KIWI_API":        parseRPS("CRAWLER_RPS_KIWI_API", 1.0),
		"GDS":              parseRPS("CRAWLER_RPS_GDS", 2.0),
		"DIRECT_CRAWL":    parseRPS("CRAWLER_RPS_DIRECT_CRAWL", 0.5),
		"GOOGLE_PROTOBUF": parseRPS("CRAWLER_RPS_GOOGLE_PROTOBUF", 1.0),
	}
	burst := map[string]int{
		"KIWI_API":        parseBurst("CRAWLER_BURST_KIWI_API", 2),
		"GDS":              parseBurst("CRAWLER_BURST_GDS", 3),
		"DIRECT_CRAWL":    parseBurst("CRAWLER_BURST_DIRECT_CRAWL", 1),
		"GOOGLE_PROTOBUF": parseBurst("CRAWLER_BURST_GOOGLE_PROTOBUF", 2),
	}

	return CrawlerConfig{
		KiwiAPIKey: getEnv("CRAWLER_KIWI_API_KEY", ""),

		AmadeusClientID:     getEnv("CRAWLER_AMADEUS_CLIENT_ID", ""),
		AmadeusClientSecret: getEnv("CRAWLER_AMADEUS_CLIENT_SECRET", ""),
		AmadeusHostname:     getEnv("CRAWLER_AMADEUS_HOSTNAME", "test"),

		LufthansaClientID:     getEnv("CRAWLER_LUFTHANSA_CLIENT_ID", ""),
		LufthansaClientSecret: getEnv("CRAWLER_LUFTHANSA_CLIENT_SECRET", ""),
		LufthansaHostname:     getEnv("CRAWLER_LUFTHANSA_HOSTNAME", "api.lufthansa.com"),

		SingaporeAirlinesAPIKey: getEnv("CRAWLER_SINGAPORE_AIRLINES_API_KEY", ""),

		TurkishUseOfficialAPI: turkishUseOfficial,

		L1Timeout:  l1Timeout,
		L2Timeout:  l2Timeout,
		L3Timeout:  l3Timeout,
		L1ProxyURL: getEnv("CRAWLER_L1_PROXY_URL", ""),

		SourceRPS:   rps,
		SourceBurst: burst,

		DefaultCurrency: getEnv("CRAWLER_DEFAULT_CURRENCY", "USD"),
	}
}

func parseRPS(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, fmt.Sprintf("%v", fallback)), 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseBurst(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, fmt.Sprintf("%d", fallback)))
	if err != nil {
		return fallback
	}
	return v
}

// LoadTestConfig loads test configuration
func LoadTestConfig() *Config {
	return &Config{
		PostgresConfig: PostgresConfig{
			Host:     getEnv("DB_HOST", "localhost"),         // Use env var if set, default to localhost
			Port:     getEnv("DB_PORT", "5432"),              // Use env var if set, default to 5432
			User:     getEnv("DB_USER", "flights"),           // Match docker-compose/Load defaults
			Password: getEnv("DB_PASSWORD", ""),              // Load password from env
			DBName:   getEnv("DB_NAME_TEST", "flights_test"), // Use separate test DB name env var
			SSLMode:  getEnv("DB_SSLMODE", "disable"),        // Allow override, default disable for tests
		},
		RedisConfig: RedisConfig{
			Host:                   getEnv("REDIS_HOST", "localhost"), // Use env var if set, default to localhost
			Port:                   getEnv("REDIS_PORT", "6379"),      // Use env var if set, default to 6379 (standard Redis)
			QueueGroup:             getEnv("REDIS_QUEUE_GROUP", "flights_workers"),
			QueueStreamPrefix:      getEnv("REDIS_QUEUE_STREAM_PREFIX", "flights"),
			QueueBlockTimeout:      5 * time.Second,
			QueueVisibilityTimeout: 2 * time.Minute,
		},
		Environment: "test",
	}
}

// TestConfig returns a default test configuration
func TestConfig() *Config {
	cfg := LoadTestConfig()
	cfg.WorkerEnabled = false
	return cfg
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if len(strings.TrimSpace(value)) == 0 {
		return defaultValue
	}
	return strings.TrimSpace(value) // Trim whitespace before returning
}
