package config

import (
	"os"
	"strconv"
	"time"

	"mkobal/avtowatch/internal/model"
	"mkobal/avtowatch/pkg/errors"
)

// Renderer selection values
const (
	RendererChromedp    = "chromedp"
	RendererBrowserless = "browserless"
	RendererHTTP        = "http"
)

// Config represents the application configuration
type Config struct {
	// Persistence
	DatabasePath string

	// HTTP front door
	APIAddr string

	// Remote site
	BaseURL string

	// Rendering engine
	Renderer        string
	BrowserlessAddr string
	ChromeHeadless  bool
	RenderTimeout   time.Duration
	SelectorWait    time.Duration

	// Per-request pacing
	RequestDelayMin time.Duration
	RequestDelayMax time.Duration

	// Selector configuration file; empty means the embedded defaults
	SelectorsPath string

	// Scheduler
	Timezone       string
	Location       *time.Location
	NightInterval  time.Duration
	DayIntervalMin time.Duration
	DayIntervalMax time.Duration

	// Worker
	WorkerConcurrency int

	// Cooldown cache after the site rate-limits us
	MemcacheAddr string
	Cooldown     time.Duration

	// New-listing event stream; disabled while RedisAddr is empty
	RedisAddr         string
	RedisDB           int
	RedisStream       string
	RedisStreamMaxLen int

	// Notification transport
	PushoverAPIURL string

	// Logging
	ErrorLogFile string
	Environment  string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		DatabasePath:      getEnv("DATABASE_PATH", "./data/avtowatch.db"),
		APIAddr:           getEnv("API_ADDR", ":8000"),
		BaseURL:           getEnv("BASE_URL", "https://www.avto.net"),
		Renderer:          getEnv("RENDERER", RendererChromedp),
		BrowserlessAddr:   getEnv("BROWSERLESS_ADDR", "http://localhost:3000"),
		ChromeHeadless:    getEnvBool("CHROME_HEADLESS", true),
		RenderTimeout:     getEnvSeconds("RENDER_TIMEOUT_SECONDS", 60),
		SelectorWait:      getEnvSeconds("SELECTOR_WAIT_SECONDS", 15),
		RequestDelayMin:   getEnvSeconds("REQUEST_DELAY_MIN_SECONDS", 2),
		RequestDelayMax:   getEnvSeconds("REQUEST_DELAY_MAX_SECONDS", 5),
		SelectorsPath:     getEnv("SELECTORS_PATH", ""),
		Timezone:          getEnv("TIMEZONE", "Europe/Ljubljana"),
		NightInterval:     getEnvMinutes("NIGHT_INTERVAL_MINUTES", 60),
		DayIntervalMin:    getEnvMinutes("DAY_INTERVAL_MIN_MINUTES", 2),
		DayIntervalMax:    getEnvMinutes("DAY_INTERVAL_MAX_MINUTES", 5),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 1),
		MemcacheAddr:      getEnv("MEMCACHE_ADDR", ""),
		Cooldown:          getEnvSeconds("COOLDOWN_SECONDS", 300),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		RedisStream:       getEnv("REDIS_STREAM", "newlistings"),
		RedisStreamMaxLen: getEnvInt("REDIS_STREAM_MAXLEN", 1000),
		PushoverAPIURL:    getEnv("PUSHOVER_API_URL", "https://api.pushover.net/1/messages.json"),
		ErrorLogFile:      getEnv("ERROR_LOG_FILE", "./logs/error.log"),
		Environment:       getEnv("AVTOWATCH_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the process cannot start with
// and resolves the scheduler timezone.
func (c *Config) Validate() error {
	switch c.Renderer {
	case RendererChromedp, RendererBrowserless, RendererHTTP:
	default:
		return errors.NewConfiguration("config", "RENDERER must be one of chromedp, browserless, http", nil)
	}

	if c.Renderer == RendererBrowserless && c.BrowserlessAddr == "" {
		return errors.NewConfiguration("config", "BROWSERLESS_ADDR is required for the browserless renderer", nil)
	}

	if c.RequestDelayMin <= 0 || c.RequestDelayMax < c.RequestDelayMin {
		return errors.NewConfiguration("config", "request delay window must be positive with min <= max", nil)
	}

	if c.DayIntervalMin <= 0 || c.DayIntervalMax < c.DayIntervalMin {
		return errors.NewConfiguration("config", "day interval window must be positive with min <= max", nil)
	}

	if c.DayIntervalMin < model.MinCycleInterval {
		return errors.NewConfiguration("config", "day interval below the minimum cycle interval", nil)
	}

	if c.NightInterval <= 0 || c.RenderTimeout <= 0 || c.SelectorWait <= 0 || c.Cooldown <= 0 {
		return errors.NewConfiguration("config", "intervals and timeouts must be positive", nil)
	}

	if c.WorkerConcurrency < 1 {
		return errors.NewConfiguration("config", "WORKER_CONCURRENCY must be at least 1", nil)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return errors.NewConfiguration("config", "unknown TIMEZONE", err)
	}
	c.Location = loc

	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue)) * time.Second
}

func getEnvMinutes(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue)) * time.Minute
}
