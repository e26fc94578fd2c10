package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// Test with default values
	config := LoadConfig()
	assert.Equal(t, "./data/avtowatch.db", config.DatabasePath)
	assert.Equal(t, ":8000", config.APIAddr)
	assert.Equal(t, "https://www.avto.net", config.BaseURL)
	assert.Equal(t, RendererChromedp, config.Renderer)
	assert.Equal(t, 60*time.Second, config.RenderTimeout)
	assert.Equal(t, 2*time.Second, config.RequestDelayMin)
	assert.Equal(t, 5*time.Second, config.RequestDelayMax)
	assert.Equal(t, "Europe/Ljubljana", config.Timezone)
	assert.Equal(t, 60*time.Minute, config.NightInterval)
	assert.Equal(t, 2*time.Minute, config.DayIntervalMin)
	assert.Equal(t, 5*time.Minute, config.DayIntervalMax)
	assert.Equal(t, 1, config.WorkerConcurrency)
	assert.Equal(t, "", config.RedisAddr)
	assert.Equal(t, "newlistings", config.RedisStream)

	// Test with environment variables
	os.Setenv("DATABASE_PATH", "/tmp/test.db")
	os.Setenv("RENDERER", "browserless")
	os.Setenv("BROWSERLESS_ADDR", "http://chrome.internal:3000")
	os.Setenv("DAY_INTERVAL_MAX_MINUTES", "10")
	os.Setenv("WORKER_CONCURRENCY", "3")

	config = LoadConfig()
	assert.Equal(t, "/tmp/test.db", config.DatabasePath)
	assert.Equal(t, RendererBrowserless, config.Renderer)
	assert.Equal(t, "http://chrome.internal:3000", config.BrowserlessAddr)
	assert.Equal(t, 10*time.Minute, config.DayIntervalMax)
	assert.Equal(t, 3, config.WorkerConcurrency)

	// Clean up
	os.Unsetenv("DATABASE_PATH")
	os.Unsetenv("RENDERER")
	os.Unsetenv("BROWSERLESS_ADDR")
	os.Unsetenv("DAY_INTERVAL_MAX_MINUTES")
	os.Unsetenv("WORKER_CONCURRENCY")
}

func TestValidate(t *testing.T) {
	config := LoadConfig()
	assert.NoError(t, config.Validate())
	assert.NotNil(t, config.Location)
	assert.Equal(t, "Europe/Ljubljana", config.Location.String())

	bad := LoadConfig()
	bad.Renderer = "selenium"
	assert.Error(t, bad.Validate())

	bad = LoadConfig()
	bad.Renderer = RendererBrowserless
	bad.BrowserlessAddr = ""
	assert.Error(t, bad.Validate())

	bad = LoadConfig()
	bad.RequestDelayMin = 5 * time.Second
	bad.RequestDelayMax = 2 * time.Second
	assert.Error(t, bad.Validate())

	bad = LoadConfig()
	bad.DayIntervalMin = time.Minute // below the 2 minute floor
	assert.Error(t, bad.Validate())

	bad = LoadConfig()
	bad.Timezone = "Mars/Olympus"
	assert.Error(t, bad.Validate())

	bad = LoadConfig()
	bad.WorkerConcurrency = 0
	assert.Error(t, bad.Validate())
}
