package scraper

import (
	mathrand "math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintPools(t *testing.T) {
	assert.GreaterOrEqual(t, len(userAgents), 20)
	assert.GreaterOrEqual(t, len(acceptLanguages), 10)
	assert.GreaterOrEqual(t, len(referers), 9)
	assert.GreaterOrEqual(t, len(timezones), 10)
	assert.GreaterOrEqual(t, len(desktopResolutions), 10)
	assert.GreaterOrEqual(t, len(mobileViewports), 6)

	assert.Contains(t, referers, "", "direct navigation must stay in the pool")
	assert.Contains(t, timezones, "Europe/Ljubljana")
}

func TestGenerateDrawsFromPools(t *testing.T) {
	gen := NewFingerprintGenerator(mathrand.New(mathrand.NewSource(1)))

	for i := 0; i < 200; i++ {
		f := gen.Generate()

		assert.Contains(t, userAgents, f.UserAgent)
		assert.Contains(t, acceptLanguages, f.AcceptLanguage)
		assert.Contains(t, referers, f.Referer)
		assert.Contains(t, timezones, f.Timezone)
		assert.NotEmpty(t, f.Locale)
		assert.NotContains(t, f.Locale, ",")

		vp := [2]int{f.ViewportWidth, f.ViewportHeight}
		if f.Mobile {
			assert.Contains(t, mobileViewports, vp)
		} else {
			assert.Contains(t, desktopResolutions, vp)
		}
	}
}

func TestGenerateMobileShare(t *testing.T) {
	gen := NewFingerprintGenerator(mathrand.New(mathrand.NewSource(42)))

	mobile := 0
	const n = 5000
	for i := 0; i < n; i++ {
		if gen.Generate().Mobile {
			mobile++
		}
	}

	share := float64(mobile) / n
	assert.InDelta(t, mobileChance, share, 0.03, "mobile share drifted from the configured chance")
}

func TestFingerprintHeaders(t *testing.T) {
	f := Fingerprint{
		UserAgent:      userAgents[0],
		AcceptLanguage: "sl-SI,sl;q=0.9,en;q=0.8",
		Referer:        "https://www.google.si/",
	}

	h := f.Headers()
	assert.Equal(t, userAgents[0], h["User-Agent"])
	assert.Equal(t, "sl-SI,sl;q=0.9,en;q=0.8", h["Accept-Language"])
	assert.Equal(t, "https://www.google.si/", h["Referer"])
	assert.Equal(t, "1", h["Upgrade-Insecure-Requests"])
	assert.NotContains(t, h, "Accept-Encoding")

	f.Referer = ""
	assert.NotContains(t, f.Headers(), "Referer")
}
