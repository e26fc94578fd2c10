package scraper

import (
	mathrand "math/rand"
	"strings"
	"time"
)

// Browser fingerprint pools. A fresh combination is drawn for every page
// fetch so consecutive requests do not present an identical client.
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 6.1; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Safari/605.1.15",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0.3 Safari/605.1.15",
		"Mozilla/5.0 (Linux; Android 13; SM-G991B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
		"Mozilla/5.0 (Linux; Android 12; Pixel 5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Mobile Safari/537.36",
		"Mozilla/5.0 (Linux; Android 13; SM-S918B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 16_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (iPad; CPU OS 16_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5 Mobile/15E148 Safari/604.1",
	}

	acceptLanguages = []string{
		"en-US,en;q=0.9",
		"en-GB,en;q=0.9",
		"de-DE,de;q=0.9,en;q=0.8",
		"fr-FR,fr;q=0.9,en;q=0.8",
		"es-ES,es;q=0.9,en;q=0.8",
		"it-IT,it;q=0.9,en;q=0.8",
		"nl-NL,nl;q=0.9,en;q=0.8",
		"sl-SI,sl;q=0.9,en;q=0.8",
		"hr-HR,hr;q=0.9,en;q=0.8",
		"pt-PT,pt;q=0.9,en;q=0.8",
	}

	// Empty entry means no Referer header at all, like a typed-in address.
	referers = []string{
		"https://www.google.com/",
		"https://www.bing.com/",
		"https://duckduckgo.com/",
		"https://search.yahoo.com/",
		"https://www.google.si/",
		"https://www.google.de/",
		"https://www.google.hr/",
		"https://www.avto.net/",
		"",
	}

	timezones = []string{
		"Europe/Ljubljana",
		"Europe/Zagreb",
		"Europe/Vienna",
		"Europe/Berlin",
		"Europe/Rome",
		"Europe/Budapest",
		"Europe/Prague",
		"Europe/Warsaw",
		"Europe/Zurich",
		"Europe/Brussels",
	}

	desktopResolutions = [][2]int{
		{1920, 1080},
		{1366, 768},
		{1440, 900},
		{1600, 900},
		{1280, 720},
		{1536, 864},
		{1680, 1050},
		{2560, 1440},
		{1024, 768},
		{1280, 1024},
	}

	mobileViewports = [][2]int{
		{375, 667},
		{414, 896},
		{360, 640},
		{412, 915},
		{768, 1024},
		{820, 1180},
	}
)

// mobileChance is the share of fetches presented through a mobile viewport.
const mobileChance = 0.2

// Fingerprint is one randomized browser identity applied to a single
// page fetch across headers, viewport, locale and timezone.
type Fingerprint struct {
	UserAgent      string
	AcceptLanguage string
	Locale         string
	Referer        string
	Timezone       string
	ViewportWidth  int
	ViewportHeight int
	Mobile         bool
}

// Headers returns the request headers for this identity. Accept-Encoding
// is left to the transport so response bodies arrive decompressed. The
// Referer key is absent when the identity navigated directly.
func (f *Fingerprint) Headers() map[string]string {
	h := map[string]string{
		"User-Agent":                f.UserAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language":           f.AcceptLanguage,
		"DNT":                       "1",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
	}
	if f.Referer != "" {
		h["Referer"] = f.Referer
	}
	return h
}

// FingerprintGenerator draws random identities from the pools.
type FingerprintGenerator struct {
	rnd *mathrand.Rand
}

// NewFingerprintGenerator builds a generator. A nil rnd gets a
// time-seeded source; tests pass a fixed seed instead.
func NewFingerprintGenerator(rnd *mathrand.Rand) *FingerprintGenerator {
	if rnd == nil {
		rnd = mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	}
	return &FingerprintGenerator{rnd: rnd}
}

// Generate draws a fresh identity. The user agent and the viewport are
// drawn independently, so a desktop agent can report a tablet-sized
// window, which is common enough in the wild not to stand out.
func (g *FingerprintGenerator) Generate() Fingerprint {
	lang := acceptLanguages[g.rnd.Intn(len(acceptLanguages))]

	f := Fingerprint{
		UserAgent:      userAgents[g.rnd.Intn(len(userAgents))],
		AcceptLanguage: lang,
		Locale:         strings.SplitN(lang, ",", 2)[0],
		Referer:        referers[g.rnd.Intn(len(referers))],
		Timezone:       timezones[g.rnd.Intn(len(timezones))],
	}

	if g.rnd.Float64() < mobileChance {
		vp := mobileViewports[g.rnd.Intn(len(mobileViewports))]
		f.ViewportWidth, f.ViewportHeight = vp[0], vp[1]
		f.Mobile = true
	} else {
		res := desktopResolutions[g.rnd.Intn(len(desktopResolutions))]
		f.ViewportWidth, f.ViewportHeight = res[0], res[1]
	}

	return f
}
