// Package render fetches search result pages through one of three
// engines: a local headless Chrome, a remote browserless service, or
// plain HTTP. All engines apply the per-request fingerprint.
package render

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mkobal/avtowatch/config"
	"mkobal/avtowatch/internal/scraper"
	"mkobal/avtowatch/pkg/errors"
)

// Engine is a renderer that owns resources needing cleanup.
type Engine interface {
	scraper.Renderer
	Close() error
}

// New builds the engine selected in configuration.
func New(cfg *config.Config) (Engine, error) {
	switch cfg.Renderer {
	case config.RendererChromedp:
		return NewChromedpRenderer(ChromedpOptions{
			Headless:     cfg.ChromeHeadless,
			Timeout:      cfg.RenderTimeout,
			SelectorWait: cfg.SelectorWait,
		}), nil
	case config.RendererBrowserless:
		return NewBrowserlessRenderer(cfg.BrowserlessAddr, cfg.RenderTimeout, cfg.SelectorWait), nil
	case config.RendererHTTP:
		return NewHTTPRenderer(cfg.RenderTimeout), nil
	default:
		return nil, errors.NewConfiguration("render", fmt.Sprintf("unknown renderer %q", cfg.Renderer), nil)
	}
}

// looksLikeHTML reports whether the payload resembles a rendered page
// rather than an error message or a JSON fragment.
func looksLikeHTML(s string) bool {
	ls := strings.ToLower(s)
	return strings.Contains(ls, "<html") || strings.Contains(ls, "<!doctype") || strings.Contains(ls, "<body")
}

// retryAfter reads the server's Retry-After hint, in seconds.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 30 * time.Second
}
