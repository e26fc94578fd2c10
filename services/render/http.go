package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"

	"mkobal/avtowatch/internal/scraper"
	"mkobal/avtowatch/logger"
	"mkobal/avtowatch/pkg/errors"
)

// HTTPRenderer fetches pages without a browser. The site serves result
// rows server-side, so plain HTTP works as long as no JS challenge is
// active; the wait selector has no meaning here and is ignored.
type HTTPRenderer struct {
	client *http.Client
	log    *logger.Logger
}

var _ Engine = (*HTTPRenderer)(nil)

func NewHTTPRenderer(timeout time.Duration) *HTTPRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPRenderer{
		client: &http.Client{Timeout: timeout},
		log:    logger.ForRenderer("http"),
	}
}

func (r *HTTPRenderer) Render(ctx context.Context, req scraper.RenderRequest) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return "", errors.NewFetch("render", "create request", err)
	}
	for k, v := range req.Fingerprint.Headers() {
		httpReq.Header.Set(k, v)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", errors.NewFetch("render", "fetch page", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 430 {
		return "", errors.NewRateLimit("render", retryAfter(resp))
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.NewFetch("render", fmt.Sprintf("unexpected status code %d", resp.StatusCode), nil)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewFetch("render", "read response body", err)
	}

	// Convert to UTF-8 when the page arrives in a legacy encoding.
	enc, name, _ := charset.DetermineEncoding(bodyBytes, resp.Header.Get("Content-Type"))
	if name != "utf-8" && name != "UTF-8" {
		decoded, convErr := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(bodyBytes)))
		if convErr != nil {
			return "", errors.NewFetch("render", "convert body to UTF-8", convErr)
		}
		bodyBytes = decoded
	}

	html := string(bodyBytes)
	if !looksLikeHTML(html) {
		return "", errors.NewFetch("render", fmt.Sprintf("non-HTML response (%d bytes)", len(html)), nil)
	}
	return html, nil
}

func (r *HTTPRenderer) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
