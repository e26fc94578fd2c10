package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mkobal/avtowatch/internal/scraper"
	"mkobal/avtowatch/logger"
	"mkobal/avtowatch/pkg/errors"
)

// browserlessFunction runs inside the remote browser. It applies the
// fingerprint, loads the page and returns its content; a missing wait
// selector is tolerated since empty result pages never render rows.
const browserlessFunction = `module.exports = async ({ page, context }) => {
	await page.setUserAgent(context.userAgent);
	await page.setViewport({ width: context.width, height: context.height, isMobile: context.mobile });
	if (context.headers && Object.keys(context.headers).length > 0) {
		await page.setExtraHTTPHeaders(context.headers);
	}
	await page.emulateTimezone(context.timezone);
	await page.goto(context.url, { waitUntil: 'domcontentloaded', timeout: context.timeoutMs });
	if (context.waitSelector) {
		await page.waitForSelector(context.waitSelector, { timeout: context.waitMs }).catch(() => {});
	}
	return await page.content();
};`

// BrowserlessRenderer renders pages through a browserless/chrome
// service reachable over HTTP.
type BrowserlessRenderer struct {
	addr         string
	client       *http.Client
	timeout      time.Duration
	selectorWait time.Duration
	log          *logger.Logger
}

var _ Engine = (*BrowserlessRenderer)(nil)

func NewBrowserlessRenderer(addr string, timeout, selectorWait time.Duration) *BrowserlessRenderer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if selectorWait <= 0 {
		selectorWait = 15 * time.Second
	}
	return &BrowserlessRenderer{
		addr: strings.TrimRight(addr, "/"),
		// The HTTP budget covers the in-browser navigation budget plus
		// service overhead.
		client:       &http.Client{Timeout: timeout + 30*time.Second},
		timeout:      timeout,
		selectorWait: selectorWait,
		log:          logger.ForRenderer("browserless"),
	}
}

func (r *BrowserlessRenderer) Render(ctx context.Context, req scraper.RenderRequest) (string, error) {
	headers := req.Fingerprint.Headers()
	delete(headers, "User-Agent")

	payload := map[string]interface{}{
		"code": browserlessFunction,
		"context": map[string]interface{}{
			"url":          req.URL,
			"userAgent":    req.Fingerprint.UserAgent,
			"headers":      headers,
			"width":        req.Fingerprint.ViewportWidth,
			"height":       req.Fingerprint.ViewportHeight,
			"mobile":       req.Fingerprint.Mobile,
			"timezone":     req.Fingerprint.Timezone,
			"waitSelector": req.WaitSelector,
			"timeoutMs":    r.timeout.Milliseconds(),
			"waitMs":       r.selectorWait.Milliseconds(),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.NewFetch("render", "marshal function payload", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.addr+"/function", bytes.NewReader(body))
	if err != nil {
		return "", errors.NewFetch("render", "create function request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", errors.NewFetch("render", "call rendering service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 430 {
		return "", errors.NewRateLimit("render", retryAfter(resp))
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.NewFetch("render", fmt.Sprintf("rendering service returned status %d", resp.StatusCode), nil)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewFetch("render", "read rendering service response", err)
	}

	return unwrapServiceResponse(raw)
}

// unwrapServiceResponse returns the page HTML from a service response,
// which is either the page itself or a JSON envelope carrying it.
func unwrapServiceResponse(raw []byte) (string, error) {
	content := string(raw)

	if strings.HasPrefix(strings.TrimSpace(content), "{") {
		var envelope map[string]interface{}
		if json.Unmarshal(raw, &envelope) == nil {
			for _, key := range []string{"data", "content", "result", "html"} {
				if v, ok := envelope[key].(string); ok && v != "" {
					content = v
					break
				}
			}
		}
	}

	if !looksLikeHTML(content) {
		return "", errors.NewFetch("render", fmt.Sprintf("rendering service returned non-HTML payload (%d bytes)", len(content)), nil)
	}
	return content, nil
}

func (r *BrowserlessRenderer) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
