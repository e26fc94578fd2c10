package render

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"mkobal/avtowatch/internal/scraper"
	"mkobal/avtowatch/logger"
	"mkobal/avtowatch/pkg/errors"
)

// ChromedpOptions tune the local headless Chrome engine.
type ChromedpOptions struct {
	Headless     bool
	Timeout      time.Duration
	SelectorWait time.Duration
}

// ChromedpRenderer drives one local Chrome process. Each render runs in
// a fresh tab so fingerprint overrides never leak between requests; the
// browser itself is reused across renders.
type ChromedpRenderer struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	opts        ChromedpOptions
	log         *logger.Logger
}

var _ Engine = (*ChromedpRenderer)(nil)

func NewChromedpRenderer(opts ChromedpOptions) *ChromedpRenderer {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.SelectorWait <= 0 {
		opts.SelectorWait = 15 * time.Second
	}

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), execOpts...)

	return &ChromedpRenderer{
		allocCtx:    allocCtx,
		allocCancel: cancel,
		opts:        opts,
		log:         logger.ForRenderer("chromedp"),
	}
}

func (r *ChromedpRenderer) Render(ctx context.Context, req scraper.RenderRequest) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(r.allocCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.opts.Timeout)
	defer cancelTimeout()

	// The tab context descends from the allocator, not the caller, so
	// caller cancellation has to be forwarded.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	fp := req.Fingerprint
	headers := network.Headers{}
	for k, v := range fp.Headers() {
		if k == "User-Agent" {
			continue
		}
		headers[k] = v
	}

	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		emulation.SetUserAgentOverride(fp.UserAgent).WithAcceptLanguage(fp.AcceptLanguage),
		emulation.SetTimezoneOverride(fp.Timezone),
		emulation.SetLocaleOverride().WithLocale(fp.Locale),
		emulation.SetDeviceMetricsOverride(int64(fp.ViewportWidth), int64(fp.ViewportHeight), 1.0, fp.Mobile),
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return "", errors.NewFetch("render", fmt.Sprintf("navigate %s", req.URL), err)
	}

	if req.WaitSelector != "" {
		// An empty result page never shows the rows, so a miss here is
		// informational, not fatal.
		waitCtx, cancelWait := context.WithTimeout(tabCtx, r.opts.SelectorWait)
		if err := chromedp.Run(waitCtx, chromedp.WaitVisible(req.WaitSelector, chromedp.ByQuery)); err != nil {
			r.log.Debug().Str("selector", req.WaitSelector).Msg("Wait selector did not appear")
		}
		cancelWait()
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", errors.NewFetch("render", "read page content", err)
	}
	return html, nil
}

// Close shuts the browser down.
func (r *ChromedpRenderer) Close() error {
	r.allocCancel()
	return nil
}
