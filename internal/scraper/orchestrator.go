package scraper

import (
	"context"
	"fmt"
	mathrand "math/rand"
	"time"

	"mkobal/avtowatch/internal/model"
	"mkobal/avtowatch/logger"
	"mkobal/avtowatch/pkg/errors"
)

// RenderRequest carries everything a rendering engine needs for one
// page fetch.
type RenderRequest struct {
	URL          string
	Fingerprint  Fingerprint
	WaitSelector string
}

// Renderer fetches a page and returns its rendered HTML.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (string, error)
}

// SleepFunc pauses for d or until the context is canceled.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options tune a Scraper. Zero values fall back to the site defaults.
type Options struct {
	BaseURL  string
	DelayMin time.Duration
	DelayMax time.Duration
	Rand     *mathrand.Rand
	Sleep    SleepFunc
}

// Result is the outcome of one user's scrape across all brand passes.
// Listings are deduplicated by hash and kept in discovery order.
type Result struct {
	Listings   []model.Listing
	Incomplete int
	Pages      int
}

// Scraper walks a filter spec's brand passes page by page, rendering
// each results page under a fresh fingerprint with a randomized pause
// before every request.
type Scraper struct {
	renderer     Renderer
	extractor    *Extractor
	fingerprints *FingerprintGenerator
	selectors    SelectorConfig
	baseURL      string
	delayMin     time.Duration
	delayMax     time.Duration
	rnd          *mathrand.Rand
	sleep        SleepFunc
	log          *logger.Logger
}

func New(renderer Renderer, selectors SelectorConfig, opts Options) *Scraper {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.avto.net"
	}
	if opts.DelayMin <= 0 {
		opts.DelayMin = 2 * time.Second
	}
	if opts.DelayMax < opts.DelayMin {
		opts.DelayMax = 5 * time.Second
	}
	if opts.Rand == nil {
		opts.Rand = mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	return &Scraper{
		renderer:     renderer,
		extractor:    NewExtractor(selectors, opts.BaseURL),
		fingerprints: NewFingerprintGenerator(opts.Rand),
		selectors:    selectors,
		baseURL:      opts.BaseURL,
		delayMin:     opts.DelayMin,
		delayMax:     opts.DelayMax,
		rnd:          opts.Rand,
		sleep:        opts.Sleep,
		log:          logger.ForScraper(),
	}
}

// FetchAll scrapes every brand pass of the filter spec. A fetch failure
// aborts the whole pass; the user retries on the next natural cycle. A
// page whose markup is not recognized only costs that page.
func (s *Scraper) FetchAll(ctx context.Context, filters *model.FilterSpec) (*Result, error) {
	maxPages := filters.Pages
	if maxPages < 1 {
		maxPages = 1
	}
	if maxPages > model.MaxSearchPages {
		maxPages = model.MaxSearchPages
	}

	res := &Result{}
	seen := make(map[string]struct{})

	for _, brand := range filters.BrandPasses() {
		if err := s.scrapeBrand(ctx, filters, brand, maxPages, seen, res); err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Int("listings", len(res.Listings)).
		Int("pages", res.Pages).
		Int("incomplete", res.Incomplete).
		Msg("Scrape pass complete")

	return res, nil
}

func (s *Scraper) scrapeBrand(ctx context.Context, filters *model.FilterSpec, brand string, maxPages int, seen map[string]struct{}, res *Result) error {
	for page := 1; page <= maxPages; page++ {
		html, err := s.fetchPage(ctx, filters, brand, page)
		if err != nil {
			return err
		}

		if HasNoResults(html) {
			s.log.Info().Str("brand", brand).Int("page", page).Msg("No results for brand pass")
			return nil
		}

		listings, incomplete, err := s.extractor.Extract(html)
		if err != nil {
			// A shape mismatch costs one page, not the user's cycle.
			s.log.Warn().Err(err).Str("brand", brand).Int("page", page).Msg("Skipping unrecognized page")
			return nil
		}

		res.Pages++
		res.Incomplete += incomplete
		for _, l := range listings {
			// Rows without an identity hash stay out of the batch.
			if l.Hash == "" {
				continue
			}
			if _, dup := seen[l.Hash]; dup {
				continue
			}
			seen[l.Hash] = struct{}{}
			res.Listings = append(res.Listings, l)
		}

		// A short page is the last page.
		if len(listings) < model.PageSize {
			return nil
		}
	}
	return nil
}

func (s *Scraper) fetchPage(ctx context.Context, filters *model.FilterSpec, brand string, page int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.NewFetch("scraper", "scrape canceled", err)
	}

	pageURL := BuildSearchURL(s.baseURL, filters, brand, page)
	fp := s.fingerprints.Generate()

	delay := s.delayMin
	if s.delayMax > s.delayMin {
		delay += time.Duration(s.rnd.Int63n(int64(s.delayMax - s.delayMin + 1)))
	}

	s.log.Debug().
		Str("brand", brand).
		Int("page", page).
		Dur("delay", delay).
		Str("user_agent", fp.UserAgent).
		Bool("mobile", fp.Mobile).
		Msg("Fetching results page")

	if err := s.sleep(ctx, delay); err != nil {
		return "", errors.NewFetch("scraper", "scrape canceled during pre-fetch delay", err)
	}

	html, err := s.renderer.Render(ctx, RenderRequest{
		URL:          pageURL,
		Fingerprint:  fp,
		WaitSelector: "div." + s.selectors.ResultRow,
	})
	if err != nil {
		if errors.GetType(err) != "" {
			return "", err
		}
		return "", errors.NewFetch("scraper", fmt.Sprintf("render page %d of brand pass %q", page, brand), err)
	}
	return html, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
