package scraper

import (
	"context"
	"fmt"
	mathrand "math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mkobal/avtowatch/internal/model"
	"mkobal/avtowatch/pkg/errors"
)

type fakeRenderer struct {
	pages    []string
	errs     []error
	requests []RenderRequest
}

var _ Renderer = (*fakeRenderer)(nil)

func (f *fakeRenderer) Render(_ context.Context, req RenderRequest) (string, error) {
	i := len(f.requests)
	f.requests = append(f.requests, req)

	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.pages) {
		return f.pages[i], nil
	}
	return noResultsHTML, nil
}

func rowsHTML(titles ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i, title := range titles {
		fmt.Fprintf(&b, `<div class="GO-Results-Row">`+
			`<div class="GO-Results-Naziv">%s</div>`+
			`<div class="GO-Results-Data-Top"><table><tr><td>1.registracija</td><td>2020</td></tr></table></div>`+
			`<div class="GO-Results-Price-TXT-Regular">10.000 &euro;</div>`+
			`<a class="stretched-link" href="../Ads/details.asp?id=%d"></a>`+
			`</div>`, title, i)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newTestScraper(r Renderer) (*Scraper, *[]time.Duration) {
	delays := &[]time.Duration{}
	s := New(r, SelectorConfig{
		ResultRow:         "GO-Results-Row",
		Title:             "GO-Results-Naziv",
		PriceMain:         "GO-Results-Price-TXT-AkcijaCena",
		PriceFallback:     "GO-Results-Price-TXT-Regular",
		Link:              "stretched-link",
		DataBlockPrimary:  "GO-Results-Data-Top",
		DataBlockFallback: "GO-Results-Data-Bottom",
	}, Options{
		BaseURL:  testBaseURL,
		DelayMin: 2 * time.Second,
		DelayMax: 5 * time.Second,
		Rand:     mathrand.New(mathrand.NewSource(7)),
		Sleep: func(_ context.Context, d time.Duration) error {
			*delays = append(*delays, d)
			return nil
		},
	})
	return s, delays
}

func TestFetchAllBrandPasses(t *testing.T) {
	renderer := &fakeRenderer{pages: []string{
		rowsHTML("Audi A4", "Audi A6"),
		rowsHTML("BMW 320d", "Audi A4"),
	}}
	s, delays := newTestScraper(renderer)

	res, err := s.FetchAll(context.Background(), &model.FilterSpec{Brands: []string{"Audi", "BMW"}, Pages: 1})
	require.NoError(t, err)

	require.Len(t, renderer.requests, 2, "one page per brand pass")
	assert.Contains(t, renderer.requests[0].URL, "znamka=Audi")
	assert.Contains(t, renderer.requests[1].URL, "znamka=BMW")
	assert.Equal(t, "div.GO-Results-Row", renderer.requests[0].WaitSelector)
	assert.NotEmpty(t, renderer.requests[0].Fingerprint.UserAgent)

	titles := make([]string, 0, len(res.Listings))
	for _, l := range res.Listings {
		titles = append(titles, l.Title)
	}
	assert.Equal(t, []string{"Audi A4", "Audi A6", "BMW 320d"}, titles,
		"batch is deduplicated by hash in discovery order")
	assert.Equal(t, 2, res.Pages)

	require.Len(t, *delays, 2, "every fetch waits first")
	for _, d := range *delays {
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 5*time.Second)
	}
}

func TestFetchAllPageCap(t *testing.T) {
	renderer := &fakeRenderer{pages: []string{rowsHTML("Audi A4")}}
	s, _ := newTestScraper(renderer)

	_, err := s.FetchAll(context.Background(), &model.FilterSpec{Brands: []string{"Audi"}, Pages: 5})
	require.NoError(t, err)

	assert.Len(t, renderer.requests, 1, "page count is capped")
}

func TestFetchAllRenderFailure(t *testing.T) {
	renderer := &fakeRenderer{errs: []error{fmt.Errorf("browser crashed")}}
	s, _ := newTestScraper(renderer)

	_, err := s.FetchAll(context.Background(), &model.FilterSpec{Brands: []string{"Audi"}})
	require.Error(t, err)

	var pe *errors.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, errors.ErrorTypeFetch, pe.Type)
	assert.True(t, pe.IsRetryable())
}

func TestFetchAllKeepsTypedRenderErrors(t *testing.T) {
	renderer := &fakeRenderer{errs: []error{errors.NewRateLimit("render", 30*time.Second)}}
	s, _ := newTestScraper(renderer)

	_, err := s.FetchAll(context.Background(), &model.FilterSpec{Brands: []string{"Audi"}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRateLimit))
}

func TestFetchAllNoResults(t *testing.T) {
	renderer := &fakeRenderer{pages: []string{noResultsHTML}}
	s, _ := newTestScraper(renderer)

	res, err := s.FetchAll(context.Background(), &model.FilterSpec{Brands: []string{"Yugo"}})
	require.NoError(t, err)
	assert.Empty(t, res.Listings)
}

func TestFetchAllUnrecognizedPageCostsOnlyThatPage(t *testing.T) {
	renderer := &fakeRenderer{pages: []string{
		`<html><body><h1>Checking your browser</h1></body></html>`,
		rowsHTML("BMW 320d"),
	}}
	s, _ := newTestScraper(renderer)

	res, err := s.FetchAll(context.Background(), &model.FilterSpec{Brands: []string{"Audi", "BMW"}})
	require.NoError(t, err, "a shape mismatch must not fail the pass")
	require.Len(t, res.Listings, 1)
	assert.Equal(t, "BMW 320d", res.Listings[0].Title)
}

func TestFetchAllCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, _ := newTestScraper(&fakeRenderer{})
	_, err := s.FetchAll(ctx, &model.FilterSpec{Brands: []string{"Audi"}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFetch))
}
