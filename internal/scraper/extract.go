package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mkobal/avtowatch/helpers"
	"mkobal/avtowatch/internal/model"
	"mkobal/avtowatch/logger"
	"mkobal/avtowatch/pkg/errors"
)

// Data block labels as they appear in the result row's detail table.
const (
	labelRegistration = "1.registracija"
	labelMileage      = "Prevoženih"
	labelTransmission = "Menjalnik"
	labelEngine       = "Motor"
)

// noResultMarkers are the site's empty-result phrases. They show up in
// page text before any result row would, so a page carrying one is an
// empty page, not a broken one.
var noResultMarkers = []string{"Ni zadetkov", "ni rezultatov"}

// HasNoResults reports whether the page announces an empty result set.
func HasNoResults(html string) bool {
	for _, marker := range noResultMarkers {
		if strings.Contains(html, marker) {
			return true
		}
	}
	return false
}

var ownersPattern = regexp.MustCompile(`(\d+)\.LASTNI(?:K|CA)`)

// ParseOwners pulls the advertised owner count out of a listing title,
// where sellers write it as "1.LASTNIK", "2.LASTNICA" or "2.LASTNIKA".
// Returns "" when the title carries none.
func ParseOwners(title string) string {
	m := ownersPattern.FindStringSubmatch(strings.ToUpper(title))
	if m == nil {
		return ""
	}
	return m[1]
}

// NormalizePrice reduces a displayed price to plain digits: thousands
// separators, currency signs and label text go, and anything after a
// decimal comma is cut. "Akcijska cena: 12.500,00 €" becomes "12500".
// A price with no digits at all, like "Pokličite za ceno", becomes "".
func NormalizePrice(raw string) string {
	s := helpers.CollapseWhitespace(raw)
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Extractor turns a rendered results page into listing records.
type Extractor struct {
	selectors SelectorConfig
	baseURL   string
	log       *logger.Logger
}

func NewExtractor(selectors SelectorConfig, baseURL string) *Extractor {
	return &Extractor{
		selectors: selectors,
		baseURL:   baseURL,
		log:       logger.ForScraper(),
	}
}

// Extract parses one results page. Every result row yields exactly one
// record; rows with missing fields are kept, with the gaps marked, and
// their count is returned alongside. A row missing title, price or
// registration gets no identity hash and never reaches notification.
// A page with no result rows and no empty-result marker means the
// markup no longer matches the selectors.
func (e *Extractor) Extract(html string) ([]model.Listing, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, errors.NewExtraction("extractor", "parse document", err)
	}

	// Rendered pages drag several hundred KB of scripts along; field
	// lookups only need the markup.
	doc.Find("script, style, noscript").Remove()

	rows := doc.Find("div." + e.selectors.ResultRow)
	if rows.Length() == 0 {
		if HasNoResults(html) {
			return nil, 0, nil
		}
		return nil, 0, errors.NewExtraction("extractor", "no result rows found; page shape changed or page is blocked", nil)
	}

	listings := make([]model.Listing, 0, rows.Length())
	incomplete := 0

	rows.Each(func(_ int, row *goquery.Selection) {
		title := cleanText(row.Find("div." + e.selectors.Title).First())

		rawPrice := cleanText(row.Find("div." + e.selectors.PriceMain).First())
		if rawPrice == "" {
			rawPrice = cleanText(row.Find("div." + e.selectors.PriceFallback).First())
		}
		price := NormalizePrice(rawPrice)

		link := ""
		if href, ok := row.Find("a." + e.selectors.Link).First().Attr("href"); ok {
			// Result links are relative and start with "..".
			link = strings.Replace(strings.TrimSpace(href), "..", e.baseURL, 1)
		}

		data := e.collectDataBlock(row)
		registration := data[labelRegistration]

		// A row missing any of the identity fields cannot be deduped
		// reliably; it keeps its slot in the output but carries no
		// hash, which keeps it out of notification downstream.
		hash := ""
		if title != "" && price != "" && registration != "" {
			hash = model.HashListing(title, price, registration)
		} else {
			incomplete++
		}

		listings = append(listings, model.Listing{
			Hash:         hash,
			URL:          orMissing(link),
			Title:        orMissing(title),
			Price:        orMissing(price),
			Registration: orMissing(registration),
			Mileage:      orMissing(data[labelMileage]),
			Transmission: orMissing(data[labelTransmission]),
			Engine:       orMissing(data[labelEngine]),
			Owners:       ParseOwners(title),
		})
	})

	e.log.Debug().
		Int("rows", len(listings)).
		Int("incomplete", incomplete).
		Msg("Extracted result rows")

	return listings, incomplete, nil
}

// collectDataBlock reads the row's detail table into a label to value
// map. Primary block first, bottom block as fallback, matching where
// the site renders the table on wide and narrow layouts.
func (e *Extractor) collectDataBlock(row *goquery.Selection) map[string]string {
	block := row.Find("div." + e.selectors.DataBlockPrimary).First()
	if block.Length() == 0 {
		block = row.Find("div." + e.selectors.DataBlockFallback).First()
	}

	data := make(map[string]string)
	block.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 2 {
			return
		}
		label := cleanText(cells.Eq(0))
		value := cleanText(cells.Eq(1))
		if label != "" {
			data[label] = value
		}
	})
	return data
}

func cleanText(sel *goquery.Selection) string {
	return helpers.CollapseWhitespace(sel.Text())
}

func orMissing(s string) string {
	if s == "" {
		return model.FieldMissing
	}
	return s
}
