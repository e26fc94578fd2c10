package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mkobal/avtowatch/internal/model"
	"mkobal/avtowatch/pkg/errors"
)

const resultsPageHTML = `<!DOCTYPE html>
<html>
<head><title>Rezultati iskanja</title>
<script>var GO_Results_Naziv = "decoy 9.LASTNIK";</script>
<style>.GO-Results-Naziv { color: red; }</style>
</head>
<body>
<div class="GO-Results">
  <div class="GO-Results-Row">
    <div class="GO-Results-Naziv"><script>trackImpression(12345);</script><span>Audi A4 Avant 2.0 TDI, 1.LASTNIK</span></div>
    <div class="GO-Results-Data-Top">
      <table>
        <tr><td>1.registracija</td><td>2019</td></tr>
        <tr><td>Prevoženih</td><td>98000 km</td></tr>
        <tr><td>Menjalnik</td><td>avtomatski menjalnik</td></tr>
        <tr><td>Motor</td><td>1968 ccm, 140 kW / 190 KM, diesel</td></tr>
      </table>
    </div>
    <div class="GO-Results-Price-TXT-Regular">
      18.990 &euro;
    </div>
    <a class="stretched-link" href="../Ads/details.asp?id=12345"></a>
  </div>
  <div class="GO-Results-Row">
    <div class="GO-Results-Naziv">Volkswagen Golf 1.5 TSI, 2.LASTNICA</div>
    <div class="GO-Results-Data-Bottom">
      <table>
        <tr><td>1.registracija</td><td>2021</td></tr>
        <tr><td>Prevoženih</td><td>41000 km</td></tr>
      </table>
    </div>
    <div class="GO-Results-Price-TXT-AkcijaCena">15.500,00 &euro;</div>
    <div class="GO-Results-Price-TXT-Regular">16.990 &euro;</div>
    <a class="stretched-link" href="../Ads/details.asp?id=67890"></a>
  </div>
  <div class="GO-Results-Row">
    <div class="GO-Results-Naziv">Renault Clio</div>
  </div>
</div>
</body>
</html>`

const noResultsHTML = `<!DOCTYPE html>
<html><body><div class="GO-Results"><p>Ni zadetkov za izbrane kriterije.</p></div></body></html>`

func testSelectors(t *testing.T) SelectorConfig {
	t.Helper()
	sel, err := LoadSelectors("")
	require.NoError(t, err)
	return sel
}

func TestExtract(t *testing.T) {
	ex := NewExtractor(testSelectors(t), testBaseURL)

	listings, incomplete, err := ex.Extract(resultsPageHTML)
	require.NoError(t, err)
	require.Len(t, listings, 3, "every result row yields a record")
	assert.Equal(t, 1, incomplete)

	audi := listings[0]
	assert.Equal(t, "Audi A4 Avant 2.0 TDI, 1.LASTNIK", audi.Title,
		"inline scripts are stripped before text extraction")
	assert.Equal(t, "18990", audi.Price)
	assert.Equal(t, "2019", audi.Registration)
	assert.Equal(t, "98000 km", audi.Mileage)
	assert.Equal(t, "avtomatski menjalnik", audi.Transmission)
	assert.Equal(t, "1968 ccm, 140 kW / 190 KM, diesel", audi.Engine)
	assert.Equal(t, "1", audi.Owners)
	assert.Equal(t, testBaseURL+"/Ads/details.asp?id=12345", audi.URL)
	assert.Equal(t, model.HashListing("Audi A4 Avant 2.0 TDI, 1.LASTNIK", "18990", "2019"), audi.Hash)

	golf := listings[1]
	assert.Equal(t, "15500", golf.Price, "discount price wins over the regular one")
	assert.Equal(t, "2021", golf.Registration, "bottom data block serves as fallback")
	assert.Equal(t, "2", golf.Owners)

	clio := listings[2]
	assert.Equal(t, "Renault Clio", clio.Title)
	assert.Equal(t, model.FieldMissing, clio.Price)
	assert.Equal(t, model.FieldMissing, clio.URL)
	assert.Equal(t, model.FieldMissing, clio.Registration)
	assert.Empty(t, clio.Owners)
	assert.Empty(t, clio.Hash,
		"a row without its identity fields carries no hash")
}

func TestExtractNoResultsPage(t *testing.T) {
	ex := NewExtractor(testSelectors(t), testBaseURL)

	assert.True(t, HasNoResults(noResultsHTML))

	listings, incomplete, err := ex.Extract(noResultsHTML)
	assert.NoError(t, err)
	assert.Empty(t, listings)
	assert.Zero(t, incomplete)
}

func TestExtractUnrecognizedShape(t *testing.T) {
	ex := NewExtractor(testSelectors(t), testBaseURL)

	_, _, err := ex.Extract(`<html><body><h1>Checking your browser</h1></body></html>`)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeExtraction))
}

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"18.990 €", "18990"},
		{"15.500,00 €", "15500"},
		{"Akcijska cena: 12.500 €", "12500"},
		{"1.250.000 €", "1250000"},
		{"Pokličite za ceno", ""},
		{"", ""},
		{"  990 € ", "990"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePrice(tt.raw), "raw %q", tt.raw)
	}
}

func TestParseOwners(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Audi A4, 1.LASTNIK", "1"},
		{"VW Golf, 2.LASTNICA", "2"},
		{"BMW 320d, 2.LASTNIKA, servisna", "2"},
		{"Škoda Octavia, 1.lastnik", "1"},
		{"Renault Clio", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseOwners(tt.title), "title %q", tt.title)
	}
}
