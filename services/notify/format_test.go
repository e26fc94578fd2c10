package notify

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"mkobal/avtowatch/internal/model"
)

func TestFormatListing(t *testing.T) {
	l := model.Listing{
		Title:        "Audi A4 Avant 2.0 TDI",
		Price:        "18990",
		Registration: "2019",
		Mileage:      "89000 km",
		Engine:       "140 kW (190 KM)",
		Owners:       "1",
		URL:          "https://www.avto.net/Ads/details.asp?id=12345",
	}

	title, message := FormatListing(l)

	assert.Equal(t, "🚗 Audi A4 Avant 2.0 TDI", title)
	assert.Equal(t,
		"💰 18990 €\n"+
			"📅 2019\n"+
			"🛣️ 89000 km\n"+
			"🔧 140 kW (190 KM)\n"+
			"👤 Lastnikov: 1\n"+
			"🔗 https://www.avto.net/Ads/details.asp?id=12345",
		message)
}

func TestFormatListingWithoutOwners(t *testing.T) {
	l := model.Listing{
		Title:        "BMW 320d",
		Price:        "21500",
		Registration: "2020",
		Mileage:      "64000 km",
		Engine:       "140 kW (190 KM)",
		URL:          "https://www.avto.net/Ads/details.asp?id=777",
	}

	_, message := FormatListing(l)
	assert.NotContains(t, message, "👤")
}

func TestFormatListingTruncatesLongTitle(t *testing.T) {
	l := model.Listing{
		Title: "Škoda Octavia Combi " + strings.Repeat("z", 300),
		URL:   "https://www.avto.net/Ads/details.asp?id=5",
	}

	title, _ := FormatListing(l)

	assert.LessOrEqual(t, utf8.RuneCountInString(title), 250, "Pushover caps titles at 250 characters")
	assert.True(t, strings.HasSuffix(title, "…"))
	assert.True(t, strings.HasPrefix(title, "🚗 Škoda Octavia Combi "))
}

func TestFormatListingMissingFieldsShownAsIs(t *testing.T) {
	l := model.Listing{
		Title:        "Renault Clio",
		Price:        model.FieldMissing,
		Registration: model.FieldMissing,
		Mileage:      model.FieldMissing,
		Engine:       model.FieldMissing,
		Owners:       model.FieldMissing,
		URL:          "https://www.avto.net/Ads/details.asp?id=9",
	}

	title, message := FormatListing(l)

	assert.Equal(t, "🚗 Renault Clio", title)
	assert.Contains(t, message, "💰 :x: €")
	assert.NotContains(t, message, "Lastnikov")
}
