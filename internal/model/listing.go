package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// FieldMissing marks a listing field the extractor could not find.
// Formatters treat it the same as an empty value.
const FieldMissing = ":x:"

// Listing is one extracted search result. Hash identifies the listing
// across cycles; URL and the remaining fields are presentation data and
// never participate in identity, since the site rotates session tokens
// inside ad URLs.
type Listing struct {
	Hash         string `json:"hash"`
	URL          string `json:"url"`
	Title        string `json:"title"`
	Price        string `json:"price"`
	Registration string `json:"registration"`
	Mileage      string `json:"mileage"`
	Transmission string `json:"transmission"`
	Engine       string `json:"engine"`

	// Owners is the parsed owner count, or empty when the title does not
	// carry one.
	Owners string `json:"owners,omitempty"`
}

// HashListing derives the stable identity of a listing from its title,
// normalized price and first registration year. The digest is the
// lowercase hex SHA-256 of the three fields joined with "|"; persisted
// rows depend on this exact form, so it must never change.
func HashListing(title, price, registration string) string {
	sum := sha256.Sum256([]byte(title + "|" + price + "|" + registration))
	return hex.EncodeToString(sum[:])
}
