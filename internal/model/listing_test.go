package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashListingIgnoresURL(t *testing.T) {
	a := Listing{
		URL:          "https://www.avto.net/Ads/details.asp?id=123&sid=abc",
		Title:        "Audi A4 Avant 2.0 TDI",
		Price:        "18990",
		Registration: "2019",
	}
	b := Listing{
		URL:          "https://www.avto.net/Ads/details.asp?id=123&sid=zzz",
		Title:        "Audi A4 Avant 2.0 TDI",
		Price:        "18990",
		Registration: "2019",
	}

	ha := HashListing(a.Title, a.Price, a.Registration)
	hb := HashListing(b.Title, b.Price, b.Registration)

	assert.Equal(t, ha, hb, "identity must survive URL churn")
	assert.Len(t, ha, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", ha)
}

func TestHashListingSensitiveToIdentityFields(t *testing.T) {
	base := HashListing("Audi A4", "18990", "2019")

	assert.NotEqual(t, base, HashListing("Audi A4 S line", "18990", "2019"))
	assert.NotEqual(t, base, HashListing("Audi A4", "17990", "2019"))
	assert.NotEqual(t, base, HashListing("Audi A4", "18990", "2020"))
}

func TestHashListingKnownDigest(t *testing.T) {
	// Pinned digest of "Audi A4|18990|2019". Changing the joining rule or
	// the digest would orphan every persisted row.
	assert.Equal(t,
		"6eed9b5620ff73a5fa67834ab9b7b8f0017b7e2d6f8f6e9623264cac0530e887",
		HashListing("Audi A4", "18990", "2019"))
}
