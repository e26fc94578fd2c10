package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"mkobal/avtowatch/pkg/errors"
)

// Safety caps bounding request volume against the remote site. Raising
// them raises the odds of the poller being blocked.
const (
	// MaxBrands is the most brands a single FilterSpec may carry.
	MaxBrands = 2
	// MaxSearchPages is the most result pages scraped per brand per cycle.
	MaxSearchPages = 1
	// PageSize is the site's result page capacity; fewer rows signal the last page.
	PageSize = 48
	// MinCycleInterval is the shortest allowed delay between cycles.
	MinCycleInterval = 2 * time.Minute
)

// Fuel codes as used by the site's search form.
const (
	FuelAny      = 0
	FuelPetrol   = 201
	FuelDiesel   = 202
	FuelElectric = 207
)

// Credentials holds a user's push notification channel secrets.
type Credentials struct {
	APIToken string `json:"pushover_api_token"`
	UserKey  string `json:"pushover_user_key"`
}

// User is one monitored subscriber. The worker holds a read-only snapshot
// per cycle; the store owns the record.
type User struct {
	UserID      string      `json:"user_id"`
	Credentials Credentials `json:"credentials"`
	Filters     FilterSpec  `json:"filters"`
	IsActive    bool        `json:"is_active"`

	// NotifyOnFirstCycle dispatches the full baseline on the first cycle
	// after registration or a filter change, then clears itself.
	NotifyOnFirstCycle bool `json:"notify_on_first_cycle"`

	// Seeded records that the first successful cycle completed. It is a
	// persisted flag, never inferred from SeenSet emptiness, so a store
	// reset is not mistaken for a new user.
	Seeded bool `json:"seeded"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var equipmentKey = regexp.MustCompile(`^EQ([1-9]|10)$`)

// FilterSpec is a user's search constraints. Zero values mean "no
// constraint"; the query builder maps them to the site's open-range
// defaults. Equipment values are opaque site codes passed through verbatim.
type FilterSpec struct {
	Brands []string `json:"brands,omitempty"`
	Model  string   `json:"model,omitempty"`

	PriceMin     int  `json:"price_min,omitempty"`
	PriceMax     int  `json:"price_max,omitempty"`
	PriceBandMin int  `json:"price_band_min,omitempty"`
	PriceBandMax int  `json:"price_band_max,omitempty"`
	DiscountOnly bool `json:"discount_only,omitempty"`
	NoPriceOnly  bool `json:"no_price_only,omitempty"`

	YearMin int `json:"year_min,omitempty"`
	YearMax int `json:"year_max,omitempty"`

	Fuel     int    `json:"fuel,omitempty"`
	BodyType string `json:"body_type,omitempty"`

	MileageMin int `json:"mileage_min,omitempty"`
	MileageMax int `json:"mileage_max,omitempty"`

	PowerKWMin int `json:"power_kw_min,omitempty"`
	PowerKWMax int `json:"power_kw_max,omitempty"`
	PowerHPMin int `json:"power_hp_min,omitempty"`
	PowerHPMax int `json:"power_hp_max,omitempty"`

	DisplacementMin int `json:"displacement_min,omitempty"`
	DisplacementMax int `json:"displacement_max,omitempty"`

	Region    string `json:"region,omitempty"`
	Seller    int    `json:"seller,omitempty"`
	MaxOwners int    `json:"max_owners,omitempty"`

	Equipment map[string]string `json:"equipment,omitempty"`

	Pages     int    `json:"pages,omitempty"`
	SortBy    string `json:"sort_by,omitempty"`
	SortOrder string `json:"sort_order,omitempty"`
}

// Normalize trims brand entries, drops empty ones and coerces the page
// count into the safety cap. It never rejects; Validate does.
func (f *FilterSpec) Normalize() {
	brands := f.Brands[:0]
	for _, b := range f.Brands {
		b = strings.TrimSpace(b)
		if b != "" {
			brands = append(brands, b)
		}
	}
	f.Brands = brands
	if len(f.Brands) == 0 {
		f.Brands = nil
	}

	if f.Pages < 1 {
		f.Pages = 1
	}
	if f.Pages > MaxSearchPages {
		f.Pages = MaxSearchPages
	}
}

// Validate rejects a FilterSpec that must never reach the worker loop.
func (f *FilterSpec) Validate() error {
	if len(f.Brands) > MaxBrands {
		return errors.NewValidation("filters",
			fmt.Sprintf("too many brands: %d given, at most %d allowed", len(f.Brands), MaxBrands))
	}

	for key := range f.Equipment {
		if !equipmentKey.MatchString(key) {
			return errors.NewValidation("filters", fmt.Sprintf("unknown equipment key %q", key))
		}
	}

	ranges := []struct {
		name     string
		min, max int
	}{
		{"price", f.PriceMin, f.PriceMax},
		{"year", f.YearMin, f.YearMax},
		{"mileage", f.MileageMin, f.MileageMax},
		{"power_kw", f.PowerKWMin, f.PowerKWMax},
		{"power_hp", f.PowerHPMin, f.PowerHPMax},
		{"displacement", f.DisplacementMin, f.DisplacementMax},
	}
	for _, r := range ranges {
		if r.min < 0 || r.max < 0 {
			return errors.NewValidation("filters", fmt.Sprintf("%s range must not be negative", r.name))
		}
		if r.min > 0 && r.max > 0 && r.min > r.max {
			return errors.NewValidation("filters", fmt.Sprintf("%s range minimum exceeds maximum", r.name))
		}
	}

	return nil
}

// HasCriteria reports whether the filters constrain the search at all.
// Users without criteria are skipped in a cycle: an unconstrained scrape
// of the whole site is never worth the request volume.
func (f *FilterSpec) HasCriteria() bool {
	return len(f.Brands) > 0 ||
		f.Model != "" ||
		f.PriceMin > 0 || f.PriceMax > 0 ||
		f.PriceBandMin > 0 || f.PriceBandMax > 0
}

// BrandPasses returns one entry per scrape pass. A spec without brands
// still makes a single pass with the brand field left open.
func (f *FilterSpec) BrandPasses() []string {
	if len(f.Brands) == 0 {
		return []string{""}
	}
	return f.Brands
}

// Canonical returns a stable JSON form used to detect filter changes
// across upserts. Map keys marshal sorted, so equality is reliable.
func (f *FilterSpec) Canonical() (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
