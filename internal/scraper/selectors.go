package scraper

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"mkobal/avtowatch/pkg/errors"
)

//go:embed selectors.json
var defaultSelectors []byte

// SelectorConfig names the CSS classes of the result page's building
// blocks. The values are class names, not full selectors; callers add
// the element prefix. Keeping them in config lets a site markup change
// be absorbed without a rebuild.
type SelectorConfig struct {
	ResultRow         string `json:"result_row"`
	Title             string `json:"title"`
	PriceMain         string `json:"price_main"`
	PriceFallback     string `json:"price_fallback"`
	Link              string `json:"link"`
	DataBlockPrimary  string `json:"data_block_primary"`
	DataBlockFallback string `json:"data_block_fallback"`
}

// LoadSelectors returns the embedded selector set, or the one in the
// given file when a path is configured.
func LoadSelectors(path string) (SelectorConfig, error) {
	data := defaultSelectors
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return SelectorConfig{}, errors.NewConfiguration("selectors", fmt.Sprintf("read %s", path), err)
		}
	}

	var sel SelectorConfig
	if err := json.Unmarshal(data, &sel); err != nil {
		return SelectorConfig{}, errors.NewConfiguration("selectors", "parse selector config", err)
	}

	if err := sel.validate(); err != nil {
		return SelectorConfig{}, err
	}
	return sel, nil
}

func (s SelectorConfig) validate() error {
	required := map[string]string{
		"result_row": s.ResultRow,
		"title":      s.Title,
		"link":       s.Link,
	}
	for name, value := range required {
		if value == "" {
			return errors.NewConfiguration("selectors", fmt.Sprintf("missing required selector %q", name), nil)
		}
	}
	return nil
}
