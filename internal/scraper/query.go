package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"mkobal/avtowatch/internal/model"
)

// Equipment defaults that keep every EQ group wide open. EQ7 is the
// vehicle status group and its default admits new, test and used cars.
var equipmentDefaults = map[string]string{
	"EQ1": "1000000000", "EQ2": "1000000000", "EQ3": "1000000000",
	"EQ4": "1000000000", "EQ5": "1000000000", "EQ6": "1000000000",
	"EQ7": "1110100120",
	"EQ8": "100000000", "EQ9": "1000000020", "EQ10": "1000000000",
}

var equipmentOrder = []string{"EQ1", "EQ2", "EQ3", "EQ4", "EQ5", "EQ6", "EQ7", "EQ8", "EQ9", "EQ10"}

// BuildSearchURL renders the results page URL for one brand pass of a
// filter spec. The site's search form always submits every key, so
// unused filters are sent with their open-range values rather than
// omitted, and parameter order follows the form's own submission.
func BuildSearchURL(baseURL string, f *model.FilterSpec, brand string, page int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s/Ads/results.asp?znamka=%s&model=%s&modelID=&tip=&znamka2=&model2=&tip2=&znamka3=&model3=&tip3=",
		baseURL, url.QueryEscape(brand), url.QueryEscape(f.Model))

	writePriceParams(&b, f)

	if f.DiscountOnly {
		b.WriteString("&akcija=1")
	}
	if f.NoPriceOnly {
		b.WriteString("&brezCene=1")
	}

	fmt.Fprintf(&b, "&letnikMin=%d&letnikMax=%d", f.YearMin, orDefault(f.YearMax, 2090))
	fmt.Fprintf(&b, "&bencin=%d", f.Fuel)
	b.WriteString("&starost2=999")
	fmt.Fprintf(&b, "&oblika=%s", orDefaultString(f.BodyType, "0"))
	fmt.Fprintf(&b, "&ccmMin=%d&ccmMax=%d", f.DisplacementMin, orDefault(f.DisplacementMax, 99999))
	fmt.Fprintf(&b, "&mocMin=%d&mocMax=%d", f.PowerHPMin, orDefault(f.PowerHPMax, 999999))
	fmt.Fprintf(&b, "&kmMin=%d&kmMax=%d", f.MileageMin, orDefault(f.MileageMax, 9999999))
	fmt.Fprintf(&b, "&kwMin=%d&kwMax=%d", f.PowerKWMin, orDefault(f.PowerKWMax, 999))

	b.WriteString("&motortakt=0&motorvalji=0&lokacija=0&sirina=0&dolzina=&dolzinaMIN=0&dolzinaMAX=100&nosilnostMIN=0&nosilnostMAX=999999")
	b.WriteString("&sedezevMIN=0&sedezevMAX=9&lezisc=&presek=0&premer=0&col=0&vijakov=0&EToznaka=0&vozilo=&airbag=&barva=&barvaint=&doseg=0&BkType=0&BkOkvir=0&BkOkvirType=0&Bk4=0")

	for _, key := range equipmentOrder {
		value := equipmentDefaults[key]
		if v, ok := f.Equipment[key]; ok {
			value = v
		}
		fmt.Fprintf(&b, "&%s=%s", key, value)
	}

	// akcija appears once more in the fixed tail; the site honors the
	// first occurrence.
	b.WriteString("&KAT=1010000000&PIA=&PIAzero=&PIAOut=&PSLO=&akcija=0&paketgarancije=&broker=0&prikazkategorije=0&kategorija=0&ONLvid=0&ONLnak=0&zaloga=10&arhiv=0")

	fmt.Fprintf(&b, "&presort=2&tipsort=ASC&stran=%d&subSORT=%s&subTIPSORT=%s",
		page, url.QueryEscape(f.SortBy), url.QueryEscape(f.SortOrder))
	fmt.Fprintf(&b, "&subLOCATION=%s", url.QueryEscape(f.Region))
	fmt.Fprintf(&b, "&subSELLER=%d", orDefault(f.Seller, 2))

	if f.MaxOwners > 0 {
		fmt.Fprintf(&b, "&lastnikov=%d", f.MaxOwners)
	} else {
		b.WriteString("&lastnikov=")
	}

	return b.String()
}

// writePriceParams emits the price section. The band values double as
// UI shortcuts: (3,1000) is "up to 1000", (1,1) is "discounted only"
// and (2,2) is "without price", each mapped to the cena range the form
// submits for that shortcut.
func writePriceParams(b *strings.Builder, f *model.FilterSpec) {
	if f.PriceBandMin > 0 && f.PriceBandMax > 0 {
		fmt.Fprintf(b, "&subcenaMIN=%d&subcenaMAX=%d", f.PriceBandMin, f.PriceBandMax)

		switch {
		case f.PriceBandMin == 3 && f.PriceBandMax == 1000:
			b.WriteString("&cenaMin=0&cenaMax=1000")
		case f.PriceBandMin == 1 && f.PriceBandMax == 1,
			f.PriceBandMin == 2 && f.PriceBandMax == 2:
			b.WriteString("&cenaMin=0&cenaMax=999999")
		case f.PriceBandMin >= 1000:
			fmt.Fprintf(b, "&cenaMin=%d&cenaMax=%d", f.PriceBandMin, f.PriceBandMax)
		default:
			max := f.PriceBandMax
			if max >= 100000 {
				max = 999999
			}
			fmt.Fprintf(b, "&cenaMin=0&cenaMax=%d", max)
		}
		return
	}

	fmt.Fprintf(b, "&cenaMin=%d&cenaMax=%d", f.PriceMin, orDefault(f.PriceMax, 999999))
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orDefaultString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
