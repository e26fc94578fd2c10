package notify

import (
	"strings"

	"mkobal/avtowatch/helpers"
	"mkobal/avtowatch/internal/model"
)

// maxTitleRunes keeps titles under Pushover's 250-character cap, with
// room for the leading emoji.
const maxTitleRunes = 240

// FormatListing renders a listing as a push notification title and body.
// Fields the extractor could not fill arrive as ":x:" and are shown
// as-is; only the owner count line is dropped when absent.
func FormatListing(l model.Listing) (title, message string) {
	title = "🚗 " + helpers.TruncateRunes(l.Title, maxTitleRunes)

	var b strings.Builder
	b.WriteString("💰 " + l.Price + " €\n")
	b.WriteString("📅 " + l.Registration + "\n")
	b.WriteString("🛣️ " + l.Mileage + "\n")
	b.WriteString("🔧 " + l.Engine + "\n")
	if l.Owners != "" && l.Owners != model.FieldMissing {
		b.WriteString("👤 Lastnikov: " + l.Owners + "\n")
	}
	b.WriteString("🔗 " + l.URL)

	return title, b.String()
}
