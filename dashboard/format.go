package dashboard

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultLocale is used when no locale is configured.
var DefaultLocale = language.AmericanEnglish

type dateFormat struct {
	tag    language.Tag
	layout string
}

// dateFormats lists the supported display locales; the first is the
// fallback of the matcher.
var dateFormats = []dateFormat{
	{language.AmericanEnglish, "Mon, Jan 2, 2006"},
	{language.BritishEnglish, "Mon, 2 Jan 2006"},
	{language.German, "02.01.2006"},
	{language.French, "02/01/2006"},
	{language.Spanish, "02/01/2006"},
	{language.Japanese, "2006/01/02"},
}

var dateMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(dateFormats))
	for i, f := range dateFormats {
		tags[i] = f.tag
	}
	return language.NewMatcher(tags)
}()

// issuedLayouts are the server date encodings we accept.
var issuedLayouts = []string{
	http.TimeFormat,
	time.RFC1123,
	time.RFC1123Z,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseLocale parses a BCP 47 tag, falling back to DefaultLocale.
func ParseLocale(s string) language.Tag {
	if strings.TrimSpace(s) == "" {
		return DefaultLocale
	}
	tag, err := language.Parse(s)
	if err != nil {
		return DefaultLocale
	}
	return tag
}

// FormatDate renders a server issue date for tag, e.g.
// "Sat, 13 Jan 2024 10:00:00 GMT" becomes "Sat, Jan 13, 2024" in en-US.
// Unparseable input is returned unchanged.
func FormatDate(raw string, tag language.Tag) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range issuedLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		_, idx, _ := dateMatcher.Match(tag)
		return t.Format(dateFormats[idx].layout)
	}
	return raw
}

// FormatScore renders a score with locale grouping and at most two
// fraction digits.
func FormatScore(score decimal.Decimal, tag language.Tag) string {
	p := message.NewPrinter(tag)
	return p.Sprint(number.Decimal(score.InexactFloat64(), number.MaxFractionDigits(2)))
}
