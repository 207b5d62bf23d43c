package rowquery

import (
	"strings"
	"time"

	"github.com/crawlserv/crawlserv/errs"
)

// strptimeToGo maps the strptime-style directives spec.md §4.5 op 3 uses
// (default format "%Y-%m-%d %H:%M:%S") to Go's reference-time layout
// tokens.
var strptimeToGo = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "2",
	'H': "15",
	'M': "04",
	'S': "05",
	'B': "January",
	'b': "Jan",
	'A': "Monday",
	'a': "Mon",
	'p': "PM",
	'z': "-0700",
	'Z': "MST",
}

func strptimeToLayout(format string) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] == '%' && i+1 < len(format) {
			if layout, ok := strptimeToGo[format[i+1]]; ok {
				b.WriteString(layout)
				i++
				continue
			}
		}
		b.WriteByte(format[i])
	}
	return b.String()
}

type localeNames struct {
	months       [12]string
	monthsAbbrev [12]string
	days         [7]string
	daysAbbrev   [7]string
}

var englishMonths = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}
var englishMonthsAbbrev = [12]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}
var englishDays = [7]string{
	"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday",
}
var englishDaysAbbrev = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// locales is a small built-in table for the locales parser tests exercise.
// No pack library does locale-aware strptime-style parsing (goodsign/monday
// is not part of this corpus), so non-English month/day names are
// translated to English in place before time.Parse, rather than hand-rolled
// against every locale glibc supports.
var locales = map[string]localeNames{
	"de_DE": {
		months: [12]string{
			"Januar", "Februar", "März", "April", "Mai", "Juni",
			"Juli", "August", "September", "Oktober", "November", "Dezember",
		},
		monthsAbbrev: [12]string{"Jan", "Feb", "Mär", "Apr", "Mai", "Jun", "Jul", "Aug", "Sep", "Okt", "Nov", "Dez"},
		days: [7]string{
			"Sonntag", "Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag",
		},
		daysAbbrev: [7]string{"So", "Mo", "Di", "Mi", "Do", "Fr", "Sa"},
	},
}

func localize(raw, locale string) string {
	if locale == "" || locale == "en_US" {
		return raw
	}
	ln, ok := locales[locale]
	if !ok {
		return raw
	}
	var pairs []string
	for i, name := range ln.months {
		pairs = append(pairs, name, englishMonths[i])
	}
	for i, name := range ln.monthsAbbrev {
		pairs = append(pairs, name, englishMonthsAbbrev[i])
	}
	for i, name := range ln.days {
		pairs = append(pairs, name, englishDays[i])
	}
	for i, name := range ln.daysAbbrev {
		pairs = append(pairs, name, englishDaysAbbrev[i])
	}
	// One pass over raw: a full name listed before its abbreviation wins at
	// the same position ("Montag" before "Mo"), and output is not rescanned.
	return strings.NewReplacer(pairs...).Replace(raw)
}

// ParseDateTime parses raw using a strptime-style format, translating
// locale-specific month/day names to English first. format defaults to
// "%Y-%m-%d %H:%M:%S" when empty, spec.md §4.5 op 3's stated default.
func ParseDateTime(raw, format, locale string) (time.Time, error) {
	if format == "" {
		format = "%Y-%m-%d %H:%M:%S"
	}
	layout := strptimeToLayout(format)
	translated := localize(raw, locale)

	t, err := time.Parse(layout, translated)
	if err != nil {
		return time.Time{}, errs.Wrap(errs.InvalidInput, "rowquery.ParseDateTime", err)
	}
	return t, nil
}
