package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

var (
	dayMonthYearPattern = regexp.MustCompile(`(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4})`)
	yearMonthDayPattern = regexp.MustCompile(`(\d{4})[/\-.](\d{1,2})[/\-.](\d{1,2})`)
)

// dateStrategy attempts to read a date from an entity
type dateStrategy func(entity *RecognizedEntity) (civil.Date, bool)

// dateStrategies are tried in order; the first one yielding a valid date wins
var dateStrategies = []dateStrategy{
	dateFromStructuredValue,
	dateFromNormalizedText,
	dateFromMentionText,
}

// ExtractDate derives a calendar date from an expiry_date entity.
// A nil entity yields no date.
func ExtractDate(entity *RecognizedEntity) (civil.Date, bool) {
	if entity == nil {
		return civil.Date{}, false
	}
	for _, strategy := range dateStrategies {
		if date, ok := strategy(entity); ok {
			return date, true
		}
	}
	return civil.Date{}, false
}

// dateFromStructuredValue uses normalizedValue.dateValue when all three
// components are present
func dateFromStructuredValue(entity *RecognizedEntity) (civil.Date, bool) {
	if entity.NormalizedValue == nil || entity.NormalizedValue.DateValue == nil {
		return civil.Date{}, false
	}
	dv := entity.NormalizedValue.DateValue
	if dv.Year == nil || dv.Month == nil || dv.Day == nil {
		return civil.Date{}, false
	}
	return buildDate(*dv.Year, *dv.Month, *dv.Day)
}

// dateFromNormalizedText parses the first 10 characters of
// normalizedValue.text as YYYY-MM-DD, which tolerates a trailing time part
func dateFromNormalizedText(entity *RecognizedEntity) (civil.Date, bool) {
	if entity.NormalizedValue == nil || entity.NormalizedValue.Text == nil {
		return civil.Date{}, false
	}
	text := []rune(strings.TrimSpace(*entity.NormalizedValue.Text))
	if len(text) > 10 {
		text = text[:10]
	}
	date, err := civil.ParseDate(string(text))
	if err != nil {
		return civil.Date{}, false
	}
	return date, true
}

// dateFromMentionText looks for DD/MM/YYYY and then YYYY/MM/DD anywhere in
// the raw mention. Separators may be '/', '-' or '.'.
// Only the first match of the first matching pattern is considered.
func dateFromMentionText(entity *RecognizedEntity) (civil.Date, bool) {
	if entity.MentionText == nil {
		return civil.Date{}, false
	}
	text := strings.TrimSpace(*entity.MentionText)

	if m := dayMonthYearPattern.FindStringSubmatch(text); m != nil {
		return buildDate(atoi(m[3]), atoi(m[2]), atoi(m[1]))
	}
	if m := yearMonthDayPattern.FindStringSubmatch(text); m != nil {
		return buildDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	return civil.Date{}, false
}

// buildDate rejects out-of-range components instead of normalizing them
func buildDate(year, month, day int) (civil.Date, bool) {
	date := civil.Date{Year: year, Month: time.Month(month), Day: day}
	if !date.IsValid() {
		return civil.Date{}, false
	}
	return date, true
}

// atoi is only fed regexp digit groups
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
