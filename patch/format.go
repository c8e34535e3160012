package patch

import (
	"fmt"
	"strings"
	"time"

	"github.com/tbxark/draftagent/types"
)

// DateLayouts are the accepted input forms of date values, tried in order.
var DateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// FormatValue renders a raw user input the way it is written into a document.
// Dates become long-form ordinal phrases; everything else passes through.
func FormatValue(fieldType types.ParameterType, raw string) string {
	if fieldType != types.ParameterDate {
		return raw
	}
	formatted, ok := FormatDate(raw)
	if !ok {
		return raw
	}
	return formatted
}

// FormatDate turns 2024-06-03 into "3rd day of June, 2024".
func FormatDate(raw string) (string, bool) {
	t, err := ParseDate(raw)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%d%s day of %s, %d", t.Day(), ordinalSuffix(t.Day()), t.Month(), t.Year()), true
}

func ordinalSuffix(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}
