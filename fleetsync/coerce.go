package fleetsync

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Coercion helpers for the remote feed. The source system stores almost
// everything as strings (booleans, decimals, "H:M" durations, naive
// datetimes), and malformed values are common. These functions never fail:
// a value that cannot be coerced becomes the type's absent form and the
// caller decides whether that is worth a diagnostic.

var (
	refZoneOnce sync.Once
	refZone     *time.Location
)

// ReferenceZone is the timezone naive datetimes from the feed are promoted
// to before storage. SYNC_TIMEZONE env override; the source deployment runs
// on Indian time.
func ReferenceZone() *time.Location {
	refZoneOnce.Do(func() {
		name := strings.TrimSpace(os.Getenv("SYNC_TIMEZONE"))
		if name == "" {
			name = "Asia/Kolkata"
		}
		loc, err := time.LoadLocation(name)
		if err != nil {
			loc = time.UTC
		}
		refZone = loc
	})
	return refZone
}

// FlexBool accepts native booleans and the string spellings the feed uses.
// Anything else is false.
func FlexBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "1", "yes":
			return true
		}
	}
	return false
}

// DecimalFromAny trims and parses a decimal value. Empty, missing or
// unparsable input yields an invalid NullDecimal, never zero.
func DecimalFromAny(v any) decimal.NullDecimal {
	switch val := v.(type) {
	case nil:
		return decimal.NullDecimal{}
	case decimal.Decimal:
		return decimal.NullDecimal{Decimal: val, Valid: true}
	case json.Number:
		return decimalFromString(val.String())
	case string:
		return decimalFromString(val)
	case float64:
		return decimal.NullDecimal{Decimal: decimal.NewFromFloat(val), Valid: true}
	case int:
		return decimal.NullDecimal{Decimal: decimal.NewFromInt(int64(val)), Valid: true}
	case int64:
		return decimal.NullDecimal{Decimal: decimal.NewFromInt(val), Valid: true}
	default:
		return decimal.NullDecimal{}
	}
}

func decimalFromString(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// HoursFromAny parses working-hours values that arrive either as a plain
// number or as an "H:M" clock string. "2:30" becomes 2.50; "45" becomes
// 45.00. Unparsable input is absent, not zero.
func HoursFromAny(v any) decimal.NullDecimal {
	s := StringFromAny(v)
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}
	if strings.Contains(s, ":") {
		parts := strings.SplitN(s, ":", 2)
		hours, errH := strconv.Atoi(strings.TrimSpace(parts[0]))
		minutes, errM := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errH != nil || errM != nil || hours < 0 || minutes < 0 {
			return decimal.NullDecimal{}
		}
		d := decimal.NewFromInt(int64(hours)).
			Add(decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60))).
			Round(2)
		return decimal.NullDecimal{Decimal: d, Valid: true}
	}
	return decimalFromString(s)
}

var datetimeLayoutsZoned = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

var datetimeLayoutsNaive = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// DateTimeFromAny parses a datetime string. Values without zone information
// are naive local times in the source system and are promoted to the
// reference zone; this is project-wide behavior, not per-call.
func DateTimeFromAny(v any) *time.Time {
	s := strings.TrimSpace(StringFromAny(v))
	if s == "" {
		return nil
	}
	for _, layout := range datetimeLayoutsZoned {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	for _, layout := range datetimeLayoutsNaive {
		if t, err := time.ParseInLocation(layout, s, ReferenceZone()); err == nil {
			return &t
		}
	}
	return nil
}

// DateFromAny parses a date-only string.
func DateFromAny(v any) *time.Time {
	s := strings.TrimSpace(StringFromAny(v))
	if s == "" {
		return nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, ReferenceZone()); err == nil {
		return &t
	}
	return nil
}

// ClockFromAny normalizes a time-of-day string to "15:04:05", or "" when it
// cannot be parsed.
func ClockFromAny(v any) string {
	s := strings.TrimSpace(StringFromAny(v))
	if s == "" {
		return ""
	}
	for _, layout := range []string{"15:04:05", "15:04", "3:04:05 PM", "3:04 PM"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05")
		}
	}
	return ""
}

// StringFromAny renders feed scalars as strings without failing on the
// mixed types the source produces.
func StringFromAny(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
