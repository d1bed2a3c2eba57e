package fleetsync

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFlexBool(t *testing.T) {
	cases := []struct {
		in   any
		want bool
	}{
		{true, true},
		{false, false},
		{"true", true},
		{"True", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"Yes", true},
		{" true ", true},
		{"false", false},
		{"no", false},
		{"0", false},
		{"", false},
		{nil, false},
		{json.Number("1"), false},
		{42, false},
	}
	for _, tc := range cases {
		if got := FlexBool(tc.in); got != tc.want {
			t.Errorf("FlexBool(%#v) = %v; want %v", tc.in, got, tc.want)
		}
	}
}

func TestHoursFromAny(t *testing.T) {
	cases := []struct {
		in    any
		want  string
		valid bool
	}{
		{"2:30", "2.5", true},
		{"0:45", "0.75", true},
		{"10:00", "10", true},
		{"45", "45", true},
		{"1.25", "1.25", true},
		{json.Number("3"), "3", true},
		{"", "", false},
		{nil, "", false},
		{"abc", "", false},
		{"2:xx", "", false},
		{"-1:30", "", false},
	}
	for _, tc := range cases {
		got := HoursFromAny(tc.in)
		if got.Valid != tc.valid {
			t.Errorf("HoursFromAny(%#v).Valid = %v; want %v", tc.in, got.Valid, tc.valid)
			continue
		}
		if tc.valid {
			want, _ := decimal.NewFromString(tc.want)
			if !got.Decimal.Equal(want) {
				t.Errorf("HoursFromAny(%#v) = %s; want %s", tc.in, got.Decimal.String(), tc.want)
			}
		}
	}
}

func TestDecimalFromAnyNeverZeroOnFailure(t *testing.T) {
	for _, in := range []any{"", "  ", "not-a-number", nil, struct{}{}} {
		got := DecimalFromAny(in)
		if got.Valid {
			t.Errorf("DecimalFromAny(%#v) = %s; want absent", in, got.Decimal.String())
		}
	}

	got := DecimalFromAny("1500.50")
	if !got.Valid || got.Decimal.String() != "1500.5" {
		t.Errorf("DecimalFromAny(\"1500.50\") = %+v; want 1500.5", got)
	}
	got = DecimalFromAny(json.Number("0"))
	if !got.Valid || !got.Decimal.IsZero() {
		t.Errorf("DecimalFromAny(json.Number(\"0\")) = %+v; want valid zero", got)
	}
}

func TestDateTimeFromAnyPromotesNaiveToReferenceZone(t *testing.T) {
	got := DateTimeFromAny("2023-06-15T10:30:00")
	if got == nil {
		t.Fatal("expected a parsed time, got nil")
	}
	want := time.Date(2023, 6, 15, 10, 30, 0, 0, ReferenceZone())
	if !got.Equal(want) {
		t.Errorf("naive datetime = %s; want %s", got, want)
	}
}

func TestDateTimeFromAnyKeepsExplicitZone(t *testing.T) {
	got := DateTimeFromAny("2023-06-15T10:30:00+02:00")
	if got == nil {
		t.Fatal("expected a parsed time, got nil")
	}
	want := time.Date(2023, 6, 15, 8, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("zoned datetime = %s; want %s", got, want)
	}
}

func TestDateTimeFromAnyUnparsable(t *testing.T) {
	for _, in := range []any{"", "15/06/2023", "yesterday", nil} {
		if got := DateTimeFromAny(in); got != nil {
			t.Errorf("DateTimeFromAny(%#v) = %s; want nil", in, got)
		}
	}
}

func TestDateFromAny(t *testing.T) {
	got := DateFromAny("2023-06-15")
	if got == nil {
		t.Fatal("expected a parsed date, got nil")
	}
	want := time.Date(2023, 6, 15, 0, 0, 0, 0, ReferenceZone())
	if !got.Equal(want) {
		t.Errorf("date = %s; want %s", got, want)
	}
	if got := DateFromAny("06/15/2023"); got != nil {
		t.Errorf("DateFromAny(\"06/15/2023\") = %s; want nil", got)
	}
}

func TestClockFromAny(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"10:30:15", "10:30:15"},
		{"10:30", "10:30:00"},
		{"2:45 PM", "14:45:00"},
		{"", ""},
		{"late", ""},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := ClockFromAny(tc.in); got != tc.want {
			t.Errorf("ClockFromAny(%#v) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestStringFromAny(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"abc", "abc"},
		{json.Number("12.5"), "12.5"},
		{true, "true"},
		{float64(3), "3"},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := StringFromAny(tc.in); got != tc.want {
			t.Errorf("StringFromAny(%#v) = %q; want %q", tc.in, got, tc.want)
		}
	}
}
