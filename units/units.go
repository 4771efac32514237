// Package units converts body measurements between the units an editor types
// in and the canonical values stored on records: whole centimetres for length
// and kilograms (one decimal) for mass.
//
// Unparseable input is not an error. Every function reports it through an ok
// flag or an empty string so form code can treat it as a silent state.
package units

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Unit is a display unit selectable next to a numeric input.
type Unit string

const (
	Centimeters Unit = "cm"
	Inches      Unit = "in"
	Kilograms   Unit = "kg"
	Pounds      Unit = "lb"
)

// Quantity groups units that convert into each other.
type Quantity int

const (
	Unknown Quantity = iota
	Length
	Mass
)

const (
	cmPerInch = 2.54
	lbPerKg   = 2.20462
)

// Quantity reports what u measures.
func (u Unit) Quantity() Quantity {
	switch u {
	case Centimeters, Inches:
		return Length
	case Kilograms, Pounds:
		return Mass
	}
	return Unknown
}

// Valid reports whether u is one of the supported units.
func (u Unit) Valid() bool { return u.Quantity() != Unknown }

// Canonical returns the unit values of u's quantity are stored in.
func (u Unit) Canonical() Unit {
	switch u.Quantity() {
	case Length:
		return Centimeters
	case Mass:
		return Kilograms
	}
	return ""
}

// CmToIn converts centimetres to inches rounded to one decimal.
func CmToIn(cm float64) float64 { return round(cm/cmPerInch, 1) }

// InToCm converts inches to whole centimetres.
func InToCm(in float64) float64 { return math.Round(in * cmPerInch) }

// KgToLb converts kilograms to pounds rounded to two decimals.
func KgToLb(kg float64) float64 { return round(kg*lbPerKg, 2) }

// LbToKg converts pounds to kilograms rounded to one decimal.
func LbToKg(lb float64) float64 { return round(lb/lbPerKg, 1) }

// ToCanonical converts value, expressed in unit, to the canonical unit of its
// quantity. value is either a bare number or a display string previously
// produced by Format, in which case the canonical figure embedded in it wins.
func ToCanonical(value string, unit Unit) (float64, bool) {
	if !unit.Valid() {
		return 0, false
	}
	if v, ok := parseNumber(value); ok {
		return canonicalize(v, unit), true
	}
	var (
		raw    string
		parsed Unit
		ok     bool
	)
	switch unit.Quantity() {
	case Length:
		raw, parsed, ok = ParseHeight(value)
	case Mass:
		raw, parsed, ok = ParseWeight(value)
	}
	if !ok {
		return 0, false
	}
	v, _ := parseNumber(raw)
	return canonicalize(v, parsed), true
}

func canonicalize(v float64, unit Unit) float64 {
	switch unit {
	case Centimeters:
		return math.Round(v)
	case Inches:
		return InToCm(v)
	case Kilograms:
		return round(v, 1)
	case Pounds:
		return LbToKg(v)
	}
	return v
}

// Format renders value (in unit) as the display string stored on a record:
// `5'5" (165 cm)` for length and `60 kg (132.28 lb)` for mass. Unparseable
// input yields "".
func Format(value string, unit Unit) string {
	c, ok := ToCanonical(value, unit)
	if !ok || c <= 0 {
		return ""
	}
	switch unit.Quantity() {
	case Length:
		totalIn := int(math.Round(c / cmPerInch))
		return fmt.Sprintf(`%d'%d" (%s cm)`, totalIn/12, totalIn%12, trim(c))
	case Mass:
		return fmt.Sprintf("%s kg (%s lb)", trim(c), trim(KgToLb(c)))
	}
	return ""
}

var (
	reCentimeters = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*cm\b`)
	reFeetInches  = regexp.MustCompile(`(\d+)\s*(?:'|ft)\s*(?:(\d+(?:\.\d+)?)\s*(?:"|in)?)?`)
	reKilograms   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*kg\b`)
	rePounds      = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:lb|lbs)\b`)
)

// ParseHeight recovers the raw numeric input and unit from a stored height
// display string. A centimetre figure takes precedence over feet and inches;
// a bare number is read as centimetres.
func ParseHeight(display string) (string, Unit, bool) {
	s := strings.ToLower(strings.TrimSpace(display))
	if s == "" {
		return "", Centimeters, false
	}
	if m := reCentimeters.FindStringSubmatch(s); m != nil {
		return m[1], Centimeters, true
	}
	if m := reFeetInches.FindStringSubmatch(s); m != nil {
		ft, _ := strconv.Atoi(m[1])
		in := 0.0
		if m[2] != "" {
			in, _ = strconv.ParseFloat(m[2], 64)
		}
		return trim(float64(ft*12) + in), Inches, true
	}
	if v, ok := parseNumber(s); ok {
		return trim(v), Centimeters, true
	}
	return "", Centimeters, false
}

// ParseWeight recovers the raw numeric input and unit from a stored weight
// display string. Kilograms take precedence; a bare number is kilograms.
func ParseWeight(display string) (string, Unit, bool) {
	s := strings.ToLower(strings.TrimSpace(display))
	if s == "" {
		return "", Kilograms, false
	}
	if m := reKilograms.FindStringSubmatch(s); m != nil {
		return m[1], Kilograms, true
	}
	if m := rePounds.FindStringSubmatch(s); m != nil {
		return m[1], Pounds, true
	}
	if v, ok := parseNumber(s); ok {
		return trim(v), Kilograms, true
	}
	return "", Kilograms, false
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func trim(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
