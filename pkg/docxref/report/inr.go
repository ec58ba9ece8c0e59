package report

import (
	"math"
	"strconv"
	"strings"
)

var inrPrefixes = []string{"₹", "inr", "rs.", "rs"}

// IsINR reports whether an amount string carries an Indian currency marker.
func IsINR(raw string) bool {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, p := range inrPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// ParseAmount reads the numeric value of an amount such as "₹1,25,000.50"
// or "12,500.00". Group separators may be Indian or western.
func ParseAmount(raw string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, p := range inrPrefixes {
		if strings.HasPrefix(s, p) {
			s = s[len(p):]
			break
		}
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Magnitude expresses v in thousand, lakh or crore. Values below one
// thousand return "".
func Magnitude(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e7:
		return trimFloat(v/1e7) + " crore"
	case abs >= 1e5:
		return trimFloat(v/1e5) + " lakh"
	case abs >= 1e3:
		return trimFloat(v/1e3) + " thousand"
	default:
		return ""
	}
}

// FormatINR annotates an Indian currency amount with its magnitude, e.g.
// "₹1,25,000" becomes "₹1,25,000 (1.25 lakh)". Other strings come back as is.
func FormatINR(raw string) string {
	if !IsINR(raw) {
		return raw
	}
	v, ok := ParseAmount(raw)
	if !ok {
		return raw
	}
	mag := Magnitude(v)
	if mag == "" {
		return raw
	}
	return raw + " (" + mag + ")"
}

func trimFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
