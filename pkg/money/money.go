// Package money formats prices the way the storefront displays them:
// dollar sign, dot as thousands separator, comma as decimal separator.
package money

import (
	"fmt"
	"strings"
)

// Format renders v as a currency string, e.g. 1234.5 -> "$1.234,50".
func Format(v float64) string {
	s := fmt.Sprintf("%.2f", v)

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	intPart := s[:len(s)-3]
	decPart := s[len(s)-2:]

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	out := "$" + strings.Join(groups, ".") + "," + decPart
	if neg {
		out = "-" + out
	}
	return out
}
