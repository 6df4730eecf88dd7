package resolve

import (
	"math"
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

// ValueStatus classifies a coerced raw value.
type ValueStatus int

const (
	ValueOK ValueStatus = iota
	ValueSuppressed
	ValueUnparseable
)

// spaces strips blank grouping separators.
var spaces = strings.NewReplacer(" ", "", "\u00a0", "")

// grouped matches a numeral whose commas separate groups of three digits.
var grouped = regexp.MustCompile(`^[-+]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// suppressionMarkers are upstream placeholders for withheld or missing data.
var suppressionMarkers = map[string]struct{}{
	"":     {},
	"-":    {},
	"--":   {},
	".":    {},
	"NA":   {},
	"N.A.": {},
	"(D)":  {},
	"(NA)": {},
	"(X)":  {},
	"(S)":  {},
	"(NS)": {},
	"(Z)":  {},
	"(C)":  {},
}

// ParseValue coerces a formatted numeral such as "1,234.5". Suppression
// markers yield ValueSuppressed; anything else that is not a finite number
// yields ValueUnparseable.
func ParseValue(raw string) (float64, ValueStatus) {
	s := strings.TrimSpace(raw)
	if _, ok := suppressionMarkers[strings.ToUpper(s)]; ok {
		return 0, ValueSuppressed
	}
	s = spaces.Replace(s)
	if strings.Contains(s, ",") {
		if !grouped.MatchString(s) {
			return 0, ValueUnparseable
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	v, err := cast.ToFloat64E(s)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ValueUnparseable
	}
	return v, ValueOK
}
