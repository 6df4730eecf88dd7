// Package resolve reduces raw observation revisions to the single
// authoritative cleaned observation per series date.
package resolve

import (
	"strconv"
	"time"

	"github.com/sells-group/macro-cli/internal/model"
)

// PeriodDate maps a BLS period code to its calendar date for a series of
// the given frequency. Annual averages (M13, Q05, S03) land on January 1
// with annual=true. A01 is the regular observation of an annual series.
// Codes that do not belong to the series frequency return ok=false, which
// keeps two codes from ever claiming the same date.
func PeriodDate(freq model.Frequency, year int, period string) (date time.Time, annual bool, ok bool) {
	if len(period) != 3 || year <= 0 {
		return time.Time{}, false, false
	}
	n, err := strconv.Atoi(period[1:])
	if err != nil || n < 1 {
		return time.Time{}, false, false
	}
	kind := model.Frequency(period[:1])

	switch {
	case kind == model.Monthly && freq == model.Monthly:
		if n <= 12 {
			return firstOfMonth(year, n), false, true
		}
		if n == 13 {
			return firstOfMonth(year, 1), true, true
		}
	case kind == model.Quarterly && freq == model.Quarterly:
		if n <= 4 {
			return firstOfMonth(year, (n-1)*3+1), false, true
		}
		if n == 5 {
			return firstOfMonth(year, 1), true, true
		}
	case kind == model.Semiannual && freq == model.Semiannual:
		if n <= 2 {
			return firstOfMonth(year, (n-1)*6+1), false, true
		}
		if n == 3 {
			return firstOfMonth(year, 1), true, true
		}
	case kind == model.Annual && freq == model.Annual:
		if n == 1 {
			return firstOfMonth(year, 1), false, true
		}
	}
	return time.Time{}, false, false
}

func firstOfMonth(year, month int) time.Time {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}
