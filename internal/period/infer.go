package period

import (
	"regexp"
	"strconv"
	"strings"
)

// Chicago Fed filenames embed a two-digit year and month after a "call" or
// "calp" prefix, e.g. call8503.zip or call2106.xpt. FFIEC bulk filenames
// embed an eight-digit date in either MMDDYYYY order ("FFIEC CDR Call Bulk
// All Schedules 03312011.zip") or YYYYMMDD order ("FFIEC_20240630.txt").
var (
	chicagoPattern  = regexp.MustCompile(`call?p?(\d{2})(\d{2})`)
	mmddyyyyPattern = regexp.MustCompile(`(\d{2})(\d{2})(\d{4})`)
	yyyymmddPattern = regexp.MustCompile(`(\d{4})(\d{2})(\d{2})`)
)

// Two-digit years at or above the pivot belong to the 1900s; the Chicago
// Fed series starts in 1976.
const chicagoYearPivot = 76

// Plausible year bounds for FFIEC bulk filenames.
const (
	ffiecMinYear = 1985
	ffiecMaxYear = 2030
)

// FromChicagoFilename infers the reporting period from a Chicago Fed raw
// filename. The month token must name a quarter-end month; anything else is
// a definite no-match, never a guess.
func FromChicagoFilename(name string) (Period, bool) {
	m := chicagoPattern.FindStringSubmatch(strings.ToLower(name))
	if m == nil {
		return Period{}, false
	}

	yy, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])

	year := 2000 + yy
	if yy >= chicagoYearPivot {
		year = 1900 + yy
	}

	if _, ok := quarterEndDay[month]; !ok {
		return Period{}, false
	}
	return Period{Year: year, Quarter: month / 3}, true
}

// FromFFIECFilename infers the reporting period from an FFIEC bulk
// filename. The first eight-digit token is tried as MMDDYYYY, then as
// YYYYMMDD; each order gets exactly one attempt. A date on the exact
// quarter-end day names its quarter directly; other plausible dates fall
// back to the quarter containing the month.
func FromFFIECFilename(name string) (Period, bool) {
	if m := mmddyyyyPattern.FindStringSubmatch(name); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if p, ok := ffiecPeriod(year, month, day); ok {
			return p, true
		}
	}

	if m := yyyymmddPattern.FindStringSubmatch(name); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if p, ok := ffiecPeriod(year, month, day); ok {
			return p, true
		}
	}

	return Period{}, false
}

func ffiecPeriod(year, month, day int) (Period, bool) {
	if year < ffiecMinYear || year > ffiecMaxYear || month < 1 || month > 12 || day < 1 || day > 31 {
		return Period{}, false
	}
	if end, ok := quarterEndDay[month]; ok && day == end {
		return Period{Year: year, Quarter: month / 3}, true
	}
	return Period{Year: year, Quarter: (month-1)/3 + 1}, true
}
