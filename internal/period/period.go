// Package period provides the fiscal quarter type used throughout the
// pipeline and the filename inference rules that map raw file names to
// reporting periods.
package period

import (
	"fmt"
	"time"
)

// Period identifies one fiscal reporting quarter.
type Period struct {
	Year    int
	Quarter int
}

// quarterEndDay maps quarter-end month to its fixed last day.
var quarterEndDay = map[int]int{3: 31, 6: 30, 9: 30, 12: 31}

// New returns the period for a year and quarter. Quarter must be 1..4.
func New(year, quarter int) Period {
	return Period{Year: year, Quarter: quarter}
}

// FromDate returns the period containing t.
func FromDate(t time.Time) Period {
	return Period{Year: t.Year(), Quarter: (int(t.Month())-1)/3 + 1}
}

// EndDate returns the canonical quarter-end date: Mar 31, Jun 30, Sep 30 or
// Dec 31 of the period's year, at UTC midnight.
func (p Period) EndDate() time.Time {
	month := p.Quarter * 3
	return time.Date(p.Year, time.Month(month), quarterEndDay[month], 0, 0, 0, 0, time.UTC)
}

// String renders the period as "2024Q2". This is also the canonical
// artifact stem.
func (p Period) String() string {
	return fmt.Sprintf("%dQ%d", p.Year, p.Quarter)
}

// IsZero reports whether p is the zero period.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Quarter == 0
}

// Next returns the following quarter, rolling the year at Q4.
func (p Period) Next() Period {
	if p.Quarter == 4 {
		return Period{Year: p.Year + 1, Quarter: 1}
	}
	return Period{Year: p.Year, Quarter: p.Quarter + 1}
}

// Before reports whether p ends before q.
func (p Period) Before(q Period) bool {
	if p.Year != q.Year {
		return p.Year < q.Year
	}
	return p.Quarter < q.Quarter
}

// After reports whether p ends after q.
func (p Period) After(q Period) bool {
	return q.Before(p)
}

// Parse reads a period from its canonical "2024Q2" form.
func Parse(s string) (Period, error) {
	var year, quarter int
	if _, err := fmt.Sscanf(s, "%dQ%d", &year, &quarter); err != nil {
		return Period{}, fmt.Errorf("invalid period %q: %w", s, err)
	}
	if quarter < 1 || quarter > 4 {
		return Period{}, fmt.Errorf("invalid period %q: quarter out of range", s)
	}
	return Period{Year: year, Quarter: quarter}, nil
}

// Range returns every quarter from start through end inclusive. An empty
// slice is returned when start is after end.
func Range(start, end Period) []Period {
	var out []Period
	for p := start; !p.After(end); p = p.Next() {
		out = append(out, p)
	}
	return out
}

// InBounds reports whether the period's end date falls inside the optional
// [start, end] date bounds. A zero bound is open.
func (p Period) InBounds(start, end time.Time) bool {
	d := p.EndDate()
	if !start.IsZero() && d.Before(start) {
		return false
	}
	if !end.IsZero() && d.After(end) {
		return false
	}
	return true
}
