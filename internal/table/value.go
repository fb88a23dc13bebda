package table

import (
	"fmt"
	"strconv"
	"time"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	// KindMissing marks an absent observation.
	KindMissing Kind = iota
	// KindFloat holds a 64-bit floating point number.
	KindFloat
	// KindInt holds a 64-bit signed integer.
	KindInt
	// KindText holds a free-form string.
	KindText
	// KindDate holds a calendar date at UTC midnight.
	KindDate
)

// String returns a short lower-case name for the kind.
func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindText:
		return "text"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is one cell observation. The zero Value is missing, so freshly
// allocated column storage starts out as all-missing.
type Value struct {
	kind Kind
	f    float64
	i    int64
	s    string
	t    time.Time
}

// Missing returns the missing value.
func Missing() Value { return Value{} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Text returns a string value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Date returns a calendar date value, normalized to UTC midnight.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Kind reports which variant the value holds.
func (v Value) Kind() Kind { return v.kind }

// IsMissing reports whether the value is the missing value.
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// Float returns the value as a float64. Integer values are promoted;
// any other kind reads as zero. Callers discriminate with Kind or
// IsMissing first.
func (v Value) Float() float64 {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return float64(v.i)
	default:
		return 0
	}
}

// Int returns the value as an int64, zero for any other kind.
func (v Value) Int() int64 {
	if v.kind != KindInt {
		return 0
	}
	return v.i
}

// Text returns the value as a string, empty for any other kind.
func (v Value) Text() string {
	if v.kind != KindText {
		return ""
	}
	return v.s
}

// Date returns the value as a calendar date, the zero time for any
// other kind.
func (v Value) Date() time.Time {
	if v.kind != KindDate {
		return time.Time{}
	}
	return v.t
}

// String renders the value for logs and error messages. Missing values
// render as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindText:
		return v.s
	case KindDate:
		return v.t.Format("2006-01-02")
	default:
		return ""
	}
}
