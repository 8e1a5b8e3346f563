// Package series holds the dated value types shared by every stage of the
// crowding pipeline.
package series

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for dates in CSV and SQLite.
const DateLayout = "2006-01-02"

// Value is a tagged float: OK is false for a missing observation. X is
// meaningless when OK is false.
type Value struct {
	X  float64
	OK bool
}

// Present wraps a defined observation.
func Present(x float64) Value {
	return Value{X: x, OK: true}
}

// Absent is the missing marker.
var Absent = Value{}

// Series is an ordered sequence of (date, value) pairs with strictly
// increasing dates.
type Series struct {
	Name   string
	Dates  []time.Time
	Values []Value
}

// New builds a Series and checks the date-key invariant.
func New(name string, dates []time.Time, values []Value) (Series, error) {
	if len(dates) != len(values) {
		return Series{}, &ContractError{Column: name, Reason: fmt.Sprintf("%d dates but %d values", len(dates), len(values))}
	}
	if err := CheckDates(dates); err != nil {
		return Series{}, err
	}
	return Series{Name: name, Dates: dates, Values: values}, nil
}

// FromFloats builds a fully present Series. It is meant for callers that
// already hold validated dates.
func FromFloats(name string, dates []time.Time, xs []float64) Series {
	vals := make([]Value, len(xs))
	for i, x := range xs {
		vals[i] = Present(x)
	}
	return Series{Name: name, Dates: dates, Values: vals}
}

// Len returns the number of dates.
func (s Series) Len() int {
	return len(s.Dates)
}

// Count returns the number of present values.
func (s Series) Count() int {
	n := 0
	for _, v := range s.Values {
		if v.OK {
			n++
		}
	}
	return n
}

// Empty reports whether the series has no present value at all.
func (s Series) Empty() bool {
	return s.Count() == 0
}

// Floats returns the present values in date order.
func (s Series) Floats() []float64 {
	out := make([]float64, 0, len(s.Values))
	for _, v := range s.Values {
		if v.OK {
			out = append(out, v.X)
		}
	}
	return out
}

// Map applies fn to present values and keeps absent ones absent.
func (s Series) Map(name string, fn func(float64) float64) Series {
	out := make([]Value, len(s.Values))
	for i, v := range s.Values {
		if v.OK {
			out[i] = Present(fn(v.X))
		}
	}
	return Series{Name: name, Dates: s.Dates, Values: out}
}

// Renamed returns a shallow copy with a new name.
func (s Series) Renamed(name string) Series {
	s.Name = name
	return s
}

// Index maps each date to its position.
func (s Series) Index() map[time.Time]int {
	idx := make(map[time.Time]int, len(s.Dates))
	for i, d := range s.Dates {
		idx[d] = i
	}
	return idx
}

// At returns the value at date d, or Absent when the date is not in the
// series.
func (s Series) At(idx map[time.Time]int, d time.Time) Value {
	i, ok := idx[d]
	if !ok {
		return Absent
	}
	return s.Values[i]
}

// CheckDates enforces strictly increasing, duplicate-free dates.
func CheckDates(dates []time.Time) error {
	for i := 1; i < len(dates); i++ {
		switch {
		case dates[i].Equal(dates[i-1]):
			return &ContractError{Line: i, Column: "date", Reason: "duplicate date " + dates[i].Format(DateLayout)}
		case dates[i].Before(dates[i-1]):
			return &ContractError{Line: i, Column: "date", Reason: fmt.Sprintf("date %s before %s", dates[i].Format(DateLayout), dates[i-1].Format(DateLayout))}
		}
	}
	return nil
}
