package series

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Table is a dated frame of named numeric columns sharing one validated
// date index. It is the core input contract.
type Table struct {
	Dates []time.Time

	order []string
	cols  map[string][]Value
}

// NewTable validates dates and returns an empty table over them.
func NewTable(dates []time.Time) (*Table, error) {
	if err := CheckDates(dates); err != nil {
		return nil, err
	}
	return &Table{
		Dates: dates,
		cols:  make(map[string][]Value),
	}, nil
}

// AddColumn appends a column. Its length must match the date index and its
// name must be unique.
func (t *Table) AddColumn(name string, values []Value) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ContractError{Column: name, Reason: "empty column name"}
	}
	if _, dup := t.cols[name]; dup {
		return &ContractError{Column: name, Reason: "duplicate column"}
	}
	if len(values) != len(t.Dates) {
		return &ContractError{Column: name, Reason: fmt.Sprintf("%d values for %d dates", len(values), len(t.Dates))}
	}
	t.cols[name] = values
	t.order = append(t.order, name)
	return nil
}

// Columns returns column names in insertion order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Len returns the number of dates.
func (t *Table) Len() int {
	return len(t.Dates)
}

// Series returns the named column. The returned series shares storage with
// the table and must not be modified.
func (t *Table) Series(name string) (Series, bool) {
	vals, ok := t.cols[name]
	if !ok {
		return Series{}, false
	}
	return Series{Name: name, Dates: t.Dates, Values: vals}, true
}

// WithSuffix returns the sorted instrument names of every column ending in
// suffix, e.g. "_ret" yields MTUM for MTUM_ret.
func (t *Table) WithSuffix(suffix string) []string {
	var out []string
	for _, c := range t.order {
		if strings.HasSuffix(c, suffix) && len(c) > len(suffix) {
			out = append(out, strings.TrimSuffix(c, suffix))
		}
	}
	sort.Strings(out)
	return out
}

// Between returns a new table restricted to dates in [from, to]. A zero
// bound is open.
func (t *Table) Between(from, to time.Time) *Table {
	lo, hi := 0, len(t.Dates)
	if !from.IsZero() {
		lo = sort.Search(len(t.Dates), func(i int) bool { return !t.Dates[i].Before(from) })
	}
	if !to.IsZero() {
		hi = sort.Search(len(t.Dates), func(i int) bool { return t.Dates[i].After(to) })
	}
	if hi < lo {
		hi = lo
	}
	out := &Table{
		Dates: t.Dates[lo:hi],
		order: t.Columns(),
		cols:  make(map[string][]Value, len(t.cols)),
	}
	for name, vals := range t.cols {
		out.cols[name] = vals[lo:hi]
	}
	return out
}
