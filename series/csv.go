package series

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadCSV reads an aligned master table from path. See ReadCSV.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadCSV parses a table whose first column is the date (YYYY-MM-DD, or
// RFC3339) and whose remaining columns are numeric. Empty, NA and NaN cells
// are missing. Anything else that does not parse is a contract violation.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &ContractError{Line: 1, Column: "date", Reason: "empty input"}
	}
	if err != nil {
		return nil, csvErr(err)
	}
	if len(header) < 2 {
		return nil, &ContractError{Line: 1, Reason: "need a date column and at least one value column"}
	}
	names := make([]string, len(header)-1)
	for i, h := range header[1:] {
		names[i] = strings.TrimSpace(h)
	}

	var dates []time.Time
	cols := make([][]Value, len(names))
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvErr(err)
		}
		line++

		d, err := parseDate(row[0])
		if err != nil {
			return nil, &ContractError{Line: line, Column: "date", Reason: err.Error()}
		}
		dates = append(dates, d)

		for i, cell := range row[1:] {
			v, err := parseValue(cell)
			if err != nil {
				return nil, &ContractError{Line: line, Column: names[i], Reason: err.Error()}
			}
			cols[i] = append(cols[i], v)
		}
	}

	if err := CheckDates(dates); err != nil {
		var ce *ContractError
		if errors.As(err, &ce) {
			// position i in dates is CSV line i+2
			ce.Line += 2
		}
		return nil, err
	}

	t := &Table{Dates: dates, cols: make(map[string][]Value, len(names))}
	for i, name := range names {
		if err := t.AddColumn(name, cols[i]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// WriteCSV renders the table in the format ReadCSV accepts. Floats use the
// shortest representation that round-trips.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"date"}, t.order...)); err != nil {
		return err
	}
	rec := make([]string, len(t.order)+1)
	for i, d := range t.Dates {
		rec[0] = d.Format(DateLayout)
		for j, name := range t.order {
			rec[j+1] = FormatValue(t.cols[name][i])
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatValue renders a present value with full precision and an absent
// value as the empty string.
func FormatValue(v Value) string {
	if !v.OK {
		return ""
	}
	return strconv.FormatFloat(v.X, 'g', -1, 64)
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(DateLayout, s); err == nil {
		return d, nil
	}
	d, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q", s)
	}
	y, m, day := d.UTC().Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC), nil
}

func parseValue(s string) (Value, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "na", "nan", "null":
		return Absent, nil
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Absent, fmt.Errorf("bad value %q", s)
	}
	if math.IsInf(x, 0) {
		return Absent, fmt.Errorf("infinite value %q", s)
	}
	return Present(x), nil
}

func csvErr(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ContractError{Line: pe.Line, Reason: pe.Err.Error()}
	}
	return err
}
