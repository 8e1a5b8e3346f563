package series

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func TestNewRejectsBadDates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		dates  []time.Time
		reason string
	}{
		{"duplicate", []time.Time{day(0), day(1), day(1)}, "duplicate date"},
		{"unordered", []time.Time{day(0), day(2), day(1)}, "before"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New("x", tt.dates, make([]Value, len(tt.dates)))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInputContract))
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestSeriesHelpers(t *testing.T) {
	t.Parallel()

	s, err := New("x", []time.Time{day(0), day(1), day(2)}, []Value{Present(1), Absent, Present(3)})
	require.NoError(t, err)

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 2, s.Count())
	assert.False(t, s.Empty())
	assert.Equal(t, []float64{1, 3}, s.Floats())

	doubled := s.Map("y", func(x float64) float64 { return 2 * x })
	assert.Equal(t, "y", doubled.Name)
	assert.Equal(t, []Value{Present(2), Absent, Present(6)}, doubled.Values)

	idx := s.Index()
	assert.Equal(t, Present(3), s.At(idx, day(2)))
	assert.Equal(t, Absent, s.At(idx, day(9)))
}

func TestReadCSV(t *testing.T) {
	t.Parallel()

	in := `date,Mom,MTUM_ret,VIX
2024-01-01,0.01,,15.5
2024-01-02,-0.02,0.003,NaN
2024-01-03,0.005,NA,16
`
	tbl, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"Mom", "MTUM_ret", "VIX"}, tbl.Columns())
	assert.Equal(t, []string{"MTUM"}, tbl.WithSuffix("_ret"))

	mom, ok := tbl.Series("Mom")
	require.True(t, ok)
	assert.Equal(t, []float64{0.01, -0.02, 0.005}, mom.Floats())

	etf, _ := tbl.Series("MTUM_ret")
	assert.Equal(t, []Value{Absent, Present(0.003), Absent}, etf.Values)

	vix, _ := tbl.Series("VIX")
	assert.Equal(t, 2, vix.Count())
}

func TestReadCSVContractViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		line int
	}{
		{"duplicate date", "date,a\n2024-01-01,1\n2024-01-01,2\n", 3},
		{"unordered", "date,a\n2024-01-02,1\n2024-01-01,2\n", 3},
		{"bad value", "date,a\n2024-01-01,abc\n", 2},
		{"bad date", "date,a\n01/02/2024,1\n", 2},
		{"ragged", "date,a,b\n2024-01-01,1\n", 2},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadCSV(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInputContract))

			var ce *ContractError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.line, ce.Line)
		})
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	t.Parallel()

	tbl, err := NewTable([]time.Time{day(0), day(1)})
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("a", []Value{Present(0.1 + 0.2), Absent}))
	require.NoError(t, tbl.AddColumn("b", []Value{Present(-1e-17), Present(12345.678901234567)}))

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	a, _ := back.Series("a")
	b, _ := back.Series("b")
	assert.Equal(t, []Value{Present(0.1 + 0.2), Absent}, a.Values)
	assert.Equal(t, []Value{Present(-1e-17), Present(12345.678901234567)}, b.Values)
}

func TestTableAddColumnErrors(t *testing.T) {
	t.Parallel()

	tbl, err := NewTable([]time.Time{day(0)})
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("a", []Value{Present(1)}))

	assert.ErrorIs(t, tbl.AddColumn("a", []Value{Present(1)}), ErrInputContract)
	assert.ErrorIs(t, tbl.AddColumn("b", []Value{}), ErrInputContract)
}

func TestTableBetween(t *testing.T) {
	t.Parallel()

	tbl, err := NewTable([]time.Time{day(0), day(1), day(2), day(3)})
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("a", []Value{Present(0), Present(1), Present(2), Present(3)}))

	sub := tbl.Between(day(1), day(2))
	assert.Equal(t, 2, sub.Len())
	a, _ := sub.Series("a")
	assert.Equal(t, []float64{1, 2}, a.Floats())

	open := tbl.Between(time.Time{}, day(0))
	assert.Equal(t, 1, open.Len())
}
