package dataset

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplesCSV = `,x,y,floor,filename,ap1,ap2
0,0,0,1,walk-north.csv,-50,-70
1,0,0,1,walk-south.csv,-52,-72
2,1,0,1,walk-north.csv,-60,
3,0,1,2,walk-north.csv,-80,-40
`

func loadSamples(t *testing.T) *Table {
	t.Helper()
	tbl, err := ReadCSV(strings.NewReader(samplesCSV), DefaultReadOptions())
	require.NoError(t, err)
	return tbl
}

func TestReadCSV(t *testing.T) {
	tbl := loadSamples(t)

	assert.Equal(t, 4, tbl.Len())
	assert.Equal(t, []string{"x", "y", "floor", "filename", "ap1", "ap2"}, tbl.Columns())

	names, err := tbl.String(ColumnFilename)
	require.NoError(t, err)
	assert.Equal(t, "walk-south.csv", names[1])

	ap2, err := tbl.Float("ap2")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(ap2[2]), "empty cell should be NaN")
	assert.Equal(t, -40.0, ap2[3])
}

func TestReadCSVErrors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"empty_input", ""},
		{"bad_float", "x,y\n1,abc\n"},
		{"ragged_row", "x,y\n1,2,3\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tc.input), DefaultReadOptions())
			assert.Error(t, err)
		})
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	tbl := loadSamples(t)

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))

	again, err := ReadCSV(&buf, DefaultReadOptions())
	require.NoError(t, err)
	assert.Equal(t, tbl.Columns(), again.Columns())

	want, _ := tbl.Float("ap2")
	got, _ := again.Float("ap2")
	if diff := cmp.Diff(want, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("ap2 mismatch (-want +got):\n%s", diff)
	}
}

func TestAddColumnValidation(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.AddFloat("x", []float64{1, 2}))
	assert.Error(t, tbl.AddFloat("x", []float64{3, 4}), "duplicate column")
	assert.Error(t, tbl.AddFloat("y", []float64{1}), "length mismatch")
	assert.Error(t, tbl.AddString("", []string{"a", "b"}), "empty name")
}

func TestTakeFilterSelect(t *testing.T) {
	tbl := loadSamples(t)

	north := tbl.Filter(func(row int) bool {
		names, _ := tbl.String(ColumnFilename)
		return strings.HasPrefix(names[row], "walk-north")
	})
	assert.Equal(t, 3, north.Len())

	taken := tbl.Take([]int{3, 0})
	x, _ := taken.Float(ColumnX)
	y, _ := taken.Float(ColumnY)
	assert.Equal(t, []float64{0, 0}, x)
	assert.Equal(t, []float64{1, 0}, y)

	sel, err := tbl.Select("ap1", ColumnX)
	require.NoError(t, err)
	assert.Equal(t, []string{"ap1", ColumnX}, sel.Columns())
	assert.Equal(t, 4, sel.Len())

	_, err = tbl.Select("missing")
	assert.Error(t, err)
}

func TestColumnsWithPrefix(t *testing.T) {
	tbl := loadSamples(t)
	assert.Equal(t, []string{"ap1", "ap2"}, tbl.ColumnsWithPrefix("ap"))
	assert.Empty(t, tbl.ColumnsWithPrefix("file"), "string columns are not features")
}

func TestMatrix(t *testing.T) {
	tbl := loadSamples(t)

	m, err := tbl.Matrix([]string{ColumnX, ColumnY})
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 1.0, m.At(3, 1))

	empty := tbl.Take(nil)
	m, err = empty.Matrix([]string{ColumnX})
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = tbl.Matrix([]string{ColumnFilename})
	assert.Error(t, err)
}

func TestWithString(t *testing.T) {
	tbl := loadSamples(t)
	tagged, err := tbl.WithString("scenario_name", "run_full_data")
	require.NoError(t, err)

	assert.False(t, tbl.Has("scenario_name"), "receiver must not be modified")
	col, err := tagged.String("scenario_name")
	require.NoError(t, err)
	assert.Equal(t, []string{"run_full_data", "run_full_data", "run_full_data", "run_full_data"}, col)
}

func TestConcat(t *testing.T) {
	tbl := loadSamples(t)
	both, err := Concat(tbl.Take([]int{0}), tbl.Take([]int{2, 3}))
	require.NoError(t, err)
	assert.Equal(t, 3, both.Len())

	x, _ := both.Float(ColumnX)
	assert.Equal(t, []float64{0, 1, 0}, x)

	sel, _ := tbl.Select(ColumnX)
	_, err = Concat(tbl, sel)
	assert.Error(t, err)

	empty, err := Concat()
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}
