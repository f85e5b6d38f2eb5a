package annotation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/swdee/go-obbdata/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// classTable is a minimal ClassIndex for tests
type classTable map[string]int

func (c classTable) ID(name string) (int, bool) {
	id, ok := c[name]
	return id, ok
}

var testClasses = classTable{"plane": 1, "ship": 2, "small-vehicle": 11}

func TestParse(t *testing.T) {

	input := "\ufeff10 20 50 20 50 40 10 40 plane 0\n" +
		"1 1 2 1 2 2 1 2 ship 1\n" +
		"5.5 6 7 8 9 10 11 12 small-vehicle 0\r\n" +
		"\n\n"

	records, err := NewParser(testClasses).Parse(strings.NewReader(input), "P0001.txt")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, Record{
		Quad:  geometry.Quad{10, 20, 50, 20, 50, 40, 10, 40},
		Class: "plane",
		Label: 1,
	}, records[0])

	assert.Equal(t, "small-vehicle", records[1].Class)
	assert.Equal(t, 11, records[1].Label)
	assert.Equal(t, float32(5.5), records[1].Quad[0])
}

func TestParseDropsDifficult(t *testing.T) {

	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"one difficult one normal", "0 0 4 0 4 4 0 4 plane 1\n0 0 4 0 4 4 0 4 ship 0\n", 1},
		{"difficulty level two", "0 0 4 0 4 4 0 4 plane 2\n", 0},
		{"unknown class on difficult line", "0 0 4 0 4 4 0 4 boat 1\n", 0},
		{"all normal", "0 0 4 0 4 4 0 4 plane 0\n0 0 4 0 4 4 0 4 plane 0", 2},
		{"metadata header", "imagesource:GoogleEarth\ngsd:0.146\n0 0 4 0 4 4 0 4 plane 0\n", 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			records, err := NewParser(testClasses).Parse(strings.NewReader(tc.input), "x.txt")
			require.NoError(t, err)
			assert.Len(t, records, tc.want)
		})
	}
}

func TestParseErrors(t *testing.T) {

	tests := []struct {
		name  string
		input string
		line  int
	}{
		{"seven tokens", "0 0 4 0 4 4 0\n", 1},
		{"too many tokens", "0 0 4 0 4 4 0 4 plane 0 extra\n", 1},
		{"non numeric coordinate", "0 0 4 0 4 4 0 __import__ plane 0\n", 1},
		{"expression coordinate", "0 0 4 0 4 4 0 2*2 plane 0\n", 1},
		{"nan coordinate", "0 0 4 0 4 4 0 NaN plane 0\n", 1},
		{"inf coordinate", "0 0 4 0 Inf 4 0 4 plane 0\n", 1},
		{"negative infinity coordinate", "0 0 4 0 4 4 -Infinity 4 plane 0\n", 1},
		{"hex coordinate", "0 0 4 0 4 4 0 0x1p4 plane 0\n", 1},
		{"underscore coordinate", "0 0 4 0 4 4 0 1_0 plane 0\n", 1},
		{"overflow coordinate", "0 0 4 0 4 4 0 1e60 plane 0\n", 1},
		{"bad difficulty", "0 0 4 0 4 4 0 4 plane x\n", 1},
		{"error on later line", "0 0 4 0 4 4 0 4 plane 0\n\n0 0 4\n", 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewParser(testClasses).Parse(strings.NewReader(tc.input), "bad.txt")
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr), "expected ParseError, got %T", err)
			assert.Equal(t, "bad.txt", perr.File)
			assert.Equal(t, tc.line, perr.Line)
			assert.Contains(t, err.Error(), "bad.txt")
		})
	}
}

func TestParseUnknownClass(t *testing.T) {

	_, err := NewParser(testClasses).Parse(strings.NewReader("0 0 4 0 4 4 0 4 boat 0\n"), "u.txt")
	require.Error(t, err)

	var ierr *InvalidAnnotationError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, "boat", ierr.Class)
	assert.Equal(t, 1, ierr.Line)

	// unknown classes are also parse errors
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "u.txt", perr.File)
	assert.Equal(t, 1, perr.Line)
	assert.Contains(t, perr.Reason, "boat")
}

func TestParseCoordinateForms(t *testing.T) {

	tests := []struct {
		input string
		want  float32
	}{
		{"12", 12},
		{"-3.5", -3.5},
		{"+7", 7},
		{"1e3", 1000},
		{"2.5E-1", 0.25},
		{".5", 0.5},
	}

	for _, tc := range tests {
		v, err := parseCoordinate(tc.input)
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.want, v, tc.input)
	}
}

func TestParseFile(t *testing.T) {

	dir := t.TempDir()
	path := filepath.Join(dir, "P0002.txt")

	err := os.WriteFile(path, []byte("0 0 4 0 4 4 0 4 plane 0\n0 0 4 0 4 4 0 4 ship 1\n"), 0644)
	require.NoError(t, err)

	records, err := NewParser(testClasses).ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = NewParser(testClasses).ParseFile(filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// malformed file reports the path
	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("1 2 3 4 5 6 7\n"), 0644))

	_, err = NewParser(testClasses).ParseFile(bad)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, bad, perr.File)
}
