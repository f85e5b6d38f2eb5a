package annotation

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/swdee/go-obbdata/geometry"
	"k8s.io/klog/v2"
)

// tokensPerLine is the number of space separated tokens in a label record,
// 8 coordinates, the class name and the difficulty flag
const tokensPerLine = 10

// byteOrderMark may prefix the first line of files written on Windows
const byteOrderMark = "\ufeff"

// ClassIndex resolves a class name into its integer class id
type ClassIndex interface {
	ID(name string) (int, bool)
}

// Record is a single object annotation read from a label file
type Record struct {
	// Quad is the quadrilateral around the object
	Quad geometry.Quad
	// Class is the class name as written in the label file
	Class string
	// Label is the class id resolved from Class
	Label int
}

// ParseError is returned when a label file line can not be parsed
type ParseError struct {
	File   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s line %d: %s", e.File, e.Line, e.Reason)
}

// InvalidAnnotationError is returned when a label file names a class that is
// not part of the class table
type InvalidAnnotationError struct {
	File  string
	Line  int
	Class string
}

func (e *InvalidAnnotationError) Error() string {
	return fmt.Sprintf("invalid annotation in %s line %d: unknown class %q",
		e.File, e.Line, e.Class)
}

// As lets an unknown class be matched as a *ParseError by errors.As
func (e *InvalidAnnotationError) As(target any) bool {
	perr, ok := target.(**ParseError)

	if !ok {
		return false
	}

	*perr = &ParseError{
		File:   e.File,
		Line:   e.Line,
		Reason: fmt.Sprintf("unknown class %q", e.Class),
	}

	return true
}

// Parser reads DOTA style label files
type Parser struct {
	classes ClassIndex
}

// NewParser returns a Parser resolving class names with the given index
func NewParser(classes ClassIndex) *Parser {
	return &Parser{classes: classes}
}

// ParseFile opens and parses the label file at path
func (p *Parser) ParseFile(path string) ([]Record, error) {

	f, err := os.Open(path)

	if err != nil {
		return nil, errors.Wrapf(err, "error opening label file")
	}

	defer f.Close()

	return p.Parse(f, path)
}

// Parse reads records from r, name identifies the source in errors.  Each
// line holds 8 coordinates, a class name and a difficulty flag.  Records
// flagged difficult (1 or 2) are dropped.  Blank lines are ignored
func (p *Parser) Parse(r io.Reader, name string) ([]Record, error) {

	scanner := bufio.NewScanner(r)
	records := make([]Record, 0)
	lineNum := 0
	dropped := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if lineNum == 1 {
			line = strings.TrimPrefix(line, byteOrderMark)
		}

		tokens := strings.Fields(line)

		if len(tokens) == 0 || isMetadata(tokens) {
			continue
		}

		if len(tokens) != tokensPerLine {
			return nil, &ParseError{
				File: name,
				Line: lineNum,
				Reason: fmt.Sprintf("expected %d tokens, got %d", tokensPerLine,
					len(tokens)),
			}
		}

		var quad geometry.Quad

		for i := 0; i < 8; i++ {
			v, err := parseCoordinate(tokens[i])

			if err != nil {
				return nil, &ParseError{
					File:   name,
					Line:   lineNum,
					Reason: fmt.Sprintf("invalid coordinate %q", tokens[i]),
				}
			}

			quad[i] = v
		}

		className := tokens[8]

		difficult, err := parseDifficulty(tokens[9])

		if err != nil {
			return nil, &ParseError{File: name, Line: lineNum, Reason: err.Error()}
		}

		if difficult {
			dropped++
			continue
		}

		label, ok := p.classes.ID(className)

		if !ok {
			return nil, &InvalidAnnotationError{File: name, Line: lineNum, Class: className}
		}

		records = append(records, Record{
			Quad:  quad,
			Class: className,
			Label: label,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "error reading label file %s", name)
	}

	if dropped > 0 {
		klog.V(2).Infof("%s: dropped %d difficult records", name, dropped)
	}

	return records, nil
}

// parseDifficulty returns true for the difficult levels 1 and 2
func parseDifficulty(tok string) (bool, error) {
	switch tok {
	case "0":
		return false, nil
	case "1", "2":
		return true, nil
	}

	return false, fmt.Errorf("invalid difficulty %q, expected 0, 1 or 2", tok)
}

// parseCoordinate parses a plain decimal number such as 12, -3.5 or 1e3.
// Hex floats, digit separators, NaN and Inf are rejected
func parseCoordinate(tok string) (float32, error) {

	for _, r := range tok {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '+' || r == 'e' || r == 'E':
		default:
			return 0, fmt.Errorf("invalid character %q", r)
		}
	}

	v, err := strconv.ParseFloat(tok, 32)

	if err != nil {
		return 0, err
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("coordinate %q is not finite", tok)
	}

	return float32(v), nil
}

// isMetadata reports if the line is one of the DOTA header lines such as
// "imagesource:GoogleEarth" or "gsd:0.146"
func isMetadata(tokens []string) bool {
	if len(tokens) != 1 {
		return false
	}

	return strings.HasPrefix(tokens[0], "imagesource:") ||
		strings.HasPrefix(tokens[0], "gsd:")
}
