package application

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jobrunner/geotrans/internal/domain"
)

// BatchFile is a parsed coordinate batch file.
type BatchFile struct {
	Source string          // Source CRS from a "# source:" directive
	Target string          // Target CRS from a "# target:" directive
	Points []domain.Point3 // Points in file order
	Lines  []int           // Line number of each point
}

// ParseBatch reads "x,y[,z]" lines. Ordinates may be separated by commas,
// semicolons, tabs or blanks. Lines starting with '#' are comments, except
// for the "# source: CODE" and "# target: CODE" directives.
func ParseBatch(r io.Reader) (*BatchFile, error) {
	f := &BatchFile{}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "#") {
			f.directive(strings.TrimSpace(text[1:]))
			continue
		}

		p, err := ParsePoint(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		f.Points = append(f.Points, p)
		f.Lines = append(f.Lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading batch: %w", err)
	}
	return f, nil
}

func (f *BatchFile) directive(text string) {
	key, value, ok := strings.Cut(text, ":")
	if !ok {
		return
	}
	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "source", "from":
		f.Source = value
	case "target", "to":
		f.Target = value
	}
}

// ParsePoint parses a single "x,y[,z]" tuple.
func ParsePoint(text string) (domain.Point3, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == '\t' || r == ' '
	})
	if len(fields) < 2 || len(fields) > 3 {
		return domain.Point3{}, fmt.Errorf("%q: expected 2 or 3 ordinates, got %d: %w",
			text, len(fields), domain.ErrInvalidCoordinate)
	}

	var v [3]float64
	for i, field := range fields {
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return domain.Point3{}, fmt.Errorf("%q: %w", field, domain.ErrInvalidCoordinate)
		}
		v[i] = f
	}
	if len(fields) == 2 {
		return domain.NewPoint2(v[0], v[1]), nil
	}
	return domain.NewPoint3(v[0], v[1], v[2]), nil
}
