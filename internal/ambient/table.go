package ambient

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/dsmcsim/internal/dynamo"
)

// Columns maps quantities to zero-based column indices of a field table.
// Azimuthal velocity is positive clockwise.
type Columns struct {
	Axial       int
	Radial      int
	Density     int
	VAxial      int
	VRadial     int
	VAzimuthal  int
	Temperature int
}

func DefaultColumns() Columns {
	return Columns{Axial: 0, Radial: 1, Density: 2, VAxial: 4, VRadial: 5, VAzimuthal: 6, Temperature: 7}
}

func (c Columns) max() int {
	m := 0
	for _, v := range []int{c.Axial, c.Radial, c.Density, c.VAxial, c.VRadial, c.VAzimuthal, c.Temperature} {
		m = max(m, v)
	}
	return m
}

func (c Columns) Validate() error {
	for _, v := range []int{c.Axial, c.Radial, c.Density, c.VAxial, c.VRadial, c.VAzimuthal, c.Temperature} {
		if v < 0 {
			return fmt.Errorf("%w: negative column index %d", dynamo.ErrInvalidConfig, v)
		}
	}
	if c.Axial == c.Radial {
		return fmt.Errorf("%w: axial and radial share column %d", dynamo.ErrInvalidConfig, c.Axial)
	}
	return nil
}

// FieldTable holds the rows of an axially symmetric flow-field file:
// one header line followed by whitespace-separated numeric rows.
type FieldTable struct {
	Columns Columns
	Rows    [][]float64
}

func LoadTable(path string, cols Columns) (*FieldTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open field table: %w", err)
	}
	defer f.Close()

	t, err := ReadTable(f, cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func ReadTable(r io.Reader, cols Columns) (*FieldTable, error) {
	if err := cols.Validate(); err != nil {
		return nil, err
	}
	need := cols.max() + 1
	t := &FieldTable{Columns: cols}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if line == 1 {
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < need {
			return nil, fmt.Errorf("%w: line %d has %d columns, need %d", dynamo.ErrInterpolation, line, len(fields), need)
		}
		row := make([]float64, len(fields))
		for i, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %d: %v", dynamo.ErrInterpolation, line, i, err)
			}
			row[i] = v
		}
		t.Rows = append(t.Rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read field table: %w", err)
	}
	if len(t.Rows) < 3 {
		return nil, fmt.Errorf("%w: field table has %d rows, need at least 3", dynamo.ErrInterpolation, len(t.Rows))
	}
	return t, nil
}
