package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrNoHeaders is returned when no row or no column holds at least two
	// text cells.
	ErrNoHeaders = errors.New("could not detect an indicator header row and a country header column")
	// ErrEmptyMatrix is returned when the input has no cells at all.
	ErrEmptyMatrix = errors.New("matrix is empty")
	// ErrMalformed wraps read and CSV syntax errors.
	ErrMalformed = errors.New("malformed matrix")
)

// Matrix is a rectangular grid of trimmed cells read from a CSV file.
type Matrix struct {
	cells [][]string
	comma rune
	width int
}

// ReadMatrix reads a CSV matrix. The delimiter is ',' unless the first line
// has more ';' than ',', which is what spreadsheets in comma-decimal locales
// export. Ragged rows are allowed.
func ReadMatrix(r io.Reader) (*Matrix, error) {
	br := bufio.NewReader(r)
	first, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if i := bytes.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	comma := ','
	if bytes.Count(first, []byte{';'}) > bytes.Count(first, []byte{','}) {
		comma = ';'
	}

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	m := &Matrix{comma: comma}
	for _, rec := range records {
		row := make([]string, len(rec))
		for i, cell := range rec {
			row[i] = strings.TrimSpace(strings.TrimPrefix(cell, "\ufeff"))
		}
		if len(row) > m.width {
			m.width = len(row)
		}
		m.cells = append(m.cells, row)
	}
	if m.width == 0 {
		return nil, ErrEmptyMatrix
	}
	return m, nil
}

// Rows is the number of rows in the matrix.
func (m *Matrix) Rows() int { return len(m.cells) }

// Cols is the width of the widest row.
func (m *Matrix) Cols() int { return m.width }

// Cell returns the trimmed content at zero-based (row, col), or "" outside
// the grid.
func (m *Matrix) Cell(row, col int) string {
	if row < 0 || row >= len(m.cells) || col < 0 || col >= len(m.cells[row]) {
		return ""
	}
	return m.cells[row][col]
}

// Number parses a numeric cell. With ';' as delimiter a decimal comma is
// accepted.
func (m *Matrix) Number(row, col int) (float64, bool) {
	s := m.Cell(row, col)
	if s == "" {
		return 0, false
	}
	if m.comma == ';' {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// IsText reports whether a cell holds a non-numeric label.
func (m *Matrix) IsText(row, col int) bool {
	if m.Cell(row, col) == "" {
		return false
	}
	_, numeric := m.Number(row, col)
	return !numeric
}

// DetectHeaders returns the first row and the first column with at least two
// text cells. They hold the indicator and country labels respectively.
func (m *Matrix) DetectHeaders() (row, col int, err error) {
	row, col = -1, -1
	for r := 0; r < m.Rows() && row < 0; r++ {
		n := 0
		for c := 0; c < m.Cols(); c++ {
			if m.IsText(r, c) {
				n++
			}
		}
		if n >= 2 {
			row = r
		}
	}
	for c := 0; c < m.Cols() && col < 0; c++ {
		n := 0
		for r := 0; r < m.Rows(); r++ {
			if m.IsText(r, c) {
				n++
			}
		}
		if n >= 2 {
			col = c
		}
	}
	if row < 0 || col < 0 {
		return 0, 0, ErrNoHeaders
	}
	return row, col, nil
}

// CellRef renders zero-based coordinates the way spreadsheets do ("C4").
func CellRef(row, col int) string {
	return columnName(col) + strconv.Itoa(row+1)
}

func columnName(col int) string {
	var b []byte
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}
