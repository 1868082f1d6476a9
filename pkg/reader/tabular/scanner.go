// Package tabular provides a header-aware line scanner for tab-separated files
package tabular

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// MaxLineSize bounds a single row; msms.txt rows carry full peak lists.
const MaxLineSize = 64 * 1024 * 1024

// Scanner reads a header row and then yields data rows split on tabs
type Scanner struct {
	scanner *bufio.Scanner
	header  []string
	index   map[string]int
	row     []string
	lineNum int
	err     error
}

// NewScanner reads the header row from r
func NewScanner(r io.Reader) (*Scanner, error) {
	s := &Scanner{
		scanner: bufio.NewScanner(r),
		index:   make(map[string]int),
	}
	s.scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	for s.scanner.Scan() {
		s.lineNum++
		line := strings.TrimRight(s.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		s.header = strings.Split(line, "\t")
		for i, col := range s.header {
			col = strings.TrimSpace(col)
			s.header[i] = col
			if _, dup := s.index[col]; !dup {
				s.index[col] = i
			}
		}
		return s, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("missing header row")
}

// Next advances to the next non-empty row. Returns false at EOF or on error.
func (s *Scanner) Next() bool {
	for s.scanner.Scan() {
		s.lineNum++
		line := strings.TrimRight(s.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		s.row = strings.Split(line, "\t")
		return true
	}
	s.err = s.scanner.Err()
	s.row = nil
	return false
}

// Header returns the column names
func (s *Scanner) Header() []string {
	return s.header
}

// Row returns the current row
func (s *Scanner) Row() []string {
	return s.row
}

// Line returns the 1-based line number of the current row
func (s *Scanner) Line() int {
	return s.lineNum
}

// Err returns any error encountered during reading
func (s *Scanner) Err() error {
	return s.err
}

// Has reports whether the header contains column
func (s *Scanner) Has(column string) bool {
	_, ok := s.index[column]
	return ok
}

// Index returns the position of column, or -1
func (s *Scanner) Index(column string) int {
	if i, ok := s.index[column]; ok {
		return i
	}
	return -1
}

// Get returns the trimmed value of column in the current row
func (s *Scanner) Get(column string) (string, bool) {
	i, ok := s.index[column]
	if !ok || i >= len(s.row) {
		return "", false
	}
	return strings.TrimSpace(s.row[i]), true
}

// Require returns the value of a column that must exist
func (s *Scanner) Require(column string) (string, error) {
	v, ok := s.Get(column)
	if !ok {
		return "", fmt.Errorf("line %d: missing required column '%s'", s.lineNum, column)
	}
	return v, nil
}
