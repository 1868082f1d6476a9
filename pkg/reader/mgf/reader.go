// Package mgf provides a streaming reader for Mascot Generic Format spectrum files
package mgf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
)

// Reader provides streaming access to MGF files
type Reader struct {
	scanner     *bufio.Scanner
	lineNum     int
	currentSpec *core.Spectrum
	err         error
}

// NewReader creates a new MGF reader
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Reader{scanner: scanner}
}

// Next advances to the next spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.currentSpec = nil

	spec, err := r.readSpectrum()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.currentSpec = spec
	return true
}

// Spectrum returns the current spectrum
func (r *Reader) Spectrum() *core.Spectrum {
	return r.currentSpec
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// readSpectrum reads a single BEGIN IONS ... END IONS block
func (r *Reader) readSpectrum() (*core.Spectrum, error) {
	var spec *core.Spectrum

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		// Skip blank lines, comments and global parameters between entries
		if spec == nil {
			if line == "BEGIN IONS" {
				spec = &core.Spectrum{Peaks: []core.Peak{}}
			}
			continue
		}

		switch {
		case line == "":
			continue
		case line == "END IONS":
			if spec.ID == "" {
				return nil, fmt.Errorf("line %d: spectrum without TITLE", r.lineNum)
			}
			if !spec.ArePeaksSorted() {
				spec.SortPeaks()
			}
			return spec, nil
		case line[0] >= '0' && line[0] <= '9':
			peak, err := parsePeak(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			spec.Peaks = append(spec.Peaks, peak)
		default:
			key, value, ok := strings.Cut(line, "=")
			if !ok {
				return nil, fmt.Errorf("line %d: unexpected line '%s'", r.lineNum, line)
			}
			if err := parseParam(spec, key, value); err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if spec != nil {
		return nil, fmt.Errorf("line %d: missing END IONS", r.lineNum)
	}
	return nil, io.EOF
}

func parseParam(spec *core.Spectrum, key, value string) error {
	switch strings.ToUpper(key) {
	case "TITLE":
		spec.ID = value
	case "PEPMASS":
		// PEPMASS may carry the precursor intensity as a second field
		fields := strings.Fields(value)
		if len(fields) == 0 {
			return fmt.Errorf("empty PEPMASS")
		}
		mz, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return fmt.Errorf("invalid PEPMASS '%s': %w", value, err)
		}
		spec.PrecursorMZ = mz
	case "CHARGE":
		charge, err := parseCharge(value)
		if err != nil {
			return err
		}
		spec.Charge = charge
	case "RTINSECONDS":
		rt, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("invalid RTINSECONDS '%s': %w", value, err)
		}
		spec.RetentionTime = core.Float64(rt)
	}
	return nil
}

// parseCharge accepts "2+", "2", "3-" and takes the first of "2+ and 3+".
func parseCharge(value string) (int, error) {
	first := strings.Fields(strings.ReplaceAll(value, ",", " "))
	if len(first) == 0 {
		return 0, fmt.Errorf("empty CHARGE")
	}
	s := first[0]
	sign := 1
	switch {
	case strings.HasSuffix(s, "+"):
		s = strings.TrimSuffix(s, "+")
	case strings.HasSuffix(s, "-"):
		s = strings.TrimSuffix(s, "-")
		sign = -1
	}
	charge, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid CHARGE '%s': %w", value, err)
	}
	return sign * charge, nil
}

// parsePeak parses a peak line (format: "mz intensity [annotation]")
func parsePeak(line string) (core.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return core.Peak{}, fmt.Errorf("invalid peak line '%s', expected 'mz intensity'", line)
	}

	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid m/z value '%s': %w", fields[0], err)
	}

	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid intensity value '%s': %w", fields[1], err)
	}

	return core.Peak{MZ: mz, Intensity: intensity}, nil
}
