// Package core provides the in-memory models of a rescoring run: peptide-spectrum
// matches, peptidoforms, observed spectra, and the error taxonomy shared by all
// pipeline stages.
package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Spectrum represents a single observed MS2 spectrum.
type Spectrum struct {
	ID            string   // Spectrum identifier (MGF TITLE)
	PrecursorMZ   float64  // Precursor m/z
	Charge        int      // Precursor charge state, 0 if unknown
	RetentionTime *float64 // Seconds
	Peaks         []Peak   // Fragment peaks

	// Internal tracking
	SourceFile string
}

// Peak represents a single m/z, intensity pair.
type Peak struct {
	MZ        float64
	Intensity float64
}

// ValidationError represents an error found during spectrum validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Validate checks that a spectrum meets all requirements for fragment matching.
func (s *Spectrum) Validate() error {
	var errs []string

	if s.ID == "" {
		errs = append(errs, "identifier is required")
	}
	if s.Charge < 0 {
		errs = append(errs, "charge must not be negative")
	}

	// Validate peaks
	for i, peak := range s.Peaks {
		if math.IsNaN(peak.MZ) || math.IsInf(peak.MZ, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid m/z", i))
		}
		if math.IsNaN(peak.Intensity) || math.IsInf(peak.Intensity, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
		}
		if peak.MZ <= 0 {
			errs = append(errs, fmt.Sprintf("peak %d m/z must be positive", i))
		}
		if peak.Intensity < 0 {
			errs = append(errs, fmt.Sprintf("peak %d intensity must be non-negative", i))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "Spectrum " + s.ID,
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}

// ArePeaksSorted checks if peaks are sorted by m/z in ascending order.
func (s *Spectrum) ArePeaksSorted() bool {
	for i := 1; i < len(s.Peaks); i++ {
		if s.Peaks[i].MZ < s.Peaks[i-1].MZ {
			return false
		}
	}
	return true
}

// SortPeaks sorts peaks by m/z in ascending order.
func (s *Spectrum) SortPeaks() {
	sort.Slice(s.Peaks, func(i, j int) bool {
		return s.Peaks[i].MZ < s.Peaks[j].MZ
	})
}

// TotalIntensity returns the summed intensity of all peaks.
func (s *Spectrum) TotalIntensity() float64 {
	total := 0.0
	for _, peak := range s.Peaks {
		total += peak.Intensity
	}
	return total
}

// MatchPeak returns the index of the most intense peak within tol of mz, or -1.
// Peaks must be sorted.
func (s *Spectrum) MatchPeak(mz, tol float64) int {
	lo := sort.Search(len(s.Peaks), func(i int) bool { return s.Peaks[i].MZ >= mz-tol })
	best := -1
	for i := lo; i < len(s.Peaks) && s.Peaks[i].MZ <= mz+tol; i++ {
		if best < 0 || s.Peaks[i].Intensity > s.Peaks[best].Intensity {
			best = i
		}
	}
	return best
}
