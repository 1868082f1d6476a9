// Package pin provides a streaming reader for Percolator input (PIN) files
package pin

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
	"github.com/ChrisMcGann/ms2rescore/pkg/reader/tabular"
)

// Fixed PIN columns; everything between ScanNr and Peptide is a feature
const (
	ColSpecID   = "SpecId"
	ColLabel    = "Label"
	ColScanNr   = "ScanNr"
	ColPeptide  = "Peptide"
	ColProteins = "Proteins"
)

// Reader provides streaming access to PIN files
type Reader struct {
	table       *tabular.Scanner
	peptideIdx  int
	featureCols []int
	chargeCols  map[int]int // column index -> charge for one-hot Charge<N> columns
	chargeCol   int
	scoreCol    int
	currentPSM  *core.PSM
	err         error
}

// NewReader creates a new PIN reader and reads the header row
func NewReader(r io.Reader) (*Reader, error) {
	table, err := tabular.NewScanner(r)
	if err != nil {
		return nil, err
	}
	for _, col := range []string{ColSpecID, ColLabel, ColPeptide} {
		if !table.Has(col) {
			return nil, fmt.Errorf("missing required column '%s'", col)
		}
	}

	rd := &Reader{
		table:      table,
		peptideIdx: table.Index(ColPeptide),
		chargeCols: make(map[int]int),
		chargeCol:  -1,
		scoreCol:   -1,
	}
	for i, col := range table.Header() {
		if i >= rd.peptideIdx {
			break
		}
		switch col {
		case ColSpecID, ColLabel, ColScanNr:
			continue
		}
		lower := strings.ToLower(col)
		switch {
		case lower == "charge":
			rd.chargeCol = i
		case strings.HasPrefix(lower, "charge"):
			if z, err := strconv.Atoi(lower[len("charge"):]); err == nil {
				rd.chargeCols[i] = z
			}
		case lower == "score":
			rd.scoreCol = i
		}
		rd.featureCols = append(rd.featureCols, i)
	}
	return rd, nil
}

// Next advances to the next PSM. Returns false when no more PSMs or error.
func (r *Reader) Next() bool {
	r.currentPSM = nil
	for r.table.Next() {
		// Optional second header row with default feature directions
		if spec, _ := r.table.Get(ColSpecID); strings.EqualFold(spec, "DefaultDirection") {
			continue
		}
		psm, err := r.parseRow()
		if err != nil {
			r.err = fmt.Errorf("line %d: %w", r.table.Line(), err)
			return false
		}
		r.currentPSM = psm
		return true
	}
	r.err = r.table.Err()
	return false
}

// PSM returns the current PSM
func (r *Reader) PSM() *core.PSM {
	return r.currentPSM
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) parseRow() (*core.PSM, error) {
	row := r.table.Row()
	if len(row) <= r.peptideIdx {
		return nil, fmt.Errorf("expected at least %d columns, got %d", r.peptideIdx+1, len(row))
	}

	label, _ := r.table.Get(ColLabel)
	var isDecoy bool
	switch label {
	case "1", "+1":
		isDecoy = false
	case "-1":
		isDecoy = true
	default:
		return nil, fmt.Errorf("invalid label '%s', expected 1 or -1", label)
	}

	pf, err := core.ParsePeptidoform(StripFlanks(strings.TrimSpace(row[r.peptideIdx])))
	if err != nil {
		return nil, err
	}

	psm := &core.PSM{
		SpectrumID:  strings.TrimSpace(row[r.table.Index(ColSpecID)]),
		Peptidoform: pf,
		IsDecoy:     isDecoy,
		Source:      "percolator",
	}
	for _, protein := range row[r.peptideIdx+1:] {
		if protein = strings.TrimSpace(protein); protein != "" {
			psm.ProteinList = append(psm.ProteinList, protein)
		}
	}

	for _, i := range r.featureCols {
		value, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value '%s' for feature '%s'", row[i], r.table.Header()[i])
		}
		psm.SetFeature(r.table.Header()[i], value)
		switch {
		case i == r.chargeCol:
			psm.Peptidoform.Charge = int(value)
		case i == r.scoreCol:
			psm.Score = value
		}
		if z, ok := r.chargeCols[i]; ok && value == 1 {
			psm.Peptidoform.Charge = z
		}
	}

	if scan, ok := r.table.Get(ColScanNr); ok && scan != "" {
		psm.Metadata = map[string]string{ColScanNr: scan}
	}

	return psm, nil
}

// StripFlanks removes Percolator flanking residues: "K.PEPTIDE.R" -> "PEPTIDE".
func StripFlanks(peptide string) string {
	if len(peptide) >= 4 && peptide[1] == '.' && peptide[len(peptide)-2] == '.' {
		return peptide[2 : len(peptide)-2]
	}
	return peptide
}
