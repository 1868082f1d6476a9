// Package tsv provides a streaming reader for psm_utils-style PSM tables
package tsv

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
	"github.com/ChrisMcGann/ms2rescore/pkg/reader/tabular"
)

// Column prefixes for the free-form maps of a PSM
const (
	MetadataPrefix   = "metadata:"
	ProvenancePrefix = "provenance:"
	RescoringPrefix  = "rescoring:"
)

// Reader provides streaming access to PSM TSV files
type Reader struct {
	table      *tabular.Scanner
	currentPSM *core.PSM
	err        error
}

// NewReader creates a new TSV reader and reads the header row
func NewReader(r io.Reader) (*Reader, error) {
	table, err := tabular.NewScanner(r)
	if err != nil {
		return nil, err
	}
	for _, col := range []string{core.FieldSpectrumID, core.FieldPeptidoform} {
		if !table.Has(col) {
			return nil, fmt.Errorf("missing required column '%s'", col)
		}
	}
	return &Reader{table: table}, nil
}

// Next advances to the next PSM. Returns false when no more PSMs or error.
func (r *Reader) Next() bool {
	r.currentPSM = nil
	if !r.table.Next() {
		r.err = r.table.Err()
		return false
	}
	psm, err := r.parseRow()
	if err != nil {
		r.err = fmt.Errorf("line %d: %w", r.table.Line(), err)
		return false
	}
	r.currentPSM = psm
	return true
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
	get := func(col string) string {
		v, _ := r.table.Get(col)
		return v
	}

	pf, err := core.ParsePeptidoform(get(core.FieldPeptidoform))
	if err != nil {
		return nil, err
	}

	psm := &core.PSM{
		SpectrumID:  get(core.FieldSpectrumID),
		Peptidoform: pf,
		Run:         get(core.FieldRun),
		Collection:  get(core.FieldCollection),
		ProteinList: core.ParseProteinList(get(core.FieldProteinList)),
		Source:      get(core.FieldSource),
	}
	if psm.Source == "" {
		psm.Source = "tsv"
	}

	if v := get(core.FieldIsDecoy); v != "" {
		if psm.IsDecoy, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid is_decoy value '%s'", v)
		}
	}
	if v := get(core.FieldScore); v != "" {
		if psm.Score, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid score value '%s'", v)
		}
	}
	for col, dst := range map[string]**float64{
		core.FieldQValue:        &psm.QValue,
		core.FieldPEP:           &psm.PEP,
		core.FieldPrecursorMZ:   &psm.PrecursorMZ,
		core.FieldRetentionTime: &psm.RetentionTime,
	} {
		if *dst, err = parseOptionalFloat(get(col)); err != nil {
			return nil, fmt.Errorf("invalid %s value: %w", col, err)
		}
	}
	if v := get(core.FieldRank); v != "" {
		rank, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid rank value '%s'", v)
		}
		psm.Rank = core.Int(rank)
	}

	for i, col := range r.table.Header() {
		if i >= len(r.table.Row()) {
			break
		}
		value := strings.TrimSpace(r.table.Row()[i])
		switch {
		case strings.HasPrefix(col, MetadataPrefix):
			if psm.Metadata == nil {
				psm.Metadata = make(map[string]string)
			}
			psm.Metadata[strings.TrimPrefix(col, MetadataPrefix)] = value
		case strings.HasPrefix(col, ProvenancePrefix):
			psm.SetProvenance(strings.TrimPrefix(col, ProvenancePrefix), value)
		case strings.HasPrefix(col, RescoringPrefix):
			// Empty cells mean the feature was never computed for this PSM
			if value == "" {
				continue
			}
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid feature value '%s' in column '%s'", value, col)
			}
			psm.SetFeature(strings.TrimPrefix(col, RescoringPrefix), f)
		}
	}

	return psm, nil
}

func parseOptionalFloat(s string) (*float64, error) {
	if s == "" || strings.EqualFold(s, "none") || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
