// Package msms provides a streaming reader for MaxQuant msms.txt files
package msms

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
	"github.com/ChrisMcGann/ms2rescore/pkg/reader/tabular"
)

// MaxQuant column names
const (
	ColRawFile          = "Raw file"
	ColScanNumber       = "Scan number"
	ColSequence         = "Sequence"
	ColModifiedSequence = "Modified sequence"
	ColCharge           = "Charge"
	ColProteins         = "Proteins"
	ColReverse          = "Reverse"
	ColScore            = "Score"
	ColPEP              = "PEP"
	ColRetentionTime    = "Retention time"
	ColMZ               = "m/z"
	ColMatches          = "Matches"
	ColIntensities      = "Intensities"
	ColMassDeviations   = "Mass deviations [Da]"
	ColIntensityCover   = "Intensity coverage"
)

// MetadataColumns are retained verbatim in PSM metadata for fragment-level features
var MetadataColumns = []string{ColMatches, ColIntensities, ColMassDeviations, ColIntensityCover}

// modAbbreviations maps MaxQuant two-letter labels onto unimod names
var modAbbreviations = map[string]string{
	"ac": "Acetyl",
	"ox": "Oxidation",
	"ph": "Phospho",
	"de": "Deamidated",
	"cm": "Carbamidomethyl",
	"gl": "Gln->pyro-Glu",
	"pe": "Glu->pyro-Glu",
}

// Reader provides streaming access to msms.txt files
type Reader struct {
	table      *tabular.Scanner
	currentPSM *core.PSM
	err        error
}

// NewReader creates a new msms.txt reader and reads the header row
func NewReader(r io.Reader) (*Reader, error) {
	table, err := tabular.NewScanner(r)
	if err != nil {
		return nil, err
	}
	for _, col := range []string{ColRawFile, ColScanNumber, ColModifiedSequence, ColCharge, ColScore} {
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

	charge, err := strconv.Atoi(get(ColCharge))
	if err != nil {
		return nil, fmt.Errorf("invalid charge '%s'", get(ColCharge))
	}
	pf, err := ParseModifiedSequence(get(ColModifiedSequence))
	if err != nil {
		return nil, err
	}
	pf.Charge = charge

	score, err := strconv.ParseFloat(get(ColScore), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid score '%s'", get(ColScore))
	}

	psm := &core.PSM{
		SpectrumID:  get(ColScanNumber),
		Peptidoform: pf,
		Run:         get(ColRawFile),
		Score:       score,
		IsDecoy:     get(ColReverse) == "+",
		Source:      "msms",
	}
	for _, protein := range strings.Split(get(ColProteins), ";") {
		if protein = strings.TrimSpace(protein); protein != "" {
			psm.ProteinList = append(psm.ProteinList, protein)
		}
	}

	if v := get(ColPEP); v != "" {
		pep, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid PEP '%s'", v)
		}
		psm.PEP = &pep
	}
	// MaxQuant reports retention time in minutes
	if v := get(ColRetentionTime); v != "" {
		rt, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid retention time '%s'", v)
		}
		psm.RetentionTime = core.Float64(rt * 60)
	}
	if v := get(ColMZ); v != "" {
		mz, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid m/z '%s'", v)
		}
		psm.PrecursorMZ = &mz
	}

	for _, col := range MetadataColumns {
		if v, ok := r.table.Get(col); ok {
			if psm.Metadata == nil {
				psm.Metadata = make(map[string]string)
			}
			psm.Metadata[col] = v
		}
	}

	return psm, nil
}

// ParseModifiedSequence converts a MaxQuant modified sequence such as
// "_(ac)M(ox)PEPTIDEK_" or "_(Acetyl (Protein N-term))M(Oxidation (M))K_"
// into a peptidoform.
func ParseModifiedSequence(s string) (core.Peptidoform, error) {
	s = strings.Trim(strings.TrimSpace(s), "_")
	if s == "" {
		return core.Peptidoform{}, fmt.Errorf("empty modified sequence")
	}

	var nterm, b strings.Builder
	residues := 0
	for i := 0; i < len(s); {
		c := s[i]
		if c != '(' {
			if c < 'A' || c > 'Z' {
				return core.Peptidoform{}, fmt.Errorf("unexpected character '%c' in modified sequence '%s'", c, s)
			}
			b.WriteByte(c)
			residues++
			i++
			continue
		}

		// Labels may nest one level: "Oxidation (M)"
		depth, j := 0, i
		for ; j < len(s); j++ {
			if s[j] == '(' {
				depth++
			} else if s[j] == ')' {
				depth--
				if depth == 0 {
					break
				}
			}
		}
		if j == len(s) {
			return core.Peptidoform{}, fmt.Errorf("unbalanced parentheses in modified sequence '%s'", s)
		}
		name := modificationName(s[i+1 : j])
		if residues == 0 {
			nterm.WriteString("[" + name + "]")
		} else {
			b.WriteString("[" + name + "]")
		}
		i = j + 1
	}
	if nterm.Len() > 0 {
		return core.ParsePeptidoform(nterm.String() + "-" + b.String())
	}
	return core.ParsePeptidoform(b.String())
}

func modificationName(label string) string {
	if name, ok := modAbbreviations[label]; ok {
		return name
	}
	if k := strings.Index(label, " ("); k > 0 {
		return label[:k]
	}
	return label
}
