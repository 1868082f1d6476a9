// Package mzid reads peptide-spectrum matches from mzIdentML files
package mzid

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
)

// scoreNames lists search engine scores in order of preference. The first
// one present on an identification becomes the PSM score.
var scoreNames = []string{
	"MS-GF:RawScore",
	"Mascot:score",
	"X!Tandem:hyperscore",
	"Comet:xcorr",
	"SEQUEST:xcorr",
	"Andromeda:score",
	"PEAKS:peptideScore",
	"Byonic:Score",
	"PeptideShaker PSM score",
	"MS-GF:SpecEValue",
	"X!Tandem:expect",
	"Comet:expectation value",
	"OMSSA:evalue",
}

// Reader iterates over the identifications of a decoded mzIdentML document
type Reader struct {
	content    mzIdentMLContent
	peptides   map[string]int
	evidence   map[string]int
	accessions map[string]string
	runs       map[string]string
	resultIdx  int
	itemIdx    int
	currentPSM *core.PSM
	err        error
}

// NewReader decodes the mzIdentML document in r
func NewReader(r io.Reader) (*Reader, error) {
	var rd Reader
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	if err := d.Decode(&rd.content); err != nil {
		return nil, err
	}

	rd.peptides = make(map[string]int, len(rd.content.Peptide))
	for i, p := range rd.content.Peptide {
		rd.peptides[p.ID] = i
	}
	rd.evidence = make(map[string]int, len(rd.content.PeptideEvidence))
	for i, pe := range rd.content.PeptideEvidence {
		rd.evidence[pe.ID] = i
	}
	rd.accessions = make(map[string]string, len(rd.content.DBSequence))
	for _, db := range rd.content.DBSequence {
		rd.accessions[db.ID] = db.Accession
	}
	rd.runs = make(map[string]string, len(rd.content.SpectraData))
	for _, sd := range rd.content.SpectraData {
		rd.runs[sd.ID] = runName(sd)
	}
	return &rd, nil
}

// Next advances to the next identification. Returns false when done or on error.
func (r *Reader) Next() bool {
	r.currentPSM = nil
	results := r.content.SpectrumIdentificationResult
	for r.resultIdx < len(results) {
		if r.itemIdx >= len(results[r.resultIdx].SpectrumIdentificationItem) {
			r.resultIdx++
			r.itemIdx = 0
			continue
		}
		psm, err := r.parseItem(&results[r.resultIdx], &results[r.resultIdx].SpectrumIdentificationItem[r.itemIdx])
		r.itemIdx++
		if err != nil {
			r.err = fmt.Errorf("spectrum '%s': %w", results[r.resultIdx].SpectrumID, err)
			return false
		}
		r.currentPSM = psm
		return true
	}
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

func (r *Reader) parseItem(result *spectrumIdentificationResult, item *spectrumIdentificationItem) (*core.PSM, error) {
	pepIdx, ok := r.peptides[item.PeptideRef]
	if !ok {
		return nil, fmt.Errorf("unknown peptide reference '%s'", item.PeptideRef)
	}
	pep := r.content.Peptide[pepIdx]

	pf, err := peptidoform(pep, item.ChargeState)
	if err != nil {
		return nil, err
	}

	psm := &core.PSM{
		SpectrumID:  result.SpectrumID,
		Peptidoform: pf,
		Run:         r.runs[result.SpectraDataRef],
		Source:      "mzid",
	}
	if item.Rank > 0 {
		psm.Rank = core.Int(item.Rank)
	}
	if item.ExperimentalMassToCharge > 0 {
		psm.PrecursorMZ = core.Float64(item.ExperimentalMassToCharge)
	}

	// Spectrum title is more portable than the native spectrum ID
	for _, cv := range result.CvPar {
		if cv.Accession == "MS:1000796" && cv.Value != "" {
			psm.SpectrumID = cv.Value
		}
	}
	if rt, ok, err := retentionTime(result.CvPar); err != nil {
		return nil, err
	} else if ok {
		psm.RetentionTime = core.Float64(rt)
	}

	decoys := 0
	for _, ref := range item.PeptideEvidenceRef {
		i, ok := r.evidence[ref.PeptideEvidenceRef]
		if !ok {
			return nil, fmt.Errorf("unknown peptide evidence reference '%s'", ref.PeptideEvidenceRef)
		}
		pe := r.content.PeptideEvidence[i]
		if acc, ok := r.accessions[pe.DBSequenceRef]; ok {
			psm.ProteinList = append(psm.ProteinList, acc)
		}
		if pe.IsDecoy {
			decoys++
		}
	}
	psm.IsDecoy = decoys > 0 && decoys == len(item.PeptideEvidenceRef)

	if score, ok := selectScore(item); ok {
		psm.Score = score
	}
	for _, cv := range item.CvPar {
		if _, err := strconv.ParseFloat(cv.Value, 64); err == nil && cv.Name != "" {
			if psm.Metadata == nil {
				psm.Metadata = make(map[string]string)
			}
			psm.Metadata[cv.Name] = cv.Value
		}
	}
	for _, up := range item.UserPar {
		if psm.Metadata == nil {
			psm.Metadata = make(map[string]string)
		}
		psm.Metadata[up.Name] = up.Value
	}

	return psm, nil
}

// peptidoform maps mzIdentML locations (0 N-term, 1..n residues, n+1
// C-term) onto peptidoform positions.
func peptidoform(pep peptide, charge int) (core.Peptidoform, error) {
	pf := core.Peptidoform{Sequence: pep.PeptideSequence, Charge: charge}
	n := len(pep.PeptideSequence)
	for _, mod := range pep.Modification {
		loc := 0
		if mod.Location != nil {
			loc = *mod.Location
		}
		if loc < 0 || loc > n+1 {
			return pf, fmt.Errorf("modification location %d outside peptide '%s'", loc, pep.PeptideSequence)
		}
		pos := loc - 1
		if loc == n+1 {
			pos = n
		}
		pf.Modifications = append(pf.Modifications, core.Modification{
			Mass:     mod.MonoisotopicMassDelta,
			Position: pos,
			Name:     modificationName(mod),
		})
	}
	sort.SliceStable(pf.Modifications, func(i, j int) bool {
		return pf.Modifications[i].Position < pf.Modifications[j].Position
	})
	return pf, nil
}

func modificationName(mod modification) string {
	for _, cv := range mod.CvPar {
		if strings.HasPrefix(cv.Accession, "UNIMOD:") && cv.Name != "" {
			return cv.Name
		}
	}
	for _, cv := range mod.CvPar {
		if cv.Name != "" && cv.Name != "unknown modification" {
			return cv.Name
		}
	}
	return strconv.FormatFloat(mod.MonoisotopicMassDelta, 'f', -1, 64)
}

func selectScore(item *spectrumIdentificationItem) (float64, bool) {
	values := make(map[string]float64, len(item.CvPar))
	var first *float64
	for _, cv := range item.CvPar {
		v, err := strconv.ParseFloat(cv.Value, 64)
		if err != nil {
			continue
		}
		values[cv.Name] = v
		if first == nil {
			first = core.Float64(v)
		}
	}
	for _, name := range scoreNames {
		if v, ok := values[name]; ok {
			return v, true
		}
	}
	if first != nil {
		return *first, true
	}
	return 0, false
}

// retentionTime returns the retention time in seconds. Several CV terms can
// carry it; in order of decreasing preference: scan start time (MS:1000016),
// retention time (MS:1000894), elution time (MS:1000826), and the deprecated
// retention time (MS:1001114).
func retentionTime(params []cvParam) (float64, bool, error) {
	prio := map[string]int{"MS:1000016": 1, "MS:1000894": 2, "MS:1000826": 3, "MS:1001114": 4}
	best := math.MaxInt32
	var rt float64
	for _, cv := range params {
		p, ok := prio[cv.Accession]
		if !ok || p >= best {
			continue
		}
		v, err := strconv.ParseFloat(cv.Value, 64)
		if err != nil {
			return 0, false, fmt.Errorf("invalid retention time '%s': %w", cv.Value, err)
		}
		// Minutes, otherwise assume seconds
		if cv.UnitAccession == "UO:0000031" || cv.UnitAccession == "MS:1000038" {
			v *= 60
		}
		best, rt = p, v
	}
	return rt, best != math.MaxInt32, nil
}

func runName(sd spectraData) string {
	name := sd.Location
	if name == "" {
		name = sd.Name
	}
	if name == "" {
		return sd.ID
	}
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	for {
		ext := filepath.Ext(name)
		if ext == "" {
			return name
		}
		switch strings.ToLower(ext) {
		case ".mgf", ".mzml", ".mzxml", ".raw", ".d", ".gz", ".wiff":
			name = strings.TrimSuffix(name, ext)
		default:
			return name
		}
	}
}
