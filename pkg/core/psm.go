package core

import (
	"sort"
	"strconv"
	"strings"
)

// Provenance keys written before any feature generator or engine runs
const (
	ProvenanceScore  = "before_rescoring_score"
	ProvenanceQValue = "before_rescoring_qvalue"
	ProvenancePEP    = "before_rescoring_pep"
	ProvenanceRank   = "before_rescoring_rank"
)

// PSM represents a single peptide-spectrum match.
type PSM struct {
	// Required fields
	SpectrumID  string      // Opaque key into the source spectral file
	Peptidoform Peptidoform // Sequence, modifications and charge
	Score       float64     // Search engine or rescoring score
	IsDecoy     bool

	// Optional fields
	Run           string
	Collection    string
	QValue        *float64
	PEP           *float64
	Rank          *int // 1 = best for a spectrum
	PrecursorMZ   *float64
	RetentionTime *float64
	ProteinList   []string
	Source        string // Originating search engine or file format

	Metadata          map[string]string
	RescoringFeatures map[string]float64
	ProvenanceData    map[string]string
}

// Charge returns the precursor charge of the peptidoform.
func (p *PSM) Charge() int {
	return p.Peptidoform.Charge
}

// SetFeature stores a rescoring feature, allocating the map on first use.
func (p *PSM) SetFeature(name string, value float64) {
	if p.RescoringFeatures == nil {
		p.RescoringFeatures = make(map[string]float64)
	}
	p.RescoringFeatures[name] = value
}

// SetProvenance stores a provenance annotation, allocating the map on first use.
func (p *PSM) SetProvenance(key, value string) {
	if p.ProvenanceData == nil {
		p.ProvenanceData = make(map[string]string)
	}
	p.ProvenanceData[key] = value
}

// CaptureProvenance snapshots score, q-value, PEP and rank under the
// before_rescoring_* keys.
func (p *PSM) CaptureProvenance() {
	p.SetProvenance(ProvenanceScore, FormatFloat(p.Score))
	p.SetProvenance(ProvenanceQValue, formatOptionalFloat(p.QValue))
	p.SetProvenance(ProvenancePEP, formatOptionalFloat(p.PEP))
	if p.Rank != nil {
		p.SetProvenance(ProvenanceRank, strconv.Itoa(*p.Rank))
	} else {
		p.SetProvenance(ProvenanceRank, "")
	}
}

// ProvenanceFloat returns a numeric provenance value, if present.
func (p *PSM) ProvenanceFloat(key string) (float64, bool) {
	s, ok := p.ProvenanceData[key]
	if !ok || s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// USI returns the universal spectrum identifier of the PSM.
func (p *PSM) USI() string {
	return strings.Join([]string{
		"mzspec",
		p.Collection,
		p.Run,
		p.SpectrumID,
		p.Peptidoform.ProForma(),
	}, ":")
}

// FeatureKeys returns the sorted rescoring feature names of the PSM.
func (p *PSM) FeatureKeys() []string {
	return sortedKeys(p.RescoringFeatures)
}

// FormatFloat renders a float the way all tabular outputs do.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return FormatFloat(*v)
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
