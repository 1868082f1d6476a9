package core

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Field names accepted by Project and Assign
const (
	FieldSpectrumID        = "spectrum_id"
	FieldPeptidoform       = "peptidoform"
	FieldRun               = "run"
	FieldCollection        = "collection"
	FieldIsDecoy           = "is_decoy"
	FieldScore             = "score"
	FieldQValue            = "qvalue"
	FieldPEP               = "pep"
	FieldRank              = "rank"
	FieldPrecursorMZ       = "precursor_mz"
	FieldRetentionTime     = "retention_time"
	FieldProteinList       = "protein_list"
	FieldSource            = "source"
	FieldMetadata          = "metadata"
	FieldRescoringFeatures = "rescoring_features"
	FieldProvenanceData    = "provenance_data"
)

// PSMList is an ordered collection of PSMs. It is owned by a single pipeline
// run and mutated in place by each stage; it performs no locking.
type PSMList struct {
	psms []*PSM
}

// NewPSMList wraps psms in a collection without copying.
func NewPSMList(psms []*PSM) *PSMList {
	return &PSMList{psms: psms}
}

// Len returns the number of PSMs.
func (l *PSMList) Len() int {
	return len(l.psms)
}

// At returns the PSM at index i.
func (l *PSMList) At(i int) *PSM {
	return l.psms[i]
}

// All returns the underlying PSM slice.
func (l *PSMList) All() []*PSM {
	return l.psms
}

// Append adds PSMs to the end of the collection.
func (l *PSMList) Append(psms ...*PSM) {
	l.psms = append(l.psms, psms...)
}

// Project returns one field across the whole collection.
func (l *PSMList) Project(field string) ([]any, error) {
	values := make([]any, len(l.psms))
	for i, p := range l.psms {
		switch field {
		case FieldSpectrumID:
			values[i] = p.SpectrumID
		case FieldPeptidoform:
			values[i] = p.Peptidoform
		case FieldRun:
			values[i] = p.Run
		case FieldCollection:
			values[i] = p.Collection
		case FieldIsDecoy:
			values[i] = p.IsDecoy
		case FieldScore:
			values[i] = p.Score
		case FieldQValue:
			values[i] = p.QValue
		case FieldPEP:
			values[i] = p.PEP
		case FieldRank:
			values[i] = p.Rank
		case FieldPrecursorMZ:
			values[i] = p.PrecursorMZ
		case FieldRetentionTime:
			values[i] = p.RetentionTime
		case FieldProteinList:
			values[i] = p.ProteinList
		case FieldSource:
			values[i] = p.Source
		case FieldMetadata:
			values[i] = p.Metadata
		case FieldRescoringFeatures:
			values[i] = p.RescoringFeatures
		case FieldProvenanceData:
			values[i] = p.ProvenanceData
		default:
			return nil, NewConfigurationError(field, "unknown PSM field")
		}
	}
	return values, nil
}

// Assign overwrites one field across the whole collection. values must hold
// exactly one value per PSM, of the field's Go type.
func (l *PSMList) Assign(field string, values []any) error {
	if len(values) != len(l.psms) {
		return &LengthMismatchError{Field: field, Want: len(l.psms), Got: len(values)}
	}
	// Validate everything first so a type error leaves the collection untouched
	for i, v := range values {
		if err := checkFieldType(field, v); err != nil {
			return fmt.Errorf("value %d: %w", i, err)
		}
	}
	for i, p := range l.psms {
		v := values[i]
		switch field {
		case FieldSpectrumID:
			p.SpectrumID = v.(string)
		case FieldPeptidoform:
			p.Peptidoform = v.(Peptidoform)
		case FieldRun:
			p.Run = v.(string)
		case FieldCollection:
			p.Collection = v.(string)
		case FieldIsDecoy:
			p.IsDecoy = v.(bool)
		case FieldScore:
			p.Score = v.(float64)
		case FieldQValue:
			p.QValue = v.(*float64)
		case FieldPEP:
			p.PEP = v.(*float64)
		case FieldRank:
			p.Rank = v.(*int)
		case FieldPrecursorMZ:
			p.PrecursorMZ = v.(*float64)
		case FieldRetentionTime:
			p.RetentionTime = v.(*float64)
		case FieldProteinList:
			p.ProteinList = v.([]string)
		case FieldSource:
			p.Source = v.(string)
		case FieldMetadata:
			p.Metadata = v.(map[string]string)
		case FieldRescoringFeatures:
			p.RescoringFeatures = v.(map[string]float64)
		case FieldProvenanceData:
			p.ProvenanceData = v.(map[string]string)
		}
	}
	return nil
}

func checkFieldType(field string, v any) error {
	ok := false
	switch field {
	case FieldSpectrumID, FieldRun, FieldCollection, FieldSource:
		_, ok = v.(string)
	case FieldPeptidoform:
		_, ok = v.(Peptidoform)
	case FieldIsDecoy:
		_, ok = v.(bool)
	case FieldScore:
		_, ok = v.(float64)
	case FieldQValue, FieldPEP, FieldPrecursorMZ, FieldRetentionTime:
		_, ok = v.(*float64)
	case FieldRank:
		_, ok = v.(*int)
	case FieldProteinList:
		_, ok = v.([]string)
	case FieldMetadata, FieldProvenanceData:
		_, ok = v.(map[string]string)
	case FieldRescoringFeatures:
		_, ok = v.(map[string]float64)
	default:
		return NewConfigurationError(field, "unknown PSM field")
	}
	if !ok {
		return NewConfigurationError(field, "unexpected value type %T", v)
	}
	return nil
}

// SpectrumIDs returns the spectrum identifiers of all PSMs.
func (l *PSMList) SpectrumIDs() []string {
	ids := make([]string, len(l.psms))
	for i, p := range l.psms {
		ids[i] = p.SpectrumID
	}
	return ids
}

// SetSpectrumIDs overwrites all spectrum identifiers.
func (l *PSMList) SetSpectrumIDs(ids []string) error {
	if len(ids) != len(l.psms) {
		return &LengthMismatchError{Field: FieldSpectrumID, Want: len(l.psms), Got: len(ids)}
	}
	for i, p := range l.psms {
		p.SpectrumID = ids[i]
	}
	return nil
}

// ApplyIDPattern replaces every spectrum identifier with the first capture
// group of pattern. Nothing is changed unless every identifier matches.
func (l *PSMList) ApplyIDPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return NewConfigurationError("psm_id_pattern", "invalid regular expression '%s': %v", pattern, err)
	}
	ids := make([]string, len(l.psms))
	for i, p := range l.psms {
		// An optional group that did not participate is a mismatch too
		loc := re.FindStringSubmatchIndex(p.SpectrumID)
		if len(loc) < 4 || loc[2] < 0 {
			return &PatternMismatchError{Option: "psm_id_pattern", Pattern: pattern, ID: p.SpectrumID}
		}
		ids[i] = p.SpectrumID[loc[2]:loc[3]]
	}
	return l.SetSpectrumIDs(ids)
}

// RenameToUSI replaces every spectrum identifier with the PSM's USI.
func (l *PSMList) RenameToUSI() {
	for _, p := range l.psms {
		p.SpectrumID = p.USI()
	}
}

// Filter returns a new collection holding the PSMs where mask is true, in order.
func (l *PSMList) Filter(mask []bool) (*PSMList, error) {
	if len(mask) != len(l.psms) {
		return nil, &LengthMismatchError{Field: "mask", Want: len(l.psms), Got: len(mask)}
	}
	kept := make([]*PSM, 0, len(l.psms))
	for i, keep := range mask {
		if keep {
			kept = append(kept, l.psms[i])
		}
	}
	return NewPSMList(kept), nil
}

// FindDecoys labels a PSM as decoy when it maps to at least one protein and
// every protein accession matches pattern.
func (l *PSMList) FindDecoys(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return NewConfigurationError("id_decoy_pattern", "decoy pattern cannot be empty")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return NewConfigurationError("id_decoy_pattern", "invalid regular expression '%s': %v", pattern, err)
	}
	for _, p := range l.psms {
		p.IsDecoy = len(p.ProteinList) > 0
		for _, protein := range p.ProteinList {
			if !re.MatchString(protein) {
				p.IsDecoy = false
				break
			}
		}
	}
	return nil
}

// DecoyCount returns the number of PSMs labelled as decoy.
func (l *PSMList) DecoyCount() int {
	n := 0
	for _, p := range l.psms {
		if p.IsDecoy {
			n++
		}
	}
	return n
}

// HasMissingQValues reports whether any PSM lacks a q-value.
func (l *PSMList) HasMissingQValues() bool {
	for _, p := range l.psms {
		if p.QValue == nil {
			return true
		}
	}
	return false
}

// CountIdentified returns the number of target PSMs with q-value <= fdr.
func (l *PSMList) CountIdentified(fdr float64) int {
	n := 0
	for _, p := range l.psms {
		if !p.IsDecoy && p.QValue != nil && *p.QValue <= fdr {
			n++
		}
	}
	return n
}

// CountIdentifiedBefore is CountIdentified over the before_rescoring_qvalue
// provenance snapshot.
func (l *PSMList) CountIdentifiedBefore(fdr float64) int {
	n := 0
	for _, p := range l.psms {
		if q, ok := p.ProvenanceFloat(ProvenanceQValue); ok && !p.IsDecoy && q <= fdr {
			n++
		}
	}
	return n
}

// CaptureProvenance snapshots the current scores of every PSM.
func (l *PSMList) CaptureProvenance() {
	for _, p := range l.psms {
		p.CaptureProvenance()
	}
}

// RenameModifications relabels modifications using mapping (old -> new) and
// takes the masses of renamed modifications from db.
func (l *PSMList) RenameModifications(mapping map[string]string, db *ModDatabase) {
	if len(mapping) == 0 {
		return
	}
	for _, p := range l.psms {
		p.Peptidoform.renameModifications(mapping, db)
	}
}

// AddFixedModifications declares fixed modifications on every peptidoform.
func (l *PSMList) AddFixedModifications(fixed []FixedModification) {
	if len(fixed) == 0 {
		return
	}
	for _, p := range l.psms {
		p.Peptidoform.addFixedModifications(fixed)
	}
}

// ApplyFixedModifications places declared fixed modifications on their sites.
// Applying twice yields the same modification list.
func (l *PSMList) ApplyFixedModifications(db *ModDatabase) {
	for _, p := range l.psms {
		p.Peptidoform.applyFixedModifications(db)
	}
}

// ResolveModifications sets the mass of every modification label db resolves.
func (l *PSMList) ResolveModifications(db *ModDatabase) {
	for _, p := range l.psms {
		p.Peptidoform.resolveModifications(db)
	}
}

// Sources returns the distinct source tags, sorted.
func (l *PSMList) Sources() []string {
	seen := make(map[string]struct{})
	for _, p := range l.psms {
		seen[p.Source] = struct{}{}
	}
	return sortedKeys(seen)
}

// FeatureNames returns the union of rescoring feature names present on any PSM.
func (l *PSMList) FeatureNames() []string {
	seen := make(map[string]struct{})
	for _, p := range l.psms {
		for name := range p.RescoringFeatures {
			seen[name] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// CalculateRanks assigns rank 1..n per spectrum (run, collection, spectrum ID)
// by score in the given direction.
func (l *PSMList) CalculateRanks(higherIsBetter bool) {
	groups := make(map[[3]string][]*PSM)
	for _, p := range l.psms {
		key := [3]string{p.Collection, p.Run, p.SpectrumID}
		groups[key] = append(groups[key], p)
	}
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			if higherIsBetter {
				return group[i].Score > group[j].Score
			}
			return group[i].Score < group[j].Score
		})
		for i, p := range group {
			p.Rank = Int(i + 1)
		}
	}
}

// Table is a column-oriented export of a collection.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Table exports all PSM fields plus metadata, provenance and rescoring
// features as prefixed columns (metadata:, provenance:, rescoring:).
func (l *PSMList) Table() Table {
	metaKeys := map[string]struct{}{}
	provKeys := map[string]struct{}{}
	featKeys := map[string]struct{}{}
	for _, p := range l.psms {
		for k := range p.Metadata {
			metaKeys[k] = struct{}{}
		}
		for k := range p.ProvenanceData {
			provKeys[k] = struct{}{}
		}
		for k := range p.RescoringFeatures {
			featKeys[k] = struct{}{}
		}
	}
	metas, provs, feats := sortedKeys(metaKeys), sortedKeys(provKeys), sortedKeys(featKeys)

	t := Table{Columns: []string{
		FieldPeptidoform, FieldSpectrumID, FieldRun, FieldCollection, FieldIsDecoy,
		FieldScore, FieldQValue, FieldPEP, FieldPrecursorMZ, FieldRetentionTime,
		FieldProteinList, FieldRank, FieldSource,
	}}
	for _, k := range metas {
		t.Columns = append(t.Columns, "metadata:"+k)
	}
	for _, k := range provs {
		t.Columns = append(t.Columns, "provenance:"+k)
	}
	for _, k := range feats {
		t.Columns = append(t.Columns, "rescoring:"+k)
	}

	t.Rows = make([][]string, 0, len(l.psms))
	for _, p := range l.psms {
		rank := ""
		if p.Rank != nil {
			rank = strconv.Itoa(*p.Rank)
		}
		row := []string{
			p.Peptidoform.ProForma(),
			p.SpectrumID,
			p.Run,
			p.Collection,
			FormatBool(p.IsDecoy),
			FormatFloat(p.Score),
			formatOptionalFloat(p.QValue),
			formatOptionalFloat(p.PEP),
			formatOptionalFloat(p.PrecursorMZ),
			formatOptionalFloat(p.RetentionTime),
			FormatProteinList(p.ProteinList),
			rank,
			p.Source,
		}
		for _, k := range metas {
			row = append(row, p.Metadata[k])
		}
		for _, k := range provs {
			row = append(row, p.ProvenanceData[k])
		}
		for _, k := range feats {
			if v, ok := p.RescoringFeatures[k]; ok {
				row = append(row, FormatFloat(v))
			} else {
				row = append(row, "")
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// FormatBool renders booleans the way psm_utils TSV files do.
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// FormatProteinList renders a protein list as "['P1', 'P2']".
func FormatProteinList(proteins []string) string {
	quoted := make([]string, len(proteins))
	for i, p := range proteins {
		quoted[i] = "'" + p + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// ParseProteinList parses "['P1', 'P2']" or a semicolon separated list.
func ParseProteinList(s string) []string {
	s = strings.TrimSpace(s)
	sep := ";"
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = s[1 : len(s)-1]
		sep = ","
	}
	var proteins []string
	for _, part := range strings.Split(s, sep) {
		part = strings.Trim(strings.TrimSpace(part), `'"`)
		if part != "" {
			proteins = append(proteins, part)
		}
	}
	return proteins
}
