package rescoring

import (
	"fmt"
	"strconv"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
	"github.com/ChrisMcGann/ms2rescore/pkg/reader"
	"github.com/ChrisMcGann/ms2rescore/pkg/reader/tabular"
	"github.com/ChrisMcGann/ms2rescore/pkg/writer/pin"
)

// result holds the rescored values of one PSM
type result struct {
	score, qvalue, pep float64
}

// resultColumns names the columns of an engine's PSM output table
type resultColumns struct {
	id, score, qvalue, pep string
}

// writeInput writes the PIN file an engine reads. SpecIds are collection
// indices so results map back to PSMs unambiguously.
func writeInput(path string, psms *core.PSMList) error {
	return pin.WriteFile(path, psms, psms.FeatureNames(), pin.Options{IndexSpecIDs: true})
}

// readResults adds the rows of an engine output table to results, keyed by
// collection index.
func readResults(path string, cols resultColumns, results map[int]result) error {
	f, err := reader.Open(path)
	if err != nil {
		return &core.MalformedInputError{Path: path, Err: err}
	}
	defer f.Close()

	table, err := tabular.NewScanner(f)
	if err != nil {
		return &core.MalformedInputError{Path: path, Err: err}
	}
	for _, col := range []string{cols.id, cols.score, cols.qvalue, cols.pep} {
		if !table.Has(col) {
			return &core.MalformedInputError{Path: path, Line: 1, Err: fmt.Errorf("missing column '%s'", col)}
		}
	}

	for table.Next() {
		var values [3]float64
		id, _ := table.Get(cols.id)
		index, err := strconv.Atoi(id)
		if err != nil {
			return &core.MalformedInputError{Path: path, Line: table.Line(), Err: fmt.Errorf("invalid PSM id '%s'", id)}
		}
		for i, col := range []string{cols.score, cols.qvalue, cols.pep} {
			s, _ := table.Get(col)
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return &core.MalformedInputError{Path: path, Line: table.Line(), Err: fmt.Errorf("invalid %s '%s'", col, s)}
			}
			values[i] = v
		}
		results[index] = result{score: values[0], qvalue: values[1], pep: values[2]}
	}
	if err := table.Err(); err != nil {
		return &core.MalformedInputError{Path: path, Err: err}
	}
	return nil
}

// applyResults writes engine results onto the collection and re-ranks it.
// Every PSM must have been reported.
func applyResults(psms *core.PSMList, results map[int]result, source string) error {
	for i, psm := range psms.All() {
		r, ok := results[i]
		if !ok {
			return &core.MalformedInputError{
				Path: source,
				Err:  fmt.Errorf("PSM %d (%s) was not reported by the rescoring engine", i, psm.SpectrumID),
			}
		}
		psm.Score = r.score
		psm.QValue = core.Float64(r.qvalue)
		psm.PEP = core.Float64(r.pep)
	}
	psms.CalculateRanks(true)
	return nil
}
