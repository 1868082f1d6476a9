// Package pin writes Percolator input (PIN) files
package pin

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
	"github.com/ChrisMcGann/ms2rescore/pkg/writer"
)

// Options controls how PSMs are keyed in the PIN file
type Options struct {
	// IndexSpecIDs writes the position of each PSM in the collection as
	// SpecId so engine results can be mapped back without ambiguity.
	IndexSpecIDs bool
}

// Write writes psms with the given feature columns to w. Every PSM must
// carry every feature.
func Write(w io.Writer, psms *core.PSMList, features []string, opts Options) error {
	header := append([]string{"SpecId", "Label", "ScanNr"}, features...)
	header = append(header, "Peptide", "Proteins")
	if _, err := io.WriteString(w, strings.Join(header, "\t")+"\n"); err != nil {
		return err
	}

	row := make([]string, 0, len(header))
	for i, psm := range psms.All() {
		row = row[:0]

		specID := psm.SpectrumID
		if opts.IndexSpecIDs {
			specID = strconv.Itoa(i)
		}
		label := "1"
		if psm.IsDecoy {
			label = "-1"
		}
		scanNr := psm.Metadata["ScanNr"]
		if _, err := strconv.Atoi(scanNr); err != nil {
			scanNr = strconv.Itoa(i + 1)
		}
		row = append(row, specID, label, scanNr)

		for _, name := range features {
			v, ok := psm.RescoringFeatures[name]
			if !ok {
				return fmt.Errorf("PSM %d (%s) is missing feature '%s'", i, psm.SpectrumID, name)
			}
			row = append(row, core.FormatFloat(v))
		}

		row = append(row, "-."+psm.Peptidoform.ModifiedSequence()+".-")
		row = append(row, psm.ProteinList...)

		for _, f := range row {
			if strings.ContainsAny(f, "\t\n") {
				return fmt.Errorf("PSM %d: value %q contains a tab or newline", i, f)
			}
		}
		if _, err := io.WriteString(w, strings.Join(row, "\t")+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes the PIN file to path
func WriteFile(path string, psms *core.PSMList, features []string, opts Options) error {
	if err := writer.SaveToFile(path, func(w io.Writer) error {
		return Write(w, psms, features, opts)
	}); err != nil {
		return fmt.Errorf("failed to write PIN file %s: %w", path, err)
	}
	return nil
}
