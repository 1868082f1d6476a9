// Package tsv writes PSM tables and feature-name listings as tab-separated files
package tsv

import (
	"fmt"
	"io"
	"strings"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
	"github.com/ChrisMcGann/ms2rescore/pkg/writer"
)

// Write writes the full PSM table of psms to w
func Write(w io.Writer, psms *core.PSMList) error {
	table := psms.Table()
	if err := writeRow(w, table.Columns); err != nil {
		return err
	}
	for _, row := range table.Rows {
		if err := writeRow(w, row); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes the PSM table to path
func WriteFile(path string, psms *core.PSMList) error {
	if err := writer.SaveToFile(path, func(w io.Writer) error {
		return Write(w, psms)
	}); err != nil {
		return fmt.Errorf("failed to write PSMs to %s: %w", path, err)
	}
	return nil
}

// WriteFeatureNames writes one (feature_generator, feature_name) row per
// feature, generators in run order and names sorted within each generator.
func WriteFeatureNames(path string, names *core.FeatureNames) error {
	err := writer.SaveToFile(path, func(w io.Writer) error {
		if err := writeRow(w, []string{"feature_generator", "feature_name"}); err != nil {
			return err
		}
		for _, generator := range names.Generators() {
			for _, name := range names.Names(generator) {
				if err := writeRow(w, []string{generator, name}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write feature names to %s: %w", path, err)
	}
	return nil
}

func writeRow(w io.Writer, fields []string) error {
	for _, f := range fields {
		if strings.ContainsAny(f, "\t\n") {
			return fmt.Errorf("value %q contains a tab or newline", f)
		}
	}
	_, err := io.WriteString(w, strings.Join(fields, "\t")+"\n")
	return err
}
