package rescoring

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
)

// Columns of a mokapot PSM table
var mokapotColumns = resultColumns{
	id:     "SpecId",
	score:  "mokapot score",
	qvalue: "mokapot q-value",
	pep:    "mokapot PEP",
}

// Mokapot runs the mokapot command-line tool.
type Mokapot struct {
	opts   Options
	kwargs map[string]any
}

func (m *Mokapot) Name() string { return NameMokapot }

// Files returns the paths mokapot reads and writes for outputRoot. The
// input PIN goes to tmp_path when one is configured.
func (m *Mokapot) Files(outputRoot string) (pin, targets, decoys string) {
	pin = outputRoot + ".mokapot.input.pin"
	if m.opts.TmpPath != "" {
		pin = filepath.Join(m.opts.TmpPath, filepath.Base(pin))
	}
	return pin, outputRoot + ".mokapot.psms.txt", outputRoot + ".mokapot.decoy.psms.txt"
}

func (m *Mokapot) Rescore(ctx context.Context, psms *core.PSMList, outputRoot string) error {
	pinPath, targets, decoys := m.Files(outputRoot)
	if err := writeInput(pinPath, psms); err != nil {
		return err
	}

	args := []string{
		pinPath,
		"--dest_dir", filepath.Dir(outputRoot),
		"--file_root", filepath.Base(outputRoot),
		"--max_workers", strconv.Itoa(max(m.opts.Processes, 1)),
		"--keep_decoys",
	}
	if m.opts.FastaFile != "" {
		args = append(args, "--proteins", m.opts.FastaFile)
	}
	args = append(args, kwargsToArgs(m.kwargs)...)
	if err := run(ctx, NameMokapot, args...); err != nil {
		return err
	}

	results := make(map[int]result, psms.Len())
	for _, path := range []string{targets, decoys} {
		if err := readResults(path, mokapotColumns, results); err != nil {
			return err
		}
	}
	return applyResults(psms, results, targets)
}
