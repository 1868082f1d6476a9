package rescoring

import (
	"context"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
)

// Columns of a Percolator .pout file
var percolatorColumns = resultColumns{
	id:     "PSMId",
	score:  "score",
	qvalue: "q-value",
	pep:    "posterior_error_prob",
}

// Percolator verbosity per log level
var percolatorVerbosity = map[string]int{
	"critical": 0,
	"error":    0,
	"warning":  0,
	"info":     1,
	"debug":    2,
}

// Percolator runs the percolator command-line tool.
type Percolator struct {
	opts   Options
	kwargs map[string]any
}

func (p *Percolator) Name() string { return NamePercolator }

// Files returns the paths Percolator reads and writes for outputRoot.
func (p *Percolator) Files(outputRoot string) (pin, targets, decoys, weights string) {
	return outputRoot + ".pin",
		outputRoot + ".percolator.psms.pout",
		outputRoot + ".percolator.decoy.psms.pout",
		outputRoot + ".percolator.weights.tsv"
}

func (p *Percolator) Rescore(ctx context.Context, psms *core.PSMList, outputRoot string) error {
	pinPath, targets, decoys, weights := p.Files(outputRoot)
	if err := writeInput(pinPath, psms); err != nil {
		return err
	}

	args := []string{
		"--results-psms", targets,
		"--decoy-results-psms", decoys,
		"--weights", weights,
		"--num-threads", strconv.Itoa(max(p.opts.Processes, 1)),
		"--verbose", strconv.Itoa(percolatorVerbosity[strings.ToLower(p.opts.LogLevel)]),
	}
	args = append(args, kwargsToArgs(p.kwargs)...)
	args = append(args, pinPath)
	if err := run(ctx, NamePercolator, args...); err != nil {
		return err
	}

	results := make(map[int]result, psms.Len())
	for _, path := range []string{targets, decoys} {
		if err := readResults(path, percolatorColumns, results); err != nil {
			return err
		}
	}
	return applyResults(psms, results, targets)
}
