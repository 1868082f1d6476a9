// Package rescoring adapts external rescoring engines (Percolator, mokapot)
// to PSM collections.
package rescoring

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/ChrisMcGann/ms2rescore/pkg/config"
	"github.com/ChrisMcGann/ms2rescore/pkg/core"
)

// Engine names in order of precedence
const (
	NamePercolator = "percolator"
	NameMokapot    = "mokapot"
)

var precedence = []string{NamePercolator, NameMokapot}

// Number of trailing output lines kept in an ExternalToolError
const outputTailLines = 20

// Engine rescores a PSM collection in place. On success score, q-value, PEP
// and rank of every PSM reflect the engine's estimates.
type Engine interface {
	Name() string
	Rescore(ctx context.Context, psms *core.PSMList, outputRoot string) error
}

// Options are the global options passed to every engine.
type Options struct {
	Processes int    `json:"processes"`
	LogLevel  string `json:"log_level"`
	FastaFile string `json:"fasta_file"`
	TmpPath   string `json:"tmp_path"`
}

// New builds the named engine. kwargs are the engine's own configuration
// section, passed to the external tool as extra command-line options.
func New(name string, opts Options, kwargs map[string]any) (Engine, error) {
	switch name {
	case NamePercolator:
		return &Percolator{opts: opts, kwargs: kwargs}, nil
	case NameMokapot:
		return &Mokapot{opts: opts, kwargs: kwargs}, nil
	default:
		return nil, core.NewConfigurationError("rescoring_engine",
			"unknown rescoring engine '%s', should be one of %s", name, strings.Join(precedence, ", "))
	}
}

// NewFromSection builds the engine of a rescoring_engine section using the
// global options of cfg.
func NewFromSection(cfg *config.Config, section config.Section) (Engine, error) {
	opts := Options{Processes: cfg.Processes, LogLevel: cfg.LogLevel, FastaFile: cfg.FastaFile, TmpPath: cfg.TmpPath}
	if v, ok := section.Options["fasta_file"].(string); ok {
		opts.FastaFile = v
	}
	kwargs := make(map[string]any, len(section.Options))
	for k, v := range section.Options {
		if k != "fasta_file" {
			kwargs[k] = v
		}
	}
	return New(section.Name, opts, kwargs)
}

// Select picks the engine to run from the configured names: percolator
// before mokapot. ignored lists configured engines that will not run.
// An empty selection means no engine is configured.
func Select(names []string) (selected string, ignored []string, err error) {
	configured := make(map[string]bool, len(names))
	for _, name := range names {
		configured[name] = true
	}
	for _, name := range names {
		if name != NamePercolator && name != NameMokapot {
			return "", nil, core.NewConfigurationError("rescoring_engine",
				"unknown rescoring engine '%s', should be one of %s", name, strings.Join(precedence, ", "))
		}
	}
	for _, name := range precedence {
		if configured[name] {
			selected = name
			break
		}
	}
	for _, name := range names {
		if name != selected {
			ignored = append(ignored, name)
		}
	}
	return selected, ignored, nil
}

// run executes an external command and wraps any failure in an
// ExternalToolError naming the command.
func run(ctx context.Context, name string, args ...string) error {
	path, err := exec.LookPath(name)
	if err != nil {
		return &core.ExternalToolError{Command: name, Err: err}
	}
	cmd := exec.CommandContext(ctx, path, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return &core.ExternalToolError{
			Command: strings.Join(append([]string{name}, args...), " "),
			Output:  tail(out.String(), outputTailLines),
			Err:     err,
		}
	}
	return nil
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// kwargsToArgs renders engine options as command-line flags, sorted by key.
// true becomes a bare flag, false is omitted, lists repeat their values.
func kwargsToArgs(kwargs map[string]any) []string {
	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var args []string
	for _, k := range keys {
		flag := k
		if !strings.HasPrefix(flag, "-") {
			flag = "--" + flag
		}
		switch v := kwargs[k].(type) {
		case nil:
			continue
		case bool:
			if v {
				args = append(args, flag)
			}
		case []any:
			args = append(args, flag)
			for _, item := range v {
				args = append(args, formatArg(item))
			}
		default:
			args = append(args, flag, formatArg(v))
		}
	}
	return args
}

func formatArg(v any) string {
	switch v := v.(type) {
	case float64:
		return core.FormatFloat(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
