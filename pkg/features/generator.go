// Package features defines the feature generator contract and the closed set
// of generators that annotate PSMs with rescoring features.
package features

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ChrisMcGann/ms2rescore/pkg/config"
	"github.com/ChrisMcGann/ms2rescore/pkg/core"
)

// Generator adds rescoring features to a PSM collection. A generator either
// annotates every PSM it can score with all of its FeatureNames or returns an
// error; it never leaves partial key sets behind.
type Generator interface {
	Name() string
	FeatureNames() []string
	AddFeatures(ctx context.Context, psms *core.PSMList) error
}

// Applicable is implemented by generators that only apply to some inputs.
// A generator reporting false is skipped, not failed.
type Applicable interface {
	Applicable(psms *core.PSMList) bool
}

// Factory builds a generator from merged global and generator options.
type Factory func(options map[string]any) (Generator, error)

// Registry maps generator names onto factories.
type Registry map[string]Factory

// Generator names
const (
	NameBasic    = "basic"
	NameRT       = "rt"
	NameFragment = "fragment"
	NameMaxQuant = "maxquant"
)

// DefaultRegistry returns the built-in generators.
func DefaultRegistry() Registry {
	return Registry{
		NameBasic:    NewBasic,
		NameRT:       NewRT,
		NameFragment: NewFragment,
		NameMaxQuant: NewMaxQuant,
	}
}

// Names returns the registered generator names, sorted.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the named generator.
func (r Registry) New(name string, options map[string]any) (Generator, error) {
	factory, ok := r[name]
	if !ok {
		return nil, core.NewConfigurationError("feature_generators",
			"unknown feature generator '%s', should be one of %s", name, strings.Join(r.Names(), ", "))
	}
	return factory(options)
}

// New builds one of the built-in generators.
func New(name string, options map[string]any) (Generator, error) {
	return DefaultRegistry().New(name, options)
}

// Options are the global options every generator understands.
type Options struct {
	Processes          int    `json:"processes"`
	SpectrumPath       string `json:"spectrum_path"`
	LowerScoreIsBetter bool   `json:"lower_score_is_better"`
}

func decodeOptions(options map[string]any, dst any) error {
	if err := config.DecodeOptions(options, dst); err != nil {
		return core.NewConfigurationError("feature_generators", "invalid generator options: %v", err)
	}
	return nil
}

// compute runs fn for every PSM on at most processes goroutines, then stores
// the returned features. A nil map leaves the PSM unannotated. Nothing is
// stored unless every call succeeds.
func compute(ctx context.Context, processes int, psms *core.PSMList, fn func(*core.PSM) (map[string]float64, error)) error {
	if processes < 1 {
		processes = 1
	}
	all := psms.All()
	results := make([]map[string]float64, len(all))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(processes)
	for i, psm := range all {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			features, err := fn(psm)
			if err != nil {
				return err
			}
			results[i] = features
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for i, features := range results {
		for name, value := range features {
			all[i].SetFeature(name, value)
		}
	}
	return nil
}
