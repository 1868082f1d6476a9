package features

import (
	"context"

	"gonum.org/v1/gonum/floats"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
	"github.com/ChrisMcGann/ms2rescore/pkg/filter"
	"github.com/ChrisMcGann/ms2rescore/pkg/reader"
)

// FragmentOptions configures the fragment ion generator. The tolerance is
// in Da and the intensity cutoff in % of the base peak.
type FragmentOptions struct {
	Options
	FragmentTolerance float64 `json:"fragment_tolerance"`
	TopN              int     `json:"top_n_peaks"`
	IntensityCutoff   float64 `json:"intensity_cutoff"`
}

// Fragment matches theoretical singly charged b and y ions against the
// observed spectrum of each PSM.
type Fragment struct {
	opts FragmentOptions
}

// NewFragment creates the fragment ion feature generator.
func NewFragment(options map[string]any) (Generator, error) {
	f := &Fragment{opts: FragmentOptions{FragmentTolerance: 0.02}}
	if err := decodeOptions(options, &f.opts); err != nil {
		return nil, err
	}
	if f.opts.SpectrumPath == "" {
		return nil, core.NewConfigurationError("spectrum_path",
			"the fragment feature generator requires spectrum files, please specify `spectrum_path` or use -m")
	}
	if f.opts.FragmentTolerance <= 0 {
		return nil, core.NewConfigurationError("fragment_tolerance", "must be positive, got %g", f.opts.FragmentTolerance)
	}
	return f, nil
}

func (f *Fragment) Name() string { return NameFragment }

func (f *Fragment) FeatureNames() []string {
	return []string{
		"matched_b_ions",
		"matched_y_ions",
		"matched_ion_fraction",
		"explained_intensity_fraction",
		"longest_ion_series",
	}
}

func (f *Fragment) AddFeatures(ctx context.Context, psms *core.PSMList) error {
	index, err := reader.ReadSpectra(f.opts.SpectrumPath)
	if err != nil {
		return err
	}
	peaks := filter.Peaks{TopN: f.opts.TopN, IntensityCutoff: f.opts.IntensityCutoff}
	if err := index.Each(func(spec *core.Spectrum) error {
		peaks.Apply(spec)
		if err := spec.Validate(); err != nil {
			return &core.MalformedInputError{Path: spec.SourceFile, Err: err}
		}
		return nil
	}); err != nil {
		return err
	}

	return compute(ctx, f.opts.Processes, psms, func(psm *core.PSM) (map[string]float64, error) {
		spec, ok := index.Lookup(psm.Run, psm.SpectrumID)
		if !ok {
			return nil, nil
		}
		return MatchFragments(psm.Peptidoform, spec, f.opts.FragmentTolerance), nil
	})
}

// MatchFragments computes fragment ion features for a peptidoform against a
// spectrum with sorted peaks. Each peak is counted once towards the
// explained intensity.
func MatchFragments(pf core.Peptidoform, spec *core.Spectrum, tol float64) map[string]float64 {
	ladder := core.CalculateFragmentLadder(pf.Sequence, pf.Modifications)
	used := make(map[int]struct{})
	var intensities []float64

	match := func(ions []float64) ([]bool, int) {
		matched := make([]bool, len(ions))
		n := 0
		for i, mz := range ions {
			idx := spec.MatchPeak(mz, tol)
			if idx < 0 {
				continue
			}
			matched[i] = true
			n++
			if _, ok := used[idx]; !ok {
				used[idx] = struct{}{}
				intensities = append(intensities, spec.Peaks[idx].Intensity)
			}
		}
		return matched, n
	}
	bMatched, b := match(ladder.B)
	yMatched, y := match(ladder.Y)

	fraction := 0.0
	if total := len(ladder.B) + len(ladder.Y); total > 0 {
		fraction = float64(b+y) / float64(total)
	}
	explained := 0.0
	if total := spec.TotalIntensity(); total > 0 {
		explained = floats.Sum(intensities) / total
	}
	return map[string]float64{
		"matched_b_ions":               float64(b),
		"matched_y_ions":               float64(y),
		"matched_ion_fraction":         fraction,
		"explained_intensity_fraction": explained,
		"longest_ion_series":           float64(max(longestRun(bMatched), longestRun(yMatched))),
	}
}

func longestRun(matched []bool) int {
	best, cur := 0, 0
	for _, m := range matched {
		if m {
			cur++
			best = max(best, cur)
		} else {
			cur = 0
		}
	}
	return best
}
