package features

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
	"github.com/ChrisMcGann/ms2rescore/pkg/reader"
	"github.com/ChrisMcGann/ms2rescore/pkg/reader/msms"
)

// Number of most intense matched peaks used for mass error statistics
const topPeaks = 7

// Floor for logarithms of zero ion currents
const minIonCurrent = 1e-6

// MaxQuant derives features from the fragment annotations MaxQuant writes
// to msms.txt (Matches, Intensities, Mass deviations, Intensity coverage).
type MaxQuant struct {
	opts Options
}

// NewMaxQuant creates the MaxQuant feature generator.
func NewMaxQuant(options map[string]any) (Generator, error) {
	m := &MaxQuant{}
	if err := decodeOptions(options, &m.opts); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MaxQuant) Name() string { return NameMaxQuant }

func (m *MaxQuant) FeatureNames() []string {
	return []string{
		"mean_error_top7",
		"sq_mean_error_top7",
		"stdev_error_top7",
		"ln_explained_ion_current",
		"ln_nterm_ion_current_ratio",
		"ln_cterm_ion_current_ratio",
		"matched_ion_count",
	}
}

// Applicable reports whether every PSM was read from an msms.txt file.
func (m *MaxQuant) Applicable(psms *core.PSMList) bool {
	sources := psms.Sources()
	return len(sources) == 1 && sources[0] == reader.FileTypeMaxQuant
}

func (m *MaxQuant) AddFeatures(ctx context.Context, psms *core.PSMList) error {
	return compute(ctx, m.opts.Processes, psms, func(psm *core.PSM) (map[string]float64, error) {
		f, err := maxQuantFeatures(psm.Metadata)
		if err != nil {
			return nil, fmt.Errorf("maxquant: PSM %s: %w", psm.SpectrumID, err)
		}
		return f, nil
	})
}

type annotatedPeak struct {
	ion       string
	intensity float64
	deviation float64
}

func maxQuantFeatures(meta map[string]string) (map[string]float64, error) {
	for _, col := range msms.MetadataColumns {
		if _, ok := meta[col]; !ok {
			return nil, fmt.Errorf("missing column '%s'", col)
		}
	}
	ions := splitList(meta[msms.ColMatches])
	intensities, err := parseList(meta[msms.ColIntensities])
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", msms.ColIntensities, err)
	}
	deviations, err := parseList(meta[msms.ColMassDeviations])
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", msms.ColMassDeviations, err)
	}
	if len(intensities) != len(ions) || len(deviations) != len(ions) {
		return nil, fmt.Errorf("%d matches but %d intensities and %d mass deviations",
			len(ions), len(intensities), len(deviations))
	}
	coverage, err := strconv.ParseFloat(strings.TrimSpace(meta[msms.ColIntensityCover]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", msms.ColIntensityCover, err)
	}

	peaks := make([]annotatedPeak, len(ions))
	for i := range ions {
		peaks[i] = annotatedPeak{ion: ions[i], intensity: intensities[i], deviation: math.Abs(deviations[i])}
	}
	sort.SliceStable(peaks, func(i, j int) bool { return peaks[i].intensity > peaks[j].intensity })

	top := make([]float64, 0, topPeaks)
	var nterm, cterm []float64
	for i, p := range peaks {
		if i < topPeaks {
			top = append(top, p.deviation)
		}
		switch {
		case strings.HasPrefix(p.ion, "b") || strings.HasPrefix(p.ion, "a"):
			nterm = append(nterm, p.intensity)
		case strings.HasPrefix(p.ion, "y"):
			cterm = append(cterm, p.intensity)
		}
	}

	var mean, stdev float64
	if len(top) > 0 {
		mean = stat.Mean(top, nil)
	}
	if len(top) > 1 {
		stdev = stat.StdDev(top, nil)
	}
	total := floats.Sum(intensities)
	return map[string]float64{
		"mean_error_top7":            mean,
		"sq_mean_error_top7":         mean * mean,
		"stdev_error_top7":           stdev,
		"ln_explained_ion_current":   math.Log(math.Max(coverage, minIonCurrent)),
		"ln_nterm_ion_current_ratio": lnRatio(floats.Sum(nterm), total),
		"ln_cterm_ion_current_ratio": lnRatio(floats.Sum(cterm), total),
		"matched_ion_count":          float64(len(ions)),
	}, nil
}

func lnRatio(part, total float64) float64 {
	if total <= 0 {
		return math.Log(minIonCurrent)
	}
	return math.Log(math.Max(part/total, minIonCurrent))
}

func splitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, ";")
}

func parseList(s string) ([]float64, error) {
	parts := splitList(s)
	values := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}
