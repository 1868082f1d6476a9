package features

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
)

// Retention coefficients per residue at acidic pH (Guo et al., 1986)
var retentionCoefficients = map[rune]float64{
	'W': 8.8, 'F': 8.1, 'L': 8.1, 'I': 7.4, 'M': 5.5,
	'V': 5.0, 'Y': 4.5, 'C': 2.6, 'P': 2.0, 'A': 2.0,
	'E': 1.1, 'T': 0.6, 'D': 0.2, 'Q': 0.0, 'S': -0.2,
	'G': -0.2, 'R': -0.6, 'N': -0.6, 'H': -2.1, 'K': -2.1,
}

// RTOptions configures the retention time generator
type RTOptions struct {
	Options
	CalibrationFDR float64 `json:"calibration_fdr"`
}

// RT compares observed retention times with a hydrophobicity index that is
// linearly calibrated on confident target PSMs.
type RT struct {
	opts          RTOptions
	slope, offset float64
}

// NewRT creates the retention time feature generator.
func NewRT(options map[string]any) (Generator, error) {
	r := &RT{opts: RTOptions{CalibrationFDR: 0.01}}
	if err := decodeOptions(options, &r.opts); err != nil {
		return nil, err
	}
	if r.opts.CalibrationFDR <= 0 || r.opts.CalibrationFDR > 1 {
		return nil, core.NewConfigurationError("calibration_fdr", "must be in (0, 1], got %g", r.opts.CalibrationFDR)
	}
	return r, nil
}

func (r *RT) Name() string { return NameRT }

func (r *RT) FeatureNames() []string {
	return []string{"observed_retention_time", "predicted_retention_time", "rt_diff", "abs_rt_diff"}
}

// Applicable reports whether any PSM carries a retention time.
func (r *RT) Applicable(psms *core.PSMList) bool {
	for _, psm := range psms.All() {
		if psm.RetentionTime != nil {
			return true
		}
	}
	return false
}

// HydrophobicityIndex sums the retention coefficients of a sequence.
func HydrophobicityIndex(sequence string) float64 {
	index := 0.0
	for _, aa := range sequence {
		index += retentionCoefficients[aa]
	}
	return index
}

func (r *RT) AddFeatures(ctx context.Context, psms *core.PSMList) error {
	if err := r.calibrate(psms); err != nil {
		return err
	}

	return compute(ctx, r.opts.Processes, psms, func(psm *core.PSM) (map[string]float64, error) {
		if psm.RetentionTime == nil {
			return nil, nil
		}
		observed := *psm.RetentionTime
		predicted := r.offset + r.slope*HydrophobicityIndex(psm.Peptidoform.Sequence)
		return map[string]float64{
			"observed_retention_time":  observed,
			"predicted_retention_time": predicted,
			"rt_diff":                  observed - predicted,
			"abs_rt_diff":              math.Abs(observed - predicted),
		}, nil
	})
}

// calibrate fits observed RT against the hydrophobicity index on targets
// within the calibration FDR, falling back to all targets with an RT.
func (r *RT) calibrate(psms *core.PSMList) error {
	var confidentX, confidentY, allX, allY []float64
	for _, psm := range psms.All() {
		if psm.IsDecoy || psm.RetentionTime == nil {
			continue
		}
		x := HydrophobicityIndex(psm.Peptidoform.Sequence)
		allX = append(allX, x)
		allY = append(allY, *psm.RetentionTime)
		if psm.QValue != nil && *psm.QValue <= r.opts.CalibrationFDR {
			confidentX = append(confidentX, x)
			confidentY = append(confidentY, *psm.RetentionTime)
		}
	}

	x, y := confidentX, confidentY
	if len(x) < 2 {
		x, y = allX, allY
	}
	if len(x) < 2 {
		return fmt.Errorf("rt: need at least 2 target PSMs with retention time for calibration, got %d", len(x))
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) || math.IsInf(beta, 0) {
		return fmt.Errorf("rt: calibration on %d PSMs is degenerate", len(x))
	}
	r.offset, r.slope = alpha, beta
	return nil
}
