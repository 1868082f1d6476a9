package features

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
)

func newPSM(t *testing.T, id, proforma string, score float64, decoy bool) *core.PSM {
	t.Helper()
	pf, err := core.ParsePeptidoform(proforma)
	require.NoError(t, err)
	return &core.PSM{SpectrumID: id, Peptidoform: pf, Score: score, IsDecoy: decoy}
}

func TestRegistryUnknownGenerator(t *testing.T) {
	_, err := New("ms2pip", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConfiguration))
	assert.Contains(t, err.Error(), "basic, fragment, maxquant, rt")
}

func TestRegistryBuildsGenerators(t *testing.T) {
	for _, name := range []string{NameBasic, NameRT, NameMaxQuant} {
		g, err := New(name, map[string]any{"processes": 2})
		require.NoError(t, err, name)
		assert.Equal(t, name, g.Name())
	}
}

func TestBasicFeatures(t *testing.T) {
	p1 := newPSM(t, "1", "PEPTIDEK/2", 10, false)
	p2 := newPSM(t, "2", "ACDK/3", 4, true)
	psms := core.NewPSMList([]*core.PSM{p1, p2})

	g, err := NewBasic(map[string]any{"processes": 2})
	require.NoError(t, err)
	require.NoError(t, g.AddFeatures(context.Background(), psms))

	assert.ElementsMatch(t,
		[]string{"search_engine_score", "charge_n", "peptide_length", "charge_2", "charge_3"},
		g.FeatureNames())
	assert.Equal(t, 10.0, p1.RescoringFeatures["search_engine_score"])
	assert.Equal(t, 1.0, p1.RescoringFeatures["charge_2"])
	assert.Equal(t, 0.0, p1.RescoringFeatures["charge_3"])
	assert.Equal(t, 4.0, p2.RescoringFeatures["peptide_length"])
	assert.NotContains(t, p1.RescoringFeatures, "abs_ms1_error_ppm", "mass features need a precursor m/z on every PSM")
	assert.ElementsMatch(t, p1.FeatureKeys(), p2.FeatureKeys())
}

func TestBasicMassError(t *testing.T) {
	psm := newPSM(t, "1", "PEPTIDEK/2", 10, false)
	psm.PrecursorMZ = core.Float64(psm.Peptidoform.PrecursorMZ())
	psms := core.NewPSMList([]*core.PSM{psm})

	g, err := NewBasic(nil)
	require.NoError(t, err)
	require.NoError(t, g.AddFeatures(context.Background(), psms))

	assert.Contains(t, g.FeatureNames(), "abs_ms1_error_ppm")
	assert.InDelta(t, 0, psm.RescoringFeatures["abs_ms1_error_ppm"], 1e-3)
	assert.InDelta(t, psm.Peptidoform.NeutralMass(), psm.RescoringFeatures["experimental_mass"], 1e-6)
}

func TestRTCalibration(t *testing.T) {
	sequences := []string{"PEPTIDEK", "LLLLK", "GGGSK", "WWFFR", "ACDEK"}
	var list []*core.PSM
	for i, seq := range sequences {
		psm := newPSM(t, fmt.Sprint(i), seq+"/2", 1, false)
		psm.QValue = core.Float64(0.001)
		psm.RetentionTime = core.Float64(100 + 3*HydrophobicityIndex(seq))
		list = append(list, psm)
	}
	noRT := newPSM(t, "x", "PEPK/2", 1, false)
	list = append(list, noRT)
	psms := core.NewPSMList(list)

	g, err := NewRT(nil)
	require.NoError(t, err)
	require.True(t, g.(Applicable).Applicable(psms))
	require.NoError(t, g.AddFeatures(context.Background(), psms))

	for _, psm := range list[:len(sequences)] {
		assert.InDelta(t, 0, psm.RescoringFeatures["abs_rt_diff"], 1e-6)
		assert.InDelta(t, *psm.RetentionTime, psm.RescoringFeatures["predicted_retention_time"], 1e-6)
	}
	assert.Empty(t, noRT.RescoringFeatures, "PSMs without retention time stay unannotated")
}

func TestRTNotEnoughCalibrationPoints(t *testing.T) {
	psm := newPSM(t, "1", "PEPK/2", 1, false)
	psm.RetentionTime = core.Float64(12)
	g, err := NewRT(nil)
	require.NoError(t, err)
	err = g.AddFeatures(context.Background(), core.NewPSMList([]*core.PSM{psm}))
	require.Error(t, err)
	assert.Empty(t, psm.RescoringFeatures)
}

func TestRTInvalidCalibrationFDR(t *testing.T) {
	_, err := NewRT(map[string]any{"calibration_fdr": 2.0})
	assert.True(t, errors.Is(err, core.ErrConfiguration))
}

func writeMGF(t *testing.T, dir, name string, spectra map[string][]float64) string {
	t.Helper()
	var b strings.Builder
	for id, mzs := range spectra {
		fmt.Fprintf(&b, "BEGIN IONS\nTITLE=%s\nPEPMASS=500.0\nCHARGE=2+\n", id)
		for _, mz := range mzs {
			fmt.Fprintf(&b, "%.5f 100\n", mz)
		}
		b.WriteString("END IONS\n\n")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestFragmentFeatures(t *testing.T) {
	matched := newPSM(t, "scan=1", "PEPTIDEK/2", 1, false)
	ladder := core.CalculateFragmentLadder("PEPTIDEK", nil)
	peaks := append(append([]float64{}, ladder.B...), ladder.Y...)
	peaks = append(peaks, 1999.0)
	missing := newPSM(t, "scan=404", "PEPTIDEK/2", 1, false)

	path := writeMGF(t, t.TempDir(), "run1.mgf", map[string][]float64{"scan=1": peaks})
	g, err := NewFragment(map[string]any{"spectrum_path": path, "processes": 2})
	require.NoError(t, err)
	require.NoError(t, g.AddFeatures(context.Background(), core.NewPSMList([]*core.PSM{matched, missing})))

	f := matched.RescoringFeatures
	assert.Equal(t, 7.0, f["matched_b_ions"])
	assert.Equal(t, 7.0, f["matched_y_ions"])
	assert.Equal(t, 1.0, f["matched_ion_fraction"])
	assert.Equal(t, 7.0, f["longest_ion_series"])
	assert.Less(t, f["explained_intensity_fraction"], 1.0)
	assert.Empty(t, missing.RescoringFeatures, "PSMs without a spectrum stay unannotated")
}

func TestFragmentRequiresSpectrumPath(t *testing.T) {
	_, err := NewFragment(nil)
	var cerr *core.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "spectrum_path", cerr.Option)
}

func TestLongestRun(t *testing.T) {
	assert.Equal(t, 0, longestRun(nil))
	assert.Equal(t, 3, longestRun([]bool{true, false, true, true, true, false, true}))
}

func msmsPSM(t *testing.T, meta map[string]string) *core.PSM {
	psm := newPSM(t, "1", "PEPTIDEK/2", 80, false)
	psm.Source = "msms"
	psm.Metadata = meta
	return psm
}

func TestMaxQuantFeatures(t *testing.T) {
	psm := msmsPSM(t, map[string]string{
		"Matches":              "y1;y2;b2",
		"Intensities":          "100;300;100",
		"Mass deviations [Da]": "0.01;-0.02;0.03",
		"Intensity coverage":   "0.5",
	})
	psms := core.NewPSMList([]*core.PSM{psm})

	g, err := NewMaxQuant(nil)
	require.NoError(t, err)
	require.True(t, g.(Applicable).Applicable(psms))
	require.NoError(t, g.AddFeatures(context.Background(), psms))

	f := psm.RescoringFeatures
	assert.InDelta(t, 0.02, f["mean_error_top7"], 1e-9)
	assert.InDelta(t, 0.0004, f["sq_mean_error_top7"], 1e-9)
	assert.InDelta(t, math.Log(0.5), f["ln_explained_ion_current"], 1e-9)
	assert.InDelta(t, math.Log(0.8), f["ln_cterm_ion_current_ratio"], 1e-9)
	assert.InDelta(t, math.Log(0.2), f["ln_nterm_ion_current_ratio"], 1e-9)
	assert.Equal(t, 3.0, f["matched_ion_count"])
	assert.Len(t, f, len(g.FeatureNames()))
}

func TestMaxQuantNotApplicable(t *testing.T) {
	psm := newPSM(t, "1", "PEPK/2", 1, false)
	psm.Source = "tsv"
	g, err := NewMaxQuant(nil)
	require.NoError(t, err)
	assert.False(t, g.(Applicable).Applicable(core.NewPSMList([]*core.PSM{psm})))
}

func TestMaxQuantErrorLeavesNoPartialFeatures(t *testing.T) {
	good := msmsPSM(t, map[string]string{
		"Matches": "y1", "Intensities": "1", "Mass deviations [Da]": "0.1", "Intensity coverage": "0.1",
	})
	bad := msmsPSM(t, map[string]string{
		"Matches": "y1;y2", "Intensities": "1", "Mass deviations [Da]": "0.1", "Intensity coverage": "0.1",
	})
	g, err := NewMaxQuant(nil)
	require.NoError(t, err)
	err = g.AddFeatures(context.Background(), core.NewPSMList([]*core.PSM{good, bad}))
	require.Error(t, err)
	assert.Empty(t, good.RescoringFeatures)
	assert.Empty(t, bad.RescoringFeatures)
}

func TestComputeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	psms := core.NewPSMList([]*core.PSM{newPSM(t, "1", "PEPK/2", 1, false)})
	err := compute(ctx, 1, psms, func(*core.PSM) (map[string]float64, error) {
		return map[string]float64{"x": 1}, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, psms.At(0).RescoringFeatures)
}
