package features

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
)

// Basic derives features from the search engine result itself: score,
// charge, peptide length and precursor mass error.
type Basic struct {
	opts    Options
	charges []int
	masses  bool
}

// NewBasic creates the basic feature generator.
func NewBasic(options map[string]any) (Generator, error) {
	b := &Basic{}
	if err := decodeOptions(options, &b.opts); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Basic) Name() string { return NameBasic }

// FeatureNames lists the features of the last AddFeatures call. Charge
// one-hot columns depend on the charges observed in the collection.
func (b *Basic) FeatureNames() []string {
	names := []string{"search_engine_score", "charge_n", "peptide_length"}
	for _, c := range b.charges {
		names = append(names, chargeFeature(c))
	}
	if b.masses {
		names = append(names, "theoretical_mass", "experimental_mass", "abs_ms1_error_ppm")
	}
	return names
}

func (b *Basic) AddFeatures(ctx context.Context, psms *core.PSMList) error {
	seen := make(map[int]struct{})
	b.masses = psms.Len() > 0
	for _, psm := range psms.All() {
		seen[psm.Charge()] = struct{}{}
		if psm.PrecursorMZ == nil || psm.Charge() <= 0 {
			b.masses = false
		}
	}
	b.charges = b.charges[:0]
	for c := range seen {
		b.charges = append(b.charges, c)
	}
	sort.Ints(b.charges)

	return compute(ctx, b.opts.Processes, psms, func(psm *core.PSM) (map[string]float64, error) {
		f := map[string]float64{
			"search_engine_score": psm.Score,
			"charge_n":            float64(psm.Charge()),
			"peptide_length":      float64(len(psm.Peptidoform.Sequence)),
		}
		for _, c := range b.charges {
			f[chargeFeature(c)] = 0
		}
		f[chargeFeature(psm.Charge())] = 1

		if b.masses {
			theoretical := psm.Peptidoform.NeutralMass()
			experimental := (*psm.PrecursorMZ - core.ProtonMass) * float64(psm.Charge())
			f["theoretical_mass"] = theoretical
			f["experimental_mass"] = experimental
			f["abs_ms1_error_ppm"] = math.Abs(experimental-theoretical) / theoretical * 1e6
		}
		return f, nil
	})
}

func chargeFeature(charge int) string {
	return fmt.Sprintf("charge_%d", charge)
}
