// Package filter provides PSM feature-completeness filtering and spectrum
// peak filtering
package filter

import (
	"sort"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
)

// Features holds the feature-completeness filter configuration
type Features struct {
	Expected []string // Union of all feature names every PSM must carry
}

// Report summarizes what a feature filter pass removed
type Report struct {
	Kept           int
	RemovedMissing int            // PSMs lacking at least one expected feature
	RemovedExtra   int            // PSMs with all expected features plus unexpected ones
	Missing        map[string]int // expected feature -> number of PSMs lacking it
	Extra          map[string]int // unexpected feature -> number of PSMs carrying it
}

// Removed returns the total number of removed PSMs
func (r *Report) Removed() int {
	return r.RemovedMissing + r.RemovedExtra
}

// MissingNames returns the sorted names of features missing from any PSM
func (r *Report) MissingNames() []string {
	return sortedNames(r.Missing)
}

// ExtraNames returns the sorted names of unexpected features
func (r *Report) ExtraNames() []string {
	return sortedNames(r.Extra)
}

// Apply keeps the PSMs whose feature set equals Expected exactly, in order.
// Returns a MissingFeatureError when no PSM survives.
func (c *Features) Apply(psms *core.PSMList) (*core.PSMList, *Report, error) {
	expected := make(map[string]struct{}, len(c.Expected))
	for _, name := range c.Expected {
		expected[name] = struct{}{}
	}

	report := &Report{Missing: make(map[string]int), Extra: make(map[string]int)}
	mask := make([]bool, psms.Len())
	for i, psm := range psms.All() {
		missing := false
		for name := range expected {
			if _, ok := psm.RescoringFeatures[name]; !ok {
				report.Missing[name]++
				missing = true
			}
		}
		extra := false
		for _, name := range psm.FeatureKeys() {
			if _, ok := expected[name]; !ok {
				report.Extra[name]++
				extra = true
			}
		}

		switch {
		case missing:
			report.RemovedMissing++
		case extra:
			report.RemovedExtra++
		default:
			mask[i] = true
			report.Kept++
		}
	}

	filtered, err := psms.Filter(mask)
	if err != nil {
		return nil, nil, err
	}
	if psms.Len() > 0 && filtered.Len() == 0 {
		names := report.MissingNames()
		if len(names) == 0 {
			names = report.ExtraNames()
		}
		return nil, report, &core.MissingFeatureError{Removed: report.Removed(), Missing: names}
	}
	return filtered, report, nil
}

func sortedNames(counts map[string]int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
