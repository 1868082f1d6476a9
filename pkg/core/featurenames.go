package core

import "sort"

// PSMFileFeatures is the reserved generator key for features already present
// in the input PSM file.
const PSMFileFeatures = "psm_file"

// FeatureNames records which feature names each generator contributed, in the
// order the generators ran.
type FeatureNames struct {
	order []string
	sets  map[string]map[string]struct{}
}

// NewFeatureNames creates an empty registry.
func NewFeatureNames() *FeatureNames {
	return &FeatureNames{sets: make(map[string]map[string]struct{})}
}

// Add records names under generator, keeping first-seen generator order.
func (f *FeatureNames) Add(generator string, names ...string) {
	set, ok := f.sets[generator]
	if !ok {
		set = make(map[string]struct{})
		f.sets[generator] = set
		f.order = append(f.order, generator)
	}
	for _, name := range names {
		set[name] = struct{}{}
	}
}

// Generators returns the generator keys in insertion order.
func (f *FeatureNames) Generators() []string {
	return append([]string(nil), f.order...)
}

// Names returns the sorted feature names of one generator.
func (f *FeatureNames) Names(generator string) []string {
	return sortedKeys(f.sets[generator])
}

// Union returns the set of all feature names over all generators.
func (f *FeatureNames) Union() map[string]struct{} {
	union := make(map[string]struct{})
	for _, set := range f.sets {
		for name := range set {
			union[name] = struct{}{}
		}
	}
	return union
}

// UnionSorted returns Union as a sorted slice.
func (f *FeatureNames) UnionSorted() []string {
	names := make([]string, 0)
	for name := range f.Union() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of (generator, feature) pairs.
func (f *FeatureNames) Len() int {
	n := 0
	for _, set := range f.sets {
		n += len(set)
	}
	return n
}
