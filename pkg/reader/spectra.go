package reader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
	"github.com/ChrisMcGann/ms2rescore/pkg/reader/mgf"
)

// SpectrumIndex holds observed spectra keyed by run and spectrum identifier
type SpectrumIndex struct {
	runs map[string]map[string]*core.Spectrum
}

// ReadSpectra loads an MGF file, or every MGF file in a directory. The run of
// each spectrum is the file name without extensions.
func ReadSpectra(path string) (*SpectrumIndex, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	files := []string{path}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		files = files[:0]
		for _, e := range entries {
			name := strings.ToLower(e.Name())
			if !e.IsDir() && (strings.HasSuffix(name, ".mgf") || strings.HasSuffix(name, ".mgf.gz")) {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no MGF files found in '%s'", path)
		}
		sort.Strings(files)
	}

	idx := &SpectrumIndex{runs: make(map[string]map[string]*core.Spectrum)}
	for _, file := range files {
		if err := idx.load(file); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (idx *SpectrumIndex) load(path string) error {
	f, err := Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	run := RunName(path)
	spectra := idx.runs[run]
	if spectra == nil {
		spectra = make(map[string]*core.Spectrum)
		idx.runs[run] = spectra
	}

	rd := mgf.NewReader(f)
	for rd.Next() {
		spec := rd.Spectrum()
		spec.SourceFile = path
		spectra[spec.ID] = spec
	}
	if err := rd.Err(); err != nil {
		return malformed(path, err)
	}
	return nil
}

// Lookup finds a spectrum by run and identifier. When the index holds a
// single run, the run name of the PSM is not required to match.
func (idx *SpectrumIndex) Lookup(run, id string) (*core.Spectrum, bool) {
	if spectra, ok := idx.runs[run]; ok {
		spec, ok := spectra[id]
		return spec, ok
	}
	if len(idx.runs) == 1 {
		for _, spectra := range idx.runs {
			spec, ok := spectra[id]
			return spec, ok
		}
	}
	return nil, false
}

// Each calls fn for every spectrum in the index
func (idx *SpectrumIndex) Each(fn func(*core.Spectrum) error) error {
	for _, spectra := range idx.runs {
		for _, spec := range spectra {
			if err := fn(spec); err != nil {
				return err
			}
		}
	}
	return nil
}

// Len returns the total number of spectra
func (idx *SpectrumIndex) Len() int {
	n := 0
	for _, spectra := range idx.runs {
		n += len(spectra)
	}
	return n
}

// RunName strips directories and known extensions from a spectrum file path
func RunName(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".gz", ".mgf", ".mzml", ".mzxml"} {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			name = name[:len(name)-len(ext)]
		}
	}
	return name
}
