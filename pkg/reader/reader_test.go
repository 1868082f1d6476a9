package reader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
)

const tsvSample = "peptidoform\tspectrum_id\tis_decoy\tscore\tprotein_list\n" +
	"PEPTIDEK/2\t1\tFalse\t10\tP1\n" +
	"KEDITPEP/2\t2\tTrue\t2\tDECOY_P1\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeGzip(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestInferFileType(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/data/results.tsv", FileTypeTSV},
		{"/data/results.tsv.gz", FileTypeTSV},
		{"search.pin", FileTypePercolator},
		{"search.MZID", FileTypeMzid},
		{"combined/txt/msms.txt", FileTypeMaxQuant},
		{"results.csv", ""},
		{"notes.txt", ""},
	}
	for _, tt := range tests {
		if got := InferFileType(tt.path); got != tt.expected {
			t.Errorf("InferFileType(%q) = %q, expected %q", tt.path, got, tt.expected)
		}
	}
}

func TestRead(t *testing.T) {
	path := writeFile(t, "psms.tsv", tsvSample)
	psms, err := Read(path, FileTypeInfer)
	require.NoError(t, err)
	assert.Equal(t, 2, psms.Len())
	assert.Equal(t, 1, psms.DecoyCount())
}

func TestReadGzip(t *testing.T) {
	path := writeGzip(t, "psms.tsv.gz", tsvSample)
	psms, err := Read(path, "")
	require.NoError(t, err)
	assert.Equal(t, 2, psms.Len())
}

func TestReadExplicitType(t *testing.T) {
	path := writeFile(t, "psms.txt", tsvSample)
	psms, err := Read(path, FileTypeTSV)
	require.NoError(t, err)
	assert.Equal(t, 2, psms.Len())
}

func TestReadUnsupported(t *testing.T) {
	path := writeFile(t, "psms.csv", tsvSample)

	_, err := Read(path, FileTypeInfer)
	assert.True(t, errors.Is(err, core.ErrUnsupportedFormat))

	_, err = Read(path, "xtandem")
	var ufe *core.UnsupportedFormatError
	require.ErrorAs(t, err, &ufe)
	assert.Equal(t, "xtandem", ufe.FileType)
}

func TestReadMalformed(t *testing.T) {
	path := writeFile(t, "psms.tsv", "peptidoform\tspectrum_id\tscore\nPEPK/2\t1\t3\nPEPK/2\t2\tNaN?\n")
	_, err := Read(path, FileTypeInfer)
	require.True(t, errors.Is(err, core.ErrMalformedInput))

	var mie *core.MalformedInputError
	require.ErrorAs(t, err, &mie)
	assert.Equal(t, path, mie.Path)
	assert.Equal(t, 3, mie.Line)
}

func TestReadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "psms.tsv")
	_, err := Read(path, FileTypeInfer)
	require.True(t, errors.Is(err, core.ErrMalformedInput))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	var mie *core.MalformedInputError
	require.ErrorAs(t, err, &mie)
	assert.Equal(t, path, mie.Path)
}

func TestReadSpectra(t *testing.T) {
	dir := t.TempDir()
	mgf := "BEGIN IONS\nTITLE=s1\nPEPMASS=400.5\nCHARGE=2+\n100 1\nEND IONS\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run_a.mgf"), []byte(mgf), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run_b.mgf"), []byte(mgf), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	idx, err := ReadSpectra(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	spec, ok := idx.Lookup("run_b", "s1")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "run_b.mgf"), spec.SourceFile)

	_, ok = idx.Lookup("run_c", "s1")
	assert.False(t, ok, "unknown run with several files loaded")
}

func TestReadSpectraSingleFile(t *testing.T) {
	path := writeGzip(t, "only.mgf.gz", "BEGIN IONS\nTITLE=s1\n100 1\nEND IONS\n")
	idx, err := ReadSpectra(path)
	require.NoError(t, err)

	_, ok := idx.Lookup("", "s1")
	assert.True(t, ok, "single run matches any run name")
}

func TestRunName(t *testing.T) {
	assert.Equal(t, "run_01", RunName("/x/run_01.mgf.gz"))
	assert.Equal(t, "run_01", RunName("run_01.mzML"))
}
