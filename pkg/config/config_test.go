package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "infer", cfg.PSMFileType)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Positive(t, cfg.Processes)
	assert.Equal(t, []string{"basic"}, cfg.FeatureGenerators.Names())
	assert.Equal(t, []string{"mokapot"}, cfg.RescoringEngine.Names())
}

func TestLoadJSONKeepsSectionOrder(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"ms2rescore": {
			"psm_file": "results.tsv",
			"processes": 2,
			"feature_generators": {"rt": {"calibration_fdr": 0.05}, "basic": {}},
			"rescoring_engine": {"percolator": {"init-weights": "w.tsv"}}
		}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "results.tsv", cfg.PSMFile)
	assert.Equal(t, 2, cfg.Processes)
	assert.Equal(t, "info", cfg.LogLevel, "unset options keep their default")
	assert.Equal(t, []string{"rt", "basic"}, cfg.FeatureGenerators.Names())
	assert.Equal(t, []string{"percolator"}, cfg.RescoringEngine.Names())

	rt, ok := cfg.FeatureGenerators.Get("rt")
	require.True(t, ok)
	assert.Equal(t, 0.05, rt.Options["calibration_fdr"])
}

func TestLoadTOMLKeepsSectionOrder(t *testing.T) {
	path := writeFile(t, "config.toml", `
[ms2rescore]
psm_file = "msms.txt"
log_level = "debug"

[ms2rescore.feature_generators.maxquant]

[ms2rescore.feature_generators.fragment]
fragment_tolerance = 0.05

[ms2rescore.feature_generators.basic]

[ms2rescore.rescoring_engine]
mokapot = { write_weights = true }
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "msms.txt", cfg.PSMFile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"maxquant", "fragment", "basic"}, cfg.FeatureGenerators.Names())
	assert.Equal(t, []string{"mokapot"}, cfg.RescoringEngine.Names())

	fragment, _ := cfg.FeatureGenerators.Get("fragment")
	assert.Equal(t, 0.05, fragment.Options["fragment_tolerance"])
}

func TestLoadEmptyEngineMeansNone(t *testing.T) {
	path := writeFile(t, "config.json", `{"ms2rescore": {"psm_file": "a.tsv", "rescoring_engine": {}}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.RescoringEngine)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"invalid json", "config.json", `{"ms2rescore": `},
		{"invalid toml", "config.toml", `[ms2rescore`},
		{"missing table", "config.json", `{"psm_file": "a.tsv"}`},
		{"unknown option", "config.json", `{"ms2rescore": {"psm_fiel": "a.tsv"}}`},
		{"unknown extension", "config.yaml", `ms2rescore: {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrConfiguration))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		option string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"no psm file", func(c *Config) { c.PSMFile = "" }, "psm_file"},
		{"zero processes", func(c *Config) { c.Processes = 0 }, "processes"},
		{"bad decoy regex", func(c *Config) { c.IDDecoyPattern = "(" }, "id_decoy_pattern"},
		{"bad id regex", func(c *Config) { c.PSMIDPattern = "[" }, "psm_id_pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.PSMFile = "results.tsv"
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.option == "" {
				assert.NoError(t, err)
				return
			}
			var cerr *core.ConfigurationError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.option, cerr.Option)
		})
	}
}

func TestOutputPrefix(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		psmFile, outputPath, want string
	}{
		{"data/results.tsv", "", "data/results.ms2rescore"},
		{"data/results.pin.gz", "", "data/results.ms2rescore"},
		{"data/results.tsv", filepath.Join(dir, "run1"), filepath.Join(dir, "run1")},
		{"data/results.tsv", dir, filepath.Join(dir, "results.ms2rescore")},
	}
	for _, tt := range tests {
		cfg := Default()
		cfg.PSMFile = tt.psmFile
		cfg.OutputPath = tt.outputPath
		assert.Equal(t, tt.want, cfg.OutputPrefix())
	}
}

func TestGeneratorOptions(t *testing.T) {
	cfg := Default()
	cfg.PSMFile = "results.tsv"
	cfg.Processes = 3
	section := Section{Name: "fragment", Options: map[string]any{"processes": 1.0, "fragment_tolerance": 0.05}}

	opts, err := cfg.GeneratorOptions(section)
	require.NoError(t, err)
	assert.Equal(t, "results.tsv", opts["psm_file"])
	assert.Equal(t, 1.0, opts["processes"], "section options win over global ones")
	assert.Equal(t, 0.05, opts["fragment_tolerance"])
	assert.NotContains(t, opts, "feature_generators")

	var typed struct {
		Processes int     `json:"processes"`
		Tolerance float64 `json:"fragment_tolerance"`
	}
	require.NoError(t, DecodeOptions(opts, &typed))
	assert.Equal(t, 1, typed.Processes)
	assert.Equal(t, 0.05, typed.Tolerance)
}

func TestWriteFull(t *testing.T) {
	cfg := Default()
	cfg.PSMFile = "results.tsv"
	cfg.FeatureGenerators = Sections{{Name: "rt"}, {Name: "basic", Options: map[string]any{}}}
	prefix := filepath.Join(t.TempDir(), "out")

	path, err := cfg.WriteFull(prefix)
	require.NoError(t, err)
	assert.Equal(t, prefix+".full-config.json", path)
	assert.NotEmpty(t, cfg.RunID)

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.RunID, reloaded.RunID)
	assert.Equal(t, []string{"rt", "basic"}, reloaded.FeatureGenerators.Names())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "ms2rescore")
}

func TestSectionsReorder(t *testing.T) {
	s := Sections{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	s.reorder([]string{"c", "a"})
	assert.Equal(t, []string{"c", "a", "b"}, s.Names())
}
