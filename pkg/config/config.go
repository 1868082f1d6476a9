// Package config provides the run configuration of ms2rescore: defaults,
// JSON/TOML configuration files, command-line overrides and validation.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/google/uuid"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
	"github.com/ChrisMcGann/ms2rescore/pkg/logging"
)

// Config holds all recognized ms2rescore options.
type Config struct {
	PSMFile              string              `json:"psm_file" toml:"psm_file"`
	PSMFileType          string              `json:"psm_file_type" toml:"psm_file_type"`
	SpectrumPath         string              `json:"spectrum_path" toml:"spectrum_path"`
	OutputPath           string              `json:"output_path" toml:"output_path"`
	TmpPath              string              `json:"tmp_path" toml:"tmp_path"`
	LogLevel             string              `json:"log_level" toml:"log_level"`
	Processes            int                 `json:"processes" toml:"processes"`
	IDDecoyPattern       string              `json:"id_decoy_pattern" toml:"id_decoy_pattern"`
	LowerScoreIsBetter   bool                `json:"lower_score_is_better" toml:"lower_score_is_better"`
	ModificationMapping  map[string]string   `json:"modification_mapping" toml:"modification_mapping"`
	// CSV of mod,massshift[,aa] extending the built-in modification masses
	ModificationDatabase string              `json:"modification_database" toml:"modification_database"`
	FixedModifications   map[string][]string `json:"fixed_modifications" toml:"fixed_modifications"`
	PSMIDPattern         string              `json:"psm_id_pattern" toml:"psm_id_pattern"`
	RenameToUSI          bool                `json:"rename_to_usi" toml:"rename_to_usi"`
	// Sections run in the order they are configured
	FeatureGenerators    Sections            `json:"feature_generators" toml:"feature_generators"`
	RescoringEngine      Sections            `json:"rescoring_engine" toml:"rescoring_engine"`
	FastaFile            string              `json:"fasta_file" toml:"fasta_file"`
	WriteSQLite          bool                `json:"write_sqlite" toml:"write_sqlite"`
	RunID                string              `json:"run_id,omitempty" toml:"run_id,omitempty"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		PSMFileType:         "infer",
		LogLevel:            "info",
		Processes:           runtime.NumCPU(),
		ModificationMapping: map[string]string{},
		FixedModifications:  map[string][]string{},
		FeatureGenerators:   Sections{{Name: "basic", Options: map[string]any{}}},
		RescoringEngine:     Sections{{Name: "mokapot", Options: map[string]any{}}},
	}
}

// Load reads a JSON or TOML configuration file (by extension) over the
// defaults. The options live under a top-level "ms2rescore" table.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.Merge(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge overlays the options of a configuration file onto cfg. Sections
// present in the file replace the corresponding sections of cfg.
func (c *Config) Merge(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.NewConfigurationError("config_file", "could not read configuration file: %v", err)
	}

	var wrapped struct {
		MS2Rescore json.RawMessage `json:"ms2rescore"`
	}
	var order map[string][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return core.NewConfigurationError("config_file", "invalid JSON in %s: %v", path, err)
		}
	case ".toml":
		raw, keyOrder, err := tomlToJSON(data)
		if err != nil {
			return core.NewConfigurationError("config_file", "invalid TOML in %s: %v", path, err)
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return core.NewConfigurationError("config_file", "invalid TOML in %s: %v", path, err)
		}
		order = keyOrder
	default:
		return core.NewConfigurationError("config_file", "unsupported configuration file '%s', expected .json or .toml", path)
	}
	if len(wrapped.MS2Rescore) == 0 {
		return core.NewConfigurationError("config_file", "configuration file %s has no top-level `ms2rescore` section", path)
	}

	dec := json.NewDecoder(bytes.NewReader(wrapped.MS2Rescore))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return core.NewConfigurationError("config_file", "invalid options in %s: %v", path, err)
	}
	if order != nil {
		c.FeatureGenerators.reorder(order["feature_generators"])
		c.RescoringEngine.reorder(order["rescoring_engine"])
	}
	return nil
}

// Validate checks option values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if strings.TrimSpace(c.PSMFile) == "" {
		return core.NewConfigurationError("psm_file", "no PSM file provided, please specify `psm_file` or use -p")
	}
	if c.Processes <= 0 {
		return core.NewConfigurationError("processes", "processes must be positive, got %d", c.Processes)
	}
	for option, pattern := range map[string]string{
		"id_decoy_pattern": c.IDDecoyPattern,
		"psm_id_pattern":   c.PSMIDPattern,
	} {
		if pattern == "" {
			continue
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return core.NewConfigurationError(option, "invalid regular expression '%s': %v", pattern, err)
		}
	}
	if _, err := core.ParseFixedModifications(c.FixedModifications); err != nil {
		return err
	}
	for _, s := range c.FeatureGenerators {
		if strings.TrimSpace(s.Name) == "" {
			return core.NewConfigurationError("feature_generators", "feature generator name cannot be empty")
		}
	}
	return nil
}

// OutputPrefix derives the path prefix of all output files.
func (c *Config) OutputPrefix() string {
	stem := strings.TrimSuffix(c.PSMFile, ".gz")
	stem = strings.TrimSuffix(stem, filepath.Ext(stem))
	if c.OutputPath == "" {
		return stem + ".ms2rescore"
	}
	if info, err := os.Stat(c.OutputPath); err == nil && info.IsDir() {
		return filepath.Join(c.OutputPath, filepath.Base(stem)+".ms2rescore")
	}
	return c.OutputPath
}

// GeneratorOptions merges the global options with the options of one
// feature generator or rescoring engine section; section keys win.
func (c *Config) GeneratorOptions(section Section) (map[string]any, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]any)
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	delete(merged, "feature_generators")
	delete(merged, "rescoring_engine")
	for k, v := range section.Options {
		merged[k] = v
	}
	return merged, nil
}

// WriteFull writes the complete configuration, including defaults and a
// fresh run ID, to <prefix>.full-config.json.
func (c *Config) WriteFull(prefix string) (string, error) {
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
	data, err := json.MarshalIndent(map[string]*Config{"ms2rescore": c}, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to encode configuration: %w", err)
	}
	path := prefix + ".full-config.json"
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write configuration: %w", err)
	}
	return path, nil
}

// DecodeOptions decodes merged options into a typed options struct using
// the struct's json tags. Unknown keys are ignored.
func DecodeOptions(options map[string]any, dst any) error {
	data, err := json.Marshal(options)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
