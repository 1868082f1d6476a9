// Package cmd provides the ms2rescore command line
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/ms2rescore/pkg/config"
	"github.com/ChrisMcGann/ms2rescore/pkg/logging"
	"github.com/ChrisMcGann/ms2rescore/pkg/pipeline"
)

var (
	configFile   string
	psmFile      string
	psmFileType  string
	spectrumPath string
	outputPath   string
	tmpPath      string
	logLevel     string
	processes    int
	fastaFile    string
	modsFile     string
	writeSQLite  bool
)

var rootCmd = &cobra.Command{
	Use:   "ms2rescore",
	Short: "ms2rescore - Sensitive PSM rescoring with predicted features",
	Long: `ms2rescore adds rescoring features to the peptide-spectrum matches (PSMs) of a
search engine and re-estimates their confidence with Percolator or mokapot.

Supported PSM files:
- psm_utils TSV (.tsv)
- Percolator input (.pin)
- mzIdentML (.mzid)
- MaxQuant (msms.txt)

Examples:
  # Rescore with the default feature generators and mokapot
  ms2rescore -p results.tsv -m spectra/

  # Use a configuration file and write outputs next to it
  ms2rescore -c config.toml -o out/`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRescore,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.Flags().StringVarP(&psmFile, "psm_file", "p", "", "Path to PSM file (PIN, mzIdentML, MaxQuant msms, psm_utils tsv)")
	rootCmd.Flags().StringVar(&psmFileType, "psm_file_type", "infer", "PSM file type: tsv, percolator, mzid, msms or infer")
	rootCmd.Flags().StringVarP(&spectrumPath, "spectrum_path", "m", "", "Path to MGF file or directory with MGF files")
	rootCmd.Flags().StringVarP(&configFile, "config_file", "c", "", "Path to JSON or TOML configuration file")
	rootCmd.Flags().StringVarP(&tmpPath, "tmp_path", "t", "", "Path to directory to place temporary files")
	rootCmd.Flags().StringVarP(&outputPath, "output_path", "o", "", "Path and/or prefix for output files")
	rootCmd.Flags().StringVarP(&logLevel, "log_level", "l", "info", "Logging level: critical, error, warning, info or debug")
	rootCmd.Flags().IntVarP(&processes, "processes", "n", 0, "Number of parallel processes (default: number of CPUs)")
	rootCmd.Flags().StringVarP(&fastaFile, "fasta_file", "f", "", "Path to FASTA file for protein inference with mokapot")
	rootCmd.Flags().StringVar(&modsFile, "modification_database", "", "Path to CSV file with custom modifications (format: mod,massshift[,aa])")
	rootCmd.Flags().BoolVar(&writeSQLite, "write_sqlite", false, "Also write all PSMs and features to a SQLite database")
}

// loadConfig resolves defaults, the configuration file and the flags set
// on the command line, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		if err := cfg.Merge(configFile); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("psm_file") {
		cfg.PSMFile = psmFile
	}
	if flags.Changed("psm_file_type") {
		cfg.PSMFileType = psmFileType
	}
	if flags.Changed("spectrum_path") {
		cfg.SpectrumPath = spectrumPath
	}
	if flags.Changed("tmp_path") {
		cfg.TmpPath = tmpPath
	}
	if flags.Changed("output_path") {
		cfg.OutputPath = outputPath
	}
	if flags.Changed("log_level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("processes") {
		cfg.Processes = processes
	}
	if flags.Changed("fasta_file") {
		cfg.FastaFile = fastaFile
	}
	if flags.Changed("modification_database") {
		cfg.ModificationDatabase = modsFile
	}
	if flags.Changed("write_sqlite") {
		cfg.WriteSQLite = writeSQLite
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runRescore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	prefix := cfg.OutputPrefix()
	if err := os.MkdirAll(filepath.Dir(prefix), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	logger, err := logging.Setup(cfg.LogLevel, prefix+".log.txt")
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logger.Close()

	logger.Info("Starting ms2rescore", "version", cmd.Root().Version, "psm_file", cfg.PSMFile)
	res, err := pipeline.New(cfg, pipeline.WithLogger(logger)).Run(cmd.Context(), nil)
	if err != nil {
		logger.Critical(err.Error(), "state", res.State.String())
		return err
	}
	logger.Info("ms2rescore finished", "state", res.State.String(), "outputs", res.Files)
	return nil
}
