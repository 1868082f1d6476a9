// Package pipeline runs a complete rescoring: reading PSMs, decoy and
// q-value bookkeeping, feature generation, feature filtering, rescoring and
// writing the results.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChrisMcGann/ms2rescore/pkg/config"
	"github.com/ChrisMcGann/ms2rescore/pkg/core"
	"github.com/ChrisMcGann/ms2rescore/pkg/features"
	"github.com/ChrisMcGann/ms2rescore/pkg/filter"
	"github.com/ChrisMcGann/ms2rescore/pkg/logging"
	"github.com/ChrisMcGann/ms2rescore/pkg/reader"
	"github.com/ChrisMcGann/ms2rescore/pkg/rescoring"
	"github.com/ChrisMcGann/ms2rescore/pkg/writer/pin"
	"github.com/ChrisMcGann/ms2rescore/pkg/writer/sqlite"
	"github.com/ChrisMcGann/ms2rescore/pkg/writer/tsv"
)

// FDR threshold for identification counts
const identificationFDR = 0.01

// EngineFactory builds the rescoring engine of a rescoring_engine section.
type EngineFactory func(cfg *config.Config, section config.Section) (rescoring.Engine, error)

// Pipeline owns one rescoring run.
type Pipeline struct {
	cfg      *config.Config
	log      *logging.Logger
	registry features.Registry
	engines  EngineFactory
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the run logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithRegistry replaces the feature generator registry.
func WithRegistry(r features.Registry) Option {
	return func(p *Pipeline) { p.registry = r }
}

// WithEngineFactory replaces how rescoring engines are built.
func WithEngineFactory(f EngineFactory) Option {
	return func(p *Pipeline) { p.engines = f }
}

// New creates a pipeline for cfg.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		log:      logging.Noop(),
		registry: features.DefaultRegistry(),
		engines:  rescoring.NewFromSection,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result summarizes a finished (or aborted) run.
type Result struct {
	State            State
	OutputPrefix     string
	PSMs             *core.PSMList
	PSMCount         int
	DecoyCount       int
	Removed          int
	IdentifiedBefore int
	IdentifiedAfter  int
	FeatureNames     *core.FeatureNames
	Engine           string
	Files            []string
}

// Run executes the rescoring run. When psms is nil they are read from the
// configured psm_file. The returned Result records the last state reached,
// also on error.
func (p *Pipeline) Run(ctx context.Context, psms *core.PSMList) (*Result, error) {
	cfg := p.cfg
	res := &Result{OutputPrefix: cfg.OutputPrefix(), FeatureNames: core.NewFeatureNames()}
	prefix := res.OutputPrefix

	if err := os.MkdirAll(filepath.Dir(prefix), 0o755); err != nil {
		return res, fmt.Errorf("failed to create output directory: %w", err)
	}
	path, err := cfg.WriteFull(prefix)
	if err != nil {
		return res, err
	}
	res.Files = append(res.Files, path)

	// Resolve modifications, generators and engine before touching any PSM
	mods, err := p.modDatabase()
	if err != nil {
		return res, err
	}
	generators, err := p.buildGenerators()
	if err != nil {
		return res, err
	}
	engineName, ignored, err := rescoring.Select(cfg.RescoringEngine.Names())
	if err != nil {
		return res, err
	}
	var engine rescoring.Engine
	if engineName != "" {
		if len(ignored) > 0 {
			p.log.Warn(fmt.Sprintf("Multiple rescoring engines configured, running %s and ignoring %s.",
				engineName, strings.Join(ignored, ", ")))
		}
		section, _ := cfg.RescoringEngine.Get(engineName)
		if engine, err = p.engines(cfg, section); err != nil {
			return res, err
		}
		res.Engine = engineName
	}

	// Loaded
	if psms == nil {
		p.log.Info("Reading PSMs from file...", "path", cfg.PSMFile, "type", cfg.PSMFileType)
		if psms, err = reader.Read(cfg.PSMFile, cfg.PSMFileType); err != nil {
			return res, err
		}
	}
	res.PSMs = psms
	res.PSMCount = psms.Len()
	res.State = StateLoaded

	// Decoy labelled
	if cfg.IDDecoyPattern != "" {
		if err := psms.FindDecoys(cfg.IDDecoyPattern); err != nil {
			return res, err
		}
	}
	res.DecoyCount = psms.DecoyCount()
	decoyPercent := 0.0
	if psms.Len() > 0 {
		decoyPercent = float64(res.DecoyCount) / float64(psms.Len()) * 100
	}
	p.log.Info(fmt.Sprintf("Found %d PSMs, of which %.2f%% are decoys.", psms.Len(), decoyPercent))
	if res.DecoyCount == 0 {
		return res, core.NewConfigurationError("id_decoy_pattern",
			"no decoy PSMs found; please check if decoys are present in the PSM file and that the `id_decoy_pattern` option is correct")
	}
	res.State = StateDecoyLabelled

	// Q-value ready
	if psms.HasMissingQValues() {
		p.log.Info("Recalculating q-values...")
		psms.CalculateQValues(!cfg.LowerScoreIsBetter)
	}
	res.IdentifiedBefore = psms.CountIdentified(identificationFDR)
	p.log.Info(fmt.Sprintf("Found %d identified PSMs at 1%% FDR before rescoring.", res.IdentifiedBefore))
	res.State = StateQValueReady

	// Provenance captured
	psms.CaptureProvenance()
	res.State = StateProvenanceCaptured

	// Normalized
	if err := p.normalize(psms, mods); err != nil {
		return res, err
	}
	res.State = StateNormalized

	// Features annotated
	res.FeatureNames.Add(core.PSMFileFeatures, psms.FeatureNames()...)
	for _, gen := range generators {
		if err := p.runGenerator(ctx, gen, psms, res.FeatureNames); err != nil {
			return res, err
		}
	}
	res.State = StateFeaturesAnnotated

	// Feature filtered
	expected := res.FeatureNames.UnionSorted()
	kept, report, err := (&filter.Features{Expected: expected}).Apply(psms)
	if err != nil {
		return res, err
	}
	p.logFilterReport(report)
	psms = kept
	res.PSMs = psms
	res.Removed = report.Removed()
	namesPath := prefix + ".feature_names.tsv"
	if err := tsv.WriteFeatureNames(namesPath, res.FeatureNames); err != nil {
		return res, err
	}
	res.Files = append(res.Files, namesPath)
	res.State = StateFeatureFiltered

	if cfg.RenameToUSI {
		p.log.Info("Renaming spectrum IDs to USIs...")
		psms.RenameToUSI()
		res.State = StateIDRewritten
	}

	// Rescored or exported
	if engine == nil {
		p.log.Info("No rescoring engine specified. Writing PSMs with rescoring features to PIN file.")
		if err := p.writeSQLite(res, expected); err != nil {
			return res, err
		}
		pinPath := prefix + ".pin"
		if err := pin.WriteFile(pinPath, psms, expected, pin.Options{}); err != nil {
			return res, err
		}
		res.Files = append(res.Files, pinPath)
		res.State = StateRescoredOrExported
		return res, nil
	}

	p.log.Info("Rescoring PSMs...", "engine", engine.Name())
	if err := engine.Rescore(ctx, psms, prefix); err != nil {
		return res, err
	}
	res.State = StateRescoredOrExported

	// Reported
	res.IdentifiedBefore = psms.CountIdentifiedBefore(identificationFDR)
	res.IdentifiedAfter = psms.CountIdentified(identificationFDR)
	p.logIdentified(res.IdentifiedBefore, res.IdentifiedAfter)

	if err := p.writeSQLite(res, expected); err != nil {
		return res, err
	}
	psmsPath := prefix + ".psms.tsv"
	if err := tsv.WriteFile(psmsPath, psms); err != nil {
		return res, err
	}
	res.Files = append(res.Files, psmsPath)
	res.State = StateReported
	return res, nil
}

// buildGenerators resolves every configured feature generator in order.
func (p *Pipeline) buildGenerators() ([]features.Generator, error) {
	generators := make([]features.Generator, 0, len(p.cfg.FeatureGenerators))
	for _, section := range p.cfg.FeatureGenerators {
		opts, err := p.cfg.GeneratorOptions(section)
		if err != nil {
			return nil, err
		}
		gen, err := p.registry.New(section.Name, opts)
		if err != nil {
			return nil, err
		}
		generators = append(generators, gen)
	}
	return generators, nil
}

// modDatabase returns the default modifications, extended with the
// configured modification_database file.
func (p *Pipeline) modDatabase() (*core.ModDatabase, error) {
	if p.cfg.ModificationDatabase == "" {
		return core.DefaultModDatabase(), nil
	}
	p.log.Debug("Loading modification database...", "path", p.cfg.ModificationDatabase)
	return core.LoadModDatabase(p.cfg.ModificationDatabase)
}

// normalize canonicalizes modifications and rewrites spectrum identifiers.
func (p *Pipeline) normalize(psms *core.PSMList, mods *core.ModDatabase) error {
	psms.ResolveModifications(mods)
	psms.RenameModifications(p.cfg.ModificationMapping, mods)
	fixed, err := core.ParseFixedModifications(p.cfg.FixedModifications)
	if err != nil {
		return err
	}
	psms.AddFixedModifications(fixed)
	psms.ApplyFixedModifications(mods)

	if p.cfg.PSMIDPattern != "" {
		p.log.Debug("Applying `psm_id_pattern` to spectrum IDs...", "pattern", p.cfg.PSMIDPattern)
		if err := psms.ApplyIDPattern(p.cfg.PSMIDPattern); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) runGenerator(ctx context.Context, gen features.Generator, psms *core.PSMList, names *core.FeatureNames) error {
	log := p.log.WithStage("features")
	if a, ok := gen.(features.Applicable); ok && !a.Applicable(psms) {
		log.Info(fmt.Sprintf("Skipping feature generator %s: not applicable to these PSMs.", gen.Name()))
		return nil
	}

	log.Info(fmt.Sprintf("Running feature generator %s...", gen.Name()))
	err := gen.AddFeatures(ctx, psms)
	log.LogGenerator(ctx, gen.Name(), len(gen.FeatureNames()), err)
	if err != nil {
		return fmt.Errorf("feature generator %s: %w", gen.Name(), err)
	}
	names.Add(gen.Name(), gen.FeatureNames()...)
	return nil
}

func (p *Pipeline) logFilterReport(report *filter.Report) {
	if report.RemovedMissing > 0 {
		p.log.Warn(fmt.Sprintf("Removed %d PSMs that were missing one or more rescoring feature(s), %s.",
			report.RemovedMissing, strings.Join(report.MissingNames(), ", ")))
	}
	if report.RemovedExtra > 0 {
		p.log.Warn(fmt.Sprintf("Removed %d PSMs that carried unexpected rescoring feature(s), %s.",
			report.RemovedExtra, strings.Join(report.ExtraNames(), ", ")))
	}
}

func (p *Pipeline) logIdentified(before, after int) {
	diff := after - before
	if before > 0 {
		p.log.Info(fmt.Sprintf("Identified %d (%.2f%%) more PSMs at 1%% FDR after rescoring.",
			diff, float64(diff)/float64(before)*100))
		return
	}
	p.log.Info(fmt.Sprintf("Identified %d more PSMs at 1%% FDR after rescoring.", diff))
}

// writeSQLite exports the run to <prefix>.psms.db when write_sqlite is set.
func (p *Pipeline) writeSQLite(res *Result, featureCols []string) error {
	if !p.cfg.WriteSQLite {
		return nil
	}
	path := res.OutputPrefix + ".psms.db"
	// Start from an empty database on reruns
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	w, err := sqlite.NewWriter(path, featureCols)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.WriteFeatureNames(res.FeatureNames); err != nil {
		return err
	}
	if err := w.WritePSMs(res.PSMs); err != nil {
		return err
	}
	if err := w.Finalize(sqlite.Header{
		RunID:            p.cfg.RunID,
		Engine:           res.Engine,
		PSMFile:          p.cfg.PSMFile,
		Removed:          res.Removed,
		IdentifiedBefore: res.IdentifiedBefore,
		IdentifiedAfter:  res.IdentifiedAfter,
	}); err != nil {
		return err
	}
	res.Files = append(res.Files, path)
	return nil
}
