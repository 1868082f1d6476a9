// Package sqlite provides SQLite export of a rescoring run
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	// Schema version written to HeaderTable
	schemaVersion = 1
)

// Header describes the run a database was written for
type Header struct {
	RunID            string
	Engine           string
	PSMFile          string
	Removed          int
	IdentifiedBefore int
	IdentifiedAfter  int
}

// Writer handles writing PSMs and their features to SQLite database files
type Writer struct {
	db          *sql.DB
	outputPath  string
	features    []string
	psmStmt     *sql.Stmt
	featureStmt *sql.Stmt
	psmID       int
}

// NewWriter creates a new SQLite writer. features fixes the order of the
// values in each PSM's feature blob.
func NewWriter(outputPath string, features []string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		features:   features,
		psmID:      1,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS PSMTable (
		PsmId INTEGER PRIMARY KEY,
		SpectrumId TEXT NOT NULL,
		Run TEXT,
		Collection TEXT,
		Peptidoform TEXT NOT NULL,
		Sequence TEXT NOT NULL,
		Charge INTEGER,
		IsDecoy BOOL,
		Score DOUBLE,
		QValue DOUBLE,
		PEP DOUBLE,
		Rank INTEGER,
		PrecursorMZ DOUBLE,
		NeutralMass DOUBLE,
		RetentionTime DOUBLE,
		Proteins TEXT,
		Source TEXT,
		USI TEXT,
		ScoreBefore DOUBLE,
		QValueBefore DOUBLE,
		blobFeatures BLOB
	);

	CREATE TABLE IF NOT EXISTS FeatureTable (
		Position INTEGER PRIMARY KEY,
		Generator TEXT,
		Name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		RunId TEXT,
		Engine TEXT,
		PSMFile TEXT,
		NoofPSMs INTEGER,
		NoofPSMsRemoved INTEGER,
		IdentifiedBefore INTEGER,
		IdentifiedAfter INTEGER
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.psmStmt, err = w.db.Prepare(`
		INSERT INTO PSMTable (
			PsmId, SpectrumId, Run, Collection, Peptidoform, Sequence,
			Charge, IsDecoy, Score, QValue, PEP, Rank, PrecursorMZ,
			NeutralMass, RetentionTime, Proteins, Source, USI,
			ScoreBefore, QValueBefore, blobFeatures
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare PSM statement: %w", err)
	}

	w.featureStmt, err = w.db.Prepare(`
		INSERT INTO FeatureTable (Position, Generator, Name) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare feature statement: %w", err)
	}

	return nil
}

// WriteFeatureNames records the feature column order and, when names is
// non-nil, the generator that contributed each feature.
func (w *Writer) WriteFeatureNames(names *core.FeatureNames) error {
	generatorOf := make(map[string]string)
	if names != nil {
		for _, generator := range names.Generators() {
			for _, name := range names.Names(generator) {
				if _, seen := generatorOf[name]; !seen {
					generatorOf[name] = generator
				}
			}
		}
	}
	for i, name := range w.features {
		if _, err := w.featureStmt.Exec(i, generatorOf[name], name); err != nil {
			return fmt.Errorf("failed to insert feature name: %w", err)
		}
	}
	return nil
}

// WritePSM writes a single PSM to the database
func (w *Writer) WritePSM(psm *core.PSM) error {
	var scoreBefore, qvalueBefore interface{}
	if v, ok := psm.ProvenanceFloat(core.ProvenanceScore); ok {
		scoreBefore = v
	}
	if v, ok := psm.ProvenanceFloat(core.ProvenanceQValue); ok {
		qvalueBefore = v
	}

	blob := encodeFeatures(psm.RescoringFeatures, w.features)

	_, err := w.psmStmt.Exec(
		w.psmID,                            // PsmId
		psm.SpectrumID,                     // SpectrumId
		psm.Run,                            // Run
		psm.Collection,                     // Collection
		psm.Peptidoform.ProForma(),         // Peptidoform
		psm.Peptidoform.Sequence,           // Sequence
		psm.Charge(),                       // Charge
		psm.IsDecoy,                        // IsDecoy
		psm.Score,                          // Score
		optionalFloat(psm.QValue),          // QValue
		optionalFloat(psm.PEP),             // PEP
		optionalInt(psm.Rank),              // Rank
		optionalFloat(psm.PrecursorMZ),     // PrecursorMZ
		psm.Peptidoform.NeutralMass(),      // NeutralMass
		optionalFloat(psm.RetentionTime),   // RetentionTime
		strings.Join(psm.ProteinList, ";"), // Proteins
		psm.Source,                         // Source
		psm.USI(),                          // USI
		scoreBefore,                        // ScoreBefore
		qvalueBefore,                       // QValueBefore
		blob,                               // blobFeatures
	)
	if err != nil {
		return fmt.Errorf("failed to insert PSM: %w", err)
	}

	w.psmID++
	return nil
}

// WritePSMs writes every PSM of the collection
func (w *Writer) WritePSMs(psms *core.PSMList) error {
	for _, psm := range psms.All() {
		if err := w.WritePSM(psm); err != nil {
			return err
		}
	}
	return nil
}

func optionalFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func optionalInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// encodeFeatures encodes feature values as a little-endian float64 blob in
// the writer's feature order. Missing features are stored as NaN.
func encodeFeatures(values map[string]float64, names []string) []byte {
	buf := make([]byte, len(names)*8)
	for i, name := range names {
		value, ok := values[name]
		if !ok {
			value = math.NaN()
		}
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(value))
	}
	return buf
}

// DecodeFeatures reverses encodeFeatures
func DecodeFeatures(blob []byte) []float64 {
	values := make([]float64, len(blob)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return values
}

// Finalize writes the header table and closes the database
func (w *Writer) Finalize(header Header) error {
	_, err := w.db.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, RunId, Engine, PSMFile, NoofPSMs, NoofPSMsRemoved, IdentifiedBefore, IdentifiedAfter)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, schemaVersion, time.Now().Format(headerDateFormat), header.RunID, header.Engine, header.PSMFile,
		w.psmID-1, header.Removed, header.IdentifiedBefore, header.IdentifiedAfter)
	if err != nil {
		return fmt.Errorf("failed to insert header: %w", err)
	}

	return w.Close()
}

// Close closes prepared statements and the database connection
func (w *Writer) Close() error {
	if w.psmStmt != nil {
		w.psmStmt.Close()
		w.psmStmt = nil
	}
	if w.featureStmt != nil {
		w.featureStmt.Close()
		w.featureStmt = nil
	}
	if w.db == nil {
		return nil
	}
	err := w.db.Close()
	w.db = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
