// Package core provides modification parsing and management
package core

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Terminal targets for fixed modifications
const (
	TargetNTerm = "N-term"
	TargetCTerm = "C-term"
)

// ModDatabase stores modification definitions
type ModDatabase struct {
	mods map[string]float64 // name -> mass shift
}

// NewModDatabase creates an empty modification database
func NewModDatabase() *ModDatabase {
	return &ModDatabase{
		mods: make(map[string]float64),
	}
}

// LoadFromCSV loads modifications from a CSV file (format: mod,massshift[,aa])
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	// Skip header line
	scanner.Scan()

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return fmt.Errorf("line %d: invalid format, expected at least 2 comma-separated fields", lineNum)
		}

		modName := strings.TrimSpace(parts[0])
		massStr := strings.TrimSpace(parts[1])

		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, massStr, err)
		}

		db.mods[modName] = mass
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}

	return nil
}

// LoadModDatabase returns the default modifications extended with the
// modifications of a CSV file. Entries in the file override defaults.
func LoadModDatabase(path string) (*ModDatabase, error) {
	db := DefaultModDatabase()
	f, err := os.Open(path)
	if err != nil {
		return nil, NewConfigurationError("modification_database", "could not open modification database: %v", err)
	}
	defer f.Close()

	if err := db.LoadFromCSV(f); err != nil {
		return nil, &MalformedInputError{Path: path, Err: err}
	}
	return db, nil
}

// GetMass returns the mass shift for a modification name
func (db *ModDatabase) GetMass(name string) (float64, bool) {
	mass, ok := db.mods[name]
	return mass, ok
}

// Add adds or updates a modification
func (db *ModDatabase) Add(name string, mass float64) {
	db.mods[name] = mass
}

// Resolve returns the mass shift of a modification label. Labels are signed
// mass deltas ("+15.995"), unimod names or accessions, "U:"/"UNIMOD:" prefixed
// names, or unsigned mass deltas.
func (db *ModDatabase) Resolve(label string) (float64, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, false
	}
	if label[0] == '+' || label[0] == '-' {
		if mass, err := strconv.ParseFloat(label, 64); err == nil {
			return mass, true
		}
	}
	if mass, ok := db.GetMass(label); ok {
		return mass, true
	}
	for _, prefix := range []string{"U:", "UNIMOD:"} {
		if strings.HasPrefix(label, prefix) {
			return db.GetMass(strings.TrimPrefix(label, prefix))
		}
	}
	// Unsigned deltas as written by Percolator ("M[15.9949]")
	if mass, err := strconv.ParseFloat(label, 64); err == nil {
		return mass, true
	}
	return 0, false
}

// FixedModification declares a modification that is present on every matching
// site but not reported by the search engine.
type FixedModification struct {
	Name    string
	Targets []string // residue letters, N-term or C-term
}

// ParseFixedModifications converts a name -> targets mapping into a stable
// list of declarations, sorted by name.
func ParseFixedModifications(mapping map[string][]string) ([]FixedModification, error) {
	names := sortedKeys(mapping)
	fixed := make([]FixedModification, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, NewConfigurationError("fixed_modifications", "modification name cannot be empty")
		}
		var targets []string
		for _, target := range mapping[name] {
			target = strings.TrimSpace(target)
			switch {
			case strings.EqualFold(target, TargetNTerm):
				targets = append(targets, TargetNTerm)
			case strings.EqualFold(target, TargetCTerm):
				targets = append(targets, TargetCTerm)
			case len(target) == 1 && target[0] >= 'A' && target[0] <= 'Z':
				targets = append(targets, target)
			default:
				return nil, NewConfigurationError("fixed_modifications",
					"invalid target '%s' for modification '%s', expected a residue letter, N-term or C-term", target, name)
			}
		}
		fixed = append(fixed, FixedModification{Name: name, Targets: targets})
	}
	return fixed, nil
}

// builtinMods backs ParsePeptidoform and is never modified.
var builtinMods = sync.OnceValue(DefaultModDatabase)

// DefaultModDatabase returns a ModDatabase pre-loaded with common modifications
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()

	// Common modifications from unimod
	db.Add("Acetyl", 42.010565)
	db.Add("Amidated", -0.984016)
	db.Add("Biotin", 226.077598)
	db.Add("Carbamidomethyl", 57.021464)
	db.Add("Carbamyl", 43.005814)
	db.Add("Carboxymethyl", 58.005479)
	db.Add("Deamidated", 0.984016)
	db.Add("Met->Hse", -29.992806)
	db.Add("Met->Hsl", -48.003371)
	db.Add("NIPCAM", 99.068414)
	db.Add("Phospho", 79.966331)
	db.Add("Dehydrated", -18.010565)
	db.Add("Propionamide", 71.037114)
	db.Add("Pyro-carbamidomethyl", 39.994915)
	db.Add("Glu->pyro-Glu", -18.010565)
	db.Add("Gln->pyro-Glu", -17.026549)
	db.Add("Cation:Na", 21.981943)
	db.Add("Methyl", 14.01565)
	db.Add("Oxidation", 15.994915)
	db.Add("Dimethyl", 28.0313)
	db.Add("Trimethyl", 42.04695)
	db.Add("Methylthio", 45.987721)
	db.Add("Sulfo", 79.956815)
	db.Add("Hex", 162.052824)
	db.Add("Lipoyl", 188.032956)
	db.Add("HexNAc", 203.079373)
	db.Add("Farnesyl", 204.187801)
	db.Add("Myristoyl", 210.198366)
	db.Add("PyridoxalPhosphate", 229.014009)
	db.Add("Palmitoyl", 238.229666)
	db.Add("GeranylGeranyl", 272.250401)
	db.Add("Phosphopantetheine", 340.085794)
	db.Add("FAD", 783.141486)
	db.Add("Guanidinyl", 42.021798)
	db.Add("HNE", 156.11503)
	db.Add("Glucuronyl", 176.032088)
	db.Add("Glutathione", 305.068156)
	db.Add("Propionyl", 56.026215)
	db.Add("TMT", 229.162932)
	db.Add("TMTPro", 304.207146)
	db.Add("TMT6plex", 229.162932)
	db.Add("TMT10plex", 229.162932)
	db.Add("TMT11plex", 229.162932)
	db.Add("TMT16plex", 304.207146)
	db.Add("iTRAQ4plex", 144.102063)
	db.Add("iTRAQ8plex", 304.205360)
	// Unimod accession aliases for the most common search engine output
	db.Add("1", 42.010565)
	db.Add("4", 57.021464)
	db.Add("7", 0.984016)
	db.Add("21", 79.966331)
	db.Add("35", 15.994915)
	db.Add("737", 229.162932)

	return db
}
