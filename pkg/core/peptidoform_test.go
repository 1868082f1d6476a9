package core

import (
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestParsePeptidoform(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantSeq   string
		wantMods  []Modification
		wantCharg int
		wantErr   bool
	}{
		{
			name:      "plain with charge",
			input:     "PEPTIDE/2",
			wantSeq:   "PEPTIDE",
			wantCharg: 2,
		},
		{
			name:    "residue modification",
			input:   "PEPM[Oxidation]K",
			wantSeq: "PEPMK",
			wantMods: []Modification{
				{Name: "Oxidation", Mass: 15.994915, Position: 3},
			},
		},
		{
			name:    "terminal modifications",
			input:   "[Acetyl]-PEPK-[Amidated]/3",
			wantSeq: "PEPK",
			wantMods: []Modification{
				{Name: "Acetyl", Mass: 42.010565, Position: -1},
				{Name: "Amidated", Mass: -0.984016, Position: 4},
			},
			wantCharg: 3,
		},
		{
			name:    "mass delta",
			input:   "AC[+57.021464]K",
			wantSeq: "ACK",
			wantMods: []Modification{
				{Name: "+57.021464", Mass: 57.021464, Position: 1},
			},
		},
		{
			name:    "unterminated bracket",
			input:   "AC[Oxidation",
			wantErr: true,
		},
		{
			name:    "lowercase residue",
			input:   "acK",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pf, err := ParsePeptidoform(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePeptidoform(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if pf.Sequence != tt.wantSeq {
				t.Errorf("Expected sequence %s, got %s", tt.wantSeq, pf.Sequence)
			}
			if pf.Charge != tt.wantCharg {
				t.Errorf("Expected charge %d, got %d", tt.wantCharg, pf.Charge)
			}
			if len(pf.Modifications) != len(tt.wantMods) {
				t.Fatalf("Expected %d modifications, got %d", len(tt.wantMods), len(pf.Modifications))
			}
			for i, want := range tt.wantMods {
				got := pf.Modifications[i]
				if got.Name != want.Name || got.Position != want.Position || math.Abs(got.Mass-want.Mass) > 1e-6 {
					t.Errorf("Modification %d: expected %+v, got %+v", i, want, got)
				}
			}
		})
	}
}

func TestProFormaRoundTrip(t *testing.T) {
	inputs := []string{
		"PEPTIDE/2",
		"[Acetyl]-PEPM[Oxidation]K-[Amidated]/3",
		"<[Carbamidomethyl]@C>ACDK/2",
		"AC[+57.021464]K",
	}
	for _, in := range inputs {
		pf, err := ParsePeptidoform(in)
		if err != nil {
			t.Fatalf("ParsePeptidoform(%q): %v", in, err)
		}
		if got := pf.ProForma(); got != in {
			t.Errorf("Expected %s, got %s", in, got)
		}
	}
}

func TestApplyFixedModificationsIdempotent(t *testing.T) {
	fixed, err := ParseFixedModifications(map[string][]string{
		"Carbamidomethyl": {"C"},
		"TMT6plex":        {"K", "N-term"},
	})
	if err != nil {
		t.Fatalf("ParseFixedModifications: %v", err)
	}

	db := DefaultModDatabase()
	pf, _ := ParsePeptidoform("ACDCK/2")
	list := NewPSMList([]*PSM{{SpectrumID: "1", Peptidoform: pf}})

	list.AddFixedModifications(fixed)
	list.ApplyFixedModifications(db)
	first := append([]Modification(nil), list.At(0).Peptidoform.Modifications...)

	if len(first) != 4 {
		t.Fatalf("Expected 4 modifications after applying fixed mods, got %d: %+v", len(first), first)
	}

	list.ApplyFixedModifications(db)
	if !reflect.DeepEqual(first, list.At(0).Peptidoform.Modifications) {
		t.Errorf("Second apply changed modifications: %+v vs %+v", first, list.At(0).Peptidoform.Modifications)
	}

	// Re-declaring and re-applying the same set must not duplicate sites
	list.AddFixedModifications(fixed)
	list.ApplyFixedModifications(db)
	if !reflect.DeepEqual(first, list.At(0).Peptidoform.Modifications) {
		t.Errorf("Re-applying fixed mods duplicated sites: %+v", list.At(0).Peptidoform.Modifications)
	}

	want := "[TMT6plex]-AC[Carbamidomethyl]DC[Carbamidomethyl]K[TMT6plex]/2"
	if got := list.At(0).Peptidoform.ProForma(); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestParseFixedModificationsInvalidTarget(t *testing.T) {
	_, err := ParseFixedModifications(map[string][]string{"Carbamidomethyl": {"CC"}})
	if err == nil {
		t.Fatal("Expected error for invalid target")
	}
}

func TestRenameModifications(t *testing.T) {
	pf, _ := ParsePeptidoform("PEPM[+15.9949]K")
	list := NewPSMList([]*PSM{{Peptidoform: pf}})

	list.RenameModifications(map[string]string{"+15.9949": "Oxidation"}, DefaultModDatabase())

	mod := list.At(0).Peptidoform.Modifications[0]
	if mod.Name != "Oxidation" {
		t.Errorf("Expected renamed modification, got %s", mod.Name)
	}
	if math.Abs(mod.Mass-15.994915) > 1e-6 {
		t.Errorf("Expected unimod mass after rename, got %f", mod.Mass)
	}
}

func TestCustomModificationDatabase(t *testing.T) {
	db := DefaultModDatabase()
	if err := db.LoadFromCSV(strings.NewReader("mod,massshift,aa\nCustomTag,123.456,K\n")); err != nil {
		t.Fatalf("LoadFromCSV: %v", err)
	}

	pf, _ := ParsePeptidoform("PEPK[CustomTag]/2")
	if pf.Modifications[0].Mass != 0 {
		t.Fatalf("Expected unresolved built-in mass, got %f", pf.Modifications[0].Mass)
	}
	list := NewPSMList([]*PSM{{SpectrumID: "1", Peptidoform: pf}})
	list.ResolveModifications(db)
	if got := list.At(0).Peptidoform.Modifications[0].Mass; got != 123.456 {
		t.Errorf("Expected custom mass 123.456, got %f", got)
	}

	fixed, _ := ParseFixedModifications(map[string][]string{"CustomTag": {"N-term"}})
	list.AddFixedModifications(fixed)
	list.ApplyFixedModifications(db)
	nterm := list.At(0).Peptidoform.Modifications[0]
	if nterm.Position != -1 || nterm.Mass != 123.456 {
		t.Errorf("Expected N-terminal CustomTag with mass 123.456, got %+v", nterm)
	}

	list.RenameModifications(map[string]string{"CustomTag": "Oxidation"}, db)
	if got := list.At(0).Peptidoform.Modifications[0].Mass; math.Abs(got-15.994915) > 1e-6 {
		t.Errorf("Expected oxidation mass after rename, got %f", got)
	}
}

func TestPeptidoformMasses(t *testing.T) {
	pf, _ := ParsePeptidoform("AAA/1")
	if math.Abs(pf.NeutralMass()-231.121) > 0.01 {
		t.Errorf("Expected neutral mass ~231.121, got %.3f", pf.NeutralMass())
	}
	if math.Abs(pf.PrecursorMZ()-232.129) > 0.01 {
		t.Errorf("Expected precursor m/z ~232.129, got %.3f", pf.PrecursorMZ())
	}
}
