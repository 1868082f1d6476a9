package mgf

import (
	"strings"
	"testing"
)

const sample = `MASS=Monoisotopic

BEGIN IONS
TITLE=run_01.100.100.2
PEPMASS=400.5 12000
CHARGE=2+
RTINSECONDS=150.5
300.1 20
200.2 10.5
END IONS

BEGIN IONS
TITLE=run_01.101.101.3
PEPMASS=500.25
CHARGE=3
110.07 5 y1
END IONS
`

func TestReader(t *testing.T) {
	rd := NewReader(strings.NewReader(sample))

	if !rd.Next() {
		t.Fatalf("Expected first spectrum, got error %v", rd.Err())
	}
	spec := rd.Spectrum()
	if spec.ID != "run_01.100.100.2" {
		t.Errorf("Expected ID run_01.100.100.2, got %s", spec.ID)
	}
	if spec.PrecursorMZ != 400.5 {
		t.Errorf("Expected precursor m/z 400.5, got %f", spec.PrecursorMZ)
	}
	if spec.Charge != 2 {
		t.Errorf("Expected charge 2, got %d", spec.Charge)
	}
	if spec.RetentionTime == nil || *spec.RetentionTime != 150.5 {
		t.Errorf("Expected retention time 150.5, got %v", spec.RetentionTime)
	}
	if len(spec.Peaks) != 2 || spec.Peaks[0].MZ != 200.2 {
		t.Errorf("Expected 2 peaks sorted by m/z, got %v", spec.Peaks)
	}

	if !rd.Next() {
		t.Fatalf("Expected second spectrum, got error %v", rd.Err())
	}
	spec = rd.Spectrum()
	if spec.Charge != 3 || spec.RetentionTime != nil || len(spec.Peaks) != 1 {
		t.Errorf("Unexpected second spectrum %+v", spec)
	}

	if rd.Next() {
		t.Error("Expected end of file")
	}
	if rd.Err() != nil {
		t.Errorf("Expected no error, got %v", rd.Err())
	}
}

func TestReaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing end", "BEGIN IONS\nTITLE=a\n100 1\n"},
		{"missing title", "BEGIN IONS\n100 1\nEND IONS\n"},
		{"bad peak", "BEGIN IONS\nTITLE=a\n100 x\nEND IONS\n"},
		{"bad charge", "BEGIN IONS\nTITLE=a\nCHARGE=two\nEND IONS\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rd := NewReader(strings.NewReader(tt.input))
			if rd.Next() {
				t.Fatal("Expected no spectrum")
			}
			if rd.Err() == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestParseCharge(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"2+", 2},
		{"3", 3},
		{"2-", -2},
		{"2+ and 3+", 2},
	}
	for _, tt := range tests {
		got, err := parseCharge(tt.input)
		if err != nil {
			t.Errorf("parseCharge(%q) returned error %v", tt.input, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("parseCharge(%q) = %d, expected %d", tt.input, got, tt.expected)
		}
	}
}
