package pin

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "SpecId\tLabel\tScanNr\tExpMass\tCharge2\tCharge3\tlnrSp\tPeptide\tProteins\n" +
	"DefaultDirection\t-\t-\t0\t0\t0\t1\t-\t-\n" +
	"target_0_1_2_1\t1\t1\t1000.5\t1\t0\t2.5\tK.PEPM[15.9949]TIDEK.R\tsp|P1|A\tsp|P2|B\n" +
	"decoy_0_2_3_1\t-1\t2\t1500.25\t0\t1\t-0.5\t-.KEDITPEP.-\tDECOY_sp|P1|A\n"

func TestReader(t *testing.T) {
	rd, err := NewReader(strings.NewReader(sample))
	require.NoError(t, err)

	require.True(t, rd.Next())
	psm := rd.PSM()
	assert.Equal(t, "target_0_1_2_1", psm.SpectrumID)
	assert.False(t, psm.IsDecoy)
	assert.Equal(t, "PEPMTIDEK", psm.Peptidoform.Sequence)
	require.Len(t, psm.Peptidoform.Modifications, 1)
	assert.InDelta(t, 15.9949, psm.Peptidoform.Modifications[0].Mass, 1e-9)
	assert.Equal(t, 3, psm.Peptidoform.Modifications[0].Position)
	assert.Equal(t, 2, psm.Charge())
	assert.Equal(t, []string{"sp|P1|A", "sp|P2|B"}, psm.ProteinList)
	assert.Equal(t, "percolator", psm.Source)
	assert.Equal(t, map[string]float64{
		"ExpMass": 1000.5, "Charge2": 1, "Charge3": 0, "lnrSp": 2.5,
	}, psm.RescoringFeatures)
	assert.Equal(t, "1", psm.Metadata[ColScanNr])

	require.True(t, rd.Next())
	psm = rd.PSM()
	assert.True(t, psm.IsDecoy)
	assert.Equal(t, "KEDITPEP", psm.Peptidoform.Sequence)
	assert.Equal(t, 3, psm.Charge())

	assert.False(t, rd.Next())
	assert.NoError(t, rd.Err())
}

func TestReaderInvalidLabel(t *testing.T) {
	input := "SpecId\tLabel\tPeptide\tProteins\n1\t0\tPEPK\tP1\n"
	rd, err := NewReader(strings.NewReader(input))
	require.NoError(t, err)
	assert.False(t, rd.Next())
	assert.ErrorContains(t, rd.Err(), "line 2")
}

func TestStripFlanks(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"K.PEPTIDE.R", "PEPTIDE"},
		{"-.PEPTIDE.-", "PEPTIDE"},
		{"PEPTIDE", "PEPTIDE"},
		{"K.P.R", "P"},
	}
	for _, tt := range tests {
		if got := StripFlanks(tt.input); got != tt.expected {
			t.Errorf("StripFlanks(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}
