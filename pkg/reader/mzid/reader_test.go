package mzid

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<?xml version="1.0" encoding="ISO-8859-1"?>
<MzIdentML xmlns="http://psidev.info/psi/pi/mzIdentML/1.1" id="test" version="1.1.0">
  <SequenceCollection>
    <DBSequence id="DBSeq1" accession="sp|P12345|PROT" searchDatabase_ref="SDB"/>
    <DBSequence id="DBSeq2" accession="DECOY_sp|P12345|PROT" searchDatabase_ref="SDB"/>
    <Peptide id="Pep1">
      <PeptideSequence>PEPMCK</PeptideSequence>
      <Modification location="4" monoisotopicMassDelta="15.994915" residues="M">
        <cvParam accession="UNIMOD:35" name="Oxidation" cvRef="UNIMOD"/>
      </Modification>
      <Modification location="0" monoisotopicMassDelta="42.010565">
        <cvParam accession="UNIMOD:1" name="Acetyl" cvRef="UNIMOD"/>
      </Modification>
      <Modification location="7" monoisotopicMassDelta="-0.984016"/>
    </Peptide>
    <Peptide id="Pep2">
      <PeptideSequence>KCMPEP</PeptideSequence>
    </Peptide>
    <PeptideEvidence id="PE1" dBSequence_ref="DBSeq1" peptide_ref="Pep1" isDecoy="false"/>
    <PeptideEvidence id="PE2" dBSequence_ref="DBSeq2" peptide_ref="Pep2" isDecoy="true"/>
  </SequenceCollection>
  <DataCollection>
    <Inputs>
      <SpectraData id="SD1" location="C:\data\run_01.mgf"/>
    </Inputs>
    <AnalysisData>
      <SpectrumIdentificationList id="SIL1">
        <SpectrumIdentificationResult id="SIR1" spectrumID="index=0" spectraData_ref="SD1">
          <SpectrumIdentificationItem id="SII1" chargeState="2" peptide_ref="Pep1" rank="1" experimentalMassToCharge="400.5" passThreshold="true">
            <PeptideEvidenceRef peptideEvidence_ref="PE1"/>
            <cvParam accession="MS:1002049" name="MS-GF:RawScore" value="120" cvRef="PSI-MS"/>
            <cvParam accession="MS:1002052" name="MS-GF:SpecEValue" value="1e-10" cvRef="PSI-MS"/>
          </SpectrumIdentificationItem>
          <SpectrumIdentificationItem id="SII2" chargeState="2" peptide_ref="Pep2" rank="2" experimentalMassToCharge="400.5" passThreshold="false">
            <PeptideEvidenceRef peptideEvidence_ref="PE2"/>
            <cvParam accession="MS:1002052" name="MS-GF:SpecEValue" value="0.5" cvRef="PSI-MS"/>
          </SpectrumIdentificationItem>
          <cvParam accession="MS:1000796" name="spectrum title" value="run_01.100.100.2" cvRef="PSI-MS"/>
          <cvParam accession="MS:1000894" name="retention time" value="30" unitAccession="UO:0000010" cvRef="PSI-MS"/>
          <cvParam accession="MS:1000016" name="scan start time" value="2.5" unitAccession="UO:0000031" cvRef="PSI-MS"/>
        </SpectrumIdentificationResult>
      </SpectrumIdentificationList>
    </AnalysisData>
  </DataCollection>
</MzIdentML>
`

type summary struct {
	SpectrumID string
	ProForma   string
	Run        string
	IsDecoy    bool
	Score      float64
	Rank       int
	RT         float64
	Proteins   []string
}

func TestReader(t *testing.T) {
	rd, err := NewReader(strings.NewReader(sample))
	require.NoError(t, err)

	var got []summary
	for rd.Next() {
		psm := rd.PSM()
		got = append(got, summary{
			SpectrumID: psm.SpectrumID,
			ProForma:   psm.Peptidoform.ProForma(),
			Run:        psm.Run,
			IsDecoy:    psm.IsDecoy,
			Score:      psm.Score,
			Rank:       *psm.Rank,
			RT:         *psm.RetentionTime,
			Proteins:   psm.ProteinList,
		})
		assert.Equal(t, "mzid", psm.Source)
	}
	require.NoError(t, rd.Err())

	expected := []summary{
		{"run_01.100.100.2", "[Acetyl]-PEPM[Oxidation]CK-[-0.984016]/2", "run_01", false, 120, 1, 150, []string{"sp|P12345|PROT"}},
		{"run_01.100.100.2", "KCMPEP/2", "run_01", true, 0.5, 2, 150, []string{"DECOY_sp|P12345|PROT"}},
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("PSMs mismatch (-expected +got):\n%s", diff)
	}
}

func TestReaderUnknownPeptide(t *testing.T) {
	input := strings.Replace(sample, `peptide_ref="Pep2" rank="2"`, `peptide_ref="Pep9" rank="2"`, 1)
	rd, err := NewReader(strings.NewReader(input))
	require.NoError(t, err)
	for rd.Next() {
	}
	assert.ErrorContains(t, rd.Err(), "Pep9")
}

func TestReaderInvalidXML(t *testing.T) {
	_, err := NewReader(strings.NewReader("<MzIdentML><SequenceCollection>"))
	assert.Error(t, err)
}
