package pipeline

// State is a stage of a rescoring run. A run moves through the states in
// order; RescoredOrExported is terminal when no engine is configured.
type State int

const (
	StateInit State = iota
	StateLoaded
	StateDecoyLabelled
	StateQValueReady
	StateProvenanceCaptured
	StateNormalized
	StateFeaturesAnnotated
	StateFeatureFiltered
	StateIDRewritten
	StateRescoredOrExported
	StateReported
)

var stateNames = [...]string{
	StateInit:               "INIT",
	StateLoaded:             "LOADED",
	StateDecoyLabelled:      "DECOY_LABELLED",
	StateQValueReady:        "QVALUE_READY",
	StateProvenanceCaptured: "PROVENANCE_CAPTURED",
	StateNormalized:         "NORMALIZED",
	StateFeaturesAnnotated:  "FEATURES_ANNOTATED",
	StateFeatureFiltered:    "FEATURE_FILTERED",
	StateIDRewritten:        "ID_REWRITTEN",
	StateRescoredOrExported: "RESCORED_OR_EXPORTED",
	StateReported:           "REPORTED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}
