package models

// Default request parameters shared by every backend adapter.
// Adapters must call ApplyDefaults on the typed request instead of
// re-deriving these values.
const (
	DefaultTopK          = 10
	DefaultMinSimilarity = 0.6
	DefaultOpinionType   = OpinionTypePerCuriam
	DefaultMaxPrecedents = 5

	MaxTopK          = 100
	MaxPrecedents    = 10
	MaxQueryLength   = 1000
	MaxFactsLength   = 10000
	MaxIssueLength   = 1000
	MinYear          = 1700
	MaxYear          = 2100
	ProbabilitySlack = 0.01 // tolerance accepted from the prediction backend before renormalizing
	ProbabilityEps   = 1e-6
)

// OpinionDisclaimer must accompany every generated or placeholder opinion verbatim.
const OpinionDisclaimer = "This opinion is AI-generated for research and academic purposes only."
