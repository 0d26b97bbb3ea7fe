package models

import "errors"

var (
	ErrInvalidOpinionType   = errors.New("unknown opinion type")
	ErrInvalidMaxPrecedents = errors.New("max_precedents must be between 1 and 10")
)

// CaseContext is the structured input to opinion synthesis
type CaseContext struct {
	CaseNumber        string  `json:"case_number"`
	Petitioner        string  `json:"petitioner"`
	Respondent        string  `json:"respondent"`
	LowerCourt        string  `json:"lower_court"`
	Facts             string  `json:"facts"`
	Issue             string  `json:"issue"`
	ProceduralHistory *string `json:"procedural_history,omitempty"`
}

// OpinionRequest asks the opinion backend to draft an opinion for a case.
// Precedents and PredictedOutcome carry the results of the retrieval and
// prediction stages; backends that do not know them ignore them.
type OpinionRequest struct {
	CaseContext      CaseContext `json:"case_context"`
	OpinionType      OpinionType `json:"opinion_type"`
	MaxPrecedents    int         `json:"max_precedents"`
	Precedents       []string    `json:"precedents,omitempty"`
	PredictedOutcome string      `json:"predicted_outcome,omitempty"`
}

// ApplyDefaults fills omitted parameters
func (r *OpinionRequest) ApplyDefaults() {
	if r.OpinionType == "" {
		r.OpinionType = DefaultOpinionType
	}
	if r.MaxPrecedents == 0 {
		r.MaxPrecedents = DefaultMaxPrecedents
	}
}

// Validate checks the request against the backend contract
func (r OpinionRequest) Validate() error {
	if !r.OpinionType.Valid() {
		return ErrInvalidOpinionType
	}
	if r.MaxPrecedents < 1 || r.MaxPrecedents > MaxPrecedents {
		return ErrInvalidMaxPrecedents
	}
	return nil
}

// GeneratedOpinion is a drafted judicial opinion
type GeneratedOpinion struct {
	FullText           string            `json:"full_text"`
	Sections           map[string]string `json:"sections"`
	CitedPrecedents    []string          `json:"cited_precedents"`
	GenerationMetadata map[string]any    `json:"generation_metadata"`
	Disclaimer         string            `json:"disclaimer"`
}

// WithDisclaimer returns the opinion with the fixed disclaimer in place,
// whatever the backend sent.
func (o GeneratedOpinion) WithDisclaimer() GeneratedOpinion {
	o.Disclaimer = OpinionDisclaimer
	if o.Sections == nil {
		o.Sections = map[string]string{}
	}
	if o.CitedPrecedents == nil {
		o.CitedPrecedents = []string{}
	}
	if o.GenerationMetadata == nil {
		o.GenerationMetadata = map[string]any{}
	}
	return o
}

// PlaceholderOpinion is returned when opinion synthesis is unavailable.
// It states the gap instead of inventing text.
func PlaceholderOpinion(reason string) GeneratedOpinion {
	return GeneratedOpinion{
		FullText:           "Opinion synthesis is unavailable for this request.",
		Sections:           map[string]string{},
		CitedPrecedents:    []string{},
		GenerationMetadata: map[string]any{"placeholder": true, "reason": reason},
		Disclaimer:         OpinionDisclaimer,
	}
}

// OpinionResponse is the opinion backend's reply
type OpinionResponse struct {
	Status  string            `json:"status"`
	Opinion *GeneratedOpinion `json:"opinion"`
}
