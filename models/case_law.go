package models

import "encoding/json"

// ValidationStatus represents the validation state of an ingested case law document
type ValidationStatus string

const (
	ValidationValid   ValidationStatus = "valid"
	ValidationInvalid ValidationStatus = "invalid"
	ValidationPending ValidationStatus = "pending"
)

// Valid reports whether the status is one of the known values
func (s ValidationStatus) Valid() bool {
	switch s {
	case ValidationValid, ValidationInvalid, ValidationPending:
		return true
	}
	return false
}

// UnmarshalJSON reads null or any unknown status as ValidationPending
func (s *ValidationStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil || !ValidationStatus(raw).Valid() {
		*s = ValidationPending
		return nil
	}
	*s = ValidationStatus(raw)
	return nil
}

// OpinionType represents the kind of judicial opinion
type OpinionType string

const (
	OpinionTypePerCuriam  OpinionType = "per_curiam"
	OpinionTypeMajority   OpinionType = "majority"
	OpinionTypeConcurring OpinionType = "concurring"
	OpinionTypeDissenting OpinionType = "dissenting"
)

// Valid reports whether the opinion type is one of the known values
func (t OpinionType) Valid() bool {
	switch t {
	case OpinionTypePerCuriam, OpinionTypeMajority, OpinionTypeConcurring, OpinionTypeDissenting:
		return true
	}
	return false
}

// SectionType names a narrative section of a case law document
type SectionType string

const (
	SectionFacts     SectionType = "facts"
	SectionIssue     SectionType = "issue"
	SectionReasoning SectionType = "reasoning"
	SectionHolding   SectionType = "holding"
	SectionJudgment  SectionType = "judgment"
)

// Valid reports whether the section type is one of the known values
func (t SectionType) Valid() bool {
	switch t {
	case SectionFacts, SectionIssue, SectionReasoning, SectionHolding, SectionJudgment:
		return true
	}
	return false
}

// CaseLawDocument represents a normalized legal case record from the corpus
type CaseLawDocument struct {
	CaseName      string      `json:"case_name"`
	Year          int         `json:"year"`
	Court         string      `json:"court"`
	OpinionType   OpinionType `json:"opinion_type"`
	Facts         string      `json:"facts"`
	Issue         string      `json:"issue"`
	Reasoning     string      `json:"reasoning"`
	Holding       string      `json:"holding"`
	FinalJudgment string      `json:"final_judgment"`

	CaseNumber        *string `json:"case_number,omitempty"`
	Petitioner        *string `json:"petitioner,omitempty"`
	Respondent        *string `json:"respondent,omitempty"`
	LowerCourt        *string `json:"lower_court,omitempty"`
	ProceduralHistory *string `json:"procedural_history,omitempty"`

	DocumentID         string           `json:"document_id"`
	IngestionTimestamp string           `json:"ingestion_timestamp"` // backend-formatted, kept verbatim
	ValidationStatus   ValidationStatus `json:"validation_status"`
}

// Normalize fills a missing validation status with ValidationPending
func (d *CaseLawDocument) Normalize() {
	if !d.ValidationStatus.Valid() {
		d.ValidationStatus = ValidationPending
	}
}

// Section returns the text of the named narrative section
func (d *CaseLawDocument) Section(section SectionType) string {
	switch section {
	case SectionFacts:
		return d.Facts
	case SectionIssue:
		return d.Issue
	case SectionReasoning:
		return d.Reasoning
	case SectionHolding:
		return d.Holding
	case SectionJudgment:
		return d.FinalJudgment
	}
	return ""
}
