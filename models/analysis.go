package models

import "time"

// PipelineState is a state of the analysis pipeline
type PipelineState string

const (
	StateIdle                 PipelineState = "idle"
	StateExtracting           PipelineState = "extracting"
	StateRetrievingPredicting PipelineState = "retrieving_predicting"
	StateSynthesizing         PipelineState = "synthesizing"
	StateAssembled            PipelineState = "assembled"
	StateFailed               PipelineState = "failed"
)

// Terminal reports whether no further transition can leave the state
func (s PipelineState) Terminal() bool {
	return s == StateAssembled || s == StateFailed
}

// StepStatus is the outcome of a single backend stage
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepDegraded  StepStatus = "degraded"
	StepFailed    StepStatus = "failed"
)

// Step names
const (
	StepOCR        = "ocr"
	StepRetrieval  = "retrieval"
	StepPrediction = "prediction"
	StepOpinion    = "opinion"
)

// PipelineStep records how one stage of a request settled
type PipelineStep struct {
	Name       string     `json:"name"`
	Status     StepStatus `json:"status"`
	DurationMs int64      `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
}

// NewPipelineStep builds a step record from a start time and an optional error
func NewPipelineStep(name string, status StepStatus, started time.Time, err error) PipelineStep {
	step := PipelineStep{
		Name:       name,
		Status:     status,
		DurationMs: time.Since(started).Milliseconds(),
	}
	if err != nil {
		step.Error = err.Error()
	}
	return step
}

// AggregatedAnalysis is the orchestrator's output for one brief
type AggregatedAnalysis struct {
	RequestID  string
	Text       ExtractedText
	Prediction *OutcomePrediction // nil when the prediction stage degraded
	Matches    []SearchResult
	Opinion    GeneratedOpinion
	Notes      []string
	Steps      []PipelineStep
	State      PipelineState
}

// Degraded reports whether any stage settled without its backend result
func (a *AggregatedAnalysis) Degraded() bool {
	for _, s := range a.Steps {
		if s.Status != StepCompleted {
			return true
		}
	}
	return false
}

// Response statuses
const (
	ResponseStatusSuccess = "success"
	ResponseStatusPartial = "partial"
	ResponseStatusError   = "error"
)

// CaseResult is a ranked precedent as shown to the caller
type CaseResult struct {
	CaseName       string  `json:"case_name"`
	Citation       string  `json:"citation"`
	RelevanceScore float64 `json:"relevance_score"`
	Snippet        string  `json:"snippet"`
}

// PredictedOutcome is the prediction as shown to the caller
type PredictedOutcome struct {
	Label           string             `json:"label"`
	Probabilities   map[string]float64 `json:"probabilities"`
	Confidence      float64            `json:"confidence"`
	SupportingCases []string           `json:"supporting_cases"`
	Explanation     string             `json:"explanation"`
}

// AnalyzeResponse is the caller-facing body of POST /api/analyze-brief
type AnalyzeResponse struct {
	Status           string            `json:"status"`
	RequestID        string            `json:"request_id,omitempty"`
	OCRText          string            `json:"ocr_text"`
	PredictedOutcome *PredictedOutcome `json:"predicted_outcome"`
	TopCases         []CaseResult      `json:"top_cases"`
	JudgeOpinion     string            `json:"judge_opinion"`
	Disclaimer       string            `json:"disclaimer"`
	Notes            []string          `json:"notes"`
	Stages           []PipelineStep    `json:"stages"`
}

// ErrorResponse is the single structured error object returned to callers
type ErrorResponse struct {
	Status    string `json:"status"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
