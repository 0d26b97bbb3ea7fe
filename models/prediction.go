package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrEmptyProbabilities   = errors.New("probabilities are empty")
	ErrProbabilitySum       = errors.New("probabilities do not sum to 1")
	ErrProbabilityRange     = errors.New("probability out of range")
	ErrUnknownOutcomeLabel  = errors.New("predicted outcome is not a probability label")
	ErrConfidenceOutOfRange = errors.New("confidence must be between 0 and 1")
)

// PredictionRequest is the facts/issue pair sent to the outcome prediction backend
type PredictionRequest struct {
	Facts string `json:"facts"`
	Issue string `json:"issue"`
}

// SupportingCase is a precedent the prediction backend relied on.
// The backend may send either a bare case name or a full object.
type SupportingCase struct {
	CaseName        string  `json:"case_name"`
	Year            int     `json:"year,omitempty"`
	SimilarityScore float64 `json:"similarity_score,omitempty"`
	Outcome         string  `json:"outcome,omitempty"`
}

// UnmarshalJSON accepts a plain string or an object
func (s *SupportingCase) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*s = SupportingCase{CaseName: name}
		return nil
	}
	type plain SupportingCase
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = SupportingCase(p)
	return nil
}

// PredictionResponse is the prediction backend's reply
type PredictionResponse struct {
	Status           string             `json:"status"`
	PredictedOutcome string             `json:"predicted_outcome"`
	Probabilities    map[string]float64 `json:"probabilities"`
	Confidence       float64            `json:"confidence"`
	SupportingCases  []SupportingCase   `json:"supporting_cases"`
	Explanation      string             `json:"explanation"`
}

// OutcomePrediction is a validated prediction whose probabilities sum to 1
type OutcomePrediction struct {
	Label           string             `json:"label"`
	Probabilities   map[string]float64 `json:"probabilities"`
	Confidence      float64            `json:"confidence"`
	SupportingCases []string           `json:"supporting_cases"`
	Explanation     string             `json:"explanation"`
}

// NewOutcomePrediction validates a backend response and renormalizes its
// probabilities so they sum to 1 within ProbabilityEps.
func NewOutcomePrediction(resp PredictionResponse) (OutcomePrediction, error) {
	probs, err := NormalizeProbabilities(resp.Probabilities)
	if err != nil {
		return OutcomePrediction{}, err
	}
	if _, ok := probs[resp.PredictedOutcome]; !ok {
		return OutcomePrediction{}, fmt.Errorf("%w: %q", ErrUnknownOutcomeLabel, resp.PredictedOutcome)
	}
	if resp.Confidence < 0 || resp.Confidence > 1 || math.IsNaN(resp.Confidence) {
		return OutcomePrediction{}, ErrConfidenceOutOfRange
	}

	names := make([]string, 0, len(resp.SupportingCases))
	for _, sc := range resp.SupportingCases {
		if sc.CaseName != "" {
			names = append(names, sc.CaseName)
		}
	}

	return OutcomePrediction{
		Label:           resp.PredictedOutcome,
		Probabilities:   probs,
		Confidence:      resp.Confidence,
		SupportingCases: names,
		Explanation:     resp.Explanation,
	}, nil
}

// NormalizeProbabilities checks a label distribution and rescales it to sum to 1.
// Distributions already within ProbabilityEps of 1 are returned unchanged.
func NormalizeProbabilities(in map[string]float64) (map[string]float64, error) {
	if len(in) == 0 {
		return nil, ErrEmptyProbabilities
	}

	sum := 0.0
	for label, p := range in {
		if p < 0 || p > 1 || math.IsNaN(p) {
			return nil, fmt.Errorf("%w: %s=%v", ErrProbabilityRange, label, p)
		}
		sum += p
	}
	if math.Abs(sum-1) > ProbabilitySlack {
		return nil, fmt.Errorf("%w: got %v", ErrProbabilitySum, sum)
	}

	out := make(map[string]float64, len(in))
	for label, p := range in {
		if math.Abs(sum-1) <= ProbabilityEps {
			out[label] = p
		} else {
			out[label] = p / sum
		}
	}
	return out, nil
}

// ProbabilitySum returns the total mass of a distribution, summed in label order
func ProbabilitySum(probs map[string]float64) float64 {
	labels := make([]string, 0, len(probs))
	for label := range probs {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	sum := 0.0
	for _, label := range labels {
		sum += probs[label]
	}
	return sum
}
