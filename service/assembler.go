package service

import (
	"fmt"
	"sort"
	"strings"

	"legaljudge-backend/config"
	"legaljudge-backend/models"
)

// Ellipsis marks a truncated preview
const Ellipsis = "..."

// Assembler maps an analysis into the caller-facing response
type Assembler struct {
	previewChars int
	snippetChars int
}

// NewAssembler creates an assembler with the configured display limits
func NewAssembler(cfg config.AssemblerConfig) *Assembler {
	return &Assembler{
		previewChars: cfg.PreviewChars,
		snippetChars: cfg.SnippetChars,
	}
}

// Assemble builds the response body. Display truncation happens here only;
// the analysis itself is not modified.
func (a *Assembler) Assemble(analysis *models.AggregatedAnalysis) models.AnalyzeResponse {
	status := models.ResponseStatusSuccess
	if analysis.Degraded() {
		status = models.ResponseStatusPartial
	}

	ranked := RankMatches(analysis.Matches)
	topCases := make([]models.CaseResult, 0, len(ranked))
	for _, m := range ranked {
		topCases = append(topCases, models.CaseResult{
			CaseName:       m.CaseName,
			Citation:       Citation(m),
			RelevanceScore: m.SimilarityScore,
			Snippet:        truncateRunes(snippet(m), a.snippetChars),
		})
	}

	var predicted *models.PredictedOutcome
	if p := analysis.Prediction; p != nil {
		predicted = &models.PredictedOutcome{
			Label:           p.Label,
			Probabilities:   p.Probabilities,
			Confidence:      p.Confidence,
			SupportingCases: p.SupportingCases,
			Explanation:     p.Explanation,
		}
		if predicted.SupportingCases == nil {
			predicted.SupportingCases = []string{}
		}
	}

	notes := analysis.Notes
	if notes == nil {
		notes = []string{}
	}
	steps := analysis.Steps
	if steps == nil {
		steps = []models.PipelineStep{}
	}

	return models.AnalyzeResponse{
		Status:           status,
		RequestID:        analysis.RequestID,
		OCRText:          Preview(analysis.Text.Text, a.previewChars),
		PredictedOutcome: predicted,
		TopCases:         topCases,
		JudgeOpinion:     analysis.Opinion.FullText,
		Disclaimer:       models.OpinionDisclaimer,
		Notes:            notes,
		Stages:           steps,
	}
}

// Preview caps text at limit characters and appends Ellipsis when it cut
// anything.
func Preview(text string, limit int) string {
	cut := truncateRunes(text, limit)
	if len(cut) == len(text) {
		return text
	}
	return cut + Ellipsis
}

// RankMatches returns a copy of matches ordered by similarity score
// descending, ties broken by case name ascending.
func RankMatches(matches []models.SearchResult) []models.SearchResult {
	ranked := make([]models.SearchResult, len(matches))
	copy(ranked, matches)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].SimilarityScore != ranked[j].SimilarityScore {
			return ranked[i].SimilarityScore > ranked[j].SimilarityScore
		}
		return ranked[i].CaseName < ranked[j].CaseName
	})
	return ranked
}

// snippet falls back to the matched section of the full document when the
// backend sent no snippet.
func snippet(m models.SearchResult) string {
	if strings.TrimSpace(m.Snippet) != "" || m.FullDocument == nil {
		return m.Snippet
	}
	return m.FullDocument.Section(models.SectionType(m.SectionType))
}

// Citation prefers the backend's citation metadata and falls back to
// "<court> (<year>)".
func Citation(m models.SearchResult) string {
	if c, ok := m.Metadata["citation"].(string); ok && strings.TrimSpace(c) != "" {
		return strings.TrimSpace(c)
	}
	switch {
	case m.Court != "" && m.Year > 0:
		return fmt.Sprintf("%s (%d)", m.Court, m.Year)
	case m.Court != "":
		return m.Court
	case m.Year > 0:
		return fmt.Sprintf("(%d)", m.Year)
	}
	return ""
}
