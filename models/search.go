package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTopK          = errors.New("top_k must be between 1 and 100")
	ErrInvalidMinSimilarity = errors.New("min_similarity must be between 0 and 1")
	ErrInvalidYearRange     = errors.New("year_range must be two years with low <= high")
	ErrInvalidSectionFilter = errors.New("unknown section filter")
)

// SearchRequest is the retrieval query sent to the case law search backend
type SearchRequest struct {
	Query         string   `json:"query"`
	TopK          int      `json:"top_k"`
	SectionFilter *string  `json:"section_filter,omitempty"`
	YearRange     []int    `json:"year_range,omitempty"`
	MinSimilarity *float64 `json:"min_similarity"`
}

// NewSearchRequest builds a query with every default applied
func NewSearchRequest(query string) SearchRequest {
	req := SearchRequest{Query: query}
	req.ApplyDefaults()
	return req
}

// ApplyDefaults fills omitted parameters. A zero TopK counts as omitted;
// MinSimilarity is a pointer so an explicit 0 survives.
func (r *SearchRequest) ApplyDefaults() {
	if r.TopK == 0 {
		r.TopK = DefaultTopK
	}
	if r.MinSimilarity == nil {
		v := DefaultMinSimilarity
		r.MinSimilarity = &v
	}
}

// Validate checks the query parameters against the backend contract
func (r SearchRequest) Validate() error {
	if r.TopK < 1 || r.TopK > MaxTopK {
		return ErrInvalidTopK
	}
	if r.MinSimilarity != nil && (*r.MinSimilarity < 0 || *r.MinSimilarity > 1) {
		return ErrInvalidMinSimilarity
	}
	if r.SectionFilter != nil && !SectionType(*r.SectionFilter).Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSectionFilter, *r.SectionFilter)
	}
	if r.YearRange != nil {
		if len(r.YearRange) != 2 || r.YearRange[0] > r.YearRange[1] {
			return ErrInvalidYearRange
		}
		for _, y := range r.YearRange {
			if y < MinYear || y > MaxYear {
				return ErrInvalidYearRange
			}
		}
	}
	return nil
}

// SearchResult is a single scored match between a query and a case law document
type SearchResult struct {
	CaseName        string           `json:"case_name"`
	Year            int              `json:"year"`
	Court           string           `json:"court"`
	SectionType     string           `json:"section_type"`
	SimilarityScore float64          `json:"similarity_score"`
	Snippet         string           `json:"snippet"`
	FullDocument    *CaseLawDocument `json:"full_document,omitempty"`
	Metadata        map[string]any   `json:"metadata"`
}

// Validate checks the invariants a match must satisfy
func (r SearchResult) Validate() error {
	if r.SimilarityScore < 0 || r.SimilarityScore > 1 {
		return fmt.Errorf("similarity_score %v out of range for %q", r.SimilarityScore, r.CaseName)
	}
	return nil
}

// SearchResponse is the search backend's reply
type SearchResponse struct {
	Status       string         `json:"status"`
	Query        string         `json:"query"`
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
	SearchTimeMs int64          `json:"search_time_ms"`
}
