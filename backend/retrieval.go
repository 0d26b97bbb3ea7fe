package backend

import (
	"context"

	"legaljudge-backend/config"
	"legaljudge-backend/models"
)

const retrievalBackend = models.StepRetrieval

// SearchClient queries the case law search service
type SearchClient struct {
	transport *Transport
	endpoint  config.EndpointConfig
}

// NewSearchClient creates a search adapter bound to one endpoint
func NewSearchClient(t *Transport, endpoint config.EndpointConfig) *SearchClient {
	return &SearchClient{transport: t, endpoint: endpoint}
}

// Search runs a similarity query. Defaults are applied to omitted
// parameters and an invalid query is rejected without a network call.
// Results come back in the backend's order.
func (c *SearchClient) Search(ctx context.Context, req models.SearchRequest) ([]models.SearchResult, error) {
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		return nil, Rejected(retrievalBackend, err)
	}

	var resp models.SearchResponse
	if err := c.transport.PostJSON(ctx, retrievalBackend, c.endpoint.URL, c.endpoint.Timeout, req, &resp); err != nil {
		return nil, err
	}
	if err := checkStatus(retrievalBackend, resp.Status); err != nil {
		return nil, err
	}

	for i := range resp.Results {
		if err := resp.Results[i].Validate(); err != nil {
			return nil, Malformed(retrievalBackend, err)
		}
		if doc := resp.Results[i].FullDocument; doc != nil {
			doc.Normalize()
		}
	}
	if resp.Results == nil {
		return []models.SearchResult{}, nil
	}
	return resp.Results, nil
}
