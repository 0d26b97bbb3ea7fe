package backend

import (
	"context"
	"errors"

	"legaljudge-backend/config"
	"legaljudge-backend/models"
)

const opinionBackend = models.StepOpinion

// OpinionClient requests drafted opinions from the opinion service
type OpinionClient struct {
	transport *Transport
	endpoint  config.EndpointConfig
}

// NewOpinionClient creates an opinion adapter bound to one endpoint
func NewOpinionClient(t *Transport, endpoint config.EndpointConfig) *OpinionClient {
	return &OpinionClient{transport: t, endpoint: endpoint}
}

// Synthesize drafts an opinion. The returned opinion always carries the
// fixed disclaimer.
func (c *OpinionClient) Synthesize(ctx context.Context, req models.OpinionRequest) (models.GeneratedOpinion, error) {
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		return models.GeneratedOpinion{}, Rejected(opinionBackend, err)
	}

	var resp models.OpinionResponse
	if err := c.transport.PostJSON(ctx, opinionBackend, c.endpoint.URL, c.endpoint.Timeout, req, &resp); err != nil {
		return models.GeneratedOpinion{}, err
	}
	if err := checkStatus(opinionBackend, resp.Status); err != nil {
		return models.GeneratedOpinion{}, err
	}
	if resp.Opinion == nil {
		return models.GeneratedOpinion{}, Malformed(opinionBackend, errors.New("response has no opinion"))
	}
	if resp.Opinion.FullText == "" {
		return models.GeneratedOpinion{}, Malformed(opinionBackend, errors.New("opinion has no full_text"))
	}

	return resp.Opinion.WithDisclaimer(), nil
}
