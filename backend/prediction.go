package backend

import (
	"context"

	"legaljudge-backend/config"
	"legaljudge-backend/models"
)

const predictionBackend = models.StepPrediction

// PredictionClient asks the outcome prediction service for a verdict distribution
type PredictionClient struct {
	transport *Transport
	endpoint  config.EndpointConfig
}

// NewPredictionClient creates a prediction adapter bound to one endpoint
func NewPredictionClient(t *Transport, endpoint config.EndpointConfig) *PredictionClient {
	return &PredictionClient{transport: t, endpoint: endpoint}
}

// Predict returns a validated prediction. A distribution that cannot be
// renormalized, or a label outside it, is a malformed reply.
func (c *PredictionClient) Predict(ctx context.Context, req models.PredictionRequest) (models.OutcomePrediction, error) {
	var resp models.PredictionResponse
	if err := c.transport.PostJSON(ctx, predictionBackend, c.endpoint.URL, c.endpoint.Timeout, req, &resp); err != nil {
		return models.OutcomePrediction{}, err
	}
	if err := checkStatus(predictionBackend, resp.Status); err != nil {
		return models.OutcomePrediction{}, err
	}

	prediction, err := models.NewOutcomePrediction(resp)
	if err != nil {
		return models.OutcomePrediction{}, Malformed(predictionBackend, err)
	}
	return prediction, nil
}
