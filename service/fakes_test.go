package service

import (
	"context"
	"sync/atomic"

	"legaljudge-backend/models"
)

type fakeExtractor struct {
	text  models.ExtractedText
	err   error
	calls atomic.Int32
}

func (f *fakeExtractor) Extract(ctx context.Context, _ models.UploadedArtifact) (models.ExtractedText, error) {
	f.calls.Add(1)
	if f.err != nil {
		return models.ExtractedText{}, f.err
	}
	return f.text, nil
}

type fakeRetriever struct {
	results []models.SearchResult
	err     error
	calls   atomic.Int32
	got     atomic.Pointer[models.SearchRequest]
	hook    func(ctx context.Context)
}

func (f *fakeRetriever) Search(ctx context.Context, req models.SearchRequest) ([]models.SearchResult, error) {
	f.calls.Add(1)
	f.got.Store(&req)
	if f.hook != nil {
		f.hook(ctx)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakePredictor struct {
	prediction models.OutcomePrediction
	err        error
	calls      atomic.Int32
	got        atomic.Pointer[models.PredictionRequest]
	hook       func(ctx context.Context)
}

func (f *fakePredictor) Predict(ctx context.Context, req models.PredictionRequest) (models.OutcomePrediction, error) {
	f.calls.Add(1)
	f.got.Store(&req)
	if f.hook != nil {
		f.hook(ctx)
	}
	if f.err != nil {
		return models.OutcomePrediction{}, f.err
	}
	return f.prediction, nil
}

type fakeSynthesizer struct {
	opinion models.GeneratedOpinion
	err     error
	calls   atomic.Int32
	got     atomic.Pointer[models.OpinionRequest]
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, req models.OpinionRequest) (models.GeneratedOpinion, error) {
	f.calls.Add(1)
	f.got.Store(&req)
	if f.err != nil {
		return models.GeneratedOpinion{}, f.err
	}
	return f.opinion, nil
}
