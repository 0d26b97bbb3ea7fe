package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"legaljudge-backend/backend"
	"legaljudge-backend/models"
	"legaljudge-backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Extractor turns an artifact into text
type Extractor interface {
	Extract(ctx context.Context, artifact models.UploadedArtifact) (models.ExtractedText, error)
}

// Retriever finds precedents similar to a query
type Retriever interface {
	Search(ctx context.Context, req models.SearchRequest) ([]models.SearchResult, error)
}

// Predictor estimates the outcome of a case
type Predictor interface {
	Predict(ctx context.Context, req models.PredictionRequest) (models.OutcomePrediction, error)
}

// OpinionSynthesizer drafts an opinion for a case
type OpinionSynthesizer interface {
	Synthesize(ctx context.Context, req models.OpinionRequest) (models.GeneratedOpinion, error)
}

var (
	ErrExtractionFailed = errors.New("text extraction failed")
	ErrMissingBackend   = errors.New("orchestrator is missing a backend")
)

// Orchestrator runs one brief through extraction, retrieval, prediction and
// opinion synthesis.
type Orchestrator struct {
	extractor      Extractor
	retriever      Retriever
	predictor      Predictor
	synthesizer    OpinionSynthesizer
	requestTimeout time.Duration
	maxPrecedents  int
}

// OrchestratorOption is a functional option for Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithExtractor sets the OCR stage
func WithExtractor(e Extractor) OrchestratorOption {
	return func(o *Orchestrator) {
		o.extractor = e
	}
}

// WithRetriever sets the case law retrieval stage
func WithRetriever(r Retriever) OrchestratorOption {
	return func(o *Orchestrator) {
		o.retriever = r
	}
}

// WithPredictor sets the outcome prediction stage
func WithPredictor(p Predictor) OrchestratorOption {
	return func(o *Orchestrator) {
		o.predictor = p
	}
}

// WithOpinionSynthesizer sets the opinion stage
func WithOpinionSynthesizer(s OpinionSynthesizer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.synthesizer = s
	}
}

// WithRequestTimeout bounds the whole pipeline for one request
func WithRequestTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.requestTimeout = d
	}
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		maxPrecedents: models.DefaultMaxPrecedents,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AnalyzeRequest represents a request to analyze one brief
type AnalyzeRequest struct {
	Artifact  models.UploadedArtifact
	RequestID string
}

// AnalyzeResult represents the result of analyzing one brief
type AnalyzeResult struct {
	Analysis *models.AggregatedAnalysis
}

// run tracks one request through the state machine
type run struct {
	ctx      context.Context
	analysis *models.AggregatedAnalysis
}

var transitions = map[models.PipelineState][]models.PipelineState{
	models.StateIdle:                 {models.StateExtracting, models.StateFailed},
	models.StateExtracting:           {models.StateRetrievingPredicting, models.StateFailed},
	models.StateRetrievingPredicting: {models.StateSynthesizing, models.StateFailed},
	models.StateSynthesizing:         {models.StateAssembled, models.StateFailed},
}

func (r *run) advance(to models.PipelineState) {
	from := r.analysis.State
	if from.Terminal() {
		logger.Error(r.ctx, "pipeline already finished",
			zap.String("state", string(from)),
			zap.String("to", string(to)),
		)
		return
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			r.analysis.State = to
			logger.Debug(r.ctx, "pipeline state changed",
				zap.String("from", string(from)),
				zap.String("to", string(to)),
			)
			return
		}
	}
	logger.Error(r.ctx, "illegal pipeline transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
}

func (r *run) record(step models.PipelineStep) {
	r.analysis.Steps = append(r.analysis.Steps, step)
}

func (r *run) note(format string, args ...any) {
	r.analysis.Notes = append(r.analysis.Notes, fmt.Sprintf(format, args...))
}

// Analyze runs the pipeline. Only an empty artifact, an extraction failure
// or caller cancellation return an error; failures of the later stages
// degrade their section of the analysis.
func (o *Orchestrator) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	if o.extractor == nil || o.retriever == nil || o.predictor == nil || o.synthesizer == nil {
		return nil, ErrMissingBackend
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = logger.RequestID(ctx)
	}
	if requestID == "" {
		requestID = uuid.New().String()
	}
	ctx = logger.ContextWithRequestID(ctx, requestID)

	if o.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.requestTimeout)
		defer cancel()
	}

	r := &run{
		ctx: ctx,
		analysis: &models.AggregatedAnalysis{
			RequestID: requestID,
			Matches:   []models.SearchResult{},
			Notes:     []string{},
			State:     models.StateIdle,
		},
	}
	started := time.Now()

	if req.Artifact.Size() == 0 {
		r.advance(models.StateFailed)
		return nil, emptyPayload()
	}

	// Extracting
	r.advance(models.StateExtracting)
	stepStarted := time.Now()
	text, err := o.extractor.Extract(ctx, req.Artifact)
	if err != nil {
		r.record(models.NewPipelineStep(models.StepOCR, models.StepFailed, stepStarted, err))
		r.advance(models.StateFailed)
		logger.Error(ctx, "text extraction failed", zap.Error(err))
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	r.record(models.NewPipelineStep(models.StepOCR, models.StepCompleted, stepStarted, nil))
	r.analysis.Text = text
	if text.Empty() {
		r.note("No text was extracted from the document; results are low-confidence.")
	}

	cc := DeriveCaseContext(text.Text)

	// Retrieving & predicting
	r.advance(models.StateRetrievingPredicting)
	o.retrieveAndPredict(r, text.Text, cc)
	if errors.Is(ctx.Err(), context.Canceled) {
		r.advance(models.StateFailed)
		return nil, ctx.Err()
	}

	// Synthesizing
	r.advance(models.StateSynthesizing)
	o.synthesize(r, cc)
	if errors.Is(ctx.Err(), context.Canceled) {
		r.advance(models.StateFailed)
		return nil, ctx.Err()
	}

	r.advance(models.StateAssembled)
	logger.Info(ctx, "brief analyzed",
		zap.Bool("degraded", r.analysis.Degraded()),
		zap.Int("matches", len(r.analysis.Matches)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return &AnalyzeResult{Analysis: r.analysis}, nil
}

// retrieveAndPredict runs both stages concurrently. Each records its own
// failure and returns nil so one stage never cancels the other.
func (o *Orchestrator) retrieveAndPredict(r *run, text string, cc models.CaseContext) {
	var (
		matches        []models.SearchResult
		prediction     models.OutcomePrediction
		searchErr      error
		predictErr     error
		searchStarted  time.Time
		predictStarted time.Time
		searchDone     time.Time
		predictDone    time.Time
	)

	g, gctx := errgroup.WithContext(r.ctx)
	g.SetLimit(2)

	g.Go(func() error {
		searchStarted = time.Now()
		matches, searchErr = o.retriever.Search(gctx, models.NewSearchRequest(SearchQuery(text)))
		searchDone = time.Now()
		return nil
	})
	g.Go(func() error {
		predictStarted = time.Now()
		prediction, predictErr = o.predictor.Predict(gctx, PredictionRequestFor(cc))
		predictDone = time.Now()
		return nil
	})
	_ = g.Wait()

	if searchErr != nil {
		r.record(stepBetween(models.StepRetrieval, models.StepDegraded, searchStarted, searchDone, searchErr))
		r.note("Case law retrieval unavailable (%s); no precedents are listed.", failureKind(searchErr))
		logger.Warn(r.ctx, "retrieval degraded", zap.Error(searchErr))
	} else {
		r.record(stepBetween(models.StepRetrieval, models.StepCompleted, searchStarted, searchDone, nil))
		if matches != nil {
			r.analysis.Matches = matches
		}
	}

	if predictErr != nil {
		r.record(stepBetween(models.StepPrediction, models.StepDegraded, predictStarted, predictDone, predictErr))
		r.note("Outcome prediction unavailable (%s); predicted_outcome is null.", failureKind(predictErr))
		logger.Warn(r.ctx, "prediction degraded", zap.Error(predictErr))
	} else {
		r.record(stepBetween(models.StepPrediction, models.StepCompleted, predictStarted, predictDone, nil))
		r.analysis.Prediction = &prediction
	}
}

func (o *Orchestrator) synthesize(r *run, cc models.CaseContext) {
	req := models.OpinionRequest{
		CaseContext:   cc,
		OpinionType:   models.DefaultOpinionType,
		MaxPrecedents: o.maxPrecedents,
		Precedents:    precedentNames(r.analysis.Matches, o.maxPrecedents),
	}
	if p := r.analysis.Prediction; p != nil {
		req.PredictedOutcome = p.Label
	}

	started := time.Now()
	opinion, err := o.synthesizer.Synthesize(r.ctx, req)
	if err != nil {
		kind := failureKind(err)
		r.record(models.NewPipelineStep(models.StepOpinion, models.StepDegraded, started, err))
		r.note("Opinion synthesis unavailable (%s); a placeholder opinion is returned.", kind)
		logger.Warn(r.ctx, "opinion degraded", zap.Error(err))
		r.analysis.Opinion = models.PlaceholderOpinion(kind)
		return
	}
	r.record(models.NewPipelineStep(models.StepOpinion, models.StepCompleted, started, nil))
	r.analysis.Opinion = opinion.WithDisclaimer()
}

// precedentNames lists the highest-ranked distinct case names
func precedentNames(matches []models.SearchResult, limit int) []string {
	seen := make(map[string]bool)
	names := []string{}
	for _, m := range RankMatches(matches) {
		if len(names) == limit {
			break
		}
		if m.CaseName == "" || seen[m.CaseName] {
			continue
		}
		seen[m.CaseName] = true
		names = append(names, m.CaseName)
	}
	return names
}

func stepBetween(name string, status models.StepStatus, started, done time.Time, err error) models.PipelineStep {
	step := models.PipelineStep{
		Name:       name,
		Status:     status,
		DurationMs: done.Sub(started).Milliseconds(),
	}
	if err != nil {
		step.Error = err.Error()
	}
	return step
}

// failureKind names a stage failure for the caller-visible notes
func failureKind(err error) string {
	var be *backend.Error
	if errors.As(err, &be) {
		return be.Kind.String()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return backend.KindTimeout.String()
	}
	return "error"
}
