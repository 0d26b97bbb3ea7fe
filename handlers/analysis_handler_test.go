package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"legaljudge-backend/backend"
	"legaljudge-backend/config"
	"legaljudge-backend/models"
	"legaljudge-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeBackends serves the four backend contracts from one test server
type fakeBackends struct {
	server *httptest.Server

	mu         sync.Mutex
	handlers   map[string]http.HandlerFunc
	calls      map[string]*atomic.Int32
	requestIDs map[string]string
}

const (
	ocrPath        = "/ocr/pdf"
	searchPath     = "/search"
	predictPath    = "/predict/outcome"
	opinionPath    = "/generate/opinion"
	scenarioPrefix = "The tenant alleges..."
)

func jsonReply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}
}

func statusReply(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}
}

func scenarioText() string {
	return scenarioPrefix + strings.Repeat("x", 600-len(scenarioPrefix))
}

func newFakeBackends(t *testing.T) *fakeBackends {
	t.Helper()
	ocrBody, _ := json.Marshal(map[string]any{"full_text": scenarioText(), "page_count": 1})

	f := &fakeBackends{
		handlers: map[string]http.HandlerFunc{
			ocrPath: jsonReply(string(ocrBody)),
			searchPath: jsonReply(`{"status":"success","results":[
				{"case_name":"Javins v. First National Realty","year":1970,"court":"D.C. Cir.","section_type":"reasoning","similarity_score":0.88,"snippet":"Leases of urban dwellings contain implied warranty of habitability.","metadata":{"citation":"428 F.2d 1071"}},
				{"case_name":"Hilder v. St. Peter","year":1984,"court":"Vt.","section_type":"holding","similarity_score":0.92,"snippet":"Implied warranty of habitability exists in every residential lease.","metadata":{}}
			],"total_results":2,"search_time_ms":8}`),
			predictPath: jsonReply(`{"status":"success","predicted_outcome":"PLAINTIFF_WINS",
				"probabilities":{"PLAINTIFF_WINS":0.85,"DEFENDANT_WINS":0.10,"MIXED":0.05},
				"confidence":0.85,"supporting_cases":["Hilder v. St. Peter"],"explanation":"Strong factual match."}`),
			opinionPath: jsonReply(`{"status":"success","opinion":{"full_text":"SUPREME COURT OF THE UNITED STATES\n\nPER CURIAM\n\nIt is so ordered.","sections":{},"cited_precedents":["Hilder v. St. Peter"],"generation_metadata":{"model":"test"},"disclaimer":"x"}}`),
		},
		calls:      map[string]*atomic.Int32{},
		requestIDs: map[string]string{},
	}
	for path := range f.handlers {
		f.calls[path] = &atomic.Int32{}
	}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		h, ok := f.handlers[r.URL.Path]
		f.requestIDs[r.URL.Path] = r.Header.Get("X-Request-ID")
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		f.calls[r.URL.Path].Add(1)
		h(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeBackends) set(path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[path] = h
}

func (f *fakeBackends) count(path string) int32 {
	return f.calls[path].Load()
}

func (f *fakeBackends) requestID(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requestIDs[path]
}

func testConfig(f *fakeBackends) *config.Config {
	cfg := config.Default()
	cfg.Backends.MaxRetries = 2
	cfg.Backends.InitialBackoff = time.Millisecond
	cfg.Backends.OCR.URL = f.server.URL + ocrPath
	cfg.Backends.Search.URL = f.server.URL + searchPath
	cfg.Backends.Prediction.URL = f.server.URL + predictPath
	cfg.Backends.Opinion.URL = f.server.URL + opinionPath
	cfg.Intake.MaxUploadBytes = 4096
	return cfg
}

func newTestRouter(cfg *config.Config) *gin.Engine {
	transport := backend.NewTransport(backend.WithRetries(cfg.Backends.MaxRetries, cfg.Backends.InitialBackoff))
	orchestrator := service.NewOrchestrator(
		service.WithExtractor(backend.NewOCRClient(transport, cfg.Backends.OCR)),
		service.WithRetriever(backend.NewSearchClient(transport, cfg.Backends.Search)),
		service.WithPredictor(backend.NewPredictionClient(transport, cfg.Backends.Prediction)),
		service.WithOpinionSynthesizer(backend.NewOpinionClient(transport, cfg.Backends.Opinion)),
		service.WithRequestTimeout(cfg.Pipeline.RequestTimeout),
	)
	h := NewAnalysisHandler(service.NewIntake(cfg.Intake), orchestrator, service.NewAssembler(cfg.Assembler), cfg.Server.ServiceName)
	return SetupRouter(cfg, h)
}

func briefUpload(t *testing.T, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="brief.pdf"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze-brief", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func pdfBytes(n int) []byte {
	return append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte("0"), n-9)...)
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	router := newTestRouter(testConfig(newFakeBackends(t)))

	w := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","service":"legal-judge-orchestrator"}`, w.Body.String())
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestAnalyzeBriefScenario(t *testing.T) {
	f := newFakeBackends(t)
	router := newTestRouter(testConfig(f))

	req := briefUpload(t, "application/pdf", pdfBytes(1200))
	req.Header.Set("X-Request-ID", "scenario-1")
	w := serve(router, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, models.ResponseStatusSuccess, resp.Status)
	assert.Equal(t, "scenario-1", resp.RequestID)
	assert.Equal(t, scenarioText()[:500]+"...", resp.OCRText)

	require.Len(t, resp.TopCases, 2)
	assert.Equal(t, "Hilder v. St. Peter", resp.TopCases[0].CaseName)
	assert.Equal(t, 0.92, resp.TopCases[0].RelevanceScore)
	assert.Equal(t, "Vt. (1984)", resp.TopCases[0].Citation)
	assert.Equal(t, 0.88, resp.TopCases[1].RelevanceScore)
	assert.Equal(t, "428 F.2d 1071", resp.TopCases[1].Citation)

	require.NotNil(t, resp.PredictedOutcome)
	assert.Equal(t, "PLAINTIFF_WINS", resp.PredictedOutcome.Label)
	assert.Equal(t, map[string]float64{"PLAINTIFF_WINS": 0.85, "DEFENDANT_WINS": 0.10, "MIXED": 0.05}, resp.PredictedOutcome.Probabilities)
	assert.InDelta(t, 1.0, models.ProbabilitySum(resp.PredictedOutcome.Probabilities), models.ProbabilityEps)

	assert.NotEmpty(t, resp.JudgeOpinion)
	assert.Equal(t, models.OpinionDisclaimer, resp.Disclaimer)
	assert.Len(t, resp.Stages, 4)
	assert.Empty(t, resp.Notes)

	for _, path := range []string{ocrPath, searchPath, predictPath, opinionPath} {
		assert.Equal(t, int32(1), f.count(path), path)
		assert.Equal(t, "scenario-1", f.requestID(path), path)
	}
}

func TestAnalyzeBriefMissingFile(t *testing.T) {
	f := newFakeBackends(t)
	router := newTestRouter(testConfig(f))

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"empty file", briefUpload(t, "application/pdf", nil)},
		{"no body", httptest.NewRequest(http.MethodPost, "/api/analyze-brief", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, tt.req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, "No file uploaded", body.Error)
			assert.Equal(t, "MISSING_FILE", body.Code)
			assert.Equal(t, models.ResponseStatusError, body.Status)
		})
	}

	for _, path := range []string{ocrPath, searchPath, predictPath, opinionPath} {
		assert.Zero(t, f.count(path), path)
	}
}

func TestAnalyzeBriefIntakeRejections(t *testing.T) {
	f := newFakeBackends(t)
	router := newTestRouter(testConfig(f))

	w := serve(router, briefUpload(t, "application/pdf", pdfBytes(8192)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "FILE_TOO_LARGE", decodeError(t, w).Code)

	w = serve(router, briefUpload(t, "text/plain", []byte("hello")))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, "UNSUPPORTED_MEDIA_TYPE", decodeError(t, w).Code)

	assert.Zero(t, f.count(ocrPath))
}

func TestAnalyzeBriefOCRUnavailable(t *testing.T) {
	f := newFakeBackends(t)
	f.set(ocrPath, statusReply(http.StatusServiceUnavailable))
	router := newTestRouter(testConfig(f))

	w := serve(router, briefUpload(t, "application/pdf", pdfBytes(100)))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, CodeOCRFailed, body.Code)
	assert.Contains(t, body.Error, "backend_unavailable")

	assert.Equal(t, int32(2), f.count(ocrPath), "transient failures are retried")
	assert.Zero(t, f.count(searchPath))
	assert.Zero(t, f.count(predictPath))
	assert.Zero(t, f.count(opinionPath))
}

func TestAnalyzeBriefOCRUnreachable(t *testing.T) {
	f := newFakeBackends(t)
	cfg := testConfig(f)
	cfg.Backends.OCR.URL = "http://127.0.0.1:1/ocr/pdf"
	router := newTestRouter(cfg)

	w := serve(router, briefUpload(t, "application/pdf", pdfBytes(100)))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Zero(t, f.count(predictPath))
	assert.Zero(t, f.count(opinionPath))
}

func TestAnalyzeBriefOCRTimeout(t *testing.T) {
	f := newFakeBackends(t)
	f.set(ocrPath, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	cfg := testConfig(f)
	cfg.Backends.OCR.Timeout = 20 * time.Millisecond
	router := newTestRouter(cfg)

	w := serve(router, briefUpload(t, "application/pdf", pdfBytes(100)))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, CodeOCRTimeout, decodeError(t, w).Code)
}

func TestAnalyzeBriefRetrievalDown(t *testing.T) {
	f := newFakeBackends(t)
	f.set(searchPath, statusReply(http.StatusInternalServerError))
	router := newTestRouter(testConfig(f))

	w := serve(router, briefUpload(t, "application/pdf", pdfBytes(100)))
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, models.ResponseStatusPartial, raw["status"])
	assert.Equal(t, []any{}, raw["top_cases"])
	assert.NotNil(t, raw["predicted_outcome"])
	assert.NotEmpty(t, raw["notes"])
	assert.Equal(t, int32(1), f.count(opinionPath))
}

func TestAnalyzeBriefPredictionMalformed(t *testing.T) {
	f := newFakeBackends(t)
	f.set(predictPath, jsonReply(`{"status":"success","predicted_outcome":"PLAINTIFF_WINS","probabilities":{"PLAINTIFF_WINS":0.5},"confidence":0.5}`))
	router := newTestRouter(testConfig(f))

	w := serve(router, briefUpload(t, "application/pdf", pdfBytes(100)))
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, models.ResponseStatusPartial, raw["status"])
	assert.Nil(t, raw["predicted_outcome"])
	assert.Equal(t, int32(1), f.count(predictPath), "malformed replies are not retried")
}

func TestAnalyzeBriefOpinionDown(t *testing.T) {
	f := newFakeBackends(t)
	f.set(opinionPath, statusReply(http.StatusBadRequest))
	router := newTestRouter(testConfig(f))

	w := serve(router, briefUpload(t, "application/pdf", pdfBytes(100)))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ResponseStatusPartial, resp.Status)
	assert.Equal(t, models.PlaceholderOpinion("").FullText, resp.JudgeOpinion)
	assert.Equal(t, models.OpinionDisclaimer, resp.Disclaimer)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"timeout", fmt.Errorf("%w: %w", service.ErrExtractionFailed, &backend.Error{Backend: "ocr", Kind: backend.KindTimeout}), http.StatusGatewayTimeout, CodeOCRTimeout},
		{"rejected", fmt.Errorf("%w: %w", service.ErrExtractionFailed, backend.Rejected("ocr", nil)), http.StatusBadGateway, CodeOCRFailed},
		{"malformed", fmt.Errorf("%w: %w", service.ErrExtractionFailed, backend.Malformed("ocr", nil)), http.StatusBadGateway, CodeOCRFailed},
		{"other", service.ErrMissingBackend, http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, _ := classifyError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
