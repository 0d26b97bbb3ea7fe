package handlers

import (
	"context"
	"errors"
	"net/http"

	"legaljudge-backend/backend"
	"legaljudge-backend/middleware"
	"legaljudge-backend/models"
	"legaljudge-backend/pkg/logger"
	"legaljudge-backend/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error codes for failures past intake
const (
	CodeOCRFailed        = "OCR_FAILED"
	CodeOCRTimeout       = "OCR_TIMEOUT"
	CodeRequestCancelled = "REQUEST_CANCELLED"
	CodeInternal         = "INTERNAL_ERROR"
)

// StatusClientClosedRequest is written when the caller went away mid-request
const StatusClientClosedRequest = 499

// Analyzer runs the brief analysis pipeline
type Analyzer interface {
	Analyze(ctx context.Context, req service.AnalyzeRequest) (*service.AnalyzeResult, error)
}

// AnalysisHandler handles HTTP requests for brief analysis
type AnalysisHandler struct {
	intake      *service.Intake
	analyzer    Analyzer
	assembler   *service.Assembler
	serviceName string
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(intake *service.Intake, analyzer Analyzer, assembler *service.Assembler, serviceName string) *AnalysisHandler {
	return &AnalysisHandler{
		intake:      intake,
		analyzer:    analyzer,
		assembler:   assembler,
		serviceName: serviceName,
	}
}

// Health handles GET /health
func (h *AnalysisHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:  "ok",
		Service: h.serviceName,
	})
}

// AnalyzeBrief handles POST /api/analyze-brief
func (h *AnalysisHandler) AnalyzeBrief(c *gin.Context) {
	artifact, err := h.intake.FromRequest(c.Writer, c.Request)
	if err != nil {
		h.writeError(c, err)
		return
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), service.AnalyzeRequest{
		Artifact:  artifact,
		RequestID: middleware.GetRequestID(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.assembler.Assemble(result.Analysis))
}

func (h *AnalysisHandler) writeError(c *gin.Context, err error) {
	status, code, message := classifyError(err)
	_ = c.Error(err)

	if status >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "brief analysis failed", zap.String("code", code), zap.Error(err))
	}

	c.JSON(status, models.ErrorResponse{
		Status:    models.ResponseStatusError,
		Error:     message,
		Code:      code,
		RequestID: middleware.GetRequestID(c),
	})
}

// classifyError maps a pipeline error to an HTTP status, error code and
// caller-facing message.
func classifyError(err error) (int, string, string) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return verr.Status, verr.Code, verr.Message
	}

	if errors.Is(err, context.Canceled) {
		return StatusClientClosedRequest, CodeRequestCancelled, "Request cancelled"
	}

	if errors.Is(err, service.ErrExtractionFailed) {
		if errors.Is(err, backend.ErrTimeout) {
			return http.StatusGatewayTimeout, CodeOCRTimeout, "Text extraction timed out"
		}
		message := "Text extraction failed"
		var be *backend.Error
		if errors.As(err, &be) {
			message += ": " + be.Kind.String()
		}
		return http.StatusBadGateway, CodeOCRFailed, message
	}

	return http.StatusInternalServerError, CodeInternal, "Internal server error"
}
