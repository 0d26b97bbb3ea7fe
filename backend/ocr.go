package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/textproto"

	"legaljudge-backend/config"
	"legaljudge-backend/models"
)

const (
	ocrBackend      = models.StepOCR
	ocrFieldName    = "file"
	ocrFilename     = "brief.pdf"
	ocrDefaultMedia = models.MediaTypePDF
)

// OCRClient extracts text from uploaded documents via the OCR service
type OCRClient struct {
	transport *Transport
	endpoint  config.EndpointConfig
}

// NewOCRClient creates an OCR adapter bound to one endpoint
func NewOCRClient(t *Transport, endpoint config.EndpointConfig) *OCRClient {
	return &OCRClient{transport: t, endpoint: endpoint}
}

type ocrResponse struct {
	Status    string  `json:"status"`
	FullText  *string `json:"full_text"`
	PageCount int     `json:"page_count"`
}

// Extract uploads the artifact and returns the recognised text.
// An empty text is a valid result; a reply without full_text is not.
func (c *OCRClient) Extract(ctx context.Context, artifact models.UploadedArtifact) (models.ExtractedText, error) {
	if artifact.Size() == 0 {
		return models.ExtractedText{}, Rejected(ocrBackend, models.ErrEmptyPayload)
	}

	body, contentType, err := multipartBody(artifact)
	if err != nil {
		return models.ExtractedText{}, Rejected(ocrBackend, err)
	}

	var resp ocrResponse
	if err := c.transport.PostBody(ctx, ocrBackend, c.endpoint.URL, c.endpoint.Timeout, contentType, body, &resp); err != nil {
		return models.ExtractedText{}, err
	}
	if err := checkStatus(ocrBackend, resp.Status); err != nil {
		return models.ExtractedText{}, err
	}
	if resp.FullText == nil {
		return models.ExtractedText{}, Malformed(ocrBackend, errors.New("response has no full_text"))
	}

	return models.ExtractedText{Text: *resp.FullText, PageCount: resp.PageCount}, nil
}

func multipartBody(artifact models.UploadedArtifact) ([]byte, string, error) {
	mediaType := artifact.MediaType
	if mediaType == "" {
		mediaType = ocrDefaultMedia
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, ocrFieldName, ocrFilename))
	h.Set("Content-Type", mediaType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(artifact.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
