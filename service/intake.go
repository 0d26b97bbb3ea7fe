package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"legaljudge-backend/config"
	"legaljudge-backend/models"
)

var (
	ErrEmptyPayload         = models.ErrEmptyPayload
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
)

// Validation error codes returned to callers
const (
	CodeMissingFile          = "MISSING_FILE"
	CodeFileTooLarge         = "FILE_TOO_LARGE"
	CodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
)

// multipartOverhead is the slack allowed over the file ceiling for part
// headers and boundaries.
const multipartOverhead = 64 << 10

var pdfMagic = []byte("%PDF")

// ValidationError is a user-fixable upload problem. It is raised before
// any backend call is made.
type ValidationError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func emptyPayload() *ValidationError {
	return &ValidationError{
		Code:    CodeMissingFile,
		Message: "No file uploaded",
		Status:  http.StatusBadRequest,
		Err:     ErrEmptyPayload,
	}
}

func payloadTooLarge(limit int64) *ValidationError {
	return &ValidationError{
		Code:    CodeFileTooLarge,
		Message: fmt.Sprintf("File size exceeds maximum of %d bytes", limit),
		Status:  http.StatusRequestEntityTooLarge,
		Err:     ErrPayloadTooLarge,
	}
}

func unsupportedMediaType(msg string) *ValidationError {
	return &ValidationError{
		Code:    CodeUnsupportedMediaType,
		Message: msg,
		Status:  http.StatusUnsupportedMediaType,
		Err:     ErrUnsupportedMediaType,
	}
}

// Intake turns an upload into a validated artifact. Bytes are held in
// memory only.
type Intake struct {
	cfg config.IntakeConfig
}

// NewIntake creates an intake validator
func NewIntake(cfg config.IntakeConfig) *Intake {
	return &Intake{cfg: cfg}
}

// FromRequest streams the configured file part out of a multipart request.
// A missing part, or a request that is not multipart, is an empty payload.
func (i *Intake) FromRequest(w http.ResponseWriter, r *http.Request) (models.UploadedArtifact, error) {
	r.Body = http.MaxBytesReader(w, r.Body, i.cfg.MaxUploadBytes+multipartOverhead)

	reader, err := r.MultipartReader()
	if err != nil {
		return models.UploadedArtifact{}, emptyPayload()
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return models.UploadedArtifact{}, emptyPayload()
		}
		if err != nil {
			return models.UploadedArtifact{}, i.readError(err)
		}
		if part.FormName() != i.cfg.FieldName {
			part.Close()
			continue
		}
		return i.readPart(part)
	}
}

func (i *Intake) readPart(part *multipart.Part) (models.UploadedArtifact, error) {
	defer part.Close()

	data, err := io.ReadAll(io.LimitReader(part, i.cfg.MaxUploadBytes+1))
	if err != nil {
		return models.UploadedArtifact{}, i.readError(err)
	}
	return i.Validate(data, part.Header.Get("Content-Type"), part.FileName())
}

func (i *Intake) readError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return payloadTooLarge(i.cfg.MaxUploadBytes)
	}
	return emptyPayload()
}

// Validate checks buffered upload bytes against the intake policy
func (i *Intake) Validate(data []byte, declaredType, filename string) (models.UploadedArtifact, error) {
	if int64(len(data)) > i.cfg.MaxUploadBytes {
		return models.UploadedArtifact{}, payloadTooLarge(i.cfg.MaxUploadBytes)
	}

	mediaType := resolveMediaType(declaredType, filename)
	artifact, err := models.NewUploadedArtifact(data, mediaType, filename)
	if err != nil {
		return models.UploadedArtifact{}, emptyPayload()
	}

	if !i.cfg.MediaTypeAllowed(mediaType) {
		if mediaType == "" {
			mediaType = "unknown"
		}
		return models.UploadedArtifact{}, unsupportedMediaType(
			fmt.Sprintf("Unsupported media type %s. Allowed: %s", mediaType, strings.Join(i.cfg.AllowedMediaTypes, ", ")),
		)
	}
	if mediaType == models.MediaTypePDF && !bytes.HasPrefix(data, pdfMagic) {
		return models.UploadedArtifact{}, unsupportedMediaType("File is not a valid PDF")
	}

	return artifact, nil
}

// resolveMediaType prefers the declared type and falls back to the
// file extension when the client sent nothing useful.
func resolveMediaType(declared, filename string) string {
	mediaType := ""
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			mediaType = strings.ToLower(mt)
		}
	}
	if mediaType != "" && mediaType != "application/octet-stream" {
		return mediaType
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return models.MediaTypePDF
	}
	return mediaType
}
