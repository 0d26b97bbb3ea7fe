package models

import "errors"

// MediaTypePDF is the only media type accepted by default at intake.
const MediaTypePDF = "application/pdf"

// ErrEmptyPayload is returned when an artifact carries no bytes.
var ErrEmptyPayload = errors.New("empty payload")

// UploadedArtifact is the raw uploaded document before any processing
type UploadedArtifact struct {
	Data      []byte
	MediaType string
	Filename  string
}

// NewUploadedArtifact builds an artifact, rejecting an empty byte payload.
func NewUploadedArtifact(data []byte, mediaType, filename string) (UploadedArtifact, error) {
	if len(data) == 0 {
		return UploadedArtifact{}, ErrEmptyPayload
	}
	return UploadedArtifact{
		Data:      data,
		MediaType: mediaType,
		Filename:  filename,
	}, nil
}

// Size returns the payload length in bytes
func (a UploadedArtifact) Size() int {
	return len(a.Data)
}

// ExtractedText is the plain text produced by the OCR backend for one artifact
type ExtractedText struct {
	Text      string `json:"full_text"`
	PageCount int    `json:"page_count,omitempty"`
}

// Empty reports whether extraction produced no text
func (t ExtractedText) Empty() bool {
	return len(t.Text) == 0
}
