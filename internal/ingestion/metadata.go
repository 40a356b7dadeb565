package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Metadata describes an uploaded document.
type Metadata struct {
	Filename  string `json:"filename,omitempty"`
	Bytes     int    `json:"bytes"`
	Pages     int    `json:"pages"`
	TextChars int    `json:"textChars"`
	Hash      string `json:"hash"`      // SHA256 hex digest of the raw upload
	Timestamp string `json:"timestamp"` // RFC3339
}

// NewMetadata describes data and its extracted text.
func NewMetadata(filename string, data []byte, pages int, text string) *Metadata {
	return &Metadata{
		Filename:  filename,
		Bytes:     len(data),
		Pages:     pages,
		TextChars: len(text),
		Hash:      computeHash(data),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// computeHash computes SHA256 hash of content and returns hex string
func computeHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
