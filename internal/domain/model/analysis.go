package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// AnalysisRecord is one persisted per-document analysis result. The composite
// key (source document, subject, document type, optional content hash) is
// hashed into CacheKey; SubjectID and DocumentType are kept as plain columns
// so invalidation can match on them.
type AnalysisRecord struct {
	CacheKey     string
	SourceID     string
	SubjectID    string
	DocumentType string
	Result       json.RawMessage
	CreatedAt    time.Time
	ExpiresAt    time.Time
	HitCount     int
}

func (r *AnalysisRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// AnalysisCacheKey hashes the composite key. contentHash may be empty when the
// caller has no cheap way to fingerprint the document body.
func AnalysisCacheKey(sourceID, subjectID, documentType, contentHash string) string {
	h := sha256.New()
	for _, part := range []string{sourceID, subjectID, documentType, contentHash} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
