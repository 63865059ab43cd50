package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Callback receives the completion text, or a non-nil error when the backend
// call failed. It is invoked exactly once per submitted request.
type Callback func(response string, err error)

// CompletionRequest is a queued text-completion request. Lower Priority values
// dequeue first; Seq preserves arrival order among equal priorities.
type CompletionRequest struct {
	ID            string
	Prompt        string
	SystemContext string
	Priority      int
	Timeout       time.Duration
	Callback      Callback
	EnqueuedAt    time.Time

	Seq uint64
}

func NewCompletionRequest(prompt, systemContext string, priority int, timeout time.Duration, cb Callback) *CompletionRequest {
	return &CompletionRequest{
		ID:            uuid.NewString(),
		Prompt:        prompt,
		SystemContext: systemContext,
		Priority:      priority,
		Timeout:       timeout,
		Callback:      cb,
		EnqueuedAt:    time.Now(),
	}
}

// ResponseCacheKey hashes (prompt, systemContext) into the response cache key.
func ResponseCacheKey(prompt, systemContext string) string {
	h := sha256.New()
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write([]byte(systemContext))
	return hex.EncodeToString(h.Sum(nil))
}
