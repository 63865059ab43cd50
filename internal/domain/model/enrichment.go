package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// EnrichmentTask is one unit of work accepted by the dispatcher. Payload is
// opaque to the pipeline; GroupKey lets tasks that share an expensive lookup
// (typically a ticker symbol) land in the same worker job.
type EnrichmentTask struct {
	ID         string
	GroupKey   string
	Payload    any
	EnqueuedAt time.Time
}

// EnrichmentResult is produced exactly once per task and held until a caller
// claims it (pop-on-read) or the periodic sweep drops it.
type EnrichmentResult struct {
	TaskID      string
	Value       any
	Failed      bool
	Err         string
	CompletedAt time.Time
}

// NewEnrichmentTask assigns a time-ordered task ID derived from the group key.
func NewEnrichmentTask(payload any, groupKey string) *EnrichmentTask {
	return &EnrichmentTask{
		ID:         groupKey + "-" + ulid.Make().String(),
		GroupKey:   groupKey,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	}
}
