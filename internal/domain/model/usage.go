package model

import "time"

// UsageEvent is one backend call as it lands in the append-only usage log.
// Events are never mutated after write.
type UsageEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Operation    string    `json:"operation"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalTokens  int       `json:"total_tokens"`
	InputCost    float64   `json:"input_cost"`
	OutputCost   float64   `json:"output_cost"`
	TotalCost    float64   `json:"total_cost"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
}

// UsageAggregate sums a slice of the log for reporting.
type UsageAggregate struct {
	Requests     int     `json:"requests"`
	Failures     int     `json:"failures"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	TotalCost    float64 `json:"total_cost"`
}

// UsageStats is the result of replaying the usage log over a time window.
type UsageStats struct {
	Since       time.Time                  `json:"since"`
	Until       time.Time                  `json:"until"`
	Total       UsageAggregate             `json:"total"`
	ByProvider  map[string]*UsageAggregate `json:"by_provider"`
	ByOperation map[string]*UsageAggregate `json:"by_operation"`
}

func (s *UsageStats) Add(ev *UsageEvent) {
	s.Total.add(ev)
	if s.ByProvider == nil {
		s.ByProvider = map[string]*UsageAggregate{}
	}
	if s.ByOperation == nil {
		s.ByOperation = map[string]*UsageAggregate{}
	}
	p := s.ByProvider[ev.Provider]
	if p == nil {
		p = &UsageAggregate{}
		s.ByProvider[ev.Provider] = p
	}
	p.add(ev)
	o := s.ByOperation[ev.Operation]
	if o == nil {
		o = &UsageAggregate{}
		s.ByOperation[ev.Operation] = o
	}
	o.add(ev)
}

func (a *UsageAggregate) add(ev *UsageEvent) {
	a.Requests++
	if !ev.Success {
		a.Failures++
	}
	a.InputTokens += ev.InputTokens
	a.OutputTokens += ev.OutputTokens
	a.TotalTokens += ev.TotalTokens
	a.TotalCost += ev.TotalCost
}
