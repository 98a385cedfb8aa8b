package logging

import (
	"context"
	"time"
)

// LogRecord captures one dispatch tick.
type LogRecord struct {
	Timestamp   time.Time    `json:"timestamp"`
	FreeSlots   int          `json:"free_slots"`
	Collected   []Collect    `json:"collected,omitempty"`
	Hired       string       `json:"hired,omitempty"`
	Priority    int          `json:"priority,omitempty"`
	Evaluations []Evaluation `json:"evaluations,omitempty"`
	Errors      []string     `json:"errors,omitempty"`
}

// Collect mirrors a collect command.
type Collect struct {
	Slot int    `json:"slot"`
	Name string `json:"name"`
}

// Evaluation mirrors the per-candidate verdict of the selector.
type Evaluation struct {
	Name     string `json:"name"`
	Reason   string `json:"reason"`
	Priority int    `json:"priority"`
}

// LogQuery defines filters for retrieving records.
type LogQuery struct {
	Start time.Time
	End   time.Time
	// Retriever keeps records that hired or collected the named retriever.
	Retriever string
	HiredOnly bool
}

// Match reports whether rec satisfies every filter of q.
func (q LogQuery) Match(rec LogRecord) bool {
	if !q.Start.IsZero() && rec.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && rec.Timestamp.After(q.End) {
		return false
	}
	if q.HiredOnly && rec.Hired == "" {
		return false
	}
	if q.Retriever == "" || rec.Hired == q.Retriever {
		return true
	}
	for _, c := range rec.Collected {
		if c.Name == q.Retriever {
			return true
		}
	}
	return false
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}
