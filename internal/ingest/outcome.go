package ingest

import (
	"context"
	"time"
)

// Stage is the last protocol step an ingestion reached.
type Stage string

const (
	StageValidate Stage = "validate"
	StageSession  Stage = "session"
	StageCreate   Stage = "create"
	StageAttach   Stage = "attach"
	StageClose    Stage = "close"
	StageDone     Stage = "done"
)

// Outcome summarizes one CreateAndIngestBatch call.
type Outcome struct {
	RunID     string
	BatchID   string
	Profile   string
	BatchName string
	Mode      Mode
	Files     int
	Bytes     int64
	Started   time.Time
	Duration  time.Duration
	Stage     Stage
	// Broken is set when a break was requested after an attach failure.
	Broken bool
	// Recovered is set when a failed close was confirmed by the creation state inquiry.
	Recovered bool
	Err       error
}

// Succeeded reports whether the batch was submitted.
func (o Outcome) Succeeded() bool { return o.Err == nil }

// Observer receives the outcome of every ingestion.
// Errors are logged and never change the ingestion result.
type Observer interface {
	Observe(ctx context.Context, o Outcome) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, o Outcome) error

func (f ObserverFunc) Observe(ctx context.Context, o Outcome) error { return f(ctx, o) }
