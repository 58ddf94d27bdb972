// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package ingest creates Capture Center batches from local files.
//
// CreateAndIngestBatch drives the multi-step protocol: create the batch, attach
// the files, then close and submit it. When attaching fails the batch is broken so
// the server cleans it up; when closing fails the server may optionally be asked
// whether the import finished anyway.
package ingest

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"occingest/cli/internal/auth"
	"occingest/cli/internal/backend"
	apperr "occingest/cli/internal/errors"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
)

// Sessions hands out a live session. *auth.Manager implements it.
type Sessions interface {
	AssertValid(ctx context.Context) (*auth.Session, error)
}

// closeFailureContext labels errors of batches that could not be submitted.
const closeFailureContext = "Closing batch failure"

// DefaultObserverTimeout bounds each Observe call.
const DefaultObserverTimeout = 5 * time.Second

// Service runs ingestions against one session. It is not safe for concurrent
// use; run one Service per worker.
type Service struct {
	sessions  Sessions
	log       *slog.Logger
	grouping  Grouping
	inquiry   bool
	fs        billy.Filesystem
	observers []Observer
	obsWait   time.Duration
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithGrouping replaces OneDocumentPerFile.
func WithGrouping(g Grouping) Option {
	return func(s *Service) {
		if g != nil {
			s.grouping = g
		}
	}
}

// WithCreationStateInquiry enables the batchCreationState poll after a failed close.
// Only servers that expose the endpoint support it.
func WithCreationStateInquiry(enabled bool) Option {
	return func(s *Service) { s.inquiry = enabled }
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithObservers adds outcome observers.
func WithObservers(obs ...Observer) Option {
	return func(s *Service) { s.observers = append(s.observers, obs...) }
}

// WithObserverTimeout sets how long each observer may take. Non-positive
// values keep DefaultObserverTimeout.
func WithObserverTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.obsWait = d
		}
	}
}

// WithFilesystem sets where file sizes are read for outcome reporting.
// It should match the filesystem of the session's backend.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(s *Service) { s.fs = fs }
}

// New returns a Service that obtains sessions from sessions.
func New(sessions Sessions, opts ...Option) *Service {
	s := &Service{
		sessions: sessions,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		grouping: OneDocumentPerFile,
		obsWait:  DefaultObserverTimeout,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateAndIngestBatch creates a batch in req.Profile, attaches req.Files and
// submits the batch. It returns the id of the submitted batch.
//
// Validation and session failures, as well as a failed batch creation, are
// returned unchanged. An attach failure is returned unchanged after the batch
// has been broken on a best-effort basis. A close failure yields an Ingestion
// error carrying the batch id, unless the creation state inquiry is enabled
// and reports the import as done.
func (s *Service) CreateAndIngestBatch(ctx context.Context, req Request) (string, error) {
	out := Outcome{
		RunID:     uuid.NewString(),
		Profile:   req.Profile,
		BatchName: req.batchName(),
		Mode:      req.Mode,
		Files:     len(req.Files),
		Started:   s.now(),
	}
	if s.fs != nil {
		if _, total, err := backend.DescribeFiles(s.fs, req.Files); err == nil {
			out.Bytes = total
		}
	}
	log := s.log.With("run_id", out.RunID, "profile", req.Profile, "mode", req.Mode.String())

	batchID, err := s.ingest(ctx, log, req, &out)

	out.Duration = s.now().Sub(out.Started)
	out.Err = err
	if err != nil {
		log.Error("ingestion failed", "batch_id", out.BatchID, "stage", string(out.Stage), "error", err)
	} else {
		log.Info("batch submitted", "batch_id", batchID, "files", out.Files, "duration", out.Duration)
	}
	s.report(ctx, log, out)
	return batchID, err
}

func (s *Service) ingest(ctx context.Context, log *slog.Logger, req Request, out *Outcome) (string, error) {
	out.Stage = StageValidate
	format, ok := req.Mode.format()
	if !ok {
		return "", apperr.New(apperr.InvalidInput, "unknown ingestion mode "+req.Mode.String())
	}
	if strings.TrimSpace(req.Profile) == "" {
		return "", apperr.New(apperr.InvalidInput, "profile is required")
	}
	if len(req.Files) == 0 {
		return "", apperr.New(apperr.InvalidInput, "no files to ingest")
	}

	out.Stage = StageSession
	sess, err := s.sessions.AssertValid(ctx)
	if err != nil {
		return "", err
	}
	api := sess.API

	out.Stage = StageCreate
	b, err := api.CreateBatch(ctx, req.Profile, req.batchName(), format)
	if err != nil {
		return "", err
	}
	out.BatchID = b.ID
	log = log.With("batch_id", b.ID)
	log.Debug("batch created", "operation_id", b.OperationID)

	out.Stage = StageAttach
	if err := s.attach(ctx, api, b.ID, req); err != nil {
		out.Broken = true
		msg, details := breakReason(err)
		bestEffort(ctx, log, "breaking batch", func(ctx context.Context) error {
			return api.BreakOperation(ctx, b.ID, b.OperationID, msg, details)
		})
		return "", err
	}

	out.Stage = StageClose
	if err := api.CloseOperation(ctx, b.ID, b.OperationID); err != nil {
		if s.inquiry && s.importDone(ctx, log, api, b.ID) {
			out.Recovered = true
			log.Warn("close failed but import is done", "error", err)
			out.Stage = StageDone
			return b.ID, nil
		}
		id := apperr.ErrorIDOf(err)
		if id == "" {
			id = apperr.NoErrorID
		}
		return "", &apperr.E{
			Kind:    apperr.Ingestion,
			Message: "batch was not submitted",
			ErrorID: id,
			BatchID: b.ID,
			Context: closeFailureContext,
			Err:     err,
		}
	}

	out.Stage = StageDone
	return b.ID, nil
}

// attach uploads the request's files according to its mode.
func (s *Service) attach(ctx context.Context, api backend.API, batchID string, req Request) error {
	if req.Mode == Loose {
		return api.AttachLooseFiles(ctx, batchID, req.Files)
	}
	for _, group := range s.grouping(req.Files) {
		if len(group) == 0 {
			continue
		}
		docID, err := api.CreateDocument(ctx, batchID, req.DocumentClass)
		if err != nil {
			return err
		}
		if err := api.AttachDocumentFiles(ctx, batchID, docID, group); err != nil {
			return err
		}
	}
	return nil
}

// importDone polls the batch creation state once. Any failure counts as not done.
func (s *Service) importDone(ctx context.Context, log *slog.Logger, api backend.API, batchID string) bool {
	done, err := api.IsImportDone(context.WithoutCancel(ctx), batchID)
	if err != nil {
		log.Warn("batch creation state inquiry failed", "error", err)
		return false
	}
	return done
}

// report hands out to every observer. Each call gets its own deadline that
// survives cancellation of ctx.
func (s *Service) report(ctx context.Context, log *slog.Logger, out Outcome) {
	base := context.WithoutCancel(ctx)
	for _, o := range s.observers {
		octx, cancel := context.WithTimeout(base, s.obsWait)
		err := o.Observe(octx, out)
		cancel()
		if err != nil {
			log.Warn("outcome observer failed", "error", err)
		}
	}
}

// DocumentClasses lists the document classes of a profile.
func (s *Service) DocumentClasses(ctx context.Context, profile string) ([]string, error) {
	if strings.TrimSpace(profile) == "" {
		return nil, apperr.New(apperr.InvalidInput, "profile is required")
	}
	sess, err := s.sessions.AssertValid(ctx)
	if err != nil {
		return nil, err
	}
	return sess.API.DocumentClasses(ctx, profile)
}

// DeleteBatch removes a batch from the server.
func (s *Service) DeleteBatch(ctx context.Context, batchID string) error {
	if strings.TrimSpace(batchID) == "" {
		return apperr.New(apperr.InvalidInput, "batch id is required")
	}
	sess, err := s.sessions.AssertValid(ctx)
	if err != nil {
		return err
	}
	if err := sess.API.DeleteBatch(ctx, batchID); err != nil {
		return err
	}
	s.log.Info("batch deleted", "batch_id", batchID)
	return nil
}
