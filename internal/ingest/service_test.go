// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package ingest

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"occingest/cli/internal/auth"
	"occingest/cli/internal/backend"
	apperr "occingest/cli/internal/errors"
	"occingest/cli/internal/occtest"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var files = []string{"in/Img1.tif", "in/Img2.tif", "in/cover.pdf"}

func scanDir(t *testing.T) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "in/Img1.tif", []byte("II*\x00first"), 0o644))
	require.NoError(t, util.WriteFile(fs, "in/Img2.tif", []byte("II*\x00second page"), 0o644))
	require.NoError(t, util.WriteFile(fs, "in/cover.pdf", []byte("%PDF-1.4\n"), 0o644))
	return fs
}

type fixture struct {
	srv     *occtest.Server
	manager *auth.Manager
	svc     *Service
}

func setup(t *testing.T, cfg auth.Config, login bool, opts ...Option) *fixture {
	t.Helper()
	srv := occtest.NewServer("alice", "secret")
	t.Cleanup(srv.Close)

	fs := scanDir(t)
	cfg.Server = srv.URL
	cfg.Username = "alice"
	cfg.Password = "secret"
	cfg.Backend.Filesystem = fs
	m, err := auth.NewManager(cfg)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	if login {
		_, err := m.Login(context.Background())
		require.NoError(t, err)
		srv.Reset()
	}
	return &fixture{
		srv:     srv,
		manager: m,
		svc:     New(m, append([]Option{WithFilesystem(fs)}, opts...)...),
	}
}

func callsTo(srv *occtest.Server, ep occtest.Endpoint) []occtest.Call {
	var out []occtest.Call
	for _, c := range srv.Calls() {
		if c.Endpoint == ep {
			out = append(out, c)
		}
	}
	return out
}

func TestLooseBatchUploadsAllFilesInOneCall(t *testing.T) {
	f := setup(t, auth.Config{}, true)

	id, err := f.svc.CreateAndIngestBatch(context.Background(), Request{Profile: "Profile1", Files: files, Mode: Loose})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	assert.Equal(t, []occtest.Endpoint{occtest.CreateBatch, occtest.AttachLooseFiles, occtest.CloseOperation}, f.srv.Endpoints())
	calls := f.srv.Calls()
	assert.Equal(t, "looseFilesInput", calls[0].Query.Get("batchFormat"))
	assert.Equal(t, DefaultBatchName, calls[0].Query.Get("batchName"))
	assert.Equal(t, id, calls[1].BatchID)
	require.Len(t, calls[1].Parts, 3)
	assert.Equal(t, "Img1.tif", calls[1].Parts[0].Filename)
	assert.Equal(t, "cover.pdf", calls[1].Parts[2].Filename)
	for _, c := range calls {
		assert.Equal(t, f.srv.XSRF(), c.XSRF)
	}
}

func TestDocumentBatchCreatesOneDocumentPerFile(t *testing.T) {
	f := setup(t, auth.Config{}, true)

	_, err := f.svc.CreateAndIngestBatch(context.Background(), Request{
		Profile:       "Profile1",
		Files:         files,
		Mode:          Document,
		DocumentClass: "Invoice",
		BatchName:     "batch-1",
	})
	require.NoError(t, err)

	assert.Equal(t, []occtest.Endpoint{
		occtest.CreateBatch,
		occtest.CreateDocument, occtest.AttachDocumentFile,
		occtest.CreateDocument, occtest.AttachDocumentFile,
		occtest.CreateDocument, occtest.AttachDocumentFile,
		occtest.CloseOperation,
	}, f.srv.Endpoints())

	calls := f.srv.Calls()
	assert.Equal(t, "documentFilesInput", calls[0].Query.Get("batchFormat"))
	assert.Equal(t, "batch-1", calls[0].Query.Get("batchName"))
	for _, c := range callsTo(f.srv, occtest.CreateDocument) {
		assert.Equal(t, "Invoice", c.Query.Get("documentClassName"))
	}
	uploads := callsTo(f.srv, occtest.AttachDocumentFile)
	for i, c := range uploads {
		require.Len(t, c.Parts, 1)
		assert.NotEmpty(t, c.DocumentID)
		assert.Equal(t, []string{"Img1.tif", "Img2.tif", "cover.pdf"}[i], c.Parts[0].Filename)
	}
	assert.NotEqual(t, uploads[0].DocumentID, uploads[1].DocumentID)
}

func TestDocumentWithoutClassOmitsQuery(t *testing.T) {
	f := setup(t, auth.Config{}, true)

	_, err := f.svc.CreateAndIngestBatch(context.Background(), Request{Profile: "P", Files: files[:1], Mode: Document})
	require.NoError(t, err)

	docs := callsTo(f.srv, occtest.CreateDocument)
	require.Len(t, docs, 1)
	assert.False(t, docs[0].Query.Has("documentClassName"))
}

func TestCustomGrouping(t *testing.T) {
	f := setup(t, auth.Config{}, true, WithGrouping(SingleDocument))

	_, err := f.svc.CreateAndIngestBatch(context.Background(), Request{Profile: "P", Files: files, Mode: Document})
	require.NoError(t, err)

	assert.Equal(t, 1, f.srv.Count(occtest.CreateDocument))
	uploads := callsTo(f.srv, occtest.AttachDocumentFile)
	require.Len(t, uploads, 1)
	assert.Len(t, uploads[0].Parts, 3)
}

func TestAttachFailureBreaksBatch(t *testing.T) {
	f := setup(t, auth.Config{}, true)
	f.srv.Fail(occtest.AttachLooseFiles, occtest.Failure{
		Status: http.StatusBadRequest,
		Body:   `{"errorInfo":{"id":"UploadRejected"}}`,
	})

	id, err := f.svc.CreateAndIngestBatch(context.Background(), Request{Profile: "P", Files: files, Mode: Loose})
	require.Error(t, err)
	assert.Empty(t, id)
	assert.Equal(t, apperr.Service, apperr.KindOf(err))
	assert.Equal(t, "UploadRejected", apperr.ErrorIDOf(err))

	assert.Equal(t, []occtest.Endpoint{occtest.CreateBatch, occtest.AttachLooseFiles, occtest.BreakOperation}, f.srv.Endpoints())
	br := callsTo(f.srv, occtest.BreakOperation)[0]
	assert.Equal(t, callsTo(f.srv, occtest.AttachLooseFiles)[0].BatchID, br.BatchID)
	assert.NotEmpty(t, br.JSON["errorMessage"])
	assert.Contains(t, br.JSON["errorDetails"], "UploadRejected")
}

func TestBreakFailureKeepsOriginalError(t *testing.T) {
	f := setup(t, auth.Config{}, true)
	f.srv.Fail(occtest.AttachDocumentFile, occtest.Failure{
		Status: http.StatusInternalServerError,
		Body:   `{"errorInfo":{"id":"DiskFull"}}`,
	})
	f.srv.Fail(occtest.BreakOperation, occtest.Failure{
		Status: http.StatusConflict,
		Body:   `{"errorInfo":{"id":"AlreadyBroken"}}`,
	})

	_, err := f.svc.CreateAndIngestBatch(context.Background(), Request{Profile: "P", Files: files, Mode: Document})
	require.Error(t, err)
	assert.Equal(t, "DiskFull", apperr.ErrorIDOf(err))
	assert.NotContains(t, err.Error(), "AlreadyBroken")
	assert.Equal(t, 1, f.srv.Count(occtest.BreakOperation))
	assert.Equal(t, 0, f.srv.Count(occtest.CloseOperation))
	// stops at the first failing document
	assert.Equal(t, 1, f.srv.Count(occtest.CreateDocument))
}

func TestCreateDocumentFailureBreaksBatch(t *testing.T) {
	f := setup(t, auth.Config{}, true)
	f.srv.Fail(occtest.CreateDocument, occtest.Failure{Status: http.StatusNotFound, Body: `{"errorInfo":{"id":"NoSuchClass"}}`})

	_, err := f.svc.CreateAndIngestBatch(context.Background(), Request{Profile: "P", Files: files, Mode: Document, DocumentClass: "Nope"})
	require.Error(t, err)
	assert.Equal(t, "NoSuchClass", apperr.ErrorIDOf(err))
	assert.Equal(t, []occtest.Endpoint{occtest.CreateBatch, occtest.CreateDocument, occtest.BreakOperation}, f.srv.Endpoints())
}

func TestAttachTimeoutBreaksBatch(t *testing.T) {
	f := setup(t, auth.Config{Backend: backend.Options{DefaultTimeout: 200 * time.Millisecond}}, true)
	f.srv.Fail(occtest.AttachLooseFiles, occtest.Failure{Status: http.StatusOK, Delay: 2 * time.Second})

	id, err := f.svc.CreateAndIngestBatch(context.Background(), Request{Profile: "P", Files: files, Mode: Loose})
	require.Error(t, err)
	assert.Empty(t, id)
	assert.Equal(t, apperr.Transport, apperr.KindOf(err))
	assert.False(t, apperr.Is(err, apperr.Ingestion))
	assert.Equal(t, apperr.NoErrorID, apperr.ErrorIDOf(err))

	assert.Equal(t, []occtest.Endpoint{occtest.CreateBatch, occtest.AttachLooseFiles, occtest.BreakOperation}, f.srv.Endpoints())
	br := callsTo(f.srv, occtest.BreakOperation)[0]
	assert.Equal(t, callsTo(f.srv, occtest.AttachLooseFiles)[0].BatchID, br.BatchID)
	assert.Equal(t, 0, f.srv.Count(occtest.CloseOperation))
}

func TestCreateBatchFailurePropagates(t *testing.T) {
	f := setup(t, auth.Config{}, true)
	f.srv.Fail(occtest.CreateBatch, occtest.Failure{Status: http.StatusNotFound, Body: `{"errorInfo":{"id":"ProfileNotFound"}}`})

	_, err := f.svc.CreateAndIngestBatch(context.Background(), Request{Profile: "Missing", Files: files, Mode: Loose})
	require.Error(t, err)
	assert.Equal(t, apperr.Service, apperr.KindOf(err))
	assert.Equal(t, "ProfileNotFound", apperr.ErrorIDOf(err))
	assert.Equal(t, []occtest.Endpoint{occtest.CreateBatch}, f.srv.Endpoints())
}

func TestCloseFailureWithoutInquiry(t *testing.T) {
	f := setup(t, auth.Config{}, true)
	f.srv.Fail(occtest.CloseOperation, occtest.Failure{Status: http.StatusInternalServerError, Body: `{"errorInfo":{"id":"WorkflowDown"}}`})

	_, err := f.svc.CreateAndIngestBatch(context.Background(), Request{Profile: "P", Files: files, Mode: Loose})
	require.Error(t, err)

	var e *apperr.E
	require.True(t, errors.As(err, &e))
	assert.Equal(t, apperr.Ingestion, e.Kind)
	assert.Equal(t, "Closing batch failure", e.Context)
	assert.Equal(t, "WorkflowDown", e.ErrorID)
	assert.Equal(t, callsTo(f.srv, occtest.CloseOperation)[0].BatchID, e.BatchID)
	assert.Equal(t, 0, f.srv.Count(occtest.BatchCreationState))
	assert.Equal(t, 0, f.srv.Count(occtest.BreakOperation))
}

func TestCloseFailureWithUnparseableBody(t *testing.T) {
	f := setup(t, auth.Config{}, true)
	f.srv.Fail(occtest.CloseOperation, occtest.Failure{Status: http.StatusBadGateway, Body: "<html>proxy error</html>"})

	_, err := f.svc.CreateAndIngestBatch(context.Background(), Request{Profile: "P", Files: files, Mode: Loose})
	require.Error(t, err)
	assert.Equal(t, apperr.Ingestion, apperr.KindOf(err))
	assert.Equal(t, apperr.UnknownErrorID, apperr.ErrorIDOf(err))
}

func TestCloseTimeoutIsIngestionError(t *testing.T) {
	f := setup(t, auth.Config{Backend: backend.Options{DefaultTimeout: 200 * time.Millisecond}}, true)
	f.srv.Fail(occtest.CloseOperation, occtest.Failure{Status: http.StatusOK, Delay: 2 * time.Second})

	_, err := f.svc.CreateAndIngestBatch(context.Background(), Request{Profile: "P", Files: files, Mode: Loose})
	require.Error(t, err)
	assert.Equal(t, apperr.Ingestion, apperr.KindOf(err))
	assert.True(t, apperr.Is(err, apperr.Transport))
	assert.Equal(t, apperr.NoErrorID, apperr.ErrorIDOf(err))
	assert.NotEmpty(t, apperr.BatchIDOf(err))
}

func TestCloseFailureRecoveredByInquiry(t *testing.T) {
	for _, done := range []any{"True", true, "true"} {
		f := setup(t, auth.Config{}, true, WithCreationStateInquiry(true))
		f.srv.Fail(occtest.CloseOperation, occtest.Failure{Status: http.StatusInternalServerError})
		f.srv.SetImportDone(done)

		id, err := f.svc.CreateAndIngestBatch(context.Background(), Request{Profile: "P", Files: files, Mode: Loose})
		require.NoError(t, err, "isImportDone=%v", done)
		assert.Equal(t, callsTo(f.srv, occtest.CloseOperation)[0].BatchID, id)
		assert.Equal(t, []occtest.Endpoint{
			occtest.CreateBatch, occtest.AttachLooseFiles, occtest.CloseOperation, occtest.BatchCreationState,
		}, f.srv.Endpoints())
	}
}

func TestCloseFailureInquiryNotDone(t *testing.T) {
	f := setup(t, auth.Config{}, true, WithCreationStateInquiry(true))
	f.srv.Fail(occtest.CloseOperation, occtest.Failure{Status: http.StatusInternalServerError, Body: `{"errorInfo":{"id":"E1"}}`})
	f.srv.SetImportDone(false)

	_, err := f.svc.CreateAndIngestBatch(context.Background(), Request{Profile: "P", Files: files, Mode: Loose})
	require.Error(t, err)
	assert.Equal(t, apperr.Ingestion, apperr.KindOf(err))
	assert.Equal(t, "E1", apperr.ErrorIDOf(err))
	assert.Equal(t, 1, f.srv.Count(occtest.BatchCreationState))
}

func TestCloseFailureInquiryFails(t *testing.T) {
	f := setup(t, auth.Config{}, true, WithCreationStateInquiry(true))
	f.srv.Fail(occtest.CloseOperation, occtest.Failure{Status: http.StatusInternalServerError, Body: `{"errorInfo":{"id":"E1"}}`})
	f.srv.Fail(occtest.BatchCreationState, occtest.Failure{Status: http.StatusNotFound})

	_, err := f.svc.CreateAndIngestBatch(context.Background(), Request{Profile: "P", Files: files, Mode: Loose})
	require.Error(t, err)
	assert.Equal(t, apperr.Ingestion, apperr.KindOf(err))
	assert.Equal(t, "E1", apperr.ErrorIDOf(err))
}

func TestRejectedBeforeAnyRemoteCall(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "no files", req: Request{Profile: "P", Mode: Loose}},
		{name: "no profile", req: Request{Files: files, Mode: Loose}},
		{name: "bad mode", req: Request{Profile: "P", Files: files, Mode: Mode(7)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, auth.Config{}, true)
			_, err := f.svc.CreateAndIngestBatch(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
			assert.Empty(t, f.srv.Calls())
		})
	}
}

func TestNotLoggedIn(t *testing.T) {
	f := setup(t, auth.Config{}, false)

	_, err := f.svc.CreateAndIngestBatch(context.Background(), Request{Profile: "P", Files: files, Mode: Loose})
	require.Error(t, err)
	assert.Equal(t, apperr.NotLoggedIn, apperr.KindOf(err))
	assert.Empty(t, f.srv.Calls())
}

func TestExpiredSessionRenewedBeforeBatch(t *testing.T) {
	// a trust window of zero forces a liveness check on every batch
	f := setup(t, auth.Config{SessionTimeout: time.Minute}, true)
	f.srv.ExpireSessions()

	_, err := f.svc.CreateAndIngestBatch(context.Background(), Request{Profile: "P", Files: files, Mode: Loose})
	require.NoError(t, err)
	assert.Equal(t, []occtest.Endpoint{
		occtest.CurrentUser, occtest.OTDSPath, occtest.OTDSCredentials, occtest.OTDSLogin,
		occtest.CreateBatch, occtest.AttachLooseFiles, occtest.CloseOperation,
	}, f.srv.Endpoints())
}

func TestObserversReceiveOutcome(t *testing.T) {
	var got []Outcome
	record := ObserverFunc(func(_ context.Context, o Outcome) error {
		got = append(got, o)
		return nil
	})
	failing := ObserverFunc(func(context.Context, Outcome) error { return errors.New("journal down") })
	f := setup(t, auth.Config{}, true, WithObservers(failing, record))

	id, err := f.svc.CreateAndIngestBatch(context.Background(), Request{Profile: "P", Files: files, Mode: Loose, BatchName: "b"})
	require.NoError(t, err)

	f.srv.Fail(occtest.AttachLooseFiles, occtest.Failure{Status: http.StatusBadRequest})
	_, err = f.svc.CreateAndIngestBatch(context.Background(), Request{Profile: "P", Files: files, Mode: Loose})
	require.Error(t, err)

	require.Len(t, got, 2)
	assert.True(t, got[0].Succeeded())
	assert.Equal(t, id, got[0].BatchID)
	assert.Equal(t, StageDone, got[0].Stage)
	assert.Equal(t, "b", got[0].BatchName)
	assert.Equal(t, 3, got[0].Files)
	assert.Equal(t, int64(len("II*\x00first")+len("II*\x00second page")+len("%PDF-1.4\n")), got[0].Bytes)
	assert.NotEmpty(t, got[0].RunID)

	assert.False(t, got[1].Succeeded())
	assert.Equal(t, StageAttach, got[1].Stage)
	assert.True(t, got[1].Broken)
	assert.NotEmpty(t, got[1].BatchID)
	assert.NotEqual(t, got[0].RunID, got[1].RunID)
}

func TestSlowObserverDoesNotHoldResult(t *testing.T) {
	var deadline bool
	stuck := ObserverFunc(func(ctx context.Context, _ Outcome) error {
		_, deadline = ctx.Deadline()
		<-ctx.Done()
		return ctx.Err()
	})
	f := setup(t, auth.Config{}, true, WithObservers(stuck), WithObserverTimeout(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.CreateAndIngestBatch(ctx, Request{Profile: "P", Files: files, Mode: Loose})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("CreateAndIngestBatch did not return while an observer was stuck")
	}
	assert.True(t, deadline)
}

func TestDocumentClassesAndDelete(t *testing.T) {
	f := setup(t, auth.Config{}, true)
	ctx := context.Background()

	classes, err := f.svc.DocumentClasses(ctx, "Profile1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Invoice", "Contract"}, classes)

	require.NoError(t, f.svc.DeleteBatch(ctx, "batch-9"))
	del := callsTo(f.srv, occtest.DeleteBatch)
	require.Len(t, del, 1)
	assert.Equal(t, "batch-9", del[0].BatchID)

	_, err = f.svc.DocumentClasses(ctx, "")
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
	err = f.svc.DeleteBatch(ctx, " ")
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Loose")
	require.NoError(t, err)
	assert.Equal(t, Loose, m)
	m, err = ParseMode("document")
	require.NoError(t, err)
	assert.Equal(t, Document, m)
	_, err = ParseMode("pages")
	assert.Error(t, err)
}

func TestBreakReason(t *testing.T) {
	msg, details := breakReason(apperr.New(apperr.Service, "Bad Request").WithContext("Attaching files a.tif..."))
	assert.Equal(t, "Attaching files a.tif...: Bad Request", msg)
	assert.Contains(t, details, "Bad Request")

	msg, details = breakReason(errors.New("plain"))
	assert.Equal(t, "plain", msg)
	assert.Equal(t, "plain", details)
}
