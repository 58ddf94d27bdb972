// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package backend provides interfaces and implementations for communicating with the
// Capture Center REST API. It defines the API contract for the OTDS login steps, the
// session liveness check and the batch ingestion calls. The package includes the
// interface definition, the HTTP-based implementation and the translation of failing
// responses into typed errors.
package backend

import "context"

// BatchFormat selects how input files are attached to a new batch.
type BatchFormat string

const (
	// LooseFilesInput attaches all files directly to the batch root.
	LooseFilesInput BatchFormat = "looseFilesInput"
	// DocumentFilesInput attaches files to documents created inside the batch.
	DocumentFilesInput BatchFormat = "documentFilesInput"
)

// Batch identifies a batch in progress and its currently open operation.
type Batch struct {
	ID          string `json:"batchID"`
	OperationID string `json:"currentOperationID"`
}

// Account is the subset of account/currentUser the client cares about.
type Account struct {
	UserName    string `json:"userName"`
	DisplayName string `json:"displayName"`
}

// API defines backend operations the client depends on.
// One API value owns one cookie jar and therefore represents at most one server session.
// Implementations may call real HTTP endpoints or provide mocks for tests.
type API interface {
	// OTDSPath asks Capture Center for the base URL of its OTDS identity provider.
	OTDSPath(ctx context.Context) (string, error)
	// OTDSTicket presents credentials to OTDS and returns a short-lived ticket.
	OTDSTicket(ctx context.Context, otdsPath, username, password string) (string, error)
	// OTDSLogin redeems an OTDS ticket, which makes the server issue the session cookies.
	OTDSLogin(ctx context.Context, ticket string) error
	// XSRFToken returns the anti-forgery cookie value issued by OTDSLogin.
	XSRFToken() (string, error)
	// UseXSRFToken attaches the anti-forgery header to every subsequent request.
	UseXSRFToken(token string)
	// CurrentUser is the lightweight liveness call.
	CurrentUser(ctx context.Context) (Account, error)

	CreateBatch(ctx context.Context, profile, batchName string, format BatchFormat) (Batch, error)
	CreateDocument(ctx context.Context, batchID, documentClass string) (string, error)
	AttachLooseFiles(ctx context.Context, batchID string, files []string) error
	AttachDocumentFiles(ctx context.Context, batchID, documentID string, files []string) error
	BreakOperation(ctx context.Context, batchID, operationID, errorMessage, errorDetails string) error
	CloseOperation(ctx context.Context, batchID, operationID string) error
	IsImportDone(ctx context.Context, batchID string) (bool, error)
	DocumentClasses(ctx context.Context, profile string) ([]string, error)
	DeleteBatch(ctx context.Context, batchID string) error

	// Close releases idle connections held by the session's HTTP client.
	Close()
}
