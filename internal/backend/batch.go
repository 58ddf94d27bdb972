package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	apperr "occingest/cli/internal/errors"
)

// CreateBatch calls POST batches and returns the batch and its open operation.
func (h *HTTP) CreateBatch(ctx context.Context, profile, batchName string, format BatchFormat) (Batch, error) {
	const errContext = "Creating batch"
	resp, err := h.do(ctx, request{
		method:     http.MethodPost,
		path:       batchesPath(profile, batchName, format),
		errContext: errContext,
	})
	if err != nil {
		return Batch{}, err
	}
	var b Batch
	if err := decode(resp.body, &b, errContext); err != nil {
		return Batch{}, err
	}
	if b.ID == "" || b.OperationID == "" {
		return Batch{}, apperr.New(apperr.Service, "response lacks batchID or currentOperationID").WithContext(errContext)
	}
	return b, nil
}

// CreateDocument adds an input document to a document-mode batch.
// An empty documentClass leaves classification to the profile.
func (h *HTTP) CreateDocument(ctx context.Context, batchID, documentClass string) (string, error) {
	const errContext = "Creating document"
	resp, err := h.do(ctx, request{
		method:     http.MethodPost,
		path:       inputDocumentsPath(batchID, documentClass),
		errContext: errContext,
	})
	if err != nil {
		return "", err
	}
	var out struct {
		ID string `json:"inputDocumentID"`
	}
	if err := decode(resp.body, &out, errContext); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", apperr.New(apperr.Service, "response lacks inputDocumentID").WithContext(errContext)
	}
	return out.ID, nil
}

// AttachLooseFiles uploads every file in one multipart call to the batch root.
func (h *HTTP) AttachLooseFiles(ctx context.Context, batchID string, files []string) error {
	return h.attachFiles(ctx, looseFilesPath(batchID), files)
}

// AttachDocumentFiles uploads files to one input document.
func (h *HTTP) AttachDocumentFiles(ctx context.Context, batchID, documentID string, files []string) error {
	return h.attachFiles(ctx, documentFilesPath(batchID, documentID), files)
}

// BreakOperation moves an operation into the broken state so the server's
// cleanup service removes the batch.
func (h *HTTP) BreakOperation(ctx context.Context, batchID, operationID, errorMessage, errorDetails string) error {
	body, err := json.Marshal(map[string]string{
		"errorMessage": errorMessage,
		"errorDetails": errorDetails,
	})
	if err != nil {
		return apperr.Wrap(apperr.InvalidInput, "encode break reason", err).WithContext("Breaking batch")
	}
	_, err = h.do(ctx, request{
		method:      http.MethodPost,
		path:        operationPath(batchID, operationID, "breakAction"),
		body:        bytes.NewReader(body),
		contentType: "application/json",
		errContext:  "Breaking batch",
	})
	return err
}

// CloseOperation submits the batch for recognition.
func (h *HTTP) CloseOperation(ctx context.Context, batchID, operationID string) error {
	_, err := h.do(ctx, request{
		method:     http.MethodPost,
		path:       operationPath(batchID, operationID, "closeAndSubmitAction"),
		errContext: "Closing batch",
	})
	return err
}

// IsImportDone asks whether the server finished importing the batch.
// Older deployments report the flag as the string "True".
func (h *HTTP) IsImportDone(ctx context.Context, batchID string) (bool, error) {
	const errContext = "Reading batch creation state"
	resp, err := h.do(ctx, request{method: http.MethodGet, path: batchCreationStatePath(batchID), errContext: errContext})
	if err != nil {
		return false, err
	}
	var out struct {
		IsImportDone json.RawMessage `json:"isImportDone"`
	}
	if err := decode(resp.body, &out, errContext); err != nil {
		return false, err
	}
	return parseFlag(out.IsImportDone), nil
}

// parseFlag accepts a JSON boolean or a boolean-like string.
func parseFlag(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, err := strconv.ParseBool(strings.TrimSpace(s))
		return err == nil && v
	}
	return false
}

// DocumentClasses lists the document class names configured for a profile.
func (h *HTTP) DocumentClasses(ctx context.Context, profile string) ([]string, error) {
	const errContext = "Retrieving all document classes"
	resp, err := h.do(ctx, request{method: http.MethodGet, path: documentClassesPath(profile), errContext: errContext})
	if err != nil {
		return nil, err
	}
	var out struct {
		Entries []struct {
			Name string `json:"documentClassName"`
		} `json:"entries"`
	}
	if err := decode(resp.body, &out, errContext); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(out.Entries))
	for _, e := range out.Entries {
		names = append(names, e.Name)
	}
	return names, nil
}

// DeleteBatch removes a batch from the server.
func (h *HTTP) DeleteBatch(ctx context.Context, batchID string) error {
	_, err := h.do(ctx, request{
		method:     http.MethodDelete,
		path:       batchPath(batchID),
		errContext: "Deleting batch " + batchID,
	})
	return err
}
