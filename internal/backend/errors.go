// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	apperr "occingest/cli/internal/errors"
)

// errorEnvelope is the structured error body Capture Center returns.
type errorEnvelope struct {
	ErrorInfo *struct {
		ID json.RawMessage `json:"id"`
	} `json:"errorInfo"`
}

// translate converts a non-success response into a service error.
// The message is the reason phrase, or the raw body when the phrase is empty.
// A body that does not parse never hides the HTTP failure; it only yields the
// unknown error identifier.
func translate(statusCode int, status string, body []byte, errContext string) *apperr.E {
	msg := reasonPhrase(statusCode, status)
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", statusCode)
	}
	return &apperr.E{
		Kind:    apperr.Service,
		Message: msg,
		ErrorID: errorID(body),
		Context: errContext,
	}
}

// reasonPhrase extracts "Not Found" from a status line such as "404 Not Found".
func reasonPhrase(statusCode int, status string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(status), strconv.Itoa(statusCode)))
}

// errorID extracts errorInfo.id from a response body.
func errorID(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.ErrorInfo == nil {
		return apperr.UnknownErrorID
	}
	raw := env.ErrorInfo.ID
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil && n != "" {
		return n.String()
	}
	return apperr.UnknownErrorID
}
