package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	apperr "occingest/cli/internal/errors"
)

// OTDSPath calls GET account/otdsPath.
// It is the first of the three login steps and needs no session.
func (h *HTTP) OTDSPath(ctx context.Context) (string, error) {
	const errContext = "Get OTDS base path from OCC"
	resp, err := h.do(ctx, request{method: http.MethodGet, path: pathOTDSPath, errContext: errContext})
	if err != nil {
		return "", err
	}
	var out struct {
		OTDSPath string `json:"otdsPath"`
	}
	if err := decode(resp.body, &out, errContext); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.OTDSPath) == "" {
		return "", apperr.New(apperr.Service, "empty otdsPath").WithContext(errContext)
	}
	return strings.TrimSpace(out.OTDSPath), nil
}

// OTDSTicket posts { user_name, password } to <otdsPath>/v1/authentication/credentials.
// A relative OTDS path is resolved against the Capture Center base URL.
func (h *HTTP) OTDSTicket(ctx context.Context, otdsPath, username, password string) (string, error) {
	const errContext = "Login to OTDS"
	body, err := json.Marshal(map[string]string{
		"user_name": username,
		"password":  password,
	})
	if err != nil {
		return "", apperr.Wrap(apperr.InvalidInput, "encode credentials", err).WithContext(errContext)
	}

	target, err := url.Parse(otdsCredentialsURL(otdsPath))
	if err != nil {
		return "", apperr.Wrap(apperr.Service, "invalid otdsPath", err).WithContext(errContext)
	}
	if !target.IsAbs() {
		target.Path = "/" + strings.TrimLeft(target.Path, "/")
	}

	resp, err := h.do(ctx, request{
		method:      http.MethodPost,
		path:        target.String(),
		body:        bytes.NewReader(body),
		contentType: "application/json",
		errContext:  errContext,
	})
	if err != nil {
		return "", err
	}
	var out struct {
		Ticket string `json:"ticket"`
	}
	if err := decode(resp.body, &out, errContext); err != nil {
		return "", err
	}
	if out.Ticket == "" {
		return "", apperr.New(apperr.Service, "no ticket in response").WithContext(errContext)
	}
	return out.Ticket, nil
}

// OTDSLogin posts the form-encoded OTDSTicket to account/otdsLogin.
// The response sets the session cookies, including the anti-forgery cookie.
func (h *HTTP) OTDSLogin(ctx context.Context, ticket string) error {
	form := url.Values{"OTDSTicket": {ticket}}
	_, err := h.do(ctx, request{
		method:      http.MethodPost,
		path:        pathOTDSLogin,
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
		errContext:  "OCC login",
	})
	return err
}

// decode unmarshals a JSON response body, labelling failures with the call's context.
func decode(body []byte, v any, errContext string) error {
	if err := json.Unmarshal(body, v); err != nil {
		var syntaxErr *json.SyntaxError
		msg := "malformed response"
		if errors.As(err, &syntaxErr) {
			msg = "response is not JSON"
		}
		return &apperr.E{Kind: apperr.Service, Message: msg, ErrorID: apperr.UnknownErrorID, Context: errContext, Err: err}
	}
	return nil
}
