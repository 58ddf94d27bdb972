// Package occtest provides an in-process fake of the Capture Center REST API.
// The fake records every call in order, enforces the session cookie and the
// anti-forgery header after login, and lets tests inject failures per endpoint.
package occtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// Endpoint names one remote operation of the protocol.
type Endpoint string

const (
	OTDSPath           Endpoint = "otdsPath"
	OTDSCredentials    Endpoint = "otdsCredentials"
	OTDSLogin          Endpoint = "otdsLogin"
	CurrentUser        Endpoint = "currentUser"
	CreateBatch        Endpoint = "createBatch"
	CreateDocument     Endpoint = "createDocument"
	AttachLooseFiles   Endpoint = "attachLooseFiles"
	AttachDocumentFile Endpoint = "attachDocumentFiles"
	BreakOperation     Endpoint = "breakOperation"
	CloseOperation     Endpoint = "closeOperation"
	BatchCreationState Endpoint = "batchCreationState"
	DocumentClasses    Endpoint = "documentClasses"
	DeleteBatch        Endpoint = "deleteBatch"
)

const (
	sessionCookie = "JSESSIONID"
	xsrfCookie    = "XSRF-TOKEN"
)

// Part is one uploaded multipart file.
type Part struct {
	Field       string
	Filename    string
	ContentType string
	Size        int
}

// Call is one recorded request.
type Call struct {
	Endpoint   Endpoint
	Method     string
	Path       string
	Query      url.Values
	XSRF       string
	Form       url.Values
	JSON       map[string]string
	Parts      []Part
	BatchID    string
	DocumentID string
}

// Failure makes an endpoint answer with a canned error.
type Failure struct {
	Status int
	Body   string
	// Delay holds the response back, e.g. to trigger client timeouts.
	Delay time.Duration
}

// Server is a fake Capture Center with an OTDS endpoint under /otdsws.
type Server struct {
	*httptest.Server

	Username string
	Password string

	mu              sync.Mutex
	calls           []Call
	failures        map[Endpoint]Failure
	ticket          string
	sessions        map[string]bool
	xsrf            string
	nextID          int
	importDone      any
	documentClasses []string
	logins          int
}

// NewServer starts a fake server accepting the given credentials.
// Call Close when done.
func NewServer(username, password string) *Server {
	s := &Server{
		Username:        username,
		Password:        password,
		failures:        map[Endpoint]Failure{},
		sessions:        map[string]bool{},
		importDone:      "True",
		documentClasses: []string{"Invoice", "Contract"},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/account/otdsPath", s.handle(OTDSPath, false, s.otdsPath))
	mux.HandleFunc("POST /otdsws/v1/authentication/credentials", s.handle(OTDSCredentials, false, s.credentials))
	mux.HandleFunc("POST /api/v1/account/otdsLogin", s.handle(OTDSLogin, false, s.otdsLogin))
	mux.HandleFunc("GET /api/v1/account/currentUser", s.handle(CurrentUser, true, s.currentUser))
	mux.HandleFunc("POST /api/v1/batches", s.handle(CreateBatch, true, s.createBatch))
	mux.HandleFunc("POST /api/v1/batches/{batch}/documentFilesInput/inputDocuments", s.handle(CreateDocument, true, s.createDocument))
	mux.HandleFunc("POST /api/v1/batches/{batch}/looseFilesInput/inputFiles", s.handle(AttachLooseFiles, true, s.ok))
	mux.HandleFunc("POST /api/v1/batches/{batch}/documentFilesInput/inputDocuments/{doc}/inputFiles", s.handle(AttachDocumentFile, true, s.ok))
	mux.HandleFunc("POST /api/v1/batches/{batch}/operations/{op}/breakAction", s.handle(BreakOperation, true, s.ok))
	mux.HandleFunc("POST /api/v1/batches/{batch}/operations/{op}/closeAndSubmitAction", s.handle(CloseOperation, true, s.ok))
	mux.HandleFunc("GET /api/v1/batches/{batch}/batchCreationState", s.handle(BatchCreationState, true, s.creationState))
	mux.HandleFunc("GET /api/v1/profiles/{profile}/documentClasses", s.handle(DocumentClasses, true, s.classes))
	mux.HandleFunc("DELETE /api/v1/batches/{batch}", s.handle(DeleteBatch, true, s.ok))
	s.Server = httptest.NewServer(mux)
	return s
}

// Fail makes every subsequent call to ep answer with f.
func (s *Server) Fail(ep Endpoint, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[ep] = f
}

// Recover clears an injected failure.
func (s *Server) Recover(ep Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, ep)
}

// SetImportDone sets the isImportDone value reported by batchCreationState.
func (s *Server) SetImportDone(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.importDone = v
}

// ExpireSessions forgets every issued session, as a server-side timeout would.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = map[string]bool{}
}

// Calls returns a copy of the recorded calls.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Endpoints returns the recorded call sequence.
func (s *Server) Endpoints() []Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Endpoint, 0, len(s.calls))
	for _, c := range s.calls {
		out = append(out, c.Endpoint)
	}
	return out
}

// Count returns how many times ep was called.
func (s *Server) Count(ep Endpoint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Endpoint == ep {
			n++
		}
	}
	return n
}

// Reset clears the call log.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// XSRF returns the anti-forgery token issued by the latest login.
func (s *Server) XSRF() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.xsrf
}

// Logins returns the number of successful otdsLogin calls.
func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, c *Call)

// handle records the call, applies injected failures and session checks, then runs h.
func (s *Server) handle(ep Endpoint, needsSession bool, h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := Call{
			Endpoint:   ep,
			Method:     r.Method,
			Path:       r.URL.Path,
			Query:      r.URL.Query(),
			XSRF:       r.Header.Get("X-XSRF-TOKEN"),
			BatchID:    r.PathValue("batch"),
			DocumentID: r.PathValue("doc"),
		}
		s.readBody(r, &c)

		s.mu.Lock()
		s.calls = append(s.calls, c)
		f, failing := s.failures[ep]
		authorized := s.authorized(r)
		s.mu.Unlock()

		if failing {
			if f.Delay > 0 {
				select {
				case <-time.After(f.Delay):
				case <-r.Context().Done():
					return
				}
			}
			status := f.Status
			if status == 0 {
				status = http.StatusInternalServerError
			}
			w.WriteHeader(status)
			_, _ = io.WriteString(w, f.Body)
			return
		}
		if needsSession && !authorized {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"errorInfo":{"id":"NotAuthenticated"}}`)
			return
		}
		h(w, r, &c)
	}
}

// authorized requires a live session cookie and a matching anti-forgery header.
func (s *Server) authorized(r *http.Request) bool {
	ck, err := r.Cookie(sessionCookie)
	if err != nil || !s.sessions[ck.Value] {
		return false
	}
	return s.xsrf != "" && r.Header.Get("X-XSRF-TOKEN") == s.xsrf
}

func (s *Server) readBody(r *http.Request, c *Call) {
	ct := r.Header.Get("Content-Type")
	switch {
	case ct == "application/x-www-form-urlencoded":
		_ = r.ParseForm()
		c.Form = r.PostForm
	case ct == "application/json":
		var m map[string]string
		if err := json.NewDecoder(r.Body).Decode(&m); err == nil {
			c.JSON = m
		}
	case len(ct) >= len("multipart/form-data") && ct[:len("multipart/form-data")] == "multipart/form-data":
		mr, err := r.MultipartReader()
		if err != nil {
			return
		}
		for {
			p, err := mr.NextPart()
			if err != nil {
				break
			}
			n, _ := io.Copy(io.Discard, p)
			c.Parts = append(c.Parts, Part{
				Field:       p.FormName(),
				Filename:    p.FileName(),
				ContentType: p.Header.Get("Content-Type"),
				Size:        int(n),
			})
		}
	}
}

func (s *Server) id(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return prefix + strconv.Itoa(s.nextID)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) otdsPath(w http.ResponseWriter, r *http.Request, _ *Call) {
	writeJSON(w, map[string]string{"otdsPath": s.URL + "/otdsws"})
}

func (s *Server) credentials(w http.ResponseWriter, r *http.Request, c *Call) {
	if c.JSON["user_name"] != s.Username || c.JSON["password"] != s.Password {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"Invalid credentials"}`)
		return
	}
	ticket := s.id("ticket-")
	s.mu.Lock()
	s.ticket = ticket
	s.mu.Unlock()
	writeJSON(w, map[string]string{"ticket": ticket})
}

func (s *Server) otdsLogin(w http.ResponseWriter, r *http.Request, c *Call) {
	s.mu.Lock()
	valid := s.ticket != "" && c.Form.Get("OTDSTicket") == s.ticket
	s.mu.Unlock()
	if !valid {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"errorInfo":{"id":"InvalidTicket"}}`)
		return
	}
	session := s.id("session-")
	xsrf := s.id("xsrf-")
	s.mu.Lock()
	s.sessions[session] = true
	s.xsrf = xsrf
	s.logins++
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: session, Path: "/", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: xsrfCookie, Value: xsrf, Path: "/"})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request, _ *Call) {
	writeJSON(w, map[string]string{"userName": s.Username, "displayName": "Test User"})
}

func (s *Server) createBatch(w http.ResponseWriter, r *http.Request, c *Call) {
	writeJSON(w, map[string]string{"batchID": s.id("batch-"), "currentOperationID": s.id("op-")})
}

func (s *Server) createDocument(w http.ResponseWriter, r *http.Request, c *Call) {
	writeJSON(w, map[string]string{"inputDocumentID": s.id("doc-")})
}

func (s *Server) creationState(w http.ResponseWriter, r *http.Request, _ *Call) {
	s.mu.Lock()
	v := s.importDone
	s.mu.Unlock()
	writeJSON(w, map[string]any{"isImportDone": v})
}

func (s *Server) classes(w http.ResponseWriter, r *http.Request, _ *Call) {
	s.mu.Lock()
	entries := make([]map[string]string, 0, len(s.documentClasses))
	for _, name := range s.documentClasses {
		entries = append(entries, map[string]string{"documentClassName": name})
	}
	s.mu.Unlock()
	writeJSON(w, map[string]any{"entries": entries})
}

func (s *Server) ok(w http.ResponseWriter, r *http.Request, _ *Call) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "{}")
}
