package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	apperr "occingest/cli/internal/errors"
	"occingest/cli/internal/httperrors"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// DefaultTimeout bounds every call that does not carry an upload payload.
// It matches the stock HTTP client timeout Capture Center deployments are tuned for.
const DefaultTimeout = 100 * time.Second

// DefaultMillisecondsPerMegabyte is the default upload time budget.
const DefaultMillisecondsPerMegabyte = 2000

// xsrfHeader carries the anti-forgery token on every call after login.
const xsrfHeader = "X-XSRF-TOKEN"

// Options tunes an HTTP client.
type Options struct {
	// DefaultTimeout applies to metadata calls and is the floor for upload calls.
	DefaultTimeout time.Duration
	// MillisecondsPerMegabyte extends the timeout of upload calls.
	MillisecondsPerMegabyte int
	// Filesystem is where upload paths are opened. Defaults to the OS root.
	Filesystem billy.Filesystem
	// Transport overrides the HTTP transport (proxies, custom TLS).
	Transport http.RoundTripper
}

// HTTP implements API over the Capture Center REST endpoints.
// It owns the cookie jar holding the session cookies issued at login.
type HTTP struct {
	// baseURL is "<server>/api/v1/"; relative request paths resolve against it
	baseURL *url.URL
	// client has no global timeout; every call gets its own deadline
	client *http.Client
	jar    http.CookieJar
	fs     billy.Filesystem

	defaultTimeout time.Duration
	msPerMB        int
	// xsrfToken is sent as X-XSRF-TOKEN once login completed
	xsrfToken string
}

// newHTTP creates a new HTTP client with an empty cookie jar.
func newHTTP(server string, opts Options) (*HTTP, error) {
	base, err := BaseURL(server)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultTimeout
	}
	if opts.MillisecondsPerMegabyte <= 0 {
		opts.MillisecondsPerMegabyte = DefaultMillisecondsPerMegabyte
	}
	if opts.Filesystem == nil {
		opts.Filesystem = osfs.New("/")
	}
	return &HTTP{
		baseURL:        base,
		client:         &http.Client{Jar: jar, Transport: opts.Transport},
		jar:            jar,
		fs:             opts.Filesystem,
		defaultTimeout: opts.DefaultTimeout,
		msPerMB:        opts.MillisecondsPerMegabyte,
	}, nil
}

// BaseURL derives the REST root "<server>/api/v1/" from a server address.
// An address without a scheme is assumed to be HTTPS.
func BaseURL(server string) (*url.URL, error) {
	s := strings.TrimSpace(server)
	if s == "" {
		return nil, apperr.New(apperr.Config, "server address is empty")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return nil, apperr.Wrap(apperr.Config, fmt.Sprintf("invalid server address %q", server), err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/"
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// request describes one remote call.
type request struct {
	method      string
	path        string // relative to baseURL, or absolute
	body        io.Reader
	contentType string
	// timeout of zero means defaultTimeout
	timeout time.Duration
	// errContext labels errors raised by this call
	errContext string
}

// response holds a fully read successful response.
type response struct {
	status int
	header http.Header
	body   []byte
}

// resolve turns a request path into an absolute URL.
func (h *HTTP) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	return h.baseURL.ResolveReference(ref), nil
}

// do sends one request bounded by its own timeout and returns the response body.
// Non-success statuses are translated into service errors; failures without a
// response become transport errors.
func (h *HTTP) do(ctx context.Context, r request) (*response, error) {
	target, err := h.resolve(r.path)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, "invalid request path", err).WithContext(r.errContext)
	}

	timeout := r.timeout
	if timeout <= 0 {
		timeout = h.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, r.method, target.String(), r.body)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, "build request", err).WithContext(r.errContext)
	}
	h.setStandardHeaders(req)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, transportError(err, timeout, r.errContext)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err, timeout, r.errContext)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, translate(resp.StatusCode, resp.Status, body, r.errContext)
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: body}, nil
}

// setStandardHeaders applies the headers every Capture Center call carries.
func (h *HTTP) setStandardHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if h.xsrfToken != "" {
		req.Header.Set(xsrfHeader, h.xsrfToken)
	}
}

// transportError wraps a failure that produced no server response.
func transportError(err error, timeout time.Duration, errContext string) *apperr.E {
	msg := err.Error()
	if httperrors.IsTimeout(err) {
		msg = fmt.Sprintf("no response within %s", timeout)
	}
	return &apperr.E{
		Kind:    apperr.Transport,
		Message: msg,
		ErrorID: apperr.NoErrorID,
		Context: errContext,
		Err:     err,
	}
}

// Close releases idle connections.
func (h *HTTP) Close() {
	h.client.CloseIdleConnections()
}
