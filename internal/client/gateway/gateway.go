// Package gateway is the single path business calls take to the backend.
//
// Every call gets the current access token as a bearer credential. A 401 is
// answered with one refresh through the session (shared with any refresh
// already running) and exactly one retry. A failed refresh surfaces as
// common.ErrSessionExpired; the session has been cleared by then. Any other
// non-2xx response becomes an *APIError.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/certhub/internal/client/authapi"
	"github.com/dmitrijs2005/certhub/internal/common"
	"github.com/dmitrijs2005/certhub/internal/logging"
	"github.com/dmitrijs2005/certhub/internal/netx"
	"github.com/google/uuid"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultFileField = "file"
)

// Session is what the gateway needs from the session store.
// *session.Store satisfies it.
type Session interface {
	AccessToken() string
	HasRefreshToken() bool
	Refresh(ctx context.Context) error
}

// APIError is a non-success response other than a recoverable 401.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %d %s", e.Status, e.Message)
}

// Request describes a call. The zero value is a GET without a body.
type Request struct {
	Method string
	Body   any
	Header http.Header
	Query  url.Values
}

type Gateway struct {
	baseURL    string
	session    Session
	httpClient *http.Client
	log        logging.Logger
}

type Option func(*Gateway)

func WithHTTPClient(h *http.Client) Option {
	return func(g *Gateway) { g.httpClient = h }
}

func WithLogger(l logging.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

func New(baseURL string, s Session, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    s,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        logging.Discard(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// FileURL is the absolute URL of endpoint, for links that are fetched
// outside the gateway.
func (g *Gateway) FileURL(endpoint string) string {
	return g.baseURL + endpoint
}

// Send performs a JSON call and decodes a successful body into out, which
// may be nil. Empty and 204 bodies are not decoded.
func (g *Gateway) Send(ctx context.Context, endpoint string, req *Request, out any) error {
	if req == nil {
		req = &Request{}
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body []byte
	contentType := ""
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = b
		contentType = common.ContentTypeJSON
	}

	target := g.baseURL + endpoint
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}

	return g.do(ctx, call{method: method, url: target, body: body, contentType: contentType, header: req.Header}, out)
}

// UploadFile posts content as a multipart form under field ("file" when
// empty). The content type comes from the multipart writer.
func (g *Gateway) UploadFile(ctx context.Context, endpoint, field, filename string, content []byte, out any) error {
	if field == "" {
		field = defaultFileField
	}
	buf, contentType, err := netx.MultipartFile(field, filename, content)
	if err != nil {
		return err
	}
	return g.do(ctx, call{method: http.MethodPost, url: g.baseURL + endpoint, body: buf.Bytes(), contentType: contentType}, out)
}

type call struct {
	method      string
	url         string
	body        []byte
	contentType string
	header      http.Header
	requestID   string
}

func (g *Gateway) do(ctx context.Context, c call, out any) error {
	c.requestID = uuid.NewString()

	status, body, used, err := g.attempt(ctx, c)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		if used == "" && !g.session.HasRefreshToken() {
			return newAPIError(status, body)
		}

		// Skip the refresh when someone else already replaced the token.
		if cur := g.session.AccessToken(); cur == "" || cur == used {
			g.log.Debug(ctx, "access token rejected, refreshing", "url", c.url, "request_id", c.requestID)
			if err := g.session.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if errors.Is(err, common.ErrSessionExpired) {
					return err
				}
				return fmt.Errorf("%w: %w", common.ErrSessionExpired, err)
			}
		}

		status, body, _, err = g.attempt(ctx, c)
		if err != nil {
			return err
		}
	}

	if status < 200 || status > 299 {
		return newAPIError(status, body)
	}

	if out == nil || status == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// attempt sends c once and returns the status, the body and the token it
// carried.
func (g *Gateway) attempt(ctx context.Context, c call) (int, []byte, string, error) {
	var rdr io.Reader
	if c.body != nil {
		rdr = bytes.NewReader(c.body)
	}
	req, err := http.NewRequestWithContext(ctx, c.method, c.url, rdr)
	if err != nil {
		return 0, nil, "", fmt.Errorf("build request: %w", err)
	}

	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.contentType != "" {
		req.Header.Set("Content-Type", c.contentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", common.ContentTypeJSON)
	}
	req.Header.Set(common.RequestIDHeaderName, c.requestID)

	tok := g.session.AccessToken()
	if tok != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+tok)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, nil, tok, fmt.Errorf("%w: %w", common.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, tok, fmt.Errorf("%w: read body: %w", common.ErrNetworkFailure, err)
	}
	return resp.StatusCode, body, tok, nil
}

func newAPIError(status int, body []byte) *APIError {
	msg := authapi.ErrorMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}
