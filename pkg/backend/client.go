package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/jwalitptl/care-portal/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/logger"
	"github.com/jwalitptl/care-portal/pkg/metrics"
)

const maxErrorBody = 64 << 10

type Config struct {
	BaseURL         string
	Timeout         time.Duration
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// Client talks to the hospital REST backend. Calls are single attempt; a
// circuit breaker fails fast while the backend keeps failing.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *circuitbreaker.CircuitBreaker
	metrics *metrics.Metrics
	log     *logger.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if u, err := url.Parse(base); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend base URL %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 10 * time.Second
	}

	c := &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
		log:     logger.Nop(),
	}
	c.cb = circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "hospital-backend",
		MaxRequests: cfg.BreakerFailures,
		Interval:    time.Minute,
		Timeout:     breakerTimeout,
		IsFailure:   countsAgainstBackend,
	})

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Transport errors and 5xx responses trip the breaker. 4xx are the caller's
// problem and an unreadable 2xx body still means the backend is up.
func countsAgainstBackend(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if apperrors.Is(err, apperrors.ErrTransport) {
		return true
	}
	return apperrors.BackendStatus(err) >= 500
}

// File is one multipart attachment.
type File struct {
	Name        string
	ContentType string
	Content     io.Reader
}

type request struct {
	endpoint    string
	method      string
	path        string
	body        io.Reader
	contentType string
	fallback    string
}

func (c *Client) do(ctx context.Context, s Session, req request, out interface{}) error {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if c.metrics == nil {
			return
		}
		c.metrics.BackendRequests.WithLabelValues(req.endpoint, outcome).Inc()
		c.metrics.BackendLatency.WithLabelValues(req.endpoint).Observe(time.Since(start).Seconds())
	}()

	err := c.cb.Execute(func() error {
		return c.roundTrip(ctx, s, req, out)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		outcome = "breaker_open"
		if c.metrics != nil {
			c.metrics.BreakerOpen.Inc()
		}
		return apperrors.Transport(req.endpoint, err)
	}
	if err != nil {
		outcome = "error"
		c.log.ZL.Warn().
			Err(err).
			Str("endpoint", req.endpoint).
			Str("method", req.method).
			Int("backend_status", apperrors.BackendStatus(err)).
			Msg("backend call failed")
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, s Session, req request, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, req.body)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("build %s request: %w", req.endpoint, err))
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if s.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return apperrors.Transport(req.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apperrors.Server(resp.StatusCode, errorMessage(body, req.fallback))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return apperrors.Decode(req.endpoint, resp.StatusCode, err)
	}
	return nil
}

// errorMessage pulls the backend's `error` or `message` field, else fallback.
func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		var msg string
		if len(payload.Error) > 0 && json.Unmarshal(payload.Error, &msg) == nil && msg != "" {
			return msg
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return fallback
}

func jsonBody(v interface{}) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

type multipartBuilder struct {
	buf bytes.Buffer
	w   *multipart.Writer
	err error
}

func newMultipart() *multipartBuilder {
	m := &multipartBuilder{}
	m.w = multipart.NewWriter(&m.buf)
	return m
}

func (m *multipartBuilder) field(name, value string) {
	if m.err != nil {
		return
	}
	m.err = m.w.WriteField(name, value)
}

func (m *multipartBuilder) file(field string, f File) {
	if m.err != nil {
		return
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(field), escapeQuotes(f.Name)))
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := m.w.CreatePart(h)
	if err != nil {
		m.err = err
		return
	}
	_, m.err = io.Copy(part, f.Content)
}

func (m *multipartBuilder) finish() (io.Reader, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	if err := m.w.Close(); err != nil {
		return nil, "", err
	}
	return &m.buf, m.w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func seg(s string) string {
	return url.PathEscape(s)
}
