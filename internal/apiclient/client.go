package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"issue-map/internal/model"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Submission is the multipart payload of a new issue report.
type Submission struct {
	Category    model.Category
	Title       string
	Description string
	Coordinate  model.Coordinate
	Image       model.Image
}

// TransportError means no response was received from the service.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// APIError means the service answered but reported a failure, either with a non-2xx
// status or with an "error" field in a 2xx body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("service answered %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	token   string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the request timeout on a copy of the installed client, so a client
// passed to WithHTTPClient is left untouched.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

// WithToken attaches a bearer token identifying the caller.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	c := &Client{baseURL: u, http: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) ListIssues(ctx context.Context) ([]model.Issue, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/issues"), nil)
	if err != nil {
		return nil, err
	}
	var issues []model.Issue
	if err := c.do(req, "list issues", &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// CreateIssue sends exactly one POST /api/issues.
func (c *Client) CreateIssue(ctx context.Context, s Submission) (*model.Issue, error) {
	body, contentType, err := encodeSubmission(s)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/issues"), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	var created model.Issue
	if err := c.do(req, "create issue", &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) ResolveIssue(ctx context.Context, id int64) error {
	path := "/api/issues/" + strconv.FormatInt(id, 10) + "/resolve"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), nil)
	if err != nil {
		return err
	}
	return c.do(req, "resolve issue", nil)
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

func (c *Client) do(req *http.Request, op string, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	var failure model.ErrorResponse
	_ = json.Unmarshal(data, &failure)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := failure.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if failure.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: failure.Error}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func encodeSubmission(s Submission) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"issue_type", string(s.Category)},
		{"title", s.Title},
		{"description", s.Description},
		{"latitude", strconv.FormatFloat(s.Coordinate.Latitude, 'f', -1, 64)},
		{"longitude", strconv.FormatFloat(s.Coordinate.Longitude, 'f', -1, 64)},
	}
	for _, f := range fields {
		if f[1] == "" && (f[0] == "title" || f[0] == "description") {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	fw, err := mw.CreateFormFile("image", s.Image.Filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(s.Image.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
