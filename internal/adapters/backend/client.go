// Package backend provides the HTTP adapter for the document QA service.
// Clean Architecture: Adapter implementing ports.Backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/0xcro3dile/docqa-go/internal/domain/apierr"
	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

const (
	DefaultBaseURL       = "http://localhost:8000/api"
	DefaultChatTimeout   = 30 * time.Second
	DefaultUploadTimeout = 60 * time.Second // large PDFs
	DefaultHealthTimeout = 5 * time.Second

	maxErrorBody = 64 << 10
)

// Client implements ports.Backend over the service's REST API.
// Single-attempt, fail-fast: no retries, no caching.
type Client struct {
	baseURL       string
	healthURL     string
	client        *http.Client
	chatTimeout   time.Duration
	uploadTimeout time.Duration
	healthTimeout time.Duration
	logger        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithTimeouts overrides the per-endpoint timeouts. Zero values keep the default.
func WithTimeouts(chat, upload, health time.Duration) Option {
	return func(c *Client) {
		if chat > 0 {
			c.chatTimeout = chat
		}
		if upload > 0 {
			c.uploadTimeout = upload
		}
		if health > 0 {
			c.healthTimeout = health
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a backend client. An empty baseURL falls back to the
// local development address; an empty healthURL is derived from baseURL.
func NewClient(baseURL, healthURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	healthURL = strings.TrimRight(healthURL, "/")
	if healthURL == "" {
		healthURL = HealthBase(baseURL)
	}
	c := &Client{
		baseURL:       baseURL,
		healthURL:     healthURL,
		client:        &http.Client{},
		chatTimeout:   DefaultChatTimeout,
		uploadTimeout: DefaultUploadTimeout,
		healthTimeout: DefaultHealthTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HealthBase derives the health endpoint root from an API base URL.
// The service mounts its API under /api but serves /health at the root.
func HealthBase(baseURL string) string {
	return strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/api")
}

// BaseURL returns the normalized API base.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// uploadResponse is the /upload success body.
type uploadResponse struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
	Status   string `json:"status"`
}

// chatRequest is the /chat request body.
type chatRequest struct {
	Question string `json:"question"`
}

// chatResponse is the /chat success body.
type chatResponse struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
	Error    string   `json:"error,omitempty"`
}

// pdfsResponse is the /pdfs success body.
type pdfsResponse struct {
	PDFs []string `json:"pdfs"`
}

// healthResponse is the /health body.
type healthResponse struct {
	Status string `json:"status"`
}

// UploadDocument sends the file as multipart field "file".
func (c *Client) UploadDocument(ctx context.Context, file io.Reader, filename, mimeType string) (*entities.UploadResult, error) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	part, err := writer.CreatePart(fileHeader(filename, mimeType))
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	// Only the multipart writer knows the boundary.
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out uploadResponse
	if err := c.do(req, &out); err != nil {
		c.logger.Error("upload failed",
			"filename", filename,
			"kind", apierr.KindOf(err).String(),
			"error", err,
		)
		return nil, err
	}

	if out.Chunks < 0 {
		out.Chunks = 0
	}
	return &entities.UploadResult{
		Filename: out.Filename,
		Chunks:   out.Chunks,
		Status:   out.Status,
	}, nil
}

// SendChatMessage posts a question to /chat.
func (c *Client) SendChatMessage(ctx context.Context, question string) (*entities.ChatReply, error) {
	payload, err := json.Marshal(chatRequest{Question: question})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out chatResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}

	sources := out.Sources
	if sources == nil {
		sources = []string{}
	}
	return &entities.ChatReply{
		Question: out.Question,
		Answer:   out.Answer,
		Sources:  sources,
		Error:    out.Error,
	}, nil
}

// ListUploadedDocuments fetches the indexed document names.
func (c *Client) ListUploadedDocuments(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pdfs", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	var out pdfsResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if out.PDFs == nil {
		return []string{}, nil
	}
	return out.PDFs, nil
}

// CheckHealth probes {health}/health. Any failure maps to false.
func (c *Client) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL+"/health", nil)
	if err != nil {
		c.logger.Warn("backend connection test failed", "error", err)
		return false
	}

	var out healthResponse
	if err := c.do(req, &out); err != nil {
		c.logger.Warn("backend connection test failed", "url", c.healthURL, "error", err)
		return false
	}
	return out.Status == "up"
}

// do executes req and decodes a 2xx JSON body into out.
// Errors are normalized: no response is Transport, non-2xx is Server.
func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return apierr.NewTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apierr.FromResponse(resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if req.Context().Err() != nil {
			return apierr.NewTransport(err)
		}
		return &apierr.Error{
			Kind:    apierr.Server,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("Server error: %d (malformed response)", resp.StatusCode),
			Err:     fmt.Errorf("decoding response: %w", err),
		}
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// fileHeader builds the part header for the "file" field with the declared MIME type.
func fileHeader(filename, mimeType string) textproto.MIMEHeader {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", mimeType)
	return h
}
