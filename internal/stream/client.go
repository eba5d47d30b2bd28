package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"medchat/internal/api"
)

// streamPath is the streaming ask-a-question endpoint.
const streamPath = "/chat/stream"

// readBufferSize is the per-read buffer for the stream body.
const readBufferSize = 4096

// Request describes one ask-a-question call.
type Request struct {
	// PatientID scopes the question to a patient record.
	PatientID string

	// Question is the user's question text.
	Question string

	// ClinicianMode requests clinician-register answers.
	ClinicianMode bool
}

// Client issues streaming ask-a-question calls and decodes the chunked
// response into callbacks.
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    api.HeaderProvider
	logger     *slog.Logger
}

// Option configures the streaming client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. The client should have no
// overall timeout: streams are open-ended and bounded by the caller's
// context instead.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHeaderProvider sets the auth header source.
func WithHeaderProvider(headers api.HeaderProvider) Option {
	return func(c *Client) {
		c.headers = headers
	}
}

// NewClient creates a streaming client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Stream issues the ask-a-question call and decodes the response,
// invoking onChunk for each piece of answer text in arrival order and
// onDone exactly once when the answer completes. It returns once the
// stream ends or errors.
//
// Auth headers are resolved once, before the call; they are not
// re-checked mid-stream. Cancelling ctx terminates the read loop
// cleanly: no callback fires after cancellation and the context error
// is returned.
func (c *Client) Stream(ctx context.Context, req Request, onChunk func(string), onDone func()) error {
	endpoint, err := c.buildURL(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create stream request: %w", err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.headers != nil {
		for k, v := range c.headers.Headers(ctx) {
			httpReq.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return api.NewNetworkError(err, endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Debug("Stream request rejected",
			"endpoint", endpoint,
			"status", resp.StatusCode)
		return api.NewStatusError(resp.StatusCode, body, endpoint)
	}

	if resp.Body == http.NoBody {
		// Terminal case for empty-stream responses.
		onDone()
		return nil
	}

	return c.readLoop(ctx, resp.Body, onChunk, onDone)
}

// readLoop consumes the response body until completion, error, or
// cancellation.
func (c *Client) readLoop(ctx context.Context, body io.Reader, onChunk func(string), onDone func()) error {
	var decoder Decoder
	doneSent := false
	buf := make([]byte, readBufferSize)

	for {
		n, err := body.Read(buf)

		if n > 0 && ctx.Err() == nil {
			for _, frame := range decoder.Feed(buf[:n]) {
				switch frame.Kind {
				case FrameChunk:
					onChunk(frame.Text)
				case FrameDone:
					if !doneSent {
						doneSent = true
						onDone()
					}
				}
			}
			if decoder.Done() {
				return nil
			}
		}

		if err != nil {
			if ctx.Err() != nil {
				// Caller aborted: terminate without further callbacks.
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				// Stream ended without a completion marker; still signal
				// completion so the UI leaves its loading state.
				if !doneSent {
					onDone()
				}
				return nil
			}
			return fmt.Errorf("stream read failed: %w", err)
		}
	}
}

// buildURL assembles the stream endpoint with its query parameters.
func (c *Client) buildURL(req Request) (string, error) {
	u, err := url.Parse(c.baseURL + streamPath)
	if err != nil {
		return "", fmt.Errorf("invalid stream endpoint: %w", err)
	}

	query := u.Query()
	query.Set("patient_id", req.PatientID)
	query.Set("question", req.Question)
	if req.ClinicianMode {
		query.Set("clinician_mode", "true")
	}
	u.RawQuery = query.Encode()

	return u.String(), nil
}
