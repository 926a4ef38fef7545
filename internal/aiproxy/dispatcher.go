package aiproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/deepgram/aiproxy/internal/logger"
	"github.com/deepgram/aiproxy/internal/metrics"
	"github.com/google/uuid"
)

const (
	eventStreamMediaType = "text/event-stream"
	acceptHeader         = "application/json, " + eventStreamMediaType

	// RequestIDHeader carries the per-dispatch id to the endpoint.
	RequestIDHeader = "X-Request-ID"

	// ErrorTypeRateLimit is the error body type that marks a rate limit
	// regardless of the status code.
	ErrorTypeRateLimit = "rateLimit"

	maxErrorBodySize = 64 * 1024

	modeNone   = "none"
	modeJSON   = "json"
	modeStream = "stream"
)

// Client dispatches requests to one inference endpoint. A Client holds no
// per-call state and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	endpoint   string
	persona    Persona
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client. Do not set a Timeout on it
// unless streams may be cut off: the timeout covers reading the whole body.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithPersona sets the persona sent when a Request leaves it empty.
func WithPersona(persona Persona) Option {
	return func(c *Client) {
		c.persona = persona
	}
}

func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		endpoint:   endpoint,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Dispatch sends req to the endpoint with exactly one HTTP call and folds the
// response into an Outcome. onProgress may be nil; when set it is called with
// every cumulative answer, at least once for a successful JSON response.
//
// Rate limits come back as OutcomeRateLimited. Any other failure is logged and
// returned as OutcomeFallback carrying ApologyMessage. Cancelling ctx aborts
// the call, including a stream in progress.
func (c *Client) Dispatch(ctx context.Context, req Request, onProgress ProgressFunc) Outcome {
	if req.Persona == "" {
		req.Persona = c.persona
	}

	requestID := uuid.New().String()
	log := logger.For(logger.DISPATCH).With().Str("request_id", requestID).Logger()

	log.Debug().
		Int("message_count", len(req.Messages)).
		Str("persona", string(req.Persona)).
		Int("image_count", len(req.ImageData.Images())).
		Msg("Dispatching request to inference endpoint")

	answer, mode, err := c.dispatch(ctx, requestID, req, onProgress)
	if err != nil {
		var rateLimitErr *RateLimitError
		if errors.As(err, &rateLimitErr) {
			log.Warn().Int("status", rateLimitErr.StatusCode).Msg("Inference endpoint rate limited the request")
			metrics.DispatchTotal.WithLabelValues(mode, OutcomeRateLimited.String()).Inc()
			return rateLimited(rateLimitErr)
		}

		log.Error().Err(err).Str("mode", mode).Msg("Error calling inference endpoint")
		metrics.DispatchTotal.WithLabelValues(mode, OutcomeFallback.String()).Inc()
		return fallback(err)
	}

	log.Debug().
		Str("mode", mode).
		Int("content_length", len(answer.Content)).
		Bool("has_thinking", answer.Thinking != "").
		Msg("Inference endpoint answered")
	metrics.DispatchTotal.WithLabelValues(mode, OutcomeAnswer.String()).Inc()
	return answered(answer)
}

func (c *Client) dispatch(ctx context.Context, requestID string, req Request, onProgress ProgressFunc) (AnswerResult, string, error) {
	body, err := json.Marshal(req.wireRequest())
	if err != nil {
		return AnswerResult{}, modeNone, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return AnswerResult{}, modeNone, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", acceptHeader)
	httpReq.Header.Set(RequestIDHeader, requestID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return AnswerResult{}, modeNone, fmt.Errorf("failed to make request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return AnswerResult{}, modeNone, readEndpointError(resp)
	}

	if IsEventStream(resp.Header.Get("Content-Type")) {
		answer, err := Decode(resp.Body, onProgress)
		if err != nil {
			return answer, modeStream, fmt.Errorf("failed to decode event stream: %w", err)
		}
		return answer, modeStream, nil
	}

	defer resp.Body.Close()

	var answer AnswerResult
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return AnswerResult{}, modeJSON, fmt.Errorf("failed to decode response: %w", err)
	}
	if onProgress != nil {
		onProgress(answer)
	}
	return answer, modeJSON, nil
}

// readEndpointError classifies a non-2xx response. A body that is not a JSON
// object counts as an empty one. The type and error fields are read
// independently so a malformed error never hides a rateLimit type.
func readEndpointError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		fields = nil
	}

	var errorType string
	_ = json.Unmarshal(fields["type"], &errorType)
	message := errorMessage(fields["error"])

	if resp.StatusCode == http.StatusTooManyRequests || errorType == ErrorTypeRateLimit {
		return &RateLimitError{StatusCode: resp.StatusCode, Message: message}
	}

	if message == "" {
		message = fmt.Sprintf("HTTP error, status=%d", resp.StatusCode)
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: message}
}

// errorMessage reads an error field that is either a string or an object
// carrying a message string. Anything else has no message.
func errorMessage(raw json.RawMessage) string {
	var message string
	if err := json.Unmarshal(raw, &message); err == nil {
		return message
	}

	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		return nested.Message
	}
	return ""
}

// IsEventStream reports whether a Content-Type header declares an event
// stream.
func IsEventStream(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), eventStreamMediaType)
	}
	return mediaType == eventStreamMediaType
}
