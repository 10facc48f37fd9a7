package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"meddoc/internal/config"
	"meddoc/internal/logging"
)

const (
	jsonResponseType      = "json_object"
	requestTemperature    = 0.1
	defaultHTTPTimeout    = 30 * time.Second
	defaultRetryBaseDelay = 2 * time.Second
	defaultRetryMaxDelay  = 60 * time.Second
	defaultRetryAttempts  = 5
	defaultRateInterval   = 6 * time.Second
	defaultExcerptChars   = 3000
	maxResponseBytes      = 4 << 20
)

// Config captures the settings required to talk to the chat completion
// endpoint.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Referer      string
	Title        string
	Timeout      time.Duration
	MaxRetries   int
	RetryBase    time.Duration
	RetryMax     time.Duration
	RateLimit    time.Duration
	ExcerptChars int
}

// FromConfig converts the resolved application settings.
func FromConfig(cfg config.ClassifierConfig) Config {
	return Config{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		Model:        cfg.Model,
		Referer:      cfg.Referer,
		Title:        cfg.Title,
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBase:    cfg.RetryBase,
		RetryMax:     cfg.RetryMax,
		RateLimit:    cfg.RateLimit,
		ExcerptChars: cfg.ExcerptChars,
	}
}

// Client classifies documents through an OpenAI-compatible chat completion
// API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	gate       *RateGate
	sleeper    func(context.Context, time.Duration) error
	extract    func(path string, limit int) (string, error)
	categories string
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRateGate replaces the gate built from Config.RateLimit. Clients
// sharing one endpoint should share one gate.
func WithRateGate(gate *RateGate) Option {
	return func(c *Client) {
		c.gate = gate
	}
}

// WithSleeper overrides how retry sleeps are performed.
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// WithExtractor overrides excerpt extraction.
func WithExtractor(extract func(path string, limit int) (string, error)) Option {
	return func(c *Client) {
		if extract != nil {
			c.extract = extract
		}
	}
}

// WithCategories sets the category list offered to the model, usually
// taxonomy.Catalog.PromptHint.
func WithCategories(hint string) Option {
	return func(c *Client) {
		c.categories = hint
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a classifier client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultRetryAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBaseDelay
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = defaultRetryMaxDelay
	}
	if cfg.RateLimit < 0 {
		cfg.RateLimit = defaultRateInterval
	}
	if cfg.ExcerptChars <= 0 {
		cfg.ExcerptChars = defaultExcerptChars
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		sleeper:    sleepContext,
		extract:    Excerpt,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.gate == nil {
		client.gate = NewRateGate(cfg.RateLimit)
	}
	return client
}

// Classify extracts an excerpt from the file at path and asks the model to
// classify it. A readable HTTP answer always yields a Result, possibly
// FallbackResult; errors are reserved for transport and status failures.
func (c *Client) Classify(ctx context.Context, path string) (Result, error) {
	excerpt, err := c.extract(path, c.cfg.ExcerptChars)
	if err != nil {
		c.logger.Debug("excerpt unavailable; classifying by name",
			logging.Path(path),
			logging.Error(err),
		)
		excerpt = ""
	}
	return c.ClassifyText(ctx, filepath.Base(path), excerpt)
}

// ClassifyText classifies a document from its name and excerpt.
func (c *Client) ClassifyText(ctx context.Context, filename, excerpt string) (Result, error) {
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "user", Content: BuildPrompt(filename, excerpt, c.categories)},
		},
		Temperature:    requestTemperature,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
	content, err := c.completionContentWithRetry(ctx, payload)
	if err != nil {
		return Result{}, err
	}
	result := ParseAnswer(content)
	if result.Fallback {
		c.logger.Warn("classifier answer unreadable; using fallback",
			logging.String("file", filename),
			logging.String("answer_snippet", summarizeSnippet(content)),
			logging.String(logging.FieldEventType, "classifier_fallback"),
			logging.String(logging.FieldErrorHint, "check the configured model follows JSON instructions"),
			logging.String(logging.FieldImpact, "document is queued as unclassified"),
		)
	}
	return result, nil
}

// HealthCheck issues a minimal request to verify the endpoint and model
// respond. It bypasses retries but honours the rate gate.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.BaseURL == "" {
		return errors.New("classifier health: base url required")
	}
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "user", Content: "Respond with {\"ok\":true}"},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
	if err := c.gate.Wait(ctx); err != nil {
		return err
	}
	if _, err := c.sendChatRequestOnce(ctx, payload); err != nil {
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) {
			return fmt.Errorf("classifier health: %w", &StatusError{StatusCode: statusErr.StatusCode, Body: statusErr.Body})
		}
		return fmt.Errorf("classifier health: %w", err)
	}
	return nil
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *Client) completionContentWithRetry(ctx context.Context, payload chatCompletionRequest) (string, error) {
	attempts := c.cfg.MaxRetries
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.gate.Wait(ctx); err != nil {
			return "", err
		}
		completion, err := c.sendChatRequestOnce(ctx, payload)
		if err == nil {
			if len(completion.Choices) == 0 {
				return "", nil
			}
			return completion.Choices[0].Message.Content, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		var retryAfter time.Duration
		var statusErr *httpStatusError
		switch {
		case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests:
			retryAfter = statusErr.RetryAfter
		case statusErr != nil:
			return "", &StatusError{StatusCode: statusErr.StatusCode, Body: statusErr.Body}
		case isConnectionError(err):
		default:
			return "", err
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		delay := c.backoffDelay(attempt)
		if retryAfter > delay {
			delay = min(retryAfter, c.cfg.RetryMax)
		}
		c.logger.Info("classifier request retry",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if err := c.sleeper(ctx, delay); err != nil {
			return "", err
		}
	}

	var statusErr *httpStatusError
	if errors.As(lastErr, &statusErr) {
		return "", &RateLimitError{Attempts: attempts, RetryAfter: statusErr.RetryAfter}
	}
	return "", &TransportError{Attempts: attempts, Err: lastErr}
}

func (c *Client) sendChatRequestOnce(ctx context.Context, payload chatCompletionRequest) (chatCompletionResponse, error) {
	var completion chatCompletionResponse
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "chat", "completions")
	if err != nil {
		return completion, fmt.Errorf("classifier request: build url: %w", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return completion, fmt.Errorf("classifier request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return completion, fmt.Errorf("classifier request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return completion, fmt.Errorf("classifier request: http error (timeout=%s): %w", c.cfg.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return completion, fmt.Errorf("classifier request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return completion, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}
	completion, err = decodeEnvelope(body)
	if err != nil {
		return completion, err
	}
	if completion.Error != nil {
		return completion, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(completion.Error.Message),
		}
	}
	return completion, nil
}

// isConnectionError reports failures to reach the endpoint or receive a
// complete answer in time.
func isConnectionError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.cfg.RetryBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.cfg.RetryMax {
			return c.cfg.RetryMax
		}
	}
	return min(delay, c.cfg.RetryMax)
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay, true
		}
	}
	return 0, false
}
