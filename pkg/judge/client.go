package judge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	judgeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lumen",
		Subsystem: "judge",
		Name:      "run_duration_seconds",
		Help:      "Duration of judge execution round-trips including polling",
	}, []string{"language"})

	judgeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lumen",
		Subsystem: "judge",
		Name:      "run_failures_total",
		Help:      "Number of failed judge executions",
	}, []string{"language", "reason"})

	judgePollAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lumen",
		Subsystem: "judge",
		Name:      "poll_attempts",
		Help:      "Poll attempts needed before a submission reached a terminal status",
		Buckets:   []float64{1, 2, 3, 5, 10, 20, 30},
	})
)

// ErrUnsupportedLanguage indicates the requested language has no backend id.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// ErrPollTimeout indicates the judge never reached a terminal status within
// the configured attempt budget. Student code timing out inside the sandbox is
// reported through the result status instead, never through this error.
var ErrPollTimeout = errors.New("judge polling timed out")

// UpstreamError carries the raw judge error body for diagnosis.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("judge returned status %d: %s", e.StatusCode, e.Body)
}

// Judge0 status identifiers below which a submission is still pending.
const (
	statusInQueue    = 1
	statusProcessing = 2
)

// RunRequest describes one (source, language, stdin) triple to execute.
// Stdin may be empty; empty is a valid value distinct from absent input.
type RunRequest struct {
	Source         string
	Language       string
	Stdin          string
	ExpectedOutput *string
}

// Result is the normalized outcome of a judge execution, base64 fields decoded.
type Result struct {
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compile_output"`
	Message       string `json:"message"`
	Status        string `json:"status"`
	StatusID      int    `json:"status_id"`
	Time          string `json:"time"`
	Memory        int    `json:"memory"`
	Passed        *bool  `json:"passed"`
	DurationMs    int64  `json:"duration_ms"`
}

// Runner executes one code run against a judge backend.
type Runner interface {
	Run(ctx context.Context, req RunRequest) (Result, error)
}

// Config holds client construction options.
type Config struct {
	BaseURL      string
	APIKey       string
	PollInterval time.Duration
	PollAttempts int
	HTTPClient   *http.Client
	Logger       zerolog.Logger
}

// Client talks to a Judge0-compatible execution service over HTTP.
type Client struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	pollAttempts int
	http         *http.Client
	logger       zerolog.Logger
	tracer       trace.Tracer
}

// NewClient builds a judge client from the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("judge base url is required")
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 30
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		pollInterval: cfg.PollInterval,
		pollAttempts: cfg.PollAttempts,
		http:         httpClient,
		logger:       cfg.Logger.With().Str("component", "judge_client").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/lumen-lms-api/pkg/judge"),
	}, nil
}

type submitPayload struct {
	SourceCode     string  `json:"source_code"`
	LanguageID     int     `json:"language_id"`
	Stdin          string  `json:"stdin"`
	ExpectedOutput *string `json:"expected_output"`
	CPUTimeLimit   float64 `json:"cpu_time_limit"`
	MemoryLimit    int     `json:"memory_limit"`
	WallTimeLimit  float64 `json:"wall_time_limit"`
}

type submissionPayload struct {
	Token  string `json:"token"`
	Status struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Message       *string `json:"message"`
	Time          string  `json:"time"`
	Memory        int     `json:"memory"`
}

// Run submits the request, polls until the returned status is terminal, and
// returns the decoded result. When ExpectedOutput is set, Passed is computed
// by trimmed string equality against the decoded stdout.
func (c *Client) Run(parent context.Context, req RunRequest) (Result, error) {
	languageID, ok := LanguageID(req.Language)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, req.Language)
	}

	ctx, span := c.tracer.Start(parent, "judge.run", trace.WithAttributes(
		attribute.String("judge.language", req.Language),
	))
	defer span.End()

	start := time.Now()

	token, err := c.submit(ctx, req, languageID)
	if err != nil {
		judgeFailures.WithLabelValues(req.Language, "submit").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit_failed")
		return Result{}, err
	}

	payload, attempts, err := c.pollUntilTerminal(ctx, token)
	judgeDuration.WithLabelValues(req.Language).Observe(time.Since(start).Seconds())
	judgePollAttempts.Observe(float64(attempts))
	if err != nil {
		reason := "poll"
		if errors.Is(err, ErrPollTimeout) {
			reason = "timeout"
		}
		judgeFailures.WithLabelValues(req.Language, reason).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		return Result{}, err
	}

	result := newResult(payload, req.ExpectedOutput)
	result.DurationMs = time.Since(start).Milliseconds()

	span.SetAttributes(attribute.String("judge.status", result.Status))
	return result, nil
}

func (c *Client) submit(ctx context.Context, req RunRequest, languageID int) (string, error) {
	expected := req.ExpectedOutput
	if expected != nil {
		encoded := base64.StdEncoding.EncodeToString([]byte(*expected))
		expected = &encoded
	}

	body, err := json.Marshal(submitPayload{
		SourceCode:     base64.StdEncoding.EncodeToString([]byte(req.Source)),
		LanguageID:     languageID,
		Stdin:          base64.StdEncoding.EncodeToString([]byte(req.Stdin)),
		ExpectedOutput: expected,
		CPUTimeLimit:   2,
		MemoryLimit:    128000,
		WallTimeLimit:  5,
	})
	if err != nil {
		return "", fmt.Errorf("marshal judge submission: %w", err)
	}

	url := fmt.Sprintf("%s/submissions?base64_encoded=true&wait=false", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build judge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.applyAuth(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("submit to judge: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var payload submissionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("decode judge submit response: %w", err)
	}

	if payload.Token == "" {
		return "", fmt.Errorf("judge returned no submission token")
	}

	return payload.Token, nil
}

func (c *Client) pollUntilTerminal(ctx context.Context, token string) (submissionPayload, int, error) {
	var lastErr error

	for attempt := 1; attempt <= c.pollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return submissionPayload{}, attempt, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		payload, err := c.fetch(ctx, token)
		if err != nil {
			// Transient poll failures are tolerated until the attempt budget runs out.
			lastErr = err
			c.logger.Warn().Err(err).Str("token", token).Int("attempt", attempt).Msg("judge poll failed")
			continue
		}

		if isTerminal(payload.Status.ID) {
			return payload, attempt, nil
		}
	}

	// One final fetch before giving up.
	payload, err := c.fetch(ctx, token)
	if err == nil && isTerminal(payload.Status.ID) {
		return payload, c.pollAttempts + 1, nil
	}

	if lastErr != nil {
		return submissionPayload{}, c.pollAttempts + 1, fmt.Errorf("%w: last poll error: %v", ErrPollTimeout, lastErr)
	}

	return submissionPayload{}, c.pollAttempts + 1, ErrPollTimeout
}

func (c *Client) fetch(ctx context.Context, token string) (submissionPayload, error) {
	url := fmt.Sprintf("%s/submissions/%s?base64_encoded=true", c.baseURL, token)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return submissionPayload{}, fmt.Errorf("build judge fetch request: %w", err)
	}
	c.applyAuth(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return submissionPayload{}, fmt.Errorf("fetch judge submission: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return submissionPayload{}, &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var payload submissionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return submissionPayload{}, fmt.Errorf("decode judge fetch response: %w", err)
	}

	return payload, nil
}

func (c *Client) applyAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-Auth-Token", c.apiKey)
	}
}

func isTerminal(statusID int) bool {
	return statusID != statusInQueue && statusID != statusProcessing
}

func newResult(payload submissionPayload, expected *string) Result {
	result := Result{
		Stdout:        decodeField(payload.Stdout),
		Stderr:        decodeField(payload.Stderr),
		CompileOutput: decodeField(payload.CompileOutput),
		Message:       decodeField(payload.Message),
		Status:        payload.Status.Description,
		StatusID:      payload.Status.ID,
		Time:          payload.Time,
		Memory:        payload.Memory,
	}

	if expected != nil {
		passed := strings.TrimSpace(result.Stdout) == strings.TrimSpace(*expected)
		result.Passed = &passed
	}

	return result
}

func decodeField(value *string) string {
	if value == nil {
		return ""
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(*value))
	if err != nil {
		// Some deployments return plain text despite base64_encoded=true.
		return *value
	}

	return string(decoded)
}
