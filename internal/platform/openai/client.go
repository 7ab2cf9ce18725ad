package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/spegrid/execreview-backend/internal/platform/ctxutil"
	"github.com/spegrid/execreview-backend/internal/platform/envutil"
	"github.com/spegrid/execreview-backend/internal/platform/httpx"
	"github.com/spegrid/execreview-backend/internal/platform/logger"
)

// Client is the OpenAI API surface the extraction pipeline needs: file uploads
// plus a single Responses API call that reads those files.
type Client interface {
	// UploadFile pushes raw bytes to /v1/files and returns the provider file id.
	UploadFile(ctx context.Context, filename string, data []byte) (string, error)

	// GenerateJSONWithFiles runs one Responses API call with the uploaded files
	// attached to the user turn, in the order given, and returns the output
	// text. The call is never retried: generation is paid and non-idempotent,
	// so a failure surfaces to the caller instead of being re-billed.
	GenerateJSONWithFiles(ctx context.Context, system string, user string, fileIDs []string) (string, error)
}

type Config struct {
	APIKey           string
	BaseURL          string
	Model            string
	Timeout          time.Duration
	ResponsesTimeout time.Duration
	UploadMaxRetries int
}

func ConfigFromEnv() Config {
	timeoutSec := envutil.Int("OPENAI_TIMEOUT_SECONDS", 180)
	responsesSec := envutil.Int("OPENAI_RESPONSES_TIMEOUT_SECONDS", 0)
	if responsesSec <= 0 {
		responsesSec = timeoutSec
		if responsesSec < 600 {
			responsesSec = 600
		}
	}
	return Config{
		APIKey:           envutil.Str("OPENAI_API_KEY", ""),
		BaseURL:          envutil.Str("OPENAI_BASE_URL", "https://api.openai.com"),
		Model:            envutil.Str("OPENAI_MODEL", "gpt-4.1-mini"),
		Timeout:          time.Duration(timeoutSec) * time.Second,
		ResponsesTimeout: time.Duration(responsesSec) * time.Second,
		UploadMaxRetries: envutil.Int("OPENAI_MAX_RETRIES", 4),
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gpt-4.1-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.ResponsesTimeout <= 0 {
		cfg.ResponsesTimeout = 600 * time.Second
	}
	if cfg.UploadMaxRetries < 0 {
		cfg.UploadMaxRetries = 0
	}
	return &client{
		log:             log.With("client", "OpenAIClient"),
		cfg:             cfg,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		responsesClient: &http.Client{Timeout: cfg.ResponsesTimeout},
	}, nil
}

type client struct {
	log             *logger.Logger
	cfg             Config
	httpClient      *http.Client
	responsesClient *http.Client
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// -------------------- Files --------------------

type fileUploadResponse struct {
	ID string `json:"id"`
}

func (c *client) UploadFile(ctx context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty file %q", filename)
	}

	backoff := 1 * time.Second
	for attempt := 0; attempt <= c.cfg.UploadMaxRetries; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		resp, raw, err := c.uploadOnce(ctx, filename, data)
		if err == nil {
			var out fileUploadResponse
			if uErr := json.Unmarshal(raw, &out); uErr != nil {
				return "", fmt.Errorf("openai decode error: %w", uErr)
			}
			if strings.TrimSpace(out.ID) == "" {
				return "", fmt.Errorf("openai file upload returned no id")
			}
			return out.ID, nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.cfg.UploadMaxRetries {
			return "", err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI file upload retrying",
			"file", filename,
			"attempt", attempt+1,
			"max_retries", c.cfg.UploadMaxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}

	return "", errors.New("unreachable retry loop")
}

func (c *client) uploadOnce(ctx context.Context, filename string, data []byte) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("purpose", "assistants"); err != nil {
		return nil, nil, err
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), "POST", c.cfg.BaseURL+"/v1/files", &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.finish(req, c.httpClient)
}

// -------------------- Responses --------------------

type responsesRequest struct {
	Model string `json:"model"`
	Input []struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	} `json:"input"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

func extractOutputText(resp responsesResponse) string {
	var out strings.Builder
	for _, item := range resp.Output {
		if item.Type == "message" && item.Role == "assistant" {
			for _, c := range item.Content {
				if c.Type == "output_text" && c.Text != "" {
					out.WriteString(c.Text)
				}
			}
		}
	}
	return out.String()
}

func (c *client) GenerateJSONWithFiles(ctx context.Context, system string, user string, fileIDs []string) (string, error) {
	content := make([]map[string]any, 0, 1+len(fileIDs))
	content = append(content, map[string]any{
		"type": "input_text",
		"text": user,
	})
	for _, id := range fileIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		content = append(content, map[string]any{
			"type":    "input_file",
			"file_id": id,
		})
	}

	req := responsesRequest{
		Model: c.cfg.Model,
		Input: []struct {
			Role    string `json:"role"`
			Content any    `json:"content"`
		}{
			{Role: "system", Content: system},
			{Role: "user", Content: content},
		},
	}

	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(req); err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctxutil.Default(ctx), "POST", c.cfg.BaseURL+"/v1/responses", &body)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	_, raw, err := c.finish(httpReq, c.responsesClient)
	if err != nil {
		return "", err
	}

	var resp responsesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("openai decode error: %w", err)
	}
	if resp.Refusal != "" {
		return "", fmt.Errorf("model refused: %s", resp.Refusal)
	}

	text := extractOutputText(resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no output_text found in response")
	}
	return text, nil
}

func (c *client) finish(req *http.Request, httpClient *http.Client) (*http.Response, []byte, error) {
	if httpClient == nil {
		httpClient = c.httpClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}
