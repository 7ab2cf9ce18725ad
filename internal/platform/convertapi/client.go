package convertapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spegrid/execreview-backend/internal/platform/ctxutil"
	"github.com/spegrid/execreview-backend/internal/platform/envutil"
	"github.com/spegrid/execreview-backend/internal/platform/httpx"
	"github.com/spegrid/execreview-backend/internal/platform/logger"
)

// Client converts office documents to PDF via the ConvertAPI REST service.
type Client interface {
	// ToPDF converts sourcePath (format inferred from its extension) and writes
	// the resulting PDF into outDir, returning the written path.
	ToPDF(ctx context.Context, sourcePath string, outDir string) (string, error)
}

type Config struct {
	Secret     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

func ConfigFromEnv() Config {
	timeoutSec := envutil.Int("CONVERTAPI_TIMEOUT_SECONDS", 120)
	return Config{
		Secret:     envutil.Str("CONVERTAPI_SECRET", ""),
		BaseURL:    envutil.Str("CONVERTAPI_BASE_URL", "https://v2.convertapi.com"),
		Timeout:    time.Duration(timeoutSec) * time.Second,
		MaxRetries: envutil.Int("CONVERTAPI_MAX_RETRIES", 2),
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("missing CONVERTAPI_SECRET")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://v2.convertapi.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &client{
		log:        log.With("client", "ConvertAPIClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

type convertResponse struct {
	Files []struct {
		FileName string `json:"FileName"`
		FileSize int64  `json:"FileSize"`
		FileData string `json:"FileData"`
	} `json:"Files"`
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 2000 {
		msg = msg[:2000] + "..."
	}
	return fmt.Sprintf("convertapi http %d: %s", e.StatusCode, msg)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) ToPDF(ctx context.Context, sourcePath string, outDir string) (string, error) {
	from := strings.TrimPrefix(strings.ToLower(filepath.Ext(sourcePath)), ".")
	if from == "" {
		from = "pptx"
	}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}

	var resp convertResponse
	path := fmt.Sprintf("/convert/%s/to/pdf?Secret=%s&StoreFile=false", from, url.QueryEscape(c.cfg.Secret))
	if err := c.do(ctx, path, filepath.Base(sourcePath), data, &resp); err != nil {
		return "", err
	}
	if len(resp.Files) == 0 {
		return "", fmt.Errorf("convertapi returned no files for %s", filepath.Base(sourcePath))
	}

	f := resp.Files[0]
	raw, err := base64.StdEncoding.DecodeString(f.FileData)
	if err != nil {
		return "", fmt.Errorf("decode converted file: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	name := strings.TrimSpace(f.FileName)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath)) + ".pdf"
	}
	outPath := filepath.Join(outDir, filepath.Base(name))
	if err := os.WriteFile(outPath, raw, 0o644); err != nil {
		return "", fmt.Errorf("write converted file: %w", err)
	}
	return outPath, nil
}

func (c *client) do(ctx context.Context, path string, filename string, fileData []byte, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, path, filename, fileData)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("convertapi decode error: %w", uErr)
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.cfg.MaxRetries {
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("ConvertAPI request retrying",
			"file", filename,
			"attempt", attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}

	return errors.New("unreachable retry loop")
}

func (c *client) doOnce(ctx context.Context, path string, filename string, fileData []byte) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("File", filename)
	if err != nil {
		return nil, nil, err
	}
	if _, err := part.Write(fileData); err != nil {
		return nil, nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), "POST", c.cfg.BaseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}
