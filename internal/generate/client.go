// Package generate asks an OpenAI-compatible chat-completions endpoint for
// template source. Output is untrusted and must pass the gate before it is
// stored.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/conneroisu/reportsmith/internal/errors"
)

// DefaultTimeout bounds one generation call.
const DefaultTimeout = 60 * time.Second

// DefaultSystemPrompt describes the template conventions to the model.
const DefaultSystemPrompt = `You write report templates as a single JSX file.
Rules:
- Start with: const React = require('react');
- Export one component with module.exports = Component;
- The component receives props { data } and may read the global "styles" object for inline styles.
- Use only React. Do not require or import any other module.
- Do not use fetch, timers, eval, Function, process, globals or dangerouslySetInnerHTML.
- Reply with the code in one fenced code block.`

// Request describes one generation.
type Request struct {
	Prompt string `json:"prompt"`
	// Model overrides the configured model
	Model string `json:"model,omitempty"`
	// Name is the template name to store the result under; empty picks one
	Name string `json:"name,omitempty"`
}

// Result is the extracted template source.
type Result struct {
	Source string
	Model  string
	// Raw is the full assistant message
	Raw string
}

// Config configures a Client.
type Config struct {
	// Endpoint is the API base, e.g. https://api.openai.com/v1
	Endpoint     string
	APIKey       string
	Model        string
	SystemPrompt string
	Timeout      time.Duration
}

// Client calls the generation endpoint. It never retries.
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates a Client. A nil httpClient gets one with the configured
// timeout.
func NewClient(config Config, httpClient *http.Client) *Client {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = DefaultSystemPrompt
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &Client{config: config, http: httpClient}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Generate requests template source for req.Prompt.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.NewValidationError("ERR_EMPTY_PROMPT", "prompt cannot be empty")
	}
	model := req.Model
	if model == "" {
		model = c.config.Model
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: c.config.SystemPrompt},
			{Role: "user", Content: req.Prompt},
		},
	})
	if err != nil {
		return nil, errors.WrapInternal(err, "encoding generation request")
	}

	url := strings.TrimRight(c.config.Endpoint, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.WrapConfig(err, "building generation request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, raw, model)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.NewExternalServiceError(errors.ErrCodeBadResponse,
			"generation response is not valid JSON", http.StatusBadGateway, err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return nil, errors.NewExternalServiceError(errors.ErrCodeBadResponse,
			"generation response has no content", http.StatusBadGateway, nil)
	}

	content := parsed.Choices[0].Message.Content
	if parsed.Model != "" {
		model = parsed.Model
	}
	return &Result{Source: ExtractCode(content), Model: model, Raw: content}, nil
}

func statusError(status int, body []byte, model string) error {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	detail := apiErr.Error.Message
	if detail == "" {
		detail = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.NewExternalServiceError(errors.ErrCodeUnauthorized,
			"generation service rejected credentials: "+detail, http.StatusUnauthorized, nil)
	case status == http.StatusNotFound || apiErr.Error.Code == "model_not_found":
		return errors.NewExternalServiceError(errors.ErrCodeUnknownModel,
			fmt.Sprintf("unknown model %q: %s", model, detail), http.StatusNotFound, nil)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return errors.NewExternalServiceError(errors.ErrCodeServiceTimeout,
			"generation service timed out: "+detail, http.StatusGatewayTimeout, nil)
	case status >= 500 || status == http.StatusTooManyRequests:
		return errors.NewExternalServiceError(errors.ErrCodeServiceUnavailable,
			"generation service unavailable: "+detail, http.StatusServiceUnavailable, nil)
	default:
		return errors.NewExternalServiceError(errors.ErrCodeBadResponse,
			fmt.Sprintf("generation request failed with %d: %s", status, detail), http.StatusBadGateway, nil)
	}
}

func transportError(err error) error {
	if isTimeout(err) {
		return errors.NewExternalServiceError(errors.ErrCodeServiceTimeout,
			"generation service timed out", http.StatusGatewayTimeout, err)
	}
	return errors.NewExternalServiceError(errors.ErrCodeServiceUnavailable,
		"generation service unreachable", http.StatusServiceUnavailable, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

var fence = regexp.MustCompile("(?s)```[A-Za-z]*[ \\t]*\\r?\\n(.*?)```")

// ExtractCode returns the first fenced code block, or the trimmed text when
// there is none.
func ExtractCode(content string) string {
	if m := fence.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1]) + "\n"
	}
	return strings.TrimSpace(content) + "\n"
}
