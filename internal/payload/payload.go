// Package payload supplies the data object handed to templates as props.data.
package payload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/reportsmith/internal/errors"
)

// DefaultTimeout bounds an upstream data call.
const DefaultTimeout = 10 * time.Second

// Source produces the data payload for one render. session is the caller's
// session token and may be empty.
type Source interface {
	Fetch(ctx context.Context, session string) (interface{}, error)
}

// Sample is the built-in payload used when no source is configured.
func Sample() map[string]interface{} {
	return map[string]interface{}{
		"boxes": []interface{}{
			map[string]interface{}{"name": "Hugo冬天衫 (1)", "utilization": 100, "status": "Check-In, full", "location": "Hugo bedroom (衣櫃頂)"},
			map[string]interface{}{"name": "Thomas冬天睡衣", "utilization": 100, "status": "Check-In, full", "location": "Hugo bedroom (衣櫃頂)"},
			map[string]interface{}{"name": "花花壓縮袋Thomas冬天衫", "utilization": 50, "status": "Check-In, 50% occupied", "location": "主人房床下底"},
			map[string]interface{}{"name": "Blue Bag", "utilization": 25, "status": "Check-In, 25% occupied", "location": "廳白色長形存物架"},
		},
		"summary": map[string]interface{}{
			"total":          51,
			"full":           40,
			"partial":        10,
			"avgUtilization": 89.7,
		},
	}
}

// StaticSource returns the same payload on every call.
type StaticSource struct {
	data interface{}
}

// NewStaticSource wraps a fixed payload; nil selects Sample.
func NewStaticSource(data interface{}) *StaticSource {
	if data == nil {
		data = Sample()
	}
	return &StaticSource{data: data}
}

// LoadStaticSource reads a JSON or YAML sample file.
func LoadStaticSource(fs afero.Fs, path string) (*StaticSource, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.WrapIO(err, "reading sample data "+path)
	}
	data, err := Decode(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return &StaticSource{data: data}, nil
}

// Fetch implements Source.
func (s *StaticSource) Fetch(context.Context, string) (interface{}, error) {
	return s.data, nil
}

// Decode parses a payload document. ".yaml" and ".yml" use YAML, anything
// else JSON.
func Decode(raw []byte, ext string) (interface{}, error) {
	var data interface{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return nil, errors.NewValidationError("ERR_INVALID_PAYLOAD", "invalid YAML payload: "+err.Error())
		}
	default:
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, errors.NewValidationError("ERR_INVALID_PAYLOAD", "invalid JSON payload: "+err.Error())
		}
	}
	return data, nil
}

// HTTPSource fetches the payload from the upstream records API.
type HTTPSource struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient replaces the HTTP client. Its timeout is kept as given.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) { s.client = c }
}

// NewHTTPSource creates a source for endpoint authenticated with apiKey.
func NewHTTPSource(endpoint, apiKey string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch calls the upstream API with the caller's session token.
func (s *HTTPSource) Fetch(ctx context.Context, session string) (interface{}, error) {
	if session == "" {
		return nil, errors.NewExternalServiceError(errors.ErrCodeUnauthorized,
			"session token required", http.StatusUnauthorized, nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, errors.WrapConfig(err, "building data request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "reportsmith/1.0")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("x-session-token", session)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, transportError(err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.NewExternalServiceError(errors.ErrCodeUnauthorized,
			"session expired or not authorized", http.StatusUnauthorized, nil)
	case resp.StatusCode >= 300:
		return nil, errors.NewExternalServiceError(errors.ErrCodeBadResponse,
			fmt.Sprintf("failed to fetch data: upstream returned %d", resp.StatusCode), http.StatusBadGateway, nil)
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, errors.NewExternalServiceError(errors.ErrCodeBadResponse,
			"failed to fetch data: response is not JSON", http.StatusBadGateway, err)
	}
	return data, nil
}

func transportError(err error) error {
	if isTimeout(err) {
		return errors.NewExternalServiceError(errors.ErrCodeServiceTimeout,
			"failed to fetch data: upstream timed out", http.StatusGatewayTimeout, err)
	}
	return errors.NewExternalServiceError(errors.ErrCodeServiceUnavailable,
		"failed to fetch data: upstream unreachable", http.StatusServiceUnavailable, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
