package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/reportsmith/internal/errors"
)

func reply(content string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"model": "gpt-test",
		"choices": []interface{}{
			map[string]interface{}{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func TestGenerateExtractsCode(t *testing.T) {
	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(reply("Here you go:\n```jsx\nmodule.exports = () => <p>hi</p>;\n```\nEnjoy")))
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL + "/v1/", APIKey: "sk-test", Model: "gpt-base"}, nil)
	res, err := c.Generate(context.Background(), Request{Prompt: "a greeting"})

	require.NoError(t, err)
	assert.Equal(t, "module.exports = () => <p>hi</p>;\n", res.Source)
	assert.Equal(t, "gpt-test", res.Model)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "gpt-base", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "a greeting", got.Messages[1].Content)
}

func TestGenerateModelOverride(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(reply("x")))
	}))
	defer srv.Close()

	_, err := NewClient(Config{Endpoint: srv.URL, Model: "base"}, nil).
		Generate(context.Background(), Request{Prompt: "p", Model: "override"})
	require.NoError(t, err)
	assert.Equal(t, "override", got.Model)
}

func TestGenerateStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		want     int
		wantCode string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized, errors.ErrCodeUnauthorized},
		{"unknown model", http.StatusNotFound, `{"error":{"message":"no such model","code":"model_not_found"}}`, http.StatusNotFound, errors.ErrCodeUnknownModel},
		{"model code on 400", http.StatusBadRequest, `{"error":{"code":"model_not_found"}}`, http.StatusNotFound, errors.ErrCodeUnknownModel},
		{"overloaded", http.StatusServiceUnavailable, ``, http.StatusServiceUnavailable, errors.ErrCodeServiceUnavailable},
		{"upstream timeout", http.StatusGatewayTimeout, ``, http.StatusGatewayTimeout, errors.ErrCodeServiceTimeout},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"nope"}}`, http.StatusBadGateway, errors.ErrCodeBadResponse},
		{"empty choices", http.StatusOK, `{"choices":[]}`, http.StatusBadGateway, errors.ErrCodeBadResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(Config{Endpoint: srv.URL}, nil).Generate(context.Background(), Request{Prompt: "p"})
			require.Error(t, err)

			var re *errors.ReportError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tt.want, re.Status)
			assert.Equal(t, tt.wantCode, re.Code)
			assert.Equal(t, 1, calls, "no retry")
		})
	}
}

func TestGenerateTimeoutIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewClient(Config{Endpoint: srv.URL, Timeout: 50 * time.Millisecond}, nil).
		Generate(context.Background(), Request{Prompt: "p"})

	require.Error(t, err)
	var re *errors.ReportError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusGatewayTimeout, re.Status)
	assert.True(t, re.Retryable)
}

func TestGenerateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(Config{Endpoint: url}, nil).Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	var re *errors.ReportError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusServiceUnavailable, re.Status)
	assert.True(t, re.Retryable)
}

func TestGenerateEmptyPrompt(t *testing.T) {
	_, err := NewClient(Config{Endpoint: "http://unused"}, nil).Generate(context.Background(), Request{Prompt: "  "})
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err))
}

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"jsx fence", "intro\n```jsx\nA\nB\n```\nouter", "A\nB\n"},
		{"bare fence", "```\nX\n```", "X\n"},
		{"first of two", "```js\nfirst\n```\n```js\nsecond\n```", "first\n"},
		{"no fence", "  plain code  ", "plain code\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCode(tt.in))
		})
	}
}
