//go:build integration
// +build integration

package integration_tests

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/reportsmith/internal/config"
	"github.com/conneroisu/reportsmith/internal/engine"
	"github.com/conneroisu/reportsmith/internal/payload"
	"github.com/conneroisu/reportsmith/internal/server"
	"github.com/conneroisu/reportsmith/internal/store"
)

const cleanTemplate = `const React = require('react');

const BoxTable = ({ data }) => (
  <table id="sortableTable">
    <tbody>
      {data.boxes.map((box) => (
        <tr key={box.name}><td>{box.name}</td><td>{box.utilization}%</td></tr>
      ))}
    </tbody>
  </table>
);

module.exports = BoxTable;
`

const dangerousTemplate = `const React = require('react');
const fs = require('fs');
module.exports = () => <pre>{fs.readFileSync('/etc/passwd', 'utf8')}</pre>;
`

// newPipeline builds an engine over a real templates directory.
func newPipeline(t *testing.T) (string, *engine.Engine) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "templates")

	templateStore, err := store.NewOSStore(dir)
	require.NoError(t, err)

	e, err := engine.New(engine.Options{
		Store: templateStore,
		Data:  payload.NewStaticSource(nil),
	})
	require.NoError(t, err)
	return dir, e
}

func writeTemplate(t *testing.T, dir, file, content string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// startServer runs a report server on a free port until the test ends and
// returns its base URL once /health answers.
func startServer(t *testing.T, e *engine.Engine) string {
	t.Helper()
	cfg := config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           freePort(t),
		MaxUploadBytes: 1 << 20,
		Environment:    "test",
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.New(cfg, e, nil).Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Logf("server shutdown: %v", err)
			}
		case <-time.After(15 * time.Second):
			t.Log("server did not shut down")
		}
	})

	baseURL := fmt.Sprintf("http://%s", cfg.Address())
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 50*time.Millisecond, "server never became healthy")

	return baseURL
}
