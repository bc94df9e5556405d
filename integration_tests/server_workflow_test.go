//go:build integration
// +build integration

package integration_tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/reportsmith/internal/types"
)

func upload(t *testing.T, baseURL, file, content string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("template", file)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(baseURL+"/api/templates", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func connectedClients(t *testing.T, baseURL string) int {
	t.Helper()
	resp, err := http.Get(baseURL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var health struct {
		Clients int `json:"clients"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	return health.Clients
}

func TestIntegration_ServerWorkflow(t *testing.T) {
	_, e := newPipeline(t)
	baseURL := startServer(t, e)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(baseURL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return connectedClients(t, baseURL) == 1 },
		5*time.Second, 50*time.Millisecond, "websocket client never registered")

	resp, body := upload(t, baseURL, "box-table.jsx", cleanTemplate)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	var event types.TemplateEvent
	require.NoError(t, wsjson.Read(ctx, conn, &event))
	assert.Equal(t, types.EventTypeAdded, event.Type)
	assert.Equal(t, "box-table", event.Name)

	listResp, err := http.Get(baseURL + "/api/reports/list")
	require.NoError(t, err)
	var list struct {
		Success bool `json:"success"`
		Reports []struct {
			Name  string `json:"name"`
			Title string `json:"title"`
		} `json:"reports"`
	}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
	listResp.Body.Close()
	require.Len(t, list.Reports, 1)
	assert.Equal(t, "Box Table", list.Reports[0].Title)

	renderResp, err := http.Get(baseURL + "/api/reports/render/box-table/light-01")
	require.NoError(t, err)
	doc, err := io.ReadAll(renderResp.Body)
	renderResp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, renderResp.StatusCode)
	assert.Contains(t, string(doc), `<table id="sortableTable">`)
	assert.Contains(t, string(doc), "<td>Blue Bag</td>")

	resp, body = upload(t, baseURL, "exfiltrate.jsx", dangerousTemplate)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["findings"])

	require.NoError(t, wsjson.Read(ctx, conn, &event))
	assert.Equal(t, types.EventTypeRejected, event.Type)
	assert.Equal(t, "exfiltrate", event.Name)

	req, err := http.NewRequest(http.MethodDelete, baseURL+"/api/templates/box-table", nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusOK, delResp.StatusCode)

	require.NoError(t, wsjson.Read(ctx, conn, &event))
	assert.Equal(t, types.EventTypeRemoved, event.Type)
	assert.Equal(t, 0, e.Registry().Count())
}
