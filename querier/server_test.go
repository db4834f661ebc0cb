package querier

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigapi/gigapi-lakehouse/core"
	"github.com/gigapi/gigapi-lakehouse/tools"
)

func newTestServer(q SQLQuerier) *httptest.Server {
	client := s3Client()
	d := tools.NewDispatcher(client, nil, client.Settings)
	srv := httptest.NewServer(NewServer(q, d).Handler())
	return srv
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestHandleQuery(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := &fakeQuerier{result: &core.Result{
		Columns: []string{"id", "n", "at"},
		Rows:    []core.Record{{"id": "a", "n": int64(9007199254740993), "at": ts}},
	}}
	srv := newTestServer(q)
	defer srv.Close()

	resp, out := post(t, srv.URL+"/query", `{"query":"SELECT 1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "SELECT 1", q.got)
	assert.Equal(t, []any{"id", "n", "at"}, out["columns"])
	row := out["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "9007199254740993", row["n"])
	assert.Equal(t, "2024-01-01T00:00:00Z", row["at"])

	resp, err := http.Post(srv.URL+"/query?format=ndjson", "application/json", strings.NewReader(`{"query":"SELECT 1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))
	lines := 0
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		lines++
	}
	assert.Equal(t, 1, lines)
}

func TestHandleQueryErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		url  string
		err  error
		code int
		kind string
	}{
		{name: "bad body", body: `{`, code: http.StatusBadRequest, kind: "validation"},
		{name: "empty query", body: `{}`, code: http.StatusBadRequest, kind: "validation"},
		{name: "bad format", body: `{"query":"x"}`, url: "?format=xml", code: http.StatusBadRequest, kind: "validation"},
		{name: "engine error", body: `{"query":"x"}`, err: &core.QueryExecutionError{SQL: "x", Err: errors.New("boom")}, code: http.StatusBadGateway, kind: "query_execution"},
		{name: "timeout", body: `{"query":"x"}`, err: &core.RemoteTimeoutError{Op: "query", Err: context.DeadlineExceeded}, code: http.StatusGatewayTimeout, kind: "timeout"},
		{name: "connection", body: `{"query":"x"}`, err: &core.ConnectionError{Err: errors.New("down")}, code: http.StatusBadGateway, kind: "connection"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakeQuerier{err: tt.err, result: &core.Result{}})
			defer srv.Close()
			resp, out := post(t, srv.URL+"/query"+tt.url, tt.body)
			assert.Equal(t, tt.code, resp.StatusCode)
			assert.Equal(t, tt.kind, out["kind"])
		})
	}
}

func TestHandleTools(t *testing.T) {
	srv := newTestServer(&fakeQuerier{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/tools")
	require.NoError(t, err)
	var list struct {
		Tools []tools.Definition `json:"tools"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.Len(t, list.Tools, len(tools.Definitions()))

	resp, out := post(t, srv.URL+"/tools/list_tables", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, out["tables"], 2)

	resp, out = post(t, srv.URL+"/tools/get_config", `{}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ns", out["namespace"])

	tests := []struct {
		tool string
		body string
		code int
	}{
		{"get_schema", `{"table":"orders"}`, http.StatusNotFound},
		{"search", `{"table":"records","filters":{"nope":1}}`, http.StatusBadRequest},
		{"search", `{"table":"records","limit":-1}`, http.StatusBadRequest},
		{"ingest_files", `{"path":"/in"}`, http.StatusBadRequest},
		{"drop_table", `{}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			resp, _ := post(t, srv.URL+"/tools/"+tt.tool, tt.body)
			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}
}

func TestHandleHealthAndCORS(t *testing.T) {
	srv := newTestServer(&fakeQuerier{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/query", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
