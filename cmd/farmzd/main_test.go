package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoobzio/farmz"
	farmztesting "github.com/zoobzio/farmz/testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "farmzd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_Dump(t *testing.T) {
	path := writeConfig(t, `
log:
  level: error
workload:
  workers: 2
  interval: 1ms
  recycle: 5
`)
	var stdout, stderr bytes.Buffer

	code := run([]string{"farmzd", "--config", path, "dump", "--duration", "50ms"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var doc map[string]map[string]map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &doc))
	require.Contains(t, doc, "workload")
	assert.Contains(t, doc["workload"][farmz.SectionCounters], "Jobs submitted")
	assert.Contains(t, doc["workload"][farmz.SectionGauges], "Queue depth")
	assert.Contains(t, doc["workload"][farmz.SectionHistograms], "Job duration - send_email")
}

func TestRun_DumpWithoutWorkload(t *testing.T) {
	path := writeConfig(t, "workload: {workers: 0}\n")
	var stdout, stderr bytes.Buffer

	code := run([]string{"farmzd", "-c", path, "dump", "--pretty"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Equal(t, "{}\n", stdout.String())
}

func TestRun_BadConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"farmzd", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "dump"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "usage error")
}

func TestRun_BadLogLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"farmzd", "--log-level", "loud", "dump", "--duration", "0s"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
}

func newTestServer(t *testing.T) (*httptest.Server, *farmz.Farm) {
	t.Helper()
	f := farmztesting.NewTestFarm(t)
	srv, err := newServer(f, "test", slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, f
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_JSON(t *testing.T) {
	ts, f := newTestServer(t)

	g := farmztesting.NewTestGroup(t, "app")
	c := g.RegisterCounter("events", "Events")
	farmztesting.RegisterTestGroup(t, f, g)
	g.CounterIncrement(c, 9)

	code, body := get(t, ts.URL+"/metrics.json?latest=true")
	require.Equal(t, http.StatusOK, code)

	var doc map[string]map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &doc))
	assert.EqualValues(t, 9, doc["app"][farmz.SectionCounters]["Events"])
	// The request itself is counted before the document is rendered.
	assert.EqualValues(t, 1, doc[HTTPGroup][farmz.SectionCounters]["HTTP requests - /metrics.json"])
}

func TestServer_JSONBadLatest(t *testing.T) {
	ts, _ := newTestServer(t)

	code, _ := get(t, ts.URL+"/metrics.json?latest=maybe")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServer_Prometheus(t *testing.T) {
	ts, _ := newTestServer(t)

	code, _ := get(t, ts.URL+"/healthz")
	require.Equal(t, http.StatusNoContent, code)

	code, body := get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, strings.Contains(body, `test_http_requests_healthz{type="/healthz"} 1`), body)
	assert.Contains(t, body, "test_http_latency_requests_metrics_bucket")
}
