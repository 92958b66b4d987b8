package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/wavcapture/internal/audio"
	"github.com/audiolibrelab/wavcapture/internal/config"
	"github.com/audiolibrelab/wavcapture/internal/service"
)

func newTestServer(t *testing.T) (*httptest.Server, *service.RecordingService) {
	t.Helper()

	cfg := config.Default()
	cfg.Audio.Backend = "synthetic"
	cfg.Output.Directory = t.TempDir()
	cfg.MaxDuration = 0

	registry := prometheus.NewRegistry()
	svc, err := service.New(cfg,
		service.WithBackend(&audio.SyntheticBackend{Manual: true}),
		service.WithMetrics(audio.NewMetrics(registry)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	ts := httptest.NewServer(New(svc, registry, "0").Handler())
	t.Cleanup(ts.Close)
	return ts, svc
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestStartStopOverHTTP(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.PostForm(ts.URL+"/start", url.Values{"name": {"Band Practice"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var started SessionResponse
	decode(t, resp, &started)
	assert.True(t, started.Success)
	require.NotNil(t, started.Session)
	assert.Equal(t, "Band_Practice.wav", filepath.Base(started.Session.OutputFile))

	resp, err = http.PostForm(ts.URL+"/start", url.Values{"name": {"again"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var conflict map[string]interface{}
	decode(t, resp, &conflict)
	assert.Equal(t, false, conflict["success"])
	assert.Contains(t, conflict["error"], "already in progress")

	resp, err = http.Get(ts.URL + "/status")
	require.NoError(t, err)
	var status StatusResponse
	decode(t, resp, &status)
	assert.True(t, status.Status.Recording)
	assert.Equal(t, audio.StateRecording, status.Status.State)
	assert.Equal(t, "Recording Band_Practice.wav", status.Message)

	resp, err = http.Post(ts.URL+"/stop", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var stopped SessionResponse
	decode(t, resp, &stopped)
	assert.True(t, stopped.Success)
	require.NotNil(t, stopped.Session)
	assert.Equal(t, started.Session.ID, stopped.Session.ID)

	resp, err = http.Post(ts.URL+"/stop", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/start")
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "Method not allowed", body["error"])

	resp, err = http.Post(ts.URL+"/status", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}

func TestIndex(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "WavCapture")

	resp, err = http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFilesAndDownload(t *testing.T) {
	ts, svc := newTestServer(t)

	_, err := svc.Start("take")
	require.NoError(t, err)
	_, err = svc.Stop(context.Background())
	require.NoError(t, err)

	dir := svc.GetConfig().Output.Directory
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("text"), 0644))

	resp, err := http.Get(ts.URL + "/api/files")
	require.NoError(t, err)
	var files FilesResponse
	decode(t, resp, &files)
	require.Equal(t, 1, files.TotalCount)
	assert.Equal(t, "take.wav", files.Files[0].Name)
	assert.Equal(t, dir, files.OutputDirectory)

	resp, err = http.Get(ts.URL + files.Files[0].DownloadURL)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "take.wav")
	assert.Equal(t, "RIFF", string(body[:4]))
	assert.Len(t, body, 44)

	resp, err = http.Get(ts.URL + "/api/files/stream/take.wav")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))

	tests := []struct {
		path   string
		status int
	}{
		{"/api/files/download/missing.wav", http.StatusNotFound},
		{"/api/files/download/notes.txt", http.StatusForbidden},
		{"/api/files/download/..take.wav", http.StatusBadRequest},
		{"/api/files/download/", http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp, err := http.Get(ts.URL + tt.path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tt.status, resp.StatusCode, tt.path)
	}
}

func TestEmptyFileList(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/files")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"files":[]`)
}

func TestMetricsEndpoint(t *testing.T) {
	ts, svc := newTestServer(t)

	_, err := svc.Start("measured")
	require.NoError(t, err)
	_, err = svc.Stop(context.Background())
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `wavcapture_recorder_transitions_total{state="RECORDING"} 1`), text)
	assert.Contains(t, text, "wavcapture_files_finalized_total 1")
}

func TestMetricsDisabledWithoutRegistry(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Directory = t.TempDir()
	svc, err := service.New(cfg, service.WithBackend(&audio.SyntheticBackend{Manual: true}))
	require.NoError(t, err)
	defer svc.Close()

	ts := httptest.NewServer(New(svc, nil, "0").Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGenerateStatusMessage(t *testing.T) {
	assert.Equal(t, "Idle", generateStatusMessage(service.Status{}))
	assert.Equal(t, "boom", generateStatusMessage(service.Status{LastError: "boom"}))
	assert.Equal(t, "Last recording: a.wav",
		generateStatusMessage(service.Status{Last: &service.Session{OutputFile: "/x/a.wav"}}))
}
