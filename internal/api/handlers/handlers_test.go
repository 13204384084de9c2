package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	"sigs.k8s.io/yaml"

	"github.com/pbar1/ssh-benchmark/internal/topology"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeStore struct {
	cached map[string][]byte
	calls  int
}

func (f *fakeStore) Fetch(_ context.Context, cfg topology.ScaleConfiguration, render func() ([]byte, error)) ([]byte, bool, error) {
	f.calls++
	key := cfg.Strategy.String() + "/" + cfg.Namespace
	if data, ok := f.cached[key]; ok {
		return data, true, nil
	}
	data, err := render()
	if err != nil {
		return nil, false, err
	}
	f.cached[key] = data
	return data, false, nil
}

func TestHealthHandler(t *testing.T) {
	handler := NewHealthHandler(nil, "1.2.3", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()

	handler.HandleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, HealthResponse{Status: "ok", Version: "1.2.3"}, resp)
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name           string
		cache          Pinger
		expectedStatus int
	}{
		{
			name:           "no cache configured",
			cache:          nil,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "cache reachable",
			cache:          fakePinger{},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "cache down",
			cache:          fakePinger{err: errors.New("connection refused")},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.cache, "dev", nil)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil)
			w := httptest.NewRecorder()

			handler.HandleReady(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestStrategiesHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/strategies", nil)
	w := httptest.NewRecorder()

	HandleStrategies(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Strategies []StrategyInfo `json:"strategies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Strategies, 3)
	assert.Equal(t, topology.SingleContainer, resp.Strategies[0].Name)
	assert.Equal(t, int32(1000), resp.Strategies[0].Defaults.Ports)
	assert.True(t, resp.Strategies[1].ExposesObservability)
	assert.Equal(t, "64Ki", resp.Strategies[1].Defaults.Client.MemoryPerConnection.String())
}

func TestManifestHandler(t *testing.T) {
	tests := []struct {
		name           string
		contentType    string
		requestBody    string
		expectedStatus int
		errorMsg       string
		jobs           int
	}{
		{
			name:           "empty body uses single-container defaults",
			requestBody:    "",
			expectedStatus: http.StatusOK,
			jobs:           5,
		},
		{
			name:           "json overlay",
			contentType:    "application/json",
			requestBody:    `{"strategy":"multi-container","concurrencyLevels":[1,2]}`,
			expectedStatus: http.StatusOK,
			jobs:           2,
		},
		{
			name:           "yaml overlay",
			contentType:    "application/yaml",
			requestBody:    "strategy: hybrid\nconcurrencyLevels: [3]\n",
			expectedStatus: http.StatusOK,
			jobs:           1,
		},
		{
			name:           "invalid json",
			contentType:    "application/json",
			requestBody:    `{invalid`,
			expectedStatus: http.StatusBadRequest,
			errorMsg:       "invalid request body",
		},
		{
			name:           "unknown strategy",
			contentType:    "application/json",
			requestBody:    `{"strategy":"round-robin"}`,
			expectedStatus: http.StatusBadRequest,
			errorMsg:       "unknown strategy",
		},
		{
			name:           "zero ports",
			contentType:    "application/json",
			requestBody:    `{"ports":0,"replicas":-1}`,
			expectedStatus: http.StatusBadRequest,
			errorMsg:       "ports: must be positive",
		},
		{
			name:           "fewer replicas target every ordinal",
			contentType:    "application/json",
			requestBody:    `{"replicas":3,"concurrencyLevels":[1]}`,
			expectedStatus: http.StatusOK,
			jobs:           1,
		},
		{
			name:           "explicit ordinal out of range",
			contentType:    "application/json",
			requestBody:    `{"replicas":3,"targets":{"ordinals":[4]}}`,
			expectedStatus: http.StatusBadRequest,
			errorMsg:       "out of range",
		},
		{
			name:           "hybrid uneven split",
			contentType:    "application/json",
			requestBody:    `{"strategy":"hybrid","ports":10,"containersPerReplica":3}`,
			expectedStatus: http.StatusBadRequest,
			errorMsg:       "divide evenly",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewManifestHandler(nil, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/manifests", strings.NewReader(tt.requestBody))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()

			handler.Handle(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.errorMsg != "" {
				assert.Contains(t, w.Body.String(), tt.errorMsg)
				return
			}
			assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
			assert.Equal(t, tt.jobs, strings.Count(w.Body.String(), "kind: Job\n"))
		})
	}
}

func TestManifestHandlerProblemsList(t *testing.T) {
	handler := NewManifestHandler(nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/manifests",
		strings.NewReader(`{"ports":0,"replicas":0,"namespace":""}`))
	w := httptest.NewRecorder()

	handler.Handle(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid scale configuration", resp.Error)
	assert.GreaterOrEqual(t, len(resp.Problems), 3)
}

func TestManifestHandlerUsesStore(t *testing.T) {
	store := &fakeStore{cached: map[string][]byte{}}
	handler := NewManifestHandler(store, nil)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/manifests", strings.NewReader(`{"strategy":"single-container"}`))
		w := httptest.NewRecorder()
		handler.Handle(w, req)
		return w
	}

	first := send()
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "miss", first.Header().Get("X-Cache"))

	second := send()
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "hit", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 2, store.calls)
}

func TestManifestHandlerBundleDocuments(t *testing.T) {
	handler := NewManifestHandler(nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/manifests", strings.NewReader(`{"concurrencyLevels":[42]}`))
	w := httptest.NewRecorder()

	handler.Handle(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	docs := strings.Split(w.Body.String(), "\n---\n")
	require.Len(t, docs, 4)

	var job batchv1.Job
	require.NoError(t, yaml.Unmarshal([]byte(docs[3]), &job))
	assert.Equal(t, "client-42", job.Name)
	assert.Equal(t, "ssh-benchmark", job.Namespace)
	assert.Contains(t, job.Spec.Template.Spec.Containers[0].Command, "--concurrency=42")
}

func TestDecodeScaleConfiguration(t *testing.T) {
	cfg, err := decodeScaleConfiguration([]byte(`{"strategy":"HYBRID","ports":8,"containersPerReplica":2,"targets":{"ordinals":[1]}}`))
	require.NoError(t, err)

	assert.Equal(t, topology.Hybrid, cfg.Strategy)
	assert.Equal(t, int32(2), cfg.Replicas)
	assert.Equal(t, int32(8), cfg.Ports)
	assert.Equal(t, []int32{1}, cfg.Targets.Ordinals)
	assert.Equal(t, topology.DefaultConcurrencyLevels, cfg.ConcurrencyLevels)

	cfg, err = decodeScaleConfiguration([]byte(`{"concurrencyLevels":[9]}`))
	require.NoError(t, err)
	assert.Equal(t, []int{9}, cfg.ConcurrencyLevels)
	assert.Equal(t, []int32{4}, cfg.Targets.Ordinals)

	cfg, err = decodeScaleConfiguration([]byte(`{"replicas":3,"ports":100}`))
	require.NoError(t, err)
	assert.Nil(t, cfg.Targets.Ordinals)
	assert.Nil(t, cfg.Targets.Ports)

	cfg, err = decodeScaleConfiguration([]byte(`{"targets":{"ordinals":[],"ports":[9]}}`))
	require.NoError(t, err)
	assert.Empty(t, cfg.Targets.Ordinals)
	assert.Equal(t, []int32{9}, cfg.Targets.Ports)
}
