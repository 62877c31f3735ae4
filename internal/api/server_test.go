package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/identifier/config"
	"example.com/backstage/services/identifier/internal/api/handlers"
	"example.com/backstage/services/identifier/internal/mapping"
	"example.com/backstage/services/identifier/internal/metrics"
	"example.com/backstage/services/identifier/internal/models"
	"example.com/backstage/services/identifier/internal/sequence"
	"example.com/backstage/services/identifier/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, counters sequence.CounterStore) (*Server, *metrics.Metrics) {
	t.Helper()
	return newIndexedTestServer(t, counters, nil)
}

func newIndexedTestServer(t *testing.T, counters sequence.CounterStore, indexer services.Indexer) (*Server, *metrics.Metrics) {
	t.Helper()
	collector := metrics.NewMetrics()
	svc := services.NewIdentifierService(sequence.NewAllocator(counters), mapping.NewMemoryStore(), nil, indexer, nil, collector,
		services.WithClock(func() time.Time { return time.Date(2025, 12, 10, 12, 0, 0, 0, time.UTC) }))

	cfg := config.Config{MetricsEnabled: true, Server: config.ServerConfig{Address: ":0", Timeout: time.Second}}
	server, err := NewServer(cfg, svc, collector, nil)
	require.NoError(t, err)
	return server, collector
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	out := map[string]interface{}{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func TestIssueAndLookupFlow(t *testing.T) {
	server, _ := newTestServer(t, sequence.NewMemoryStore())
	h := server.Handler()

	w, resp := do(t, h, http.MethodPost, "/api/v1/batches", map[string]interface{}{
		"site_id": 1, "batch_type": 10, "date": "2025-12-06",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "0110202512060001", resp["batch_number"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w, resp = do(t, h, http.MethodPost, "/api/v1/serials", map[string]interface{}{
		"batch_number": "0110202512060001", "strain_code": 100, "weight_grams": "3.5", "pack_size": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "011001020251206000100001003517", resp["full_serial"])
	assert.Equal(t, "0125120600001", resp["short_serial"])

	w, resp = do(t, h, http.MethodGet, "/api/v1/serials/short/0125120600001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "011001020251206000100001003517", resp["full_serial"])

	w, resp = do(t, h, http.MethodGet, "/api/v1/serials/full/011001020251206000100001003517", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0125120600001", resp["short_serial"])

	w, resp = do(t, h, http.MethodGet, "/api/v1/identifiers/0125120600001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "short_serial", resp["kind"])
	assert.Equal(t, "sativa", resp["strain_family"])
	assert.Equal(t, "3.5", resp["weight_grams"])
	assert.Equal(t, float64(1), resp["pack_size"])
	assert.Equal(t, "2025-12-06", resp["date"])
	assert.Equal(t, "production", resp["batch_type"])

	w, resp = do(t, h, http.MethodGet, "/api/v1/identifiers/0110202512060001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "batch_number", resp["kind"])
	assert.NotContains(t, resp, "pack_size")

	w, resp = do(t, h, http.MethodGet, "/api/v1/identifiers/011001020251206000100001003517/validate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["valid"])

	w, resp = do(t, h, http.MethodGet, "/api/v1/identifiers/011001020251206000100001003518/validate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["valid"])
}

func TestErrorResponses(t *testing.T) {
	server, _ := newTestServer(t, sequence.NewMemoryStore())
	h := server.Handler()

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"missing fields", http.MethodPost, "/api/v1/batches", map[string]interface{}{"site_id": 1}, http.StatusBadRequest, handlers.CodeValidation},
		{"bad site", http.MethodPost, "/api/v1/batches", map[string]interface{}{"site_id": 100, "batch_type": 10, "date": "2025-12-06"}, http.StatusBadRequest, handlers.CodeValidation},
		{"bad batch type", http.MethodPost, "/api/v1/batches", map[string]interface{}{"site_id": 1, "batch_type": 15, "date": "2025-12-06"}, http.StatusBadRequest, handlers.CodeValidation},
		{"future date", http.MethodPost, "/api/v1/batches", map[string]interface{}{"site_id": 1, "batch_type": 10, "date": "2025-12-11"}, http.StatusBadRequest, handlers.CodeValidation},
		{"unknown batch", http.MethodPost, "/api/v1/serials", map[string]interface{}{"batch_number": "0110202512060001", "strain_code": 100, "weight_grams": 3.5, "pack_size": 1}, http.StatusNotFound, handlers.CodeNotFound},
		{"malformed batch", http.MethodPost, "/api/v1/serials", map[string]interface{}{"batch_number": "0115202512060001", "strain_code": 100, "weight_grams": 3.5, "pack_size": 1}, http.StatusBadRequest, handlers.CodeInvalidIdentifier},
		{"weight precision", http.MethodPost, "/api/v1/serials", map[string]interface{}{"batch_number": "0110202512060001", "strain_code": 100, "weight_grams": "3.55", "pack_size": 1}, http.StatusBadRequest, handlers.CodeValidation},
		{"missing weight", http.MethodPost, "/api/v1/serials", map[string]interface{}{"batch_number": "0110202512060001", "strain_code": 100, "pack_size": 1}, http.StatusBadRequest, handlers.CodeValidation},
		{"zero weight is explicit", http.MethodPost, "/api/v1/serials", map[string]interface{}{"batch_number": "0110202512060001", "strain_code": 100, "weight_grams": 0, "pack_size": 0}, http.StatusNotFound, handlers.CodeNotFound},
		{"strain code", http.MethodPost, "/api/v1/serials", map[string]interface{}{"batch_number": "0110202512060001", "strain_code": 42, "pack_size": 1}, http.StatusBadRequest, handlers.CodeValidation},
		{"bad length", http.MethodGet, "/api/v1/identifiers/12345", nil, http.StatusBadRequest, handlers.CodeInvalidIdentifier},
		{"bad checksum", http.MethodGet, "/api/v1/identifiers/011001020251206000100001003518", nil, http.StatusBadRequest, handlers.CodeInvalidIdentifier},
		{"unknown short", http.MethodGet, "/api/v1/serials/short/0125120600009", nil, http.StatusNotFound, handlers.CodeNotFound},
		{"unknown full", http.MethodGet, "/api/v1/serials/full/011001020251206000100001003517", nil, http.StatusNotFound, handlers.CodeNotFound},
		{"corrupt full", http.MethodGet, "/api/v1/serials/full/011001020251206000100001003518", nil, http.StatusBadRequest, handlers.CodeInvalidIdentifier},
		{"search disabled", http.MethodGet, "/api/v1/batches/0110202512060001/serials", nil, http.StatusServiceUnavailable, handlers.CodeSearchUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, resp["code"])
		})
	}
}

type fullCounters struct{}

func (fullCounters) Next(ctx context.Context, scope sequence.Scope, max int64) (int64, error) {
	return 0, sequence.ErrExhausted
}

func TestExhaustedScopeIsConflict(t *testing.T) {
	server, _ := newTestServer(t, fullCounters{})

	w, resp := do(t, server.Handler(), http.MethodPost, "/api/v1/batches", map[string]interface{}{
		"site_id": 1, "batch_type": 10, "date": "2025-12-06",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, handlers.CodeSequenceExhausted, resp["code"])
}

func TestHealthAndMetrics(t *testing.T) {
	server, collector := newTestServer(t, sequence.NewMemoryStore())
	h := server.Handler()

	collector.SetHealth("database", true)
	w, resp := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["status"])

	collector.SetHealth("redis", false)
	w, _ = do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	do(t, h, http.MethodGet, "/api/v1/identifiers/12345", nil)
	w, resp = do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, resp, "counters")
	assert.Contains(t, collector.GetErrorRates(), metrics.OpHTTPRequest)
	assert.Equal(t, int64(1), collector.GetCounters()[metrics.CounterDecodeFailures])
}

func TestRequestIDIsPropagated(t *testing.T) {
	server, _ := newTestServer(t, sequence.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "scanner-42")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, "scanner-42", w.Header().Get("X-Request-ID"))
}

type stubIndexer struct {
	mu     sync.Mutex
	docs   map[string][]map[string]interface{}
	limits []int
}

func (s *stubIndexer) IndexSerial(ctx context.Context, m *models.SerialMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[m.BatchNumber] = append(s.docs[m.BatchNumber], map[string]interface{}{
		"short_serial":  m.ShortSerial,
		"unit_sequence": m.UnitSequence,
	})
	return nil
}

func (s *stubIndexer) SearchBatch(ctx context.Context, batchNumber string, size int) ([]map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits = append(s.limits, size)
	return s.docs[batchNumber], nil
}

func TestBatchSerialsRoute(t *testing.T) {
	indexer := &stubIndexer{docs: map[string][]map[string]interface{}{}}
	server, _ := newIndexedTestServer(t, sequence.NewMemoryStore(), indexer)
	h := server.Handler()

	w, _ := do(t, h, http.MethodPost, "/api/v1/batches", map[string]interface{}{
		"site_id": 1, "batch_type": 10, "date": "2025-12-06",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	for i := 0; i < 2; i++ {
		w, _ = do(t, h, http.MethodPost, "/api/v1/serials", map[string]interface{}{
			"batch_number": "0110202512060001", "strain_code": 100, "weight_grams": "3.5", "pack_size": 1,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w, resp := do(t, h, http.MethodGet, "/api/v1/batches/0110202512060001/serials?limit=25", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2), resp["count"])
	serials := resp["serials"].([]interface{})
	require.Len(t, serials, 2)
	assert.Equal(t, "0125120600002", serials[1].(map[string]interface{})["short_serial"])
	assert.Equal(t, []int{25}, indexer.limits)

	w, resp = do(t, h, http.MethodGet, "/api/v1/batches/0110202512060001/serials?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, handlers.CodeValidation, resp["code"])

	w, resp = do(t, h, http.MethodGet, "/api/v1/batches/0110202512060002/serials", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, handlers.CodeNotFound, resp["code"])
}
