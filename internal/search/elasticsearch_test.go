package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/identifier/config"
	"example.com/backstage/services/identifier/internal/models"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

func fakeElastic(t *testing.T, status int, response string) (*ElasticClient, *[]recordedRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(raw, &body)

		mu.Lock()
		requests = append(requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})
		mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	client, err := NewElasticClient(config.ElasticConfig{URL: srv.URL, Prefix: "traceability", Index: "serials"})
	require.NoError(t, err)
	return client, &requests
}

func sampleMapping() *models.SerialMapping {
	return &models.SerialMapping{
		ShortSerial:   "0125120600001",
		FullSerial:    "011001020251206000100001003517",
		BatchNumber:   "0110202512060001",
		SiteID:        1,
		StrainCode:    100,
		StrainFamily:  "sativa",
		BatchType:     10,
		BatchDate:     time.Date(2025, 12, 6, 0, 0, 0, 0, time.UTC),
		BatchSequence: 1,
		UnitSequence:  1,
		WeightTenths:  35,
		PackSize:      1,
	}
}

func TestIndexSerial(t *testing.T) {
	client, requests := fakeElastic(t, http.StatusCreated, `{"result":"created"}`)

	require.NoError(t, client.IndexSerial(context.Background(), sampleMapping()))

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/traceability-serials/_doc/0125120600001", req.Path)
	assert.Equal(t, "011001020251206000100001003517", req.Body["full_serial"])
	assert.Equal(t, "production", req.Body["batch_type"])
	assert.Equal(t, "20251206", req.Body["batch_date"])
	assert.Equal(t, 3.5, req.Body["weight_grams"])
}

func TestIndexSerialError(t *testing.T) {
	client, _ := fakeElastic(t, http.StatusBadRequest, `{"error":{"type":"mapper_parsing_exception"}}`)

	err := client.IndexSerial(context.Background(), sampleMapping())
	assert.ErrorContains(t, err, "Elasticsearch index error")
}

func TestSearchBatch(t *testing.T) {
	client, requests := fakeElastic(t, http.StatusOK,
		`{"hits":{"hits":[{"_source":{"short_serial":"0125120600001"}},{"_source":{"short_serial":"0125120600002"}}]}}`)

	docs, err := client.SearchBatch(context.Background(), "0110202512060001", 50)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "0125120600002", docs[1]["short_serial"])

	req := (*requests)[0]
	assert.Equal(t, "/traceability-serials/_search", req.Path)
	assert.EqualValues(t, 50, req.Body["size"])
}
