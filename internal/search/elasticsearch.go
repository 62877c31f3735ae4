package search

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/identifier/config"
	"example.com/backstage/services/identifier/internal/identifier"
	"example.com/backstage/services/identifier/internal/models"
)

// ElasticClient projects serial mappings into Elasticsearch
type ElasticClient struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client: client,
		index:  config.FormatIndex(cfg, cfg.Index),
	}, nil
}

// serialDocument builds the indexed form of a mapping
func serialDocument(m *models.SerialMapping) map[string]interface{} {
	return map[string]interface{}{
		"short_serial":   m.ShortSerial,
		"full_serial":    m.FullSerial,
		"batch_number":   m.BatchNumber,
		"site_id":        m.SiteID,
		"strain_code":    m.StrainCode,
		"strain_family":  m.StrainFamily,
		"batch_type":     identifier.BatchType(m.BatchType).String(),
		"batch_date":     identifier.FormatDate(m.BatchDate),
		"batch_sequence": m.BatchSequence,
		"unit_sequence":  m.UnitSequence,
		"weight_grams":   identifier.WeightToGrams(m.WeightTenths).InexactFloat64(),
		"pack_size":      m.PackSize,
		"issued_at":      m.CreatedAt,
	}
}

// IndexSerial indexes a mapping under its short serial. Re-indexing the same
// mapping overwrites the document.
func (c *ElasticClient) IndexSerial(ctx context.Context, m *models.SerialMapping) error {
	docJSON, err := json.Marshal(serialDocument(m))
	if err != nil {
		return errors.Wrap(err, "failed to marshal serial document")
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: m.ShortSerial,
		Body:       bytes.NewReader(docJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return errors.Wrapf(err, "failed to parse Elasticsearch error response (%s)", res.Status())
		}
		return errors.Errorf("Elasticsearch index error: %v", e)
	}

	log.Debug().Str("short_serial", m.ShortSerial).Msg("serial indexed")
	return nil
}

// search runs a query against the serial index and returns the matching
// documents
func (c *ElasticClient) search(ctx context.Context, query map[string]interface{}) ([]map[string]interface{}, error) {
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	req := esapi.SearchRequest{
		Index: []string{c.index},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return nil, errors.Wrapf(err, "failed to parse Elasticsearch error response (%s)", res.Status())
		}
		return nil, errors.Errorf("Elasticsearch search error: %v", e)
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	docs := make([]map[string]interface{}, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return docs, nil
}

// SearchBatch returns the indexed serials of one batch
func (c *ElasticClient) SearchBatch(ctx context.Context, batchNumber string, size int) ([]map[string]interface{}, error) {
	return c.search(ctx, map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"term": map[string]interface{}{"batch_number": batchNumber},
		},
		"sort": []interface{}{
			map[string]interface{}{"unit_sequence": "asc"},
		},
	})
}
