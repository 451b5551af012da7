package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"example.com/granary/config"
	"example.com/granary/internal/models"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ElasticClient provides integration with Elasticsearch
type ElasticClient struct {
	client *elasticsearch.Client
	config config.ElasticConfig
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	esConfig := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client: client,
		config: cfg,
	}, nil
}

// IndexShipment indexes a completed shipment so it can be searched by
// reference, truck, driver or counterparty.
func (c *ElasticClient) IndexShipment(ctx context.Context, shipment *models.Shipment, siloNumber, materialName string) error {
	log.Info().Str("reference", shipment.ReferenceNumber).Msg("indexing shipment")

	doc := map[string]interface{}{
		"id":               shipment.ID,
		"reference_number": shipment.ReferenceNumber,
		"shipment_type":    shipment.ShipmentType,
		"status":           shipment.Status,
		"silo_id":          shipment.SiloID,
		"silo_number":      siloNumber,
		"material_type_id": shipment.MaterialTypeID,
		"material_name":    materialName,
		"quantity":         shipment.Quantity,
		"scheduled_date":   shipment.ScheduledDate,
		"actual_date":      shipment.ActualDate,
		"truck_plate":      shipment.TruckPlate,
		"driver_name":      shipment.DriverName,
		"supplier_customer": shipment.SupplierCustomer,
	}

	docJson, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal shipment document")
	}

	indexName := config.FormatIndex(c.config, c.config.Index)
	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: fmt.Sprintf("%d", shipment.ID),
		Body:       bytes.NewReader(docJson),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return errors.Errorf("Elasticsearch index error: %v", e)
	}

	log.Info().Str("reference", shipment.ReferenceNumber).Msg("shipment indexed successfully")
	return nil
}

// SearchShipments runs a full-text query over indexed shipments
func (c *ElasticClient) SearchShipments(ctx context.Context, term string, size int) ([]map[string]interface{}, error) {
	query := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query": term,
				"fields": []string{
					"reference_number^2",
					"truck_plate",
					"driver_name",
					"supplier_customer",
					"silo_number",
					"material_name",
				},
			},
		},
		"sort": []map[string]interface{}{
			{"scheduled_date": map[string]interface{}{"order": "desc"}},
		},
	}

	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	indexName := config.FormatIndex(c.config, c.config.Index)
	req := esapi.SearchRequest{
		Index: []string{indexName},
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
			return nil, errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return nil, errors.Errorf("Elasticsearch search error: %v", e)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	hits, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected search result format")
	}

	hitsArray, ok := hits["hits"].([]interface{})
	if !ok {
		return nil, errors.New("unexpected hits format")
	}

	var docs []map[string]interface{}
	for _, hit := range hitsArray {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}

		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}

		docs = append(docs, source)
	}

	return docs, nil
}
