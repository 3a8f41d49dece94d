package opensearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/inhousecard/paycore/infra/config"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// Client wraps the OpenSearch client
type Client struct {
	client *opensearch.Client
	config *config.AppConfig
}

// NewClient creates a new OpenSearch client and bootstraps the audit
// index.
func NewClient(cfg *config.AppConfig) (*Client, error) {
	opensearchConfig := opensearch.Config{
		Addresses: []string{cfg.OpenSearchURL},
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // For development/testing
			},
		},
		MaxRetries:    3,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			return time.Duration(i) * 100 * time.Millisecond
		},
	}

	if cfg.OpenSearchUser != "" && cfg.OpenSearchPass != "" {
		opensearchConfig.Username = cfg.OpenSearchUser
		opensearchConfig.Password = cfg.OpenSearchPass
	}

	client, err := opensearch.NewClient(opensearchConfig)
	if err != nil {
		return nil, err
	}

	osClient := &Client{
		client: client,
		config: cfg,
	}

	if err := osClient.setupAuditIndex(); err != nil {
		log.Printf("Warning: Failed to setup OpenSearch audit index: %v", err)
	}

	return osClient, nil
}

// GetClient returns the underlying OpenSearch client
func (c *Client) GetClient() *opensearch.Client {
	return c.client
}

// IsEnabled returns whether audit indexing is enabled
func (c *Client) IsEnabled() bool {
	return c.config.EnableAuditIndex
}

// AuditIndexName returns the index audit entries are written to.
func (c *Client) AuditIndexName() string {
	return c.config.AuditIndexName
}

// IndexDocument writes a single document into the given index. This is
// the narrow surface the system logger and the audit log build on.
func (c *Client) IndexDocument(ctx context.Context, index string, doc any) error {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index: index,
		Body:  bytes.NewReader(docJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch error: %s", res.String())
	}

	return nil
}

// setupAuditIndex creates the audit index with its mapping if missing.
func (c *Client) setupAuditIndex() error {
	indexName := c.config.AuditIndexName

	exists, err := c.indexExists(indexName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := c.createAuditIndex(indexName); err != nil {
		return err
	}
	log.Printf("Created OpenSearch index: %s", indexName)
	return nil
}

func (c *Client) indexExists(indexName string) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{
		Index: []string{indexName},
	}

	res, err := req.Do(context.Background(), c.client)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	return res.StatusCode == 200, nil
}

func (c *Client) createAuditIndex(indexName string) error {
	mapping := `{
		"mappings": {
			"properties": {
				"id": {
					"type": "keyword"
				},
				"timestamp": {
					"type": "date",
					"format": "strict_date_optional_time||epoch_millis"
				},
				"event_kind": {
					"type": "keyword"
				},
				"external_payment_id": {
					"type": "keyword"
				},
				"detected_format": {
					"type": "keyword"
				},
				"outcome": {
					"type": "keyword"
				},
				"order_id": {
					"type": "keyword"
				},
				"detail": {
					"type": "object",
					"enabled": true
				}
			}
		},
		"settings": {
			"number_of_shards": 1,
			"number_of_replicas": 0
		}
	}`

	req := opensearchapi.IndicesCreateRequest{
		Index: indexName,
		Body:  strings.NewReader(mapping),
	}

	res, err := req.Do(context.Background(), c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index creation error: %s", res.String())
	}

	return nil
}
