package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/inhousecard/paycore/reconcile"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// AuditLog is the OpenSearch-backed append-only audit log. One entry is
// indexed per processed notification; entries are never updated or
// deleted by this service.
type AuditLog struct {
	client *Client
}

// NewAuditLog creates an audit log on top of an OpenSearch client.
func NewAuditLog(client *Client) *AuditLog {
	return &AuditLog{client: client}
}

// Append indexes a single audit entry. Missing id/timestamp are filled
// in so callers can construct entries sparsely in tests.
func (l *AuditLog) Append(ctx context.Context, entry reconcile.AuditEntry) error {
	if !l.client.IsEnabled() {
		return nil // Audit indexing disabled
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	return l.client.IndexDocument(ctx, l.client.AuditIndexName(), entry)
}

// SearchQuery narrows an audit search. Zero values mean no filter.
type SearchQuery struct {
	ExternalPaymentID string
	OrderID           string
	Outcome           string
	Hours             int
	Size              int
}

// Search returns audit entries matching the query, newest first.
func (l *AuditLog) Search(ctx context.Context, q SearchQuery) ([]reconcile.AuditEntry, error) {
	if !l.client.IsEnabled() {
		return nil, fmt.Errorf("audit indexing is disabled")
	}

	var must []map[string]any
	if q.ExternalPaymentID != "" {
		must = append(must, map[string]any{
			"term": map[string]any{"external_payment_id": q.ExternalPaymentID},
		})
	}
	if q.OrderID != "" {
		must = append(must, map[string]any{
			"term": map[string]any{"order_id": q.OrderID},
		})
	}
	if q.Outcome != "" {
		must = append(must, map[string]any{
			"term": map[string]any{"outcome": q.Outcome},
		})
	}
	if q.Hours > 0 {
		must = append(must, map[string]any{
			"range": map[string]any{
				"timestamp": map[string]any{
					"gte": fmt.Sprintf("now-%dh", q.Hours),
				},
			},
		})
	}

	query := map[string]any{"match_all": map[string]any{}}
	if len(must) > 0 {
		query = map[string]any{
			"bool": map[string]any{"must": must},
		}
	}

	size := q.Size
	if size <= 0 || size > 500 {
		size = 100
	}

	searchQuery := map[string]any{
		"query": query,
		"sort": []map[string]any{
			{"timestamp": map[string]string{"order": "desc"}},
		},
		"size": size,
	}

	queryJSON, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{l.client.AuditIndexName()},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("opensearch search error: %s", res.String())
	}

	var searchResult struct {
		Hits struct {
			Hits []struct {
				Source reconcile.AuditEntry `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&searchResult); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}

	entries := make([]reconcile.AuditEntry, len(searchResult.Hits.Hits))
	for i, hit := range searchResult.Hits.Hits {
		entries[i] = hit.Source
	}

	return entries, nil
}

// Recent returns the latest entries within the given window.
func (l *AuditLog) Recent(ctx context.Context, hours, size int) ([]reconcile.AuditEntry, error) {
	return l.Search(ctx, SearchQuery{Hours: hours, Size: size})
}
