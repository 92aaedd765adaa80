package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultPineconeControlURL = "https://api.pinecone.io"

type pineconeConfig struct {
	APIKey    string `json:"api_key"`
	IndexName string `json:"index_name"`
	Cloud     string `json:"cloud"`
	Region    string `json:"region"`
	Host      string `json:"host"`
	BaseURL   string `json:"base_url"`
}

// pineconeStore talks to a Pinecone serverless index over its REST API.
type pineconeStore struct {
	apiKey    string
	indexName string
	cloud     string
	region    string
	host      string
	baseURL   string
	dimension int
	client    *http.Client
}

func init() {
	Register("pinecone", createPineconeStore)
}

func createPineconeStore(dimension int, args interface{}) (Store, error) {
	cfg := &pineconeConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone api_key is required")
	}
	if cfg.IndexName == "" {
		cfg.IndexName = "rag-app"
	}
	if cfg.Cloud == "" {
		cfg.Cloud = "aws"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultPineconeControlURL
	}
	return &pineconeStore{
		apiKey:    cfg.APIKey,
		indexName: cfg.IndexName,
		cloud:     cfg.Cloud,
		region:    cfg.Region,
		host:      strings.TrimSpace(cfg.Host),
		baseURL:   strings.TrimRight(baseURL, "/"),
		dimension: dimension,
		client:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type pineconeIndexSpec struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Spec      struct {
		Serverless struct {
			Cloud  string `json:"cloud"`
			Region string `json:"region"`
		} `json:"serverless"`
	} `json:"spec"`
}

type pineconeIndexDescription struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Host      string `json:"host"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

// Init resolves the index host, creating the serverless index when missing.
// A dimension mismatch against an existing index is a configuration error.
func (s *pineconeStore) Init(ctx context.Context) error {
	desc, status, err := s.describeIndex(ctx)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		if err := s.createIndex(ctx); err != nil {
			return err
		}
		desc, err = s.waitIndexReady(ctx)
		if err != nil {
			return err
		}
	}
	if desc.Dimension != s.dimension {
		return fmt.Errorf("pinecone index %s has dimension %d, configured dimension is %d", s.indexName, desc.Dimension, s.dimension)
	}
	if s.host == "" {
		s.host = desc.Host
	}
	if s.host == "" {
		return fmt.Errorf("pinecone index %s has no host", s.indexName)
	}
	return nil
}

func (s *pineconeStore) describeIndex(ctx context.Context) (*pineconeIndexDescription, int, error) {
	endpoint := s.baseURL + "/indexes/" + s.indexName
	body, status, err := s.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil && status != http.StatusNotFound {
		return nil, status, err
	}
	if status == http.StatusNotFound {
		return nil, status, nil
	}
	var desc pineconeIndexDescription
	if err := json.Unmarshal(body, &desc); err != nil {
		return nil, status, err
	}
	return &desc, status, nil
}

func (s *pineconeStore) createIndex(ctx context.Context) error {
	spec := pineconeIndexSpec{
		Name:      s.indexName,
		Dimension: s.dimension,
		Metric:    "cosine",
	}
	spec.Spec.Serverless.Cloud = s.cloud
	spec.Spec.Serverless.Region = s.region
	_, _, err := s.do(ctx, http.MethodPost, s.baseURL+"/indexes", spec)
	return err
}

func (s *pineconeStore) waitIndexReady(ctx context.Context) (*pineconeIndexDescription, error) {
	for {
		desc, _, err := s.describeIndex(ctx)
		if err != nil {
			return nil, err
		}
		if desc != nil && desc.Status.Ready {
			return desc, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

type pineconeVector struct {
	ID       string                 `json:"id"`
	Values   []float32              `json:"values"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (s *pineconeStore) Upsert(ctx context.Context, records []Record) error {
	return upsertInBatches(ctx, records, func(ctx context.Context, batch []Record) error {
		vectors := make([]pineconeVector, 0, len(batch))
		for _, rec := range batch {
			vectors = append(vectors, pineconeVector{
				ID:       rec.ID,
				Values:   rec.Values,
				Metadata: metadataToMap(rec.Metadata),
			})
		}
		_, _, err := s.do(ctx, http.MethodPost, s.dataURL("/vectors/upsert"), map[string]interface{}{
			"vectors": vectors,
		})
		return err
	})
}

type pineconeQueryResponse struct {
	Matches []struct {
		ID       string                 `json:"id"`
		Score    float32                `json:"score"`
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"matches"`
}

func (s *pineconeStore) Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Result, error) {
	reqBody := map[string]interface{}{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
	}
	if expr := filterToMap(filter); len(expr) > 0 {
		reqBody["filter"] = expr
	}
	body, _, err := s.do(ctx, http.MethodPost, s.dataURL("/query"), reqBody)
	if err != nil {
		return nil, err
	}
	var out pineconeQueryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(out.Matches))
	for _, m := range out.Matches {
		results = append(results, Result{
			ID:       m.ID,
			Score:    m.Score,
			Metadata: metadataFromMap(m.Metadata),
		})
	}
	return results, nil
}

func (s *pineconeStore) Delete(ctx context.Context, filter Filter) error {
	reqBody := map[string]interface{}{}
	if filter.IsZero() {
		reqBody["deleteAll"] = true
	} else {
		reqBody["filter"] = filterToMap(filter)
	}
	_, _, err := s.do(ctx, http.MethodPost, s.dataURL("/vectors/delete"), reqBody)
	return err
}

func (s *pineconeStore) Ping(ctx context.Context) error {
	_, _, err := s.do(ctx, http.MethodPost, s.dataURL("/describe_index_stats"), map[string]interface{}{})
	return err
}

func (s *pineconeStore) dataURL(path string) string {
	host := s.host
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return strings.TrimRight(host, "/") + path
}

func (s *pineconeStore) do(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Api-Key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusTooManyRequests {
		return body, resp.StatusCode, fmt.Errorf("%w: %s", ErrRateLimited, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode == http.StatusNotFound {
		return body, resp.StatusCode, fmt.Errorf("pinecone request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if resp.StatusCode >= http.StatusInternalServerError {
			return body, resp.StatusCode, fmt.Errorf("%w: %s: %s", ErrUnavailable, resp.Status, strings.TrimSpace(string(body)))
		}
		return body, resp.StatusCode, fmt.Errorf("pinecone request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return body, resp.StatusCode, nil
}

func metadataToMap(m Metadata) map[string]interface{} {
	out := map[string]interface{}{
		"user_id": m.UserID,
		"source":  m.Source,
	}
	if m.DocumentID != "" {
		out["document_id"] = m.DocumentID
	}
	if m.Text != "" {
		out["text"] = m.Text
	}
	return out
}

func metadataFromMap(m map[string]interface{}) Metadata {
	str := func(key string) string {
		v, _ := m[key].(string)
		return v
	}
	return Metadata{
		UserID:     str("user_id"),
		Source:     str("source"),
		DocumentID: str("document_id"),
		Text:       str("text"),
	}
}

func filterToMap(f Filter) map[string]interface{} {
	out := map[string]interface{}{}
	if f.UserID != "" {
		out["user_id"] = map[string]interface{}{"$eq": f.UserID}
	}
	if f.DocumentID != "" {
		out["document_id"] = map[string]interface{}{"$eq": f.DocumentID}
	}
	return out
}
