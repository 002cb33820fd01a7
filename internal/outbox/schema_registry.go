package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const registryContentType = "application/vnd.schemaregistry.v1+json"

// registryError is the error body returned by a Confluent-compatible registry.
type registryError struct {
	Status  int    `json:"-"`
	Code    int    `json:"error_code"`
	Message string `json:"message"`
}

func (e *registryError) Error() string {
	return fmt.Sprintf("schema registry: %d (code %d) %s", e.Status, e.Code, e.Message)
}

// SchemaRegistryClient resolves JSON schema ids in a Confluent-compatible registry.
type SchemaRegistryClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewSchemaRegistryClient(baseURL string) *SchemaRegistryClient {
	return &SchemaRegistryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// EnsureSchema returns the id of schema under subject, registering it when the
// registry has not seen this exact schema before.
func (c *SchemaRegistryClient) EnsureSchema(ctx context.Context, subject, schema string) (int, error) {
	path := "/subjects/" + url.PathEscape(subject)

	id, err := c.post(ctx, path, schema)
	if err == nil {
		return id, nil
	}
	var regErr *registryError
	if !errors.As(err, &regErr) || regErr.Status != http.StatusNotFound {
		return 0, fmt.Errorf("look up %s: %w", subject, err)
	}

	id, err = c.post(ctx, path+"/versions", schema)
	if err != nil {
		return 0, fmt.Errorf("register %s: %w", subject, err)
	}
	return id, nil
}

func (c *SchemaRegistryClient) post(ctx context.Context, path, schema string) (int, error) {
	body, err := json.Marshal(struct {
		SchemaType string `json:"schemaType"`
		Schema     string `json:"schema"`
	}{"JSON", schema})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", registryContentType)
	req.Header.Set("Accept", registryContentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		regErr := &registryError{Status: resp.StatusCode}
		if json.NewDecoder(resp.Body).Decode(regErr) != nil {
			regErr.Message = http.StatusText(resp.StatusCode)
		}
		return 0, regErr
	}

	var registered struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&registered); err != nil {
		return 0, fmt.Errorf("decode schema id: %w", err)
	}
	return registered.ID, nil
}
