package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/askql-io/askql"
)

// intentClient asks a remote collaborator to propose a plan for a question.
// The response body is returned verbatim: the pipeline treats it as untrusted
// input and validates it against the plan schema before use.
type intentClient struct {
	url    string
	client *http.Client
}

func newIntentClient(url string) *intentClient {
	return &intentClient{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *intentClient) ProposePlan(ctx context.Context, question string, schema []askql.TableEntry) ([]byte, error) {
	payload, err := json.Marshal(map[string]any{
		"question": question,
		"schema":   schema,
	})
	if err != nil {
		return nil, fmt.Errorf("encode intent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("intent request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("intent collaborator returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// embedClient fetches an embedding vector for a question from a remote
// collaborator. Vectors of the wrong dimension are rejected here so the
// cache never sees them.
type embedClient struct {
	url       string
	dimension int
	client    *http.Client
}

func newEmbedClient(url string, dimension int) *embedClient {
	return &embedClient{
		url:       url,
		dimension: dimension,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *embedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(map[string]any{"text": text})
	if err != nil {
		return nil, fmt.Errorf("encode embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding collaborator returned status %d", resp.StatusCode)
	}

	var body struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(body.Embedding) != c.dimension {
		return nil, fmt.Errorf("embedding has dimension %d, expected %d", len(body.Embedding), c.dimension)
	}
	return body.Embedding, nil
}
