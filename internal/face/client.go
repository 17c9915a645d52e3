package face

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to an embedding sidecar that owns the camera:
//
//	GET {base}/embedding -> 200 {"embedding": [...]} | 204 no face
type Client struct {
	base string
	http *http.Client
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: httpClient,
	}
}

func (c *Client) Capture(ctx context.Context) ([]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/embedding", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request embedding: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding service: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, nil
	}

	return out.Embedding, nil
}
