package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxDocumentSize bounds a fetched catalog document.
const maxDocumentSize = 8 << 20

// RemoteClient fetches catalog documents over HTTP.
type RemoteClient struct {
	client  *http.Client
	headers map[string]string
}

func NewRemoteClient() *RemoteClient {
	return &RemoteClient{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: make(map[string]string),
	}
}

func (c *RemoteClient) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *RemoteClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// Fetch downloads and parses the catalog document at url.
func (c *RemoteClient) Fetch(ctx context.Context, url string) (*Catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog source returned status code: %d, response: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("catalog document exceeds %d bytes", maxDocumentSize)
	}
	return Parse(data)
}

// Load reads a catalog from an http(s) URL or a local path.
func Load(ctx context.Context, source string) (*Catalog, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return NewRemoteClient().Fetch(ctx, source)
	}
	return LoadFile(source)
}
