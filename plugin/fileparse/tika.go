package fileparse

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// TikaConfig holds the Apache Tika server settings used for PDF and
// document text extraction.
type TikaConfig struct {
	// ServerURL is the URL of the Tika server (e.g., http://localhost:9998)
	ServerURL string
	// Timeout is the HTTP timeout for Tika server requests
	Timeout time.Duration
}

// DefaultTikaConfig returns the default Tika configuration.
func DefaultTikaConfig() *TikaConfig {
	return &TikaConfig{
		ServerURL: "http://localhost:9998",
		Timeout:   30 * time.Second,
	}
}

// TikaClient extracts document text through a Tika server.
type TikaClient struct {
	config     *TikaConfig
	httpClient *http.Client
}

// NewTikaClient creates a new Tika client.
func NewTikaClient(config *TikaConfig) *TikaClient {
	if config == nil {
		config = DefaultTikaConfig()
	}

	return &TikaClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// ExtractText sends the document to the Tika server and returns the plain
// text it extracts.
func (c *TikaClient) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.config.ServerURL+"/tika",
		bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "tika server request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", errors.Errorf("tika server returned status %d: %s", resp.StatusCode, string(body))
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read tika response")
	}

	return string(text), nil
}
