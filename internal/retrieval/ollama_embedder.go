package retrieval

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

const (
	// ollamaEmbedChunkSize bounds pages per request so a document-sized
	// ingest does not build one giant payload.
	ollamaEmbedChunkSize = 64
	// ollamaEmbedPause paces successive chunks against a local server.
	ollamaEmbedPause = 200 * time.Millisecond
)

// OllamaEmbedder embeds note pages against a local Ollama server, for fully
// offline corpora.
type OllamaEmbedder struct {
	httpClient *http.Client
	model      string
	dimension  int
	embedURL   string
}

func NewOllamaEmbedder(model string, dim int, baseURL string) *OllamaEmbedder {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = "http://127.0.0.1:11434"
	}
	base = strings.TrimRight(base, "/")
	if !strings.HasSuffix(base, "/api/embed") {
		base += "/api/embed"
	}

	return &OllamaEmbedder{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		model:      model,
		dimension:  dim,
		embedURL:   base,
	}
}

func (o *OllamaEmbedder) Dimension() int {
	return o.dimension
}

func (o *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if strings.TrimSpace(o.model) == "" {
		return nil, fmt.Errorf("ollama embedding model is required")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += ollamaEmbedChunkSize {
		if start > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(ollamaEmbedPause):
			}
		}

		end := start + ollamaEmbedChunkSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := o.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}

	if o.dimension <= 0 {
		o.dimension = len(out[0])
	}
	return out, nil
}

func (o *OllamaEmbedder) embedChunk(ctx context.Context, pages []string) ([][]float32, error) {
	payload, err := json.Marshal(map[string]any{
		"model": o.model,
		"input": pages,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.embedURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ollama embed request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Embeddings) != len(pages) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d pages", len(parsed.Embeddings), len(pages))
	}
	return parsed.Embeddings, nil
}
