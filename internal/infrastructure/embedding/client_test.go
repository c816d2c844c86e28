package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faq-rag-api/internal/config"
)

func TestClientEmbedStringsBatches(t *testing.T) {
	var batches [][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		batches = append(batches, req.Texts)

		resp := embedResponse{}
		for range req.Texts {
			resp.Embeddings = append(resp.Embeddings, []float64{0.1, 0.2})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c, err := NewClient(&config.EmbeddingConfig{Endpoint: srv.URL, BatchSize: 2})
	require.NoError(t, err)

	out, err := c.EmbedStrings(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, batches)
}

func TestClientErrors(t *testing.T) {
	_, err := NewClient(&config.EmbeddingConfig{})
	assert.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(&config.EmbeddingConfig{Endpoint: srv.URL + "/v1/embed"})
	require.NoError(t, err)
	_, err = c.EmbedStrings(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "status=502")

	_, err = NewEmbedder(context.Background(), &config.EmbeddingConfig{Provider: "nope"})
	assert.Error(t, err)
}
