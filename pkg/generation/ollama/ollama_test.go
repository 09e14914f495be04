package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alantheprice/proven/pkg/generation"
)

func newBackend(t *testing.T, url string) generation.Backend {
	t.Helper()
	b, err := Factory{}.Create(generation.ProviderConfig{Name: "ollama", Model: "codellama", BaseURL: url, Temperature: 0.2})
	require.NoError(t, err)
	return b
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "codellama", req["model"])
		assert.Equal(t, false, req["stream"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"codellama","message":{"role":"assistant","content":"def f(): pass"},"done":true}`))
	}))
	defer server.Close()

	text, err := newBackend(t, server.URL).Generate(context.Background(), generation.Request{System: "s", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "def f(): pass", text)
}

func TestGenerateStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"model is loading"}`))
	}))
	defer server.Close()

	_, err := newBackend(t, server.URL).Generate(context.Background(), generation.Request{User: "u"})
	assert.Equal(t, generation.ServiceUnavailable, generation.KindOf(err))
}

func TestFactoryDoesNotNeedKey(t *testing.T) {
	_, err := Factory{}.Create(generation.ProviderConfig{Model: "codellama", BaseURL: "http://localhost:11434"})
	assert.NoError(t, err)
}
