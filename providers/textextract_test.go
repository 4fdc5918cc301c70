package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "gpt-4o-mini", req.Model)
		require.NotEmpty(t, req.Messages)

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}))
}

func TestExtractClient(t *testing.T) {
	server := extractionServer(t, `{"fullName": "ИВАНОВ ИВАН ИВАНОВИЧ", "birthday": "12.05.1990"}`)
	defer server.Close()

	client := NewExtractClient(server.URL, "sk-test", "gpt-4o-mini")
	extraction, err := client.Extract(context.Background(), "raw ocr text")
	require.NoError(t, err)
	assert.Equal(t, "ИВАНОВ ИВАН ИВАНОВИЧ", extraction.FullName)
	assert.Equal(t, "12.05.1990", extraction.Birthday)
}

func TestExtractClientCodeFencedAnswer(t *testing.T) {
	server := extractionServer(t, "```json\n{\"fullName\": \"ПЕТРОВ ПЕТР ПЕТРОВИЧ\", \"birthday\": null}\n```")
	defer server.Close()

	client := NewExtractClient(server.URL, "sk-test", "gpt-4o-mini")
	extraction, err := client.Extract(context.Background(), "raw ocr text")
	require.NoError(t, err)
	assert.Equal(t, "ПЕТРОВ ПЕТР ПЕТРОВИЧ", extraction.FullName)
	assert.Empty(t, extraction.Birthday)
}

func TestExtractClientNullFields(t *testing.T) {
	server := extractionServer(t, `{"fullName": null, "birthday": null}`)
	defer server.Close()

	client := NewExtractClient(server.URL, "sk-test", "gpt-4o-mini")
	extraction, err := client.Extract(context.Background(), "unreadable")
	require.NoError(t, err)
	assert.Empty(t, extraction.FullName)
	assert.Empty(t, extraction.Birthday)
}

func TestExtractClientMalformedAnswer(t *testing.T) {
	server := extractionServer(t, "I could not find a name in this text.")
	defer server.Close()

	client := NewExtractClient(server.URL, "sk-test", "gpt-4o-mini")
	_, err := client.Extract(context.Background(), "raw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed JSON")
}
