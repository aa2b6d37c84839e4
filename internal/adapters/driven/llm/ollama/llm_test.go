package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

func TestLLMService_Chat(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: "cleaned text"},
			Done:    true,
		})
	}))
	defer srv.Close()

	svc := NewLLMService(Config{BaseURL: srv.URL, Model: "test-model"})

	text, err := svc.Chat(context.Background(), []driven.ChatMessage{
		{Role: "system", Content: "Fix OCR artifacts."},
		{Role: "user", Content: "raw  t ext"},
	}, driven.ChatOptions{MaxTokens: 100})
	require.NoError(t, err)

	assert.Equal(t, "cleaned text", text)
	assert.Equal(t, "test-model", gotReq.Model)
	assert.False(t, gotReq.Stream)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	require.NotNil(t, gotReq.Options)
	assert.Equal(t, 100, gotReq.Options.NumPredict)
}

func TestLLMService_Chat_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := NewLLMService(Config{BaseURL: srv.URL})

	_, err := svc.Chat(context.Background(), []driven.ChatMessage{{Role: "user", Content: "q"}}, driven.ChatOptions{})
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.True(t, domain.Transient(err))
}

func TestLLMService_Defaults(t *testing.T) {
	svc := NewLLMService(Config{})
	assert.Equal(t, DefaultModel, svc.ModelName())
}
