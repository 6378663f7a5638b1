package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kingabzpro/ECom-Intel/internal/review"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "sk-test", "gpt-4o-mini", 5*time.Second, zap.NewNop())
}

func chatReply(content string) chatResponse {
	return chatResponse{
		Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: content}}},
	}
}

func TestChatJSONRequestsJSONMode(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "gpt-4o-mini", req.Model)
		require.Equal(t, "json_object", req.ResponseFormat.Type)
		require.Len(t, req.Messages, 2)
		require.Equal(t, "system", req.Messages[0].Role)
		require.Equal(t, "user", req.Messages[1].Role)

		json.NewEncoder(w).Encode(chatReply(`{"positive": 3}`)) //nolint:errcheck
	})

	raw, err := client.ChatJSON(context.Background(), "you are an analyst", "count sentiment")
	require.NoError(t, err)
	require.JSONEq(t, `{"positive": 3}`, string(raw))
}

func TestChatJSONRejectsNonJSONContent(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(chatReply("Sure! Here is the analysis you asked for.")) //nolint:errcheck
	})

	_, err := client.ChatJSON(context.Background(), "sys", "user")
	require.Error(t, err)
	require.Equal(t, review.KindAnalysis, review.KindOf(err))
}

func TestChatJSONStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		kind   review.Kind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, kind: review.KindConfig},
		{name: "rate limited", status: http.StatusTooManyRequests, kind: review.KindRateLimit},
		{name: "server error", status: http.StatusInternalServerError, kind: review.KindAnalysis},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			})

			_, err := client.ChatJSON(context.Background(), "sys", "user")
			require.Error(t, err)
			require.Equal(t, tc.kind, review.KindOf(err))
		})
	}
}

func TestChatJSONSurfacesAPIError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		resp := chatResponse{Error: &apiError{Message: "model overloaded", Type: "server_error"}}
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	})

	_, err := client.ChatJSON(context.Background(), "sys", "user")
	require.Error(t, err)
	require.Contains(t, err.Error(), "model overloaded")
}
