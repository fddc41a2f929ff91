package luma

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/you-humble/videogen/internal/domain"

	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: time.Second,
	})
}

func TestSubmit(t *testing.T) {
	var got generationPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/generations", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "gen-42", "state": "queued"})
	}))
	defer srv.Close()

	id, err := newTestClient(srv).Submit(context.Background(), domain.GenerationParams{
		Prompt:      "a tiger in the snow",
		AspectRatio: "16:9",
		Loop:        true,
	})
	require.NoError(t, err)
	require.Equal(t, "gen-42", id)

	require.Equal(t, "a tiger in the snow", got.Prompt)
	require.Equal(t, "16:9", got.AspectRatio)
	require.True(t, got.Loop)
	require.Empty(t, got.Keyframes)
}

func TestSubmit_ImageKeyframe(t *testing.T) {
	var got generationPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "gen-43"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Submit(context.Background(), domain.GenerationParams{
		Prompt:   "animate this",
		ImageURL: "https://img.local/a.png",
	})
	require.NoError(t, err)

	require.Len(t, got.Keyframes, 1)
	kf, ok := got.Keyframes["frames0"]
	require.True(t, ok)
	require.Equal(t, "image", kf.Type)
	require.Equal(t, "https://img.local/a.png", kf.URL)
}

func TestSubmit_MissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"state": "queued"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Submit(context.Background(), domain.GenerationParams{Prompt: "p"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "without id")
}

func TestSubmit_BackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Submit(context.Background(), domain.GenerationParams{Prompt: "p"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 401")
	require.Contains(t, err.Error(), "invalid api key")
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/generations/gen-42", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "gen-42",
			"state": "completed",
			"video": map[string]string{"url": "https://cdn.local/v.mp4"},
		})
	}))
	defer srv.Close()

	job, err := newTestClient(srv).Status(context.Background(), "gen-42")
	require.NoError(t, err)
	require.Equal(t, domain.ExternalJob{
		ID:       "gen-42",
		State:    "completed",
		VideoURL: "https://cdn.local/v.mp4",
	}, job)
}

func TestStatus_Failed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":             "gen-44",
			"state":          "failed",
			"failure_reason": "content moderation",
		})
	}))
	defer srv.Close()

	job, err := newTestClient(srv).Status(context.Background(), "gen-44")
	require.NoError(t, err)
	require.Equal(t, "failed", job.State)
	require.Equal(t, "content moderation", job.FailureReason)
}
