package debrid

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ListTorrents(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`[
			{"id":"ABC","filename":"Movie.2024.2160p.mkv","hash":"deadbeef","status":"downloaded","progress":100},
			{"id":"DEF","filename":"Show.S01E01.1080p.mkv","hash":"cafebabe","status":"queued"}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", zerolog.Nop())
	torrents, err := client.ListTorrents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "/torrents", gotPath)
	require.Len(t, torrents, 2)
	assert.Equal(t, "Movie.2024.2160p.mkv", torrents[0].Filename)
	assert.Equal(t, "queued", torrents[1].Status)
}

func TestClient_ListTorrents_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "secret", zerolog.Nop()).ListTorrents(context.Background())
	assert.True(t, errors.Is(err, ErrEmptyResponse))
}

func TestClient_ListTorrents_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad_token"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "wrong", zerolog.Nop()).ListTorrents(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	client := NewClient("", "key", zerolog.Nop())
	assert.Equal(t, DefaultBaseURL, client.baseURL)
}
