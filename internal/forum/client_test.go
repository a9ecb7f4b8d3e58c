package forum

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/support-engine/internal/config"
)

func forumServer(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPClient(config.ForumConfig{
		BaseURL:             server.URL,
		TimeoutSeconds:      2,
		DefaultCategoryName: "Support",
	})
}

func TestEnsureCategoryFound(t *testing.T) {
	client := forumServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/categories/cat-1", r.URL.Path)
		json.NewEncoder(w).Encode(Category{ID: "cat-1", Name: "Billing"})
	})

	category, err := client.EnsureCategory(context.Background(), "cat-1")
	require.NoError(t, err)
	assert.Equal(t, "Billing", category.Name)
}

func TestEnsureCategoryCreatesDefaultOnMissing(t *testing.T) {
	client := forumServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost && r.URL.Path == "/categories":
			var payload map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "Support", payload["name"])
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(Category{ID: "cat-default", Name: "Support"})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	category, err := client.EnsureCategory(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, "cat-default", category.ID)
}

func TestEnsureCategoryPropagatesServerError(t *testing.T) {
	client := forumServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.EnsureCategory(context.Background(), "cat-1")
	assert.Error(t, err)
}

func TestCreatePost(t *testing.T) {
	client := forumServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/posts", r.URL.Path)
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "cat-1", payload["category_id"])
		assert.Equal(t, "Login broken", payload["title"])
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Post{ID: "post-1", URL: "https://forum.example.com/t/post-1"})
	})

	post, err := client.CreatePost(context.Background(), "cat-1", "Login broken", "Cannot sign in")
	require.NoError(t, err)
	assert.Equal(t, "post-1", post.ID)
	assert.NotEmpty(t, post.URL)
}
