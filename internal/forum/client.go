package forum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/opsdesk/support-engine/internal/config"
	apperrors "github.com/opsdesk/support-engine/pkg/util"
)

// Category is a forum category a converted ticket can be posted under.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Post is a public forum thread created from a ticket.
type Post struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Client talks to the forum service. Used only by ticket conversion.
type Client interface {
	// EnsureCategory resolves the category by ID, creating the configured
	// default category when the ID does not exist.
	EnsureCategory(ctx context.Context, categoryID string) (*Category, error)
	CreatePost(ctx context.Context, categoryID, title, body string) (*Post, error)
}

type httpClient struct {
	cfg    config.ForumConfig
	client *http.Client
}

// NewHTTPClient builds the forum-service HTTP client.
func NewHTTPClient(cfg config.ForumConfig) Client {
	return &httpClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout(),
		},
	}
}

func (f *httpClient) EnsureCategory(ctx context.Context, categoryID string) (*Category, error) {
	category, err := f.getCategory(ctx, categoryID)
	if err == nil {
		return category, nil
	}
	if apperrors.ToDomainError(err).Code != "NOT_FOUND" {
		return nil, err
	}
	return f.createCategory(ctx, f.cfg.DefaultCategoryName)
}

func (f *httpClient) getCategory(ctx context.Context, categoryID string) (*Category, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url("/categories/"+categoryID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.NewDependencyError("forum service", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var category Category
		if err := json.NewDecoder(resp.Body).Decode(&category); err != nil {
			return nil, apperrors.NewDependencyError("forum service", err)
		}
		return &category, nil
	case http.StatusNotFound:
		return nil, apperrors.NewNotFound("forum category", map[string]any{"category_id": categoryID})
	default:
		return nil, apperrors.NewDependencyError("forum service", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

func (f *httpClient) createCategory(ctx context.Context, name string) (*Category, error) {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url("/categories"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.NewDependencyError("forum service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewDependencyError("forum service", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	var category Category
	if err := json.NewDecoder(resp.Body).Decode(&category); err != nil {
		return nil, apperrors.NewDependencyError("forum service", err)
	}
	return &category, nil
}

func (f *httpClient) CreatePost(ctx context.Context, categoryID, title, content string) (*Post, error) {
	body, err := json.Marshal(map[string]string{
		"category_id": categoryID,
		"title":       title,
		"content":     content,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url("/posts"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.NewDependencyError("forum service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewDependencyError("forum service", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	var post Post
	if err := json.NewDecoder(resp.Body).Decode(&post); err != nil {
		return nil, apperrors.NewDependencyError("forum service", err)
	}
	return &post, nil
}

func (f *httpClient) url(path string) string {
	return strings.TrimRight(f.cfg.BaseURL, "/") + path
}
