package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inkleaf/backend/internal/models"
	"github.com/inkleaf/backend/internal/repositories"
)

type memoryStoryStore struct {
	stories map[string]models.Story
}

func newMemoryStoryStore() *memoryStoryStore {
	return &memoryStoryStore{stories: make(map[string]models.Story)}
}

func (s *memoryStoryStore) Create(_ context.Context, story models.Story) error {
	s.stories[story.ID] = story
	return nil
}

func (s *memoryStoryStore) Find(_ context.Context, id string) (models.Story, error) {
	story, ok := s.stories[id]
	if !ok {
		return models.Story{}, repositories.ErrNotFound
	}
	return story, nil
}

func (s *memoryStoryStore) ListPublic(_ context.Context, _ int) ([]models.Story, error) {
	var out []models.Story
	for _, story := range s.stories {
		if story.IsPublic {
			out = append(out, story)
		}
	}
	return out, nil
}

func (s *memoryStoryStore) ListForUser(_ context.Context, userID string) ([]models.Story, error) {
	var out []models.Story
	for _, story := range s.stories {
		if story.UserID == userID {
			out = append(out, story)
		}
	}
	return out, nil
}

func (s *memoryStoryStore) Update(_ context.Context, story models.Story) error {
	if _, ok := s.stories[story.ID]; !ok {
		return repositories.ErrNotFound
	}
	s.stories[story.ID] = story
	return nil
}

func (s *memoryStoryStore) Delete(_ context.Context, id string) error {
	if _, ok := s.stories[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.stories, id)
	return nil
}

func (s *memoryStoryStore) RecordView(_ context.Context, id string) error {
	story, ok := s.stories[id]
	if !ok || !story.IsPublic {
		return nil
	}
	story.Views++
	s.stories[id] = story
	return nil
}

func storyByIDRequest(method, id string, body []byte, authed bool) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, "/api/v1/stories/"+id, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, "/api/v1/stories/"+id, nil)
	}
	req.SetPathValue("id", id)
	if authed {
		req.Header.Set("Authorization", "Bearer test-token")
	}
	return req
}

func TestStoryHandlerCreate(t *testing.T) {
	store := newMemoryStoryStore()
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	handler := StoryHandler{
		Stories:  store,
		Sessions: stubSessions{userID: "author"},
		NowFunc:  func() time.Time { return now },
	}

	body := []byte(`{"title":"The Lighthouse Keeper","content":"The lamp had not been lit in forty years.","isPublic":true}`)
	rec := httptest.NewRecorder()
	handler.Collection(rec, authedRequest(http.MethodPost, "/api/v1/stories", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var created models.Story
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.UserID != "author" || created.WordCount != 9 || !created.CreatedAt.Equal(now) {
		t.Fatalf("unexpected created story: %+v", created)
	}
	if _, ok := store.stories[created.ID]; !ok {
		t.Fatalf("expected story to be stored")
	}

	empty := []byte(`{"title":"  ","content":""}`)
	rec = httptest.NewRecorder()
	handler.Collection(rec, authedRequest(http.MethodPost, "/api/v1/stories", empty))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d for empty fields, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestStoryHandlerGetPublicCountsView(t *testing.T) {
	store := newMemoryStoryStore()
	store.stories["s1"] = models.Story{ID: "s1", UserID: "author", Title: "Open", IsPublic: true, Views: 4}

	handler := StoryHandler{Stories: store, Sessions: stubSessions{userID: "reader"}}

	// Anonymous read of a public story succeeds and counts the view.
	rec := httptest.NewRecorder()
	handler.ByID(rec, storyByIDRequest(http.MethodGet, "s1", nil, false))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var story models.Story
	if err := json.NewDecoder(rec.Body).Decode(&story); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if story.Views != 5 {
		t.Fatalf("expected view count 5, got %d", story.Views)
	}
	if store.stories["s1"].Views != 5 {
		t.Fatalf("expected stored view count 5, got %d", store.stories["s1"].Views)
	}
}

func TestStoryHandlerPrivateVisibility(t *testing.T) {
	store := newMemoryStoryStore()
	store.stories["s2"] = models.Story{ID: "s2", UserID: "author", Title: "Hidden", IsPublic: false}

	// Anonymous readers get a 401 before any lookup detail leaks.
	handler := StoryHandler{Stories: store, Sessions: stubSessions{userID: "author"}}
	rec := httptest.NewRecorder()
	handler.ByID(rec, storyByIDRequest(http.MethodGet, "s2", nil, false))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d for anonymous reader, got %d", http.StatusUnauthorized, rec.Code)
	}

	// Another signed-in user sees a 404, not a 403.
	handler = StoryHandler{Stories: store, Sessions: stubSessions{userID: "stranger"}}
	rec = httptest.NewRecorder()
	handler.ByID(rec, storyByIDRequest(http.MethodGet, "s2", nil, true))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d for stranger, got %d", http.StatusNotFound, rec.Code)
	}

	// The owner reads it without bumping the view counter.
	handler = StoryHandler{Stories: store, Sessions: stubSessions{userID: "author"}}
	rec = httptest.NewRecorder()
	handler.ByID(rec, storyByIDRequest(http.MethodGet, "s2", nil, true))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d for owner, got %d", http.StatusOK, rec.Code)
	}
	if store.stories["s2"].Views != 0 {
		t.Fatalf("expected private views to stay 0, got %d", store.stories["s2"].Views)
	}
}

func TestStoryHandlerUpdateOwnership(t *testing.T) {
	store := newMemoryStoryStore()
	store.stories["s3"] = models.Story{ID: "s3", UserID: "author", Title: "Before", Content: "old", IsPublic: true}

	body := []byte(`{"title":"After","content":"new words here","isPublic":false}`)

	handler := StoryHandler{Stories: store, Sessions: stubSessions{userID: "stranger"}}
	rec := httptest.NewRecorder()
	handler.ByID(rec, storyByIDRequest(http.MethodPut, "s3", body, true))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d for stranger update, got %d", http.StatusForbidden, rec.Code)
	}

	handler = StoryHandler{Stories: store, Sessions: stubSessions{userID: "author"}}
	rec = httptest.NewRecorder()
	handler.ByID(rec, storyByIDRequest(http.MethodPut, "s3", body, true))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d for owner update, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	updated := store.stories["s3"]
	if updated.Title != "After" || updated.WordCount != 3 || updated.IsPublic {
		t.Fatalf("unexpected stored story: %+v", updated)
	}
}

func TestStoryHandlerDeleteOwnership(t *testing.T) {
	store := newMemoryStoryStore()
	store.stories["s4"] = models.Story{ID: "s4", UserID: "author", Title: "Doomed", IsPublic: true}

	handler := StoryHandler{Stories: store, Sessions: stubSessions{userID: "stranger"}}
	rec := httptest.NewRecorder()
	handler.ByID(rec, storyByIDRequest(http.MethodDelete, "s4", nil, true))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d for stranger delete, got %d", http.StatusForbidden, rec.Code)
	}

	handler = StoryHandler{Stories: store, Sessions: stubSessions{userID: "author"}}
	rec = httptest.NewRecorder()
	handler.ByID(rec, storyByIDRequest(http.MethodDelete, "s4", nil, true))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d for owner delete, got %d", http.StatusOK, rec.Code)
	}
	if _, ok := store.stories["s4"]; ok {
		t.Fatalf("expected story to be deleted")
	}

	rec = httptest.NewRecorder()
	handler.ByID(rec, storyByIDRequest(http.MethodGet, "s4", nil, true))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d after delete, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestStoryHandlerListMineRequiresAuth(t *testing.T) {
	store := newMemoryStoryStore()
	store.stories["s5"] = models.Story{ID: "s5", UserID: "author", Title: "Mine", IsPublic: false}
	store.stories["s6"] = models.Story{ID: "s6", UserID: "other", Title: "Public", IsPublic: true}

	handler := StoryHandler{Stories: store, Sessions: stubSessions{userID: "author"}}

	rec := httptest.NewRecorder()
	handler.Collection(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stories?mine=1", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d without token, got %d", http.StatusUnauthorized, rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.Collection(rec, authedRequest(http.MethodGet, "/api/v1/stories?mine=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var mine []models.Story
	if err := json.NewDecoder(rec.Body).Decode(&mine); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "s5" {
		t.Fatalf("unexpected own stories: %+v", mine)
	}
}
