package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/inkleaf/backend/internal/friends"
	"github.com/inkleaf/backend/internal/models"
	"github.com/inkleaf/backend/internal/repositories"
)

type stubSessions struct {
	userID string
	err    error
}

func (s stubSessions) Issue(context.Context, string) (models.SessionTokens, error) {
	return models.SessionTokens{}, errors.New("not implemented")
}

func (s stubSessions) Refresh(context.Context, string) (models.SessionTokens, error) {
	return models.SessionTokens{}, errors.New("not implemented")
}

func (s stubSessions) Resolve(context.Context, string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.userID, nil
}

func (s stubSessions) Revoke(context.Context, string) {}

type memoryRelationshipStore struct {
	rows map[string]models.Friendship
}

func newMemoryRelationshipStore() *memoryRelationshipStore {
	return &memoryRelationshipStore{rows: make(map[string]models.Friendship)}
}

func (s *memoryRelationshipStore) ListForUser(_ context.Context, userID string) ([]models.Friendship, error) {
	var out []models.Friendship
	for _, rel := range s.rows {
		if rel.Involves(userID) {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (s *memoryRelationshipStore) Find(_ context.Context, id string) (models.Friendship, error) {
	rel, ok := s.rows[id]
	if !ok {
		return models.Friendship{}, repositories.ErrNotFound
	}
	return rel, nil
}

func (s *memoryRelationshipStore) FindBetween(_ context.Context, a, b string) (models.Friendship, error) {
	for _, rel := range s.rows {
		if rel.Involves(a) && rel.Involves(b) {
			return rel, nil
		}
	}
	return models.Friendship{}, repositories.ErrNotFound
}

func (s *memoryRelationshipStore) Create(_ context.Context, friendship models.Friendship) error {
	for _, rel := range s.rows {
		if rel.Involves(friendship.RequesterID) && rel.Involves(friendship.AddresseeID) {
			return repositories.ErrConflict
		}
	}
	s.rows[friendship.ID] = friendship
	return nil
}

func (s *memoryRelationshipStore) UpdateStatus(_ context.Context, id, status, blockedBy string) error {
	rel, ok := s.rows[id]
	if !ok {
		return repositories.ErrNotFound
	}
	rel.Status = status
	rel.BlockedBy = blockedBy
	rel.UpdatedAt = time.Now().UTC()
	s.rows[id] = rel
	return nil
}

func (s *memoryRelationshipStore) Delete(_ context.Context, id string) error {
	if _, ok := s.rows[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

// registryProvider hands out one pre-started registry, the way the manager
// does for a signed-in user.
type registryProvider struct {
	registry *friends.Registry
	err      error
}

func (p registryProvider) Registry(context.Context, string) (*friends.Registry, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.registry, nil
}

func newTestRegistry(t *testing.T, userID string, store friends.RelationshipStore) *friends.Registry {
	t.Helper()
	registry := friends.NewRegistry(userID, store, nil, nil, nil)
	if err := registry.Start(context.Background()); err != nil {
		t.Fatalf("start registry: %v", err)
	}
	t.Cleanup(registry.Close)
	return registry
}

func seedRelationship(t *testing.T, store *memoryRelationshipStore, requester, addressee, status, blockedBy string) models.Friendship {
	t.Helper()
	rel := models.Friendship{
		ID:          uuid.NewString(),
		RequesterID: requester,
		AddresseeID: addressee,
		Status:      status,
		BlockedBy:   blockedBy,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := store.Create(context.Background(), rel); err != nil {
		t.Fatalf("seed relationship: %v", err)
	}
	return rel
}

func authedRequest(method, target string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Authorization", "Bearer test-token")
	return req
}

func TestFriendHandlerListPartitions(t *testing.T) {
	store := newMemoryRelationshipStore()
	seedRelationship(t, store, "alice", "bob", models.FriendshipAccepted, "")
	seedRelationship(t, store, "carol", "alice", models.FriendshipPending, "")
	seedRelationship(t, store, "alice", "dave", models.FriendshipPending, "")
	seedRelationship(t, store, "alice", "eve", models.FriendshipBlocked, "alice")

	registry := newTestRegistry(t, "alice", store)
	handler := FriendHandler{
		Registries: registryProvider{registry: registry},
		Sessions:   stubSessions{userID: "alice"},
	}

	rec := httptest.NewRecorder()
	handler.List(rec, authedRequest(http.MethodGet, "/api/v1/friends", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp partitionsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if len(resp.Friends) != 1 || len(resp.PendingReceived) != 1 || len(resp.PendingSent) != 1 || len(resp.Blocked) != 1 {
		t.Fatalf("unexpected partition sizes: %+v", resp)
	}
	if resp.Friends[0].AddresseeID != "bob" {
		t.Fatalf("expected bob in friends, got %+v", resp.Friends[0])
	}
	if resp.PendingReceived[0].RequesterID != "carol" {
		t.Fatalf("expected carol in pendingReceived, got %+v", resp.PendingReceived[0])
	}
	if !resp.Blocked[0].BlockedByMe {
		t.Fatalf("expected blockedByMe on the block alice imposed")
	}
}

func TestFriendHandlerListAuthFailures(t *testing.T) {
	registry := newTestRegistry(t, "alice", newMemoryRelationshipStore())

	cases := []struct {
		name    string
		header  string
		session stubSessions
	}{
		{name: "missing token", header: "", session: stubSessions{userID: "alice"}},
		{name: "rejected token", header: "Bearer bad", session: stubSessions{err: errors.New("expired")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := FriendHandler{
				Registries: registryProvider{registry: registry},
				Sessions:   tc.session,
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/friends", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			handler.List(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
			}
		})
	}
}

func TestFriendHandlerStatus(t *testing.T) {
	store := newMemoryRelationshipStore()
	rel := seedRelationship(t, store, "alice", "bob", models.FriendshipAccepted, "")

	registry := newTestRegistry(t, "alice", store)
	handler := FriendHandler{
		Registries: registryProvider{registry: registry},
		Sessions:   stubSessions{userID: "alice"},
	}

	rec := httptest.NewRecorder()
	handler.Status(rec, authedRequest(http.MethodGet, "/api/v1/friends/status?userId=bob", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != string(friends.StatusFriends) {
		t.Fatalf("expected friends status, got %q", resp["status"])
	}
	if resp["friendshipId"] != rel.ID {
		t.Fatalf("expected friendship id %s, got %q", rel.ID, resp["friendshipId"])
	}

	rec = httptest.NewRecorder()
	handler.Status(rec, authedRequest(http.MethodGet, "/api/v1/friends/status?userId=stranger", nil))

	resp = map[string]string{}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode stranger response: %v", err)
	}
	if resp["status"] != string(friends.StatusNone) {
		t.Fatalf("expected none status for stranger, got %q", resp["status"])
	}

	rec = httptest.NewRecorder()
	handler.Status(rec, authedRequest(http.MethodGet, "/api/v1/friends/status", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d without userId, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestFriendHandlerSendRequest(t *testing.T) {
	store := newMemoryRelationshipStore()
	registry := newTestRegistry(t, "alice", store)
	handler := FriendHandler{
		Registries: registryProvider{registry: registry},
		Sessions:   stubSessions{userID: "alice"},
	}

	body := []byte(`{"userId":"bob"}`)

	rec := httptest.NewRecorder()
	handler.SendRequest(rec, authedRequest(http.MethodPost, "/api/v1/friends/requests", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if len(store.rows) != 1 {
		t.Fatalf("expected 1 stored relationship, got %d", len(store.rows))
	}

	rec = httptest.NewRecorder()
	handler.SendRequest(rec, authedRequest(http.MethodPost, "/api/v1/friends/requests", body))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d for duplicate, got %d", http.StatusConflict, rec.Code)
	}
}

func TestFriendHandlerAcceptByID(t *testing.T) {
	store := newMemoryRelationshipStore()
	rel := seedRelationship(t, store, "bob", "alice", models.FriendshipPending, "")

	registry := newTestRegistry(t, "alice", store)
	handler := FriendHandler{
		Registries: registryProvider{registry: registry},
		Sessions:   stubSessions{userID: "alice"},
	}

	req := authedRequest(http.MethodPost, "/api/v1/friends/requests/"+rel.ID+"/accept", nil)
	req.SetPathValue("id", rel.ID)
	rec := httptest.NewRecorder()

	handler.Accept(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if store.rows[rel.ID].Status != models.FriendshipAccepted {
		t.Fatalf("expected accepted status, got %q", store.rows[rel.ID].Status)
	}
}

func TestFriendHandlerErrorMapping(t *testing.T) {
	store := newMemoryRelationshipStore()
	registry := newTestRegistry(t, "alice", store)

	cases := []struct {
		name       string
		handler    FriendHandler
		body       string
		wantStatus int
	}{
		{
			name: "self target",
			handler: FriendHandler{
				Registries: registryProvider{registry: registry},
				Sessions:   stubSessions{userID: "alice"},
			},
			body:       `{"userId":"alice"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "registry unavailable",
			handler: FriendHandler{
				Registries: registryProvider{err: errors.New("manager shut down")},
				Sessions:   stubSessions{userID: "alice"},
			},
			body:       `{"userId":"bob"}`,
			wantStatus: http.StatusBadGateway,
		},
		{
			name: "invalid body",
			handler: FriendHandler{
				Registries: registryProvider{registry: registry},
				Sessions:   stubSessions{userID: "alice"},
			},
			body:       `{"userId":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.handler.SendRequest(rec, authedRequest(http.MethodPost, "/api/v1/friends/requests", []byte(tc.body)))

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestFriendHandlerMethodNotAllowed(t *testing.T) {
	registry := newTestRegistry(t, "alice", newMemoryRelationshipStore())
	handler := FriendHandler{
		Registries: registryProvider{registry: registry},
		Sessions:   stubSessions{userID: "alice"},
	}

	rec := httptest.NewRecorder()
	handler.List(rec, authedRequest(http.MethodPost, "/api/v1/friends", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d got %d", http.StatusMethodNotAllowed, rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.Remove(rec, authedRequest(http.MethodGet, "/api/v1/friends/some-id", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
