package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastebuds/room-server-go/internal/middleware"
	"github.com/tastebuds/room-server-go/internal/model"
	"github.com/tastebuds/room-server-go/internal/repository"
	"github.com/tastebuds/room-server-go/internal/service"
)

// fakeRoomStore mirrors the SQL store's leaf-write semantics in memory so
// handler tests can run the real service stack without a database.
type fakeRoomStore struct {
	mu      sync.Mutex
	rooms   map[string]*model.Room
	cands   map[string][]model.Candidate
	roster  map[string][]string
	swipes  map[string]map[string]map[string]model.Decision
	matches map[string][]string
}

func newFakeRoomStore() *fakeRoomStore {
	return &fakeRoomStore{
		rooms:   make(map[string]*model.Room),
		cands:   make(map[string][]model.Candidate),
		roster:  make(map[string][]string),
		swipes:  make(map[string]map[string]map[string]model.Decision),
		matches: make(map[string][]string),
	}
}

func (f *fakeRoomStore) WithTx(tx *sqlx.Tx) repository.RoomRepository { return f }

func (f *fakeRoomStore) Insert(ctx context.Context, params model.CreateRoomParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[params.ID]; ok {
		return repository.ErrDuplicateRoomID
	}
	now := time.Now()
	f.rooms[params.ID] = &model.Room{ID: params.ID, CreatorID: params.CreatorID, Status: model.RoomStatusActive, CreatedAt: now, UpdatedAt: now}
	f.cands[params.ID] = append([]model.Candidate(nil), params.Candidates...)
	f.roster[params.ID] = []string{params.CreatorID}
	f.swipes[params.ID] = map[string]map[string]model.Decision{params.CreatorID: {}}
	f.matches[params.ID] = []string{}
	return nil
}

func (f *fakeRoomStore) FindByID(ctx context.Context, id string) (*model.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return nil, nil
	}
	copied := *room
	return &copied, nil
}

func (f *fakeRoomStore) LockRoom(ctx context.Context, id string) (*model.Room, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeRoomStore) Snapshot(ctx context.Context, id string) (*model.RoomSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return nil, nil
	}
	snap := &model.RoomSnapshot{
		ID:         room.ID,
		CreatorID:  room.CreatorID,
		Status:     room.Status,
		Candidates: append([]model.Candidate(nil), f.cands[id]...),
		Roster:     append([]string(nil), f.roster[id]...),
		Swipes:     make(map[string]map[string]model.Decision),
		Matches:    append([]string(nil), f.matches[id]...),
		WinnerID:   room.WinnerID,
		CreatedAt:  room.CreatedAt,
		UpdatedAt:  room.UpdatedAt,
	}
	for _, p := range f.roster[id] {
		snap.Swipes[p] = make(map[string]model.Decision)
		for c, d := range f.swipes[id][p] {
			snap.Swipes[p][c] = d
		}
	}
	return snap, nil
}

func (f *fakeRoomStore) AddParticipant(ctx context.Context, roomID, participantID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.roster[roomID] {
		if p == participantID {
			return false, nil
		}
	}
	f.roster[roomID] = append(f.roster[roomID], participantID)
	f.swipes[roomID][participantID] = map[string]model.Decision{}
	return true, nil
}

func (f *fakeRoomStore) RecordSwipe(ctx context.Context, roomID, participantID, candidateID string, decision model.Decision) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.swipes[roomID][participantID][candidateID]; ok {
		return false, nil
	}
	f.swipes[roomID][participantID][candidateID] = decision
	return true, nil
}

func (f *fakeRoomStore) SwipesForCandidate(ctx context.Context, roomID, candidateID string) (map[string]model.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	decisions := make(map[string]model.Decision)
	for p, byCandidate := range f.swipes[roomID] {
		if d, ok := byCandidate[candidateID]; ok {
			decisions[p] = d
		}
	}
	return decisions, nil
}

func (f *fakeRoomStore) ListRoster(ctx context.Context, roomID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.roster[roomID]...), nil
}

func (f *fakeRoomStore) ListMatches(ctx context.Context, roomID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.matches[roomID]...), nil
}

func (f *fakeRoomStore) AppendMatch(ctx context.Context, roomID, candidateID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.matches[roomID] {
		if c == candidateID {
			return nil
		}
	}
	f.matches[roomID] = append(f.matches[roomID], candidateID)
	return nil
}

func (f *fakeRoomStore) CommitWinner(ctx context.Context, roomID, candidateID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room := f.rooms[roomID]
	if room == nil || room.WinnerID != nil {
		return false, nil
	}
	room.WinnerID = &candidateID
	room.Status = model.RoomStatusDecided
	return true, nil
}

func (f *fakeRoomStore) Touch(ctx context.Context, roomID string) error { return nil }

func (f *fakeRoomStore) DeleteIdle(ctx context.Context, idleFor time.Duration) (int64, error) {
	return 0, nil
}

type fakeIdentityRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Identity
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	return &fakeIdentityRepo{byID: make(map[string]*model.Identity)}
}

func (f *fakeIdentityRepo) FindByID(ctx context.Context, id string) (*model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	copied := *identity
	return &copied, nil
}

func (f *fakeIdentityRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, identity := range f.byID {
		if identity.TokenHash == tokenHash {
			copied := *identity
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeIdentityRepo) Create(ctx context.Context, params model.CreateIdentityParams) (*model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity := &model.Identity{ID: params.ID, TokenHash: params.TokenHash, DisplayName: params.DisplayName, CreatedAt: time.Now()}
	f.byID[identity.ID] = identity
	return identity, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []model.HistoryEntry
}

func (f *fakeHistoryRepo) Record(ctx context.Context, entry model.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ParticipantID == entry.ParticipantID && e.RoomID == entry.RoomID && e.WinnerID == entry.WinnerID {
			return nil
		}
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeHistoryRepo) ListByParticipant(ctx context.Context, participantID string) ([]model.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := []model.HistoryEntry{}
	for _, e := range f.entries {
		if e.ParticipantID == participantID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

type noopPublisher struct{}

func (noopPublisher) Publish(ctx context.Context, roomID string, eventType string) error {
	return nil
}

// testAPI mounts the room routes behind a token-to-identity shim standing in
// for the auth middleware.
type testAPI struct {
	router     chi.Router
	identities *fakeIdentityRepo
	history    *fakeHistoryRepo
	store      *fakeRoomStore
}

func newTestAPI() *testAPI {
	api := &testAPI{
		identities: newFakeIdentityRepo(),
		history:    &fakeHistoryRepo{},
		store:      newFakeRoomStore(),
	}

	roomService := service.NewRoomService(passthroughTx{}, api.store, api.identities, api.history, noopPublisher{})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			auth := req.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				id := strings.TrimPrefix(auth, "Bearer ")
				if identity, _ := api.identities.FindByID(req.Context(), id); identity != nil {
					ctx := context.WithValue(req.Context(), middleware.IdentityContextKey, identity)
					req = req.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Mount("/rooms", NewRoomHandler(roomService).Routes())

	api.router = r
	return api
}

func (api *testAPI) addIdentity(id, displayName string) {
	identity := &model.Identity{ID: id, TokenHash: "hash-" + id}
	if displayName != "" {
		identity.DisplayName = &displayName
	}
	api.identities.byID[id] = identity
}

func (api *testAPI) do(t *testing.T, method, path, as string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+as)
	}
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	return rec
}

func decodeRoomResponse(t *testing.T, rec *httptest.ResponseRecorder) (map[string]any, map[string]any) {
	t.Helper()
	var body struct {
		Room map[string]any `json:"room"`
		View map[string]any `json:"view"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Room, body.View
}

func createRoomBody() map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{"id": "x", "name": "The Golden Spoon", "category": "italian"},
			{"id": "y", "name": "Taco Corner", "category": "mexican"},
		},
	}
}

func TestRoomHandler_Create(t *testing.T) {
	t.Run("requires authentication", func(t *testing.T) {
		api := newTestAPI()
		rec := api.do(t, http.MethodPost, "/rooms", "", createRoomBody())
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		api := newTestAPI()
		api.addIdentity("a", "Alice")

		req := httptest.NewRequest(http.MethodPost, "/rooms", strings.NewReader("{nope"))
		req.Header.Set("Authorization", "Bearer a")
		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects empty candidate list", func(t *testing.T) {
		api := newTestAPI()
		api.addIdentity("a", "Alice")

		rec := api.do(t, http.MethodPost, "/rooms", "a", map[string]any{"candidates": []any{}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns the created room with the caller's view", func(t *testing.T) {
		api := newTestAPI()
		api.addIdentity("a", "Alice")

		rec := api.do(t, http.MethodPost, "/rooms", "a", createRoomBody())
		require.Equal(t, http.StatusCreated, rec.Code)

		room, view := decodeRoomResponse(t, rec)
		code, _ := room["id"].(string)
		assert.Len(t, code, 5)
		assert.Equal(t, []any{"a"}, room["roster"])

		next, _ := view["nextCandidate"].(map[string]any)
		require.NotNil(t, next)
		assert.Equal(t, "x", next["id"])
	})
}

func TestRoomHandler_GetAndJoin(t *testing.T) {
	api := newTestAPI()
	api.addIdentity("a", "Alice")
	api.addIdentity("b", "")

	rec := api.do(t, http.MethodPost, "/rooms", "a", createRoomBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	room, _ := decodeRoomResponse(t, rec)
	code := room["id"].(string)

	t.Run("get requires authentication", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/rooms/"+code, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown code is 404", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/rooms/ZZZZZ", "a", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("join adds the caller to the roster", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/rooms/"+code+"/join", "b", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		room, _ := decodeRoomResponse(t, rec)
		assert.Equal(t, []any{"a", "b"}, room["roster"])
	})

	t.Run("lowercase code resolves", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/rooms/"+strings.ToLower(code), "a", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRoomHandler_SwipeAndWinner(t *testing.T) {
	api := newTestAPI()
	api.addIdentity("a", "Alice")
	api.addIdentity("b", "Bob")

	rec := api.do(t, http.MethodPost, "/rooms", "a", createRoomBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	room, _ := decodeRoomResponse(t, rec)
	code := room["id"].(string)

	rec = api.do(t, http.MethodPost, "/rooms/"+code+"/join", "b", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("winner before any match is 412", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/rooms/"+code+"/winner", "a", nil)
		assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	})

	t.Run("mutual approval surfaces the match", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/rooms/"+code+"/swipes", "a",
			map[string]any{"candidateId": "x", "decision": "approve"})
		require.Equal(t, http.StatusOK, rec.Code)
		room, _ := decodeRoomResponse(t, rec)
		assert.Empty(t, room["matches"])

		rec = api.do(t, http.MethodPost, "/rooms/"+code+"/swipes", "b",
			map[string]any{"candidateId": "x", "decision": "approve"})
		require.Equal(t, http.StatusOK, rec.Code)
		room, view := decodeRoomResponse(t, rec)
		assert.Equal(t, []any{"x"}, room["matches"])

		visible, _ := view["visibleMatches"].([]any)
		require.Len(t, visible, 1)
	})

	t.Run("repeat swipe is 409", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/rooms/"+code+"/swipes", "a",
			map[string]any{"candidateId": "x", "decision": "reject"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("non-member swipe is 403", func(t *testing.T) {
		api.addIdentity("c", "")
		rec := api.do(t, http.MethodPost, "/rooms/"+code+"/swipes", "c",
			map[string]any{"candidateId": "x", "decision": "approve"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("winner commits and is stable", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/rooms/"+code+"/winner", "a", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		room, _ := decodeRoomResponse(t, rec)
		assert.Equal(t, "x", room["winnerId"])
		assert.Equal(t, "decided", room["status"])

		rec = api.do(t, http.MethodPost, "/rooms/"+code+"/winner", "b", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		room, _ = decodeRoomResponse(t, rec)
		assert.Equal(t, "x", room["winnerId"])
	})

	t.Run("swipes after the winner are 409", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/rooms/"+code+"/swipes", "a",
			map[string]any{"candidateId": "y", "decision": "approve"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}
