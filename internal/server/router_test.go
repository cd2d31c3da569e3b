package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"recipedia/internal/catalog"
	"recipedia/internal/config"
	"recipedia/internal/db"
	"recipedia/internal/db/dbtest"
	"recipedia/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

type stubCatalog struct{}

func (stubCatalog) Lookup(_ context.Context, id string) (catalog.Meal, error) {
	return catalog.Meal{ID: id, Title: "Meal " + id}, nil
}

func (stubCatalog) SuggestDishes(_ context.Context, area string, _ int) ([]string, error) {
	if area == "Atlantis" {
		return nil, catalog.ErrNotFound
	}
	return []string{"Dal", "Biryani"}, nil
}

type nopMailer struct{}

func (nopMailer) SendPasswordReset(context.Context, string, string) error { return nil }

func testConfig() config.Config {
	return config.Config{
		Port: "0", JWTSecret: "secret", Env: "dev",
		AccessTokenTTLMinutes: 15, RefreshTokenTTLDays: 7,
		PublicURL: "https://recipedia.test", CatalogTimeoutSeconds: 1,
		InviteTTLDays: 7, InviteCodeAttempts: 5, ResetTokenTTLMinutes: 60,
	}
}

func newTestRouter(t *testing.T, gdb *gorm.DB) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	hub := ws.NewHub()
	r, stop := SetupRouter(cfg, gdb, hub, NewServices(cfg, gdb, hub, stubCatalog{}, nopMailer{}))
	t.Cleanup(func() {
		stop()
		hub.Close()
	})
	return r
}

// do 发送 JSON 请求并返回状态码与响应体。
func do(t *testing.T, r *gin.Engine, method, path, token string, body any) (int, gjson.Result) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code, gjson.ParseBytes(w.Body.Bytes())
}

func register(t *testing.T, r *gin.Engine, name string) (token string, id uint) {
	t.Helper()
	code, res := do(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": name, "email": strings.ToLower(name) + "@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, code, res.Raw)
	return res.Get("access_token").String(), uint(res.Get("user.id").Uint())
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t, dbtest.Open(t))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}

func TestHealthzPostgres(t *testing.T) {
	gdb, err := db.Connect("host=localhost user=postgres password=postgres dbname=recipedia port=5432 sslmode=disable TimeZone=UTC")
	if err != nil {
		t.Skipf("skip: db not available: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Skipf("skip: migrate failed: %v", err)
	}
	r := newTestRouter(t, gdb)
	code, _ := do(t, r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestAuthRequired(t *testing.T) {
	r := newTestRouter(t, dbtest.Open(t))
	code, _ := do(t, r, http.MethodGet, "/api/rooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = do(t, r, http.MethodGet, "/api/rooms", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAuthFlow(t *testing.T) {
	r := newTestRouter(t, dbtest.Open(t))
	register(t, r, "Alice")

	code, res := do(t, r, http.MethodPost, "/api/auth/register", "", gin.H{"name": "A2", "email": "ALICE@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, code, res.Raw)
	code, _ = do(t, r, http.MethodPost, "/api/auth/register", "", gin.H{"name": "B", "email": "b@example.com", "password": "123"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "nope123"})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, res = do(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, code)

	code, res = do(t, r, http.MethodPost, "/api/auth/refresh", "", gin.H{"refresh_token": res.Get("refresh_token").String()})
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, res.Get("access_token").String())

	code, res = do(t, r, http.MethodPost, "/api/auth/forgot-password", "", gin.H{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, res.Get("message").String())
	code, _ = do(t, r, http.MethodGet, "/api/auth/verify-reset-token/deadbeef", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

// 创建房间、发邀请、兑换、移除成员、提交菜单建议的完整流程。
func TestRoomInviteBoardFlow(t *testing.T) {
	r := newTestRouter(t, dbtest.Open(t))
	aTok, _ := register(t, r, "Alice")
	bTok, _ := register(t, r, "Bob")
	cTok, cID := register(t, r, "Carol")

	code, res := do(t, r, http.MethodPost, "/api/rooms", aTok, gin.H{"name": "  Family "})
	require.Equal(t, http.StatusCreated, code, res.Raw)
	roomID := res.Get("id").String()
	assert.Equal(t, "Family", res.Get("name").String())
	assert.Equal(t, int64(1), res.Get("members.#").Int())

	code, _ = do(t, r, http.MethodPost, "/api/rooms", aTok, gin.H{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, r, http.MethodPost, "/api/rooms/"+roomID+"/invite", bTok, nil)
	assert.Equal(t, http.StatusForbidden, code, "non-member cannot invite")
	code, _ = do(t, r, http.MethodPost, "/api/rooms/9999/invite", aTok, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, res = do(t, r, http.MethodPost, "/api/rooms/"+roomID+"/invite", aTok, nil)
	require.Equal(t, http.StatusCreated, code, res.Raw)
	invite := res.Get("invite_code").String()
	assert.Len(t, invite, 8)
	assert.Equal(t, "https://recipedia.test/rooms/join/"+invite, res.Get("invite_url").String())

	code, res = do(t, r, http.MethodPost, "/api/rooms/join/invite/"+strings.ToLower(invite), bTok, nil)
	require.Equal(t, http.StatusOK, code, res.Raw)
	assert.False(t, res.Get("already_member").Bool())
	assert.Equal(t, "Family", res.Get("room.name").String())

	code, _ = do(t, r, http.MethodPost, "/api/rooms/join/invite/"+invite, cTok, nil)
	assert.Equal(t, http.StatusConflict, code, "invite is single use")
	code, _ = do(t, r, http.MethodPost, "/api/rooms/join/invite/NOPE0000", cTok, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, res = do(t, r, http.MethodGet, "/api/rooms/"+roomID+"/invites", bTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "used", res.Get("invites.0.state").String())
	assert.Equal(t, "Bob", res.Get("invites.0.used_by_name").String())

	code, _ = do(t, r, http.MethodPost, "/api/rooms/join/"+roomID, cTok, nil)
	require.Equal(t, http.StatusOK, code)
	code, res = do(t, r, http.MethodGet, "/api/rooms/"+roomID, cTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(3), res.Get("members.#").Int())

	// 菜单建议
	code, res = do(t, r, http.MethodPost, "/api/rooms/"+roomID+"/suggestions", bTok, gin.H{"meal": "Lunch", "dish": "Dal", "date": "2024-05-01"})
	require.Equal(t, http.StatusCreated, code, res.Raw)
	assert.Equal(t, "Dal", res.Get("lunch.0.dish").String())
	assert.Equal(t, "Bob", res.Get("lunch.0.user_name").String())
	code, _ = do(t, r, http.MethodPost, "/api/rooms/"+roomID+"/suggestions", bTok, gin.H{"meal": "brunch", "dish": "Dal"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, res = do(t, r, http.MethodGet, "/api/rooms/"+roomID+"/suggestions?date=2024-05-01", aTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), res.Get("lunch.#").Int())
	code, _ = do(t, r, http.MethodGet, "/api/rooms/"+roomID+"/suggestions?date=05/01/2024", aTok, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	// 房间菜谱
	code, res = do(t, r, http.MethodPost, "/api/rooms/"+roomID+"/recipes", bTok, gin.H{"title": "Dal tadka", "ingredients": []string{"lentils", ""}})
	require.Equal(t, http.StatusCreated, code, res.Raw)
	assert.Equal(t, []any{"lentils"}, res.Get("ingredients").Value())
	code, res = do(t, r, http.MethodGet, "/api/rooms/"+roomID, aTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Bob", res.Get("recipes.0.creator_name").String())

	// 移除成员
	code, _ = do(t, r, http.MethodDelete, "/api/rooms/"+roomID+"/members", bTok, gin.H{"memberId": cID})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = do(t, r, http.MethodDelete, "/api/rooms/"+roomID+"/members", aTok, gin.H{"memberId": 9999})
	assert.Equal(t, http.StatusNotFound, code)
	code, res = do(t, r, http.MethodDelete, "/api/rooms/"+roomID+"/members", aTok, gin.H{"memberId": cID})
	require.Equal(t, http.StatusOK, code, res.Raw)
	assert.Equal(t, int64(2), res.Get("members.#").Int())

	code, res = do(t, r, http.MethodGet, "/api/rooms", bTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), res.Get("rooms.#").Int())
	assert.Equal(t, int64(0), res.Get("rooms.0.online").Int())
	code, res = do(t, r, http.MethodGet, "/api/rooms", cTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(0), res.Get("rooms.#").Int())

	code, _ = do(t, r, http.MethodGet, "/api/rooms/abc", aTok, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRecipeReactionsAndProfile(t *testing.T) {
	r := newTestRouter(t, dbtest.Open(t))
	aTok, _ := register(t, r, "Alice")
	bTok, _ := register(t, r, "Bob")

	code, res := do(t, r, http.MethodPost, "/api/recipes", aTok, gin.H{"title": "Pancakes", "steps": []string{"mix", "fry"}})
	require.Equal(t, http.StatusCreated, code, res.Raw)
	id := res.Get("id").String()

	code, _ = do(t, r, http.MethodPost, "/api/recipes", "", gin.H{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = do(t, r, http.MethodPut, "/api/recipes/"+id, bTok, gin.H{"title": "Mine now"})
	assert.Equal(t, http.StatusForbidden, code)
	code, res = do(t, r, http.MethodPut, "/api/recipes/"+id, aTok, gin.H{"title": "Fluffy pancakes"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Fluffy pancakes", res.Get("title").String())
	assert.Equal(t, int64(2), res.Get("steps.#").Int())

	code, res = do(t, r, http.MethodPost, "/api/users/like/"+id, bTok, nil)
	require.Equal(t, http.StatusOK, code, res.Raw)
	assert.True(t, res.Get("liked").Bool())
	code, _ = do(t, r, http.MethodPost, "/api/users/like/"+id, bTok, nil)
	assert.Equal(t, http.StatusOK, code, "like is idempotent")
	code, _ = do(t, r, http.MethodPost, "/api/users/bookmark/external_52772", bTok, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, r, http.MethodPost, "/api/users/bookmark/external_video_abc", bTok, gin.H{"recipeData": gin.H{"title": "Video dal"}})
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, r, http.MethodPost, "/api/users/like/not-a-ref", bTok, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, res = do(t, r, http.MethodGet, "/api/recipes/"+id, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), res.Get("likes").Int())

	code, res = do(t, r, http.MethodGet, "/api/users/profile", bTok, nil)
	require.Equal(t, http.StatusOK, code, res.Raw)
	assert.Equal(t, "Bob", res.Get("user.name").String())
	assert.Equal(t, "Fluffy pancakes", res.Get("liked_recipes.0.title").String())
	assert.Equal(t, int64(2), res.Get("bookmarked_recipes.#").Int())

	code, _ = do(t, r, http.MethodDelete, "/api/users/like/"+id, bTok, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, r, http.MethodDelete, "/api/recipes/"+id, aTok, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, r, http.MethodGet, "/api/recipes/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, r, http.MethodPost, "/api/users/add-video-data", bTok, gin.H{"videoData": gin.H{"abc": gin.H{"title": "Updated"}}})
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, r, http.MethodPost, "/api/users/add-video-data", bTok, gin.H{"videoData": gin.H{}})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSuggestDishesEndpoint(t *testing.T) {
	r := newTestRouter(t, dbtest.Open(t))
	code, res := do(t, r, http.MethodPost, "/api/ai/suggest", "", gin.H{"cuisine": "Indian"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(2), res.Get("dishes.#").Int())
	code, _ = do(t, r, http.MethodPost, "/api/ai/suggest", "", gin.H{"cuisine": "Atlantis"})
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = do(t, r, http.MethodPost, "/api/ai/suggest", "", gin.H{"cuisine": ""})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestForgotPasswordRateLimited(t *testing.T) {
	r := newTestRouter(t, dbtest.Open(t))
	last := 0
	for i := 0; i < 6; i++ {
		last, _ = do(t, r, http.MethodPost, "/api/auth/forgot-password", "", gin.H{"email": "x@example.com"})
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestFamilyRoomEndToEnd(t *testing.T) {
	r := newTestRouter(t, dbtest.Open(t))
	aTok, _ := register(t, r, "Alice")
	bTok, _ := register(t, r, "Bob")
	cTok, cID := register(t, r, "Carol")

	code, res := do(t, r, http.MethodPost, "/api/rooms", aTok, gin.H{"name": "Family"})
	require.Equal(t, http.StatusCreated, code)
	roomID := res.Get("id").String()

	code, _ = do(t, r, http.MethodPost, "/api/rooms/join/"+roomID, bTok, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, r, http.MethodPost, "/api/rooms/join/"+roomID, bTok, nil)
	require.Equal(t, http.StatusOK, code, "joining twice is a no-op")

	code, res = do(t, r, http.MethodPost, "/api/rooms/"+roomID+"/invite", bTok, nil)
	require.Equal(t, http.StatusCreated, code)
	invite := res.Get("invite_code").String()

	code, res = do(t, r, http.MethodPost, "/api/rooms/join/invite/"+invite, cTok, nil)
	require.Equal(t, http.StatusOK, code, res.Raw)

	code, res = do(t, r, http.MethodGet, "/api/rooms/"+roomID, aTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(3), res.Get("members.#").Int())
	assert.Equal(t, "Carol", res.Get("members.2.name").String())

	code, res = do(t, r, http.MethodGet, "/api/rooms", cTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, roomID, res.Get("rooms.0.id").String())

	code, res = do(t, r, http.MethodGet, "/api/rooms/"+roomID+"/invites", aTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "used", res.Get("invites.0.state").String())
	assert.Equal(t, uint64(cID), res.Get("invites.0.used_by_id").Uint())
}
