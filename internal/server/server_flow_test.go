package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"askstack/internal/cache"
	"askstack/internal/config"
	"askstack/internal/database"
	"askstack/internal/models"
	"askstack/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestApp wires a full server against sqlite-in-memory and miniredis.
func newTestApp(t *testing.T) (*fiber.App, *Server) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{
		JWTSecret:        "test_secret",
		QuestionsPerPage: 10,
		Env:              "test",
	}

	s := &Server{
		config:       cfg,
		db:           db,
		redis:        client,
		userRepo:     repository.NewUserRepository(db),
		questionRepo: repository.NewQuestionRepository(db),
		tagRepo:      repository.NewTagRepository(db),
		followRepo:   repository.NewFollowRepository(db),
	}

	app := fiber.New()
	s.SetupRoutes(app)
	return app, s
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var payload map[string]any
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if len(raw) > 0 && strings.Contains(resp.Header.Get("Content-Type"), "json") {
		_ = json.Unmarshal(raw, &payload)
	}
	return resp, payload
}

func registerUser(t *testing.T, app *fiber.App, username string) {
	t.Helper()

	resp, _ := doJSON(t, app, http.MethodPost, "/register", "", map[string]any{
		"username":  username,
		"email":     username + "@example.com",
		"password":  "Password123!",
		"password2": "Password123!",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func loginUser(t *testing.T, app *fiber.App, username string) string {
	t.Helper()

	resp, payload := doJSON(t, app, http.MethodPost, "/login", "", map[string]any{
		"username": username,
		"password": "Password123!",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := payload["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func askQuestion(t *testing.T, app *fiber.App, token, body, tags string) {
	t.Helper()

	resp, _ := doJSON(t, app, http.MethodPost, "/", token, map[string]any{
		"body": body,
		"tags": tags,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestRegistrationRejectsDuplicates(t *testing.T) {
	app, _ := newTestApp(t)

	registerUser(t, app, "alice")

	resp, payload := doJSON(t, app, http.MethodPost, "/register", "", map[string]any{
		"username":  "alice",
		"email":     "alice2@example.com",
		"password":  "Password123!",
		"password2": "Password123!",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	fields, _ := payload["fields"].(map[string]any)
	assert.Contains(t, fields, "username")
}

func TestRegistrationStoresHashedPassword(t *testing.T) {
	app, s := newTestApp(t)

	registerUser(t, app, "alice")

	var user models.User
	require.NoError(t, s.db.Where("username = ?", "alice").First(&user).Error)
	assert.NotEqual(t, "Password123!", user.PasswordHash)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$2"))
}

func TestUnauthenticatedHomeRedirectsToLogin(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := doJSON(t, app, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?next=%2F", resp.Header.Get("Location"))

	// The query string survives the round trip through next.
	resp, _ = doJSON(t, app, http.MethodGet, "/user/bob?page=2", "", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?next=%2Fuser%2Fbob%3Fpage%3D2", resp.Header.Get("Location"))
}

func TestLogoutRevokesToken(t *testing.T) {
	app, _ := newTestApp(t)

	registerUser(t, app, "alice")
	token := loginUser(t, app, "alice")

	resp, _ := doJSON(t, app, http.MethodGet, "/", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/logout", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The same token must now be refused.
	resp, _ = doJSON(t, app, http.MethodGet, "/", token, nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestFollowLifecycle(t *testing.T) {
	app, s := newTestApp(t)

	registerUser(t, app, "alice")
	registerUser(t, app, "bob")
	token := loginUser(t, app, "alice")

	// Self-follow is rejected.
	resp, payload := doJSON(t, app, http.MethodPost, "/follow/alice", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "REJECTED", payload["code"])

	// Unknown target is a 404.
	resp, _ = doJSON(t, app, http.MethodPost, "/follow/ghost", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Following twice leaves a single edge.
	resp, _ = doJSON(t, app, http.MethodPost, "/follow/bob", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, app, http.MethodPost, "/follow/bob", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var count int64
	require.NoError(t, s.db.Model(&models.Follow{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Unfollowing a non-followed user is a harmless no-op.
	resp, _ = doJSON(t, app, http.MethodPost, "/unfollow/bob", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, app, http.MethodPost, "/unfollow/bob", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHomeFeedFollowsAuthors(t *testing.T) {
	app, _ := newTestApp(t)

	registerUser(t, app, "alice")
	registerUser(t, app, "bob")
	registerUser(t, app, "carol")

	bobToken := loginUser(t, app, "bob")
	askQuestion(t, app, bobToken, "bob asks", "")
	carolToken := loginUser(t, app, "carol")
	askQuestion(t, app, carolToken, "carol asks", "")

	aliceToken := loginUser(t, app, "alice")
	askQuestion(t, app, aliceToken, "alice asks", "")

	resp, _ := doJSON(t, app, http.MethodPost, "/follow/bob", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload := doJSON(t, app, http.MethodGet, "/", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.ElementsMatch(t, []string{"alice asks", "bob asks"}, feedBodies(payload))

	// Unfollow and the feed shrinks to alice's own question.
	resp, _ = doJSON(t, app, http.MethodPost, "/unfollow/bob", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload = doJSON(t, app, http.MethodGet, "/", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"alice asks"}, feedBodies(payload))
}

func feedBodies(payload map[string]any) []string {
	page, _ := payload["questions"].(map[string]any)
	items, _ := page["items"].([]any)
	bodies := make([]string, 0, len(items))
	for _, item := range items {
		q, _ := item.(map[string]any)
		body, _ := q["body"].(string)
		bodies = append(bodies, body)
	}
	return bodies
}

func TestExploreListsEveryQuestionAndTags(t *testing.T) {
	app, _ := newTestApp(t)

	registerUser(t, app, "alice")
	token := loginUser(t, app, "alice")
	askQuestion(t, app, token, "about python", "python")
	askQuestion(t, app, token, "about flask", "flask, python")

	resp, payload := doJSON(t, app, http.MethodGet, "/explore", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Len(t, feedBodies(payload), 2)

	tags, _ := payload["tags"].([]any)
	require.Len(t, tags, 2)
	first, _ := tags[0].(map[string]any)
	assert.Equal(t, "flask", first["name"], "tag index is ordered by name")
}

func TestQuestionPageAndReplies(t *testing.T) {
	app, _ := newTestApp(t)

	registerUser(t, app, "alice")
	token := loginUser(t, app, "alice")
	askQuestion(t, app, token, "how do I exit vim?", "vim")

	resp, _ := doJSON(t, app, http.MethodGet, "/q/999", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/q/1", token, map[string]any{"body": ":wq"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, payload := doJSON(t, app, http.MethodGet, "/q/1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	replies, _ := payload["replies"].(map[string]any)
	items, _ := replies["items"].([]any)
	require.Len(t, items, 1)

	// Replies to missing questions are refused.
	resp, _ = doJSON(t, app, http.MethodPost, "/q/999", token, map[string]any{"body": "void"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearchRequiresKnownTags(t *testing.T) {
	app, _ := newTestApp(t)

	registerUser(t, app, "alice")
	token := loginUser(t, app, "alice")
	askQuestion(t, app, token, "about python", "python")

	resp, _ := doJSON(t, app, http.MethodPost, "/search", "", map[string]any{"search": "python nosuchtag"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, payload := doJSON(t, app, http.MethodPost, "/search", "", map[string]any{"search": "python"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, feedBodies(payload), 1)

	resp, _ = doJSON(t, app, http.MethodPost, "/search", "", map[string]any{"search": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEditProfile(t *testing.T) {
	app, _ := newTestApp(t)

	registerUser(t, app, "alice")
	registerUser(t, app, "bob")
	token := loginUser(t, app, "alice")

	// Keeping one's own username is never a collision.
	resp, _ := doJSON(t, app, http.MethodPost, "/edit_profile", token, map[string]any{
		"username": "alice",
		"about_me": "I ask questions.",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Taking another user's name is.
	resp, payload := doJSON(t, app, http.MethodPost, "/edit_profile", token, map[string]any{
		"username": "bob",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	fields, _ := payload["fields"].(map[string]any)
	assert.Contains(t, fields, "username")

	// Renaming to a free name works.
	resp, _ = doJSON(t, app, http.MethodPost, "/edit_profile", token, map[string]any{
		"username": "alice2",
		"about_me": "renamed",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload = doJSON(t, app, http.MethodGet, "/user/alice2", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user, _ := payload["user"].(map[string]any)
	assert.Equal(t, "renamed", user["about_me"])
}

func TestEditProfileWithWarmCacheKeepsPassword(t *testing.T) {
	app, s := newTestApp(t)

	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	registerUser(t, app, "alice")
	token := loginUser(t, app, "alice")

	// Warm the user cache, then save the profile with the cache layer active.
	resp, _ := doJSON(t, app, http.MethodGet, "/edit_profile", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/edit_profile", token, map[string]any{
		"username": "alice",
		"about_me": "still here",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var user models.User
	require.NoError(t, s.db.Where("username = ?", "alice").First(&user).Error)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$2"))

	// The stored credentials still work.
	loginUser(t, app, "alice")
}

func TestUserPage(t *testing.T) {
	app, _ := newTestApp(t)

	registerUser(t, app, "alice")
	registerUser(t, app, "bob")
	aliceToken := loginUser(t, app, "alice")
	bobToken := loginUser(t, app, "bob")

	for i := 0; i < 3; i++ {
		askQuestion(t, app, bobToken, fmt.Sprintf("bob question %d", i), "")
	}
	resp, _ := doJSON(t, app, http.MethodPost, "/follow/bob", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload := doJSON(t, app, http.MethodGet, "/user/bob", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, feedBodies(payload), 3)
	assert.Equal(t, float64(1), payload["followers"])
	assert.Equal(t, true, payload["is_following"])
	assert.Equal(t, false, payload["is_self"])

	resp, _ = doJSON(t, app, http.MethodGet, "/user/ghost", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPaginationEnvelope(t *testing.T) {
	app, _ := newTestApp(t)

	registerUser(t, app, "alice")
	token := loginUser(t, app, "alice")
	for i := 0; i < 15; i++ {
		askQuestion(t, app, token, fmt.Sprintf("question %d", i), "")
	}

	resp, payload := doJSON(t, app, http.MethodGet, "/explore?page=1&per_page=10", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page, _ := payload["questions"].(map[string]any)
	assert.Equal(t, float64(2), page["next_page"])
	assert.Nil(t, page["prev_page"])

	resp, payload = doJSON(t, app, http.MethodGet, "/explore?page=2&per_page=10", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page, _ = payload["questions"].(map[string]any)
	assert.Nil(t, page["next_page"])
	assert.Equal(t, float64(1), page["prev_page"])
	assert.Len(t, feedBodies(payload), 5)

	// Out-of-range pages are empty, never an error.
	resp, payload = doJSON(t, app, http.MethodGet, "/explore?page=9999", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, feedBodies(payload))

	// per_page is capped.
	resp, payload = doJSON(t, app, http.MethodGet, "/explore?per_page=5000", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page, _ = payload["questions"].(map[string]any)
	assert.Equal(t, float64(100), page["per_page"])
}

func TestQuestionBodyBounds(t *testing.T) {
	app, _ := newTestApp(t)

	registerUser(t, app, "alice")
	token := loginUser(t, app, "alice")

	resp, _ := doJSON(t, app, http.MethodPost, "/", token, map[string]any{"body": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/", token, map[string]any{
		"body": strings.Repeat("a", models.MaxBodyLength+1),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/", token, map[string]any{
		"body": strings.Repeat("a", models.MaxBodyLength),
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}
