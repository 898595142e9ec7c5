package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"podnest/internal/config"
	"podnest/internal/db"
	"podnest/internal/logger"
	"podnest/internal/middleware"
	"podnest/internal/models"
	"podnest/internal/services"
	"podnest/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type recordedRanking struct {
	mu   sync.Mutex
	pods []uint
}

func (r *recordedRanking) ScheduleUpdate(podID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pods = append(r.pods, podID)
}

type recordedMail struct {
	mu   sync.Mutex
	sent []services.Invitation
}

func (m *recordedMail) SendPodInvitation(inv services.Invitation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, inv)
}

type testEnv struct {
	t       *testing.T
	db      *gorm.DB
	server  *httptest.Server
	ranking *recordedRanking
	mail    *recordedMail
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := db.OpenWith(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared&_foreign_keys=1"), logger.Nop())
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(gdb))

	cache, err := utils.NewCache(100)
	require.NoError(t, err)

	env := &testEnv{t: t, db: gdb, ranking: &recordedRanking{}, mail: &recordedMail{}}
	cfg := &config.Config{
		Port:          "8080",
		Env:           "test",
		SessionSecret: "test-secret",
		SiteURL:       "http://podnest.test",
		CORSOrigins:   []string{"http://localhost:3000"},
		CacheSize:     100,
	}
	engine := New(cfg, logger.Nop(), Services{
		Identity:  services.NewIdentityService(gdb),
		Graph:     services.NewSocialGraphService(gdb),
		Pods:      services.NewPodService(gdb),
		Bookmarks: services.NewBookmarkService(gdb),
		Stories:   services.NewStoryService(gdb),
		Ranking:   env.ranking,
		Mail:      env.mail,
	}, cache)

	// sign-in shortcut standing in for the OAuth round trip
	engine.POST("/test/login/:id", func(c *gin.Context) {
		id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
		s := sessions.Default(c)
		s.Set(middleware.SessionUserKey, uint(id))
		if err := s.Save(); err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	env.server = httptest.NewServer(engine)
	t.Cleanup(func() {
		env.server.Close()
		sqlDB.Close()
	})
	return env
}

// client is one browser session.
type client struct {
	env  *testEnv
	http *http.Client
}

func (e *testEnv) anonymous() *client {
	jar, err := cookiejar.New(nil)
	require.NoError(e.t, err)
	return &client{env: e, http: &http.Client{Jar: jar}}
}

func (e *testEnv) signIn(email string) (*client, *models.User) {
	user, err := services.NewIdentityService(e.db).ResolveOrCreateUser(context.Background(), email, "", "")
	require.NoError(e.t, err)
	c := e.anonymous()
	status, _ := c.do(http.MethodPost, "/test/login/"+strconv.FormatUint(uint64(user.ID), 10), nil)
	require.Equal(e.t, http.StatusNoContent, status)
	return c, user
}

func (c *client) do(method, path string, body interface{}) (int, map[string]interface{}) {
	c.env.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.env.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.env.server.URL+path, reader)
	require.NoError(c.env.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	require.NoError(c.env.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.env.t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && resp.Header.Get("Content-Type") != "" && bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		require.NoError(c.env.t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func idOf(t *testing.T, obj interface{}, key string) uint {
	t.Helper()
	m, ok := obj.(map[string]interface{})
	require.True(t, ok, "expected object, got %T", obj)
	f, ok := m[key].(float64)
	require.True(t, ok, "missing %s", key)
	return uint(f)
}

func path(format string, id uint) string {
	return format + strconv.FormatUint(uint64(id), 10)
}

func TestHealthAndAuthGate(t *testing.T) {
	env := newTestEnv(t)
	anon := env.anonymous()

	status, body := anon.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, _ = anon.do(http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = anon.do(http.MethodPost, "/api/pods", map[string]interface{}{"name": "x"})
	assert.Equal(t, http.StatusUnauthorized, status)

	me, user := env.signIn("ada@example.com")
	status, body = me.do(http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(user.ID), body["user"].(map[string]interface{})["user_id"])

	status, body = me.do(http.MethodPost, "/api/me/onboarding", map[string]string{"username": "ada"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["user"].(map[string]interface{})["onboarded"])

	status, _ = me.do(http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = me.do(http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestPodLifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.signIn("admin@example.com")
	member, memberUser := env.signIn("member@example.com")

	status, body := admin.do(http.MethodPost, "/api/pods", map[string]interface{}{
		"name": "Tech Talk", "subtag": "tech", "domain": "technology",
	})
	require.Equal(t, http.StatusCreated, status)
	podID := idOf(t, body["pod"], "pod_id")
	assert.Equal(t, true, body["pod"].(map[string]interface{})["is_public"])

	status, _ = admin.do(http.MethodPost, "/api/pods", map[string]interface{}{"description": "no name"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = member.do(http.MethodPost, path("/api/pods/", podID)+"/follow", nil)
	assert.Equal(t, http.StatusCreated, status)
	status, _ = member.do(http.MethodPost, path("/api/pods/", podID)+"/follow", nil)
	assert.Equal(t, http.StatusConflict, status)

	status, body = member.do(http.MethodGet, path("/api/pods/", podID), nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["pod"].(map[string]interface{})["followers_count"])
	assert.Equal(t, true, body["is_following"])

	status, body = member.do(http.MethodGet, path("/api/pods/", podID)+"/followers", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["users"], 1)

	status, body = member.do(http.MethodDelete, path("/api/pods/", podID)+"/follow", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["removed"])
	status, body = member.do(http.MethodDelete, path("/api/pods/", podID)+"/follow", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["removed"])

	var pod models.Pod
	require.NoError(t, env.db.Where("pod_id = ?", podID).Take(&pod).Error)
	assert.Zero(t, pod.FollowersCount)
	var user models.User
	require.NoError(t, env.db.Where("user_id = ?", memberUser.ID).Take(&user).Error)
	assert.Zero(t, user.PodFollow)

	env.ranking.mu.Lock()
	assert.Equal(t, []uint{podID, podID}, env.ranking.pods)
	env.ranking.mu.Unlock()

	status, body = member.do(http.MethodGet, "/api/pods/search?q=TECH", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["pods"], 1)

	status, body = member.do(http.MethodGet, "/api/pods", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["pods"], 1)

	status, _ = member.do(http.MethodGet, "/api/pods/abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = member.do(http.MethodGet, "/api/pods/999", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPrivatePodSharing(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.signIn("admin@example.com")
	friend, _ := env.signIn("friend@example.com")
	stranger, _ := env.signIn("stranger@example.com")

	status, body := admin.do(http.MethodPost, "/api/pods", map[string]interface{}{"name": "Family", "is_public": false})
	require.Equal(t, http.StatusCreated, status)
	podID := idOf(t, body["pod"], "pod_id")

	status, _ = friend.do(http.MethodGet, path("/api/pods/", podID), nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = stranger.do(http.MethodPost, path("/api/pods/", podID)+"/share", map[string]string{"email": "stranger@example.com"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = admin.do(http.MethodPost, path("/api/pods/", podID)+"/share", map[string]string{"email": "Friend@example.com"})
	assert.Equal(t, http.StatusCreated, status)
	status, _ = admin.do(http.MethodPost, path("/api/pods/", podID)+"/share", map[string]string{"email": "friend@example.com"})
	assert.Equal(t, http.StatusConflict, status)

	env.mail.mu.Lock()
	require.Len(t, env.mail.sent, 1)
	assert.Equal(t, "friend@example.com", env.mail.sent[0].Email)
	assert.Equal(t, "Family", env.mail.sent[0].PodName)
	env.mail.mu.Unlock()

	status, _ = friend.do(http.MethodGet, path("/api/pods/", podID), nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = stranger.do(http.MethodGet, path("/api/pods/", podID), nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = friend.do(http.MethodGet, "/api/pods/shared", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["pods"], 1)

	status, body = admin.do(http.MethodGet, "/api/pods/mine", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["pods"], 1)
}

func TestStoriesAndReactions(t *testing.T) {
	env := newTestEnv(t)
	author, _ := env.signIn("author@example.com")
	reader, _ := env.signIn("reader@example.com")

	_, body := author.do(http.MethodPost, "/api/pods", map[string]interface{}{"name": "Journal"})
	podID := idOf(t, body["pod"], "pod_id")

	status, body := author.do(http.MethodPost, "/api/stories", map[string]interface{}{
		"pod_id": podID, "content": "Morning walk #Travel", "tags": []string{"#Travel", "travel"},
	})
	require.Equal(t, http.StatusCreated, status)
	storyID := idOf(t, body["story"], "story_id")

	status, _ = author.do(http.MethodPost, "/api/stories", map[string]interface{}{"pod_id": podID})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = reader.do(http.MethodGet, path("/api/stories/", storyID), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body["content_html"], `href="/tags/travel"`)

	status, body = reader.do(http.MethodPost, path("/api/stories/", storyID)+"/reactions/like", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]interface{}{"like": float64(1)}, body["reactions"])

	status, body = reader.do(http.MethodDelete, path("/api/stories/", storyID)+"/reactions/like", nil)
	assert.Equal(t, http.StatusOK, status)
	status, body = reader.do(http.MethodDelete, path("/api/stories/", storyID)+"/reactions/like", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["reactions"])

	status, body = reader.do(http.MethodGet, "/api/stories/popular", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["stories"], 1)

	status, body = reader.do(http.MethodGet, path("/api/pods/", podID)+"/stories", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["stories"], 1)

	var pod models.Pod
	require.NoError(t, env.db.Where("pod_id = ?", podID).Take(&pod).Error)
	assert.Equal(t, 1, pod.TotalStories)

	status, _ = reader.do(http.MethodGet, "/api/stories/4040", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUsersAndSuggestions(t *testing.T) {
	env := newTestEnv(t)
	me, meUser := env.signIn("me@example.com")
	_, other := env.signIn("other@example.com")
	_, third := env.signIn("third@example.com")

	status, _ := me.do(http.MethodPost, path("/api/users/", other.ID)+"/follow", nil)
	assert.Equal(t, http.StatusCreated, status)
	status, _ = me.do(http.MethodPost, path("/api/users/", other.ID)+"/follow", nil)
	assert.Equal(t, http.StatusConflict, status)
	status, _ = me.do(http.MethodPost, path("/api/users/", meUser.ID)+"/follow", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	status, _ = me.do(http.MethodPost, "/api/users/9999/follow", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body := me.do(http.MethodGet, path("/api/users/", other.ID), nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["is_following"])
	assert.Equal(t, float64(1), body["user"].(map[string]interface{})["followers"])

	status, body = me.do(http.MethodGet, path("/api/users/", other.ID)+"/followers", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["users"], 1)

	status, body = me.do(http.MethodGet, "/api/suggestions", nil)
	assert.Equal(t, http.StatusOK, status)
	users := body["users"].([]interface{})
	require.Len(t, users, 1)
	assert.Equal(t, float64(third.ID), users[0].(map[string]interface{})["user_id"])

	status, body = me.do(http.MethodDelete, path("/api/users/", other.ID)+"/follow", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["removed"])
}

func TestBookmarkAndArchiveRoutes(t *testing.T) {
	env := newTestEnv(t)
	me, _ := env.signIn("me@example.com")
	_, body := me.do(http.MethodPost, "/api/pods", map[string]interface{}{"name": "Saved"})
	podID := idOf(t, body["pod"], "pod_id")

	status, _ := me.do(http.MethodPost, path("/api/pods/", podID)+"/bookmark", nil)
	assert.Equal(t, http.StatusCreated, status)
	status, _ = me.do(http.MethodPost, path("/api/pods/", podID)+"/bookmark", nil)
	assert.Equal(t, http.StatusConflict, status)
	status, body = me.do(http.MethodGet, "/api/bookmarks", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["pods"], 1)

	status, _ = me.do(http.MethodPost, path("/api/pods/", podID)+"/archive", nil)
	assert.Equal(t, http.StatusCreated, status)
	status, body = me.do(http.MethodGet, "/api/archive", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["pods"], 1)

	status, body = me.do(http.MethodDelete, path("/api/pods/", podID)+"/archive", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["removed"])
	status, body = me.do(http.MethodDelete, path("/api/pods/", podID)+"/bookmark", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["removed"])

	status, _ = me.do(http.MethodPost, "/api/pods/777/bookmark", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPrivatePodsCannotBeBookmarkedByStrangers(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.signIn("admin@example.com")
	friend, _ := env.signIn("friend@example.com")
	stranger, _ := env.signIn("stranger@example.com")

	_, body := admin.do(http.MethodPost, "/api/pods", map[string]interface{}{
		"name": "Secret Plans", "description": "hidden", "is_public": false,
	})
	podID := idOf(t, body["pod"], "pod_id")

	status, _ := stranger.do(http.MethodPost, path("/api/pods/", podID)+"/bookmark", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = stranger.do(http.MethodPost, path("/api/pods/", podID)+"/archive", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = stranger.do(http.MethodGet, "/api/bookmarks", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["pods"])
	status, body = stranger.do(http.MethodGet, "/api/archive", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["pods"])

	var edges int64
	require.NoError(t, env.db.Model(&models.Bookmark{}).Count(&edges).Error)
	assert.Zero(t, edges)

	// invited users may save it
	status, _ = admin.do(http.MethodPost, path("/api/pods/", podID)+"/share", map[string]string{"email": "friend@example.com"})
	require.Equal(t, http.StatusCreated, status)
	status, _ = friend.do(http.MethodPost, path("/api/pods/", podID)+"/bookmark", nil)
	assert.Equal(t, http.StatusCreated, status)
	status, body = friend.do(http.MethodGet, "/api/bookmarks", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["pods"], 1)

	// rows written before the pod turned private stay out of the list
	_, body = admin.do(http.MethodPost, "/api/pods", map[string]interface{}{"name": "Was Open"})
	openID := idOf(t, body["pod"], "pod_id")
	status, _ = stranger.do(http.MethodPost, path("/api/pods/", openID)+"/archive", nil)
	require.Equal(t, http.StatusCreated, status)
	require.NoError(t, env.db.Model(&models.Pod{}).Where("pod_id = ?", openID).UpdateColumn("is_public", false).Error)
	status, body = stranger.do(http.MethodGet, "/api/archive", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["pods"])
}

func TestPrivateSearchRespectsAccess(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.signIn("admin@example.com")
	stranger, _ := env.signIn("stranger@example.com")

	_, body := admin.do(http.MethodPost, "/api/pods", map[string]interface{}{"name": "Diary", "subtag": "diary", "is_public": false})
	podID := idOf(t, body["pod"], "pod_id")

	status, body := admin.do(http.MethodGet, "/api/pods/search?q=diary&public=false", nil)
	assert.Equal(t, http.StatusOK, status)
	pods := body["pods"].([]interface{})
	require.Len(t, pods, 1)
	assert.Equal(t, podID, idOf(t, pods[0], "pod_id"))

	status, body = stranger.do(http.MethodGet, "/api/pods/search?q=diary&public=false", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["pods"])

	status, body = env.anonymous().do(http.MethodGet, "/api/pods/search?q=diary&public=false", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["pods"])
}

func TestFollowRefreshesCachedPublicList(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.signIn("admin@example.com")
	member, _ := env.signIn("member@example.com")

	_, body := admin.do(http.MethodPost, "/api/pods", map[string]interface{}{"name": "Tech Talk"})
	podID := idOf(t, body["pod"], "pod_id")

	followers := func() float64 {
		status, body := member.do(http.MethodGet, "/api/pods", nil)
		require.Equal(t, http.StatusOK, status)
		pods := body["pods"].([]interface{})
		require.Len(t, pods, 1)
		return pods[0].(map[string]interface{})["followers_count"].(float64)
	}

	assert.Equal(t, float64(0), followers()) // warms the cache
	status, _ := member.do(http.MethodPost, path("/api/pods/", podID)+"/follow", nil)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, float64(1), followers())

	status, _ = member.do(http.MethodDelete, path("/api/pods/", podID)+"/follow", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), followers())
}

func TestSitemap(t *testing.T) {
	env := newTestEnv(t)
	me, _ := env.signIn("me@example.com")
	_, body := me.do(http.MethodPost, "/api/pods", map[string]interface{}{"name": "Open"})
	podID := idOf(t, body["pod"], "pod_id")

	resp, err := http.Get(env.server.URL + "/sitemap.xml")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), path("http://podnest.test/pods/", podID))

	resp2, err := http.Get(env.server.URL + "/robots.txt")
	require.NoError(t, err)
	defer resp2.Body.Close()
	raw, err = io.ReadAll(resp2.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Sitemap: http://podnest.test/sitemap.xml")
}
