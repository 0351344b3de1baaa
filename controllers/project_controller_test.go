package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"estate-backend/config"
	"estate-backend/controllers"
	"estate-backend/models"
	"estate-backend/routes"
	"estate-backend/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type memoryStorage struct {
	n int
}

func (m *memoryStorage) Upload(_ context.Context, _ []byte, _ string, _ string) (string, error) {
	m.n++
	return fmt.Sprintf("projects/%d-test.png", m.n), nil
}

func (m *memoryStorage) ResolveURL(_ context.Context, storagePath string, _ time.Duration) (string, error) {
	return "https://cdn.test/" + storagePath, nil
}

func (m *memoryStorage) Remove(context.Context, string) error {
	return nil
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, config.Migrate(db))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	pages := services.NewRedisPageCache(client, time.Minute)

	log := zaptest.NewLogger(t)
	storageCfg := config.StorageConfig{
		Bucket:          config.DefaultBucket,
		Folder:          config.DefaultFolder,
		SignedURLExpiry: time.Hour,
		URLCacheTTL:     time.Minute,
		FallbackImage:   config.DefaultFallbackImage,
	}
	storage := &memoryStorage{}

	auth := services.NewAuthService(db, "test-secret", time.Hour)
	_, _, err = services.NewAdminService(db).Upsert(context.Background(), "admin@example.com", "pw-123456")
	require.NoError(t, err)

	actions := services.NewProjectActions(
		services.NewProjectService(db),
		storage,
		services.NewImageURLResolver(storage, storageCfg, log),
		pages,
		services.NewActivityService(db),
		log,
	)

	router := routes.SetupRouter(
		controllers.NewProjectController(actions, pages, log, 1<<20),
		controllers.NewAuthController(auth, log),
		auth,
		nil,
		log,
	)

	srv := &testServer{router: router, db: db}
	srv.token = srv.login(t, "admin@example.com", "pw-123456")
	return srv
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()

	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := s.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func projectForm(t *testing.T, fields map[string]string, withImage bool) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if withImage {
		fw, err := mw.CreateFormFile("imageFile", "tower.png")
		require.NoError(t, err)
		_, err = fw.Write(pngBytes)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func towerFields() map[string]string {
	return map[string]string{
		"title":             "Tower A",
		"description":       "desc",
		"location":          "Dhaka",
		"totalFloors":       "10",
		"landArea":          "5",
		"flatTypes[0].type": "2BR",
		"flatTypes[0].size": "900",
	}
}

type projectResponse struct {
	Project struct {
		ID              uint   `json:"id"`
		Title           string `json:"title"`
		Status          string `json:"status"`
		ImageURL        string `json:"imageUrl"`
		DisplayImageURL string `json:"displayImageUrl"`
		FlatTypes       []struct {
			Type string `json:"type"`
			Size int    `json:"size"`
		} `json:"flatTypes"`
	} `json:"project"`
	Projects []json.RawMessage   `json:"projects"`
	Error    string              `json:"error"`
	Errors   map[string][]string `json:"errors"`
	Success  bool                `json:"success"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) projectResponse {
	t.Helper()
	var resp projectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func (s *testServer) createTower(t *testing.T) projectResponse {
	t.Helper()

	body, contentType := projectForm(t, towerFields(), true)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/projects", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+s.token)

	w := s.do(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"admin@example.com","password":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusUnauthorized, srv.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, srv.do(req).Code)
}

func TestAdminRoutes_RequireToken(t *testing.T) {
	srv := newTestServer(t)

	body, contentType := projectForm(t, towerFields(), true)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/projects", body)
	req.Header.Set("Content-Type", contentType)
	assert.Equal(t, http.StatusUnauthorized, srv.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/projects", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, srv.do(req).Code)
}

func TestAdminRoutes_DeactivatedAdmin(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/projects", nil)
	req.Header.Set("Authorization", "Bearer "+srv.token)
	require.Equal(t, http.StatusOK, srv.do(req).Code)

	require.NoError(t, srv.db.Model(&models.Admin{}).
		Where("email = ?", "admin@example.com").Update("is_active", false).Error)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/projects", nil)
	req.Header.Set("Authorization", "Bearer "+srv.token)
	assert.Equal(t, http.StatusUnauthorized, srv.do(req).Code)
}

func TestProjectLifecycle(t *testing.T) {
	srv := newTestServer(t)

	created := srv.createTower(t)
	id := created.Project.ID
	require.NotZero(t, id)
	assert.Equal(t, "upcoming", created.Project.Status)
	assert.Len(t, created.Project.FlatTypes, 1)
	assert.Equal(t, "https://cdn.test/"+created.Project.ImageURL, created.Project.DisplayImageURL)

	t.Run("public listing is cached until a write", func(t *testing.T) {
		w := srv.do(httptest.NewRequest(http.MethodGet, "/api/projects/upcoming", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
		assert.Len(t, decode(t, w).Projects, 1)

		w = srv.do(httptest.NewRequest(http.MethodGet, "/api/projects/upcoming", nil))
		assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

		srv.createTower(t)

		w = srv.do(httptest.NewRequest(http.MethodGet, "/api/projects/upcoming", nil))
		assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
		assert.Len(t, decode(t, w).Projects, 2)
	})

	t.Run("detail checks status", func(t *testing.T) {
		w := srv.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/projects/upcoming/%d", id), nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Tower A", decode(t, w).Project.Title)

		w = srv.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/projects/ongoing/%d", id), nil))
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = srv.do(httptest.NewRequest(http.MethodGet, "/api/projects/sold", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("update without a new image", func(t *testing.T) {
		fields := towerFields()
		fields["status"] = "ongoing"
		fields["imageUrl"] = "projects/old.jpg"
		body, contentType := projectForm(t, fields, false)

		req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/admin/projects/%d", id), body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+srv.token)

		w := srv.do(req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode(t, w)
		assert.Equal(t, "projects/old.jpg", resp.Project.ImageURL)
		assert.Equal(t, "ongoing", resp.Project.Status)

		w = srv.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/projects/ongoing/%d", id), nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("validation errors are field keyed", func(t *testing.T) {
		fields := towerFields()
		delete(fields, "title")
		delete(fields, "landArea")
		body, contentType := projectForm(t, fields, true)

		req := httptest.NewRequest(http.MethodPost, "/api/admin/projects", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+srv.token)

		w := srv.do(req)
		require.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode(t, w)
		assert.Contains(t, resp.Errors, "title")
		assert.Contains(t, resp.Errors, "landArea")
	})

	t.Run("activity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/admin/projects/%d/activity", id), nil)
		req.Header.Set("Authorization", "Bearer "+srv.token)

		w := srv.do(req)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Activity []struct {
				Action string `json:"action"`
			} `json:"activity"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Activity, 2)
		assert.Equal(t, "updated", resp.Activity[0].Action)
		assert.Equal(t, "created", resp.Activity[1].Action)
	})

	t.Run("delete", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/admin/projects/%d", id), nil)
		req.Header.Set("Authorization", "Bearer "+srv.token)

		w := srv.do(req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decode(t, w).Success)

		req = httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/admin/projects/%d", id), nil)
		req.Header.Set("Authorization", "Bearer "+srv.token)
		w = srv.do(req)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Project not found", decode(t, w).Error)

		req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/admin/projects/%d", id), nil)
		req.Header.Set("Authorization", "Bearer "+srv.token)
		assert.Equal(t, http.StatusNotFound, srv.do(req).Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/projects/abc", nil)
		req.Header.Set("Authorization", "Bearer "+srv.token)
		assert.Equal(t, http.StatusBadRequest, srv.do(req).Code)
	})
}
