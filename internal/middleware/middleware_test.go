package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevViTien/devshop-web-app/internal/cache"
	"github.com/DevViTien/devshop-web-app/internal/i18n"
	"github.com/DevViTien/devshop-web-app/internal/models"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := i18n.Initialize("en"); err != nil {
		panic(err)
	}
	utils.SetJWTSecret("middleware-test-secret")
	os.Exit(m.Run())
}

func bearer(t *testing.T, role models.UserRole) (string, uuid.UUID) {
	t.Helper()
	id := uuid.New()
	token, err := utils.GenerateJWT(id, "user@devshop.test", "User", string(role), 1)
	require.NoError(t, err)
	return "Bearer " + token, id
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestAuthRequired(t *testing.T) {
	r := gin.New()
	r.GET("/me", AuthRequired(), func(c *gin.Context) {
		id, _ := utils.GetUserIDFromContext(c)
		role, _ := utils.GetUserRoleFromContext(c)
		c.JSON(http.StatusOK, gin.H{"id": id.String(), "role": role})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	header, id := bearer(t, models.UserRoleSeller)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", header)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id.String())
	assert.Contains(t, w.Body.String(), `"role":"seller"`)
}

func TestOptionalAuthLetsAnonymousThrough(t *testing.T) {
	r := gin.New()
	r.GET("/t", OptionalAuth(), func(c *gin.Context) {
		_, ok := utils.GetUserIDFromContext(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", nil))
	assert.JSONEq(t, `{"authenticated":false}`, w.Body.String())

	header, _ := bearer(t, models.UserRoleBuyer)
	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.Header.Set("Authorization", header)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `{"authenticated":true}`, w.Body.String())
}

func TestRoleRequired(t *testing.T) {
	r := gin.New()
	r.POST("/templates", AuthRequired(), RoleRequired(models.UserRoleSeller, models.UserRoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	r.GET("/admin", AuthRequired(), AdminRequired(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	cases := []struct {
		method, path string
		role         models.UserRole
		status       int
	}{
		{http.MethodPost, "/templates", models.UserRoleBuyer, http.StatusForbidden},
		{http.MethodPost, "/templates", models.UserRoleSeller, http.StatusCreated},
		{http.MethodPost, "/templates", models.UserRoleAdmin, http.StatusCreated},
		{http.MethodGet, "/admin", models.UserRoleSeller, http.StatusForbidden},
		{http.MethodGet, "/admin", models.UserRoleAdmin, http.StatusOK},
	}

	for _, tc := range cases {
		header, _ := bearer(t, tc.role)
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code, "%s %s as %s", tc.method, tc.path, tc.role)
	}
}

func TestRateLimiterRejectsOverBurst(t *testing.T) {
	limiter := NewRateLimiter(0.001, 2)
	r := gin.New()
	r.Use(limiter.Middleware())
	r.GET("/t", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", errorCode(t, w))
}

func TestRateLimiterDisabledAtZeroRate(t *testing.T) {
	limiter := NewRateLimiter(0, 0)
	r := gin.New()
	r.Use(limiter.Middleware())
	r.GET("/t", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func idempotentRouter(calls *int32, status int) *gin.Engine {
	r := gin.New()
	r.POST("/orders", Idempotency(cache.NewMemory()), func(c *gin.Context) {
		n := atomic.AddInt32(calls, 1)
		c.JSON(status, gin.H{"call": n})
	})
	return r
}

func postWithKey(r *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	var calls int32
	r := idempotentRouter(&calls, http.StatusCreated)

	first := postWithKey(r, "abc")
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(ReplayedHeader))

	second := postWithKey(r, "abc")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(ReplayedHeader))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	third := postWithKey(r, "other")
	assert.JSONEq(t, `{"call":2}`, third.Body.String())
}

func TestIdempotencyWithoutKeyAlwaysRuns(t *testing.T) {
	var calls int32
	r := idempotentRouter(&calls, http.StatusCreated)

	postWithKey(r, "")
	postWithKey(r, "")
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	var calls int32
	r := idempotentRouter(&calls, http.StatusInternalServerError)

	postWithKey(r, "retry-me")
	w := postWithKey(r, "retry-me")
	assert.Empty(t, w.Header().Get(ReplayedHeader))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestExtractResource(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "orders", extractResourceType("/api/orders/"+id.String()+"/pay"))
	assert.Equal(t, "templates", extractResourceType("/api/admin/templates/"+id.String()+"/status"))

	assert.Equal(t, id, extractResourceID("/api/orders/"+id.String()+"/pay"))
	assert.Equal(t, uuid.Nil, extractResourceID("/api/orders"))
}
