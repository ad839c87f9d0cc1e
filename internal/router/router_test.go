package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"github.com/DevViTien/devshop-web-app/internal/cache"
	"github.com/DevViTien/devshop-web-app/internal/config"
	"github.com/DevViTien/devshop-web-app/internal/event"
	"github.com/DevViTien/devshop-web-app/internal/i18n"
	"github.com/DevViTien/devshop-web-app/internal/metrics"
	"github.com/DevViTien/devshop-web-app/internal/middleware"
	"github.com/DevViTien/devshop-web-app/internal/repository"
	"github.com/DevViTien/devshop-web-app/internal/services"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

const (
	adminEmail    = "admin@devshop.test"
	adminPassword = "Admin1234"
	userPassword  = "Secret123"
)

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Errors  map[string]string `json:"errors"`
}

type APITestSuite struct {
	suite.Suite
	router *gin.Engine
	store  *repository.Store
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server:      config.ServerConfig{Host: "localhost", Port: "8080"},
		JWT:         config.JWTConfig{SecretKey: "router-test-secret", AccessTokenTTL: 1, RefreshTokenTTL: 24},
		Orders: config.OrderConfig{
			PendingExpiryMinutes: 30,
			DownloadExpiryHours:  72,
			MaxDownloads:         2,
		},
		Frontend: config.FrontendConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Seed:     config.SeedConfig{AdminEmail: adminEmail, AdminPassword: adminPassword, AdminName: "Admin"},
	}
}

func (s *APITestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	s.Require().NoError(i18n.Initialize("en"))
}

func (s *APITestSuite) SetupTest() {
	cfg := testConfig()
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	storage, err := services.NewStorageService(cfg)
	s.Require().NoError(err)

	s.store = repository.NewMemoryStore()
	deps := &Dependencies{
		Config:   cfg,
		Store:    s.store,
		Cache:    cache.NewMemory(),
		Events:   event.NewNoop(),
		Gateway:  services.NewManualGateway(),
		Links:    storage,
		Metrics:  metrics.NewMetrics(),
		Limiters: middleware.NewLimiters(config.RateLimitConfig{}),
	}
	svc := NewServices(deps)
	s.Require().NoError(svc.Users.EnsureAdmin(context.Background(), cfg.Seed))
	s.router = Initialize(deps, svc)
}

func (s *APITestSuite) do(method, path, token string, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func (s *APITestSuite) decode(env envelope, dst interface{}) {
	s.Require().NoError(json.Unmarshal(env.Data, dst), string(env.Data))
}

func (s *APITestSuite) register(name, email string) {
	w, env := s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name":            name,
		"email":           email,
		"password":        userPassword,
		"confirmPassword": userPassword,
		"agreeToTerms":    true,
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.Require().True(env.Success)
}

func (s *APITestSuite) login(email, password string) string {
	w, env := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": password})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var auth struct {
		AccessToken string `json:"accessToken"`
	}
	s.decode(env, &auth)
	s.Require().NotEmpty(auth.AccessToken)
	return auth.AccessToken
}

// sellerWithTemplate registers a seller, lists an approved template and
// returns the seller token and the template id and slug.
func (s *APITestSuite) sellerWithTemplate() (string, string, string) {
	s.register("Seller One", "seller@devshop.test")
	token := s.login("seller@devshop.test", userPassword)

	w, _ := s.do(http.MethodPost, "/api/users/register-seller", token, gin.H{"businessName": "Pixel Studio"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	// The role is carried in the token, so log in again as a seller.
	token = s.login("seller@devshop.test", userPassword)

	w, env := s.do(http.MethodPost, "/api/templates", token, gin.H{
		"title":       "Admin Dashboard Pro",
		"description": "A complete admin dashboard template",
		"category":    "web",
		"tags":        []string{"React", "Admin"},
		"pricing":     gin.H{"type": "paid", "price": "49.00", "currency": "USD"},
		"images":      gin.H{"thumbnail": "https://cdn.devshop.test/thumb.png"},
		"files":       gin.H{"mainFile": "templates/admin-dashboard-pro.zip"},
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var tpl struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
	}
	s.decode(env, &tpl)
	s.Equal("admin-dashboard-pro", tpl.Slug)

	w, _ = s.do(http.MethodPost, "/api/templates/"+tpl.ID+"/submit", token, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	admin := s.login(adminEmail, adminPassword)
	w, _ = s.do(http.MethodPut, "/api/admin/templates/"+tpl.ID+"/status", admin, gin.H{"status": "approved"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	return token, tpl.ID, tpl.Slug
}

func (s *APITestSuite) TestRegisterReturnsPublicFields() {
	w, env := s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name":            "Nguyen Van A",
		"email":           "buyer@devshop.test",
		"password":        userPassword,
		"confirmPassword": userPassword,
		"agreeToTerms":    true,
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var data map[string]interface{}
	s.decode(env, &data)
	s.Equal("buyer", data["role"])
	s.Equal("active", data["status"])
	s.Equal("buyer@devshop.test", data["email"])
	s.Contains(data, "id")
	s.Contains(data, "createdAt")
	s.NotContains(data, "password")
	s.NotContains(data, "passwordHash")

	w, env = s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name":            "Nguyen Van A",
		"email":           "BUYER@devshop.test",
		"password":        userPassword,
		"confirmPassword": userPassword,
		"agreeToTerms":    true,
	})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("EMAIL_EXISTS", env.Error)
}

func (s *APITestSuite) TestRegisterValidationErrors() {
	w, env := s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name":            "Nguyen Van A",
		"email":           "not-an-email",
		"password":        userPassword,
		"confirmPassword": "Different123",
		"agreeToTerms":    true,
	})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("VALIDATION_ERROR", env.Error)
	s.Contains(env.Errors, "email")
	s.Contains(env.Errors, "confirmPassword")

	w, env = s.do(http.MethodPost, "/api/auth/register", "", "not an object")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(env.Errors, "body")
}

func (s *APITestSuite) TestAuthenticationRequired() {
	w, env := s.do(http.MethodGet, "/api/auth/me", "", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("UNAUTHORIZED", env.Error)

	w, _ = s.do(http.MethodGet, "/api/auth/me", "garbage", nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	s.register("Nguyen Van A", "buyer@devshop.test")
	token := s.login("buyer@devshop.test", userPassword)

	w, env = s.do(http.MethodGet, "/api/auth/me", token, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var me map[string]interface{}
	s.decode(env, &me)
	s.Equal("buyer@devshop.test", me["email"])

	w, env = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "buyer@devshop.test", "password": "Wrong1234"})
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("INVALID_CREDENTIALS", env.Error)
}

func (s *APITestSuite) TestUserLookupIsAdminOnly() {
	s.register("Nguyen Van A", "buyer@devshop.test")
	token := s.login("buyer@devshop.test", userPassword)

	w, env := s.do(http.MethodGet, "/api/auth/me", token, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var me struct {
		ID string `json:"id"`
	}
	s.decode(env, &me)

	w, env = s.do(http.MethodGet, "/api/users/"+me.ID, token, nil)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("FORBIDDEN", env.Error)

	admin := s.login(adminEmail, adminPassword)
	w, _ = s.do(http.MethodGet, "/api/users/"+me.ID, admin, nil)
	s.Equal(http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, "/api/admin/users", token, nil)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *APITestSuite) TestBuyersCannotCreateTemplates() {
	s.register("Nguyen Van A", "buyer@devshop.test")
	token := s.login("buyer@devshop.test", userPassword)

	w, env := s.do(http.MethodPost, "/api/templates", token, gin.H{"title": "Anything"})
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("FORBIDDEN", env.Error)
}

func (s *APITestSuite) TestPurchaseDownloadAndReview() {
	_, templateID, slug := s.sellerWithTemplate()

	s.register("Buyer One", "buyer@devshop.test")
	buyer := s.login("buyer@devshop.test", userPassword)

	orderBody := gin.H{"templateId": templateID, "paymentMethod": "bank_transfer"}
	w, env := s.do(http.MethodPost, "/api/orders", buyer, orderBody, middleware.IdempotencyHeader, "order-1")
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Order struct {
			ID      string `json:"id"`
			Status  string `json:"status"`
			Details struct {
				FinalPrice string `json:"finalPrice"`
			} `json:"orderDetails"`
		} `json:"order"`
	}
	s.decode(env, &created)
	s.Equal("pending", created.Order.Status)
	s.Equal("49", created.Order.Details.FinalPrice)

	// Same key, same response, no second order.
	w, env = s.do(http.MethodPost, "/api/orders", buyer, orderBody, middleware.IdempotencyHeader, "order-1")
	s.Require().Equal(http.StatusCreated, w.Code)
	s.Equal("true", w.Header().Get(middleware.ReplayedHeader))
	var replayed struct {
		Order struct {
			ID string `json:"id"`
		} `json:"order"`
	}
	s.decode(env, &replayed)
	s.Equal(created.Order.ID, replayed.Order.ID)

	w, env = s.do(http.MethodGet, "/api/orders", buyer, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var purchases []map[string]interface{}
	s.decode(env, &purchases)
	s.Len(purchases, 1)

	w, env = s.do(http.MethodPost, "/api/orders/"+created.Order.ID+"/download", buyer, nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("INVALID_STATE", env.Error)

	w, env = s.do(http.MethodPost, "/api/orders/"+created.Order.ID+"/pay", buyer, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var paid struct {
		Status   string `json:"status"`
		Download struct {
			URL string `json:"downloadUrl"`
		} `json:"download"`
	}
	s.decode(env, &paid)
	s.Equal("completed", paid.Status)
	s.Equal("http://localhost:8080/files/templates/admin-dashboard-pro.zip", paid.Download.URL)

	for i := 0; i < 2; i++ {
		w, _ = s.do(http.MethodPost, "/api/orders/"+created.Order.ID+"/download", buyer, nil)
		s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	}
	w, env = s.do(http.MethodPost, "/api/orders/"+created.Order.ID+"/download", buyer, nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("DOWNLOAD_LIMIT_EXCEEDED", env.Error)

	w, env = s.do(http.MethodPost, "/api/reviews", buyer, gin.H{
		"orderId":    created.Order.ID,
		"templateId": templateID,
		"rating":     4,
		"content":    "Clean code and easy to customise.",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var review struct {
		RatingRefreshed bool `json:"ratingRefreshed"`
	}
	s.decode(env, &review)
	s.True(review.RatingRefreshed)

	w, env = s.do(http.MethodGet, "/api/templates/"+slug+"/rating", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var rating struct {
		Average float64 `json:"average"`
		Count   int64   `json:"count"`
	}
	s.decode(env, &rating)
	s.Equal(4.0, rating.Average)
	s.EqualValues(1, rating.Count)

	w, env = s.do(http.MethodPost, "/api/reviews", buyer, gin.H{
		"orderId":    created.Order.ID,
		"templateId": templateID,
		"rating":     5,
		"content":    "Writing a second review for the same order.",
	})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("ALREADY_REVIEWED", env.Error)
}

func (s *APITestSuite) TestReviewWithoutPurchaseIsRejected() {
	_, templateID, _ := s.sellerWithTemplate()
	s.register("Buyer One", "buyer@devshop.test")
	buyer := s.login("buyer@devshop.test", userPassword)

	w, env := s.do(http.MethodPost, "/api/reviews", buyer, gin.H{
		"orderId":    templateID,
		"templateId": templateID,
		"rating":     5,
		"content":    "I never bought this but here goes.",
	})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("PURCHASE_REQUIRED", env.Error)
}

func (s *APITestSuite) TestDraftTemplatesAreHidden() {
	s.register("Seller One", "seller@devshop.test")
	token := s.login("seller@devshop.test", userPassword)
	w, _ := s.do(http.MethodPost, "/api/users/register-seller", token, gin.H{"businessName": "Pixel Studio"})
	s.Require().Equal(http.StatusOK, w.Code)
	token = s.login("seller@devshop.test", userPassword)

	w, _ = s.do(http.MethodPost, "/api/templates", token, gin.H{
		"title":       "Secret Draft",
		"description": "Not ready for the public yet",
		"category":    "web",
		"pricing":     gin.H{"type": "free"},
		"images":      gin.H{"thumbnail": "https://cdn.devshop.test/thumb.png"},
		"files":       gin.H{"mainFile": "templates/secret-draft.zip"},
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w, env := s.do(http.MethodGet, "/api/templates/secret-draft", "", nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("NOT_FOUND", env.Error)

	w, _ = s.do(http.MethodGet, "/api/templates/secret-draft", token, nil)
	s.Equal(http.StatusOK, w.Code)

	w, env = s.do(http.MethodGet, "/api/templates", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var listed []map[string]interface{}
	s.decode(env, &listed)
	s.Empty(listed)
}

func (s *APITestSuite) TestLocalizedMessages() {
	w, env := s.do(http.MethodGet, "/api/auth/me", "", nil, "Accept-Language", "vi-VN,vi;q=0.9")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal(i18n.T("vi", i18n.KeyAuthRequired), env.Message)
}

func (s *APITestSuite) TestHealthAndMetrics() {
	w, _ := s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "healthy")

	w, _ = s.do(http.MethodGet, "/metrics", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "devshop_http_requests_total")
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}
