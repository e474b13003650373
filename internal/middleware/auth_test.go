package middleware

import (
	"exam_tracker_backend/internal/config"
	"exam_tracker_backend/internal/util"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, claims util.Claims, method jwt.SigningMethod) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	s, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func newClaims(sub, email, role string) util.Claims {
	return util.Claims{
		Email:       email,
		AppMetadata: util.AppMetadata{Role: role},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func newRouter(cfg *config.AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(cfg), func(c *gin.Context) {
		util.Success(c, util.GetUserFromContext(c).UserID())
	})
	r.GET("/admin", AuthMiddleware(cfg), AdminMiddleware(), func(c *gin.Context) {
		util.Success(c, "ok")
	})
	return r
}

func do(r *gin.Engine, path, token string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.AuthConfig{JWTSecret: testSecret, Audience: "authenticated", AdminEmails: []string{"boss@example.com"}}
	r := newRouter(cfg)

	student := signToken(t, newClaims("7c9e6679-7425-40de-944b-e07fc1f90ae7", "s@example.com", ""), jwt.SigningMethodHS256)
	admin := signToken(t, newClaims("a1", "x@example.com", "admin"), jwt.SigningMethodHS256)
	listed := signToken(t, newClaims("a2", "Boss@example.com", ""), jwt.SigningMethodHS256)
	noSub := signToken(t, newClaims("", "s@example.com", ""), jwt.SigningMethodHS256)
	wrongAlg := signToken(t, newClaims("u", "s@example.com", ""), jwt.SigningMethodHS512)

	cases := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"missing token", "/me", "", http.StatusUnauthorized},
		{"garbage token", "/me", "abc", http.StatusUnauthorized},
		{"valid student", "/me", student, http.StatusOK},
		{"no subject", "/me", noSub, http.StatusUnauthorized},
		{"unexpected algorithm", "/me", wrongAlg, http.StatusUnauthorized},
		{"student on admin route", "/admin", student, http.StatusForbidden},
		{"admin role", "/admin", admin, http.StatusOK},
		{"admin email", "/admin", listed, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := do(r, tc.path, tc.token); got != tc.want {
				t.Fatalf("status: want=%d got=%d", tc.want, got)
			}
		})
	}
}

func TestAuthMiddlewareRejectsWrongAudience(t *testing.T) {
	cfg := &config.AuthConfig{JWTSecret: testSecret, Audience: "other"}
	r := newRouter(cfg)
	token := signToken(t, newClaims("u", "s@example.com", ""), jwt.SigningMethodHS256)
	if got := do(r, "/me", token); got != http.StatusUnauthorized {
		t.Fatalf("status: want=401 got=%d", got)
	}
}
