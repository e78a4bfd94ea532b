package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// testKeyID — идентификатор ключа для тестов.
const testKeyID = "test-key-cm"

const testIssuer = "https://keycloak.test/realms/community"

// generateTestKey генерирует RSA ключ для тестов.
func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	nB64 := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
	eB64 := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes())

	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   nB64,
				"e":   eB64,
			},
		},
	}

	data, _ := json.Marshal(jwks)
	return data
}

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestJWTAuth(t *testing.T, key *rsa.PrivateKey) *JWTAuth {
	t.Helper()
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	if err != nil {
		t.Fatalf("не удалось создать keyfunc: %v", err)
	}
	return NewJWTAuthWithKeyfunc(kf, testIssuer, []string{"community-admins"}, testLogger())
}

// generateToken генерирует JWT участника сообщества.
func generateToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("не удалось подписать токен: %v", err)
	}
	return tokenStr
}

func baseClaims(sub string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":                sub,
		"preferred_username": "user-" + sub,
		"iss":                testIssuer,
		"exp":                jwt.NewNumericDate(time.Now().Add(time.Hour)),
		"iat":                jwt.NewNumericDate(time.Now()),
	}
}

// captureHandler запоминает claims из контекста.
func captureHandler(got **AuthClaims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTAuth_ValidToken(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	claims := baseClaims("user-1")
	claims["realm_access"] = map[string]any{"roles": []string{"offline_access"}}
	claims["groups"] = []string{"community-admins"}

	var got *AuthClaims
	handler := auth.Middleware()(captureHandler(&got))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+generateToken(t, key, claims))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200: %s", rec.Code, rec.Body.String())
	}
	if got == nil {
		t.Fatal("claims не помещены в контекст")
	}
	if got.Subject != "user-1" || got.PreferredUsername != "user-user-1" {
		t.Errorf("Subject/PreferredUsername = %q/%q", got.Subject, got.PreferredUsername)
	}
	if len(got.Roles) != 1 || got.Roles[0] != "offline_access" {
		t.Errorf("Roles = %v", got.Roles)
	}
	if !got.IsAdmin {
		t.Error("IsAdmin = false для группы community-admins")
	}
}

func TestJWTAuth_Rejections(t *testing.T) {
	key := generateTestKey(t)
	otherKey := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	expired := baseClaims("user-1")
	expired["exp"] = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	wrongIssuer := baseClaims("user-1")
	wrongIssuer["iss"] = "https://evil.test"

	noSub := baseClaims("")
	delete(noSub, "sub")

	noExp := baseClaims("user-1")
	delete(noExp, "exp")

	tests := []struct {
		name   string
		header string
	}{
		{"нет заголовка", ""},
		{"не Bearer", "Basic dXNlcjpwYXNz"},
		{"пустой токен", "Bearer "},
		{"мусор вместо токена", "Bearer not.a.jwt"},
		{"просроченный токен", "Bearer " + generateToken(t, key, expired)},
		{"чужой issuer", "Bearer " + generateToken(t, key, wrongIssuer)},
		{"чужая подпись", "Bearer " + generateToken(t, otherKey, baseClaims("user-1"))},
		{"нет sub", "Bearer " + generateToken(t, key, noSub)},
		{"нет exp", "Bearer " + generateToken(t, key, noExp)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *AuthClaims
			handler := auth.Middleware()(captureHandler(&got))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("статус = %d, ожидался 401", rec.Code)
			}
			if got != nil {
				t.Error("обработчик не должен вызываться")
			}
		})
	}
}

func TestHeaderAuth(t *testing.T) {
	tests := []struct {
		name      string
		userID    string
		roles     string
		wantCode  int
		wantAdmin bool
	}{
		{"без заголовка", "", "", http.StatusUnauthorized, false},
		{"пробелы вместо ID", "   ", "", http.StatusUnauthorized, false},
		{"обычный пользователь", "alice", "", http.StatusOK, false},
		{"администратор", "root", " viewers , community-admins ", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *AuthClaims
			handler := HeaderAuth([]string{"community-admins"})(captureHandler(&got))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tt.userID != "" {
				req.Header.Set(HeaderUserID, tt.userID)
			}
			if tt.roles != "" {
				req.Header.Set(HeaderUserRoles, tt.roles)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("статус = %d, ожидался %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			if got.Subject != tt.userID {
				t.Errorf("Subject = %q, ожидался %q", got.Subject, tt.userID)
			}
			if got.IsAdmin != tt.wantAdmin {
				t.Errorf("IsAdmin = %v, ожидалось %v", got.IsAdmin, tt.wantAdmin)
			}
		})
	}
}

func TestSubjectFromContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := SubjectFromContext(req.Context()); got != "" {
		t.Errorf("SubjectFromContext без claims = %q, ожидалась пустая строка", got)
	}

	ctx := WithClaims(req.Context(), &AuthClaims{Subject: "alice"})
	if got := SubjectFromContext(ctx); got != "alice" {
		t.Errorf("SubjectFromContext = %q, ожидался alice", got)
	}
}
