package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/UgochukwuChidera/resourcehub/internal/identity"
)

const testJWTSecret = "test-jwt-secret"

// mintToken はテスト用のHS256アクセストークンを発行する。
func mintToken(t *testing.T, secret, subject string, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   subject,
		"email": "jane.doe@example.edu",
		"role":  "authenticated",
		"exp":   time.Now().Add(expiresIn).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

// TestBearerAuthMiddleware_ValidToken は有効なトークンでクレームが
// コンテキストに注入されることを検証する。
func TestBearerAuthMiddleware_ValidToken(t *testing.T) {
	verifier := identity.NewTokenVerifier(testJWTSecret)
	token := mintToken(t, testJWTSecret, "user-1", time.Hour)

	var gotSubject, gotToken string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := ClaimsFromContext(r.Context())
		if err != nil {
			t.Errorf("ClaimsFromContext: %v", err)
		} else {
			gotSubject = claims.Subject
		}
		gotToken, _ = AccessTokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := NewBearerAuthMiddleware(verifier)(inner)

	req := httptest.NewRequest(http.MethodPost, "/api/functions/generate-url", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if gotSubject != "user-1" {
		t.Errorf("subject = %q, want user-1", gotSubject)
	}
	if gotToken != token {
		t.Error("raw token not injected into context")
	}
}

// TestBearerAuthMiddleware_Rejections は不正なトークンが401になることを検証する。
func TestBearerAuthMiddleware_Rejections(t *testing.T) {
	verifier := identity.NewTokenVerifier(testJWTSecret)

	tests := []struct {
		name   string
		header string
	}{
		{"ヘッダーなし", ""},
		{"Bearerプレフィックスなし", mintToken(t, testJWTSecret, "user-1", time.Hour)},
		{"別シークレットで署名", "Bearer " + mintToken(t, "other-secret", "user-1", time.Hour)},
		{"期限切れ", "Bearer " + mintToken(t, testJWTSecret, "user-1", -time.Hour)},
		{"壊れたトークン", "Bearer not.a.jwt"},
	}

	handler := NewBearerAuthMiddleware(verifier)(okHandler())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/functions/generate-url", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rr.Code)
			}
		})
	}
}
