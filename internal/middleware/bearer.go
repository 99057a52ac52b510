package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/UgochukwuChidera/resourcehub/internal/identity"
	"github.com/UgochukwuChidera/resourcehub/internal/model"
)

// bearerContextKey はベアラートークンのクレームとトークン文字列を格納するためのキー。
var (
	claimsContextKey = contextKey("token_claims")
	tokenContextKey  = contextKey("access_token")
)

// NewBearerAuthMiddleware はAuthorizationヘッダーのベアラートークンを
// ローカル検証するミドルウェアを返す。関数エンドポイント
// （generateUrl / passwordUpdate / profileUpdate互換）で使用する。
// 検証済みクレームと生トークンをリクエストコンテキストに注入する。
func NewBearerAuthMiddleware(verifier *identity.TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewSessionExpiredError())
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			ctx = context.WithValue(ctx, tokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken はAuthorizationヘッダーからベアラートークンを取り出す。
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// ContextWithClaims は検証済みクレームをコンテキストに注入する。テスト用ヘルパー。
func ContextWithClaims(ctx context.Context, claims *identity.AccessTokenClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ContextWithAccessToken は生のアクセストークンをコンテキストに注入する。テスト用ヘルパー。
func ContextWithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// ClaimsFromContext はリクエストコンテキストから検証済みクレームを取得する。
// ベアラー認証ミドルウェアを通過したリクエストでのみ有効。
func ClaimsFromContext(ctx context.Context) (*identity.AccessTokenClaims, error) {
	claims, ok := ctx.Value(claimsContextKey).(*identity.AccessTokenClaims)
	if !ok || claims == nil {
		return nil, fmt.Errorf("token claims not found in context")
	}
	return claims, nil
}

// AccessTokenFromContext はリクエストコンテキストから生のアクセストークンを取得する。
func AccessTokenFromContext(ctx context.Context) (string, error) {
	token, ok := ctx.Value(tokenContextKey).(string)
	if !ok || token == "" {
		return "", fmt.Errorf("access token not found in context")
	}
	return token, nil
}
