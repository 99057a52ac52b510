// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/UgochukwuChidera/resourcehub/internal/model"
	"github.com/UgochukwuChidera/resourcehub/internal/reconciler"
	"github.com/UgochukwuChidera/resourcehub/internal/session"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
	userContextKey = contextKey("local_user")
	// reconcilerContextKey はセッションのリコンサイラを格納するためのキー。
	reconcilerContextKey = contextKey("reconciler")
	// sidContextKey はセッションIDを格納するためのキー。
	sidContextKey = contextKey("session_id")
)

// ReconcilerLookup はセッションIDからリコンサイラを検索するインターフェース。
// session.Registryの部分集合として定義する。
type ReconcilerLookup interface {
	Lookup(sid string) (*reconciler.Reconciler, bool)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// レジストリのリコンサイラから現在の認証状態を取得するミドルウェアを返す。
// 認証済みユーザーとリコンサイラをリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewSessionMiddleware(registry ReconcilerLookup) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(session.CookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			rec, ok := registry.Lookup(cookie.Value)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewSessionExpiredError())
				return
			}

			snap := rec.Snapshot()
			if !snap.IsAuthenticated {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, snap.User)
			ctx = context.WithValue(ctx, reconcilerContextKey, rec)
			ctx = context.WithValue(ctx, sidContextKey, cookie.Value)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewAdminMiddleware は管理者権限を要求するミドルウェアを返す。
// SessionMiddlewareの後に配置する。
func NewAdminMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if !user.IsAdmin {
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.LocalUser, error) {
	user, ok := ctx.Value(userContextKey).(*model.LocalUser)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// ReconcilerFromContext はリクエストコンテキストからリコンサイラを取得する。
func ReconcilerFromContext(ctx context.Context) (*reconciler.Reconciler, error) {
	rec, ok := ctx.Value(reconcilerContextKey).(*reconciler.Reconciler)
	if !ok || rec == nil {
		return nil, fmt.Errorf("reconciler not found in context")
	}
	return rec, nil
}

// SessionIDFromContext はリクエストコンテキストからセッションIDを取得する。
func SessionIDFromContext(ctx context.Context) (string, error) {
	sid, ok := ctx.Value(sidContextKey).(string)
	if !ok || sid == "" {
		return "", fmt.Errorf("session id not found in context")
	}
	return sid, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.LocalUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// ContextWithReconciler はコンテキストにリコンサイラを注入する。テスト用。
func ContextWithReconciler(ctx context.Context, rec *reconciler.Reconciler) context.Context {
	return context.WithValue(ctx, reconcilerContextKey, rec)
}
