// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/UgochukwuChidera/resourcehub/internal/model"
	"github.com/UgochukwuChidera/resourcehub/internal/reconciler"
	"github.com/UgochukwuChidera/resourcehub/internal/session"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (string, reconciler.Snapshot, error)
	Register(ctx context.Context, email, password, name string) (sid string, snap reconciler.Snapshot, pending bool, err error)
	Logout(ctx context.Context, sid string) error
	Snapshot(sid string) (reconciler.Snapshot, bool)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はセッション認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// userResponse はLocalUserのAPI表現。
type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	IsAdmin     bool   `json:"isAdmin"`
}

// sessionResponse は認証状態スナップショットのAPI表現。
// userはnull iff 未認証。
type sessionResponse struct {
	User            *userResponse `json:"user"`
	IsAuthenticated bool          `json:"isAuthenticated"`
	IsLoading       bool          `json:"isLoading"`
}

type registerPendingResponse struct {
	Pending bool   `json:"pending"`
	Message string `json:"message"`
}

func toUserResponse(u *model.LocalUser) *userResponse {
	if u == nil {
		return nil
	}
	return &userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		IsAdmin:     u.IsAdmin,
	}
}

func toSessionResponse(snap reconciler.Snapshot) sessionResponse {
	return sessionResponse{
		User:            toUserResponse(snap.User),
		IsAuthenticated: snap.IsAuthenticated,
		IsLoading:       snap.IsLoading,
	}
}

// Login はメール・パスワードでサインインしセッションCookieを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	if req.Email == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldError("email"))
		return
	}
	if req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldError("password"))
		return
	}

	sid, snap, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, sid)
	writeJSON(w, http.StatusOK, toSessionResponse(snap))
}

// Register は新規ユーザーを登録する。メール確認が不要な構成では
// そのままセッションCookieを発行し、確認待ちの場合はpendingを返す。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	if req.Email == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldError("email"))
		return
	}
	if req.Name == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldError("name"))
		return
	}
	if len(req.Password) < 6 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewWeakPasswordError())
		return
	}

	sid, snap, pending, err := h.service.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if pending {
		writeJSON(w, http.StatusOK, registerPendingResponse{
			Pending: true,
			Message: "Check your email to confirm your account.",
		})
		return
	}

	h.setSessionCookie(w, sid)
	writeJSON(w, http.StatusCreated, toSessionResponse(snap))
}

// Logout はセッションを破棄しCookieを削除する。
// Cookieが無い場合もエラーにはしない（冪等）。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(session.CookieName); err == nil {
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			handleServiceError(w, err)
			return
		}
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在の認証状態スナップショットを返す。
// 未認証の場合も200でisAuthenticated=falseを返す（401にはしない）。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(session.CookieName)
	if err != nil {
		writeJSON(w, http.StatusOK, sessionResponse{})
		return
	}

	snap, ok := h.service.Snapshot(cookie.Value)
	if !ok {
		// 失効・破棄済みセッションのCookieは削除しておく
		h.clearSessionCookie(w)
		writeJSON(w, http.StatusOK, sessionResponse{})
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(snap))
}

// setSessionCookie はHTTP OnlyのセッションCookieを設定する。
// トークンはCookieに載せない。載るのはサーバー内レジストリのキーのみ。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sid,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
