package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/UgochukwuChidera/resourcehub/internal/model"
	"github.com/UgochukwuChidera/resourcehub/internal/reconciler"
	"github.com/UgochukwuChidera/resourcehub/internal/session"
)

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	loginFn    func(ctx context.Context, email, password string) (string, reconciler.Snapshot, error)
	registerFn func(ctx context.Context, email, password, name string) (string, reconciler.Snapshot, bool, error)
	logoutFn   func(ctx context.Context, sid string) error
	snapshotFn func(sid string) (reconciler.Snapshot, bool)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (string, reconciler.Snapshot, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return "", reconciler.Snapshot{}, nil
}

func (m *mockAuthService) Register(ctx context.Context, email, password, name string) (string, reconciler.Snapshot, bool, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, email, password, name)
	}
	return "", reconciler.Snapshot{}, false, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sid string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sid)
	}
	return nil
}

func (m *mockAuthService) Snapshot(sid string) (reconciler.Snapshot, bool) {
	if m.snapshotFn != nil {
		return m.snapshotFn(sid)
	}
	return reconciler.Snapshot{}, false
}

func authenticatedSnapshot() reconciler.Snapshot {
	return reconciler.Snapshot{
		User: &model.LocalUser{
			ID:          "user-1",
			Email:       "jane@example.edu",
			DisplayName: "Jane Doe",
			IsAdmin:     true,
		},
		IsAuthenticated: true,
	}
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// sessionCookie はレスポンスからセッションCookieを取り出す。無ければnil。
func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

// --- POST /auth/login テスト ---

func TestAuthHandler_Login_Success(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (string, reconciler.Snapshot, error) {
			if email != "jane@example.edu" || password != "secret123" {
				t.Errorf("unexpected credentials: %s / %s", email, password)
			}
			return "sid-abc", authenticatedSnapshot(), nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{SessionMaxAge: 86400})

	req := jsonRequest(t, http.MethodPost, "/auth/login", loginRequest{
		Email:    "jane@example.edu",
		Password: "secret123",
	})
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	cookie := sessionCookie(w)
	if cookie == nil {
		t.Fatal("session cookie should be set")
	}
	if cookie.Value != "sid-abc" {
		t.Errorf("cookie value = %s, want sid-abc", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("session cookie must be HTTP only")
	}
	if cookie.MaxAge != 86400 {
		t.Errorf("cookie max age = %d, want 86400", cookie.MaxAge)
	}

	var resp sessionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.IsAuthenticated {
		t.Error("isAuthenticated should be true")
	}
	if resp.User == nil || resp.User.DisplayName != "Jane Doe" {
		t.Errorf("user = %+v", resp.User)
	}
	if resp.IsLoading {
		t.Error("isLoading should be false after login")
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (string, reconciler.Snapshot, error) {
			return "", reconciler.Snapshot{}, model.NewInvalidCredentialsError("Invalid login credentials")
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	req := jsonRequest(t, http.MethodPost, "/auth/login", loginRequest{
		Email:    "jane@example.edu",
		Password: "wrong",
	})
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	resp := parseAPIErrorResponse(t, w)
	// プロバイダーのメッセージを加工せずそのまま返す
	if resp["message"] != "Invalid login credentials" {
		t.Errorf("message = %s, want provider message unchanged", resp["message"])
	}
	if sessionCookie(w) != nil {
		t.Error("no session cookie should be set on failure")
	}
}

func TestAuthHandler_Login_MissingFields(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{})

	tests := []struct {
		name string
		body loginRequest
	}{
		{"email無し", loginRequest{Password: "secret123"}},
		{"password無し", loginRequest{Email: "jane@example.edu"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := jsonRequest(t, http.MethodPost, "/auth/login", tt.body)
			w := httptest.NewRecorder()
			h.Login(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			resp := parseAPIErrorResponse(t, w)
			if resp["code"] != model.ErrCodeMissingField {
				t.Errorf("code = %s, want %s", resp["code"], model.ErrCodeMissingField)
			}
		})
	}
}

// --- POST /auth/register テスト ---

func TestAuthHandler_Register_ImmediateSession(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, email, password, name string) (string, reconciler.Snapshot, bool, error) {
			if name != "Jane Doe" {
				t.Errorf("name = %s, want Jane Doe", name)
			}
			return "sid-new", authenticatedSnapshot(), false, nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{SessionMaxAge: 86400})

	req := jsonRequest(t, http.MethodPost, "/auth/register", registerRequest{
		Email:    "jane@example.edu",
		Password: "secret123",
		Name:     "Jane Doe",
	})
	w := httptest.NewRecorder()
	h.Register(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if sessionCookie(w) == nil {
		t.Error("session cookie should be set")
	}
}

func TestAuthHandler_Register_PendingConfirmation(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, email, password, name string) (string, reconciler.Snapshot, bool, error) {
			return "", reconciler.Snapshot{}, true, nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	req := jsonRequest(t, http.MethodPost, "/auth/register", registerRequest{
		Email:    "jane@example.edu",
		Password: "secret123",
		Name:     "Jane Doe",
	})
	w := httptest.NewRecorder()
	h.Register(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp registerPendingResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Pending {
		t.Error("pending should be true")
	}
	if sessionCookie(w) != nil {
		t.Error("no session cookie should be set while confirmation is pending")
	}
}

func TestAuthHandler_Register_ShortPassword(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{})

	req := jsonRequest(t, http.MethodPost, "/auth/register", registerRequest{
		Email:    "jane@example.edu",
		Password: "short",
		Name:     "Jane Doe",
	})
	w := httptest.NewRecorder()
	h.Register(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	resp := parseAPIErrorResponse(t, w)
	if resp["code"] != model.ErrCodeWeakPassword {
		t.Errorf("code = %s, want %s", resp["code"], model.ErrCodeWeakPassword)
	}
}

// --- POST /auth/logout テスト ---

func TestAuthHandler_Logout_Success(t *testing.T) {
	loggedOut := ""
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sid string) error {
			loggedOut = sid
			return nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "sid-abc"})
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if loggedOut != "sid-abc" {
		t.Errorf("logged out sid = %s, want sid-abc", loggedOut)
	}

	cookie := sessionCookie(w)
	if cookie == nil || cookie.MaxAge != -1 {
		t.Error("session cookie should be cleared")
	}
}

func TestAuthHandler_Logout_WithoutCookie(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	w := httptest.NewRecorder()
	h.Logout(w, req)

	// Cookie無しでも冪等に成功する
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
}

// --- GET /auth/me テスト ---

func TestAuthHandler_Me_Authenticated(t *testing.T) {
	svc := &mockAuthService{
		snapshotFn: func(sid string) (reconciler.Snapshot, bool) {
			if sid != "sid-abc" {
				t.Errorf("sid = %s, want sid-abc", sid)
			}
			return authenticatedSnapshot(), true
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "sid-abc"})
	w := httptest.NewRecorder()
	h.Me(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp sessionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.IsAuthenticated || resp.User == nil {
		t.Errorf("response = %+v, want authenticated user", resp)
	}
}

func TestAuthHandler_Me_NoCookie(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()
	h.Me(w, req)

	// 未認証でも401ではなく200で返す
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp sessionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.IsAuthenticated || resp.User != nil {
		t.Errorf("response = %+v, want unauthenticated", resp)
	}
}

func TestAuthHandler_Me_ExpiredSession(t *testing.T) {
	svc := &mockAuthService{
		snapshotFn: func(sid string) (reconciler.Snapshot, bool) {
			return reconciler.Snapshot{}, false
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "sid-stale"})
	w := httptest.NewRecorder()
	h.Me(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	// 失効セッションのCookieは削除される
	cookie := sessionCookie(w)
	if cookie == nil || cookie.MaxAge != -1 {
		t.Error("stale session cookie should be cleared")
	}
}
