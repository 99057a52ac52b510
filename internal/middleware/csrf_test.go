package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/UgochukwuChidera/resourcehub/internal/model"
)

func csrfTestHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestCSRFMiddleware_SafeMethodsSkipValidation(t *testing.T) {
	mw := NewCSRFMiddleware(CSRFConfig{})

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			called := false
			req := httptest.NewRequest(method, "/api/resources", nil)
			w := httptest.NewRecorder()
			mw(csrfTestHandler(&called)).ServeHTTP(w, req)

			if !called {
				t.Fatalf("%s without token should pass through", method)
			}
		})
	}
}

func TestCSRFMiddleware_MutatingMethodsRequireToken(t *testing.T) {
	mw := NewCSRFMiddleware(CSRFConfig{})

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			called := false
			req := httptest.NewRequest(method, "/api/resources", nil)
			w := httptest.NewRecorder()
			mw(csrfTestHandler(&called)).ServeHTTP(w, req)

			if called {
				t.Fatalf("%s without token should be rejected", method)
			}
			if w.Code != http.StatusForbidden {
				t.Errorf("status = %d, want 403", w.Code)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if body.Code != model.ErrCodeCSRFTokenInvalid {
				t.Errorf("code = %s, want %s", body.Code, model.ErrCodeCSRFTokenInvalid)
			}
		})
	}
}

func TestCSRFMiddleware_HeaderMustMatchCookie(t *testing.T) {
	mw := NewCSRFMiddleware(CSRFConfig{})

	// Cookieのみ
	called := false
	req := httptest.NewRequest(http.MethodPost, "/api/resources", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "token-abc"})
	w := httptest.NewRecorder()
	mw(csrfTestHandler(&called)).ServeHTTP(w, req)
	if called || w.Code != http.StatusForbidden {
		t.Errorf("missing header: called = %v, status = %d, want rejected 403", called, w.Code)
	}

	// 不一致
	called = false
	req = httptest.NewRequest(http.MethodPost, "/api/resources", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "token-abc"})
	req.Header.Set(csrfHeaderName, "token-xyz")
	w = httptest.NewRecorder()
	mw(csrfTestHandler(&called)).ServeHTTP(w, req)
	if called || w.Code != http.StatusForbidden {
		t.Errorf("mismatch: called = %v, status = %d, want rejected 403", called, w.Code)
	}

	// 一致
	called = false
	req = httptest.NewRequest(http.MethodPost, "/api/resources", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "token-abc"})
	req.Header.Set(csrfHeaderName, "token-abc")
	w = httptest.NewRecorder()
	mw(csrfTestHandler(&called)).ServeHTTP(w, req)
	if !called {
		t.Error("matching token should pass through")
	}
}

func TestCSRFMiddleware_SafeMethodSetsCookieOnce(t *testing.T) {
	mw := NewCSRFMiddleware(CSRFConfig{CookieDomain: "hub.example.edu"})

	called := false
	req := httptest.NewRequest(http.MethodGet, "/api/resources", nil)
	w := httptest.NewRecorder()
	mw(csrfTestHandler(&called)).ServeHTTP(w, req)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected CSRF cookie on first GET")
	}
	if cookie.Value == "" {
		t.Error("cookie value should not be empty")
	}
	if cookie.HttpOnly {
		t.Error("cookie must be readable by the frontend, want HttpOnly=false")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", cookie.SameSite)
	}

	// 既にCookieを持つリクエストには再発行しない
	req = httptest.NewRequest(http.MethodGet, "/api/resources", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: cookie.Value})
	w = httptest.NewRecorder()
	mw(csrfTestHandler(&called)).ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName {
			t.Error("cookie should not be re-issued when already present")
		}
	}
}

func TestCSRFTokenHandler_IssuesAndReusesToken(t *testing.T) {
	h := NewCSRFTokenHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Token == "" {
		t.Fatal("expected non-empty token")
	}

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != body.Token {
		t.Fatalf("cookie = %+v, want value matching response token %q", cookie, body.Token)
	}

	// 既存トークンはそのまま返す
	req = httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-token"})
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Token != "existing-token" {
		t.Errorf("token = %q, want existing-token", body.Token)
	}
}
