package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// GoTrue互換APIのスタブを立ててクライアントの往復を検証する。

func newStubServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *GoTrueClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewGoTrueClient(GoTrueConfig{
		BaseURL:        srv.URL,
		AnonKey:        "anon-key",
		ServiceRoleKey: "service-key",
		HTTPClient:     srv.Client(),
	})
	return srv, client
}

func TestSignInWithPassword_Success(t *testing.T) {
	_, client := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/token", r.URL.Path)
		require.Equal(t, "password", r.URL.Query().Get("grant_type"))
		require.Equal(t, "anon-key", r.Header.Get("apikey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "jane.doe@x.edu", body["email"])

		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-1",
			"refresh_token": "rt-1",
			"expires_in":    3600,
			"user": map[string]any{
				"id":            "user-1",
				"email":         "jane.doe@x.edu",
				"user_metadata": map[string]any{"name": "Jane Doe"},
			},
		})
	})

	sess, err := client.SignInWithPassword(context.Background(), "jane.doe@x.edu", "secret")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "at-1", sess.AccessToken)
	assert.Equal(t, "rt-1", sess.RefreshToken)
	assert.True(t, sess.ExpiresAt.After(time.Now()))
	require.NotNil(t, sess.User)
	assert.Equal(t, "user-1", sess.User.ID)
	assert.Equal(t, "Jane Doe", sess.User.MetadataString("name"))
}

func TestSignInWithPassword_InvalidCredentials(t *testing.T) {
	_, client := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error_code": "invalid_credentials",
			"msg":        "Invalid login credentials",
		})
	})

	sess, err := client.SignInWithPassword(context.Background(), "jane.doe@x.edu", "wrong")
	require.Error(t, err)
	assert.Nil(t, sess)

	authErr, ok := err.(*AuthError)
	require.True(t, ok, "error should be *AuthError")
	assert.Equal(t, http.StatusBadRequest, authErr.Status)
	assert.Equal(t, "invalid_credentials", authErr.Code)
	assert.Equal(t, "Invalid login credentials", authErr.Message)
}

func TestSignUp_EmailConfirmationPending_ReturnsNilSession(t *testing.T) {
	_, client := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/signup", r.URL.Path)
		// メール確認待ち: ユーザーオブジェクトのみ、トークンなし
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "user-2",
			"email": "new@x.edu",
		})
	})

	sess, err := client.SignUp(context.Background(), "new@x.edu", "secret123", map[string]any{"name": "New User"})
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestRefreshToken_Revoked_IsInvalidToken(t *testing.T) {
	_, client := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error_code": "refresh_token_not_found",
			"msg":        "Invalid Refresh Token: Refresh Token Not Found",
		})
	})

	_, err := client.RefreshToken(context.Background(), "stale-rt")
	require.Error(t, err)
	assert.True(t, IsInvalidToken(err), "revoked refresh token should be recognized as invalid token condition")
}

func TestGetUser_PassesBearerToken(t *testing.T) {
	_, client := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/user", r.URL.Path)
		require.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "user-1",
			"email": "jane.doe@x.edu",
		})
	})

	user, err := client.GetUser(context.Background(), "at-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
}

func TestAdminListUsers_Pagination(t *testing.T) {
	_, client := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/users", r.URL.Path)
		require.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		page := r.URL.Query().Get("page")
		users := []map[string]any{}
		if page == "1" {
			// perPageちょうど返す → 次ページあり
			users = append(users,
				map[string]any{"id": "u1", "email": "a@x.edu"},
				map[string]any{"id": "u2", "email": "b@x.edu"},
			)
		} else {
			users = append(users, map[string]any{"id": "u3", "email": "c@x.edu"})
		}
		json.NewEncoder(w).Encode(map[string]any{"users": users})
	})

	page1, err := client.AdminListUsers(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, page1.Users, 2)
	assert.Equal(t, 2, page1.NextPage)

	page2, err := client.AdminListUsers(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Len(t, page2.Users, 1)
	assert.Equal(t, 0, page2.NextPage, "short page is the last page")
}

func TestAdminUpdateUserByID_SendsPasswordAndMetadata(t *testing.T) {
	password := "newpassword"
	_, client := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/admin/users/user-1", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "newpassword", body["password"])

		json.NewEncoder(w).Encode(map[string]any{"id": "user-1", "email": "a@x.edu"})
	})

	user, err := client.AdminUpdateUserByID(context.Background(), "user-1", AdminUserUpdate{Password: &password})
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
}
