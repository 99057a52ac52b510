package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GoTrueConfig はGoTrue互換APIクライアントの設定。
type GoTrueConfig struct {
	// BaseURL は認証APIのベースURL（例: "https://xyz.supabase.co/auth/v1"）。
	BaseURL string
	// AnonKey は匿名ロールのAPIキー。通常の認証操作に使用する。
	AnonKey string
	// ServiceRoleKey はadmin操作用のサービスロールキー。
	ServiceRoleKey string
	// HTTPClient は省略時10秒タイムアウトのクライアントになる。
	HTTPClient *http.Client
}

// GoTrueClient はGoTrue互換認証APIへのHTTPクライアント。
// Providerインターフェースの本番実装。
type GoTrueClient struct {
	baseURL        string
	anonKey        string
	serviceRoleKey string
	client         *http.Client
}

// NewGoTrueClient はGoTrueClientを生成する。
func NewGoTrueClient(cfg GoTrueConfig) *GoTrueClient {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoTrueClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		anonKey:        cfg.AnonKey,
		serviceRoleKey: cfg.ServiceRoleKey,
		client:         client,
	}
}

// --- ワイヤフォーマット ---

// sessionResponse はトークンエンドポイントのレスポンスボディ。
type sessionResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int           `json:"expires_in"`
	User         *userResponse `json:"user"`
}

// userResponse はプロバイダーのユーザーオブジェクト。
type userResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// errorResponse はGoTrueのエラーボディ。フィールド名はバージョンにより揺れる。
type errorResponse struct {
	Code             string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
}

func (e *errorResponse) message() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Message != "":
		return e.Message
	case e.ErrorDescription != "":
		return e.ErrorDescription
	}
	return "authentication request failed"
}

func toUser(u *userResponse) *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:           u.ID,
		Email:        u.Email,
		UserMetadata: u.UserMetadata,
	}
}

func toSession(sr *sessionResponse) *Session {
	if sr == nil || sr.AccessToken == "" {
		return nil
	}
	return &Session{
		AccessToken:  sr.AccessToken,
		RefreshToken: sr.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(sr.ExpiresIn) * time.Second),
		User:         toUser(sr.User),
	}
}

// --- Provider 実装 ---

// SignInWithPassword はメール・パスワードでサインインする。
func (c *GoTrueClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", c.anonKey, "", body, &resp); err != nil {
		return nil, err
	}
	return toSession(&resp), nil
}

// SignUp は新規ユーザーを登録する。
// metadataはuser_metadataのdataフィールドとして送信される。
func (c *GoTrueClient) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Session, error) {
	body := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		body["data"] = metadata
	}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/signup", c.anonKey, "", body, &resp); err != nil {
		return nil, err
	}
	// メール確認待ちの場合、access_tokenは返らずセッションはnil
	return toSession(&resp), nil
}

// SignOut はプロバイダー側でセッションを失効させる。
func (c *GoTrueClient) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/logout", c.anonKey, accessToken, nil, nil)
}

// RefreshToken はリフレッシュトークンで新しいトークンペアを取得する。
func (c *GoTrueClient) RefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	body := map[string]string{"refresh_token": refreshToken}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", c.anonKey, "", body, &resp); err != nil {
		return nil, err
	}
	return toSession(&resp), nil
}

// GetUser はアクセストークンに対応するユーザーを取得する。
func (c *GoTrueClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var resp userResponse
	if err := c.do(ctx, http.MethodGet, "/user", c.anonKey, accessToken, nil, &resp); err != nil {
		return nil, err
	}
	return toUser(&resp), nil
}

// UpdateUser は本人のuser_metadataを更新する。
func (c *GoTrueClient) UpdateUser(ctx context.Context, accessToken string, metadata map[string]any) (*User, error) {
	body := map[string]any{"data": metadata}

	var resp userResponse
	if err := c.do(ctx, http.MethodPut, "/user", c.anonKey, accessToken, body, &resp); err != nil {
		return nil, err
	}
	return toUser(&resp), nil
}

// AdminListUsers はサービスロール権限で全ユーザーをページ単位に列挙する。
// 返却件数がperPage未満なら最終ページとみなしNextPage=0を返す。
func (c *GoTrueClient) AdminListUsers(ctx context.Context, page, perPage int) (*UsersPage, error) {
	path := fmt.Sprintf("/admin/users?page=%d&per_page=%d", page, perPage)

	var resp struct {
		Users []*userResponse `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, path, c.serviceRoleKey, c.serviceRoleKey, nil, &resp); err != nil {
		return nil, err
	}

	users := make([]*User, len(resp.Users))
	for i, u := range resp.Users {
		users[i] = toUser(u)
	}

	next := 0
	if len(users) == perPage {
		next = page + 1
	}
	return &UsersPage{Users: users, NextPage: next}, nil
}

// AdminUpdateUserByID はサービスロール権限で指定ユーザーを更新する。
func (c *GoTrueClient) AdminUpdateUserByID(ctx context.Context, userID string, update AdminUserUpdate) (*User, error) {
	body := map[string]any{}
	if update.Password != nil {
		body["password"] = *update.Password
	}
	if update.UserMetadata != nil {
		body["user_metadata"] = update.UserMetadata
	}

	path := "/admin/users/" + url.PathEscape(userID)

	var resp userResponse
	if err := c.do(ctx, http.MethodPut, path, c.serviceRoleKey, c.serviceRoleKey, body, &resp); err != nil {
		return nil, err
	}
	return toUser(&resp), nil
}

// do はリクエストを送信し、2xx以外はAuthErrorに変換する。
func (c *GoTrueClient) do(ctx context.Context, method, path, apiKey, bearer string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("apikey", apiKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody errorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		_ = json.Unmarshal(data, &errBody)
		return &AuthError{
			Message: errBody.message(),
			Status:  resp.StatusCode,
			Code:    errBody.Code,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Provider = (*GoTrueClient)(nil)
