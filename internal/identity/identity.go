// Package identity は外部アイデンティティプロバイダー（GoTrue互換API）との境界を提供する。
// セッションの発行・検証・更新はすべてプロバイダー側が所有し、
// アプリケーションはトークンペアを観測するのみで永続化しない。
package identity

import (
	"context"
	"time"
)

// AuthEvent はプロバイダーが発行する認証状態変化イベントの種別。
type AuthEvent string

const (
	// EventInitialSession は初回セッション解決時のリプレイイベント。
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	// EventSignedIn はサインイン成功イベント。
	EventSignedIn AuthEvent = "SIGNED_IN"
	// EventSignedOut はサインアウトイベント。
	EventSignedOut AuthEvent = "SIGNED_OUT"
	// EventTokenRefreshed はトークンリフレッシュ成功イベント。
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	// EventUserUpdated はユーザーメタデータ更新イベント。
	EventUserUpdated AuthEvent = "USER_UPDATED"
)

// Event はセッション付きの認証状態変化通知。
// Sessionはサインアウト時にnilになる。
type Event struct {
	Type    AuthEvent
	Session *Session
}

// User はプロバイダーが発行した生のユーザー情報を表す。
// UserMetadataにはサインアップ時やprofileUpdateで書き込まれた任意のキーが入る。
type User struct {
	ID           string
	Email        string
	UserMetadata map[string]any
}

// MetadataString はUserMetadataから文字列値を取り出す。
// キーが存在しない、または文字列でない場合は空文字列を返す。
func (u *User) MetadataString(key string) string {
	if u == nil || u.UserMetadata == nil {
		return ""
	}
	if s, ok := u.UserMetadata[key].(string); ok {
		return s
	}
	return ""
}

// Session はプロバイダー発行のトークンペアと有効期限、対象ユーザーを表す。
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         *User
}

// Valid はセッションが存在し、アクセストークンが未失効かを返す。
func (s *Session) Valid() bool {
	return s != nil && s.AccessToken != "" && time.Now().Before(s.ExpiresAt)
}

// UsersPage はadmin ListUsersの1ページ分の結果。
type UsersPage struct {
	Users []*User
	// NextPage は次ページ番号。最終ページの場合は0。
	NextPage int
}

// AdminUserUpdate はadmin UpdateUserByIDの更新内容。
// nilフィールドは変更しない。
type AdminUserUpdate struct {
	Password     *string
	UserMetadata map[string]any
}

// Provider はアイデンティティプロバイダーの操作インターフェース。
// 本番実装はGoTrue互換REST APIへのHTTPクライアント。
type Provider interface {
	// SignInWithPassword はメール・パスワードでサインインしセッションを返す。
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)

	// SignUp は新規ユーザーを登録する。メタデータはuser_metadataに書き込まれる。
	// メール確認が必要な設定の場合、返却セッションはnilになりうる。
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Session, error)

	// SignOut はアクセストークンに対応するセッションをプロバイダー側で失効させる。
	SignOut(ctx context.Context, accessToken string) error

	// RefreshToken はリフレッシュトークンで新しいセッションを取得する。
	RefreshToken(ctx context.Context, refreshToken string) (*Session, error)

	// GetUser はアクセストークンに対応するユーザーを取得する。
	// セッションの有効性確認（get current session相当）に使用する。
	GetUser(ctx context.Context, accessToken string) (*User, error)

	// UpdateUser は本人のuser_metadataを更新する。
	UpdateUser(ctx context.Context, accessToken string, metadata map[string]any) (*User, error)

	// AdminListUsers はサービスロール権限で全ユーザーをページ単位に列挙する。
	AdminListUsers(ctx context.Context, page, perPage int) (*UsersPage, error)

	// AdminUpdateUserByID はサービスロール権限で指定ユーザーを更新する。
	AdminUpdateUserByID(ctx context.Context, userID string, update AdminUserUpdate) (*User, error)
}
