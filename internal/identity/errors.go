package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AuthError はプロバイダーが返した認証エラーを表す。
// Messageはプロバイダーの文言をそのままユーザー向けに表示する。
type AuthError struct {
	Message string
	Status  int    // HTTPステータスコード
	Code    string // プロバイダーのエラーコード（例: invalid_grant）
}

// Error はerrorインターフェースを実装する。
func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (status %d, code %q): %s", e.Status, e.Code, e.Message)
}

// 既知のプロバイダーエラーコード
const (
	CodeInvalidGrant         = "invalid_grant"
	CodeInvalidCredentials   = "invalid_credentials"
	CodeRefreshTokenNotFound = "refresh_token_not_found"
	CodeRefreshTokenRevoked  = "refresh_token_already_used"
	CodeWeakPassword         = "weak_password"
	CodeUserNotFound         = "user_not_found"
	CodeBadJWT               = "bad_jwt"
)

// IsInvalidToken はセッション・トークンが回復不能に無効であることを示す
// エラーかを判定する。定常状態でこの条件を検出した場合、リコンサイラは
// 古い管理者状態を配り続けないためにローカルサインアウトを強制する。
func IsInvalidToken(err error) bool {
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		return false
	}

	switch authErr.Code {
	case CodeInvalidGrant, CodeRefreshTokenNotFound, CodeRefreshTokenRevoked, CodeBadJWT:
		return true
	}

	if authErr.Status == http.StatusUnauthorized {
		return true
	}

	// コード未設定の古いGoTrueはメッセージ文字列でしか判別できない
	msg := strings.ToLower(authErr.Message)
	if authErr.Status == http.StatusBadRequest &&
		(strings.Contains(msg, "invalid refresh token") || strings.Contains(msg, "token not found")) {
		return true
	}

	return false
}

// IsNotFound はプロバイダーが対象ユーザーを見つけられなかったエラーかを判定する。
func IsNotFound(err error) bool {
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		return false
	}
	return authErr.Status == http.StatusNotFound || authErr.Code == CodeUserNotFound
}
