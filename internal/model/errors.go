// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// カテゴリ: auth（認証）、validation（入力検証）、resource（リソース操作）、
// storage（オブジェクトストレージ）、system（内部エラー）。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, resource, storage, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeWeakPassword        = "WEAK_PASSWORD"
	ErrCodeSessionExpired      = "SESSION_EXPIRED"
	ErrCodeResourceNotFound    = "RESOURCE_NOT_FOUND"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeInvalidResourceType = "INVALID_RESOURCE_TYPE"
	ErrCodeInvalidFilePath     = "INVALID_FILE_PATH"
	ErrCodeInvalidAvatarURL    = "INVALID_AVATAR_URL"
	ErrCodeMissingField        = "MISSING_FIELD"
	ErrCodeStorageFailed       = "STORAGE_FAILED"
	ErrCodeSignedURLFailed     = "SIGNED_URL_FAILED"
	ErrCodeCSRFTokenInvalid    = "CSRF_TOKEN_INVALID"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication is required.",
		Category: "auth",
		Action:   "Please log in and try again.",
	}
}

// NewForbiddenError は管理者権限が必要な操作への一般ユーザーのアクセスエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Caller is not an administrator.",
		Category: "auth",
		Action:   "Contact an administrator if you believe you should have access.",
	}
}

// NewCSRFTokenError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFTokenInvalid,
		Message:  "CSRF token validation failed.",
		Category: "auth",
		Action:   "Fetch a fresh token from /api/csrf-token and retry.",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// プロバイダーからのメッセージをそのまま表示する。
func NewInvalidCredentialsError(providerMessage string) *APIError {
	msg := providerMessage
	if msg == "" {
		msg = "Invalid login credentials."
	}
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  msg,
		Category: "auth",
		Action:   "Check your email and password and try again.",
	}
}

// NewWeakPasswordError はパスワード最小長違反エラーを生成する。
func NewWeakPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  "Password must be at least 6 characters.",
		Category: "validation",
		Action:   "Choose a longer password.",
	}
}

// NewSessionExpiredError はセッション無効（失効したリフレッシュトークン等）エラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "Your session has expired.",
		Category: "auth",
		Action:   "Please log in again.",
	}
}

// NewResourceNotFoundError はリソース未検出エラーを生成する。
func NewResourceNotFoundError(resourceID string) *APIError {
	return &APIError{
		Code:     ErrCodeResourceNotFound,
		Message:  fmt.Sprintf("Resource not found: %s", resourceID),
		Category: "resource",
		Action:   "Check the resource ID or refresh the resource list.",
	}
}

// NewUserNotFoundError は対象ユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("User with email '%s' not found.", email),
		Category: "auth",
		Action:   "Check the email address and try again.",
	}
}

// NewInvalidResourceTypeError は無効なリソース種別エラーを生成する。
func NewInvalidResourceTypeError(t string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidResourceType,
		Message:  fmt.Sprintf("Invalid resource type: %s", t),
		Category: "validation",
		Action:   "Choose one of the supported resource types.",
	}
}

// NewInvalidFilePathError は署名付きURL発行時のファイルパス不正エラーを生成する。
func NewInvalidFilePathError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilePath,
		Message:  fmt.Sprintf("Missing or invalid filePath parameter: %s", reason),
		Category: "validation",
		Action:   "Provide the storage path of an uploaded file.",
	}
}

// NewInvalidAvatarURLError はアバターURLがセキュリティポリシーに違反する場合のエラーを生成する。
func NewInvalidAvatarURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAvatarURL,
		Message:  fmt.Sprintf("Avatar URL was rejected: %s", reason),
		Category: "validation",
		Action:   "Use a public https URL for your avatar image.",
	}
}

// NewMissingFieldError は必須フィールド欠落エラーを生成する。
func NewMissingFieldError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingField,
		Message:  fmt.Sprintf("Missing required field: %s", field),
		Category: "validation",
		Action:   fmt.Sprintf("Provide a value for '%s'.", field),
	}
}

// NewStorageFailedError はオブジェクトストレージ操作の失敗エラーを生成する。
// 404（not found）は良性としてこのエラーにはならず、ログのみに記録される。
func NewStorageFailedError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeStorageFailed,
		Message:  fmt.Sprintf("Storage operation failed: %s", detail),
		Category: "storage",
		Action:   "Try again shortly. If the problem persists, contact an administrator.",
	}
}

// NewSignedURLFailedError は署名付きURLの発行失敗エラーを生成する。
func NewSignedURLFailedError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeSignedURLFailed,
		Message:  fmt.Sprintf("Failed to generate signed URL: %s", detail),
		Category: "storage",
		Action:   "Try the download again shortly.",
	}
}
