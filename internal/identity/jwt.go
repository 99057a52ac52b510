package identity

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims はプロバイダー発行アクセストークン（HS256 JWT）のクレーム。
// subjectがプロバイダー側のユーザーIDになる。
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// TokenVerifier は共有シークレットでアクセストークンをローカル検証する。
// プロバイダーへの往復なしにベアラートークンからユーザーIDを取り出すために使う。
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier はTokenVerifierを生成する。
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify はトークンを検証しクレームを返す。
// 署名不正・期限切れは回復不能トークンとしてAuthErrorで返す。
func (v *TokenVerifier) Verify(tokenString string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, &AuthError{Message: err.Error(), Status: 401, Code: CodeBadJWT}
	}
	if !token.Valid {
		return nil, &AuthError{Message: "invalid access token", Status: 401, Code: CodeBadJWT}
	}
	if claims.Subject == "" {
		return nil, &AuthError{Message: "access token has no subject", Status: 401, Code: CodeBadJWT}
	}

	return claims, nil
}
