package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// dataTokenRole はデータ層トークンに埋め込むロール。
const dataTokenRole = "authenticated"

// DataTokenClaims はデータ層トークンの検証済みクレーム。
type DataTokenClaims struct {
	UserID    string
	Role      string
	ExpiresAt time.Time
}

// TokenSigner はデータ層アクセス用のHS256署名付きトークンを発行・検証する。
type TokenSigner struct {
	secret []byte
}

// NewTokenSigner はTokenSignerを生成する。
func NewTokenSigner(secret string) *TokenSigner {
	return &TokenSigner{secret: []byte(secret)}
}

// SignDataToken はユーザーIDとロールを持つデータ層トークンを発行する。
// expは秒精度のUNIX時刻で埋め込む。
func (s *TokenSigner) SignDataToken(userID string, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": dataTokenRole,
		"exp":  expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign data token: %w", err)
	}
	return signed, nil
}

// VerifyDataToken はデータ層トークンを検証し、クレームを返す。
// 署名不一致、期限切れ、形式不正はすべてErrVerificationFailedにまとめる。
func (s *TokenSigner) VerifyDataToken(tokenString string) (*DataTokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrVerificationFailed
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrVerificationFailed)
	}

	role, _ := claims["role"].(string)
	if role != dataTokenRole {
		return nil, fmt.Errorf("%w: unexpected role", ErrVerificationFailed)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing exp claim", ErrVerificationFailed)
	}

	return &DataTokenClaims{
		UserID:    sub,
		Role:      role,
		ExpiresAt: exp.Time,
	}, nil
}
