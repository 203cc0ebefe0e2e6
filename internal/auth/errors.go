package auth

import "errors"

var (
	// ErrExchangeFailed は認可コードのトークン交換失敗を表す。
	ErrExchangeFailed = errors.New("oauth code exchange failed")
	// ErrRefreshFailed はリフレッシュトークンによる更新失敗を表す。
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrNoRefreshToken はセッションにリフレッシュトークンがないことを表す。
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrResolutionFailed はユーザー解決の失敗を表す。
	ErrResolutionFailed = errors.New("user resolution failed")
	// ErrVerificationFailed はデータトークンの検証失敗を表す。
	ErrVerificationFailed = errors.New("data token verification failed")
	// ErrNotAuthenticated は有効なセッションが存在しないことを表す。
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrTokenExpired はアクセストークンの期限切れを表す。
	ErrTokenExpired = errors.New("token expired")
)
