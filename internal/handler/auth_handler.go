// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/lessonbook/internal/auth"
	"github.com/hitoshi/lessonbook/internal/model"
)

const (
	sessionCookieName = "session_id"
	oauthStateCookie  = "oauth_state"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	EstablishSession(ctx context.Context, code string) (*model.Session, error)
	CheckSession(ctx context.Context, sessionID string) (*model.Session, error)
	RefreshSession(ctx context.Context, sessionID string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthMetrics は認証ハンドラーが記録するメトリクスのインターフェース。
type AuthMetrics interface {
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
	RecordRefreshSuccess()
	RecordRefreshFailure()
	RecordOAuthLatency(duration time.Duration)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics AuthMetrics
}

// NewAuthHandler はAuthHandlerを生成する。metricsはnil可。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, metrics AuthMetrics) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: metrics,
	}
}

// LoginURL はGoogle OAuthの認証URLをJSONで返す。
// フロントエンドはこのURLにリダイレクトしてフローを開始する。
// GET /auth/google/url
func (h *AuthHandler) LoginURL(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to generate login URL",
		})
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"url": h.service.GetLoginURL(state),
	})
}

// Callback はOAuthコールバックを処理し、セッションを確立する。
// 成功時はセッションCookieを設定してトップページにリダイレクトする。
// GET /auth/google?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "No code provided",
		})
		return
	}

	// stateの検証（CSRF対策）。Cookieがある場合のみ照合する。
	if stateCookie, err := r.Cookie(oauthStateCookie); err == nil && stateCookie.Value != "" {
		if r.URL.Query().Get("state") != stateCookie.Value {
			slog.Warn("oauth state mismatch")
			h.recordLoginFailure("state")
			http.Redirect(w, r, "/auth/error", http.StatusTemporaryRedirect)
			return
		}
		clearCookie(w, oauthStateCookie, h.config.CookieSecure)
	}

	start := time.Now()
	session, err := h.service.EstablishSession(r.Context(), code)
	if h.metrics != nil {
		h.metrics.RecordOAuthLatency(time.Since(start))
	}
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		if errors.Is(err, auth.ErrResolutionFailed) {
			h.recordLoginFailure("resolution")
		} else {
			h.recordLoginFailure("exchange")
		}
		http.Redirect(w, r, "/auth/error", http.StatusTemporaryRedirect)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLoginSuccess()
	}

	// セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// Check はセッションの有効性を返す。プロバイダーへの問い合わせは行わない。
// GET /auth/google/check
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFromCookie(r)

	_, err := h.service.CheckSession(r.Context(), sessionID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"authenticated": true,
		})
	case errors.Is(err, auth.ErrTokenExpired):
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error":        "Token expired",
			"needsRefresh": true,
		})
	case errors.Is(err, auth.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": "Not authenticated",
		})
	default:
		slog.Error("session check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to check session",
		})
	}
}

// Refresh はリフレッシュトークンでセッションを更新する。
// POST /auth/google/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFromCookie(r)

	start := time.Now()
	_, err := h.service.RefreshSession(r.Context(), sessionID)
	if h.metrics != nil {
		h.metrics.RecordOAuthLatency(time.Since(start))
	}
	switch {
	case err == nil:
		if h.metrics != nil {
			h.metrics.RecordRefreshSuccess()
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
		})
	case errors.Is(err, auth.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": "Not authenticated",
		})
	case errors.Is(err, auth.ErrNoRefreshToken):
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": "No refresh token",
		})
	default:
		slog.Error("token refresh failed", slog.String("error", err.Error()))
		if h.metrics != nil {
			h.metrics.RecordRefreshFailure()
		}
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to refresh token",
		})
	}
}

// Logout はセッションを破棄し、Cookieをクリアする。
// POST /auth/google/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFromCookie(r)
	if sessionID != "" {
		if err := h.service.Logout(r.Context(), sessionID); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	clearCookie(w, sessionCookieName, h.config.CookieSecure)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// UserInfo は現在のログインユーザー情報を返す。
// GET /auth/google/userinfo
func (h *AuthHandler) UserInfo(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFromCookie(r)
	if sessionID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": "Not authenticated",
		})
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), sessionID)
	if err != nil {
		if !errors.Is(err, auth.ErrNotAuthenticated) {
			slog.Error("failed to get current user", slog.String("error", err.Error()))
		}
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": "Not authenticated",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
	})
}

// recordLoginFailure はログイン失敗メトリクスを記録する。
func (h *AuthHandler) recordLoginFailure(reason string) {
	if h.metrics != nil {
		h.metrics.RecordLoginFailure(reason)
	}
}

// sessionIDFromCookie はリクエストのCookieからセッションIDを取り出す。
func sessionIDFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// clearCookie は指定Cookieを失効させる。
func clearCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
