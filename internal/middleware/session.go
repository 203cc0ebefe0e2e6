// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/lessonbook/internal/auth"
	"github.com/hitoshi/lessonbook/internal/model"
)

const sessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// TokenVerifier はデータ層トークンの検証に必要なインターフェース。
type TokenVerifier interface {
	VerifyDataToken(token string) (*auth.DataTokenClaims, error)
}

// NewSessionMiddleware はHTTP Only CookieからセッションIDを読み取り、
// セッションとデータ層トークンの両方を検証するミドルウェアを返す。
// 検証済みのユーザーIDをリクエストコンテキストに注入する。
// 未認証・期限切れ・トークン不正のリクエストには401 Unauthorizedを返す。
func NewSessionMiddleware(sessionFinder SessionFinder, verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieからセッションIDを取得
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				writeUnauthorizedResponse(w)
				return
			}

			// 2. セッション行を取得
			session, err := sessionFinder.FindByID(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to find session",
					slog.String("error", err.Error()),
				)
				writeUnauthorizedResponse(w)
				return
			}
			if session == nil {
				writeUnauthorizedResponse(w)
				return
			}

			// 3. セッション状態とトークン期限を検証
			if session.Status != model.SessionStatusActive || session.TokenExpired(time.Now()) {
				writeUnauthorizedResponse(w)
				return
			}

			// 4. データ層トークンを検証し、クレームのsubを採用する
			claims, err := verifier.VerifyDataToken(session.DataToken)
			if err != nil {
				slog.Warn("data token verification failed",
					slog.String("session_id", session.ID),
					slog.String("error", err.Error()),
				)
				writeUnauthorizedResponse(w)
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeUnauthorizedResponse は未認証リクエストへの401を統一フォーマットで書き込む。
func writeUnauthorizedResponse(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
