// Package auth はOAuth認証フロー、セッション管理、データ層トークンの発行を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/lessonbook/internal/model"
	"github.com/hitoshi/lessonbook/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークン一式に交換する。
	ExchangeCode(ctx context.Context, code string) (*TokenSet, error)
	// Refresh はリフレッシュトークンで新しいトークン一式を取得する。
	Refresh(ctx context.Context, refreshToken string) (*TokenSet, error)
	// FetchUserInfo はアクセストークンでユーザー情報を取得する。
	FetchUserInfo(ctx context.Context, accessToken string) (*OAuthUserInfo, error)
}

// Service は認証に関するビジネスロジックを提供する。
// セッション確立は全部成功か全部失敗のどちらかであり、途中状態は永続化しない。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	signer      *TokenSigner
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	signer *TokenSigner,
) *Service {
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		signer:      signer,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// EstablishSession は認可コードからセッションを確立する。
// トークン交換、ユーザー解決、データ層トークン署名がすべて成功した場合のみ
// セッション行を作成する。
func (s *Service) EstablishSession(ctx context.Context, code string) (*model.Session, error) {
	// 1. 認可コードをトークン一式に交換
	tokens, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. アクセストークンでユーザー情報を取得
	userInfo, err := s.oauth.FetchUserInfo(ctx, tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	// 3. identityからローカルユーザーを解決（未登録なら作成）
	userID, err := s.resolveUser(ctx, userInfo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}

	// 4. データ層トークンを署名。有効期限はプロバイダートークンと揃え、
	//    一度のリフレッシュで両方が更新されるようにする。
	dataToken, err := s.signer.SignDataToken(userID, tokens.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to sign data token: %w", err)
	}

	// 5. セッション行を作成
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:             sessionID,
		UserID:         userID,
		AccessToken:    tokens.AccessToken,
		RefreshToken:   tokens.RefreshToken,
		TokenExpiresAt: tokens.ExpiresAt,
		DataToken:      dataToken,
		Status:         model.SessionStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	slog.Info("session established",
		slog.String("user_id", userID),
		slog.String("provider", userInfo.Provider),
	)

	return session, nil
}

// resolveUser はidentityテーブルでユーザーを検索し、未登録なら作成する。
// 同一identityの初回ログインが並行した場合、片方の作成は一意制約違反になるため
// 再検索して勝った方のユーザーIDを採用する。
func (s *Service) resolveUser(ctx context.Context, userInfo *OAuthUserInfo) (string, error) {
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return "", fmt.Errorf("failed to find identity: %w", err)
	}
	if identity != nil {
		slog.Info("existing user logged in",
			slog.String("user_id", identity.UserID),
			slog.String("provider", userInfo.Provider),
		)
		return identity.UserID, nil
	}

	now := time.Now()
	newUser := &model.User{
		ID:        uuid.New().String(),
		Email:     userInfo.Email,
		Name:      userInfo.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	newIdentity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         newUser.ID,
		Provider:       userInfo.Provider,
		ProviderUserID: userInfo.ProviderUserID,
		CreatedAt:      now,
	}

	err = s.userRepo.CreateWithIdentity(ctx, newUser, newIdentity)
	if errors.Is(err, repository.ErrDuplicateIdentity) {
		// 並行ログインに負けた。作成済みのidentityを読み直す。
		existing, findErr := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
		if findErr != nil {
			return "", fmt.Errorf("failed to re-read identity: %w", findErr)
		}
		if existing == nil {
			return "", fmt.Errorf("identity vanished after duplicate: %s/%s", userInfo.Provider, userInfo.ProviderUserID)
		}
		return existing.UserID, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to create user and identity: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", newUser.ID),
		slog.String("email", userInfo.Email),
		slog.String("provider", userInfo.Provider),
	)
	return newUser.ID, nil
}

// CheckSession はセッションの有効性を検証する。
// プロバイダーへのネットワークアクセスは行わず、保存済みの期限だけで判定する。
// 期限切れまたはerrored状態の場合はErrTokenExpiredを返し、リフレッシュを促す。
func (s *Service) CheckSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, ErrNotAuthenticated
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, ErrNotAuthenticated
	}

	if session.Status == model.SessionStatusErrored || session.TokenExpired(time.Now()) {
		return session, ErrTokenExpired
	}

	return session, nil
}

// RefreshSession はリフレッシュトークンでセッションを更新する。
// 成功時はトークン一式とデータ層トークンを新しい値で置き換える。
// 失敗時は既存トークンを保持したままstatusをerroredにして返す。
func (s *Service) RefreshSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, ErrNotAuthenticated
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, ErrNotAuthenticated
	}

	if session.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	tokens, err := s.oauth.Refresh(ctx, session.RefreshToken)
	if err != nil {
		// トークンは消さずに状態だけerroredへ。次回のリフレッシュで再試行できる。
		session.Status = model.SessionStatusErrored
		session.UpdatedAt = time.Now()
		if updateErr := s.sessionRepo.Update(ctx, session); updateErr != nil {
			slog.Error("failed to mark session errored",
				slog.String("session_id", sessionID),
				slog.String("error", updateErr.Error()),
			)
		}
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	dataToken, err := s.signer.SignDataToken(session.UserID, tokens.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to sign data token: %w", err)
	}

	session.AccessToken = tokens.AccessToken
	session.RefreshToken = tokens.RefreshToken
	session.TokenExpiresAt = tokens.ExpiresAt
	session.DataToken = dataToken
	session.Status = model.SessionStatusActive
	session.UpdatedAt = time.Now()

	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	slog.Info("session refreshed", slog.String("user_id", session.UserID))
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	session, err := s.CheckSession(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrNotAuthenticated
	}

	return user, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
