package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/lessonbook/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, access_token, refresh_token, token_expires_at, data_token, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		session.ID, session.UserID, session.AccessToken, session.RefreshToken,
		session.TokenExpiresAt, session.DataToken, session.Status,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
// トークン期限切れの行もそのまま返す。期限切れの扱い（リフレッシュか401か）は
// サービス層の状態機械が決める。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, access_token, refresh_token, token_expires_at, data_token, status, created_at, updated_at
		 FROM sessions
		 WHERE id = $1`,
		id,
	).Scan(&session.ID, &session.UserID, &session.AccessToken, &session.RefreshToken,
		&session.TokenExpiresAt, &session.DataToken, &session.Status,
		&session.CreatedAt, &session.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// Update はセッション行全体を置き換える。
// トークンとデータトークンは常に同じユーザーのペアとして書き込まれるため、
// フィールド単位の部分更新は提供しない。
func (r *PostgresSessionRepo) Update(ctx context.Context, session *model.Session) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET user_id = $2, access_token = $3, refresh_token = $4,
		     token_expires_at = $5, data_token = $6, status = $7, updated_at = $8
		 WHERE id = $1`,
		session.ID, session.UserID, session.AccessToken, session.RefreshToken,
		session.TokenExpiresAt, session.DataToken, session.Status, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("session not found: %s", session.ID)
	}
	return nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *PostgresSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
