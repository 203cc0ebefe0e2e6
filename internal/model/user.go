// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザー（講師）を表す。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
// (Provider, ProviderUserID) の組は一意であり、必ず1つのUserIDに対応する。
// 将来的に複数のIdP（Google, GitHub等）に対応可能な構造。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// SessionStatus はセッションの状態を表す。
type SessionStatus string

const (
	// SessionStatusActive は有効なセッションを示す。
	SessionStatusActive SessionStatus = "active"
	// SessionStatusErrored はリフレッシュに失敗したセッションを示す。
	// トークンは保持したままにし、再ログインさせるかどうかの判断は
	// 呼び出し側（UI）に委ねる。
	SessionStatusErrored SessionStatus = "errored"
)

// Session はユーザーのログインセッションを表す。
// プロバイダートークン一式とデータ層向け署名付きクレデンシャルを
// 1つの集約として保持する。更新は常に行全体の置き換えで行い、
// DataTokenの主体とUserIDが食い違う状態を作らない。
type Session struct {
	ID             string
	UserID         string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
	DataToken      string
	Status         SessionStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TokenExpired はプロバイダートークン（＝データトークン）が期限切れか
// どうかを判定する。境界は now >= expiry とする。
func (s *Session) TokenExpired(now time.Time) bool {
	return !now.Before(s.TokenExpiresAt)
}
