// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/lessonbook/internal/model"
)

// ErrDuplicateIdentity は (provider, provider_user_id) の一意制約違反を表す。
// 同時初回ログインの競合で発生する。呼び出し側は既存identityを再検索して
// 勝者のユーザーIDを採用する。
var ErrDuplicateIdentity = errors.New("identity already exists")

// ErrDuplicateCourse は同一オーナー・同一日付のコース重複を表す。
var ErrDuplicateCourse = errors.New("course already exists for the date")

// ErrDuplicateBooking は同一コース・同一生徒の予約重複を表す。
var ErrDuplicateBooking = errors.New("booking already exists")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	// identitiesの一意制約に違反した場合はErrDuplicateIdentityを返す。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
// セッションはトークン一式を含む集約であり、更新は行全体の置き換えで行う。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	// トークン期限切れのセッションも返す（リフレッシュ判断は呼び出し側が行う）。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// Update はセッション行全体を置き換える。フィールド単位の部分更新は行わない。
	Update(ctx context.Context, session *model.Session) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// StudentRepository は生徒データの永続化インターフェース。
type StudentRepository interface {
	// ListByOwner はオーナーの生徒一覧を名前順で返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Student, error)

	// FindByID は指定IDの生徒を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Student, error)

	// Create は生徒を作成する。
	Create(ctx context.Context, student *model.Student) error

	// Update は生徒情報（name, ig, active）を更新する。
	Update(ctx context.Context, student *model.Student) error
}

// CategoryRepository はコースカテゴリの永続化インターフェース。
type CategoryRepository interface {
	// ListByOwner はオーナーのカテゴリ一覧を名前順で返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.CourseCategory, error)

	// FindByID は指定IDのカテゴリを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.CourseCategory, error)

	// Create はカテゴリを作成する。
	Create(ctx context.Context, category *model.CourseCategory) error

	// DeleteByID は指定IDのカテゴリを削除する。
	// 参照しているコースのcategory_idはNULLに戻る（ON DELETE SET NULL）。
	DeleteByID(ctx context.Context, id string) error
}

// CourseRepository はコースデータの永続化インターフェース。
type CourseRepository interface {
	// ListByOwner はオーナーのコース一覧を日付順で返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Course, error)

	// FindByID は指定IDのコースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Course, error)

	// FindByOwnerAndDate はオーナーと日付でコースを検索する。見つからない場合はnilを返す。
	FindByOwnerAndDate(ctx context.Context, ownerID, date string) (*model.Course, error)

	// Create はコースを作成する。同一オーナー・同一日付の重複は
	// ErrDuplicateCourseを返す。
	Create(ctx context.Context, course *model.Course) error

	// Update はコース情報（name, category_id, closed）を更新する。
	Update(ctx context.Context, course *model.Course) error

	// DeleteByID は指定IDのコースを削除する。予約はCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// BookingRepository は予約（生徒とコースの紐付け）の永続化インターフェース。
type BookingRepository interface {
	// ListStudentIDsByCourse はコースの受講生徒ID一覧を返す。
	ListStudentIDsByCourse(ctx context.Context, courseID string) ([]string, error)

	// Create は予約を作成する。重複予約はErrDuplicateBookingを返す。
	Create(ctx context.Context, booking *model.Booking) error

	// Delete はコースと生徒の組み合わせで予約を削除する。
	Delete(ctx context.Context, courseID, studentID string) error

	// CountByCourse はコースの予約数を返す。
	CountByCourse(ctx context.Context, courseID string) (int, error)
}
