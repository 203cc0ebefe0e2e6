package model

import "time"

// Student は講師が管理する生徒を表す。
// IGはInstagramアカウント名で任意項目。
type Student struct {
	ID        string
	OwnerID   string
	Name      string
	IG        string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CourseCategory はコースの分類を表す。
type CourseCategory struct {
	ID        string
	OwnerID   string
	Name      string
	CreatedAt time.Time
}

// Course は日付単位のレッスン枠を表す。
// 同一オーナーの同一日付に複数のコースは作成しない。
type Course struct {
	ID         string
	OwnerID    string
	CategoryID string // 未分類の場合は空
	Date       string // "2006-01-02" 形式
	Name       string
	Closed     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Booking は生徒とコースの紐付け（受講予約）を表す。
type Booking struct {
	ID        string
	CourseID  string
	StudentID string
	CreatedAt time.Time
}

// CourseWithStudents はコースと受講生徒ID一覧を結合した読み取り用モデル。
type CourseWithStudents struct {
	Course
	StudentIDs []string
}
