// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, schedule, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeStudentNotFound  = "STUDENT_NOT_FOUND"
	ErrCodeCategoryNotFound = "CATEGORY_NOT_FOUND"
	ErrCodeCourseNotFound   = "COURSE_NOT_FOUND"
	ErrCodeCourseClosed     = "COURSE_CLOSED"
	ErrCodeDuplicateCourse  = "DUPLICATE_COURSE"
	ErrCodeDuplicateBooking = "DUPLICATE_BOOKING"
	ErrCodeInvalidDate      = "INVALID_DATE"
	ErrCodeEmptyName        = "EMPTY_NAME"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
)

// NewStudentNotFoundError は生徒未検出エラーを生成する。
func NewStudentNotFoundError(studentID string) *APIError {
	return &APIError{
		Code:     ErrCodeStudentNotFound,
		Message:  fmt.Sprintf("指定された生徒が見つかりません: %s", studentID),
		Category: "schedule",
		Action:   "生徒IDを確認してください。",
	}
}

// NewCategoryNotFoundError はカテゴリ未検出エラーを生成する。
func NewCategoryNotFoundError(categoryID string) *APIError {
	return &APIError{
		Code:     ErrCodeCategoryNotFound,
		Message:  fmt.Sprintf("指定されたカテゴリが見つかりません: %s", categoryID),
		Category: "schedule",
		Action:   "カテゴリIDを確認してください。",
	}
}

// NewCourseNotFoundError はコース未検出エラーを生成する。
func NewCourseNotFoundError(courseID string) *APIError {
	return &APIError{
		Code:     ErrCodeCourseNotFound,
		Message:  fmt.Sprintf("指定されたコースが見つかりません: %s", courseID),
		Category: "schedule",
		Action:   "コースIDを確認してください。",
	}
}

// NewCourseClosedError は締切済みコースへの操作エラーを生成する。
func NewCourseClosedError(courseID string) *APIError {
	return &APIError{
		Code:     ErrCodeCourseClosed,
		Message:  fmt.Sprintf("コースは既に締め切られています: %s", courseID),
		Category: "schedule",
		Action:   "締切前のコースを選択してください。",
	}
}

// NewDuplicateCourseError は同一日付のコース重複エラーを生成する。
func NewDuplicateCourseError(date string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateCourse,
		Message:  fmt.Sprintf("この日付のコースは既に存在します: %s", date),
		Category: "schedule",
		Action:   "既存のコースを編集するか、別の日付を指定してください。",
	}
}

// NewDuplicateBookingError は重複予約エラーを生成する。
func NewDuplicateBookingError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateBooking,
		Message:  "この生徒は既にこのコースに登録されています。",
		Category: "schedule",
		Action:   "コースの受講生徒一覧を確認してください。",
	}
}

// NewInvalidDateError は無効な日付エラーを生成する。
func NewInvalidDateError(date string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("無効な日付です: %s", date),
		Category: "validation",
		Action:   "日付は YYYY-MM-DD 形式で指定してください。",
	}
}

// NewEmptyNameError は名前未入力エラーを生成する。
func NewEmptyNameError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyName,
		Message:  "名前が入力されていません。",
		Category: "validation",
		Action:   "名前を入力してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
