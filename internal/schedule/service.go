// Package schedule は生徒・カテゴリ・コース・予約管理のドメインロジックを提供する。
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/lessonbook/internal/model"
	"github.com/hitoshi/lessonbook/internal/repository"
)

// dateLayout はコース日付の表現形式。
const dateLayout = "2006-01-02"

// BatchResult はコース一括更新の結果。
type BatchResult struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Skipped []string `json:"skipped"` // 予約があり削除できなかった日付
}

// Service はスケジュール管理のサービス層。
// すべての操作はオーナーのユーザーIDでスコープされ、
// 他ユーザーの行は存在しないものとして扱う。
type Service struct {
	studentRepo  repository.StudentRepository
	categoryRepo repository.CategoryRepository
	courseRepo   repository.CourseRepository
	bookingRepo  repository.BookingRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	studentRepo repository.StudentRepository,
	categoryRepo repository.CategoryRepository,
	courseRepo repository.CourseRepository,
	bookingRepo repository.BookingRepository,
) *Service {
	return &Service{
		studentRepo:  studentRepo,
		categoryRepo: categoryRepo,
		courseRepo:   courseRepo,
		bookingRepo:  bookingRepo,
	}
}

// --- 生徒 ---

// ListStudents はオーナーの生徒一覧を返す。
func (s *Service) ListStudents(ctx context.Context, ownerID string) ([]*model.Student, error) {
	students, err := s.studentRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("生徒一覧の取得に失敗しました: %w", err)
	}
	return students, nil
}

// CreateStudent は生徒を作成する。名前は必須。
func (s *Service) CreateStudent(ctx context.Context, ownerID, name, ig string) (*model.Student, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.NewEmptyNameError()
	}

	now := time.Now()
	student := &model.Student{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      name,
		IG:        ig,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.studentRepo.Create(ctx, student); err != nil {
		return nil, fmt.Errorf("生徒の作成に失敗しました: %w", err)
	}

	return student, nil
}

// UpdateStudent は生徒の名前とIGを更新する。nil のフィールドは変更しない。
func (s *Service) UpdateStudent(ctx context.Context, ownerID, studentID string, name, ig *string) (*model.Student, error) {
	student, err := s.findOwnedStudent(ctx, ownerID, studentID)
	if err != nil {
		return nil, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, model.NewEmptyNameError()
		}
		student.Name = trimmed
	}
	if ig != nil {
		student.IG = *ig
	}
	student.UpdatedAt = time.Now()

	if err := s.studentRepo.Update(ctx, student); err != nil {
		return nil, fmt.Errorf("生徒の更新に失敗しました: %w", err)
	}

	return student, nil
}

// ToggleStudent は生徒の在籍状態を反転する。
func (s *Service) ToggleStudent(ctx context.Context, ownerID, studentID string) (*model.Student, error) {
	student, err := s.findOwnedStudent(ctx, ownerID, studentID)
	if err != nil {
		return nil, err
	}

	student.Active = !student.Active
	student.UpdatedAt = time.Now()

	if err := s.studentRepo.Update(ctx, student); err != nil {
		return nil, fmt.Errorf("生徒の更新に失敗しました: %w", err)
	}

	return student, nil
}

// findOwnedStudent はオーナー所有の生徒を取得する。
// 他ユーザーの生徒は存在しないものとして扱う。
func (s *Service) findOwnedStudent(ctx context.Context, ownerID, studentID string) (*model.Student, error) {
	student, err := s.studentRepo.FindByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("生徒の取得に失敗しました: %w", err)
	}
	if student == nil || student.OwnerID != ownerID {
		return nil, model.NewStudentNotFoundError(studentID)
	}
	return student, nil
}

// --- カテゴリ ---

// ListCategories はオーナーのカテゴリ一覧を返す。
func (s *Service) ListCategories(ctx context.Context, ownerID string) ([]*model.CourseCategory, error) {
	categories, err := s.categoryRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
	}
	return categories, nil
}

// CreateCategory はカテゴリを作成する。名前は必須。
func (s *Service) CreateCategory(ctx context.Context, ownerID, name string) (*model.CourseCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.NewEmptyNameError()
	}

	category := &model.CourseCategory{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: time.Now(),
	}

	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("カテゴリの作成に失敗しました: %w", err)
	}

	return category, nil
}

// DeleteCategory はカテゴリを削除する。
// 参照しているコースのcategory_idはNULLになる（ON DELETE SET NULL）。
func (s *Service) DeleteCategory(ctx context.Context, ownerID, categoryID string) error {
	category, err := s.categoryRepo.FindByID(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("カテゴリの取得に失敗しました: %w", err)
	}
	if category == nil || category.OwnerID != ownerID {
		return model.NewCategoryNotFoundError(categoryID)
	}

	if err := s.categoryRepo.DeleteByID(ctx, categoryID); err != nil {
		return fmt.Errorf("カテゴリの削除に失敗しました: %w", err)
	}

	return nil
}

// --- コース ---

// ListCourses はオーナーのコース一覧を予約済み生徒ID付きで返す。
func (s *Service) ListCourses(ctx context.Context, ownerID string) ([]*model.CourseWithStudents, error) {
	courses, err := s.courseRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("コース一覧の取得に失敗しました: %w", err)
	}

	results := make([]*model.CourseWithStudents, len(courses))
	for i, course := range courses {
		studentIDs, err := s.bookingRepo.ListStudentIDsByCourse(ctx, course.ID)
		if err != nil {
			return nil, fmt.Errorf("予約一覧の取得に失敗しました: %w", err)
		}
		if studentIDs == nil {
			studentIDs = []string{}
		}
		results[i] = &model.CourseWithStudents{
			Course:     *course,
			StudentIDs: studentIDs,
		}
	}

	return results, nil
}

// CreateCourse はコースを作成する。日付はYYYY-MM-DD形式で、オーナーごとに一意。
func (s *Service) CreateCourse(ctx context.Context, ownerID, date, name, categoryID string) (*model.Course, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}

	if categoryID != "" {
		category, err := s.categoryRepo.FindByID(ctx, categoryID)
		if err != nil {
			return nil, fmt.Errorf("カテゴリの取得に失敗しました: %w", err)
		}
		if category == nil || category.OwnerID != ownerID {
			return nil, model.NewCategoryNotFoundError(categoryID)
		}
	}

	now := time.Now()
	course := &model.Course{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		CategoryID: categoryID,
		Date:       date,
		Name:       strings.TrimSpace(name),
		Closed:     false,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.courseRepo.Create(ctx, course)
	if errors.Is(err, repository.ErrDuplicateCourse) {
		return nil, model.NewDuplicateCourseError(date)
	}
	if err != nil {
		return nil, fmt.Errorf("コースの作成に失敗しました: %w", err)
	}

	return course, nil
}

// CloseCourse はコースを締め切る。締め切り済みのコースには予約できなくなる。
func (s *Service) CloseCourse(ctx context.Context, ownerID, courseID string) (*model.Course, error) {
	course, err := s.findOwnedCourse(ctx, ownerID, courseID)
	if err != nil {
		return nil, err
	}

	course.Closed = true
	course.UpdatedAt = time.Now()

	if err := s.courseRepo.Update(ctx, course); err != nil {
		return nil, fmt.Errorf("コースの更新に失敗しました: %w", err)
	}

	return course, nil
}

// BatchUpdateCourses は日付の追加と削除を一括で行う。
// 追加: 既にコースが存在する日付はスキップする。
// 削除: 予約が存在する日付はスキップし、Skippedとして報告する。
func (s *Service) BatchUpdateCourses(ctx context.Context, ownerID string, datesToAdd, datesToRemove []string) (*BatchResult, error) {
	result := &BatchResult{
		Added:   []string{},
		Removed: []string{},
		Skipped: []string{},
	}

	for _, date := range datesToAdd {
		if err := validateDate(date); err != nil {
			return nil, err
		}

		now := time.Now()
		course := &model.Course{
			ID:        uuid.New().String(),
			OwnerID:   ownerID,
			Date:      date,
			CreatedAt: now,
			UpdatedAt: now,
		}

		err := s.courseRepo.Create(ctx, course)
		if errors.Is(err, repository.ErrDuplicateCourse) {
			// 既存の日付はスキップ
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("コースの作成に失敗しました: %w", err)
		}
		result.Added = append(result.Added, date)
	}

	for _, date := range datesToRemove {
		if err := validateDate(date); err != nil {
			return nil, err
		}

		course, err := s.courseRepo.FindByOwnerAndDate(ctx, ownerID, date)
		if err != nil {
			return nil, fmt.Errorf("コースの取得に失敗しました: %w", err)
		}
		if course == nil {
			continue
		}

		count, err := s.bookingRepo.CountByCourse(ctx, course.ID)
		if err != nil {
			return nil, fmt.Errorf("予約件数の取得に失敗しました: %w", err)
		}
		if count > 0 {
			// 予約がある日付は削除しない
			result.Skipped = append(result.Skipped, date)
			continue
		}

		if err := s.courseRepo.DeleteByID(ctx, course.ID); err != nil {
			return nil, fmt.Errorf("コースの削除に失敗しました: %w", err)
		}
		result.Removed = append(result.Removed, date)
	}

	return result, nil
}

// findOwnedCourse はオーナー所有のコースを取得する。
func (s *Service) findOwnedCourse(ctx context.Context, ownerID, courseID string) (*model.Course, error) {
	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("コースの取得に失敗しました: %w", err)
	}
	if course == nil || course.OwnerID != ownerID {
		return nil, model.NewCourseNotFoundError(courseID)
	}
	return course, nil
}

// --- 予約 ---

// AddBookings は指定コースに生徒の予約を追加する。
// 締め切り済みコースへの追加は拒否する。既に予約済みの生徒はスキップする。
func (s *Service) AddBookings(ctx context.Context, ownerID, courseID string, studentIDs []string) ([]string, error) {
	course, err := s.findOwnedCourse(ctx, ownerID, courseID)
	if err != nil {
		return nil, err
	}
	if course.Closed {
		return nil, model.NewCourseClosedError(course.Date)
	}

	added := []string{}
	for _, studentID := range studentIDs {
		if _, err := s.findOwnedStudent(ctx, ownerID, studentID); err != nil {
			return nil, err
		}

		booking := &model.Booking{
			ID:        uuid.New().String(),
			CourseID:  courseID,
			StudentID: studentID,
			CreatedAt: time.Now(),
		}

		err := s.bookingRepo.Create(ctx, booking)
		if errors.Is(err, repository.ErrDuplicateBooking) {
			// 予約済みはスキップ（冪等）
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("予約の作成に失敗しました: %w", err)
		}
		added = append(added, studentID)
	}

	return added, nil
}

// RemoveBooking は指定コースから生徒の予約を取り消す。
func (s *Service) RemoveBooking(ctx context.Context, ownerID, courseID, studentID string) error {
	if _, err := s.findOwnedCourse(ctx, ownerID, courseID); err != nil {
		return err
	}

	if err := s.bookingRepo.Delete(ctx, courseID, studentID); err != nil {
		return fmt.Errorf("予約の削除に失敗しました: %w", err)
	}

	return nil
}

// validateDate は日付がYYYY-MM-DD形式であることを検証する。
func validateDate(date string) error {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return model.NewInvalidDateError(date)
	}
	return nil
}
