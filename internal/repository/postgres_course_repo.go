package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/lessonbook/internal/model"
)

// PostgresCourseRepo はPostgreSQLを使用したコースリポジトリ。
type PostgresCourseRepo struct {
	db *sql.DB
}

// NewPostgresCourseRepo はPostgresCourseRepoを生成する。
func NewPostgresCourseRepo(db *sql.DB) *PostgresCourseRepo {
	return &PostgresCourseRepo{db: db}
}

// scanCourse は1行をmodel.Courseにスキャンする。
// category_idはNULL許容のためsql.NullStringを経由する。
func scanCourse(row interface {
	Scan(dest ...interface{}) error
}) (*model.Course, error) {
	c := &model.Course{}
	var categoryID sql.NullString
	err := row.Scan(&c.ID, &c.OwnerID, &categoryID, &c.Date, &c.Name, &c.Closed, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if categoryID.Valid {
		c.CategoryID = categoryID.String
	}
	return c, nil
}

const courseColumns = `id, owner_id, category_id, to_char(date, 'YYYY-MM-DD'), name, closed, created_at, updated_at`

// ListByOwner はオーナーのコース一覧を日付順で返す。
func (r *PostgresCourseRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Course, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+courseColumns+`
		 FROM courses
		 WHERE owner_id = $1
		 ORDER BY date`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []*model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate courses: %w", err)
	}

	return courses, nil
}

// FindByID は指定IDのコースを取得する。見つからない場合はnilを返す。
func (r *PostgresCourseRepo) FindByID(ctx context.Context, id string) (*model.Course, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`,
		id,
	)
	c, err := scanCourse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find course: %w", err)
	}
	return c, nil
}

// FindByOwnerAndDate はオーナーと日付でコースを検索する。見つからない場合はnilを返す。
func (r *PostgresCourseRepo) FindByOwnerAndDate(ctx context.Context, ownerID, date string) (*model.Course, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE owner_id = $1 AND date = $2`,
		ownerID, date,
	)
	c, err := scanCourse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find course by date: %w", err)
	}
	return c, nil
}

// Create はコースを作成する。(owner_id, date) の一意制約に違反した場合は
// ErrDuplicateCourseを返す。
func (r *PostgresCourseRepo) Create(ctx context.Context, course *model.Course) error {
	var categoryID interface{}
	if course.CategoryID != "" {
		categoryID = course.CategoryID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO courses (id, owner_id, category_id, date, name, closed, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		course.ID, course.OwnerID, categoryID, course.Date, course.Name, course.Closed,
		course.CreatedAt, course.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCourse
		}
		return fmt.Errorf("failed to insert course: %w", err)
	}
	return nil
}

// Update はコース情報（name, category_id, closed）を更新する。
func (r *PostgresCourseRepo) Update(ctx context.Context, course *model.Course) error {
	var categoryID interface{}
	if course.CategoryID != "" {
		categoryID = course.CategoryID
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE courses SET category_id = $2, name = $3, closed = $4, updated_at = $5
		 WHERE id = $1`,
		course.ID, categoryID, course.Name, course.Closed, course.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update course: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("course not found: %s", course.ID)
	}
	return nil
}

// DeleteByID は指定IDのコースを削除する。予約はCASCADE削除される。
func (r *PostgresCourseRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM courses WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete course: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CourseRepository = (*PostgresCourseRepo)(nil)
