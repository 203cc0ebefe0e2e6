package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/lessonbook/internal/model"
)

// PostgresStudentRepo はPostgreSQLを使用した生徒リポジトリ。
type PostgresStudentRepo struct {
	db *sql.DB
}

// NewPostgresStudentRepo はPostgresStudentRepoを生成する。
func NewPostgresStudentRepo(db *sql.DB) *PostgresStudentRepo {
	return &PostgresStudentRepo{db: db}
}

// ListByOwner はオーナーの生徒一覧を名前順で返す。
func (r *PostgresStudentRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Student, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, name, ig, active, created_at, updated_at
		 FROM students
		 WHERE owner_id = $1
		 ORDER BY name`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var students []*model.Student
	for rows.Next() {
		s := &model.Student{}
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Name, &s.IG, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate students: %w", err)
	}

	return students, nil
}

// FindByID は指定IDの生徒を取得する。見つからない場合はnilを返す。
func (r *PostgresStudentRepo) FindByID(ctx context.Context, id string) (*model.Student, error) {
	s := &model.Student{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, ig, active, created_at, updated_at
		 FROM students WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.OwnerID, &s.Name, &s.IG, &s.Active, &s.CreatedAt, &s.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find student: %w", err)
	}

	return s, nil
}

// Create は生徒を作成する。
func (r *PostgresStudentRepo) Create(ctx context.Context, student *model.Student) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO students (id, owner_id, name, ig, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		student.ID, student.OwnerID, student.Name, student.IG, student.Active,
		student.CreatedAt, student.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert student: %w", err)
	}
	return nil
}

// Update は生徒情報（name, ig, active）を更新する。
func (r *PostgresStudentRepo) Update(ctx context.Context, student *model.Student) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE students SET name = $2, ig = $3, active = $4, updated_at = $5
		 WHERE id = $1`,
		student.ID, student.Name, student.IG, student.Active, student.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update student: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("student not found: %s", student.ID)
	}
	return nil
}

// compile-time interface check
var _ StudentRepository = (*PostgresStudentRepo)(nil)
