package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/lessonbook/internal/model"
)

// PostgresCategoryRepo はPostgreSQLを使用したコースカテゴリリポジトリ。
type PostgresCategoryRepo struct {
	db *sql.DB
}

// NewPostgresCategoryRepo はPostgresCategoryRepoを生成する。
func NewPostgresCategoryRepo(db *sql.DB) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{db: db}
}

// ListByOwner はオーナーのカテゴリ一覧を名前順で返す。
func (r *PostgresCategoryRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.CourseCategory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, name, created_at
		 FROM course_categories
		 WHERE owner_id = $1
		 ORDER BY name`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*model.CourseCategory
	for rows.Next() {
		c := &model.CourseCategory{}
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}

	return categories, nil
}

// FindByID は指定IDのカテゴリを取得する。見つからない場合はnilを返す。
func (r *PostgresCategoryRepo) FindByID(ctx context.Context, id string) (*model.CourseCategory, error) {
	c := &model.CourseCategory{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, created_at FROM course_categories WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.OwnerID, &c.Name, &c.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find category: %w", err)
	}

	return c, nil
}

// Create はカテゴリを作成する。
func (r *PostgresCategoryRepo) Create(ctx context.Context, category *model.CourseCategory) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO course_categories (id, owner_id, name, created_at)
		 VALUES ($1, $2, $3, $4)`,
		category.ID, category.OwnerID, category.Name, category.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのカテゴリを削除する。
func (r *PostgresCategoryRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM course_categories WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CategoryRepository = (*PostgresCategoryRepo)(nil)
