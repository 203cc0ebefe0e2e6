package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/lessonbook/internal/model"
)

// PostgresBookingRepo はPostgreSQLを使用した予約リポジトリ。
type PostgresBookingRepo struct {
	db *sql.DB
}

// NewPostgresBookingRepo はPostgresBookingRepoを生成する。
func NewPostgresBookingRepo(db *sql.DB) *PostgresBookingRepo {
	return &PostgresBookingRepo{db: db}
}

// ListStudentIDsByCourse は指定コースに予約している生徒のID一覧を返す。
func (r *PostgresBookingRepo) ListStudentIDsByCourse(ctx context.Context, courseID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT student_id FROM bookings WHERE course_id = $1 ORDER BY created_at`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var studentIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		studentIDs = append(studentIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}

	return studentIDs, nil
}

// Create は予約を作成する。(course_id, student_id) の一意制約に違反した場合は
// ErrDuplicateBookingを返す。
func (r *PostgresBookingRepo) Create(ctx context.Context, booking *model.Booking) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bookings (id, course_id, student_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		booking.ID, booking.CourseID, booking.StudentID, booking.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateBooking
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

// Delete は指定コース・生徒の予約を削除する。
func (r *PostgresBookingRepo) Delete(ctx context.Context, courseID, studentID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM bookings WHERE course_id = $1 AND student_id = $2`,
		courseID, studentID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	return nil
}

// CountByCourse は指定コースの予約件数を返す。
func (r *PostgresBookingRepo) CountByCourse(ctx context.Context, courseID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE course_id = $1`,
		courseID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ BookingRepository = (*PostgresBookingRepo)(nil)
