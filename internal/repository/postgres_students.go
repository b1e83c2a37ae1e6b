package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jpch89/the5fire-Django/internal/domain"
)

// PostgresStudentsRepository 学员 Repository（students 表）
type PostgresStudentsRepository struct {
	db *sql.DB
}

func NewPostgresStudentsRepository(db *sql.DB) *PostgresStudentsRepository {
	return &PostgresStudentsRepository{db: db}
}

var _ StudentsRepository = (*PostgresStudentsRepository)(nil)

func (r *PostgresStudentsRepository) CreateStudent(ctx context.Context, s *domain.Student) (int64, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO students (name, sex, profession, email, qq, phone, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_time`,
		s.Name, int(s.Sex), s.Profession, s.Email, s.QQ, s.Phone, int(s.Status),
	).Scan(&s.ID, &s.CreatedTime)
	if err != nil {
		return 0, fmt.Errorf("failed to create student: %w", err)
	}
	return s.ID, nil
}

func (r *PostgresStudentsRepository) ListStudents(ctx context.Context, filter StudentsFilter) ([]*domain.Student, error) {
	query := `SELECT id, name, sex, profession, email, qq, phone, status, created_time FROM students`
	var args []any
	if filter.Name != "" {
		query += ` WHERE name = $1`
		args = append(args, filter.Name)
	}
	query += ` ORDER BY id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var out []*domain.Student
	for rows.Next() {
		var s domain.Student
		var sex, status int
		if err := rows.Scan(&s.ID, &s.Name, &sex, &s.Profession, &s.Email, &s.QQ, &s.Phone, &status, &s.CreatedTime); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		s.Sex, s.Status = domain.Sex(sex), domain.StudentStatus(status)
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *PostgresStudentsRepository) CountStudents(ctx context.Context, filter StudentsFilter) (int, error) {
	query := `SELECT COUNT(*) FROM students`
	var args []any
	if filter.Name != "" {
		query += ` WHERE name = $1`
		args = append(args, filter.Name)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	return n, nil
}
