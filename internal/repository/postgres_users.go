package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jpch89/the5fire-Django/internal/domain"
)

// PostgresUsersRepository 后台用户 Repository（users 表）
type PostgresUsersRepository struct {
	db *sql.DB
}

func NewPostgresUsersRepository(db *sql.DB) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db}
}

var _ UsersRepository = (*PostgresUsersRepository)(nil)

const userColumns = `id, username, password_hash, is_staff, is_superuser, created_time`

func (r *PostgresUsersRepository) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresUsersRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *PostgresUsersRepository) UpsertUser(ctx context.Context, u *domain.User) (int64, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash, is_staff, is_superuser)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (username)
		 DO UPDATE SET password_hash = EXCLUDED.password_hash,
		               is_staff = EXCLUDED.is_staff,
		               is_superuser = EXCLUDED.is_superuser
		 RETURNING id, created_time`,
		u.Username, u.PasswordHash, u.IsStaff, u.IsSuperuser,
	).Scan(&u.ID, &u.CreatedTime)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert user: %w", err)
	}
	return u.ID, nil
}

func (r *PostgresUsersRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.IsStaff, &u.IsSuperuser, &u.CreatedTime,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %v: %w", arg, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// NewPostgresRepositories 用同一个连接创建全部 Postgres repository
func NewPostgresRepositories(db *sql.DB) Repositories {
	return Repositories{
		Students:   NewPostgresStudentsRepository(db),
		Categories: NewPostgresCategoriesRepository(db),
		Tags:       NewPostgresTagsRepository(db),
		Posts:      NewPostgresPostsRepository(db),
		Users:      NewPostgresUsersRepository(db),
	}
}
