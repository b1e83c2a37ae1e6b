package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jpch89/the5fire-Django/internal/domain"

	"github.com/lib/pq"
)

// PostgresCategoriesRepository 分类 Repository（categories 表）
type PostgresCategoriesRepository struct {
	db *sql.DB
}

func NewPostgresCategoriesRepository(db *sql.DB) *PostgresCategoriesRepository {
	return &PostgresCategoriesRepository{db: db}
}

var _ CategoriesRepository = (*PostgresCategoriesRepository)(nil)

func (r *PostgresCategoriesRepository) CreateCategory(ctx context.Context, c *domain.Category) (int64, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO categories (name, status, is_nav, owner_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_time`,
		c.Name, int(c.Status), c.IsNav, c.OwnerID,
	).Scan(&c.ID, &c.CreatedTime)
	if err != nil {
		return 0, fmt.Errorf("failed to create category: %w", err)
	}
	return c.ID, nil
}

func (r *PostgresCategoriesRepository) GetCategory(ctx context.Context, ownerID, id int64) (*domain.Category, error) {
	query := `SELECT id, name, status, is_nav, owner_id, created_time FROM categories WHERE id = $1`
	args := []any{id}
	if ownerID != 0 {
		query += ` AND owner_id = $2`
		args = append(args, ownerID)
	}

	c, err := scanCategory(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("category %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

func (r *PostgresCategoriesRepository) UpdateCategory(ctx context.Context, c *domain.Category) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = $1, status = $2, is_nav = $3
		 WHERE id = $4 AND owner_id = $5`,
		c.Name, int(c.Status), c.IsNav, c.ID, c.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return checkAffected(res, "category", c.ID)
}

func (r *PostgresCategoriesRepository) ListCategories(ctx context.Context, filter CategoriesFilter, page, size int) ([]*domain.Category, int, error) {
	page, size = normalizePage(page, size)

	var where []string
	var args []any
	if filter.OwnerID != 0 {
		args = append(args, filter.OwnerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if len(filter.IDs) > 0 {
		args = append(args, pq.Array(filter.IDs))
		where = append(where, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count categories: %w", err)
	}

	args = append(args, size, (page-1)*size)
	query := fmt.Sprintf(
		`SELECT id, name, status, is_nav, owner_id, created_time FROM categories%s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		whereClause, len(args)-1, len(args),
	)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []*domain.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// rowScanner *sql.Row 和 *sql.Rows 的共同接口
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (*domain.Category, error) {
	var c domain.Category
	var status int
	if err := row.Scan(&c.ID, &c.Name, &status, &c.IsNav, &c.OwnerID, &c.CreatedTime); err != nil {
		return nil, err
	}
	c.Status = domain.Status(status)
	return &c, nil
}

func checkAffected(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return nil
}
