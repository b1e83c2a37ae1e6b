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

// PostgresTagsRepository 标签 Repository（tags 表）
type PostgresTagsRepository struct {
	db *sql.DB
}

func NewPostgresTagsRepository(db *sql.DB) *PostgresTagsRepository {
	return &PostgresTagsRepository{db: db}
}

var _ TagsRepository = (*PostgresTagsRepository)(nil)

func (r *PostgresTagsRepository) CreateTag(ctx context.Context, t *domain.Tag) (int64, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO tags (name, status, owner_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_time`,
		t.Name, int(t.Status), t.OwnerID,
	).Scan(&t.ID, &t.CreatedTime)
	if err != nil {
		return 0, fmt.Errorf("failed to create tag: %w", err)
	}
	return t.ID, nil
}

func (r *PostgresTagsRepository) GetTag(ctx context.Context, ownerID, id int64) (*domain.Tag, error) {
	query := `SELECT id, name, status, owner_id, created_time FROM tags WHERE id = $1`
	args := []any{id}
	if ownerID != 0 {
		query += ` AND owner_id = $2`
		args = append(args, ownerID)
	}

	t, err := scanTag(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tag %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return t, nil
}

func (r *PostgresTagsRepository) UpdateTag(ctx context.Context, t *domain.Tag) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tags SET name = $1, status = $2 WHERE id = $3 AND owner_id = $4`,
		t.Name, int(t.Status), t.ID, t.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update tag: %w", err)
	}
	return checkAffected(res, "tag", t.ID)
}

func (r *PostgresTagsRepository) ListTags(ctx context.Context, filter TagsFilter, page, size int) ([]*domain.Tag, int, error) {
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
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags`+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tags: %w", err)
	}

	args = append(args, size, (page-1)*size)
	query := fmt.Sprintf(
		`SELECT id, name, status, owner_id, created_time FROM tags%s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		whereClause, len(args)-1, len(args),
	)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var out []*domain.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan tag: %w", err)
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func scanTag(row rowScanner) (*domain.Tag, error) {
	var t domain.Tag
	var status int
	if err := row.Scan(&t.ID, &t.Name, &status, &t.OwnerID, &t.CreatedTime); err != nil {
		return nil, err
	}
	t.Status = domain.Status(status)
	return &t, nil
}
