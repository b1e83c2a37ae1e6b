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

// PostgresPostsRepository 文章 Repository（posts + post_tags 表）
type PostgresPostsRepository struct {
	db *sql.DB
}

func NewPostgresPostsRepository(db *sql.DB) *PostgresPostsRepository {
	return &PostgresPostsRepository{db: db}
}

var _ PostsRepository = (*PostgresPostsRepository)(nil)

const postColumns = `p.id, p.title, p."desc", p.content, p.status, p.category_id, p.owner_id, p.created_time,
	ARRAY(SELECT pt.tag_id FROM post_tags pt WHERE pt.post_id = p.id ORDER BY pt.tag_id)`

func (r *PostgresPostsRepository) CreatePost(ctx context.Context, p *domain.Post) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO posts (title, "desc", content, status, category_id, owner_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_time`,
		p.Title, p.Desc, p.Content, int(p.Status), p.CategoryID, p.OwnerID,
	).Scan(&p.ID, &p.CreatedTime)
	if err != nil {
		return 0, fmt.Errorf("failed to create post: %w", err)
	}

	if err := replacePostTags(ctx, tx, p.ID, p.TagIDs); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit post: %w", err)
	}
	return p.ID, nil
}

func (r *PostgresPostsRepository) GetPost(ctx context.Context, ownerID, id int64) (*domain.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts p WHERE p.id = $1`
	args := []any{id}
	if ownerID != 0 {
		query += ` AND p.owner_id = $2`
		args = append(args, ownerID)
	}

	p, err := scanPost(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return p, nil
}

func (r *PostgresPostsRepository) UpdatePost(ctx context.Context, p *domain.Post) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE posts SET title = $1, "desc" = $2, content = $3, status = $4, category_id = $5
		 WHERE id = $6 AND owner_id = $7`,
		p.Title, p.Desc, p.Content, int(p.Status), p.CategoryID, p.ID, p.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	if err := checkAffected(res, "post", p.ID); err != nil {
		return err
	}

	if err := replacePostTags(ctx, tx, p.ID, p.TagIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit post: %w", err)
	}
	return nil
}

func (r *PostgresPostsRepository) ListPosts(ctx context.Context, filter PostsFilter, page, size int) ([]*domain.Post, int, error) {
	page, size = normalizePage(page, size)
	whereClause, args := postsWhere(filter)

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts p LEFT JOIN categories c ON c.id = p.category_id`+whereClause, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	args = append(args, size, (page-1)*size)
	query := fmt.Sprintf(
		`SELECT %s FROM posts p LEFT JOIN categories c ON c.id = p.category_id%s ORDER BY p.id DESC LIMIT $%d OFFSET $%d`,
		postColumns, whereClause, len(args)-1, len(args),
	)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan post: %w", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *PostgresPostsRepository) CountPosts(ctx context.Context, filter PostsFilter) (int, error) {
	whereClause, args := postsWhere(filter)

	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts p LEFT JOIN categories c ON c.id = p.category_id`+whereClause, args...,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return n, nil
}

func postsWhere(filter PostsFilter) (string, []any) {
	var where []string
	var args []any
	if filter.OwnerID != 0 {
		args = append(args, filter.OwnerID)
		where = append(where, fmt.Sprintf("p.owner_id = $%d", len(args)))
	}
	if filter.CategoryID != 0 {
		args = append(args, filter.CategoryID)
		where = append(where, fmt.Sprintf("p.category_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(p.title ILIKE $%d OR c.name ILIKE $%d)", len(args), len(args)))
	}
	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func replacePostTags(ctx context.Context, tx *sql.Tx, postID int64, tagIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = $1`, postID); err != nil {
		return fmt.Errorf("failed to clear post tags: %w", err)
	}
	if len(tagIDs) == 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO post_tags (post_id, tag_id) SELECT $1, unnest($2::bigint[])`,
		postID, pq.Array(tagIDs),
	); err != nil {
		return fmt.Errorf("failed to save post tags: %w", err)
	}
	return nil
}

func scanPost(row rowScanner) (*domain.Post, error) {
	var p domain.Post
	var status int
	var tagIDs pq.Int64Array
	if err := row.Scan(&p.ID, &p.Title, &p.Desc, &p.Content, &status, &p.CategoryID, &p.OwnerID, &p.CreatedTime, &tagIDs); err != nil {
		return nil, err
	}
	p.Status = domain.Status(status)
	p.TagIDs = []int64(tagIDs)
	return &p, nil
}
