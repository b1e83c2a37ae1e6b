package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jpch89/the5fire-Django/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestPostgresStudents_CreateAndFilter(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresStudentsRepository(db)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO students`).
		WithArgs("tuanzi", 1, "coder", "tuanzi@example.com", int64(666), "2333", 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_time"}).AddRow(1, now))

	s := &domain.Student{Name: "tuanzi", Sex: domain.SexMale, Profession: "coder", Email: "tuanzi@example.com", QQ: 666, Phone: "2333"}
	id, err := repo.CreateStudent(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, now, s.CreatedTime)

	mock.ExpectQuery(`SELECT id, name, sex, profession, email, qq, phone, status, created_time FROM students WHERE name = \$1 ORDER BY id DESC`).
		WithArgs("tuanzi").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "sex", "profession", "email", "qq", "phone", "status", "created_time"}).
			AddRow(1, "tuanzi", 1, "coder", "tuanzi@example.com", 666, "2333", 0, now))

	list, err := repo.ListStudents(ctx, StudentsFilter{Name: "tuanzi"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.SexMale, list[0].Sex)
	assert.Equal(t, int64(666), list[0].QQ)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM students WHERE name = \$1`).
		WithArgs("tuanzi").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	n, err := repo.CountStudents(ctx, StudentsFilter{Name: "tuanzi"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCategories_ListScopedToOwner(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresCategoriesRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM categories WHERE owner_id = \$1 AND name ILIKE \$2`).
		WithArgs(int64(7), "%go%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`FROM categories WHERE owner_id = \$1 AND name ILIKE \$2 ORDER BY id DESC LIMIT \$3 OFFSET \$4`).
		WithArgs(int64(7), "%go%", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status", "is_nav", "owner_id", "created_time"}).
			AddRow(3, "golang", 1, true, 7, now))

	list, total, err := repo.ListCategories(context.Background(), CategoriesFilter{OwnerID: 7, Search: "go"}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, int64(7), list[0].OwnerID)
	assert.True(t, list[0].IsNav)
	assert.Equal(t, domain.StatusNormal, list[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCategories_GetOtherOwnerIsNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresCategoriesRepository(db)

	mock.ExpectQuery(`FROM categories WHERE id = \$1 AND owner_id = \$2`).
		WithArgs(int64(3), int64(8)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetCategory(context.Background(), 8, 3)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCategories_UpdateNoRowsIsNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresCategoriesRepository(db)

	mock.ExpectExec(`UPDATE categories SET name = \$1, status = \$2, is_nav = \$3`).
		WithArgs("x", 1, false, int64(3), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateCategory(context.Background(), &domain.Category{ID: 3, Name: "x", Status: domain.StatusNormal, OwnerID: 8})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTags_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresTagsRepository(db)

	mock.ExpectQuery(`INSERT INTO tags`).
		WithArgs("go", 1, int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_time"}).AddRow(5, time.Now()))

	id, err := repo.CreateTag(context.Background(), &domain.Tag{Name: "go", Status: domain.StatusNormal, OwnerID: 7})
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPosts_CreateWritesTags(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresPostsRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO posts`).
		WithArgs("hello", "", "body", 1, int64(3), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_time"}).AddRow(11, time.Now()))
	mock.ExpectExec(`DELETE FROM post_tags WHERE post_id = \$1`).
		WithArgs(int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO post_tags`).
		WithArgs(int64(11), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	p := &domain.Post{Title: "hello", Content: "body", Status: domain.StatusNormal, CategoryID: 3, OwnerID: 7, TagIDs: []int64{1, 2}}
	id, err := repo.CreatePost(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPosts_CreateRollsBackOnTagError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresPostsRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO posts`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_time"}).AddRow(11, time.Now()))
	mock.ExpectExec(`DELETE FROM post_tags`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO post_tags`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := repo.CreatePost(context.Background(), &domain.Post{Title: "t", CategoryID: 3, OwnerID: 7, TagIDs: []int64{1}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPosts_ListByCategory(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresPostsRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM posts p LEFT JOIN categories c ON c.id = p.category_id WHERE p.owner_id = \$1 AND p.category_id = \$2`).
		WithArgs(int64(7), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`ORDER BY p.id DESC LIMIT \$3 OFFSET \$4`).
		WithArgs(int64(7), int64(3), 10, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "desc", "content", "status", "category_id", "owner_id", "created_time", "tags"}).
			AddRow(11, "hello", "", "body", 2, 3, 7, now, []byte("{1,2}")))

	list, total, err := repo.ListPosts(context.Background(), PostsFilter{OwnerID: 7, CategoryID: 3}, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, domain.StatusDraft, list[0].Status)
	assert.Equal(t, []int64{1, 2}, list[0].TagIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUsers_GetByUsernameNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresUsersRepository(db)

	mock.ExpectQuery(`FROM users WHERE username = \$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUserByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
