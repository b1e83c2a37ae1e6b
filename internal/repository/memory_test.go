package repository

import (
	"context"
	"math"
	"testing"

	"github.com/jpch89/the5fire-Django/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_StudentFilterByName(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.CreateStudent(ctx, &domain.Student{Name: "tuanzi", Sex: domain.SexMale, QQ: 666})
	require.NoError(t, err)
	_, err = m.CreateStudent(ctx, &domain.Student{Name: "datuanzi", Sex: domain.SexMale, QQ: 888})
	require.NoError(t, err)

	n, err := m.CountStudents(ctx, StudentsFilter{Name: "tuanzi"})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "exactly one record named tuanzi")

	all, err := m.ListStudents(ctx, StudentsFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "datuanzi", all[0].Name, "newest first")
	assert.False(t, all[0].CreatedTime.IsZero())
}

func TestMemoryStore_CategoryOwnerScope(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	a := &domain.Category{Name: "X", Status: domain.StatusNormal, OwnerID: 1}
	_, err := m.CreateCategory(ctx, a)
	require.NoError(t, err)
	_, err = m.CreateCategory(ctx, &domain.Category{Name: "Y", OwnerID: 2})
	require.NoError(t, err)

	list, total, err := m.ListCategories(ctx, CategoriesFilter{OwnerID: 2}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Y", list[0].Name)

	_, err = m.GetCategory(ctx, 2, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := m.GetCategory(ctx, 1, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "X", got.Name)

	// 其他 owner 不能更新
	err = m.UpdateCategory(ctx, &domain.Category{ID: a.ID, Name: "hijack", OwnerID: 2})
	assert.ErrorIs(t, err, ErrNotFound)

	err = m.UpdateCategory(ctx, &domain.Category{ID: a.ID, Name: "X2", IsNav: true, OwnerID: 1})
	require.NoError(t, err)
	got, _ = m.GetCategory(ctx, 1, a.ID)
	assert.Equal(t, "X2", got.Name)
	assert.True(t, got.IsNav)
	assert.Equal(t, a.CreatedTime, got.CreatedTime)
}

func TestMemoryStore_PageBeyondEnd(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	_, err := m.CreateCategory(ctx, &domain.Category{Name: "Go", OwnerID: 1})
	require.NoError(t, err)

	for _, page := range []int{2, math.MaxInt64 / 10, math.MaxInt64} {
		items, total, err := m.ListCategories(ctx, CategoriesFilter{OwnerID: 1}, page, 20)
		require.NoError(t, err)
		assert.Empty(t, items)
		assert.Equal(t, 1, total)
	}
}

func TestNormalizePage_OffsetFitsInt32(t *testing.T) {
	page, size := normalizePage(math.MaxInt64, 100)
	assert.Equal(t, 100, size)
	assert.LessOrEqual(t, (page-1)*size, math.MaxInt32)
	assert.Positive(t, (page-1)*size)
}

func TestMemoryStore_PostsFilterAndCount(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	c1 := &domain.Category{Name: "golang", OwnerID: 1}
	c2 := &domain.Category{Name: "python", OwnerID: 1}
	_, _ = m.CreateCategory(ctx, c1)
	_, _ = m.CreateCategory(ctx, c2)

	for _, p := range []*domain.Post{
		{Title: "channels", CategoryID: c1.ID, OwnerID: 1, TagIDs: []int64{9}},
		{Title: "goroutines", CategoryID: c1.ID, OwnerID: 1},
		{Title: "django admin", CategoryID: c2.ID, OwnerID: 1},
		{Title: "someone else", CategoryID: c1.ID, OwnerID: 2},
	} {
		_, err := m.CreatePost(ctx, p)
		require.NoError(t, err)
	}

	n, err := m.CountPosts(ctx, PostsFilter{OwnerID: 1, CategoryID: c1.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, total, err := m.ListPosts(ctx, PostsFilter{OwnerID: 1, Search: "PYTHON"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "django admin", list[0].Title)

	page2, total, err := m.ListPosts(ctx, PostsFilter{OwnerID: 1}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page2, 1)
	assert.Equal(t, "channels", page2[0].Title)
	assert.Equal(t, []int64{9}, page2[0].TagIDs)
}

func TestMemoryStore_UpsertUser(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	id, err := m.UpsertUser(ctx, &domain.User{Username: "admin", PasswordHash: "h1", IsStaff: true})
	require.NoError(t, err)

	id2, err := m.UpsertUser(ctx, &domain.User{Username: "admin", PasswordHash: "h2", IsStaff: true})
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	u, err := m.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "h2", u.PasswordHash)

	_, err = m.GetUser(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}
