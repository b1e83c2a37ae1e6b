package repository

import (
	"context"
	"errors"
	"math"

	"github.com/jpch89/the5fire-Django/internal/domain"
)

// ErrNotFound 记录不存在，或者不属于当前 owner（两者对调用方不可区分）
var ErrNotFound = errors.New("record not found")

// StudentsFilter 学员查询过滤器
type StudentsFilter struct {
	Name string // 可选，精确匹配
}

// StudentsRepository 学员 Repository 接口（student 没有 owner）
type StudentsRepository interface {
	CreateStudent(ctx context.Context, s *domain.Student) (int64, error)
	// ListStudents 按 id 倒序返回
	ListStudents(ctx context.Context, filter StudentsFilter) ([]*domain.Student, error)
	CountStudents(ctx context.Context, filter StudentsFilter) (int, error)
}

// CategoriesFilter 分类查询过滤器
// OwnerID 为 0 时不按 owner 过滤；是否过滤由 ownership.Policy 决定
type CategoriesFilter struct {
	OwnerID int64
	Search  string  // 可选，name 模糊匹配
	IDs     []int64 // 可选
}

// CategoriesRepository 分类 Repository 接口
type CategoriesRepository interface {
	CreateCategory(ctx context.Context, c *domain.Category) (int64, error)
	// GetCategory ownerID 非 0 时，不属于该 owner 的记录返回 ErrNotFound
	GetCategory(ctx context.Context, ownerID, id int64) (*domain.Category, error)
	// UpdateCategory 按 id + owner_id 更新，owner_id 和 created_time 不会被修改
	UpdateCategory(ctx context.Context, c *domain.Category) error
	ListCategories(ctx context.Context, filter CategoriesFilter, page, size int) ([]*domain.Category, int, error)
}

// TagsFilter 标签查询过滤器
type TagsFilter struct {
	OwnerID int64
	Search  string
	IDs     []int64
}

// TagsRepository 标签 Repository 接口
type TagsRepository interface {
	CreateTag(ctx context.Context, t *domain.Tag) (int64, error)
	GetTag(ctx context.Context, ownerID, id int64) (*domain.Tag, error)
	UpdateTag(ctx context.Context, t *domain.Tag) error
	ListTags(ctx context.Context, filter TagsFilter, page, size int) ([]*domain.Tag, int, error)
}

// PostsFilter 文章查询过滤器
type PostsFilter struct {
	OwnerID    int64
	CategoryID int64  // 可选
	Search     string // 可选，title 或分类名模糊匹配
}

// PostsRepository 文章 Repository 接口；TagIDs 保存在 post_tags
type PostsRepository interface {
	CreatePost(ctx context.Context, p *domain.Post) (int64, error)
	GetPost(ctx context.Context, ownerID, id int64) (*domain.Post, error)
	UpdatePost(ctx context.Context, p *domain.Post) error
	ListPosts(ctx context.Context, filter PostsFilter, page, size int) ([]*domain.Post, int, error)
	CountPosts(ctx context.Context, filter PostsFilter) (int, error)
}

// UsersRepository 后台用户
type UsersRepository interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	// UpsertUser 按 username 插入或更新，返回 id
	UpsertUser(ctx context.Context, u *domain.User) (int64, error)
}

// Repositories 一组 repository，DB 可用时为 Postgres 实现，否则为内存实现
type Repositories struct {
	Students   StudentsRepository
	Categories CategoriesRepository
	Tags       TagsRepository
	Posts      PostsRepository
	Users      UsersRepository
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	// offset = (page-1)*size 不能溢出
	if limit := math.MaxInt32/size + 1; page > limit {
		page = limit
	}
	return page, size
}
