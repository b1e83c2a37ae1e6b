package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jpch89/the5fire-Django/internal/domain"
)

// MemoryStore DB 未启用时使用的内存实现，同时实现全部 Repository 接口。
type MemoryStore struct {
	mu         sync.RWMutex
	nextID     int64
	students   map[int64]domain.Student
	categories map[int64]domain.Category
	tags       map[int64]domain.Tag
	posts      map[int64]domain.Post
	users      map[int64]domain.User
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		students:   map[int64]domain.Student{},
		categories: map[int64]domain.Category{},
		tags:       map[int64]domain.Tag{},
		posts:      map[int64]domain.Post{},
		users:      map[int64]domain.User{},
		now:        time.Now,
	}
}

// NewMemoryRepositories 所有 repository 共用同一个 MemoryStore
func NewMemoryRepositories() Repositories {
	m := NewMemoryStore()
	return Repositories{Students: m, Categories: m, Tags: m, Posts: m, Users: m}
}

var (
	_ StudentsRepository   = (*MemoryStore)(nil)
	_ CategoriesRepository = (*MemoryStore)(nil)
	_ TagsRepository       = (*MemoryStore)(nil)
	_ PostsRepository      = (*MemoryStore)(nil)
	_ UsersRepository      = (*MemoryStore)(nil)
)

func (m *MemoryStore) allocID() int64 {
	m.nextID++
	return m.nextID
}

// ========== Student ==========

func (m *MemoryStore) CreateStudent(_ context.Context, s *domain.Student) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := *s
	rec.ID = m.allocID()
	rec.CreatedTime = m.now()
	m.students[rec.ID] = rec
	s.ID, s.CreatedTime = rec.ID, rec.CreatedTime
	return rec.ID, nil
}

func (m *MemoryStore) ListStudents(_ context.Context, filter StudentsFilter) ([]*domain.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.Student, 0, len(m.students))
	for _, s := range m.students {
		if filter.Name != "" && s.Name != filter.Name {
			continue
		}
		rec := s
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MemoryStore) CountStudents(ctx context.Context, filter StudentsFilter) (int, error) {
	list, err := m.ListStudents(ctx, filter)
	return len(list), err
}

// ========== Category ==========

func (m *MemoryStore) CreateCategory(_ context.Context, c *domain.Category) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := *c
	rec.ID = m.allocID()
	rec.CreatedTime = m.now()
	m.categories[rec.ID] = rec
	c.ID, c.CreatedTime = rec.ID, rec.CreatedTime
	return rec.ID, nil
}

func (m *MemoryStore) GetCategory(_ context.Context, ownerID, id int64) (*domain.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.categories[id]
	if !ok || (ownerID != 0 && c.OwnerID != ownerID) {
		return nil, fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	return &c, nil
}

func (m *MemoryStore) UpdateCategory(_ context.Context, c *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.categories[c.ID]
	if !ok || cur.OwnerID != c.OwnerID {
		return fmt.Errorf("category %d: %w", c.ID, ErrNotFound)
	}
	cur.Name, cur.Status, cur.IsNav = c.Name, c.Status, c.IsNav
	m.categories[c.ID] = cur
	return nil
}

func (m *MemoryStore) ListCategories(_ context.Context, filter CategoriesFilter, page, size int) ([]*domain.Category, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*domain.Category, 0, len(m.categories))
	for _, c := range m.categories {
		if filter.OwnerID != 0 && c.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Search != "" && !containsFold(c.Name, filter.Search) {
			continue
		}
		if len(filter.IDs) > 0 && !containsID(filter.IDs, c.ID) {
			continue
		}
		rec := c
		all = append(all, &rec)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	items, total := paginate(all, page, size)
	return items, total, nil
}

// ========== Tag ==========

func (m *MemoryStore) CreateTag(_ context.Context, t *domain.Tag) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := *t
	rec.ID = m.allocID()
	rec.CreatedTime = m.now()
	m.tags[rec.ID] = rec
	t.ID, t.CreatedTime = rec.ID, rec.CreatedTime
	return rec.ID, nil
}

func (m *MemoryStore) GetTag(_ context.Context, ownerID, id int64) (*domain.Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tags[id]
	if !ok || (ownerID != 0 && t.OwnerID != ownerID) {
		return nil, fmt.Errorf("tag %d: %w", id, ErrNotFound)
	}
	return &t, nil
}

func (m *MemoryStore) UpdateTag(_ context.Context, t *domain.Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.tags[t.ID]
	if !ok || cur.OwnerID != t.OwnerID {
		return fmt.Errorf("tag %d: %w", t.ID, ErrNotFound)
	}
	cur.Name, cur.Status = t.Name, t.Status
	m.tags[t.ID] = cur
	return nil
}

func (m *MemoryStore) ListTags(_ context.Context, filter TagsFilter, page, size int) ([]*domain.Tag, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*domain.Tag, 0, len(m.tags))
	for _, t := range m.tags {
		if filter.OwnerID != 0 && t.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Search != "" && !containsFold(t.Name, filter.Search) {
			continue
		}
		if len(filter.IDs) > 0 && !containsID(filter.IDs, t.ID) {
			continue
		}
		rec := t
		all = append(all, &rec)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	items, total := paginate(all, page, size)
	return items, total, nil
}

// ========== Post ==========

func (m *MemoryStore) CreatePost(_ context.Context, p *domain.Post) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := *p
	rec.ID = m.allocID()
	rec.CreatedTime = m.now()
	rec.TagIDs = append([]int64(nil), p.TagIDs...)
	m.posts[rec.ID] = rec
	p.ID, p.CreatedTime = rec.ID, rec.CreatedTime
	return rec.ID, nil
}

func (m *MemoryStore) GetPost(_ context.Context, ownerID, id int64) (*domain.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.posts[id]
	if !ok || (ownerID != 0 && p.OwnerID != ownerID) {
		return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	p.TagIDs = append([]int64(nil), p.TagIDs...)
	return &p, nil
}

func (m *MemoryStore) UpdatePost(_ context.Context, p *domain.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.posts[p.ID]
	if !ok || cur.OwnerID != p.OwnerID {
		return fmt.Errorf("post %d: %w", p.ID, ErrNotFound)
	}
	cur.Title, cur.Desc, cur.Content, cur.Status = p.Title, p.Desc, p.Content, p.Status
	cur.CategoryID = p.CategoryID
	cur.TagIDs = append([]int64(nil), p.TagIDs...)
	m.posts[p.ID] = cur
	return nil
}

func (m *MemoryStore) ListPosts(_ context.Context, filter PostsFilter, page, size int) ([]*domain.Post, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.filterPosts(filter)
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	items, total := paginate(all, page, size)
	return items, total, nil
}

func (m *MemoryStore) CountPosts(_ context.Context, filter PostsFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.filterPosts(filter)), nil
}

func (m *MemoryStore) filterPosts(filter PostsFilter) []*domain.Post {
	all := make([]*domain.Post, 0, len(m.posts))
	for _, p := range m.posts {
		if filter.OwnerID != 0 && p.OwnerID != filter.OwnerID {
			continue
		}
		if filter.CategoryID != 0 && p.CategoryID != filter.CategoryID {
			continue
		}
		if filter.Search != "" && !containsFold(p.Title, filter.Search) &&
			!containsFold(m.categories[p.CategoryID].Name, filter.Search) {
			continue
		}
		rec := p
		rec.TagIDs = append([]int64(nil), p.TagIDs...)
		all = append(all, &rec)
	}
	return all
}

// ========== User ==========

func (m *MemoryStore) GetUser(_ context.Context, id int64) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return &u, nil
}

func (m *MemoryStore) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username {
			rec := u
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
}

func (m *MemoryStore) UpsertUser(_ context.Context, u *domain.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, cur := range m.users {
		if cur.Username == u.Username {
			cur.PasswordHash, cur.IsStaff, cur.IsSuperuser = u.PasswordHash, u.IsStaff, u.IsSuperuser
			m.users[id] = cur
			u.ID, u.CreatedTime = id, cur.CreatedTime
			return id, nil
		}
	}
	rec := *u
	rec.ID = m.allocID()
	rec.CreatedTime = m.now()
	m.users[rec.ID] = rec
	u.ID, u.CreatedTime = rec.ID, rec.CreatedTime
	return rec.ID, nil
}

func paginate[T any](all []T, page, size int) ([]T, int) {
	page, size = normalizePage(page, size)
	total := len(all)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return all[start:end], total
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
