package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jpch89/the5fire-Django/internal/admin"
	"github.com/jpch89/the5fire-Django/internal/domain"
	"github.com/jpch89/the5fire-Django/internal/forms"
	"github.com/jpch89/the5fire-Django/internal/ownership"
	"github.com/jpch89/the5fire-Django/internal/repository"
	"github.com/jpch89/the5fire-Django/internal/validation"
)

// 选项和内联行一次最多取的数量
const relatedLimit = 1000

// backend 某个模型在存储层上的读写；ownership 由 scope 决定
type backend interface {
	list(ctx context.Context, sc scope, q ListQuery) ([]Record, int, error)
	get(ctx context.Context, sc scope, id int64) (Record, error)
	// validateRefs 引用字段必须指向当前用户可见的对象
	validateRefs(ctx context.Context, sc scope, v validation.Values, errs validation.Errors) error
	create(ctx context.Context, sc scope, v validation.Values) (int64, string, error)
	update(ctx context.Context, sc scope, id int64, v validation.Values) (string, error)
	filterChoices(ctx context.Context, sc scope, name string) ([]Choice, error)
}

// inliner 支持内联子对象的 backend
type inliner interface {
	inlineRows(ctx context.Context, sc scope, parentID int64, in admin.Inline) ([]Record, error)
	inlineExists(ctx context.Context, sc scope, parentID int64, in admin.Inline, id int64) (bool, error)
	saveInline(ctx context.Context, sc scope, parentID int64, in admin.Inline, id int64, v validation.Values) error
}

func newBackends(repos repository.Repositories) map[string]backend {
	return map[string]backend{
		"blog.category": &categoryBackend{categories: repos.Categories, posts: repos.Posts},
		"blog.tag":      &tagBackend{tags: repos.Tags},
		"blog.post":     &postBackend{posts: repos.Posts, categories: repos.Categories, tags: repos.Tags, users: repos.Users},
	}
}

func errUnknownFilter(name string) error {
	return fmt.Errorf("%w: unknown list filter %q", ErrUnknownModel, name)
}

// ---- category ----

type categoryBackend struct {
	categories repository.CategoriesRepository
	posts      repository.PostsRepository
}

func categoryRecord(c *domain.Category) Record {
	return Record{
		"id":           c.ID,
		"name":         c.Name,
		"status":       int(c.Status),
		"is_nav":       c.IsNav,
		"owner":        c.OwnerID,
		"created_time": c.CreatedTime,
	}
}

func (b *categoryBackend) list(ctx context.Context, sc scope, q ListQuery) ([]Record, int, error) {
	items, total, err := b.categories.ListCategories(ctx, repository.CategoriesFilter{
		OwnerID: sc.owner(),
		Search:  q.Search,
	}, q.Page, q.Size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list categories: %w", err)
	}
	items = ownership.Filter(sc.policy, sc.principalID, items)

	rows := make([]Record, 0, len(items))
	for _, c := range items {
		n, err := b.posts.CountPosts(ctx, repository.PostsFilter{OwnerID: sc.owner(), CategoryID: c.ID})
		if err != nil {
			return nil, 0, fmt.Errorf("failed to count posts of category %d: %w", c.ID, err)
		}
		r := categoryRecord(c)
		r["post_count"] = n
		rows = append(rows, r)
	}
	return rows, total, nil
}

func (b *categoryBackend) load(ctx context.Context, sc scope, id int64) (*domain.Category, error) {
	c, err := b.categories.GetCategory(ctx, sc.owner(), id)
	if err != nil {
		return nil, err
	}
	if !sc.policy.Visible(sc.principalID, c) {
		return nil, ErrNotFound
	}
	return c, nil
}

func (b *categoryBackend) get(ctx context.Context, sc scope, id int64) (Record, error) {
	c, err := b.load(ctx, sc, id)
	if err != nil {
		return nil, err
	}
	return categoryRecord(c), nil
}

func (b *categoryBackend) validateRefs(context.Context, scope, validation.Values, validation.Errors) error {
	return nil
}

func (b *categoryBackend) create(ctx context.Context, sc scope, v validation.Values) (int64, string, error) {
	c := &domain.Category{Status: domain.StatusNormal}
	forms.ApplyCategory(c, v)
	sc.policy.Stamp(sc.principalID, c)
	id, err := b.categories.CreateCategory(ctx, c)
	return id, c.Name, err
}

func (b *categoryBackend) update(ctx context.Context, sc scope, id int64, v validation.Values) (string, error) {
	c, err := b.load(ctx, sc, id)
	if err != nil {
		return "", err
	}
	forms.ApplyCategory(c, v)
	return c.Name, b.categories.UpdateCategory(ctx, c)
}

func (b *categoryBackend) filterChoices(_ context.Context, _ scope, name string) ([]Choice, error) {
	return nil, errUnknownFilter(name)
}

func (b *categoryBackend) inlineRows(ctx context.Context, sc scope, parentID int64, _ admin.Inline) ([]Record, error) {
	posts, _, err := b.posts.ListPosts(ctx, repository.PostsFilter{OwnerID: sc.owner(), CategoryID: parentID}, 1, relatedLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list inline posts: %w", err)
	}
	posts = ownership.Filter(sc.policy, sc.principalID, posts)

	rows := make([]Record, 0, len(posts))
	for _, p := range posts {
		rows = append(rows, postRecord(p))
	}
	return rows, nil
}

func (b *categoryBackend) inlineExists(ctx context.Context, sc scope, parentID int64, _ admin.Inline, id int64) (bool, error) {
	p, err := b.posts.GetPost(ctx, sc.owner(), id)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.CategoryID == parentID && sc.policy.Visible(sc.principalID, p), nil
}

// saveInline 内联文章：分类固定为父对象，owner 与父对象相同
func (b *categoryBackend) saveInline(ctx context.Context, sc scope, parentID int64, _ admin.Inline, id int64, v validation.Values) error {
	if id > 0 {
		p, err := b.posts.GetPost(ctx, sc.owner(), id)
		if err != nil {
			return err
		}
		forms.ApplyPost(p, v)
		p.CategoryID = parentID
		return b.posts.UpdatePost(ctx, p)
	}

	p := &domain.Post{Status: domain.StatusNormal}
	forms.ApplyPost(p, v)
	p.CategoryID = parentID
	sc.policy.Stamp(sc.principalID, p)
	_, err := b.posts.CreatePost(ctx, p)
	return err
}

// ---- tag ----

type tagBackend struct {
	tags repository.TagsRepository
}

func tagRecord(t *domain.Tag) Record {
	return Record{
		"id":           t.ID,
		"name":         t.Name,
		"status":       int(t.Status),
		"owner":        t.OwnerID,
		"created_time": t.CreatedTime,
	}
}

func (b *tagBackend) list(ctx context.Context, sc scope, q ListQuery) ([]Record, int, error) {
	items, total, err := b.tags.ListTags(ctx, repository.TagsFilter{OwnerID: sc.owner(), Search: q.Search}, q.Page, q.Size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tags: %w", err)
	}
	items = ownership.Filter(sc.policy, sc.principalID, items)

	rows := make([]Record, 0, len(items))
	for _, t := range items {
		rows = append(rows, tagRecord(t))
	}
	return rows, total, nil
}

func (b *tagBackend) load(ctx context.Context, sc scope, id int64) (*domain.Tag, error) {
	t, err := b.tags.GetTag(ctx, sc.owner(), id)
	if err != nil {
		return nil, err
	}
	if !sc.policy.Visible(sc.principalID, t) {
		return nil, ErrNotFound
	}
	return t, nil
}

func (b *tagBackend) get(ctx context.Context, sc scope, id int64) (Record, error) {
	t, err := b.load(ctx, sc, id)
	if err != nil {
		return nil, err
	}
	return tagRecord(t), nil
}

func (b *tagBackend) validateRefs(context.Context, scope, validation.Values, validation.Errors) error {
	return nil
}

func (b *tagBackend) create(ctx context.Context, sc scope, v validation.Values) (int64, string, error) {
	t := &domain.Tag{Status: domain.StatusNormal}
	forms.ApplyTag(t, v)
	sc.policy.Stamp(sc.principalID, t)
	id, err := b.tags.CreateTag(ctx, t)
	return id, t.Name, err
}

func (b *tagBackend) update(ctx context.Context, sc scope, id int64, v validation.Values) (string, error) {
	t, err := b.load(ctx, sc, id)
	if err != nil {
		return "", err
	}
	forms.ApplyTag(t, v)
	return t.Name, b.tags.UpdateTag(ctx, t)
}

func (b *tagBackend) filterChoices(_ context.Context, _ scope, name string) ([]Choice, error) {
	return nil, errUnknownFilter(name)
}

// ---- post ----

type postBackend struct {
	posts      repository.PostsRepository
	categories repository.CategoriesRepository
	tags       repository.TagsRepository
	users      repository.UsersRepository
}

// postRecord 编辑用：category 和 tags 为 id
func postRecord(p *domain.Post) Record {
	tags := p.TagIDs
	if tags == nil {
		tags = []int64{}
	}
	return Record{
		"id":           p.ID,
		"title":        p.Title,
		"desc":         p.Desc,
		"content":      p.Content,
		"status":       int(p.Status),
		"category":     p.CategoryID,
		"tags":         tags,
		"owner":        p.OwnerID,
		"created_time": p.CreatedTime,
	}
}

func (b *postBackend) list(ctx context.Context, sc scope, q ListQuery) ([]Record, int, error) {
	filter := repository.PostsFilter{OwnerID: sc.owner(), Search: q.Search}
	if raw, ok := q.Filters[admin.FilterOwnerCategory]; ok {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return nil, 0, validation.Errors{admin.FilterOwnerCategory: {validation.ErrInvalidChoice.Message}}
		}
		filter.CategoryID = id
	}

	items, total, err := b.posts.ListPosts(ctx, filter, q.Page, q.Size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}
	items = ownership.Filter(sc.policy, sc.principalID, items)

	categoryNames, err := b.categoryNames(ctx, sc, items)
	if err != nil {
		return nil, 0, err
	}
	usernames := map[int64]string{}

	rows := make([]Record, 0, len(items))
	for _, p := range items {
		owner, ok := usernames[p.OwnerID]
		if !ok {
			u, err := b.users.GetUser(ctx, p.OwnerID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, 0, fmt.Errorf("failed to load post owner: %w", err)
			}
			if u != nil {
				owner = u.Username
			}
			usernames[p.OwnerID] = owner
		}

		r := postRecord(p)
		r["category"] = categoryNames[p.CategoryID]
		r["owner"] = owner
		rows = append(rows, r)
	}
	return rows, total, nil
}

func (b *postBackend) categoryNames(ctx context.Context, sc scope, posts []*domain.Post) (map[int64]string, error) {
	names := map[int64]string{}
	var ids []int64
	for _, p := range posts {
		if _, ok := names[p.CategoryID]; !ok {
			names[p.CategoryID] = ""
			ids = append(ids, p.CategoryID)
		}
	}
	if len(ids) == 0 {
		return names, nil
	}
	cats, _, err := b.categories.ListCategories(ctx, repository.CategoriesFilter{OwnerID: sc.owner(), IDs: ids}, 1, len(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load post categories: %w", err)
	}
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names, nil
}

func (b *postBackend) load(ctx context.Context, sc scope, id int64) (*domain.Post, error) {
	p, err := b.posts.GetPost(ctx, sc.owner(), id)
	if err != nil {
		return nil, err
	}
	if !sc.policy.Visible(sc.principalID, p) {
		return nil, ErrNotFound
	}
	return p, nil
}

func (b *postBackend) get(ctx context.Context, sc scope, id int64) (Record, error) {
	p, err := b.load(ctx, sc, id)
	if err != nil {
		return nil, err
	}
	return postRecord(p), nil
}

// validateRefs 分类必须是当前用户的分类，标签必须都是当前用户的标签
func (b *postBackend) validateRefs(ctx context.Context, sc scope, v validation.Values, errs validation.Errors) error {
	if v.Has("category") {
		_, err := b.categories.GetCategory(ctx, sc.owner(), v.Int64("category"))
		switch {
		case errors.Is(err, repository.ErrNotFound):
			errs.Add("category", validation.ErrInvalidChoice.Message)
		case err != nil:
			return fmt.Errorf("failed to check category: %w", err)
		}
	}

	if ids := v.Int64s("tags"); len(ids) > 0 {
		_, total, err := b.tags.ListTags(ctx, repository.TagsFilter{OwnerID: sc.owner(), IDs: ids}, 1, len(ids))
		if err != nil {
			return fmt.Errorf("failed to check tags: %w", err)
		}
		if total != len(ids) {
			errs.Add("tags", validation.ErrInvalidChoice.Message)
		}
	}
	return nil
}

func (b *postBackend) create(ctx context.Context, sc scope, v validation.Values) (int64, string, error) {
	p := &domain.Post{Status: domain.StatusNormal}
	forms.ApplyPost(p, v)
	sc.policy.Stamp(sc.principalID, p)
	id, err := b.posts.CreatePost(ctx, p)
	return id, p.Title, err
}

func (b *postBackend) update(ctx context.Context, sc scope, id int64, v validation.Values) (string, error) {
	p, err := b.load(ctx, sc, id)
	if err != nil {
		return "", err
	}
	forms.ApplyPost(p, v)
	return p.Title, b.posts.UpdatePost(ctx, p)
}

// filterChoices owner_category：只列出当前用户的分类
func (b *postBackend) filterChoices(ctx context.Context, sc scope, name string) ([]Choice, error) {
	if name != admin.FilterOwnerCategory {
		return nil, errUnknownFilter(name)
	}
	cats, _, err := b.categories.ListCategories(ctx, repository.CategoriesFilter{OwnerID: sc.owner()}, 1, relatedLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list category choices: %w", err)
	}
	cats = ownership.Filter(sc.policy, sc.principalID, cats)

	choices := make([]Choice, 0, len(cats))
	for _, c := range cats {
		choices = append(choices, Choice{Value: c.ID, Label: c.Name})
	}
	return choices, nil
}
