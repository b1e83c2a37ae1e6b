package service

import (
	"context"
	"errors"
	"math"
	"net/url"
	"strconv"
	"testing"

	"github.com/jpch89/the5fire-Django/internal/admin"
	"github.com/jpch89/the5fire-Django/internal/domain"
	"github.com/jpch89/the5fire-Django/internal/permission"
	"github.com/jpch89/the5fire-Django/internal/repository"
	"github.com/jpch89/the5fire-Django/internal/store"
	"github.com/jpch89/the5fire-Django/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChecker struct {
	granted bool
	err     error
	calls   []string
}

func (f *fakeChecker) HasPerm(_ context.Context, username, permCode string) (bool, error) {
	f.calls = append(f.calls, username+" "+permCode)
	return f.granted, f.err
}

var (
	categoryRef = ModelRef{App: "blog", Model: "category"}
	tagRef      = ModelRef{App: "blog", Model: "tag"}
	postRef     = ModelRef{App: "blog", Model: "post"}
)

type adminFixture struct {
	svc     AdminService
	repos   repository.Repositories
	perms   *fakeChecker
	actions *store.MemoryActionLog
	alice   *domain.User
	bob     *domain.User
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	ctx := context.Background()
	repos := repository.NewMemoryRepositories()

	f := &adminFixture{
		repos:   repos,
		perms:   &fakeChecker{granted: true},
		actions: store.NewMemoryActionLog(),
		alice:   &domain.User{Username: "alice", IsStaff: true},
		bob:     &domain.User{Username: "bob", IsStaff: true},
	}
	for _, u := range []*domain.User{f.alice, f.bob} {
		id, err := repos.Users.UpsertUser(ctx, u)
		require.NoError(t, err)
		u.ID = id
	}
	f.svc = NewAdminService(admin.DefaultSite(), repos, f.perms, f.actions, zap.NewNop())
	return f
}

func (f *adminFixture) addCategory(t *testing.T, user *domain.User, name string) int64 {
	t.Helper()
	d, err := f.svc.Add(context.Background(), user, categoryRef, AdminInput{Fields: url.Values{"name": {name}}})
	require.NoError(t, err)
	return d.Object["id"].(int64)
}

func postInput(categoryID int64, title string) url.Values {
	return url.Values{
		"title":    {title},
		"category": {strconv.FormatInt(categoryID, 10)},
		"content":  {"body"},
	}
}

func TestAdmin_CategoryIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	f := newAdminFixture(t)

	id := f.addCategory(t, f.alice, "X")

	aliceList, err := f.svc.List(ctx, f.alice, categoryRef, ListQuery{})
	require.NoError(t, err)
	require.Equal(t, 1, aliceList.Total)
	assert.Equal(t, "X", aliceList.Items[0]["name"])

	bobList, err := f.svc.List(ctx, f.bob, categoryRef, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 0, bobList.Total)
	assert.Empty(t, bobList.Items)

	_, err = f.svc.Get(ctx, f.bob, categoryRef, id)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Change(ctx, f.bob, categoryRef, id, AdminInput{Fields: url.Values{"name": {"stolen"}}})
	assert.ErrorIs(t, err, ErrNotFound)

	// bob 的文章分类过滤器中看不到 X
	filters, err := f.svc.Filters(ctx, f.bob, postRef)
	require.NoError(t, err)
	require.Len(t, filters, 1)
	assert.Equal(t, admin.FilterOwnerCategory, filters[0].Name)
	assert.Empty(t, filters[0].Choices)

	filters, err = f.svc.Filters(ctx, f.alice, postRef)
	require.NoError(t, err)
	assert.Equal(t, []Choice{{Value: id, Label: "X"}}, filters[0].Choices)
}

func TestAdmin_OwnerCannotBeSetByCaller(t *testing.T) {
	ctx := context.Background()
	f := newAdminFixture(t)

	in := url.Values{"name": {"go"}, "owner": {strconv.FormatInt(f.bob.ID, 10)}}
	d, err := f.svc.Add(ctx, f.alice, tagRef, AdminInput{Fields: in})
	require.NoError(t, err)
	assert.NotContains(t, d.Fields, "owner")

	tag, err := f.repos.Tags.GetTag(ctx, 0, d.Object["id"].(int64))
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, tag.OwnerID)
}

func TestAdmin_ListColumnsOnly(t *testing.T) {
	f := newAdminFixture(t)
	f.addCategory(t, f.alice, "X")

	res, err := f.svc.List(context.Background(), f.alice, categoryRef, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "status", "is_nav", "created_time", "post_count"}, res.Columns)
	row := res.Items[0]
	assert.Len(t, row, 6)
	assert.Contains(t, row, "id")
	assert.NotContains(t, row, "owner")
	assert.Equal(t, 0, row["post_count"])
}

func TestAdmin_ListHugePageIsEmpty(t *testing.T) {
	f := newAdminFixture(t)
	f.addCategory(t, f.alice, "X")

	for _, page := range []int{math.MaxInt64 / 10, math.MaxInt64, maxPage + 1} {
		var res *ListResult
		var err error
		require.NotPanics(t, func() {
			res, err = f.svc.List(context.Background(), f.alice, categoryRef, ListQuery{Page: page, Size: 20})
		})
		require.NoError(t, err)
		assert.Empty(t, res.Items)
		assert.Equal(t, 1, res.Total)
		assert.Equal(t, maxPage, res.Page)
	}
}

func TestAdmin_PostAddGate(t *testing.T) {
	ctx := context.Background()

	t.Run("granted", func(t *testing.T) {
		f := newAdminFixture(t)
		catID := f.addCategory(t, f.alice, "X")

		d, err := f.svc.Add(ctx, f.alice, postRef, AdminInput{Fields: postInput(catID, "hello")})
		require.NoError(t, err)
		assert.Equal(t, "hello", d.Object["title"])
		assert.Equal(t, catID, d.Object["category"])
		assert.Equal(t, []string{"alice blog.add_post"}, f.perms.calls)
	})

	t.Run("denied", func(t *testing.T) {
		f := newAdminFixture(t)
		catID := f.addCategory(t, f.alice, "X")
		f.perms.granted = false

		_, err := f.svc.Add(ctx, f.alice, postRef, AdminInput{Fields: postInput(catID, "hello")})
		assert.ErrorIs(t, err, ErrPermissionDenied)

		n, err := f.repos.Posts.CountPosts(ctx, repository.PostsFilter{})
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("denied before validation", func(t *testing.T) {
		f := newAdminFixture(t)
		f.perms.granted = false

		_, err := f.svc.Add(ctx, f.alice, postRef, AdminInput{Fields: url.Values{}})
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("service unavailable", func(t *testing.T) {
		f := newAdminFixture(t)
		catID := f.addCategory(t, f.alice, "X")
		f.perms.err = permission.ErrUnavailable

		_, err := f.svc.Add(ctx, f.alice, postRef, AdminInput{Fields: postInput(catID, "hello")})
		assert.ErrorIs(t, err, permission.ErrUnavailable)

		n, err := f.repos.Posts.CountPosts(ctx, repository.PostsFilter{})
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("ungated models skip the gate", func(t *testing.T) {
		f := newAdminFixture(t)
		f.perms.granted = false
		f.addCategory(t, f.alice, "X")
		assert.Empty(t, f.perms.calls)
	})
}

func TestAdmin_PostValidation(t *testing.T) {
	ctx := context.Background()
	f := newAdminFixture(t)
	bobCat := f.addCategory(t, f.bob, "bob's")

	bobTag, err := f.svc.Add(ctx, f.bob, tagRef, AdminInput{Fields: url.Values{"name": {"t"}}})
	require.NoError(t, err)

	in := url.Values{
		"category": {strconv.FormatInt(bobCat, 10)},
		"tags":     {strconv.FormatInt(bobTag.Object["id"].(int64), 10)},
	}
	_, err = f.svc.Add(ctx, f.alice, postRef, AdminInput{Fields: in})

	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, []string{validation.ErrRequired.Message}, verrs["title"])
	assert.Equal(t, []string{validation.ErrRequired.Message}, verrs["content"])
	assert.Equal(t, []string{validation.ErrInvalidChoice.Message}, verrs["category"])
	assert.Equal(t, []string{validation.ErrInvalidChoice.Message}, verrs["tags"])
}

func TestAdmin_PostListAndFilter(t *testing.T) {
	ctx := context.Background()
	f := newAdminFixture(t)
	c1 := f.addCategory(t, f.alice, "go")
	c2 := f.addCategory(t, f.alice, "python")

	for _, in := range []url.Values{postInput(c1, "a"), postInput(c1, "b"), postInput(c2, "c")} {
		_, err := f.svc.Add(ctx, f.alice, postRef, AdminInput{Fields: in})
		require.NoError(t, err)
	}

	res, err := f.svc.List(ctx, f.alice, postRef, ListQuery{Filters: map[string]string{admin.FilterOwnerCategory: strconv.FormatInt(c1, 10)}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	for _, row := range res.Items {
		assert.Equal(t, "go", row["category"])
		assert.Equal(t, "alice", row["owner"])
	}

	res, err = f.svc.List(ctx, f.alice, postRef, ListQuery{Search: "python"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "c", res.Items[0]["title"])

	// 未声明的过滤器被忽略
	res, err = f.svc.List(ctx, f.alice, postRef, ListQuery{Filters: map[string]string{"owner": "2"}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)

	_, err = f.svc.List(ctx, f.alice, postRef, ListQuery{Filters: map[string]string{admin.FilterOwnerCategory: "abc"}})
	var verrs validation.Errors
	assert.True(t, errors.As(err, &verrs))

	bobRes, err := f.svc.List(ctx, f.bob, postRef, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 0, bobRes.Total)

	cats, err := f.svc.List(ctx, f.alice, categoryRef, ListQuery{Search: "go"})
	require.NoError(t, err)
	require.Len(t, cats.Items, 1)
	assert.Equal(t, 2, cats.Items[0]["post_count"])
}

func TestAdmin_CategoryInlinePosts(t *testing.T) {
	ctx := context.Background()
	f := newAdminFixture(t)

	in := AdminInput{
		Fields: url.Values{"name": {"go"}},
		Inlines: map[string][]url.Values{
			"post": {
				{"title": {"first"}, "desc": {"summary"}},
				{}, // 空白行被跳过
			},
		},
	}
	d, err := f.svc.Add(ctx, f.alice, categoryRef, in)
	require.NoError(t, err)
	require.Len(t, d.Inlines, 1)
	inline := d.Inlines[0]
	assert.Equal(t, "blog.post", inline.Model)
	assert.Equal(t, 1, inline.Extra)
	require.Len(t, inline.Rows, 1)
	assert.Equal(t, "first", inline.Rows[0]["title"])

	postID := inline.Rows[0]["id"].(int64)
	p, err := f.repos.Posts.GetPost(ctx, f.alice.ID, postID)
	require.NoError(t, err)
	assert.Equal(t, d.Object["id"], p.CategoryID)
	assert.Equal(t, f.alice.ID, p.OwnerID)

	// 修改已有内联行
	change := AdminInput{
		Fields: url.Values{"name": {"golang"}},
		Inlines: map[string][]url.Values{
			"post": {{"id": {strconv.FormatInt(postID, 10)}, "title": {"renamed"}}},
		},
	}
	d, err = f.svc.Change(ctx, f.alice, categoryRef, d.Object["id"].(int64), change)
	require.NoError(t, err)
	assert.Equal(t, "golang", d.Object["name"])
	require.Len(t, d.Inlines[0].Rows, 1)
	assert.Equal(t, "renamed", d.Inlines[0].Rows[0]["title"])
}

func TestAdmin_InlineErrors(t *testing.T) {
	f := newAdminFixture(t)

	in := AdminInput{
		Fields: url.Values{"name": {"go"}},
		Inlines: map[string][]url.Values{
			"post": {{"desc": {"no title"}}, {"id": {"99"}, "title": {"x"}}},
		},
	}
	_, err := f.svc.Add(context.Background(), f.alice, categoryRef, in)

	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.True(t, verrs.Has("post-0-title"))
	assert.True(t, verrs.Has("post-1-id"))

	n, err := f.repos.Posts.CountPosts(context.Background(), repository.PostsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAdmin_History(t *testing.T) {
	ctx := context.Background()
	f := newAdminFixture(t)
	id := f.addCategory(t, f.alice, "go")

	_, err := f.svc.Change(ctx, f.alice, categoryRef, id, AdminInput{Fields: url.Values{"name": {"golang"}}})
	require.NoError(t, err)

	entries, err := f.svc.History(ctx, f.alice, categoryRef, id)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, admin.ActionAdd, entries[0].Action)
	assert.Equal(t, admin.ActionChange, entries[1].Action)
	assert.Equal(t, "Changed name.", entries[1].Message)
	assert.Equal(t, "golang", entries[1].ObjectRepr)

	_, err = f.svc.History(ctx, f.bob, categoryRef, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdmin_Index(t *testing.T) {
	ctx := context.Background()
	f := newAdminFixture(t)
	f.perms.granted = false

	entries, err := f.svc.Index(ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	canAdd := map[string]bool{}
	for _, e := range entries {
		canAdd[e.Model] = e.CanAdd
	}
	assert.Equal(t, map[string]bool{"category": true, "post": false, "tag": true}, canAdd)

	f.perms.err = permission.ErrUnavailable
	entries, err = f.svc.Index(ctx, f.alice)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestAdmin_Export(t *testing.T) {
	f := newAdminFixture(t)
	for _, name := range []string{"a", "b", "c"} {
		f.addCategory(t, f.alice, name)
	}
	f.addCategory(t, f.bob, "z")

	res, err := f.svc.Export(context.Background(), f.alice, categoryRef, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Len(t, res.Items, 3)
}

func TestAdmin_UnknownModel(t *testing.T) {
	f := newAdminFixture(t)
	_, err := f.svc.List(context.Background(), f.alice, ModelRef{App: "blog", Model: "comment"}, ListQuery{})
	assert.ErrorIs(t, err, ErrUnknownModel)
}
