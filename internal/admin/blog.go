package admin

import "github.com/jpch89/the5fire-Django/internal/ownership"

// 列表过滤器
const FilterOwnerCategory = "owner_category"

// BlogModels blog 应用的后台配置
func BlogModels() []*ModelAdmin {
	return []*ModelAdmin{
		{
			App:          "blog",
			Model:        "category",
			Verbose:      "category",
			ListDisplay:  []string{"name", "status", "is_nav", "created_time", "post_count"},
			Fields:       []string{"name", "status", "is_nav"},
			Inlines:      []Inline{{Model: "blog.post", Prefix: "post", Fields: []string{"title", "desc"}, Extra: 1}},
			SearchFields: []string{"name"},
			Ownership:    ownership.Owner(),
		},
		{
			App:          "blog",
			Model:        "tag",
			Verbose:      "tag",
			ListDisplay:  []string{"name", "status", "created_time"},
			Fields:       []string{"name", "status"},
			SearchFields: []string{"name"},
			Ownership:    ownership.Owner(),
		},
		{
			App:          "blog",
			Model:        "post",
			Verbose:      "post",
			ListDisplay:  []string{"title", "category", "status", "created_time", "owner"},
			Fields:       []string{"title", "desc", "category", "tags", "content", "status"},
			ListFilters:  []string{FilterOwnerCategory},
			SearchFields: []string{"title", "category__name"},
			GatedActions: []string{ActionAdd},
			Ownership:    ownership.Owner(),
		},
	}
}

// DefaultSite 注册了 blog 模型的 Site
func DefaultSite() *Site {
	site := NewSite()
	for _, m := range BlogModels() {
		if err := site.Register(m); err != nil {
			panic(err)
		}
	}
	return site
}
