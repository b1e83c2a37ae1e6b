// Package admin 后台模型注册表。
//
// 每个实体类型一行 ModelAdmin：列表列、可编辑字段、内联、列表过滤器、搜索字段、
// 需要远程权限的动作以及 owner 策略。通用 handler 只读取这张表。
package admin

import (
	"fmt"
	"sort"

	"github.com/jpch89/the5fire-Django/internal/forms"
	"github.com/jpch89/the5fire-Django/internal/ownership"
	"github.com/jpch89/the5fire-Django/internal/permission"
	"github.com/jpch89/the5fire-Django/internal/validation"
)

// 后台动作
const (
	ActionAdd    = "add"
	ActionChange = "change"
)

// Inline 在父对象详情页中编辑的子对象
type Inline struct {
	Model  string   // app.model
	Prefix string   // 表单错误前缀，如 post
	Fields []string
	Extra  int // 空白行数量
}

// ModelAdmin 一个实体类型的后台配置
type ModelAdmin struct {
	App          string
	Model        string
	Verbose      string
	ListDisplay  []string
	Fields       []string
	Inlines      []Inline
	ListFilters  []string
	SearchFields []string
	GatedActions []string
	Ownership    ownership.Policy
}

// Key app.model
func (m *ModelAdmin) Key() string { return m.App + "." + m.Model }

// PermCode 动作对应的权限码，如 blog.add_post
func (m *ModelAdmin) PermCode(action string) string {
	return permission.Code(m.App, action, m.Model)
}

// Gated 该动作是否需要询问权限服务
func (m *ModelAdmin) Gated(action string) bool {
	for _, a := range m.GatedActions {
		if a == action {
			return true
		}
	}
	return false
}

// Form 可编辑字段组成的表单；owner 不在任何表单中
func (m *ModelAdmin) Form() validation.Form {
	return forms.ByModel[m.Key()].Only(m.Fields...)
}

// InlineForm 内联行使用的表单
func InlineForm(in Inline) validation.Form {
	return forms.ByModel[in.Model].Only(in.Fields...)
}

// HasFilter 是否声明了该列表过滤器
func (m *ModelAdmin) HasFilter(name string) bool {
	for _, f := range m.ListFilters {
		if f == name {
			return true
		}
	}
	return false
}

// Site 注册表
type Site struct {
	models map[string]*ModelAdmin
}

func NewSite() *Site {
	return &Site{models: map[string]*ModelAdmin{}}
}

// Register 注册模型；同一个 app.model 只能注册一次
func (s *Site) Register(m *ModelAdmin) error {
	if _, ok := forms.ByModel[m.Key()]; !ok {
		return fmt.Errorf("no form declared for %s", m.Key())
	}
	if _, ok := s.models[m.Key()]; ok {
		return fmt.Errorf("model %s already registered", m.Key())
	}
	s.models[m.Key()] = m
	return nil
}

// Lookup 按 app 和 model 查找
func (s *Site) Lookup(app, model string) (*ModelAdmin, bool) {
	m, ok := s.models[app+"."+model]
	return m, ok
}

// Models 按 key 排序返回所有已注册模型
func (s *Site) Models() []*ModelAdmin {
	out := make([]*ModelAdmin, 0, len(s.models))
	for _, m := range s.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
