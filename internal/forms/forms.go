// Package forms 各实体的表单声明以及表单值到领域模型的转换。
package forms

import (
	"github.com/jpch89/the5fire-Django/internal/domain"
	"github.com/jpch89/the5fire-Django/internal/validation"
)

// Student 报名表单：name, sex, profession, email, qq, phone
var Student = validation.Form{Fields: []validation.Field{
	{Name: "name", Label: "name", Required: true, MaxLength: 128},
	{Name: "sex", Label: "sex", Required: true, Widget: "select",
		Clean: validation.Choice(int(domain.SexUnknown), int(domain.SexMale), int(domain.SexFemale))},
	{Name: "profession", Label: "profession", Required: true, MaxLength: 128},
	{Name: "email", Label: "email", Required: true, MaxLength: 128, Clean: validation.Email},
	{Name: "qq", Label: "QQ", Required: true, Clean: validation.Digits},
	{Name: "phone", Label: "phone", Required: true, MaxLength: 128},
}}

// Category 分类表单
var Category = validation.Form{Fields: []validation.Field{
	{Name: "name", Label: "name", Required: true, MaxLength: 50},
	{Name: "status", Label: "status", Widget: "select",
		Clean: validation.Default(int(domain.StatusNormal), validation.Choice(int(domain.StatusNormal), int(domain.StatusDelete)))},
	{Name: "is_nav", Label: "is nav", Widget: "checkbox", Clean: validation.Bool},
}}

// Tag 标签表单
var Tag = validation.Form{Fields: []validation.Field{
	{Name: "name", Label: "name", Required: true, MaxLength: 10},
	{Name: "status", Label: "status", Widget: "select",
		Clean: validation.Default(int(domain.StatusNormal), validation.Choice(int(domain.StatusNormal), int(domain.StatusDelete)))},
}}

// Post 文章表单；desc 非必填，使用 textarea
var Post = validation.Form{Fields: []validation.Field{
	{Name: "title", Label: "title", Required: true, MaxLength: 255},
	{Name: "desc", Label: "summary", MaxLength: 1024, Widget: "textarea"},
	{Name: "category", Label: "category", Required: true, Widget: "select", Clean: validation.Ref},
	{Name: "tags", Label: "tags", Widget: "select", Clean: validation.Refs},
	{Name: "content", Label: "content", Required: true, Widget: "textarea"},
	{Name: "status", Label: "status", Widget: "select",
		Clean: validation.Default(int(domain.StatusNormal),
			validation.Choice(int(domain.StatusNormal), int(domain.StatusDelete), int(domain.StatusDraft)))},
}}

// ByModel 后台模型 key（app.model）对应的完整表单
var ByModel = map[string]validation.Form{
	"blog.category": Category,
	"blog.tag":      Tag,
	"blog.post":     Post,
}

// NewStudent 用校验后的值构造 Student
func NewStudent(v validation.Values) *domain.Student {
	return &domain.Student{
		Name:       v.String("name"),
		Sex:        domain.Sex(v.Int("sex")),
		Profession: v.String("profession"),
		Email:      v.String("email"),
		QQ:         v.Int64("qq"),
		Phone:      v.String("phone"),
		Status:     domain.StudentStatusApplying,
	}
}

// ApplyCategory 把表单中出现的字段写入 c
func ApplyCategory(c *domain.Category, v validation.Values) {
	if v.Has("name") {
		c.Name = v.String("name")
	}
	if v.Has("status") {
		c.Status = domain.Status(v.Int("status"))
	}
	if v.Has("is_nav") {
		c.IsNav = v.Bool("is_nav")
	}
}

// ApplyTag 把表单中出现的字段写入 t
func ApplyTag(t *domain.Tag, v validation.Values) {
	if v.Has("name") {
		t.Name = v.String("name")
	}
	if v.Has("status") {
		t.Status = domain.Status(v.Int("status"))
	}
}

// ApplyPost 把表单中出现的字段写入 p
func ApplyPost(p *domain.Post, v validation.Values) {
	if v.Has("title") {
		p.Title = v.String("title")
	}
	if v.Has("desc") {
		p.Desc = v.String("desc")
	}
	if v.Has("content") {
		p.Content = v.String("content")
	}
	if v.Has("status") {
		p.Status = domain.Status(v.Int("status"))
	}
	if v.Has("category") {
		p.CategoryID = v.Int64("category")
	}
	if v.Has("tags") {
		p.TagIDs = v.Int64s("tags")
	}
}
