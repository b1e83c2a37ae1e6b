package domain

import "time"

// Status 分类/标签/文章状态
type Status int

const (
	StatusDelete Status = 0
	StatusNormal Status = 1
	StatusDraft  Status = 2 // 仅文章使用
)

// String 返回展示用文本
func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusDraft:
		return "draft"
	default:
		return "deleted"
	}
}

// Category 文章分类
type Category struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	Status      Status    `db:"status"`
	IsNav       bool      `db:"is_nav"`
	OwnerID     int64     `db:"owner_id"`
	CreatedTime time.Time `db:"created_time"`
}

func (c *Category) GetOwnerID() int64   { return c.OwnerID }
func (c *Category) SetOwnerID(id int64) { c.OwnerID = id }

// Tag 文章标签
type Tag struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	Status      Status    `db:"status"`
	OwnerID     int64     `db:"owner_id"`
	CreatedTime time.Time `db:"created_time"`
}

func (t *Tag) GetOwnerID() int64   { return t.OwnerID }
func (t *Tag) SetOwnerID(id int64) { t.OwnerID = id }

// Post 文章：必须属于一个分类，可关联多个标签
type Post struct {
	ID          int64     `db:"id"`
	Title       string    `db:"title"`
	Desc        string    `db:"desc"`
	Content     string    `db:"content"`
	Status      Status    `db:"status"`
	CategoryID  int64     `db:"category_id"`
	TagIDs      []int64   `db:"-"` // post_tags
	OwnerID     int64     `db:"owner_id"`
	CreatedTime time.Time `db:"created_time"`
}

func (p *Post) GetOwnerID() int64   { return p.OwnerID }
func (p *Post) SetOwnerID(id int64) { p.OwnerID = id }

// LogEntry 后台操作记录
type LogEntry struct {
	ID         string    `json:"id"`
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	Model      string    `json:"model"` // 如 blog.post
	ObjectID   int64     `json:"object_id"`
	ObjectRepr string    `json:"object_repr"`
	Action     string    `json:"action"` // add / change
	Message    string    `json:"message"`
	ActionTime time.Time `json:"action_time"`
}
