package domain

import "time"

// User 后台用户（请求的 principal）
type User struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"` // bcrypt
	IsStaff      bool      `db:"is_staff"`
	IsSuperuser  bool      `db:"is_superuser"`
	CreatedTime  time.Time `db:"created_time"`
}
