package domain

import "time"

// Sex 性别
type Sex int

const (
	SexUnknown Sex = 0
	SexMale    Sex = 1
	SexFemale  Sex = 2
)

// String 返回展示用文本
func (s Sex) String() string {
	switch s {
	case SexMale:
		return "male"
	case SexFemale:
		return "female"
	default:
		return "unknown"
	}
}

// StudentStatus 报名审核状态
type StudentStatus int

const (
	StudentStatusApplying StudentStatus = 0
	StudentStatusPassed   StudentStatus = 1
	StudentStatusRejected StudentStatus = 2
)

// Student 学员报名记录（无 owner）
type Student struct {
	ID          int64         `db:"id"`
	Name        string        `db:"name"`
	Sex         Sex           `db:"sex"`
	Profession  string        `db:"profession"`
	Email       string        `db:"email"`
	QQ          int64         `db:"qq"`
	Phone       string        `db:"phone"`
	Status      StudentStatus `db:"status"`
	CreatedTime time.Time     `db:"created_time"`
}

// SexShow 性别展示文本
func (s *Student) SexShow() string {
	return s.Sex.String()
}
