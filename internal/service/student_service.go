package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jpch89/the5fire-Django/internal/domain"
	"github.com/jpch89/the5fire-Django/internal/forms"
	"github.com/jpch89/the5fire-Django/internal/repository"

	"go.uber.org/zap"
)

// StudentService 学员报名
type StudentService interface {
	// Register 校验并保存报名信息；校验失败返回 validation.Errors，且不保存任何记录
	Register(ctx context.Context, input url.Values) (*domain.Student, error)
	// List 全部报名记录，最新的在前
	List(ctx context.Context) ([]*domain.Student, error)
}

type studentService struct {
	repo   repository.StudentsRepository
	logger *zap.Logger
}

// NewStudentService 创建 StudentService 实例
func NewStudentService(repo repository.StudentsRepository, logger *zap.Logger) StudentService {
	return &studentService{repo: repo, logger: logger}
}

func (s *studentService) Register(ctx context.Context, input url.Values) (*domain.Student, error) {
	values, errs := forms.Student.Validate(input)
	if errs != nil {
		return nil, errs
	}

	student := forms.NewStudent(values)
	id, err := s.repo.CreateStudent(ctx, student)
	if err != nil {
		return nil, fmt.Errorf("failed to create student: %w", err)
	}
	student.ID = id

	s.logger.Info("student registered",
		zap.Int64("student_id", id),
		zap.String("name", student.Name),
	)
	return student, nil
}

func (s *studentService) List(ctx context.Context) ([]*domain.Student, error) {
	students, err := s.repo.ListStudents(ctx, repository.StudentsFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return students, nil
}
