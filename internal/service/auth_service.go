package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jpch89/the5fire-Django/internal/domain"
	"github.com/jpch89/the5fire-Django/internal/repository"
	"github.com/jpch89/the5fire-Django/internal/store"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials 用户名或密码错误，或者不是 staff 用户
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUnauthenticated 没有有效会话
	ErrUnauthenticated = errors.New("authentication required")
)

// AuthService 后台登录
type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context, token string) error
	// Principal 根据会话 token 解析当前用户
	Principal(ctx context.Context, token string) (*domain.User, error)
	// SeedAdmin 用户不存在时创建超级管理员
	SeedAdmin(ctx context.Context, username, password string) error
}

type authService struct {
	users    repository.UsersRepository
	sessions *store.Sessions
	logger   *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(users repository.UsersRepository, sessions *store.Sessions, logger *zap.Logger) AuthService {
	return &authService{
		users:    users,
		sessions: sessions,
		logger:   logger,
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Info("login rejected: bad password", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}
	if !user.IsStaff {
		s.logger.Info("login rejected: not staff", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}

	token, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("admin login", zap.Int64("user_id", user.ID), zap.String("username", username))
	return &LoginResponse{Token: token, UserID: user.ID, Username: user.Username}, nil
}

func (s *authService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

func (s *authService) Principal(ctx context.Context, token string) (*domain.User, error) {
	userID, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNoSession) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to load principal: %w", err)
	}
	if !user.IsStaff {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

func (s *authService) SeedAdmin(ctx context.Context, username, password string) error {
	_, err := s.users.GetUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to check admin user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	id, err := s.users.UpsertUser(ctx, &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		IsStaff:      true,
		IsSuperuser:  true,
	})
	if err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}
	s.logger.Info("admin user seeded", zap.Int64("user_id", id), zap.String("username", username))
	return nil
}
