// Package permission 远程权限服务客户端。
//
// 每次检查都会请求 GET <base>/has_perm?user=<username>&perm_code=<code>，
// 只有 HTTP 200 表示允许；不缓存、不重试。
package permission

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrUnavailable 权限服务请求失败（网络错误、超时等），调用方必须按拒绝处理
var ErrUnavailable = errors.New("permission service unavailable")

// Checker 权限检查接口
type Checker interface {
	HasPerm(ctx context.Context, username, permCode string) (bool, error)
}

// Code 由 app、动作和模型名生成权限码，如 Code("blog", "add", "post") == "blog.add_post"
func Code(app, action, model string) string {
	return app + "." + action + "_" + model
}

// Client has_perm 接口客户端
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建权限服务客户端；timeout 为 0 时不设超时
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

var _ Checker = (*Client)(nil)

// HasPerm 只有响应状态码恰好为 200 时返回 true。
// 网络错误返回 ErrUnavailable（而不是 false, nil），调用方可以区分"被拒绝"和"无法判断"。
func (c *Client) HasPerm(ctx context.Context, username, permCode string) (bool, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"user":      username,
			"perm_code": permCode,
		}).
		Get("/has_perm")
	if err != nil {
		c.logger.Error("has_perm request failed",
			zap.String("user", username),
			zap.String("perm_code", permCode),
			zap.Error(err),
		)
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	granted := resp.StatusCode() == http.StatusOK
	c.logger.Debug("has_perm checked",
		zap.String("user", username),
		zap.String("perm_code", permCode),
		zap.Int("status_code", resp.StatusCode()),
		zap.Bool("granted", granted),
		zap.Duration("cost", resp.Time()),
	)
	return granted, nil
}
