package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type timerKey struct{}

// RequestTimer 记录两段耗时：整个请求（request to response），
// 以及 viewPaths 中路径的 handler 执行时间（process view）。只写日志，不改变响应。
type RequestTimer struct {
	logger    *zap.Logger
	viewPaths map[string]bool
	now       func() time.Time
}

func NewRequestTimer(logger *zap.Logger, viewPaths ...string) *RequestTimer {
	paths := make(map[string]bool, len(viewPaths))
	for _, p := range viewPaths {
		paths[p] = true
	}
	return &RequestTimer{logger: logger, viewPaths: paths, now: time.Now}
}

var (
	_ Stage     = (*RequestTimer)(nil)
	_ ViewStage = (*RequestTimer)(nil)
)

func (t *RequestTimer) PreHandle(_ http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	ctx := context.WithValue(r.Context(), timerKey{}, t.now())
	return r.WithContext(ctx), true
}

func (t *RequestTimer) ProcessView(w http.ResponseWriter, r *http.Request, view http.Handler) {
	if !t.viewPaths[r.URL.Path] {
		view.ServeHTTP(w, r)
		return
	}
	start := t.now()
	view.ServeHTTP(w, r)
	t.logger.Info("process view",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Duration("cost", t.now().Sub(start)),
	)
}

func (t *RequestTimer) PostHandle(r *http.Request, status int) {
	start, ok := r.Context().Value(timerKey{}).(time.Time)
	if !ok {
		return
	}
	t.logger.Info("request to response",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Duration("cost", t.now().Sub(start)),
	)
}
