package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Stage 请求管线中的一段。PreHandle 按注册顺序执行，返回 false 表示已经写出响应、
// 不再继续；PostHandle 按相反顺序执行，只能观察结果，不能修改响应。
type Stage interface {
	PreHandle(w http.ResponseWriter, r *http.Request) (*http.Request, bool)
	PostHandle(r *http.Request, status int)
}

// ViewStage 包裹路由匹配到的 handler 执行
type ViewStage interface {
	ProcessView(w http.ResponseWriter, r *http.Request, view http.Handler)
}

// Router 使用标准库 http.ServeMux，外面套一层 Stage 管线
type Router struct {
	mux    *http.ServeMux
	stages []Stage
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

// Use 追加管线 Stage
func (r *Router) Use(stages ...Stage) {
	r.stages = append(r.stages, stages...)
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	ran, stopped := 0, false
	for _, s := range r.stages {
		next, ok := s.PreHandle(rec, req)
		ran++
		if !ok {
			stopped = true
			break
		}
		req = next
	}

	if !stopped {
		view, _ := r.mux.Handler(req)
		r.serveView(rec, req, view)
	}

	for i := ran - 1; i >= 0; i-- {
		r.stages[i].PostHandle(req, rec.status)
	}
}

// serveView 从内到外依次让 ViewStage 包裹 handler
func (r *Router) serveView(w http.ResponseWriter, req *http.Request, view http.Handler) {
	for i := len(r.stages) - 1; i >= 0; i-- {
		if vs, ok := r.stages[i].(ViewStage); ok {
			inner := view
			outer := vs
			view = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				outer.ProcessView(w, req, inner)
			})
		}
	}
	view.ServeHTTP(w, req)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wrote {
		s.status = code
		s.wrote = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wrote = true
	return s.ResponseWriter.Write(b)
}
