package httpapi

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jpch89/the5fire-Django/internal/domain"
	"github.com/jpch89/the5fire-Django/internal/forms"
	"github.com/jpch89/the5fire-Django/internal/service"
	"github.com/jpch89/the5fire-Django/internal/validation"

	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// StudentHandler 学员报名首页
type StudentHandler struct {
	svc    service.StudentService
	logger *zap.Logger
}

func NewStudentHandler(svc service.StudentService, logger *zap.Logger) *StudentHandler {
	return &StudentHandler{svc: svc, logger: logger}
}

type formField struct {
	Name   string
	Label  string
	Value  string
	Errors []string
}

type sexChoice struct {
	Value string
	Label string
}

type indexPage struct {
	Fields     []formField
	SexChoices []sexChoice
	Students   []*domain.Student
}

// Index GET 展示表单和列表；POST 校验通过后保存并重定向回首页，失败则带错误重新渲染
func (h *StudentHandler) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.render(w, r, http.StatusOK, url.Values{}, nil)
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		_, err := h.svc.Register(r.Context(), r.PostForm)
		var verrs validation.Errors
		switch {
		case err == nil:
			http.Redirect(w, r, "/", http.StatusFound)
		case errors.As(err, &verrs):
			h.render(w, r, http.StatusOK, r.PostForm, verrs)
		default:
			h.logger.Error("failed to register student", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *StudentHandler) render(w http.ResponseWriter, r *http.Request, status int, input url.Values, errs validation.Errors) {
	students, err := h.svc.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list students", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	page := indexPage{Students: students}
	for _, f := range forms.Student.Fields {
		page.Fields = append(page.Fields, formField{
			Name:   f.Name,
			Label:  f.Label,
			Value:  input.Get(f.Name),
			Errors: errs[f.Name],
		})
	}
	for _, s := range []domain.Sex{domain.SexUnknown, domain.SexMale, domain.SexFemale} {
		page.SexChoices = append(page.SexChoices, sexChoice{Value: strconv.Itoa(int(s)), Label: s.String()})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := indexTemplate.Execute(w, page); err != nil {
		h.logger.Error("failed to render index", zap.Error(err))
	}
}

// RegisterStudentRoutes 注册首页
func (r *Router) RegisterStudentRoutes(h *StudentHandler) {
	r.Handle("/", h.Index)
}
