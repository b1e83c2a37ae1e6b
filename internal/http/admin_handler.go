package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jpch89/the5fire-Django/internal/admin"
	"github.com/jpch89/the5fire-Django/internal/permission"
	"github.com/jpch89/the5fire-Django/internal/service"
	"github.com/jpch89/the5fire-Django/internal/validation"

	"go.uber.org/zap"
)

const adminPrefix = "/admin/"

// AdminHandler 所有注册模型共用的 CRUD handler
type AdminHandler struct {
	svc    service.AdminService
	site   *admin.Site
	logger *zap.Logger
}

func NewAdminHandler(svc service.AdminService, site *admin.Site, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, site: site, logger: logger}
}

// ServeAdmin 分发 /admin/ 下的请求
//
//	/admin/                              GET  模型列表
//	/admin/{app}/{model}/                GET  列表 / POST 新增
//	/admin/{app}/{model}/filters         GET  列表过滤器选项
//	/admin/{app}/{model}/export          GET  导出 xlsx
//	/admin/{app}/{model}/{id}/           GET  详情 / PUT 修改
//	/admin/{app}/{model}/{id}/history    GET  操作记录
func (h *AdminHandler) ServeAdmin(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, adminPrefix)
	if len(parts) == 0 {
		h.only(w, r, http.MethodGet, h.Index)
		return
	}
	if len(parts) < 2 {
		writeJSON(w, http.StatusNotFound, Fail("not found"))
		return
	}

	ref := service.ModelRef{App: parts[0], Model: parts[1]}
	if _, ok := h.site.Lookup(ref.App, ref.Model); !ok {
		writeJSON(w, http.StatusNotFound, Fail("unknown model "+ref.App+"."+ref.Model))
		return
	}

	switch rest := parts[2:]; {
	case len(rest) == 0:
		switch r.Method {
		case http.MethodGet:
			h.List(w, r, ref)
		case http.MethodPost:
			h.Add(w, r, ref)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case len(rest) == 1 && rest[0] == "filters":
		h.only(w, r, http.MethodGet, func(w http.ResponseWriter, r *http.Request) { h.Filters(w, r, ref) })
	case len(rest) == 1 && rest[0] == "export":
		h.only(w, r, http.MethodGet, func(w http.ResponseWriter, r *http.Request) { h.Export(w, r, ref) })
	default:
		id, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil || id <= 0 || len(rest) > 2 {
			writeJSON(w, http.StatusNotFound, Fail("not found"))
			return
		}
		if len(rest) == 2 {
			if rest[1] != "history" {
				writeJSON(w, http.StatusNotFound, Fail("not found"))
				return
			}
			h.only(w, r, http.MethodGet, func(w http.ResponseWriter, r *http.Request) { h.History(w, r, ref, id) })
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.Get(w, r, ref, id)
		case http.MethodPut, http.MethodPost:
			h.Change(w, r, ref, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func (h *AdminHandler) only(w http.ResponseWriter, r *http.Request, method string, fn http.HandlerFunc) {
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	fn(w, r)
}

func (h *AdminHandler) Index(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Index(r.Context(), principalFrom(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(entries))
}

func listQuery(r *http.Request) service.ListQuery {
	q := r.URL.Query()
	filters := map[string]string{}
	for k := range q {
		switch k {
		case "page", "size", "q":
		default:
			filters[k] = q.Get(k)
		}
	}
	return service.ListQuery{
		Page:    parseInt(q.Get("page"), 1),
		Size:    parseInt(q.Get("size"), 20),
		Search:  strings.TrimSpace(q.Get("q")),
		Filters: filters,
	}
}

func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request, ref service.ModelRef) {
	res, err := h.svc.List(r.Context(), principalFrom(r.Context()), ref, listQuery(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

func (h *AdminHandler) Filters(w http.ResponseWriter, r *http.Request, ref service.ModelRef) {
	res, err := h.svc.Filters(r.Context(), principalFrom(r.Context()), ref)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request, ref service.ModelRef) {
	res, err := h.svc.Export(r.Context(), principalFrom(r.Context()), ref, listQuery(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	data, err := GenerateAdminExport(res)
	if err != nil {
		h.logger.Error("failed to generate export", zap.String("model", res.Model), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export"))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+res.Model+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request, ref service.ModelRef, id int64) {
	d, err := h.svc.Get(r.Context(), principalFrom(r.Context()), ref, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(d))
}

func (h *AdminHandler) Add(w http.ResponseWriter, r *http.Request, ref service.ModelRef) {
	in, err := h.readInput(r, ref)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	d, err := h.svc.Add(r.Context(), principalFrom(r.Context()), ref, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(d))
}

func (h *AdminHandler) Change(w http.ResponseWriter, r *http.Request, ref service.ModelRef, id int64) {
	in, err := h.readInput(r, ref)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	d, err := h.svc.Change(r.Context(), principalFrom(r.Context()), ref, id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(d))
}

func (h *AdminHandler) History(w http.ResponseWriter, r *http.Request, ref service.ModelRef, id int64) {
	entries, err := h.svc.History(r.Context(), principalFrom(r.Context()), ref, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(entries))
}

// readInput JSON：字段在顶层，内联行在 inlines.{prefix} 数组中；
// 表单：内联字段命名为 {prefix}-{n}-{field}
func (h *AdminHandler) readInput(r *http.Request, ref service.ModelRef) (service.AdminInput, error) {
	m, _ := h.site.Lookup(ref.App, ref.Model)
	in := service.AdminInput{Inlines: map[string][]url.Values{}}

	if isJSON(r) {
		var body map[string]any
		if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
			return in, err
		}
		inlines, _ := body["inlines"].(map[string]any)
		delete(body, "inlines")
		in.Fields = validation.FromJSON(body)

		for _, inline := range m.Inlines {
			rows, _ := inlines[inline.Prefix].([]any)
			for _, row := range rows {
				obj, ok := row.(map[string]any)
				if !ok {
					return in, errors.New("inline row must be an object")
				}
				in.Inlines[inline.Prefix] = append(in.Inlines[inline.Prefix], validation.FromJSON(obj))
			}
		}
		return in, nil
	}

	if err := r.ParseForm(); err != nil {
		return in, err
	}
	in.Fields = r.PostForm
	for _, inline := range m.Inlines {
		in.Inlines[inline.Prefix] = inlineRowsFromForm(r.PostForm, inline.Prefix)
	}
	return in, nil
}

func inlineRowsFromForm(form url.Values, prefix string) []url.Values {
	var rows []url.Values
	for key, vals := range form {
		parts := strings.SplitN(key, "-", 3)
		if len(parts) != 3 || parts[0] != prefix {
			continue
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 0 || n > 1000 {
			continue
		}
		for len(rows) <= n {
			rows = append(rows, url.Values{})
		}
		rows[n][parts[2]] = vals
	}
	return rows
}

func (h *AdminHandler) writeError(w http.ResponseWriter, err error) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, FailWith("validation failed", verrs))
	case errors.Is(err, service.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, Fail(err.Error()))
	case errors.Is(err, permission.ErrUnavailable):
		writeJSON(w, http.StatusBadGateway, Fail("permission service unavailable"))
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrUnknownModel):
		writeJSON(w, http.StatusNotFound, Fail("not found"))
	default:
		h.logger.Error("admin request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
	}
}

// RegisterAdminRoutes 注册后台路由；除登录外都需要有效会话
func (r *Router) RegisterAdminRoutes(auth *AuthHandler, h *AdminHandler) {
	r.Handle("/admin/login", auth.Login)
	r.Handle("/admin/logout", auth.Logout)
	r.Handle(adminPrefix, auth.RequireUser(h.ServeAdmin))
}
