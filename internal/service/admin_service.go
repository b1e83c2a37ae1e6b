package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jpch89/the5fire-Django/internal/admin"
	"github.com/jpch89/the5fire-Django/internal/domain"
	"github.com/jpch89/the5fire-Django/internal/ownership"
	"github.com/jpch89/the5fire-Django/internal/permission"
	"github.com/jpch89/the5fire-Django/internal/repository"
	"github.com/jpch89/the5fire-Django/internal/store"
	"github.com/jpch89/the5fire-Django/internal/validation"

	"go.uber.org/zap"
)

var (
	// ErrPermissionDenied 权限服务拒绝了该动作
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnknownModel 注册表中没有该模型
	ErrUnknownModel = errors.New("unknown model")
	// ErrNotFound 对象不存在或不属于当前用户
	ErrNotFound = repository.ErrNotFound
)

const (
	maxPageSize = 100
	maxPage     = 100000
	exportBatch = 500
)

// Record 后台通用记录：字段名 -> 值
type Record map[string]any

// ModelRef 指向注册表中的一个模型
type ModelRef struct {
	App   string
	Model string
}

// ListQuery 列表查询参数；Filters 只包含模型声明过的列表过滤器
type ListQuery struct {
	Page    int
	Size    int
	Search  string
	Filters map[string]string
}

// ListResult 列表结果，Items 只包含列表列（以及 id）
type ListResult struct {
	Model   string   `json:"model"`
	Columns []string `json:"columns"`
	Items   []Record `json:"items"`
	Total   int      `json:"total"`
	Page    int      `json:"page"`
	Size    int      `json:"size"`
}

// Choice 过滤器选项
type Choice struct {
	Value int64  `json:"value"`
	Label string `json:"label"`
}

// FilterChoices 一个列表过滤器及其选项
type FilterChoices struct {
	Name    string   `json:"name"`
	Choices []Choice `json:"choices"`
}

// InlineRows 详情页中的内联对象
type InlineRows struct {
	Model  string   `json:"model"`
	Prefix string   `json:"prefix"`
	Fields []string `json:"fields"`
	Extra  int      `json:"extra"`
	Rows   []Record `json:"rows"`
}

// Detail 对象详情：可编辑字段和内联
type Detail struct {
	Model   string       `json:"model"`
	Fields  []string     `json:"fields"`
	Object  Record       `json:"object"`
	Inlines []InlineRows `json:"inlines,omitempty"`
}

// ModelEntry 后台首页中的一个模型
type ModelEntry struct {
	App     string `json:"app"`
	Model   string `json:"model"`
	Verbose string `json:"verbose"`
	CanAdd  bool   `json:"can_add"`
}

// AdminInput 新增/修改的输入；Inlines 的 key 为内联前缀
type AdminInput struct {
	Fields  url.Values
	Inlines map[string][]url.Values
}

// AdminService 表驱动的通用后台
type AdminService interface {
	Index(ctx context.Context, user *domain.User) ([]ModelEntry, error)
	List(ctx context.Context, user *domain.User, ref ModelRef, q ListQuery) (*ListResult, error)
	Filters(ctx context.Context, user *domain.User, ref ModelRef) ([]FilterChoices, error)
	Get(ctx context.Context, user *domain.User, ref ModelRef, id int64) (*Detail, error)
	// Add 权限检查 -> 校验 -> 写入 owner -> 保存 -> 操作记录
	Add(ctx context.Context, user *domain.User, ref ModelRef, in AdminInput) (*Detail, error)
	Change(ctx context.Context, user *domain.User, ref ModelRef, id int64, in AdminInput) (*Detail, error)
	// Export 不分页的列表，用于导出
	Export(ctx context.Context, user *domain.User, ref ModelRef, q ListQuery) (*ListResult, error)
	History(ctx context.Context, user *domain.User, ref ModelRef, id int64) ([]domain.LogEntry, error)
}

type adminService struct {
	site     *admin.Site
	backends map[string]backend
	perms    permission.Checker
	actions  store.ActionLog
	logger   *zap.Logger
	now      func() time.Time
}

// NewAdminService 创建 AdminService 实例
func NewAdminService(site *admin.Site, repos repository.Repositories, perms permission.Checker, actions store.ActionLog, logger *zap.Logger) AdminService {
	return &adminService{
		site:     site,
		backends: newBackends(repos),
		perms:    perms,
		actions:  actions,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *adminService) lookup(ref ModelRef) (*admin.ModelAdmin, backend, error) {
	m, ok := s.site.Lookup(ref.App, ref.Model)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s.%s", ErrUnknownModel, ref.App, ref.Model)
	}
	be, ok := s.backends[m.Key()]
	if !ok {
		return nil, nil, fmt.Errorf("%w: no backend for %s", ErrUnknownModel, m.Key())
	}
	return m, be, nil
}

// gate 需要远程权限的动作：拒绝返回 ErrPermissionDenied，请求失败返回 permission.ErrUnavailable
func (s *adminService) gate(ctx context.Context, user *domain.User, m *admin.ModelAdmin, action string) error {
	if !m.Gated(action) {
		return nil
	}
	granted, err := s.perms.HasPerm(ctx, user.Username, m.PermCode(action))
	if err != nil {
		return err
	}
	if !granted {
		s.logger.Info("admin action denied",
			zap.String("username", user.Username),
			zap.String("perm_code", m.PermCode(action)),
		)
		return ErrPermissionDenied
	}
	return nil
}

func (s *adminService) Index(ctx context.Context, user *domain.User) ([]ModelEntry, error) {
	models := s.site.Models()
	out := make([]ModelEntry, 0, len(models))
	for _, m := range models {
		entry := ModelEntry{App: m.App, Model: m.Model, Verbose: m.Verbose}
		err := s.gate(ctx, user, m, admin.ActionAdd)
		switch {
		case err == nil:
			entry.CanAdd = true
		case errors.Is(err, ErrPermissionDenied):
		case errors.Is(err, permission.ErrUnavailable):
			s.logger.Warn("permission check failed, add disabled",
				zap.String("model", m.Key()),
				zap.Error(err),
			)
		default:
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func normalizeQuery(q ListQuery) ListQuery {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Page > maxPage {
		q.Page = maxPage
	}
	if q.Size <= 0 {
		q.Size = 20
	}
	if q.Size > maxPageSize {
		q.Size = maxPageSize
	}
	return q
}

func (s *adminService) List(ctx context.Context, user *domain.User, ref ModelRef, q ListQuery) (*ListResult, error) {
	m, be, err := s.lookup(ref)
	if err != nil {
		return nil, err
	}
	q = normalizeQuery(q)
	q.Filters = declaredFilters(m, q.Filters)

	rows, total, err := be.list(ctx, scopeFor(m, user), q)
	if err != nil {
		return nil, err
	}
	return &ListResult{
		Model:   m.Key(),
		Columns: m.ListDisplay,
		Items:   project(rows, m.ListDisplay),
		Total:   total,
		Page:    q.Page,
		Size:    q.Size,
	}, nil
}

func (s *adminService) Export(ctx context.Context, user *domain.User, ref ModelRef, q ListQuery) (*ListResult, error) {
	m, be, err := s.lookup(ref)
	if err != nil {
		return nil, err
	}
	q.Filters = declaredFilters(m, q.Filters)
	q.Size = exportBatch
	sc := scopeFor(m, user)

	var all []Record
	for q.Page = 1; ; q.Page++ {
		rows, total, err := be.list(ctx, sc, q)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
		if len(rows) == 0 || len(all) >= total {
			break
		}
	}
	return &ListResult{
		Model:   m.Key(),
		Columns: m.ListDisplay,
		Items:   project(all, m.ListDisplay),
		Total:   len(all),
		Page:    1,
		Size:    len(all),
	}, nil
}

func (s *adminService) Filters(ctx context.Context, user *domain.User, ref ModelRef) ([]FilterChoices, error) {
	m, be, err := s.lookup(ref)
	if err != nil {
		return nil, err
	}
	out := make([]FilterChoices, 0, len(m.ListFilters))
	for _, name := range m.ListFilters {
		choices, err := be.filterChoices(ctx, scopeFor(m, user), name)
		if err != nil {
			return nil, err
		}
		out = append(out, FilterChoices{Name: name, Choices: choices})
	}
	return out, nil
}

func (s *adminService) Get(ctx context.Context, user *domain.User, ref ModelRef, id int64) (*Detail, error) {
	m, be, err := s.lookup(ref)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, m, be, scopeFor(m, user), id)
}

func (s *adminService) detail(ctx context.Context, m *admin.ModelAdmin, be backend, sc scope, id int64) (*Detail, error) {
	obj, err := be.get(ctx, sc, id)
	if err != nil {
		return nil, err
	}
	fields := append([]string{"id"}, m.Fields...)
	fields = append(fields, "created_time")
	d := &Detail{
		Model:  m.Key(),
		Fields: m.Fields,
		Object: project([]Record{obj}, fields)[0],
	}

	if len(m.Inlines) > 0 {
		in, ok := be.(inliner)
		if !ok {
			return nil, fmt.Errorf("%s declares inlines but has no inline support", m.Key())
		}
		for _, inline := range m.Inlines {
			rows, err := in.inlineRows(ctx, sc, id, inline)
			if err != nil {
				return nil, err
			}
			d.Inlines = append(d.Inlines, InlineRows{
				Model:  inline.Model,
				Prefix: inline.Prefix,
				Fields: inline.Fields,
				Extra:  inline.Extra,
				Rows:   project(rows, append([]string{"id"}, inline.Fields...)),
			})
		}
	}
	return d, nil
}

// inlineRow 校验通过的内联行；id 为 0 表示新建
type inlineRow struct {
	inline admin.Inline
	id     int64
	values validation.Values
}

// validate 校验主表单、引用字段和内联行，所有错误一起返回
func (s *adminService) validate(ctx context.Context, m *admin.ModelAdmin, be backend, sc scope, parentID int64, in AdminInput) (validation.Values, []inlineRow, error) {
	values, errs := m.Form().Validate(in.Fields)
	if errs == nil {
		errs = validation.Errors{}
	}
	if err := be.validateRefs(ctx, sc, values, errs); err != nil {
		return nil, nil, err
	}

	var rows []inlineRow
	for _, inline := range m.Inlines {
		form := admin.InlineForm(inline)
		for i, raw := range in.Inlines[inline.Prefix] {
			if isBlankRow(raw, form.Names()) {
				continue
			}
			key := func(field string) string {
				return inline.Prefix + "-" + strconv.Itoa(i) + "-" + field
			}

			row := inlineRow{inline: inline}
			if idStr := strings.TrimSpace(raw.Get("id")); idStr != "" {
				id, err := strconv.ParseInt(idStr, 10, 64)
				ok := err == nil && id > 0 && parentID > 0
				if inl, isInliner := be.(inliner); ok && isInliner {
					ok, err = inl.inlineExists(ctx, sc, parentID, inline, id)
					if err != nil {
						return nil, nil, err
					}
				}
				if !ok {
					errs.Add(key("id"), validation.ErrInvalidChoice.Message)
				}
				row.id = id
			}

			v, rowErrs := form.Validate(raw)
			for field, msgs := range rowErrs {
				for _, msg := range msgs {
					errs.Add(key(field), msg)
				}
			}
			row.values = v
			rows = append(rows, row)
		}
	}

	if len(errs) > 0 {
		return nil, nil, errs
	}
	return values, rows, nil
}

func isBlankRow(raw url.Values, fields []string) bool {
	if strings.TrimSpace(raw.Get("id")) != "" {
		return false
	}
	for _, f := range fields {
		if strings.TrimSpace(raw.Get(f)) != "" {
			return false
		}
	}
	return true
}

func (s *adminService) saveInlines(ctx context.Context, be backend, sc scope, parentID int64, rows []inlineRow) error {
	if len(rows) == 0 {
		return nil
	}
	inl, ok := be.(inliner)
	if !ok {
		return fmt.Errorf("inline rows given for a model without inline support")
	}
	for _, row := range rows {
		if err := inl.saveInline(ctx, sc, parentID, row.inline, row.id, row.values); err != nil {
			return err
		}
	}
	return nil
}

func (s *adminService) Add(ctx context.Context, user *domain.User, ref ModelRef, in AdminInput) (*Detail, error) {
	m, be, err := s.lookup(ref)
	if err != nil {
		return nil, err
	}
	if err := s.gate(ctx, user, m, admin.ActionAdd); err != nil {
		return nil, err
	}

	sc := scopeFor(m, user)
	values, rows, err := s.validate(ctx, m, be, sc, 0, in)
	if err != nil {
		return nil, err
	}

	id, repr, err := be.create(ctx, sc, values)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", m.Key(), err)
	}
	if err := s.saveInlines(ctx, be, sc, id, rows); err != nil {
		return nil, fmt.Errorf("failed to save inlines of %s %d: %w", m.Key(), id, err)
	}

	s.record(ctx, user, m, id, repr, admin.ActionAdd, "Added.")
	return s.detail(ctx, m, be, sc, id)
}

func (s *adminService) Change(ctx context.Context, user *domain.User, ref ModelRef, id int64, in AdminInput) (*Detail, error) {
	m, be, err := s.lookup(ref)
	if err != nil {
		return nil, err
	}
	if err := s.gate(ctx, user, m, admin.ActionChange); err != nil {
		return nil, err
	}

	sc := scopeFor(m, user)
	before, err := be.get(ctx, sc, id)
	if err != nil {
		return nil, err
	}
	values, rows, err := s.validate(ctx, m, be, sc, id, in)
	if err != nil {
		return nil, err
	}

	repr, err := be.update(ctx, sc, id, values)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s %d: %w", m.Key(), id, err)
	}
	if err := s.saveInlines(ctx, be, sc, id, rows); err != nil {
		return nil, fmt.Errorf("failed to save inlines of %s %d: %w", m.Key(), id, err)
	}

	d, err := s.detail(ctx, m, be, sc, id)
	if err != nil {
		return nil, err
	}
	s.record(ctx, user, m, id, repr, admin.ActionChange, changeMessage(m.Fields, before, d.Object, len(rows)))
	return d, nil
}

func changeMessage(fields []string, before, after Record, inlineRows int) string {
	var changed []string
	for _, f := range fields {
		if fmt.Sprint(before[f]) != fmt.Sprint(after[f]) {
			changed = append(changed, f)
		}
	}
	msg := "No fields changed."
	if len(changed) > 0 {
		msg = "Changed " + strings.Join(changed, ", ") + "."
	}
	if inlineRows > 0 {
		msg += " Saved " + strconv.Itoa(inlineRows) + " inline row(s)."
	}
	return msg
}

// record 写操作记录；失败只记日志，不影响已经保存的数据
func (s *adminService) record(ctx context.Context, user *domain.User, m *admin.ModelAdmin, id int64, repr, action, message string) {
	entry := &domain.LogEntry{
		UserID:     user.ID,
		Username:   user.Username,
		Model:      m.Key(),
		ObjectID:   id,
		ObjectRepr: repr,
		Action:     action,
		Message:    message,
		ActionTime: s.now(),
	}
	if err := s.actions.Append(ctx, entry); err != nil {
		s.logger.Error("failed to record admin action",
			zap.String("model", m.Key()),
			zap.Int64("object_id", id),
			zap.String("action", action),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("admin action",
		zap.String("username", user.Username),
		zap.String("model", m.Key()),
		zap.Int64("object_id", id),
		zap.String("action", action),
	)
}

func (s *adminService) History(ctx context.Context, user *domain.User, ref ModelRef, id int64) ([]domain.LogEntry, error) {
	m, be, err := s.lookup(ref)
	if err != nil {
		return nil, err
	}
	if _, err := be.get(ctx, scopeFor(m, user), id); err != nil {
		return nil, err
	}
	entries, err := s.actions.ListForObject(ctx, m.Key(), id)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.LogEntry{}
	}
	return entries, nil
}

func declaredFilters(m *admin.ModelAdmin, in map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range in {
		if m.HasFilter(k) && v != "" {
			out[k] = v
		}
	}
	return out
}

func project(rows []Record, fields []string) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		p := make(Record, len(fields)+1)
		p["id"] = r["id"]
		for _, f := range fields {
			p[f] = r[f]
		}
		out = append(out, p)
	}
	return out
}

func scopeFor(m *admin.ModelAdmin, user *domain.User) scope {
	return scope{policy: m.Ownership, principalID: user.ID}
}

// scope 当前请求的 owner 范围
type scope struct {
	policy      ownership.Policy
	principalID int64
}

// owner 查询条件中的 owner_id，0 表示不过滤
func (sc scope) owner() int64 { return sc.policy.Scope(sc.principalID) }
