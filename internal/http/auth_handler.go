package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jpch89/the5fire-Django/internal/domain"
	"github.com/jpch89/the5fire-Django/internal/service"

	"go.uber.org/zap"
)

const sessionCookie = "sessionid"

type principalKey struct{}

// AuthHandler 后台登录/注销，以及从请求中解析当前用户
type AuthHandler struct {
	auth       service.AuthService
	sessionTTL time.Duration
	logger     *zap.Logger
}

func NewAuthHandler(auth service.AuthService, sessionTTL time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, sessionTTL: sessionTTL, logger: logger}
}

// sessionToken cookie sessionid 优先，其次 Authorization: Bearer
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req service.LoginRequest
	if isJSON(r) {
		if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
			return
		}
	} else {
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
	}

	resp, err := h.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, Fail(err.Error()))
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("login failed"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    resp.Token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := h.auth.Logout(r.Context(), sessionToken(r)); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("logout failed"))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

// RequireUser 没有有效会话时返回 401，否则把当前用户放进 context
func (h *AuthHandler) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := h.auth.Principal(r.Context(), sessionToken(r))
		if err != nil {
			if !errors.Is(err, service.ErrUnauthenticated) {
				h.logger.Error("failed to resolve principal", zap.Error(err))
			}
			writeJSON(w, http.StatusUnauthorized, Result[any]{
				Code:    ResultUnauthenticated,
				Type:    "error",
				Message: service.ErrUnauthenticated.Error(),
			})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, user)))
	}
}

func principalFrom(ctx context.Context) *domain.User {
	u, _ := ctx.Value(principalKey{}).(*domain.User)
	return u
}
