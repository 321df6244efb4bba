package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/blogward/blogward/internal/auth"
	"github.com/blogward/blogward/internal/config"
	"github.com/blogward/blogward/internal/domain/article"
	"github.com/blogward/blogward/internal/domain/user"
	"github.com/blogward/blogward/internal/http/middlewares"
	"github.com/blogward/blogward/internal/repo/postgres"
	"github.com/blogward/blogward/internal/security"
	"github.com/gin-gonic/gin"
)

type UserStore interface {
	Create(ctx context.Context, fullname, email, passwordHash, dob string, role user.Role) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	EmailInUse(ctx context.Context, email string) (bool, error)
	UpdateRoleByEmail(ctx context.Context, email string, role user.Role) error
	GetSuperAdmin(ctx context.Context) (user.User, error)
	ListAdmins(ctx context.Context) ([]user.AdminListing, error)
}

type PendingLister interface {
	ListPendingReview(ctx context.Context) ([]article.Article, error)
}

type UsersHandler struct {
	users   UserStore
	pending PendingLister
	jwt     *auth.Manager
	cfg     config.Config
	log     *slog.Logger
}

func NewUsersHandler(users UserStore, pending PendingLister, jwt *auth.Manager, cfg config.Config, log *slog.Logger) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{users: users, pending: pending, jwt: jwt, cfg: cfg, log: log}
}

// identityView is the sanitized identity echoed back to clients. Password
// hash and dob never leave the server.
type identityView struct {
	ID       int64     `json:"id"`
	Fullname string    `json:"fullname"`
	Email    string    `json:"email"`
	Role     user.Role `json:"role"`
}

func viewOf(u user.User) identityView {
	return identityView{ID: u.ID, Fullname: u.Fullname, Email: u.Email, Role: u.Role}
}

func (h *UsersHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	inUse, err := h.users.EmailInUse(cctx, req.Email)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "register: email check failed", "err", err)
		RespondInternal(ctx)
		return
	}
	if inUse {
		RespondValidation(ctx, []FieldError{{Field: "email", Rule: "unique", Message: "E-mail already in use"}})
		return
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "register: hash failed", "err", err)
		RespondInternal(ctx)
		return
	}

	// everyone starts as a viewer; only the super-admin promotes
	u, err := h.users.Create(cctx, req.Fullname, req.Email, hash, req.DOB, user.RoleViewer)
	if err != nil {
		// two registrations can race past the pre-check; the unique index wins
		if errors.Is(err, postgres.ErrEmailAlreadyUsed) {
			RespondValidation(ctx, []FieldError{{Field: "email", Rule: "unique", Message: "E-mail already in use"}})
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "register: create failed", "err", err)
		RespondInternal(ctx)
		return
	}

	token, err := h.jwt.GenerateAccessToken(u)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "register: token failed", "err", err)
		RespondInternal(ctx)
		return
	}

	h.setCookie(ctx, middlewares.AccessTokenCookie, token, h.jwt.AccessTTL())
	RespondSuccess(ctx, http.StatusOK, "Registered successfully", viewOf(u))
}

// Login is step one of the two-step login: verify email and password, then
// hand out the short-lived pending token. The full access token is only
// issued by LoginTwoFA.
func (h *UsersHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondBadRequest(ctx, "Invalid email or password")
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "login: lookup failed", "err", err)
		RespondInternal(ctx)
		return
	}

	if err := security.CheckPassword(u.PasswordHash, req.Password); err != nil {
		RespondBadRequest(ctx, "Invalid email or password")
		return
	}

	token, err := h.jwt.GenerateTwoFAToken(u.ID)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "login: token failed", "err", err)
		RespondInternal(ctx)
		return
	}

	h.setCookie(ctx, middlewares.TwoFATokenCookie, token, h.jwt.TwoFATTL())
	RespondSuccess(ctx, http.StatusOK, "Password matched successfully", nil)
}

// LoginTwoFA is step two: the pending token plus a fresh re-verification of
// email, password and date of birth buys the real access token.
func (h *UsersHandler) LoginTwoFA(ctx *gin.Context) {
	pendingID, ok := middlewares.PendingUserIDFromContext(ctx)
	if !ok {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	var req user.LoginTwoFARequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondBadRequest(ctx, "Invalid credentials")
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "login-2fa: lookup failed", "err", err)
		RespondInternal(ctx)
		return
	}

	// the pending token must belong to the account being logged into
	if u.ID != pendingID {
		RespondBadRequest(ctx, "Invalid credentials")
		return
	}

	if err := security.CheckPassword(u.PasswordHash, req.Password); err != nil || u.DOB != req.DOB {
		RespondBadRequest(ctx, "Invalid credentials")
		return
	}

	token, err := h.jwt.GenerateAccessToken(u)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "login-2fa: token failed", "err", err)
		RespondInternal(ctx)
		return
	}

	h.setCookie(ctx, middlewares.AccessTokenCookie, token, h.jwt.AccessTTL())
	h.clearCookie(ctx, middlewares.TwoFATokenCookie)
	RespondSuccess(ctx, http.StatusOK, "Logged in successfully", viewOf(u))
}

func (h *UsersHandler) Logout(ctx *gin.Context) {
	h.clearCookie(ctx, middlewares.AccessTokenCookie)
	h.clearCookie(ctx, middlewares.TwoFATokenCookie)
	RespondSuccess(ctx, http.StatusOK, "Successfully logged out", nil)
}

func (h *UsersHandler) UserDetails(ctx *gin.Context) {
	identity, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	RespondSuccess(ctx, http.StatusOK, "Data fetched successfully", identityView{
		ID:       identity.UserID,
		Fullname: identity.Fullname,
		Email:    identity.Email,
		Role:     identity.Role,
	})
}

func (h *UsersHandler) GrantAdmin(ctx *gin.Context) {
	h.changeRole(ctx, user.RoleAdmin)
}

func (h *UsersHandler) RevokeAdmin(ctx *gin.Context) {
	h.changeRole(ctx, user.RoleViewer)
}

func (h *UsersHandler) changeRole(ctx *gin.Context, target user.Role) {
	var req user.RoleChangeRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	inUse, err := h.users.EmailInUse(cctx, req.Email)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "role change: email check failed", "err", err)
		RespondInternal(ctx)
		return
	}
	if !inUse {
		RespondValidation(ctx, []FieldError{{Field: "email", Rule: "registered", Message: "E-mail not registered"}})
		return
	}

	// the single super-admin protects itself: its role can never be changed
	// through these endpoints
	super, err := h.users.GetSuperAdmin(cctx)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		h.log.ErrorContext(ctx.Request.Context(), "role change: superadmin lookup failed", "err", err)
		RespondInternal(ctx)
		return
	}
	if err == nil && super.Email == req.Email {
		RespondValidation(ctx, []FieldError{{Field: "email", Rule: "immutable", Message: "Super admin role cannot be changed"}})
		return
	}

	if err := h.users.UpdateRoleByEmail(cctx, req.Email, target); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondValidation(ctx, []FieldError{{Field: "email", Rule: "registered", Message: "E-mail not registered"}})
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "role change: update failed", "err", err)
		RespondInternal(ctx)
		return
	}

	RespondSuccess(ctx, http.StatusOK, "Role updated successfully", nil)
}

// SuperAdminData feeds the moderation dashboard: the review queue plus the
// current admin roster.
func (h *UsersHandler) SuperAdminData(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	queue, err := h.pending.ListPendingReview(cctx)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "superadmin data: queue failed", "err", err)
		RespondInternal(ctx)
		return
	}

	admins, err := h.users.ListAdmins(cctx)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "superadmin data: roster failed", "err", err)
		RespondInternal(ctx)
		return
	}

	RespondSuccess(ctx, http.StatusOK, "Admin data fetched successfully", gin.H{
		"articlesToBeApproved": queue,
		"adminUsers":           admins,
	})
}

// Cookie helpers

func (h *UsersHandler) setCookie(ctx *gin.Context, name, value string, ttl time.Duration) {
	secure := h.cfg.Env == "prod"
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(name, value, int(ttl.Seconds()), "/", "", secure, true)
}

func (h *UsersHandler) clearCookie(ctx *gin.Context, name string) {
	secure := h.cfg.Env == "prod"
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(name, "", -1, "/", "", secure, true)
}
