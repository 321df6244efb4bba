package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blogward/blogward/internal/auth"
	"github.com/blogward/blogward/internal/config"
	"github.com/blogward/blogward/internal/domain/article"
	"github.com/blogward/blogward/internal/domain/user"
	"github.com/blogward/blogward/internal/http/handlers"
	"github.com/blogward/blogward/internal/http/middlewares"
	"github.com/blogward/blogward/internal/repo/postgres"
	"github.com/blogward/blogward/internal/security"
	"github.com/gin-gonic/gin"
)

// Keep gin quiet during tests

func init() {
	gin.SetMode(gin.TestMode)
}

// Fake implementations of the handlers.UserStore and handlers.PendingLister
// interfaces. Each method defers to an optional fn field so individual tests
// only wire what they need.

type fakeUserStore struct {
	createFn     func(ctx context.Context, fullname, email, passwordHash, dob string, role user.Role) (user.User, error)
	getByEmailFn func(ctx context.Context, email string) (user.User, error)
	emailInUseFn func(ctx context.Context, email string) (bool, error)
	updateRoleFn func(ctx context.Context, email string, role user.Role) error
	superAdminFn func(ctx context.Context) (user.User, error)
	listAdminsFn func(ctx context.Context) ([]user.AdminListing, error)
}

func (f *fakeUserStore) Create(ctx context.Context, fullname, email, passwordHash, dob string, role user.Role) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, fullname, email, passwordHash, dob, role)
	}
	return user.User{}, nil
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (user.User, error) {
	if f.getByEmailFn != nil {
		return f.getByEmailFn(ctx, email)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUserStore) EmailInUse(ctx context.Context, email string) (bool, error) {
	if f.emailInUseFn != nil {
		return f.emailInUseFn(ctx, email)
	}
	return false, nil
}

func (f *fakeUserStore) UpdateRoleByEmail(ctx context.Context, email string, role user.Role) error {
	if f.updateRoleFn != nil {
		return f.updateRoleFn(ctx, email, role)
	}
	return nil
}

func (f *fakeUserStore) GetSuperAdmin(ctx context.Context) (user.User, error) {
	if f.superAdminFn != nil {
		return f.superAdminFn(ctx)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUserStore) ListAdmins(ctx context.Context) ([]user.AdminListing, error) {
	if f.listAdminsFn != nil {
		return f.listAdminsFn(ctx)
	}
	return nil, nil
}

type fakePendingLister struct {
	listFn func(ctx context.Context) ([]article.Article, error)
}

func (f *fakePendingLister) ListPendingReview(ctx context.Context) ([]article.Article, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

// Shared fixtures

func testManager() *auth.Manager {
	return auth.NewManager("test-secret", time.Hour, 10*time.Minute)
}

func newUsersHandler(store *fakeUserStore, pending *fakePendingLister) *handlers.UsersHandler {
	if pending == nil {
		pending = &fakePendingLister{}
	}
	return handlers.NewUsersHandler(store, pending, testManager(), config.Config{Env: "test"}, nil)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func postJSON(r *gin.Engine, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func findCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Register

func TestRegisterHandler(t *testing.T) {
	validBody := `{
		"fullname": "Ada Lovelace",
		"email": "ada@example.com",
		"password": "correct-horse",
		"confirmPassword": "correct-horse",
		"dob": "1815-12-10"
	}`

	tests := []struct {
		name           string
		body           string
		storeSetup     func(*fakeUserStore)
		wantStatusCode int
	}{
		{
			name: "success",
			body: validBody,
			storeSetup: func(f *fakeUserStore) {
				f.createFn = func(ctx context.Context, fullname, email, passwordHash, dob string, role user.Role) (user.User, error) {
					if role != user.RoleViewer {
						return user.User{}, errors.New("new accounts must start as viewers")
					}
					if passwordHash == "correct-horse" {
						return user.User{}, errors.New("password stored in clear")
					}
					return user.User{ID: 7, Fullname: fullname, Email: email, Role: role}, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "email_already_in_use",
			body: validBody,
			storeSetup: func(f *fakeUserStore) {
				f.emailInUseFn = func(ctx context.Context, email string) (bool, error) { return true, nil }
			},
			wantStatusCode: http.StatusUnprocessableEntity,
		},
		{
			name:           "password_mismatch",
			body:           `{"fullname":"Ada","email":"ada@example.com","password":"correct-horse","confirmPassword":"wrong-horse","dob":"1815-12-10"}`,
			wantStatusCode: http.StatusUnprocessableEntity,
		},
		{
			// a concurrent registration can slip past the pre-check and lose
			// to the unique index; that is still a validation answer
			name: "duplicate_email_races_past_precheck",
			body: validBody,
			storeSetup: func(f *fakeUserStore) {
				f.emailInUseFn = func(ctx context.Context, email string) (bool, error) { return false, nil }
				f.createFn = func(ctx context.Context, fullname, email, passwordHash, dob string, role user.Role) (user.User, error) {
					return user.User{}, postgres.ErrEmailAlreadyUsed
				}
			},
			wantStatusCode: http.StatusUnprocessableEntity,
		},
		{
			name: "store_error",
			body: validBody,
			storeSetup: func(f *fakeUserStore) {
				f.createFn = func(ctx context.Context, fullname, email, passwordHash, dob string, role user.Role) (user.User, error) {
					return user.User{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			store := &fakeUserStore{}
			if tt.storeSetup != nil {
				tt.storeSetup(store)
			}

			h := newUsersHandler(store, nil)
			r := gin.New()
			r.POST("/api/users/register", h.Register)

			w := postJSON(r, "/api/users/register", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusOK {
				if c := findCookie(t, w, middlewares.AccessTokenCookie); c == nil || c.Value == "" {
					t.Fatalf("expected access token cookie to be set")
				}
			}
		})
	}
}

// Login step one

func TestLoginHandler(t *testing.T) {
	hash := mustHash(t, "correct-horse")

	accounts := func(f *fakeUserStore) {
		f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
			if email == "ada@example.com" {
				return user.User{ID: 7, Email: email, PasswordHash: hash, DOB: "1815-12-10", Role: user.RoleViewer}, nil
			}
			return user.User{}, user.ErrNotFound
		}
	}

	tests := []struct {
		name           string
		body           string
		wantStatusCode int
		wantTwoFA      bool
	}{
		{
			name:           "success_issues_pending_token",
			body:           `{"email":"ada@example.com","password":"correct-horse"}`,
			wantStatusCode: http.StatusOK,
			wantTwoFA:      true,
		},
		{
			name:           "unknown_email",
			body:           `{"email":"nobody@example.com","password":"correct-horse"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "wrong_password",
			body:           `{"email":"ada@example.com","password":"wrong-horse"}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			store := &fakeUserStore{}
			accounts(store)

			h := newUsersHandler(store, nil)
			r := gin.New()
			r.POST("/api/users/login", h.Login)

			w := postJSON(r, "/api/users/login", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			twoFA := findCookie(t, w, middlewares.TwoFATokenCookie)
			if tt.wantTwoFA && (twoFA == nil || twoFA.Value == "") {
				t.Fatalf("expected pending token cookie to be set")
			}
			if !tt.wantTwoFA && twoFA != nil && twoFA.Value != "" {
				t.Fatalf("failed login must not issue a pending token")
			}

			// step one never issues the real access token
			if c := findCookie(t, w, middlewares.AccessTokenCookie); c != nil && c.Value != "" {
				t.Fatalf("login step one must not set the access token cookie")
			}
		})
	}
}

// Login step two

func TestLoginTwoFAHandler(t *testing.T) {
	hash := mustHash(t, "correct-horse")
	mgr := testManager()

	pendingFor := func(t *testing.T, id int64) *http.Cookie {
		t.Helper()
		token, err := mgr.GenerateTwoFAToken(id)
		if err != nil {
			t.Fatalf("generate pending token: %v", err)
		}
		return &http.Cookie{Name: middlewares.TwoFATokenCookie, Value: token}
	}

	newRouter := func(store *fakeUserStore) *gin.Engine {
		h := handlers.NewUsersHandler(store, &fakePendingLister{}, mgr, config.Config{Env: "test"}, nil)
		authMW := middlewares.NewAuthMiddleware(mgr)
		r := gin.New()
		r.POST("/api/users/login-2fa", authMW.RequireTwoFAPending(), h.LoginTwoFA)
		return r
	}

	accounts := func(f *fakeUserStore) {
		f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
			if email == "ada@example.com" {
				return user.User{ID: 7, Fullname: "Ada Lovelace", Email: email, PasswordHash: hash, DOB: "1815-12-10", Role: user.RoleViewer}, nil
			}
			return user.User{}, user.ErrNotFound
		}
	}

	validBody := `{"email":"ada@example.com","password":"correct-horse","dob":"1815-12-10"}`

	t.Run("success", func(t *testing.T) {
		store := &fakeUserStore{}
		accounts(store)
		r := newRouter(store)

		w := postJSON(r, "/api/users/login-2fa", validBody, pendingFor(t, 7))

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
		}
		if c := findCookie(t, w, middlewares.AccessTokenCookie); c == nil || c.Value == "" {
			t.Fatalf("expected access token cookie to be set")
		}
		if c := findCookie(t, w, middlewares.TwoFATokenCookie); c == nil || c.MaxAge >= 0 {
			t.Fatalf("expected pending token cookie to be cleared")
		}
	})

	t.Run("wrong_dob", func(t *testing.T) {
		store := &fakeUserStore{}
		accounts(store)
		r := newRouter(store)

		w := postJSON(r, "/api/users/login-2fa",
			`{"email":"ada@example.com","password":"correct-horse","dob":"1999-01-01"}`,
			pendingFor(t, 7))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("got status %d, want 400", w.Code)
		}
	})

	t.Run("pending_token_for_other_account", func(t *testing.T) {
		store := &fakeUserStore{}
		accounts(store)
		r := newRouter(store)

		w := postJSON(r, "/api/users/login-2fa", validBody, pendingFor(t, 99))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("got status %d, want 400", w.Code)
		}
		if c := findCookie(t, w, middlewares.AccessTokenCookie); c != nil && c.Value != "" {
			t.Fatalf("mismatched pending token must not yield an access token")
		}
	})

	t.Run("missing_pending_token", func(t *testing.T) {
		store := &fakeUserStore{}
		accounts(store)
		r := newRouter(store)

		w := postJSON(r, "/api/users/login-2fa", validBody)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("got status %d, want 401", w.Code)
		}
	})
}

// Logout and user details run behind RequireAuth

func TestLogoutHandler(t *testing.T) {
	mgr := testManager()
	token, err := mgr.GenerateAccessToken(user.User{ID: 7, Fullname: "Ada", Email: "ada@example.com", Role: user.RoleViewer})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	h := handlers.NewUsersHandler(&fakeUserStore{}, &fakePendingLister{}, mgr, config.Config{Env: "test"}, nil)
	authMW := middlewares.NewAuthMiddleware(mgr)
	r := gin.New()
	r.POST("/api/users/logout", authMW.RequireAuth(), h.Logout)

	w := postJSON(r, "/api/users/logout", "", &http.Cookie{Name: middlewares.AccessTokenCookie, Value: token})

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
	}
	access := findCookie(t, w, middlewares.AccessTokenCookie)
	if access == nil || access.MaxAge >= 0 {
		t.Fatalf("expected access token cookie to be cleared")
	}
}

func TestUserDetailsHandler(t *testing.T) {
	mgr := testManager()
	token, err := mgr.GenerateAccessToken(user.User{ID: 7, Fullname: "Ada Lovelace", Email: "ada@example.com", Role: user.RoleAdmin})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	h := handlers.NewUsersHandler(&fakeUserStore{}, &fakePendingLister{}, mgr, config.Config{Env: "test"}, nil)
	authMW := middlewares.NewAuthMiddleware(mgr)
	r := gin.New()
	r.GET("/api/users/user-details", authMW.RequireAuth(), h.UserDetails)

	req := httptest.NewRequest(http.MethodGet, "/api/users/user-details", nil)
	req.AddCookie(&http.Cookie{Name: middlewares.AccessTokenCookie, Value: token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Success int `json:"success"`
		Data    struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Success != 1 || resp.Data.ID != 7 || resp.Data.Email != "ada@example.com" || resp.Data.Role != "ADMIN" {
		t.Fatalf("unexpected identity payload: %s", w.Body.String())
	}
}

// Role changes

func TestGrantAdminHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		storeSetup     func(*fakeUserStore)
		wantStatusCode int
		wantRole       user.Role
	}{
		{
			name: "success",
			body: `{"email":"ada@example.com"}`,
			storeSetup: func(f *fakeUserStore) {
				f.emailInUseFn = func(ctx context.Context, email string) (bool, error) { return true, nil }
			},
			wantStatusCode: http.StatusOK,
			wantRole:       user.RoleAdmin,
		},
		{
			name:           "unregistered_email",
			body:           `{"email":"nobody@example.com"}`,
			wantStatusCode: http.StatusUnprocessableEntity,
		},
		{
			name: "superadmin_is_immutable",
			body: `{"email":"root@example.com"}`,
			storeSetup: func(f *fakeUserStore) {
				f.emailInUseFn = func(ctx context.Context, email string) (bool, error) { return true, nil }
				f.superAdminFn = func(ctx context.Context) (user.User, error) {
					return user.User{ID: 1, Email: "root@example.com", Role: user.RoleSuperAdmin}, nil
				}
			},
			wantStatusCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			store := &fakeUserStore{}
			if tt.storeSetup != nil {
				tt.storeSetup(store)
			}

			var gotRole user.Role
			store.updateRoleFn = func(ctx context.Context, email string, role user.Role) error {
				gotRole = role
				return nil
			}

			h := newUsersHandler(store, nil)
			r := gin.New()
			r.POST("/api/users/grant-admin-access", h.GrantAdmin)

			w := postJSON(r, "/api/users/grant-admin-access", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
			if tt.wantStatusCode == http.StatusOK && gotRole != tt.wantRole {
				t.Fatalf("got role %q, want %q", gotRole, tt.wantRole)
			}
		})
	}
}

func TestRevokeAdminHandler(t *testing.T) {
	store := &fakeUserStore{
		emailInUseFn: func(ctx context.Context, email string) (bool, error) { return true, nil },
	}

	var gotRole user.Role
	store.updateRoleFn = func(ctx context.Context, email string, role user.Role) error {
		gotRole = role
		return nil
	}

	h := newUsersHandler(store, nil)
	r := gin.New()
	r.POST("/api/users/revoke-admin-access", h.RevokeAdmin)

	w := postJSON(r, "/api/users/revoke-admin-access", `{"email":"ada@example.com"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
	}
	if gotRole != user.RoleViewer {
		t.Fatalf("revoke must demote to viewer, got %q", gotRole)
	}
}

// Super-admin dashboard

func TestSuperAdminDataHandler(t *testing.T) {
	tests := []struct {
		name           string
		storeSetup     func(*fakeUserStore, *fakePendingLister)
		wantStatusCode int
		wantQueueLen   int
	}{
		{
			name: "success",
			storeSetup: func(f *fakeUserStore, p *fakePendingLister) {
				p.listFn = func(ctx context.Context) ([]article.Article, error) {
					return []article.Article{{ID: 4, Title: "Pending", Status: article.StatusReview}}, nil
				}
				f.listAdminsFn = func(ctx context.Context) ([]user.AdminListing, error) {
					return []user.AdminListing{{Fullname: "Ada Lovelace", Email: "ada@example.com"}}, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantQueueLen:   1,
		},
		{
			name: "queue_error",
			storeSetup: func(f *fakeUserStore, p *fakePendingLister) {
				p.listFn = func(ctx context.Context) ([]article.Article, error) {
					return nil, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			store := &fakeUserStore{}
			pending := &fakePendingLister{}
			if tt.storeSetup != nil {
				tt.storeSetup(store, pending)
			}

			h := newUsersHandler(store, pending)
			r := gin.New()
			r.GET("/api/users/get-superadmin-data", h.SuperAdminData)

			req := httptest.NewRequest(http.MethodGet, "/api/users/get-superadmin-data", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusOK {
				var resp struct {
					Data struct {
						Queue  []article.Article   `json:"articlesToBeApproved"`
						Admins []user.AdminListing `json:"adminUsers"`
					} `json:"data"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("unmarshal response: %v", err)
				}
				if len(resp.Data.Queue) != tt.wantQueueLen {
					t.Fatalf("got %d queued articles, want %d", len(resp.Data.Queue), tt.wantQueueLen)
				}
				if len(resp.Data.Admins) != 1 {
					t.Fatalf("expected the admin roster in the payload: %s", w.Body.String())
				}
			}
		})
	}
}
