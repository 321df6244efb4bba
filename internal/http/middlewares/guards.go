package middlewares

import (
	"context"
	"net/http"
	"strconv"

	"github.com/blogward/blogward/internal/domain/article"
	"github.com/blogward/blogward/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// The guards below compose into ordered chains on each route. Every guard is
// a predicate over (identity, resolved article) that either calls Next or
// aborts with a bare status, so the first failure short-circuits the chain.

type ArticleResolver interface {
	GetByID(ctx context.Context, id int64) (article.Article, error)
}

// RequireSuperAdmin gates the moderation and role-management endpoints.
func RequireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFromContext(c)
		if !ok || identity.Role != user.RoleSuperAdmin {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

// ForbidViewer gates article creation: viewers read, they never author.
func ForbidViewer() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFromContext(c)
		if !ok || identity.Role == user.RoleViewer {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

// ResolveArticle looks the target article up exactly once and stashes it for
// the guards and handler behind it. Missing id or unparseable id is a 404,
// same as an absent row.
func ResolveArticle(repo ArticleResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}

		a, err := repo.GetByID(c.Request.Context(), id)
		if err != nil {
			if err == article.ErrNotFound {
				c.AbortWithStatus(http.StatusNotFound)
				return
			}
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		c.Set(ctxArticleKey, a)
		c.Next()
	}
}

// RequireArticleOwner admits only the resolved article's author (edit and
// delete).
func RequireArticleOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFromContext(c)
		a, resolved := ArticleFromContext(c)
		if !ok || !resolved || a.AuthorID != identity.UserID {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

// RequireOwnerAdminOrSuperAdmin gates the publication history: the authoring
// admin or the super-admin, nobody else.
func RequireOwnerAdminOrSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFromContext(c)
		a, resolved := ArticleFromContext(c)
		if !ok || !resolved {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		ownerAdmin := a.AuthorID == identity.UserID && identity.Role == user.RoleAdmin
		if ownerAdmin || identity.Role == user.RoleSuperAdmin {
			c.Next()
			return
		}
		c.AbortWithStatus(http.StatusForbidden)
	}
}

// RequireArticleReadable gates the detail view: approved articles are public
// to any authenticated reader, unapproved ones only to their author or the
// super-admin.
func RequireArticleReadable() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFromContext(c)
		a, resolved := ArticleFromContext(c)
		if !ok || !resolved {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		if a.Status == article.StatusApproved {
			c.Next()
			return
		}
		if a.AuthorID == identity.UserID || identity.Role == user.RoleSuperAdmin {
			c.Next()
			return
		}
		c.AbortWithStatus(http.StatusForbidden)
	}
}

func ArticleFromContext(c *gin.Context) (article.Article, bool) {
	v, ok := c.Get(ctxArticleKey)
	if !ok {
		return article.Article{}, false
	}
	a, ok := v.(article.Article)
	return a, ok
}
