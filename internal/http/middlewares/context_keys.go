package middlewares

const (
	ctxIdentityKey    = "auth.identity"
	ctxPendingUserKey = "auth.pendingUserID"
	ctxArticleKey     = "article.resolved"
	CtxRequestID      = "request_id"
)

const (
	// cookie names are part of the client contract, do not rename
	AccessTokenCookie = "access_token"
	TwoFATokenCookie  = "two_fa_token"
)
