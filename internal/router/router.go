// Package router wires the HTTP routes to their handlers and guards.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-account-service/internal/handler"
	"github.com/iliyamo/user-account-service/internal/middleware"
	"github.com/iliyamo/user-account-service/internal/model"
	"github.com/iliyamo/user-account-service/internal/token"
)

// RegisterRoutes registers the routes that carry no authentication at
// all.  Currently that is only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the credential flows under /v1/auth and the
// email verification routes.  limit is an optional rate-limit
// middleware applied to the unauthenticated register/login endpoints;
// pass nil to disable it.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, users middleware.UserLoader, authCodec *token.Codec, limit echo.MiddlewareFunc) {
	session := middleware.Authenticate(users, authCodec)
	member := middleware.RequirePrivileges(users, authCodec, model.RoleUser|model.RoleAdmin)

	g := e.Group("/v1/auth")
	if limit != nil {
		g.POST("/register", a.Register, limit)
		g.POST("/login", a.Login, limit)
	} else {
		g.POST("/register", a.Register)
		g.POST("/login", a.Login)
	}
	g.GET("/logout", a.Logout, member)
	g.GET("/status", a.Status, session)
	g.PUT("/password_change", a.PasswordChange, session)
	g.PUT("/password_reset", a.PasswordReset)
	g.POST("/password_recovery", a.PasswordRecovery)

	v := e.Group("/v1/email_verification")
	v.GET("/", a.EmailVerificationRequest, session)
	v.GET("/resend", a.EmailVerificationResend, session)
	v.GET("/:token", a.EmailVerificationVerify)
}

// RegisterSocial registers the OAuth login flows and the standalone
// upgrade endpoint.
func RegisterSocial(e *echo.Echo, a *handler.AuthHandler, github, facebook *handler.SocialHandler, users middleware.UserLoader, authCodec *token.Codec) {
	session := middleware.Authenticate(users, authCodec)

	e.GET("/v1/auth/github/login", github.Login)
	e.GET("/v1/auth/github/login/callback", github.Callback)
	e.GET("/v1/auth/facebook/login", facebook.Login)
	e.GET("/v1/auth/facebook/login/callback", facebook.Callback)
	e.PUT("/v1/auth/social/set_standalone_user", a.SetStandaloneUser, session)
}

// RegisterUser registers the self-profile endpoint.  Only GET is
// implemented; the remaining verbs answer 501 so clients get the
// envelope instead of a bare 404.
func RegisterUser(e *echo.Echo, u *handler.UserHandler, users middleware.UserLoader, authCodec *token.Codec) {
	session := middleware.Authenticate(users, authCodec)

	g := e.Group("/v1/user", session)
	g.GET("/", u.Get)
	g.POST("/", u.NotImplemented)
	g.GET("/:user_id", u.NotImplemented)
	g.PUT("/:user_id", u.NotImplemented)
	g.DELETE("/:user_id", u.NotImplemented)
}

// RegisterAdmin registers the ADMIN-gated management routes for users
// and groups.
func RegisterAdmin(e *echo.Echo, au *handler.AdminUserHandler, ag *handler.AdminGroupHandler, users middleware.UserLoader, authCodec *token.Codec) {
	admin := middleware.RequirePrivileges(users, authCodec, model.RoleAdmin)

	ug := e.Group("/v1/users", admin)
	ug.GET("/", au.List)
	ug.POST("/", au.Create)
	ug.GET("/:user_id", au.Get)
	ug.PUT("/:user_id", au.Update)
	ug.DELETE("/:user_id", au.Delete)

	gg := e.Group("/v1/groups", admin)
	gg.GET("/", ag.List)
	gg.POST("/", ag.Create)
	gg.GET("/:group_id", ag.Get)
	gg.PUT("/:group_id", ag.Update)
	gg.DELETE("/:group_id", ag.Delete)
	gg.GET("/:group_id/users", ag.Members)
	gg.POST("/:group_id/users/:user_id", ag.AddMember)
	gg.DELETE("/:group_id/users/:user_id", ag.RemoveMember)
}
