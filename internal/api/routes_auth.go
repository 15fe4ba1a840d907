package api

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/peopledeskhq/peopledesk/internal/auth"
	"github.com/peopledeskhq/peopledesk/internal/handlers"
	"github.com/peopledeskhq/peopledesk/internal/middleware"
)

func registerAuthRoutes(engine *gin.Engine, auth *handlers.AuthHandler, securityHandler *handlers.SecurityHandler, tokens *iauth.TokenService) {
	public := engine.Group("/api/auth")
	{
		public.POST("/register", auth.Register)
		public.POST("/login", auth.Login)
		public.POST("/refresh", auth.Refresh)
		public.POST("/request-password-reset", auth.RequestPasswordReset)
		public.POST("/reset-password", auth.ResetPassword)
		public.POST("/request-email-verification", auth.RequestEmailVerification)
		public.POST("/verify-email", auth.VerifyEmail)
	}

	api := engine.Group("/api")
	api.Use(middleware.Auth(tokens))

	api.GET("/auth/me", securityHandler.Me)
	api.POST("/auth/logout", securityHandler.Logout)

	sec := api.Group("/security")
	{
		sec.GET("/sessions", securityHandler.Sessions)
		sec.DELETE("/sessions", securityHandler.RevokeAllSessions)
		sec.GET("/activities", securityHandler.Activities)
	}
}
