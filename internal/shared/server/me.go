package server

import (
	"github.com/gin-gonic/gin"

	"atsense-api/internal/shared/server/middleware"
	"atsense-api/internal/shared/server/respond"
)

func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", meHandler)
}

// meHandler echoes the caller's identity; guests get their guest id back.
func meHandler(c *gin.Context) {
	response := gin.H{
		"userId":  middleware.UserIDFromContext(c),
		"isGuest": middleware.IsGuest(c),
	}
	if email := middleware.UserEmailFromContext(c); email != "" {
		response["email"] = email
	}
	if name := middleware.UserNameFromContext(c); name != "" {
		response["name"] = name
	}
	respond.Private(c, response)
}
