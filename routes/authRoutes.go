package routes

import (
	"civictriage/controllers"

	"github.com/gin-gonic/gin"
)

// AuthRoutes sets up the citizen authentication routes
func AuthRoutes(r *gin.Engine, ctl *controllers.Controller, auth gin.HandlerFunc) {
	group := r.Group("/api/auth")
	{
		group.POST("/register", ctl.RegisterUser)
		group.POST("/login", ctl.LoginUser)
		group.POST("/logout", ctl.Logout)
		group.GET("/me", auth, ctl.GetMe)
	}
}
