package routes

import (
	"civictriage/controllers"
	"civictriage/middlewares"
	"civictriage/models"

	"github.com/gin-gonic/gin"
)

// EmployeeRoutes sets up employee accounts and the work lifecycle
func EmployeeRoutes(r *gin.Engine, ctl *controllers.Controller, auth gin.HandlerFunc) {
	admin := middlewares.RequireRole(string(models.RoleAdmin))
	staff := middlewares.RequireRole(string(models.RoleEmployee), string(models.RoleAdmin))

	employees := r.Group("/api/employees")
	{
		employees.POST("/register", ctl.RegisterEmployee)
		employees.POST("/login", ctl.LoginEmployee)
		employees.GET("/me", auth, middlewares.RequireRole(string(models.RoleEmployee)), ctl.GetCurrentEmployee)
		employees.GET("", auth, admin, ctl.GetEmployees)
		employees.GET("/:id", auth, staff, ctl.GetEmployee)
		employees.PUT("/:id/accept", auth, admin, ctl.AcceptEmployee)
		employees.PUT("/:id/revoke", auth, admin, ctl.RevokeEmployee)

		work := employees.Group("/:id/issues/:issueId", auth, staff)
		work.PUT("/assign", ctl.AssignIssue)
		work.PUT("/start", ctl.StartIssue)
		work.PUT("/unassign", ctl.UnassignIssue)
		work.PUT("/complete", ctl.CompleteIssue)
	}
}
