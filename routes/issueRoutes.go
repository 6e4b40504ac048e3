package routes

import (
	"civictriage/controllers"
	"civictriage/middlewares"
	"civictriage/models"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes
func IssueRoutes(r *gin.Engine, ctl *controllers.Controller, auth, optional, limiter gin.HandlerFunc) {
	issue := r.Group("/api/issues")
	{
		issue.POST("", auth, middlewares.RequireRole(string(models.RoleCitizen), string(models.RoleAdmin)), limiter, ctl.CreateIssue)
		issue.GET("", optional, ctl.GetAllIssues)
		issue.GET("/ranked", optional, ctl.RankedIssues)
		issue.GET("/recent", ctl.RecentIssues)
		issue.GET("/analytics", ctl.GetIssueAnalytics)
		issue.GET("/mine", auth, ctl.GetMyIssues)
		issue.GET("/:id", optional, ctl.GetIssue)
		issue.POST("/:id/upvote", auth, ctl.UpvoteIssue)
		issue.POST("/:id/resolve", auth, ctl.ResolveIssue)
	}
}
