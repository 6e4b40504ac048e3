package routes

import (
	"net/http"

	"civictriage/controllers"
	"civictriage/middlewares"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Deps struct {
	Controller     *controllers.Controller
	JWTSecret      string
	Redis          redis.Cmdable
	IssueRateLimit int
	IssueRateQueue string
	UploadDir      string
	Logger         *zap.Logger
}

// Setup registers every route group on r.
func Setup(r *gin.Engine, d Deps) error {
	if err := controllers.RegisterValidators(); err != nil {
		return err
	}

	auth := middlewares.AuthMiddleware(d.JWTSecret)
	optional := middlewares.OptionalAuth(d.JWTSecret)
	limiter := middlewares.IssueRateLimiter(d.Redis, d.IssueRateQueue, d.IssueRateLimit, d.Logger)

	AuthRoutes(r, d.Controller, auth)
	IssueRoutes(r, d.Controller, auth, optional, limiter)
	EmployeeRoutes(r, d.Controller, auth)
	GeocodeRoutes(r, d.Controller)

	if d.UploadDir != "" {
		r.Static("/uploads", d.UploadDir)
	}
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	return nil
}
