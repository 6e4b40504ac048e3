package routes

import (
	"civictriage/controllers"

	"github.com/gin-gonic/gin"
)

// GeocodeRoutes exposes the location grid codec
func GeocodeRoutes(r *gin.Engine, ctl *controllers.Controller) {
	geo := r.Group("/api/geocode")
	{
		geo.GET("", ctl.EncodeLocation)
		geo.GET("/:code", ctl.DecodeLocation)
	}
}
