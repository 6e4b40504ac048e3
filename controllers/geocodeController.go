package controllers

import (
	"net/http"

	"civictriage/geocode"

	"github.com/gin-gonic/gin"
)

// EncodeLocation turns a coordinate into its grid code
func (ctl *Controller) EncodeLocation(c *gin.Context) {
	var q struct {
		Lat *float64 `form:"lat" binding:"required"`
		Lng *float64 `form:"lng" binding:"required"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	code, err := geocode.Encode(*q.Lat, *q.Lng)
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"geocode": code,
		"stored":  geocode.Truncate(code, ctl.opts.GeocodePrecision),
	})
}

// DecodeLocation returns the centre of a code's cell
func (ctl *Controller) DecodeLocation(c *gin.Context) {
	code := c.Param("code")
	lat, lng, err := geocode.Decode(code)
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"geocode": code, "latitude": lat, "longitude": lng})
}
