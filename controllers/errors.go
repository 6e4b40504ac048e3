package controllers

import (
	"errors"
	"net/http"

	"civictriage/geocode"
	"civictriage/lock"
	"civictriage/middlewares"
	"civictriage/store"
	"civictriage/triage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, triage.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, triage.ErrAlreadyAssigned),
		errors.Is(err, triage.ErrNotAssigned),
		errors.Is(err, triage.ErrClosed),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, triage.ErrMissingProof),
		errors.Is(err, triage.ErrInvalidCategory),
		errors.Is(err, triage.ErrInvalidZone),
		errors.Is(err, triage.ErrInvalidIssue),
		errors.Is(err, geocode.ErrOutOfRange),
		errors.Is(err, geocode.ErrInvalidFormat),
		errors.Is(err, geocode.ErrInvalidSymbol),
		errors.Is(err, errImageRequired),
		errors.Is(err, errImageType),
		errors.Is(err, errImageTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, lock.ErrTimeout):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes err with its mapped status. Server errors are logged
// and answered with a generic message.
func (ctl *Controller) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	if status == http.StatusInternalServerError {
		ctl.log.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("user_id", c.GetString(middlewares.UserIDKey)),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "Something went wrong"})
		return
	}
	if status == http.StatusServiceUnavailable {
		c.JSON(status, gin.H{"error": "Issue is busy, try again"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
