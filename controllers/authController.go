package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"civictriage/models"
	"civictriage/store"
	authUtils "civictriage/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func userResponse(u *models.User) gin.H {
	return gin.H{
		"id":             u.ID,
		"name":           u.Name,
		"email":          u.Email,
		"role":           u.Role,
		"issuesReported": u.IssuesReported,
		"karma":          u.Karma,
		"createdAt":      u.CreatedAt,
	}
}

// RegisterUser handles citizen registration
func (ctl *Controller) RegisterUser(c *gin.Context) {
	var input struct {
		Name     string `json:"name" binding:"required,max=50"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	now := time.Now()
	user := models.User{
		Name:      strings.TrimSpace(input.Name),
		Email:     strings.ToLower(input.Email),
		Password:  input.Password,
		Role:      models.RoleCitizen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.HashPassword(); err != nil {
		ctl.log.Error("hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	if err := ctl.store.InsertUser(ctx, &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "User with this email already exists"})
			return
		}
		ctl.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, userResponse(&user))
}

// LoginUser checks credentials and sets the auth cookie
func (ctl *Controller) LoginUser(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := ctl.store.UserByEmail(ctx, strings.ToLower(input.Email))
	if err != nil || !user.ComparePassword(input.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := authUtils.GenerateAndSetToken(ctl.opts.JWTSecret, user.ID.Hex(), string(user.Role), ctl.opts.TokenTTL)
	if err != nil {
		ctl.log.Error("generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}
	ctl.setAuthCookie(c, token, int(ctl.opts.TokenTTL.Seconds()))

	resp := userResponse(user)
	resp["token"] = token
	c.JSON(http.StatusOK, resp)
}

// GetMe returns the authenticated citizen or admin
func (ctl *Controller) GetMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := ctl.store.User(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		ctl.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

// Logout clears the auth cookie
func (ctl *Controller) Logout(c *gin.Context) {
	ctl.setAuthCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
