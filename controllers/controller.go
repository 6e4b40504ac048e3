package controllers

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"civictriage/classifier"
	"civictriage/middlewares"
	"civictriage/models"
	"civictriage/store"
	"civictriage/triage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const requestTimeout = 10 * time.Second

var (
	errImageRequired = errors.New("image is required")
	errImageType     = errors.New("only jpeg, png and gif images are allowed")
	errImageTooLarge = errors.New("image is too large")
)

var allowedImageExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true}

// AssessmentQueue accepts issues for background scoring.
type AssessmentQueue interface {
	Submit(job classifier.Job) bool
}

type Options struct {
	JWTSecret        string
	TokenTTL         time.Duration
	Production       bool
	Domain           string
	UploadDir        string
	MaxUploadBytes   int64
	GeocodePrecision int
}

// Controller holds the handlers for every route group.
type Controller struct {
	manager  *triage.Manager
	store    store.Store
	assessor AssessmentQueue
	opts     Options
	log      *zap.Logger
}

func New(manager *triage.Manager, s store.Store, assessor AssessmentQueue, opts Options, log *zap.Logger) *Controller {
	return &Controller{manager: manager, store: s, assessor: assessor, opts: opts, log: log}
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// currentUserID returns the authenticated caller, or false when absent.
func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.GetString(middlewares.UserIDKey))
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

func currentRole(c *gin.Context) models.Role {
	return models.Role(c.GetString(middlewares.RoleKey))
}

// idParam parses a path parameter as an ObjectID and answers 400 on failure.
func idParam(c *gin.Context, name, label string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + label + " ID"})
		return primitive.NilObjectID, false
	}
	return id, true
}

func (ctl *Controller) setAuthCookie(c *gin.Context, token string, maxAge int) {
	domain := ctl.opts.Domain
	// Production is cross-origin; a host-only cookie is required there.
	if ctl.opts.Production {
		domain = ""
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middlewares.AuthCookie,
		Value:    token,
		MaxAge:   maxAge,
		Path:     "/",
		Domain:   domain,
		Secure:   ctl.opts.Production,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
}

// saveImage stores the uploaded file under a random name and returns its
// public URL and path on disk.
func (ctl *Controller) saveImage(c *gin.Context, field string) (url, path string, err error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return "", "", errImageRequired
	}
	if ctl.opts.MaxUploadBytes > 0 && fh.Size > ctl.opts.MaxUploadBytes {
		return "", "", errImageTooLarge
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedImageExt[ext] {
		return "", "", errImageType
	}

	name := uuid.NewString() + ext
	path = filepath.Join(ctl.opts.UploadDir, name)
	if err := c.SaveUploadedFile(fh, path); err != nil {
		return "", "", err
	}
	return "/uploads/" + name, path, nil
}
