package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"civictriage/classifier"
	"civictriage/config"
	"civictriage/controllers"
	"civictriage/lock"
	"civictriage/logger"
	"civictriage/middlewares"
	"civictriage/models"
	"civictriage/priority"
	"civictriage/routes"
	"civictriage/store"
	"civictriage/triage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger depends on the configuration, so this one goes to stderr.
		zap.NewExample().Fatal("load configuration", zap.Error(err))
	}

	log := logger.NewLogger(logger.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
		Service: "civictriage",
	})
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Configuration, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, db, err := config.ConnectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())
	log.Info("connected to MongoDB", zap.String("database", cfg.MongoDBName))

	rdb, err := config.ConnectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()
	log.Info("connected to Redis", zap.String("address", cfg.RedisAddress))

	mongoStore := store.NewMongo(client, db)
	if err := mongoStore.EnsureIndexes(ctx); err != nil {
		return err
	}

	weights := priority.DefaultWeights()
	if cfg.PriorityWeightsFile != "" {
		if weights, err = priority.LoadWeights(cfg.PriorityWeightsFile); err != nil {
			return err
		}
	}
	scorer, err := priority.NewScorer(weights)
	if err != nil {
		return err
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.LockBackend == "redis" {
		locker = lock.NewRedis(rdb, "civictriage:lock:", cfg.IssueLockTTL)
	}

	manager := triage.NewManager(mongoStore, locker, scorer,
		triage.WithStoragePrecision(cfg.GeocodePrecision),
		triage.WithLogger(log.Named("triage")),
	)

	if err := seedAdmin(ctx, mongoStore, cfg, log); err != nil {
		return err
	}

	analyzer := classifier.NewClient(cfg.ClassifierURL, cfg.ClassifierTimeout, log.Named("classifier"))
	assessor := classifier.NewAssessor(analyzer, manager, classifier.AssessorConfig{
		Workers:   cfg.AssessmentWorkers,
		QueueSize: cfg.AssessmentQueue,
		Timeout:   cfg.ClassifierTimeout,
	}, log.Named("assessor"))

	if err := os.MkdirAll(cfg.UploadDir, 0o750); err != nil {
		return err
	}

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middlewares.RequestLogger(log.Named("http")))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.MaxMultipartMemory = cfg.MaxUploadBytes

	ctl := controllers.New(manager, mongoStore, assessor, controllers.Options{
		JWTSecret:        cfg.JWTSecret,
		TokenTTL:         cfg.TokenTTL,
		Production:       cfg.Production(),
		Domain:           cfg.Domain,
		UploadDir:        cfg.UploadDir,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		GeocodePrecision: cfg.GeocodePrecision,
	}, log.Named("controllers"))

	if err := routes.Setup(r, routes.Deps{
		Controller:     ctl,
		JWTSecret:      cfg.JWTSecret,
		Redis:          rdb,
		IssueRateLimit: cfg.IssueRateLimit,
		IssueRateQueue: cfg.IssueRateQueue,
		UploadDir:      cfg.UploadDir,
		Logger:         log.Named("ratelimit"),
	}); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return assessor.Run(gctx)
	})
	g.Go(func() error {
		log.Info("listening", zap.String("address", cfg.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// seedAdmin creates the configured admin account on first start.
func seedAdmin(ctx context.Context, s store.Store, cfg *config.Configuration, log *zap.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	email := strings.ToLower(cfg.AdminEmail)
	if _, err := s.UserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	now := time.Now()
	admin := &models.User{
		Name:      "Administrator",
		Email:     email,
		Password:  cfg.AdminPassword,
		Role:      models.RoleAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := admin.HashPassword(); err != nil {
		return err
	}
	if err := s.InsertUser(ctx, admin); err != nil && !errors.Is(err, store.ErrDuplicate) {
		return err
	}
	log.Info("admin account created", zap.String("email", email))
	return nil
}
