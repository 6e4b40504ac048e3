package classifier

import (
	"context"
	"encoding/base64"
	"os"
	"time"

	"civictriage/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultZone = models.Residential

// Job asks for one issue to be assessed.
type Job struct {
	IssueID   primitive.ObjectID
	ImagePath string
	Category  models.IssueCategory
	Zone      models.Zone
	Lat, Lon  float64
}

// JobFor builds the assessment job for a freshly created issue.
func JobFor(issue *models.Issue, imagePath string) Job {
	return Job{
		IssueID:   issue.ID,
		ImagePath: imagePath,
		Category:  issue.Category,
		Zone:      issue.Zone,
		Lat:       issue.Location.Lat(),
		Lon:       issue.Location.Lon(),
	}
}

type Applier interface {
	ApplyAssessment(ctx context.Context, issueID primitive.ObjectID, analysis models.AIAnalysis) (*models.Issue, error)
}

type AssessorConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// Assessor scores issues in the background. Submitting never blocks; a full
// queue or a failed call leaves the issue at its placeholder priority.
type Assessor struct {
	analyzer  Analyzer
	applier   Applier
	jobs      chan Job
	workers   int
	timeout   time.Duration
	readImage func(path string) ([]byte, error)
	logger    *zap.Logger
}

func NewAssessor(analyzer Analyzer, applier Applier, cfg AssessorConfig, logger *zap.Logger) *Assessor {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Assessor{
		analyzer:  analyzer,
		applier:   applier,
		jobs:      make(chan Job, cfg.QueueSize),
		workers:   cfg.Workers,
		timeout:   cfg.Timeout,
		readImage: os.ReadFile,
		logger:    logger,
	}
}

// Submit queues a job and reports whether it was accepted.
func (a *Assessor) Submit(job Job) bool {
	select {
	case a.jobs <- job:
		return true
	default:
		a.logger.Warn("assessment queue full, issue left unscored", zap.String("issue_id", job.IssueID.Hex()))
		return false
	}
}

// Run processes jobs until ctx is cancelled.
func (a *Assessor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < a.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case job := <-a.jobs:
					a.process(ctx, job)
				}
			}
		})
	}
	return g.Wait()
}

func (a *Assessor) process(ctx context.Context, job Job) {
	log := a.logger.With(zap.String("issue_id", job.IssueID.Hex()))

	var image string
	if job.ImagePath != "" {
		raw, err := a.readImage(job.ImagePath)
		if err != nil {
			log.Error("read issue image", zap.String("path", job.ImagePath), zap.Error(err))
			return
		}
		image = base64.StdEncoding.EncodeToString(raw)
	}

	zone := job.Zone
	if zone == "" {
		zone = defaultZone
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	analysis, err := a.analyzer.Analyze(callCtx, Request{
		Image:     image,
		InfraType: string(job.Category),
		ZoneType:  string(zone),
		Lat:       job.Lat,
		Lng:       job.Lon,
	})
	if err != nil {
		log.Warn("risk assessment failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return
	}

	issue, err := a.applier.ApplyAssessment(ctx, job.IssueID, *analysis)
	if err != nil {
		log.Error("apply assessment", zap.Error(err))
		return
	}
	log.Debug("assessment applied", zap.Int("priority", issue.Priority), zap.Duration("elapsed", time.Since(start)))
}
