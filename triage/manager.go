// Package triage owns the issue lifecycle: creation, assignment, completion,
// resolution and scoring, kept consistent with each employee's workload.
package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"civictriage/geocode"
	"civictriage/lock"
	"civictriage/models"
	"civictriage/priority"
	"civictriage/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	reportKarma  = 10
	upvoteKarma  = 5
	resolveKarma = 15
)

// NewIssue is what a citizen submits.
type NewIssue struct {
	ReportedBy  primitive.ObjectID
	Title       string
	Description string
	Category    models.IssueCategory
	Latitude    float64
	Longitude   float64
	Address     string
	Zone        models.Zone
	ImageURLs   []string
}

// Proof is the evidence supplied with a resolution.
type Proof struct {
	Description    string
	BeforeImageURL string
	AfterImageURL  string
}

type Manager struct {
	store     store.Store
	locker    lock.Locker
	scorer    *priority.Scorer
	precision int
	now       func() time.Time
	log       *zap.Logger
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithStoragePrecision sets how many geocode symbols are persisted.
func WithStoragePrecision(symbols int) Option {
	return func(m *Manager) { m.precision = symbols }
}

func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) { m.log = log }
}

func NewManager(s store.Store, l lock.Locker, scorer *priority.Scorer, opts ...Option) *Manager {
	m := &Manager{
		store:     s,
		locker:    l,
		scorer:    scorer,
		precision: geocode.StoragePrecision,
		now:       time.Now,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create stores a new open, unassigned issue with a pending priority.
func (m *Manager) Create(ctx context.Context, in NewIssue) (*models.Issue, error) {
	if !in.Category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, in.Category)
	}
	if in.Zone != "" && !in.Zone.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidZone, in.Zone)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidIssue)
	}

	code, err := geocode.Encode(in.Latitude, in.Longitude)
	if err != nil {
		return nil, err
	}

	now := m.now()
	issue := &models.Issue{
		ID:          primitive.NewObjectID(),
		ReportedBy:  in.ReportedBy,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		Location:    models.NewGeoPoint(in.Latitude, in.Longitude),
		Geocode:     geocode.Truncate(code, m.precision),
		Address:     in.Address,
		ImageURLs:   append([]string{}, in.ImageURLs...),
		Zone:        in.Zone,
		Status:      models.StatusOpen,
		Priority:    priority.Placeholder,
		Upvotes:     []primitive.ObjectID{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := m.store.InsertIssue(ctx, issue); err != nil {
		return nil, fmt.Errorf("insert issue: %w", err)
	}

	if !in.ReportedBy.IsZero() {
		if err := m.store.IncUserCounters(ctx, in.ReportedBy, 1, reportKarma); err != nil {
			m.log.Warn("reporter counters not updated", zap.String("user_id", in.ReportedBy.Hex()), zap.Error(err))
		}
	}

	m.log.Info("issue created",
		zap.String("issue_id", issue.ID.Hex()),
		zap.String("category", string(issue.Category)),
		zap.String("geocode", issue.Geocode),
	)
	return issue, nil
}

// Assign gives an issue to an employee. Assigning to the current assignee
// again is allowed and leaves the queue unchanged.
func (m *Manager) Assign(ctx context.Context, issueID, employeeID primitive.ObjectID) (*models.Issue, error) {
	var out *models.Issue
	err := m.mutateIssue(ctx, issueID, func(ctx context.Context, tx store.Tx) error {
		issue, emp, err := loadPair(ctx, tx, issueID, employeeID)
		if err != nil {
			return err
		}
		if issue.Status.Terminal() {
			return fmt.Errorf("%w: %s", ErrClosed, issue.Status)
		}
		if issue.AssignedTo != nil && *issue.AssignedTo != employeeID {
			return ErrAlreadyAssigned
		}

		issue.Status = models.StatusAssigned
		issue.AssignedTo = &emp.ID
		issue.UpdatedAt = m.now()
		emp.AddAssigned(issue.ID)
		emp.UpdatedAt = issue.UpdatedAt

		if err := saveBoth(ctx, tx, issue, emp); err != nil {
			return err
		}
		out = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("issue assigned", zap.String("issue_id", issueID.Hex()), zap.String("employee_id", employeeID.Hex()))
	return out, nil
}

// Start marks an assigned issue as being worked on by its assignee.
func (m *Manager) Start(ctx context.Context, issueID, employeeID primitive.ObjectID) (*models.Issue, error) {
	var out *models.Issue
	err := m.mutateIssue(ctx, issueID, func(ctx context.Context, tx store.Tx) error {
		issue, _, err := loadPair(ctx, tx, issueID, employeeID)
		if err != nil {
			return err
		}
		if !issue.IsAssignedTo(employeeID) {
			return ErrNotAssigned
		}
		if issue.Status.Terminal() {
			return fmt.Errorf("%w: %s", ErrClosed, issue.Status)
		}

		issue.Status = models.StatusInProgress
		issue.UpdatedAt = m.now()
		if err := tx.SaveIssue(ctx, issue); err != nil {
			return err
		}
		out = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("issue started", zap.String("issue_id", issueID.Hex()), zap.String("employee_id", employeeID.Hex()))
	return out, nil
}

// Unassign returns an issue to the open pool.
func (m *Manager) Unassign(ctx context.Context, issueID, employeeID primitive.ObjectID) (*models.Issue, error) {
	var out *models.Issue
	err := m.mutateIssue(ctx, issueID, func(ctx context.Context, tx store.Tx) error {
		issue, emp, err := loadPair(ctx, tx, issueID, employeeID)
		if err != nil {
			return err
		}
		if !issue.IsAssignedTo(employeeID) {
			return ErrNotAssigned
		}
		if issue.Status.Terminal() {
			return fmt.Errorf("%w: %s", ErrClosed, issue.Status)
		}

		issue.Status = models.StatusOpen
		issue.AssignedTo = nil
		issue.UpdatedAt = m.now()
		emp.RemoveAssigned(issue.ID)
		emp.UpdatedAt = issue.UpdatedAt

		if err := saveBoth(ctx, tx, issue, emp); err != nil {
			return err
		}
		out = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("issue unassigned", zap.String("issue_id", issueID.Hex()), zap.String("employee_id", employeeID.Hex()))
	return out, nil
}

// Complete closes an issue on behalf of its assignee and moves it from the
// employee's queue to their solved list.
func (m *Manager) Complete(ctx context.Context, issueID, employeeID primitive.ObjectID) (*models.Issue, error) {
	var out *models.Issue
	err := m.mutateIssue(ctx, issueID, func(ctx context.Context, tx store.Tx) error {
		issue, emp, err := loadPair(ctx, tx, issueID, employeeID)
		if err != nil {
			return err
		}
		if !issue.IsAssignedTo(employeeID) {
			return ErrNotAssigned
		}
		if issue.Status.Terminal() {
			return fmt.Errorf("%w: %s", ErrClosed, issue.Status)
		}

		now := m.now()
		issue.Status = models.StatusCompleted
		issue.AssignedTo = nil
		issue.ResolvedProof = &models.ResolvedProof{ResolvedAt: now, ResolvedBy: emp.ID}
		issue.UpdatedAt = now

		emp.RemoveAssigned(issue.ID)
		emp.AddSolved(issue.ID)
		emp.UpdatedAt = now

		if err := saveBoth(ctx, tx, issue, emp); err != nil {
			return err
		}
		out = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("issue completed", zap.String("issue_id", issueID.Hex()), zap.String("employee_id", employeeID.Hex()))
	return out, nil
}

// Resolve closes an issue on evidence from any actor. It leaves the
// assignment and every employee queue untouched.
func (m *Manager) Resolve(ctx context.Context, issueID, actorID primitive.ObjectID, proof Proof) (*models.Issue, error) {
	if strings.TrimSpace(proof.AfterImageURL) == "" {
		return nil, ErrMissingProof
	}

	var out *models.Issue
	err := m.mutateIssue(ctx, issueID, func(ctx context.Context, tx store.Tx) error {
		issue, err := loadIssue(ctx, tx, issueID)
		if err != nil {
			return err
		}
		if issue.Status.Terminal() {
			return fmt.Errorf("%w: %s", ErrClosed, issue.Status)
		}

		now := m.now()
		issue.Status = models.StatusResolved
		issue.ResolvedProof = &models.ResolvedProof{
			BeforeImageURL: proof.BeforeImageURL,
			AfterImageURL:  proof.AfterImageURL,
			Description:    strings.TrimSpace(proof.Description),
			ResolvedAt:     now,
			ResolvedBy:     actorID,
		}
		issue.UpdatedAt = now
		if err := tx.SaveIssue(ctx, issue); err != nil {
			return err
		}
		out = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Employees are not users; only citizen resolvers earn karma.
	if err := m.store.IncUserCounters(ctx, actorID, 0, resolveKarma); err != nil && !errors.Is(err, store.ErrNotFound) {
		m.log.Warn("resolver karma not updated", zap.String("user_id", actorID.Hex()), zap.Error(err))
	}
	m.log.Info("issue resolved", zap.String("issue_id", issueID.Hex()), zap.String("actor_id", actorID.Hex()))
	return out, nil
}

// ApplyAssessment attaches a classifier result and stores the derived
// priority. Applying the same result twice yields the same priority.
func (m *Manager) ApplyAssessment(ctx context.Context, issueID primitive.ObjectID, analysis models.AIAnalysis) (*models.Issue, error) {
	var out *models.Issue
	err := m.mutateIssue(ctx, issueID, func(ctx context.Context, tx store.Tx) error {
		issue, err := loadIssue(ctx, tx, issueID)
		if err != nil {
			return err
		}
		if analysis.ReceivedAt.IsZero() {
			analysis.ReceivedAt = m.now()
		}
		issue.AIAnalysis = &analysis
		issue.Priority = m.scorer.Score(analysis.RiskLevel, analysis.InfraType(), string(issue.Zone))
		issue.PriorityScored = true
		issue.UpdatedAt = m.now()
		if err := tx.SaveIssue(ctx, issue); err != nil {
			return err
		}
		out = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("issue scored",
		zap.String("issue_id", issueID.Hex()),
		zap.String("risk_level", analysis.RiskLevel),
		zap.Int("priority", out.Priority),
	)
	return out, nil
}

// ToggleUpvote adds or removes a citizen's upvote. It reports whether the
// vote is now present.
func (m *Manager) ToggleUpvote(ctx context.Context, issueID, userID primitive.ObjectID) (*models.Issue, bool, error) {
	var (
		out   *models.Issue
		voted bool
	)
	err := m.mutateIssue(ctx, issueID, func(ctx context.Context, tx store.Tx) error {
		issue, err := loadIssue(ctx, tx, issueID)
		if err != nil {
			return err
		}
		voted = issue.ToggleUpvote(userID)
		issue.UpdatedAt = m.now()
		if err := tx.SaveIssue(ctx, issue); err != nil {
			return err
		}
		out = issue
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	karma := upvoteKarma
	if !voted {
		karma = -upvoteKarma
	}
	if !out.ReportedBy.IsZero() {
		if err := m.store.IncUserCounters(ctx, out.ReportedBy, 0, karma); err != nil {
			m.log.Warn("reporter karma not updated", zap.String("user_id", out.ReportedBy.Hex()), zap.Error(err))
		}
	}
	return out, voted, nil
}

// AcceptEmployee opens the service gate for an employee.
func (m *Manager) AcceptEmployee(ctx context.Context, employeeID primitive.ObjectID) (*models.Employee, error) {
	return m.setAccepted(ctx, employeeID, true)
}

// RevokeEmployee closes the service gate. Issues already assigned stay
// assigned; use Unassign to release them.
func (m *Manager) RevokeEmployee(ctx context.Context, employeeID primitive.ObjectID) (*models.Employee, error) {
	return m.setAccepted(ctx, employeeID, false)
}

func (m *Manager) setAccepted(ctx context.Context, employeeID primitive.ObjectID, accepted bool) (*models.Employee, error) {
	unlock, err := m.locker.Lock(ctx, "employee:"+employeeID.Hex())
	if err != nil {
		return nil, fmt.Errorf("lock employee %s: %w", employeeID.Hex(), err)
	}
	defer unlock()

	var out *models.Employee
	err = m.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		emp, err := loadEmployee(ctx, tx, employeeID)
		if err != nil {
			return err
		}
		emp.Accepted = accepted
		emp.UpdatedAt = m.now()
		if err := tx.SaveEmployee(ctx, emp); err != nil {
			return err
		}
		out = emp
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("employee gate changed", zap.String("employee_id", employeeID.Hex()), zap.Bool("accepted", accepted))
	return out, nil
}

// mutateIssue runs fn under the per-issue lock inside one transaction.
func (m *Manager) mutateIssue(ctx context.Context, issueID primitive.ObjectID, fn func(ctx context.Context, tx store.Tx) error) error {
	unlock, err := m.locker.Lock(ctx, "issue:"+issueID.Hex())
	if err != nil {
		return fmt.Errorf("lock issue %s: %w", issueID.Hex(), err)
	}
	defer unlock()
	return m.store.RunInTx(ctx, fn)
}

func loadIssue(ctx context.Context, tx store.Tx, id primitive.ObjectID) (*models.Issue, error) {
	issue, err := tx.Issue(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: issue %s", ErrNotFound, id.Hex())
	}
	return issue, err
}

func loadEmployee(ctx context.Context, tx store.Tx, id primitive.ObjectID) (*models.Employee, error) {
	emp, err := tx.Employee(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: employee %s", ErrNotFound, id.Hex())
	}
	return emp, err
}

func loadPair(ctx context.Context, tx store.Tx, issueID, employeeID primitive.ObjectID) (*models.Issue, *models.Employee, error) {
	issue, err := loadIssue(ctx, tx, issueID)
	if err != nil {
		return nil, nil, err
	}
	emp, err := loadEmployee(ctx, tx, employeeID)
	if err != nil {
		return nil, nil, err
	}
	return issue, emp, nil
}

func saveBoth(ctx context.Context, tx store.Tx, issue *models.Issue, emp *models.Employee) error {
	if err := tx.SaveIssue(ctx, issue); err != nil {
		return err
	}
	return tx.SaveEmployee(ctx, emp)
}
