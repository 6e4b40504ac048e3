// Package store persists issues, employees and users.
package store

import (
	"context"
	"errors"

	"civictriage/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Sort orders accepted by ListIssues.
const (
	SortNewest   = "newest"
	SortOldest   = "oldest"
	SortUpvotes  = "upvotes"
	SortPriority = "priority"
)

// Near restricts a listing to issues within RadiusMeters of a point.
type Near struct {
	Lat, Lon     float64
	RadiusMeters float64
}

type IssueFilter struct {
	Category   models.IssueCategory
	Statuses   []models.IssueStatus
	ReportedBy *primitive.ObjectID
	Near       *Near
	Sort       string
	Limit      int64
}

// Tx is the view of the store inside a transaction. Writes made through a Tx
// become visible together or not at all.
type Tx interface {
	Issue(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	Employee(ctx context.Context, id primitive.ObjectID) (*models.Employee, error)
	SaveIssue(ctx context.Context, issue *models.Issue) error
	SaveEmployee(ctx context.Context, employee *models.Employee) error
}

type Store interface {
	InsertIssue(ctx context.Context, issue *models.Issue) error
	Issue(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	ListIssues(ctx context.Context, filter IssueFilter) ([]models.Issue, error)

	InsertEmployee(ctx context.Context, employee *models.Employee) error
	Employee(ctx context.Context, id primitive.ObjectID) (*models.Employee, error)
	EmployeeByEmail(ctx context.Context, email string) (*models.Employee, error)
	Employees(ctx context.Context) ([]models.Employee, error)

	InsertUser(ctx context.Context, user *models.User) error
	User(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	IncUserCounters(ctx context.Context, id primitive.ObjectID, reported, karma int) error

	// RunInTx runs fn as one atomic unit. fn may be invoked more than once
	// when the backend retries a conflicting transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
