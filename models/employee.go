package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// Employee is a municipal worker who picks up and completes issues.
type Employee struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name           string               `bson:"name" json:"name"`
	Email          string               `bson:"email" json:"email"`
	Password       string               `bson:"password,omitempty" json:"-"`
	Accepted       bool                 `bson:"accepted" json:"accepted"`
	AssignedIssues []primitive.ObjectID `bson:"assignedIssues" json:"assignedIssues"`
	SolvedIssues   []primitive.ObjectID `bson:"solvedIssues" json:"solvedIssues"`
	IssuesResolved int                  `bson:"issuesResolved" json:"issuesResolved"`
	CreatedAt      time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt" json:"updatedAt"`
}

func (e *Employee) HashPassword() error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(e.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	e.Password = string(hashed)
	return nil
}

func (e *Employee) ComparePassword(candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(e.Password), []byte(candidate)) == nil
}

// HasAssigned reports whether issueID is in the employee's queue.
func (e *Employee) HasAssigned(issueID primitive.ObjectID) bool {
	return containsID(e.AssignedIssues, issueID)
}

// HasSolved reports whether issueID is in the employee's solved list.
func (e *Employee) HasSolved(issueID primitive.ObjectID) bool {
	return containsID(e.SolvedIssues, issueID)
}

// AddAssigned appends issueID to the queue unless already present.
func (e *Employee) AddAssigned(issueID primitive.ObjectID) {
	if !e.HasAssigned(issueID) {
		e.AssignedIssues = append(e.AssignedIssues, issueID)
	}
}

// RemoveAssigned drops issueID from the queue, keeping order.
func (e *Employee) RemoveAssigned(issueID primitive.ObjectID) {
	out := e.AssignedIssues[:0]
	for _, id := range e.AssignedIssues {
		if id != issueID {
			out = append(out, id)
		}
	}
	e.AssignedIssues = out
}

// AddSolved records issueID as solved and bumps the counter. It returns
// false when the issue was already recorded.
func (e *Employee) AddSolved(issueID primitive.ObjectID) bool {
	if e.HasSolved(issueID) {
		return false
	}
	e.SolvedIssues = append(e.SolvedIssues, issueID)
	e.IssuesResolved++
	return true
}

// Clone returns a deep copy of the employee.
func (e *Employee) Clone() *Employee {
	c := *e
	c.AssignedIssues = append([]primitive.ObjectID(nil), e.AssignedIssues...)
	c.SolvedIssues = append([]primitive.ObjectID(nil), e.SolvedIssues...)
	return &c
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
