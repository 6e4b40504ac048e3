package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"civictriage/models"
	"civictriage/store"
	authUtils "civictriage/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// RegisterEmployee creates an employee account awaiting acceptance
func (ctl *Controller) RegisterEmployee(c *gin.Context) {
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
	emp := models.Employee{
		Name:           strings.TrimSpace(input.Name),
		Email:          strings.ToLower(input.Email),
		Password:       input.Password,
		AssignedIssues: []primitive.ObjectID{},
		SolvedIssues:   []primitive.ObjectID{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := emp.HashPassword(); err != nil {
		ctl.log.Error("hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}
	if err := ctl.store.InsertEmployee(ctx, &emp); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Employee with this email already exists"})
			return
		}
		ctl.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, emp)
}

// LoginEmployee signs in an accepted employee
func (ctl *Controller) LoginEmployee(c *gin.Context) {
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

	emp, err := ctl.store.EmployeeByEmail(ctx, strings.ToLower(input.Email))
	if err != nil || !emp.ComparePassword(input.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if !emp.Accepted {
		c.JSON(http.StatusForbidden, gin.H{"error": "Employee has not been accepted yet"})
		return
	}

	token, err := authUtils.GenerateAndSetToken(ctl.opts.JWTSecret, emp.ID.Hex(), string(models.RoleEmployee), ctl.opts.TokenTTL)
	if err != nil {
		ctl.log.Error("generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}
	ctl.setAuthCookie(c, token, int(ctl.opts.TokenTTL.Seconds()))

	c.JSON(http.StatusOK, gin.H{"employee": emp, "token": token})
}

// GetEmployees lists every employee
func (ctl *Controller) GetEmployees(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	employees, err := ctl.store.Employees(ctx)
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	if employees == nil {
		employees = []models.Employee{}
	}
	c.JSON(http.StatusOK, employees)
}

// GetEmployee returns an employee with their assigned issues expanded
func (ctl *Controller) GetEmployee(c *gin.Context) {
	empID, ok := ctl.employeeParam(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	emp, err := ctl.store.Employee(ctx, empID)
	if err != nil {
		ctl.respondError(c, err)
		return
	}

	assigned := make([]models.Issue, 0, len(emp.AssignedIssues))
	for _, id := range emp.AssignedIssues {
		issue, err := ctl.store.Issue(ctx, id)
		if err != nil {
			ctl.log.Warn("assigned issue missing", zap.String("employee_id", empID.Hex()), zap.String("issue_id", id.Hex()), zap.Error(err))
			continue
		}
		assigned = append(assigned, *issue)
	}

	c.JSON(http.StatusOK, gin.H{"employee": emp, "assignedIssues": assigned})
}

// GetCurrentEmployee is GetEmployee for the signed-in employee
func (ctl *Controller) GetCurrentEmployee(c *gin.Context) {
	id, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	c.Params = append(c.Params, gin.Param{Key: "id", Value: id.Hex()})
	ctl.GetEmployee(c)
}

// AcceptEmployee lets an employee sign in and take work
func (ctl *Controller) AcceptEmployee(c *gin.Context) {
	ctl.setAccepted(c, true)
}

// RevokeEmployee withdraws acceptance
func (ctl *Controller) RevokeEmployee(c *gin.Context) {
	ctl.setAccepted(c, false)
}

func (ctl *Controller) setAccepted(c *gin.Context, accepted bool) {
	empID, ok := idParam(c, "id", "employee")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var (
		emp *models.Employee
		err error
	)
	if accepted {
		emp, err = ctl.manager.AcceptEmployee(ctx, empID)
	} else {
		emp, err = ctl.manager.RevokeEmployee(ctx, empID)
	}
	if err != nil {
		ctl.respondError(c, err)
		return
	}

	message := "Employee accepted successfully"
	if !accepted {
		message = "Employee access revoked"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "employee": emp})
}

// AssignIssue gives an issue to the employee
func (ctl *Controller) AssignIssue(c *gin.Context) {
	empID, issueID, ok := ctl.workParams(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	emp, err := ctl.store.Employee(ctx, empID)
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	if !emp.Accepted {
		c.JSON(http.StatusForbidden, gin.H{"error": "Employee has not been accepted yet"})
		return
	}

	issue, err := ctl.manager.Assign(ctx, issueID, empID)
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Employee assigned successfully", "issue": issue})
}

// StartIssue marks the employee's issue as in progress
func (ctl *Controller) StartIssue(c *gin.Context) {
	ctl.transition(c, "Work started", ctl.manager.Start)
}

// UnassignIssue returns the issue to the open pool
func (ctl *Controller) UnassignIssue(c *gin.Context) {
	ctl.transition(c, "Employee unassigned", ctl.manager.Unassign)
}

// CompleteIssue closes the issue as done by its assignee
func (ctl *Controller) CompleteIssue(c *gin.Context) {
	ctl.transition(c, "Issue marked as completed", ctl.manager.Complete)
}

type transitionFunc func(ctx context.Context, issueID, employeeID primitive.ObjectID) (*models.Issue, error)

func (ctl *Controller) transition(c *gin.Context, message string, fn transitionFunc) {
	empID, issueID, ok := ctl.workParams(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	issue, err := fn(ctx, issueID, empID)
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "issue": issue})
}

// employeeParam parses :id and checks the caller is that employee or an admin.
func (ctl *Controller) employeeParam(c *gin.Context) (primitive.ObjectID, bool) {
	empID, ok := idParam(c, "id", "employee")
	if !ok {
		return empID, false
	}
	if currentRole(c) == models.RoleAdmin {
		return empID, true
	}
	if self, ok := currentUserID(c); ok && currentRole(c) == models.RoleEmployee && self == empID {
		return empID, true
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized for this employee"})
	return empID, false
}

func (ctl *Controller) workParams(c *gin.Context) (empID, issueID primitive.ObjectID, ok bool) {
	if empID, ok = ctl.employeeParam(c); !ok {
		return
	}
	issueID, ok = idParam(c, "issueId", "issue")
	return
}
