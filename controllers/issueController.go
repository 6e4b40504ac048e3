package controllers

import (
	"errors"
	"net/http"
	"os"
	"sort"
	"time"

	"civictriage/classifier"
	"civictriage/models"
	"civictriage/store"
	"civictriage/triage"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const recentLimit = 19

// issueView adds the caller's upvote state to an issue.
type issueView struct {
	models.Issue
	UpvoteCount    int  `json:"upvoteCount"`
	UserHasUpvoted bool `json:"userHasUpvoted"`
}

func viewOf(issue *models.Issue, viewer *primitive.ObjectID) issueView {
	v := issueView{Issue: *issue, UpvoteCount: len(issue.Upvotes)}
	if viewer != nil {
		v.UserHasUpvoted = issue.HasUpvote(*viewer)
	}
	return v
}

func viewsOf(issues []models.Issue, viewer *primitive.ObjectID) []issueView {
	out := make([]issueView, 0, len(issues))
	for i := range issues {
		out = append(out, viewOf(&issues[i], viewer))
	}
	return out
}

func viewer(c *gin.Context) *primitive.ObjectID {
	if id, ok := currentUserID(c); ok {
		return &id
	}
	return nil
}

// CreateIssue stores a reported issue and queues it for risk assessment
func (ctl *Controller) CreateIssue(c *gin.Context) {
	reporter, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input struct {
		Title       string   `form:"title" binding:"required,max=100"`
		Description string   `form:"description" binding:"required,max=500"`
		Category    string   `form:"category" binding:"required,issue_category"`
		Latitude    *float64 `form:"latitude" binding:"required"`
		Longitude   *float64 `form:"longitude" binding:"required"`
		Address     string   `form:"address" binding:"max=300"`
		Zone        string   `form:"zone" binding:"omitempty,zone"`
	}
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	imageURL, imagePath, err := ctl.saveImage(c, "image")
	if err != nil {
		ctl.respondError(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	issue, err := ctl.manager.Create(ctx, triage.NewIssue{
		ReportedBy:  reporter,
		Title:       input.Title,
		Description: input.Description,
		Category:    models.IssueCategory(input.Category),
		Latitude:    *input.Latitude,
		Longitude:   *input.Longitude,
		Address:     input.Address,
		Zone:        models.Zone(input.Zone),
		ImageURLs:   []string{imageURL},
	})
	if err != nil {
		if rmErr := os.Remove(imagePath); rmErr != nil {
			ctl.log.Warn("remove orphaned upload", zap.String("path", imagePath), zap.Error(rmErr))
		}
		ctl.respondError(c, err)
		return
	}

	ctl.assessor.Submit(classifier.JobFor(issue, imagePath))

	c.JSON(http.StatusCreated, gin.H{
		"message": "Issue created successfully",
		"issue":   viewOf(issue, &reporter),
	})
}

// GetAllIssues lists issues, optionally near a point
func (ctl *Controller) GetAllIssues(c *gin.Context) {
	var q struct {
		Lat      *float64 `form:"lat"`
		Lng      *float64 `form:"lng"`
		Radius   float64  `form:"radius,default=10" binding:"gt=0,lte=1000"`
		Category string   `form:"category"`
		Status   string   `form:"status"`
		SortBy   string   `form:"sortBy"`
		Limit    int64    `form:"limit,default=100" binding:"min=1,max=100"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filter := store.IssueFilter{Limit: q.Limit}
	if q.Category != "" && q.Category != "all" {
		if !models.IssueCategory(q.Category).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
			return
		}
		filter.Category = models.IssueCategory(q.Category)
	}
	if q.Status != "" && q.Status != "all" {
		if !models.IssueStatus(q.Status).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		filter.Statuses = []models.IssueStatus{models.IssueStatus(q.Status)}
	}
	if q.Lat != nil && q.Lng != nil {
		filter.Near = &store.Near{Lat: *q.Lat, Lon: *q.Lng, RadiusMeters: q.Radius * 1000}
	}

	switch q.SortBy {
	case store.SortNewest, store.SortOldest, store.SortUpvotes, store.SortPriority:
		filter.Sort = q.SortBy
	default:
		// Nearby listings come back closest first unless a sort is asked for.
		if filter.Near == nil {
			filter.Sort = store.SortNewest
		}
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	issues, err := ctl.store.ListIssues(ctx, filter)
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewsOf(issues, viewer(c)))
}

// RankedIssues returns the work queue: active issues by priority
func (ctl *Controller) RankedIssues(c *gin.Context) {
	var q struct {
		Category string `form:"category"`
		Limit    int    `form:"limit,default=50" binding:"min=0,max=100"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	category := models.IssueCategory(q.Category)
	if q.Category == "all" {
		category = ""
	}
	if category != "" && !category.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	issues, err := ctl.manager.Ranked(ctx, category, q.Limit)
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewsOf(issues, viewer(c)))
}

// GetIssue returns one issue
func (ctl *Controller) GetIssue(c *gin.Context) {
	issueID, ok := idParam(c, "id", "issue")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	issue, err := ctl.store.Issue(ctx, issueID)
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(issue, viewer(c)))
}

// GetMyIssues lists the issues reported by the caller
func (ctl *Controller) GetMyIssues(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	issues, err := ctl.store.ListIssues(ctx, store.IssueFilter{ReportedBy: &userID, Sort: store.SortNewest})
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewsOf(issues, &userID))
}

// RecentIssues returns the latest issues as map pins
func (ctl *Controller) RecentIssues(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	issues, err := ctl.store.ListIssues(ctx, store.IssueFilter{Sort: store.SortNewest, Limit: recentLimit})
	if err != nil {
		ctl.respondError(c, err)
		return
	}

	type pin struct {
		ID        string               `json:"id"`
		Title     string               `json:"title"`
		Latitude  float64              `json:"latitude"`
		Longitude float64              `json:"longitude"`
		Geocode   string               `json:"geocode"`
		Address   string               `json:"address"`
		Category  models.IssueCategory `json:"category"`
		Status    models.IssueStatus   `json:"status"`
		Priority  int                  `json:"priority"`
		CreatedAt time.Time            `json:"createdAt"`
	}
	response := make([]pin, 0, len(issues))
	for _, issue := range issues {
		response = append(response, pin{
			ID:        issue.ID.Hex(),
			Title:     issue.Title,
			Latitude:  issue.Location.Lat(),
			Longitude: issue.Location.Lon(),
			Geocode:   issue.Geocode,
			Address:   issue.Address,
			Category:  issue.Category,
			Status:    issue.Status,
			Priority:  issue.Priority,
			CreatedAt: issue.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, response)
}

// GetIssueAnalytics summarises issues by category, status and day
func (ctl *Controller) GetIssueAnalytics(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	issues, err := ctl.store.ListIssues(ctx, store.IssueFilter{Sort: store.SortNewest})
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summarize(issues, time.Now()))
}

type countByName struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

type dayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type votedIssue struct {
	ID       primitive.ObjectID   `json:"id"`
	Title    string               `json:"title"`
	Category models.IssueCategory `json:"category"`
	Upvotes  int                  `json:"upvotes"`
}

type analytics struct {
	IssuesByCategory []countByName `json:"issuesByCategory"`
	IssuesByStatus   []countByName `json:"issuesByStatus"`
	Last7Days        []dayCount    `json:"last7Days"`
	TopVotedIssues   []votedIssue  `json:"topVotedIssues"`
	TotalIssues      int           `json:"totalIssues"`
	TotalUpvotes     int           `json:"totalUpvotes"`
	OpenIssues       int           `json:"openIssues"`
	AveragePriority  float64       `json:"averagePriority"`
}

func summarize(issues []models.Issue, now time.Time) analytics {
	byCategory := map[string]int{}
	byStatus := map[string]int{}
	perDay := map[string]int{}
	out := analytics{TotalIssues: len(issues)}

	scored, prioritySum := 0, 0
	for _, issue := range issues {
		byCategory[string(issue.Category)]++
		byStatus[string(issue.Status)]++
		perDay[issue.CreatedAt.In(now.Location()).Format(time.DateOnly)]++
		out.TotalUpvotes += len(issue.Upvotes)
		if !issue.Status.Terminal() {
			out.OpenIssues++
		}
		if issue.PriorityScored {
			scored++
			prioritySum += issue.Priority
		}
		out.TopVotedIssues = append(out.TopVotedIssues, votedIssue{
			ID: issue.ID, Title: issue.Title, Category: issue.Category, Upvotes: len(issue.Upvotes),
		})
	}
	if scored > 0 {
		out.AveragePriority = float64(prioritySum) / float64(scored)
	}

	out.IssuesByCategory = sortedCounts(byCategory)
	out.IssuesByStatus = sortedCounts(byStatus)

	for i := 6; i >= 0; i-- {
		day := now.AddDate(0, 0, -i).Format(time.DateOnly)
		out.Last7Days = append(out.Last7Days, dayCount{Date: day, Count: perDay[day]})
	}

	sort.SliceStable(out.TopVotedIssues, func(i, j int) bool {
		return out.TopVotedIssues[i].Upvotes > out.TopVotedIssues[j].Upvotes
	})
	if len(out.TopVotedIssues) > 5 {
		out.TopVotedIssues = out.TopVotedIssues[:5]
	}
	if out.TopVotedIssues == nil {
		out.TopVotedIssues = []votedIssue{}
	}
	return out
}

func sortedCounts(m map[string]int) []countByName {
	out := make([]countByName, 0, len(m))
	for name, n := range m {
		out = append(out, countByName{Name: name, Value: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// UpvoteIssue toggles the caller's upvote
func (ctl *Controller) UpvoteIssue(c *gin.Context) {
	issueID, ok := idParam(c, "id", "issue")
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	issue, voted, err := ctl.manager.ToggleUpvote(ctx, issueID, userID)
	if err != nil {
		ctl.respondError(c, err)
		return
	}

	message := "Issue upvoted"
	if !voted {
		message = "Upvote removed"
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"voted":   voted,
		"upvotes": len(issue.Upvotes),
		"issue":   viewOf(issue, &userID),
	})
}

// ResolveIssue closes an issue on photographic proof
func (ctl *Controller) ResolveIssue(c *gin.Context) {
	issueID, ok := idParam(c, "id", "issue")
	if !ok {
		return
	}
	actorID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input struct {
		Description string `form:"description" binding:"max=2000"`
	}
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// A missing file is reported by the manager as missing proof.
	proofURL, proofPath, err := ctl.saveImage(c, "proofImage")
	if err != nil && !errors.Is(err, errImageRequired) {
		ctl.respondError(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	proof := triage.Proof{Description: input.Description, AfterImageURL: proofURL}
	if before, err := ctl.store.Issue(ctx, issueID); err == nil && len(before.ImageURLs) > 0 {
		proof.BeforeImageURL = before.ImageURLs[0]
	}

	issue, err := ctl.manager.Resolve(ctx, issueID, actorID, proof)
	if err != nil {
		if proofPath != "" {
			_ = os.Remove(proofPath)
		}
		ctl.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Issue marked as resolved",
		"issue":   viewOf(issue, &actorID),
	})
}
