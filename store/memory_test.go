package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"civictriage/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func seedIssue(t *testing.T, m *Memory, lat, lon float64, created time.Time, mutate func(*models.Issue)) *models.Issue {
	t.Helper()
	issue := &models.Issue{
		Title:     "pothole",
		Category:  models.Roads,
		Location:  models.NewGeoPoint(lat, lon),
		Status:    models.StatusOpen,
		CreatedAt: created,
	}
	if mutate != nil {
		mutate(issue)
	}
	require.NoError(t, m.InsertIssue(context.Background(), issue))
	return issue
}

func TestMemory_IssueIsCopied(t *testing.T) {
	m := NewMemory()
	issue := seedIssue(t, m, 12.97, 77.59, time.Now(), nil)

	issue.Title = "changed after insert"
	got, err := m.Issue(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "pothole", got.Title)

	got.Title = "changed after read"
	again, _ := m.Issue(context.Background(), issue.ID)
	assert.Equal(t, "pothole", again.Title)

	_, err = m.Issue(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_RunInTx_CommitsTogether(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	issue := seedIssue(t, m, 12.97, 77.59, time.Now(), nil)
	emp := &models.Employee{Name: "Asha", Email: "asha@city.gov"}
	require.NoError(t, m.InsertEmployee(ctx, emp))

	err := m.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		i, err := tx.Issue(ctx, issue.ID)
		if err != nil {
			return err
		}
		e, err := tx.Employee(ctx, emp.ID)
		if err != nil {
			return err
		}
		i.Status = models.StatusAssigned
		i.AssignedTo = &e.ID
		e.AddAssigned(i.ID)
		if err := tx.SaveIssue(ctx, i); err != nil {
			return err
		}
		return tx.SaveEmployee(ctx, e)
	})
	require.NoError(t, err)

	i, _ := m.Issue(ctx, issue.ID)
	e, _ := m.Employee(ctx, emp.ID)
	assert.Equal(t, models.StatusAssigned, i.Status)
	assert.True(t, e.HasAssigned(issue.ID))
}

func TestMemory_RunInTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	issue := seedIssue(t, m, 12.97, 77.59, time.Now(), nil)
	boom := errors.New("boom")

	err := m.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		i, _ := tx.Issue(ctx, issue.ID)
		i.Status = models.StatusCompleted
		require.NoError(t, tx.SaveIssue(ctx, i))

		staged, _ := tx.Issue(ctx, issue.ID)
		assert.Equal(t, models.StatusCompleted, staged.Status)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	i, _ := m.Issue(ctx, issue.ID)
	assert.Equal(t, models.StatusOpen, i.Status)
}

func TestMemory_SaveUnknownFails(t *testing.T) {
	m := NewMemory()
	err := m.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.SaveIssue(ctx, &models.Issue{ID: primitive.NewObjectID()})
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_ListIssues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// ~1.1 km apart around Bengaluru, one in Mumbai
	a := seedIssue(t, m, 12.9716, 77.5946, base, func(i *models.Issue) { i.Priority = 40 })
	b := seedIssue(t, m, 12.9816, 77.5946, base.Add(time.Hour), func(i *models.Issue) {
		i.Priority = 90
		i.Upvotes = []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID()}
	})
	c := seedIssue(t, m, 19.076, 72.8777, base.Add(2*time.Hour), func(i *models.Issue) {
		i.Category = models.Lighting
		i.Status = models.StatusCompleted
	})

	all, err := m.ListIssues(ctx, IssueFilter{})
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{c.ID, b.ID, a.ID}, ids(all))

	oldest, _ := m.ListIssues(ctx, IssueFilter{Sort: SortOldest, Limit: 2})
	assert.Equal(t, []primitive.ObjectID{a.ID, b.ID}, ids(oldest))

	near, _ := m.ListIssues(ctx, IssueFilter{Near: &Near{Lat: 12.9716, Lon: 77.5946, RadiusMeters: 5000}})
	assert.Equal(t, []primitive.ObjectID{a.ID, b.ID}, ids(near))

	tight, _ := m.ListIssues(ctx, IssueFilter{Near: &Near{Lat: 12.9716, Lon: 77.5946, RadiusMeters: 500}})
	assert.Equal(t, []primitive.ObjectID{a.ID}, ids(tight))

	lighting, _ := m.ListIssues(ctx, IssueFilter{Category: models.Lighting})
	assert.Equal(t, []primitive.ObjectID{c.ID}, ids(lighting))

	open, _ := m.ListIssues(ctx, IssueFilter{Statuses: []models.IssueStatus{models.StatusOpen}, Sort: SortPriority})
	assert.Equal(t, []primitive.ObjectID{b.ID, a.ID}, ids(open))

	voted, _ := m.ListIssues(ctx, IssueFilter{Sort: SortUpvotes, Limit: 1})
	assert.Equal(t, []primitive.ObjectID{b.ID}, ids(voted))
}

func TestMemory_UniqueEmails(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.InsertUser(ctx, &models.User{Email: "a@b.c"}))
	assert.ErrorIs(t, m.InsertUser(ctx, &models.User{Email: "A@b.c"}), ErrDuplicate)

	require.NoError(t, m.InsertEmployee(ctx, &models.Employee{Email: "e@b.c"}))
	assert.ErrorIs(t, m.InsertEmployee(ctx, &models.Employee{Email: "e@b.c"}), ErrDuplicate)

	u, err := m.UserByEmail(ctx, "a@b.c")
	require.NoError(t, err)
	require.NoError(t, m.IncUserCounters(ctx, u.ID, 1, 10))
	u, _ = m.User(ctx, u.ID)
	assert.Equal(t, 1, u.IssuesReported)
	assert.Equal(t, 10, u.Karma)
}

func ids(issues []models.Issue) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.ID)
	}
	return out
}
