package triage

import (
	"context"
	"sort"

	"civictriage/models"
	"civictriage/store"
)

// ActiveStatuses are the statuses shown in the work queue.
var ActiveStatuses = []models.IssueStatus{
	models.StatusOpen,
	models.StatusAssigned,
	models.StatusInProgress,
}

// Rank orders issues by priority, highest first, oldest first on ties.
// The input slice is left untouched.
func Rank(issues []models.Issue) []models.Issue {
	out := append([]models.Issue(nil), issues...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Ranked returns active issues in ranking order.
func (m *Manager) Ranked(ctx context.Context, category models.IssueCategory, limit int) ([]models.Issue, error) {
	issues, err := m.store.ListIssues(ctx, store.IssueFilter{
		Category: category,
		Statuses: ActiveStatuses,
	})
	if err != nil {
		return nil, err
	}
	ranked := Rank(issues)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
