package store

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"civictriage/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const earthRadiusMeters = 6371000.0

// Memory is an in-process Store. Transactions take the single writer lock
// and stage copies, so a failed fn leaves nothing behind.
type Memory struct {
	mu        sync.RWMutex
	issues    map[primitive.ObjectID]*models.Issue
	employees map[primitive.ObjectID]*models.Employee
	users     map[primitive.ObjectID]*models.User
}

func NewMemory() *Memory {
	return &Memory{
		issues:    make(map[primitive.ObjectID]*models.Issue),
		employees: make(map[primitive.ObjectID]*models.Employee),
		users:     make(map[primitive.ObjectID]*models.User),
	}
}

func (m *Memory) InsertIssue(_ context.Context, issue *models.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	if _, ok := m.issues[issue.ID]; ok {
		return ErrDuplicate
	}
	m.issues[issue.ID] = issue.Clone()
	return nil
}

func (m *Memory) Issue(_ context.Context, id primitive.ObjectID) (*models.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	issue, ok := m.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	return issue.Clone(), nil
}

func (m *Memory) ListIssues(_ context.Context, f IssueFilter) ([]models.Issue, error) {
	m.mu.RLock()
	out := make([]models.Issue, 0, len(m.issues))
	dist := make(map[primitive.ObjectID]float64)
	for _, issue := range m.issues {
		if f.Category != "" && issue.Category != f.Category {
			continue
		}
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, issue.Status) {
			continue
		}
		if f.ReportedBy != nil && issue.ReportedBy != *f.ReportedBy {
			continue
		}
		if f.Near != nil {
			d := haversine(f.Near.Lat, f.Near.Lon, issue.Location.Lat(), issue.Location.Lon())
			if d > f.Near.RadiusMeters {
				continue
			}
			dist[issue.ID] = d
		}
		out = append(out, *issue.Clone())
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		switch {
		case f.Near != nil && f.Sort == "":
			return dist[a.ID] < dist[b.ID]
		case f.Sort == SortOldest:
			return a.CreatedAt.Before(b.CreatedAt)
		case f.Sort == SortUpvotes:
			return len(a.Upvotes) > len(b.Upvotes)
		case f.Sort == SortPriority:
			if a.Priority != b.Priority {
				return a.Priority > b.Priority
			}
			return a.CreatedAt.Before(b.CreatedAt)
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})

	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) InsertEmployee(_ context.Context, employee *models.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.employees {
		if strings.EqualFold(e.Email, employee.Email) {
			return ErrDuplicate
		}
	}
	if employee.ID.IsZero() {
		employee.ID = primitive.NewObjectID()
	}
	m.employees[employee.ID] = employee.Clone()
	return nil
}

func (m *Memory) Employee(_ context.Context, id primitive.ObjectID) (*models.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

func (m *Memory) EmployeeByEmail(_ context.Context, email string) (*models.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.employees {
		if strings.EqualFold(e.Email, email) {
			return e.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) Employees(_ context.Context) ([]models.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		out = append(out, *e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) InsertUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	u := *user
	m.users[user.ID] = &u
	return nil
}

func (m *Memory) User(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) IncUserCounters(_ context.Context, id primitive.ObjectID, reported, karma int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IssuesReported += reported
	u.Karma += karma
	return nil
}

func (m *Memory) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		m:         m,
		issues:    make(map[primitive.ObjectID]*models.Issue),
		employees: make(map[primitive.ObjectID]*models.Employee),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, issue := range tx.issues {
		m.issues[id] = issue
	}
	for id, e := range tx.employees {
		m.employees[id] = e
	}
	return nil
}

type memoryTx struct {
	m         *Memory
	issues    map[primitive.ObjectID]*models.Issue
	employees map[primitive.ObjectID]*models.Employee
}

func (tx *memoryTx) Issue(_ context.Context, id primitive.ObjectID) (*models.Issue, error) {
	if issue, ok := tx.issues[id]; ok {
		return issue.Clone(), nil
	}
	issue, ok := tx.m.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	return issue.Clone(), nil
}

func (tx *memoryTx) Employee(_ context.Context, id primitive.ObjectID) (*models.Employee, error) {
	if e, ok := tx.employees[id]; ok {
		return e.Clone(), nil
	}
	e, ok := tx.m.employees[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

func (tx *memoryTx) SaveIssue(_ context.Context, issue *models.Issue) error {
	if _, ok := tx.m.issues[issue.ID]; !ok {
		return ErrNotFound
	}
	tx.issues[issue.ID] = issue.Clone()
	return nil
}

func (tx *memoryTx) SaveEmployee(_ context.Context, e *models.Employee) error {
	if _, ok := tx.m.employees[e.ID]; !ok {
		return ErrNotFound
	}
	tx.employees[e.ID] = e.Clone()
	return nil
}

func hasStatus(list []models.IssueStatus, s models.IssueStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}
