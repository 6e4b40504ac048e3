package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"civictriage/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	issuesCollection    = "issues"
	employeesCollection = "employees"
	usersCollection     = "users"
)

// Mongo stores documents in MongoDB. RunInTx needs a replica set.
type Mongo struct {
	client    *mongo.Client
	issues    *mongo.Collection
	employees *mongo.Collection
	users     *mongo.Collection
}

func NewMongo(client *mongo.Client, db *mongo.Database) *Mongo {
	return &Mongo{
		client:    client,
		issues:    db.Collection(issuesCollection),
		employees: db.Collection(employeesCollection),
		users:     db.Collection(usersCollection),
	}
}

// EnsureIndexes creates the geospatial, ranking and unique email indexes.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := m.issues.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "priority", Value: -1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "reportedBy", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("issue indexes: %w", err)
	}

	unique := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := m.employees.Indexes().CreateOne(ctx, unique); err != nil {
		return fmt.Errorf("employee indexes: %w", err)
	}
	if _, err := m.users.Indexes().CreateOne(ctx, unique); err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}
	return nil
}

func (m *Mongo) InsertIssue(ctx context.Context, issue *models.Issue) error {
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	_, err := m.issues.InsertOne(ctx, issue)
	return mapErr(err)
}

func (m *Mongo) Issue(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	return findIssue(ctx, m.issues, id)
}

func (m *Mongo) ListIssues(ctx context.Context, f IssueFilter) ([]models.Issue, error) {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	if f.ReportedBy != nil {
		filter["reportedBy"] = *f.ReportedBy
	}
	if f.Near != nil {
		filter["location"] = bson.M{
			"$near": bson.M{
				"$geometry":    models.NewGeoPoint(f.Near.Lat, f.Near.Lon),
				"$maxDistance": f.Near.RadiusMeters,
			},
		}
	}

	findOptions := options.Find()
	switch f.Sort {
	case SortOldest:
		findOptions.SetSort(bson.D{{Key: "createdAt", Value: 1}})
	case SortUpvotes:
		// sorted by set size below; Mongo would order arrays by element value
	case SortPriority:
		findOptions.SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "createdAt", Value: 1}})
	case SortNewest:
		findOptions.SetSort(bson.D{{Key: "createdAt", Value: -1}})
	default:
		// $near already orders by distance
		if f.Near == nil {
			findOptions.SetSort(bson.D{{Key: "createdAt", Value: -1}})
		}
	}
	if f.Limit > 0 && f.Sort != SortUpvotes {
		findOptions.SetLimit(f.Limit)
	}

	cursor, err := m.issues.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, err
	}

	if f.Sort == SortUpvotes {
		sort.SliceStable(issues, func(i, j int) bool {
			return len(issues[i].Upvotes) > len(issues[j].Upvotes)
		})
		if f.Limit > 0 && int64(len(issues)) > f.Limit {
			issues = issues[:f.Limit]
		}
	}
	return issues, nil
}

func (m *Mongo) InsertEmployee(ctx context.Context, e *models.Employee) error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	_, err := m.employees.InsertOne(ctx, e)
	return mapErr(err)
}

func (m *Mongo) Employee(ctx context.Context, id primitive.ObjectID) (*models.Employee, error) {
	return findEmployee(ctx, m.employees, bson.M{"_id": id})
}

func (m *Mongo) EmployeeByEmail(ctx context.Context, email string) (*models.Employee, error) {
	return findEmployee(ctx, m.employees, bson.M{"email": email})
}

func (m *Mongo) Employees(ctx context.Context) ([]models.Employee, error) {
	cursor, err := m.employees.Find(ctx, bson.M{},
		options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: 1}}).
			SetProjection(bson.M{"password": 0}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	employees := []models.Employee{}
	if err := cursor.All(ctx, &employees); err != nil {
		return nil, err
	}
	return employees, nil
}

func (m *Mongo) InsertUser(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := m.users.InsertOne(ctx, u)
	return mapErr(err)
}

func (m *Mongo) User(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return findUser(ctx, m.users, bson.M{"_id": id})
}

func (m *Mongo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return findUser(ctx, m.users, bson.M{"email": email})
}

func (m *Mongo) IncUserCounters(ctx context.Context, id primitive.ObjectID, reported, karma int) error {
	res, err := m.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"issuesReported": reported, "karma": karma},
		"$set": bson.M{"updatedAt": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RunInTx wraps fn in a session transaction. The driver retries fn on
// transient errors such as write conflicts between concurrent transactions.
func (m *Mongo) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, mongoTx{m})
	})
	return err
}

type mongoTx struct{ m *Mongo }

func (tx mongoTx) Issue(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	return findIssue(ctx, tx.m.issues, id)
}

func (tx mongoTx) Employee(ctx context.Context, id primitive.ObjectID) (*models.Employee, error) {
	return findEmployee(ctx, tx.m.employees, bson.M{"_id": id})
}

func (tx mongoTx) SaveIssue(ctx context.Context, issue *models.Issue) error {
	return replace(ctx, tx.m.issues, issue.ID, issue)
}

func (tx mongoTx) SaveEmployee(ctx context.Context, e *models.Employee) error {
	return replace(ctx, tx.m.employees, e.ID, e)
}

func findIssue(ctx context.Context, col *mongo.Collection, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&issue); err != nil {
		return nil, mapErr(err)
	}
	return &issue, nil
}

func findEmployee(ctx context.Context, col *mongo.Collection, filter bson.M) (*models.Employee, error) {
	var e models.Employee
	if err := col.FindOne(ctx, filter).Decode(&e); err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func findUser(ctx context.Context, col *mongo.Collection, filter bson.M) (*models.User, error) {
	var u models.User
	if err := col.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func replace(ctx context.Context, col *mongo.Collection, id primitive.ObjectID, doc interface{}) error {
	res, err := col.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
