package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueCategory enum
type IssueCategory string

const (
	Roads       IssueCategory = "roads"
	Lighting    IssueCategory = "lighting"
	Sanitation  IssueCategory = "sanitation"
	Water       IssueCategory = "water"
	Electricity IssueCategory = "electricity"
	Parks       IssueCategory = "parks"
	Other       IssueCategory = "other"
)

var issueCategories = map[IssueCategory]bool{
	Roads: true, Lighting: true, Sanitation: true, Water: true,
	Electricity: true, Parks: true, Other: true,
}

func (c IssueCategory) Valid() bool { return issueCategories[c] }

// Zone describes the land use around an issue.
type Zone string

const (
	SchoolZone   Zone = "school_zone"
	HospitalZone Zone = "hospital_zone"
	MainRoad     Zone = "main_road"
	Residential  Zone = "residential"
	Industrial   Zone = "industrial"
	LowTraffic   Zone = "low_traffic"
)

var zones = map[Zone]bool{
	SchoolZone: true, HospitalZone: true, MainRoad: true,
	Residential: true, Industrial: true, LowTraffic: true,
}

func (z Zone) Valid() bool { return zones[z] }

// IssueStatus enum
type IssueStatus string

const (
	StatusOpen       IssueStatus = "open"
	StatusAssigned   IssueStatus = "assigned"
	StatusInProgress IssueStatus = "in_progress"
	StatusResolved   IssueStatus = "resolved"
	StatusCompleted  IssueStatus = "completed"
)

func (s IssueStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusAssigned, StatusInProgress, StatusResolved, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transition is defined from s.
func (s IssueStatus) Terminal() bool {
	return s == StatusResolved || s == StatusCompleted
}

// GeoPoint is a GeoJSON point, coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string     `bson:"type" json:"type"`
	Coordinates [2]float64 `bson:"coordinates" json:"coordinates"`
}

func NewGeoPoint(lat, lon float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: [2]float64{lon, lat}}
}

func (p GeoPoint) Lat() float64 { return p.Coordinates[1] }
func (p GeoPoint) Lon() float64 { return p.Coordinates[0] }

// AIAnalysis is the result returned by the external risk classifier.
type AIAnalysis struct {
	DamageClass       string    `bson:"damage_class" json:"damage_class"`
	Severity          string    `bson:"severity" json:"severity"`
	SeverityScore     float64   `bson:"severity_score" json:"severity_score"`
	HealthScore       int       `bson:"health_score" json:"health_score"`
	RiskLevel         string    `bson:"risk_level" json:"risk_level"`
	AISuggestion      string    `bson:"ai_suggestion" json:"ai_suggestion"`
	InferredInfraType *string   `bson:"inferred_infra_type,omitempty" json:"inferred_infra_type"`
	InfraTypeMismatch bool      `bson:"infra_type_mismatch" json:"infra_type_mismatch"`
	ReceivedAt        time.Time `bson:"receivedAt" json:"receivedAt"`
}

// InfraType returns the inferred infrastructure type or "".
func (a AIAnalysis) InfraType() string {
	if a.InferredInfraType == nil {
		return ""
	}
	return *a.InferredInfraType
}

// ResolvedProof records how and by whom an issue was closed.
type ResolvedProof struct {
	BeforeImageURL string             `bson:"beforeImageUrl,omitempty" json:"beforeImageUrl,omitempty"`
	AfterImageURL  string             `bson:"afterImageUrl,omitempty" json:"afterImageUrl,omitempty"`
	Description    string             `bson:"description,omitempty" json:"description,omitempty"`
	ResolvedAt     time.Time          `bson:"resolvedAt" json:"resolvedAt"`
	ResolvedBy     primitive.ObjectID `bson:"resolvedBy" json:"resolvedBy"`
}

// Issue represents a civic issue reported by a user
type Issue struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	ReportedBy     primitive.ObjectID   `bson:"reportedBy" json:"reportedBy"`
	Title          string               `bson:"title" json:"title"`
	Description    string               `bson:"description" json:"description"`
	Category       IssueCategory        `bson:"category" json:"category"`
	Location       GeoPoint             `bson:"location" json:"location"`
	Geocode        string               `bson:"geocode" json:"geocode"`
	Address        string               `bson:"address" json:"address"`
	ImageURLs      []string             `bson:"imageUrls" json:"imageUrls"`
	Zone           Zone                 `bson:"zone,omitempty" json:"zone,omitempty"`
	Status         IssueStatus          `bson:"status" json:"status"`
	AssignedTo     *primitive.ObjectID  `bson:"assignedTo" json:"assignedTo"`
	Priority       int                  `bson:"priority" json:"priority"`
	PriorityScored bool                 `bson:"priorityScored" json:"priorityScored"`
	AIAnalysis     *AIAnalysis          `bson:"aiAnalysis,omitempty" json:"aiAnalysis,omitempty"`
	ResolvedProof  *ResolvedProof       `bson:"resolvedProof,omitempty" json:"resolvedProof,omitempty"`
	Upvotes        []primitive.ObjectID `bson:"upvotes" json:"upvotes"`
	CreatedAt      time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// IsAssignedTo reports whether the issue is currently held by employeeID.
func (i *Issue) IsAssignedTo(employeeID primitive.ObjectID) bool {
	return i.AssignedTo != nil && *i.AssignedTo == employeeID
}

// Clone returns a deep copy of the issue.
func (i *Issue) Clone() *Issue {
	c := *i
	c.ImageURLs = append([]string(nil), i.ImageURLs...)
	c.Upvotes = append([]primitive.ObjectID(nil), i.Upvotes...)
	if i.AssignedTo != nil {
		id := *i.AssignedTo
		c.AssignedTo = &id
	}
	if i.AIAnalysis != nil {
		a := *i.AIAnalysis
		if i.AIAnalysis.InferredInfraType != nil {
			t := *i.AIAnalysis.InferredInfraType
			a.InferredInfraType = &t
		}
		c.AIAnalysis = &a
	}
	if i.ResolvedProof != nil {
		p := *i.ResolvedProof
		c.ResolvedProof = &p
	}
	return &c
}
