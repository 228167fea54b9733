package store

import "time"

// Severity ranks how badly a product let the submitter down.
type Severity string

const (
	SeverityTrivial  Severity = "trivial"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySerious  Severity = "serious"
	SeveritySevere   Severity = "severe"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityTrivial, SeverityMild, SeverityModerate, SeveritySerious, SeveritySevere, SeverityCritical:
		return true
	default:
		return false
	}
}

// FlagReason is the fixed set of reasons a community member may flag a submission for.
type FlagReason string

const (
	FlagWhining       FlagReason = "whining"
	FlagLowDetail     FlagReason = "low-detail"
	FlagSpam          FlagReason = "spam"
	FlagUserError     FlagReason = "user-error"
	FlagInappropriate FlagReason = "inappropriate"
	FlagFixed         FlagReason = "fixed"
)

// Valid reports whether r is one of the known flag reasons.
func (r FlagReason) Valid() bool {
	switch r {
	case FlagWhining, FlagLowDetail, FlagSpam, FlagUserError, FlagInappropriate, FlagFixed:
		return true
	default:
		return false
	}
}

type Submission struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Company         string    `json:"company"`
	Description     string    `json:"description"`
	PrimaryCategory string    `json:"primaryCategory,omitempty"`
	Subcategory     string    `json:"subcategory,omitempty"`
	Category        string    `json:"category"`
	Tags            []string  `json:"tags,omitempty"`
	Severity        Severity  `json:"severity"`
	TimeWasted      int       `json:"timeWasted"`
	Screenshot      string    `json:"screenshot"`
	SubmittedBy     string    `json:"submittedBy"`
	UserID          string    `json:"-"`
	Approved        bool      `json:"approved"`
	CreatedAt       time.Time `json:"createdAt"`
	PublishedAt     time.Time `json:"publishedAt"`

	Upvotes            int         `json:"upvotes"`
	Downvotes          int         `json:"downvotes"`
	UpvotedBy          []VoteEntry `json:"-"`
	DownvotedBy        []VoteEntry `json:"-"`
	Flags              []Flag      `json:"-"`
	QualityScore       int         `json:"qualityScore"`
	HiddenByModeration bool        `json:"hiddenByModeration"`
	MeToos             []MeToo     `json:"meToos,omitempty"`

	// Version is bumped on every successful UpdateSubmission.
	Version int64 `json:"-"`
}

// VoteEntry records one identity's vote in a direction. Key is unique within
// the list; it is not a security property.
type VoteEntry struct {
	Key      string    `json:"key"`
	Identity string    `json:"identity"`
	At       time.Time `json:"at"`
}

type Flag struct {
	Key       string     `json:"key"`
	Reason    FlagReason `json:"reason"`
	FlaggedBy string     `json:"flaggedBy"`
	Timestamp time.Time  `json:"timestamp"`
}

type MeToo struct {
	TimeWasted  int       `json:"timeWasted"`
	SubmittedBy string    `json:"submittedBy"`
	Timestamp   time.Time `json:"timestamp"`
}

type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name,omitempty"`
	Image      string    `json:"image,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	ProviderID string    `json:"providerId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	LastLogin  time.Time `json:"lastLogin"`
}

type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Sort options
type SortOrder string

const (
	SortNew   SortOrder = "new"
	SortTop   SortOrder = "top"
	SortMeToo SortOrder = "metoo"
)

type ListOptions struct {
	Sort    SortOrder
	Company string
	Limit   int
}

// SubmissionSummary is the trimmed view returned for a user's own submissions.
type SubmissionSummary struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"_createdAt"`
}
