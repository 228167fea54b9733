package store

import (
	"context"
	"errors"
)

// ErrVersionConflict is returned by UpdateSubmission when the stored document
// changed since it was read.
var ErrVersionConflict = errors.New("submission version conflict")

// Store defines the interface for data persistence
type Store interface {
	// Submissions
	CreateSubmission(ctx context.Context, sub *Submission) error
	GetSubmission(ctx context.Context, id string) (*Submission, error)
	ListSubmissions(ctx context.Context, opts ListOptions) ([]*Submission, error)
	ListSubmissionIDs(ctx context.Context) ([]string, error)
	ListSubmissionsByUser(ctx context.Context, userID string) ([]*SubmissionSummary, error)
	// UpdateSubmission writes the full document if its stored version still
	// equals sub.Version, then advances sub.Version.
	UpdateSubmission(ctx context.Context, sub *Submission) error
	SetApproved(ctx context.Context, id string, approved bool) error

	// Users
	UpsertUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// Sessions
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, token string) (*Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) error

	// Lifecycle
	Close() error
}
