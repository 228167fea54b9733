package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// SQLStore is the database/sql implementation of Store. The same queries run
// against SQLite and Postgres; placeholders are rebound per dialect.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const submissionColumns = `id, title, company, description, primary_category, subcategory, category, tags,
	severity, time_wasted, screenshot, submitted_by, user_id, approved, created_at, published_at,
	upvotes, downvotes, upvoted_by, downvoted_by, flags, quality_score, hidden_by_moderation,
	me_toos, version`

// Submissions

func (s *SQLStore) CreateSubmission(ctx context.Context, sub *Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	if sub.PublishedAt.IsZero() {
		sub.PublishedAt = now
	}
	if sub.Version == 0 {
		sub.Version = 1
	}

	doc, err := encodeDocument(sub)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO submissions (`+submissionColumns+`, me_too_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), sub.ID, sub.Title, sub.Company, sub.Description, sub.PrimaryCategory, sub.Subcategory,
		sub.Category, doc.tags, string(sub.Severity), sub.TimeWasted, sub.Screenshot, sub.SubmittedBy,
		nullString(sub.UserID), boolToInt(sub.Approved), sub.CreatedAt, sub.PublishedAt,
		sub.Upvotes, sub.Downvotes, doc.upvotedBy, doc.downvotedBy, doc.flags, sub.QualityScore,
		boolToInt(sub.HiddenByModeration), doc.meToos, sub.Version, len(sub.MeToos))

	return err
}

func (s *SQLStore) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+submissionColumns+`
		FROM submissions WHERE id = ?
	`), id)

	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

func (s *SQLStore) ListSubmissions(ctx context.Context, opts ListOptions) ([]*Submission, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 30
	}

	var orderBy string
	switch opts.Sort {
	case SortTop:
		orderBy = "quality_score DESC, upvotes DESC, published_at DESC"
	case SortMeToo:
		orderBy = "me_too_count DESC, published_at DESC"
	default: // SortNew
		orderBy = "published_at DESC"
	}

	where := "approved = 1 AND hidden_by_moderation = 0"
	args := []any{}
	if opts.Company != "" {
		where += " AND LOWER(company) = LOWER(?)"
		args = append(args, opts.Company)
	}
	args = append(args, opts.Limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM submissions WHERE %s
		ORDER BY %s
		LIMIT ?
	`, submissionColumns, where, orderBy)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

func (s *SQLStore) ListSubmissionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM submissions ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (s *SQLStore) ListSubmissionsByUser(ctx context.Context, userID string) ([]*SubmissionSummary, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, title, approved, created_at
		FROM submissions WHERE user_id = ?
		ORDER BY created_at DESC
	`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []*SubmissionSummary{}
	for rows.Next() {
		var sum SubmissionSummary
		var approved int
		if err := rows.Scan(&sum.ID, &sum.Title, &approved, &sum.CreatedAt); err != nil {
			return nil, err
		}
		sum.Approved = approved == 1
		summaries = append(summaries, &sum)
	}

	return summaries, rows.Err()
}

func (s *SQLStore) UpdateSubmission(ctx context.Context, sub *Submission) error {
	doc, err := encodeDocument(sub)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE submissions SET
			upvotes = ?, downvotes = ?, upvoted_by = ?, downvoted_by = ?, flags = ?,
			quality_score = ?, hidden_by_moderation = ?, me_toos = ?, me_too_count = ?,
			version = version + 1
		WHERE id = ? AND version = ?
	`), sub.Upvotes, sub.Downvotes, doc.upvotedBy, doc.downvotedBy, doc.flags,
		sub.QualityScore, boolToInt(sub.HiddenByModeration), doc.meToos, len(sub.MeToos),
		sub.ID, sub.Version)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}

	sub.Version++
	return nil
}

func (s *SQLStore) SetApproved(ctx context.Context, id string, approved bool) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE submissions SET approved = ?, version = version + 1 WHERE id = ?
	`), boolToInt(approved), id)
	return err
}

// Users

func (s *SQLStore) UpsertUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.LastLogin = now

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO users (id, email, name, image, provider, provider_id, created_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE users.name END,
			image = CASE WHEN excluded.image <> '' THEN excluded.image ELSE users.image END,
			last_login = excluded.last_login
	`), user.ID, user.Email, user.Name, user.Image, user.Provider, user.ProviderID,
		user.CreatedAt, user.LastLogin)
	if err != nil {
		return err
	}

	stored, err := s.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("user %q vanished after upsert", user.Email)
	}
	*user = *stored
	return nil
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, email, name, image, provider, provider_id, created_at, last_login
		FROM users WHERE id = ?
	`), id)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, email, name, image, provider, provider_id, created_at, last_login
		FROM users WHERE email = ?
	`), email)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

// Sessions

func (s *SQLStore) CreateSession(ctx context.Context, session *Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO sessions (token, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`), session.Token, session.UserID, session.CreatedAt, session.ExpiresAt.UTC())

	return err
}

// GetSession returns nil for unknown or expired tokens.
func (s *SQLStore) GetSession(ctx context.Context, token string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT token, user_id, created_at, expires_at
		FROM sessions WHERE token = ?
	`), token)

	var sess Session
	err := row.Scan(&sess.Token, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if time.Now().After(sess.ExpiresAt) {
		return nil, nil
	}
	return &sess, nil
}

func (s *SQLStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM sessions WHERE token = ?`), token)
	return err
}

func (s *SQLStore) DeleteExpiredSessions(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM sessions WHERE expires_at < ?`), time.Now().UTC())
	return err
}

// Helpers

type scanner interface {
	Scan(dest ...any) error
}

// document holds the JSON-encoded embedded lists of a submission.
type document struct {
	tags        string
	upvotedBy   string
	downvotedBy string
	flags       string
	meToos      string
}

func encodeDocument(sub *Submission) (document, error) {
	var doc document
	var err error
	if doc.tags, err = encodeList(sub.Tags); err != nil {
		return doc, fmt.Errorf("encode tags: %w", err)
	}
	if doc.upvotedBy, err = encodeList(sub.UpvotedBy); err != nil {
		return doc, fmt.Errorf("encode upvoted_by: %w", err)
	}
	if doc.downvotedBy, err = encodeList(sub.DownvotedBy); err != nil {
		return doc, fmt.Errorf("encode downvoted_by: %w", err)
	}
	if doc.flags, err = encodeList(sub.Flags); err != nil {
		return doc, fmt.Errorf("encode flags: %w", err)
	}
	if doc.meToos, err = encodeList(sub.MeToos); err != nil {
		return doc, fmt.Errorf("encode me_toos: %w", err)
	}
	return doc, nil
}

func encodeList[T any](items []T) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList[T any](raw string, dst *[]T) error {
	if raw == "" || raw == "[]" {
		*dst = nil
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

func scanSubmission(row scanner) (*Submission, error) {
	var sub Submission
	var severity string
	var userID sql.NullString
	var approved, hidden int
	var doc document

	err := row.Scan(&sub.ID, &sub.Title, &sub.Company, &sub.Description, &sub.PrimaryCategory,
		&sub.Subcategory, &sub.Category, &doc.tags, &severity, &sub.TimeWasted, &sub.Screenshot,
		&sub.SubmittedBy, &userID, &approved, &sub.CreatedAt, &sub.PublishedAt,
		&sub.Upvotes, &sub.Downvotes, &doc.upvotedBy, &doc.downvotedBy, &doc.flags,
		&sub.QualityScore, &hidden, &doc.meToos, &sub.Version)
	if err != nil {
		return nil, err
	}

	sub.Severity = Severity(severity)
	sub.UserID = userID.String
	sub.Approved = approved == 1
	sub.HiddenByModeration = hidden == 1

	if err := decodeList(doc.tags, &sub.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := decodeList(doc.upvotedBy, &sub.UpvotedBy); err != nil {
		return nil, fmt.Errorf("decode upvoted_by: %w", err)
	}
	if err := decodeList(doc.downvotedBy, &sub.DownvotedBy); err != nil {
		return nil, fmt.Errorf("decode downvoted_by: %w", err)
	}
	if err := decodeList(doc.flags, &sub.Flags); err != nil {
		return nil, fmt.Errorf("decode flags: %w", err)
	}
	if err := decodeList(doc.meToos, &sub.MeToos); err != nil {
		return nil, fmt.Errorf("decode me_toos: %w", err)
	}

	return &sub, nil
}

func scanUser(row scanner) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Image, &user.Provider,
		&user.ProviderID, &user.CreatedAt, &user.LastLogin)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure SQLStore implements Store
var _ Store = (*SQLStore)(nil)
