package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) (*SQLStore, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "gripeboard-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()

	store, err := NewSQLiteStore(tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to create store: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.Remove(tmpFile.Name())
	}

	return store, cleanup
}

func newTestSubmission(title string) *Submission {
	return &Submission{
		Title:       title,
		Company:     "Acme",
		Description: "The printer ate my homework",
		Category:    "printer-scanner",
		Severity:    SeveritySerious,
		TimeWasted:  30,
		Screenshot:  "https://img.example.com/1.png",
		SubmittedBy: "Anonymous",
	}
}

func TestSubmissionCreate(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	sub := newTestSubmission("Printer jams on every page")
	sub.Tags = []string{"printer", "paper"}

	if err := store.CreateSubmission(ctx, sub); err != nil {
		t.Fatalf("failed to create submission: %v", err)
	}

	if sub.ID == "" {
		t.Error("submission ID should be set after creation")
	}
	if sub.Version != 1 {
		t.Errorf("version = %d, want 1", sub.Version)
	}

	fetched, err := store.GetSubmission(ctx, sub.ID)
	if err != nil {
		t.Fatalf("failed to get submission: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected submission")
	}

	if fetched.Title != sub.Title {
		t.Errorf("title mismatch: got %q, want %q", fetched.Title, sub.Title)
	}
	if fetched.Severity != SeveritySerious {
		t.Errorf("severity mismatch: got %q, want %q", fetched.Severity, SeveritySerious)
	}
	if len(fetched.Tags) != 2 {
		t.Errorf("tags count mismatch: got %d, want 2", len(fetched.Tags))
	}
	if fetched.Upvotes != 0 || fetched.Downvotes != 0 || len(fetched.Flags) != 0 {
		t.Error("new submission should have no votes or flags")
	}
	if fetched.Approved {
		t.Error("new submission should not be approved")
	}
}

func TestSubmissionGetMissing(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	fetched, err := store.GetSubmission(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetched != nil {
		t.Error("expected nil for missing submission")
	}
}

func TestSubmissionUpdateRoundTripsLedgers(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	sub := newTestSubmission("Router reboots hourly")
	if err := store.CreateSubmission(ctx, sub); err != nil {
		t.Fatalf("failed to create submission: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	sub.Upvotes = 1
	sub.UpvotedBy = []VoteEntry{{Key: "u1-1", Identity: "u1", At: now}}
	sub.Downvotes = 1
	sub.DownvotedBy = []VoteEntry{{Key: "u2-1", Identity: "u2", At: now}}
	sub.Flags = []Flag{{Reason: FlagWhining, FlaggedBy: "u3", Timestamp: now}}
	sub.MeToos = []MeToo{{TimeWasted: 45, SubmittedBy: "Alice", Timestamp: now}}
	sub.QualityScore = -2
	sub.HiddenByModeration = false

	if err := store.UpdateSubmission(ctx, sub); err != nil {
		t.Fatalf("failed to update submission: %v", err)
	}
	if sub.Version != 2 {
		t.Errorf("version = %d, want 2", sub.Version)
	}

	fetched, _ := store.GetSubmission(ctx, sub.ID)
	if fetched.Version != 2 {
		t.Errorf("stored version = %d, want 2", fetched.Version)
	}
	if len(fetched.UpvotedBy) != 1 || fetched.UpvotedBy[0].Identity != "u1" {
		t.Errorf("upvotedBy = %+v", fetched.UpvotedBy)
	}
	if len(fetched.DownvotedBy) != 1 || fetched.DownvotedBy[0].Identity != "u2" {
		t.Errorf("downvotedBy = %+v", fetched.DownvotedBy)
	}
	if len(fetched.Flags) != 1 || fetched.Flags[0].Reason != FlagWhining {
		t.Errorf("flags = %+v", fetched.Flags)
	}
	if len(fetched.MeToos) != 1 || fetched.MeToos[0].TimeWasted != 45 {
		t.Errorf("meToos = %+v", fetched.MeToos)
	}
	if fetched.QualityScore != -2 {
		t.Errorf("qualityScore = %d, want -2", fetched.QualityScore)
	}
}

func TestSubmissionUpdateVersionConflict(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	sub := newTestSubmission("Smart lock locked me out")
	if err := store.CreateSubmission(ctx, sub); err != nil {
		t.Fatalf("failed to create submission: %v", err)
	}

	first, _ := store.GetSubmission(ctx, sub.ID)
	second, _ := store.GetSubmission(ctx, sub.ID)

	first.Downvotes = 1
	if err := store.UpdateSubmission(ctx, first); err != nil {
		t.Fatalf("first update failed: %v", err)
	}

	second.Downvotes = 1
	err := store.UpdateSubmission(ctx, second)
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale update err = %v, want ErrVersionConflict", err)
	}
	if second.Version != 1 {
		t.Errorf("stale version advanced to %d", second.Version)
	}
}

func TestSubmissionList(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	visible := newTestSubmission("Visible one")
	visible.Approved = true
	visible.QualityScore = 1
	store.CreateSubmission(ctx, visible)

	better := newTestSubmission("Visible two")
	better.Approved = true
	better.Company = "Globex"
	better.QualityScore = 5
	store.CreateSubmission(ctx, better)

	pending := newTestSubmission("Not approved")
	store.CreateSubmission(ctx, pending)

	hidden := newTestSubmission("Hidden by moderation")
	hidden.Approved = true
	hidden.HiddenByModeration = true
	store.CreateSubmission(ctx, hidden)

	subs, err := store.ListSubmissions(ctx, ListOptions{Sort: SortTop})
	if err != nil {
		t.Fatalf("failed to list submissions: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 visible submissions, got %d", len(subs))
	}
	if subs[0].ID != better.ID {
		t.Errorf("top sort should put highest quality score first")
	}

	subs, err = store.ListSubmissions(ctx, ListOptions{Company: "globex"})
	if err != nil {
		t.Fatalf("failed to list submissions: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != better.ID {
		t.Errorf("company filter returned %d submissions", len(subs))
	}

	ids, err := store.ListSubmissionIDs(ctx)
	if err != nil {
		t.Fatalf("failed to list ids: %v", err)
	}
	if len(ids) != 4 {
		t.Errorf("expected 4 ids, got %d", len(ids))
	}
}

func TestSetApproved(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	sub := newTestSubmission("Pending review")
	store.CreateSubmission(ctx, sub)

	if err := store.SetApproved(ctx, sub.ID, true); err != nil {
		t.Fatalf("failed to approve: %v", err)
	}

	fetched, _ := store.GetSubmission(ctx, sub.ID)
	if !fetched.Approved {
		t.Error("submission should be approved")
	}
	if fetched.Version != 2 {
		t.Errorf("approval should bump version, got %d", fetched.Version)
	}
}

func TestUserUpsert(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := &User{Email: "alice@example.com", Name: "Alice", Provider: "google"}
	if err := store.UpsertUser(ctx, user); err != nil {
		t.Fatalf("failed to upsert user: %v", err)
	}
	firstID := user.ID

	again := &User{Email: "alice@example.com"}
	if err := store.UpsertUser(ctx, again); err != nil {
		t.Fatalf("failed to upsert user again: %v", err)
	}

	if again.ID != firstID {
		t.Errorf("upsert should keep id: got %q, want %q", again.ID, firstID)
	}
	if again.Name != "Alice" {
		t.Errorf("empty name should not overwrite: got %q", again.Name)
	}

	byID, err := store.GetUser(ctx, firstID)
	if err != nil || byID == nil {
		t.Fatalf("GetUser failed: %v", err)
	}

	missing, err := store.GetUserByEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown email")
	}
}

func TestListSubmissionsByUser(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := &User{Email: "bob@example.com"}
	store.UpsertUser(ctx, user)

	mine := newTestSubmission("Mine")
	mine.UserID = user.ID
	store.CreateSubmission(ctx, mine)
	store.CreateSubmission(ctx, newTestSubmission("Someone else's"))

	summaries, err := store.ListSubmissionsByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != mine.ID {
		t.Errorf("summaries = %+v", summaries)
	}
}

func TestSessions(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := &User{Email: "carol@example.com"}
	store.UpsertUser(ctx, user)

	live := &Session{Token: "live-token", UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour)}
	if err := store.CreateSession(ctx, live); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	expired := &Session{Token: "expired-token", UserID: user.ID, ExpiresAt: time.Now().Add(-time.Hour)}
	if err := store.CreateSession(ctx, expired); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	got, err := store.GetSession(ctx, "live-token")
	if err != nil || got == nil {
		t.Fatalf("expected live session, err = %v", err)
	}
	if got.UserID != user.ID {
		t.Errorf("user id = %q, want %q", got.UserID, user.ID)
	}

	got, _ = store.GetSession(ctx, "expired-token")
	if got != nil {
		t.Error("expired session should not be returned")
	}

	if err := store.DeleteExpiredSessions(ctx); err != nil {
		t.Fatalf("failed to delete expired sessions: %v", err)
	}
	if err := store.DeleteSession(ctx, "live-token"); err != nil {
		t.Fatalf("failed to delete session: %v", err)
	}
	got, _ = store.GetSession(ctx, "live-token")
	if got != nil {
		t.Error("deleted session should not be returned")
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{dialect: dialectPostgres}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("rebind = %q", got)
	}

	lite := &SQLStore{dialect: dialectSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}
