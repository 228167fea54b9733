package moderation

import (
	"context"
	"errors"
	"time"

	"github.com/alphabot-ai/gripeboard/internal/store"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	conflictInitialInterval = 10 * time.Millisecond
	conflictMaxInterval     = 250 * time.Millisecond
	conflictMaxElapsedTime  = 5 * time.Second
)

// Submissions is the slice of the store the Gate reads and conditionally writes.
type Submissions interface {
	GetSubmission(ctx context.Context, id string) (*store.Submission, error)
	UpdateSubmission(ctx context.Context, sub *store.Submission) error
	ListSubmissionIDs(ctx context.Context) ([]string, error)
}

// Gate applies upvotes, downvotes, flags and me-toos to submissions. Every
// action reads fresh state, checks its preconditions, recomputes the derived
// fields and writes them back only if the submission is unchanged since the
// read. Version conflicts rerun the whole sequence.
type Gate struct {
	store             Submissions
	policy            Policy
	logger            *zap.Logger
	now               func() time.Time
	retries           uint64
	recomputeOnUpvote bool
}

type Option func(*Gate)

func WithPolicy(p Policy) Option {
	return func(g *Gate) { g.policy = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithConflictRetries bounds how often an action reruns after losing a
// version race.
func WithConflictRetries(n int) Option {
	return func(g *Gate) {
		if n >= 0 {
			g.retries = uint64(n)
		}
	}
}

// WithRecomputeOnUpvote makes upvotes refresh the quality score and
// visibility the way downvotes and flags do.
func WithRecomputeOnUpvote(on bool) Option {
	return func(g *Gate) { g.recomputeOnUpvote = on }
}

func NewGate(s Submissions, opts ...Option) *Gate {
	g := &Gate{
		store:   s,
		policy:  NewDefaultPolicy(),
		logger:  zap.NewNop(),
		now:     func() time.Time { return time.Now().UTC() },
		retries: 5,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type UpvoteResult struct {
	Upvotes int `json:"upvotes"`
}

type DownvoteResult struct {
	Downvotes          int  `json:"downvotes"`
	QualityScore       int  `json:"qualityScore"`
	HiddenByModeration bool `json:"hiddenByModeration"`
}

type FlagResult struct {
	Flags              int    `json:"flags"`
	QualityScore       int    `json:"qualityScore"`
	HiddenByModeration bool   `json:"hiddenByModeration"`
	Message            string `json:"message"`
}

const (
	msgFlagged       = "Post flagged successfully"
	msgFlaggedHidden = "Post flagged and hidden due to low quality"
)

// Upvote records identity's upvote. The score is left alone unless the Gate
// was built WithRecomputeOnUpvote.
func (g *Gate) Upvote(ctx context.Context, submissionID, identity string) (*UpvoteResult, error) {
	if identity == "" {
		return nil, ErrUnauthenticated
	}
	if submissionID == "" {
		return nil, ErrMissingField
	}

	sub, err := g.mutate(ctx, "upvote", submissionID, func(sub *store.Submission) error {
		if voters(sub.UpvotedBy).Has(identity) {
			return ErrDuplicateAction
		}
		sub.Upvotes++
		sub.UpvotedBy = append(sub.UpvotedBy, newVoteEntry(identity, g.now()))
		if g.recomputeOnUpvote {
			sub.QualityScore = g.policy.Score(sub.Upvotes, sub.Downvotes, len(sub.Flags))
			sub.HiddenByModeration = g.policy.HideAfterFlag(sub.QualityScore, sub.Flags)
		}
		return nil
	})
	if err != nil {
		return nil, g.fail("upvote", submissionID, identity, err)
	}

	return &UpvoteResult{Upvotes: sub.Upvotes}, nil
}

// Downvote records identity's downvote and recomputes score and visibility.
func (g *Gate) Downvote(ctx context.Context, submissionID, identity string) (*DownvoteResult, error) {
	if identity == "" {
		return nil, ErrUnauthenticated
	}
	if submissionID == "" {
		return nil, ErrMissingField
	}

	sub, err := g.mutate(ctx, "downvote", submissionID, func(sub *store.Submission) error {
		if voters(sub.DownvotedBy).Has(identity) {
			return ErrDuplicateAction
		}
		sub.Downvotes++
		sub.DownvotedBy = append(sub.DownvotedBy, newVoteEntry(identity, g.now()))
		sub.QualityScore = g.policy.Score(sub.Upvotes, sub.Downvotes, len(sub.Flags))
		sub.HiddenByModeration = g.policy.HideAfterVote(sub.QualityScore)
		return nil
	})
	if err != nil {
		return nil, g.fail("downvote", submissionID, identity, err)
	}

	return &DownvoteResult{
		Downvotes:          sub.Downvotes,
		QualityScore:       sub.QualityScore,
		HiddenByModeration: sub.HiddenByModeration,
	}, nil
}

// Flag records identity's flag. Each identity may flag a submission once,
// whatever the reason.
func (g *Gate) Flag(ctx context.Context, submissionID, identity string, reason store.FlagReason) (*FlagResult, error) {
	if identity == "" {
		return nil, ErrUnauthenticated
	}
	if submissionID == "" || reason == "" {
		return nil, ErrMissingField
	}
	if !reason.Valid() {
		return nil, ErrInvalidReason
	}

	var wasHidden bool
	sub, err := g.mutate(ctx, "flag", submissionID, func(sub *store.Submission) error {
		if flaggers(sub.Flags).Has(identity) {
			return ErrDuplicateAction
		}
		wasHidden = sub.HiddenByModeration
		now := g.now()
		sub.Flags = append(sub.Flags, store.Flag{
			Key:       entryKey(identity, now),
			Reason:    reason,
			FlaggedBy: identity,
			Timestamp: now,
		})
		sub.QualityScore = g.policy.Score(sub.Upvotes, sub.Downvotes, len(sub.Flags))
		sub.HiddenByModeration = g.policy.HideAfterFlag(sub.QualityScore, sub.Flags)
		return nil
	})
	if err != nil {
		return nil, g.fail("flag", submissionID, identity, err)
	}

	msg := msgFlagged
	if sub.HiddenByModeration {
		msg = msgFlaggedHidden
	}
	if sub.HiddenByModeration && !wasHidden {
		g.logger.Info("submission auto-hidden",
			zap.String("submission_id", submissionID),
			zap.Int("quality_score", sub.QualityScore),
			zap.Int("flags", len(sub.Flags)))
	}

	return &FlagResult{
		Flags:              len(sub.Flags),
		QualityScore:       sub.QualityScore,
		HiddenByModeration: sub.HiddenByModeration,
		Message:            msg,
	}, nil
}

// MeToo appends a corroborating report and returns stats over all of them.
// It needs no identity and never touches the score.
func (g *Gate) MeToo(ctx context.Context, submissionID string, timeWasted int, name string) (*MeTooStats, error) {
	if submissionID == "" {
		return nil, ErrMissingField
	}
	if err := CheckTimeWasted(timeWasted); err != nil {
		return nil, err
	}

	entry := store.MeToo{
		TimeWasted:  timeWasted,
		SubmittedBy: displayName(name),
	}
	sub, err := g.mutate(ctx, "metoo", submissionID, func(sub *store.Submission) error {
		entry.Timestamp = g.now()
		sub.MeToos = append(sub.MeToos, entry)
		return nil
	})
	if err != nil {
		return nil, g.fail("metoo", submissionID, "", err)
	}

	stats := ComputeStats(sub.MeToos)
	return &stats, nil
}

type RescoreResult struct {
	QualityScore       int  `json:"qualityScore"`
	HiddenByModeration bool `json:"hiddenByModeration"`
	Changed            bool `json:"changed"`
}

// Rescore recomputes a submission's derived fields from its current counts
// and flags, writing only when they drifted.
func (g *Gate) Rescore(ctx context.Context, submissionID string) (*RescoreResult, error) {
	if submissionID == "" {
		return nil, ErrMissingField
	}

	sub, err := g.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, g.fail("rescore", submissionID, "", storeFailure(err))
	}
	if sub == nil {
		return nil, ErrNotFound
	}

	score, hidden := g.derive(sub)
	if score == sub.QualityScore && hidden == sub.HiddenByModeration {
		return &RescoreResult{QualityScore: score, HiddenByModeration: hidden}, nil
	}

	sub, err = g.mutate(ctx, "rescore", submissionID, func(sub *store.Submission) error {
		sub.QualityScore, sub.HiddenByModeration = g.derive(sub)
		return nil
	})
	if err != nil {
		return nil, g.fail("rescore", submissionID, "", err)
	}

	return &RescoreResult{
		QualityScore:       sub.QualityScore,
		HiddenByModeration: sub.HiddenByModeration,
		Changed:            true,
	}, nil
}

func (g *Gate) derive(sub *store.Submission) (int, bool) {
	score := g.policy.Score(sub.Upvotes, sub.Downvotes, len(sub.Flags))
	return score, g.policy.HideAfterFlag(score, sub.Flags)
}

// mutate runs read, apply and conditional write, rerunning the whole
// sequence when the write loses a version race. Errors returned by apply are
// final.
func (g *Gate) mutate(ctx context.Context, action, id string, apply func(*store.Submission) error) (*store.Submission, error) {
	var result *store.Submission
	attempt := 0

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(conflictInitialInterval),
		backoff.WithMaxInterval(conflictMaxInterval),
		backoff.WithMaxElapsedTime(conflictMaxElapsedTime),
	), g.retries)

	err := backoff.Retry(func() error {
		attempt++

		sub, err := g.store.GetSubmission(ctx, id)
		if err != nil {
			return backoff.Permanent(storeFailure(err))
		}
		if sub == nil {
			return backoff.Permanent(ErrNotFound)
		}

		if err := apply(sub); err != nil {
			return backoff.Permanent(err)
		}

		if err := g.store.UpdateSubmission(ctx, sub); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				g.logger.Debug("version conflict, retrying",
					zap.String("action", action),
					zap.String("submission_id", id),
					zap.Int("attempt", attempt))
				return err
			}
			return backoff.Permanent(storeFailure(err))
		}

		result = sub
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) ||
			errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			return nil, storeFailure(err)
		}
		return nil, err
	}

	return result, nil
}

// fail logs err at the action boundary and returns it unchanged.
func (g *Gate) fail(action, submissionID, identity string, err error) error {
	fields := []zap.Field{
		zap.String("action", action),
		zap.String("submission_id", submissionID),
		zap.Error(err),
	}
	if identity != "" {
		fields = append(fields, zap.String("identity", identity))
	}

	if IsBusinessError(err) {
		g.logger.Debug("moderation action rejected", fields...)
	} else {
		g.logger.Error("moderation action failed", fields...)
	}
	return err
}
