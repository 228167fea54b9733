package moderation

import "github.com/alphabot-ai/gripeboard/internal/store"

// Score is the quality score: upvotes minus downvotes minus two per flag.
func Score(upvotes, downvotes, flagCount int) int {
	return upvotes - downvotes - 2*flagCount
}

// Policy decides a submission's quality score and whether it is auto-hidden.
// Swapping the policy changes thresholds and weights without touching the Gate.
type Policy interface {
	Score(upvotes, downvotes, flagCount int) int
	// HideAfterVote is applied when a vote recomputes the score.
	HideAfterVote(score int) bool
	// HideAfterFlag is applied when a flag is added or a submission is rescored.
	HideAfterFlag(score int, flags []store.Flag) bool
}

// DefaultPolicy hides a submission whose score drops below HideBelow, or,
// once flagged, that collects WhiningFlagLimit "whining" flags.
type DefaultPolicy struct {
	FlagWeight       int
	HideBelow        int
	WhiningFlagLimit int
}

func NewDefaultPolicy() DefaultPolicy {
	return DefaultPolicy{
		FlagWeight:       2,
		HideBelow:        -5,
		WhiningFlagLimit: 3,
	}
}

func (p DefaultPolicy) Score(upvotes, downvotes, flagCount int) int {
	return Score(upvotes, downvotes, 0) - p.FlagWeight*flagCount
}

func (p DefaultPolicy) HideAfterVote(score int) bool {
	return score < p.HideBelow
}

func (p DefaultPolicy) HideAfterFlag(score int, flags []store.Flag) bool {
	return score < p.HideBelow || countReason(flags, store.FlagWhining) >= p.WhiningFlagLimit
}

var _ Policy = DefaultPolicy{}
