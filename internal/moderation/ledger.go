package moderation

import (
	"strconv"
	"time"

	"github.com/alphabot-ai/gripeboard/internal/store"
)

// IdentitySet is the set of identities that performed one action on one
// submission. Membership, not list order, is the invariant.
type IdentitySet map[string]struct{}

func (s IdentitySet) Has(identity string) bool {
	_, ok := s[identity]
	return ok
}

// Add inserts identity and reports whether it was absent.
func (s IdentitySet) Add(identity string) bool {
	if s.Has(identity) {
		return false
	}
	s[identity] = struct{}{}
	return true
}

func (s IdentitySet) Len() int {
	return len(s)
}

// voters builds the membership set of a vote ledger.
func voters(entries []store.VoteEntry) IdentitySet {
	s := make(IdentitySet, len(entries))
	for _, e := range entries {
		s[e.Identity] = struct{}{}
	}
	return s
}

// flaggers builds the membership set of a flag ledger.
func flaggers(flags []store.Flag) IdentitySet {
	s := make(IdentitySet, len(flags))
	for _, f := range flags {
		s[f.FlaggedBy] = struct{}{}
	}
	return s
}

// entryKey is unique within a ledger because an identity appears at most once.
func entryKey(identity string, at time.Time) string {
	return identity + "-" + strconv.FormatInt(at.UnixMilli(), 10)
}

func newVoteEntry(identity string, at time.Time) store.VoteEntry {
	return store.VoteEntry{
		Key:      entryKey(identity, at),
		Identity: identity,
		At:       at,
	}
}

func countReason(flags []store.Flag, reason store.FlagReason) int {
	n := 0
	for _, f := range flags {
		if f.Reason == reason {
			n++
		}
	}
	return n
}
