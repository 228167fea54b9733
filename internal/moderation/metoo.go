package moderation

import (
	"math"
	"strings"

	"github.com/alphabot-ai/gripeboard/internal/store"
)

// AnonymousName is recorded for me-toos submitted without a display name.
const AnonymousName = "Anonymous"

// MaxTimeWasted caps a single report at a year of minutes, which keeps sums
// over any me-too list well inside int range.
const MaxTimeWasted = 365 * 24 * 60

// CheckTimeWasted validates a reported number of minutes.
func CheckTimeWasted(minutes int) error {
	switch {
	case minutes == 0:
		return ErrMissingField
	case minutes < 0, minutes > MaxTimeWasted:
		return ErrInvalidTimeWasted
	}
	return nil
}

type MeTooStats struct {
	TotalIncidents int `json:"totalIncidents"`
	UniquePeople   int `json:"uniquePeople"`
	TotalTime      int `json:"totalTime"`
	MinTime        int `json:"minTime"`
	MaxTime        int `json:"maxTime"`
	AvgTime        int `json:"avgTime"`
}

// ComputeStats projects the full me-too list. People are counted by display
// name, so every anonymous report counts as the same person.
func ComputeStats(entries []store.MeToo) MeTooStats {
	if len(entries) == 0 {
		return MeTooStats{}
	}

	names := make(IdentitySet, len(entries))
	stats := MeTooStats{
		TotalIncidents: len(entries),
		MinTime:        entries[0].TimeWasted,
		MaxTime:        entries[0].TimeWasted,
	}
	for _, e := range entries {
		names.Add(e.SubmittedBy)
		stats.TotalTime += e.TimeWasted
		stats.MinTime = min(stats.MinTime, e.TimeWasted)
		stats.MaxTime = max(stats.MaxTime, e.TimeWasted)
	}
	stats.UniquePeople = names.Len()
	stats.AvgTime = int(math.Round(float64(stats.TotalTime) / float64(len(entries))))

	return stats
}

func displayName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return AnonymousName
	}
	return name
}
