package retry

import (
	"fmt"
	"time"

	"github.com/davsync/davsync/internal/daverr"
)

// Progress is a snapshot of a running retry loop.
type Progress struct {
	// Attempt is the number of completed attempts. Zero before the first one.
	Attempt     int
	MaxAttempts int
	LastErr     error
	// NextDelay is set when another attempt is scheduled.
	NextDelay time.Duration
}

// IsFinal reports whether no further attempt will follow this snapshot.
func (p Progress) IsFinal() bool {
	if p.LastErr == nil {
		return p.Attempt > 0
	}
	return p.NextDelay == 0 || p.Attempt >= p.MaxAttempts
}

// Percent returns the share of the attempt budget consumed so far.
func (p Progress) Percent() float64 {
	if p.MaxAttempts == 0 {
		return 100
	}
	return float64(p.Attempt) / float64(p.MaxAttempts) * 100
}

// StatusMessage renders the snapshot for end users.
func (p Progress) StatusMessage() string {
	switch {
	case p.LastErr == nil && p.Attempt == 0:
		return "Starting..."
	case p.LastErr == nil:
		return "Done"
	case p.IsFinal():
		return "Failed: " + daverr.FriendlyMessage(p.LastErr)
	default:
		return fmt.Sprintf("Attempt %d failed, retrying in %s: %s",
			p.Attempt, p.NextDelay.Round(100*time.Millisecond), daverr.FriendlyMessage(p.LastErr))
	}
}
