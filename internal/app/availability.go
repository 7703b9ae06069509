package app

import (
	"time"

	"github.com/itsrohit2904/Quiz-App/internal/domain"
)

// UnavailableReason explains why an attempt may not start.
type UnavailableReason string

const (
	ReasonNotStarted UnavailableReason = "not-started"
	ReasonEnded      UnavailableReason = "ended"
	// ReasonLoadFailed is only used by sessions whose definition fetch failed.
	ReasonLoadFailed UnavailableReason = "load-failed"
)

// Availability is the verdict of the availability gate.
type Availability struct {
	Available bool              `json:"available"`
	Reason    UnavailableReason `json:"reason,omitempty"`
}

// CheckAvailability decides whether an attempt may start at now given the
// quiz window. Both bounds are inclusive.
func CheckAvailability(settings domain.Settings, now time.Time) Availability {
	if settings.StartDate != nil && now.Before(*settings.StartDate) {
		return Availability{Available: false, Reason: ReasonNotStarted}
	}
	if settings.EndDate != nil && now.After(*settings.EndDate) {
		return Availability{Available: false, Reason: ReasonEnded}
	}
	return Availability{Available: true}
}
