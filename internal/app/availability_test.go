package app_test

import (
	"testing"
	"time"

	"github.com/itsrohit2904/Quiz-App/internal/app"
	"github.com/itsrohit2904/Quiz-App/internal/domain"
)

func TestCheckAvailability(t *testing.T) {
	start := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		settings domain.Settings
		now      time.Time
		want     app.Availability
	}{
		{"no bounds", domain.Settings{}, now, app.Availability{Available: true}},
		{"no bounds far past", domain.Settings{}, time.Unix(0, 0), app.Availability{Available: true}},
		{"not started", domain.Settings{StartDate: &start}, now, app.Availability{Reason: app.ReasonNotStarted}},
		{"start is inclusive", domain.Settings{StartDate: &start}, start, app.Availability{Available: true}},
		{"ended", domain.Settings{EndDate: &end}, now, app.Availability{Reason: app.ReasonEnded}},
		{"end is inclusive", domain.Settings{EndDate: &end}, end, app.Availability{Available: true}},
	}
	for _, tc := range cases {
		if got := app.CheckAvailability(tc.settings, tc.now); got != tc.want {
			t.Fatalf("%s: expected %+v, got %+v", tc.name, tc.want, got)
		}
	}
}
