// Package rituals generates the recurring planning blocks (daily and weekly
// rituals) on each owner's calendar.
package rituals

import (
	"fmt"
	"strings"
	"time"

	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/internal/store"
)

const (
	Daily  = "daily"
	Weekly = "weekly"

	DefaultHorizonDays = 28
	MaxHorizonDays     = 90
	minDuration        = 5
	maxDuration        = 480
)

// Ritual describes one recurring block. Weekdays use time.Weekday numbering
// (0 = Sunday); Time is local "HH:MM".
type Ritual struct {
	Enabled         bool   `json:"enabled" bson:"enabled"`
	Title           string `json:"title" bson:"title"`
	Weekdays        []int  `json:"weekdays" bson:"weekdays"`
	Time            string `json:"time" bson:"time"`
	DurationMinutes int    `json:"durationMinutes" bson:"durationMinutes"`
}

// Settings holds one owner's ritual configuration. The record id is
// SettingsID(tenant, owner).
type Settings struct {
	store.Meta  `bson:",inline"`
	OwnerID     string `json:"ownerId" bson:"ownerId"`
	Timezone    string `json:"timezone" bson:"timezone"`
	HorizonDays int    `json:"horizonDays" bson:"horizonDays"`
	Daily       Ritual `json:"daily" bson:"daily"`
	Weekly      Ritual `json:"weekly" bson:"weekly"`
}

func SettingsID(tenant, owner string) string { return tenant + ":" + owner }

// DefaultSettings plans every weekday morning and, once enabled, Friday afternoon.
func DefaultSettings(owner string, horizon int) Settings {
	if horizon <= 0 || horizon > MaxHorizonDays {
		horizon = DefaultHorizonDays
	}
	return Settings{
		OwnerID:     owner,
		Timezone:    "UTC",
		HorizonDays: horizon,
		Daily: Ritual{
			Enabled:         true,
			Title:           "Daily planning",
			Weekdays:        []int{1, 2, 3, 4, 5},
			Time:            "08:30",
			DurationMinutes: 15,
		},
		Weekly: Ritual{
			Enabled:         false,
			Title:           "Weekly planning",
			Weekdays:        []int{5},
			Time:            "16:00",
			DurationMinutes: 60,
		},
	}
}

func (s *Settings) rituals() []struct {
	name string
	r    Ritual
} {
	return []struct {
		name string
		r    Ritual
	}{{Daily, s.Daily}, {Weekly, s.Weekly}}
}

// Location resolves the settings' timezone; empty means UTC.
func (s *Settings) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, httpx.Invalidf("unknown timezone %q", s.Timezone)
	}
	return loc, nil
}

// clock parses "HH:MM".
func clock(v string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, 0, httpx.Invalidf("time %q must be HH:MM", v)
	}
	return t.Hour(), t.Minute(), nil
}

// Validate checks the settings and normalizes titles and weekday sets.
func (s *Settings) Validate() error {
	if _, err := s.Location(); err != nil {
		return err
	}
	if s.HorizonDays < 1 || s.HorizonDays > MaxHorizonDays {
		return httpx.Invalidf("horizonDays must be between 1 and %d", MaxHorizonDays)
	}
	for _, r := range []*Ritual{&s.Daily, &s.Weekly} {
		if err := r.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Ritual) validate() error {
	r.Title = strings.TrimSpace(r.Title)
	if !r.Enabled {
		return nil
	}
	if r.Title == "" {
		return httpx.Invalidf("ritual title is required")
	}
	if _, _, err := clock(r.Time); err != nil {
		return err
	}
	if r.DurationMinutes < minDuration || r.DurationMinutes > maxDuration {
		return httpx.Invalidf("durationMinutes must be between %d and %d", minDuration, maxDuration)
	}
	if len(r.Weekdays) == 0 {
		return httpx.Invalidf("%s: at least one weekday is required", r.Title)
	}
	seen := [7]bool{}
	days := make([]int, 0, len(r.Weekdays))
	for _, d := range r.Weekdays {
		if d < 0 || d > 6 {
			return httpx.Invalidf("weekday %d out of range 0..6", d)
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	r.Weekdays = days
	return nil
}

// Run records one regeneration of an owner's ritual tasks.
type Run struct {
	store.Meta `bson:",inline"`
	OwnerID    string `json:"ownerId" bson:"ownerId"`
	Trigger    string `json:"trigger" bson:"trigger"`
	Generated  int    `json:"generated" bson:"generated"`
	Removed    int64  `json:"removed" bson:"removed"`
	Status     string `json:"status" bson:"status"`
	Error      string `json:"error,omitempty" bson:"error,omitempty"`
}

const (
	TriggerSettings = "settings"
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"

	RunOK     = "ok"
	RunFailed = "failed"
)

func (r Run) String() string {
	return fmt.Sprintf("ritual run %s owner=%s generated=%d removed=%d status=%s", r.Trigger, r.OwnerID, r.Generated, r.Removed, r.Status)
}
