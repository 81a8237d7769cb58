package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TournamentStatus matches the ENUM-like CHECK constraint in the DB.
type TournamentStatus string

const (
	StatusDraft        TournamentStatus = "draft"
	StatusRegistration TournamentStatus = "registration"
	StatusCheckIn      TournamentStatus = "check_in"
	StatusInProgress   TournamentStatus = "in_progress"
	StatusCompleted    TournamentStatus = "completed"
	StatusCancelled    TournamentStatus = "cancelled"
)

// Terminal reports whether the status can never change again.
func (s TournamentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s TournamentStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusRegistration, StatusCheckIn, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// TournamentFormat is a closed set; every generator dispatch switches
// exhaustively over it.
type TournamentFormat string

const (
	FormatSingleElimination TournamentFormat = "single_elimination"
	FormatDoubleElimination TournamentFormat = "double_elimination"
	FormatSwiss             TournamentFormat = "swiss"
	FormatRoundRobin        TournamentFormat = "round_robin"
)

func (f TournamentFormat) Valid() bool {
	switch f {
	case FormatSingleElimination, FormatDoubleElimination, FormatSwiss, FormatRoundRobin:
		return true
	}
	return false
}

type SeedingMethod string

const (
	SeedingRandom            SeedingMethod = "random"
	SeedingSkillRanked       SeedingMethod = "skill_ranked"
	SeedingRegistrationOrder SeedingMethod = "registration_order"
)

func (m SeedingMethod) Valid() bool {
	switch m {
	case SeedingRandom, SeedingSkillRanked, SeedingRegistrationOrder:
		return true
	}
	return false
}

// PrizeDistribution maps a placement label ("1st", "2nd", ...) to a
// percentage of the prize pool. Percentages do not have to sum to 100,
// but each must lie within [0, 100]. Stored as JSONB.
type PrizeDistribution map[string]float64

func (d PrizeDistribution) Validate() error {
	for label, pct := range d {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("prize percentage for %q must be within [0,100], got %v", label, pct)
		}
	}
	return nil
}

func (d PrizeDistribution) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func (d *PrizeDistribution) Scan(src interface{}) error {
	if src == nil {
		*d = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into PrizeDistribution", src)
	}
	return json.Unmarshal(b, d)
}

// Tournament is the aggregate root. Status and timestamps are mutated by
// the lifecycle scheduler; everything else by organizer actions.
type Tournament struct {
	ID          int              `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	OrganizerID int              `json:"organizer_id" db:"organizer_id"`
	Format      TournamentFormat `json:"format" db:"format"`
	Seeding     SeedingMethod    `json:"seeding" db:"seeding"`
	Status      TournamentStatus `json:"status" db:"status"`

	RegistrationStartsAt time.Time  `json:"registration_starts_at" db:"registration_starts_at"`
	RegistrationEndsAt   time.Time  `json:"registration_ends_at" db:"registration_ends_at"`
	CheckInStartsAt      time.Time  `json:"check_in_starts_at" db:"check_in_starts_at"`
	StartsAt             time.Time  `json:"starts_at" db:"starts_at"`
	EstimatedEndAt       time.Time  `json:"estimated_end_at" db:"estimated_end_at"`
	ActualEndAt          *time.Time `json:"actual_end_at,omitempty" db:"actual_end_at"`

	MinParticipants int `json:"min_participants" db:"min_participants"`
	MaxParticipants int `json:"max_participants" db:"max_participants"`

	PrizePool         decimal.Decimal   `json:"prize_pool" db:"prize_pool"`
	PrizeDistribution PrizeDistribution `json:"prize_distribution,omitempty" db:"prize_distribution"`

	BannerKey *string `json:"-" db:"banner_key"`
	BannerURL *string `json:"banner_url,omitempty" db:"-"`

	PublishedAt *time.Time `json:"published_at,omitempty" db:"published_at"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty" db:"archived_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`

	// Optional related entities, loaded on demand.
	Participants []Participant `json:"participants,omitempty" db:"-"`
	Brackets     []Bracket     `json:"brackets,omitempty" db:"-"`
}

// ValidateSchedule enforces the temporal invariant:
// registration-start < registration-end <= check-in-start < scheduled-start.
func (t *Tournament) ValidateSchedule() error {
	switch {
	case t.RegistrationStartsAt.IsZero() || t.RegistrationEndsAt.IsZero() ||
		t.CheckInStartsAt.IsZero() || t.StartsAt.IsZero() || t.EstimatedEndAt.IsZero():
		return fmt.Errorf("all schedule boundaries are required")
	case !t.RegistrationStartsAt.Before(t.RegistrationEndsAt):
		return fmt.Errorf("registration start (%s) must be before registration end (%s)",
			t.RegistrationStartsAt.Format(time.RFC3339), t.RegistrationEndsAt.Format(time.RFC3339))
	case t.RegistrationEndsAt.After(t.CheckInStartsAt):
		return fmt.Errorf("registration end (%s) must not be after check-in start (%s)",
			t.RegistrationEndsAt.Format(time.RFC3339), t.CheckInStartsAt.Format(time.RFC3339))
	case !t.CheckInStartsAt.Before(t.StartsAt):
		return fmt.Errorf("check-in start (%s) must be before scheduled start (%s)",
			t.CheckInStartsAt.Format(time.RFC3339), t.StartsAt.Format(time.RFC3339))
	}
	return nil
}

func (t *Tournament) ValidateCapacity() error {
	if t.MinParticipants < 2 {
		return fmt.Errorf("min participants must be at least 2, got %d", t.MinParticipants)
	}
	if t.MaxParticipants < t.MinParticipants {
		return fmt.Errorf("max participants (%d) must be >= min participants (%d)",
			t.MaxParticipants, t.MinParticipants)
	}
	return nil
}
