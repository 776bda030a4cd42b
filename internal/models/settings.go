package models

import (
	"fmt"
	"time"
)

const (
	DefaultCheckFrequencyMinutes = 5
	MinCheckFrequencyMinutes     = 1
	// MaxCheckFrequencyMinutes is one week.
	MaxCheckFrequencyMinutes = 7 * 24 * 60
)

// SchedulerSettings is the persisted singleton controlling the publisher.
type SchedulerSettings struct {
	Enabled               bool      `json:"enabled"`
	CheckFrequencyMinutes int       `json:"check_frequency_minutes"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Period returns the check frequency as a duration.
func (s SchedulerSettings) Period() time.Duration {
	return time.Duration(s.CheckFrequencyMinutes) * time.Minute
}

// SettingsPatch is a partial update; nil fields are left unchanged.
type SettingsPatch struct {
	Enabled               *bool
	CheckFrequencyMinutes *int
}

// Validate rejects a stored record whose frequency is out of range.
func (s SchedulerSettings) Validate() error {
	return ValidateCheckFrequency(s.CheckFrequencyMinutes)
}

// Validate rejects frequencies outside [MinCheckFrequencyMinutes, MaxCheckFrequencyMinutes].
func (p SettingsPatch) Validate() error {
	if p.CheckFrequencyMinutes == nil {
		return nil
	}
	return ValidateCheckFrequency(*p.CheckFrequencyMinutes)
}

func ValidateCheckFrequency(minutes int) error {
	if minutes < MinCheckFrequencyMinutes || minutes > MaxCheckFrequencyMinutes {
		return fmt.Errorf("%w: check frequency must be between %d and %d minutes, got %d",
			ErrInvalidArgument, MinCheckFrequencyMinutes, MaxCheckFrequencyMinutes, minutes)
	}
	return nil
}
