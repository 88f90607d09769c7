package intervention

import (
	"errors"
	"fmt"
)

// Entry is one element of a schedule. Days of 0 means until the end of the run.
type Entry struct {
	Name   string
	Policy Policy
	Days   int
}

// Active is the policy in force at a timestep and the timestep it started.
type Active struct {
	Name   string
	Policy Policy
	Since  int
}

// Schedule maps timesteps to the policy in force.
type Schedule struct {
	start       int // timestep of the first entry
	stepsPerDay int
	entries     []Entry
}

// NewSchedule builds a schedule whose first entry starts offsetDays into the
// run. Entries run back to back; after the last one no intervention applies.
func NewSchedule(offsetDays, stepsPerDay int, entries []Entry) (*Schedule, error) {
	if stepsPerDay <= 0 {
		return nil, errors.New("steps per day must be positive")
	}
	if offsetDays < 0 {
		return nil, fmt.Errorf("negative intervention offset %d", offsetDays)
	}
	for i, e := range entries {
		if e.Policy == nil {
			return nil, fmt.Errorf("schedule entry %d: nil policy", i)
		}
		if e.Days < 0 || (e.Days == 0 && i != len(entries)-1) {
			return nil, fmt.Errorf("schedule entry %d (%s): days must be positive", i, e.Name)
		}
	}
	return &Schedule{
		start:       offsetDays * stepsPerDay,
		stepsPerDay: stepsPerDay,
		entries:     entries,
	}, nil
}

// At returns the policy in force at timestep now.
func (s *Schedule) At(now int) Active {
	if now < s.start {
		return Active{Name: None, Policy: NoIntervention{}, Since: 0}
	}
	since := s.start
	for _, e := range s.entries {
		if e.Days == 0 {
			return Active{Name: e.Name, Policy: e.Policy, Since: since}
		}
		end := since + e.Days*s.stepsPerDay
		if now < end {
			return Active{Name: e.Name, Policy: e.Policy, Since: since}
		}
		since = end
	}
	return Active{Name: None, Policy: NoIntervention{}, Since: since}
}
