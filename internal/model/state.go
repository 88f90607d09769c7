package model

// State is the disease state of an individual.
//
// The numeric order is not the progression order: Recovered sits between
// Symptomatic and Hospitalised. Use CanFollow for transitions.
type State int

const (
	Susceptible    State = 0
	Exposed        State = 1
	PreSymptomatic State = 2
	Symptomatic    State = 3
	Recovered      State = 4
	Hospitalised   State = 5
	Critical       State = 6
	Dead           State = 7
	NumStates            = 8
)

var stateNames = [NumStates]string{
	"Susceptible", "Exposed", "PreSymptomatic", "Symptomatic",
	"Recovered", "Hospitalised", "Critical", "Dead",
}

func (s State) String() string {
	if s < 0 || int(s) >= NumStates {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Recovered || s == Dead }

// Infected covers the states counted as currently infected in reports.
func (s State) Infected() bool {
	return s == PreSymptomatic || s == Symptomatic || s == Hospitalised || s == Critical
}

// CanFollow reports whether next is a legal successor of s (or s itself).
func (s State) CanFollow(next State) bool {
	if next == s {
		return true
	}
	switch s {
	case Susceptible:
		return next == Exposed
	case Exposed:
		return next == PreSymptomatic
	case PreSymptomatic:
		return next == Symptomatic || next == Recovered
	case Symptomatic:
		return next == Hospitalised || next == Recovered
	case Hospitalised:
		return next == Critical || next == Recovered
	case Critical:
		return next == Dead || next == Recovered
	}
	return false
}
