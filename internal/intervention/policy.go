package intervention

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPolicy is returned by Lookup for an id outside the catalogue.
var ErrUnknownPolicy = errors.New("intervention: unknown policy")

// Policy is one of NoIntervention, Lockdown, Measures or Phased.
type Policy interface {
	String() string
	isPolicy()
}

// NoIntervention leaves every kappa at 1.
type NoIntervention struct{}

// Lockdown restricts every household, compliant or not.
type Lockdown struct{}

// Measures is a combination of targeted interventions.
type Measures struct {
	CaseIsolation     bool
	HomeQuarantine    bool
	ElderlyDistancing bool
	SchoolsClosed     bool
	OddEvenOffices    bool
}

// Phase runs Policy for Days days.
type Phase struct {
	Policy Policy
	Days   int
}

// Phased runs its phases back to back from activation, then Then forever.
type Phased struct {
	Phases []Phase
	Then   Policy
}

func (NoIntervention) isPolicy() {}
func (Lockdown) isPolicy()       {}
func (Measures) isPolicy()       {}
func (Phased) isPolicy()         {}

func (NoIntervention) String() string { return "no_intervention" }
func (Lockdown) String() string       { return "lockdown" }

func (m Measures) String() string {
	var parts []string
	if m.CaseIsolation {
		parts = append(parts, "ci")
	}
	if m.HomeQuarantine {
		parts = append(parts, "hq")
	}
	if m.ElderlyDistancing {
		parts = append(parts, "sd70")
	}
	if m.SchoolsClosed {
		parts = append(parts, "sc")
	}
	if m.OddEvenOffices {
		parts = append(parts, "oe")
	}
	if len(parts) == 0 {
		return NoIntervention{}.String()
	}
	return strings.Join(parts, "_")
}

func (p Phased) String() string {
	var b strings.Builder
	for _, ph := range p.Phases {
		fmt.Fprintf(&b, "%s%d>", ph.Policy, ph.Days)
	}
	b.WriteString(p.Then.String())
	return b.String()
}

// Named policy ids, in the order of the intervention codes of the command
// line tool; calibration comes first.
const (
	Calibration             = "calibration"
	None                    = "no_intervention"
	CaseIsolation           = "case_isolation"
	HomeQuarantine          = "home_quarantine"
	LockdownID              = "lockdown"
	CIHQ                    = "ci_hq"
	CIHQSD70                = "ci_hq_sd70"
	LD40CIHQSD70For21ThenCI = "ld40_ci_hq_sd70_21_ci"
	LD40                    = "ld40"
	LD40CIHQSD70SC21SC42    = "ld40_ci_hq_sd70_sc21_sc42"
	LD40CIHQSD70SC21        = "ld40_ci_hq_sd70_sc21"
	LD40CIHQSD70SCOE30      = "ld40_ci_hq_sd70_sc_oe30"
)

var names = []string{
	Calibration, None, CaseIsolation, HomeQuarantine, LockdownID, CIHQ, CIHQSD70,
	LD40CIHQSD70For21ThenCI, LD40, LD40CIHQSD70SC21SC42, LD40CIHQSD70SC21, LD40CIHQSD70SCOE30,
}

// Names lists every named policy id.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

var compliance = map[string]float64{
	Calibration:             0.9,
	None:                    0.9,
	CaseIsolation:           0.7,
	HomeQuarantine:          0.5,
	LockdownID:              0.9,
	CIHQ:                    0.7,
	CIHQSD70:                0.7,
	LD40CIHQSD70For21ThenCI: 0.9,
	LD40:                    0.9,
	LD40CIHQSD70SC21SC42:    0.9,
	LD40CIHQSD70SC21:        0.9,
	LD40CIHQSD70SCOE30:      0.9,
}

// Compliance returns the default household compliance probability of a
// named policy.
func Compliance(name string) (float64, error) {
	c, ok := compliance[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	return c, nil
}

// DefaultCalibrationLockdownDays is the lockdown length of the calibration run.
const DefaultCalibrationLockdownDays = 21

const lockdownDays = 40

// Lookup resolves a named policy. calibrationDays is the lockdown length used
// by the calibration policy.
func Lookup(name string, calibrationDays int) (Policy, error) {
	ciHQSD70 := Measures{CaseIsolation: true, HomeQuarantine: true, ElderlyDistancing: true}
	ciHQSD70SC := ciHQSD70
	ciHQSD70SC.SchoolsClosed = true
	ciHQSD70SCOE := ciHQSD70SC
	ciHQSD70SCOE.OddEvenOffices = true

	switch name {
	case Calibration:
		return Phased{Phases: []Phase{{Lockdown{}, calibrationDays}}, Then: NoIntervention{}}, nil
	case None:
		return NoIntervention{}, nil
	case CaseIsolation:
		return Measures{CaseIsolation: true}, nil
	case HomeQuarantine:
		return Measures{HomeQuarantine: true}, nil
	case LockdownID:
		return Lockdown{}, nil
	case CIHQ:
		return Measures{CaseIsolation: true, HomeQuarantine: true}, nil
	case CIHQSD70:
		return ciHQSD70, nil
	case LD40:
		return Phased{Phases: []Phase{{Lockdown{}, lockdownDays}}, Then: NoIntervention{}}, nil
	case LD40CIHQSD70For21ThenCI:
		return Phased{
			Phases: []Phase{{Lockdown{}, lockdownDays}, {ciHQSD70, 21}},
			Then:   Measures{CaseIsolation: true},
		}, nil
	case LD40CIHQSD70SC21:
		return Phased{
			Phases: []Phase{{Lockdown{}, lockdownDays}, {ciHQSD70SC, 21}},
			Then:   ciHQSD70,
		}, nil
	case LD40CIHQSD70SC21SC42:
		return Phased{
			Phases: []Phase{{Lockdown{}, lockdownDays}, {ciHQSD70SC, 21}, {ciHQSD70SC, 42}},
			Then:   ciHQSD70,
		}, nil
	case LD40CIHQSD70SCOE30:
		return Phased{
			Phases: []Phase{{Lockdown{}, lockdownDays}, {ciHQSD70SCOE, 30}},
			Then:   ciHQSD70,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
}
