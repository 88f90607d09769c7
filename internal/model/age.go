package model

const (
	NumAgeGroups = 16
	NumAgeBands  = 9
	ElderlyAge   = 70
)

// AgeGroup maps an age to one of 16 five-year bins; 80 and over share bin 15.
func AgeGroup(age int) int {
	if age > 79 {
		return NumAgeGroups - 1
	}
	return age / 5
}

// AgeBand maps an age to the decade band used by the transition table:
// <10, <20, ... <80, then everything older.
func AgeBand(age int) int {
	if age >= 80 {
		return NumAgeBands - 1
	}
	return age / 10
}

// Zeta is the age-dependent factor on community exposure.
func Zeta(age int) float64 {
	switch {
	case age < 5:
		return 0.1
	case age < 10:
		return 0.25
	case age < 15:
		return 0.5
	case age < 20:
		return 0.75
	case age < 65:
		return 1
	case age < 70:
		return 0.75
	case age < 75:
		return 0.5
	case age < 85:
		return 0.25
	default:
		return 0.1
	}
}
