package model

// WorkplaceType says where an individual spends the working part of the day.
type WorkplaceType int

const (
	Home   WorkplaceType = 0
	Office WorkplaceType = 1
	School WorkplaceType = 2
)

func (w WorkplaceType) String() string {
	switch w {
	case Office:
		return "Office"
	case School:
		return "School"
	default:
		return "Home"
	}
}

// Layer indexes the four contact layers.
type Layer int

const (
	LayerHome Layer = iota
	LayerWork
	LayerCommunity
	LayerTransit
	NumLayers
)

var layerNames = [NumLayers]string{"home", "work", "community", "transit"}

func (l Layer) String() string {
	if l < 0 || l >= NumLayers {
		return "unknown"
	}
	return layerNames[l]
}

// Kappa holds one participation multiplier per contact layer.
type Kappa [NumLayers]float64

// FullKappa is the no-restriction multiplier set.
func FullKappa() Kappa { return Kappa{1, 1, 1, 1} }

// Hazard holds one hazard value per contact layer.
type Hazard [NumLayers]float64

// Sum of all layers.
func (h Hazard) Sum() float64 {
	return h[LayerHome] + h[LayerWork] + h[LayerCommunity] + h[LayerTransit]
}

// AgeVector is a per-age-group hazard.
type AgeVector [NumAgeGroups]float64

// Fill returns a vector with every age group set to v.
func Fill(v float64) AgeVector {
	var out AgeVector
	for i := range out {
		out[i] = v
	}
	return out
}

// Ref is an optional index into one of the venue slices.
type Ref struct {
	index int
	ok    bool
}

// Some wraps a valid index.
func Some(i int) Ref { return Ref{index: i, ok: true} }

// None is the empty reference.
var None = Ref{}

// Get returns the index and whether it is set.
func (r Ref) Get() (int, bool) { return r.index, r.ok }

// Valid reports whether the reference is set.
func (r Ref) Valid() bool { return r.ok }

// Individual is one person of the synthetic city. All fields are mutated in
// place by the simulation phases; the slice holding individuals never grows.
type Individual struct {
	ID       int
	Age      int
	AgeGroup int
	AgeBand  int
	Loc      Location

	Zeta           float64 // age-dependent community susceptibility
	Infectiousness float64 // rho, Gamma(0.25, 4)
	Severity       float64 // 0 or 1

	Household     int
	Workplace     Ref
	WorkplaceType WorkplaceType
	Community     int
	Transit       Ref

	KernelDist   float64 // f_kernel of the distance to the community centre
	DistHomeWork float64

	Compliant   bool
	Quarantined bool
	Detected    bool

	State           State
	TimeOfInfection float64
	SymptomOnset    float64
	Infective       bool
	KappaT          float64
	PsiT            float64

	IncubationPeriod       float64
	AsymptomaticPeriod     float64
	SymptomaticPeriod      float64
	HospitalRegularPeriod  float64
	HospitalCriticalPeriod float64

	Outgoing Hazard
	Incoming Hazard
	Lambda   float64

	Kappa         Kappa
	KappaIncoming Kappa
}

// Household venue.
type Household struct {
	Loc         Location
	Members     []int
	Q           float64
	Scale       float64
	Compliant   bool
	Quarantined bool
	Lambda      AgeVector
}

// Workplace venue, either an office or a school.
type Workplace struct {
	Loc         Location
	Kind        WorkplaceType
	Members     []int
	Scale       float64
	Quarantined bool
	Lambda      AgeVector
}

// Community is a ward with its common-area centre.
type Community struct {
	Ward         int
	Loc          Location
	Members      []int
	Scale        float64
	Quarantined  bool
	LambdaLocal  float64
	LambdaGlobal float64
}

// TransitGroup is a shared public-transport pool.
type TransitGroup struct {
	Members []int
	Scale   float64
	Lambda  float64
}

// City owns every entity record of one run.
type City struct {
	Individuals  []Individual
	Households   []Household
	Workplaces   []Workplace // schools first, then offices
	Communities  []Community
	Transit      []TransitGroup
	WardDistance [][]float64
}

// StateCounts counts individuals in every disease state.
func (c *City) StateCounts() [NumStates]int {
	var out [NumStates]int
	for i := range c.Individuals {
		out[c.Individuals[i].State]++
	}
	return out
}
