package surveillance

import (
	"fmt"

	"episim/internal/model"
)

// Sewershed is the catchment of one treatment plant: a run of consecutive
// wards whose households drain to the same sampling point.
type Sewershed struct {
	ID          int
	Name        string
	Wards       []int
	Communities []int // indices into City.Communities
	Population  int
	FlowLitres  float64 // per day

	sampled    bool
	lastSample int

	load         float64
	detected     int
	hospitalised int
	deaths       int

	cumDetected     int
	cumHospitalised int
	cumDeaths       int
}

// Partition groups the wards of city into sewersheds of wardsPer wards each
// and returns them with the sewershed of every community.
func Partition(city *model.City, wardsPer int, litresPerPerson float64) ([]Sewershed, []int) {
	n := (len(city.Communities) + wardsPer - 1) / wardsPer
	sheds := make([]Sewershed, n)
	for i := range sheds {
		sheds[i] = Sewershed{ID: i, Name: fmt.Sprintf("sewershed_%d", i)}
	}
	shedOf := make([]int, len(city.Communities))
	for c := range city.Communities {
		s := c / wardsPer
		shedOf[c] = s
		sheds[s].Wards = append(sheds[s].Wards, city.Communities[c].Ward)
		sheds[s].Communities = append(sheds[s].Communities, c)
	}
	for i := range city.Individuals {
		sheds[shedOf[city.Individuals[i].Community]].Population++
	}
	for i := range sheds {
		sheds[i].FlowLitres = float64(sheds[i].Population) * litresPerPerson
	}
	return sheds, shedOf
}

// due reports whether a sample is taken on day.
func (s *Sewershed) due(day, interval int) bool {
	return !s.sampled || day-s.lastSample >= interval
}

func (s *Sewershed) resetDaily() {
	s.load = 0
	s.detected = 0
	s.hospitalised = 0
	s.deaths = 0
}
