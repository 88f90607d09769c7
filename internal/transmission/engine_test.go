package transmission

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"episim/internal/mixing"
	"episim/internal/model"
)

// twoWardCity: persons 0 and 1 share household 0, office 0, ward 0 and the
// transit group; person 2 lives alone in ward 1. Only person 0 emits hazard.
func twoWardCity() *model.City {
	full := model.FullKappa()
	city := &model.City{
		Individuals: []model.Individual{
			{AgeGroup: 6, Household: 0, Workplace: model.Some(0), Community: 0, Transit: model.Some(0),
				Zeta: 1, KernelDist: 1, DistHomeWork: 2, KappaIncoming: full,
				Outgoing: model.Hazard{1, 2, 3, 4}},
			{AgeGroup: 2, Household: 0, Workplace: model.Some(0), Community: 0, Transit: model.Some(0),
				Zeta: 0.5, KernelDist: 0.5, DistHomeWork: 3, KappaIncoming: full},
			{AgeGroup: 14, Household: 1, Community: 1, Zeta: 0.5, KernelDist: 1, DistHomeWork: 1, KappaIncoming: full},
		},
		Households: []model.Household{
			{Members: []int{0, 1}, Scale: 0.5},
			{Members: []int{2}, Scale: 1},
		},
		Workplaces:   []model.Workplace{{Kind: model.Office, Members: []int{0, 1}, Scale: 0.25}},
		Communities:  []model.Community{{Members: []int{0, 1}, Scale: 0.1}, {Members: []int{2}, Scale: 1}},
		Transit:      []model.TransitGroup{{Members: []int{0, 1}, Scale: 0.2}},
		WardDistance: [][]float64{{0, 10.751}, {10.751, 0}},
	}
	return city
}

func TestAggregateUniform(t *testing.T) {
	city := twoWardCity()
	e := New(city, AgeMixing{})
	require.NoError(t, e.Aggregate(context.Background()))

	assert.Equal(t, model.Fill(0.5), city.Households[0].Lambda)
	assert.Equal(t, model.Fill(0), city.Households[1].Lambda)
	assert.Equal(t, model.Fill(0.5), city.Workplaces[0].Lambda)
	assert.InDelta(t, 0.3, city.Communities[0].LambdaLocal, 1e-12)
	assert.Equal(t, 0.0, city.Communities[1].LambdaLocal)
	assert.InDelta(t, 0.8, city.Transit[0].Lambda, 1e-12)

	// K(0)=1, K(10.751)=0.5
	assert.InDelta(t, 0.3/1.5, city.Communities[0].LambdaGlobal, 1e-12)
	assert.InDelta(t, 0.5*0.3/1.5, city.Communities[1].LambdaGlobal, 1e-12)

	e.Incoming()
	p1 := city.Individuals[1]
	assert.InDelta(t, 0.5, p1.Incoming[model.LayerHome], 1e-12)
	assert.InDelta(t, 0.5, p1.Incoming[model.LayerWork], 1e-12)
	assert.InDelta(t, 0.5*0.5*0.2, p1.Incoming[model.LayerCommunity], 1e-12)
	assert.InDelta(t, 3*0.8, p1.Incoming[model.LayerTransit], 1e-12)
	assert.InDelta(t, p1.Incoming.Sum(), p1.Lambda, 1e-12)

	p2 := city.Individuals[2]
	assert.Equal(t, 0.0, p2.Incoming[model.LayerWork], "no workplace")
	assert.Equal(t, 0.0, p2.Incoming[model.LayerTransit], "no transit")
	assert.InDelta(t, 0.5*0.1, p2.Lambda, 1e-12)
}

func TestIncomingRespectsKappa(t *testing.T) {
	city := twoWardCity()
	city.Individuals[1].KappaIncoming = model.Kappa{2, 0, 0.25, 0}
	e := New(city, AgeMixing{})
	require.NoError(t, e.Aggregate(context.Background()))
	e.Incoming()

	in := city.Individuals[1].Incoming
	assert.InDelta(t, 1.0, in[model.LayerHome], 1e-12)
	assert.Equal(t, 0.0, in[model.LayerWork])
	assert.Equal(t, 0.0, in[model.LayerTransit])
}

func identityLowRank(t *testing.T) *mixing.LowRank {
	t.Helper()
	raw := mixing.Raw{
		Sigma: make([]float64, model.NumAgeGroups),
		U:     make([][]float64, model.NumAgeGroups),
		VT:    make([][]float64, model.NumAgeGroups),
	}
	for i := range raw.U {
		raw.Sigma[i] = 1
		raw.U[i] = make([]float64, model.NumAgeGroups)
		raw.VT[i] = make([]float64, model.NumAgeGroups)
		raw.U[i][i] = 1
		raw.VT[i][i] = 1
	}
	lr, err := mixing.NewLowRank(raw, model.NumAgeGroups)
	require.NoError(t, err)
	return lr
}

func TestAggregateAgeMixing(t *testing.T) {
	city := twoWardCity()
	lr := identityLowRank(t)
	e := New(city, AgeMixing{Household: lr, Office: lr, School: lr})
	require.NoError(t, e.Aggregate(context.Background()))

	// identity mixing keeps hazard inside the emitter's age group
	home := city.Households[0].Lambda
	assert.InDelta(t, 0.5, home[6], 1e-12)
	assert.Equal(t, 0.0, home[2])

	e.Incoming()
	assert.Equal(t, 0.0, city.Individuals[1].Incoming[model.LayerHome])
	assert.InDelta(t, 0.5, city.Individuals[0].Incoming[model.LayerHome], 1e-12)
}

func TestAggregateZeroKernelSum(t *testing.T) {
	city := twoWardCity()
	inf := math.Inf(1)
	city.WardDistance = [][]float64{{inf, inf}, {inf, inf}}
	e := New(city, AgeMixing{})
	require.NoError(t, e.Aggregate(context.Background()))
	assert.Equal(t, 0.0, city.Communities[0].LambdaGlobal)
}

func TestAggregateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := New(twoWardCity(), AgeMixing{})
	assert.ErrorIs(t, e.Aggregate(ctx), context.Canceled)
}
