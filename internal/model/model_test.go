package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAgeBuckets(t *testing.T) {
	tests := []struct {
		age   int
		group int
		band  int
	}{
		{0, 0, 0},
		{4, 0, 0},
		{5, 1, 0},
		{9, 1, 0},
		{10, 2, 1},
		{69, 13, 6},
		{70, 14, 7},
		{79, 15, 7},
		{80, 15, 8},
		{101, 15, 8},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.group, AgeGroup(tt.age), "age group of %d", tt.age)
		assert.Equal(t, tt.band, AgeBand(tt.age), "age band of %d", tt.age)
	}
}

func TestZeta(t *testing.T) {
	assert.Equal(t, 0.1, Zeta(0))
	assert.Equal(t, 0.25, Zeta(9))
	assert.Equal(t, 0.75, Zeta(19))
	assert.Equal(t, 1.0, Zeta(20))
	assert.Equal(t, 1.0, Zeta(64))
	assert.Equal(t, 0.75, Zeta(65))
	assert.Equal(t, 0.5, Zeta(70))
	assert.Equal(t, 0.25, Zeta(84))
	assert.Equal(t, 0.1, Zeta(85))
}

func TestKernel(t *testing.T) {
	assert.Equal(t, 1.0, Kernel(0))
	assert.InDelta(t, 0.5, Kernel(10.751), 1e-12)
	assert.Less(t, Kernel(30), Kernel(5))
}

func TestDistance(t *testing.T) {
	a := Location{Lat: 12.97, Lon: 77.59}
	assert.Equal(t, 0.0, Distance(a, a))

	// one degree of latitude is about 111 km
	b := Location{Lat: 13.97, Lon: 77.59}
	assert.InDelta(t, 111.2, Distance(a, b), 0.5)
	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}

func TestStateCanFollow(t *testing.T) {
	assert.True(t, Susceptible.CanFollow(Exposed))
	assert.True(t, PreSymptomatic.CanFollow(Recovered))
	assert.True(t, Critical.CanFollow(Dead))
	assert.False(t, Recovered.CanFollow(Susceptible))
	assert.False(t, Exposed.CanFollow(Symptomatic))
	assert.False(t, Dead.CanFollow(Recovered))
	assert.True(t, Dead.Terminal())
	assert.True(t, Hospitalised.Infected())
	assert.False(t, Exposed.Infected())
}

func TestRef(t *testing.T) {
	i, ok := None.Get()
	assert.False(t, ok)
	assert.Equal(t, 0, i)

	r := Some(3)
	i, ok = r.Get()
	assert.True(t, ok)
	assert.Equal(t, 3, i)
}
