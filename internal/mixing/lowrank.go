package mixing

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"episim/internal/model"
)

// ErrShape is returned for mixing inputs of the wrong dimensions.
var ErrShape = errors.New("mixing: bad matrix shape")

// Raw is a truncated SVD C = U diag(Sigma) Vᵀ of a 16x16 age contact matrix.
// U rows are age groups, VT rows are components.
type Raw struct {
	Sigma []float64
	U     [][]float64
	VT    [][]float64
}

// Matrices holds the optional per-venue-class mixing inputs.
type Matrices struct {
	Household *Raw
	Office    *Raw
	School    *Raw
}

// LowRank maps per-age-group outgoing sums to per-age-group incoming hazard
// using the first rank components of the decomposition.
type LowRank struct {
	sigma []float64
	uk    mat.Matrix // 16 x rank
	vtk   mat.Matrix // rank x 16
	rank  int
}

// NewLowRank validates raw and keeps its first rank components.
func NewLowRank(raw Raw, rank int) (*LowRank, error) {
	const n = model.NumAgeGroups
	if rank < 1 || rank > n {
		return nil, fmt.Errorf("%w: rank %d outside 1..%d", ErrShape, rank, n)
	}
	if len(raw.Sigma) != n {
		return nil, fmt.Errorf("%w: sigma has %d values, want %d", ErrShape, len(raw.Sigma), n)
	}
	u, err := dense("U", raw.U)
	if err != nil {
		return nil, err
	}
	vt, err := dense("VT", raw.VT)
	if err != nil {
		return nil, err
	}
	sigma := make([]float64, rank)
	copy(sigma, raw.Sigma[:rank])
	return &LowRank{
		sigma: sigma,
		uk:    u.Slice(0, n, 0, rank),
		vtk:   vt.Slice(0, rank, 0, n),
		rank:  rank,
	}, nil
}

func dense(name string, rows [][]float64) (*mat.Dense, error) {
	const n = model.NumAgeGroups
	if len(rows) != n {
		return nil, fmt.Errorf("%w: %s has %d rows, want %d", ErrShape, name, len(rows), n)
	}
	data := make([]float64, 0, n*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("%w: %s row %d has %d columns, want %d", ErrShape, name, i, len(row), n)
		}
		data = append(data, row...)
	}
	return mat.NewDense(n, n, data), nil
}

// Rank is the number of components kept.
func (m *LowRank) Rank() int { return m.rank }

// Apply returns scale * U_k diag(sigma_k) Vᵀ_k x.
func (m *LowRank) Apply(x model.AgeVector, scale float64) model.AgeVector {
	xv := mat.NewVecDense(model.NumAgeGroups, x[:])

	var proj mat.VecDense
	proj.MulVec(m.vtk, xv)
	for i := 0; i < m.rank; i++ {
		proj.SetVec(i, scale*m.sigma[i]*proj.AtVec(i))
	}

	var out mat.VecDense
	out.MulVec(m.uk, &proj)

	var res model.AgeVector
	for i := range res {
		res[i] = out.AtVec(i)
	}
	return res
}
