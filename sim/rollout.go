package sim

import (
	"fmt"

	mpc "github.com/milosgajdos/go-mpc"
	"gonum.org/v1/gonum/mat"
)

// Propagator propagates lifted state z to the next step given input u
type Propagator interface {
	// Propagate returns the next lifted state
	Propagate(z, u mat.Vector) (mat.Vector, error)
}

// Rollout propagates state z0 n steps forward driven by controls stored in rows of u
// and returns the (n+1) x nx state trajectory.
// u may be nil for models with no inputs. If q is not nil its samples are
// added to every propagated state.
// It returns error if u has fewer than n rows or the model fails to propagate.
func Rollout(m Propagator, z0 mat.Vector, u *mat.Dense, n int, q mpc.Noise) (*mat.Dense, error) {
	if z0 == nil || z0.Len() == 0 {
		return nil, fmt.Errorf("invalid initial state")
	}

	if n <= 0 {
		return nil, fmt.Errorf("invalid number of steps: %d", n)
	}

	if u != nil {
		if rows, _ := u.Dims(); rows < n {
			return nil, fmt.Errorf("invalid control trajectory: %d steps < %d", rows, n)
		}
	}

	nx := z0.Len()
	out := mat.NewDense(n+1, nx, nil)
	out.SetRow(0, mat.Col(nil, 0, z0))

	var z mat.Vector = z0
	for i := 0; i < n; i++ {
		var ui mat.Vector
		if u != nil {
			ui = u.RowView(i)
		}

		next, err := m.Propagate(z, ui)
		if err != nil {
			return nil, fmt.Errorf("step %d: state propagation failed: %v", i, err)
		}

		if next.Len() != nx {
			return nil, fmt.Errorf("step %d: invalid state dimension: %d", i, next.Len())
		}

		if q != nil {
			s := q.Sample()
			if s.Len() != nx {
				return nil, fmt.Errorf("invalid noise dimension: %d", s.Len())
			}
			v := mat.VecDenseCopyOf(next)
			v.AddVec(v, s)
			next = v
		}

		out.SetRow(i+1, mat.Col(nil, 0, next))
		z = next
	}

	return out, nil
}
