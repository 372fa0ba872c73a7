// Package kinematics is the pluggable solver collaborator named in the
// driver's design notes: the core only fetches MDH parameters via
// primary.KinematicsInfo and hands them to a solver like this one, never
// computing forward kinematics itself. Grounded on the external
// KinematicsBase plugin interface (set MDH params once, then solve FK/IK
// repeatedly) rather than on any single vendor's numeric routines.
package kinematics

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/elite-robotics/ec-driver/primary"
)

// MDHSolver computes forward kinematics from a six-joint Modified
// Denavit-Hartenberg parameter set, fetched once via
// primary.KinematicsInfo and held for the life of the solver.
type MDHSolver struct {
	alpha [6]float64
	a     [6]float64
	d     [6]float64
}

// NewMDHSolver builds a solver from a filled KinematicsInfo package
// (i.e. after a successful Client.GetPackage call).
func NewMDHSolver(info *primary.KinematicsInfo) *MDHSolver {
	return &MDHSolver{alpha: info.DHAlpha, a: info.DHA, d: info.DHD}
}

// linkTransform returns the 4x4 homogeneous transform for one MDH link,
// given its joint angle theta.
func linkTransform(alpha, a, d, theta float64) *mat.Dense {
	ca, sa := math.Cos(alpha), math.Sin(alpha)
	ct, st := math.Cos(theta), math.Sin(theta)

	return mat.NewDense(4, 4, []float64{
		ct, -st, 0, a,
		st * ca, ct * ca, -sa, -sa * d,
		st * sa, ct * sa, ca, ca * d,
		0, 0, 0, 1,
	})
}

// ForwardKinematics returns the tool-center-point position (meters, base
// frame) and the full base-to-tool rotation matrix for the given joint
// angles (radians).
func (s *MDHSolver) ForwardKinematics(joints [6]float64) (r3.Vector, *mat.Dense) {
	transform := identity4()
	for i := 0; i < 6; i++ {
		link := linkTransform(s.alpha[i], s.a[i], s.d[i], joints[i])
		next := mat.NewDense(4, 4, nil)
		next.Mul(transform, link)
		transform = next
	}

	pos := r3.Vector{X: transform.At(0, 3), Y: transform.At(1, 3), Z: transform.At(2, 3)}
	rot := mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			rot.Set(r, c, transform.At(r, c))
		}
	}
	return pos, rot
}

func identity4() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1)
	}
	return m
}
