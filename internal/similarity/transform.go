package similarity

import (
	"fmt"
	"math"
)

// Raw score assigned to pairs without any residue outside their LCS
// (identical sequences), in place of L / 0^p
const MaxSimilarity = math.MaxFloat64

// Transform applied to raw scores before they are stored. The clustering
// strategy picks the one matching how it reads the matrix.
type Transform int

const (
	Identity   Transform = iota // similarity, higher is closer
	Reciprocal                  // distance-like, 1/x
	Inverse                     // negated similarity, lower is closer
)

var ParseTransform = map[string]Transform{
	"identity":   Identity,
	"reciprocal": Reciprocal,
	"inverse":    Inverse,
}

func (t Transform) String() string {
	for s, tr := range ParseTransform {
		if tr == t {
			return s
		}
	}
	panic(fmt.Sprintf("transform (%d) does not exist", t))
}

func (t Transform) valid() bool {
	return t >= Identity && t <= Inverse
}

// Resolves the transform to a function once, so the per-pair loop does not
// branch on it
func (t Transform) Func() func(float64) float64 {
	switch t {
	case Identity:
		return identity
	case Reciprocal:
		return reciprocal
	case Inverse:
		return inverse
	default:
		panic(fmt.Sprintf("invalid transform (%d)", t))
	}
}

func (t Transform) Apply(x float64) float64 {
	return t.Func()(x)
}

// Stored value for identical sequences under this transform
func (t Transform) Sentinel() float64 {
	return t.Apply(MaxSimilarity)
}

func identity(x float64) float64 { return x }

func inverse(x float64) float64 { return -x }

// 1/x, saturated to the largest finite value for zero or overflowing input
func reciprocal(x float64) float64 {
	if x == 0 {
		return MaxSimilarity
	}
	r := 1 / x
	if math.IsInf(r, 0) {
		return math.Copysign(MaxSimilarity, r)
	}
	return r
}
