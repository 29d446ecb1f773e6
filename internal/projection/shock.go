package projection

import (
	"math"
	"math/rand/v2"
)

// ShockGenerator yields one approximately standard normal draw per call.
type ShockGenerator interface {
	Next() float64
}

const irwinHallTerms = 6

// The sum of six uniforms has mean 3 and variance 0.5.
var irwinHallScale = math.Sqrt(0.5)

// IrwinHall approximates a standard normal by summing six uniforms. Its tails
// are bounded at ±3/sqrt(0.5), which caps single-month shocks.
type IrwinHall struct {
	src *rand.Rand
}

func NewIrwinHall(src *rand.Rand) *IrwinHall {
	return &IrwinHall{src: src}
}

func (g *IrwinHall) Next() float64 {
	sum := 0.0
	for range irwinHallTerms {
		sum += g.src.Float64()
	}
	return (sum - 3.0) / irwinHallScale
}

// PathShocks returns the shock stream of path i in a run seeded with seed.
// Streams depend only on (seed, i), never on which worker simulates the path.
func PathShocks(seed uint64, i int) *IrwinHall {
	return NewIrwinHall(rand.New(rand.NewPCG(seed, uint64(i))))
}
