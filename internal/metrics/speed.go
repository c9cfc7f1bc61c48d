package metrics

import (
	"math"

	"github.com/san-kum/dsmcsim/internal/dynamo"
)

// TailSpeed averages the species speed over steps after From [s]. With From
// at 80% of the run time it measures the thermalized speed. It is NaN when no
// step landed after From.
type TailSpeed struct {
	From    float64
	total   float64
	samples int
}

func NewTailSpeed(from float64) *TailSpeed { return &TailSpeed{From: from} }

func (s *TailSpeed) Name() string { return "tail_speed" }

func (s *TailSpeed) Observe(p dynamo.ParticleState, _ bool) {
	if p.Time <= s.From {
		return
	}
	s.total += p.Speed()
	s.samples++
}

func (s *TailSpeed) Value() float64 {
	if s.samples == 0 {
		return math.NaN()
	}
	return s.total / float64(s.samples)
}

func (s *TailSpeed) Reset() {
	s.total = 0
	s.samples = 0
}
