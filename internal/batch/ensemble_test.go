package batch_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/dsmcsim/internal/batch"
	"github.com/san-kum/dsmcsim/internal/dynamo"
)

// drawTrial reports one uniform draw as the final time, so outcomes expose
// the stream each trial saw.
func drawTrial(_ context.Context, rng *rand.Rand, index int) (*dynamo.Result, error) {
	return &dynamo.Result{
		Final:  dynamo.ParticleState{Time: rng.Float64(), Step: index},
		Reason: dynamo.PhaseExited,
		Steps:  index,
	}, nil
}

var _ = Describe("Ensemble", func() {
	It("gives every trial the same stream regardless of worker count", func() {
		one, err := batch.NewEnsemble(64, 1, 7).Run(context.Background(), drawTrial)
		Expect(err).NotTo(HaveOccurred())
		many, err := batch.NewEnsemble(64, 8, 7).Run(context.Background(), drawTrial)
		Expect(err).NotTo(HaveOccurred())

		for i := range one {
			Expect(one[i].Index).To(Equal(i))
			Expect(many[i].Result.Final.Time).To(Equal(one[i].Result.Final.Time))
		}
	})

	It("uses different streams for different seeds", func() {
		a, _ := batch.NewEnsemble(4, 2, 1).Run(context.Background(), drawTrial)
		b, _ := batch.NewEnsemble(4, 2, 2).Run(context.Background(), drawTrial)
		Expect(a[0].Result.Final.Time).NotTo(Equal(b[0].Result.Final.Time))
	})

	It("reports progress for every trial", func() {
		var calls atomic.Int64
		e := batch.NewEnsemble(25, 4, 1)
		e.Progress = func(done, total int) {
			calls.Add(1)
			Expect(total).To(Equal(25))
		}
		_, err := e.Run(context.Background(), drawTrial)
		Expect(err).NotTo(HaveOccurred())
		Expect(calls.Load()).To(BeEquivalentTo(25))
	})

	It("rejects an empty ensemble", func() {
		_, err := batch.NewEnsemble(0, 1, 1).Run(context.Background(), drawTrial)
		Expect(errors.Is(err, dynamo.ErrInvalidConfig)).To(BeTrue())
	})

	It("keeps going past failing trials and counts them by kind", func() {
		trial := func(ctx context.Context, rng *rand.Rand, i int) (*dynamo.Result, error) {
			switch i % 4 {
			case 1:
				return nil, &dynamo.TrajectoryError{Step: 3, Position: r3.Vec{}, Wrapped: fmt.Errorf("%w: collinear", dynamo.ErrInterpolation)}
			case 2:
				return nil, fmt.Errorf("%w: rejection", dynamo.ErrSampling)
			}
			return drawTrial(ctx, rng, i)
		}
		out, err := batch.NewEnsemble(40, 3, 1).Run(context.Background(), trial)
		Expect(err).NotTo(HaveOccurred())

		s := batch.Summarize(out)
		Expect(s.Trials).To(Equal(40))
		Expect(s.Failed).To(Equal(20))
		Expect(s.Exited).To(Equal(20))
		Expect(s.Failures).To(HaveKeyWithValue("interpolation", 10))
		Expect(s.Failures).To(HaveKeyWithValue("sampling", 10))
		Expect(s.ExitFraction()).To(BeNumerically("~", 0.5))
	})

	It("marks unscheduled trials as canceled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		trial := func(ctx context.Context, rng *rand.Rand, i int) (*dynamo.Result, error) {
			if i == 0 {
				cancel()
			}
			return drawTrial(ctx, rng, i)
		}
		out, err := batch.NewEnsemble(1000, 1, 1).Run(ctx, trial)
		Expect(errors.Is(err, dynamo.ErrContextCanceled)).To(BeTrue())
		Expect(out).To(HaveLen(1000))
		Expect(dynamo.Kind(out[len(out)-1].Err)).To(Equal("canceled"))
	})
})

var _ = Describe("Summarize", func() {
	It("computes means and population standard errors", func() {
		out := []batch.Outcome{
			{Result: &dynamo.Result{Final: dynamo.ParticleState{Time: 1}, Steps: 10, Reason: dynamo.PhaseExited}},
			{Result: &dynamo.Result{Final: dynamo.ParticleState{Time: 3}, Steps: 30, Reason: dynamo.PhaseTimedOut}},
		}
		s := batch.Summarize(out)
		Expect(s.MeanTime).To(BeNumerically("~", 2, 1e-12))
		// population std is 1, so the standard error is 1/sqrt(2)
		Expect(s.StdErrTime).To(BeNumerically("~", 0.7071067811865476, 1e-12))
		Expect(s.MeanSteps).To(BeNumerically("~", 20, 1e-12))
		Expect(s.Exited).To(Equal(1))
		Expect(s.TimedOut).To(Equal(1))
	})
})
