package batch_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dsmcsim/internal/ambient"
	"github.com/san-kum/dsmcsim/internal/batch"
	"github.com/san-kum/dsmcsim/internal/config"
	"github.com/san-kum/dsmcsim/internal/experiment"
)

func quietDriver() *batch.Driver {
	return batch.NewDriver(4, 11, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		driver *batch.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = quietDriver()
	})

	Describe("DensityTrend", func() {
		It("exits almost ballistically at trace densities", func() {
			cfg := config.DefaultConfig()
			cfg.Run.Trials = 50
			rows, err := driver.DensityTrend(ctx, cfg, []float64{1e9, 1e12})
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(2))
			for _, r := range rows {
				Expect(r.Trials).To(Equal(50))
				Expect(r.Exited).To(Equal(50))
				Expect(r.Failed).To(BeZero())
				Expect(r.MeanSteps).To(BeNumerically("<", 3))
			}
			Expect(rows[0].Params).To(Equal("density=1e+09"))
		})

		It("takes longer to escape a denser gas", func() {
			cfg := config.DefaultConfig()
			cfg.Run.Trials = 30
			cfg.Run.CollisionProbability = 0.5
			cfg.Run.StepCollisions = 0.5
			rows, err := driver.DensityTrend(ctx, cfg, []float64{1e19, 1e21})
			Expect(err).NotTo(HaveOccurred())
			Expect(rows[1].MeanTime).To(BeNumerically(">", rows[0].MeanTime))
		})

		It("reports progress per grid point", func() {
			cfg := config.DefaultConfig()
			cfg.Run.Trials = 5
			labels := map[string]int{}
			driver.Workers = 1
			driver.Progress = func(label string, done, total int) { labels[label] = done }
			_, err := driver.DensityTrend(ctx, cfg, []float64{1e9})
			Expect(err).NotTo(HaveOccurred())
			Expect(labels).To(HaveKeyWithValue("density=1e+09", 5))
		})
	})

	Describe("TimeProfile", func() {
		It("stops every open-form flight at its time", func() {
			cfg := config.GetPreset(string(ambient.FormOpen), "diffusion")
			cfg.Run.Trials = 20
			times := []float64{2e-5, 4e-5}
			rows, err := driver.TimeProfile(ctx, cfg, times)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(2))
			for i, r := range rows {
				Expect(r.Time).To(Equal(times[i]))
				Expect(r.Trials).To(Equal(20))
				Expect(r.MeanSquaredDist).To(BeNumerically(">", 0))
				Expect(math.IsNaN(r.TailSpeed)).To(BeFalse())
				Expect(r.TailSpeed).To(BeNumerically(">", 0))
			}
			Expect(rows[1].MeanSquaredDist).To(BeNumerically(">", rows[0].MeanSquaredDist))
		})
	})

	Describe("EndPositions", func() {
		It("puts every particle on the wall", func() {
			cfg := config.GetPreset(string(ambient.FormCurvedFlowBox), "emitter")
			cfg.Ambient.Density = 1e17
			cfg.Run.Trials = 20
			rows, err := driver.EndPositions(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(20))
			hw := cfg.Boundary.HalfWidth
			for _, r := range rows {
				Expect(r.Reason).To(Equal("exited"))
				outside := math.Abs(r.X) > hw || math.Abs(r.Y) > hw || math.Abs(r.Z) > hw
				Expect(outside).To(BeTrue())
			}
		})
	})

	Describe("PointEmitter", func() {
		It("keeps young particles together near the source", func() {
			cfg := config.GetPreset(string(ambient.FormCurvedFlowBox), "default")
			ages := []float64{0.01, 0.02, 0.03}
			rows, err := driver.PointEmitter(ctx, cfg, ages)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			for i, r := range rows {
				Expect(r.Age).To(Equal(ages[i]))
				Expect(r.Reason).To(Equal("timed_out"))
				Expect(r.Neighbors).To(Equal(2))
			}
		})
	})

	Describe("default box escape", func() {
		It("lets nearly every particle escape on the diffusive time scale", func() {
			if testing.Short() {
				Skip("1000 long diffusive runs")
			}
			exp, err := experiment.New(config.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())
			outcomes, err := batch.NewEnsemble(1000, 0, 11).Run(ctx, exp.Trial)
			Expect(err).NotTo(HaveOccurred())

			s := batch.Summarize(outcomes)
			Expect(s.Trials).To(Equal(1000))
			Expect(s.ExitFraction()).To(BeNumerically(">=", 0.999))
			Expect(s.MeanTime).To(BeNumerically(">", 1e-3))
			Expect(s.MeanTime).To(BeNumerically("<", 0.1))
		})
	})
})
