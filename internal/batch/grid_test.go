package batch_test

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/dsmcsim/internal/batch"
	"github.com/san-kum/dsmcsim/internal/dynamo"
)

var _ = Describe("Grid", func() {
	It("enumerates the cartesian product, last parameter fastest", func() {
		g, err := batch.ParseGrid([]string{"density=1e20,1e21", "temperature=2,4,8"})
		Expect(err).NotTo(HaveOccurred())
		Expect(g.Size()).To(Equal(6))

		pts := g.Points()
		Expect(pts).To(HaveLen(6))
		Expect(pts[0]).To(Equal(batch.Point{"density": 1e20, "temperature": 2}))
		Expect(pts[1]).To(Equal(batch.Point{"density": 1e20, "temperature": 4}))
		Expect(pts[5]).To(Equal(batch.Point{"density": 1e21, "temperature": 8}))
		Expect(pts[1].Label()).To(Equal("density=1e+20 temperature=4"))
	})

	It("parses half-open ranges", func() {
		g, err := batch.ParseGrid([]string{"max_time=1e-4:5e-4:1e-4"})
		Expect(err).NotTo(HaveOccurred())
		Expect(g.Size()).To(Equal(4))
	})

	DescribeTable("rejects malformed sweeps",
		func(sweep string) {
			_, err := batch.ParseGrid([]string{sweep})
			Expect(errors.Is(err, dynamo.ErrInvalidConfig)).To(BeTrue())
		},
		Entry("no equals", "density"),
		Entry("empty name", "=1,2"),
		Entry("bad number", "density=abc"),
		Entry("short range", "max_time=1:2"),
		Entry("empty range", "max_time=2:1:1"),
	)

	It("matches the default age and time lists", func() {
		Expect(batch.EmitterAges()).To(HaveLen(599))
		Expect(batch.EmitterAges()[0]).To(BeNumerically("~", 0.01, 1e-12))
		times := batch.ProfileTimes()
		Expect(times).To(HaveLen(29))
		Expect(times[len(times)-1]).To(BeNumerically("~", 1.45e-3, 1e-12))
	})
})

var _ = Describe("NeighborCounts", func() {
	It("counts others strictly inside the cube", func() {
		pts := []r3.Vec{
			{},
			{X: 0.005},
			{X: 0.005, Y: 0.007},
			{X: 0.008},
			{Z: 1},
		}
		counts := batch.NeighborCounts(pts, 0.008)
		Expect(counts).To(Equal([]int{2, 3, 3, 2, 0}))
	})

	It("handles an empty cloud", func() {
		Expect(batch.NeighborCounts(nil, 0.008)).To(BeEmpty())
	})
})

var _ = Describe("CSV output", func() {
	It("writes a header and reads rows back", func() {
		rows := []batch.ExitRow{
			{Params: "density=1e+09", Trials: 10, Exited: 10, MeanSteps: 1.5, MeanTime: 2e-3},
		}
		var buf bytes.Buffer
		Expect(batch.WriteCSV(&buf, rows)).To(Succeed())
		Expect(buf.String()).To(HavePrefix("params,trials,exited,failed,mean_steps"))

		var back []batch.ExitRow
		Expect(batch.ReadCSV(&buf, &back)).To(Succeed())
		Expect(back).To(Equal(rows))
	})
})
