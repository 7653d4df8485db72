package bridge

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
)

var _ = Describe("Flusher", func() {
	It("runs at least two steps", func() {
		agg := NewAggregator(4, zerolog.Nop())
		sim := newFakeSim(agg, 4, SensorIMU|SensorESC)
		f := NewFlusher(sim, agg, SensorIMU|SensorESC, 0, zerolog.Nop())

		steps, err := f.Flush(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(steps).To(Equal(2))
		Expect(sim.Resets()).To(Equal(3))
		Expect(sim.SimTime()).To(Equal(0.0))
	})

	It("waits for quiescence", func() {
		agg := NewAggregator(4, zerolog.Nop())
		sim := newFakeSim(agg, 4, SensorIMU)
		stale := 0
		sim.rates = func(int) [3]float64 {
			// The first four samples still report the motion before the reset.
			stale++
			if stale <= 4 {
				return [3]float64{0.5, -0.2, 0.017}
			}
			return [3]float64{0.001, -0.002, 0}
		}
		f := NewFlusher(sim, agg, SensorIMU, 0, zerolog.Nop())

		steps, err := f.Flush(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(steps).To(Equal(5))

		rates, _ := agg.AngularRates()
		for _, r := range rates {
			Expect(r).To(BeNumerically("<", QuiescentRate))
			Expect(r).To(BeNumerically(">", -QuiescentRate))
		}
	})

	It("does not treat a rate at the threshold as quiescent", func() {
		agg := NewAggregator(0, zerolog.Nop())
		sim := newFakeSim(agg, 0, SensorIMU)
		sim.rates = func(int) [3]float64 { return [3]float64{0, QuiescentRate, 0} }
		f := NewFlusher(sim, agg, SensorIMU, 10, zerolog.Nop())

		steps, err := f.Flush(context.Background())
		Expect(errors.Is(err, ErrNotConverged)).To(BeTrue())
		Expect(steps).To(Equal(10))
	})

	It("steps exactly twice without an IMU", func() {
		agg := NewAggregator(4, zerolog.Nop())
		sim := newFakeSim(agg, 4, SensorESC)
		f := NewFlusher(sim, agg, SensorESC, 0, zerolog.Nop())

		steps, err := f.Flush(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(steps).To(Equal(2))
	})

	It("stops when cancelled", func() {
		agg := NewAggregator(0, zerolog.Nop())
		sim := newFakeSim(agg, 0, SensorIMU)
		sim.rates = func(int) [3]float64 { return [3]float64{1, 1, 1} }
		f := NewFlusher(sim, agg, SensorIMU, 0, zerolog.Nop())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.Flush(ctx)
		Expect(err).To(MatchError(context.Canceled))
	})
})
