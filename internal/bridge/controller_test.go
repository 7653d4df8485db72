package bridge

import (
	"context"
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/san-kum/simbridge/internal/wire"
)

var _ = Describe("Controller", func() {
	var (
		agg  *Aggregator
		sim  *fakeSim
		tr   *fakeTransport
		obs  *recordingObserver
		met  *countingMetrics
		ctrl *Controller
		opts Options
	)

	build := func() {
		agg = NewAggregator(opts.NumActuators, zerolog.Nop())
		sim = newFakeSim(agg, opts.NumActuators, opts.Sensors)
		sim.async = true
		sim.delay = 2 * time.Millisecond
		tr = newFakeTransport()
		obs = &recordingObserver{}
		met = newCountingMetrics()
		ctrl = NewController(opts, sim, tr, agg, zerolog.Nop())
		ctrl.AddObserver(obs)
		ctrl.SetMetrics(met)
	}

	lastReply := func() wire.State {
		sent := tr.Sent()
		ExpectWithOffset(1, sent).NotTo(BeEmpty())
		s, err := wire.DecodeState(sent[len(sent)-1])
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return s
	}

	step := func(motor ...float64) []byte {
		return mustEncodeAction(wire.Action{Motor: motor, Control: wire.ControlStep})
	}
	reset := mustEncodeAction(wire.Action{Control: wire.ControlReset})

	BeforeEach(func() {
		opts = Options{
			NumActuators:  4,
			Sensors:       SensorIMU | SensorESC,
			SensorTimeout: time.Second,
		}
	})

	JustBeforeEach(build)

	Describe("stepping", func() {
		It("waits for every sensor update and reports one tick later", func() {
			Expect(ctrl.ExpectedCallbacks()).To(Equal(5))

			Expect(ctrl.Handle(context.Background(), step(0.1, 0.2, 0.3, 0.4))).To(Succeed())

			Expect(sim.Steps()).To(Equal(1))
			Expect(sim.Commands()).To(Equal([][]float64{{0.1, 0.2, 0.3, 0.4}}))
			Expect(agg.Owed()).To(Equal(0))

			s := lastReply()
			Expect(s.Status).To(Equal(wire.StatusOK))
			Expect(s.SimTime).To(BeNumerically("~", 0.001, 1e-12))
			Expect(s.EscMotorAngularVelocity).To(Equal([]float64{500, 501, 502, 503}))
			Expect(s.ImuOrientationQuat).To(Equal([4]float64{1, 0, 0, 0}))
			Expect(ctrl.Action().Motor).To(Equal([]float64{0.1, 0.2, 0.3, 0.4}))
			Expect(ctrl.Ticks()).To(Equal(uint64(1)))
			Expect(obs.ticks).To(HaveLen(1))
		})

		It("replies once per step", func() {
			for i := 0; i < 3; i++ {
				Expect(ctrl.Handle(context.Background(), step(0, 0, 0, 0))).To(Succeed())
			}
			Expect(tr.Sent()).To(HaveLen(3))
			Expect(lastReply().SimTime).To(BeNumerically("~", 0.003, 1e-12))
		})

		It("rejects a motor vector of the wrong length without stepping", func() {
			Expect(ctrl.Handle(context.Background(), step(1, 1, 1, 1))).To(Succeed())

			err := ctrl.Handle(context.Background(), step(0.5, 0.5, 0.5))
			Expect(errors.Is(err, ErrMalformedMessage)).To(BeTrue())
			Expect(sim.Steps()).To(Equal(1))
			Expect(tr.Sent()).To(HaveLen(1))
			Expect(ctrl.Action().Motor).To(Equal([]float64{1, 1, 1, 1}))
		})

		DescribeTable("drops a motor vector holding a non-finite value",
			func(bad float64) {
				Expect(ctrl.Handle(context.Background(), step(0.3, 0.3, 0.3, 0.3))).To(Succeed())

				err := ctrl.Handle(context.Background(), step(bad, 0.5, 0.5, 0.5))
				Expect(errors.Is(err, ErrMalformedMessage)).To(BeTrue())
				var te *TickError
				Expect(errors.As(err, &te)).To(BeFalse())
				Expect(sim.Steps()).To(Equal(1))
				Expect(sim.Commands()).To(HaveLen(1))
				Expect(tr.Sent()).To(HaveLen(1))
				Expect(ctrl.Action().Motor).To(Equal([]float64{0.3, 0.3, 0.3, 0.3}))
			},
			Entry("NaN", math.NaN()),
			Entry("+Inf", math.Inf(1)),
			Entry("-Inf", math.Inf(-1)),
		)

		It("keeps the previous action when a datagram does not decode", func() {
			Expect(ctrl.Handle(context.Background(), step(0.2, 0.2, 0.2, 0.2))).To(Succeed())

			err := ctrl.Handle(context.Background(), []byte{0xff, 0xff, 0xff})
			Expect(errors.Is(err, ErrMalformedMessage)).To(BeTrue())
			Expect(ctrl.Action().Motor).To(Equal([]float64{0.2, 0.2, 0.2, 0.2}))
			Expect(sim.Steps()).To(Equal(1))
		})

		It("treats a missing sensor update as fatal for an unknown actuator", func() {
			sim.escIDs = []int{0, 1, 2, 9}

			err := ctrl.Handle(context.Background(), step(0, 0, 0, 0))
			Expect(errors.Is(err, ErrUnknownActuator)).To(BeTrue())
			var te *TickError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.Phase).To(Equal("sensors"))
			Expect(tr.Sent()).To(BeEmpty())
		})

		It("reports a send failure as recoverable", func() {
			tr.sendErr = errFakeSend
			err := ctrl.Handle(context.Background(), step(0, 0, 0, 0))
			Expect(errors.Is(err, ErrReplyFailed)).To(BeTrue())
		})

		It("surfaces simulation step failures as fatal", func() {
			sim.stepErr = errors.New("engine stalled")
			err := ctrl.Handle(context.Background(), step(0, 0, 0, 0))
			var te *TickError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.Phase).To(Equal("step"))
		})

		Context("when an update never arrives", func() {
			BeforeEach(func() { opts.SensorTimeout = 30 * time.Millisecond })

			It("replies with a degraded status", func() {
				sim.drop = 1
				Expect(ctrl.Handle(context.Background(), step(0, 0, 0, 0))).To(Succeed())
				Expect(lastReply().Status).To(Equal(wire.StatusSensorTimeout))
				Expect(met.ticks[wire.StatusSensorTimeout]).To(Equal(1))
			})

			It("lets late samples land before arming the next tick", func() {
				sim.delay = 80 * time.Millisecond
				Expect(ctrl.Handle(context.Background(), step(0, 0, 0, 0))).To(Succeed())
				Expect(lastReply().Status).To(Equal(wire.StatusSensorTimeout))

				sim.delay = time.Millisecond
				Expect(ctrl.Handle(context.Background(), step(0, 0, 0, 0))).To(Succeed())
				Expect(lastReply().Status).To(Equal(wire.StatusOK))
				Expect(sim.Drains()).To(Equal(1))
				Expect(sim.Busy()).To(Equal([]int{0, 0}))
				Expect(agg.Owed()).To(Equal(0))

				Expect(ctrl.Handle(context.Background(), step(0, 0, 0, 0))).To(Succeed())
				Expect(sim.Drains()).To(Equal(1))
			})
		})

		Context("with no sensors", func() {
			BeforeEach(func() { opts.Sensors = 0 })

			It("completes the tick immediately", func() {
				Expect(ctrl.ExpectedCallbacks()).To(Equal(0))
				Expect(ctrl.Handle(context.Background(), step(0, 0, 0, 0))).To(Succeed())
				Expect(lastReply().Status).To(Equal(wire.StatusOK))
			})
		})
	})

	Describe("resetting", func() {
		It("steps at least twice and reports a quiescent state", func() {
			Expect(ctrl.Handle(context.Background(), reset)).To(Succeed())

			Expect(sim.Steps()).To(BeNumerically(">=", 2))
			s := lastReply()
			Expect(s.Status).To(Equal(wire.StatusOK))
			for _, r := range s.ImuAngularVelocityRPY {
				Expect(r).To(BeNumerically("<", QuiescentRate))
			}
			Expect(obs.resets).To(HaveLen(1))
			Expect(ctrl.Episodes()).To(Equal(uint64(1)))
		})

		It("stays quiescent across consecutive resets", func() {
			Expect(ctrl.Handle(context.Background(), reset)).To(Succeed())
			first := sim.Steps()
			Expect(ctrl.Handle(context.Background(), reset)).To(Succeed())

			Expect(sim.Steps() - first).To(BeNumerically(">=", 2))
			for _, r := range lastReply().ImuAngularVelocityRPY {
				Expect(r).To(BeNumerically("<", QuiescentRate))
			}
		})

		It("discards motion left over from the previous episode", func() {
			sim.rates = func(sinceReset int) [3]float64 {
				if sim.steps < 4 {
					return [3]float64{2, 2, 2}
				}
				return [3]float64{}
			}
			Expect(ctrl.Handle(context.Background(), reset)).To(Succeed())
			Expect(sim.Steps()).To(Equal(4))
			Expect(lastReply().ImuAngularVelocityRPY).To(Equal([3]float64{}))
		})

		Context("with a step bound", func() {
			BeforeEach(func() { opts.MaxFlushSteps = 3 })

			It("reports an incomplete flush", func() {
				sim.rates = func(int) [3]float64 { return [3]float64{1, 0, 0} }
				Expect(ctrl.Handle(context.Background(), reset)).To(Succeed())
				Expect(sim.Steps()).To(Equal(3))
				Expect(lastReply().Status).To(Equal(wire.StatusFlushIncomplete))
			})
		})
	})

	Describe("serving", func() {
		It("answers actions until cancelled and drops garbage", func() {
			ctx, cancel := context.WithCancel(context.Background())
			opts.PollInterval = 5 * time.Millisecond
			ctrl = NewController(opts, sim, tr, agg, zerolog.Nop())
			ctrl.SetMetrics(met)

			served := make(chan error, 1)
			go func() { served <- ctrl.Serve(ctx) }()

			tr.in <- reset
			Eventually(tr.replies).Should(Receive())

			tr.in <- []byte{0x0a}
			tr.in <- step(0.3, 0.3, 0.3, 0.3)
			var b []byte
			Eventually(tr.replies).Should(Receive(&b))
			s, err := wire.DecodeState(b)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Status).To(Equal(wire.StatusOK))
			Expect(met.Dropped("malformed")).To(Equal(1))

			cancel()
			Eventually(served).Should(Receive(BeNil()))
		})
	})
})
