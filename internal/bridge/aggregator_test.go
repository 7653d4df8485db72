package bridge

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/san-kum/simbridge/internal/wire"
)

var _ = Describe("SensorSet", func() {
	DescribeTable("counts one update per IMU and one per ESC channel",
		func(sensors SensorSet, actuators, want int) {
			Expect(sensors.ExpectedCallbacks(actuators)).To(Equal(want))
		},
		Entry("imu and esc on four motors", SensorIMU|SensorESC, 4, 5),
		Entry("imu and esc on six motors", SensorIMU|SensorESC, 6, 7),
		Entry("imu only", SensorIMU, 4, 1),
		Entry("esc only", SensorESC, 4, 4),
		Entry("nothing", SensorSet(0), 4, 0),
	)

	It("parses a comma list regardless of case", func() {
		set, err := ParseSensors("IMU, esc")
		Expect(err).NotTo(HaveOccurred())
		Expect(set).To(Equal(SensorIMU | SensorESC))
		Expect(set.String()).To(Equal("imu,esc"))

		set, err = ParseSensors("imu,,")
		Expect(err).NotTo(HaveOccurred())
		Expect(set).To(Equal(SensorIMU))
	})

	It("rejects unknown sensors", func() {
		_, err := ParseSensors("imu,lidar")
		Expect(err).To(MatchError(ContainSubstring("lidar")))
	})
})

var _ = Describe("Aggregator", func() {
	var agg *Aggregator

	BeforeEach(func() {
		agg = NewAggregator(4, zerolog.Nop())
	})

	Describe("the tick barrier", func() {
		It("releases after the expected updates", func() {
			agg.BeginTick(5)
			Expect(agg.Owed()).To(Equal(5))

			done := make(chan error, 1)
			go func() { done <- agg.AwaitTick(context.Background(), 0) }()

			for i := 0; i < 4; i++ {
				agg.ReportUpdate()
			}
			Consistently(done, 50*time.Millisecond).ShouldNot(Receive())
			Expect(agg.Owed()).To(Equal(1))

			agg.ReportUpdate()
			Eventually(done).Should(Receive(BeNil()))
			Expect(agg.Owed()).To(Equal(0))

			// Late updates push the counter further past zero without rearming.
			agg.ReportUpdate()
			Expect(agg.Owed()).To(Equal(0))
			Expect(agg.AwaitTick(context.Background(), time.Millisecond)).To(Succeed())
		})

		It("completes immediately when nothing is expected", func() {
			agg.BeginTick(0)
			Expect(agg.AwaitTick(context.Background(), time.Millisecond)).To(Succeed())
		})

		It("gives up after the timeout", func() {
			agg.BeginTick(5)
			agg.ReportUpdate()

			err := agg.AwaitTick(context.Background(), 20*time.Millisecond)
			Expect(errors.Is(err, ErrSensorTimeout)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring("4 updates missing")))
		})

		It("honours the context", func() {
			agg.BeginTick(2)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			Expect(agg.AwaitTick(ctx, 0)).To(MatchError(context.Canceled))
		})
	})

	Describe("samples", func() {
		It("fill the State", func() {
			agg = NewAggregator(2, zerolog.Nop())
			initial := agg.Snapshot()
			Expect(initial.ImuAngularVelocityRPY).To(Equal([3]float64{1, 1, 1}))
			Expect(initial.EscMotorAngularVelocity).To(Equal([]float64{100, 100}))

			agg.BeginTick(3)
			agg.OnImuSample(ImuSample{
				AngularVelocity:    [3]float64{0.1, 0.2, 0.3},
				Orientation:        [4]float64{1, 0, 0, 0},
				LinearAcceleration: [3]float64{0, 0, 9.81},
			})
			agg.OnEscSample(EscSample{ID: 1, Speed: 700, Temperature: 30, Current: 2, Voltage: 12})
			Expect(agg.Owed()).To(Equal(1))
			agg.OnEscSample(EscSample{ID: 0, Speed: 650, Temperature: 31, Current: 3, Voltage: 11})
			Expect(agg.Owed()).To(Equal(0))

			agg.Stamp(0.004, wire.StatusOK)
			s := agg.Snapshot()
			Expect(s.SimTime).To(Equal(0.004))
			Expect(s.ImuAngularVelocityRPY).To(Equal([3]float64{0.1, 0.2, 0.3}))
			Expect(s.EscMotorAngularVelocity).To(Equal([]float64{650, 700}))
			Expect(s.EscTemperature).To(Equal([]float64{31, 30}))
			Expect(s.EscCurrent).To(Equal([]float64{3, 2}))
			Expect(s.EscVoltage).To(Equal([]float64{11, 12}))

			rates, n := agg.AngularRates()
			Expect(rates).To(Equal([3]float64{0.1, 0.2, 0.3}))
			Expect(n).To(Equal(uint64(1)))

			// Snapshots do not alias the live State.
			s.EscMotorAngularVelocity[0] = -5
			Expect(agg.Snapshot().EscMotorAngularVelocity[0]).To(Equal(650.0))
		})

		It("latch a fault for an unknown actuator", func() {
			agg.BeginTick(5)

			done := make(chan error, 1)
			go func() { done <- agg.AwaitTick(context.Background(), 0) }()

			agg.OnEscSample(EscSample{ID: 7, Speed: 1})
			Eventually(done).Should(Receive(BeNil()))
			Expect(agg.Owed()).To(Equal(5))
			Expect(errors.Is(agg.Fault(), ErrUnknownActuator)).To(BeTrue())
			Expect(agg.Snapshot().EscMotorAngularVelocity).To(Equal([]float64{100, 100, 100, 100}))
		})
	})
})
