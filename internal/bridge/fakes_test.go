package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/san-kum/simbridge/internal/wire"
)

// fakeSim delivers one IMU sample and one ESC sample per actuator for each
// step. With async set the samples arrive from goroutines after delay.
type fakeSim struct {
	mu        sync.Mutex
	sink      SensorSink
	actuators int
	sensors   SensorSet
	async     bool
	delay     time.Duration
	dt        float64
	// rates returns the IMU angular rates reported after the given number
	// of steps since the last reset.
	rates func(sinceReset int) [3]float64
	// escIDs overrides the ids reported for ESC samples.
	escIDs []int
	// drop withholds that many samples from every step.
	drop int

	time       float64
	sinceReset int
	steps      int
	resets     int
	commands   [][]float64
	stepErr    error
	wg         sync.WaitGroup
	// inFlight counts samples triggered but not yet delivered; busy holds
	// its value at every command.
	inFlight int
	busy     []int
	drains   int
}

func newFakeSim(sink SensorSink, actuators int, sensors SensorSet) *fakeSim {
	return &fakeSim{
		sink:      sink,
		actuators: actuators,
		sensors:   sensors,
		dt:        0.001,
		rates:     func(int) [3]float64 { return [3]float64{} },
	}
}

func (f *fakeSim) StepSimulation(ticks int) error {
	f.mu.Lock()
	if f.stepErr != nil {
		f.mu.Unlock()
		return f.stepErr
	}
	f.steps += ticks
	f.sinceReset += ticks
	f.time += float64(ticks) * f.dt
	deliveries := f.samplesLocked()
	async, delay := f.async, f.delay
	f.mu.Unlock()

	for _, deliver := range deliveries {
		if !async {
			deliver()
			continue
		}
		f.wg.Add(1)
		f.mu.Lock()
		f.inFlight++
		f.mu.Unlock()
		go func(deliver func()) {
			defer f.wg.Done()
			time.Sleep(delay)
			deliver()
			f.mu.Lock()
			f.inFlight--
			f.mu.Unlock()
		}(deliver)
	}
	return nil
}

func (f *fakeSim) samplesLocked() []func() {
	var out []func()
	if f.sensors.Has(SensorIMU) {
		s := ImuSample{
			AngularVelocity:    f.rates(f.sinceReset),
			Orientation:        [4]float64{1, 0, 0, 0},
			LinearAcceleration: [3]float64{0, 0, 9.81},
		}
		out = append(out, func() { f.sink.OnImuSample(s) })
	}
	if f.sensors.Has(SensorESC) {
		for i := 0; i < f.actuators; i++ {
			id := i
			if i < len(f.escIDs) {
				id = f.escIDs[i]
			}
			s := EscSample{ID: id, Speed: 500 + float64(i), Temperature: 25, Current: 1.5, Voltage: 12.6}
			out = append(out, func() { f.sink.OnEscSample(s) })
		}
	}
	if f.drop > 0 && f.drop <= len(out) {
		out = out[:len(out)-f.drop]
	}
	return out
}

func (f *fakeSim) Drain(ctx context.Context) error {
	f.mu.Lock()
	f.drains++
	f.mu.Unlock()
	f.wg.Wait()
	return ctx.Err()
}

func (f *fakeSim) Drains() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drains
}

// Busy returns the samples that were still in flight at each command.
func (f *fakeSim) Busy() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.busy...)
}

func (f *fakeSim) ResetSimulationTimeAndPose() error {
	f.wg.Wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.sinceReset = 0
	f.time = 0
	return nil
}

func (f *fakeSim) PublishActuatorCommand(values []float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := make([]float64, len(values))
	copy(cmd, values)
	f.commands = append(f.commands, cmd)
	f.busy = append(f.busy, f.inFlight)
	return nil
}

func (f *fakeSim) SimTime() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.time
}

func (f *fakeSim) Steps() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.steps
}

func (f *fakeSim) Resets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets
}

func (f *fakeSim) Commands() [][]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]float64(nil), f.commands...)
}

var errFakeSend = errors.New("fake send failure")

// fakeTransport hands queued datagrams to the controller and records replies.
type fakeTransport struct {
	in      chan []byte
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
	replies chan []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:      make(chan []byte, 16),
		replies: make(chan []byte, 16),
	}
}

func (f *fakeTransport) Receive(timeout time.Duration) ([]byte, bool, error) {
	select {
	case b := <-f.in:
		return b, true, nil
	case <-time.After(timeout):
		return nil, false, nil
	}
}

func (f *fakeTransport) Send(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, b)
	f.replies <- b
	return nil
}

func (f *fakeTransport) Sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

func mustEncodeAction(a wire.Action) []byte {
	b, err := wire.EncodeAction(a)
	if err != nil {
		panic(err)
	}
	return b
}

type recordingObserver struct {
	mu     sync.Mutex
	resets []wire.State
	ticks  []wire.State
}

func (r *recordingObserver) OnReset(s wire.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets = append(r.resets, s)
}

func (r *recordingObserver) OnTick(_ wire.Action, s wire.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, s)
}

type countingMetrics struct {
	mu      sync.Mutex
	ticks   map[wire.StatusCode]int
	resets  int
	dropped map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{ticks: map[wire.StatusCode]int{}, dropped: map[string]int{}}
}

func (m *countingMetrics) TickCompleted(_ time.Duration, s wire.StatusCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks[s]++
}

func (m *countingMetrics) ResetCompleted(int, time.Duration, wire.StatusCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
}

func (m *countingMetrics) DatagramDropped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[reason]++
}

func (m *countingMetrics) Dropped(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped[reason]
}
