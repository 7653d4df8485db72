// Package sim is the in-process stepped engine behind the bridge: a
// multirotor on an attitude rig whose sensors publish through per-topic
// goroutines, the way a physics server would.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/san-kum/simbridge/internal/bridge"
	"github.com/san-kum/simbridge/internal/config"
	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/integrators"
	"github.com/san-kum/simbridge/internal/physics"
)

// ErrClosed is returned by an Engine after Close.
var ErrClosed = errors.New("sim: engine closed")

const publisherDepth = 64

// Topics name the command input and sensor outputs of the engine.
type Topics struct {
	Namespace         string
	CommandPubTopic   string
	ImuSubTopic       string
	EscSubTopicPrefix string
}

// EscTopic is the topic of one ESC channel.
func (t Topics) EscTopic(id int) string {
	return t.EscSubTopicPrefix + "/" + strconv.Itoa(id)
}

type Options struct {
	Dt         float64
	Integrator string
	Seed       int64
	Sensors    bridge.SensorSet
	Topics     Topics

	GyroNoiseStdDev  float64
	AccelNoiseStdDev float64

	// InitialRates is the body rate the airframe is kicked to when the
	// first command of an episode arrives. Reset itself always returns to
	// rest so the sensors can be flushed.
	InitialRates dynamo.Vec3

	Twin *Twin
}

// OptionsFromConfig maps the configuration onto engine options.
func OptionsFromConfig(cfg *config.Config, sensors bridge.SensorSet) Options {
	e := cfg.Engine
	return Options{
		Dt:         e.Dt,
		Integrator: e.Integrator,
		Seed:       e.Seed,
		Sensors:    sensors,
		Topics: Topics{
			Namespace:         cfg.DigitalTwin.RobotNamespace,
			CommandPubTopic:   cfg.DigitalTwin.CommandPubTopic,
			ImuSubTopic:       cfg.DigitalTwin.ImuSubTopic,
			EscSubTopicPrefix: cfg.DigitalTwin.EscSubTopicPrefix,
		},
		GyroNoiseStdDev:  e.GyroNoiseStdDev,
		AccelNoiseStdDev: e.AccelNoiseStdDev,
		InitialRates:     dynamo.Vec3(e.InitialRates),
	}
}

// ModelFromConfig builds the airframe described by e.
func ModelFromConfig(e config.EngineConfig, numMotors int) *physics.Multirotor {
	m := physics.NewMultirotor(numMotors)
	m.Mass = e.Mass
	m.ArmLength = e.ArmLength
	m.Inertia = dynamo.Vec3(e.Inertia)
	m.ThrustCoeff = e.ThrustCoeff
	m.TorqueCoeff = e.TorqueCoeff
	m.MotorTau = e.MotorTau
	m.MaxSpeed = e.MaxSpeed
	m.RateDamping = e.RateDamping
	m.BatteryVoltage = e.BatteryVoltage
	m.AmbientTemp = e.AmbientTemp
	return m
}

// Engine implements bridge.Simulation. Only one goroutine may drive it;
// samples reach the sink from the publisher goroutines.
type Engine struct {
	opts  Options
	model *physics.Multirotor
	integ dynamo.Integrator
	sink  bridge.SensorSink
	log   zerolog.Logger

	imuPub  *publisher
	escPubs []*publisher
	pending sync.WaitGroup

	mu     sync.Mutex
	x      dynamo.State
	cmd    dynamo.Control
	t      float64
	steps  uint64
	kicked bool
	rng    *rand.Rand
	closed bool
}

var (
	_ bridge.Simulation = (*Engine)(nil)
	_ bridge.Drainer    = (*Engine)(nil)
)

// NewEngine starts an engine at rest that reports to sink.
func NewEngine(model *physics.Multirotor, opts Options, sink bridge.SensorSink, log zerolog.Logger) (*Engine, error) {
	if opts.Dt <= 0 {
		return nil, fmt.Errorf("%w: dt must be positive, got %v", dynamo.ErrParameterBounds, opts.Dt)
	}
	if opts.Integrator == "" {
		opts.Integrator = config.DefaultIntegrator
	}
	integ, err := integrators.ByName(opts.Integrator)
	if err != nil {
		return nil, err
	}

	log = log.With().Str("component", "engine").Logger()
	if opts.Twin != nil {
		link, err := opts.Twin.FindLink(AttachLink)
		if err != nil {
			return nil, err
		}
		log.Info().Str("model", opts.Twin.Name).Str("link", link).Str("path", opts.Twin.Path).Msg("digital twin attached to rig pivot")
		t := &opts.Topics
		t.Namespace = firstNonEmpty(opts.Twin.RobotNamespace, t.Namespace)
		t.CommandPubTopic = firstNonEmpty(opts.Twin.CommandPubTopic, t.CommandPubTopic)
		t.ImuSubTopic = firstNonEmpty(opts.Twin.ImuSubTopic, t.ImuSubTopic)
		t.EscSubTopicPrefix = firstNonEmpty(opts.Twin.EscSubTopicPrefix, t.EscSubTopicPrefix)
	}

	e := &Engine{
		opts:  opts,
		model: model,
		integ: integ,
		sink:  sink,
		log:   log,
		cmd:   make(dynamo.Control, model.ControlDim()),
		rng:   rand.New(rand.NewSource(opts.Seed)),
	}
	e.x = model.InitialState(dynamo.Vec3{})

	if opts.Sensors.Has(bridge.SensorIMU) {
		e.imuPub = newPublisher(e.topic(opts.Topics.ImuSubTopic), publisherDepth, &e.pending, log)
	}
	if opts.Sensors.Has(bridge.SensorESC) {
		for i := 0; i < model.ControlDim(); i++ {
			e.escPubs = append(e.escPubs, newPublisher(e.topic(opts.Topics.EscTopic(i)), publisherDepth, &e.pending, log))
		}
	}
	log.Info().
		Int("motors", model.ControlDim()).
		Str("integrator", integ.Name()).
		Float64("dt", opts.Dt).
		Str("command_topic", e.topic(opts.Topics.CommandPubTopic)).
		Msg("engine ready")
	return e, nil
}

func (e *Engine) topic(name string) string {
	if e.opts.Topics.Namespace == "" {
		return name
	}
	return "/" + e.opts.Topics.Namespace + name
}

// PublishActuatorCommand sets the motor commands applied from the next step.
func (e *Engine) PublishActuatorCommand(values []float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if len(values) != len(e.cmd) {
		return fmt.Errorf("%w: %d commands for %d motors", dynamo.ErrDimensionMismatch, len(values), len(e.cmd))
	}
	copy(e.cmd, values)
	if !e.kicked {
		e.kicked = true
		physics.SetRates(e.x, e.opts.InitialRates)
	}
	return nil
}

// StepSimulation advances ticks steps of dt and publishes one set of sensor
// samples per step.
func (e *Engine) StepSimulation(ticks int) error {
	for i := 0; i < ticks; i++ {
		if err := e.step(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) step() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	next := e.integ.Step(e.model, e.x, e.cmd, e.t, e.opts.Dt)
	e.model.Normalize(next)
	if !next.IsValid() {
		err := &dynamo.SimulationError{Step: e.steps, Time: e.t, State: e.x.Clone(), Wrapped: dynamo.ErrInvalidState}
		e.mu.Unlock()
		return err
	}
	e.x = next
	e.t += e.opts.Dt
	e.steps++
	imu := e.imuSampleLocked()
	escs := e.model.Esc(e.x)
	e.mu.Unlock()

	if e.imuPub != nil {
		e.imuPub.publish(func() { e.sink.OnImuSample(imu) })
	}
	for i, p := range e.escPubs {
		s := bridge.EscSample{
			ID:          i,
			Speed:       escs[i].Speed,
			Temperature: escs[i].Temperature,
			Current:     escs[i].Current,
			Voltage:     escs[i].Voltage,
		}
		p.publish(func() { e.sink.OnEscSample(s) })
	}
	return nil
}

func (e *Engine) imuSampleLocked() bridge.ImuSample {
	w := physics.Rates(e.x)
	f := e.model.SpecificForce(e.x)
	for i := 0; i < 3; i++ {
		if e.opts.GyroNoiseStdDev > 0 {
			w[i] += e.rng.NormFloat64() * e.opts.GyroNoiseStdDev
		}
		if e.opts.AccelNoiseStdDev > 0 {
			f[i] += e.rng.NormFloat64() * e.opts.AccelNoiseStdDev
		}
	}
	return bridge.ImuSample{
		AngularVelocity:    w,
		Orientation:        physics.Attitude(e.x),
		LinearAcceleration: f,
	}
}

// Drain waits until every sample already published has reached the sink.
func (e *Engine) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResetSimulationTimeAndPose waits for samples still in flight, then returns
// time to zero and the airframe to rest with the motors stopped.
func (e *Engine) ResetSimulationTimeAndPose() error {
	e.pending.Wait()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.x = e.model.InitialState(dynamo.Vec3{})
	for i := range e.cmd {
		e.cmd[i] = 0
	}
	e.t = 0
	e.kicked = false
	return nil
}

func (e *Engine) SimTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.t
}

// State returns a copy of the full engine state vector.
func (e *Engine) State() dynamo.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.x.Clone()
}

// Steps is the number of steps taken since construction.
func (e *Engine) Steps() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.steps
}

// Close drains in-flight samples and stops the publishers.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.pending.Wait()
	if e.imuPub != nil {
		e.imuPub.close()
	}
	for _, p := range e.escPubs {
		p.close()
	}
	return nil
}
