// Package control provides the agent-side flight controllers used by the
// probe and manual-control tools.
//
//   - [PID]: Proportional-Integral-Derivative controller on one axis
//   - [Mixer]: maps throttle and body torques onto motor commands
//   - [RateController]: three PIDs on the body rates feeding a Mixer
//   - [Manual]: keyboard-driven setpoints
//
// # Usage
//
//	rc := control.NewRateController(control.DefaultRateGains(), control.NewMixer(4))
//	rc.SetSetpoint(0, 0, 0)
//	motors := rc.Compute(state, throttle)
//
// Controllers implementing [dynamo.Configurable] support live tuning.
package control
