// Package dynamo provides the numeric primitives of the in-process engine.
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: fixed-step numerical integrator
//   - [Quat], [Vec3]: rotation helpers for rigid bodies
//
// None of the types here are safe for concurrent mutation.
package dynamo
