// Package physics provides the airframe model driven by the in-process
// engine.
//
// [Multirotor] implements [dynamo.System] for an N-motor airframe mounted by
// its center of mass on a ball joint: it can rotate freely but not
// translate. The state vector is laid out as
//
//	[qw qx qy qz | p q r | w0 ... wN-1]
//
// with the body frame forward-left-up, body rates in rad/s and motor speeds
// in rad/s. It also implements [dynamo.Configurable] for runtime parameter
// adjustment.
package physics
