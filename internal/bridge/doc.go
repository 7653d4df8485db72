// Package bridge synchronizes an external control agent with a discretely
// stepped simulation.
//
// Each control cycle the agent sends one [wire.Action]. The [Controller]
// either runs the reset convergence loop ([Flusher]) or publishes the motor
// command and steps the simulation by one tick, then waits on the
// [Aggregator] until every sensor update owed for that tick has arrived and
// replies with one [wire.State].
//
// # Concurrency
//
// The Controller runs on a single goroutine and is the only caller of the
// [Simulation] collaborator. Sensor samples arrive on collaborator-owned
// goroutines through [SensorSink]; they touch nothing but the Aggregator,
// whose one mutex guards both the State snapshot and the barrier counter.
package bridge
