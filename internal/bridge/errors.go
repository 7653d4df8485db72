package bridge

import (
	"errors"
	"fmt"

	"github.com/san-kum/simbridge/internal/config"
	"github.com/san-kum/simbridge/internal/transport"
	"github.com/san-kum/simbridge/internal/wire"
)

// Failure classes of the bridge. Bind and configuration failures are fatal
// at startup; malformed datagrams and reply failures are dropped and the
// loop continues; sensor timeouts degrade the reported State.
var (
	ErrBindFailure          = transport.ErrBindFailure
	ErrConfigurationMissing = config.ErrConfigurationMissing
	ErrMalformedMessage     = wire.ErrMalformedMessage

	// ErrSensorTimeout indicates a tick whose sensor updates did not all
	// arrive within the configured bound.
	ErrSensorTimeout = errors.New("bridge: sensor updates timed out")

	// ErrNotConverged indicates the reset convergence loop hit its step bound.
	ErrNotConverged = errors.New("bridge: reset did not converge")

	// ErrUnknownActuator indicates a sensor sample for an actuator id the
	// bridge was not configured with.
	ErrUnknownActuator = errors.New("bridge: unknown actuator id")

	// ErrUnknownModelOrLink is returned by collaborators that attach models
	// by name when the model or link does not exist.
	ErrUnknownModelOrLink = errors.New("bridge: unknown model or link")

	// ErrReplyFailed indicates the State could not be sent to the agent.
	ErrReplyFailed = errors.New("bridge: reply failed")
)

// TickError wraps a fatal error with the tick and phase it happened in.
type TickError struct {
	Tick  uint64
	Phase string
	Err   error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("tick %d (%s): %v", e.Tick, e.Phase, e.Err)
}

func (e *TickError) Unwrap() error {
	return e.Err
}
