// Package agent is the control-agent side of the bridge protocol: a UDP
// client that sends one Action and waits for its State.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/simbridge/internal/wire"
)

var (
	// ErrNoReply indicates every attempt of a request timed out.
	ErrNoReply = errors.New("agent: no reply from bridge")
)

type Options struct {
	// Timeout bounds the wait for one reply.
	Timeout time.Duration
	// Retries is the number of times a request is resent after a timeout.
	// A resent STEP may advance the simulation twice if only the reply
	// was lost.
	Retries int
}

func DefaultOptions() Options {
	return Options{Timeout: 2 * time.Second, Retries: 2}
}

type Client struct {
	conn *net.UDPConn
	opts Options
	buf  []byte
	log  zerolog.Logger
}

// Dial connects to a bridge at address, host:port.
func Dial(address string, opts Options, log zerolog.Logger) (*Client, error) {
	raddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("agent: resolve %s: %w", address, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("agent: dial %s: %w", address, err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	return &Client{
		conn: conn,
		opts: opts,
		buf:  make([]byte, wire.MaxDatagramSize+1),
		log:  log.With().Str("component", "agent").Str("bridge", raddr.String()).Logger(),
	}, nil
}

// Reset asks the bridge to start a new episode.
func (c *Client) Reset(ctx context.Context) (wire.State, error) {
	return c.Do(ctx, wire.Action{Control: wire.ControlReset})
}

// Step sends one motor command and returns the State one tick later.
func (c *Client) Step(ctx context.Context, motor []float64) (wire.State, error) {
	return c.Do(ctx, wire.Action{Motor: motor, Control: wire.ControlStep})
}

// Do sends a and waits for the reply, resending on timeout.
func (c *Client) Do(ctx context.Context, a wire.Action) (wire.State, error) {
	req, err := wire.EncodeAction(a)
	if err != nil {
		return wire.State{}, err
	}

	for attempt := 0; attempt <= c.opts.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return wire.State{}, err
		}
		if attempt > 0 {
			c.log.Warn().Int("attempt", attempt).Str("control", a.Control.String()).Msg("resending action")
		}
		if _, err := c.conn.Write(req); err != nil {
			return wire.State{}, fmt.Errorf("agent: send: %w", err)
		}

		state, ok, err := c.await(ctx)
		if err != nil {
			return wire.State{}, err
		}
		if ok {
			return state, nil
		}
	}
	return wire.State{}, fmt.Errorf("%w after %d attempts", ErrNoReply, c.opts.Retries+1)
}

func (c *Client) await(ctx context.Context) (wire.State, bool, error) {
	deadline := time.Now().Add(c.opts.Timeout)
	ctxBound := false
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline, ctxBound = d, true
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return wire.State{}, false, err
	}
	for {
		n, err := c.conn.Read(c.buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				if ctxBound {
					<-ctx.Done()
					return wire.State{}, false, ctx.Err()
				}
				if ctx.Err() != nil {
					return wire.State{}, false, ctx.Err()
				}
				return wire.State{}, false, nil
			}
			return wire.State{}, false, fmt.Errorf("agent: receive: %w", err)
		}
		if n > wire.MaxDatagramSize {
			c.log.Warn().Msg("dropping oversized reply")
			continue
		}
		state, err := wire.DecodeState(c.buf[:n])
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed reply")
			continue
		}
		return state, true, nil
	}
}

func (c *Client) LocalAddr() net.Addr { return c.conn.LocalAddr() }

func (c *Client) Close() error { return c.conn.Close() }
