// Package transport implements the bridge's datagram channel: one UDP
// socket, one request received at a time, each reply addressed to whoever
// sent the most recent request.
//
// There is no retransmission, sequencing or duplicate detection. The agent
// masks loss by resending on its own timeout.
package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/simbridge/internal/wire"
)

var (
	// ErrBindFailure indicates the local address could not be bound.
	ErrBindFailure = errors.New("transport: bind failed")

	// ErrNotBound indicates use of a transport before Bind succeeded.
	ErrNotBound = errors.New("transport: not bound")

	// ErrNoPeer indicates a Send before any datagram was received.
	ErrNoPeer = errors.New("transport: no peer to reply to")

	// ErrOversized indicates a received datagram larger than wire.MaxDatagramSize.
	ErrOversized = errors.New("transport: datagram exceeds maximum size")
)

// UDP is a single-socket request/response transport.
type UDP struct {
	factory SocketFactory
	sock    Socket
	peer    *net.UDPAddr
	buf     []byte
	log     zerolog.Logger
}

// NewUDP returns an unbound transport that opens sockets with SO_REUSEADDR.
func NewUDP(log zerolog.Logger) *UDP {
	return NewUDPWithFactory(ReuseAddrFactory{}, log)
}

// NewUDPWithFactory returns an unbound transport using factory for sockets.
func NewUDPWithFactory(factory SocketFactory, log zerolog.Logger) *UDP {
	return &UDP{
		factory: factory,
		// One spare byte detects datagrams that would otherwise be
		// truncated silently by the kernel.
		buf: make([]byte, wire.MaxDatagramSize+1),
		log: log.With().Str("component", "transport").Logger(),
	}
}

// Bind opens the socket on address:port. Port 0 picks an ephemeral port.
func (u *UDP) Bind(address string, port int) error {
	hostport := net.JoinHostPort(address, strconv.Itoa(port))
	addr, err := net.ResolveUDPAddr("udp", hostport)
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %v", ErrBindFailure, hostport, err)
	}
	sock, err := u.factory.ListenUDP(addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBindFailure, hostport, err)
	}
	u.sock = sock
	u.log.Info().Str("address", sock.LocalAddr().String()).Msg("bound")
	return nil
}

// Receive waits up to timeout for one datagram. It reports false with a nil
// error when nothing arrived; the caller retries. A timeout of zero polls.
// The returned slice is owned by the caller.
func (u *UDP) Receive(timeout time.Duration) ([]byte, bool, error) {
	if u.sock == nil {
		return nil, false, ErrNotBound
	}
	if err := u.sock.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, false, fmt.Errorf("transport: set deadline: %w", err)
	}
	n, addr, err := u.sock.ReadFromUDP(u.buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("transport: receive: %w", err)
	}
	u.peer = addr
	if n > wire.MaxDatagramSize {
		return nil, false, fmt.Errorf("%w: from %v", ErrOversized, addr)
	}
	data := make([]byte, n)
	copy(data, u.buf[:n])
	return data, true, nil
}

// Send writes b to the sender of the most recently received datagram.
func (u *UDP) Send(b []byte) error {
	if u.sock == nil {
		return ErrNotBound
	}
	if u.peer == nil {
		return ErrNoPeer
	}
	if _, err := u.sock.WriteToUDP(b, u.peer); err != nil {
		return fmt.Errorf("transport: send to %v: %w", u.peer, err)
	}
	return nil
}

// Peer returns the address replies are sent to, or nil.
func (u *UDP) Peer() *net.UDPAddr { return u.peer }

// LocalAddr returns the bound address, or nil before Bind.
func (u *UDP) LocalAddr() net.Addr {
	if u.sock == nil {
		return nil
	}
	return u.sock.LocalAddr()
}

func (u *UDP) Close() error {
	if u.sock == nil {
		return nil
	}
	return u.sock.Close()
}
