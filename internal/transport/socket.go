package transport

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

// Socket is the subset of *net.UDPConn the transport uses. It exists so the
// transport can be exercised without a real network.
type Socket interface {
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
	SetReadDeadline(t time.Time) error
	Close() error
	LocalAddr() net.Addr
}

// SocketFactory opens bound sockets.
type SocketFactory interface {
	ListenUDP(laddr *net.UDPAddr) (Socket, error)
}

// ReuseAddrFactory opens UDP sockets with SO_REUSEADDR set so a restarted
// bridge can rebind a port that still has lingering state.
type ReuseAddrFactory struct{}

func (ReuseAddrFactory) ListenUDP(laddr *net.UDPAddr) (Socket, error) {
	lc := net.ListenConfig{Control: reuseAddrControl}
	pc, err := lc.ListenPacket(context.Background(), "udp", laddr.String())
	if err != nil {
		return nil, err
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("unexpected packet conn %T", pc)
	}
	return conn, nil
}

// MockPacket is one datagram queued on a MockSocket.
type MockPacket struct {
	Data []byte
	Addr *net.UDPAddr
}

// MockSocket is an in-memory Socket. Reads return queued packets in order
// and a deadline error once the queue is empty.
type MockSocket struct {
	mu      sync.Mutex
	packets []MockPacket
	sent    []MockPacket

	Local     *net.UDPAddr
	ReadErr   error
	WriteErr  error
	Closed    bool
	Deadlines int
}

func NewMockSocket(packets ...MockPacket) *MockSocket {
	return &MockSocket{
		packets: packets,
		Local:   &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9002},
	}
}

// Queue appends packets to the read queue.
func (m *MockSocket) Queue(packets ...MockPacket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packets = append(m.packets, packets...)
}

// Sent returns every datagram written so far.
func (m *MockSocket) Sent() []MockPacket {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockPacket, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *MockSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return 0, nil, net.ErrClosed
	}
	if m.ReadErr != nil {
		err := m.ReadErr
		m.ReadErr = nil
		return 0, nil, err
	}
	if len(m.packets) == 0 {
		return 0, nil, os.ErrDeadlineExceeded
	}
	p := m.packets[0]
	m.packets = m.packets[1:]
	return copy(b, p.Data), p.Addr, nil
}

func (m *MockSocket) WriteToUDP(b []byte, addr *net.UDPAddr) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return 0, net.ErrClosed
	}
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	data := make([]byte, len(b))
	copy(data, b)
	m.sent = append(m.sent, MockPacket{Data: data, Addr: addr})
	return len(b), nil
}

func (m *MockSocket) SetReadDeadline(time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deadlines++
	return nil
}

func (m *MockSocket) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

func (m *MockSocket) LocalAddr() net.Addr { return m.Local }

// MockFactory hands out a fixed socket, or fails with Err.
type MockFactory struct {
	Socket *MockSocket
	Err    error
	Addr   *net.UDPAddr
}

func (f *MockFactory) ListenUDP(laddr *net.UDPAddr) (Socket, error) {
	f.Addr = laddr
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Socket, nil
}
