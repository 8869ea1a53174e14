//go:build linux

package transport

import (
	"fmt"
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/cococorp/netsteer/internal/steering"
)

// RawSocketTransport implements steering.Transport over an AF_PACKET raw
// socket bound to a single bridge interface. One instance exists per
// configured steering context (design §6: bridge_ifname). Frames are
// addressed point-to-point by destination MAC; delivery to all configured
// peers except own_addr (I7) is the caller's responsibility, not the
// transport's.
type RawSocketTransport struct {
	mu      sync.Mutex
	fd      int
	ifindex int
	ownAddr steering.MAC
	closed  bool
}

// NewRawSocketTransport opens an AF_PACKET/SOCK_RAW socket on ifName bound
// to EtherType with a direct syscall sequence (socket, bind) rather than
// net.ListenPacket, since AF_PACKET has no net package support.
func NewRawSocketTransport(ifName string, ownAddr steering.MAC) (*RawSocketTransport, error) {
	iface, err := net.InterfaceByName(ifName)
	if err != nil {
		return nil, fmt.Errorf("transport: lookup interface %s: %w", ifName, err)
	}

	// htons(EtherType): AF_PACKET socket() and bind() both take the
	// protocol in network byte order.
	proto := htons(uint16(EtherType))

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(proto))
	if err != nil {
		return nil, fmt.Errorf("transport: open AF_PACKET socket: %w", err)
	}

	addr := &unix.SockaddrLinklayer{
		Protocol: proto,
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("transport: bind to %s: %w", ifName, err)
	}

	return &RawSocketTransport{
		fd:      fd,
		ifindex: iface.Index,
		ownAddr: ownAddr,
	}, nil
}

// Send transmits a steering wire frame to dst, encoded inside an Ethernet
// (802.3) frame under EtherType 0x8267.
func (t *RawSocketTransport) Send(dst steering.MAC, frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("send to %s: %w", dst, ErrSocketClosed)
	}

	raw, err := encodeEthernet(t.ownAddr, dst, frame)
	if err != nil {
		return fmt.Errorf("transport: encode frame to %s: %w", dst, err)
	}

	sockaddr := &unix.SockaddrLinklayer{
		Protocol: htons(uint16(EtherType)),
		Ifindex:  t.ifindex,
		Halen:    6,
	}
	copy(sockaddr.Addr[:6], dst[:])

	if err := unix.Sendto(t.fd, raw, 0, sockaddr); err != nil {
		return fmt.Errorf("transport: sendto %s: %w", dst, err)
	}

	return nil
}

// Recv blocks for the next steering frame on the socket, returning the
// sender's MAC and the decoded steering payload. Frames carrying a
// different EtherType are skipped rather than returned.
func (t *RawSocketTransport) Recv(buf []byte) (src steering.MAC, payload []byte, err error) {
	for {
		n, _, recvErr := unix.Recvfrom(t.fd, buf, 0)
		if recvErr != nil {
			return src, nil, fmt.Errorf("transport: recvfrom: %w", recvErr)
		}

		src, payload, err = decodeEthernet(buf[:n])
		if err == nil {
			return src, payload, nil
		}
		// Not a steering frame (wrong EtherType or undecodable) — the
		// kernel's socket protocol filter already does most of this
		// filtering, but Linux can still hand back non-matching frames
		// from the same socket (e.g. during interface renames).
	}
}

// Close releases the underlying socket.
func (t *RawSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if err := unix.Close(t.fd); err != nil {
		return fmt.Errorf("transport: close socket: %w", err)
	}
	return nil
}

// htons converts a uint16 from host to network byte order.
func htons(v uint16) uint16 {
	return v<<8 | v>>8
}
