// SPDX-License-Identifier: MIT
package udp

import (
	"fmt"
	"net"
	"sync"

	"lipsync/internal/log"
)

// Sender writes datagrams to one fixed peer.
type Sender struct {
	mu     sync.Mutex // guards conn against a concurrent Close
	conn   *net.UDPConn
	closed bool
}

// NewSender dials targetAddress ("host:port"). UDP dialing only binds a
// local socket, so no packet is sent yet.
func NewSender(targetAddress string) (*Sender, error) {
	addr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve UDP target %q: %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial UDP target %q: %w", targetAddress, err)
	}
	log.Infof("UDPSender: sending to %s", conn.RemoteAddr())
	return &Sender{conn: conn}, nil
}

// Send transmits data as one datagram.
func (s *Sender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("UDP sender is closed")
	}
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("send UDP packet: %w", err)
	}
	return nil
}

// Close releases the socket. Further calls are no-ops.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("close UDP connection: %w", err)
	}
	return nil
}
