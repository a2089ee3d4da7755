// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"lipsync/internal/lipsync"
)

type fixedSource struct {
	mu sync.Mutex
	p  lipsync.Prediction
	ok bool
}

func (s *fixedSource) Latest() (lipsync.Prediction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p, s.ok
}

func TestPacketLayout(t *testing.T) {
	var buf bytes.Buffer
	ts := time.Unix(1700000000, 123456789)
	weights := []float32{0, 0.5, 1, -0.25}
	if err := EncodePacket(&buf, 42, ts, weights); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != HeaderSize+4*len(weights) {
		t.Fatalf("packet length = %d, want %d", buf.Len(), HeaderSize+4*len(weights))
	}
	// Sequence number is big endian in the first four bytes.
	if !bytes.Equal(buf.Bytes()[:4], []byte{0, 0, 0, 42}) {
		t.Errorf("sequence bytes = %v", buf.Bytes()[:4])
	}

	seq, gotTS, got, err := DecodePacket(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if seq != 42 || !gotTS.Equal(ts) {
		t.Errorf("header = %d %v, want 42 %v", seq, gotTS, ts)
	}
	for i := range weights {
		if got[i] != weights[i] {
			t.Errorf("weight %d = %v, want %v", i, got[i], weights[i])
		}
	}
}

func TestDecodeShortPacket(t *testing.T) {
	if _, _, _, err := DecodePacket(make([]byte, 5)); !errors.Is(err, ErrShortPacket) {
		t.Errorf("DecodePacket(5 bytes) = %v", err)
	}
	var buf bytes.Buffer
	if err := EncodePacket(&buf, 1, time.Now(), []float32{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := DecodePacket(buf.Bytes()[:buf.Len()-1]); !errors.Is(err, ErrShortPacket) {
		t.Errorf("DecodePacket(truncated) = %v", err)
	}
}

func TestPublisherSendsLatest(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	sender, err := NewSender(listener.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()

	source := &fixedSource{}
	pub, err := NewPublisher(5*time.Millisecond, sender, source)
	if err != nil {
		t.Fatal(err)
	}
	pub.Start()
	pub.Start() // no-op while running
	defer pub.Close()

	source.mu.Lock()
	source.p = lipsync.Prediction{Weights: []float32{0.1, 0.9}}
	source.ok = true
	source.mu.Unlock()

	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1500)
	n, err := listener.Read(buf)
	if err != nil {
		t.Fatalf("no packet received: %v", err)
	}
	seq, _, weights, err := DecodePacket(buf[:n])
	if err != nil {
		t.Fatal(err)
	}
	if seq == 0 || len(weights) != 2 || weights[1] != 0.9 {
		t.Errorf("packet seq=%d weights=%v", seq, weights)
	}

	if err := pub.Stop(); err != nil {
		t.Errorf("Stop() = %v", err)
	}
	if err := pub.Stop(); err != nil {
		t.Errorf("second Stop() = %v", err)
	}
}

func TestNewPublisherValidation(t *testing.T) {
	if _, err := NewPublisher(time.Millisecond, nil, &fixedSource{}); err == nil {
		t.Error("nil sender accepted")
	}
	sender, err := NewSender("127.0.0.1:9")
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()
	if _, err := NewPublisher(time.Millisecond, sender, nil); err == nil {
		t.Error("nil source accepted")
	}
	if err := sender.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sender.Send([]byte{1}); err == nil {
		t.Error("Send() after Close succeeded")
	}
}
