// SPDX-License-Identifier: MIT

// Package udp publishes the latest viseme weights as fixed-layout binary
// datagrams at a steady rate, for game engines that poll rather than
// subscribe.
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"lipsync/internal/lipsync"
	"lipsync/internal/log"
)

// HeaderSize is the byte length of the fixed packet header.
const HeaderSize = 4 + 8 + 2

// ErrShortPacket is returned by DecodePacket for truncated datagrams.
var ErrShortPacket = errors.New("udp packet too short")

// Source yields the most recent prediction. ok is false until the first
// prediction exists.
type Source interface {
	Latest() (p lipsync.Prediction, ok bool)
}

// Publisher sends Source.Latest() every interval until stopped.
type Publisher struct {
	sender   *Sender
	source   Source
	interval time.Duration

	mu       sync.Mutex // guards ticker and done across Start/Stop
	ticker   *time.Ticker
	done     chan struct{}
	wg       sync.WaitGroup
	sequence uint32
	packet   bytes.Buffer
}

// NewPublisher returns a stopped publisher. A non-positive interval
// defaults to 16ms.
func NewPublisher(interval time.Duration, sender *Sender, source Source) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("UDPPublisher: source cannot be nil")
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		log.Warnf("UDPPublisher: invalid interval, defaulting to %s", interval)
	}
	return &Publisher{sender: sender, source: source, interval: interval}, nil
}

// Start launches the publishing goroutine. Calling Start while running is
// a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ticker != nil {
		log.Warnf("UDPPublisher: Start called but already running")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.done = make(chan struct{})
	ticker, done := p.ticker, p.done

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Infof("UDPPublisher: publishing every %s", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-done:
				return
			}
		}
	}()
}

// Stop ends the goroutine and waits for it. Safe to call repeatedly.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	close(p.done)
	p.ticker.Stop()
	p.ticker = nil
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// Close stops publishing. The sender is owned by the caller.
func (p *Publisher) Close() error {
	return p.Stop()
}

func (p *Publisher) publish() {
	prediction, ok := p.source.Latest()
	if !ok {
		return
	}
	p.sequence++
	if err := EncodePacket(&p.packet, p.sequence, time.Now(), prediction.Weights); err != nil {
		log.Errorf("UDPPublisher: encoding packet: %v", err)
		return
	}
	if err := p.sender.Send(p.packet.Bytes()); err != nil {
		log.Debugf("UDPPublisher: %v", err)
		return
	}
	log.Debugf("UDPPublisher: sent packet %d (%d bytes)", p.sequence, p.packet.Len())
}

/*
Packet layout, big endian:

	| sequence uint32 | unix nanos int64 | count uint16 | count × float32 weights |
*/

// EncodePacket resets buf and writes one packet into it.
func EncodePacket(buf *bytes.Buffer, seq uint32, ts time.Time, weights []float32) error {
	if len(weights) > math.MaxUint16 {
		return fmt.Errorf("too many weights for one packet: %d", len(weights))
	}
	buf.Reset()
	buf.Grow(HeaderSize + 4*len(weights))
	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[0:4], seq)
	binary.BigEndian.PutUint64(header[4:12], uint64(ts.UnixNano()))
	binary.BigEndian.PutUint16(header[12:14], uint16(len(weights)))
	buf.Write(header[:])
	return binary.Write(buf, binary.BigEndian, weights)
}

// DecodePacket parses a datagram produced by EncodePacket.
func DecodePacket(data []byte) (seq uint32, ts time.Time, weights []float32, err error) {
	if len(data) < HeaderSize {
		return 0, time.Time{}, nil, ErrShortPacket
	}
	seq = binary.BigEndian.Uint32(data[0:4])
	ts = time.Unix(0, int64(binary.BigEndian.Uint64(data[4:12])))
	count := int(binary.BigEndian.Uint16(data[12:14]))
	body := data[HeaderSize:]
	if len(body) < 4*count {
		return 0, time.Time{}, nil, fmt.Errorf("%w: %d weights declared, %d bytes present", ErrShortPacket, count, len(body))
	}
	weights = make([]float32, count)
	for i := range weights {
		weights[i] = math.Float32frombits(binary.BigEndian.Uint32(body[4*i:]))
	}
	return seq, ts, weights, nil
}
