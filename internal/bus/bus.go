// Package bus connects the overlay and analysis contexts. Every message is
// serialised to JSON on send and decoded on receipt, so the two sides never
// share memory.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	ErrFull   = errors.New("bus: port full")
	ErrClosed = errors.New("bus: port closed")
)

// Envelope is the wire shape of one message: {type, payload}.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Frame is one serialised envelope in flight.
type Frame []byte

// Envelope parses the frame.
func (f Frame) Envelope() (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(f, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	return env, nil
}

type link struct {
	ch     chan Frame
	mu     sync.RWMutex
	closed bool
}

// Port is one end of a bidirectional link.
type Port struct {
	name string
	out  *link
	in   *link
}

// Pair returns two connected ports. buffer bounds the number of undelivered
// messages in each direction.
func Pair(a, b string, buffer int) (*Port, *Port) {
	ab := &link{ch: make(chan Frame, buffer)}
	ba := &link{ch: make(chan Frame, buffer)}
	return &Port{name: a, out: ab, in: ba}, &Port{name: b, out: ba, in: ab}
}

// Send posts a message without waiting for the peer. A full or closed link
// drops the message.
func (p *Port) Send(ctx context.Context, typ string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", typ, err)
	}
	frame, err := json.Marshal(Envelope{Type: typ, Payload: raw})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", typ, err)
	}

	p.out.mu.RLock()
	defer p.out.mu.RUnlock()
	if p.out.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case p.out.ch <- frame:
		return nil
	default:
		slog.Warn("[bus] dropping message, peer not keeping up",
			slog.String("from", p.name), slog.String("type", typ))
		return ErrFull
	}
}

// Recv returns the inbound frames. The channel is closed when the peer closes.
func (p *Port) Recv() <-chan Frame {
	return p.in.ch
}

// Close stops outbound traffic; the peer's Recv channel drains and closes.
func (p *Port) Close() {
	p.out.mu.Lock()
	defer p.out.mu.Unlock()
	if p.out.closed {
		return
	}
	p.out.closed = true
	close(p.out.ch)
}
