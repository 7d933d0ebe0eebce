// Package zmqrpc carries wire-encoded RPC messages over ZeroMQ PUSH/PULL
// sockets. It is one-way and fire-and-forget: there are no replies, acks
// or retries.
package zmqrpc

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync/atomic"

	"github.com/go-zeromq/zmq4"

	"xdao.co/overlay/rpc"
)

// HandlerFunc receives each decoded message.
type HandlerFunc func(ctx context.Context, m rpc.Message) error

// Sender pushes messages to one endpoint.
type Sender struct {
	sock zmq4.Socket
}

// Dial connects a PUSH socket to endpoint, e.g. "tcp://10.0.0.2:7778".
func Dial(ctx context.Context, endpoint string) (*Sender, error) {
	sock := zmq4.NewPush(ctx)
	if err := sock.Dial(endpoint); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("zmqrpc: dial %s: %w", endpoint, err)
	}
	return &Sender{sock: sock}, nil
}

// Send encodes m and queues it on the socket.
func (s *Sender) Send(m rpc.Message) error {
	b, err := rpc.Marshal(m)
	if err != nil {
		return err
	}
	return s.SendRaw(b)
}

// SendRaw queues an already encoded frame.
func (s *Sender) SendRaw(frame []byte) error {
	if err := s.sock.Send(zmq4.NewMsg(frame)); err != nil {
		return fmt.Errorf("zmqrpc: send: %w", err)
	}
	return nil
}

func (s *Sender) Close() error { return s.sock.Close() }

// Receiver pulls messages from a bound endpoint.
type Receiver struct {
	sock zmq4.Socket
	log  *log.Logger

	received atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Uint64
}

// Listen binds a PULL socket to endpoint. Canceling ctx stops Serve.
func Listen(ctx context.Context, endpoint string, logger *log.Logger) (*Receiver, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	sock := zmq4.NewPull(ctx)
	if err := sock.Listen(endpoint); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("zmqrpc: listen %s: %w", endpoint, err)
	}
	return &Receiver{sock: sock, log: logger}, nil
}

// Serve receives until ctx is canceled or the socket fails. Frames that do
// not decode are logged and dropped; handler errors are logged and do not
// stop the loop.
func (r *Receiver) Serve(ctx context.Context, h HandlerFunc) error {
	for {
		msg, err := r.sock.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("zmqrpc: recv: %w", err)
		}
		m, err := rpc.Unmarshal(msg.Bytes())
		if err != nil {
			r.dropped.Add(1)
			r.log.Printf("zmqrpc: dropping frame: %v", err)
			continue
		}
		r.received.Add(1)
		if err := h(ctx, m); err != nil {
			r.failed.Add(1)
			r.log.Printf("zmqrpc: %s from %s: %v", m.Kind(), m.Head().Source, err)
		}
	}
}

// Stats are counters since Listen.
type Stats struct {
	Received uint64
	Dropped  uint64
	Failed   uint64
}

func (r *Receiver) Stats() Stats {
	return Stats{Received: r.received.Load(), Dropped: r.dropped.Load(), Failed: r.failed.Load()}
}

func (r *Receiver) Close() error { return r.sock.Close() }
