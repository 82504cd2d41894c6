// Package udpmux owns the single UDP socket underlying the WebRTC
// transport (§4.3): one read loop classifying datagrams by first byte into
// STUN/DTLS/SRTP lanes, and one write loop serializing all outbound sends.
package udpmux

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/go-logr/logr"
)

// maxDatagramSize bounds one UDP read, matching the teacher's fixed
// maxPktSize slot size (pkg/buffer/bucket.go) rather than growing per-read.
const maxDatagramSize = 1500

// readBufPool pools the scratch buffers readLoop decodes into, the same
// sync.Pool-backed reuse the teacher's Factory uses for its per-SSRC
// buffers (pkg/buffer/factory.go's videoPool/audioPool), adapted here to a
// single pool of fixed-size datagram scratch space since lane traffic has
// no per-stream identity to key pools by.
var readBufPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, maxDatagramSize)
		return &b
	},
}

// Logger is the package-wide logger, silent by default, matching the
// teacher's package-level `var Logger logr.Logger = logr.Discard()`
// (pkg/buffer/factory.go, pkg/sfu/sfu.go).
var Logger logr.Logger = logr.Discard()

// Lane identifies which consumer a datagram's first byte routes to.
type Lane int

const (
	LaneSTUN Lane = iota
	LaneDTLS
	LaneSRTP
)

func (l Lane) String() string {
	switch l {
	case LaneSTUN:
		return "stun"
	case LaneDTLS:
		return "dtls"
	case LaneSRTP:
		return "srtp"
	default:
		return "unknown"
	}
}

// classify implements the §4.3 first-byte heuristic. ok is false for any
// byte outside the three defined ranges; such datagrams are discarded with
// a warning (§8 invariant 7).
func classify(first byte) (Lane, bool) {
	switch {
	case first <= 3:
		return LaneSTUN, true
	case first >= 20 && first <= 63:
		return LaneDTLS, true
	case first >= 128 && first <= 191:
		return LaneSRTP, true
	default:
		return 0, false
	}
}

// Datagram is one inbound UDP payload plus its remote address, enqueued for
// the destination lane's consumer.
type Datagram struct {
	Payload []byte
	Addr    net.Addr
}

// outbound is one write-loop work item: a payload destined for addr.
type outbound struct {
	payload []byte
	addr    net.Addr
}

// laneBufferDepth bounds each lane's inbound channel; when full, further
// datagrams for that lane are dropped, preserving ordinary UDP semantics
// (§4.3) rather than blocking the read loop.
const laneBufferDepth = 64

// Mux owns exactly one UDP socket and fans incoming datagrams out to three
// lanes, serializing all outbound writes through one queue.
type Mux struct {
	conn net.PacketConn

	lanes   [3]chan Datagram
	writeCh chan outbound

	closeOnce sync.Once
	done      chan struct{}
}

// New binds a UDP socket on addr (":0" for an ephemeral port) and returns a
// Mux ready to have Run called on it.
func New(addr string) (*Mux, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	return newWithConn(conn), nil
}

func newWithConn(conn net.PacketConn) *Mux {
	m := &Mux{
		conn:    conn,
		writeCh: make(chan outbound, laneBufferDepth),
		done:    make(chan struct{}),
	}
	for i := range m.lanes {
		m.lanes[i] = make(chan Datagram, laneBufferDepth)
	}
	return m
}

// LocalAddr returns the bound socket's local address.
func (m *Mux) LocalAddr() net.Addr { return m.conn.LocalAddr() }

// Lane returns the inbound channel for the given lane; consumers range over
// it to receive classified datagrams.
func (m *Mux) Lane(l Lane) <-chan Datagram { return m.lanes[l] }

// Send enqueues payload for delivery to addr on the single shared writer
// queue. It does not block the caller on the socket write itself.
func (m *Mux) Send(ctx context.Context, payload []byte, addr net.Addr) error {
	select {
	case m.writeCh <- outbound{payload: payload, addr: addr}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return errors.New("udpmux: closed")
	}
}

// Run drives the read and write loops until ctx is cancelled or Close is
// called. It is expected to be run in its own goroutine (on-device, the
// single executor task for this mux).
func (m *Mux) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)
	var readErr, writeErr error
	go func() {
		defer wg.Done()
		readErr = m.readLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		writeErr = m.writeLoop(ctx)
	}()
	wg.Wait()
	if readErr != nil {
		return readErr
	}
	return writeErr
}

func (m *Mux) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return nil
		default:
		}

		bufPtr := readBufPool.Get().(*[]byte)
		buf := *bufPtr

		n, addr, err := m.conn.ReadFrom(buf)
		if err != nil {
			readBufPool.Put(bufPtr)
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if n == 0 {
			readBufPool.Put(bufPtr)
			continue
		}

		lane, ok := classify(buf[0])
		if !ok {
			Logger.Info("discarding datagram with unrecognised first byte", "byte", buf[0], "from", addr)
			readBufPool.Put(bufPtr)
			continue
		}

		// The lane consumer may hold onto this slice past the current read
		// iteration, so it is copied out of the pooled scratch buffer before
		// the scratch buffer is returned to the pool.
		payload := make([]byte, n)
		copy(payload, buf[:n])
		readBufPool.Put(bufPtr)

		select {
		case m.lanes[lane] <- Datagram{Payload: payload, Addr: addr}:
		default:
			// Lane channel full: drop the datagram, preserving UDP
			// semantics rather than blocking the read loop (§4.3).
			Logger.Info("dropping datagram: lane buffer full", "lane", lane.String(), "from", addr)
		}
	}
}

func (m *Mux) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return nil
		case out := <-m.writeCh:
			if _, err := m.conn.WriteTo(out.payload, out.addr); err != nil {
				Logger.Error(err, "udpmux write failed", "to", out.addr)
			}
		}
	}
}

// Close releases the socket and unblocks both loops.
func (m *Mux) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.done)
		err = m.conn.Close()
	})
	return err
}
