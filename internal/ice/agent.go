package ice

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/pion/stun"
	"github.com/viamrobotics/micro-rdk-go/internal/udpmux"
)

// Logger is the package-wide logger, silent by default.
var Logger logr.Logger = logr.Discard()

// Timeout is the upper bound on the overall ICE phase (§4.4, §5).
const Timeout = 10 * time.Second

// retransmitInterval is the period between repeated binding requests on a
// pair that has not yet produced a response.
const retransmitInterval = 200 * time.Millisecond

// ErrTimeout is returned by Connect when the ICE phase exceeds Timeout
// without reaching the connected state.
var ErrTimeout = fmt.Errorf("ice: operation timed out")

// ErrClosed is returned by Connect if the agent is closed while
// connectivity checks are still in flight.
var ErrClosed = fmt.Errorf("ice: agent closed")

// Agent runs connectivity checks over a udpmux STUN lane. It is always the
// controlled side: nomination is driven by the remote's USE-CANDIDATE
// attribute, never initiated locally (§4.4).
type Agent struct {
	mux  *udpmux.Mux
	port int

	local  Credentials
	remote Credentials

	tieBreaker uint64

	mu              sync.Mutex
	localCandidates []Candidate
	remoteCandidates []Candidate

	connected   atomic.Bool
	nominated   atomic.Bool
	nominatedAddr atomic.Value // net.Addr
	closed      atomic.Bool
}

// NewAgent creates an agent bound to mux's STUN lane, listening on port
// (the port the host candidates advertise).
func NewAgent(mux *udpmux.Mux, port int, remote Credentials) (*Agent, error) {
	local, err := GenerateCredentials()
	if err != nil {
		return nil, err
	}
	tb := make([]byte, 8)
	if _, err := rand.Read(tb); err != nil {
		return nil, err
	}
	a := &Agent{
		mux:        mux,
		port:       port,
		local:      local,
		remote:     remote,
		tieBreaker: binary.BigEndian.Uint64(tb),
	}
	candidates, err := GatherHostCandidates(port)
	if err != nil {
		return nil, err
	}
	a.localCandidates = candidates
	return a, nil
}

// LocalCredentials returns the generated local ufrag/pwd, to be embedded in
// the SDP answer.
func (a *Agent) LocalCredentials() Credentials { return a.local }

// LocalCandidates returns the gathered host candidates.
func (a *Agent) LocalCandidates() []Candidate {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Candidate(nil), a.localCandidates...)
}

// AddRemoteCandidate feeds one remote candidate in asynchronously, as they
// arrive over the signaling "update" stream (§4.9).
func (a *Agent) AddRemoteCandidate(c Candidate) {
	a.mu.Lock()
	a.remoteCandidates = append(a.remoteCandidates, c)
	a.mu.Unlock()
}

// Connected reports whether a pair has been nominated.
func (a *Agent) Connected() bool { return a.connected.Load() }

// Connect drives connectivity checks against every known remote candidate
// and waits for nomination, bounded by Timeout (§4.4, §5).
func (a *Agent) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	checkTicker := time.NewTicker(retransmitInterval)
	defer checkTicker.Stop()

	incoming := a.mux.Lane(udpmux.LaneSTUN)

	for {
		if a.closed.Load() {
			return ErrClosed
		}
		select {
		case <-ctx.Done():
			if a.connected.Load() {
				return nil
			}
			return ErrTimeout
		case dg := <-incoming:
			a.handleIncoming(dg)
			if a.connected.Load() {
				return nil
			}
		case <-checkTicker.C:
			a.sendChecks(ctx)
		}
	}
}

// Close releases the agent: it marks the agent closed so a Connect loop
// still in flight returns promptly, and drops the candidate lists. The
// agent does not own the udpmux.Mux it runs checks over — that socket is
// shared across every peer and is closed by its own owner — so Close has
// nothing to do there. Idempotent.
func (a *Agent) Close() error {
	a.closed.Store(true)
	a.mu.Lock()
	a.localCandidates = nil
	a.remoteCandidates = nil
	a.mu.Unlock()
	return nil
}

func (a *Agent) sendChecks(ctx context.Context) {
	a.mu.Lock()
	remotes := append([]Candidate(nil), a.remoteCandidates...)
	a.mu.Unlock()

	for _, rc := range remotes {
		addr := &net.UDPAddr{IP: net.ParseIP(rc.Address), Port: rc.Port}
		req, err := buildBindingRequest(a.local.UFrag, a.remote.UFrag, a.local.Pwd, rc.Priority, a.tieBreaker)
		if err != nil {
			Logger.Error(err, "building binding request")
			continue
		}
		if err := a.mux.Send(ctx, req.Raw, addr); err != nil {
			Logger.Error(err, "sending binding request", "to", addr)
		}
	}
}

func (a *Agent) handleIncoming(dg udpmux.Datagram) {
	msg := &stun.Message{Raw: append([]byte(nil), dg.Payload...)}
	if err := msg.Decode(); err != nil {
		Logger.Info("dropping malformed STUN packet", "from", dg.Addr, "error", err.Error())
		return
	}

	if !isBindingRequest(msg) {
		// A binding success response to one of our own checks; this agent
		// is controlled, so arrival of a response alone does not nominate
		// the pair — only an incoming request with USE-CANDIDATE does.
		return
	}

	host, portStr, err := net.SplitHostPort(dg.Addr.String())
	if err != nil {
		return
	}
	port := 0
	fmt.Sscanf(portStr, "%d", &port)

	resp, err := buildBindingResponse(msg, host, port, a.local.Pwd)
	if err == nil {
		_ = a.mux.Send(context.Background(), resp.Raw, dg.Addr)
	}

	if hasUseCandidate(msg) {
		a.nominatedAddr.Store(dg.Addr)
		a.nominated.Store(true)
		a.connected.Store(true)
		Logger.Info("ICE pair nominated", "remote", dg.Addr)
	}
}

// NominatedAddr returns the remote address of the nominated pair, if any.
func (a *Agent) NominatedAddr() (net.Addr, bool) {
	v := a.nominatedAddr.Load()
	if v == nil {
		return nil, false
	}
	addr, ok := v.(net.Addr)
	return addr, ok
}
