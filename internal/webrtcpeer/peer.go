package webrtcpeer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/go-logr/logr"
	"github.com/pion/datachannel"
	"github.com/viamrobotics/micro-rdk-go/internal/dtls"
	"github.com/viamrobotics/micro-rdk-go/internal/ice"
	"github.com/viamrobotics/micro-rdk-go/internal/sctp"
	"github.com/viamrobotics/micro-rdk-go/internal/udpmux"
)

// Logger is the package-wide logger, silent by default.
var Logger logr.Logger = logr.Discard()

// Peer owns the full stack for one WebRTC session: an ICE agent nominating
// a pair over the shared udpmux, the DTLS context keying an SCTP
// association on top, and the single data channel carrying framed RPCs
// (§4.4-§4.6). Its local ICE credentials and DTLS fingerprint are available
// immediately from NewPeer, before Run drives the actual handshakes, since
// the SDP answer embedding them must reach the remote before ICE checks can
// begin (§6).
type Peer struct {
	mux       *udpmux.Mux
	localPort int
	cert      tls.Certificate

	ice  *ice.Agent
	dtls *dtls.Context

	sctp *sctp.Association
	dc   *datachannel.DataChannel
}

// NewPeer creates the ICE agent and DTLS context for one session up front,
// generating the local ufrag/pwd and reading the certificate fingerprint,
// without blocking on any network activity. remote carries the ICE
// credentials parsed out of the offer (§4.4).
func NewPeer(mux *udpmux.Mux, localPort int, remote OfferInfo, cert tls.Certificate) (*Peer, error) {
	remoteCreds := ice.Credentials{UFrag: remote.UFrag, Pwd: remote.Pwd}
	agent, err := ice.NewAgent(mux, localPort, remoteCreds)
	if err != nil {
		return nil, fmt.Errorf("webrtcpeer: creating ICE agent: %w", err)
	}
	dtlsCtx, err := dtls.NewContext(cert)
	if err != nil {
		return nil, fmt.Errorf("webrtcpeer: preparing DTLS context: %w", err)
	}
	return &Peer{mux: mux, localPort: localPort, cert: cert, ice: agent, dtls: dtlsCtx}, nil
}

// LocalCredentials exposes the generated local ICE ufrag/pwd, embedded in
// the SDP answer built before Run is called.
func (p *Peer) LocalCredentials() ice.Credentials { return p.ice.LocalCredentials() }

// Fingerprint exposes the DTLS certificate fingerprint embedded in the SDP
// answer's `a=fingerprint` attribute (§6).
func (p *Peer) Fingerprint() string { return p.dtls.Fingerprint }

// AddRemoteCandidate feeds in one ICE candidate received over an "update"
// signaling frame (§4.9).
func (p *Peer) AddRemoteCandidate(c ice.Candidate) { p.ice.AddRemoteCandidate(c) }

// Run drives ICE -> DTLS -> SCTP -> data-channel establishment, in that
// order. ICE, the DTLS handshake and the data-channel open are each bounded
// by their own package-level timeout (§5 Timeouts); the SCTP association
// handshake is bounded only by ctx. It
// blocks until the data channel opens or a stage fails, and is meant to run
// on its own goroutine once the SDP answer has already been sent.
func (p *Peer) Run(ctx context.Context) error {
	if err := p.ice.Connect(ctx); err != nil {
		return fmt.Errorf("webrtcpeer: ICE establishment failed: %w", err)
	}

	remoteAddr, ok := p.ice.NominatedAddr()
	if !ok {
		return fmt.Errorf("webrtcpeer: ICE reported connected with no nominated address")
	}

	if err := p.dtls.Accept(ctx, p.mux, remoteAddr); err != nil {
		return fmt.Errorf("webrtcpeer: DTLS handshake failed: %w", err)
	}

	assoc, err := sctp.Accept(ctx, p.dtls.Stream())
	if err != nil {
		return fmt.Errorf("webrtcpeer: SCTP association failed: %w", err)
	}
	p.sctp = assoc

	dc, err := assoc.AcceptDataChannel(ctx)
	if err != nil {
		return fmt.Errorf("webrtcpeer: data channel did not open: %w", err)
	}
	p.dc = dc
	return nil
}

// DataChannel exposes the established reliable-ordered channel the
// grpcframe transport reads and writes framed RPC messages over. Only valid
// after Run returns nil.
func (p *Peer) DataChannel() *datachannel.DataChannel { return p.dc }

// LocalAddr reports the shared mux's bound address, useful for logging.
func (p *Peer) LocalAddr() net.Addr { return p.mux.LocalAddr() }

// Close tears down SCTP, DTLS, and releases the ICE agent, in that order —
// the reverse of establishment, matching cooperative cancellation's
// release sequence (§5 Cancellation: "releasing the DTLS context, SCTP
// association, and ICE agent").
func (p *Peer) Close() error {
	var firstErr error
	if p.sctp != nil {
		if err := p.sctp.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.dtls != nil {
		if err := p.dtls.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.ice != nil {
		if err := p.ice.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
