// Package dtls wraps pion/dtls/v2 in server mode, bound to the udpmux DTLS
// lane, to authenticate and key the SCTP association sitting on top of it
// (§4.5).
package dtls

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/go-logr/logr"
	piondtls "github.com/pion/dtls/v2"
	"github.com/viamrobotics/micro-rdk-go/internal/udpmux"
)

// Logger is the package-wide logger, silent by default.
var Logger logr.Logger = logr.Discard()

// HandshakeTimeout bounds the DTLS handshake (§4.5, §5).
const HandshakeTimeout = 10 * time.Second

// SRTPProfile is the single profile this core advertises in its DTLS-SRTP
// extension (§4.5).
const SRTPProfile = piondtls.SRTP_AES128_CM_HMAC_SHA1_80

// Context bundles everything pion/dtls needs for one server-side DTLS
// session: the parsed certificate/key, the resulting connection, and the
// fingerprint advertised in the SDP answer. Exactly one per DTLS session,
// dropped explicitly via Close to release native resources (§3).
type Context struct {
	cert        tls.Certificate
	conn        *piondtls.Conn
	Fingerprint string
}

// NewContext wraps cert (created once at boot, shared by every DTLS
// context for the process lifetime, per §3 Lifecycles — the caller passes
// the same tls.Certificate into every NewContext call) and computes its
// SHA-256 fingerprint for SDP answers.
func NewContext(cert tls.Certificate) (*Context, error) {
	fp, err := fingerprintSHA256(cert)
	if err != nil {
		return nil, fmt.Errorf("dtls: computing certificate fingerprint: %w", err)
	}
	return &Context{cert: cert, Fingerprint: fp}, nil
}

// laneConn adapts a udpmux lane (classified datagram channel in, Send out)
// to the net.Conn interface pion/dtls requires for its read/write
// callbacks.
type laneConn struct {
	mux        *udpmux.Mux
	remoteAddr net.Addr
	lane       <-chan udpmux.Datagram
	pending    []byte
}

func newLaneConn(mux *udpmux.Mux, remoteAddr net.Addr) *laneConn {
	return &laneConn{mux: mux, remoteAddr: remoteAddr, lane: mux.Lane(udpmux.LaneDTLS)}
}

func (c *laneConn) Read(b []byte) (int, error) {
	if len(c.pending) > 0 {
		n := copy(b, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}
	dg, ok := <-c.lane
	if !ok {
		return 0, fmt.Errorf("dtls: lane closed")
	}
	n := copy(b, dg.Payload)
	if n < len(dg.Payload) {
		c.pending = dg.Payload[n:]
	}
	return n, nil
}

func (c *laneConn) Write(b []byte) (int, error) {
	if err := c.mux.Send(context.Background(), b, c.remoteAddr); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *laneConn) Close() error                       { return nil }
func (c *laneConn) LocalAddr() net.Addr                 { return c.mux.LocalAddr() }
func (c *laneConn) RemoteAddr() net.Addr                { return c.remoteAddr }
func (c *laneConn) SetDeadline(t time.Time) error       { return nil }
func (c *laneConn) SetReadDeadline(t time.Time) error   { return nil }
func (c *laneConn) SetWriteDeadline(t time.Time) error  { return nil }

// Accept drives the server-side DTLS handshake over mux's DTLS lane against
// remoteAddr, bounded by HandshakeTimeout. The handshake is driven by
// pion/dtls's own state machine; errors other than a timeout are fatal
// (§4.5: "any other error to a fatal DtlsError").
func (c *Context) Accept(ctx context.Context, mux *udpmux.Mux, remoteAddr net.Addr) error {
	ctx, cancel := context.WithTimeout(ctx, HandshakeTimeout)
	defer cancel()

	conn := newLaneConn(mux, remoteAddr)
	config := &piondtls.Config{
		Certificates:         []tls.Certificate{c.cert},
		SRTPProtectionProfiles: []piondtls.SRTPProtectionProfile{SRTPProfile},
		ClientAuth:           piondtls.NoClientCert,
		InsecureSkipVerify:   true,
	}

	type result struct {
		conn *piondtls.Conn
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		dconn, err := piondtls.Server(conn, config)
		resCh <- result{dconn, err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("dtls: handshake timed out: %w", ctx.Err())
	case res := <-resCh:
		if res.err != nil {
			return fmt.Errorf("dtls: handshake failed: %w", res.err)
		}
		c.conn = res.conn
		return nil
	}
}

// Stream returns the byte-oriented read/write stream SCTP sits on top of.
func (c *Context) Stream() *piondtls.Conn { return c.conn }

// Close drops the DTLS context, releasing native resources (§3).
func (c *Context) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
