// Package sctp wraps pion/sctp and pion/datachannel to provide the single
// reliable, ordered data channel this core expects per DTLS session (§4.6).
package sctp

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/go-logr/logr"
	"github.com/pion/datachannel"
	"github.com/pion/sctp"
)

// Logger is the package-wide logger, silent by default.
var Logger logr.Logger = logr.Discard()

// DataChannelOpenTimeout bounds how long the association waits for the
// single expected data channel to open (§5 Timeouts).
const DataChannelOpenTimeout = 10 * time.Second

// Association wraps a pion/sctp.Association established server-side over a
// DTLS stream, exposing the one data channel this core expects.
type Association struct {
	assoc *sctp.Association
}

// Accept completes the SCTP four-way handshake over conn (the DTLS
// context's Stream()) in server mode (§4.6: "Listens for an INIT chunk on
// the DTLS stream, completes the four-way handshake").
func Accept(ctx context.Context, conn io.ReadWriteCloser) (*Association, error) {
	cfg := sctp.Config{
		NetConn:       &rwcNetConn{ReadWriteCloser: conn},
		LoggerFactory: newLoggerFactory(),
	}

	type result struct {
		assoc *sctp.Association
		err   error
	}
	resCh := make(chan result, 1)
	go func() {
		a, err := sctp.Server(cfg)
		resCh <- result{a, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("sctp: association setup cancelled: %w", ctx.Err())
	case res := <-resCh:
		if res.err != nil {
			return nil, fmt.Errorf("sctp: association failed: %w", res.err)
		}
		return &Association{assoc: res.assoc}, nil
	}
}

// AcceptDataChannel blocks until the single expected data channel opens, in
// reliable ordered mode, bounded by DataChannelOpenTimeout (§4.6, §5).
func (a *Association) AcceptDataChannel(ctx context.Context) (*datachannel.DataChannel, error) {
	ctx, cancel := context.WithTimeout(ctx, DataChannelOpenTimeout)
	defer cancel()

	type result struct {
		dc  *datachannel.DataChannel
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		stream, err := a.assoc.AcceptStream()
		if err != nil {
			resCh <- result{nil, err}
			return
		}
		stream.SetReliabilityParams(false, sctp.ReliabilityTypeReliable, 0)
		dc, err := datachannel.Accept(stream, &datachannel.Config{
			LoggerFactory: newLoggerFactory(),
		})
		resCh <- result{dc, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("sctp: data channel open timed out: %w", ctx.Err())
	case res := <-resCh:
		if res.err != nil {
			return nil, fmt.Errorf("sctp: data channel open failed: %w", res.err)
		}
		return res.dc, nil
	}
}

// Close tears down the SCTP association.
func (a *Association) Close() error {
	if a.assoc == nil {
		return nil
	}
	return a.assoc.Close()
}

// rwcNetConn adapts an io.ReadWriteCloser (the DTLS stream) to the net.Conn
// shape pion/sctp's Config.NetConn expects; the DTLS layer already owns
// addressing and deadlines, so those are no-ops here.
type rwcNetConn struct {
	io.ReadWriteCloser
}

func (rwcNetConn) LocalAddr() net.Addr                 { return netAddrStub{} }
func (rwcNetConn) RemoteAddr() net.Addr                { return netAddrStub{} }
func (rwcNetConn) SetDeadline(t time.Time) error        { return nil }
func (rwcNetConn) SetReadDeadline(t time.Time) error    { return nil }
func (rwcNetConn) SetWriteDeadline(t time.Time) error   { return nil }

type netAddrStub struct{}

func (netAddrStub) Network() string { return "dtls" }
func (netAddrStub) String() string  { return "dtls-stream" }
