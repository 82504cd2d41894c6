package rpcserver

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"golang.org/x/net/http2"

	"github.com/viamrobotics/micro-rdk-go/internal/grpcframe"
)

// HTTP/2 server hints from §6: "initial stream window 2048, initial
// connection window 2048, max send buffer 4096, max concurrent streams 2".
// golang.org/x/net/http2.Server exposes the nearest equivalents as upload
// buffer sizes rather than raw window updates; mapped 1:1 below.
const (
	initialStreamWindow     = 2048
	initialConnectionWindow = 2048
	maxSendBuffer           = 4096
	maxConcurrentStreams    = 2
)

// Listener serves direct HTTP/2 TLS RPCs (§6: "Standard gRPC-over-HTTP/2").
// It does not admit connections itself: the caller (the server loop) admits
// each accepted connection into its session manager at session.MaxPriority.
type Listener struct {
	tls        net.Listener
	h2         *http2.Server
	dispatcher *Dispatcher
}

// NewListener wraps tcpListener with TLS (cert) and an http2.Server
// configured to the §6 server hints.
func NewListener(tcpListener net.Listener, cert tls.Certificate, dispatcher *Dispatcher) *Listener {
	tlsListener := tls.NewListener(tcpListener, &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"h2"},
	})
	return &Listener{
		tls: tlsListener,
		h2: &http2.Server{
			MaxConcurrentStreams:         maxConcurrentStreams,
			MaxUploadBufferPerConnection: initialConnectionWindow,
			MaxUploadBufferPerStream:     initialStreamWindow,
			MaxReadFrameSize:             maxSendBuffer,
		},
		dispatcher: dispatcher,
	}
}

// Addr returns the bound listener address.
func (l *Listener) Addr() net.Addr { return l.tls.Addr() }

// Accept blocks for the next TLS connection; the caller (the server loop)
// passes the returned connection to Serve on its own goroutine and admits
// it into the session manager.
func (l *Listener) Accept(ctx context.Context) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		conn, err := l.tls.Accept()
		resCh <- result{conn, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resCh:
		return res.conn, res.err
	}
}

// Serve drives one accepted connection's HTTP/2 request stream until conn
// closes or ctx is cancelled.
func (l *Listener) Serve(ctx context.Context, conn net.Conn) {
	l.h2.ServeConn(conn, &http2.ServeConnOpts{
		Context: ctx,
		Handler: http.HandlerFunc(l.handle),
	})
}

// envelope is the JSON request shape this core reads from the HTTP/2
// request body in place of generated protobuf stubs, whose wire codec is
// out of scope (§1 Non-goals: "the cloud gRPC surface beyond message
// shapes"). The method path still travels as the HTTP/2 `:path`
// pseudo-header, matching real gRPC-over-HTTP/2 routing.
type envelope struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

func (l *Listener) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/grpc")
	w.Header().Set("Trailer", "Grpc-Status, Grpc-Message")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeTrailerOnly(w, grpcframe.Status{Code: 13, Message: err.Error()})
		return
	}
	msg, _, err := grpcframe.Decode(body)
	if err != nil {
		writeTrailerOnly(w, grpcframe.Status{Code: 3, Message: fmt.Sprintf("invalid frame: %v", err)})
		return
	}
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		writeTrailerOnly(w, grpcframe.Status{Code: 3, Message: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	resp := l.dispatcher.Dispatch(r.Context(), Request{Method: r.URL.Path, Name: env.Name, Args: env.Args})
	if resp.Status.Code == 0 {
		payload, _ := json.Marshal(resp.Result)
		w.Write(grpcframe.Encode(payload))
	}
	w.Header().Set("Grpc-Status", fmt.Sprint(resp.Status.Code))
	if resp.Status.Message != "" {
		w.Header().Set("Grpc-Message", resp.Status.Message)
	}
}

func writeTrailerOnly(w http.ResponseWriter, s grpcframe.Status) {
	w.Header().Set("Grpc-Status", fmt.Sprint(s.Code))
	if s.Message != "" {
		w.Header().Set("Grpc-Message", s.Message)
	}
}
