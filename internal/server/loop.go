// Package server implements the single cooperative loop described in
// §4.10: sleep, maintain the cloud client, race an HTTP/2 accept against a
// WebRTC signaling answer, and admit whichever wins into the session
// manager.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/viamrobotics/micro-rdk-go/internal/cloud"
	"github.com/viamrobotics/micro-rdk-go/internal/grpcframe"
	"github.com/viamrobotics/micro-rdk-go/internal/rpcserver"
	"github.com/viamrobotics/micro-rdk-go/internal/session"
	"github.com/viamrobotics/micro-rdk-go/internal/udpmux"
	"github.com/viamrobotics/micro-rdk-go/internal/webrtcpeer"
)

// Logger is the package-wide logger, silent by default.
var Logger logr.Logger = logr.Discard()

// tickInterval is the loop's sleep at the top of every iteration (§4.10).
const tickInterval = 300 * time.Millisecond

// idleTimeout bounds the accept/answer race (§4.10, §5 Timeouts).
const idleTimeout = 600 * time.Second

// Option configures a Loop, following the teacher's functional-options
// idiom (pkg/sfu/relay.go).
type Option func(*Loop) error

// WithNetworkChecker overrides how the loop decides whether the network is
// connected; defaults to always-true (host testing has no link state to
// query, unlike the embedded target).
func WithNetworkChecker(f func() bool) Option {
	return func(l *Loop) error {
		l.networkConnected = f
		return nil
	}
}

// Config bundles everything one Loop needs for its lifetime: the HTTP/2
// listener, the shared UDP mux backing every WebRTC session, the
// process-lifetime DTLS certificate, and how to dial the cloud control
// plane and its signaling stream.
type Config struct {
	Capacity     int
	Dispatcher   *rpcserver.Dispatcher
	HTTPListener *rpcserver.Listener
	Mux          *udpmux.Mux
	LocalUDPPort int
	Cert         tls.Certificate

	CloudTarget  string
	CloudOptions []cloud.Option
	// DialSignaling opens the bidirectional signaling stream over an
	// established cloud client; the concrete gRPC stub is out of this
	// core's scope (§1 Non-goals), so the caller supplies it.
	DialSignaling func(ctx context.Context, client *cloud.Client) (cloud.AppSignaling, error)
	Tasks         []cloud.Task
}

// Loop owns the session manager and the current cloud client/signaling
// stream, recreated across iterations as needed.
type Loop struct {
	cfg Config
	sessions *session.Manager

	networkConnected func() bool

	cloudClient *cloud.Client
	signaling   cloud.AppSignaling
}

// New builds a Loop from cfg.
func New(cfg Config, opts ...Option) (*Loop, error) {
	l := &Loop{
		cfg:              cfg,
		sessions:         session.New(cfg.Capacity),
		networkConnected: func() bool { return true },
	}
	for _, o := range opts {
		if err := o(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Run drives the loop until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(tickInterval):
		}

		if !l.networkConnected() {
			l.dropCloudClient()
			continue
		}

		if l.cloudClient == nil {
			if err := l.dialCloud(ctx); err != nil {
				Logger.Error(err, "cloud client dial failed, retrying next tick")
				continue
			}
		}

		l.runOneRace(ctx)
	}
}

func (l *Loop) dialCloud(ctx context.Context) error {
	client, err := cloud.Dial(ctx, l.cfg.CloudTarget, l.cfg.CloudOptions...)
	if err != nil {
		return err
	}
	var signaling cloud.AppSignaling
	if l.cfg.DialSignaling != nil {
		signaling, err = l.cfg.DialSignaling(ctx, client)
		if err != nil {
			client.Close()
			return err
		}
	}
	l.cloudClient = client
	l.signaling = signaling
	if len(l.cfg.Tasks) > 0 {
		go func() {
			errCh := cloud.SpawnPeriodicTasks(ctx, client, l.cfg.Tasks)
			if err, ok := <-errCh; ok {
				Logger.Error(err, "periodic task reported fatal error")
				l.dropCloudClient()
			}
		}()
	}
	return nil
}

func (l *Loop) dropCloudClient() {
	if l.cloudClient != nil {
		l.cloudClient.Close()
	}
	if l.signaling != nil {
		l.signaling.Close()
	}
	l.cloudClient = nil
	l.signaling = nil
}

// admission is the result of whichever race arm won.
type admission struct {
	task     *session.Task
	priority uint32
	isHTTP2  bool
	err      error
	isWebRTC bool
}

// runOneRace implements step 4-6 of §4.10: race accept() against answer(),
// bounded by idleTimeout, then admit the winner.
func (l *Loop) runOneRace(ctx context.Context) {
	raceCtx, cancel := context.WithTimeout(ctx, idleTimeout)
	defer cancel()

	resultCh := make(chan admission, 2)

	go func() {
		conn, err := l.cfg.HTTPListener.Accept(raceCtx)
		if err != nil {
			resultCh <- admission{isHTTP2: true, err: err}
			return
		}
		taskCtx, taskCancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			l.cfg.HTTPListener.Serve(taskCtx, conn)
		}()
		resultCh <- admission{
			isHTTP2:  true,
			priority: session.MaxPriority,
			task:     &session.Task{Cancel: taskCancel, Done: done},
		}
	}()

	if l.signaling != nil {
		go func() {
			task, priority, err := l.answerOnce(raceCtx)
			resultCh <- admission{isWebRTC: true, task: task, priority: priority, err: err}
		}()
	}

	select {
	case <-raceCtx.Done():
		return
	case res := <-resultCh:
		l.handleAdmission(res)
	}
}

func (l *Loop) handleAdmission(res admission) {
	if res.err != nil {
		if res.isHTTP2 {
			// HTTP/2 layer error: drop the cloud client (§4.10 step 6).
			Logger.Error(res.err, "HTTP/2 accept failed")
			l.dropCloudClient()
		} else {
			// WebRTC error: cloud client is preserved (§4.10 step 6, §7).
			Logger.Info("WebRTC session establishment failed", "error", res.err.Error())
		}
		return
	}
	if res.task == nil {
		return
	}
	idx := l.sessions.Insert(context.Background(), res.task, res.priority)
	Logger.Info("admitted session", "slot", idx, "priority", res.priority, "http2", res.isHTTP2)
}

// answerOnce implements the WebRTC race arm: wait for the next signaling
// "init" frame, create the peer and send its SDP answer, start the
// ICE/DTLS/SCTP pipeline on its own goroutine, then feed remote candidates
// to the peer until the remote sends "done", returning the session task and
// the priority carried by that frame.
func (l *Loop) answerOnce(ctx context.Context) (*session.Task, uint32, error) {
	req, err := l.signaling.Recv()
	if err != nil {
		return nil, 0, fmt.Errorf("server: signaling recv failed: %w", err)
	}
	if req.Kind != cloud.RequestInit {
		return nil, 0, fmt.Errorf("server: expected init frame, got kind %d", req.Kind)
	}

	sdp, err := cloud.DecodeSDP(req.SDPBase64)
	if err != nil {
		l.sendSignalingError(3 /* InvalidArgument */)
		return nil, 0, err
	}
	if err := cloud.ValidateOffer(sdp); err != nil {
		l.sendSignalingError(3)
		return nil, 0, err
	}

	offerInfo, err := webrtcpeer.ParseOffer(sdp.SDP)
	if err != nil {
		l.sendSignalingError(3)
		return nil, 0, err
	}

	peer, err := webrtcpeer.NewPeer(l.cfg.Mux, l.cfg.LocalUDPPort, offerInfo, l.cfg.Cert)
	if err != nil {
		l.sendSignalingError(2 /* session transient, §7 */)
		return nil, 0, err
	}

	creds := peer.LocalCredentials()
	answerSDP := webrtcpeer.BuildAnswer(creds.UFrag, creds.Pwd, peer.Fingerprint())
	encoded, err := cloud.EncodeSDP(cloud.SDP{Type: cloud.SDPTypeAnswer, SDP: answerSDP})
	if err != nil {
		return nil, 0, err
	}

	if err := l.signaling.Send(cloud.AnswerResponse{
		Kind:           cloud.ResponseInit,
		SDPBase64:      encoded,
		LowestPriority: l.sessions.LowestPriority(),
	}); err != nil {
		return nil, 0, err
	}

	peerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer peer.Close()
		if err := peer.Run(peerCtx); err != nil {
			Logger.Info("WebRTC session establishment failed", "error", err.Error())
			return
		}
		if err := webrtcpeer.ServeDataChannel(peerCtx, peer.DataChannel(), l.dispatchWebRTC); err != nil {
			Logger.Info("data channel serving ended", "error", err.Error())
		}
	}()

	priority := session.MaxPriority
	for {
		reply, err := l.signaling.Recv()
		if err != nil {
			cancel()
			return nil, 0, fmt.Errorf("server: signaling recv failed awaiting done: %w", err)
		}
		switch reply.Kind {
		case cloud.RequestUpdate:
			peer.AddRemoteCandidate(reply.Candidate)
		case cloud.RequestDone:
			priority = reply.Priority
			return &session.Task{Cancel: cancel, Done: done}, priority, nil
		case cloud.RequestError:
			cancel()
			return nil, 0, fmt.Errorf("server: remote aborted signaling with status %d", reply.Status)
		}
	}
}

// dispatchWebRTC adapts rpcserver.Dispatcher to webrtcpeer.DispatchFunc.
func (l *Loop) dispatchWebRTC(ctx context.Context, method, name string, args map[string]interface{}) (map[string]interface{}, grpcframe.Status) {
	resp := l.cfg.Dispatcher.Dispatch(ctx, rpcserver.Request{Method: method, Name: name, Args: args})
	return resp.Result, resp.Status
}

func (l *Loop) sendSignalingError(status int) {
	if l.signaling == nil {
		return
	}
	_ = l.signaling.Send(cloud.AnswerResponse{Kind: cloud.ResponseError, Status: status})
}
