// Command micro-rdk-server is the process entrypoint: it loads a component
// configuration file, builds the resource graph, and runs the server loop
// described in §4.10 until signaled to stop.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	"github.com/viamrobotics/micro-rdk-go/internal/cloud"
	"github.com/viamrobotics/micro-rdk-go/internal/config"
	"github.com/viamrobotics/micro-rdk-go/internal/dtls"
	"github.com/viamrobotics/micro-rdk-go/internal/ice"
	"github.com/viamrobotics/micro-rdk-go/internal/registry"
	"github.com/viamrobotics/micro-rdk-go/internal/robot"
	"github.com/viamrobotics/micro-rdk-go/internal/rpcserver"
	micrordklogging "github.com/viamrobotics/micro-rdk-go/internal/sctp"
	"github.com/viamrobotics/micro-rdk-go/internal/server"
	"github.com/viamrobotics/micro-rdk-go/internal/session"
	"github.com/viamrobotics/micro-rdk-go/internal/udpmux"
	"github.com/viamrobotics/micro-rdk-go/internal/webrtcpeer"
)

func main() {
	configPath := flag.String("config", "", "path to the component configuration JSON file")
	cloudTarget := flag.String("cloud-target", "", "host:port of the cloud control plane")
	cloudJWT := flag.String("cloud-jwt", "", "pre-signed JWT for cloud authentication")
	httpAddr := flag.String("http-addr", ":8080", "address for the direct HTTP/2 TLS listener")
	udpAddr := flag.String("udp-addr", ":0", "address for the shared WebRTC UDP socket")
	sessionCapacity := flag.Int("session-capacity", 3, "session manager slot count (2-4 typical, §4.8)")
	localFQDN := flag.String("local-fqdn", "micro-rdk.local", "local FQDN advertised over mDNS (§6)")
	verbosity := flag.Int("v", 0, "log verbosity")
	flag.Parse()

	log := newLogger(*verbosity)
	wireLoggers(log)

	configs, err := loadConfigs(*configPath)
	if err != nil {
		log.Error(err, "loading component configuration")
		os.Exit(1)
	}

	reg := registry.New()
	// No driver constructors are registered here (individual driver
	// implementations are out of scope, §1 Non-goals), so the registry is
	// empty and any configured component fails constructor lookup.

	r, err := robot.New(reg, configs)
	if err != nil {
		log.Error(err, "building resource graph")
		os.Exit(1)
	}
	defer r.Shutdown(context.Background())

	cert, err := dtls.GenerateSelfSignedCertificate()
	if err != nil {
		log.Error(err, "generating DTLS certificate")
		os.Exit(1)
	}

	mux, err := udpmux.New(*udpAddr)
	if err != nil {
		log.Error(err, "binding WebRTC UDP socket")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := mux.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error(err, "udp mux stopped unexpectedly")
		}
	}()

	tcpListener, err := net.Listen("tcp", *httpAddr)
	if err != nil {
		log.Error(err, "binding HTTP/2 listener")
		os.Exit(1)
	}

	dispatcher := rpcserver.New(r)
	httpListener := rpcserver.NewListener(tcpListener, cert, dispatcher)

	advertiser, err := rpcserver.Advertise("", *localFQDN, tcpListenerPort(tcpListener))
	if err != nil {
		log.Error(err, "registering mDNS advertisement, continuing without it")
	} else {
		defer advertiser.Shutdown()
	}

	localPort := udpListenerPort(mux)

	var cloudOpts []cloud.Option
	if *cloudJWT != "" {
		cloudOpts = append(cloudOpts, cloud.WithJWT(*cloudJWT))
	}

	loop, err := server.New(server.Config{
		Capacity:     *sessionCapacity,
		Dispatcher:   dispatcher,
		HTTPListener: httpListener,
		Mux:          mux,
		LocalUDPPort: localPort,
		Cert:         cert,
		CloudTarget:  *cloudTarget,
		CloudOptions: cloudOpts,
	})
	if err != nil {
		log.Error(err, "constructing server loop")
		os.Exit(1)
	}

	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error(err, "server loop exited")
		os.Exit(1)
	}
}

// loadConfigs reads the component configuration file as a JSON array of
// config.Component. Non-goal: the cloud manifest wire format itself (§1);
// this is the core's own decoded shape, usable directly from a local file
// for static deployments.
func loadConfigs(path string) ([]config.Component, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	var configs []config.Component
	if err := json.NewDecoder(f).Decode(&configs); err != nil {
		return nil, fmt.Errorf("decoding config file: %w", err)
	}
	return configs, nil
}

func newLogger(verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
		} else {
			fmt.Fprintln(os.Stderr, args)
		}
	}, funcr.Options{Verbosity: verbosity})
}

// wireLoggers overrides every internal package's package-level Logger
// variable, mirroring the teacher's own override points
// (pkg/sfu/sfu.go, pkg/buffer/factory.go).
func wireLoggers(log logr.Logger) {
	robot.Logger = log
	udpmux.Logger = log
	rpcserver.Logger = log
	server.Logger = log
	cloud.Logger = log
	dtls.Logger = log
	micrordklogging.Logger = log
	ice.Logger = log
	session.Logger = log
	webrtcpeer.Logger = log
}

func tcpListenerPort(l net.Listener) int {
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0
	}
	return addr.Port
}

func udpListenerPort(mux *udpmux.Mux) int {
	addr, ok := mux.LocalAddr().(*net.UDPAddr)
	if !ok {
		return 0
	}
	return addr.Port
}
