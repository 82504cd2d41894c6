// Package cloud implements the control-plane connection described in §4.9:
// an authenticated HTTP/2 (gRPC) connection used both to open the
// signaling stream and to run periodic cloud-side tasks.
package cloud

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/golang-jwt/jwt/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// Logger is the package-wide logger, silent by default.
var Logger logr.Logger = logr.Discard()

// Option configures a Client the way
// _examples/SilvaMendes-go-rtpengine/client.go's ClientOption configures a
// gortpengine Client.
type Option func(c *Client) error

// WithJWT attaches a pre-signed JWT to every RPC as per-RPC credentials.
func WithJWT(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithTLSConfig overrides the TLS transport credentials used to dial the
// control plane (defaults to the system trust store).
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Client) error {
		c.tlsConfig = cfg
		return nil
	}
}

// Client holds the HTTP/2 connection to the cloud control plane,
// authenticated by a JWT (§4.9).
type Client struct {
	target    string
	token     string
	tlsConfig *tls.Config

	mu   sync.RWMutex
	conn *grpc.ClientConn
}

// Dial opens the HTTP/2 connection to target (host:port). The connection is
// recreated on network loss or HTTP/2 layer error by discarding the Client
// and calling Dial again (§3 Lifecycles); Dial itself does not retry.
func Dial(ctx context.Context, target string, opts ...Option) (*Client, error) {
	c := &Client{target: target, tlsConfig: &tls.Config{}}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(credentials.NewTLS(c.tlsConfig)),
	}
	if c.token != "" {
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(jwtCredentials{token: c.token}))
	}

	conn, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("cloud: dialing %s: %w", target, err)
	}
	c.conn = conn
	return c, nil
}

// Conn returns the underlying gRPC connection, held under a read lock for
// the duration periodic tasks invoke it (§5: "periodic tasks hold it for
// read, reconnection holds it for write").
func (c *Client) Conn() *grpc.ClientConn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// Close tears down the HTTP/2 connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

type jwtCredentials struct {
	token string
}

func (j jwtCredentials) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + j.token}, nil
}

func (j jwtCredentials) RequireTransportSecurity() bool { return true }

// ParseUnverifiedClaims decodes the JWT's claims without verifying the
// signature, used only to read the expiry when deciding when to refresh
// credentials ahead of a reconnect.
func ParseUnverifiedClaims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("cloud: parsing JWT claims: %w", err)
	}
	return claims, nil
}

// ExpiresWithin reports whether the JWT's exp claim is within d of now.
func ExpiresWithin(token string, d time.Duration) bool {
	claims, err := ParseUnverifiedClaims(token)
	if err != nil {
		return true
	}
	expRaw, ok := claims["exp"].(float64)
	if !ok {
		return true
	}
	exp := time.Unix(int64(expRaw), 0)
	return time.Until(exp) < d
}
