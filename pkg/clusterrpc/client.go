package clusterrpc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cuemby/mpr/pkg/security"
)

// Client is a thin typed wrapper over a grpc.ClientConn speaking the
// json-codec Cluster service — the agent and shim-side counterpart to
// Server.
type Client struct {
	cc *grpc.ClientConn
}

// NewClient wraps an already-dialed connection (e.g. one built over a
// bufconn listener in tests, or with dial options Dial doesn't expose).
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc}
}

// Dial connects to a cluster-manager at addr. When certDir is non-empty
// it presents the mTLS client certificate found there (see
// pkg/security.LoadCertFromFile) and verifies the server against the CA
// certificate in the same directory; an empty certDir dials insecurely,
// for local development only.
func Dial(addr, certDir string) (*Client, error) {
	callOpts := grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName))

	var creds credentials.TransportCredentials
	if certDir != "" {
		cert, err := security.LoadCertFromFile(certDir)
		if err != nil {
			return nil, fmt.Errorf("clusterrpc: loading client certificate: %w", err)
		}
		caCert, err := security.LoadCACertFromFile(certDir)
		if err != nil {
			return nil, fmt.Errorf("clusterrpc: loading CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		pool.AddCert(caCert)
		creds = credentials.NewTLS(&tls.Config{
			Certificates: []tls.Certificate{*cert},
			RootCAs:      pool,
			MinVersion:   tls.VersionTLS13,
		})
	} else {
		creds = insecure.NewCredentials()
	}

	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds), callOpts)
	if err != nil {
		return nil, fmt.Errorf("clusterrpc: dialing %s: %w", addr, err)
	}
	return &Client{cc: cc}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

func (c *Client) RegisterAgent(ctx context.Context, in *RegisterAgentRequest) (*RegisterAgentResponse, error) {
	out := new(RegisterAgentResponse)
	if err := c.cc.Invoke(ctx, serviceName+"/RegisterAgent", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Heartbeat(ctx context.Context, in *HeartbeatRequest) (*HeartbeatResponse, error) {
	out := new(HeartbeatResponse)
	if err := c.cc.Invoke(ctx, serviceName+"/Heartbeat", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Submit(ctx context.Context, in *SubmitRequest) (*SubmitResponse, error) {
	out := new(SubmitResponse)
	if err := c.cc.Invoke(ctx, serviceName+"/Submit", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PollAssignment(ctx context.Context, in *PollAssignmentRequest) (*PollAssignmentResponse, error) {
	out := new(PollAssignmentResponse)
	if err := c.cc.Invoke(ctx, serviceName+"/PollAssignment", in, out); err != nil {
		return nil, err
	}
	return out, nil
}
