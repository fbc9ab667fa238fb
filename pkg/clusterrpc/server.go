package clusterrpc

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/cuemby/mpr/pkg/security"
)

// NewServer builds a grpc.Server ready for RegisterClusterServer. certDir
// empty means no transport security — local development only; a
// production cluster-manager always passes the directory
// pkg/security.GetCertDir("manager", nodeID) resolves to, requiring a
// client certificate signed by the same CA from every agent.
func NewServer(certDir string) (*grpc.Server, error) {
	if certDir == "" {
		return grpc.NewServer(), nil
	}

	cert, err := security.LoadCertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("clusterrpc: loading server certificate: %w", err)
	}
	caCert, err := security.LoadCACertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("clusterrpc: loading CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(caCert)

	creds := credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{*cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    pool,
		MinVersion:   tls.VersionTLS13,
	})
	return grpc.NewServer(grpc.Creds(creds)), nil
}
