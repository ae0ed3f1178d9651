package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/enginemcp/broker/pkg/brokererr"
)

// TLSConfig carries the certificate material a dial may need. Zero value
// means plaintext.
type TLSConfig struct {
	Enabled         bool
	RootCertsPath   string
	ClientCertPath  string
	ClientKeyPath   string
}

// Dial opens a gRPC channel to target, using TLS transport credentials when
// tlsCfg.Enabled, or insecure.NewCredentials() for local/dev bootstrap
// documents that opt out of TLS (SPEC_FULL.md §4.14).
func Dial(ctx context.Context, target string, tlsCfg TLSConfig) (*grpc.ClientConn, error) {
	creds, err := transportCredentials(tlsCfg)
	if err != nil {
		return nil, err
	}

	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodecName)),
	)
	if err != nil {
		return nil, brokererr.Wrap(brokererr.RemoteUnavailable, err, "dialing %s", target)
	}
	return conn, nil
}

func transportCredentials(cfg TLSConfig) (credentials.TransportCredentials, error) {
	if !cfg.Enabled {
		return insecure.NewCredentials(), nil
	}

	tlsConf := &tls.Config{}

	if cfg.RootCertsPath != "" {
		pem, err := os.ReadFile(cfg.RootCertsPath)
		if err != nil {
			return nil, brokererr.Wrap(brokererr.ConfigInvalid, err, "reading tls_root_certs %s", cfg.RootCertsPath)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, brokererr.New(brokererr.ConfigInvalid, "tls_root_certs %s contains no usable certificates", cfg.RootCertsPath)
		}
		tlsConf.RootCAs = pool
	}

	if cfg.ClientCertPath != "" && cfg.ClientKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
		if err != nil {
			return nil, brokererr.Wrap(brokererr.ConfigInvalid, err, "loading client cert/key pair")
		}
		tlsConf.Certificates = []tls.Certificate{cert}
	}

	return credentials.NewTLS(tlsConf), nil
}
