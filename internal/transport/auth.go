package transport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/enginemcp/broker/pkg/brokererr"
	"github.com/enginemcp/broker/pkg/contracts"
)

type authRequest struct {
	Type          string `json:"type"`
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	PrivateKeyPEM []byte `json:"private_key_pem,omitempty"`
}

type authResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// grpcAuthClient implements contracts.AuthClient over the enterprise
// system's auth endpoint.
type grpcAuthClient struct {
	conn *grpc.ClientConn
	auth contracts.EnterpriseAuth
}

func newAuthClient(conn *grpc.ClientConn, auth contracts.EnterpriseAuth) *grpcAuthClient {
	return &grpcAuthClient{conn: conn, auth: auth}
}

func (c *grpcAuthClient) Authenticate(ctx context.Context) error {
	req := authRequest{Type: string(c.auth.Type), Username: c.auth.Username, Password: c.auth.Password, PrivateKeyPEM: c.auth.PrivateKeyPEM}
	var resp authResponse
	if err := c.conn.Invoke(ctx, "/broker.auth.v1.Auth/Authenticate", &req, &resp); err != nil {
		return brokererr.Wrap(brokererr.AuthResolution, err, "authenticating enterprise system")
	}
	if !resp.OK {
		return brokererr.New(brokererr.AuthResolution, "authentication rejected: %s", resp.Message)
	}
	return nil
}

func (c *grpcAuthClient) Probe(ctx context.Context) error {
	var resp authResponse
	if err := c.conn.Invoke(ctx, "/broker.auth.v1.Auth/Probe", &authRequest{}, &resp); err != nil {
		return brokererr.Wrap(brokererr.RemoteUnavailable, err, "probing auth endpoint")
	}
	if !resp.OK {
		return brokererr.New(brokererr.RemoteRejected, "auth probe rejected: %s", resp.Message)
	}
	return nil
}

func (c *grpcAuthClient) Close(ctx context.Context) error {
	return c.conn.Close()
}
