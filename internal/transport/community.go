package transport

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/enginemcp/broker/pkg/brokererr"
	"github.com/enginemcp/broker/pkg/contracts"
	"github.com/enginemcp/broker/pkg/model"
)

// grpcCommunityClient implements contracts.CommunityClient over a direct
// gRPC channel to a community engine session, or to an enterprise worker
// reached through ConnectSession.
type grpcCommunityClient struct {
	conn         *grpc.ClientConn
	keepAlive    bool
}

// NewCommunityClientFactory returns a contracts.CommunityClientFactory that
// dials cfg.Host:cfg.Port directly, applying the TLS options a community
// session config carries (spec.md §4.2).
func NewCommunityClientFactory() contracts.CommunityClientFactory {
	return func(ctx context.Context, cfg model.CommunitySessionConfig, auth contracts.CommunityAuth) (contracts.CommunityClient, error) {
		target := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
		conn, err := Dial(ctx, target, TLSConfig{
			Enabled:        cfg.UseTLS,
			RootCertsPath:  cfg.TLSRootCerts,
			ClientCertPath: cfg.ClientCertChain,
			ClientKeyPath:  cfg.ClientPrivateKey,
		})
		if err != nil {
			return nil, err
		}

		if err := handshake(ctx, conn, auth); err != nil {
			conn.Close()
			return nil, err
		}

		return &grpcCommunityClient{conn: conn, keepAlive: cfg.NeverTimeout}, nil
	}
}

type handshakeRequest struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

type handshakeResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func handshake(ctx context.Context, conn *grpc.ClientConn, auth contracts.CommunityAuth) error {
	req := handshakeRequest{Type: string(auth.Type), Token: auth.Token}
	var resp handshakeResponse
	if err := conn.Invoke(ctx, "/broker.session.v1.Session/Handshake", &req, &resp); err != nil {
		return brokererr.Wrap(brokererr.AuthResolution, err, "community session handshake")
	}
	if !resp.OK {
		return brokererr.New(brokererr.AuthResolution, "community session handshake rejected: %s", resp.Message)
	}
	return nil
}

func (c *grpcCommunityClient) IsAlive(ctx context.Context) bool {
	var resp struct {
		Alive bool `json:"alive"`
	}
	if err := c.conn.Invoke(ctx, "/broker.session.v1.Session/Ping", &struct{}{}, &resp); err != nil {
		return false
	}
	return resp.Alive
}

func (c *grpcCommunityClient) ListTables(ctx context.Context) ([]string, error) {
	var resp struct {
		Tables []string `json:"tables"`
	}
	if err := c.conn.Invoke(ctx, "/broker.session.v1.Session/ListTables", &struct{}{}, &resp); err != nil {
		return nil, brokererr.Wrap(brokererr.RemoteUnavailable, err, "listing tables")
	}
	return resp.Tables, nil
}

func (c *grpcCommunityClient) TableSchema(ctx context.Context, table string) ([]contracts.ColumnSchema, error) {
	req := struct {
		Table string `json:"table"`
	}{Table: table}
	var resp struct {
		Columns []contracts.ColumnSchema `json:"columns"`
	}
	if err := c.conn.Invoke(ctx, "/broker.session.v1.Session/TableSchema", &req, &resp); err != nil {
		return nil, brokererr.Wrap(brokererr.RemoteUnavailable, err, "fetching schema for table %q", table)
	}
	return resp.Columns, nil
}

func (c *grpcCommunityClient) TableSize(ctx context.Context, table string) (int64, error) {
	req := struct {
		Table string `json:"table"`
	}{Table: table}
	var resp struct {
		Rows int64 `json:"rows"`
	}
	if err := c.conn.Invoke(ctx, "/broker.session.v1.Session/TableSize", &req, &resp); err != nil {
		return 0, brokererr.Wrap(brokererr.RemoteUnavailable, err, "fetching row count for table %q", table)
	}
	return resp.Rows, nil
}

func (c *grpcCommunityClient) FetchTable(ctx context.Context, table string, maxRows int) (*contracts.TableHandle, error) {
	cols, err := c.TableSchema(ctx, table)
	if err != nil {
		return nil, err
	}

	handle := &contracts.TableHandle{
		Name:    table,
		Columns: cols,
		RowChunk: func(ctx context.Context, chunkRows int) ([][]any, bool, error) {
			req := struct {
				Table   string `json:"table"`
				MaxRows int    `json:"max_rows"`
			}{Table: table, MaxRows: chunkRows}
			var resp struct {
				Rows       [][]any `json:"rows"`
				IsComplete bool    `json:"is_complete"`
			}
			if err := c.conn.Invoke(ctx, "/broker.session.v1.Session/FetchRows", &req, &resp); err != nil {
				return nil, false, brokererr.Wrap(brokererr.RemoteUnavailable, err, "fetching rows for table %q", table)
			}
			return resp.Rows, resp.IsComplete, nil
		},
	}
	return handle, nil
}

func (c *grpcCommunityClient) RunScript(ctx context.Context, code string) error {
	req := struct {
		Code string `json:"code"`
	}{Code: code}
	var resp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}
	if err := c.conn.Invoke(ctx, "/broker.session.v1.Session/RunScript", &req, &resp); err != nil {
		return brokererr.Wrap(brokererr.RemoteUnavailable, err, "running script")
	}
	if !resp.OK {
		return brokererr.New(brokererr.RemoteRejected, "script execution failed: %s", resp.Error)
	}
	return nil
}

func (c *grpcCommunityClient) PipList(ctx context.Context) ([]string, error) {
	var resp struct {
		Packages []string `json:"packages"`
	}
	if err := c.conn.Invoke(ctx, "/broker.session.v1.Session/PipList", &struct{}{}, &resp); err != nil {
		return nil, brokererr.Wrap(brokererr.RemoteUnavailable, err, "listing pip packages")
	}
	return resp.Packages, nil
}

func (c *grpcCommunityClient) SetKeepAlive(enabled bool) bool {
	req := struct {
		Enabled bool `json:"enabled"`
	}{Enabled: enabled}
	var resp struct {
		Applied bool `json:"applied"`
	}
	if err := c.conn.Invoke(context.Background(), "/broker.session.v1.Session/SetKeepAlive", &req, &resp); err != nil {
		return false
	}
	c.keepAlive = resp.Applied && enabled
	return resp.Applied
}

func (c *grpcCommunityClient) Close(ctx context.Context) error {
	return c.conn.Close()
}
