package transport

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"

	"github.com/enginemcp/broker/pkg/brokererr"
	"github.com/enginemcp/broker/pkg/contracts"
	"github.com/enginemcp/broker/pkg/model"
)

var subscribeStreamDesc = &grpc.StreamDesc{
	StreamName:    "Subscribe",
	ServerStreams: true,
}

// grpcController implements contracts.ControllerClient (SPEC_FULL.md
// §4.14): PQ lifecycle RPCs plus the PQ state-change stream, reconnected
// with cenkalti/backoff on failure.
type grpcController struct {
	conn    *grpc.ClientConn
	tlsCfg  TLSConfig
}

func newController(conn *grpc.ClientConn, tlsCfg TLSConfig) *grpcController {
	return &grpcController{conn: conn, tlsCfg: tlsCfg}
}

type addQueryRequest struct {
	Name              string                `json:"name"`
	HeapGB            float64               `json:"heap_gb"`
	Language          model.SessionLanguage `json:"language"`
	JVMArgs           []string              `json:"jvm_args,omitempty"`
	EnvVars           []string              `json:"env_vars,omitempty"`
	AdminGroups       []string              `json:"admin_groups,omitempty"`
	ViewerGroups      []string              `json:"viewer_groups,omitempty"`
	Server            string                `json:"server,omitempty"`
	Engine            string                `json:"engine,omitempty"`
	AutoDeleteSeconds int64                 `json:"auto_delete_seconds,omitempty"`
	SessionArguments  map[string]any        `json:"session_arguments,omitempty"`
}

func (c *grpcController) AddQuery(ctx context.Context, cfg contracts.PQConfig) (int64, error) {
	req := addQueryRequest{
		Name: cfg.Name, HeapGB: cfg.HeapGB, Language: cfg.Language, JVMArgs: cfg.JVMArgs,
		EnvVars: cfg.EnvVars, AdminGroups: cfg.AdminGroups, ViewerGroups: cfg.ViewerGroups,
		Server: cfg.Server, Engine: cfg.Engine, AutoDeleteSeconds: int64(cfg.AutoDeleteTimeout.Seconds()),
		SessionArguments: cfg.SessionArguments,
	}
	var resp struct {
		Serial int64 `json:"serial"`
	}
	if err := c.conn.Invoke(ctx, "/broker.controller.v1.Controller/AddQuery", &req, &resp); err != nil {
		return 0, brokererr.Wrap(brokererr.RemoteUnavailable, err, "add_query %q", cfg.Name)
	}
	return resp.Serial, nil
}

func (c *grpcController) serialRPC(ctx context.Context, method string, serial int64) error {
	req := struct {
		Serial int64 `json:"serial"`
	}{Serial: serial}
	var resp struct {
		OK      bool   `json:"ok"`
		Message string `json:"message,omitempty"`
	}
	if err := c.conn.Invoke(ctx, method, &req, &resp); err != nil {
		return brokererr.Wrap(brokererr.RemoteUnavailable, err, "%s serial=%d", method, serial)
	}
	if !resp.OK {
		return brokererr.New(brokererr.RemoteRejected, "%s serial=%d rejected: %s", method, serial, resp.Message)
	}
	return nil
}

func (c *grpcController) StartQuery(ctx context.Context, serial int64) error {
	return c.serialRPC(ctx, "/broker.controller.v1.Controller/StartQuery", serial)
}

func (c *grpcController) StopQuery(ctx context.Context, serial int64) error {
	return c.serialRPC(ctx, "/broker.controller.v1.Controller/StopQuery", serial)
}

func (c *grpcController) DeleteQuery(ctx context.Context, serial int64) error {
	return c.serialRPC(ctx, "/broker.controller.v1.Controller/DeleteQuery", serial)
}

// Subscribe opens the PQ state-change stream and reconnects it with
// exponential backoff on failure until ctx is done, mirroring a resilient
// gRPC client elsewhere in this corpus (see internal/transport's doc
// comment for the JSON-codec rationale).
func (c *grpcController) Subscribe(ctx context.Context) (<-chan model.PQSnapshot, error) {
	out := make(chan model.PQSnapshot, 1)
	go c.runSubscription(ctx, out)
	return out, nil
}

func (c *grpcController) runSubscription(ctx context.Context, out chan<- model.PQSnapshot) {
	defer close(out)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	withCtx := backoff.WithContext(bo, ctx)

	for {
		if ctx.Err() != nil {
			return
		}
		err := c.streamOnce(ctx, out)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Warn().Err(err).Msg("transport: controller subscription stream failed, reconnecting")
		}
		wait := withCtx.NextBackOff()
		if wait == backoff.Stop {
			return
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

func (c *grpcController) streamOnce(ctx context.Context, out chan<- model.PQSnapshot) error {
	stream, err := c.conn.NewStream(ctx, subscribeStreamDesc, "/broker.controller.v1.Controller/Subscribe")
	if err != nil {
		return brokererr.Wrap(brokererr.RemoteUnavailable, err, "opening controller subscribe stream")
	}
	if err := stream.SendMsg(&struct{}{}); err != nil {
		return brokererr.Wrap(brokererr.RemoteUnavailable, err, "sending subscribe request")
	}
	if err := stream.CloseSend(); err != nil {
		return brokererr.Wrap(brokererr.RemoteUnavailable, err, "closing subscribe send side")
	}

	for {
		var frame model.PQSnapshot
		if err := stream.RecvMsg(&frame); err != nil {
			if err == io.EOF {
				return nil
			}
			return brokererr.Wrap(brokererr.RemoteUnavailable, err, "receiving subscribe frame")
		}
		select {
		case out <- frame:
		case <-ctx.Done():
			return nil
		}
	}
}

// ConnectSession opens a Barrage-style session to the worker behind serial
// by asking the controller for its connection endpoint, then dialing it
// directly (SPEC_FULL.md §4.14).
func (c *grpcController) ConnectSession(ctx context.Context, serial int64) (contracts.CommunityClient, error) {
	req := struct {
		Serial int64 `json:"serial"`
	}{Serial: serial}
	var resp struct {
		WorkerHost string `json:"worker_host"`
		WorkerPort int    `json:"worker_port"`
	}
	if err := c.conn.Invoke(ctx, "/broker.controller.v1.Controller/ConnectSession", &req, &resp); err != nil {
		return nil, brokererr.Wrap(brokererr.RemoteUnavailable, err, "resolving worker endpoint for serial=%d", serial)
	}

	workerConn, err := Dial(ctx, hostPort(resp.WorkerHost, resp.WorkerPort), c.tlsCfg)
	if err != nil {
		return nil, err
	}
	if err := handshake(ctx, workerConn, contracts.CommunityAuth{Type: model.AuthAnonymous}); err != nil {
		workerConn.Close()
		return nil, err
	}
	return &grpcCommunityClient{conn: workerConn}, nil
}

func (c *grpcController) Close(ctx context.Context) error {
	return c.conn.Close()
}

func hostPort(host string, port int) string {
	return host + ":" + strconv.Itoa(port)
}
