package transport

import (
	"context"

	"github.com/enginemcp/broker/pkg/contracts"
	"github.com/enginemcp/broker/pkg/model"
)

// NewEnterpriseSystemFactory returns a contracts.EnterpriseSystemFactory
// that resolves an enterprise system's auth and controller endpoints from
// its connection.json document, dials both over gRPC, and authenticates
// before handing the pair back to the system manager (SPEC_FULL.md §4.14).
func NewEnterpriseSystemFactory() contracts.EnterpriseSystemFactory {
	return func(ctx context.Context, cfg model.EnterpriseSystemConfig, auth contracts.EnterpriseAuth) (contracts.AuthClient, contracts.ControllerClient, error) {
		doc, err := fetchConnectionDoc(ctx, cfg.ConnectionJSONURL)
		if err != nil {
			return nil, nil, err
		}

		tlsCfg := TLSConfig{Enabled: true}

		authConn, err := Dial(ctx, hostPort(doc.AuthHost, doc.AuthPort), tlsCfg)
		if err != nil {
			return nil, nil, err
		}
		authClient := newAuthClient(authConn, auth)
		if err := authClient.Authenticate(ctx); err != nil {
			authConn.Close()
			return nil, nil, err
		}

		controllerConn, err := Dial(ctx, hostPort(doc.ControllerHost, doc.ControllerPort), tlsCfg)
		if err != nil {
			_ = authClient.Close(ctx)
			return nil, nil, err
		}
		controller := newController(controllerConn, tlsCfg)

		return authClient, controller, nil
	}
}
