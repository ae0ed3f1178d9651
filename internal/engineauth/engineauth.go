// Package engineauth implements the Auth Adapters (C2): turning an auth
// description from a config document into the credential shape the engine
// client contracts (pkg/contracts) expect.
package engineauth

import (
	"context"
	"encoding/base64"
	"os"

	"github.com/enginemcp/broker/internal/config"
	"github.com/enginemcp/broker/pkg/brokererr"
	"github.com/enginemcp/broker/pkg/contracts"
	"github.com/enginemcp/broker/pkg/model"
)

// ResolveCommunity converts a community session config's auth fields into
// the packed token the community client factory consumes (spec.md §4.2).
func ResolveCommunity(cfg model.CommunitySessionConfig) (contracts.CommunityAuth, error) {
	switch cfg.AuthType {
	case model.AuthAnonymous:
		return contracts.CommunityAuth{Type: model.AuthAnonymous}, nil

	case model.AuthBasic:
		token, err := resolveInlineOrEnv(cfg.AuthToken, cfg.AuthTokenEnvVar)
		if err != nil {
			return contracts.CommunityAuth{}, err
		}
		// token here is "user:pass" already packed by the caller; the client
		// library is handed it verbatim, base64-armored as the engine wire
		// protocol expects for basic auth.
		return contracts.CommunityAuth{
			Type:  model.AuthBasic,
			Token: base64.StdEncoding.EncodeToString([]byte(token)),
		}, nil

	case model.AuthPSK:
		token, err := resolveInlineOrEnv(cfg.AuthToken, cfg.AuthTokenEnvVar)
		if err != nil {
			return contracts.CommunityAuth{}, err
		}
		return contracts.CommunityAuth{Type: model.AuthPSK, Token: token}, nil

	default:
		return contracts.CommunityAuth{}, brokererr.New(brokererr.ConfigInvalid, "unsupported community auth_type %q", cfg.AuthType)
	}
}

// ResolveEnterprise converts an enterprise system config's auth fields into
// a password tuple or private-key bytes (spec.md §4.2).
func ResolveEnterprise(ctx context.Context, cfg model.EnterpriseSystemConfig) (contracts.EnterpriseAuth, error) {
	switch cfg.AuthType {
	case model.AuthPassword:
		password := cfg.Password
		if cfg.PasswordEnvVar != "" {
			v, err := config.RequireEnv(cfg.PasswordEnvVar)
			if err != nil {
				return contracts.EnterpriseAuth{}, err
			}
			password = v
		}
		return contracts.EnterpriseAuth{
			Type:     model.AuthPassword,
			Username: cfg.Username,
			Password: password,
		}, nil

	case model.AuthPrivateKey:
		pem, err := readKeyFile(ctx, cfg.PrivateKeyPath)
		if err != nil {
			return contracts.EnterpriseAuth{}, err
		}
		return contracts.EnterpriseAuth{
			Type:          model.AuthPrivateKey,
			Username:      cfg.Username,
			PrivateKeyPEM: pem,
		}, nil

	default:
		return contracts.EnterpriseAuth{}, brokererr.New(brokererr.ConfigInvalid, "unsupported enterprise auth_type %q", cfg.AuthType)
	}
}

func resolveInlineOrEnv(inline, envVar string) (string, error) {
	if envVar != "" {
		return config.RequireEnv(envVar)
	}
	return inline, nil
}

// readKeyFile loads a PEM file off a goroutine so a slow or stuck mount
// never blocks the caller past ctx's deadline (spec.md §4.2: "loaded
// asynchronously").
func readKeyFile(ctx context.Context, path string) ([]byte, error) {
	if path == "" {
		return nil, brokererr.New(brokererr.AuthResolution, "private key path is empty")
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := os.ReadFile(path)
		done <- result{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, brokererr.Wrap(brokererr.Cancelled, ctx.Err(), "reading private key file")
	case r := <-done:
		if r.err != nil {
			return nil, brokererr.Wrap(brokererr.AuthResolution, r.err, "reading private key file")
		}
		return r.data, nil
	}
}
