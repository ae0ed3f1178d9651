package dispatch

import (
	"context"
	"os"

	"github.com/enginemcp/broker/pkg/brokererr"
)

func (d *Dispatcher) registerScriptHandlers() {
	d.register("session_script_run", func(ctx context.Context, args map[string]any) Envelope {
		sessionID, ok := argString(args, "session_id")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "session_id is required"))
		}
		script, hasScript := argString(args, "script")
		path, hasPath := argString(args, "script_path")
		if hasScript == hasPath {
			return Fail(brokererr.New(brokererr.InvalidArgument, "exactly one of script or script_path is required"))
		}

		client, _, err := d.resolveClient(ctx, sessionID)
		if err != nil {
			return Fail(err)
		}

		code := script
		if hasPath {
			content, err := readFileAsync(ctx, path)
			if err != nil {
				return Fail(err)
			}
			code = content
		}

		if err := client.RunScript(ctx, code); err != nil {
			return Fail(brokererr.Wrap(brokererr.RemoteRejected, err, "running script"))
		}
		return Ok(nil)
	})

	d.register("session_pip_list", func(ctx context.Context, args map[string]any) Envelope {
		sessionID, ok := argString(args, "session_id")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "session_id is required"))
		}
		client, _, err := d.resolveClient(ctx, sessionID)
		if err != nil {
			return Fail(err)
		}
		packages, err := client.PipList(ctx)
		if err != nil {
			return Fail(brokererr.Wrap(brokererr.RemoteRejected, err, "listing pip packages"))
		}
		return Ok(map[string]any{"packages": packages})
	})
}

// readFileAsync reads script_path off a goroutine so a slow mount never
// blocks past ctx's deadline (same discipline as engineauth.readKeyFile).
func readFileAsync(ctx context.Context, path string) (string, error) {
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
		return "", brokererr.Wrap(brokererr.Cancelled, ctx.Err(), "reading script_path")
	case r := <-done:
		if r.err != nil {
			return "", brokererr.Wrap(brokererr.InvalidArgument, r.err, "reading script_path")
		}
		return string(r.data), nil
	}
}
