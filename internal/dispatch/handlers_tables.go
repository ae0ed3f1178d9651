package dispatch

import (
	"context"

	"github.com/enginemcp/broker/internal/respfmt"
	"github.com/enginemcp/broker/pkg/brokererr"
)

func (d *Dispatcher) registerTableHandlers() {
	d.register("session_tables_list", func(ctx context.Context, args map[string]any) Envelope {
		sessionID, ok := argString(args, "session_id")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "session_id is required"))
		}
		client, _, err := d.resolveClient(ctx, sessionID)
		if err != nil {
			return Fail(err)
		}
		tables, err := client.ListTables(ctx)
		if err != nil {
			return Fail(brokererr.Wrap(brokererr.RemoteRejected, err, "listing tables"))
		}
		return Ok(map[string]any{"tables": tables})
	})

	d.register("session_tables_schema", func(ctx context.Context, args map[string]any) Envelope {
		sessionID, ok := argString(args, "session_id")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "session_id is required"))
		}
		table, ok := argString(args, "table_name")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "table_name is required"))
		}
		client, _, err := d.resolveClient(ctx, sessionID)
		if err != nil {
			return Fail(err)
		}
		schema, err := client.TableSchema(ctx, table)
		if err != nil {
			return Fail(brokererr.Wrap(brokererr.RemoteRejected, err, "reading table schema"))
		}
		cols := make([]map[string]any, len(schema))
		for i, c := range schema {
			cols[i] = map[string]any{"name": c.Name, "type": c.Type}
		}
		return Ok(map[string]any{"columns": cols})
	})

	d.register("session_table_data", func(ctx context.Context, args map[string]any) Envelope {
		sessionID, ok := argString(args, "session_id")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "session_id is required"))
		}
		table, ok := argString(args, "table_name")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "table_name is required"))
		}
		maxRows, hasMax := argInt(args, "max_rows")
		format := respfmt.Format("auto")
		if f, ok := argString(args, "format"); ok {
			format = respfmt.Format(f)
		}

		client, _, err := d.resolveClient(ctx, sessionID)
		if err != nil {
			return Fail(err)
		}

		schema, err := client.TableSchema(ctx, table)
		if err != nil {
			return Fail(brokererr.Wrap(brokererr.RemoteRejected, err, "reading table schema"))
		}

		actualRows, err := client.TableSize(ctx, table)
		if err != nil {
			return Fail(brokererr.Wrap(brokererr.RemoteRejected, err, "reading table row count"))
		}

		// Size guard, estimate-before-fetch (spec.md §4.9): the estimate is
		// the table's actual declared row count, capped by max_rows when the
		// caller asked for fewer rows than the table holds.
		estimateRows := int(actualRows)
		if hasMax && maxRows > 0 && maxRows < estimateRows {
			estimateRows = maxRows
		}
		if err := respfmt.EstimateBytes(estimateRows, len(schema), d.maxResponseBytes); err != nil {
			return Fail(err)
		}

		handle, err := client.FetchTable(ctx, table, maxRows)
		if err != nil {
			return Fail(brokererr.Wrap(brokererr.RemoteRejected, err, "fetching table %q", table))
		}

		cap := maxRows
		if !hasMax || cap <= 0 {
			cap = 100_000
		}
		rows, isComplete, err := handle.RowChunk(ctx, cap)
		if err != nil {
			return Fail(brokererr.Wrap(brokererr.RemoteRejected, err, "reading table %q", table))
		}

		cols := make([]string, len(handle.Columns))
		for i, c := range handle.Columns {
			cols[i] = c.Name
		}

		res, err := respfmt.Render(respfmt.Table{Columns: cols, Rows: rows}, format, isComplete, d.maxResponseBytes)
		if err != nil {
			return Fail(err)
		}
		return Ok(map[string]any{
			"data":        res.Body,
			"format":      string(res.Format),
			"row_count":   res.RowCount,
			"is_complete": res.IsComplete,
		})
	})
}
