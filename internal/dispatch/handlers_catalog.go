package dispatch

import (
	"context"
	"sort"
	"strings"

	"github.com/enginemcp/broker/pkg/brokererr"
	"github.com/enginemcp/broker/pkg/model"
)

// Catalog operations require that the resolved session is of enterprise
// kind; community sessions fail Unsupported (spec.md §4.7).
func (d *Dispatcher) registerCatalogHandlers() {
	d.register("catalog_tables_list", func(ctx context.Context, args map[string]any) Envelope {
		sessionID, ok := argString(args, "session_id")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "session_id is required"))
		}
		client, kind, err := d.resolveClient(ctx, sessionID)
		if err != nil {
			return Fail(err)
		}
		if kind != model.KindEnterprise {
			return Fail(brokererr.New(brokererr.Unsupported, "catalog operations require an enterprise session"))
		}
		tables, err := client.ListTables(ctx)
		if err != nil {
			return Fail(brokererr.Wrap(brokererr.RemoteRejected, err, "listing catalog tables"))
		}
		return Ok(map[string]any{"tables": tables})
	})

	d.register("catalog_namespaces_list", func(ctx context.Context, args map[string]any) Envelope {
		sessionID, ok := argString(args, "session_id")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "session_id is required"))
		}
		client, kind, err := d.resolveClient(ctx, sessionID)
		if err != nil {
			return Fail(err)
		}
		if kind != model.KindEnterprise {
			return Fail(brokererr.New(brokererr.Unsupported, "catalog operations require an enterprise session"))
		}
		tables, err := client.ListTables(ctx)
		if err != nil {
			return Fail(brokererr.Wrap(brokererr.RemoteRejected, err, "listing catalog tables"))
		}
		return Ok(map[string]any{"namespaces": namespacesFromTableNames(tables)})
	})

	d.register("catalog_tables_schema", func(ctx context.Context, args map[string]any) Envelope {
		sessionID, ok := argString(args, "session_id")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "session_id is required"))
		}
		table, ok := argString(args, "table_name")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "table_name is required"))
		}
		client, kind, err := d.resolveClient(ctx, sessionID)
		if err != nil {
			return Fail(err)
		}
		if kind != model.KindEnterprise {
			return Fail(brokererr.New(brokererr.Unsupported, "catalog operations require an enterprise session"))
		}
		schema, err := client.TableSchema(ctx, table)
		if err != nil {
			return Fail(brokererr.Wrap(brokererr.RemoteRejected, err, "reading catalog table schema"))
		}
		cols := make([]map[string]any, len(schema))
		for i, c := range schema {
			cols[i] = map[string]any{"name": c.Name, "type": c.Type}
		}
		return Ok(map[string]any{"columns": cols})
	})

	d.register("catalog_table_sample", func(ctx context.Context, args map[string]any) Envelope {
		sessionID, ok := argString(args, "session_id")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "session_id is required"))
		}
		table, ok := argString(args, "table_name")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "table_name is required"))
		}
		sampleRows, ok := argInt(args, "sample_rows")
		if !ok || sampleRows <= 0 {
			sampleRows = 100
		}
		client, kind, err := d.resolveClient(ctx, sessionID)
		if err != nil {
			return Fail(err)
		}
		if kind != model.KindEnterprise {
			return Fail(brokererr.New(brokererr.Unsupported, "catalog operations require an enterprise session"))
		}
		handle, err := client.FetchTable(ctx, table, sampleRows)
		if err != nil {
			return Fail(brokererr.Wrap(brokererr.RemoteRejected, err, "sampling catalog table %q", table))
		}
		rows, isComplete, err := handle.RowChunk(ctx, sampleRows)
		if err != nil {
			return Fail(brokererr.Wrap(brokererr.RemoteRejected, err, "reading catalog table sample"))
		}
		return Ok(map[string]any{"rows": rows, "row_count": len(rows), "is_complete": isComplete})
	})
}

// namespacesFromTableNames derives the catalog's namespace set from the
// dotted qualifying prefix of each table name (e.g. "sales.orders" belongs
// to namespace "sales"); unqualified table names contribute no namespace.
func namespacesFromTableNames(tables []string) []string {
	seen := make(map[string]struct{})
	for _, t := range tables {
		i := strings.LastIndex(t, ".")
		if i <= 0 {
			continue
		}
		seen[t[:i]] = struct{}{}
	}
	namespaces := make([]string, 0, len(seen))
	for ns := range seen {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)
	return namespaces
}
