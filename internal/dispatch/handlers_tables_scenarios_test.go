package dispatch_test

import (
	"context"
	"testing"

	"github.com/enginemcp/broker/pkg/brokererr"
	"github.com/enginemcp/broker/pkg/contracts"
)

func fiftyColumns() []contracts.ColumnSchema {
	cols := make([]contracts.ColumnSchema, 50)
	for i := range cols {
		cols[i] = contracts.ColumnSchema{Name: "c", Type: "string"}
	}
	return cols
}

func threeColumns() []contracts.ColumnSchema {
	return []contracts.ColumnSchema{{Name: "a", Type: "string"}, {Name: "b", Type: "string"}, {Name: "c", Type: "string"}}
}

// TestScenarioS4_SizeGuardEstimate is spec.md §8 S4: a declared 10,000,000
// row × 50 column table with no max_rows must fail ResponseTooLarge on the
// pre-fetch estimate alone, never reaching FetchTable.
func TestScenarioS4_SizeGuardEstimate(t *testing.T) {
	var connects int32
	doc := `{"community":{"sessions":{"local":{"auth_type":"anonymous","session_type":"python"}}}}`
	d, _ := newTestDispatcher(t, doc, &connects, 10_000_000, fiftyColumns())

	env := d.Handle(context.Background(), "session_table_data", map[string]any{
		"session_id": "community:local:local",
		"table_name": "big",
		"format":     "json-row",
	})
	if env.Success {
		t.Fatalf("session_table_data(big) Success = true, want false (ResponseTooLarge)")
	}
	if got, _ := env.Data["kind"].(string); brokererr.Kind(got) != brokererr.ResponseTooLarge {
		t.Fatalf("session_table_data(big) kind = %v, want ResponseTooLarge", env.Data["kind"])
	}
}

// TestScenarioS6_FormatAuto is spec.md §8 S6: a 5 row × 3 column table
// with format=auto and no max_rows succeeds, resolving to markdown-kv with
// row_count=5, is_complete=true. This is also the direct regression test
// for the TableSize-backed size-guard estimate: the old estimate of
// max_rows-or-1,000,000 rows would have wrongly rejected this request.
func TestScenarioS6_FormatAuto(t *testing.T) {
	var connects int32
	doc := `{"community":{"sessions":{"local":{"auth_type":"anonymous","session_type":"python"}}}}`
	d, _ := newTestDispatcher(t, doc, &connects, 5, threeColumns())

	env := d.Handle(context.Background(), "session_table_data", map[string]any{
		"session_id": "community:local:local",
		"table_name": "small",
		"format":     "auto",
	})
	if !env.Success {
		t.Fatalf("session_table_data(small) Success = false, error = %v", env.Error)
	}
	if env.Data["format"] != "markdown-kv" {
		t.Errorf("session_table_data(small) format = %v, want markdown-kv", env.Data["format"])
	}
	if env.Data["row_count"] != 5 {
		t.Errorf("session_table_data(small) row_count = %v, want 5", env.Data["row_count"])
	}
	if env.Data["is_complete"] != true {
		t.Errorf("session_table_data(small) is_complete = %v, want true", env.Data["is_complete"])
	}
}
