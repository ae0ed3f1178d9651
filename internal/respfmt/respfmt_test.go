package respfmt_test

import (
	"strings"
	"testing"

	"github.com/enginemcp/broker/internal/respfmt"
	"github.com/enginemcp/broker/pkg/brokererr"
)

func smallTable() respfmt.Table {
	return respfmt.Table{
		Columns: []string{"id", "name"},
		Rows: [][]any{
			{1, "a"},
			{2, "b"},
		},
	}
}

func TestResolveFormat_AutoByRowCount(t *testing.T) {
	cases := []struct {
		rows int
		want respfmt.Format
	}{
		{rows: 5, want: respfmt.FormatMarkdownKV},
		{rows: 5000, want: respfmt.FormatMarkdownTable},
		{rows: 50000, want: respfmt.FormatCSV},
	}
	for _, c := range cases {
		if got := respfmt.ResolveFormat(respfmt.FormatAuto, c.rows); got != c.want {
			t.Errorf("ResolveFormat(auto, %d) = %v, want %v", c.rows, got, c.want)
		}
	}
}

func TestResolveFormat_OptimizeAliases(t *testing.T) {
	if got := respfmt.ResolveFormat(respfmt.FormatOptimizeAccuracy, 1); got != respfmt.FormatMarkdownKV {
		t.Errorf("optimize-accuracy = %v, want markdown-kv", got)
	}
	if got := respfmt.ResolveFormat(respfmt.FormatOptimizeCost, 1); got != respfmt.FormatCSV {
		t.Errorf("optimize-cost = %v, want csv", got)
	}
	if got := respfmt.ResolveFormat(respfmt.FormatOptimizeSpeed, 1); got != respfmt.FormatJSONColumn {
		t.Errorf("optimize-speed = %v, want json-column", got)
	}
}

func TestRender_MarkdownKVForSmallTable(t *testing.T) {
	res, err := respfmt.Render(smallTable(), respfmt.FormatAuto, true, respfmt.DefaultMaxResponseBytes)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if res.Format != respfmt.FormatMarkdownKV {
		t.Errorf("Format = %v, want markdown-kv", res.Format)
	}
	if res.RowCount != 2 || !res.IsComplete {
		t.Errorf("RowCount/IsComplete = %d/%v", res.RowCount, res.IsComplete)
	}
	if !strings.Contains(res.Body, "## Record 1") {
		t.Errorf("Body = %q, missing markdown-kv record header", res.Body)
	}
}

func TestRender_CSV(t *testing.T) {
	res, err := respfmt.Render(smallTable(), respfmt.FormatCSV, true, respfmt.DefaultMaxResponseBytes)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.HasPrefix(res.Body, "id,name") {
		t.Errorf("Body = %q, want csv header prefix", res.Body)
	}
}

func TestEstimateBytes_ExceedsCeiling(t *testing.T) {
	err := respfmt.EstimateBytes(10_000_000, 50, 1024)
	if brokererr.KindOf(err) != brokererr.ResponseTooLarge {
		t.Fatalf("KindOf(err) = %v, want ResponseTooLarge", brokererr.KindOf(err))
	}
}

func TestRender_OverCeilingAfterSerialization(t *testing.T) {
	t2 := smallTable()
	_, err := respfmt.Render(t2, respfmt.FormatCSV, true, 4)
	if brokererr.KindOf(err) != brokererr.ResponseTooLarge {
		t.Fatalf("KindOf(err) = %v, want ResponseTooLarge", brokererr.KindOf(err))
	}
}

func TestRender_UnsupportedFormat(t *testing.T) {
	_, err := respfmt.Render(smallTable(), respfmt.Format("bogus"), true, respfmt.DefaultMaxResponseBytes)
	if brokererr.KindOf(err) != brokererr.InvalidArgument {
		t.Fatalf("KindOf(err) = %v, want InvalidArgument", brokererr.KindOf(err))
	}
}
