package run_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tsdata/refinery/pkg/dataset"
	"github.com/tsdata/refinery/pkg/refinery"
	"github.com/tsdata/refinery/pkg/run"
)

const sensorsCSV = "_time,device,value\n" +
	"2024-01-15 10:00:00,a,0\n" +
	"2024-01-15 11:00:00,b,-3\n" +
	"2024-01-15 12:00:00,c,2.5\n"

func newRunner(t *testing.T) (*run.Runner, *dataset.Store) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sensors.csv"), []byte(sensorsCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := dataset.Open(dir, dataset.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return run.New(store, nil), store
}

func TestRunEndToEnd(t *testing.T) {
	runner, store := newRunner(t)
	ops, err := refinery.CompileOperations([]refinery.OpSpec{
		{Action: "filter", Column: "value", Operator: "gt", Value: []byte(`0`)},
		{Action: "rename_column", OldName: "value", NewName: "reading"},
	}, refinery.Options{})
	if err != nil {
		t.Fatal(err)
	}
	report, err := runner.Run(context.Background(), run.Request{Source: "sensors.csv", Ops: ops})
	if err != nil {
		t.Fatal(err)
	}
	if report.Output != "sensors_clean.csv" {
		t.Fatalf("output name %q", report.Output)
	}
	if report.RowsIn != 3 || report.Rows != 1 || report.Cols != 3 {
		t.Fatalf("report %+v", report)
	}

	out, err := store.Load(report.Output)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := out.CellString(0, "reading"); got != "2.5" {
		t.Fatalf("output cell %q", got)
	}

	// the source is byte-identical after the run
	raw, err := store.ReadRaw("sensors.csv")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(raw, []byte(sensorsCSV)) {
		t.Fatal("source dataset was modified")
	}
}

func TestRunRefusesEmptyOperationList(t *testing.T) {
	runner, _ := newRunner(t)
	_, err := runner.Run(context.Background(), run.Request{Source: "sensors.csv"})
	if refinery.ErrorCode(err) != refinery.CodeEmptyOperationList {
		t.Fatalf("want empty_operation_list, got %v", err)
	}
}

func TestRunAllOrNothing(t *testing.T) {
	runner, store := newRunner(t)
	before, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	ops, err := refinery.CompileOperations([]refinery.OpSpec{
		{Action: "remove_column", Column: "device"},
		{Action: "remove_column", Column: "no_such_column"},
	}, refinery.Options{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = runner.Run(context.Background(), run.Request{Source: "sensors.csv", Ops: ops})
	if refinery.ErrorCode(err) != refinery.CodeUnknownColumn {
		t.Fatalf("want unknown_column, got %v", err)
	}
	after, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before) {
		t.Fatalf("failed run left datasets behind: %v", after)
	}
}

func TestRunTimestampSuffixes(t *testing.T) {
	runner, _ := newRunner(t)
	ops, err := run.CompileReformat(run.ReformatRequest{
		Source:          "sensors.csv",
		ConvertTimezone: true,
		TargetTimezone:  "America/New_York",
		KeepTimeOnly:    true,
	}, refinery.Options{})
	if err != nil {
		t.Fatal(err)
	}
	report, err := runner.Run(context.Background(), run.Request{Source: "sensors.csv", Ops: ops})
	if err != nil {
		t.Fatal(err)
	}
	if report.Output != "sensors_time_only_tz.csv" {
		t.Fatalf("output name %q", report.Output)
	}
}

func TestRunReformatTimeOnlyValues(t *testing.T) {
	runner, store := newRunner(t)
	ops, err := run.CompileReformat(run.ReformatRequest{
		Source:          "sensors.csv",
		ConvertTimezone: true,
		TargetTimezone:  "America/New_York",
		KeepTimeOnly:    true,
	}, refinery.Options{})
	if err != nil {
		t.Fatal(err)
	}
	report, err := runner.Run(context.Background(), run.Request{Source: "sensors.csv", Ops: ops})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := store.ReadRaw(report.Output)
	if err != nil {
		t.Fatal(err)
	}
	want := "_time,device,value\n" +
		"05:00:00,a,0\n" +
		"06:00:00,b,-3\n" +
		"07:00:00,c,2.5\n"
	if string(raw) != want {
		t.Fatalf("got:\n%s\nwant:\n%s", raw, want)
	}
}

func TestCompileReformatEmpty(t *testing.T) {
	ops, err := run.CompileReformat(run.ReformatRequest{Source: "sensors.csv"}, refinery.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 0 {
		t.Fatalf("expected no operations, got %d", len(ops))
	}
}

func TestRunRepeatedDisambiguates(t *testing.T) {
	runner, _ := newRunner(t)
	ops, err := refinery.CompileOperations([]refinery.OpSpec{
		{Action: "remove_column", Column: "device"},
	}, refinery.Options{})
	if err != nil {
		t.Fatal(err)
	}
	first, err := runner.Run(context.Background(), run.Request{Source: "sensors.csv", Ops: ops})
	if err != nil {
		t.Fatal(err)
	}
	second, err := runner.Run(context.Background(), run.Request{Source: "sensors.csv", Ops: ops})
	if err != nil {
		t.Fatal(err)
	}
	if first.Output != "sensors_clean.csv" || second.Output != "sensors_clean_2.csv" {
		t.Fatalf("got %q then %q", first.Output, second.Output)
	}
}

func TestRunMissingSource(t *testing.T) {
	runner, _ := newRunner(t)
	ops, err := refinery.CompileOperations([]refinery.OpSpec{
		{Action: "remove_column", Column: "device"},
	}, refinery.Options{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = runner.Run(context.Background(), run.Request{Source: "nope.csv", Ops: ops})
	if refinery.ErrorCode(err) != refinery.CodeStorage {
		t.Fatalf("want storage_error, got %v", err)
	}
}
