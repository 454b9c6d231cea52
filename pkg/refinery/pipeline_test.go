package refinery_test

import (
	"context"
	"errors"
	"testing"

	r "github.com/tsdata/refinery/pkg/refinery"
)

func TestValidateTracksSchemaEvolution(t *testing.T) {
	s := r.Schema{Columns: []r.ColumnSchema{
		{Name: "value", Type: r.KindFloat, Nullable: true},
	}}
	// the filter sees the post-rename schema
	ops := []r.Operation{
		&r.RenameColumn{OldName: "value", NewName: "reading"},
		&r.Filter{Column: "reading", Operator: r.OpGt, Value: "0"},
	}
	if err := r.Validate(s, ops); err != nil {
		t.Fatal(err)
	}
	// same ops reversed: the filter references a name that does not exist yet
	bad := []r.Operation{ops[1], ops[0]}
	err := r.Validate(s, bad)
	if r.ErrorCode(err) != r.CodeUnknownColumn {
		t.Fatalf("want unknown_column, got %v", err)
	}
}

func TestValidateReportsPosition(t *testing.T) {
	s := r.Schema{Columns: []r.ColumnSchema{
		{Name: "a", Type: r.KindFloat, Nullable: true},
	}}
	ops := []r.Operation{
		&r.RemoveColumn{Column: "a"},
		&r.RemoveColumn{Column: "a"}, // already gone
	}
	err := r.Validate(s, ops)
	var e *r.Error
	if !errors.As(err, &e) {
		t.Fatalf("want *refinery.Error, got %T", err)
	}
	if e.Pos != 1 || e.Op != "remove_column" {
		t.Fatalf("want op remove_column at position 1, got %s at %d", e.Op, e.Pos)
	}
}

func TestValidateIdempotent(t *testing.T) {
	s := r.Schema{Columns: []r.ColumnSchema{
		{Name: "value", Type: r.KindFloat, Nullable: true},
		{Name: "device", Type: r.KindString, Nullable: true},
	}}
	ops := []r.Operation{
		&r.RenameColumn{OldName: "value", NewName: "reading"},
		&r.RemoveColumn{Column: "device"},
	}
	for i := 0; i < 3; i++ {
		if err := r.Validate(s, ops); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}
	// the input schema is never mutated by validation
	if !s.Has("value") || !s.Has("device") {
		t.Fatalf("validation mutated schema: %v", s.Names())
	}
}

func TestValidateTimeOnlyBeforeConvertRejected(t *testing.T) {
	s := r.Schema{Columns: []r.ColumnSchema{
		{Name: "_time", Type: r.KindTime, Nullable: true},
	}}
	ops := []r.Operation{
		&r.ConvertTimezone{TargetTimezone: "America/New_York", Convention: "_time"},
		&r.TimeOnly{Convention: "_time"},
	}
	if err := r.Validate(s, ops); err != nil {
		t.Fatal(err)
	}
	// time_only leaves a time-of-day column with no date to anchor a zone
	// offset, so a later conversion cannot type-check
	bad := []r.Operation{ops[1], ops[0]}
	err := r.Validate(s, bad)
	var e *r.Error
	if !errors.As(err, &e) {
		t.Fatalf("want *refinery.Error, got %T", err)
	}
	if e.Code != r.CodeTypeMismatch || e.Pos != 1 {
		t.Fatalf("want type_mismatch at position 1, got %s at %d", e.Code, e.Pos)
	}
}

func TestValidateEmptyListOK(t *testing.T) {
	s := r.Schema{Columns: []r.ColumnSchema{{Name: "x", Type: r.KindInt, Nullable: true}}}
	if err := r.Validate(s, nil); err != nil {
		t.Fatal(err)
	}
}

func TestPipelineRunScenario(t *testing.T) {
	s := r.Schema{Columns: []r.ColumnSchema{
		{Name: "ts", Type: r.KindString, Nullable: true},
		{Name: "device", Type: r.KindString, Nullable: true},
		{Name: "value", Type: r.KindFloat, Nullable: true},
	}}
	f := r.NewFrame(s)
	rows := []struct {
		ts     string
		device string
		value  float64
	}{
		{"2024-01-15 10:00:00", "a", 0},
		{"2024-01-15 11:00:00", "b", -3},
		{"2024-01-15 12:00:00", "c", 2.5},
	}
	for i, row := range rows {
		f.AppendNullRow()
		_ = f.SetCell(i, "ts", row.ts)
		_ = f.SetCell(i, "device", row.device)
		_ = f.SetCell(i, "value", row.value)
	}

	p := r.NewPipeline(
		&r.Filter{Column: "value", Operator: r.OpGt, Value: "0"},
		&r.RenameColumn{OldName: "value", NewName: "reading"},
	)
	if err := p.Validate(f.Schema()); err != nil {
		t.Fatal(err)
	}
	out, applied, err := p.Run(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}
	if out.Rows() != 1 {
		t.Fatalf("want 1 row, got %d", out.Rows())
	}
	if got, _ := out.CellString(0, "device"); got != "c" {
		t.Fatalf("wrong row survived: %q", got)
	}
	if got, _ := out.CellString(0, "reading"); got != "2.5" {
		t.Fatalf("renamed column lost value: %q", got)
	}
	want := []string{"filter", "rename_column"}
	if len(applied) != len(want) || applied[0] != want[0] || applied[1] != want[1] {
		t.Fatalf("applied log %v, want %v", applied, want)
	}
}

func TestPipelineRunAbortsOnFailure(t *testing.T) {
	f := sampleFrame()
	p := r.NewPipeline(
		&r.RemoveColumn{Column: "value"},
		&r.RemoveColumn{Column: "nope"},
	)
	_, _, err := p.Run(context.Background(), f)
	var e *r.Error
	if !errors.As(err, &e) {
		t.Fatalf("want *refinery.Error, got %T", err)
	}
	if e.Pos != 1 {
		t.Fatalf("failure position %d, want 1", e.Pos)
	}
}

func TestPipelineRunHonorsCancellation(t *testing.T) {
	f := sampleFrame()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := r.NewPipeline(&r.RemoveColumn{Column: "value"})
	_, _, err := p.Run(ctx, f)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestCategories(t *testing.T) {
	ops := []r.Operation{
		&r.Filter{Column: "x", Operator: r.OpEq, Value: "1"},
		&r.ConvertTimezone{TargetTimezone: "UTC"},
	}
	structural, timezone, timeOnly := r.Categories(ops)
	if !structural || !timezone || timeOnly {
		t.Fatalf("got structural=%v timezone=%v timeOnly=%v", structural, timezone, timeOnly)
	}
}
