package refinery_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	r "github.com/tsdata/refinery/pkg/refinery"
)

func TestFilterNumeric(t *testing.T) {
	f := sampleFrame()
	op := &r.Filter{Column: "value", Operator: r.OpGt, Value: "0"}
	out, err := op.Apply(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}
	if out.Rows() != 1 {
		t.Fatalf("want 1 row, got %d", out.Rows())
	}
	d, _ := out.ColumnByName("device")
	v, _ := d.(*r.StringColumn).Get(0)
	if v != "a" {
		t.Fatalf("wrong row survived filter: %q", v)
	}
}

func TestFilterExcludesNulls(t *testing.T) {
	// row 2 has a null value; eq against anything must not retain it
	f := sampleFrame()
	op := &r.Filter{Column: "value", Operator: r.OpEq, Value: "-2"}
	out, err := op.Apply(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}
	if out.Rows() != 1 {
		t.Fatalf("want 1 row, got %d", out.Rows())
	}
}

func TestFilterString(t *testing.T) {
	f := sampleFrame()
	op := &r.Filter{Column: "device", Operator: r.OpLt, Value: "c"}
	out, err := op.Apply(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}
	if out.Rows() != 2 {
		t.Fatalf("want 2 rows, got %d", out.Rows())
	}
}

func TestFilterIntExactAboveFloatPrecision(t *testing.T) {
	// 9007199254740993 and 9007199254740992 collapse to the same float64;
	// integer literals must compare exactly
	s := r.Schema{Columns: []r.ColumnSchema{{Name: "n", Type: r.KindInt, Nullable: true}}}
	f := r.NewFrame(s)
	f.AppendNullRow()
	_ = f.SetCell(0, "n", int64(9007199254740993))
	f.AppendNullRow()
	_ = f.SetCell(1, "n", int64(9007199254740992))

	eq := &r.Filter{Column: "n", Operator: r.OpEq, Value: "9007199254740993"}
	out, err := eq.Apply(context.Background(), f.Clone())
	if err != nil {
		t.Fatal(err)
	}
	if out.Rows() != 1 {
		t.Fatalf("eq: want 1 row, got %d", out.Rows())
	}
	col, _ := out.ColumnByName("n")
	if v, _ := col.(*r.IntColumn).Get(0); v != 9007199254740993 {
		t.Fatalf("eq kept %d", v)
	}

	gt := &r.Filter{Column: "n", Operator: r.OpGt, Value: "9007199254740992"}
	out, err = gt.Apply(context.Background(), f.Clone())
	if err != nil {
		t.Fatal(err)
	}
	if out.Rows() != 1 {
		t.Fatalf("gt: want 1 row, got %d", out.Rows())
	}
}

func TestFilterIntFractionalLiteral(t *testing.T) {
	// a non-integral literal still compares through float64
	s := r.Schema{Columns: []r.ColumnSchema{{Name: "n", Type: r.KindInt, Nullable: true}}}
	f := r.NewFrame(s)
	f.AppendNullRow()
	_ = f.SetCell(0, "n", int64(2))
	f.AppendNullRow()
	_ = f.SetCell(1, "n", int64(3))
	op := &r.Filter{Column: "n", Operator: r.OpGt, Value: "2.5"}
	out, err := op.Apply(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}
	if out.Rows() != 1 {
		t.Fatalf("want 1 row, got %d", out.Rows())
	}
}

func TestFilterCheckRejectsOrderingOnBool(t *testing.T) {
	s := r.Schema{Columns: []r.ColumnSchema{{Name: "ok", Type: r.KindBool, Nullable: true}}}
	op := &r.Filter{Column: "ok", Operator: r.OpLt, Value: "true"}
	err := op.Check(&s)
	if r.ErrorCode(err) != r.CodeTypeMismatch {
		t.Fatalf("want type_mismatch, got %v", err)
	}
	eq := &r.Filter{Column: "ok", Operator: r.OpEq, Value: "true"}
	if err := eq.Check(&s); err != nil {
		t.Fatalf("eq on bool should be fine: %v", err)
	}
}

func TestFilterCheckUnknownColumn(t *testing.T) {
	s := r.Schema{Columns: []r.ColumnSchema{{Name: "x", Type: r.KindFloat, Nullable: true}}}
	op := &r.Filter{Column: "missing", Operator: r.OpEq, Value: "1"}
	if got := r.ErrorCode(op.Check(&s)); got != r.CodeUnknownColumn {
		t.Fatalf("want unknown_column, got %s", got)
	}
}

func TestFilterCheckNonNumericLiteral(t *testing.T) {
	s := r.Schema{Columns: []r.ColumnSchema{{Name: "x", Type: r.KindFloat, Nullable: true}}}
	op := &r.Filter{Column: "x", Operator: r.OpGt, Value: "tuesday"}
	if got := r.ErrorCode(op.Check(&s)); got != r.CodeTypeMismatch {
		t.Fatalf("want type_mismatch, got %s", got)
	}
}

func TestRemoveColumnCheckMutatesSchema(t *testing.T) {
	s := r.Schema{Columns: []r.ColumnSchema{
		{Name: "a", Type: r.KindFloat, Nullable: true},
		{Name: "b", Type: r.KindString, Nullable: true},
	}}
	op := &r.RemoveColumn{Column: "a"}
	if err := op.Check(&s); err != nil {
		t.Fatal(err)
	}
	if s.Has("a") || len(s.Columns) != 1 {
		t.Fatalf("check did not simulate removal: %v", s.Names())
	}
}

func TestRenameCheckCollision(t *testing.T) {
	s := r.Schema{Columns: []r.ColumnSchema{
		{Name: "a", Type: r.KindFloat, Nullable: true},
		{Name: "b", Type: r.KindString, Nullable: true},
	}}
	op := &r.RenameColumn{OldName: "a", NewName: "b"}
	if got := r.ErrorCode(op.Check(&s)); got != r.CodeColumnNameCollision {
		t.Fatalf("want column_name_collision, got %s", got)
	}
}

func TestCompileOperations(t *testing.T) {
	specs := []r.OpSpec{
		{Action: "filter", Column: "value", Operator: "gt", Value: json.RawMessage(`0`)},
		{Action: "rename_column", OldName: "value", NewName: "reading"},
		{Action: "remove_column", Column: "device"},
		{Action: "convert_timezone", TargetTimezone: "America/New_York"},
		{Action: "time_only"},
	}
	ops, err := r.CompileOperations(specs, r.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 5 {
		t.Fatalf("want 5 ops, got %d", len(ops))
	}
	if ops[0].Name() != "filter" || ops[4].Name() != "time_only" {
		t.Fatalf("unexpected op names: %s, %s", ops[0].Name(), ops[4].Name())
	}
}

func TestCompileRejectsBadSpecs(t *testing.T) {
	cases := []r.OpSpec{
		{Action: "explode"},
		{Action: "filter", Column: "x", Operator: "ge", Value: json.RawMessage(`1`)},
		{Action: "filter", Operator: "eq", Value: json.RawMessage(`1`)},
		{Action: "filter", Column: "x", Operator: "eq"},
		{Action: "rename_column", OldName: "x"},
		{Action: "remove_column"},
		{Action: "convert_timezone"},
		{Action: "convert_timezone", TargetTimezone: "Not/AZone"},
	}
	for i, spec := range cases {
		_, err := r.CompileOperation(spec, r.Options{})
		if err == nil {
			t.Fatalf("case %d: expected compile failure for %+v", i, spec)
		}
	}
}

func TestCompileErrorCarriesPosition(t *testing.T) {
	specs := []r.OpSpec{
		{Action: "remove_column", Column: "a"},
		{Action: "filter", Column: "x", Operator: "between", Value: json.RawMessage(`1`)},
	}
	_, err := r.CompileOperations(specs, r.Options{})
	var e *r.Error
	if !errors.As(err, &e) {
		t.Fatalf("want *refinery.Error, got %T", err)
	}
	if e.Pos != 1 {
		t.Fatalf("want position 1, got %d", e.Pos)
	}
	if e.Code != r.CodeInvalidOperation {
		t.Fatalf("want invalid_operation, got %s", e.Code)
	}
}

func TestFilterJSONLiterals(t *testing.T) {
	// numeric and boolean JSON literals coerce the same as quoted strings
	for _, raw := range []string{`3.5`, `"3.5"`} {
		op, err := r.CompileOperation(r.OpSpec{Action: "filter", Column: "v", Operator: "lt", Value: json.RawMessage(raw)}, r.Options{})
		if err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
		if op.(*r.Filter).Value != "3.5" {
			t.Fatalf("%s: got %q", raw, op.(*r.Filter).Value)
		}
	}
}
