package refinery

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Operation is one typed transformation in a pipeline. Check simulates the
// operation's effect on a schema without touching data; Apply mutates a
// working frame. Field-level rules are enforced when the operation is
// constructed, not deferred to execution.
type Operation interface {
	Name() string
	Check(s *Schema) error
	Apply(ctx context.Context, f *Frame) (*Frame, error)
}

// CompareOp is a filter comparison operator.
type CompareOp string

const (
	OpEq CompareOp = "eq"
	OpLt CompareOp = "lt"
	OpGt CompareOp = "gt"
)

func (op CompareOp) valid() bool {
	return op == OpEq || op == OpLt || op == OpGt
}

func (op CompareOp) holds(cmp int) bool {
	switch op {
	case OpEq:
		return cmp == 0
	case OpLt:
		return cmp < 0
	default:
		return cmp > 0
	}
}

// RemoveColumn drops a column from the schema and every row.
type RemoveColumn struct {
	Column string
}

func (t *RemoveColumn) Name() string { return "remove_column" }

func (t *RemoveColumn) Check(s *Schema) error {
	i := s.Index(t.Column)
	if i < 0 {
		return newError(CodeUnknownColumn, "column %q not found", t.Column)
	}
	s.Columns = append(s.Columns[:i], s.Columns[i+1:]...)
	return nil
}

func (t *RemoveColumn) Apply(ctx context.Context, f *Frame) (*Frame, error) {
	if err := f.DropColumn(t.Column); err != nil {
		return nil, newError(CodeUnknownColumn, "column %q not found", t.Column)
	}
	return f, nil
}

// RenameColumn relabels a column; cell values and row order are unchanged.
type RenameColumn struct {
	OldName string
	NewName string
}

func (t *RenameColumn) Name() string { return "rename_column" }

func (t *RenameColumn) Check(s *Schema) error {
	i := s.Index(t.OldName)
	if i < 0 {
		return newError(CodeUnknownColumn, "column %q not found", t.OldName)
	}
	if s.Has(t.NewName) {
		return newError(CodeColumnNameCollision, "column %q already exists", t.NewName)
	}
	s.Columns[i].Name = t.NewName
	return nil
}

func (t *RenameColumn) Apply(ctx context.Context, f *Frame) (*Frame, error) {
	if err := f.RenameColumn(t.OldName, t.NewName); err != nil {
		return nil, &Error{Code: CodeInternal, Pos: -1, Row: -1, Err: err}
	}
	return f, nil
}

// Filter retains rows where column <op> value holds, comparing in the
// column's own kind. Rows with a null in the filtered column are always
// excluded, whatever the operator.
type Filter struct {
	Column   string
	Operator CompareOp
	Value    string
	Naive    *time.Location // zone for timezone-naive timestamp literals
}

func (t *Filter) Name() string { return "filter" }

func (t *Filter) Check(s *Schema) error {
	i := s.Index(t.Column)
	if i < 0 {
		return newError(CodeUnknownColumn, "column %q not found", t.Column)
	}
	kind := s.Columns[i].Type
	if t.Operator != OpEq && !kind.Orderable() {
		return newError(CodeTypeMismatch, "operator %s not supported on %s column %q", t.Operator, kind, t.Column)
	}
	switch kind {
	case KindInt, KindFloat:
		if _, err := strconv.ParseFloat(t.Value, 64); err != nil {
			return newError(CodeTypeMismatch, "value %q is not numeric for column %q", t.Value, t.Column)
		}
	case KindBool:
		if _, err := strconv.ParseBool(strings.ToLower(t.Value)); err != nil {
			return newError(CodeTypeMismatch, "value %q is not a bool for column %q", t.Value, t.Column)
		}
	case KindTime:
		if _, _, err := ParseTimestamp(t.Value, t.Naive); err != nil {
			return newError(CodeTypeMismatch, "value %q is not a timestamp for column %q", t.Value, t.Column)
		}
	case KindTimeOfDay:
		if _, err := ParseTimeOfDay(t.Value); err != nil {
			return newError(CodeTypeMismatch, "value %q is not a time of day for column %q", t.Value, t.Column)
		}
	}
	return nil
}

func (t *Filter) Apply(ctx context.Context, f *Frame) (*Frame, error) {
	col, ok := f.ColumnByName(t.Column)
	if !ok {
		return nil, newError(CodeUnknownColumn, "column %q not found", t.Column)
	}
	mask := make([]bool, f.Rows())
	switch c := col.(type) {
	case *IntColumn:
		// An integral literal compares as int64: going through float64 loses
		// precision above 2^53.
		if want, err := strconv.ParseInt(t.Value, 10, 64); err == nil {
			for i := 0; i < c.Len(); i++ {
				if v, ok := c.Get(i); ok {
					mask[i] = t.Operator.holds(compareInt(v, want))
				}
			}
			break
		}
		want, err := strconv.ParseFloat(t.Value, 64)
		if err != nil {
			return nil, newError(CodeTypeMismatch, "value %q is not numeric for column %q", t.Value, t.Column)
		}
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Get(i); ok {
				mask[i] = t.Operator.holds(compareFloat(float64(v), want))
			}
		}
	case *FloatColumn:
		want, err := strconv.ParseFloat(t.Value, 64)
		if err != nil {
			return nil, newError(CodeTypeMismatch, "value %q is not numeric for column %q", t.Value, t.Column)
		}
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Get(i); ok {
				mask[i] = t.Operator.holds(compareFloat(v, want))
			}
		}
	case *StringColumn:
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Get(i); ok {
				mask[i] = t.Operator.holds(strings.Compare(v, t.Value))
			}
		}
	case *BoolColumn:
		want, err := strconv.ParseBool(strings.ToLower(t.Value))
		if err != nil {
			return nil, newError(CodeTypeMismatch, "value %q is not a bool for column %q", t.Value, t.Column)
		}
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Get(i); ok {
				mask[i] = v == want
			}
		}
	case *TimeColumn:
		want, _, err := ParseTimestamp(t.Value, t.Naive)
		if err != nil {
			return nil, newError(CodeTypeMismatch, "value %q is not a timestamp for column %q", t.Value, t.Column)
		}
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Get(i); ok {
				mask[i] = t.Operator.holds(v.Compare(want))
			}
		}
	case *TimeOfDayColumn:
		want, err := ParseTimeOfDay(t.Value)
		if err != nil {
			return nil, newError(CodeTypeMismatch, "value %q is not a time of day for column %q", t.Value, t.Column)
		}
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Get(i); ok {
				mask[i] = t.Operator.holds(compareDuration(v, want))
			}
		}
	default:
		return nil, newError(CodeInternal, "unhandled column kind for filter on %q", t.Column)
	}
	return f.SelectRows(mask), nil
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareDuration(a, b time.Duration) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Options carries the policy knobs operations need at construction: the
// conventional time column name and the zone applied to timezone-naive
// timestamps. Zero values mean "_time" and UTC.
type Options struct {
	TimeColumn    string
	NaiveLocation *time.Location
}

func (o Options) withDefaults() Options {
	if o.TimeColumn == "" {
		o.TimeColumn = "_time"
	}
	if o.NaiveLocation == nil {
		o.NaiveLocation = time.UTC
	}
	return o
}

// OpSpec is the transport shape of one operation: a tagged record with
// action-specific fields.
type OpSpec struct {
	Action         string          `json:"action"`
	Column         string          `json:"column,omitempty"`
	Operator       string          `json:"operator,omitempty"`
	Value          json.RawMessage `json:"value,omitempty"`
	OldName        string          `json:"old_name,omitempty"`
	NewName        string          `json:"new_name,omitempty"`
	TargetTimezone string          `json:"target_timezone,omitempty"`
}

// CompileOperation turns a spec into its typed Operation, enforcing each
// variant's field rules here rather than at execution.
func CompileOperation(spec OpSpec, opt Options) (Operation, error) {
	opt = opt.withDefaults()
	switch spec.Action {
	case "remove_column":
		if spec.Column == "" {
			return nil, newError(CodeInvalidOperation, "remove_column: missing column")
		}
		return &RemoveColumn{Column: spec.Column}, nil
	case "filter":
		if spec.Column == "" {
			return nil, newError(CodeInvalidOperation, "filter: missing column")
		}
		op := CompareOp(spec.Operator)
		if !op.valid() {
			return nil, newError(CodeInvalidOperation, "filter: operator %q not one of eq, lt, gt", spec.Operator)
		}
		if len(spec.Value) == 0 {
			return nil, newError(CodeInvalidOperation, "filter: missing value")
		}
		val, err := literalString(spec.Value)
		if err != nil {
			return nil, newError(CodeInvalidOperation, "filter: bad value literal: %v", err)
		}
		return &Filter{Column: spec.Column, Operator: op, Value: val, Naive: opt.NaiveLocation}, nil
	case "rename_column":
		if spec.OldName == "" {
			return nil, newError(CodeInvalidOperation, "rename_column: missing old_name")
		}
		if spec.NewName == "" {
			return nil, newError(CodeInvalidOperation, "rename_column: missing new_name")
		}
		return &RenameColumn{OldName: spec.OldName, NewName: spec.NewName}, nil
	case "convert_timezone":
		if spec.TargetTimezone == "" {
			return nil, newError(CodeInvalidOperation, "convert_timezone: missing target_timezone")
		}
		op := &ConvertTimezone{TargetTimezone: spec.TargetTimezone, Convention: opt.TimeColumn, Naive: opt.NaiveLocation}
		if _, err := op.location(); err != nil {
			return nil, err
		}
		return op, nil
	case "time_only":
		return &TimeOnly{Convention: opt.TimeColumn, Naive: opt.NaiveLocation}, nil
	default:
		return nil, newError(CodeInvalidOperation, "unsupported action %q", spec.Action)
	}
}

// CompileOperations compiles an ordered list, failing with the position of
// the first bad spec.
func CompileOperations(specs []OpSpec, opt Options) ([]Operation, error) {
	ops := make([]Operation, 0, len(specs))
	for i, spec := range specs {
		op, err := CompileOperation(spec, opt)
		if err != nil {
			return nil, errAt(err, spec.Action, i)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// literalString renders a JSON literal (string, number, or bool) as the
// text the filter coerces against the column's kind.
func literalString(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return strings.TrimSpace(string(raw)), nil
	}
}
