package refinery

import (
	"context"
	"time"
)

// CivilLayout is the representation written after a timezone conversion,
// matching the export convention of the upstream tooling: local calendar
// time with no zone designator.
const CivilLayout = "2006-01-02 15:04:05"

// timestampLayouts are tried in order when parsing. Layouts without zone
// information produce timezone-naive values, which are interpreted in the
// caller-supplied naive location.
var timestampLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02T15:04:05.999999999", false},
	{"2006-01-02 15:04:05.999999999Z07:00", true},
	{"2006-01-02 15:04:05.999999999", false},
	{"2006-01-02", false},
}

// ParseTimestamp parses s as an absolute instant. Timezone-naive input is
// interpreted in naive (UTC when nil); this policy is configuration, not a
// hidden default. The matched layout is returned so columns can round-trip
// their source representation.
func ParseTimestamp(s string, naive *time.Location) (time.Time, string, error) {
	if naive == nil {
		naive = time.UTC
	}
	for _, cand := range timestampLayouts {
		var t time.Time
		var err error
		if cand.zoned {
			t, err = time.Parse(cand.layout, s)
		} else {
			t, err = time.ParseInLocation(cand.layout, s, naive)
		}
		if err == nil {
			return t, cand.layout, nil
		}
	}
	return time.Time{}, "", newError(CodeUnparseableTimestamp, "cannot parse %q as a timestamp", s)
}

// LooksLikeTimestamp reports whether s parses under any known layout.
func LooksLikeTimestamp(s string) bool {
	_, _, err := ParseTimestamp(s, time.UTC)
	return err == nil
}

// ResolveTimeColumn picks the designated time column: the conventional name
// if present in the schema, otherwise the first timestamp-kind column in
// schema order. The rule is deterministic; there is no scanning heuristic.
func ResolveTimeColumn(s Schema, convention string) (string, error) {
	if convention != "" && s.Has(convention) {
		return convention, nil
	}
	for _, cs := range s.Columns {
		if cs.Type == KindTime {
			return cs.Name, nil
		}
	}
	return "", newError(CodeUnknownColumn, "no time column: no %q column and no timestamp-typed column", convention)
}

// ConvertTimezone rewrites the designated time column to the target zone's
// civil time. String columns are parsed row by row first; a malformed cell
// aborts with its row index rather than being nulled.
//
// A conversion must run before TimeOnly in a pipeline: a time-of-day column
// carries no date, so there is no instant from which to resolve the target
// zone's offset, and Check reports a type mismatch for such a column.
type ConvertTimezone struct {
	TargetTimezone string
	Convention     string         // conventional time column name
	Naive          *time.Location // zone applied to timezone-naive input

	loc *time.Location
}

func (t *ConvertTimezone) Name() string { return "convert_timezone" }

func (t *ConvertTimezone) location() (*time.Location, error) {
	if t.loc != nil {
		return t.loc, nil
	}
	loc, err := time.LoadLocation(t.TargetTimezone)
	if err != nil {
		return nil, newError(CodeInvalidTimezone, "unknown timezone %q", t.TargetTimezone)
	}
	t.loc = loc
	return loc, nil
}

func (t *ConvertTimezone) Check(s *Schema) error {
	if _, err := t.location(); err != nil {
		return err
	}
	name, err := ResolveTimeColumn(*s, t.Convention)
	if err != nil {
		return err
	}
	i := s.Index(name)
	switch s.Columns[i].Type {
	case KindTime, KindString:
	default:
		return newError(CodeTypeMismatch, "column %s is %s, want time or string", name, s.Columns[i].Type)
	}
	s.Columns[i].Type = KindTime
	return nil
}

func (t *ConvertTimezone) Apply(ctx context.Context, f *Frame) (*Frame, error) {
	loc, err := t.location()
	if err != nil {
		return nil, err
	}
	name, err := ResolveTimeColumn(f.Schema(), t.Convention)
	if err != nil {
		return nil, err
	}
	tc, err := timeColumnOf(f, name, t.Naive)
	if err != nil {
		return nil, err
	}
	for i := 0; i < tc.Len(); i++ {
		if v, ok := tc.Get(i); ok {
			tc.Set(i, v.In(loc))
		}
	}
	tc.SetLayout(CivilLayout)
	if err := f.ReplaceColumn(name, tc); err != nil {
		return nil, &Error{Code: CodeInternal, Pos: -1, Row: -1, Err: err}
	}
	return f, nil
}

// TimeOnly discards the date portion of the designated time column,
// retaining the clock time in the value's own zone. The column becomes
// time-of-day kind, distinct from timestamp, so any ConvertTimezone must
// precede it; the reverse order fails validation.
type TimeOnly struct {
	Convention string
	Naive      *time.Location
}

func (t *TimeOnly) Name() string { return "time_only" }

func (t *TimeOnly) Check(s *Schema) error {
	name, err := ResolveTimeColumn(*s, t.Convention)
	if err != nil {
		return err
	}
	i := s.Index(name)
	switch s.Columns[i].Type {
	case KindTime, KindString:
	default:
		return newError(CodeTypeMismatch, "column %s is %s, want time or string", name, s.Columns[i].Type)
	}
	s.Columns[i].Type = KindTimeOfDay
	return nil
}

func (t *TimeOnly) Apply(ctx context.Context, f *Frame) (*Frame, error) {
	name, err := ResolveTimeColumn(f.Schema(), t.Convention)
	if err != nil {
		return nil, err
	}
	tc, err := timeColumnOf(f, name, t.Naive)
	if err != nil {
		return nil, err
	}
	out := NewTimeOfDayColumn(name, 0)
	for i := 0; i < tc.Len(); i++ {
		v, ok := tc.Get(i)
		if !ok {
			out.AppendNull()
			continue
		}
		h, m, s := v.Clock()
		out.Append(time.Duration(h)*time.Hour +
			time.Duration(m)*time.Minute +
			time.Duration(s)*time.Second +
			time.Duration(v.Nanosecond()))
	}
	if err := f.ReplaceColumn(name, out); err != nil {
		return nil, &Error{Code: CodeInternal, Pos: -1, Row: -1, Err: err}
	}
	return f, nil
}

// timeColumnOf returns the named column as a TimeColumn, parsing a string
// column into instants first. Parse failures report the offending row.
func timeColumnOf(f *Frame, name string, naive *time.Location) (*TimeColumn, error) {
	col, ok := f.ColumnByName(name)
	if !ok {
		return nil, newError(CodeUnknownColumn, "column %q not found", name)
	}
	switch c := col.(type) {
	case *TimeColumn:
		return c, nil
	case *StringColumn:
		out := NewTimeColumn(name, 0)
		layoutSet := false
		for i := 0; i < c.Len(); i++ {
			v, ok := c.Get(i)
			if !ok {
				out.AppendNull()
				continue
			}
			t, layout, err := ParseTimestamp(v, naive)
			if err != nil {
				return nil, &Error{Code: CodeUnparseableTimestamp, Pos: -1, Row: i,
					Msg: "column " + name, Err: err}
			}
			if !layoutSet {
				out.SetLayout(layout)
				layoutSet = true
			}
			out.Append(t)
		}
		return out, nil
	default:
		return nil, newError(CodeTypeMismatch, "column %s is %s, want time or string", name, col.Kind())
	}
}
