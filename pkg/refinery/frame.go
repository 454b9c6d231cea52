package refinery

import (
	"fmt"
	"time"
)

// Schema describes the logical shape of a dataset.
type Schema struct {
	Columns []ColumnSchema
}

type ColumnSchema struct {
	Name     string
	Type     Kind
	Nullable bool
}

// Kind enumerates supported logical types.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTime
	KindTimeOfDay
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	case KindTimeOfDay:
		return "time_of_day"
	default:
		return "invalid"
	}
}

// Orderable reports whether values of the kind support lt/gt comparison.
func (k Kind) Orderable() bool {
	switch k {
	case KindInt, KindFloat, KindString, KindTime, KindTimeOfDay:
		return true
	default:
		return false
	}
}

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, cs := range s.Columns {
		if cs.Name == name {
			return i
		}
	}
	return -1
}

func (s Schema) Has(name string) bool { return s.Index(name) >= 0 }

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, cs := range s.Columns {
		names[i] = cs.Name
	}
	return names
}

// Clone returns an independent copy of the schema.
func (s Schema) Clone() Schema {
	out := Schema{Columns: make([]ColumnSchema, len(s.Columns))}
	copy(out.Columns, s.Columns)
	return out
}

// Column is a typed, nullable column abstraction.
type Column interface {
	Name() string
	Kind() Kind
	Len() int
	IsNull(i int) bool
	SetNull(i int)
	setName(name string)
	clone() Column
	keep(mask []bool) Column
}

type BoolColumn struct {
	name  string
	data  []bool
	nulls []bool
}

func NewBoolColumn(name string, n int) *BoolColumn {
	return &BoolColumn{name: name, data: make([]bool, n), nulls: make([]bool, n)}
}
func (c *BoolColumn) Name() string           { return c.name }
func (c *BoolColumn) Kind() Kind             { return KindBool }
func (c *BoolColumn) Len() int               { return len(c.data) }
func (c *BoolColumn) IsNull(i int) bool      { return c.nulls[i] }
func (c *BoolColumn) SetNull(i int)          { c.nulls[i] = true }
func (c *BoolColumn) Get(i int) (bool, bool) { return c.data[i], !c.nulls[i] }
func (c *BoolColumn) Set(i int, v bool)      { c.data[i] = v; c.nulls[i] = false }
func (c *BoolColumn) AppendNull()            { c.data = append(c.data, false); c.nulls = append(c.nulls, true) }
func (c *BoolColumn) Append(v bool)          { c.data = append(c.data, v); c.nulls = append(c.nulls, false) }
func (c *BoolColumn) setName(name string)    { c.name = name }
func (c *BoolColumn) clone() Column {
	return &BoolColumn{name: c.name, data: append([]bool(nil), c.data...), nulls: append([]bool(nil), c.nulls...)}
}
func (c *BoolColumn) keep(mask []bool) Column {
	out := NewBoolColumn(c.name, 0)
	for i := range c.data {
		if mask[i] {
			out.data = append(out.data, c.data[i])
			out.nulls = append(out.nulls, c.nulls[i])
		}
	}
	return out
}

type IntColumn struct {
	name  string
	data  []int64
	nulls []bool
}

func NewIntColumn(name string, n int) *IntColumn {
	return &IntColumn{name: name, data: make([]int64, n), nulls: make([]bool, n)}
}
func (c *IntColumn) Name() string            { return c.name }
func (c *IntColumn) Kind() Kind              { return KindInt }
func (c *IntColumn) Len() int                { return len(c.data) }
func (c *IntColumn) IsNull(i int) bool       { return c.nulls[i] }
func (c *IntColumn) SetNull(i int)           { c.nulls[i] = true }
func (c *IntColumn) Get(i int) (int64, bool) { return c.data[i], !c.nulls[i] }
func (c *IntColumn) Set(i int, v int64)      { c.data[i] = v; c.nulls[i] = false }
func (c *IntColumn) AppendNull()             { c.data = append(c.data, 0); c.nulls = append(c.nulls, true) }
func (c *IntColumn) Append(v int64)          { c.data = append(c.data, v); c.nulls = append(c.nulls, false) }
func (c *IntColumn) setName(name string)     { c.name = name }
func (c *IntColumn) clone() Column {
	return &IntColumn{name: c.name, data: append([]int64(nil), c.data...), nulls: append([]bool(nil), c.nulls...)}
}
func (c *IntColumn) keep(mask []bool) Column {
	out := NewIntColumn(c.name, 0)
	for i := range c.data {
		if mask[i] {
			out.data = append(out.data, c.data[i])
			out.nulls = append(out.nulls, c.nulls[i])
		}
	}
	return out
}

type FloatColumn struct {
	name  string
	data  []float64
	nulls []bool
}

func NewFloatColumn(name string, n int) *FloatColumn {
	return &FloatColumn{name: name, data: make([]float64, n), nulls: make([]bool, n)}
}
func (c *FloatColumn) Name() string              { return c.name }
func (c *FloatColumn) Kind() Kind                { return KindFloat }
func (c *FloatColumn) Len() int                  { return len(c.data) }
func (c *FloatColumn) IsNull(i int) bool         { return c.nulls[i] }
func (c *FloatColumn) SetNull(i int)             { c.nulls[i] = true }
func (c *FloatColumn) Get(i int) (float64, bool) { return c.data[i], !c.nulls[i] }
func (c *FloatColumn) Set(i int, v float64)      { c.data[i] = v; c.nulls[i] = false }
func (c *FloatColumn) AppendNull()               { c.data = append(c.data, 0); c.nulls = append(c.nulls, true) }
func (c *FloatColumn) Append(v float64)          { c.data = append(c.data, v); c.nulls = append(c.nulls, false) }
func (c *FloatColumn) setName(name string)       { c.name = name }
func (c *FloatColumn) clone() Column {
	return &FloatColumn{name: c.name, data: append([]float64(nil), c.data...), nulls: append([]bool(nil), c.nulls...)}
}
func (c *FloatColumn) keep(mask []bool) Column {
	out := NewFloatColumn(c.name, 0)
	for i := range c.data {
		if mask[i] {
			out.data = append(out.data, c.data[i])
			out.nulls = append(out.nulls, c.nulls[i])
		}
	}
	return out
}

type StringColumn struct {
	name  string
	data  []string
	nulls []bool
}

func NewStringColumn(name string, n int) *StringColumn {
	return &StringColumn{name: name, data: make([]string, n), nulls: make([]bool, n)}
}
func (c *StringColumn) Name() string             { return c.name }
func (c *StringColumn) Kind() Kind               { return KindString }
func (c *StringColumn) Len() int                 { return len(c.data) }
func (c *StringColumn) IsNull(i int) bool        { return c.nulls[i] }
func (c *StringColumn) SetNull(i int)            { c.nulls[i] = true }
func (c *StringColumn) Get(i int) (string, bool) { return c.data[i], !c.nulls[i] }
func (c *StringColumn) Set(i int, v string)      { c.data[i] = v; c.nulls[i] = false }
func (c *StringColumn) AppendNull()              { c.data = append(c.data, ""); c.nulls = append(c.nulls, true) }
func (c *StringColumn) Append(v string)          { c.data = append(c.data, v); c.nulls = append(c.nulls, false) }
func (c *StringColumn) setName(name string)      { c.name = name }
func (c *StringColumn) clone() Column {
	return &StringColumn{name: c.name, data: append([]string(nil), c.data...), nulls: append([]bool(nil), c.nulls...)}
}
func (c *StringColumn) keep(mask []bool) Column {
	out := NewStringColumn(c.name, 0)
	for i := range c.data {
		if mask[i] {
			out.data = append(out.data, c.data[i])
			out.nulls = append(out.nulls, c.nulls[i])
		}
	}
	return out
}

// TimeColumn holds absolute instants. Layout records the textual
// representation the values were read from so untouched columns round-trip
// byte-for-byte on write.
type TimeColumn struct {
	name   string
	layout string
	data   []time.Time
	nulls  []bool
}

func NewTimeColumn(name string, n int) *TimeColumn {
	return &TimeColumn{name: name, layout: time.RFC3339, data: make([]time.Time, n), nulls: make([]bool, n)}
}
func (c *TimeColumn) Name() string                { return c.name }
func (c *TimeColumn) Kind() Kind                  { return KindTime }
func (c *TimeColumn) Len() int                    { return len(c.data) }
func (c *TimeColumn) IsNull(i int) bool           { return c.nulls[i] }
func (c *TimeColumn) SetNull(i int)               { c.nulls[i] = true }
func (c *TimeColumn) Get(i int) (time.Time, bool) { return c.data[i], !c.nulls[i] }
func (c *TimeColumn) Set(i int, v time.Time)      { c.data[i] = v; c.nulls[i] = false }
func (c *TimeColumn) Layout() string              { return c.layout }
func (c *TimeColumn) SetLayout(layout string)     { c.layout = layout }
func (c *TimeColumn) setName(name string)         { c.name = name }
func (c *TimeColumn) AppendNull() {
	c.data = append(c.data, time.Time{})
	c.nulls = append(c.nulls, true)
}
func (c *TimeColumn) Append(v time.Time) {
	c.data = append(c.data, v)
	c.nulls = append(c.nulls, false)
}
func (c *TimeColumn) clone() Column {
	return &TimeColumn{name: c.name, layout: c.layout, data: append([]time.Time(nil), c.data...), nulls: append([]bool(nil), c.nulls...)}
}
func (c *TimeColumn) keep(mask []bool) Column {
	out := NewTimeColumn(c.name, 0)
	out.layout = c.layout
	for i := range c.data {
		if mask[i] {
			out.data = append(out.data, c.data[i])
			out.nulls = append(out.nulls, c.nulls[i])
		}
	}
	return out
}

// TimeOfDayColumn holds clock times with the date discarded, as offsets
// since midnight. It is a distinct kind from TimeColumn: a time-of-day
// value never compares against a date-bearing one.
type TimeOfDayColumn struct {
	name  string
	data  []time.Duration
	nulls []bool
}

func NewTimeOfDayColumn(name string, n int) *TimeOfDayColumn {
	return &TimeOfDayColumn{name: name, data: make([]time.Duration, n), nulls: make([]bool, n)}
}
func (c *TimeOfDayColumn) Name() string                    { return c.name }
func (c *TimeOfDayColumn) Kind() Kind                      { return KindTimeOfDay }
func (c *TimeOfDayColumn) Len() int                        { return len(c.data) }
func (c *TimeOfDayColumn) IsNull(i int) bool               { return c.nulls[i] }
func (c *TimeOfDayColumn) SetNull(i int)                   { c.nulls[i] = true }
func (c *TimeOfDayColumn) Get(i int) (time.Duration, bool) { return c.data[i], !c.nulls[i] }
func (c *TimeOfDayColumn) Set(i int, v time.Duration)      { c.data[i] = v; c.nulls[i] = false }
func (c *TimeOfDayColumn) setName(name string)             { c.name = name }
func (c *TimeOfDayColumn) AppendNull() {
	c.data = append(c.data, 0)
	c.nulls = append(c.nulls, true)
}
func (c *TimeOfDayColumn) Append(v time.Duration) {
	c.data = append(c.data, v)
	c.nulls = append(c.nulls, false)
}
func (c *TimeOfDayColumn) clone() Column {
	return &TimeOfDayColumn{name: c.name, data: append([]time.Duration(nil), c.data...), nulls: append([]bool(nil), c.nulls...)}
}
func (c *TimeOfDayColumn) keep(mask []bool) Column {
	out := NewTimeOfDayColumn(c.name, 0)
	for i := range c.data {
		if mask[i] {
			out.data = append(out.data, c.data[i])
			out.nulls = append(out.nulls, c.nulls[i])
		}
	}
	return out
}

// FormatTimeOfDay renders an offset since midnight as HH:MM:SS, with a
// fractional part only when present.
func FormatTimeOfDay(d time.Duration) string {
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	frac := d % time.Second
	if frac == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	out := fmt.Sprintf("%02d:%02d:%02d.%09d", h, m, s, frac)
	for out[len(out)-1] == '0' {
		out = out[:len(out)-1]
	}
	return out
}

// ParseTimeOfDay parses HH:MM:SS(.fraction) into an offset since midnight.
func ParseTimeOfDay(s string) (time.Duration, error) {
	for _, layout := range []string{"15:04:05.999999999", "15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second +
				time.Duration(t.Nanosecond()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

// Frame is a columnar container for tabular data.
type Frame struct {
	schema Schema
	cols   []Column
	index  map[string]int // name -> col index
	nrows  int
}

func NewFrame(s Schema) *Frame {
	f := &Frame{schema: s.Clone(), cols: make([]Column, len(s.Columns)), index: make(map[string]int)}
	for i, cs := range s.Columns {
		switch cs.Type {
		case KindBool:
			f.cols[i] = NewBoolColumn(cs.Name, 0)
		case KindInt:
			f.cols[i] = NewIntColumn(cs.Name, 0)
		case KindFloat:
			f.cols[i] = NewFloatColumn(cs.Name, 0)
		case KindString:
			f.cols[i] = NewStringColumn(cs.Name, 0)
		case KindTime:
			f.cols[i] = NewTimeColumn(cs.Name, 0)
		case KindTimeOfDay:
			f.cols[i] = NewTimeOfDayColumn(cs.Name, 0)
		default:
			panic("invalid column kind")
		}
		f.index[cs.Name] = i
	}
	return f
}

func (f *Frame) Schema() Schema { return f.schema }
func (f *Frame) Rows() int      { return f.nrows }
func (f *Frame) Cols() int      { return len(f.cols) }

func (f *Frame) ColumnByName(name string) (Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

func (f *Frame) ColumnAt(i int) Column { return f.cols[i] }

// Clone returns a deep copy sharing no storage with the receiver.
func (f *Frame) Clone() *Frame {
	out := &Frame{schema: f.schema.Clone(), cols: make([]Column, len(f.cols)), index: make(map[string]int, len(f.index)), nrows: f.nrows}
	for i, c := range f.cols {
		out.cols[i] = c.clone()
	}
	for name, i := range f.index {
		out.index[name] = i
	}
	return out
}

// DropColumn removes the named column from the schema and every row.
func (f *Frame) DropColumn(name string) error {
	i, ok := f.index[name]
	if !ok {
		return fmt.Errorf("unknown column: %s", name)
	}
	f.cols = append(f.cols[:i], f.cols[i+1:]...)
	f.schema.Columns = append(f.schema.Columns[:i], f.schema.Columns[i+1:]...)
	delete(f.index, name)
	for n, j := range f.index {
		if j > i {
			f.index[n] = j - 1
		}
	}
	return nil
}

// RenameColumn relabels a column; values and order are untouched.
func (f *Frame) RenameColumn(oldName, newName string) error {
	i, ok := f.index[oldName]
	if !ok {
		return fmt.Errorf("unknown column: %s", oldName)
	}
	if _, exists := f.index[newName]; exists {
		return fmt.Errorf("column already exists: %s", newName)
	}
	f.cols[i].setName(newName)
	f.schema.Columns[i].Name = newName
	delete(f.index, oldName)
	f.index[newName] = i
	return nil
}

// ReplaceColumn swaps the column at the named position for col, updating the
// schema kind. The replacement keeps the original position and row count.
func (f *Frame) ReplaceColumn(name string, col Column) error {
	i, ok := f.index[name]
	if !ok {
		return fmt.Errorf("unknown column: %s", name)
	}
	if col.Len() != f.nrows {
		return fmt.Errorf("column %s has %d rows, frame has %d", name, col.Len(), f.nrows)
	}
	col.setName(name)
	f.cols[i] = col
	f.schema.Columns[i].Type = col.Kind()
	return nil
}

// SelectRows returns a new frame retaining only rows where mask is true.
func (f *Frame) SelectRows(mask []bool) *Frame {
	out := &Frame{schema: f.schema.Clone(), cols: make([]Column, len(f.cols)), index: make(map[string]int, len(f.index))}
	for i, c := range f.cols {
		out.cols[i] = c.keep(mask)
	}
	for name, i := range f.index {
		out.index[name] = i
	}
	for _, keep := range mask {
		if keep {
			out.nrows++
		}
	}
	return out
}

// AppendNullRow appends a row with all-null values.
func (f *Frame) AppendNullRow() {
	for _, c := range f.cols {
		switch col := c.(type) {
		case *BoolColumn:
			col.AppendNull()
		case *IntColumn:
			col.AppendNull()
		case *FloatColumn:
			col.AppendNull()
		case *StringColumn:
			col.AppendNull()
		case *TimeColumn:
			col.AppendNull()
		case *TimeOfDayColumn:
			col.AppendNull()
		default:
			panic("unknown column type")
		}
	}
	f.nrows++
}

// SetCell sets a single cell value by name (row must exist).
func (f *Frame) SetCell(row int, name string, v any) error {
	i, ok := f.index[name]
	if !ok {
		return fmt.Errorf("unknown column: %s", name)
	}
	c := f.cols[i]
	switch col := c.(type) {
	case *BoolColumn:
		if v == nil {
			col.SetNull(row)
			return nil
		}
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("column %s expects bool", name)
		}
		col.Set(row, b)
	case *IntColumn:
		if v == nil {
			col.SetNull(row)
			return nil
		}
		switch t := v.(type) {
		case int:
			col.Set(row, int64(t))
		case int64:
			col.Set(row, t)
		case float64:
			col.Set(row, int64(t))
		default:
			return fmt.Errorf("column %s expects int/int64", name)
		}
	case *FloatColumn:
		if v == nil {
			col.SetNull(row)
			return nil
		}
		switch t := v.(type) {
		case float32:
			col.Set(row, float64(t))
		case float64:
			col.Set(row, t)
		case int:
			col.Set(row, float64(t))
		case int64:
			col.Set(row, float64(t))
		default:
			return fmt.Errorf("column %s expects float64", name)
		}
	case *StringColumn:
		if v == nil {
			col.SetNull(row)
			return nil
		}
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("column %s expects string", name)
		}
		col.Set(row, s)
	case *TimeColumn:
		if v == nil {
			col.SetNull(row)
			return nil
		}
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("column %s expects time.Time", name)
		}
		col.Set(row, t)
	case *TimeOfDayColumn:
		if v == nil {
			col.SetNull(row)
			return nil
		}
		d, ok := v.(time.Duration)
		if !ok {
			return fmt.Errorf("column %s expects time.Duration", name)
		}
		col.Set(row, d)
	default:
		return fmt.Errorf("unknown column kind")
	}
	return nil
}

// CellString renders a cell as text, using the column's layout for time
// values. The second return is false for null cells.
func (f *Frame) CellString(row int, name string) (string, bool) {
	col, ok := f.ColumnByName(name)
	if !ok {
		return "", false
	}
	switch c := col.(type) {
	case *BoolColumn:
		if v, ok := c.Get(row); ok {
			if v {
				return "true", true
			}
			return "false", true
		}
	case *IntColumn:
		if v, ok := c.Get(row); ok {
			return fmt.Sprintf("%d", v), true
		}
	case *FloatColumn:
		if v, ok := c.Get(row); ok {
			return fmt.Sprintf("%g", v), true
		}
	case *StringColumn:
		if v, ok := c.Get(row); ok {
			return v, true
		}
	case *TimeColumn:
		if v, ok := c.Get(row); ok {
			return v.Format(c.Layout()), true
		}
	case *TimeOfDayColumn:
		if v, ok := c.Get(row); ok {
			return FormatTimeOfDay(v), true
		}
	}
	return "", false
}
