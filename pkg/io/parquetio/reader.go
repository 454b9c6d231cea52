package parquetio

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	parquet "github.com/segmentio/parquet-go"

	"github.com/tsdata/refinery/pkg/refinery"
)

type Reader struct {
	file      *os.File
	reader    *parquet.GenericReader[map[string]any]
	schema    refinery.Schema
	naive     *time.Location
	layoutSet map[string]bool
}

func OpenReader(path string, sampleRows int, naive *time.Location) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := parquet.NewGenericReader[map[string]any](f)
	if sampleRows <= 0 {
		sampleRows = 100
	}
	rows := make([]map[string]any, sampleRows)
	n, err := r.Read(rows)
	if err != nil && !strings.Contains(err.Error(), "EOF") {
		_ = r.Close()
		_ = f.Close()
		return nil, err
	}
	rows = rows[:n]
	schema := inferSchema(rows)
	// segmentio readers cannot unread, so reopen for the full pass
	if err := r.Close(); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Reader{file: f, reader: parquet.NewGenericReader[map[string]any](f), schema: schema, naive: naive}, nil
}

func (r *Reader) Close() error {
	_ = r.reader.Close()
	return r.file.Close()
}

func (r *Reader) Schema() refinery.Schema { return r.schema }

func (r *Reader) ReadAll() (*refinery.Frame, error) {
	f := refinery.NewFrame(r.schema)
	buf := make([]map[string]any, 1024)
	for {
		n, err := r.reader.Read(buf)
		for i := 0; i < n; i++ {
			f.AppendNullRow()
			if err := r.setRow(f, f.Rows()-1, buf[i]); err != nil {
				return nil, err
			}
		}
		if err != nil {
			if strings.Contains(err.Error(), "EOF") {
				break
			}
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return f, nil
}

func inferSchema(rows []map[string]any) refinery.Schema {
	keysSet := map[string]struct{}{}
	for _, m := range rows {
		for k := range m {
			keysSet[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keysSet))
	for k := range keysSet {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kinds := make([]refinery.Kind, len(keys))
	for i, k := range keys {
		var seen, num, integer, boolean, stamp, clock int
		for _, m := range rows {
			v, ok := m[k]
			if !ok || v == nil {
				continue
			}
			switch t := v.(type) {
			case float64:
				seen++
				num++
				if float64(int64(t)) == t {
					integer++
				}
			case int, int32, int64:
				seen++
				num++
				integer++
			case bool:
				seen++
				boolean++
			case string:
				s := strings.TrimSpace(t)
				if s == "" {
					continue
				}
				seen++
				if _, err := strconv.ParseFloat(s, 64); err == nil {
					num++
					if _, err := strconv.ParseInt(s, 10, 64); err == nil {
						integer++
					}
				} else if _, err := refinery.ParseTimeOfDay(s); err == nil {
					clock++
				} else if refinery.LooksLikeTimestamp(s) {
					stamp++
				}
			}
		}
		switch {
		case seen == 0:
			kinds[i] = refinery.KindString
		case stamp == seen:
			kinds[i] = refinery.KindTime
		case clock == seen:
			kinds[i] = refinery.KindTimeOfDay
		case boolean == seen:
			kinds[i] = refinery.KindBool
		case num == seen:
			if integer == num {
				kinds[i] = refinery.KindInt
			} else {
				kinds[i] = refinery.KindFloat
			}
		default:
			kinds[i] = refinery.KindString
		}
	}
	schema := refinery.Schema{Columns: make([]refinery.ColumnSchema, len(keys))}
	for i, k := range keys {
		schema.Columns[i] = refinery.ColumnSchema{Name: k, Type: kinds[i], Nullable: true}
	}
	return schema
}

func (r *Reader) setRow(f *refinery.Frame, row int, m map[string]any) error {
	for _, cs := range f.Schema().Columns {
		v, ok := m[cs.Name]
		if !ok || v == nil {
			continue
		}
		switch cs.Type {
		case refinery.KindFloat:
			switch t := v.(type) {
			case float64:
				_ = f.SetCell(row, cs.Name, t)
			case int64:
				_ = f.SetCell(row, cs.Name, float64(t))
			case string:
				if x, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
					_ = f.SetCell(row, cs.Name, x)
				}
			}
		case refinery.KindInt:
			switch t := v.(type) {
			case int64:
				_ = f.SetCell(row, cs.Name, t)
			case float64:
				_ = f.SetCell(row, cs.Name, int64(t))
			case string:
				if x, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
					_ = f.SetCell(row, cs.Name, x)
				}
			}
		case refinery.KindBool:
			if t, ok := v.(bool); ok {
				_ = f.SetCell(row, cs.Name, t)
			}
		case refinery.KindTime:
			s, ok := v.(string)
			if !ok {
				continue
			}
			t, layout, err := refinery.ParseTimestamp(strings.TrimSpace(s), r.naive)
			if err != nil {
				return &refinery.Error{Code: refinery.CodeUnparseableTimestamp, Pos: -1, Row: row,
					Msg: "column " + cs.Name, Err: err}
			}
			col, _ := f.ColumnByName(cs.Name)
			tc := col.(*refinery.TimeColumn)
			if r.layoutSet == nil {
				r.layoutSet = make(map[string]bool)
			}
			if !r.layoutSet[cs.Name] {
				tc.SetLayout(layout)
				r.layoutSet[cs.Name] = true
			}
			tc.Set(row, t)
		case refinery.KindTimeOfDay:
			s, ok := v.(string)
			if !ok {
				continue
			}
			d, err := refinery.ParseTimeOfDay(strings.TrimSpace(s))
			if err != nil {
				return &refinery.Error{Code: refinery.CodeUnparseableTimestamp, Pos: -1, Row: row,
					Msg: "column " + cs.Name, Err: err}
			}
			_ = f.SetCell(row, cs.Name, d)
		default:
			switch t := v.(type) {
			case string:
				_ = f.SetCell(row, cs.Name, t)
			default:
				_ = f.SetCell(row, cs.Name, fmt.Sprintf("%v", t))
			}
		}
	}
	return nil
}
