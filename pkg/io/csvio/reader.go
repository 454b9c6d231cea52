package csvio

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tsdata/refinery/pkg/io/ioutils"
	"github.com/tsdata/refinery/pkg/refinery"
)

type ReaderOptions struct {
	HasHeader     bool
	Delimiter     rune           // 0 = sniff (Open) or ',' (NewReader)
	LazyQuotes    bool           // tolerate stray quotes in fields
	SampleRows    int            // for inference; default 100
	NaiveLocation *time.Location // zone for timezone-naive timestamps; nil = UTC
}

type Reader struct {
	r         *csv.Reader
	opt       ReaderOptions
	buf       [][]string
	layoutSet map[string]bool
	closeFn   func() error
}

// Open opens a CSV file (gzip-transparent) and returns a Reader. A zero
// Delimiter is sniffed from the start of the file.
func Open(path string, opt ReaderOptions) (*Reader, error) {
	if opt.Delimiter == 0 {
		if d, lazy, err := sniffDelimiter(path); err == nil && d != 0 {
			opt.Delimiter = d
			opt.LazyQuotes = lazy
		}
	}
	rc, err := ioutils.OpenMaybeCompressed(path)
	if err != nil {
		return nil, err
	}
	r := NewReader(rc, opt)
	r.closeFn = rc.Close
	return r, nil
}

// NewReader constructs a Reader from an arbitrary io.Reader.
func NewReader(r io.Reader, opt ReaderOptions) *Reader {
	rr := csv.NewReader(r)
	if opt.Delimiter != 0 {
		rr.Comma = opt.Delimiter
	}
	rr.LazyQuotes = opt.LazyQuotes
	rr.ReuseRecord = false
	return &Reader{r: rr, opt: opt}
}

// sniffDelimiter counts candidate delimiters in the first 4KB of the file
// and picks the most frequent one, defaulting to comma. Any quote character
// in the sample enables lazy quote handling.
func sniffDelimiter(path string) (rune, bool, error) {
	rc, err := ioutils.OpenMaybeCompressed(path)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = rc.Close() }()
	sample := make([]byte, 4096)
	n, _ := io.ReadFull(rc, sample)
	sample = sample[:n]
	if len(sample) == 0 {
		return ',', false, nil
	}
	best, bestCount := byte(','), -1
	for _, c := range []byte{',', '\t', ';', '|'} {
		if cnt := bytes.Count(sample, []byte{c}); cnt > bestCount {
			best, bestCount = c, cnt
		}
	}
	lazy := bytes.IndexByte(sample, '"') >= 0
	return rune(best), lazy, nil
}

func (r *Reader) Close() error {
	if r.closeFn != nil {
		return r.closeFn()
	}
	return nil
}

// InferSchema reads the header (if present) and samples rows to determine
// column kinds, including timestamp and time-of-day detection.
func (r *Reader) InferSchema() (refinery.Schema, error) {
	rec, err := r.r.Read()
	if err != nil {
		return refinery.Schema{}, err
	}
	var names []string
	if r.opt.HasHeader {
		names = make([]string, len(rec))
		for i := range rec {
			names[i] = strings.ToValidUTF8(rec[i], "?")
		}
		if len(names) > 0 {
			names[0] = strings.TrimPrefix(names[0], "\uFEFF")
		}
		rec, err = r.r.Read()
		if err == io.EOF {
			schema := refinery.Schema{Columns: make([]refinery.ColumnSchema, len(names))}
			for i := range names {
				schema.Columns[i] = refinery.ColumnSchema{Name: names[i], Type: refinery.KindString, Nullable: true}
			}
			return schema, nil
		}
		if err != nil {
			return refinery.Schema{}, err
		}
	} else {
		names = make([]string, len(rec))
		for i := range names {
			names[i] = "col_" + strconv.Itoa(i)
		}
	}

	sample := [][]string{rec}
	max := r.opt.SampleRows
	if max <= 0 {
		max = 100
	}
	for i := 1; i < max; i++ {
		rr, err := r.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return refinery.Schema{}, err
		}
		sample = append(sample, rr)
	}

	kinds := inferKinds(sample)
	schema := refinery.Schema{Columns: make([]refinery.ColumnSchema, len(names))}
	for i := range names {
		schema.Columns[i] = refinery.ColumnSchema{Name: names[i], Type: kinds[i], Nullable: true}
	}
	// retain sampled rows for the subsequent ReadAll
	r.buf = append(r.buf, sample...)
	return schema, nil
}

// ReadAll loads the remainder of the CSV into a Frame. Cells in a
// timestamp-inferred column that fail to parse abort the load with the
// offending row index; they are never silently nulled.
func (r *Reader) ReadAll(schema refinery.Schema) (*refinery.Frame, error) {
	f := refinery.NewFrame(schema)
	for len(r.buf) > 0 {
		rec := r.buf[0]
		r.buf = r.buf[1:]
		if err := r.appendRecord(f, schema, rec); err != nil {
			return nil, err
		}
	}
	for {
		rec, err := r.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := r.appendRecord(f, schema, rec); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (r *Reader) appendRecord(f *refinery.Frame, schema refinery.Schema, rec []string) error {
	f.AppendNullRow()
	row := f.Rows() - 1
	for i, cs := range schema.Columns {
		if i >= len(rec) {
			continue
		}
		val := strings.ToValidUTF8(strings.TrimSpace(rec[i]), "?")
		if val == "" {
			continue
		}
		switch cs.Type {
		case refinery.KindFloat:
			if x, err := strconv.ParseFloat(val, 64); err == nil {
				_ = f.SetCell(row, cs.Name, x)
			}
		case refinery.KindInt:
			if x, err := strconv.ParseInt(val, 10, 64); err == nil {
				_ = f.SetCell(row, cs.Name, x)
			}
		case refinery.KindBool:
			if x, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
				_ = f.SetCell(row, cs.Name, x)
			}
		case refinery.KindTime:
			t, layout, err := refinery.ParseTimestamp(val, r.opt.NaiveLocation)
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
			d, err := refinery.ParseTimeOfDay(val)
			if err != nil {
				return &refinery.Error{Code: refinery.CodeUnparseableTimestamp, Pos: -1, Row: row,
					Msg: "column " + cs.Name, Err: err}
			}
			_ = f.SetCell(row, cs.Name, d)
		default:
			_ = f.SetCell(row, cs.Name, val)
		}
	}
	return nil
}

func inferKinds(rows [][]string) []refinery.Kind {
	if len(rows) == 0 {
		return nil
	}
	ncol := len(rows[0])
	kinds := make([]refinery.Kind, ncol)
	for c := 0; c < ncol; c++ {
		var seen, num, integer, boolean, stamp, clock int
		for _, row := range rows {
			if c >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[c])
			if v == "" {
				continue
			}
			seen++
			if _, err := strconv.ParseFloat(v, 64); err == nil {
				num++
				if _, err := strconv.ParseInt(v, 10, 64); err == nil {
					integer++
				}
				continue
			}
			lv := strings.ToLower(v)
			if lv == "true" || lv == "false" {
				boolean++
				continue
			}
			if _, err := refinery.ParseTimeOfDay(v); err == nil {
				clock++
				continue
			}
			if refinery.LooksLikeTimestamp(v) {
				stamp++
			}
		}
		switch {
		case seen == 0:
			kinds[c] = refinery.KindString
		case stamp == seen:
			kinds[c] = refinery.KindTime
		case clock == seen:
			kinds[c] = refinery.KindTimeOfDay
		case boolean == seen:
			kinds[c] = refinery.KindBool
		case num == seen:
			if integer == num {
				kinds[c] = refinery.KindInt
			} else {
				kinds[c] = refinery.KindFloat
			}
		default:
			kinds[c] = refinery.KindString
		}
	}
	return kinds
}
