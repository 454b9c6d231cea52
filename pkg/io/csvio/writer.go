package csvio

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/tsdata/refinery/pkg/io/ioutils"
	"github.com/tsdata/refinery/pkg/refinery"
)

type WriterOptions struct {
	Delimiter rune // default ','
}

// Write writes a Frame with headers to w. Time columns are rendered in
// their recorded layout so an untouched column round-trips byte-for-byte.
func Write(w io.Writer, f *refinery.Frame, opt WriterOptions) error {
	cw := csv.NewWriter(w)
	if opt.Delimiter != 0 {
		cw.Comma = opt.Delimiter
	}

	hdr := make([]string, len(f.Schema().Columns))
	for i, cs := range f.Schema().Columns {
		hdr[i] = cs.Name
	}
	if err := cw.Write(hdr); err != nil {
		return err
	}

	for r := 0; r < f.Rows(); r++ {
		row := make([]string, len(hdr))
		for c, cs := range f.Schema().Columns {
			col, _ := f.ColumnByName(cs.Name)
			switch cs.Type {
			case refinery.KindFloat:
				if v, ok := col.(*refinery.FloatColumn).Get(r); ok {
					row[c] = strconv.FormatFloat(v, 'g', -1, 64)
				}
			case refinery.KindInt:
				if v, ok := col.(*refinery.IntColumn).Get(r); ok {
					row[c] = strconv.FormatInt(v, 10)
				}
			case refinery.KindBool:
				if v, ok := col.(*refinery.BoolColumn).Get(r); ok {
					row[c] = strconv.FormatBool(v)
				}
			case refinery.KindString:
				if v, ok := col.(*refinery.StringColumn).Get(r); ok {
					row[c] = v
				}
			case refinery.KindTime:
				tc := col.(*refinery.TimeColumn)
				if v, ok := tc.Get(r); ok {
					row[c] = v.Format(tc.Layout())
				}
			case refinery.KindTimeOfDay:
				if v, ok := col.(*refinery.TimeOfDayColumn).Get(r); ok {
					row[c] = refinery.FormatTimeOfDay(v)
				}
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAll writes a Frame to a CSV file, gzip-compressed when the path
// ends in .gz.
func WriteAll(path string, f *refinery.Frame, opt WriterOptions) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	wc := ioutils.WrapMaybeCompressed(path, out)
	if err := Write(wc, f, opt); err != nil {
		_ = wc.Close()
		_ = out.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
