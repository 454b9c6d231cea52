package parquetio

import (
	"encoding/json"
	"fmt"

	pw "github.com/xitongsys/parquet-go/writer"
	local "github.com/xitongsys/parquet-go-source/local"

	"github.com/tsdata/refinery/pkg/refinery"
)

func parquetSchemaJSON(s refinery.Schema) string {
	type field struct {
		Tag string `json:"Tag"`
	}
	type schema struct {
		Tag    string  `json:"Tag"`
		Fields []field `json:"Fields"`
	}
	sc := schema{Tag: "name=schema, repetitiontype=REQUIRED"}
	for _, cs := range s.Columns {
		tag := "name=" + cs.Name + ", repetitiontype=OPTIONAL, type="
		switch cs.Type {
		case refinery.KindFloat:
			tag += "DOUBLE"
		case refinery.KindInt:
			tag += "INT64"
		case refinery.KindBool:
			tag += "BOOLEAN"
		default:
			// strings, timestamps and time-of-day travel as UTF8 text
			tag += "BYTE_ARRAY, convertedtype=UTF8"
		}
		sc.Fields = append(sc.Fields, field{Tag: tag})
	}
	b, _ := json.Marshal(sc)
	return string(b)
}

// WriteAll writes a Frame to a Parquet file. Time columns keep their
// recorded textual layout, as in the CSV writer.
func WriteAll(path string, f *refinery.Frame) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	schema := parquetSchemaJSON(f.Schema())
	writer, err := pw.NewJSONWriter(schema, fw, 4)
	if err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet writer init: %w", err)
	}
	for r := 0; r < f.Rows(); r++ {
		rec := make(map[string]any, len(f.Schema().Columns))
		for _, cs := range f.Schema().Columns {
			col, _ := f.ColumnByName(cs.Name)
			switch cs.Type {
			case refinery.KindFloat:
				if v, ok := col.(*refinery.FloatColumn).Get(r); ok {
					rec[cs.Name] = v
				}
			case refinery.KindInt:
				if v, ok := col.(*refinery.IntColumn).Get(r); ok {
					rec[cs.Name] = v
				}
			case refinery.KindBool:
				if v, ok := col.(*refinery.BoolColumn).Get(r); ok {
					rec[cs.Name] = v
				}
			case refinery.KindString:
				if v, ok := col.(*refinery.StringColumn).Get(r); ok {
					rec[cs.Name] = v
				}
			case refinery.KindTime:
				tc := col.(*refinery.TimeColumn)
				if v, ok := tc.Get(r); ok {
					rec[cs.Name] = v.Format(tc.Layout())
				}
			case refinery.KindTimeOfDay:
				if v, ok := col.(*refinery.TimeOfDayColumn).Get(r); ok {
					rec[cs.Name] = refinery.FormatTimeOfDay(v)
				}
			}
		}
		if err := writer.Write(rec); err != nil {
			_ = writer.WriteStop()
			_ = fw.Close()
			return fmt.Errorf("parquet write row: %w", err)
		}
	}
	// WriteStop flushes row groups and writes the footer; a file without a
	// footer is unreadable, so its error must reach the caller before any
	// rename commits the output.
	if err := writer.WriteStop(); err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet finalize: %w", err)
	}
	return fw.Close()
}
