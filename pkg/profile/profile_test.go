package profile_test

import (
	"testing"
	"time"

	"github.com/tsdata/refinery/pkg/profile"
	"github.com/tsdata/refinery/pkg/refinery"
)

func statsFrame() *refinery.Frame {
	s := refinery.Schema{Columns: []refinery.ColumnSchema{
		{Name: "_time", Type: refinery.KindTime, Nullable: true},
		{Name: "device", Type: refinery.KindString, Nullable: true},
		{Name: "value", Type: refinery.KindFloat, Nullable: true},
	}}
	f := refinery.NewFrame(s)
	for i := 0; i < 4; i++ {
		f.AppendNullRow()
	}
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		_ = f.SetCell(i, "_time", base.Add(time.Duration(i)*time.Hour))
	}
	_ = f.SetCell(0, "device", "a")
	_ = f.SetCell(1, "device", "a")
	_ = f.SetCell(2, "device", "b")
	// row 3 device left null
	_ = f.SetCell(0, "value", 1.0)
	_ = f.SetCell(1, "value", 2.0)
	_ = f.SetCell(2, "value", 3.0)
	_ = f.SetCell(3, "value", 6.0)
	return f
}

func TestDescribe(t *testing.T) {
	profs := profile.Describe(statsFrame(), 2)
	if len(profs) != 3 {
		t.Fatalf("got %d profiles", len(profs))
	}

	tp := profs[0]
	if tp.Kind != "time" || tp.Time == nil {
		t.Fatalf("time profile: %+v", tp)
	}
	if tp.Time.Count != 4 || tp.Time.Nulls != 0 {
		t.Fatalf("time stats: %+v", tp.Time)
	}

	dp := profs[1]
	if dp.Str == nil {
		t.Fatalf("string profile missing: %+v", dp)
	}
	if dp.Str.Count != 3 || dp.Str.Nulls != 1 || dp.Str.Unique != 2 {
		t.Fatalf("string stats: %+v", dp.Str)
	}
	if dp.Str.Top["a"] != 2 {
		t.Fatalf("top frequencies: %v", dp.Str.Top)
	}

	vp := profs[2]
	if vp.Num == nil {
		t.Fatalf("numeric profile missing: %+v", vp)
	}
	if vp.Num.Min != 1 || vp.Num.Max != 6 || vp.Num.Mean != 3 {
		t.Fatalf("numeric stats: %+v", vp.Num)
	}
}

func TestDescribeAllNullColumn(t *testing.T) {
	s := refinery.Schema{Columns: []refinery.ColumnSchema{
		{Name: "x", Type: refinery.KindFloat, Nullable: true},
	}}
	f := refinery.NewFrame(s)
	f.AppendNullRow()
	f.AppendNullRow()
	p := profile.Describe(f, 0)[0]
	if p.Num.Count != 0 || p.Num.Nulls != 2 {
		t.Fatalf("stats: %+v", p.Num)
	}
	if p.Num.Min != 0 || p.Num.Max != 0 {
		t.Fatalf("empty column min/max not zeroed: %+v", p.Num)
	}
}

func TestHead(t *testing.T) {
	p := profile.Head(statsFrame(), 2)
	if p.Rows != 4 || p.Cols != 3 {
		t.Fatalf("shape %dx%d", p.Rows, p.Cols)
	}
	if len(p.Head) != 2 {
		t.Fatalf("head has %d rows", len(p.Head))
	}
	if p.Dtypes["value"] != "float" {
		t.Fatalf("dtypes: %v", p.Dtypes)
	}
	if p.Head[0][1] != "a" {
		t.Fatalf("head row: %v", p.Head[0])
	}
}

func TestHeadClampsToRowCount(t *testing.T) {
	p := profile.Head(statsFrame(), 100)
	if len(p.Head) != 4 {
		t.Fatalf("head has %d rows", len(p.Head))
	}
	// row 3 has a null device cell, rendered empty
	if p.Head[3][1] != "" {
		t.Fatalf("null cell rendered %q", p.Head[3][1])
	}
}
