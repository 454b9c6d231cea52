// Package profile computes per-column summary statistics and head previews
// for a frame, feeding the preview endpoint and the CLI summary output.
package profile

import (
	"math"
	"sort"
	"time"

	"github.com/tsdata/refinery/pkg/refinery"
)

type NumStats struct {
	Count int     `json:"count"`
	Nulls int     `json:"nulls"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

type BoolStats struct {
	Count int `json:"count"`
	Nulls int `json:"nulls"`
	True  int `json:"true"`
	False int `json:"false"`
}

type StringStats struct {
	Count  int            `json:"count"`
	Nulls  int            `json:"nulls"`
	Unique int            `json:"unique"`
	Top    map[string]int `json:"top,omitempty"`
}

type TimeStats struct {
	Count int    `json:"count"`
	Nulls int    `json:"nulls"`
	Min   string `json:"min,omitempty"`
	Max   string `json:"max,omitempty"`
}

type ColumnProfile struct {
	Name string       `json:"name"`
	Kind string       `json:"kind"`
	Num  *NumStats    `json:"num,omitempty"`
	Bool *BoolStats   `json:"bool,omitempty"`
	Str  *StringStats `json:"str,omitempty"`
	Time *TimeStats   `json:"time,omitempty"`
}

// Describe profiles every column of f. topK bounds the reported frequency
// table for string columns; 0 disables it.
func Describe(f *refinery.Frame, topK int) []ColumnProfile {
	out := make([]ColumnProfile, 0, f.Cols())
	for _, cs := range f.Schema().Columns {
		cp := ColumnProfile{Name: cs.Name, Kind: cs.Type.String()}
		col, _ := f.ColumnByName(cs.Name)
		switch c := col.(type) {
		case *refinery.FloatColumn:
			st := &NumStats{Min: math.Inf(1), Max: math.Inf(-1)}
			var sum float64
			for i := 0; i < c.Len(); i++ {
				v, ok := c.Get(i)
				if !ok {
					st.Nulls++
					continue
				}
				st.Count++
				sum += v
				st.Min = math.Min(st.Min, v)
				st.Max = math.Max(st.Max, v)
			}
			finishNum(st, sum)
			cp.Num = st
		case *refinery.IntColumn:
			st := &NumStats{Min: math.Inf(1), Max: math.Inf(-1)}
			var sum float64
			for i := 0; i < c.Len(); i++ {
				v, ok := c.Get(i)
				if !ok {
					st.Nulls++
					continue
				}
				st.Count++
				fv := float64(v)
				sum += fv
				st.Min = math.Min(st.Min, fv)
				st.Max = math.Max(st.Max, fv)
			}
			finishNum(st, sum)
			cp.Num = st
		case *refinery.BoolColumn:
			st := &BoolStats{}
			for i := 0; i < c.Len(); i++ {
				v, ok := c.Get(i)
				if !ok {
					st.Nulls++
					continue
				}
				st.Count++
				if v {
					st.True++
				} else {
					st.False++
				}
			}
			cp.Bool = st
		case *refinery.StringColumn:
			st := &StringStats{}
			freqs := make(map[string]int)
			for i := 0; i < c.Len(); i++ {
				v, ok := c.Get(i)
				if !ok {
					st.Nulls++
					continue
				}
				st.Count++
				freqs[v]++
			}
			st.Unique = len(freqs)
			if topK > 0 {
				st.Top = topN(freqs, topK)
			}
			cp.Str = st
		case *refinery.TimeColumn:
			st := &TimeStats{}
			var min, max time.Time
			for i := 0; i < c.Len(); i++ {
				v, ok := c.Get(i)
				if !ok {
					st.Nulls++
					continue
				}
				if st.Count == 0 || v.Before(min) {
					min = v
				}
				if st.Count == 0 || v.After(max) {
					max = v
				}
				st.Count++
			}
			if st.Count > 0 {
				st.Min = min.Format(c.Layout())
				st.Max = max.Format(c.Layout())
			}
			cp.Time = st
		case *refinery.TimeOfDayColumn:
			st := &TimeStats{}
			var min, max time.Duration
			for i := 0; i < c.Len(); i++ {
				v, ok := c.Get(i)
				if !ok {
					st.Nulls++
					continue
				}
				if st.Count == 0 || v < min {
					min = v
				}
				if st.Count == 0 || v > max {
					max = v
				}
				st.Count++
			}
			if st.Count > 0 {
				st.Min = refinery.FormatTimeOfDay(min)
				st.Max = refinery.FormatTimeOfDay(max)
			}
			cp.Time = st
		}
		out = append(out, cp)
	}
	return out
}

func finishNum(st *NumStats, sum float64) {
	if st.Count == 0 {
		st.Min, st.Max = 0, 0
		return
	}
	st.Mean = sum / float64(st.Count)
}

func topN(freqs map[string]int, n int) map[string]int {
	type kv struct {
		k string
		v int
	}
	arr := make([]kv, 0, len(freqs))
	for k, v := range freqs {
		arr = append(arr, kv{k, v})
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].v != arr[j].v {
			return arr[i].v > arr[j].v
		}
		return arr[i].k < arr[j].k
	})
	if n > len(arr) {
		n = len(arr)
	}
	out := make(map[string]int, n)
	for i := 0; i < n; i++ {
		out[arr[i].k] = arr[i].v
	}
	return out
}

// Preview is the head-rows view of a dataset: shape, column names, dtypes,
// and the first k rows rendered as text.
type Preview struct {
	Rows    int               `json:"rows"`
	Cols    int               `json:"cols"`
	Columns []string          `json:"columns"`
	Dtypes  map[string]string `json:"dtypes"`
	Head    [][]string        `json:"head"`
}

// Head builds a Preview with up to k rows. Null cells render as "".
func Head(f *refinery.Frame, k int) Preview {
	p := Preview{
		Rows:    f.Rows(),
		Cols:    f.Cols(),
		Columns: f.Schema().Names(),
		Dtypes:  make(map[string]string, f.Cols()),
	}
	for _, cs := range f.Schema().Columns {
		p.Dtypes[cs.Name] = cs.Type.String()
	}
	if k > f.Rows() {
		k = f.Rows()
	}
	p.Head = make([][]string, 0, k)
	for r := 0; r < k; r++ {
		row := make([]string, len(p.Columns))
		for c, name := range p.Columns {
			if v, ok := f.CellString(r, name); ok {
				row[c] = v
			}
		}
		p.Head = append(p.Head, row)
	}
	return p
}
