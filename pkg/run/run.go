// Package run orchestrates one pipeline run: load, validate, execute,
// derive the output name, persist. A run either writes exactly one new
// dataset or writes nothing; the source is read-only throughout.
package run

import (
	"context"
	"log/slog"

	"github.com/tsdata/refinery/pkg/dataset"
	"github.com/tsdata/refinery/pkg/refinery"
)

type Runner struct {
	Store *dataset.Store
	Log   *slog.Logger
}

func New(store *dataset.Store, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{Store: store, Log: log}
}

// Request is one pipeline run over one source dataset.
type Request struct {
	Source string
	Ops    []refinery.Operation
}

// Report describes a committed run.
type Report struct {
	Output  string   `json:"output_dataset"`
	RowsIn  int      `json:"rows_in"`
	Rows    int      `json:"rows"`
	Cols    int      `json:"cols"`
	Applied []string `json:"applied"`
}

// Run executes the request. Validation failures surface before any data is
// read past the load; execution failures abort before any destination
// write, leaving storage exactly as it was. Cancellation before the final
// write commits leaves no partial output; once the atomic save has
// happened the run is done.
func (r *Runner) Run(ctx context.Context, req Request) (*Report, error) {
	if len(req.Ops) == 0 {
		return nil, &refinery.Error{Code: refinery.CodeEmptyOperationList, Pos: -1, Row: -1,
			Msg: "refusing to run with no operations"}
	}

	frame, err := r.Store.Load(req.Source)
	if err != nil {
		return nil, err
	}
	r.Log.Debug("dataset loaded", "source", req.Source, "rows", frame.Rows(), "cols", frame.Cols())

	if err := refinery.Validate(frame.Schema(), req.Ops); err != nil {
		return nil, err
	}

	p := refinery.NewPipeline(req.Ops...)
	out, applied, err := p.Run(ctx, frame)
	if err != nil {
		return nil, err
	}

	structural, timezone, timeOnly := refinery.Categories(req.Ops)
	name, err := r.Store.Reserve(req.Source, structural, timezone, timeOnly)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		r.Store.Release(name)
		return nil, err
	}
	if err := r.Store.Save(name, out); err != nil {
		r.Store.Release(name)
		return nil, err
	}

	r.Log.Info("run committed", "source", req.Source, "output", name,
		"rows", out.Rows(), "cols", out.Cols(), "ops", len(applied))
	return &Report{Output: name, RowsIn: frame.Rows(), Rows: out.Rows(), Cols: out.Cols(), Applied: applied}, nil
}

// ReformatRequest is the boundary shape for timestamp reformatting.
type ReformatRequest struct {
	Source          string
	ConvertTimezone bool
	TargetTimezone  string
	KeepTimeOnly    bool
}

// CompileReformat lowers a reformat request onto the shared operation
// pipeline: conversion first, then truncation, the order the upstream tool
// applied them. A request with neither flag compiles to an empty list,
// which Run refuses.
func CompileReformat(req ReformatRequest, opt refinery.Options) ([]refinery.Operation, error) {
	var specs []refinery.OpSpec
	if req.ConvertTimezone {
		specs = append(specs, refinery.OpSpec{Action: "convert_timezone", TargetTimezone: req.TargetTimezone})
	}
	if req.KeepTimeOnly {
		specs = append(specs, refinery.OpSpec{Action: "time_only"})
	}
	return refinery.CompileOperations(specs, opt)
}
