package refinery

import "context"

// Validate checks an ordered operation list against a schema before any
// data is touched. It simulates schema evolution across the list — a rename
// changes what the next operation sees — and fails fast with the first
// offending operation's position and reason. It never executes filters or
// timezone math.
//
// An empty list is valid here; refusing zero-operation runs is the run
// orchestrator's job.
func Validate(s Schema, ops []Operation) error {
	sim := s.Clone()
	for i, op := range ops {
		if err := op.Check(&sim); err != nil {
			return errAt(err, op.Name(), i)
		}
	}
	return nil
}

// Pipeline composes an ordered sequence of Operations.
type Pipeline struct {
	ops []Operation
}

func NewPipeline(ops ...Operation) *Pipeline {
	return &Pipeline{ops: ops}
}

func (p *Pipeline) Add(op Operation) *Pipeline {
	p.ops = append(p.ops, op)
	return p
}

func (p *Pipeline) Operations() []Operation { return p.ops }

// Validate runs the schema-simulation checks for the pipeline's operations.
func (p *Pipeline) Validate(s Schema) error {
	return Validate(s, p.ops)
}

// Run applies the operations to f left to right, each operation fully
// completing before the next begins, in exactly the order given — the
// engine never reorders. Any failure aborts the whole run; on success the
// final frame is returned together with the log of applied operation names
// for naming and audit.
func (p *Pipeline) Run(ctx context.Context, f *Frame) (*Frame, []string, error) {
	cur := f
	applied := make([]string, 0, len(p.ops))
	for i, op := range p.ops {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		var err error
		cur, err = op.Apply(ctx, cur)
		if err != nil {
			return nil, nil, errAt(err, op.Name(), i)
		}
		applied = append(applied, op.Name())
	}
	return cur, applied, nil
}

// Categories reports which suffix-relevant operation categories the list
// contains: structural edits, timezone conversion, time-only extraction.
func Categories(ops []Operation) (structural, timezone, timeOnly bool) {
	for _, op := range ops {
		switch op.(type) {
		case *RemoveColumn, *RenameColumn, *Filter:
			structural = true
		case *ConvertTimezone:
			timezone = true
		case *TimeOnly:
			timeOnly = true
		}
	}
	return structural, timezone, timeOnly
}
