package refinery

import (
	"errors"
	"fmt"
)

// Code identifies a failure class. Codes are stable: callers branch on them
// to decide whether a request can be corrected and resubmitted.
type Code int

const (
	CodeUnknown Code = iota
	CodeUnknownColumn
	CodeColumnNameCollision
	CodeTypeMismatch
	CodeInvalidTimezone
	CodeUnparseableTimestamp
	CodeEmptyOperationList
	CodeNameCollisionExhausted
	CodeStorage
	CodeInternal
	CodeInvalidOperation
)

func (c Code) String() string {
	switch c {
	case CodeUnknownColumn:
		return "unknown_column"
	case CodeColumnNameCollision:
		return "column_name_collision"
	case CodeTypeMismatch:
		return "type_mismatch"
	case CodeInvalidTimezone:
		return "invalid_timezone"
	case CodeUnparseableTimestamp:
		return "unparseable_timestamp"
	case CodeEmptyOperationList:
		return "empty_operation_list"
	case CodeNameCollisionExhausted:
		return "name_collision_exhausted"
	case CodeStorage:
		return "storage_error"
	case CodeInternal:
		return "internal_error"
	case CodeInvalidOperation:
		return "invalid_operation"
	default:
		return "unknown"
	}
}

// Error carries a stable code plus enough position detail to point the
// caller at the offending operation and, where applicable, the offending
// row. Pos and Row are -1 when not applicable.
type Error struct {
	Code Code
	Op   string // operation name, "" outside the pipeline
	Pos  int    // zero-based position in the operation list
	Row  int    // zero-based row index
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := e.Code.String()
	if e.Op != "" {
		s += fmt.Sprintf(": op %s", e.Op)
		if e.Pos >= 0 {
			s += fmt.Sprintf(" (position %d)", e.Pos)
		}
	}
	if e.Row >= 0 {
		s += fmt.Sprintf(" row %d", e.Row)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Pos: -1, Row: -1, Msg: fmt.Sprintf(format, args...)}
}

// ErrorCode extracts the Code from err, or CodeUnknown.
func ErrorCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// at returns a copy of err annotated with the operation name and position,
// preserving an inner *Error's code, row and message.
func errAt(err error, op string, pos int) error {
	var e *Error
	if errors.As(err, &e) {
		cp := *e
		cp.Op = op
		cp.Pos = pos
		return &cp
	}
	return &Error{Code: CodeInternal, Op: op, Pos: pos, Row: -1, Err: err}
}
